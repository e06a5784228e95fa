// Package fsm is a small event-driven finite state machine engine.
//
// A Definition is built once with the fluent builder returned by NewMachine and is immutable afterwards; any number of
// independent StateMachine instances can be created from it. Each instance keeps its current state and a key/value
// store for per-instance data, and reports its lifecycle to registered observers.
//
// # Semantics
//
// Events are handled synchronously under the instance lock, one at a time. For the current state, transitions bound
// to the event are tried in declaration order; the first whose guard passes (or has no guard) fires. Its action runs
// before the state changes, and a failing action aborts the transition. A regular transition then runs the source
// exit action and the target entry action; a self transition runs only the transition action.
//
// Guards, actions and observers run while the instance lock is held. They must read the machine through the Context
// they receive and must not send events to the same instance.
package fsm

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MachineState represents the run status of a machine instance
type MachineState int

const (
	// Machine is stopped and not processing events
	MachineStateStopped MachineState = iota
	// Machine is running and processing events
	MachineStateStarted
)

func (s MachineState) String() string {
	if s == MachineStateStarted {
		return "started"
	}
	return "stopped"
}

// Definition is the immutable configuration of a state machine
type Definition struct {
	name         string
	initialState string
	order        []string
	states       map[string]*atomicState
	transitions  []*Transition
	bySource     map[string][]*Transition
}

// Name returns the machine name
func (d *Definition) Name() string {
	return d.name
}

// InitialState returns the id of the initial state
func (d *Definition) InitialState() string {
	return d.initialState
}

// States returns the states in declaration order
func (d *Definition) States() []State {
	out := make([]State, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.states[id])
	}
	return out
}

// State returns the state with the given id
func (d *Definition) State(id string) (State, bool) {
	s, ok := d.states[id]
	if !ok {
		return nil, false
	}
	return s, true
}

// Transitions returns copies of all transitions in declaration order
func (d *Definition) Transitions() []Transition {
	out := make([]Transition, 0, len(d.transitions))
	for _, t := range d.transitions {
		out = append(out, *t)
	}
	return out
}

// Events returns the distinct event names in declaration order
func (d *Definition) Events() []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range d.transitions {
		if !seen[t.EventName] {
			seen[t.EventName] = true
			out = append(out, t.EventName)
		}
	}
	return out
}

// CreateInstance creates a new stopped machine instance
func (d *Definition) CreateInstance() *StateMachine {
	return &StateMachine{
		def:       d,
		current:   d.initialState,
		data:      newStore(),
		observers: NewObserverManager(),
	}
}

// StateMachine is one running instance of a Definition
type StateMachine struct {
	def       *Definition
	data      *store
	observers *ObserverManager

	mu      sync.Mutex
	current string
	status  MachineState
}

// Definition returns the definition the instance was created from
func (sm *StateMachine) Definition() *Definition {
	return sm.def
}

// AddObserver registers an observer
func (sm *StateMachine) AddObserver(observer Observer) {
	sm.observers.AddObserver(observer)
}

// RemoveObserver unregisters an observer
func (sm *StateMachine) RemoveObserver(observer Observer) {
	sm.observers.RemoveObserver(observer)
}

// Context returns a context bound to the instance data, for seeding values before Start.
func (sm *StateMachine) Context() Context {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.newContext(context.Background(), sm.current, "", "", nil)
}

func (sm *StateMachine) newContext(parent context.Context, current, source, target string, event Event) *machineContext {
	return &machineContext{
		Context: parent,
		data:    sm.data,
		machine: sm.def.name,
		current: current,
		source:  source,
		target:  target,
		event:   event,
	}
}

// Start enters the initial state
func (sm *StateMachine) Start() error {
	return sm.StartWithContext(context.Background())
}

// StartWithContext enters the initial state, passing ctx to its entry action
func (sm *StateMachine) StartWithContext(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.status == MachineStateStarted {
		return NewMachineError(ErrCodeInvalidState, "Start", "machine is already started")
	}

	sm.status = MachineStateStarted
	sm.current = sm.def.initialState

	mctx := sm.newContext(ctx, sm.current, "", sm.current, nil)
	if err := sm.def.states[sm.current].enter(mctx); err != nil {
		sm.observers.NotifyError(err, mctx)
	}
	sm.observers.NotifyStateEnter(sm.current, mctx)
	sm.observers.NotifyMachineStarted(mctx)
	return nil
}

// Stop stops processing events. The current state is kept; its exit action does not run.
func (sm *StateMachine) Stop() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.status != MachineStateStarted {
		return NewMachineNotStartedError("Stop")
	}

	mctx := sm.newContext(context.Background(), sm.current, "", "", nil)
	sm.observers.NotifyStateExit(sm.current, mctx)
	sm.observers.NotifyMachineStopped(mctx)
	sm.status = MachineStateStopped
	return nil
}

// CurrentState returns the current state
func (sm *StateMachine) CurrentState() string {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.current
}

// Status returns whether the machine is started
func (sm *StateMachine) Status() MachineState {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.status
}

// IsInState reports whether the current state is id
func (sm *StateMachine) IsInState(id string) bool {
	return sm.CurrentState() == id
}

// IsDone reports whether the machine has reached a final state
func (sm *StateMachine) IsDone() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.def.states[sm.current].final
}

// HandleEvent handles an event synchronously
func (sm *StateMachine) HandleEvent(eventName string, eventData any) *EventResult {
	return sm.HandleEventWithContext(context.Background(), eventName, eventData)
}

// HandleEventWithContext handles an event synchronously, passing ctx to guards and actions
func (sm *StateMachine) HandleEventWithContext(ctx context.Context, eventName string, eventData any) *EventResult {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.status != MachineStateStarted {
		return NewEventResult(false, false, sm.current, sm.current).
			WithRejection("machine is not started").
			WithError(NewMachineNotStartedError("HandleEvent"))
	}

	event := NewEvent(eventName, eventData)
	source := sm.current
	mctx := sm.newContext(ctx, source, source, "", event)

	if strings.TrimSpace(eventName) == "" {
		reason := "event name cannot be empty"
		sm.observers.NotifyEventRejected(event, reason, mctx)
		return NewEventResult(false, false, source, source).
			WithRejection(reason).
			WithError(NewMachineError(ErrCodeInvalidEvent, "HandleEvent", reason))
	}

	transition, err := sm.findMatchingTransition(source, event, mctx)
	if err != nil {
		sm.observers.NotifyEventRejected(event, err.Error(), mctx)
		return NewEventResult(false, false, source, source).
			WithRejection(err.Error()).
			WithError(err)
	}

	target := transition.TargetState
	tctx := sm.newContext(ctx, source, source, target, event)

	// The action runs before the state change; a failure aborts the transition.
	if transition.Action != nil {
		if err := safeExecuteAction(transition.Action, tctx); err != nil {
			actionErr := NewActionError("transition", source, err)
			sm.observers.NotifyError(actionErr, tctx)
			sm.observers.NotifyEventRejected(event, actionErr.Error(), tctx)
			return NewEventResult(false, false, source, source).
				WithRejection(fmt.Sprintf("transition action failed: %v", err)).
				WithError(actionErr)
		}
	}

	if transition.IsSelf() {
		sm.observers.NotifyTransition(source, target, event, tctx)
		return NewEventResult(true, false, source, target)
	}

	if err := sm.def.states[source].exit(tctx); err != nil {
		sm.observers.NotifyError(err, tctx)
	}
	sm.observers.NotifyStateExit(source, tctx)

	sm.current = target
	ectx := sm.newContext(ctx, target, source, target, event)
	sm.observers.NotifyTransition(source, target, event, ectx)

	if err := sm.def.states[target].enter(ectx); err != nil {
		sm.observers.NotifyError(err, ectx)
	}
	sm.observers.NotifyStateEnter(target, ectx)

	return NewEventResult(true, true, source, target)
}

// findMatchingTransition returns the first transition for the event whose guard passes.
func (sm *StateMachine) findMatchingTransition(source string, event Event, mctx *machineContext) (*Transition, error) {
	var rejected *Transition
	for _, t := range sm.def.bySource[source] {
		if t.EventName != event.Name() {
			continue
		}
		if t.Guard == nil {
			return t, nil
		}

		gctx := sm.newContext(mctx.Context, source, source, t.TargetState, event)
		ok, err := safeEvaluateGuard(t.Guard, gctx)
		if err != nil {
			sm.observers.NotifyError(err, gctx)
		}
		sm.observers.NotifyGuardEvaluation(source, t.TargetState, event, ok, gctx)
		if ok {
			return t, nil
		}
		if rejected == nil {
			rejected = t
		}
	}

	if rejected != nil {
		return nil, NewGuardRejectedError(source, rejected.TargetState, event.Name(), rejected.Description)
	}
	return nil, NewNoTransitionError(source, event.Name())
}
