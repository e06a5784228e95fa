package fsm

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// MachineBuilder provides the main entry point for building state machines
type MachineBuilder interface {
	State(id string) StateBuilder
	Build() (*Definition, error)
	MustBuild() *Definition
}

// StateBuilder handles state configuration
type StateBuilder interface {
	To(target string) TransitionBuilder
	ToSelf() TransitionBuilder

	OnEntry(action ActionFunc) StateBuilder
	OnExit(action ActionFunc) StateBuilder
	Final() StateBuilder
	Initial() StateBuilder

	State(id string) StateBuilder
	Build() (*Definition, error)
	MustBuild() *Definition
}

// TransitionBuilder handles transition configuration with inline actions
type TransitionBuilder interface {
	On(event string) TransitionBuilder
	When(guard GuardFunc) TransitionBuilder
	Describe(description string) TransitionBuilder
	Do(action ActionFunc) TransitionBuilder

	// Further transitions from the same state
	To(target string) TransitionBuilder
	ToSelf() TransitionBuilder

	State(id string) StateBuilder
	Build() (*Definition, error)
	MustBuild() *Definition
}

type machineBuilder struct {
	name        string
	order       []string
	states      map[string]*atomicState
	initials    []string
	transitions []*Transition
}

// NewMachine creates a new machine builder
func NewMachine(name string) MachineBuilder {
	return &machineBuilder{
		name:   name,
		states: make(map[string]*atomicState),
	}
}

func (mb *machineBuilder) State(id string) StateBuilder {
	return &stateBuilder{machineBuilder: mb, state: mb.ensureState(id)}
}

func (mb *machineBuilder) ensureState(id string) *atomicState {
	if s, ok := mb.states[id]; ok {
		return s
	}
	s := newAtomicState(id)
	mb.states[id] = s
	mb.order = append(mb.order, id)
	return s
}

// Build validates the configuration and returns the definition. All problems are reported together.
func (mb *machineBuilder) Build() (*Definition, error) {
	if err := mb.validate(); err != nil {
		return nil, err
	}

	def := &Definition{
		name:         mb.name,
		initialState: mb.initials[0],
		order:        append([]string(nil), mb.order...),
		states:       mb.states,
		transitions:  mb.transitions,
		bySource:     make(map[string][]*Transition, len(mb.states)),
	}
	for _, t := range mb.transitions {
		def.bySource[t.SourceState] = append(def.bySource[t.SourceState], t)
	}
	return def, nil
}

// MustBuild is like Build but panics on an invalid configuration. It is meant for definitions declared in code.
func (mb *machineBuilder) MustBuild() *Definition {
	def, err := mb.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build machine %q: %v", mb.name, err))
	}
	return def
}

func (mb *machineBuilder) validate() error {
	var errs error
	component := "machine " + mb.name

	switch len(mb.initials) {
	case 0:
		errs = multierr.Append(errs, NewConfigurationError(component, "no initial state defined"))
	case 1:
	default:
		errs = multierr.Append(errs, NewConfigurationError(component,
			fmt.Sprintf("multiple initial states: %s", strings.Join(mb.initials, ", "))))
	}

	for _, t := range mb.transitions {
		if strings.TrimSpace(t.EventName) == "" {
			errs = multierr.Append(errs, NewConfigurationError(component,
				fmt.Sprintf("transition %s -> %s has no event", t.SourceState, t.TargetState)))
		}
		if _, ok := mb.states[t.TargetState]; !ok {
			errs = multierr.Append(errs, NewConfigurationError(component,
				fmt.Sprintf("target state '%s' does not exist for transition from '%s'", t.TargetState, t.SourceState)))
		}
		if s := mb.states[t.SourceState]; s != nil && s.final {
			errs = multierr.Append(errs, NewConfigurationError(component,
				fmt.Sprintf("final state '%s' cannot have outgoing transitions", t.SourceState)))
		}
	}
	return errs
}

type stateBuilder struct {
	machineBuilder *machineBuilder
	state          *atomicState
}

func (sb *stateBuilder) To(target string) TransitionBuilder {
	t := NewTransition(sb.state.id, target, "")
	sb.machineBuilder.transitions = append(sb.machineBuilder.transitions, t)
	return &transitionBuilder{stateBuilder: sb, transition: t}
}

func (sb *stateBuilder) ToSelf() TransitionBuilder {
	return sb.To(sb.state.id)
}

func (sb *stateBuilder) OnEntry(action ActionFunc) StateBuilder {
	sb.state.entryAction = action
	return sb
}

func (sb *stateBuilder) OnExit(action ActionFunc) StateBuilder {
	sb.state.exitAction = action
	return sb
}

func (sb *stateBuilder) Final() StateBuilder {
	sb.state.final = true
	return sb
}

func (sb *stateBuilder) Initial() StateBuilder {
	sb.machineBuilder.initials = append(sb.machineBuilder.initials, sb.state.id)
	return sb
}

func (sb *stateBuilder) State(id string) StateBuilder {
	return sb.machineBuilder.State(id)
}

func (sb *stateBuilder) Build() (*Definition, error) {
	return sb.machineBuilder.Build()
}

func (sb *stateBuilder) MustBuild() *Definition {
	return sb.machineBuilder.MustBuild()
}

type transitionBuilder struct {
	stateBuilder *stateBuilder
	transition   *Transition
}

func (tb *transitionBuilder) On(event string) TransitionBuilder {
	tb.transition.EventName = event
	return tb
}

func (tb *transitionBuilder) When(guard GuardFunc) TransitionBuilder {
	tb.transition.Guard = guard
	return tb
}

func (tb *transitionBuilder) Describe(description string) TransitionBuilder {
	tb.transition.Description = description
	return tb
}

func (tb *transitionBuilder) Do(action ActionFunc) TransitionBuilder {
	tb.transition.Action = action
	return tb
}

func (tb *transitionBuilder) To(target string) TransitionBuilder {
	return tb.stateBuilder.To(target)
}

func (tb *transitionBuilder) ToSelf() TransitionBuilder {
	return tb.stateBuilder.ToSelf()
}

func (tb *transitionBuilder) State(id string) StateBuilder {
	return tb.stateBuilder.State(id)
}

func (tb *transitionBuilder) Build() (*Definition, error) {
	return tb.stateBuilder.Build()
}

func (tb *transitionBuilder) MustBuild() *Definition {
	return tb.stateBuilder.MustBuild()
}
