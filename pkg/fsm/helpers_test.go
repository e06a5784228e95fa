package fsm

import (
	"sync"
	"testing"
)

// recordingObserver captures every callback for assertions
type recordingObserver struct {
	mu           sync.Mutex
	Transitions  [][2]string
	StateEnters  []string
	StateExits   []string
	EventRejects []string
	Errors       []error
	Guards       []bool
	Started      int
	Stopped      int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{}
}

func (o *recordingObserver) OnTransition(from string, to string, event Event, ctx Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Transitions = append(o.Transitions, [2]string{from, to})
}

func (o *recordingObserver) OnStateEnter(state string, ctx Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.StateEnters = append(o.StateEnters, state)
}

func (o *recordingObserver) OnStateExit(state string, ctx Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.StateExits = append(o.StateExits, state)
}

func (o *recordingObserver) OnGuardEvaluation(from string, to string, event Event, result bool, ctx Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Guards = append(o.Guards, result)
}

func (o *recordingObserver) OnEventRejected(event Event, reason string, ctx Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.EventRejects = append(o.EventRejects, event.Name())
}

func (o *recordingObserver) OnError(err error, ctx Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Errors = append(o.Errors, err)
}

func (o *recordingObserver) OnMachineStarted(ctx Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Started++
}

func (o *recordingObserver) OnMachineStopped(ctx Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Stopped++
}

func (o *recordingObserver) reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Transitions = nil
	o.StateEnters = nil
	o.StateExits = nil
	o.EventRejects = nil
	o.Errors = nil
	o.Guards = nil
	o.Started = 0
	o.Stopped = 0
}

// newDoorDefinition builds closed <-> open with a locked final state.
func newDoorDefinition(t *testing.T) *Definition {
	t.Helper()
	def, err := NewMachine("door").
		State("closed").Initial().
		To("open").On("open").
		To("locked").On("lock").
		State("open").
		To("closed").On("close").
		State("locked").Final().
		Build()
	if err != nil {
		t.Fatalf("Failed to build door machine: %v", err)
	}
	return def
}

func assertState(t *testing.T, machine *StateMachine, expected string) {
	t.Helper()
	if current := machine.CurrentState(); current != expected {
		t.Errorf("Expected state '%s', got '%s'", expected, current)
	}
}

func assertProcessed(t *testing.T, result *EventResult, shouldProcess bool) {
	t.Helper()
	if result.Processed != shouldProcess {
		t.Errorf("Expected Processed=%v, got %v (reason: %s, err: %v)",
			shouldProcess, result.Processed, result.RejectionReason, result.Error)
	}
}
