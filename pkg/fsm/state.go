package fsm

import "fmt"

// ActionFunc represents an action function with error support
type ActionFunc func(ctx Context) error

// GuardFunc represents a guard condition function
type GuardFunc func(ctx Context) bool

// State represents a state in the state machine
type State interface {
	ID() string
	IsFinal() bool
	HasEntryAction() bool
	HasExitAction() bool
}

type atomicState struct {
	id          string
	final       bool
	entryAction ActionFunc
	exitAction  ActionFunc
}

func newAtomicState(id string) *atomicState {
	return &atomicState{id: id}
}

func (s *atomicState) ID() string {
	return s.id
}

func (s *atomicState) IsFinal() bool {
	return s.final
}

func (s *atomicState) HasEntryAction() bool {
	return s.entryAction != nil
}

func (s *atomicState) HasExitAction() bool {
	return s.exitAction != nil
}

func (s *atomicState) enter(ctx Context) error {
	if s.entryAction == nil {
		return nil
	}
	if err := safeExecuteAction(s.entryAction, ctx); err != nil {
		return NewActionError("entry", s.id, err)
	}
	return nil
}

func (s *atomicState) exit(ctx Context) error {
	if s.exitAction == nil {
		return nil
	}
	if err := safeExecuteAction(s.exitAction, ctx); err != nil {
		return NewActionError("exit", s.id, err)
	}
	return nil
}

// safeEvaluateGuard safely evaluates a guard function with panic recovery
func safeEvaluateGuard(guard GuardFunc, ctx Context) (result bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = false
			err = fmt.Errorf("guard panic: %v", r)
		}
	}()

	return guard(ctx), nil
}

// safeExecuteAction safely executes an action function with panic recovery
func safeExecuteAction(action ActionFunc, ctx Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panic: %v", r)
		}
	}()

	return action(ctx)
}
