package fsm

import (
	"errors"
	"fmt"
)

// ErrorCode classifies why the engine refused an operation
type ErrorCode int

const (
	ErrCodeNone ErrorCode = iota
	// No transition leaves the current state on the event
	ErrCodeTransitionNotAllowed
	// Transitions exist for the event but every guard said no
	ErrCodeGuardRejected
	// Blank event name
	ErrCodeInvalidEvent
	ErrCodeMachineNotStarted
	// An entry, exit or transition action returned an error or panicked
	ErrCodeActionFailed
	// The builder found a broken definition
	ErrCodeInvalidConfiguration
	// Start on a machine that is already running
	ErrCodeInvalidState
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeTransitionNotAllowed:
		return "transition-not-allowed"
	case ErrCodeGuardRejected:
		return "guard-rejected"
	case ErrCodeInvalidEvent:
		return "invalid-event"
	case ErrCodeMachineNotStarted:
		return "not-started"
	case ErrCodeActionFailed:
		return "action-failed"
	case ErrCodeInvalidConfiguration:
		return "invalid-configuration"
	case ErrCodeInvalidState:
		return "invalid-state"
	default:
		return "none"
	}
}

// coded is implemented by every error the engine returns
type coded interface {
	error
	Code() ErrorCode
}

// TransitionError means the current state has no transition for the event.
type TransitionError struct {
	State string
	Event string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("no transition from %q on %q", e.State, e.Event)
}

func (e *TransitionError) Code() ErrorCode { return ErrCodeTransitionNotAllowed }

func NewNoTransitionError(state, event string) *TransitionError {
	return &TransitionError{State: state, Event: event}
}

// GuardError names the first declared transition whose guard rejected the event. Guard is the transition
// description and may be empty.
type GuardError struct {
	From  string
	To    string
	Event string
	Guard string
}

func (e *GuardError) Error() string {
	msg := fmt.Sprintf("%s -> %s on %q refused by guard", e.From, e.To, e.Event)
	if e.Guard != "" {
		msg += " " + e.Guard
	}
	return msg
}

func (e *GuardError) Code() ErrorCode { return ErrCodeGuardRejected }

func NewGuardRejectedError(from, to, event, guard string) *GuardError {
	return &GuardError{From: from, To: to, Event: event, Guard: guard}
}

// ConfigurationError is one problem the builder found in a definition. Build joins them with multierr.
type ConfigurationError struct {
	Component string
	Issue     string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Component, e.Issue)
}

func (e *ConfigurationError) Code() ErrorCode { return ErrCodeInvalidConfiguration }

func NewConfigurationError(component, issue string) *ConfigurationError {
	return &ConfigurationError{Component: component, Issue: issue}
}

// MachineError reports a call the machine cannot serve in its current status.
type MachineError struct {
	Kind      ErrorCode
	Operation string
	Message   string
}

func (e *MachineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Operation, e.Message)
}

func (e *MachineError) Code() ErrorCode { return e.Kind }

func NewMachineError(kind ErrorCode, operation, message string) *MachineError {
	return &MachineError{Kind: kind, Operation: operation, Message: message}
}

func NewMachineNotStartedError(operation string) *MachineError {
	return NewMachineError(ErrCodeMachineNotStarted, operation, "state machine is not started")
}

// ActionError wraps the failure of an entry, exit or transition action.
type ActionError struct {
	Kind  string
	State string
	Err   error
}

func (e *ActionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s action of %q failed", e.Kind, e.State)
	}
	return fmt.Sprintf("%s action of %q failed: %v", e.Kind, e.State, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

func (e *ActionError) Code() ErrorCode { return ErrCodeActionFailed }

func NewActionError(kind, state string, err error) *ActionError {
	return &ActionError{Kind: kind, State: state, Err: err}
}

func IsTransitionError(err error) bool {
	var te *TransitionError
	return errors.As(err, &te)
}

func IsGuardError(err error) bool {
	var ge *GuardError
	return errors.As(err, &ge)
}

func IsMachineError(err error) bool {
	var me *MachineError
	return errors.As(err, &me)
}

// GetErrorCode returns the code of the outermost engine error in err's chain, or ErrCodeNone.
func GetErrorCode(err error) ErrorCode {
	var c coded
	if errors.As(err, &c) {
		return c.Code()
	}
	return ErrCodeNone
}
