package fsm

import (
	"time"
)

// Event represents a trigger for transitions in the state machine
type Event interface {
	Name() string
	Data() any
	Timestamp() time.Time
}

type baseEvent struct {
	name      string
	data      any
	timestamp time.Time
}

// NewEvent creates a new event stamped with the current time
func NewEvent(name string, data any) Event {
	return &baseEvent{
		name:      name,
		data:      data,
		timestamp: time.Now(),
	}
}

func (e *baseEvent) Name() string {
	return e.name
}

func (e *baseEvent) Data() any {
	return e.data
}

func (e *baseEvent) Timestamp() time.Time {
	return e.timestamp
}

// EventResult represents the result of processing an event
type EventResult struct {
	Processed       bool
	StateChanged    bool
	PreviousState   string
	CurrentState    string
	Error           error
	RejectionReason string
}

// NewEventResult creates a new event result
func NewEventResult(processed, stateChanged bool, prevState, currentState string) *EventResult {
	return &EventResult{
		Processed:     processed,
		StateChanged:  stateChanged,
		PreviousState: prevState,
		CurrentState:  currentState,
	}
}

// WithError adds an error to the event result
func (r *EventResult) WithError(err error) *EventResult {
	r.Error = err
	return r
}

// WithRejection marks the event as not processed
func (r *EventResult) WithRejection(reason string) *EventResult {
	r.RejectionReason = reason
	r.Processed = false
	return r
}

// Success returns true if the event was processed successfully
func (r *EventResult) Success() bool {
	return r.Processed && r.Error == nil
}
