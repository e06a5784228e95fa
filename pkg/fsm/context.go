package fsm

import (
	"context"
	"maps"
	"sync"
)

// Context provides access to instance data and transition information during state machine execution. Guards and
// actions receive a Context built for the event being handled; it carries the caller's context.Context so blocking
// work inside an action can observe cancellation.
type Context interface {
	context.Context

	Get(key string) (any, bool)
	Set(key string, value any)
	GetAll() map[string]any

	MachineName() string
	CurrentState() string
	SourceState() string
	TargetState() string

	Event() Event
	EventName() string
	EventData() any
}

// store is the per-instance key/value data shared by every Context of one machine.
type store struct {
	mu   sync.RWMutex
	data map[string]any
}

func newStore() *store {
	return &store{data: make(map[string]any)}
}

func (s *store) get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *store) set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

func (s *store) all() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.data)
}

// machineContext is an immutable view of one step of a machine; only the shared data store is mutable.
type machineContext struct {
	context.Context
	data    *store
	machine string
	current string
	source  string
	target  string
	event   Event
}

// NewSimpleContext creates a detached context for testing guards and actions
func NewSimpleContext() Context {
	return &machineContext{
		Context: context.Background(),
		data:    newStore(),
	}
}

func (c *machineContext) Get(key string) (any, bool) {
	return c.data.get(key)
}

func (c *machineContext) Set(key string, value any) {
	c.data.set(key, value)
}

func (c *machineContext) GetAll() map[string]any {
	return c.data.all()
}

func (c *machineContext) MachineName() string {
	return c.machine
}

func (c *machineContext) CurrentState() string {
	return c.current
}

func (c *machineContext) SourceState() string {
	return c.source
}

func (c *machineContext) TargetState() string {
	return c.target
}

func (c *machineContext) Event() Event {
	return c.event
}

func (c *machineContext) EventName() string {
	if c.event != nil {
		return c.event.Name()
	}
	return ""
}

func (c *machineContext) EventData() any {
	if c.event != nil {
		return c.event.Data()
	}
	return nil
}

// ValueAs returns the instance value stored under key converted to T.
func ValueAs[T any](ctx Context, key string) (T, bool) {
	var zero T
	v, ok := ctx.Get(key)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}
