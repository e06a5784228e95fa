package fsm

import (
	"fmt"
	"slices"
	"sync"
)

// Observer represents an entity that observes state machine lifecycle
type Observer interface {
	// OnTransition is called when a state transition occurs
	OnTransition(from string, to string, event Event, ctx Context)

	// OnStateEnter is called when entering a new state
	OnStateEnter(state string, ctx Context)
}

// ExtendedObserver provides additional optional observation methods
type ExtendedObserver interface {
	Observer

	// OnStateExit is called when exiting a state
	OnStateExit(state string, ctx Context)

	// OnGuardEvaluation is called when a guard condition is evaluated
	OnGuardEvaluation(from string, to string, event Event, result bool, ctx Context)

	// OnEventRejected is called when an event is rejected (no valid transition)
	OnEventRejected(event Event, reason string, ctx Context)

	// OnError is called when an error occurs during processing
	OnError(err error, ctx Context)

	// OnMachineStarted is called when the state machine starts
	OnMachineStarted(ctx Context)

	// OnMachineStopped is called when the state machine stops
	OnMachineStopped(ctx Context)
}

// BaseObserver provides a default implementation with no-op methods. Embed it to implement only the callbacks you
// need.
type BaseObserver struct{}

func (o *BaseObserver) OnTransition(from string, to string, event Event, ctx Context) {}

func (o *BaseObserver) OnStateEnter(state string, ctx Context) {}

func (o *BaseObserver) OnStateExit(state string, ctx Context) {}

func (o *BaseObserver) OnGuardEvaluation(from string, to string, event Event, result bool, ctx Context) {}

func (o *BaseObserver) OnEventRejected(event Event, reason string, ctx Context) {}

func (o *BaseObserver) OnError(err error, ctx Context) {}

func (o *BaseObserver) OnMachineStarted(ctx Context) {}

func (o *BaseObserver) OnMachineStopped(ctx Context) {}

// ObserverManager manages a collection of observers. A panicking observer is isolated: the panic is reported to
// extended observers through OnError and never reaches the machine.
type ObserverManager struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewObserverManager creates a new observer manager
func NewObserverManager() *ObserverManager {
	return &ObserverManager{}
}

// AddObserver adds an observer to the manager
func (om *ObserverManager) AddObserver(observer Observer) {
	om.mu.Lock()
	defer om.mu.Unlock()
	om.observers = append(om.observers, observer)
}

// RemoveObserver removes an observer from the manager
func (om *ObserverManager) RemoveObserver(observer Observer) {
	om.mu.Lock()
	defer om.mu.Unlock()
	if i := slices.Index(om.observers, observer); i >= 0 {
		om.observers = slices.Delete(om.observers, i, i+1)
	}
}

// Len returns the number of registered observers
func (om *ObserverManager) Len() int {
	om.mu.RLock()
	defer om.mu.RUnlock()
	return len(om.observers)
}

func (om *ObserverManager) snapshot() []Observer {
	om.mu.RLock()
	defer om.mu.RUnlock()
	return slices.Clone(om.observers)
}

func (om *ObserverManager) each(callback string, ctx Context, fn func(Observer)) {
	for _, observer := range om.snapshot() {
		func() {
			defer func() {
				if r := recover(); r != nil {
					if extObs, ok := observer.(ExtendedObserver); ok {
						func() {
							defer func() { _ = recover() }()
							extObs.OnError(fmt.Errorf("observer panic in %s: %v", callback, r), ctx)
						}()
					}
				}
			}()
			fn(observer)
		}()
	}
}

func (om *ObserverManager) eachExtended(callback string, ctx Context, fn func(ExtendedObserver)) {
	om.each(callback, ctx, func(o Observer) {
		if extObs, ok := o.(ExtendedObserver); ok {
			fn(extObs)
		}
	})
}

// NotifyTransition notifies all observers of a state transition
func (om *ObserverManager) NotifyTransition(from string, to string, event Event, ctx Context) {
	om.each("OnTransition", ctx, func(o Observer) {
		o.OnTransition(from, to, event, ctx)
	})
}

// NotifyStateEnter notifies all observers of state entry
func (om *ObserverManager) NotifyStateEnter(state string, ctx Context) {
	om.each("OnStateEnter", ctx, func(o Observer) {
		o.OnStateEnter(state, ctx)
	})
}

// NotifyStateExit notifies extended observers of state exit
func (om *ObserverManager) NotifyStateExit(state string, ctx Context) {
	om.eachExtended("OnStateExit", ctx, func(o ExtendedObserver) {
		o.OnStateExit(state, ctx)
	})
}

// NotifyGuardEvaluation notifies extended observers of guard evaluation
func (om *ObserverManager) NotifyGuardEvaluation(from string, to string, event Event, result bool, ctx Context) {
	om.eachExtended("OnGuardEvaluation", ctx, func(o ExtendedObserver) {
		o.OnGuardEvaluation(from, to, event, result, ctx)
	})
}

// NotifyEventRejected notifies extended observers of event rejection
func (om *ObserverManager) NotifyEventRejected(event Event, reason string, ctx Context) {
	om.eachExtended("OnEventRejected", ctx, func(o ExtendedObserver) {
		o.OnEventRejected(event, reason, ctx)
	})
}

// NotifyError notifies extended observers of errors
func (om *ObserverManager) NotifyError(err error, ctx Context) {
	for _, observer := range om.snapshot() {
		if extObs, ok := observer.(ExtendedObserver); ok {
			func() {
				defer func() { _ = recover() }()
				extObs.OnError(err, ctx)
			}()
		}
	}
}

// NotifyMachineStarted notifies extended observers that the machine has started
func (om *ObserverManager) NotifyMachineStarted(ctx Context) {
	om.eachExtended("OnMachineStarted", ctx, func(o ExtendedObserver) {
		o.OnMachineStarted(ctx)
	})
}

// NotifyMachineStopped notifies extended observers that the machine has stopped
func (om *ObserverManager) NotifyMachineStopped(ctx Context) {
	om.eachExtended("OnMachineStopped", ctx, func(o ExtendedObserver) {
		o.OnMachineStopped(ctx)
	})
}
