package fsm

import (
	"testing"
)

type panickingObserver struct {
	BaseObserver
}

func (o *panickingObserver) OnTransition(from string, to string, event Event, ctx Context) {
	panic("observer failure")
}

func TestObserverManager_PanicIsolated(t *testing.T) {
	machine := newDoorDefinition(t).CreateInstance()
	recorder := newRecordingObserver()
	machine.AddObserver(&panickingObserver{})
	machine.AddObserver(recorder)
	_ = machine.Start()

	result := machine.HandleEvent("open", nil)

	assertProcessed(t, result, true)
	assertState(t, machine, "open")
	if len(recorder.Transitions) != 1 {
		t.Errorf("Observers after a panicking one must still be notified, got %d", len(recorder.Transitions))
	}
}

func TestObserverManager_AddRemove(t *testing.T) {
	om := NewObserverManager()
	first := newRecordingObserver()
	second := newRecordingObserver()

	om.AddObserver(first)
	om.AddObserver(second)
	if om.Len() != 2 {
		t.Fatalf("Expected 2 observers, got %d", om.Len())
	}

	om.RemoveObserver(first)
	om.NotifyStateEnter("x", NewSimpleContext())

	if len(first.StateEnters) != 0 || len(second.StateEnters) != 1 {
		t.Errorf("Removed observer must not be notified: first=%d second=%d",
			len(first.StateEnters), len(second.StateEnters))
	}
}

func TestObserverManager_BaseObserverOnlyGetsRequiredCallbacks(t *testing.T) {
	om := NewObserverManager()
	om.AddObserver(&BaseObserver{})

	ctx := NewSimpleContext()
	om.NotifyTransition("a", "b", NewEvent("e", nil), ctx)
	om.NotifyStateExit("a", ctx)
	om.NotifyError(nil, ctx)
}
