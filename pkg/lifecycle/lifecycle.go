// Package lifecycle drives one admitted vehicle through the crossing zone.
//
// Each crossing is an instance of a three-state machine:
//
//	admitted --enter--> crossing --step (progress < N)--> crossing --exit (progress == N)--> exited
//
// A step advances the vehicle's zone progress by one and is followed by a StepDuration pause. When the run context is
// cancelled mid-crossing the remaining steps are applied without pausing, so progress still reaches exactly N before
// the exit releases the slot. Whatever happens, the slot is released before Cross returns.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"

	"github.com/anggasct/crossing/pkg/core"
	"github.com/anggasct/crossing/pkg/eventlog"
	"github.com/anggasct/crossing/pkg/fsm"
	"github.com/anggasct/crossing/pkg/logging"
	"github.com/anggasct/crossing/pkg/metrics"
	"github.com/anggasct/crossing/pkg/zone"
)

const (
	// MachineName names the lifecycle state machine in logs, metrics and diagrams
	MachineName = "lifecycle"

	StateAdmitted = "admitted"
	StateCrossing = "crossing"
	StateExited   = "exited"

	EventEnter = "enter"
	EventStep  = "step"
	EventExit  = "exit"

	slotKey = "slot"
)

// ErrLifecycleFault is returned when the lifecycle machine rejects an event it should have accepted.
var ErrLifecycleFault = errors.New("vehicle lifecycle fault")

// Options configures a Runner
type Options struct {
	// StepDuration is the pause after each progress step
	StepDuration time.Duration
	// Clock times the pauses; the real clock when nil
	Clock     clock.WithTicker
	Logger    logr.Logger
	Sink      eventlog.Sink
	Metrics   *metrics.Metrics
	Observers []fsm.Observer
}

// Runner crosses vehicles. One Runner serves every lifecycle; each call to Cross gets its own machine instance.
type Runner struct {
	stepDuration time.Duration
	clock        clock.WithTicker
	logger       logr.Logger
	sink         eventlog.Sink
	metrics      *metrics.Metrics
	observers    []fsm.Observer
	def          *fsm.Definition

	mu     sync.Mutex
	onExit []func(core.Vehicle)
}

// New creates a Runner
func New(opts Options) (*Runner, error) {
	if opts.StepDuration < 0 {
		return nil, fmt.Errorf("step duration must not be negative, got %s", opts.StepDuration)
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger.GetSink() == nil {
		opts.Logger = logr.Discard()
	}
	if opts.Sink == nil {
		opts.Sink = eventlog.Discard
	}

	r := &Runner{
		stepDuration: opts.StepDuration,
		clock:        opts.Clock,
		logger:       opts.Logger.WithName("lifecycle"),
		sink:         opts.Sink,
		metrics:      opts.Metrics,
		observers:    slices.Clone(opts.Observers),
	}

	def, err := fsm.NewMachine(MachineName).
		State(StateAdmitted).Initial().
		To(StateCrossing).On(EventEnter).
		State(StateCrossing).
		OnEntry(r.announce("ENTERED")).
		ToSelf().On(EventStep).When(canStep).Describe("progress < steps").Do(advance).
		To(StateExited).On(EventExit).When(finished).Describe("progress == steps").Do(release).
		State(StateExited).Final().
		OnEntry(r.announce("EXITED")).
		Build()
	if err != nil {
		return nil, err
	}
	r.def = def
	return r, nil
}

// Definition returns the lifecycle state machine definition
func (r *Runner) Definition() *fsm.Definition {
	return r.def
}

// OnExit registers fn to run after a vehicle has left the zone, on every exit path. fn must not block.
func (r *Runner) OnExit(fn func(core.Vehicle)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onExit = append(r.onExit, fn)
}

// Cross runs the lifecycle of the vehicle holding slot and returns once the slot is released.
func (r *Runner) Cross(ctx context.Context, slot *zone.Slot) (err error) {
	v := slot.Vehicle()
	logger := r.logger.WithValues("vehicle", v.ID.String(), "direction", v.Direction())
	admittedAt := r.clock.Now()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %s panicked: %v", ErrLifecycleFault, v.ID, rec)
		}
		if slot.Release() {
			// Only reachable when the exit transition never ran.
			logger.Error(err, "Slot released without a clean exit")
		}
		r.metrics.RecordExit(v.Direction().String(), r.clock.Since(admittedAt))
		r.notifyExit(v)
	}()

	machine := r.def.CreateInstance()
	for _, obs := range r.observers {
		machine.AddObserver(obs)
	}
	machine.Context().Set(slotKey, slot)
	if err := machine.StartWithContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrLifecycleFault, err)
	}

	if err := r.fire(ctx, machine, EventEnter); err != nil {
		return err
	}
	for slot.Progress() < slot.Steps() {
		if err := r.fire(ctx, machine, EventStep); err != nil {
			return err
		}
		logger.V(logging.TRACE).Info("Progress", "step", slot.Progress(), "of", slot.Steps())
		r.pause(ctx)
	}
	if err := r.fire(ctx, machine, EventExit); err != nil {
		return err
	}

	logger.V(logging.DEBUG).Info("Crossing complete", "cancelled", ctx.Err() != nil)
	return nil
}

func (r *Runner) fire(ctx context.Context, machine *fsm.StateMachine, event string) error {
	result := machine.HandleEventWithContext(ctx, event, nil)
	if !result.Success() {
		return fmt.Errorf("%w: event %q in state %q: %v", ErrLifecycleFault, event, result.PreviousState, result.Error)
	}
	return nil
}

// pause waits one step duration unless ctx is done.
func (r *Runner) pause(ctx context.Context) {
	if ctx.Err() != nil || r.stepDuration == 0 {
		return
	}
	timer := r.clock.NewTimer(r.stepDuration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C():
	}
}

func (r *Runner) notifyExit(v core.Vehicle) {
	r.mu.Lock()
	callbacks := slices.Clone(r.onExit)
	r.mu.Unlock()
	for _, fn := range callbacks {
		fn(v)
	}
}

func (r *Runner) announce(verb string) fsm.ActionFunc {
	return func(ctx fsm.Context) error {
		slot, ok := slotFrom(ctx)
		if !ok {
			return errMissingSlot
		}
		r.sink.Appendf("%s %s construction.", slot.Vehicle().Label(), verb)
		return nil
	}
}

var errMissingSlot = errors.New("no slot bound to lifecycle instance")

func slotFrom(ctx fsm.Context) (*zone.Slot, bool) {
	return fsm.ValueAs[*zone.Slot](ctx, slotKey)
}

func canStep(ctx fsm.Context) bool {
	slot, ok := slotFrom(ctx)
	return ok && slot.Progress() < slot.Steps()
}

func finished(ctx fsm.Context) bool {
	slot, ok := slotFrom(ctx)
	return ok && slot.Progress() == slot.Steps()
}

func advance(ctx fsm.Context) error {
	slot, ok := slotFrom(ctx)
	if !ok {
		return errMissingSlot
	}
	return slot.Advance(slot.Progress() + 1)
}

func release(ctx fsm.Context) error {
	slot, ok := slotFrom(ctx)
	if !ok {
		return errMissingSlot
	}
	slot.Release()
	return nil
}
