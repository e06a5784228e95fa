// Package light alternates right-of-way between the two directions.
//
// The light is a two-state machine (east, west) with a single switch event. It only decides which queue the
// dispatcher serves; it never evicts vehicles from the zone, so a newly privileged direction may wait while the other
// side drains.
package light

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"

	"github.com/anggasct/crossing/pkg/core"
	"github.com/anggasct/crossing/pkg/eventlog"
	"github.com/anggasct/crossing/pkg/fsm"
	"github.com/anggasct/crossing/pkg/logging"
	"github.com/anggasct/crossing/pkg/metrics"
)

const (
	// MachineName names the light state machine in logs, metrics and diagrams
	MachineName = "light"
	// EventSwitch alternates the privileged direction
	EventSwitch = "switch"
)

// StateID returns the machine state for a privileged direction
func StateID(dir core.Direction) string {
	return strings.ToLower(dir.String())
}

// Options configures a Controller. Zero values select the defaults noted per field.
type Options struct {
	// Initial privileged direction; EAST when unset
	Initial core.Direction
	// Period between switches
	Period time.Duration
	// Clock drives the switch ticker; the real clock when nil
	Clock clock.WithTicker
	Logger  logr.Logger
	Sink    eventlog.Sink
	Metrics *metrics.Metrics
	// Observers are attached to the light state machine
	Observers []fsm.Observer
}

// Controller owns the privileged direction
type Controller struct {
	period  time.Duration
	clock   clock.WithTicker
	logger  logr.Logger
	sink    eventlog.Sink
	metrics *metrics.Metrics

	machine    *fsm.StateMachine
	privileged atomic.Int32

	mu        sync.Mutex
	callbacks []func(core.Direction)
}

// New creates a started controller
func New(opts Options) (*Controller, error) {
	if opts.Initial == core.NoDirection {
		opts.Initial = core.East
	}
	if !opts.Initial.Valid() {
		return nil, fmt.Errorf("invalid initial direction %d", opts.Initial)
	}
	if opts.Period <= 0 {
		return nil, fmt.Errorf("light period must be positive, got %s", opts.Period)
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

	c := &Controller{
		period:  opts.Period,
		clock:   opts.Clock,
		logger:  opts.Logger.WithName("light"),
		sink:    opts.Sink,
		metrics: opts.Metrics,
	}
	c.privileged.Store(int32(opts.Initial))

	def, err := c.newDefinition(opts.Initial)
	if err != nil {
		return nil, err
	}
	c.machine = def.CreateInstance()
	for _, obs := range opts.Observers {
		c.machine.AddObserver(obs)
	}
	if err := c.machine.Start(); err != nil {
		return nil, fmt.Errorf("failed to start light machine: %w", err)
	}
	return c, nil
}

func (c *Controller) newDefinition(initial core.Direction) (*fsm.Definition, error) {
	east, west := StateID(core.East), StateID(core.West)
	mb := fsm.NewMachine(MachineName)

	eastState := mb.State(east)
	westState := mb.State(west)
	if initial == core.East {
		eastState.Initial()
	} else {
		westState.Initial()
	}
	eastState.To(west).On(EventSwitch).Do(c.grant(core.West))
	westState.To(east).On(EventSwitch).Do(c.grant(core.East))
	return mb.Build()
}

// grant publishes dir as privileged. It runs as the switch transition action.
func (c *Controller) grant(dir core.Direction) fsm.ActionFunc {
	return func(ctx fsm.Context) error {
		c.privileged.Store(int32(dir))
		c.sink.Appendf("Light switched to %s", dir)
		c.metrics.RecordLightSwitch(dir.String())
		c.logger.V(logging.VERBOSE).Info("Light switched", "direction", dir)
		return nil
	}
}

// Definition returns the light state machine definition
func (c *Controller) Definition() *fsm.Definition {
	return c.machine.Definition()
}

// Privileged returns the direction currently granted right-of-way. It is lock-free and may be stale by the time the
// caller acts on it; the zone lock, not the light, keeps opposing traffic apart.
func (c *Controller) Privileged() core.Direction {
	return core.Direction(c.privileged.Load())
}

// OnSwitch registers fn to run after every switch with the new privileged direction. fn must not block.
func (c *Controller) OnSwitch(fn func(core.Direction)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks = append(c.callbacks, fn)
}

// Switch alternates the privileged direction immediately and returns the new one.
func (c *Controller) Switch() (core.Direction, error) {
	result := c.machine.HandleEvent(EventSwitch, nil)
	if !result.Success() {
		return c.Privileged(), fmt.Errorf("light switch rejected in state %s: %w", result.PreviousState, result.Error)
	}
	dir := c.Privileged()

	c.mu.Lock()
	callbacks := append([]func(core.Direction){}, c.callbacks...)
	c.mu.Unlock()
	for _, fn := range callbacks {
		fn(dir)
	}
	return dir, nil
}

// Run switches the light every period until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	ticker := c.clock.NewTicker(c.period)
	defer ticker.Stop()

	c.logger.V(logging.DEFAULT).Info("Light controller started", "period", c.period, "privileged", c.Privileged())
	for {
		select {
		case <-ctx.Done():
			c.logger.V(logging.DEFAULT).Info("Light controller stopped")
			return nil
		case <-ticker.C():
			if _, err := c.Switch(); err != nil {
				return err
			}
		}
	}
}
