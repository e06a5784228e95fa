package crossing

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/anggasct/crossing/pkg/arrival"
	"github.com/anggasct/crossing/pkg/core"
	"github.com/anggasct/crossing/pkg/dispatch"
	"github.com/anggasct/crossing/pkg/eventlog"
	"github.com/anggasct/crossing/pkg/fsm"
	"github.com/anggasct/crossing/pkg/lifecycle"
	"github.com/anggasct/crossing/pkg/light"
	"github.com/anggasct/crossing/pkg/logging"
	"github.com/anggasct/crossing/pkg/metrics"
	"github.com/anggasct/crossing/pkg/observers"
	"github.com/anggasct/crossing/pkg/queue"
	"github.com/anggasct/crossing/pkg/zone"
)

// Option configures the collaborators of a Simulation
type Option func(*Simulation)

// WithClock sets the clock behind every timer and timestamp
func WithClock(c clock.WithTicker) Option {
	return func(s *Simulation) {
		s.clock = c
	}
}

// WithLogger sets the structured logger
func WithLogger(logger logr.Logger) Option {
	return func(s *Simulation) {
		s.logger = logger
	}
}

// WithMetrics sets the collectors the simulation reports to
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Simulation) {
		s.metrics = m
	}
}

// WithSink adds a destination that receives every event line next to the recent-events ring.
func WithSink(sink eventlog.Sink) Option {
	return func(s *Simulation) {
		s.extraSinks = append(s.extraSinks, sink)
	}
}

// WithRunID overrides the generated run identifier
func WithRunID(id uuid.UUID) Option {
	return func(s *Simulation) {
		s.runID = id
	}
}

// Simulation owns the queues, the zone and every goroutine that acts on them.
type Simulation struct {
	cfg        Config
	runID      uuid.UUID
	clock      clock.WithTicker
	logger     logr.Logger
	metrics    *metrics.Metrics
	extraSinks []eventlog.Sink

	ring       *eventlog.Ring
	sink       eventlog.Sink
	seq        *core.Sequence
	queues     *queue.Set
	zone       *zone.Zone
	light      *light.Controller
	runner     *lifecycle.Runner
	dispatcher *dispatch.Dispatcher
	generator  *arrival.Generator

	started atomic.Bool
	ticks   atomic.Int64
	exited  atomic.Int64
}

// New validates cfg and wires a simulation that is ready to Run.
func New(cfg Config, opts ...Option) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Simulation{
		cfg:    cfg,
		runID:  uuid.New(),
		clock:  clock.RealClock{},
		logger: logr.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger.GetSink() == nil {
		s.logger = logr.Discard()
	}
	s.logger = s.logger.WithValues("runID", s.runID.String())

	s.ring = eventlog.NewRing(cfg.LogCapacity, eventlog.WithClock(s.clock))
	s.sink = s.ring
	if len(s.extraSinks) > 0 {
		s.sink = eventlog.Tee(append([]eventlog.Sink{s.ring}, s.extraSinks...)...)
	}
	s.seq = core.NewSequence()
	s.queues = queue.NewSet(cfg.QueueCapacity)
	s.zone = zone.New(cfg.ZoneCapacity, cfg.CrossingSteps, zone.WithClock(s.clock))

	fsmObservers := []fsm.Observer{
		observers.NewLoggingObserver(s.logger),
		observers.NewMetricsObserver(s.metrics),
	}

	var err error
	s.light, err = light.New(light.Options{
		Initial:   cfg.InitialDirection,
		Period:    cfg.LightPeriod(),
		Clock:     s.clock,
		Logger:    s.logger,
		Sink:      s.sink,
		Metrics:   s.metrics,
		Observers: fsmObservers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create light controller: %w", err)
	}

	s.runner, err = lifecycle.New(lifecycle.Options{
		StepDuration: cfg.StepDuration,
		Clock:        s.clock,
		Logger:       s.logger,
		Sink:         s.sink,
		Metrics:      s.metrics,
		Observers:    fsmObservers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create lifecycle runner: %w", err)
	}

	s.dispatcher, err = dispatch.New(dispatch.Options{
		Queues:       s.queues,
		Zone:         s.zone,
		Light:        s.light,
		Crosser:      s.runner,
		PollInterval: cfg.PollInterval,
		Clock:        s.clock,
		Logger:       s.logger,
		Metrics:      s.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}

	s.generator, err = arrival.New(arrival.Options{
		Queues:               s.queues,
		Sequence:             s.seq,
		MinInterval:          cfg.MinArrivalInterval,
		MaxInterval:          cfg.MaxArrivalInterval,
		EmergencyProbability: cfg.EmergencyProbability,
		Seed:                 cfg.Seed,
		Clock:                s.clock,
		Logger:               s.logger,
		Sink:                 s.sink,
		Metrics:              s.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create arrival generator: %w", err)
	}

	// A release or a light switch can unblock an admission; wake the dispatcher instead of waiting for its poll.
	s.zone.Subscribe(s.dispatcher.Notify)
	s.light.OnSwitch(func(core.Direction) { s.dispatcher.Notify() })
	s.runner.OnExit(func(core.Vehicle) { s.exited.Add(1) })

	return s, nil
}

// RunID identifies this run in logs and snapshots
func (s *Simulation) RunID() uuid.UUID {
	return s.runID
}

// Config returns the validated configuration
func (s *Simulation) Config() Config {
	return s.cfg
}

// Seed returns the arrival seed in use, so a run can be reproduced
func (s *Simulation) Seed() uint64 {
	return s.generator.Seed()
}

func (s *Simulation) Queues() *queue.Set {
	return s.queues
}

func (s *Simulation) Zone() *zone.Zone {
	return s.zone
}

func (s *Simulation) Light() *light.Controller {
	return s.light
}

func (s *Simulation) Dispatcher() *dispatch.Dispatcher {
	return s.dispatcher
}

func (s *Simulation) Generator() *arrival.Generator {
	return s.generator
}

// Definitions returns the state machine definitions driving the simulation
func (s *Simulation) Definitions() []*fsm.Definition {
	return []*fsm.Definition{s.light.Definition(), s.runner.Definition()}
}

// Run preloads the queues and runs the light, dispatcher, generator and tick counter until ctx is cancelled or one of
// them fails. It returns only after every admitted vehicle has left the zone.
func (s *Simulation) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	s.generator.Preload(s.cfg.PreloadPerDirection)
	s.sink.Appendf("Simulation started.")
	s.logger.V(logging.DEFAULT).Info("Simulation started",
		"seed", s.generator.Seed(),
		"zoneCapacity", s.cfg.ZoneCapacity,
		"lightPeriod", s.cfg.LightPeriod(),
		"privileged", s.light.Privileged())
	s.updateGauges()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.light.Run(gctx) })
	g.Go(func() error { return s.dispatcher.Run(gctx) })
	g.Go(func() error { return s.generator.Run(gctx) })
	g.Go(func() error { return s.tick(gctx) })
	err := g.Wait()

	s.updateGauges()
	s.sink.Appendf("Simulation ended.")
	s.logger.V(logging.DEFAULT).Info("Simulation ended",
		"ticks", s.ticks.Load(),
		"arrived", s.generator.Arrived(),
		"dropped", s.generator.Dropped(),
		"admitted", s.dispatcher.Admitted(),
		"exited", s.exited.Load())
	return err
}

func (s *Simulation) tick(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			s.metrics.SetElapsedTicks(s.ticks.Add(1))
			s.updateGauges()
		}
	}
}

func (s *Simulation) updateGauges() {
	for _, dir := range core.Directions {
		s.metrics.SetQueueLength(dir.String(), s.queues.Get(dir).Len())
	}
	s.metrics.SetZoneOccupancy(s.zone.Len())
}

// Stats are the running totals of a simulation
type Stats struct {
	Arrived  int64
	Dropped  int64
	Admitted int64
	Reverted int64
	Exited   int64
}

// Stats returns the running totals
func (s *Simulation) Stats() Stats {
	return Stats{
		Arrived:  s.generator.Arrived(),
		Dropped:  s.generator.Dropped(),
		Admitted: s.dispatcher.Admitted(),
		Reverted: s.dispatcher.Reverted(),
		Exited:   s.exited.Load(),
	}
}

// Snapshot is a point-in-time copy of everything the dashboard shows.
type Snapshot struct {
	RunID      string
	Privileged core.Direction
	// Queues holds the waiting vehicles per direction, head first
	Queues map[core.Direction][]core.Vehicle
	Zone   zone.View
	Ticks  int64
	// Events are the recent event lines, oldest first
	Events []string
	Stats  Stats
}

// Snapshot copies the current state. The queues and the zone are read together while the dispatcher holds no
// vehicle in transit, so every waiting or admitted vehicle appears exactly once. Ticks, events and stats are read
// separately and may be a few microseconds apart from the rest.
func (s *Simulation) Snapshot() Snapshot {
	snap := Snapshot{
		RunID:      s.runID.String(),
		Privileged: s.light.Privileged(),
		Queues:     make(map[core.Direction][]core.Vehicle, len(core.Directions)),
		Ticks:      s.ticks.Load(),
		Events:     s.ring.Lines(),
		Stats:      s.Stats(),
	}
	s.dispatcher.Hold(func() {
		for _, dir := range core.Directions {
			snap.Queues[dir] = s.queues.Get(dir).Snapshot()
		}
		snap.Zone = s.zone.Snapshot()
	})
	return snap
}
