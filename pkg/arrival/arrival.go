// Package arrival generates vehicles and feeds them into the direction queues.
package arrival

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"

	"github.com/anggasct/crossing/pkg/core"
	"github.com/anggasct/crossing/pkg/eventlog"
	"github.com/anggasct/crossing/pkg/logging"
	"github.com/anggasct/crossing/pkg/metrics"
	"github.com/anggasct/crossing/pkg/queue"
)

// Options configures a Generator. Queues and Sequence are required.
type Options struct {
	Queues   *queue.Set
	Sequence *core.Sequence
	// MinInterval and MaxInterval bound the uniformly random pause between arrivals
	MinInterval time.Duration
	MaxInterval time.Duration
	// EmergencyProbability is the chance that an arrival is an emergency vehicle
	EmergencyProbability float64
	// Seed makes the arrival pattern reproducible; zero picks a time-based seed
	Seed    uint64
	Clock   clock.WithTicker
	Logger  logr.Logger
	Sink    eventlog.Sink
	Metrics *metrics.Metrics
}

// Generator produces random arrivals
type Generator struct {
	queues    *queue.Set
	seq       *core.Sequence
	min, max  time.Duration
	emergency float64
	seed      uint64
	clock     clock.WithTicker
	logger    logr.Logger
	sink      eventlog.Sink
	metrics   *metrics.Metrics

	mu  sync.Mutex
	rng *rand.Rand

	arrived atomic.Int64
	dropped atomic.Int64
}

// New creates a Generator
func New(opts Options) (*Generator, error) {
	switch {
	case opts.Queues == nil:
		return nil, fmt.Errorf("generator requires queues")
	case opts.Sequence == nil:
		return nil, fmt.Errorf("generator requires a sequence")
	case opts.MinInterval <= 0:
		return nil, fmt.Errorf("minimum arrival interval must be positive, got %s", opts.MinInterval)
	case opts.MaxInterval < opts.MinInterval:
		return nil, fmt.Errorf("maximum arrival interval %s is below the minimum %s", opts.MaxInterval, opts.MinInterval)
	case opts.EmergencyProbability < 0 || opts.EmergencyProbability > 1:
		return nil, fmt.Errorf("emergency probability must be within [0, 1], got %v", opts.EmergencyProbability)
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
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	return &Generator{
		queues:    opts.Queues,
		seq:       opts.Sequence,
		min:       opts.MinInterval,
		max:       opts.MaxInterval,
		emergency: opts.EmergencyProbability,
		seed:      seed,
		clock:     opts.Clock,
		logger:    opts.Logger.WithName("arrival"),
		sink:      opts.Sink,
		metrics:   opts.Metrics,
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}, nil
}

// Seed returns the seed in use, so a run can be reproduced
func (g *Generator) Seed() uint64 {
	return g.seed
}

// Arrive creates one random vehicle and enqueues it. It reports the vehicle and whether it was queued.
func (g *Generator) Arrive() (core.Vehicle, bool) {
	g.mu.Lock()
	dir := core.Directions[g.rng.IntN(len(core.Directions))]
	class := core.Normal
	if g.rng.Float64() < g.emergency {
		class = core.Emergency
	}
	g.mu.Unlock()

	return g.Add(dir, class)
}

// Add queues one vehicle of the given direction and class as a regular arrival.
func (g *Generator) Add(dir core.Direction, class core.Class) (core.Vehicle, bool) {
	v := g.seq.NewVehicle(dir, class, g.clock.Now())
	return v, g.admit(v, "New")
}

// Preload queues n normal vehicles per direction, EAST first.
func (g *Generator) Preload(n int) {
	for _, dir := range core.Directions {
		for i := 0; i < n; i++ {
			g.admit(g.seq.NewVehicle(dir, core.Normal, g.clock.Now()), "Preloaded")
		}
	}
}

func (g *Generator) admit(v core.Vehicle, prefix string) bool {
	queued := g.queues.Enqueue(v)
	g.arrived.Add(1)
	g.metrics.RecordArrival(v.Direction().String(), v.Class.String(), queued)

	if !queued {
		g.dropped.Add(1)
		g.sink.Appendf("%s %s %s dropped, %s queue full.", prefix, v.Kind(), v.ID, v.Direction())
		g.logger.V(logging.VERBOSE).Info("Queue full, arrival dropped", "vehicle", v.ID.String())
		return false
	}
	g.sink.Appendf("%s %s %s queued.", prefix, v.Kind(), v.ID)
	g.logger.V(logging.DEBUG).Info("Vehicle queued", "vehicle", v.ID.String(), "class", v.Class)
	return true
}

// Interval draws the next pause, uniform over [MinInterval, MaxInterval].
func (g *Generator) Interval() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	// max-min never exceeds MaxInt64, so span+1 fits in a uint64 and the draw converts back without overflow.
	span := uint64(g.max - g.min)
	return g.min + time.Duration(g.rng.Uint64N(span+1))
}

// Arrived returns how many vehicles were generated, queued or not
func (g *Generator) Arrived() int64 {
	return g.arrived.Load()
}

// Dropped returns how many arrivals were shed because their queue was full
func (g *Generator) Dropped() int64 {
	return g.dropped.Load()
}

// Run generates arrivals until ctx is cancelled.
func (g *Generator) Run(ctx context.Context) error {
	g.logger.V(logging.DEFAULT).Info("Arrival generator started", "seed", g.seed)
	for {
		g.Arrive()

		timer := g.clock.NewTimer(g.Interval())
		select {
		case <-ctx.Done():
			timer.Stop()
			g.logger.V(logging.DEFAULT).Info("Arrival generator stopped", "arrived", g.Arrived(), "dropped", g.Dropped())
			return nil
		case <-timer.C():
		}
	}
}
