// Package dispatch moves vehicles from the privileged queue into the crossing zone.
//
// The Dispatcher runs admission cycles on a pacing ticker and whenever it is notified (a vehicle left the zone or the
// light switched). New arrivals are picked up by the next poll. A cycle admits at most one vehicle; after a successful
// admission another cycle runs straight away so a second free slot is filled without waiting for the next tick.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"

	"github.com/anggasct/crossing/pkg/core"
	"github.com/anggasct/crossing/pkg/logging"
	"github.com/anggasct/crossing/pkg/metrics"
	"github.com/anggasct/crossing/pkg/queue"
	"github.com/anggasct/crossing/pkg/zone"
)

// Crosser runs the crossing of an admitted vehicle. Cross must release the slot before returning.
type Crosser interface {
	Cross(ctx context.Context, slot *zone.Slot) error
}

// PrivilegeSource reports the direction currently granted right-of-way
type PrivilegeSource interface {
	Privileged() core.Direction
}

// Options configures a Dispatcher. Queues, Zone, Light and Crosser are required.
type Options struct {
	Queues  *queue.Set
	Zone    *zone.Zone
	Light   PrivilegeSource
	Crosser Crosser
	// PollInterval paces admission cycles between notifications
	PollInterval time.Duration
	// Clock drives the pacing ticker; the real clock when nil
	Clock   clock.WithTicker
	Logger  logr.Logger
	Metrics *metrics.Metrics
}

// Dispatcher admits vehicles and owns the goroutines of their lifecycles
type Dispatcher struct {
	queues  *queue.Set
	zone    *zone.Zone
	light   PrivilegeSource
	crosser Crosser
	poll    time.Duration
	clock   clock.WithTicker
	logger  logr.Logger
	metrics *metrics.Metrics

	wake chan struct{}
	// transfer is held while a vehicle is between its queue and the zone
	transfer sync.Mutex
	inflight sync.WaitGroup
	active   atomic.Int32
	admitted atomic.Int64
	reverted atomic.Int64
}

// New creates a Dispatcher
func New(opts Options) (*Dispatcher, error) {
	switch {
	case opts.Queues == nil:
		return nil, fmt.Errorf("dispatcher requires queues")
	case opts.Zone == nil:
		return nil, fmt.Errorf("dispatcher requires a zone")
	case opts.Light == nil:
		return nil, fmt.Errorf("dispatcher requires a light")
	case opts.Crosser == nil:
		return nil, fmt.Errorf("dispatcher requires a crosser")
	case opts.PollInterval <= 0:
		return nil, fmt.Errorf("poll interval must be positive, got %s", opts.PollInterval)
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger.GetSink() == nil {
		opts.Logger = logr.Discard()
	}

	return &Dispatcher{
		queues:  opts.Queues,
		zone:    opts.Zone,
		light:   opts.Light,
		crosser: opts.Crosser,
		poll:    opts.PollInterval,
		clock:   opts.Clock,
		logger:  opts.Logger.WithName("dispatcher"),
		metrics: opts.Metrics,
		wake:    make(chan struct{}, 1),
	}, nil
}

// Notify requests an admission cycle. It never blocks; notifications arriving while one is pending are coalesced.
func (d *Dispatcher) Notify() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run dispatches until ctx is cancelled, then waits for every lifecycle it launched to finish.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := d.clock.NewTicker(d.poll)
	defer ticker.Stop()
	defer d.inflight.Wait()

	d.logger.V(logging.DEFAULT).Info("Dispatcher started", "pollInterval", d.poll)
	for {
		for ctx.Err() == nil && d.Cycle(ctx) {
			// Admitted one; try the next free slot right away.
		}

		select {
		case <-ctx.Done():
			d.logger.V(logging.DEFAULT).Info("Dispatcher stopping, draining lifecycles", "active", d.Active())
			return nil
		case <-ticker.C():
		case <-d.wake:
		}
	}
}

// Cycle runs one admission attempt and reports whether a vehicle was admitted. The admitted vehicle's lifecycle is
// started on its own goroutine with ctx.
func (d *Dispatcher) Cycle(ctx context.Context) bool {
	d.transfer.Lock()
	defer d.transfer.Unlock()

	dir := d.light.Privileged()
	q := d.queues.Get(dir)
	if q == nil || q.Len() == 0 {
		return false
	}
	if d.zone.LockedAgainst(dir) {
		d.logger.V(logging.TRACE).Info("Zone locked against privileged direction", "direction", dir)
		return false
	}
	if !d.zone.HasFreeSlot() {
		return false
	}

	v, ok := q.SelectAndRemove()
	if !ok {
		return false
	}
	slot, ok := d.zone.TryAdmit(v)
	if !ok {
		// The zone changed between the checks and the admission; the vehicle goes back to the head of its queue.
		q.PushFront(v)
		d.reverted.Add(1)
		d.metrics.RecordRevert(dir.String())
		d.logger.V(logging.VERBOSE).Info("Admission failed, vehicle returned to queue", "vehicle", v.ID.String())
		return false
	}

	d.admitted.Add(1)
	d.metrics.RecordAdmission(dir.String(), v.Class.String(), d.clock.Since(v.ArrivedAt))
	d.logger.V(logging.VERBOSE).Info("Vehicle admitted", "vehicle", v.ID.String(), "class", v.Class, "slot", slot.Index())

	d.active.Add(1)
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		defer d.active.Add(-1)
		if err := d.crosser.Cross(ctx, slot); err != nil {
			d.logger.Error(err, "Vehicle lifecycle failed", "vehicle", v.ID.String())
		}
	}()
	return true
}

// Hold runs fn while no vehicle is in transit, so reads of the queues and the zone made inside fn see every waiting
// or admitted vehicle exactly once. fn must not call Cycle.
func (d *Dispatcher) Hold(fn func()) {
	d.transfer.Lock()
	defer d.transfer.Unlock()
	fn()
}

// Active returns the number of lifecycles still running
func (d *Dispatcher) Active() int {
	return int(d.active.Load())
}

// Admitted returns the number of vehicles admitted so far
func (d *Dispatcher) Admitted() int64 {
	return d.admitted.Load()
}

// Reverted returns the number of failed admissions
func (d *Dispatcher) Reverted() int64 {
	return d.reverted.Load()
}

// Wait blocks until every launched lifecycle has finished
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}
