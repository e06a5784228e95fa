// Package zone implements the one-lane construction zone shared by both directions.
//
// # Admission Rules
//
// A vehicle is admitted only when a slot is free and the zone is either empty or already committed to the vehicle's
// direction. The first occupant commits the zone to its direction; the commitment is cleared only when the last
// occupant leaves. This lock, not the traffic light, is what keeps opposing traffic apart.
//
// # Concurrency
//
// Every operation runs as a single critical section under the zone mutex, so no observer can see a half-applied
// admission or release. Capacity is additionally gated by a counting semaphore: TryAdmit takes a token with a
// non-blocking TryAcquire and Release returns it, so a release always frees exactly the slot it acquired.
package zone

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"k8s.io/utils/clock"

	"github.com/anggasct/crossing/pkg/core"
)

// Occupant is a vehicle inside the zone together with its crossing progress.
type Occupant struct {
	Vehicle   core.Vehicle
	Slot      int
	Progress  int
	EnteredAt time.Time
}

// View is a consistent, read-only copy of the zone state.
type View struct {
	Capacity  int
	Steps     int
	Committed core.Direction
	// Occupants are ordered by slot index.
	Occupants []Occupant
}

// Option configures a Zone
type Option func(*Zone)

// WithClock sets the clock used to stamp entry times.
func WithClock(c clock.PassiveClock) Option {
	return func(z *Zone) {
		z.clock = c
	}
}

// Zone is the capacity-limited crossing.
type Zone struct {
	capacity int
	steps    int
	clock    clock.PassiveClock
	tokens   *semaphore.Weighted

	mu        sync.Mutex
	occupants map[core.VehicleID]*Occupant
	slots     []bool
	held      int
	committed core.Direction
	listeners []func()
}

// New creates an empty zone with capacity slots; each crossing takes steps units of progress.
func New(capacity, steps int, opts ...Option) *Zone {
	if capacity < 1 {
		capacity = 1
	}
	z := &Zone{
		capacity:  capacity,
		steps:     steps,
		clock:     clock.RealClock{},
		tokens:    semaphore.NewWeighted(int64(capacity)),
		occupants: make(map[core.VehicleID]*Occupant, capacity),
		slots:     make([]bool, capacity),
	}
	for _, opt := range opts {
		opt(z)
	}
	return z
}

// Capacity returns the number of slots
func (z *Zone) Capacity() int {
	return z.capacity
}

// Steps returns the number of progress units a crossing takes
func (z *Zone) Steps() int {
	return z.steps
}

// Subscribe registers fn to be called after every admission and release. Callbacks run outside the zone lock and must
// not block.
func (z *Zone) Subscribe(fn func()) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.listeners = append(z.listeners, fn)
}

// TryAdmit places v in a free slot if the capacity and direction rules allow it. It never blocks. On success the
// returned Slot is the caller's lease and must eventually be released.
func (z *Zone) TryAdmit(v core.Vehicle) (*Slot, bool) {
	z.mu.Lock()

	if _, exists := z.occupants[v.ID]; exists || !v.Direction().Valid() {
		z.mu.Unlock()
		return nil, false
	}
	if z.committed != core.NoDirection && z.committed != v.Direction() {
		z.mu.Unlock()
		return nil, false
	}
	if !z.tokens.TryAcquire(1) {
		z.mu.Unlock()
		return nil, false
	}

	idx := slices.Index(z.slots, false)
	if idx < 0 {
		// The semaphore and the slot table disagree; hand the token back and refuse.
		z.tokens.Release(1)
		z.mu.Unlock()
		return nil, false
	}

	z.slots[idx] = true
	z.held++
	z.occupants[v.ID] = &Occupant{
		Vehicle:   v,
		Slot:      idx,
		EnteredAt: z.clock.Now(),
	}
	if z.committed == core.NoDirection {
		z.committed = v.Direction()
	}
	listeners := slices.Clone(z.listeners)
	z.mu.Unlock()

	notify(listeners)
	return &Slot{zone: z, vehicle: v, index: idx}, true
}

// Advance records step as the occupant's progress. Progress is strictly increasing and bounded by Steps.
func (z *Zone) Advance(id core.VehicleID, step int) error {
	z.mu.Lock()
	defer z.mu.Unlock()

	occ, ok := z.occupants[id]
	if !ok {
		return fmt.Errorf("advance %s: %w", id, ErrNotOccupant)
	}
	if step < 1 || step > z.steps {
		return fmt.Errorf("advance %s to %d of %d: %w", id, step, z.steps, ErrProgressOutOfRange)
	}
	if step <= occ.Progress {
		return fmt.Errorf("advance %s from %d to %d: %w", id, occ.Progress, step, ErrProgressRegression)
	}
	occ.Progress = step
	return nil
}

// Progress returns the current progress of an occupant.
func (z *Zone) Progress(id core.VehicleID) (int, bool) {
	z.mu.Lock()
	defer z.mu.Unlock()

	occ, ok := z.occupants[id]
	if !ok {
		return 0, false
	}
	return occ.Progress, true
}

// Release removes the occupant and returns its token. When the last occupant leaves, the committed direction is
// cleared. Releasing a vehicle that is not in the zone is a no-op and returns false.
func (z *Zone) Release(id core.VehicleID) bool {
	z.mu.Lock()

	occ, ok := z.occupants[id]
	if !ok {
		z.mu.Unlock()
		return false
	}
	delete(z.occupants, id)
	z.slots[occ.Slot] = false
	z.held--
	z.tokens.Release(1)
	if len(z.occupants) == 0 {
		z.committed = core.NoDirection
	}
	listeners := slices.Clone(z.listeners)
	z.mu.Unlock()

	notify(listeners)
	return true
}

// Committed returns the direction the zone is locked to, if any.
func (z *Zone) Committed() (core.Direction, bool) {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.committed, z.committed != core.NoDirection
}

// LockedAgainst reports whether occupants from the opposite direction currently block dir.
func (z *Zone) LockedAgainst(dir core.Direction) bool {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.committed != core.NoDirection && z.committed != dir
}

// HasFreeSlot reports whether at least one slot is unoccupied
func (z *Zone) HasFreeSlot() bool {
	z.mu.Lock()
	defer z.mu.Unlock()
	return len(z.occupants) < z.capacity
}

// Len returns the number of occupants
func (z *Zone) Len() int {
	z.mu.Lock()
	defer z.mu.Unlock()
	return len(z.occupants)
}

// Snapshot returns a copy of the zone state taken under the zone lock.
func (z *Zone) Snapshot() View {
	z.mu.Lock()
	defer z.mu.Unlock()

	view := View{
		Capacity:  z.capacity,
		Steps:     z.steps,
		Committed: z.committed,
		Occupants: make([]Occupant, 0, len(z.occupants)),
	}
	for _, occ := range z.occupants {
		view.Occupants = append(view.Occupants, *occ)
	}
	slices.SortFunc(view.Occupants, func(a, b Occupant) int {
		return a.Slot - b.Slot
	})
	return view
}

// Validate checks every zone invariant under the lock. A non-nil result means the locking discipline is broken.
func (z *Zone) Validate() error {
	z.mu.Lock()
	defer z.mu.Unlock()

	n := len(z.occupants)
	if n > z.capacity {
		return NewInvariantError(ErrCodeOverCapacity, "%d occupants in %d slots", n, z.capacity)
	}
	if z.held != n {
		return NewInvariantError(ErrCodeTokenLeak, "%d tokens held for %d occupants", z.held, n)
	}
	if (n == 0) != (z.committed == core.NoDirection) {
		return NewInvariantError(ErrCodeLockMismatch, "%d occupants with committed direction %s", n, z.committed)
	}

	used := 0
	seen := make(map[int]core.VehicleID, n)
	for id, occ := range z.occupants {
		if occ.Vehicle.Direction() != z.committed {
			return NewInvariantError(ErrCodeMixedDirections, "%s inside zone committed to %s", id, z.committed)
		}
		if occ.Slot < 0 || occ.Slot >= z.capacity || !z.slots[occ.Slot] {
			return NewInvariantError(ErrCodeSlotConflict, "%s holds invalid slot %d", id, occ.Slot)
		}
		if other, dup := seen[occ.Slot]; dup {
			return NewInvariantError(ErrCodeSlotConflict, "%s and %s share slot %d", id, other, occ.Slot)
		}
		seen[occ.Slot] = id
		if occ.Progress < 0 || occ.Progress > z.steps {
			return NewInvariantError(ErrCodeBadProgress, "%s at progress %d of %d", id, occ.Progress, z.steps)
		}
	}
	for _, taken := range z.slots {
		if taken {
			used++
		}
	}
	if used != n {
		return NewInvariantError(ErrCodeSlotConflict, "%d slots marked for %d occupants", used, n)
	}
	return nil
}

func notify(listeners []func()) {
	for _, fn := range listeners {
		fn()
	}
}

// Slot is a lease on one zone slot, returned by TryAdmit. Release is idempotent so it can be deferred on every exit
// path of the vehicle lifecycle.
type Slot struct {
	zone    *Zone
	vehicle core.Vehicle
	index   int
	once    sync.Once
}

// Vehicle returns the vehicle holding the slot
func (s *Slot) Vehicle() core.Vehicle {
	return s.vehicle
}

// Index returns the slot position inside the zone
func (s *Slot) Index() int {
	return s.index
}

// Steps returns the progress a crossing must reach
func (s *Slot) Steps() int {
	return s.zone.steps
}

// Advance records progress for the slot's vehicle.
func (s *Slot) Advance(step int) error {
	return s.zone.Advance(s.vehicle.ID, step)
}

// Progress returns the vehicle's current progress.
func (s *Slot) Progress() int {
	p, _ := s.zone.Progress(s.vehicle.ID)
	return p
}

// Release frees the slot. Only the first call has an effect; it reports whether this call did the release.
func (s *Slot) Release() bool {
	released := false
	s.once.Do(func() {
		released = s.zone.Release(s.vehicle.ID)
	})
	return released
}
