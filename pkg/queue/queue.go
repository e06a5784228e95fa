// Package queue provides the bounded, concurrent-safe waiting lines that hold vehicles before they are admitted to
// the crossing. There is one queue per direction.
//
// Vehicles are kept in arrival order. Selection is priority-aware: the first emergency vehicle in the line is taken
// ahead of any normal vehicle, otherwise the head is taken. Priority is evaluated at selection time only, so insertion
// order is never disturbed and equal-class vehicles stay FIFO.
package queue

import (
	"slices"
	"sync"

	"github.com/anggasct/crossing/pkg/core"
)

// Queue is a bounded, slice-backed deque of vehicles for one direction.
// All methods are safe for concurrent use.
type Queue struct {
	dir      core.Direction
	capacity int

	mu    sync.Mutex
	items []core.Vehicle
}

// New creates an empty queue. A non-positive capacity is clamped to 1; config validation rejects it long before this
// point.
func New(dir core.Direction, capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		dir:      dir,
		capacity: capacity,
		items:    make([]core.Vehicle, 0, capacity),
	}
}

// Direction returns the approach this queue serves
func (q *Queue) Direction() core.Direction {
	return q.dir
}

// Capacity returns the configured bound
func (q *Queue) Capacity() int {
	return q.capacity
}

// Enqueue appends v at the tail. It returns false, leaving the queue unchanged, when the queue is already at capacity;
// the arrival is shed rather than treated as an error.
func (q *Queue) Enqueue(v core.Vehicle) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.capacity {
		return false
	}
	q.items = append(q.items, v)
	return true
}

// SelectAndRemove removes and returns the first emergency vehicle in the queue, or the head if there is none.
// The relative order of the remaining vehicles is preserved. It returns false if the queue is empty.
func (q *Queue) SelectAndRemove() (core.Vehicle, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return core.Vehicle{}, false
	}

	idx := slices.IndexFunc(q.items, core.Vehicle.IsEmergency)
	if idx < 0 {
		idx = 0
	}
	v := q.items[idx]
	q.items = slices.Delete(q.items, idx, idx+1)
	return v, true
}

// PushFront puts a previously selected vehicle back at the head of the queue.
//
// It always succeeds. If arrivals filled the queue after the vehicle was selected, the queue temporarily holds more
// than its capacity; new arrivals keep being shed until it drains below the bound again.
func (q *Queue) PushFront(v core.Vehicle) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = slices.Insert(q.items, 0, v)
}

// Len returns the number of waiting vehicles
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// HasEmergency reports whether an emergency vehicle is waiting
func (q *Queue) HasEmergency() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.ContainsFunc(q.items, core.Vehicle.IsEmergency)
}

// Snapshot returns a copy of the waiting vehicles, head first.
func (q *Queue) Snapshot() []core.Vehicle {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.items)
}

// Set groups the per-direction queues.
type Set struct {
	queues map[core.Direction]*Queue
}

// NewSet creates one queue per direction, each bounded by capacity.
func NewSet(capacity int) *Set {
	s := &Set{queues: make(map[core.Direction]*Queue, len(core.Directions))}
	for _, dir := range core.Directions {
		s.queues[dir] = New(dir, capacity)
	}
	return s
}

// Get returns the queue for dir, or nil for an invalid direction.
func (s *Set) Get(dir core.Direction) *Queue {
	return s.queues[dir]
}

// Enqueue routes v to the queue of its direction.
func (s *Set) Enqueue(v core.Vehicle) bool {
	q := s.Get(v.Direction())
	if q == nil {
		return false
	}
	return q.Enqueue(v)
}

// Len returns the total number of waiting vehicles across both directions
func (s *Set) Len() int {
	total := 0
	for _, q := range s.queues {
		total += q.Len()
	}
	return total
}
