// Package eventlog keeps the most recent human readable simulation events for the dashboard.
package eventlog

import (
	"fmt"
	"io"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// Sink receives formatted event lines. Appendf is called from simulation goroutines and must be safe for concurrent
// use.
type Sink interface {
	Appendf(format string, args ...any)
}

// Entry is one recorded event
type Entry struct {
	Time    time.Time
	Message string
}

// Ring is a bounded Sink; once full, each new entry overwrites the oldest one.
type Ring struct {
	clock clock.PassiveClock

	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
	total   uint64
}

// Option configures a Ring
type Option func(*Ring)

// WithClock sets the clock used to stamp entries
func WithClock(c clock.PassiveClock) Option {
	return func(r *Ring) {
		r.clock = c
	}
}

// NewRing creates a ring holding at most capacity entries
func NewRing(capacity int, opts ...Option) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	r := &Ring{
		clock:   clock.RealClock{},
		entries: make([]Entry, capacity),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Appendf formats and records a message
func (r *Ring) Appendf(format string, args ...any) {
	r.Append(fmt.Sprintf(format, args...))
}

// Append records a message
func (r *Ring) Append(message string) {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[r.next] = Entry{Time: now, Message: message}
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
	r.total++
}

// Entries returns the retained entries, oldest first
func (r *Ring) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		return append([]Entry(nil), r.entries[:r.next]...)
	}
	out := make([]Entry, 0, len(r.entries))
	out = append(out, r.entries[r.next:]...)
	return append(out, r.entries[:r.next]...)
}

// Lines returns the retained messages, oldest first
func (r *Ring) Lines() []string {
	entries := r.Entries()
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.Message
	}
	return lines
}

// Capacity returns the maximum number of retained entries
func (r *Ring) Capacity() int {
	return len(r.entries)
}

// Total returns how many entries were ever appended
func (r *Ring) Total() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// Discard is a Sink that drops everything
var Discard Sink = discard{}

type discard struct{}

func (discard) Appendf(string, ...any) {}

// Tee fans a line out to several sinks
func Tee(sinks ...Sink) Sink {
	return tee(sinks)
}

type tee []Sink

func (t tee) Appendf(format string, args ...any) {
	for _, s := range t {
		s.Appendf(format, args...)
	}
}

// Writer is a Sink that prints each line to an io.Writer, prefixed with its wall-clock time.
type Writer struct {
	clock clock.PassiveClock

	mu sync.Mutex
	w  io.Writer
}

// NewWriter creates a Writer sink. Write errors are dropped; the ring remains the source of truth.
func NewWriter(w io.Writer, opts ...WriterOption) *Writer {
	sw := &Writer{clock: clock.RealClock{}, w: w}
	for _, opt := range opts {
		opt(sw)
	}
	return sw
}

// WriterOption configures a Writer
type WriterOption func(*Writer)

// WithWriterClock sets the clock used for the time prefix
func WithWriterClock(c clock.PassiveClock) WriterOption {
	return func(w *Writer) {
		w.clock = c
	}
}

func (w *Writer) Appendf(format string, args ...any) {
	line := fmt.Sprintf("[%s] %s\n", w.clock.Now().Format(time.TimeOnly), fmt.Sprintf(format, args...))

	w.mu.Lock()
	defer w.mu.Unlock()
	_, _ = io.WriteString(w.w, line)
}
