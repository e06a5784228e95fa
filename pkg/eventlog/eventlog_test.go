package eventlog

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testclock "k8s.io/utils/clock/testing"
)

func TestRing_KeepsOrderBeforeWrap(t *testing.T) {
	t.Parallel()
	r := NewRing(3)
	r.Appendf("one")
	r.Appendf("two %d", 2)

	assert.Equal(t, []string{"one", "two 2"}, r.Lines())
	assert.Equal(t, uint64(2), r.Total())
}

func TestRing_OverwritesOldest(t *testing.T) {
	t.Parallel()
	r := NewRing(3)
	for i := 1; i <= 7; i++ {
		r.Appendf("line %d", i)
	}

	assert.Equal(t, []string{"line 5", "line 6", "line 7"}, r.Lines())
	assert.Equal(t, 3, r.Capacity())
	assert.Equal(t, uint64(7), r.Total())
}

func TestRing_ExactlyFull(t *testing.T) {
	t.Parallel()
	r := NewRing(2)
	r.Append("a")
	r.Append("b")
	assert.Equal(t, []string{"a", "b"}, r.Lines())
}

func TestRing_StampsEntries(t *testing.T) {
	t.Parallel()
	start := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	fake := testclock.NewFakePassiveClock(start)
	r := NewRing(4, WithClock(fake))

	r.Append("first")
	fake.SetTime(start.Add(time.Second))
	r.Append("second")

	entries := r.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, start, entries[0].Time)
	assert.Equal(t, start.Add(time.Second), entries[1].Time)
}

func TestRing_Concurrent(t *testing.T) {
	t.Parallel()
	r := NewRing(8)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				r.Appendf("w%d-%d", worker, j)
				_ = r.Lines()
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, r.Lines(), 8)
	assert.Equal(t, uint64(200), r.Total())
}

type recordingSink struct {
	lines []string
}

func (s *recordingSink) Appendf(format string, args ...any) {
	s.lines = append(s.lines, fmt.Sprintf(format, args...))
}

func TestTee(t *testing.T) {
	t.Parallel()
	a, b := &recordingSink{}, &recordingSink{}
	sink := Tee(a, Discard, b)

	sink.Appendf("Light switched to %s", "WEST")

	assert.Equal(t, []string{"Light switched to WEST"}, a.lines)
	assert.Equal(t, a.lines, b.lines)
}

func TestWriter(t *testing.T) {
	t.Parallel()
	fake := testclock.NewFakePassiveClock(time.Date(2025, 1, 1, 9, 5, 7, 0, time.UTC))
	var buf bytes.Buffer
	w := NewWriter(&buf, WithWriterClock(fake))

	w.Appendf("Light switched to %s", "WEST")
	w.Appendf("Simulation ended.")

	assert.Equal(t, "[09:05:07] Light switched to WEST\n[09:05:07] Simulation ended.\n", buf.String())
}
