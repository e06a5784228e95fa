package arrival

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testclock "k8s.io/utils/clock/testing"

	"github.com/anggasct/crossing/pkg/core"
	"github.com/anggasct/crossing/pkg/eventlog"
	"github.com/anggasct/crossing/pkg/metrics"
	"github.com/anggasct/crossing/pkg/queue"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func newGenerator(t *testing.T, capacity int, mutate func(*Options)) (*Generator, *queue.Set, *eventlog.Ring, *testclock.FakeClock) {
	t.Helper()
	queues := queue.NewSet(capacity)
	ring := eventlog.NewRing(64)
	fake := testclock.NewFakeClock(epoch)
	opts := Options{
		Queues:               queues,
		Sequence:             core.NewSequence(),
		MinInterval:          time.Second,
		MaxInterval:          2 * time.Second,
		EmergencyProbability: 0.1,
		Seed:                 42,
		Clock:                fake,
		Logger:               testr.New(t),
		Sink:                 ring,
	}
	if mutate != nil {
		mutate(&opts)
	}
	g, err := New(opts)
	require.NoError(t, err)
	return g, queues, ring, fake
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	base := func() Options {
		return Options{
			Queues:      queue.NewSet(1),
			Sequence:    core.NewSequence(),
			MinInterval: time.Second,
			MaxInterval: time.Second,
		}
	}

	testCases := []struct {
		name   string
		mutate func(*Options)
		errMsg string
	}{
		{name: "missing queues", mutate: func(o *Options) { o.Queues = nil }, errMsg: "queues"},
		{name: "missing sequence", mutate: func(o *Options) { o.Sequence = nil }, errMsg: "sequence"},
		{name: "zero minimum", mutate: func(o *Options) { o.MinInterval = 0 }, errMsg: "minimum"},
		{name: "max below min", mutate: func(o *Options) { o.MaxInterval = time.Millisecond }, errMsg: "maximum"},
		{name: "probability above one", mutate: func(o *Options) { o.EmergencyProbability = 1.5 }, errMsg: "probability"},
		{name: "negative probability", mutate: func(o *Options) { o.EmergencyProbability = -0.1 }, errMsg: "probability"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			opts := base()
			tc.mutate(&opts)
			_, err := New(opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

func TestNew_TimeBasedSeed(t *testing.T) {
	t.Parallel()
	g, _, _, _ := newGenerator(t, 5, func(o *Options) { o.Seed = 0 })
	assert.NotZero(t, g.Seed())
}

func TestPreload(t *testing.T) {
	t.Parallel()
	g, queues, ring, _ := newGenerator(t, 30, nil)

	g.Preload(3)

	assert.Equal(t, 3, queues.Get(core.East).Len())
	assert.Equal(t, 3, queues.Get(core.West).Len())
	assert.Equal(t, int64(6), g.Arrived())
	assert.Equal(t, int64(0), g.Dropped())

	lines := ring.Lines()
	require.Len(t, lines, 6)
	assert.Equal(t, "Preloaded car E01 queued.", lines[0])
	assert.Equal(t, "Preloaded car E03 queued.", lines[2])
	assert.Equal(t, "Preloaded car W01 queued.", lines[3])
	for _, v := range queues.Get(core.West).Snapshot() {
		assert.False(t, v.IsEmergency(), "preloaded vehicles are normal cars")
		assert.Equal(t, epoch, v.ArrivedAt)
	}
}

func TestArrive_SameSeedSamePattern(t *testing.T) {
	t.Parallel()
	a, _, _, _ := newGenerator(t, 100, nil)
	b, _, _, _ := newGenerator(t, 100, nil)

	for i := 0; i < 50; i++ {
		va, _ := a.Arrive()
		vb, _ := b.Arrive()
		require.Equal(t, va.ID, vb.ID, "arrival %d", i)
		require.Equal(t, va.Class, vb.Class, "arrival %d", i)
		require.Equal(t, a.Interval(), b.Interval(), "interval %d", i)
	}
}

func TestArrive_EmergencyProbabilityBounds(t *testing.T) {
	t.Parallel()

	never, _, _, _ := newGenerator(t, 1000, func(o *Options) { o.EmergencyProbability = 0 })
	always, _, _, _ := newGenerator(t, 1000, func(o *Options) { o.EmergencyProbability = 1 })

	for i := 0; i < 100; i++ {
		v, ok := never.Arrive()
		require.True(t, ok)
		assert.False(t, v.IsEmergency())

		v, ok = always.Arrive()
		require.True(t, ok)
		assert.True(t, v.IsEmergency())
	}
}

func TestArrive_BothDirectionsAndIDsMonotonic(t *testing.T) {
	t.Parallel()
	g, queues, _, _ := newGenerator(t, 1000, nil)

	last := map[core.Direction]int{}
	for i := 0; i < 200; i++ {
		v, ok := g.Arrive()
		require.True(t, ok)
		require.True(t, v.Direction().Valid())
		assert.Equal(t, last[v.Direction()]+1, v.ID.Seq, "per-direction ids are consecutive")
		last[v.Direction()] = v.ID.Seq
	}
	assert.Greater(t, queues.Get(core.East).Len(), 0)
	assert.Greater(t, queues.Get(core.West).Len(), 0)
	assert.Equal(t, 200, queues.Len())
}

func TestArrive_LogLines(t *testing.T) {
	t.Parallel()
	g, _, ring, _ := newGenerator(t, 10, func(o *Options) { o.EmergencyProbability = 1 })

	v, ok := g.Arrive()
	require.True(t, ok)
	lines := ring.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "New ambulance "+v.ID.String()+" queued.", lines[0])
}

func TestArrive_DropsWhenFull(t *testing.T) {
	t.Parallel()
	m := metrics.New(false)
	g, queues, ring, _ := newGenerator(t, 1, func(o *Options) {
		o.EmergencyProbability = 0
		o.Metrics = m
	})

	for i := 0; i < 20; i++ {
		g.Arrive()
	}

	assert.Equal(t, 2, queues.Len(), "one slot per direction")
	assert.Equal(t, int64(20), g.Arrived())
	assert.Equal(t, int64(18), g.Dropped())
	assert.Equal(t, g.Arrived()-g.Dropped(), int64(queues.Len()), "every arrival is either queued or dropped")

	var dropped int
	for _, line := range ring.Lines() {
		if strings.HasSuffix(line, "queue full.") {
			dropped++
			assert.Contains(t, line, " dropped, ")
		}
	}
	assert.Equal(t, 18, dropped)

	assert.Equal(t, 18.0, sumCounter(t, m, "crossing_vehicles_dropped_total"))
	assert.Equal(t, 20.0, sumCounter(t, m, "crossing_vehicles_arrived_total"))
	series, err := testutil.GatherAndCount(m.Registry(), "crossing_vehicles_arrived_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series, "one normal series per direction")
}

func sumCounter(t *testing.T, m *metrics.Metrics, name string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var total float64
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

func TestAdd(t *testing.T) {
	t.Parallel()
	g, queues, ring, _ := newGenerator(t, 5, nil)

	v, ok := g.Add(core.West, core.Emergency)
	require.True(t, ok)
	assert.Equal(t, "W01", v.ID.String())
	assert.True(t, v.IsEmergency())
	assert.True(t, queues.Get(core.West).HasEmergency())
	assert.Equal(t, []string{"New ambulance W01 queued."}, ring.Lines())
}

func TestInterval_WithinBounds(t *testing.T) {
	t.Parallel()
	g, _, _, _ := newGenerator(t, 1, nil)

	seen := map[time.Duration]bool{}
	for i := 0; i < 500; i++ {
		d := g.Interval()
		require.GreaterOrEqual(t, d, time.Second)
		require.LessOrEqual(t, d, 2*time.Second)
		seen[d] = true
	}
	assert.Greater(t, len(seen), 1, "intervals must vary")

	fixed, _, _, _ := newGenerator(t, 1, func(o *Options) { o.MaxInterval = o.MinInterval })
	assert.Equal(t, time.Second, fixed.Interval())
}

func TestInterval_FullRange(t *testing.T) {
	t.Parallel()
	g, _, _, _ := newGenerator(t, 1, func(o *Options) {
		o.MinInterval = time.Nanosecond
		o.MaxInterval = time.Duration(math.MaxInt64)
	})

	for i := 0; i < 100; i++ {
		d := g.Interval()
		require.GreaterOrEqual(t, d, time.Nanosecond)
		require.LessOrEqual(t, d, time.Duration(math.MaxInt64))
	}
}

func TestRun_PacedByClock(t *testing.T) {
	t.Parallel()
	g, queues, _, fake := newGenerator(t, 100, func(o *Options) { o.MaxInterval = o.MinInterval })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	require.Eventually(t, func() bool { return fake.HasWaiters() }, time.Second, time.Millisecond)
	assert.Equal(t, 1, queues.Len(), "first arrival happens before the first pause")

	for want := 2; want <= 4; want++ {
		fake.Step(time.Second)
		require.Eventually(t, func() bool { return queues.Len() == want && fake.HasWaiters() }, time.Second, time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
	assert.Equal(t, int64(4), g.Arrived())
}
