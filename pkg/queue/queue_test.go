package queue

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anggasct/crossing/pkg/core"
)

func car(dir core.Direction, seq int) core.Vehicle {
	return core.Vehicle{ID: core.VehicleID{Direction: dir, Seq: seq}}
}

func ambulance(dir core.Direction, seq int) core.Vehicle {
	return core.Vehicle{ID: core.VehicleID{Direction: dir, Seq: seq}, Class: core.Emergency}
}

func ids(vs []core.Vehicle) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.ID.String()
	}
	return out
}

func TestQueue_FIFO(t *testing.T) {
	t.Parallel()
	q := New(core.East, 5)

	for i := 1; i <= 3; i++ {
		require.True(t, q.Enqueue(car(core.East, i)))
	}

	for i := 1; i <= 3; i++ {
		v, ok := q.SelectAndRemove()
		require.True(t, ok)
		assert.Equal(t, i, v.ID.Seq)
	}

	_, ok := q.SelectAndRemove()
	assert.False(t, ok, "empty queue must report no selection")
}

func TestQueue_SelectAndRemove(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		items     []core.Vehicle
		wantID    string
		wantAfter []string
	}{
		{
			name:      "emergency preempts earlier normal vehicles",
			items:     []core.Vehicle{car(core.East, 1), ambulance(core.East, 2), car(core.East, 3)},
			wantID:    "E02",
			wantAfter: []string{"E01", "E03"},
		},
		{
			name:      "first of several emergencies wins",
			items:     []core.Vehicle{car(core.East, 1), ambulance(core.East, 2), ambulance(core.East, 3)},
			wantID:    "E02",
			wantAfter: []string{"E01", "E03"},
		},
		{
			name:      "head when only normal vehicles",
			items:     []core.Vehicle{car(core.West, 4), car(core.West, 5)},
			wantID:    "W04",
			wantAfter: []string{"W05"},
		},
		{
			name:      "emergency at tail",
			items:     []core.Vehicle{car(core.West, 1), car(core.West, 2), ambulance(core.West, 3)},
			wantID:    "W03",
			wantAfter: []string{"W01", "W02"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			q := New(tc.items[0].Direction(), 10)
			for _, v := range tc.items {
				require.True(t, q.Enqueue(v))
			}

			v, ok := q.SelectAndRemove()
			require.True(t, ok)
			assert.Equal(t, tc.wantID, v.ID.String())
			if diff := cmp.Diff(tc.wantAfter, ids(q.Snapshot())); diff != "" {
				t.Errorf("remaining queue mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestQueue_CapacityDropsArrivals(t *testing.T) {
	t.Parallel()
	q := New(core.East, 2)

	assert.True(t, q.Enqueue(car(core.East, 1)))
	assert.True(t, q.Enqueue(car(core.East, 2)))
	assert.False(t, q.Enqueue(car(core.East, 3)), "third arrival must be shed")
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, []string{"E01", "E02"}, ids(q.Snapshot()))
}

func TestQueue_PushFrontRestoresHead(t *testing.T) {
	t.Parallel()
	q := New(core.East, 2)
	require.True(t, q.Enqueue(car(core.East, 1)))
	require.True(t, q.Enqueue(car(core.East, 2)))

	v, ok := q.SelectAndRemove()
	require.True(t, ok)

	// An arrival fills the freed place before the undo.
	require.True(t, q.Enqueue(car(core.East, 3)))

	q.PushFront(v)
	assert.Equal(t, []string{"E01", "E02", "E03"}, ids(q.Snapshot()), "reverted vehicle must never be lost")
	assert.False(t, q.Enqueue(car(core.East, 4)), "overfilled queue keeps shedding")
}

func TestQueue_SnapshotIsCopy(t *testing.T) {
	t.Parallel()
	q := New(core.West, 3)
	require.True(t, q.Enqueue(car(core.West, 1)))

	snap := q.Snapshot()
	snap[0] = car(core.West, 99)

	assert.Equal(t, []string{"W01"}, ids(q.Snapshot()))
}

func TestQueue_HasEmergency(t *testing.T) {
	t.Parallel()
	q := New(core.West, 3)
	require.True(t, q.Enqueue(car(core.West, 1)))
	assert.False(t, q.HasEmergency())
	require.True(t, q.Enqueue(ambulance(core.West, 2)))
	assert.True(t, q.HasEmergency())
}

func TestQueue_ConcurrentNoLoss(t *testing.T) {
	t.Parallel()
	const producers, perProducer = 4, 100
	q := New(core.East, producers*perProducer)
	seq := core.NewSequence()

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				class := core.Normal
				if j%10 == 0 {
					class = core.Emergency
				}
				q.Enqueue(core.Vehicle{ID: seq.Next(core.East), Class: class})
			}
		}()
	}

	var mu sync.Mutex
	taken := make(map[core.VehicleID]bool)
	done := make(chan struct{})
	var consumers sync.WaitGroup
	for i := 0; i < 2; i++ {
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			for {
				v, ok := q.SelectAndRemove()
				if ok {
					mu.Lock()
					assert.False(t, taken[v.ID], "vehicle %s selected twice", v.ID)
					taken[v.ID] = true
					mu.Unlock()
					continue
				}
				select {
				case <-done:
					return
				default:
				}
			}
		}()
	}

	wg.Wait()
	close(done)
	consumers.Wait()

	for v, ok := q.SelectAndRemove(); ok; v, ok = q.SelectAndRemove() {
		taken[v.ID] = true
	}
	assert.Len(t, taken, producers*perProducer)
}

func TestSet(t *testing.T) {
	t.Parallel()
	s := NewSet(2)

	assert.True(t, s.Enqueue(car(core.East, 1)))
	assert.True(t, s.Enqueue(car(core.West, 1)))
	assert.True(t, s.Enqueue(car(core.West, 2)))
	assert.False(t, s.Enqueue(car(core.West, 3)))
	assert.False(t, s.Enqueue(core.Vehicle{}), "vehicle without a direction has no queue")

	assert.Equal(t, 1, s.Get(core.East).Len())
	assert.Equal(t, 2, s.Get(core.West).Len())
	assert.Equal(t, 3, s.Len())
	assert.Nil(t, s.Get(core.NoDirection))
}
