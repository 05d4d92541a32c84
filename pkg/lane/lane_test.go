package lane

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMask_Operations(t *testing.T) {
	var m Mask
	require.True(t, m.IsEmpty())

	m = m.With(Sync).With(Async(2))
	require.True(t, m.Contains(Sync))
	require.True(t, m.Contains(Async(2)))
	require.False(t, m.Contains(Async(0)))
	require.Equal(t, 2, m.Len())
	require.Equal(t, "{sync,async#2}", m.String())

	m = m.Without(Sync)
	require.False(t, m.Contains(Sync))
	require.True(t, m.Overlaps(Async(2).Mask()))
}

func TestAtomicMask_InsertRemoveReportTransitions(t *testing.T) {
	var a AtomicMask
	require.True(t, a.Insert(Async(1)))
	require.False(t, a.Insert(Async(1)))
	require.True(t, a.Contains(Async(1)))
	require.True(t, a.Remove(Async(1)))
	require.False(t, a.Remove(Async(1)))
	require.True(t, a.Load().IsEmpty())
}

func TestAtomicMask_ConcurrentInserts(t *testing.T) {
	var a AtomicMask
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Insert(Async(i))
		}()
	}
	wg.Wait()
	require.Equal(t, 16, a.Load().Len())
	require.Equal(t, 16, a.Clear().Len())
	require.True(t, a.Load().IsEmpty())
}

func TestJobID_Encoding(t *testing.T) {
	id := NewJobID(42, true, 7)
	require.Equal(t, uint64(42), id.Frame())
	require.True(t, id.IsAsync())
	require.Equal(t, uint32(7), id.Seq())

	syncID := NewJobID(42, false, 8)
	require.True(t, syncID.IsSync())
}

func TestPriority_SyncBeforeAsyncRegardlessOfDeadline(t *testing.T) {
	now := time.Now()
	syncJob := JobPriority(NewJobID(1, false, 1), now.Add(time.Second))
	asyncJob := JobPriority(NewJobID(1, true, 2), now)

	require.True(t, syncJob.Before(asyncJob))
	require.Equal(t, syncJob, Min(asyncJob, syncJob))
}

func TestPriority_DeadlineThenID(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		a, b Priority
		want int
	}{
		{"earlier deadline first", Priority{Deadline: now, ID: 9}, Priority{Deadline: now.Add(1), ID: 1}, -1},
		{"ties broken by id", Priority{Deadline: now, ID: 1}, Priority{Deadline: now, ID: 2}, -1},
		{"equal", Priority{Deadline: now, ID: 3}, Priority{Deadline: now, ID: 3}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.a.Compare(tt.b))
		})
	}
}
