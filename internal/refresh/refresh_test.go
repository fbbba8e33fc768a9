package refresh

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestEnqueueDedupesPendingRecords(t *testing.T) {
	gate := make(chan struct{})
	var mu sync.Mutex
	var done []string
	r := New(context.Background(), 8, 1, func(ctx context.Context, j Job) {
		<-gate
		mu.Lock()
		done = append(done, j.RecordID)
		mu.Unlock()
	})

	require.True(t, r.Enqueue(Job{RecordID: "rec1"}))
	require.False(t, r.Enqueue(Job{RecordID: "rec1"}), "already pending")
	require.True(t, r.Enqueue(Job{RecordID: "rec2"}))
	close(gate)
	r.Close()

	require.Equal(t, []string{"rec1", "rec2"}, done)
}

func TestEnqueueRejectsWhenFull(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{}, 1)
	r := New(context.Background(), 1, 1, func(ctx context.Context, j Job) {
		started <- struct{}{}
		<-gate
	})

	require.True(t, r.Enqueue(Job{RecordID: "rec1"}))
	<-started
	require.True(t, r.Enqueue(Job{RecordID: "rec2"}))
	require.False(t, r.Enqueue(Job{RecordID: "rec3"}), "queue full")
	close(gate)
	r.Close()
}

func TestEnqueueAfterCloseIsRejected(t *testing.T) {
	r := New(context.Background(), 4, 1, func(ctx context.Context, j Job) {})
	r.Close()

	require.NotPanics(t, func() {
		require.False(t, r.Enqueue(Job{RecordID: "rec1"}))
	})
	r.Close()
}

func TestJobsFollowBaseContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	jobErr := make(chan error, 1)
	r := New(ctx, 1, 1, func(ctx context.Context, j Job) {
		close(started)
		<-ctx.Done()
		jobErr <- ctx.Err()
	})

	require.True(t, r.Enqueue(Job{RecordID: "rec1"}))
	<-started
	cancel()
	r.Close()
	require.ErrorIs(t, <-jobErr, context.Canceled)
}
