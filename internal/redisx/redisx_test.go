package redisx

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yourorg/vacants-enricher/internal/hydrator"
)

// Needs a scratch Redis; set TEST_REDIS_ADDR to run.
func newTestClient(t *testing.T) *Client {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	c := New(addr, "", 15)
	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))
	require.NoError(t, c.Rdb.FlushDB(ctx).Err())
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestLockIsExclusive(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	release, err := c.Acquire(ctx, "run")
	require.NoError(t, err)

	_, err = c.Acquire(ctx, "run")
	require.ErrorIs(t, err, ErrLocked)

	other, err := c.Acquire(ctx, "record:rec1")
	require.NoError(t, err)
	other()

	release()
	again, err := c.Acquire(ctx, "run")
	require.NoError(t, err)
	again()
}

func TestStaleReleaseKeepsNewOwner(t *testing.T) {
	c := newTestClient(t)
	c.LockTTL = 50 * time.Millisecond
	ctx := context.Background()

	stale, err := c.Acquire(ctx, "run")
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	c.LockTTL = time.Minute
	fresh, err := c.Acquire(ctx, "run")
	require.NoError(t, err)
	defer fresh()

	stale()
	_, err = c.Acquire(ctx, "run")
	require.ErrorIs(t, err, ErrLocked)
}

func TestReportRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, ok, err := c.LatestReport(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	rep := hydrator.Report{
		RunID:   "run-1",
		Total:   2,
		Updated: 1,
		Failed:  1,
		Results: []hydrator.Result{
			{RecordID: "rec1", Status: hydrator.StatusUpdated, Fields: []string{"lat", "lng"}},
			{RecordID: "rec2", Status: hydrator.StatusFailed, Error: "patch rec2: airtable 422"},
		},
	}
	require.NoError(t, c.SaveReport(ctx, rep))

	got, ok, err := c.LatestReport(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "run-1", got.RunID)
	require.Len(t, got.Results, 2)
	require.Equal(t, hydrator.StatusFailed, got.Results[1].Status)
}
