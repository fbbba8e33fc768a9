package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/vacants-enricher/internal/enrich"
	"github.com/yourorg/vacants-enricher/internal/hydrator"
)

func TestSnapshotsKeepOnlyRawPayloads(t *testing.T) {
	got := snapshots([]enrich.Outcome{
		{Source: "geocode", Status: enrich.Found},
		{Source: "parcel", Status: enrich.Found, Raw: []byte(`{"type":"Feature"}`)},
		{Source: "tax", Status: enrich.Failed, Raw: []byte("<html></html>")},
	})
	require.Len(t, got, 2)
	require.Equal(t, "parcel", got[0].Source)
	require.Equal(t, "found", got[0].Status)
	require.Len(t, got[0].SHA256, 64)
	require.Equal(t, "error", got[1].Status)
	require.NotEqual(t, got[0].SHA256, got[1].SHA256)
}

func TestResultColumnsNeverNull(t *testing.T) {
	fields, sources, skipped, err := resultColumns(hydrator.Result{RecordID: "rec1"})
	require.NoError(t, err)
	require.JSONEq(t, `[]`, string(fields))
	require.JSONEq(t, `[]`, string(sources))
	require.JSONEq(t, `[]`, string(skipped))
}

// Needs a scratch database; set TEST_PG_DSN to run.
func TestLedgerRoundTrip(t *testing.T) {
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set")
	}
	ctx := context.Background()
	s, err := Open(dsn)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Migrate(ctx))

	runID := uuid.NewString()
	recID := "rec" + uuid.NewString()[:8]
	started := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, s.StartRun(ctx, runID, started))

	res := hydrator.Result{
		RecordID: recID,
		Status:   hydrator.StatusUpdated,
		Fields:   []string{"geojson"},
		Sources:  []hydrator.SourceSummary{{Source: "parcel", Status: "found"}},
		Started:  started,
		Duration: 1500 * time.Millisecond,
		Outcomes: []enrich.Outcome{{Source: "parcel", Status: enrich.Found, Raw: []byte(`{}`)}},
	}
	require.NoError(t, s.RecordResult(ctx, runID, res))
	require.NoError(t, s.FinishRun(ctx, hydrator.Report{RunID: runID, Started: started, Finished: time.Now().UTC(), Total: 1, Updated: 1}))

	got, err := s.LastResult(ctx, recID)
	require.NoError(t, err)
	require.Equal(t, hydrator.StatusUpdated, got.Status)
	require.Equal(t, []string{"geojson"}, got.Fields)
	require.Equal(t, 1500*time.Millisecond, got.Duration)

	var n int
	require.NoError(t, s.DB.QueryRowContext(ctx, `SELECT count(*) FROM source_snapshots WHERE record_id=$1`, recID).Scan(&n))
	require.Equal(t, 1, n)
}
