package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/vacants-enricher/airtable"
	"github.com/yourorg/vacants-enricher/internal/enrich"
	"github.com/yourorg/vacants-enricher/internal/hydrator"
	"github.com/yourorg/vacants-enricher/internal/refresh"
)

type fakeRunner struct {
	mu     sync.Mutex
	calls  int
	gate   chan struct{}
	latest *hydrator.Report
	busy   bool
}

func (f *fakeRunner) Busy() bool { return f.busy }

func (f *fakeRunner) RunOnce(ctx context.Context) (hydrator.Report, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.gate != nil {
		<-f.gate
	}
	return hydrator.Report{RunID: "run-1"}, nil
}

func (f *fakeRunner) Latest() (hydrator.Report, bool) {
	if f.latest == nil {
		return hydrator.Report{}, false
	}
	return *f.latest, true
}

type fakeReports struct {
	rep *hydrator.Report
	err error
}

func (f fakeReports) LatestReport(ctx context.Context) (hydrator.Report, bool, error) {
	if f.rep == nil {
		return hydrator.Report{}, false, f.err
	}
	return *f.rep, true, f.err
}

type namedSource struct{ name string }

func (s namedSource) Name() string { return s.name }

func (s namedSource) Triggers() []string { return nil }

func (s namedSource) Ready(enrich.Record) (bool, string) { return true, "" }

func (s namedSource) Lookup(context.Context, enrich.Record) enrich.Outcome {
	return enrich.Outcome{}
}

type fakePlanner map[string]enrich.Plan

func (f fakePlanner) Preview(ctx context.Context, id string) (enrich.Plan, error) {
	if id == "recDown" {
		return enrich.Plan{}, errors.New("dial tcp: refused")
	}
	p, ok := f[id]
	if !ok {
		return enrich.Plan{}, fmt.Errorf("get record %s: %w", id, airtable.ErrNotFound)
	}
	return p, nil
}

type fakeHistory map[string]hydrator.Result

func (f fakeHistory) LastResult(ctx context.Context, id string) (hydrator.Result, error) {
	r, ok := f[id]
	if !ok {
		return hydrator.Result{}, errors.New("sql: no rows in result set")
	}
	return r, nil
}

type fakeQueue struct{ seen map[string]bool }

func (q *fakeQueue) Enqueue(j refresh.Job) bool {
	if q.seen[j.RecordID] {
		return false
	}
	q.seen[j.RecordID] = true
	return true
}

func serve(t *testing.T, register func(chi.Router)) *httptest.Server {
	r := chi.NewRouter()
	register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	defer resp.Body.Close()
	var m map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	return m
}

func TestPostRunsRejectsConcurrentRun(t *testing.T) {
	runner := &fakeRunner{gate: make(chan struct{})}
	srv := serve(t, func(r chi.Router) { RegisterRuns(r, RunsDeps{Runner: runner}) })

	resp, err := http.Post(srv.URL+"/runs", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/runs", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "run_in_progress", decode(t, resp)["error"])

	close(runner.gate)
	require.Eventually(t, func() bool {
		resp, err := http.Post(srv.URL+"/runs", "application/json", nil)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusAccepted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLatestRunPrefersLocalReport(t *testing.T) {
	runner := &fakeRunner{latest: &hydrator.Report{RunID: "local", Total: 3}}
	srv := serve(t, func(r chi.Router) {
		RegisterRuns(r, RunsDeps{Runner: runner, Reports: fakeReports{rep: &hydrator.Report{RunID: "shared"}}})
	})

	resp, err := http.Get(srv.URL + "/runs/latest")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	require.Equal(t, "local", body["run_id"])
	require.EqualValues(t, 3, body["total"])
}

func TestLatestRunFallsBackToSharedReport(t *testing.T) {
	srv := serve(t, func(r chi.Router) {
		RegisterRuns(r, RunsDeps{Runner: &fakeRunner{}, Reports: fakeReports{rep: &hydrator.Report{RunID: "shared"}}})
	})
	resp, err := http.Get(srv.URL + "/runs/latest")
	require.NoError(t, err)
	require.Equal(t, "shared", decode(t, resp)["run_id"])

	empty := serve(t, func(r chi.Router) { RegisterRuns(r, RunsDeps{Runner: &fakeRunner{}}) })
	resp, err = http.Get(empty.URL + "/runs/latest")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestPlanEndpoint(t *testing.T) {
	planner := fakePlanner{
		"rec1": {
			Sources: []enrich.Source{namedSource{"parcel"}, namedSource{"tax"}},
			Skipped: []enrich.Skip{{Source: "geocode", Reason: "lat already set"}},
		},
	}
	srv := serve(t, func(r chi.Router) { RegisterRecords(r, RecordsDeps{Planner: planner}) })

	resp, err := http.Get(srv.URL + "/records/rec1/plan")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got planResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	resp.Body.Close()
	require.Equal(t, []string{"parcel", "tax"}, got.Sources)
	require.Equal(t, []enrich.Skip{{Source: "geocode", Reason: "lat already set"}}, got.Skipped)

	resp, err = http.Get(srv.URL + "/records/recNope/plan")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/records/recDown/plan")
	require.NoError(t, err)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	require.True(t, strings.Contains(decode(t, resp)["detail"].(string), "refused"))
}

func TestEnrichEndpointQueuesOnce(t *testing.T) {
	q := &fakeQueue{seen: map[string]bool{}}
	srv := serve(t, func(r chi.Router) { RegisterRecords(r, RecordsDeps{Queue: q}) })

	resp, err := http.Post(srv.URL+"/records/rec9/enrich", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, "rec9", decode(t, resp)["record_id"])

	resp, err = http.Post(srv.URL+"/records/rec9/enrich", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestPlanIncludesLastResult(t *testing.T) {
	planner := fakePlanner{"rec1": {}, "rec2": {}}
	history := fakeHistory{"rec1": {RecordID: "rec1", Status: hydrator.StatusUnchanged}}
	srv := serve(t, func(r chi.Router) { RegisterRecords(r, RecordsDeps{Planner: planner, History: history}) })

	resp, err := http.Get(srv.URL + "/records/rec1/plan")
	require.NoError(t, err)
	var got planResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	resp.Body.Close()
	require.NotNil(t, got.LastResult)
	require.Equal(t, hydrator.StatusUnchanged, got.LastResult.Status)
	require.Empty(t, got.Sources)

	resp, err = http.Get(srv.URL + "/records/rec2/plan")
	require.NoError(t, err)
	require.NotContains(t, decode(t, resp), "last_result")
}

func TestPostRunsRefusedWhileDriverBusy(t *testing.T) {
	runner := &fakeRunner{busy: true}
	srv := serve(t, func(r chi.Router) { RegisterRuns(r, RunsDeps{Runner: runner}) })

	resp, err := http.Post(srv.URL+"/runs", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
	require.Zero(t, runner.calls)
}
