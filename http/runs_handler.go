package httpapi

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/yourorg/vacants-enricher/internal/hydrator"
)

// Runner is the part of the driver the HTTP surface needs.
type Runner interface {
	RunOnce(ctx context.Context) (hydrator.Report, error)
	Latest() (hydrator.Report, bool)
	Busy() bool
}

// ReportReader reads the latest report saved by any process.
type ReportReader interface {
	LatestReport(ctx context.Context) (hydrator.Report, bool, error)
}

type RunsDeps struct {
	Runner  Runner
	Reports ReportReader
	Logger  *zap.Logger
	// Ctx bounds background runs; cancelled on shutdown.
	Ctx context.Context
}

func RegisterRuns(r chi.Router, d RunsDeps) {
	if d.Ctx == nil {
		d.Ctx = context.Background()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	var running atomic.Bool

	r.Route("/runs", func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, req *http.Request) {
			if d.Runner.Busy() || !running.CompareAndSwap(false, true) {
				render.Status(req, http.StatusConflict)
				render.JSON(w, req, map[string]any{"error": "run_in_progress"})
				return
			}
			go func() {
				defer running.Store(false)
				_, err := d.Runner.RunOnce(d.Ctx)
				switch {
				case err == nil:
				case errors.Is(err, hydrator.ErrRunInProgress):
					d.Logger.Info("background run skipped, another run is in progress")
				default:
					d.Logger.Error("background run failed", zap.Error(err))
				}
			}()
			render.Status(req, http.StatusAccepted)
			render.JSON(w, req, map[string]any{"ok": true})
		})

		r.Get("/latest", func(w http.ResponseWriter, req *http.Request) {
			if rep, ok := d.Runner.Latest(); ok {
				render.JSON(w, req, rep)
				return
			}
			if d.Reports != nil {
				rep, ok, err := d.Reports.LatestReport(req.Context())
				if err != nil {
					render.Status(req, http.StatusBadGateway)
					render.JSON(w, req, map[string]any{"error": "report_unavailable", "detail": err.Error()})
					return
				}
				if ok {
					render.JSON(w, req, rep)
					return
				}
			}
			render.Status(req, http.StatusNotFound)
			render.JSON(w, req, map[string]any{"error": "no_runs"})
		})
	})
}
