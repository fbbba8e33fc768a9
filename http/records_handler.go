package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/yourorg/vacants-enricher/airtable"
	"github.com/yourorg/vacants-enricher/internal/enrich"
	"github.com/yourorg/vacants-enricher/internal/hydrator"
	"github.com/yourorg/vacants-enricher/internal/refresh"
)

type Previewer interface {
	Preview(ctx context.Context, id string) (enrich.Plan, error)
}

type Enqueuer interface {
	Enqueue(j refresh.Job) bool
}

// History returns the newest ledger entry for a record.
type History interface {
	LastResult(ctx context.Context, recordID string) (hydrator.Result, error)
}

type RecordsDeps struct {
	Planner Previewer
	Queue   Enqueuer
	// History is optional; without it plans carry no last result.
	History History
}

type planResponse struct {
	RecordID   string           `json:"record_id"`
	Sources    []string         `json:"sources"`
	Skipped    []enrich.Skip    `json:"skipped"`
	LastResult *hydrator.Result `json:"last_result,omitempty"`
}

func RegisterRecords(r chi.Router, d RecordsDeps) {
	r.Route("/records/{id}", func(r chi.Router) {
		r.Get("/plan", func(w http.ResponseWriter, req *http.Request) {
			id := chi.URLParam(req, "id")
			p, err := d.Planner.Preview(req.Context(), id)
			if errors.Is(err, airtable.ErrNotFound) {
				render.Status(req, http.StatusNotFound)
				render.JSON(w, req, map[string]any{"error": "record_not_found", "record_id": id})
				return
			}
			if err != nil {
				render.Status(req, http.StatusBadGateway)
				render.JSON(w, req, map[string]any{"error": "store_unavailable", "detail": err.Error()})
				return
			}
			skipped := p.Skipped
			if skipped == nil {
				skipped = []enrich.Skip{}
			}
			out := planResponse{RecordID: id, Sources: p.Names(), Skipped: skipped}
			if d.History != nil {
				if last, err := d.History.LastResult(req.Context(), id); err == nil {
					out.LastResult = &last
				}
			}
			render.JSON(w, req, out)
		})

		r.Post("/enrich", func(w http.ResponseWriter, req *http.Request) {
			id := chi.URLParam(req, "id")
			if !d.Queue.Enqueue(refresh.Job{RecordID: id}) {
				render.Status(req, http.StatusConflict)
				render.JSON(w, req, map[string]any{"error": "already_queued", "record_id": id})
				return
			}
			render.Status(req, http.StatusAccepted)
			render.JSON(w, req, map[string]any{"ok": true, "record_id": id})
		})
	})
}
