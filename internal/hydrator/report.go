package hydrator

import (
	"time"

	"github.com/yourorg/vacants-enricher/internal/enrich"
)

// RecordStatus is the per-record outcome of a run.
type RecordStatus string

const (
	// StatusUpdated means a patch with at least one field was applied.
	StatusUpdated RecordStatus = "updated"
	// StatusUnchanged means sources were asked but nothing new was found.
	StatusUnchanged RecordStatus = "unchanged"
	// StatusSkipped means no source was applicable to the record.
	StatusSkipped RecordStatus = "skipped"
	StatusFailed  RecordStatus = "failed"
)

type SourceSummary struct {
	Source     string `json:"source"`
	Status     string `json:"status"`
	Kind       string `json:"kind,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

type Result struct {
	RecordID string          `json:"record_id"`
	Status   RecordStatus    `json:"status"`
	Fields   []string        `json:"fields,omitempty"`
	Sources  []SourceSummary `json:"sources,omitempty"`
	Skipped  []enrich.Skip   `json:"skipped,omitempty"`
	Error    string          `json:"error,omitempty"`
	Started  time.Time       `json:"started_at"`
	Duration time.Duration   `json:"duration_ns"`

	Outcomes []enrich.Outcome `json:"-"`
}

func summarize(outcomes []enrich.Outcome) []SourceSummary {
	out := make([]SourceSummary, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, SourceSummary{
			Source:     o.Source,
			Status:     o.Status.String(),
			Kind:       string(o.Kind),
			StatusCode: o.StatusCode,
			Reason:     o.Reason,
		})
	}
	return out
}

type Report struct {
	RunID     string    `json:"run_id"`
	Started   time.Time `json:"started_at"`
	Finished  time.Time `json:"finished_at"`
	Total     int       `json:"total"`
	Updated   int       `json:"updated"`
	Unchanged int       `json:"unchanged"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Results   []Result  `json:"results"`
}

func (r *Report) add(res Result) {
	r.Results = append(r.Results, res)
	r.Total++
	switch res.Status {
	case StatusUpdated:
		r.Updated++
	case StatusUnchanged:
		r.Unchanged++
	case StatusSkipped:
		r.Skipped++
	case StatusFailed:
		r.Failed++
	}
}
