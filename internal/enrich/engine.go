// Package enrich decides which sources a record needs, calls them, and folds
// their answers into a single merge-patch. Planning and merging are pure;
// only the sources do I/O.
package enrich

import (
	"context"
	"fmt"

	"github.com/yourorg/vacants-enricher/internal/canon"
)

// Skip records why a source was left out of a plan.
type Skip struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

// Plan is the set of sources to call for one record, in source order.
type Plan struct {
	Record  Record
	Sources []Source
	Skipped []Skip
}

func (p Plan) Empty() bool { return len(p.Sources) == 0 }

func (p Plan) Names() []string {
	out := make([]string, 0, len(p.Sources))
	for _, s := range p.Sources {
		out = append(out, s.Name())
	}
	return out
}

type Engine struct {
	Sources []Source
	Keys    Keys
}

// Plan selects the sources whose trigger fields are all absent and whose
// query key is present on the record.
func (e *Engine) Plan(rec Record) Plan {
	p := Plan{Record: rec}
	for _, s := range e.Sources {
		if filled := firstPresent(rec, s.Triggers()); filled != "" {
			p.Skipped = append(p.Skipped, Skip{Source: s.Name(), Reason: filled + " already set"})
			continue
		}
		if ok, reason := s.Ready(rec); !ok {
			p.Skipped = append(p.Skipped, Skip{Source: s.Name(), Reason: reason})
			continue
		}
		p.Sources = append(p.Sources, s)
	}
	return p
}

func firstPresent(rec Record, fields []string) string {
	for _, f := range fields {
		if rec.Has(f) {
			return f
		}
	}
	return ""
}

// Execute calls every planned source in order and verifies that echoed keys
// match the record.
func (e *Engine) Execute(ctx context.Context, p Plan) []Outcome {
	outcomes := make([]Outcome, 0, len(p.Sources))
	for _, s := range p.Sources {
		o := lookup(ctx, s, p.Record)
		if o.Source == "" {
			o.Source = s.Name()
		}
		outcomes = append(outcomes, e.verifyEcho(p.Record, o))
	}
	return outcomes
}

// lookup keeps a panicking source from taking the other sources down with it.
func lookup(ctx context.Context, s Source, rec Record) (o Outcome) {
	defer func() {
		if p := recover(); p != nil {
			o = failed(s.Name(), SourcePanic, 0, fmt.Sprint(p))
		}
	}()
	return s.Lookup(ctx, rec)
}

// verifyEcho turns a Found outcome into a failure when the source answered
// for a different block or lot than the record's.
func (e *Engine) verifyEcho(rec Record, o Outcome) Outcome {
	if o.Status != Found || o.Echo == nil {
		return o
	}
	block, lot := e.Keys.BlockLot(rec)
	check := func(what, want, got string) error {
		if got == "" || canon.SameIdentifier(want, got) {
			return nil
		}
		return fmt.Errorf("%s %q does not match record %q", what, got, want)
	}
	for _, err := range []error{
		check("submitted block", block, o.Echo.Block),
		check("submitted lot", lot, o.Echo.Lot),
		check("page block", block, o.Echo.PageBlock),
		check("page lot", lot, o.Echo.PageLot),
	} {
		if err != nil {
			bad := failed(o.Source, EchoMismatch, o.StatusCode, err.Error())
			bad.Echo = o.Echo
			bad.Raw = o.Raw
			return bad
		}
	}
	return o
}

// Merge builds the update set from Found outcomes. Fields already present on
// the record are never included, and when two sources return the same field
// the earlier one wins.
func Merge(rec Record, outcomes []Outcome) UpdateSet {
	u := UpdateSet{}
	for _, o := range outcomes {
		if o.Status != Found {
			continue
		}
		for k, v := range o.Fields {
			if rec.Has(k) || !present(v) {
				continue
			}
			if _, dup := u[k]; dup {
				continue
			}
			u[k] = v
		}
	}
	return u
}

// Enrich runs plan, execute and merge for one record.
func (e *Engine) Enrich(ctx context.Context, rec Record) (Plan, []Outcome, UpdateSet) {
	p := e.Plan(rec)
	if p.Empty() {
		return p, nil, UpdateSet{}
	}
	outcomes := e.Execute(ctx, p)
	return p, outcomes, Merge(rec, outcomes)
}
