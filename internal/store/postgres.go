// Package store keeps the run ledger in Postgres: one row per run, one per
// record processed, and the raw payload each source returned.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/yourorg/vacants-enricher/internal/enrich"
	"github.com/yourorg/vacants-enricher/internal/hydrator"
)

type Store struct{ DB *sql.DB }

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Store{DB: db}, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.DB.PingContext(ctx) }

func (s *Store) Close() error { return s.DB.Close() }

func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
		`CREATE TABLE IF NOT EXISTS enrichment_runs (
            id           TEXT PRIMARY KEY,
            started_at   TIMESTAMPTZ NOT NULL,
            finished_at  TIMESTAMPTZ,
            total        INT NOT NULL DEFAULT 0,
            updated      INT NOT NULL DEFAULT 0,
            unchanged    INT NOT NULL DEFAULT 0,
            skipped      INT NOT NULL DEFAULT 0,
            failed       INT NOT NULL DEFAULT 0
        );`,
		`CREATE TABLE IF NOT EXISTS enrichment_results (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            run_id       TEXT NOT NULL REFERENCES enrichment_runs(id) ON DELETE CASCADE,
            record_id    TEXT NOT NULL,
            status       TEXT NOT NULL,
            fields       JSONB NOT NULL,
            sources      JSONB NOT NULL,
            skipped      JSONB NOT NULL,
            error        TEXT,
            started_at   TIMESTAMPTZ NOT NULL,
            duration_ms  BIGINT NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_results_run ON enrichment_results(run_id);`,
		`CREATE INDEX IF NOT EXISTS idx_results_record ON enrichment_results(record_id, started_at DESC);`,
		`CREATE TABLE IF NOT EXISTS source_snapshots (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            run_id         TEXT NOT NULL,
            record_id      TEXT NOT NULL,
            source         TEXT NOT NULL,
            status         TEXT NOT NULL,
            payload        TEXT NOT NULL,
            payload_sha256 TEXT NOT NULL,
            fetched_at     TIMESTAMPTZ NOT NULL DEFAULT now()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_record ON source_snapshots(record_id, source, fetched_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_sha ON source_snapshots(payload_sha256);`,
	}
	for _, q := range stmts {
		if _, err := s.DB.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) StartRun(ctx context.Context, runID string, started time.Time) error {
	if s.DB == nil {
		return errors.New("nil db")
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO enrichment_runs (id, started_at) VALUES ($1,$2) ON CONFLICT (id) DO NOTHING`,
		runID, started)
	return err
}

// RecordResult writes the record row and one snapshot per source payload in
// a single transaction.
func (s *Store) RecordResult(ctx context.Context, runID string, res hydrator.Result) (err error) {
	if s.DB == nil {
		return errors.New("nil db")
	}
	fields, sources, skipped, err := resultColumns(res)
	if err != nil {
		return err
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
        INSERT INTO enrichment_results (run_id, record_id, status, fields, sources, skipped, error, started_at, duration_ms)
        VALUES ($1,$2,$3,$4,$5,$6,NULLIF($7,''),$8,$9)`,
		runID, res.RecordID, string(res.Status), fields, sources, skipped, res.Error, res.Started, res.Duration.Milliseconds(),
	); err != nil {
		return fmt.Errorf("insert result %s: %w", res.RecordID, err)
	}

	for _, snap := range snapshots(res.Outcomes) {
		if _, err = tx.ExecContext(ctx, `
            INSERT INTO source_snapshots (run_id, record_id, source, status, payload, payload_sha256)
            VALUES ($1,$2,$3,$4,$5,$6)`,
			runID, res.RecordID, snap.Source, snap.Status, snap.Payload, snap.SHA256,
		); err != nil {
			return fmt.Errorf("insert snapshot %s/%s: %w", res.RecordID, snap.Source, err)
		}
	}
	return tx.Commit()
}

func (s *Store) FinishRun(ctx context.Context, rep hydrator.Report) error {
	if s.DB == nil {
		return errors.New("nil db")
	}
	_, err := s.DB.ExecContext(ctx, `
        INSERT INTO enrichment_runs (id, started_at, finished_at, total, updated, unchanged, skipped, failed)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (id)
        DO UPDATE SET finished_at=EXCLUDED.finished_at, total=EXCLUDED.total, updated=EXCLUDED.updated,
            unchanged=EXCLUDED.unchanged, skipped=EXCLUDED.skipped, failed=EXCLUDED.failed`,
		rep.RunID, rep.Started, rep.Finished, rep.Total, rep.Updated, rep.Unchanged, rep.Skipped, rep.Failed,
	)
	return err
}

// LastResult returns the newest ledger row for a record.
func (s *Store) LastResult(ctx context.Context, recordID string) (hydrator.Result, error) {
	var (
		res                      hydrator.Result
		status                   string
		fields, sources, skipped []byte
		errText                  sql.NullString
		ms                       int64
	)
	err := s.DB.QueryRowContext(ctx, `
        SELECT record_id, status, fields, sources, skipped, error, started_at, duration_ms
        FROM enrichment_results WHERE record_id=$1
        ORDER BY started_at DESC LIMIT 1`, recordID,
	).Scan(&res.RecordID, &status, &fields, &sources, &skipped, &errText, &res.Started, &ms)
	if err != nil {
		return res, err
	}
	res.Status = hydrator.RecordStatus(status)
	res.Error = errText.String
	res.Duration = time.Duration(ms) * time.Millisecond
	if err := json.Unmarshal(fields, &res.Fields); err != nil {
		return res, err
	}
	if err := json.Unmarshal(sources, &res.Sources); err != nil {
		return res, err
	}
	if err := json.Unmarshal(skipped, &res.Skipped); err != nil {
		return res, err
	}
	return res, nil
}

func resultColumns(res hydrator.Result) (fields, sources, skipped []byte, err error) {
	f, s, k := res.Fields, res.Sources, res.Skipped
	if f == nil {
		f = []string{}
	}
	if s == nil {
		s = []hydrator.SourceSummary{}
	}
	if k == nil {
		k = []enrich.Skip{}
	}
	if fields, err = json.Marshal(f); err != nil {
		return
	}
	if sources, err = json.Marshal(s); err != nil {
		return
	}
	skipped, err = json.Marshal(k)
	return
}

type snapshot struct {
	Source  string
	Status  string
	Payload string
	SHA256  string
}

// snapshots keeps every outcome that carried a raw payload, including
// failures, so a bad page can be inspected later.
func snapshots(outcomes []enrich.Outcome) []snapshot {
	var out []snapshot
	for _, o := range outcomes {
		if len(o.Raw) == 0 {
			continue
		}
		sum := sha256.Sum256(o.Raw)
		out = append(out, snapshot{
			Source:  o.Source,
			Status:  o.Status.String(),
			Payload: string(o.Raw),
			SHA256:  hex.EncodeToString(sum[:]),
		})
	}
	return out
}
