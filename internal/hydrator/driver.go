// Package hydrator drives enrichment over the whole record store: one record
// at a time, in store order, with a fixed pause between records.
package hydrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourorg/vacants-enricher/internal/enrich"
	"github.com/yourorg/vacants-enricher/internal/events"
)

// Store is the record store gateway.
type Store interface {
	ListAll(ctx context.Context) ([]enrich.Record, error)
	Get(ctx context.Context, id string) (enrich.Record, error)
	Patch(ctx context.Context, id string, u enrich.UpdateSet) error
}

// Ledger persists run history. Failures to write it are logged, never fatal.
type Ledger interface {
	StartRun(ctx context.Context, runID string, started time.Time) error
	RecordResult(ctx context.Context, runID string, res Result) error
	FinishRun(ctx context.Context, rep Report) error
}

// Locker guards against two runs writing the same store at once.
type Locker interface {
	Acquire(ctx context.Context, name string) (release func(), err error)
}

// ReportSink keeps the most recent run report where other processes can read it.
type ReportSink interface {
	SaveReport(ctx context.Context, rep Report) error
}

type Config struct {
	// Pause is observed between records whatever their outcome.
	Pause         time.Duration
	Interval      time.Duration
	RecordTimeout time.Duration
}

type Driver struct {
	Store   Store
	Engine  *enrich.Engine
	Ledger  Ledger
	Locker  Locker
	Reports ReportSink
	Pub     events.Publisher
	Logger  *zap.Logger
	Config  Config
	// Sleep waits between records; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error

	once sync.Once
	// sem admits one run or single-record enrichment at a time.
	sem chan struct{}

	mu     sync.Mutex
	latest *Report
}

// ErrRunInProgress is returned by RunOnce while another run or record
// enrichment holds the driver.
var ErrRunInProgress = errors.New("enrichment already running")

// runLock is the cross-process lock name shared by full runs and
// single-record enrichments.
const runLock = "run"

func (d *Driver) log() *zap.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return zap.NewNop()
}

func (d *Driver) validate() error {
	if d == nil {
		return errors.New("nil driver")
	}
	if d.Store == nil {
		return errors.New("driver missing record store")
	}
	if d.Engine == nil || len(d.Engine.Sources) == 0 {
		return errors.New("driver requires an engine with at least one source")
	}
	if d.Config.Pause < 0 {
		return fmt.Errorf("negative pause %s", d.Config.Pause)
	}
	d.once.Do(func() {
		if d.Config.RecordTimeout <= 0 {
			d.Config.RecordTimeout = 2 * time.Minute
		}
		if d.Sleep == nil {
			d.Sleep = sleepCtx
		}
		d.sem = make(chan struct{}, 1)
	})
	return nil
}

// tryEnter takes the driver without waiting.
func (d *Driver) tryEnter() bool {
	select {
	case d.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

// enter waits for the driver until ctx is done.
func (d *Driver) enter(ctx context.Context) error {
	select {
	case d.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Driver) leave() { <-d.sem }

// Busy reports whether a run or record enrichment is in progress.
func (d *Driver) Busy() bool {
	if d.validate() != nil {
		return false
	}
	return len(d.sem) > 0
}

func sleepCtx(ctx context.Context, dur time.Duration) error {
	if dur <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(dur):
		return nil
	}
}

// Run repeats RunOnce every Interval until ctx is done. A zero interval runs
// once.
func (d *Driver) Run(ctx context.Context) error {
	if err := d.validate(); err != nil {
		return err
	}
	interval := d.Config.Interval
	if interval <= 0 {
		_, err := d.RunOnce(ctx)
		return err
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	d.log().Info("enrichment loop starting", zap.Duration("interval", interval))
	d.runScheduled(ctx)
	for {
		select {
		case <-ctx.Done():
			d.log().Info("enrichment loop stopping", zap.Error(ctx.Err()))
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			d.runScheduled(ctx)
		}
	}
}

func (d *Driver) runScheduled(ctx context.Context) {
	_, err := d.RunOnce(ctx)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
	case errors.Is(err, ErrRunInProgress):
		d.log().Info("scheduled run skipped, another run is in progress")
	default:
		d.log().Error("enrichment run failed", zap.Error(err))
	}
}

// RunOnce enriches every record currently in the store. Per-record failures
// are recorded in the report and never stop the run; the returned error is
// only set when the run could not start or was cancelled.
func (d *Driver) RunOnce(ctx context.Context) (Report, error) {
	if err := d.validate(); err != nil {
		return Report{}, err
	}
	if !d.tryEnter() {
		return Report{}, ErrRunInProgress
	}
	defer d.leave()
	release, err := d.acquire(ctx, runLock)
	if err != nil {
		return Report{}, err
	}
	defer release()

	rep := d.startReport(ctx)
	records, err := d.Store.ListAll(ctx)
	if err != nil {
		d.finishReport(ctx, &rep)
		return rep, fmt.Errorf("list records: %w", err)
	}
	d.log().Info("enrichment run started", zap.String("run_id", rep.RunID), zap.Int("records", len(records)))

	for i, rec := range records {
		if ctx.Err() != nil {
			err = ctx.Err()
			break
		}
		d.record(ctx, &rep, d.processRecord(ctx, rec))
		if i < len(records)-1 {
			if err = d.Sleep(ctx, d.Config.Pause); err != nil {
				break
			}
		}
	}
	d.finishReport(ctx, &rep)
	return rep, err
}

// RunRecord enriches a single record by id. It waits for a run in progress in
// this process to finish first.
func (d *Driver) RunRecord(ctx context.Context, id string) (Result, error) {
	if err := d.validate(); err != nil {
		return Result{}, err
	}
	if err := d.enter(ctx); err != nil {
		return Result{}, err
	}
	defer d.leave()
	release, err := d.acquire(ctx, runLock)
	if err != nil {
		return Result{}, err
	}
	defer release()

	rec, err := d.Store.Get(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("get record %s: %w", id, err)
	}
	rep := d.startReport(ctx)
	res := d.processRecord(ctx, rec)
	d.record(ctx, &rep, res)
	d.finishReport(ctx, &rep)
	return res, nil
}

// Preview plans a record without calling any source.
func (d *Driver) Preview(ctx context.Context, id string) (enrich.Plan, error) {
	if err := d.validate(); err != nil {
		return enrich.Plan{}, err
	}
	rec, err := d.Store.Get(ctx, id)
	if err != nil {
		return enrich.Plan{}, fmt.Errorf("get record %s: %w", id, err)
	}
	return d.Engine.Plan(rec), nil
}

// Latest returns the report of the last finished run in this process.
func (d *Driver) Latest() (Report, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.latest == nil {
		return Report{}, false
	}
	return *d.latest, true
}

func (d *Driver) acquire(ctx context.Context, name string) (func(), error) {
	if d.Locker == nil {
		return func() {}, nil
	}
	release, err := d.Locker.Acquire(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("acquire %s lock: %w", name, err)
	}
	return release, nil
}

func (d *Driver) startReport(ctx context.Context) Report {
	rep := Report{RunID: uuid.NewString(), Started: time.Now().UTC()}
	if d.Ledger != nil {
		if err := d.Ledger.StartRun(ctx, rep.RunID, rep.Started); err != nil {
			d.log().Warn("ledger start failed", zap.String("run_id", rep.RunID), zap.Error(err))
		}
	}
	return rep
}

func (d *Driver) record(ctx context.Context, rep *Report, res Result) {
	rep.add(res)
	fields := []zap.Field{
		zap.String("run_id", rep.RunID),
		zap.String("record_id", res.RecordID),
		zap.String("status", string(res.Status)),
		zap.Strings("fields", res.Fields),
		zap.Duration("took", res.Duration),
	}
	for _, s := range res.Sources {
		fields = append(fields, zap.String("source."+s.Source, s.Status))
	}
	switch res.Status {
	case StatusFailed:
		d.log().Warn("record failed", append(fields, zap.String("error", res.Error))...)
	default:
		d.log().Info("record processed", fields...)
	}
	if d.Ledger != nil {
		if err := d.Ledger.RecordResult(ctx, rep.RunID, res); err != nil {
			d.log().Warn("ledger write failed", zap.String("record_id", res.RecordID), zap.Error(err))
		}
	}
}

func (d *Driver) finishReport(ctx context.Context, rep *Report) {
	rep.Finished = time.Now().UTC()
	d.log().Info("enrichment run finished",
		zap.String("run_id", rep.RunID),
		zap.Int("total", rep.Total),
		zap.Int("updated", rep.Updated),
		zap.Int("unchanged", rep.Unchanged),
		zap.Int("skipped", rep.Skipped),
		zap.Int("failed", rep.Failed),
	)
	// bookkeeping outlives a cancelled run
	bg := context.WithoutCancel(ctx)
	if d.Ledger != nil {
		if err := d.Ledger.FinishRun(bg, *rep); err != nil {
			d.log().Warn("ledger finish failed", zap.String("run_id", rep.RunID), zap.Error(err))
		}
	}
	if d.Reports != nil {
		if err := d.Reports.SaveReport(bg, *rep); err != nil {
			d.log().Warn("report save failed", zap.String("run_id", rep.RunID), zap.Error(err))
		}
	}
	d.mu.Lock()
	cp := *rep
	d.latest = &cp
	d.mu.Unlock()
}

// processRecord runs one record end to end. Anything that goes wrong,
// including a panic inside a source, becomes a failed Result.
func (d *Driver) processRecord(ctx context.Context, rec enrich.Record) (res Result) {
	res = Result{RecordID: rec.ID, Started: time.Now().UTC()}
	defer func() {
		if p := recover(); p != nil {
			res.Status = StatusFailed
			res.Error = fmt.Sprintf("panic: %v", p)
			res.Fields = nil
		}
		res.Duration = time.Since(res.Started)
	}()

	recCtx, cancel := context.WithTimeout(ctx, d.Config.RecordTimeout)
	defer cancel()

	plan, outcomes, update := d.Engine.Enrich(recCtx, rec)
	res.Skipped = plan.Skipped
	res.Outcomes = outcomes
	res.Sources = summarize(outcomes)
	if plan.Empty() {
		res.Status = StatusSkipped
		return res
	}
	if update.Empty() {
		res.Status = StatusUnchanged
		return res
	}
	if err := d.Store.Patch(recCtx, rec.ID, update); err != nil {
		res.Status = StatusFailed
		res.Error = err.Error()
		return res
	}
	res.Status = StatusUpdated
	res.Fields = update.Fields()
	if d.Pub != nil {
		d.Pub.PublishRecordEnriched(ctx, events.RecordEnriched{RecordID: rec.ID, Fields: res.Fields})
	}
	return res
}
