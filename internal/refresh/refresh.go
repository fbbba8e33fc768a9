// Package refresh runs on-demand single-record enrichments in the background.
// A record already queued or in flight is not queued again.
package refresh

import (
	"context"
	"sync"
	"time"
)

type Job struct {
	RecordID string
}

type Refresher struct {
	ch      chan Job
	inFly   sync.Map // record id -> struct{}
	Do      func(ctx context.Context, j Job)
	Timeout time.Duration
	wg      sync.WaitGroup

	// mu guards closed and the send on ch against Close.
	mu     sync.RWMutex
	closed bool
}

// New starts workerCount workers. Each job runs under a context derived from
// ctx, so cancelling ctx cancels the jobs in flight. The enricher uses a
// single worker so that on-demand lookups keep the same pacing as a run.
func New(ctx context.Context, capacity int, workerCount int, do func(ctx context.Context, j Job)) *Refresher {
	if capacity <= 0 {
		capacity = 256
	}
	if workerCount <= 0 {
		workerCount = 1
	}
	r := &Refresher{ch: make(chan Job, capacity), Do: do, Timeout: 2 * time.Minute}
	r.wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go r.worker(ctx)
	}
	return r
}

// Enqueue reports whether the job was accepted. It is rejected when the
// record is already pending, the queue is full, or the refresher is closed.
func (r *Refresher) Enqueue(j Job) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return false
	}
	if _, exists := r.inFly.LoadOrStore(j.RecordID, struct{}{}); exists {
		return false
	}
	select {
	case r.ch <- j:
		return true
	default:
		// drop if saturated
		r.inFly.Delete(j.RecordID)
		return false
	}
}

// Close stops accepting jobs and waits for queued ones to finish.
func (r *Refresher) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.ch)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Refresher) worker(base context.Context) {
	defer r.wg.Done()
	for j := range r.ch {
		ctx, cancel := context.WithTimeout(base, r.Timeout)
		func() {
			defer func() {
				r.inFly.Delete(j.RecordID)
				cancel()
			}()
			if r.Do != nil {
				r.Do(ctx, j)
			}
		}()
	}
}
