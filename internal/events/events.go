// Package events carries in-process notifications about records that were
// written back to the store.
package events

import (
	"context"
)

// RecordEnriched is published after a patch for the record succeeded.
type RecordEnriched struct {
	RecordID string
	Fields   []string
}

type Publisher interface {
	PublishRecordEnriched(ctx context.Context, evt RecordEnriched)
	SubscribeRecordEnriched() <-chan RecordEnriched
}

type inMemory struct{ ch chan RecordEnriched }

// NewInMemory returns a buffered publisher. Events are dropped, not blocked
// on, when the buffer is full.
func NewInMemory(buffer int) Publisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &inMemory{ch: make(chan RecordEnriched, buffer)}
}

func (m *inMemory) PublishRecordEnriched(_ context.Context, evt RecordEnriched) {
	select {
	case m.ch <- evt:
	default:
	}
}

func (m *inMemory) SubscribeRecordEnriched() <-chan RecordEnriched { return m.ch }
