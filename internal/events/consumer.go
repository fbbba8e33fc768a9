package events

import (
	"context"

	"go.uber.org/zap"
)

// LogConsumer drains RecordEnriched events into the log.
type LogConsumer struct {
	Pub    Publisher
	Logger *zap.Logger
}

func (c *LogConsumer) Run(ctx context.Context) {
	sub := c.Pub.SubscribeRecordEnriched()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-sub:
			c.Logger.Info("record.enriched",
				zap.String("record_id", evt.RecordID),
				zap.Strings("fields", evt.Fields),
			)
		}
	}
}
