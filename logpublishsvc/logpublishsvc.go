// Package logpublishsvc forwards log entries to the portal so that operators
// can follow what the server does without shell access.
package logpublishsvc

import (
	"context"
	"github.com/lefinal/pug-server/event"
	"github.com/lefinal/pug-server/logging"
	"github.com/lefinal/pug-server/portal"
	"github.com/lefinal/pug-server/services"
	"go.uber.org/zap"
	"time"
)

var topicLogBatch = portal.BaseTopic.Join("log", "batch")

const (
	// flushInterval is the maximum time an entry waits in a batch.
	flushInterval = 250 * time.Millisecond
	// maxBatchSize forces a flush when reached.
	maxBatchSize = 64
)

type logPublishService struct {
	logger       *zap.Logger
	portal       portal.Portal
	logEntriesIn <-chan logging.LogEntry
}

// New creates a services.Service that reads log entries from the given channel
// and publishes them in batches.
func New(logger *zap.Logger, portal portal.Portal, logEntriesIn <-chan logging.LogEntry) services.Service {
	return &logPublishService{
		logger:       logger,
		portal:       portal,
		logEntriesIn: logEntriesIn,
	}
}

// Run until the context is done or the entry channel is closed. Pending
// entries are flushed when the channel closes.
func (s *logPublishService) Run(ctx context.Context) error {
	flush := time.NewTicker(flushInterval)
	defer flush.Stop()
	batch := make([]event.NextLogEntryEvent, 0, maxBatchSize)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-flush.C:
			batch = s.publish(ctx, batch)
		case entry, more := <-s.logEntriesIn:
			if !more {
				s.publish(ctx, batch)
				return nil
			}
			batch = append(batch, logEntryEvent(entry))
			if len(batch) >= maxBatchSize {
				batch = s.publish(ctx, batch)
			}
		}
	}
}

// publish the given batch if not empty and return a fresh one.
func (s *logPublishService) publish(ctx context.Context, batch []event.NextLogEntryEvent) []event.NextLogEntryEvent {
	if len(batch) == 0 {
		return batch
	}
	s.portal.Publish(ctx, topicLogBatch, event.LogBatchEvent{Entries: batch})
	return make([]event.NextLogEntryEvent, 0, maxBatchSize)
}

func logEntryEvent(entry logging.LogEntry) event.NextLogEntryEvent {
	return event.NextLogEntryEvent{
		Time:       entry.Time,
		Message:    entry.Message,
		Level:      entry.Level.String(),
		LoggerName: entry.LoggerName,
		Fields:     entry.Fields,
	}
}
