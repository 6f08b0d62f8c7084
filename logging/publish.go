package logging

import (
	"context"
	"go.uber.org/zap/zapcore"
	"time"
)

// publishBufferSize is the amount of log entries to buffer before dropping new
// ones. Entries are dropped instead of blocking the caller.
const publishBufferSize = 256

// LogEntry is a log entry that can be published.
type LogEntry struct {
	// Time is the timestamp the entry was created.
	Time time.Time
	// Message is the log message.
	Message string
	// Level of the entry.
	Level zapcore.Level
	// LoggerName is the name of the logger that created the entry.
	LoggerName string
	// Fields holds all fields of the entry.
	Fields map[string]interface{}
}

// publishCore is a zapcore.Core that forwards entries to a channel.
type publishCore struct {
	zapcore.LevelEnabler
	// fields are the fields added via With.
	fields []zapcore.Field
	// lifetime stops forwarding when done.
	lifetime context.Context
	// publish is where entries are forwarded to.
	publish chan<- LogEntry
}

// NewPublishCore creates a zapcore.Core that forwards all entries with at least
// the given level to the returned channel until the given context.Context is
// done. If the channel is full, entries are dropped.
func NewPublishCore(lifetime context.Context, level zapcore.LevelEnabler) (zapcore.Core, <-chan LogEntry) {
	publish := make(chan LogEntry, publishBufferSize)
	return &publishCore{
		LevelEnabler: level,
		lifetime:     lifetime,
		publish:      publish,
	}, publish
}

func (c *publishCore) With(fields []zapcore.Field) zapcore.Core {
	combined := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	combined = append(combined, c.fields...)
	combined = append(combined, fields...)
	return &publishCore{
		LevelEnabler: c.LevelEnabler,
		fields:       combined,
		lifetime:     c.lifetime,
		publish:      c.publish,
	}
}

func (c *publishCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *publishCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, field := range c.fields {
		field.AddTo(enc)
	}
	for _, field := range fields {
		field.AddTo(enc)
	}
	select {
	case <-c.lifetime.Done():
	case c.publish <- LogEntry{
		Time:       entry.Time,
		Message:    entry.Message,
		Level:      entry.Level,
		LoggerName: entry.LoggerName,
		Fields:     enc.Fields,
	}:
	default:
		// Drop.
	}
	return nil
}

func (c *publishCore) Sync() error {
	return nil
}
