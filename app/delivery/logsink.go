package delivery

import (
	"context"
	"log/slog"
)

// LogSink writes messages to the application log. Used when no delivery
// channel is configured.
type LogSink struct{}

var _ Sink = (*LogSink)(nil)

func NewLogSink() *LogSink {
	return &LogSink{}
}

func (l *LogSink) Deliver(_ context.Context, message string, attachment []byte) error {
	slog.Info("Delivery channel not configured, logging item", "message", message,
		"attachment_bytes", len(attachment))
	return nil
}
