package publisher

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/okian/codegolf/pkg/logger"
)

// loggerAdapter routes watermill logs through pkg/logger.
type loggerAdapter struct {
	l logger.Logger
}

// NewLoggerAdapter wraps l as a watermill.LoggerAdapter.
func NewLoggerAdapter(l logger.Logger) watermill.LoggerAdapter {
	return &loggerAdapter{l: l}
}

func toFields(fields watermill.LogFields) []logger.Field {
	out := make([]logger.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, logger.Any(k, v))
	}
	return out
}

func (a *loggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.l.Error(context.Background(), msg, append(toFields(fields), logger.Error(err))...)
}

func (a *loggerAdapter) Info(msg string, fields watermill.LogFields) {
	a.l.Info(context.Background(), msg, toFields(fields)...)
}

func (a *loggerAdapter) Debug(msg string, fields watermill.LogFields) {
	a.l.Debug(context.Background(), msg, toFields(fields)...)
}

// Trace maps to debug; pkg/logger has no finer level.
func (a *loggerAdapter) Trace(msg string, fields watermill.LogFields) {
	a.l.Debug(context.Background(), msg, toFields(fields)...)
}

func (a *loggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &loggerAdapter{l: a.l.With(toFields(fields)...)}
}
