package ports

import "context"

// NopLogger discards every entry. It is the default logger of the domain
// services.
type NopLogger struct {
	level Level
}

// NewNopLogger returns a logger that writes nothing.
func NewNopLogger() *NopLogger {
	return &NopLogger{level: LevelInfo}
}

func (*NopLogger) Debug(context.Context, string, ...Field) {}
func (*NopLogger) Info(context.Context, string, ...Field)  {}
func (*NopLogger) Warn(context.Context, string, ...Field)  {}
func (*NopLogger) Error(context.Context, string, ...Field) {}

// With returns the receiver; there are no fields to keep.
func (l *NopLogger) With(...Field) Logger {
	return l
}

func (l *NopLogger) Level() Level {
	return l.level
}

func (l *NopLogger) SetLevel(level Level) {
	l.level = level
}

var _ Logger = (*NopLogger)(nil)
