package observability

import (
	"go.uber.org/zap"
)

// ZapLogger adapts a zap.Logger to the Logger facade.
type ZapLogger struct {
	l *zap.Logger
}

// NewZapLogger builds a zap-backed logger. Development mode enables console
// encoding and debug level.
func NewZapLogger(development bool) (*ZapLogger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if development {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return &ZapLogger{l: l}, nil
}

// WrapZap adapts an existing zap logger, useful in tests.
func WrapZap(l *zap.Logger) *ZapLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return &ZapLogger{l: l}
}

// Sync flushes buffered log entries.
func (z *ZapLogger) Sync() error {
	return z.l.Sync()
}

// Debug logs at debug level.
func (z *ZapLogger) Debug(msg string, fields ...Field) {
	z.l.Debug(msg, toZap(fields)...)
}

// Info logs at info level.
func (z *ZapLogger) Info(msg string, fields ...Field) {
	z.l.Info(msg, toZap(fields)...)
}

// Warn logs at warning level.
func (z *ZapLogger) Warn(msg string, fields ...Field) {
	z.l.Warn(msg, toZap(fields)...)
}

// Error logs at error level.
func (z *ZapLogger) Error(msg string, fields ...Field) {
	z.l.Error(msg, toZap(fields)...)
}

func toZap(fields []Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}
