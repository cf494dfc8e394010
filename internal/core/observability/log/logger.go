package log

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ Log = (*Logger)(nil)

// Logger writes JSON entries through zap.
type Logger struct {
	zap *zap.Logger
}

// New builds a logger writing ISO8601-stamped JSON to stderr at level and above.
func New(level Level) *Logger {
	encoder := zap.NewProductionEncoderConfig()
	encoder.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoder), zapcore.Lock(os.Stderr), level.zap())
	return FromZap(zap.New(core))
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return FromZap(zap.NewNop())
}

// FromZap wraps an existing zap logger.
func FromZap(z *zap.Logger) *Logger {
	return &Logger{zap: z}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.zap.Debug(msg, zapFields(fields)...) }

func (l *Logger) Info(msg string, fields ...Field) { l.zap.Info(msg, zapFields(fields)...) }

func (l *Logger) Warn(msg string, fields ...Field) { l.zap.Warn(msg, zapFields(fields)...) }

func (l *Logger) Error(msg string, fields ...Field) { l.zap.Error(msg, zapFields(fields)...) }

func (l *Logger) With(fields ...Field) Log {
	return FromZap(l.zap.With(zapFields(fields)...))
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

func zapFields(fields []Field) []zap.Field {
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		out[i] = f.zap
	}
	return out
}
