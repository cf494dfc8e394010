package log

import (
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the structured logger handed to every component.
type Log interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	With(fields ...Field) Log
}

type Level int8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// ParseLevel maps the usual level names onto Level.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "fatal":
		return LevelFatal, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

func (l Level) String() string {
	if l < LevelDebug || l > LevelFatal {
		return fmt.Sprintf("level(%d)", int8(l))
	}
	return l.zap().String()
}

func (l Level) zap() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	case LevelFatal:
		return zapcore.FatalLevel
	}
	return zapcore.InfoLevel
}

// Field is a typed key/value pair attached to an entry.
type Field struct {
	zap zap.Field
}

func Duration(key string, val time.Duration) Field { return Field{zap.Duration(key, val)} }

func Float64(key string, val float64) Field { return Field{zap.Float64(key, val)} }

func Int(key string, val int) Field { return Field{zap.Int(key, val)} }

func String(key string, val string) Field { return Field{zap.String(key, val)} }

// Stringer logs val.String(), evaluated only when the entry is written.
func Stringer(key string, val fmt.Stringer) Field { return Field{zap.Stringer(key, val)} }

func Uint64(key string, val uint64) Field { return Field{zap.Uint64(key, val)} }

// Vec3 logs a vector as a three element array.
func Vec3(key string, val mgl64.Vec3) Field {
	return Field{zap.Float64s(key, []float64{val[0], val[1], val[2]})}
}

func Error(err error) Field { return Field{zap.NamedError("error", err)} }
