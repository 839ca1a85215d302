// Package logger provides the structured logger shared by every studysync component.
//
// It wraps zap with configurable level, encoding and output paths, while keeping
// the Logger interface satisfied by a plain *zap.Logger so tests can pass
// zaptest/observer loggers directly.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger defines the interface for logging operations
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Sync() error
}

// New creates a new logger with the given configuration.
// A nil config uses DefaultConfig; empty fields are merged with defaults.
func New(cfg *Config) (Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg = cfg.MergeDefaults()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, ErrInvalidLevel(cfg.Level, err)
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Encoding == "console",
		Encoding:         cfg.Encoding,
		EncoderConfig:    encoderConfig(),
		OutputPaths:      cfg.OutputPaths,
		ErrorOutputPaths: cfg.ErrorOutputPaths,
	}

	l, err := zapConfig.Build(zap.AddStacktrace(zapcore.DPanicLevel))
	if err != nil {
		return nil, ErrBuildLogger(err)
	}
	l = l.Named(cfg.Name)
	SetGlobal(l)
	return l, nil
}

// Nop returns a logger that discards everything
func Nop() Logger {
	return zap.NewNop()
}

// Named returns a child logger scoped to a component; a nil l uses Global.
// Loggers that are not backed by zap are returned unchanged.
func Named(l Logger, name string) Logger {
	l = orGlobal(l)
	if zl, ok := l.(*zap.Logger); ok {
		return zl.Named(name)
	}
	return l
}

// With returns a child logger that always carries the given fields.
// Loggers that are not backed by zap are returned unchanged.
func With(l Logger, fields ...zap.Field) Logger {
	l = orGlobal(l)
	if zl, ok := l.(*zap.Logger); ok {
		return zl.With(fields...)
	}
	return l
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}
