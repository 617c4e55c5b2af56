// Package logging contains the leveled, structured logger used by every weedpipe component.
package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// DefaultTimeFormatStr is the timestamp layout used by the console appenders.
const DefaultTimeFormatStr = "2006-01-02T15:04:05.000Z0700"

// consoleEncoderConfig is the tab separated layout shared by every console appender.
func consoleEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.FunctionKey = zapcore.OmitKey
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout(DefaultTimeFormatStr)
	cfg.EncodeDuration = zapcore.StringDurationEncoder
	return cfg
}

// NewZapLoggerConfig returns the config behind Logger.AsZap: console encoding to stdout at
// Info+, without stacktraces.
func NewZapLoggerConfig() zap.Config {
	return zap.Config{
		Level:             zap.NewAtomicLevelAt(zap.InfoLevel),
		Encoding:          "console",
		EncoderConfig:     consoleEncoderConfig(),
		DisableStacktrace: true,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}
}

// NewLogger returns a new logger that outputs Info+ logs to stdout in UTC.
func NewLogger(name string) Logger {
	return newImpl(name, INFO, true, NewStdoutAppender())
}

// NewDebugLogger returns a new logger that outputs Debug+ logs to stdout in UTC.
func NewDebugLogger(name string) Logger {
	return newImpl(name, DEBUG, true, NewStdoutAppender())
}

// NewBlankLogger returns a Debug+ logger in UTC with no appenders. Callers add their own.
func NewBlankLogger(name string) Logger {
	return newImpl(name, DEBUG, true)
}

// NewTestLogger returns a new logger that outputs Debug+ logs to the test's log in local time.
func NewTestLogger(tb testing.TB) Logger {
	logger, _ := NewObservedTestLogger(tb)
	return logger
}

// NewObservedTestLogger is like NewTestLogger but also records entries in memory so tests can
// assert on what was logged.
func NewObservedTestLogger(tb testing.TB) (Logger, *observer.ObservedLogs) {
	core, observed := observer.New(zapcore.DebugLevel)
	return newImpl("", DEBUG, false, NewTestAppender(tb), core), observed
}
