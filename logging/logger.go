package logging

import "go.uber.org/zap"

// Logger interface for logging to.
type Logger interface {
	Desugared

	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})

	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})

	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})

	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	Fatal(args ...interface{})
	Fatalf(template string, args ...interface{})

	// Sublogger returns a logger named `<parent>.<subname>` sharing the parent's appenders.
	Sublogger(subname string) Logger
	// WithFields returns a logger that appends the given key value pairs to every entry.
	WithFields(keysAndValues ...interface{}) Logger
	SetLevel(level Level)
	GetLevel() Level
	AddAppender(appender Appender)
	Sync() error
}

// Desugared is the escape hatch to a plain zap logger for libraries that want one.
type Desugared interface {
	AsZap() *zap.SugaredLogger
}
