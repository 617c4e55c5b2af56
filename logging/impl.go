package logging

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// errUnpairedKey stands in for the value of a trailing key passed to a "w" method.
var errUnpairedKey = errors.New("unpaired log key")

// callerSkip is the number of frames between captureCaller and the code that called a
// Logger method: captureCaller, newEntry, the level method.
const callerSkip = 3

type impl struct {
	name      string
	level     AtomicLevel
	inUTC     bool
	appenders []Appender
	// fields are attached to every entry, after the per call fields.
	fields []zapcore.Field
}

func newImpl(name string, level Level, inUTC bool, appenders ...Appender) *impl {
	return &impl{
		name:      name,
		level:     NewAtomicLevelAt(level),
		inUTC:     inUTC,
		appenders: appenders,
	}
}

func (imp *impl) AddAppender(appender Appender) {
	imp.appenders = append(imp.appenders, appender)
}

func (imp *impl) SetLevel(level Level) {
	imp.level.Set(level)
}

func (imp *impl) GetLevel() Level {
	return imp.level.Get()
}

func (imp *impl) Sublogger(subname string) Logger {
	child := imp.clone()
	if imp.name == "" {
		child.name = subname
	} else {
		child.name = imp.name + "." + subname
	}
	return child
}

func (imp *impl) WithFields(keysAndValues ...interface{}) Logger {
	child := imp.clone()
	child.fields = append(toFields(keysAndValues), imp.fields...)
	return child
}

// clone copies the logger with its own level. Appenders stay shared.
func (imp *impl) clone() *impl {
	return &impl{
		name:      imp.name,
		level:     NewAtomicLevelAt(imp.level.Get()),
		inUTC:     imp.inUTC,
		appenders: imp.appenders,
		fields:    imp.fields,
	}
}

func (imp *impl) Sync() error {
	var err error
	for _, appender := range imp.appenders {
		err = multierr.Append(err, appender.Sync())
	}
	return err
}

func (imp *impl) AsZap() *zap.SugaredLogger {
	config := NewZapLoggerConfig()
	config.Level = zap.NewAtomicLevelAt(imp.level.Get().AsZap())
	base := zap.Must(config.Build())

	// observers and other zap cores among the appenders keep receiving entries
	for _, appender := range imp.appenders {
		core, ok := appender.(zapcore.Core)
		if !ok {
			continue
		}
		base = base.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, core)
		}))
	}
	return base.Named(imp.name).With(imp.fields...).Sugar()
}

func (imp *impl) enabled(level Level) bool {
	return level >= imp.level.Get()
}

func (imp *impl) newEntry(level Level, msg string, fields []zapcore.Field) (zapcore.Entry, []zapcore.Field) {
	entry := zapcore.Entry{
		Level:      level.AsZap(),
		Time:       time.Now(),
		LoggerName: imp.name,
		Message:    msg,
		Caller:     captureCaller(),
	}
	if imp.inUTC {
		entry.Time = entry.Time.UTC()
	}
	if len(imp.fields) > 0 {
		fields = append(fields, imp.fields...)
	}
	return entry, fields
}

func (imp *impl) write(entry zapcore.Entry, fields []zapcore.Field) {
	for _, appender := range imp.appenders {
		if err := appender.Write(entry, fields); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

// toFields pairs up keysAndValues. A trailing key without a value is logged with an error
// in its place.
func toFields(keysAndValues []interface{}) []zapcore.Field {
	fields := make([]zapcore.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		var key string
		switch k := keysAndValues[i].(type) {
		case string:
			key = k
		case fmt.Stringer:
			key = k.String()
		default:
			key = fmt.Sprint(k)
		}
		if i+1 == len(keysAndValues) {
			fields = append(fields, zap.Any(key, errUnpairedKey))
			break
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}

func (imp *impl) Debug(args ...interface{}) {
	if imp.enabled(DEBUG) {
		imp.write(imp.newEntry(DEBUG, fmt.Sprint(args...), nil))
	}
}

func (imp *impl) Debugf(template string, args ...interface{}) {
	if imp.enabled(DEBUG) {
		imp.write(imp.newEntry(DEBUG, fmt.Sprintf(template, args...), nil))
	}
}

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	if imp.enabled(DEBUG) {
		imp.write(imp.newEntry(DEBUG, msg, toFields(keysAndValues)))
	}
}

func (imp *impl) Info(args ...interface{}) {
	if imp.enabled(INFO) {
		imp.write(imp.newEntry(INFO, fmt.Sprint(args...), nil))
	}
}

func (imp *impl) Infof(template string, args ...interface{}) {
	if imp.enabled(INFO) {
		imp.write(imp.newEntry(INFO, fmt.Sprintf(template, args...), nil))
	}
}

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	if imp.enabled(INFO) {
		imp.write(imp.newEntry(INFO, msg, toFields(keysAndValues)))
	}
}

func (imp *impl) Warn(args ...interface{}) {
	if imp.enabled(WARN) {
		imp.write(imp.newEntry(WARN, fmt.Sprint(args...), nil))
	}
}

func (imp *impl) Warnf(template string, args ...interface{}) {
	if imp.enabled(WARN) {
		imp.write(imp.newEntry(WARN, fmt.Sprintf(template, args...), nil))
	}
}

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	if imp.enabled(WARN) {
		imp.write(imp.newEntry(WARN, msg, toFields(keysAndValues)))
	}
}

func (imp *impl) Error(args ...interface{}) {
	if imp.enabled(ERROR) {
		imp.write(imp.newEntry(ERROR, fmt.Sprint(args...), nil))
	}
}

func (imp *impl) Errorf(template string, args ...interface{}) {
	if imp.enabled(ERROR) {
		imp.write(imp.newEntry(ERROR, fmt.Sprintf(template, args...), nil))
	}
}

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	if imp.enabled(ERROR) {
		imp.write(imp.newEntry(ERROR, msg, toFields(keysAndValues)))
	}
}

// Fatal logs at error level regardless of the configured level, then exits.
func (imp *impl) Fatal(args ...interface{}) {
	imp.write(imp.newEntry(ERROR, fmt.Sprint(args...), nil))
	os.Exit(1)
}

func (imp *impl) Fatalf(template string, args ...interface{}) {
	imp.write(imp.newEntry(ERROR, fmt.Sprintf(template, args...), nil))
	os.Exit(1)
}

func captureCaller() zapcore.EntryCaller {
	pc, file, line, ok := runtime.Caller(callerSkip)
	if !ok {
		return zapcore.EntryCaller{}
	}
	caller := zapcore.EntryCaller{Defined: true, PC: pc, File: file, Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		caller.Function = fn.Name()
	}
	return caller
}
