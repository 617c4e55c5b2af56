package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

// fieldEncoder renders structured fields as a single JSON object, in call order.
var fieldEncoder = zapcore.EncoderConfig{SkipLineEnding: true}

type testAppender struct {
	tb testing.TB
}

// NewTestAppender returns an appender that routes entries through tb.Log, so each line is
// attributed to the test that produced it even when tests run in parallel.
func NewTestAppender(tb testing.TB) Appender {
	return &testAppender{tb}
}

// Write logs one tab separated line: time, level, logger name, caller, message and, when
// present, the fields as JSON.
func (tapp *testAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	tapp.tb.Helper()
	var line strings.Builder
	line.WriteString(entry.Time.Format(DefaultTimeFormatStr))
	for _, part := range []string{entry.Level.CapitalString(), entry.LoggerName} {
		line.WriteByte('\t')
		line.WriteString(part)
	}
	if entry.Caller.Defined {
		line.WriteByte('\t')
		line.WriteString(entry.Caller.TrimmedPath())
	}
	line.WriteByte('\t')
	line.WriteString(entry.Message)

	if len(fields) > 0 {
		buf, err := zapcore.NewJSONEncoder(fieldEncoder).EncodeEntry(zapcore.Entry{}, fields)
		if err != nil {
			tapp.tb.Log(line.String())
			return err
		}
		line.WriteByte('\t')
		line.Write(buf.Bytes())
		buf.Free()
	}
	tapp.tb.Log(line.String())
	return nil
}

func (tapp *testAppender) Sync() error {
	return nil
}
