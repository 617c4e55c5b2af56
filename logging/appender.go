package logging

import (
	"io"
	"os"

	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Appender is an output for log entries. This is a subset of the `zapcore.Core` interface, so any
// zap core (such as the test observer) can be used as an appender.
type Appender interface {
	// Write submits a structured log entry to the appender for logging.
	Write(zapcore.Entry, []zapcore.Field) error
	// Sync is for signaling that any buffered logs to `Write` should be flushed. E.g: at shutdown.
	Sync() error
}

// ConsoleAppender will create human readable (tab separated) logs from log entries.
type ConsoleAppender struct {
	io.Writer
	encoder zapcore.Encoder
}

// NewStdoutAppender creates a new appender that writes human readable colored logs to stdout.
func NewStdoutAppender() ConsoleAppender {
	return NewWriterAppender(os.Stdout)
}

// NewWriterAppender creates a new appender that writes human readable logs to the given writer.
// Colors are left out so the output is stable for files and tests.
func NewWriterAppender(writer io.Writer) ConsoleAppender {
	encoderConfig := consoleEncoderConfig()
	if writer != os.Stdout {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	return ConsoleAppender{writer, zapcore.NewConsoleEncoder(encoderConfig)}
}

// Write outputs the log entry to the underlying stream.
func (appender ConsoleAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	buf, err := appender.encoder.EncodeEntry(entry, fields)
	if err != nil {
		return err
	}
	defer buf.Free()

	_, err = appender.Writer.Write(buf.Bytes())
	return err
}

// Sync is a no-op.
func (appender ConsoleAppender) Sync() error {
	return nil
}

// FileAppender writes the console format to a file that is rotated once it grows past
// MaxSizeMB, keeping a few compressed backups.
type FileAppender struct {
	ConsoleAppender
	file *lumberjack.Logger
}

// MaxSizeMB is the size at which log files are rotated.
const MaxSizeMB = 64

// NewFileAppender creates an appender writing to path. Parent directories are created on
// first write.
func NewFileAppender(path string) *FileAppender {
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    MaxSizeMB,
		MaxBackups: 3,
		Compress:   true,
	}
	return &FileAppender{ConsoleAppender: NewWriterAppender(file), file: file}
}

// Close closes the current log file.
func (appender *FileAppender) Close() error {
	return appender.file.Close()
}
