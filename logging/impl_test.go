package logging

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"testing"

	"go.viam.com/test"
)

// assertLogMatches will fuzzy match log lines. Notably, this checks the time format, but ignores
// the exact time. And it expects a match on the filename, but the exact line number can be wrong.
func assertLogMatches(t *testing.T, actual *bytes.Buffer, expected string) {
	t.Helper()

	output, err := actual.ReadString('\n')
	test.That(t, err, test.ShouldBeNil)

	actualTrimmed := strings.TrimSuffix(output, "\n")
	actualParts := strings.Split(actualTrimmed, "\t")
	expectedParts := strings.Split(expected, "\t")
	// Use the length of the first string as a weak verification of checking that the result looks like a date.
	test.That(t, len(actualParts[0]), test.ShouldEqual, len(expectedParts[0]))
	// Log level.
	test.That(t, actualParts[1], test.ShouldEqual, expectedParts[1])

	// Filename:line_number.
	actualFilename, actualLineNumber, found := strings.Cut(actualParts[2], ":")
	test.That(t, found, test.ShouldBeTrue)
	expectedFilename, _, found := strings.Cut(expectedParts[2], ":")
	test.That(t, found, test.ShouldBeTrue)
	test.That(t, actualFilename, test.ShouldEqual, expectedFilename)
	_, err = strconv.Atoi(actualLineNumber)
	test.That(t, err, test.ShouldBeNil)

	// Log message.
	test.That(t, actualParts[3], test.ShouldEqual, expectedParts[3])

	// Structured logging with the "w" API has an extra tab delimited output.
	test.That(t, len(actualParts), test.ShouldEqual, len(expectedParts))
	if len(actualParts) == 4 {
		return
	}

	expectedMap := make(map[string]any)
	test.That(t, json.Unmarshal([]byte(expectedParts[4]), &expectedMap), test.ShouldBeNil)

	actualMap := make(map[string]any)
	test.That(t, json.Unmarshal([]byte(actualParts[4]), &actualMap), test.ShouldBeNil)

	test.That(t, actualMap, test.ShouldResemble, expectedMap)
}

func TestConsoleOutputFormat(t *testing.T) {
	notStdout := &bytes.Buffer{}
	logger := newImpl("", DEBUG, true, NewWriterAppender(notStdout))

	logger.Info("impl Info log")
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459Z	INFO	logging/impl_test.go:58	impl Info log`)

	logger.Infof("impl %s log", "infof")
	assertLogMatches(t, notStdout,
		`2023-10-30T09:45:20.764Z	INFO	logging/impl_test.go:62	impl infof log`)

	logger.Infow("wrote cloud", "frame", "frame_00000042", "points", 1234)
	assertLogMatches(t, notStdout,
		`2023-10-30T13:19:45.806Z	INFO	logging/impl_test.go:66	wrote cloud	{"frame":"frame_00000042","points":1234}`)

	logger.Warnw("unpaired", "dangling")
	assertLogMatches(t, notStdout,
		`2023-10-30T13:19:45.806Z	WARN	logging/impl_test.go:70	unpaired	{"dangling":"unpaired log key"}`)
}

func TestLevelFiltering(t *testing.T) {
	notStdout := &bytes.Buffer{}
	logger := newImpl("", WARN, true, NewWriterAppender(notStdout))

	logger.Debug("dropped")
	logger.Info("dropped")
	test.That(t, notStdout.Len(), test.ShouldEqual, 0)

	logger.Warn("kept")
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459Z	WARN	logging/impl_test.go:85	kept`)

	logger.SetLevel(DEBUG)
	test.That(t, logger.GetLevel(), test.ShouldEqual, DEBUG)
	logger.Debugf("now %s", "kept")
	assertLogMatches(t, notStdout,
		`2023-10-30T09:12:09.459Z	DEBUG	logging/impl_test.go:91	now kept`)
}

func TestSubloggerObserved(t *testing.T) {
	logger, observed := NewObservedTestLogger(t)
	sub := logger.Sublogger("reconstruction")
	sub.Infow("stage done", "stage", "voxel_downsample", "points", 10)
	sub.Sublogger("pointcloud").Error("boom")

	entries := observed.All()
	test.That(t, entries, test.ShouldHaveLength, 2)
	test.That(t, entries[0].LoggerName, test.ShouldEqual, "reconstruction")
	test.That(t, entries[0].Message, test.ShouldEqual, "stage done")
	test.That(t, entries[0].ContextMap()["stage"], test.ShouldEqual, "voxel_downsample")
	test.That(t, entries[1].LoggerName, test.ShouldEqual, "reconstruction.pointcloud")
	test.That(t, observed.FilterMessage("boom").Len(), test.ShouldEqual, 1)
}

func TestLevelFromString(t *testing.T) {
	for _, tc := range []struct {
		in       string
		expected Level
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{"Warn", WARN},
		{"warning", WARN},
		{"error", ERROR},
	} {
		level, err := LevelFromString(tc.in)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, level, test.ShouldEqual, tc.expected)
	}

	_, err := LevelFromString("loud")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unknown log level")
}

func TestWithFields(t *testing.T) {
	logger, observed := NewObservedTestLogger(t)
	frameLogger := logger.Sublogger("dataset").WithFields("frame", "frame_00000007.png")
	frameLogger.Infow("wrote cloud", "points", 3)
	frameLogger.WithFields("format", "pcd").Warn("slow write")
	logger.Info("untouched")

	entries := observed.All()
	test.That(t, entries, test.ShouldHaveLength, 3)
	test.That(t, entries[0].LoggerName, test.ShouldEqual, "dataset")
	test.That(t, entries[0].ContextMap(), test.ShouldResemble, map[string]interface{}{
		"points": int64(3),
		"frame":  "frame_00000007.png",
	})
	test.That(t, entries[1].ContextMap(), test.ShouldResemble, map[string]interface{}{
		"format": "pcd",
		"frame":  "frame_00000007.png",
	})
	test.That(t, entries[2].ContextMap(), test.ShouldBeEmpty)
}
