package logging

import (
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func TestFileAppender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "weedpipe.log")
	appender := NewFileAppender(path)

	logger := NewBlankLogger("batch")
	logger.AddAppender(appender)
	logger.Infow("extracted frames", "stream", "depth", "frames", 12)
	logger.Debug("details")
	test.That(t, logger.Sync(), test.ShouldBeNil)
	test.That(t, appender.Close(), test.ShouldBeNil)

	content, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(content), test.ShouldContainSubstring, "INFO")
	test.That(t, string(content), test.ShouldContainSubstring, "batch")
	test.That(t, string(content), test.ShouldContainSubstring, "extracted frames")
	test.That(t, string(content), test.ShouldContainSubstring, `"frames": 12`)
	test.That(t, string(content), test.ShouldContainSubstring, "details")
}
