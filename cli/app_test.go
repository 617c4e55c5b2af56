package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"github.com/weedscan/weedpipe/framecounter"
	"github.com/weedscan/weedpipe/rimage"
	"github.com/weedscan/weedpipe/utils"
)

type testEnv struct {
	dir        string
	configPath string
	statePath  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "weedpipe.yaml"),
		statePath:  filepath.Join(dir, "state", "frame_counter.json"),
	}
	content := "counter:\n  state_path: " + env.statePath + "\nextraction:\n  ffmpeg_path: weedpipe-no-such-ffmpeg\n"
	test.That(t, os.WriteFile(env.configPath, []byte(content), 0o600), test.ShouldBeNil)
	return env
}

func (env *testEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := NewApp(&out, &errOut).Run(append([]string{"weedpipe", "--config", env.configPath}, args...))
	return out.String(), errOut.String(), err
}

func TestCounterCommands(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := env.run(t, "counter", "show")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "next frame: 0")

	_, errOut, err := env.run(t, "counter", "set", "42")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, errOut, test.ShouldContainSubstring, "frame counter reset")

	out, _, err = env.run(t, "counter", "show")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "next frame: 42")

	_, _, err = env.run(t, "counter", "set", "forty")
	test.That(t, err, test.ShouldNotBeNil)
	_, _, err = env.run(t, "counter", "set", "-1")
	test.That(t, err, test.ShouldNotBeNil)
	_, _, err = env.run(t, "counter", "set")
	test.That(t, err, test.ShouldNotBeNil)
}

func writeDataset(t *testing.T, dir string) {
	t.Helper()
	for _, sub := range []string{utils.CalibrationDir, utils.DepthFramesDir, utils.RGBFramesDir} {
		test.That(t, os.MkdirAll(filepath.Join(dir, sub), 0o750), test.ShouldBeNil)
	}
	test.That(t, os.WriteFile(utils.CalibrationPath(dir), []byte("fx: 1, fy: 1\ncx: 0, cy: 0\n"), 0o600), test.ShouldBeNil)
	dm, err := rimage.NewDepthMapFromRows([][]rimage.Depth{{1000, 0}, {2000, 5000}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rimage.WriteDepthMapPNG(dm, filepath.Join(dir, utils.DepthFramesDir, utils.FrameName(0))), test.ShouldBeNil)
	test.That(t, rimage.WriteDepthMapPNG(rimage.NewEmptyDepthMap(2, 2),
		filepath.Join(dir, utils.DepthFramesDir, utils.FrameName(1))), test.ShouldBeNil)
}

func TestReconstructViewAndInspect(t *testing.T) {
	env := newTestEnv(t)
	dataset := filepath.Join(env.dir, "dataset")
	writeDataset(t, dataset)

	out, errOut, err := env.run(t, "reconstruct", "--raw", "--format", "pcd", dataset)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "frame_00000000.pcd")
	test.That(t, out, test.ShouldContainSubstring, "back_projection=3")
	test.That(t, out, test.ShouldContainSubstring, "2 WRITTEN (1 EMPTY), 0 FAILED")
	test.That(t, errOut, test.ShouldContainSubstring, "Warning: 1 frame(s) produced an empty point cloud")

	cloudPath := filepath.Join(dataset, "clouds", "frame_00000000.pcd")
	previews := filepath.Join(env.dir, "previews")
	test.That(t, os.MkdirAll(previews, 0o750), test.ShouldBeNil)
	out, _, err = env.run(t, "view", "--out-dir", previews, cloudPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "3 points")
	_, err = os.Stat(filepath.Join(previews, "frame_00000000.png"))
	test.That(t, err, test.ShouldBeNil)

	out, _, err = env.run(t, "stats", filepath.Join(dataset, utils.DepthFramesDir, utils.FrameName(0)))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "2x2")
	test.That(t, out, test.ShouldContainSubstring, "75.0%")

	out, _, err = env.run(t, "inventory", dataset)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, utils.DepthFramesDir)
	test.That(t, out, test.ShouldContainSubstring, "clouds")
}

func TestReconstructRejectsFormat(t *testing.T) {
	env := newTestEnv(t)
	dataset := filepath.Join(env.dir, "dataset")
	writeDataset(t, dataset)
	_, _, err := env.run(t, "reconstruct", "--format", "xyz", dataset)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unsupported cloud format")
}

func TestReconstructToLAS(t *testing.T) {
	env := newTestEnv(t)
	dataset := filepath.Join(env.dir, "dataset")
	writeDataset(t, dataset)
	out, _, err := env.run(t, "reconstruct", "--raw", "--format", "las", "--binary", "--limit", "1", dataset)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "frame_00000000.las")
	test.That(t, out, test.ShouldContainSubstring, "1 WRITTEN (0 EMPTY), 0 FAILED")

	info, err := os.Stat(filepath.Join(dataset, "clouds", "frame_00000000.las"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, info.Size(), test.ShouldBeGreaterThan, 0)
}

func TestExtractWithoutFFmpeg(t *testing.T) {
	env := newTestEnv(t)
	session := filepath.Join(env.dir, "session")
	test.That(t, os.MkdirAll(session, 0o750), test.ShouldBeNil)
	for _, name := range []string{"RGB_video.mkv", "Depth_video.mkv"} {
		test.That(t, os.WriteFile(filepath.Join(session, name), []byte("video"), 0o600), test.ShouldBeNil)
	}
	logFile := filepath.Join(env.dir, "logs", "weedpipe.log")

	out, errOut, err := env.run(t, "--log-file", logFile, "extract", session, filepath.Join(env.dir, "dataset"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "failed")
	test.That(t, errOut, test.ShouldContainSubstring, "Warning: rgb stream")
	test.That(t, errOut, test.ShouldContainSubstring, "Warning: no calibration file was copied")

	state, err := framecounter.NewFileStore(utils.OSFileSystem{}, env.statePath).Load(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, state.NextFrame, test.ShouldEqual, 0)

	logged, err := os.ReadFile(logFile)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(logged), test.ShouldContainSubstring, "organizing session")
}

func TestMissingArguments(t *testing.T) {
	env := newTestEnv(t)
	for _, cmd := range []string{"extract", "reconstruct", "view", "stats", "inventory"} {
		_, _, err := env.run(t, cmd)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "argument")
	}
}
