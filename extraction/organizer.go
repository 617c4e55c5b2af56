package extraction

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/weedscan/weedpipe/framecounter"
	"github.com/weedscan/weedpipe/logging"
	"github.com/weedscan/weedpipe/utils"
)

const tempDirName = "temp_frames"

// Options controls how a session is organized.
type Options struct {
	RGBVideo        string
	DepthVideo      string
	CalibrationFile string
	// IntervalSeconds is the time between two extracted frames.
	IntervalSeconds float64
	// CaptureFPS is the recording frame rate. It is only reported.
	CaptureFPS float64
}

// DefaultOptions matches the layout written by the capture tool.
func DefaultOptions() Options {
	return Options{
		RGBVideo:        "RGB_video.mkv",
		DepthVideo:      "Depth_video.mkv",
		CalibrationFile: "calibration_params.txt",
		IntervalSeconds: 1,
		CaptureFPS:      15,
	}
}

// BatchResult describes one organized session.
type BatchResult struct {
	RunID       string
	SessionDir  string
	OutputDir   string
	Start       int
	RGBFrames   int
	DepthFrames int
	RGBErr      error
	DepthErr    error
	// CalibrationCopied is false when the session had no calibration file.
	CalibrationCopied bool
	NextFrame         int
	Elapsed           time.Duration
}

// LastFrame is the index of the last RGB frame, or Start-1 when none was written.
func (r *BatchResult) LastFrame() int {
	return r.NextFrame - 1
}

// StreamErrors combines the per-stream failures.
func (r *BatchResult) StreamErrors() error {
	return multierr.Combine(r.RGBErr, r.DepthErr)
}

// Organizer extracts the RGB and depth streams of a session into a shared frame numbering.
type Organizer struct {
	fsys      utils.FileSystem
	source    FrameSource
	allocator *framecounter.Allocator
	opts      Options
	logger    logging.Logger
}

// NewOrganizer returns an organizer. fsys must see the files source writes.
func NewOrganizer(
	fsys utils.FileSystem,
	source FrameSource,
	allocator *framecounter.Allocator,
	opts Options,
	logger logging.Logger,
) *Organizer {
	return &Organizer{fsys: fsys, source: source, allocator: allocator, opts: opts, logger: logger}
}

// Organize extracts one session into outputDir. The RGB stream is numbered from the
// allocator's next index and the depth stream reuses that same start, so frame i of both
// streams is the same moment. A stream that is missing or fails to decode is recorded in
// the result and does not stop the batch. Counter failures stop the batch and are
// returned as errors.
func (o *Organizer) Organize(ctx context.Context, sessionDir, outputDir string) (*BatchResult, error) {
	began := time.Now()
	if info, err := o.fsys.Stat(sessionDir); err != nil || !info.IsDir() {
		return nil, errors.Errorf("session directory %q does not exist", sessionDir)
	}
	if !(o.opts.IntervalSeconds > 0) {
		return nil, errors.Errorf("interval must be positive, got %v", o.opts.IntervalSeconds)
	}
	rgbVideo, err := utils.SafeJoinDir(sessionDir, o.opts.RGBVideo)
	if err != nil {
		return nil, err
	}
	depthVideo, err := utils.SafeJoinDir(sessionDir, o.opts.DepthVideo)
	if err != nil {
		return nil, err
	}
	rgbDir := filepath.Join(outputDir, utils.RGBFramesDir)
	depthDir := filepath.Join(outputDir, utils.DepthFramesDir)
	calDir := filepath.Join(outputDir, utils.CalibrationDir)
	for _, dir := range []string{rgbDir, depthDir, calDir} {
		if err := o.fsys.MkdirAll(dir, 0o750); err != nil {
			return nil, errors.Wrapf(err, "creating %s", dir)
		}
	}

	start, err := o.allocator.Next(ctx)
	if err != nil {
		return nil, err
	}
	res := &BatchResult{
		RunID:      uuid.NewString(),
		SessionDir: sessionDir,
		OutputDir:  outputDir,
		Start:      start,
	}
	logger := o.logger.WithFields("run", res.RunID[:8])
	logger.Infow("organizing session", "path", sessionDir, "frame", start,
		"interval", o.opts.IntervalSeconds, "capture_fps", o.opts.CaptureFPS)

	res.RGBFrames, res.RGBErr = o.extractStream(ctx, logger,
		rgbVideo, rgbDir, start, false)
	res.DepthFrames, res.DepthErr = o.extractStream(ctx, logger,
		depthVideo, depthDir, start, true)
	switch {
	case res.RGBErr != nil && res.DepthFrames > 0:
		// only rgb frames advance the counter
		logger.Warnw("depth frames are not reserved and will be renumbered over by the next batch",
			"frame", start, "depth", res.DepthFrames)
	case res.RGBErr == nil && res.DepthErr == nil && res.DepthFrames != res.RGBFrames:
		logger.Warnw("stream frame counts differ", "rgb", res.RGBFrames, "depth", res.DepthFrames)
	}

	calSrc := filepath.Join(sessionDir, o.opts.CalibrationFile)
	if o.fsys.Exists(calSrc) {
		if err := utils.CopyFile(o.fsys, calSrc, filepath.Join(calDir, utils.CalibrationFile)); err != nil {
			logger.Errorw("copying calibration", "path", calSrc, "error", err)
		} else {
			res.CalibrationCopied = true
		}
	} else {
		logger.Warnw("calibration file missing", "path", calSrc)
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}
	res.NextFrame = start + res.RGBFrames
	if err := o.allocator.Commit(ctx, res.NextFrame); err != nil {
		return res, err
	}
	if err := o.writeFrameInfo(outputDir, res); err != nil {
		return res, err
	}
	res.Elapsed = time.Since(began)
	return res, nil
}

// extractStream decodes one video into a temp directory next to dir and moves the frames
// into dir with absolute numbering from start.
func (o *Organizer) extractStream(
	ctx context.Context,
	logger logging.Logger,
	video, dir string,
	start int,
	depth bool,
) (int, error) {
	stream := "rgb"
	if depth {
		stream = "depth"
	}
	logger = logger.WithFields("stream", stream)
	if !o.fsys.Exists(video) {
		logger.Errorw("video missing", "path", video)
		return 0, errors.Wrapf(fs.ErrNotExist, "%s video %s", stream, video)
	}

	tmp := filepath.Join(dir, tempDirName)
	if err := o.fsys.MkdirAll(tmp, 0o750); err != nil {
		return 0, err
	}
	defer func() {
		if err := o.fsys.RemoveAll(tmp); err != nil {
			logger.Warnw("removing temp frames", "path", tmp, "error", err)
		}
	}()

	_, err := o.source.Extract(ctx, ExtractRequest{
		Video:           video,
		OutputDir:       tmp,
		IntervalSeconds: o.opts.IntervalSeconds,
		Depth:           depth,
	})
	if err != nil {
		logger.Errorw("decode failed", "path", video, "error", err)
		return 0, errors.Wrapf(err, "%s stream", stream)
	}

	frames, err := TempFrames(o.fsys, tmp)
	if err != nil {
		return 0, err
	}
	for i, name := range frames {
		dst := filepath.Join(dir, utils.FrameName(start+i))
		if err := o.fsys.Rename(filepath.Join(tmp, name), dst); err != nil {
			return i, errors.Wrapf(err, "moving %s", name)
		}
	}
	if len(frames) > 0 {
		logger.Infow("extracted frames", "frames", len(frames),
			"frame", start, "last", start+len(frames)-1)
	} else {
		logger.Warnw("no frames extracted", "path", video)
	}
	return len(frames), nil
}

func (o *Organizer) writeFrameInfo(outputDir string, res *BatchResult) error {
	content := fmt.Sprintf("First frame: %d\nLast frame: %d\nTotal frames in this batch: %d\n",
		res.Start, res.LastFrame(), res.RGBFrames)
	path := filepath.Join(outputDir, utils.FrameInfoFile)
	return errors.Wrap(o.fsys.WriteFile(path, []byte(content), 0o644), "writing frame info")
}

// TempFrames lists the TempPattern files in dir ordered by their number.
func TempFrames(fsys utils.FileSystem, dir string) ([]string, error) {
	names, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "listing extracted frames")
	}
	type numbered struct {
		name string
		n    int
	}
	var frames []numbered
	for _, name := range names {
		if !strings.HasPrefix(name, "temp_") || !strings.EqualFold(filepath.Ext(name), ".png") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "temp_"), filepath.Ext(name)))
		if err != nil {
			continue
		}
		frames = append(frames, numbered{name, n})
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i].n < frames[j].n })
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.name
	}
	return out, nil
}
