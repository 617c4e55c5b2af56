// Package extraction organizes a recording session into numbered frame rasters.
package extraction

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/weedscan/weedpipe/logging"
	"github.com/weedscan/weedpipe/utils"
)

// ErrExternalDecodeFailure is returned when the frame decoder exits with an error.
var ErrExternalDecodeFailure = errors.New("external decode failure")

// TempPattern is the file name pattern frame sources write into the temp directory.
const TempPattern = "temp_%04d.png"

// ExtractRequest asks a frame source to sample one video into a directory.
type ExtractRequest struct {
	Video     string
	OutputDir string
	// IntervalSeconds is the time between two sampled frames.
	IntervalSeconds float64
	// Depth keeps 16-bit samples instead of decoding to 8-bit color.
	Depth bool
}

// Validate checks the request.
func (req ExtractRequest) Validate() error {
	if req.Video == "" {
		return errors.New("no video given")
	}
	if req.OutputDir == "" {
		return errors.New("no output directory given")
	}
	if !(req.IntervalSeconds > 0) {
		return errors.Errorf("interval must be positive, got %v", req.IntervalSeconds)
	}
	return nil
}

// FrameSource writes TempPattern numbered rasters for a video and returns how many it wrote.
type FrameSource interface {
	Extract(ctx context.Context, req ExtractRequest) (int, error)
}

// FFmpegSource decodes videos with the ffmpeg executable.
type FFmpegSource struct {
	// Binary is the ffmpeg executable name or path.
	Binary string
	fsys   utils.FileSystem
	logger logging.Logger
}

// NewFFmpegSource returns a source running binary, which defaults to "ffmpeg".
func NewFFmpegSource(binary string, logger logging.Logger) *FFmpegSource {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegSource{Binary: binary, fsys: utils.OSFileSystem{}, logger: logger}
}

// Command builds the ffmpeg invocation for req without running it.
func (s *FFmpegSource) Command(ctx context.Context, req ExtractRequest) *exec.Cmd {
	outArgs := ffmpeg.KwArgs{
		"vf":    fmt.Sprintf("fps=1/%g", req.IntervalSeconds),
		"vsync": "0",
	}
	if req.Depth {
		outArgs["pix_fmt"] = "gray16le"
	}
	stream := ffmpeg.Input(req.Video).
		Output(filepath.Join(req.OutputDir, TempPattern), outArgs)
	// OverWriteOutput records -y in the stream context, so ctx has to be in place first.
	stream.Context = ctx
	cmd := stream.OverWriteOutput().Compile()
	// Compile always names "ffmpeg"; point the command at the configured binary instead.
	resolved, err := exec.LookPath(s.Binary)
	if err != nil {
		resolved = s.Binary
	}
	cmd.Path = resolved
	cmd.Err = err
	cmd.Args[0] = s.Binary
	return cmd
}

// Extract runs ffmpeg and counts the frames it wrote. A non-zero exit wraps
// ErrExternalDecodeFailure with the tail of ffmpeg's stderr.
func (s *FFmpegSource) Extract(ctx context.Context, req ExtractRequest) (int, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}
	cmd := s.Command(ctx, req)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	s.logger.Debugw("running ffmpeg", "args", strings.Join(cmd.Args, " "))
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, errors.Wrapf(ErrExternalDecodeFailure, "%s: %v: %s", req.Video, err, lastLine(stderr.String()))
	}
	frames, err := TempFrames(s.fsys, req.OutputDir)
	if err != nil {
		return 0, err
	}
	return len(frames), nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
