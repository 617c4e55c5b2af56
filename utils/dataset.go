package utils

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
)

// Layout of an organized dataset directory.
const (
	RGBFramesDir    = "rgb_frames"
	DepthFramesDir  = "depth_frames"
	CalibrationDir  = "calibration"
	CalibrationFile = "calibration_params.txt"
	FrameInfoFile   = "frame_info.txt"
	FrameExt        = ".png"
)

// FrameName returns the file name of frame index i, e.g. "frame_00000042.png".
func FrameName(i int) string {
	return fmt.Sprintf("frame_%08d%s", i, FrameExt)
}

// CalibrationPath is where an organized dataset keeps its calibration text.
func CalibrationPath(datasetDir string) string {
	return filepath.Join(datasetDir, CalibrationDir, CalibrationFile)
}

// FrameFiles filters names down to frame rasters, keeping their order.
func FrameFiles(names []string) []string {
	return lo.Filter(names, func(name string, _ int) bool {
		return strings.HasPrefix(name, "frame_") && strings.EqualFold(filepath.Ext(name), FrameExt)
	})
}
