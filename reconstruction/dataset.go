package reconstruction

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"

	"github.com/weedscan/weedpipe/pointcloud"
	"github.com/weedscan/weedpipe/rimage/transform"
	"github.com/weedscan/weedpipe/utils"
)

// DatasetRequest describes one organized dataset to reconstruct.
type DatasetRequest struct {
	DatasetDir string
	// OutputDir receives one cloud per depth frame. Defaults to DatasetDir/clouds.
	OutputDir string
	// Ext is the cloud file extension, one of pointcloud.ExtPLY, ExtPCD or ExtLAS.
	Ext    string
	Binary bool
	// Limit caps the number of frames processed when positive.
	Limit int
}

// FrameReport is the outcome for one depth frame.
type FrameReport struct {
	Frame   string
	Output  string
	Stages  []StageCount
	Points  int
	Empty   bool
	Skipped error
}

// DatasetReport summarizes a dataset run.
type DatasetReport struct {
	Intrinsics *transform.PinholeCameraIntrinsics
	Frames     []FrameReport
	Written    int
	Empty      int
	Failed     int
}

// ReconstructDataset parses the dataset calibration once and reconstructs every depth
// frame in name order. A bad calibration fails the whole run. A bad frame is logged,
// recorded in its FrameReport and folded into the returned error while the remaining
// frames are still processed.
func (r *Reconstructor) ReconstructDataset(ctx context.Context, req DatasetRequest) (*DatasetReport, error) {
	fsys := utils.OSFileSystem{}
	intrinsics, err := transform.ReadCalibrationFile(utils.CalibrationPath(req.DatasetDir))
	if err != nil {
		return nil, err
	}
	r.logger.Infof("calibration for %s\n%s", req.DatasetDir, intrinsics)
	r.logger.Debugf("camera matrix\n%v", mat.Formatted(intrinsics.GetCameraMatrix(), mat.Squeeze()))

	depthDir := filepath.Join(req.DatasetDir, utils.DepthFramesDir)
	names, err := fsys.ReadDir(depthDir)
	if err != nil {
		return nil, errors.Wrap(err, "listing depth frames")
	}
	frames := utils.FrameFiles(names)
	if req.Limit > 0 && len(frames) > req.Limit {
		frames = frames[:req.Limit]
	}

	outDir := req.OutputDir
	if outDir == "" {
		outDir = filepath.Join(req.DatasetDir, "clouds")
	}
	ext := req.Ext
	if ext == "" {
		ext = pointcloud.ExtPLY
	}
	if err := fsys.MkdirAll(outDir, 0o750); err != nil {
		return nil, errors.Wrap(err, "creating cloud output directory")
	}

	report := &DatasetReport{Intrinsics: intrinsics}
	var errs error
	for _, name := range frames {
		if err := ctx.Err(); err != nil {
			return report, multierr.Append(errs, err)
		}
		frame := FrameReport{Frame: name}
		frameLogger := r.logger.WithFields("frame", name)
		res, err := r.ReconstructFile(ctx, filepath.Join(depthDir, name), intrinsics)
		if err == nil {
			frame.Stages = res.Stages
			frame.Points = res.Cloud.Size()
			frame.Empty = res.Empty()
			frame.Output = utils.ReplaceExt(name, outDir, ext)
			if err = pointcloud.WriteToFile(res.Cloud, frame.Output, req.Binary); err != nil {
				// drop a partially written cloud
				utils.RemoveFileNoError(fsys, frame.Output)
			}
		}
		if err != nil {
			frame.Skipped = err
			frame.Output = ""
			report.Failed++
			errs = multierr.Append(errs, errors.Wrap(err, name))
			frameLogger.Errorw("skipping frame", "error", err)
		} else {
			report.Written++
			if frame.Empty {
				report.Empty++
			}
			frameLogger.Infow("wrote cloud", "path", frame.Output, "points", frame.Points)
		}
		report.Frames = append(report.Frames, frame)
	}
	return report, errs
}
