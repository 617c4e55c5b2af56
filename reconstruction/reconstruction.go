// Package reconstruction turns depth rasters into cleaned 3D point clouds.
package reconstruction

import (
	"context"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/weedscan/weedpipe/logging"
	"github.com/weedscan/weedpipe/pointcloud"
	"github.com/weedscan/weedpipe/rimage"
	"github.com/weedscan/weedpipe/rimage/transform"
	"github.com/weedscan/weedpipe/utils"
)

// ErrEmptyPointCloud reports that no point survived reconstruction. It is a warning: the
// reconstructor logs it and still returns the empty cloud.
var ErrEmptyPointCloud = errors.New("empty point cloud")

// BackProjectionStage names the first entry of Result.Stages.
const BackProjectionStage = "back_projection"

// StageCount is the number of points left after one stage.
type StageCount struct {
	Name   string
	Points int
}

// Result is the outcome of one reconstruction.
type Result struct {
	Cloud pointcloud.PointCloud
	// Stages lists back-projection followed by each enabled post filter, in the order run.
	Stages []StageCount
	// Cleared is the number of raw samples zeroed by the noise prefilter sanity window.
	Cleared int
}

// Empty reports whether the reconstructed cloud has no points.
func (r *Result) Empty() bool {
	return r.Cloud == nil || r.Cloud.Size() == 0
}

// Warning returns ErrEmptyPointCloud for an empty result and nil otherwise.
func (r *Result) Warning() error {
	if r.Empty() {
		return ErrEmptyPointCloud
	}
	return nil
}

// Reconstructor back-projects depth maps through a pinhole model and cleans the result.
type Reconstructor struct {
	cfg    Config
	logger logging.Logger
}

// NewReconstructor validates cfg and returns a reconstructor using it.
func NewReconstructor(cfg Config, logger logging.Logger) (*Reconstructor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid reconstruction config")
	}
	return &Reconstructor{cfg: cfg, logger: logger}, nil
}

// Config returns the configuration in use.
func (r *Reconstructor) Config() Config {
	return r.cfg
}

// Reconstruct builds the cloud for one depth map. The input map is not modified.
func (r *Reconstructor) Reconstruct(
	ctx context.Context,
	dm *rimage.DepthMap,
	intrinsics *transform.PinholeCameraIntrinsics,
) (*Result, error) {
	if dm == nil || dm.Width() == 0 || dm.Height() == 0 {
		return nil, errors.Wrap(rimage.ErrUnreadableFrame, "depth map has no samples")
	}
	if intrinsics == nil {
		return nil, transform.NewNoIntrinsicsError("reconstruction needs intrinsics")
	}
	if err := intrinsics.CheckValid(); err != nil {
		return nil, err
	}
	if err := intrinsics.CheckImageSize(dm.Width(), dm.Height()); err != nil {
		return nil, err
	}

	res := &Result{}
	prepared := dm
	if r.cfg.NoisePrefilter.Enabled {
		var err error
		prepared, res.Cleared, err = r.prefilter(dm)
		if err != nil {
			return nil, err
		}
	}

	cloud, err := r.backProject(ctx, prepared, intrinsics)
	if err != nil {
		return nil, err
	}
	res.Stages = append(res.Stages, StageCount{Name: BackProjectionStage, Points: cloud.Size()})

	filters := r.cfg.PostFilters()
	cloud, sizes, err := pointcloud.ApplyFilters(ctx, cloud, filters...)
	if err != nil {
		return nil, err
	}
	for i, f := range filters {
		res.Stages = append(res.Stages, StageCount{Name: f.Name(), Points: sizes[i]})
	}
	res.Cloud = cloud

	for _, s := range res.Stages {
		r.logger.Debugw("stage done", "stage", s.Name, "points", s.Points)
	}
	if res.Empty() {
		r.logger.Warnw(ErrEmptyPointCloud.Error(), "width", dm.Width(), "height", dm.Height())
	}
	return res, nil
}

// prefilter applies the raw sanity window and the median kernel to a copy of dm.
func (r *Reconstructor) prefilter(dm *rimage.DepthMap) (*rimage.DepthMap, int, error) {
	p := r.cfg.NoisePrefilter
	windowed := dm.Clone()
	cleared := windowed.ZeroOutside(p.MinRaw, p.MaxRaw)
	smoothed, err := rimage.MedianFilter(windowed, p.MedianKernel)
	if err != nil {
		return nil, 0, err
	}
	return smoothed, cleared, nil
}

// backProject emits one point per sample whose metric depth lies strictly inside the
// depth window. Rows are processed in parallel and joined in row-major order.
func (r *Reconstructor) backProject(
	ctx context.Context,
	dm *rimage.DepthMap,
	intrinsics *transform.PinholeCameraIntrinsics,
) (pointcloud.PointCloud, error) {
	d := r.cfg.Depth
	rows := make([][]r3.Vector, dm.Height())
	err := utils.GroupWorkParallel(ctx, dm.Height(), func(groupNum, groupSize, from, to int) (utils.MemberWorkFunc, utils.GroupWorkDoneFunc) {
		return func(memberNum, v int) {
			var row []r3.Vector
			for u := 0; u < dm.Width(); u++ {
				z := float64(dm.GetDepth(u, v)) * d.DepthScale
				if !(z > d.MinDepth && z < d.MaxDepth) {
					continue
				}
				row = append(row, intrinsics.PixelToVector(float64(u), float64(v), z))
			}
			rows[v] = row
		}, nil
	})
	if err != nil {
		return nil, err
	}

	total := 0
	for _, row := range rows {
		total += len(row)
	}
	cloud := pointcloud.NewWithPrealloc(total)
	for _, row := range rows {
		for _, p := range row {
			if err := cloud.Set(p); err != nil {
				return nil, err
			}
		}
	}
	return cloud, nil
}

// ReconstructFile reads a depth raster from disk and reconstructs it. Load and decode
// failures wrap rimage.ErrUnreadableFrame.
func (r *Reconstructor) ReconstructFile(
	ctx context.Context,
	depthPath string,
	intrinsics *transform.PinholeCameraIntrinsics,
) (*Result, error) {
	dm, err := rimage.ReadDepthMap(depthPath)
	if err != nil {
		return nil, err
	}
	res, err := r.Reconstruct(ctx, dm, intrinsics)
	if err != nil {
		return nil, errors.Wrap(err, depthPath)
	}
	r.logger.Debugw("reconstructed frame", "path", depthPath, "points", res.Cloud.Size())
	return res, nil
}
