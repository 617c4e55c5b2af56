package reconstruction

import (
	"math"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/weedscan/weedpipe/pointcloud"
)

// Config selects and parameterizes every stage of the reconstructor. Back-projection
// always runs; every other stage can be switched off.
type Config struct {
	Depth              DepthConfig              `json:"depth" yaml:"depth"`
	NoisePrefilter     NoisePrefilterConfig     `json:"noise_prefilter" yaml:"noise_prefilter"`
	StatisticalOutlier StatisticalOutlierConfig `json:"statistical_outlier" yaml:"statistical_outlier"`
	RadiusOutlier      RadiusOutlierConfig      `json:"radius_outlier" yaml:"radius_outlier"`
	VoxelDownsample    VoxelDownsampleConfig    `json:"voxel_downsample" yaml:"voxel_downsample"`
}

// DepthConfig converts raw samples to meters and bounds the accepted range. The
// (MinDepth, MaxDepth) window is open at both ends.
type DepthConfig struct {
	DepthScale float64 `json:"depth_scale" yaml:"depth_scale"` // meters per raw unit
	MinDepth   float64 `json:"min_depth" yaml:"min_depth"`
	MaxDepth   float64 `json:"max_depth" yaml:"max_depth"`
}

// NoisePrefilterConfig works on raw samples before back-projection.
type NoisePrefilterConfig struct {
	Enabled      bool `json:"enabled" yaml:"enabled"`
	MinRaw       int  `json:"min_raw" yaml:"min_raw"` // exclusive
	MaxRaw       int  `json:"max_raw" yaml:"max_raw"` // exclusive
	MedianKernel int  `json:"median_kernel" yaml:"median_kernel"`
}

// StatisticalOutlierConfig parameterizes pointcloud.StatisticalOutlierFilter.
type StatisticalOutlierConfig struct {
	Enabled   bool    `json:"enabled" yaml:"enabled"`
	Neighbors int     `json:"neighbors" yaml:"neighbors"`
	StdRatio  float64 `json:"std_ratio" yaml:"std_ratio"`
}

// RadiusOutlierConfig parameterizes pointcloud.RadiusOutlierFilter.
type RadiusOutlierConfig struct {
	Enabled   bool    `json:"enabled" yaml:"enabled"`
	MinPoints int     `json:"min_points" yaml:"min_points"`
	Radius    float64 `json:"radius" yaml:"radius"`
}

// VoxelDownsampleConfig parameterizes pointcloud.VoxelDownsampler.
type VoxelDownsampleConfig struct {
	Enabled   bool    `json:"enabled" yaml:"enabled"`
	VoxelSize float64 `json:"voxel_size" yaml:"voxel_size"`
}

// DefaultConfig returns the full cleaning pipeline with every stage enabled.
func DefaultConfig() Config {
	return Config{
		Depth: DepthConfig{
			DepthScale: 0.001,
			MinDepth:   0.1,
			MaxDepth:   10.0,
		},
		NoisePrefilter: NoisePrefilterConfig{
			Enabled:      true,
			MinRaw:       0,
			MaxRaw:       10000,
			MedianKernel: 3,
		},
		StatisticalOutlier: StatisticalOutlierConfig{
			Enabled:   true,
			Neighbors: 20,
			StdRatio:  1.5,
		},
		RadiusOutlier: RadiusOutlierConfig{
			Enabled:   true,
			MinPoints: 16,
			Radius:    0.05,
		},
		VoxelDownsample: VoxelDownsampleConfig{
			Enabled:   true,
			VoxelSize: 0.01,
		},
	}
}

// BackProjectionOnly returns the default depth window with every optional stage disabled.
func BackProjectionOnly() Config {
	cfg := DefaultConfig()
	cfg.NoisePrefilter.Enabled = false
	cfg.StatisticalOutlier.Enabled = false
	cfg.RadiusOutlier.Enabled = false
	cfg.VoxelDownsample.Enabled = false
	return cfg
}

// Validate checks every stage, including disabled ones, and reports all problems at once.
func (cfg Config) Validate() error {
	var errs error
	d := cfg.Depth
	if !(d.DepthScale > 0) || math.IsInf(d.DepthScale, 0) {
		errs = multierr.Append(errs, errors.Errorf("depth_scale must be positive, got %v", d.DepthScale))
	}
	if !(d.MinDepth >= 0) || !(d.MinDepth < d.MaxDepth) {
		errs = multierr.Append(errs, errors.Errorf(
			"depth window must satisfy 0 <= min_depth < max_depth, got (%v, %v)", d.MinDepth, d.MaxDepth))
	}

	p := cfg.NoisePrefilter
	if p.MinRaw >= p.MaxRaw {
		errs = multierr.Append(errs, errors.Errorf("min_raw must be below max_raw, got (%d, %d)", p.MinRaw, p.MaxRaw))
	}
	if p.MedianKernel < 1 || p.MedianKernel%2 == 0 {
		errs = multierr.Append(errs, errors.Errorf("median_kernel must be odd and positive, got %d", p.MedianKernel))
	}

	errs = multierr.Append(errs, cfg.statisticalFilter().Validate())
	errs = multierr.Append(errs, cfg.radiusFilter().Validate())
	errs = multierr.Append(errs, cfg.voxelFilter().Validate())
	return errs
}

func (cfg Config) statisticalFilter() pointcloud.StatisticalOutlierFilter {
	return pointcloud.StatisticalOutlierFilter{
		Neighbors: cfg.StatisticalOutlier.Neighbors,
		StdRatio:  cfg.StatisticalOutlier.StdRatio,
	}
}

func (cfg Config) radiusFilter() pointcloud.RadiusOutlierFilter {
	return pointcloud.RadiusOutlierFilter{
		MinPoints: cfg.RadiusOutlier.MinPoints,
		Radius:    cfg.RadiusOutlier.Radius,
	}
}

func (cfg Config) voxelFilter() pointcloud.VoxelDownsampler {
	return pointcloud.VoxelDownsampler{VoxelSize: cfg.VoxelDownsample.VoxelSize}
}

// PostFilters returns the enabled point-cloud stages in their fixed order.
func (cfg Config) PostFilters() []pointcloud.Filter {
	var filters []pointcloud.Filter
	if cfg.StatisticalOutlier.Enabled {
		filters = append(filters, cfg.statisticalFilter())
	}
	if cfg.RadiusOutlier.Enabled {
		filters = append(filters, cfg.radiusFilter())
	}
	if cfg.VoxelDownsample.Enabled {
		filters = append(filters, cfg.voxelFilter())
	}
	return filters
}
