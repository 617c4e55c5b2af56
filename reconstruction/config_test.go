package reconstruction

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	test.That(t, cfg.Validate(), test.ShouldBeNil)
	test.That(t, cfg.Depth, test.ShouldResemble, DepthConfig{DepthScale: 0.001, MinDepth: 0.1, MaxDepth: 10})
	test.That(t, cfg.NoisePrefilter.MaxRaw, test.ShouldEqual, 10000)
	test.That(t, cfg.NoisePrefilter.MedianKernel, test.ShouldEqual, 3)
	test.That(t, cfg.StatisticalOutlier.Neighbors, test.ShouldEqual, 20)
	test.That(t, cfg.StatisticalOutlier.StdRatio, test.ShouldEqual, 1.5)
	test.That(t, cfg.RadiusOutlier.MinPoints, test.ShouldEqual, 16)
	test.That(t, cfg.RadiusOutlier.Radius, test.ShouldEqual, 0.05)
	test.That(t, cfg.VoxelDownsample.VoxelSize, test.ShouldEqual, 0.01)

	names := []string{}
	for _, f := range cfg.PostFilters() {
		names = append(names, f.Name())
	}
	test.That(t, names, test.ShouldResemble, []string{"statistical_outlier", "radius_outlier", "voxel_downsample"})
	test.That(t, BackProjectionOnly().PostFilters(), test.ShouldBeEmpty)
}

func TestPostFiltersKeepOrder(t *testing.T) {
	cfg := BackProjectionOnly()
	cfg.VoxelDownsample.Enabled = true
	cfg.StatisticalOutlier.Enabled = true
	filters := cfg.PostFilters()
	test.That(t, filters, test.ShouldHaveLength, 2)
	test.That(t, filters[0].Name(), test.ShouldEqual, "statistical_outlier")
	test.That(t, filters[1].Name(), test.ShouldEqual, "voxel_downsample")
}

func TestConfigValidate(t *testing.T) {
	for _, tc := range []struct {
		name     string
		mutate   func(cfg *Config)
		expected string
	}{
		{"zero scale", func(cfg *Config) { cfg.Depth.DepthScale = 0 }, "depth_scale"},
		{"infinite scale", func(cfg *Config) { cfg.Depth.DepthScale = math.Inf(1) }, "depth_scale"},
		{"negative min depth", func(cfg *Config) { cfg.Depth.MinDepth = -1 }, "depth window"},
		{"inverted window", func(cfg *Config) { cfg.Depth.MinDepth, cfg.Depth.MaxDepth = 5, 5 }, "depth window"},
		{"inverted raw window", func(cfg *Config) { cfg.NoisePrefilter.MinRaw = 10000 }, "min_raw"},
		{"even kernel", func(cfg *Config) { cfg.NoisePrefilter.MedianKernel = 4 }, "median_kernel"},
		{"zero kernel", func(cfg *Config) { cfg.NoisePrefilter.MedianKernel = 0 }, "median_kernel"},
		{"no neighbors", func(cfg *Config) { cfg.StatisticalOutlier.Neighbors = 0 }, "neighbor"},
		{"negative ratio", func(cfg *Config) { cfg.StatisticalOutlier.StdRatio = -1 }, "std ratio"},
		{"no min points", func(cfg *Config) { cfg.RadiusOutlier.MinPoints = 0 }, "at least 1 point"},
		{"zero radius", func(cfg *Config) { cfg.RadiusOutlier.Radius = 0 }, "radius"},
		{"zero voxel", func(cfg *Config) { cfg.VoxelDownsample.VoxelSize = 0 }, "voxel size"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.expected)

			_, err = NewReconstructor(cfg, nil)
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, "invalid reconstruction config")
		})
	}
}

func TestConfigValidateReportsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Depth.DepthScale = 0
	cfg.VoxelDownsample.VoxelSize = -1
	err := cfg.Validate()
	test.That(t, err.Error(), test.ShouldContainSubstring, "depth_scale")
	test.That(t, err.Error(), test.ShouldContainSubstring, "voxel size")
}
