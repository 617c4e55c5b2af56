// Package config defines the weedpipe configuration file and its defaults.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/weedscan/weedpipe/extraction"
	"github.com/weedscan/weedpipe/logging"
	"github.com/weedscan/weedpipe/pointcloud"
	"github.com/weedscan/weedpipe/reconstruction"
)

// Config is the top level configuration shared by every command.
type Config struct {
	Reconstruction reconstruction.Config `json:"reconstruction" yaml:"reconstruction"`
	Extraction     Extraction            `json:"extraction" yaml:"extraction"`
	Counter        Counter               `json:"counter" yaml:"counter"`
	Output         Output                `json:"output" yaml:"output"`
	Log            Log                   `json:"log" yaml:"log"`

	// ConfigFilePath is where the config was read from, if anywhere.
	ConfigFilePath string `json:"-" yaml:"-"`
}

// Extraction configures the batch organizer and the ffmpeg frame source.
type Extraction struct {
	FFmpegPath      string  `json:"ffmpeg_path" yaml:"ffmpeg_path"`
	IntervalSeconds float64 `json:"interval_seconds" yaml:"interval_seconds"`
	CaptureFPS      float64 `json:"capture_fps" yaml:"capture_fps"`
	RGBVideo        string  `json:"rgb_video" yaml:"rgb_video"`
	DepthVideo      string  `json:"depth_video" yaml:"depth_video"`
	CalibrationFile string  `json:"calibration_file" yaml:"calibration_file"`
}

// Options converts the section into organizer options.
func (e Extraction) Options() extraction.Options {
	return extraction.Options{
		RGBVideo:        e.RGBVideo,
		DepthVideo:      e.DepthVideo,
		CalibrationFile: e.CalibrationFile,
		IntervalSeconds: e.IntervalSeconds,
		CaptureFPS:      e.CaptureFPS,
	}
}

// Counter locates the persistent frame counter.
type Counter struct {
	StatePath string `json:"state_path" yaml:"state_path"`
}

// Output controls how point clouds are written.
type Output struct {
	Format string `json:"format" yaml:"format"`
	Binary bool   `json:"binary" yaml:"binary"`
}

// Ext is the file extension for Format.
func (o Output) Ext() string {
	return "." + strings.TrimPrefix(strings.ToLower(o.Format), ".")
}

// Log configures the process logger.
type Log struct {
	Level string `json:"level" yaml:"level"`
	// File, when set, receives a rotated copy of the console output.
	File string `json:"file" yaml:"file"`
}

// DefaultStatePath is where the frame counter lives unless configured otherwise.
func DefaultStatePath() string {
	//nolint:errcheck
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".weedpipe", "frame_counter.json")
}

// Default returns a config usable without any file.
func Default() Config {
	opts := extraction.DefaultOptions()
	return Config{
		Reconstruction: reconstruction.DefaultConfig(),
		Extraction: Extraction{
			FFmpegPath:      "ffmpeg",
			IntervalSeconds: opts.IntervalSeconds,
			CaptureFPS:      opts.CaptureFPS,
			RGBVideo:        opts.RGBVideo,
			DepthVideo:      opts.DepthVideo,
			CalibrationFile: opts.CalibrationFile,
		},
		Counter: Counter{StatePath: DefaultStatePath()},
		Output:  Output{Format: "ply"},
		Log:     Log{Level: "info"},
	}
}

// Validate reports every problem found in the config.
func (c *Config) Validate() error {
	var err error
	if rerr := c.Reconstruction.Validate(); rerr != nil {
		err = multierr.Append(err, errors.Wrap(rerr, "reconstruction"))
	}

	e := c.Extraction
	if e.FFmpegPath == "" {
		err = multierr.Append(err, errors.New("extraction: ffmpeg_path is required"))
	}
	if !(e.IntervalSeconds > 0) {
		err = multierr.Append(err, errors.Errorf("extraction: interval_seconds must be positive, got %v", e.IntervalSeconds))
	}
	if e.CaptureFPS < 0 {
		err = multierr.Append(err, errors.Errorf("extraction: capture_fps cannot be negative, got %v", e.CaptureFPS))
	}
	for name, v := range map[string]string{"rgb_video": e.RGBVideo, "depth_video": e.DepthVideo} {
		if v == "" || filepath.Base(v) != v {
			err = multierr.Append(err, errors.Errorf("extraction: %s must be a file name, got %q", name, v))
		}
	}

	if c.Counter.StatePath == "" {
		err = multierr.Append(err, errors.New("counter: state_path is required"))
	}
	if !pointcloud.IsCloudExt(c.Output.Ext()) {
		err = multierr.Append(err, errors.Errorf("output: unsupported format %q, want ply, pcd or las", c.Output.Format))
	}
	if _, lerr := logging.LevelFromString(c.Log.Level); lerr != nil {
		err = multierr.Append(err, errors.Wrap(lerr, "log"))
	}
	return err
}
