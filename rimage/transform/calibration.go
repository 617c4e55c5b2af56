package transform

import (
	"fmt"
	"math"
	"os"
	"regexp"
	"strconv"

	"github.com/pkg/errors"
)

// ErrMalformedCalibration is returned when a calibration text lacks one of fx, fy, cx, cy
// or carries a value that is not a positive number.
var ErrMalformedCalibration = errors.New("malformed calibration")

// production names the grammar alternative that resolved a calibration key.
type production int

const (
	noProduction production = iota
	// delimitedProduction is `key: number` followed by a comma, a newline or the end of text.
	delimitedProduction
	// looseProduction is `key:` followed by the longest run of digits and dots.
	looseProduction
)

func (p production) String() string {
	switch p {
	case delimitedProduction:
		return "delimited"
	case looseProduction:
		return "loose"
	case noProduction:
	}
	return "none"
}

// calibrationKeys in the order they are resolved and reported.
var calibrationKeys = []string{"fx", "fy", "cx", "cy"}

const numberPattern = `[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`

type keyPatterns struct {
	delimited *regexp.Regexp
	loose     *regexp.Regexp
}

var calibrationPatterns = func() map[string]keyPatterns {
	patterns := make(map[string]keyPatterns, len(calibrationKeys))
	for _, key := range calibrationKeys {
		patterns[key] = keyPatterns{
			delimited: regexp.MustCompile(fmt.Sprintf(`\b%s\s*:\s*(%s)[ \t]*(?:,|\r?\n|$)`, key, numberPattern)),
			loose:     regexp.MustCompile(fmt.Sprintf(`\b%s\s*:\s*([\d.]+)`, key)),
		}
	}
	return patterns
}()

// matchCalibrationKey finds the textual value of key, trying the delimited production first.
func matchCalibrationKey(text, key string) (string, production) {
	patterns := calibrationPatterns[key]
	if m := patterns.delimited.FindStringSubmatch(text); m != nil {
		return m[1], delimitedProduction
	}
	if m := patterns.loose.FindStringSubmatch(text); m != nil {
		return m[1], looseProduction
	}
	return "", noProduction
}

// ParseCalibration extracts the focal lengths and optical center from loose, hand edited
// calibration text. Both layouts are accepted:
//
//	fx: 615.2, fy: 615.9
//	cx: 320.4, cy: 241.7
//
// and one `key: value` per line. All four keys must resolve to a finite number, with positive
// focal lengths and a non-negative optical center; otherwise nothing is returned.
func ParseCalibration(text string) (*PinholeCameraIntrinsics, error) {
	values := make(map[string]float64, len(calibrationKeys))
	for _, key := range calibrationKeys {
		raw, prod := matchCalibrationKey(text, key)
		if prod == noProduction {
			return nil, errors.Wrapf(ErrMalformedCalibration, "missing %s", key)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedCalibration, "%s: cannot parse %q", key, raw)
		}
		if math.IsInf(v, 0) {
			return nil, errors.Wrapf(ErrMalformedCalibration, "%s: %v is not finite", key, v)
		}
		// focal lengths must be positive; the optical center may sit on the image edge
		isFocal := key == "fx" || key == "fy"
		if isFocal && !(v > 0) {
			return nil, errors.Wrapf(ErrMalformedCalibration, "%s: %v is not a positive number", key, v)
		}
		if !isFocal && v < 0 {
			return nil, errors.Wrapf(ErrMalformedCalibration, "%s: %v is negative", key, v)
		}
		values[key] = v
	}
	return &PinholeCameraIntrinsics{
		Fx:  values["fx"],
		Fy:  values["fy"],
		Ppx: values["cx"],
		Ppy: values["cy"],
	}, nil
}

// ReadCalibrationFile reads and parses a calibration text file.
func ReadCalibrationFile(path string) (*PinholeCameraIntrinsics, error) {
	//nolint:gosec
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "error reading calibration file")
	}
	intrinsics, err := ParseCalibration(string(content))
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return intrinsics, nil
}
