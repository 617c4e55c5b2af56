package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Any component outside of this range cannot be stored without losing integer precision
// in the float64 formats we read and write.
const (
	maxPreciseFloat64 = float64(1 << 53)
	minPreciseFloat64 = -maxPreciseFloat64
)

// NewVector returns the point (x, y, z).
func NewVector(x, y, z float64) r3.Vector {
	return r3.Vector{X: x, Y: y, Z: z}
}

// CheckPoint returns an error naming the first component of p that is NaN or too large to
// round trip through the cloud file formats.
func CheckPoint(p r3.Vector) error {
	for _, c := range [...]struct {
		name string
		v    float64
	}{{"x", p.X}, {"y", p.Y}, {"z", p.Z}} {
		if math.IsNaN(c.v) {
			return errors.Errorf("%s component is NaN", c.name)
		}
		if c.v < minPreciseFloat64 || c.v > maxPreciseFloat64 {
			return errors.Errorf("%s component (%v) is out of range [%v,%v]",
				c.name, c.v, minPreciseFloat64, maxPreciseFloat64)
		}
	}
	return nil
}
