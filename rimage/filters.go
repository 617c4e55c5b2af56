package rimage

import (
	"image"

	"github.com/disintegration/gift"
	"github.com/pkg/errors"
)

// ZeroOutside sets every sample that is not strictly inside (minRaw, maxRaw) to 0 and
// returns how many samples it cleared. Samples that are already 0 are not counted.
func (dm *DepthMap) ZeroOutside(minRaw, maxRaw int) int {
	cleared := 0
	for i, d := range dm.data {
		if d == 0 {
			continue
		}
		if int(d) <= minRaw || int(d) >= maxRaw {
			dm.data[i] = 0
			cleared++
		}
	}
	return cleared
}

// MedianFilter returns a copy of dm smoothed with a square median kernel of the given
// odd size. Border pixels use the nearest edge samples. A size of 1 is a plain copy.
func MedianFilter(dm *DepthMap, size int) (*DepthMap, error) {
	if size < 1 || size%2 == 0 {
		return nil, errors.Errorf("median kernel size must be odd and positive, got %d", size)
	}
	if size == 1 {
		return dm.Clone(), nil
	}
	g := gift.New(gift.Median(size, false))
	dst := image.NewGray16(g.Bounds(dm.Bounds()))
	g.Draw(dst, dm.ToGray16Picture())
	return ConvertImageToDepthMap(dst)
}
