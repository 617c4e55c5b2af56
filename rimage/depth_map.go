package rimage

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
)

// Depth is a raw depth sample in sensor units. The cameras in the rig report millimeters.
type Depth uint16

// MaxDepth is the largest value a Depth can hold.
const MaxDepth = Depth(65535)

// DepthMap is a row-major grid of raw depth samples. A sample of 0 means no reading.
type DepthMap struct {
	width  int
	height int

	data []Depth
}

// NewEmptyDepthMap returns a zero-filled depth map of the given size.
func NewEmptyDepthMap(width, height int) *DepthMap {
	return &DepthMap{
		width:  width,
		height: height,
		data:   make([]Depth, width*height),
	}
}

// NewDepthMapFromRows builds a depth map from rows of samples. All rows must be the same length.
func NewDepthMapFromRows(rows [][]Depth) (*DepthMap, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, errors.New("depth map needs at least one row and one column")
	}
	dm := NewEmptyDepthMap(len(rows[0]), len(rows))
	for y, row := range rows {
		if len(row) != dm.width {
			return nil, errors.Errorf("row %d has %d samples, expected %d", y, len(row), dm.width)
		}
		copy(dm.data[y*dm.width:], row)
	}
	return dm, nil
}

// Width returns the horizontal size of the DepthMap.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height returns the vertical size of the DepthMap.
func (dm *DepthMap) Height() int {
	return dm.height
}

// Bounds returns the rectangle dimensions of the DepthMap.
func (dm *DepthMap) Bounds() image.Rectangle {
	return image.Rect(0, 0, dm.width, dm.height)
}

// Contains returns whether or not a point is within bounds of the depth map.
func (dm *DepthMap) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < dm.width && y < dm.height
}

func (dm *DepthMap) kxy(x, y int) int {
	return (y * dm.width) + x
}

// GetDepth returns the depth at (x, y).
func (dm *DepthMap) GetDepth(x, y int) Depth {
	return dm.data[dm.kxy(x, y)]
}

// Set sets the depth at (x, y).
func (dm *DepthMap) Set(x, y int, val Depth) {
	dm.data[dm.kxy(x, y)] = val
}

// Clone makes a deep copy of the depth map.
func (dm *DepthMap) Clone() *DepthMap {
	ret := &DepthMap{
		width:  dm.width,
		height: dm.height,
		data:   make([]Depth, len(dm.data)),
	}
	copy(ret.data, dm.data)
	return ret
}

// ValidCount is the number of non-zero samples.
func (dm *DepthMap) ValidCount() int {
	count := 0
	for _, d := range dm.data {
		if d != 0 {
			count++
		}
	}
	return count
}

// MinMax returns the smallest and largest non-zero samples, or 0, 0 when there are none.
func (dm *DepthMap) MinMax() (Depth, Depth) {
	lowest, highest := MaxDepth, Depth(0)
	for _, d := range dm.data {
		if d == 0 {
			continue
		}
		lowest = min(lowest, d)
		highest = max(highest, d)
	}
	if highest == 0 {
		return 0, 0
	}
	return lowest, highest
}

// ToGray16Picture converts the depth map into a 16-bit gray image.
func (dm *DepthMap) ToGray16Picture() *image.Gray16 {
	img := image.NewGray16(dm.Bounds())
	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			img.SetGray16(x, y, color.Gray16{uint16(dm.GetDepth(x, y))})
		}
	}
	return img
}

// ConvertImageToDepthMap takes an image and reduces it to a depth map. Gray images are read
// directly. Color images keep only their first channel, at the image's native bit depth, so an
// 8-bit RGB frame yields samples in [0, 255].
func ConvertImageToDepthMap(img image.Image) (*DepthMap, error) {
	if img == nil {
		return nil, errors.New("no image to convert")
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, errors.New("image has no pixels")
	}
	dm := NewEmptyDepthMap(bounds.Dx(), bounds.Dy())
	var sample func(x, y int) Depth
	switch ii := img.(type) {
	case *image.Gray16:
		sample = func(x, y int) Depth { return Depth(ii.Gray16At(x, y).Y) }
	case *image.Gray:
		sample = func(x, y int) Depth { return Depth(ii.GrayAt(x, y).Y) }
	case *image.RGBA:
		sample = func(x, y int) Depth { return Depth(ii.RGBAAt(x, y).R) }
	case *image.NRGBA:
		sample = func(x, y int) Depth { return Depth(ii.NRGBAAt(x, y).R) }
	case *image.RGBA64:
		sample = func(x, y int) Depth { return Depth(ii.RGBA64At(x, y).R) }
	case *image.NRGBA64:
		sample = func(x, y int) Depth { return Depth(ii.NRGBA64At(x, y).R) }
	default:
		sample = func(x, y int) Depth {
			r, _, _, _ := ii.At(x, y).RGBA()
			return Depth(r)
		}
	}
	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			dm.Set(x, y, sample(bounds.Min.X+x, bounds.Min.Y+y))
		}
	}
	return dm, nil
}
