package transform

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrNoIntrinsics is returned when intrinsics are missing or unusable for back-projection.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// NewNoIntrinsicsError wraps ErrNoIntrinsics with msg.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrap(ErrNoIntrinsics, msg)
}

// PinholeCameraIntrinsics is the pinhole model of the depth sensor. Ppx and Ppy are the
// optical center, written cx and cy in calibration files. Width and Height are zero when
// unknown since calibration text does not carry them.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px,omitempty"`
	Height int     `json:"height_px,omitempty"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

// CheckValid requires finite, positive focal lengths and a finite, non-negative optical
// center. Errors wrap ErrNoIntrinsics.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("intrinsics do not exist")
	}
	if params.Width < 0 || params.Height < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("invalid size (%d, %d)", params.Width, params.Height))
	}
	for _, p := range [...]struct {
		name     string
		v        float64
		positive bool
	}{
		{"focal length Fx", params.Fx, true},
		{"focal length Fy", params.Fy, true},
		{"principal point Ppx", params.Ppx, false},
		{"principal point Ppy", params.Ppy, false},
	} {
		ok := p.v >= 0
		if p.positive {
			ok = p.v > 0
		}
		if !ok || math.IsInf(p.v, 0) {
			return NewNoIntrinsicsError(fmt.Sprintf("invalid %s = %v", p.name, p.v))
		}
	}
	return nil
}

// CheckImageSize reports whether an image of the given size fits the intrinsics. Intrinsics
// without a size accept any image.
func (params *PinholeCameraIntrinsics) CheckImageSize(width, height int) error {
	if params.Width == 0 && params.Height == 0 {
		return nil
	}
	if params.Width != width || params.Height != height {
		return errors.Errorf("image dimension and intrinsics don't match Image(%d,%d) != Intrinsics(%d,%d)",
			width, height, params.Width, params.Height)
	}
	return nil
}

// PixelToPoint back-projects pixel (u, v) at metric depth z into camera coordinates.
func (params *PinholeCameraIntrinsics) PixelToPoint(u, v, z float64) (float64, float64, float64) {
	if params == nil {
		return 0, 0, 0
	}
	return (u - params.Ppx) * z / params.Fx, (v - params.Ppy) * z / params.Fy, z
}

// PixelToVector is PixelToPoint returning an r3.Vector.
func (params *PinholeCameraIntrinsics) PixelToVector(u, v, z float64) r3.Vector {
	x, y, z := params.PixelToPoint(u, v, z)
	return r3.Vector{X: x, Y: y, Z: z}
}

// GetCameraMatrix returns the 3x3 matrix K:
//
//	[[fx  0 ppx]
//	 [ 0 fy ppy]
//	 [ 0  0   1]]
func (params *PinholeCameraIntrinsics) GetCameraMatrix() *mat.Dense {
	if params == nil {
		return nil
	}
	return mat.NewDense(3, 3, []float64{
		params.Fx, 0, params.Ppx,
		0, params.Fy, params.Ppy,
		0, 0, 1,
	})
}

// String renders the intrinsics the way calibration files write them.
func (params *PinholeCameraIntrinsics) String() string {
	return fmt.Sprintf("fx: %g, fy: %g\ncx: %g, cy: %g", params.Fx, params.Fy, params.Ppx, params.Ppy)
}
