package pointcloud

import (
	"context"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// VoxelCoords stores Voxel coordinates in VoxelGrid axes. The grid is anchored at the origin,
// so voxel (0, 0, 0) spans [0, size) on every axis.
type VoxelCoords struct {
	I, J, K int64
}

// IsEqual tests if two VoxelCoords are the same.
func (c VoxelCoords) IsEqual(c2 VoxelCoords) bool {
	return c.I == c2.I && c.J == c2.J && c.K == c2.K
}

// voxelIndexLimit is 2^63. Voxel indices must lie in [-limit, limit) to fit an int64.
var voxelIndexLimit = math.Ldexp(1, 63)

// checkVoxelRange returns an error if a point within meta's bounds would get a voxel index
// that does not fit an int64 at the given size.
func checkVoxelRange(meta MetaData, voxelSize float64) error {
	if meta.MaxX < meta.MinX {
		return nil
	}
	for _, b := range [...]float64{meta.MinX, meta.MaxX, meta.MinY, meta.MaxY, meta.MinZ, meta.MaxZ} {
		if q := math.Floor(b / voxelSize); q >= voxelIndexLimit || q < -voxelIndexLimit {
			return errors.Errorf("voxel size %v is too small for a coordinate of %v", voxelSize, b)
		}
	}
	return nil
}

// GetVoxelCoordinates computes the voxel coordinates of a point. The quotient of each
// component by voxelSize must fit an int64.
func GetVoxelCoordinates(pt r3.Vector, voxelSize float64) VoxelCoords {
	return VoxelCoords{
		I: int64(math.Floor(pt.X / voxelSize)),
		J: int64(math.Floor(pt.Y / voxelSize)),
		K: int64(math.Floor(pt.Z / voxelSize)),
	}
}

// voxel accumulates the points that fell into one grid cell.
type voxel struct {
	count    int
	first    r3.Vector
	sum      r3.Vector
	min, max r3.Vector
}

func (v *voxel) add(p r3.Vector) {
	if v.count == 0 {
		v.first, v.min, v.max = p, p, p
	}
	v.count++
	v.sum = v.sum.Add(p)
	v.min = r3.Vector{X: math.Min(v.min.X, p.X), Y: math.Min(v.min.Y, p.Y), Z: math.Min(v.min.Z, p.Z)}
	v.max = r3.Vector{X: math.Max(v.max.X, p.X), Y: math.Max(v.max.Y, p.Y), Z: math.Max(v.max.Z, p.Z)}
}

// centroid is the mean of the voxel's points. It is clamped to the points' bounding box so that
// rounding can never move it into a neighboring voxel, and a lone point is returned unchanged.
func (v *voxel) centroid() r3.Vector {
	if v.count == 1 {
		return v.first
	}
	c := v.sum.Mul(1 / float64(v.count))
	return r3.Vector{
		X: math.Min(math.Max(c.X, v.min.X), v.max.X),
		Y: math.Min(math.Max(c.Y, v.min.Y), v.max.Y),
		Z: math.Min(math.Max(c.Z, v.min.Z), v.max.Z),
	}
}

// VoxelDownsampler replaces all points in each cube of edge VoxelSize by their centroid.
// Running it twice with the same size changes nothing the second time.
type VoxelDownsampler struct {
	VoxelSize float64
}

// Name returns "voxel_downsample".
func (f VoxelDownsampler) Name() string { return "voxel_downsample" }

// Validate checks the voxel size.
func (f VoxelDownsampler) Validate() error {
	if !(f.VoxelSize > 0) || math.IsInf(f.VoxelSize, 0) {
		return errors.Errorf("voxel size must be positive, got %v", f.VoxelSize)
	}
	return nil
}

// Apply runs the downsampler. Output points are ordered by the first point seen in each voxel.
func (f VoxelDownsampler) Apply(ctx context.Context, cloud PointCloud) (PointCloud, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if err := checkVoxelRange(cloud.MetaData(), f.VoxelSize); err != nil {
		return nil, err
	}
	voxels := map[VoxelCoords]*voxel{}
	order := make([]VoxelCoords, 0)
	cloud.Iterate(0, 0, func(p r3.Vector) bool {
		key := GetVoxelCoordinates(p, f.VoxelSize)
		v, ok := voxels[key]
		if !ok {
			v = &voxel{}
			voxels[key] = v
			order = append(order, key)
		}
		v.add(p)
		return true
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := NewWithPrealloc(len(order))
	for _, key := range order {
		if err := out.Set(voxels[key].centroid()); err != nil {
			return nil, err
		}
	}
	return out, nil
}
