package pointcloud

import (
	"context"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestGetVoxelCoordinates(t *testing.T) {
	test.That(t, GetVoxelCoordinates(r3.Vector{X: 0.005, Y: 0.015, Z: 1.005}, 0.01), test.ShouldResemble, VoxelCoords{0, 1, 100})
	test.That(t, GetVoxelCoordinates(r3.Vector{X: -0.001, Y: 0, Z: 0}, 0.01), test.ShouldResemble, VoxelCoords{-1, 0, 0})
	test.That(t, VoxelCoords{1, 2, 3}.IsEqual(VoxelCoords{1, 2, 3}), test.ShouldBeTrue)
	test.That(t, VoxelCoords{1, 2, 3}.IsEqual(VoxelCoords{1, 2, 4}), test.ShouldBeFalse)
}

func TestVoxelDownsampler(t *testing.T) {
	pc, err := NewFromPoints([]r3.Vector{
		{X: 0.001, Y: 0.001, Z: 0.001},
		{X: -0.001, Y: 0, Z: 0},
		{X: 0.009, Y: 0.009, Z: 0.009},
		{X: 0.01, Y: 0, Z: 0},
	})
	test.That(t, err, test.ShouldBeNil)

	down, err := VoxelDownsampler{VoxelSize: 0.01}.Apply(context.Background(), pc)
	test.That(t, err, test.ShouldBeNil)
	pts := Points(down)
	test.That(t, pts, test.ShouldHaveLength, 3)
	test.That(t, pts[0].X, test.ShouldAlmostEqual, 0.005)
	test.That(t, pts[0].Y, test.ShouldAlmostEqual, 0.005)
	test.That(t, pts[0].Z, test.ShouldAlmostEqual, 0.005)
	test.That(t, pts[1], test.ShouldResemble, r3.Vector{X: -0.001})
	test.That(t, pts[2], test.ShouldResemble, r3.Vector{X: 0.01})

	again, err := VoxelDownsampler{VoxelSize: 0.01}.Apply(context.Background(), down)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, Points(again), test.ShouldResemble, pts)

	_, err = VoxelDownsampler{VoxelSize: -1}.Apply(context.Background(), pc)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestVoxelDownsamplerIdempotent(t *testing.T) {
	for _, size := range []float64{0.003, 0.01, 0.05} {
		for seed := int64(1); seed <= 3; seed++ {
			cloud := randomCloud(t, seed, 2000)
			once, err := VoxelDownsampler{VoxelSize: size}.Apply(context.Background(), cloud)
			test.That(t, err, test.ShouldBeNil)
			twice, err := VoxelDownsampler{VoxelSize: size}.Apply(context.Background(), once)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, Points(twice), test.ShouldResemble, Points(once))
		}
	}

	grid := MakeGridPointCloud(4, 0.01, r3.Vector{Z: 1})
	down, err := VoxelDownsampler{VoxelSize: 0.02}.Apply(context.Background(), grid)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, down.Size(), test.ShouldBeLessThan, grid.Size())
}

func TestVoxelDownsamplerIndexRange(t *testing.T) {
	// near the largest storable coordinate a tiny voxel needs an index beyond int64
	pc, err := NewFromPoints([]r3.Vector{
		{X: minPreciseFloat64, Y: 0, Z: 1},
		{X: maxPreciseFloat64, Y: 0, Z: 1},
	})
	test.That(t, err, test.ShouldBeNil)

	_, err = VoxelDownsampler{VoxelSize: 1e-6}.Apply(context.Background(), pc)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "too small")

	out, err := VoxelDownsampler{VoxelSize: 1}.Apply(context.Background(), pc)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Size(), test.ShouldEqual, 2)

	out, err = VoxelDownsampler{VoxelSize: 1e-6}.Apply(context.Background(), New())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Size(), test.ShouldEqual, 0)
}
