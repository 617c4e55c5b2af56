// Package pointcloud defines the point cloud built from a depth frame, the filters that clean
// it and the file formats it is stored in.
//
// Points are kept in insertion order. A cloud reconstructed from a depth frame therefore
// iterates in row-major pixel order, which is the only ordering the file formats preserve.
package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
)

// MetaData is data about what's stored in the point cloud.
type MetaData struct {
	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64

	totalX, totalY, totalZ float64
}

// PointCloud is a general purpose container of points in meters.
type PointCloud interface {
	// Size returns the number of points in the cloud.
	Size() int

	// MetaData returns meta data
	MetaData() MetaData

	// Set appends the given point to the cloud.
	Set(p r3.Vector) error

	// Iterate iterates over all points in the cloud, in insertion order, and calls the given
	// function for each point. If the supplied function returns false, iteration will stop
	// after the function returns.
	// numBatches lets you divide up he work. 0 means don't divide
	// myBatch is used iff numBatches > 0 and is which batch you want
	Iterate(numBatches, myBatch int, fn func(p r3.Vector) bool)
}

// NewMetaData creates a new MetaData.
func NewMetaData() MetaData {
	return MetaData{
		MinX: math.MaxFloat64,
		MinY: math.MaxFloat64,
		MinZ: math.MaxFloat64,
		MaxX: -math.MaxFloat64,
		MaxY: -math.MaxFloat64,
		MaxZ: -math.MaxFloat64,
	}
}

// Merge updates the bounds and running totals with a new point.
func (meta *MetaData) Merge(v r3.Vector) {
	meta.MaxX = math.Max(meta.MaxX, v.X)
	meta.MaxY = math.Max(meta.MaxY, v.Y)
	meta.MaxZ = math.Max(meta.MaxZ, v.Z)

	meta.MinX = math.Min(meta.MinX, v.X)
	meta.MinY = math.Min(meta.MinY, v.Y)
	meta.MinZ = math.Min(meta.MinZ, v.Z)

	meta.totalX += v.X
	meta.totalY += v.Y
	meta.totalZ += v.Z
}

// Extent is the size of the bounding box. It is zero for an empty cloud.
func (meta MetaData) Extent() r3.Vector {
	if meta.MaxX < meta.MinX {
		return r3.Vector{}
	}
	return r3.Vector{X: meta.MaxX - meta.MinX, Y: meta.MaxY - meta.MinY, Z: meta.MaxZ - meta.MinZ}
}

// CloudCentroid returns the centroid of a pointcloud as a vector.
func CloudCentroid(pc PointCloud) r3.Vector {
	if pc.Size() == 0 {
		// This is done to match the centroid of an empty pointcloud
		return r3.Vector{}
	}
	meta := pc.MetaData()
	size := float64(pc.Size())
	return r3.Vector{X: meta.totalX / size, Y: meta.totalY / size, Z: meta.totalZ / size}
}

// Points copies the cloud's points into a slice, in iteration order.
func Points(pc PointCloud) []r3.Vector {
	pts := make([]r3.Vector, 0, pc.Size())
	pc.Iterate(0, 0, func(p r3.Vector) bool {
		pts = append(pts, p)
		return true
	})
	return pts
}

// NewFromPoints builds a cloud holding pts in order.
func NewFromPoints(pts []r3.Vector) (PointCloud, error) {
	pc := NewWithPrealloc(len(pts))
	for _, p := range pts {
		if err := pc.Set(p); err != nil {
			return nil, err
		}
	}
	return pc, nil
}
