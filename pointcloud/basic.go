package pointcloud

import (
	"github.com/golang/geo/r3"
)

// basicPointCloud is the basic implementation of the PointCloud interface backed by
// a slice of points.
type basicPointCloud struct {
	points []r3.Vector
	meta   MetaData
}

// New returns an empty PointCloud backed by a basicPointCloud.
func New() PointCloud {
	return NewWithPrealloc(0)
}

// NewWithPrealloc returns an empty, preallocated PointCloud backed by a basicPointCloud.
func NewWithPrealloc(size int) PointCloud {
	return &basicPointCloud{
		points: make([]r3.Vector, 0, size),
		meta:   NewMetaData(),
	}
}

func (cloud *basicPointCloud) Size() int {
	return len(cloud.points)
}

func (cloud *basicPointCloud) MetaData() MetaData {
	return cloud.meta
}

// Set validates that the point can be precisely stored before appending it to the cloud.
func (cloud *basicPointCloud) Set(p r3.Vector) error {
	if err := CheckPoint(p); err != nil {
		return err
	}
	cloud.points = append(cloud.points, p)
	cloud.meta.Merge(p)
	return nil
}

func (cloud *basicPointCloud) Iterate(numBatches, myBatch int, fn func(p r3.Vector) bool) {
	if numBatches > 0 {
		for i := myBatch; i < len(cloud.points); i += numBatches {
			if !fn(cloud.points[i]) {
				return
			}
		}
		return
	}
	for _, p := range cloud.points {
		if !fn(p) {
			return
		}
	}
}
