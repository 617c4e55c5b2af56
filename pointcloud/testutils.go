package pointcloud

import (
	"github.com/golang/geo/r3"
)

// MakeTestPointCloud creates a test point cloud with 3 points.
func MakeTestPointCloud() PointCloud {
	pc := NewWithPrealloc(3)
	for _, p := range []r3.Vector{{X: 0, Y: 0, Z: 1}, {X: 0.1, Y: 0, Z: 1}, {X: 0, Y: 0.1, Z: 1.2}} {
		if err := pc.Set(p); err != nil {
			return nil
		}
	}
	return pc
}

// MakeGridPointCloud creates a cubic lattice of n*n*n points spaced spacing apart, starting at origin.
func MakeGridPointCloud(n int, spacing float64, origin r3.Vector) PointCloud {
	pc := NewWithPrealloc(n * n * n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				p := origin.Add(r3.Vector{X: float64(i) * spacing, Y: float64(j) * spacing, Z: float64(k) * spacing})
				if err := pc.Set(p); err != nil {
					return nil
				}
			}
		}
	}
	return pc
}
