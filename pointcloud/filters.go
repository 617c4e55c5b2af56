package pointcloud

import (
	"context"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/weedscan/weedpipe/utils"
)

// Filter is one cleaning stage. A filter only removes or merges points; the cloud it
// returns never has more points than the one it was given.
type Filter interface {
	// Name identifies the stage in logs and reports.
	Name() string
	// Apply returns the filtered cloud. The input is left untouched.
	Apply(ctx context.Context, cloud PointCloud) (PointCloud, error)
}

// StatisticalOutlierFilter removes points whose mean distance to their Neighbors nearest
// points is larger than the cloud-wide mean of that distance plus StdRatio standard deviations.
type StatisticalOutlierFilter struct {
	Neighbors int
	StdRatio  float64
}

// Name returns "statistical_outlier".
func (f StatisticalOutlierFilter) Name() string { return "statistical_outlier" }

// Validate checks the filter parameters.
func (f StatisticalOutlierFilter) Validate() error {
	if f.Neighbors < 1 {
		return errors.Errorf("statistical outlier filter needs at least 1 neighbor, got %d", f.Neighbors)
	}
	if f.StdRatio < 0 {
		return errors.Errorf("statistical outlier std ratio must not be negative, got %v", f.StdRatio)
	}
	return nil
}

// Apply runs the filter. Clouds with fewer than two points are returned as they are.
func (f StatisticalOutlierFilter) Apply(ctx context.Context, cloud PointCloud) (PointCloud, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	pts := Points(cloud)
	if len(pts) < 2 {
		return NewFromPoints(pts)
	}
	meanDists, err := MeanNeighborDistances(ctx, pts, f.Neighbors)
	if err != nil {
		return nil, err
	}
	mean, std := stat.MeanStdDev(meanDists, nil)
	threshold := mean + f.StdRatio*std
	return keepWhere(pts, func(i int) bool {
		return meanDists[i] <= threshold
	})
}

// MeanNeighborDistances returns, for every point, the mean Euclidean distance to its k nearest
// other points. A point with no other points around it gets 0.
func MeanNeighborDistances(ctx context.Context, pts []r3.Vector, k int) ([]float64, error) {
	idx := newNeighborIndex(pts)
	meanDists := make([]float64, len(pts))
	err := utils.GroupWorkParallel(ctx, len(pts), func(groupNum, groupSize, from, to int) (utils.MemberWorkFunc, utils.GroupWorkDoneFunc) {
		return func(memberNum, workNum int) {
			found := idx.nearest(workNum, k)
			if len(found) == 0 {
				return
			}
			total := 0.0
			for _, n := range found {
				total += n.distance
			}
			meanDists[workNum] = total / float64(len(found))
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return meanDists, nil
}

// RadiusOutlierFilter removes points that have fewer than MinPoints other points within Radius.
type RadiusOutlierFilter struct {
	MinPoints int
	Radius    float64
}

// Name returns "radius_outlier".
func (f RadiusOutlierFilter) Name() string { return "radius_outlier" }

// Validate checks the filter parameters.
func (f RadiusOutlierFilter) Validate() error {
	if f.MinPoints < 1 {
		return errors.Errorf("radius outlier filter needs at least 1 point, got %d", f.MinPoints)
	}
	if !(f.Radius > 0) {
		return errors.Errorf("radius outlier radius must be positive, got %v", f.Radius)
	}
	return nil
}

// Apply runs the filter.
func (f RadiusOutlierFilter) Apply(ctx context.Context, cloud PointCloud) (PointCloud, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	pts := Points(cloud)
	if len(pts) == 0 {
		return New(), nil
	}
	idx := newNeighborIndex(pts)
	counts := make([]int, len(pts))
	err := utils.GroupWorkParallel(ctx, len(pts), func(groupNum, groupSize, from, to int) (utils.MemberWorkFunc, utils.GroupWorkDoneFunc) {
		return func(memberNum, workNum int) {
			counts[workNum] = len(idx.within(workNum, f.Radius))
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return keepWhere(pts, func(i int) bool {
		return counts[i] >= f.MinPoints
	})
}

// keepWhere builds a cloud of the points for which keep is true, preserving order.
func keepWhere(pts []r3.Vector, keep func(i int) bool) (PointCloud, error) {
	out := NewWithPrealloc(len(pts))
	for i, p := range pts {
		if !keep(i) {
			continue
		}
		if err := out.Set(p); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ApplyFilters runs filters in order and returns the final cloud together with the size
// after each stage.
func ApplyFilters(ctx context.Context, cloud PointCloud, filters ...Filter) (PointCloud, []int, error) {
	sizes := make([]int, 0, len(filters))
	for _, f := range filters {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		filtered, err := f.Apply(ctx, cloud)
		if err != nil {
			return nil, nil, errors.Wrap(err, f.Name())
		}
		cloud = filtered
		sizes = append(sizes, cloud.Size())
	}
	return cloud, sizes, nil
}
