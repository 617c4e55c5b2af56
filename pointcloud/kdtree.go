package pointcloud

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// indexedPoint is a cloud point that remembers its position in the cloud so that a
// search can leave out the point being queried.
type indexedPoint struct {
	r3.Vector
	index int
}

func (p indexedPoint) component(d kdtree.Dim) float64 {
	switch d {
	case 0:
		return p.X
	case 1:
		return p.Y
	default:
		return p.Z
	}
}

// Compare returns the signed distance of p from the plane through c perpendicular to d.
func (p indexedPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(indexedPoint)
	return p.component(d) - q.component(d)
}

// Dims returns the number of dimensions described by the receiver.
func (p indexedPoint) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between c and the receiver.
func (p indexedPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(indexedPoint)
	return p.Vector.Sub(q.Vector).Norm2()
}

// indexedPoints is the kdtree.Interface over a slice of cloud points.
type indexedPoints []indexedPoint

func (p indexedPoints) Index(i int) kdtree.Comparable { return p[i] }
func (p indexedPoints) Len() int                      { return len(p) }
func (p indexedPoints) Pivot(d kdtree.Dim) int {
	return pointPlane{indexedPoints: p, Dim: d}.Pivot()
}
func (p indexedPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// pointPlane is required to help indexedPoints partition around the median.
type pointPlane struct {
	kdtree.Dim
	indexedPoints
}

func (p pointPlane) Less(i, j int) bool {
	return p.indexedPoints[i].component(p.Dim) < p.indexedPoints[j].component(p.Dim)
}
func (p pointPlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p pointPlane) Slice(start, end int) kdtree.SortSlicer {
	p.indexedPoints = p.indexedPoints[start:end]
	return p
}

func (p pointPlane) Swap(i, j int) {
	p.indexedPoints[i], p.indexedPoints[j] = p.indexedPoints[j], p.indexedPoints[i]
}

// neighborIndex answers nearest neighbor queries over a fixed set of points.
type neighborIndex struct {
	points []r3.Vector
	tree   *kdtree.Tree
}

func newNeighborIndex(points []r3.Vector) *neighborIndex {
	indexed := make(indexedPoints, len(points))
	for i, p := range points {
		indexed[i] = indexedPoint{Vector: p, index: i}
	}
	return &neighborIndex{points: points, tree: kdtree.New(indexed, false)}
}

// neighbor is another point of the index and its Euclidean distance from the query.
type neighbor struct {
	index    int
	distance float64
}

// collect turns a keeper's heap into neighbors of i sorted by distance. The keeper's
// sentinel has no Comparable and is dropped along with the query point itself.
func collect(heap kdtree.Heap, i int) []neighbor {
	found := make([]neighbor, 0, len(heap))
	for _, cd := range heap {
		if cd.Comparable == nil {
			continue
		}
		p := cd.Comparable.(indexedPoint)
		if p.index == i {
			continue
		}
		found = append(found, neighbor{index: p.index, distance: math.Sqrt(cd.Dist)})
	}
	sort.Slice(found, func(a, b int) bool {
		if found[a].distance == found[b].distance {
			return found[a].index < found[b].index
		}
		return found[a].distance < found[b].distance
	})
	return found
}

// nearest returns up to k points closest to point i, not counting i itself.
func (idx *neighborIndex) nearest(i, k int) []neighbor {
	keeper := kdtree.NewNKeeper(k + 1)
	idx.tree.NearestSet(keeper, indexedPoint{Vector: idx.points[i], index: i})
	found := collect(keeper.Heap, i)
	if len(found) > k {
		found = found[:k]
	}
	return found
}

// within returns every other point at most radius away from point i.
func (idx *neighborIndex) within(i int, radius float64) []neighbor {
	keeper := kdtree.NewDistKeeper(radius * radius)
	idx.tree.NearestSet(keeper, indexedPoint{Vector: idx.points[i], index: i})
	return collect(keeper.Heap, i)
}
