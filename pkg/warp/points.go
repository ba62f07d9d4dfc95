package warp

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// controlPoint wraps a warp-frame point for the k-d tree
type controlPoint struct {
	r3.Vector
	index int
}

// Compare implements the kdtree.Comparable interface
func (p controlPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(controlPoint)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	case 2:
		return p.Z - q.Z
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree
func (p controlPoint) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between two points
func (p controlPoint) Distance(c kdtree.Comparable) float64 {
	return p.Sub(c.(controlPoint).Vector).Norm2()
}

// controlPoints satisfies kdtree.Interface
type controlPoints []controlPoint

func (p controlPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p controlPoints) Len() int                              { return len(p) }
func (p controlPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p controlPoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(pointPlane{controlPoints: p, Dim: d}, kdtree.MedianOfMedians(pointPlane{controlPoints: p, Dim: d}))
}

// pointPlane implements sort.Interface and kdtree.SortSlicer for controlPoints
type pointPlane struct {
	controlPoints
	kdtree.Dim
}

func (p pointPlane) Less(i, j int) bool {
	return p.controlPoints[i].Compare(p.controlPoints[j], p.Dim) < 0
}

func (p pointPlane) Slice(start, end int) kdtree.SortSlicer {
	return pointPlane{controlPoints: p.controlPoints[start:end], Dim: p.Dim}
}

func (p pointPlane) Swap(i, j int) {
	p.controlPoints[i], p.controlPoints[j] = p.controlPoints[j], p.controlPoints[i]
}

// findCoincident returns the indices of the first two points closer than tol,
// or ok=false when every point is distinct
func findCoincident(pts []r3.Vector, tol float64) (i, j int, ok bool) {
	if len(pts) < 2 {
		return 0, 0, false
	}

	cps := make(controlPoints, len(pts))
	for k, p := range pts {
		cps[k] = controlPoint{Vector: p, index: k}
	}
	tree := kdtree.New(append(controlPoints(nil), cps...), false)

	for _, q := range cps {
		keeper := kdtree.NewNKeeper(2)
		tree.NearestSet(keeper, q)
		for _, item := range keeper.Heap {
			// Skip the sentinel value
			if item.Comparable == nil {
				continue
			}
			other := item.Comparable.(controlPoint)
			if other.index != q.index && item.Dist <= tol*tol {
				a, b := q.index, other.index
				if a > b {
					a, b = b, a
				}
				return a, b, true
			}
		}
	}
	return 0, 0, false
}
