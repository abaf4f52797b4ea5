package resample

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"

	"fibertrack/internal/models"
)

// meshPoint is a seed coordinate in mm that satisfies kdtree.Comparable.
type meshPoint models.Point3

// Compare implements the kdtree.Comparable interface
func (p meshPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(meshPoint)
	return models.Point3(p).At(models.Axis(d)) - models.Point3(q).At(models.Axis(d))
}

// Dims returns the number of dimensions for the KD-tree
func (p meshPoint) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between two points
func (p meshPoint) Distance(c kdtree.Comparable) float64 {
	d := models.Point3(p).Sub(models.Point3(c.(meshPoint)))
	return d.Row*d.Row + d.Col*d.Col + d.Slice*d.Slice
}

// meshPoints is a collection of meshPoint that satisfies kdtree.Interface
type meshPoints []meshPoint

func (p meshPoints) Index(i int) kdtree.Comparable        { return p[i] }
func (p meshPoints) Len() int                             { return len(p) }
func (p meshPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p meshPoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(meshPlane{meshPoints: p, Dim: d}, kdtree.MedianOfRandoms(meshPlane{meshPoints: p, Dim: d}, 100))
}

// meshPlane implements sort.Interface and kdtree.SortSlicer for meshPoints
type meshPlane struct {
	meshPoints
	kdtree.Dim
}

func (p meshPlane) Less(i, j int) bool {
	a := models.Axis(p.Dim)
	return models.Point3(p.meshPoints[i]).At(a) < models.Point3(p.meshPoints[j]).At(a)
}

func (p meshPlane) Slice(start, end int) kdtree.SortSlicer {
	return meshPlane{meshPoints: p.meshPoints[start:end], Dim: p.Dim}
}

func (p meshPlane) Swap(i, j int) {
	p.meshPoints[i], p.meshPoints[j] = p.meshPoints[j], p.meshPoints[i]
}

// minSpacing returns the smallest nonzero distance between any two of the
// given points, or +Inf when fewer than two distinct points exist.
func minSpacing(pts []models.Point3) float64 {
	// Coincident seeds would hide the nearest distinct neighbour, so the
	// tree is built over unique coordinates only.
	seen := make(map[models.Point3]struct{}, len(pts))
	unique := make(meshPoints, 0, len(pts))
	for _, p := range pts {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		unique = append(unique, meshPoint(p))
	}
	if len(unique) < 2 {
		return math.Inf(1)
	}

	// Pivot reorders the backing slice, so queries use a separate copy
	queries := append(meshPoints(nil), unique...)
	tree := kdtree.New(unique, false)

	best := math.Inf(1)
	for _, q := range queries {
		keeper := kdtree.NewNKeeper(2)
		tree.NearestSet(keeper, q)
		for _, cd := range keeper.Heap {
			if cd.Comparable == nil || cd.Dist == 0 {
				continue
			}
			if cd.Dist < best {
				best = cd.Dist
			}
		}
	}
	return math.Sqrt(best)
}
