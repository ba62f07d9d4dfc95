// Package warp builds the non-linear landmark warp that carries subject OPT
// coordinates into template space.
//
// The warp is a 3-D thin-plate spline with radial basis U(r) = r and an
// affine term. Besides the landmark pairs it is pinned at the eight corners
// of the template bounding box, which map onto themselves, so the warp stays
// bounded near the volume edges.
package warp

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"optreg/pkg/landmarks"
)

// DefaultVolumeSize is the (X, Y, Z) bounding box of the template brain
var DefaultVolumeSize = [3]float64{1024, 1024, 1023}

// coincidence tolerance for control points, in voxels
const duplicateTolerance = 1e-6

var (
	// ErrDuplicateControlPoint is returned when two source control points
	// coincide, which leaves the spline system singular
	ErrDuplicateControlPoint = errors.New("coincident source control points")

	// ErrSingular is returned when the spline system cannot be solved
	ErrSingular = errors.New("thin-plate spline system is singular")
)

// Transform maps source-space points to target space. It is immutable once
// built and safe for concurrent use.
type Transform struct {
	source []r3.Vector
	target []r3.Vector

	// control points are solved in a frame centered on the bounding box
	// and scaled to unit extent
	center r3.Vector
	scale  float64

	// normalized source control points
	nodes []r3.Vector

	// weights holds one radial coefficient per control point
	weights []r3.Vector

	// affine part: offset + linear[0]*x + linear[1]*y + linear[2]*z
	offset r3.Vector
	linear [3]r3.Vector
}

// Corners returns the eight bounding-box corners for a volume size given as
// (X, Y, Z). Corners are expressed in the warp frame, where the Z extent
// comes first.
func Corners(volumeSize [3]float64) []r3.Vector {
	corners := make([]r3.Vector, 0, 8)
	for _, x := range []float64{0, volumeSize[0]} {
		for _, y := range []float64{0, volumeSize[1]} {
			for _, z := range []float64{0, volumeSize[2]} {
				corners = append(corners, r3.Vector{X: z, Y: x, Z: y})
			}
		}
	}
	return corners
}

// DefineTransform builds the warp from paired source and target landmarks.
// Pairs where either landmark is unset are ignored. The resulting spline
// interpolates every control point exactly.
func DefineTransform(source, target []r3.Vector, volumeSize [3]float64) (*Transform, error) {
	pairs, err := landmarks.Pairs(source, target)
	if err != nil {
		return nil, err
	}
	return FromPairs(pairs, volumeSize)
}

// FromPairs builds the warp from already filtered landmark pairs
func FromPairs(pairs []landmarks.Pair, volumeSize [3]float64) (*Transform, error) {
	corners := Corners(volumeSize)

	src := make([]r3.Vector, 0, len(corners)+len(pairs))
	dst := make([]r3.Vector, 0, len(corners)+len(pairs))
	src = append(src, corners...)
	dst = append(dst, corners...)
	for _, p := range pairs {
		src = append(src, p.Source)
		dst = append(dst, p.Target)
	}

	if i, j, ok := findCoincident(src, duplicateTolerance); ok {
		return nil, fmt.Errorf("%w: control points %d and %d at %v", ErrDuplicateControlPoint, i, j, src[i])
	}

	t, err := solve(src, dst, volumeSize)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"landmarks":     len(pairs),
		"controlPoints": len(src),
	}).Debug("Built thin-plate spline transform")

	return t, nil
}

// solve sets up and solves the (n+4) x (n+4) spline system
//
//	| K   P | | W |   | Y |
//	| P^T 0 | | A | = | 0 |
//
// with K[i][j] = |s_i - s_j| and P[i] = [1 x_i y_i z_i], all in the
// normalized frame.
func solve(src, dst []r3.Vector, volumeSize [3]float64) (*Transform, error) {
	n := len(src)
	size := n + 4

	center := r3.Vector{X: volumeSize[2] / 2, Y: volumeSize[0] / 2, Z: volumeSize[1] / 2}
	scale := math.Max(volumeSize[0], math.Max(volumeSize[1], volumeSize[2]))
	if scale <= 0 {
		scale = 1
	}
	norm := func(v r3.Vector) r3.Vector { return v.Sub(center).Mul(1 / scale) }

	nodes := make([]r3.Vector, n)
	for i, s := range src {
		nodes[i] = norm(s)
	}

	L := mat.NewDense(size, size, nil)
	Y := mat.NewDense(size, 3, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			u := basis(nodes[i].Distance(nodes[j]))
			L.Set(i, j, u)
			L.Set(j, i, u)
		}

		row := [4]float64{1, nodes[i].X, nodes[i].Y, nodes[i].Z}
		for k, v := range row {
			L.Set(i, n+k, v)
			L.Set(n+k, i, v)
		}

		d := norm(dst[i])
		Y.Set(i, 0, d.X)
		Y.Set(i, 1, d.Y)
		Y.Set(i, 2, d.Z)
	}

	var lu mat.LU
	lu.Factorize(L)
	if cond := lu.Cond(); math.IsInf(cond, 1) || cond > 1e15 {
		return nil, fmt.Errorf("%w: condition number %g", ErrSingular, cond)
	}

	var coef mat.Dense
	if err := lu.SolveTo(&coef, false, Y); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}

	at := func(r int) r3.Vector {
		return r3.Vector{X: coef.At(r, 0), Y: coef.At(r, 1), Z: coef.At(r, 2)}
	}

	t := &Transform{
		source:  src,
		target:  dst,
		center:  center,
		scale:   scale,
		nodes:   nodes,
		weights: make([]r3.Vector, n),
		offset:  at(n),
		linear:  [3]r3.Vector{at(n + 1), at(n + 2), at(n + 3)},
	}
	for i := range t.weights {
		t.weights[i] = at(i)
	}
	return t, nil
}

// basis is the 3-D thin-plate radial function
func basis(r float64) float64 { return r }

// Apply maps a single source-space point into target space
func (t *Transform) Apply(p r3.Vector) r3.Vector {
	p = p.Sub(t.center).Mul(1 / t.scale)
	out := t.offset.
		Add(t.linear[0].Mul(p.X)).
		Add(t.linear[1].Mul(p.Y)).
		Add(t.linear[2].Mul(p.Z))
	for i, c := range t.nodes {
		out = out.Add(t.weights[i].Mul(basis(p.Distance(c))))
	}
	return out.Mul(t.scale).Add(t.center)
}

// NumControlPoints returns the number of source (and target) control points:
// eight corners plus every valid landmark pair
func (t *Transform) NumControlPoints() int { return len(t.source) }

// ControlPoints returns copies of the source and target control points
func (t *Transform) ControlPoints() (source, target []r3.Vector) {
	return append([]r3.Vector(nil), t.source...), append([]r3.Vector(nil), t.target...)
}

// Residual returns the root mean square distance between the warped source
// control points and their targets. It is zero up to rounding for an exact
// spline.
func (t *Transform) Residual() float64 {
	d := make([]float64, len(t.source))
	for i, s := range t.source {
		d[i] = t.Apply(s).Distance(t.target[i])
	}
	return math.Sqrt(stat.Mean(squares(d), nil))
}

func squares(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x * x
	}
	return out
}
