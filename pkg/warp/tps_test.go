package warp

import (
	"errors"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optreg/pkg/landmarks"
)

const tol = 1e-6

func assertVecNear(t *testing.T, want, got r3.Vector, delta float64, msgAndArgs ...interface{}) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, delta, msgAndArgs...)
	assert.InDelta(t, want.Y, got.Y, delta, msgAndArgs...)
	assert.InDelta(t, want.Z, got.Z, delta, msgAndArgs...)
}

// sampleLandmarks returns a small brain-like landmark set with a smooth
// non-rigid displacement and two unset rows
func sampleLandmarks() (source, target []r3.Vector) {
	source = []r3.Vector{
		{X: 300, Y: 400, Z: 350},
		{X: 500, Y: 520, Z: 300},
		{X: 700, Y: 450, Z: 600},
		{X: -1, Y: -1, Z: -1},
		{X: 420, Y: 610, Z: 480},
		{X: 610, Y: 380, Z: 420},
		{X: 550, Y: 700, Z: 700},
	}
	target = make([]r3.Vector, len(source))
	for i, s := range source {
		target[i] = r3.Vector{X: s.X + 12 + 0.02*s.Y, Y: s.Y - 8, Z: s.Z*1.05 - 5}
	}
	target[5] = r3.Vector{X: -1, Y: -1, Z: -1}
	return source, target
}

func TestCorners(t *testing.T) {
	corners := Corners([3]float64{1024, 1024, 1023})
	require.Len(t, corners, 8)
	assert.Equal(t, r3.Vector{}, corners[0])
	assert.Equal(t, r3.Vector{X: 1023, Y: 0, Z: 0}, corners[1])
	assert.Equal(t, r3.Vector{X: 1023, Y: 1024, Z: 1024}, corners[7])
}

func TestCornersAreFixedPoints(t *testing.T) {
	source, target := sampleLandmarks()
	for _, size := range [][3]float64{DefaultVolumeSize, {200, 300, 400}} {
		tr, err := DefineTransform(source, target, size)
		require.NoError(t, err)

		for _, c := range Corners(size) {
			assertVecNear(t, c, tr.Apply(c), tol, "corner %v", c)
		}
	}
}

func TestLandmarksMapOntoTargets(t *testing.T) {
	source, target := sampleLandmarks()
	tr, err := DefineTransform(source, target, DefaultVolumeSize)
	require.NoError(t, err)

	pairs, err := landmarks.Pairs(source, target)
	require.NoError(t, err)
	for _, p := range pairs {
		assertVecNear(t, p.Target, tr.Apply(p.Source), tol, "landmark %d", p.Index)
	}
	assert.Less(t, tr.Residual(), tol)
}

func TestControlPointCount(t *testing.T) {
	source, target := sampleLandmarks()
	tr, err := DefineTransform(source, target, DefaultVolumeSize)
	require.NoError(t, err)

	// rows 3 and 5 are unset on one side
	assert.Equal(t, 8+5, tr.NumControlPoints())
	src, dst := tr.ControlPoints()
	assert.Len(t, src, tr.NumControlPoints())
	assert.Len(t, dst, tr.NumControlPoints())
}

func TestIdentityLandmarksGiveIdentityWarp(t *testing.T) {
	source, _ := sampleLandmarks()
	tr, err := DefineTransform(source, source, DefaultVolumeSize)
	require.NoError(t, err)

	for _, p := range []r3.Vector{{X: 10, Y: 20, Z: 30}, {X: 512, Y: 512, Z: 512}, {X: 900, Y: 100, Z: 50}} {
		assertVecNear(t, p, tr.Apply(p), tol)
	}
}

func TestApplyIsDeterministic(t *testing.T) {
	source, target := sampleLandmarks()
	a, err := DefineTransform(source, target, DefaultVolumeSize)
	require.NoError(t, err)
	b, err := DefineTransform(source, target, DefaultVolumeSize)
	require.NoError(t, err)

	p := r3.Vector{X: 455.5, Y: 512.25, Z: 390}
	assert.Equal(t, a.Apply(p), a.Apply(p))
	assert.Equal(t, a.Apply(p), b.Apply(p))
}

func TestNoLandmarksStillPinsCorners(t *testing.T) {
	tr, err := DefineTransform(nil, nil, DefaultVolumeSize)
	require.NoError(t, err)
	assert.Equal(t, 8, tr.NumControlPoints())

	p := r3.Vector{X: 300, Y: 300, Z: 300}
	assertVecNear(t, p, tr.Apply(p), tol)
}

func TestDuplicateSourceLandmarksRejected(t *testing.T) {
	source := []r3.Vector{{X: 100, Y: 100, Z: 100}, {X: 100, Y: 100, Z: 100}}
	target := []r3.Vector{{X: 101, Y: 100, Z: 100}, {X: 120, Y: 90, Z: 100}}

	_, err := DefineTransform(source, target, DefaultVolumeSize)
	assert.True(t, errors.Is(err, ErrDuplicateControlPoint))

	// a landmark on a corner collides with the anchor
	_, err = DefineTransform([]r3.Vector{{}}, []r3.Vector{{X: 5}}, DefaultVolumeSize)
	assert.True(t, errors.Is(err, ErrDuplicateControlPoint))
}

func TestLengthMismatch(t *testing.T) {
	_, err := DefineTransform(make([]r3.Vector, 2), make([]r3.Vector, 3), DefaultVolumeSize)
	assert.True(t, errors.Is(err, landmarks.ErrLengthMismatch))
}
