package trackfit

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optreg/internal/models"
)

// syntheticTrack places points on a straight line from DV=100 to DV=500
func syntheticTrack(n int) []models.TrackPoint {
	pts := make([]models.TrackPoint, n)
	for i := range pts {
		f := float64(i) / float64(n-1)
		pts[i] = models.TrackPoint{AP: 400 + 40*f, DV: 100 + 400*f, ML: 300 - 60*f}
	}
	return pts
}

func TestNumSamples(t *testing.T) {
	assert.Equal(t, 572, DefaultOptions().NumSamples())
	assert.Equal(t, 800, Options{Min: -200, Max: 200, Step: 0.5}.NumSamples())
	assert.Equal(t, 0, Options{Min: 1, Max: 1, Step: 1}.NumSamples())
}

func TestFitRunsDorsalToVentral(t *testing.T) {
	forward := syntheticTrack(12)
	backward := make([]models.TrackPoint, len(forward))
	for i, p := range forward {
		backward[len(forward)-1-i] = p
	}

	for name, pts := range map[string][]models.TrackPoint{"forward": forward, "backward": backward} {
		t.Run(name, func(t *testing.T) {
			line, err := Fit(pts, DefaultOptions())
			require.NoError(t, err)
			require.Len(t, line.Points, 572)

			first, last := line.Points[0], line.Points[len(line.Points)-1]
			assert.LessOrEqual(t, first.DV, last.DV)
			assert.Greater(t, line.Axis.DV, 0.0)

			// DV increases monotonically along the resampled line
			for i := 1; i < len(line.Points); i++ {
				assert.GreaterOrEqual(t, line.Points[i].DV, line.Points[i-1].DV)
			}
		})
	}
}

func TestFitPassesThroughCentroidAlongTrack(t *testing.T) {
	pts := syntheticTrack(8)
	line, err := Fit(pts, DefaultOptions())
	require.NoError(t, err)

	assert.InDelta(t, 420.0, line.Centroid.AP, 1e-9)
	assert.InDelta(t, 300.0, line.Centroid.DV, 1e-9)
	assert.InDelta(t, 270.0, line.Centroid.ML, 1e-9)

	norm := math.Sqrt(line.Axis.AP*line.Axis.AP + line.Axis.DV*line.Axis.DV + line.Axis.ML*line.Axis.ML)
	assert.InDelta(t, 1.0, norm, 1e-9)

	// the axis is parallel to the generating direction (40, 400, -60)
	dir := [3]float64{40, 400, -60}
	dn := math.Sqrt(dir[0]*dir[0] + dir[1]*dir[1] + dir[2]*dir[2])
	assert.InDelta(t, dir[0]/dn, line.Axis.AP, 1e-9)
	assert.InDelta(t, dir[1]/dn, line.Axis.DV, 1e-9)
	assert.InDelta(t, dir[2]/dn, line.Axis.ML, 1e-9)

	// the sample at offset zero (k = 200/0.7 ~ 285.7) sits next to the centroid
	mid := line.Points[286]
	assert.InDelta(t, line.Centroid.DV, mid.DV, 1.0)
}

func TestFitSpansFixedRange(t *testing.T) {
	line, err := Fit(syntheticTrack(5), DefaultOptions())
	require.NoError(t, err)

	first, last := line.Points[0], line.Points[len(line.Points)-1]
	dist := math.Sqrt(math.Pow(last.AP-first.AP, 2) + math.Pow(last.DV-first.DV, 2) + math.Pow(last.ML-first.ML, 2))
	assert.InDelta(t, 571*0.7, dist, 1e-6)
}

func TestFitNoPoints(t *testing.T) {
	_, err := Fit(nil, DefaultOptions())
	assert.True(t, errors.Is(err, ErrNoPoints))
}

func TestFitSinglePoint(t *testing.T) {
	p := models.TrackPoint{AP: 1, DV: 2, ML: 3}
	line, err := Fit([]models.TrackPoint{p}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, p, line.Points[0])
	assert.Equal(t, p, line.Points[len(line.Points)-1])
}

func TestFitRejectsEmptyRange(t *testing.T) {
	_, err := Fit(syntheticTrack(3), Options{Min: 0, Max: 0, Step: 1})
	assert.Error(t, err)
}
