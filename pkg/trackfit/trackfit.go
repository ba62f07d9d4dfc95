// Package trackfit reconstructs a straight probe shank from the points an
// annotator clicked along its track.
package trackfit

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"optreg/internal/models"
)

// ErrNoPoints is returned when a probe has no annotation points
var ErrNoPoints = errors.New("no annotation points")

// Options controls how the fitted line is resampled. Samples are taken at
// offsets Min, Min+Step, ... below Max, measured from the centroid along
// the principal axis.
type Options struct {
	Min  float64
	Max  float64
	Step float64
}

// DefaultOptions spans +/-200 voxels at 0.7 voxel spacing (572 samples)
func DefaultOptions() Options {
	return Options{Min: -200, Max: 200, Step: 0.7}
}

// NumSamples returns the number of points generated for these options
func (o Options) NumSamples() int {
	if o.Step <= 0 || o.Max <= o.Min {
		return 0
	}
	return int(math.Ceil((o.Max - o.Min) / o.Step))
}

// Line is a fitted and resampled probe track
type Line struct {
	// Centroid is the mean of the annotation points
	Centroid models.TrackPoint

	// Axis is the unit principal direction, oriented dorsal to ventral
	Axis models.TrackPoint

	// Points are the resampled positions, first point most dorsal
	Points []models.TrackPoint
}

// Fit computes the principal axis of the points through their centroid and
// resamples it. The returned sequence always runs dorsal to ventral: if the
// last sample lies above the first in D/V the whole sequence is reversed.
func Fit(points []models.TrackPoint, opts Options) (*Line, error) {
	n := len(points)
	if n == 0 {
		return nil, ErrNoPoints
	}
	samples := opts.NumSamples()
	if samples == 0 {
		return nil, fmt.Errorf("empty sampling range [%g, %g) step %g", opts.Min, opts.Max, opts.Step)
	}

	var c models.TrackPoint
	for _, p := range points {
		c.AP += p.AP
		c.DV += p.DV
		c.ML += p.ML
	}
	c.AP /= float64(n)
	c.DV /= float64(n)
	c.ML /= float64(n)

	axis, err := principalAxis(points, c)
	if err != nil {
		return nil, err
	}

	line := &Line{Centroid: c, Axis: axis, Points: make([]models.TrackPoint, samples)}
	for k := range line.Points {
		t := opts.Min + float64(k)*opts.Step
		line.Points[k] = models.TrackPoint{
			AP: c.AP + t*axis.AP,
			DV: c.DV + t*axis.DV,
			ML: c.ML + t*axis.ML,
		}
	}

	if line.Points[samples-1].DV-line.Points[0].DV < 0 {
		reverse(line.Points)
		line.Axis = models.TrackPoint{AP: -axis.AP, DV: -axis.DV, ML: -axis.ML}
	}
	return line, nil
}

// principalAxis returns the first right-singular vector of the centered
// point matrix. A single point has no direction and yields the zero vector.
func principalAxis(points []models.TrackPoint, c models.TrackPoint) (models.TrackPoint, error) {
	if len(points) == 1 {
		return models.TrackPoint{}, nil
	}

	d := mat.NewDense(len(points), 3, nil)
	for i, p := range points {
		d.Set(i, 0, p.AP-c.AP)
		d.Set(i, 1, p.DV-c.DV)
		d.Set(i, 2, p.ML-c.ML)
	}

	var svd mat.SVD
	if ok := svd.Factorize(d, mat.SVDThinV); !ok {
		return models.TrackPoint{}, fmt.Errorf("SVD of %d annotation points failed", len(points))
	}

	var v mat.Dense
	svd.VTo(&v)
	return models.TrackPoint{AP: v.At(0, 0), DV: v.At(1, 0), ML: v.At(2, 0)}, nil
}

func reverse(pts []models.TrackPoint) {
	for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
		pts[i], pts[j] = pts[j], pts[i]
	}
}
