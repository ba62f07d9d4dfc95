// Package landmarks loads paired anatomical landmarks and prepares them for
// the warp: column reordering, sentinel filtering and displacement summaries.
package landmarks

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/stat"

	"optreg/pkg/volume"
)

// Unset marks a landmark that was never placed. A landmark whose first
// coordinate is at or below Unset does not take part in the warp.
const Unset = -1.0

var (
	// ErrLengthMismatch is returned when source and target landmark sets
	// differ in length
	ErrLengthMismatch = errors.New("landmark sets differ in length")

	// ErrColumns is returned when a landmark array is not N x 3
	ErrColumns = errors.New("landmark array must have 3 columns")
)

// diskOrder selects the on-disk columns that make up (X, Y, Z) of the
// warp frame: column 2 first, then 0 and 1.
var diskOrder = [3]int{2, 0, 1}

// Pair is one source/target landmark correspondence
type Pair struct {
	Index  int // row in the input arrays
	Source r3.Vector
	Target r3.Vector
}

// Load reads an N x 3 landmark array and reorders its columns into the
// warp frame
func Load(path string) ([]r3.Vector, error) {
	rows, cols, data, err := volume.LoadMatrix(path)
	if err != nil {
		return nil, err
	}
	if cols != 3 {
		return nil, fmt.Errorf("%w: %s has %d", ErrColumns, path, cols)
	}
	return FromRows(rows, data), nil
}

// FromRows converts row-major N x 3 disk-ordered values to warp-frame points
func FromRows(rows int, data []float64) []r3.Vector {
	pts := make([]r3.Vector, rows)
	for i := range pts {
		row := data[i*3 : i*3+3]
		pts[i] = r3.Vector{X: row[diskOrder[0]], Y: row[diskOrder[1]], Z: row[diskOrder[2]]}
	}
	return pts
}

// Placed reports whether a landmark was set by the annotator
func Placed(p r3.Vector) bool {
	return p.X > Unset
}

// Pairs matches source and target landmarks by row and keeps only rows
// where both landmarks were placed
func Pairs(source, target []r3.Vector) ([]Pair, error) {
	if len(source) != len(target) {
		return nil, fmt.Errorf("%w: %d source vs %d target", ErrLengthMismatch, len(source), len(target))
	}

	pairs := make([]Pair, 0, len(source))
	for i := range source {
		if Placed(source[i]) && Placed(target[i]) {
			pairs = append(pairs, Pair{Index: i, Source: source[i], Target: target[i]})
		}
	}
	return pairs, nil
}

// Stats summarises how far the landmarks move between source and target
type Stats struct {
	Count int     `yaml:"count"`
	Mean  float64 `yaml:"mean"`
	Std   float64 `yaml:"std"`
	Max   float64 `yaml:"max"`
}

// Displacements computes distance statistics over the landmark pairs
func Displacements(pairs []Pair) Stats {
	if len(pairs) == 0 {
		return Stats{}
	}

	d := make([]float64, len(pairs))
	maxD := 0.0
	for i, p := range pairs {
		d[i] = p.Source.Distance(p.Target)
		maxD = math.Max(maxD, d[i])
	}

	s := Stats{Count: len(d), Max: maxD}
	if len(d) > 1 {
		s.Mean, s.Std = stat.MeanStdDev(d, nil)
	} else {
		s.Mean = d[0]
	}
	return s
}
