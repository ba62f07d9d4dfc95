package models

import (
	"github.com/golang/geo/r3"
)

// TrackPoint is a point along a probe track in subject volume voxels.
// Field order mirrors the fitter's axis convention [AP, DV, ML].
type TrackPoint struct {
	AP float64
	DV float64
	ML float64
}

// WarpSpace returns the point in the axis order the landmark warp is
// defined in: X=AP, Y=ML, Z=DV.
func (p TrackPoint) WarpSpace() r3.Vector {
	return r3.Vector{X: p.AP, Y: p.ML, Z: p.DV}
}

// CCFRow is one output row of a transformed track table.
type CCFRow struct {
	Probe       Probe
	StructureID int

	// AP, DV and ML are CCF coordinates in millimeters
	AP float64
	DV float64
	ML float64
}
