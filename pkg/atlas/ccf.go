package atlas

import (
	"math"

	"github.com/golang/geo/r3"

	"optreg/internal/models"
)

// OutsideAtlas is the structure ID reported for points outside the label volume
const OutsideAtlas = -1

// Mapper converts warped template voxels into CCF coordinates. The warp
// frame is (A/P, M/L, D/V); CCF coordinates are reported as (A/P, D/V, M/L).
type Mapper struct {
	// Origin is subtracted after the A/P flip, in warp-frame order
	Origin [3]float64

	// Scale converts template voxels to CCF voxels, in warp-frame order
	Scale [3]float64

	// APFlip mirrors the A/P axis: ap' = APFlip - ap
	APFlip float64

	// VoxelMM is the CCF voxel size in millimeters
	VoxelMM float64
}

// DefaultMapper returns the mapping calibrated for the OPT template
func DefaultMapper() Mapper {
	return Mapper{
		Origin:  [3]float64{-35, 42, 217},
		Scale:   [3]float64{1160.0 / 1023.0, 1140.0 / 940.0, 800.0 / 590.0},
		APFlip:  1023,
		VoxelMM: 0.01,
	}
}

// CCFPoint is a point in CCF space, in atlas voxels
type CCFPoint struct {
	AP, DV, ML float64
}

// MM converts the point to millimeters
func (m Mapper) MM(c CCFPoint) CCFPoint {
	return CCFPoint{AP: c.AP * m.VoxelMM, DV: c.DV * m.VoxelMM, ML: c.ML * m.VoxelMM}
}

// ToCCF maps a warped point into CCF voxel coordinates
func (m Mapper) ToCCF(w r3.Vector) CCFPoint {
	ap := (m.APFlip - w.X - m.Origin[0]) * m.Scale[0]
	ml := (w.Y - m.Origin[1]) * m.Scale[1]
	dv := (w.Z - m.Origin[2]) * m.Scale[2]
	return CCFPoint{AP: ap, DV: dv, ML: ml}
}

// Reference bundles the read-only atlas data used for label assignment
type Reference struct {
	Tree   *StructureTree
	Labels *models.LabelVolume
}

// StructureAt returns the 0-based structure ID at a CCF voxel coordinate.
// Coordinates are truncated toward zero. Points outside the label volume
// on any axis report (OutsideAtlas, false).
func (r Reference) StructureAt(c CCFPoint) (int, bool) {
	if r.Labels == nil {
		return OutsideAtlas, false
	}
	label, ok := r.Labels.Label(truncate(c.AP), truncate(c.DV), truncate(c.ML))
	if !ok {
		return OutsideAtlas, false
	}
	return int(label) - 1, true
}

// truncate converts toward zero, saturating values beyond the int range
// so they still fail the bounds check
func truncate(v float64) int {
	switch {
	case math.IsNaN(v):
		return -1
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	}
	return int(v)
}

// Warper is the part of the landmark transform used for label assignment
type Warper interface {
	Apply(p r3.Vector) r3.Vector
}

// Assign warps each point, maps it into CCF space and looks up its
// structure. Points outside the atlas get OutsideAtlas but keep their
// coordinates; the remaining points are unaffected.
func Assign(w Warper, m Mapper, ref Reference, probe models.Probe, points []models.TrackPoint) []models.CCFRow {
	rows := make([]models.CCFRow, len(points))
	for i, p := range points {
		ccf := m.ToCCF(w.Apply(p.WarpSpace()))
		id, _ := ref.StructureAt(ccf)
		mm := m.MM(ccf)
		rows[i] = models.CCFRow{
			Probe:       probe,
			StructureID: id,
			AP:          round3(mm.AP),
			DV:          round3(mm.DV),
			ML:          round3(mm.ML),
		}
	}
	return rows
}

// round3 rounds to three decimals, half to even
func round3(v float64) float64 {
	return math.RoundToEven(v*1000) / 1000
}
