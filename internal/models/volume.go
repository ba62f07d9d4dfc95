package models

// Volume represents an OPT intensity volume decoded from a Drishti container
type Volume struct {
	// Data holds the voxels as a 1D array in row-major (Z, X, Y) order
	Data []uint8

	// Depth, Width and Height are the Z, X and Y extents in voxels
	Depth  int
	Width  int
	Height int

	// VoxelType is the first header byte, kept for reference only
	VoxelType uint8
}

// Dims returns the (Z, X, Y) extents of the volume
func (v *Volume) Dims() [3]int {
	return [3]int{v.Depth, v.Width, v.Height}
}

// Contains reports whether (z, x, y) is a valid voxel index
func (v *Volume) Contains(z, x, y int) bool {
	return z >= 0 && z < v.Depth &&
		x >= 0 && x < v.Width &&
		y >= 0 && y < v.Height
}

// At returns the voxel at (z, x, y). The second return value is false when
// the index falls outside the volume.
func (v *Volume) At(z, x, y int) (uint8, bool) {
	if !v.Contains(z, x, y) {
		return 0, false
	}
	return v.Data[(z*v.Width+x)*v.Height+y], true
}

// LabelVolume is a rasterized atlas annotation where every voxel holds a
// 1-based structure ID. Axes are (A/P, D/V, M/L) in atlas voxels.
type LabelVolume struct {
	// Data is stored in row-major order
	Data []int32

	// Shape holds the extent of each axis
	Shape [3]int
}

// Label returns the stored label at (ap, dv, ml) without any offset applied.
// Indices outside the grid, including negative ones, report false.
func (l *LabelVolume) Label(ap, dv, ml int) (int32, bool) {
	if ap < 0 || ap >= l.Shape[0] ||
		dv < 0 || dv >= l.Shape[1] ||
		ml < 0 || ml >= l.Shape[2] {
		return 0, false
	}
	return l.Data[(ap*l.Shape[1]+dv)*l.Shape[2]+ml], true
}
