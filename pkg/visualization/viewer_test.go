package visualization

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optreg/internal/models"
)

// testVolume returns a volume whose voxel value encodes its index:
// 100*z + 10*x + y
func testVolume(depth, width, height int) *models.Volume {
	vol := &models.Volume{
		Data:   make([]uint8, depth*width*height),
		Depth:  depth,
		Width:  width,
		Height: height,
	}
	for z := 0; z < depth; z++ {
		for x := 0; x < width; x++ {
			for y := 0; y < height; y++ {
				vol.Data[(z*width+x)*height+y] = uint8(100*z + 10*x + y)
			}
		}
	}
	return vol
}

func TestExtractSlice(t *testing.T) {
	v := NewViewer(testVolume(2, 3, 4))

	img, err := v.ExtractSlice("z", 1)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, 3, img.Bounds().Dy())
	assert.Equal(t, uint8(123), img.GrayAt(3, 2).Y)

	img, err = v.ExtractSlice("x", 2)
	require.NoError(t, err)
	assert.Equal(t, uint8(121), img.GrayAt(1, 1).Y)

	img, err = v.ExtractSlice("Y", 3)
	require.NoError(t, err)
	assert.Equal(t, uint8(113), img.GrayAt(1, 1).Y)
}

func TestExtractSliceErrors(t *testing.T) {
	v := NewViewer(testVolume(2, 3, 4))

	_, err := v.ExtractSlice("z", -1)
	assert.Error(t, err)
	_, err = v.ExtractSlice("z", 2)
	assert.Error(t, err)
	_, err = v.ExtractSlice("w", 0)
	assert.Error(t, err)
}

func TestSampleBand(t *testing.T) {
	vol := testVolume(2, 3, 4)
	points := []models.TrackPoint{{AP: 1, DV: 1, ML: 1}}

	band := SampleBand(vol, points, 4)
	require.Len(t, band, 1)
	// k runs -2..1; k=-2 lands at (1,-1,-1) outside the volume
	assert.Equal(t, []uint8{0, 100, 111, 122}, band[0])
}

func TestSampleBandOutsideVolume(t *testing.T) {
	vol := testVolume(2, 3, 4)
	band := SampleBand(vol, []models.TrackPoint{{AP: 5, DV: 1, ML: 1}}, 3)
	assert.Equal(t, [][]uint8{{0, 0, 0}}, band)
}

func TestTrackStripSaved(t *testing.T) {
	v := NewViewer(testVolume(2, 3, 4))
	points := []models.TrackPoint{{AP: 0, DV: 1, ML: 1}, {AP: 1, DV: 1, ML: 1}}

	img := v.TrackStrip(points, 2)
	assert.Equal(t, 2, img.Bounds().Dx())
	assert.Equal(t, 2, img.Bounds().Dy())
	assert.Equal(t, uint8(111), img.GrayAt(1, 1).Y)

	path := filepath.Join(t.TempDir(), "strips", "mouse1_Probe A1.png")
	require.NoError(t, SaveImage(img, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	decoded, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())
}

func TestSaveSliceSequence(t *testing.T) {
	v := NewViewer(testVolume(2, 3, 4))
	dir := t.TempDir()

	require.NoError(t, v.SaveSliceSequence("z", dir))
	assert.FileExists(t, filepath.Join(dir, "slice_z_000.png"))
	assert.FileExists(t, filepath.Join(dir, "slice_z_001.png"))

	assert.Error(t, v.SaveSliceSequence("q", dir))
}

func TestTransformPlot(t *testing.T) {
	source := []r3.Vector{{X: 10, Y: 5, Z: 20}, {X: 30, Y: 5, Z: 40}}
	target := []r3.Vector{{X: 12, Y: 5, Z: 18}, {X: 29, Y: 6, Z: 44}}
	path := filepath.Join(t.TempDir(), "transform_plot.png")

	require.NoError(t, TransformPlot(source, target, path))
	assert.FileExists(t, path)

	assert.Error(t, TransformPlot(source, target[:1], path))
}

func TestLineFitPlot(t *testing.T) {
	a1, err := models.ParseProbe("A1")
	require.NoError(t, err)
	b2, err := models.ParseProbe("B2")
	require.NoError(t, err)

	traces := []FitTrace{
		{
			Probe:  a1,
			Raw:    []models.TrackPoint{{AP: 1, DV: 1}, {AP: 2, DV: 3}},
			Fitted: []models.TrackPoint{{AP: 0, DV: 0}, {AP: 3, DV: 4}},
		},
		{
			Probe:  b2,
			Raw:    []models.TrackPoint{{AP: 5, DV: 1}, {AP: 6, DV: 3}},
			Fitted: []models.TrackPoint{{AP: 5, DV: 0}, {AP: 7, DV: 4}},
		},
	}
	path := filepath.Join(t.TempDir(), "mouse1_probe_line_fits.png")
	require.NoError(t, LineFitPlot(traces, path))
	assert.FileExists(t, path)
}

func TestTracksImage(t *testing.T) {
	band := [][]uint8{{1, 2}, {3, 4}, {5, 6}}
	img := TracksImage([]StripTrace{
		{Column: 0, Band: band},
		{Column: 2, Band: band, Borders: []int{1}},
	}, 1)

	// three slots of two pixels plus a one pixel gap each
	assert.Equal(t, 9, img.Bounds().Dx())
	assert.Equal(t, 3, img.Bounds().Dy())

	r, g, b, _ := img.At(1, 2).RGBA()
	assert.Equal(t, []uint32{6 * 0x101, 6 * 0x101, 6 * 0x101}, []uint32{r, g, b})

	// the empty slot stays transparent
	_, _, _, a := img.At(3, 0).RGBA()
	assert.Zero(t, a)

	r, g, _, _ = img.At(7, 1).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Zero(t, g)
}
