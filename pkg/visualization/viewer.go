package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"

	"optreg/internal/models"
)

// Viewer extracts 2D images from an OPT volume for review
type Viewer struct {
	vol *models.Volume
}

// NewViewer creates a new viewer over vol
func NewViewer(vol *models.Volume) *Viewer {
	return &Viewer{vol: vol}
}

// ExtractSlice extracts a 2D slice from the volume. Axis "z" is the A/P
// axis of the scan, "x" the D/V axis and "y" the M/L axis.
func (v *Viewer) ExtractSlice(axis string, position int) (*image.Gray, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	vol := v.vol
	var img *image.Gray

	switch axis {
	case "z", "Z":
		if position >= vol.Depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, vol.Depth)
		}
		img = image.NewGray(image.Rect(0, 0, vol.Height, vol.Width))
		for x := 0; x < vol.Width; x++ {
			for y := 0; y < vol.Height; y++ {
				val, _ := vol.At(position, x, y)
				img.SetGray(y, x, color.Gray{Y: val})
			}
		}

	case "x", "X":
		if position >= vol.Width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, vol.Width)
		}
		img = image.NewGray(image.Rect(0, 0, vol.Height, vol.Depth))
		for z := 0; z < vol.Depth; z++ {
			for y := 0; y < vol.Height; y++ {
				val, _ := vol.At(z, position, y)
				img.SetGray(y, z, color.Gray{Y: val})
			}
		}

	case "y", "Y":
		if position >= vol.Height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, vol.Height)
		}
		img = image.NewGray(image.Rect(0, 0, vol.Width, vol.Depth))
		for z := 0; z < vol.Depth; z++ {
			for x := 0; x < vol.Width; x++ {
				val, _ := vol.At(z, x, position)
				img.SetGray(x, z, color.Gray{Y: val})
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// SampleBand samples a diagonal band of width voxels across each track
// point, stepping D/V and M/L together. Row i of the result belongs to
// points[i]. Samples outside the volume stay 0.
func SampleBand(vol *models.Volume, points []models.TrackPoint, width int) [][]uint8 {
	band := make([][]uint8, len(points))
	half := width / 2
	for i, p := range points {
		row := make([]uint8, width)
		for k := -half; k < width-half; k++ {
			val, ok := vol.At(int(p.AP), int(p.DV+float64(k)), int(p.ML+float64(k)))
			if ok {
				row[k+half] = val
			}
		}
		band[i] = row
	}
	return band
}

// Strip renders a sampled band as a grayscale image, one row per track
// point
func Strip(band [][]uint8) *image.Gray {
	width := 0
	if len(band) > 0 {
		width = len(band[0])
	}
	img := image.NewGray(image.Rect(0, 0, width, len(band)))
	for y, row := range band {
		copy(img.Pix[y*img.Stride:], row)
	}
	return img
}

// TrackStrip samples the band along a fitted track and returns it as an
// image
func (v *Viewer) TrackStrip(points []models.TrackPoint, width int) *image.Gray {
	return Strip(SampleBand(v.vol, points, width))
}

// SaveImage saves img as a PNG file, creating the parent directory
func SaveImage(img image.Image, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return png.Encode(file, img)
}

// SaveSliceSequence extracts and saves every slice along the specified axis
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.vol.Width
	case "y", "Y":
		maxPos = v.vol.Height
	case "z", "Z":
		maxPos = v.vol.Depth
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.png", axis, pos))
		if err := SaveImage(img, filename); err != nil {
			return err
		}
	}

	return nil
}

// StripTrace is one probe column of a tracks overview
type StripTrace struct {
	// Column is the slot of the probe; missing probes leave their slot empty
	Column int

	// Band is the sampled intensity band along the track
	Band [][]uint8

	// Borders are row indices marked as structure boundaries
	Borders []int
}

// TracksImage lays out the intensity strips of several probes side by
// side, separated by gap pixels, with boundary rows marked in red
func TracksImage(traces []StripTrace, gap int) *image.RGBA {
	width, height, columns := 0, 0, 0
	for _, tr := range traces {
		if len(tr.Band) > height {
			height = len(tr.Band)
		}
		if len(tr.Band) > 0 && len(tr.Band[0]) > width {
			width = len(tr.Band[0])
		}
		if tr.Column+1 > columns {
			columns = tr.Column + 1
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, columns*(width+gap), height))
	marker := color.RGBA{R: 255, A: 255}
	for _, tr := range traces {
		x0 := tr.Column * (width + gap)
		strip := Strip(tr.Band)
		draw.Draw(img, strip.Bounds().Add(image.Pt(x0, 0)), strip, image.Point{}, draw.Src)
		for _, row := range tr.Borders {
			for x := 0; x < strip.Bounds().Dx(); x++ {
				img.SetRGBA(x0+x, row, marker)
			}
		}
	}
	return img
}
