package visualization

import (
	"fmt"
	"image/color"

	"github.com/golang/geo/r3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"optreg/internal/models"
)

const (
	plotWidth  = 8 * vg.Inch
	plotHeight = 6 * vg.Inch
)

var (
	sourceColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	targetColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// FitTrace is the line fit of one probe drawn by LineFitPlot
type FitTrace struct {
	Probe  models.Probe
	Raw    []models.TrackPoint
	Fitted []models.TrackPoint
}

// TransformPlot draws every landmark pair as a segment from its source to
// its target position in the sagittal plane (A/P against inverted D/V).
// Points are in warp space: X=AP, Y=ML, Z=DV.
func TransformPlot(source, target []r3.Vector, filename string) error {
	if len(source) != len(target) {
		return fmt.Errorf("landmark sets differ in length: %d vs %d", len(source), len(target))
	}

	p := plot.New()
	p.Title.Text = "Landmark displacement"
	p.X.Label.Text = "A/P (voxels)"
	p.Y.Label.Text = "-D/V (voxels)"

	for i := range source {
		seg, err := plotter.NewLine(plotter.XYs{
			{X: source[i].X, Y: -source[i].Z},
			{X: target[i].X, Y: -target[i].Z},
		})
		if err != nil {
			return err
		}
		seg.LineStyle.Color = color.Gray{Y: 128}
		p.Add(seg)
	}

	src, err := sagittalScatter(source, sourceColor)
	if err != nil {
		return err
	}
	dst, err := sagittalScatter(target, targetColor)
	if err != nil {
		return err
	}
	p.Add(src, dst)
	p.Legend.Add("source", src)
	p.Legend.Add("target", dst)

	return p.Save(plotWidth, plotHeight, filename)
}

func sagittalScatter(pts []r3.Vector, c color.Color) (*plotter.Scatter, error) {
	xys := make(plotter.XYs, len(pts))
	for i, v := range pts {
		xys[i].X = v.X
		xys[i].Y = -v.Z
	}
	s, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, err
	}
	s.GlyphStyle.Color = c
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	s.GlyphStyle.Radius = vg.Points(3)
	return s, nil
}

// LineFitPlot draws the raw annotation points and fitted line of each
// probe in its shank color, A/P against inverted D/V
func LineFitPlot(traces []FitTrace, filename string) error {
	p := plot.New()
	p.Title.Text = "Probe line fits"
	p.X.Label.Text = "A/P (voxels)"
	p.Y.Label.Text = "-D/V (voxels)"

	for _, tr := range traces {
		c := tr.Probe.Color()

		raw, err := plotter.NewScatter(trackXYs(tr.Raw))
		if err != nil {
			return fmt.Errorf("%s: %w", tr.Probe.Name(), err)
		}
		raw.GlyphStyle.Color = c
		raw.GlyphStyle.Radius = vg.Points(2)

		fit, err := plotter.NewLine(trackXYs(tr.Fitted))
		if err != nil {
			return fmt.Errorf("%s: %w", tr.Probe.Name(), err)
		}
		fit.LineStyle.Color = c
		fit.LineStyle.Width = vg.Points(1.5)
		if tr.Probe.Day() == 2 {
			fit.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		}

		p.Add(raw, fit)
		p.Legend.Add(tr.Probe.Short(), fit)
	}

	return p.Save(plotWidth, plotHeight, filename)
}

func trackXYs(pts []models.TrackPoint) plotter.XYs {
	xys := make(plotter.XYs, len(pts))
	for i, p := range pts {
		xys[i].X = p.AP
		xys[i].Y = -p.DV
	}
	return xys
}
