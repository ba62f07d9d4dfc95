package registration

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"optreg/internal/models"
	"optreg/pkg/annotations"
	"optreg/pkg/atlas"
	"optreg/pkg/borders"
	"optreg/pkg/trackfit"
	"optreg/pkg/visualization"
)

// Options controls the per-probe stage of the pipeline
type Options struct {
	Mapper  atlas.Mapper
	Track   trackfit.Options
	Borders borders.Finder

	// BandWidth is the number of intensity samples taken across each
	// fitted point. Zero disables band sampling.
	BandWidth int
}

// DefaultOptions returns the calibrated mapping and sampling settings
func DefaultOptions() Options {
	return Options{
		Mapper:    atlas.DefaultMapper(),
		Track:     trackfit.DefaultOptions(),
		Borders:   borders.DefaultFinder(),
		BandWidth: 40,
	}
}

// ProbeResult holds everything computed for one probe
type ProbeResult struct {
	Probe models.Probe

	// Raw are the annotation points as read from the source
	Raw []models.TrackPoint

	// Line is the fitted and resampled track
	Line *trackfit.Line

	// Fitted and Annotated are the CCF rows of the resampled and the raw
	// points
	Fitted    []models.CCFRow
	Annotated []models.CCFRow

	// Borders are the structure boundaries along the fitted track
	Borders []borders.Border

	// Band is the intensity band sampled along the fitted track. Nil when
	// no volume was given.
	Band [][]uint8
}

// OutsideFraction is the share of fitted points that fell outside the atlas
func (r *ProbeResult) OutsideFraction() float64 {
	if len(r.Fitted) == 0 {
		return 0
	}
	n := 0
	for _, row := range r.Fitted {
		if row.StructureID == atlas.OutsideAtlas {
			n++
		}
	}
	return float64(n) / float64(len(r.Fitted))
}

// Skip records a probe that was left out of the batch and why
type Skip struct {
	Probe  string `yaml:"probe"`
	Reason string `yaml:"reason"`
}

// Batch is the outcome of processing all probes of one mouse
type Batch struct {
	Probes  []*ProbeResult
	Skipped []Skip
}

// FittedRows concatenates the fitted rows of every processed probe in
// batch order
func (b *Batch) FittedRows() []models.CCFRow {
	var rows []models.CCFRow
	for _, r := range b.Probes {
		rows = append(rows, r.Fitted...)
	}
	return rows
}

// AnnotatedRows concatenates the raw-point rows of every processed probe
func (b *Batch) AnnotatedRows() []models.CCFRow {
	var rows []models.CCFRow
	for _, r := range b.Probes {
		rows = append(rows, r.Annotated...)
	}
	return rows
}

// TransformProbes runs every probe through fit, assignment and boundary
// detection. A failing probe is logged and recorded in Batch.Skipped; the
// remaining probes are unaffected. vol may be nil.
func TransformProbes(tr atlas.Warper, src annotations.Source, ref atlas.Reference, vol *models.Volume, opts Options) *Batch {
	batch := &Batch{}
	for _, probe := range models.AllProbes() {
		logger := log.WithField("probe", probe.Name())

		res, err := transformProbe(tr, src, ref, vol, opts, probe)
		if err != nil {
			if errors.Is(err, annotations.ErrNoAnnotations) {
				logger.Info("No annotations, skipping probe")
			} else {
				logger.WithError(err).Warn("Skipping probe")
			}
			batch.Skipped = append(batch.Skipped, Skip{Probe: probe.Name(), Reason: err.Error()})
			continue
		}

		logger.WithFields(log.Fields{
			"annotations": len(res.Raw),
			"samples":     len(res.Fitted),
			"borders":     len(res.Borders),
		}).Debug("Probe transformed")
		batch.Probes = append(batch.Probes, res)
	}
	return batch
}

func transformProbe(tr atlas.Warper, src annotations.Source, ref atlas.Reference, vol *models.Volume, opts Options, probe models.Probe) (*ProbeResult, error) {
	raw, err := src.Points(probe)
	if err != nil {
		return nil, err
	}

	line, err := trackfit.Fit(raw, opts.Track)
	if err != nil {
		return nil, fmt.Errorf("line fit: %w", err)
	}

	res := &ProbeResult{
		Probe:     probe,
		Raw:       raw,
		Line:      line,
		Fitted:    atlas.Assign(tr, opts.Mapper, ref, probe, line.Points),
		Annotated: atlas.Assign(tr, opts.Mapper, ref, probe, raw),
	}

	ids := make([]int, len(res.Fitted))
	for i, row := range res.Fitted {
		ids[i] = row.StructureID
	}
	res.Borders = borders.Describe(ids, opts.Borders.Find(ids, ref.Tree), ref.Tree)

	if vol != nil && opts.BandWidth > 0 {
		res.Band = visualization.SampleBand(vol, line.Points, opts.BandWidth)
	}
	return res, nil
}
