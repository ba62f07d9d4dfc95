// Package registration maps the annotated probe tracks of one mouse into
// the CCF atlas and writes the coordinate tables.
package registration

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/golang/geo/r3"
	log "github.com/sirupsen/logrus"

	"optreg/internal/models"
	"optreg/pkg/annotations"
	"optreg/pkg/atlas"
	"optreg/pkg/borders"
	"optreg/pkg/config"
	"optreg/pkg/landmarks"
	"optreg/pkg/trackfit"
	"optreg/pkg/visualization"
	"optreg/pkg/volume"
	"optreg/pkg/warp"
)

// Files read from and written to the mouse directory
const (
	AnnotationsFile   = "probe_annotations.csv"
	LandmarksFile     = "landmark_annotations.npy"
	InitialCCFFile    = "initial_ccf_coordinates.csv"
	AnnotationCCFFile = "annotation_ccf_coordinates.csv"
	BordersFile       = "probe_borders.csv"
	SummaryFile       = "registration_summary.yaml"
	TransformPlotFile = "transform_plot.png"

	lineFitsSuffix     = "probe_line_fits.png"
	probeTracksSuffix  = "probe_tracks.png"
	volumeFileTemplate = "mouse%s_%s.pvl.nc.001"
)

// Params holds the inputs of one registration run
type Params struct {
	// Mouse is the subject ID used in the volume file name
	Mouse string

	// OptDir is the per-mouse directory holding the scan, the landmarks and
	// the probe annotations. Outputs are written here as well.
	OptDir string

	// Config supplies the atlas paths and registration constants
	Config *config.Config
}

// Registration runs the probe track pipeline for one mouse
type Registration struct {
	params *Params

	subject   *models.Volume
	reference atlas.Reference
	source    annotations.Source
	pairs     []landmarks.Pair
	transform *warp.Transform

	report *Report
}

// NewRegistration creates a registration for the given parameters. A nil
// Config selects the defaults.
func NewRegistration(params *Params) *Registration {
	if params.Config == nil {
		params.Config = config.DefaultConfig()
	}
	return &Registration{params: params}
}

// Run loads everything for mouse from optDir, transforms all probes and
// writes the outputs
func Run(mouse, optDir string, cfg *config.Config) (*Report, error) {
	return NewRegistration(&Params{Mouse: mouse, OptDir: optDir, Config: cfg}).Process()
}

// VolumePath returns the subject scan path for the configured scan type
func (r *Registration) VolumePath() string {
	name := fmt.Sprintf(volumeFileTemplate, r.params.Mouse, r.params.Config.Subject.ScanType)
	return filepath.Join(r.params.OptDir, name)
}

// Process runs the complete pipeline. Setup failures abort and are
// returned; failures of single probes are logged and listed in the report.
func (r *Registration) Process() (*Report, error) {
	cfg := r.params.Config
	logger := log.WithFields(log.Fields{"mouse": r.params.Mouse, "dir": r.params.OptDir})

	logger.Info("Step 1: Loading subject data...")
	if err := r.loadSubject(); err != nil {
		return nil, err
	}

	logger.Info("Step 2: Loading atlas...")
	volumeSize, err := r.loadAtlas()
	if err != nil {
		return nil, err
	}

	logger.Info("Step 3: Defining landmark transform...")
	if err := r.defineTransform(volumeSize); err != nil {
		return nil, err
	}

	logger.Info("Step 4: Transforming probe tracks...")
	batch := TransformProbes(r.transform, r.source, r.reference, r.subject, r.options())

	r.report = newReport(r.params.Mouse, r.pairs, r.transform, batch)
	logger.WithFields(log.Fields{
		"probes":  len(batch.Probes),
		"skipped": len(batch.Skipped),
		"rows":    humanize.Comma(int64(len(batch.FittedRows()))),
	}).Info("Step 5: Writing outputs...")
	if err := ensureDir(r.params.OptDir); err != nil {
		return nil, err
	}
	r.saveFigure(TransformPlotFile, r.transformPlot)
	if cfg.Output.SaveFigures {
		r.saveFigures(batch)
	}
	if err := r.writeOutputs(batch); err != nil {
		return nil, err
	}

	return r.report, nil
}

// GetReport returns the report of the last successful Process call
func (r *Registration) GetReport() *Report {
	return r.report
}

func (r *Registration) options() Options {
	cfg := r.params.Config
	return Options{
		Mapper: atlas.Mapper{
			Origin:  cfg.Registration.Origin,
			Scale:   cfg.Registration.Scale,
			APFlip:  cfg.Registration.APFlip,
			VoxelMM: cfg.Registration.VoxelMM,
		},
		Track: trackfit.Options{
			Min:  cfg.Track.RangeMin,
			Max:  cfg.Track.RangeMax,
			Step: cfg.Track.Step,
		},
		Borders: borders.Finder{
			MinGap:      cfg.Borders.MinGap,
			ExemptLabel: cfg.Borders.ExemptLabel,
		},
		BandWidth: cfg.Output.BandWidth,
	}
}

func (r *Registration) loadSubject() error {
	cfg := r.params.Config

	mode, err := volume.ParseHeaderMode(cfg.Subject.HeaderMode)
	if err != nil {
		return err
	}

	r.subject, err = volume.LoadVolume(r.VolumePath(), mode)
	if err != nil {
		return fmt.Errorf("failed to load subject volume: %w", err)
	}

	switch cfg.Subject.AnnotationLayout {
	case config.LayoutPerProbe:
		r.source = annotations.Dir{Root: r.resolve(cfg.Subject.AnnotationDir)}
	default:
		tbl, err := annotations.LoadTable(filepath.Join(r.params.OptDir, AnnotationsFile))
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"rows":    tbl.Len(),
			"ignored": tbl.Ignored(),
		}).Debug("Loaded probe annotations")
		r.source = tbl
	}
	return nil
}

// loadAtlas reads the label volume, the structure tree and the optional
// template volume. It returns the warp bounding box in (X, Y, Z) order.
func (r *Registration) loadAtlas() ([3]float64, error) {
	cfg := r.params.Config
	volumeSize := cfg.Registration.VolumeSize

	if cfg.Atlas.TemplateVolume != "" {
		mode, err := volume.ParseHeaderMode(cfg.Subject.HeaderMode)
		if err != nil {
			return volumeSize, err
		}
		tpl, err := volume.LoadVolume(cfg.Atlas.TemplateVolume, mode)
		if err != nil {
			return volumeSize, fmt.Errorf("failed to load template volume: %w", err)
		}
		volumeSize = [3]float64{float64(tpl.Width), float64(tpl.Height), float64(tpl.Depth)}
	}

	labels, err := volume.LoadLabels(cfg.Atlas.LabelVolume)
	if err != nil {
		return volumeSize, fmt.Errorf("failed to load label volume: %w", err)
	}
	tree, err := atlas.LoadStructureTree(cfg.Atlas.StructureTree)
	if err != nil {
		return volumeSize, err
	}
	log.WithFields(log.Fields{
		"labels":     fmt.Sprintf("%dx%dx%d", labels.Shape[0], labels.Shape[1], labels.Shape[2]),
		"structures": tree.Len(),
	}).Debug("Loaded atlas")

	r.reference = atlas.Reference{Tree: tree, Labels: labels}
	return volumeSize, nil
}

func (r *Registration) defineTransform(volumeSize [3]float64) error {
	source, err := landmarks.Load(filepath.Join(r.params.OptDir, LandmarksFile))
	if err != nil {
		return fmt.Errorf("failed to load subject landmarks: %w", err)
	}
	target, err := landmarks.Load(r.params.Config.Atlas.TemplateLandmarks)
	if err != nil {
		return fmt.Errorf("failed to load template landmarks: %w", err)
	}

	r.pairs, err = landmarks.Pairs(source, target)
	if err != nil {
		return err
	}
	r.transform, err = warp.FromPairs(r.pairs, volumeSize)
	if err != nil {
		return fmt.Errorf("failed to define transform: %w", err)
	}

	log.WithFields(log.Fields{
		"landmarks":      len(r.pairs),
		"control_points": r.transform.NumControlPoints(),
		"residual":       r.transform.Residual(),
	}).Debug("Transform defined")
	return nil
}

// resolve interprets p relative to the mouse directory unless absolute
func (r *Registration) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(r.params.OptDir, p)
}

// transformPlot draws the landmark displacements of the valid pairs
func (r *Registration) transformPlot(path string) error {
	if len(r.pairs) == 0 {
		return fmt.Errorf("no landmark pairs to plot")
	}
	source := make([]r3.Vector, len(r.pairs))
	target := make([]r3.Vector, len(r.pairs))
	for i, p := range r.pairs {
		source[i], target[i] = p.Source, p.Target
	}
	return visualization.TransformPlot(source, target, path)
}

// saveFigures writes the per-probe diagnostic images. Failures are logged
// only.
func (r *Registration) saveFigures(batch *Batch) {
	if len(batch.Probes) == 0 {
		return
	}
	prefix := filepath.Base(filepath.Clean(r.params.OptDir)) + "_"
	r.saveFigure(prefix+lineFitsSuffix, func(path string) error {
		return lineFitPlot(batch, path)
	})
	if r.params.Config.Output.BandWidth > 0 {
		r.saveFigure(prefix+probeTracksSuffix, func(path string) error {
			return tracksImage(batch, path)
		})
	}
	for _, res := range batch.Probes {
		if res.Band == nil {
			continue
		}
		r.saveFigure(prefix+res.Probe.Name()+".png", func(path string) error {
			return stripImage(res, path)
		})
	}
}

func (r *Registration) saveFigure(name string, save func(path string) error) {
	path := filepath.Join(r.params.OptDir, name)
	if err := save(path); err != nil {
		log.WithError(err).WithField("file", name).Warn("Failed to save figure")
		return
	}
	r.report.Outputs = append(r.report.Outputs, name)
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}
