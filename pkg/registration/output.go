package registration

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"optreg/internal/models"
	"optreg/pkg/landmarks"
	"optreg/pkg/visualization"
	"optreg/pkg/warp"
)

// tracksGap separates neighbouring strips in the tracks overview
const tracksGap = 8

// Report summarizes one registration run. It is written next to the
// coordinate tables as YAML.
type Report struct {
	Mouse string `yaml:"mouse"`

	// Landmarks holds the displacement statistics of the valid pairs
	Landmarks landmarks.Stats `yaml:"landmarks"`

	// ControlPoints counts corners plus landmark pairs
	ControlPoints int `yaml:"controlPoints"`

	// WarpResidual is the RMS distance between warped source and target
	// control points
	WarpResidual float64 `yaml:"warpResidual"`

	Probes  []ProbeSummary `yaml:"probes"`
	Skipped []Skip         `yaml:"skipped,omitempty"`

	// Outputs lists the files written, relative to the mouse directory
	Outputs []string `yaml:"outputs"`
}

// ProbeSummary describes one processed probe
type ProbeSummary struct {
	Probe        string  `yaml:"probe"`
	Annotations  int     `yaml:"annotations"`
	Samples      int     `yaml:"samples"`
	OutsideAtlas float64 `yaml:"outsideAtlasFraction"`
	Borders      int     `yaml:"borders"`
}

func newReport(mouse string, pairs []landmarks.Pair, tr *warp.Transform, batch *Batch) *Report {
	rep := &Report{
		Mouse:         mouse,
		Landmarks:     landmarks.Displacements(pairs),
		ControlPoints: tr.NumControlPoints(),
		WarpResidual:  tr.Residual(),
		Skipped:       batch.Skipped,
	}
	for _, res := range batch.Probes {
		rep.Probes = append(rep.Probes, ProbeSummary{
			Probe:        res.Probe.Name(),
			Annotations:  len(res.Raw),
			Samples:      len(res.Fitted),
			OutsideAtlas: res.OutsideFraction(),
			Borders:      len(res.Borders),
		})
	}
	return rep
}

// writeOutputs writes the coordinate tables, the boundary table and the
// summary
func (r *Registration) writeOutputs(batch *Batch) error {
	dir := r.params.OptDir

	tables := []struct {
		name string
		rows []models.CCFRow
	}{
		{InitialCCFFile, batch.FittedRows()},
		{AnnotationCCFFile, batch.AnnotatedRows()},
	}
	for _, t := range tables {
		if err := WriteCCF(filepath.Join(dir, t.name), t.rows); err != nil {
			return err
		}
		r.report.Outputs = append(r.report.Outputs, t.name)
	}

	if err := WriteBorders(filepath.Join(dir, BordersFile), batch); err != nil {
		return err
	}
	r.report.Outputs = append(r.report.Outputs, BordersFile, SummaryFile)

	return WriteReport(filepath.Join(dir, SummaryFile), r.report)
}

// WriteCCF writes rows as a table with a leading unnamed row index column
// followed by probe, structure_id, A/P, D/V and M/L
func WriteCCF(path string, rows []models.CCFRow) error {
	return writeCSV(path, func(w *csv.Writer) error {
		if err := w.Write([]string{"", "probe", "structure_id", "A/P", "D/V", "M/L"}); err != nil {
			return err
		}
		for i, row := range rows {
			rec := []string{
				strconv.Itoa(i),
				row.Probe.Name(),
				strconv.Itoa(row.StructureID),
				formatFloat(row.AP),
				formatFloat(row.DV),
				formatFloat(row.ML),
			}
			if err := w.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteBorders writes the structure boundaries of every probe
func WriteBorders(path string, batch *Batch) error {
	return writeCSV(path, func(w *csv.Writer) error {
		if err := w.Write([]string{"probe", "index", "structure_id", "acronym", "label"}); err != nil {
			return err
		}
		for _, res := range batch.Probes {
			for _, b := range res.Borders {
				rec := []string{
					res.Probe.Name(),
					strconv.Itoa(b.Index),
					strconv.Itoa(b.StructureID),
					b.Acronym,
					b.Label,
				}
				if err := w.Write(rec); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// WriteReport saves the run summary as YAML
func WriteReport(path string, rep *Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create summary: %w", err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	return enc.Close()
}

func writeCSV(path string, fill func(w *csv.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := fill(w); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// formatFloat writes the shortest decimal form, keeping a ".0" on whole
// values the way pandas does
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if math.IsInf(v, 0) || math.IsNaN(v) || strings.ContainsRune(s, '.') {
		return s
	}
	return s + ".0"
}

func lineFitPlot(batch *Batch, path string) error {
	traces := make([]visualization.FitTrace, len(batch.Probes))
	for i, res := range batch.Probes {
		traces[i] = visualization.FitTrace{Probe: res.Probe, Raw: res.Raw, Fitted: res.Line.Points}
	}
	return visualization.LineFitPlot(traces, path)
}

func tracksImage(batch *Batch, path string) error {
	var traces []visualization.StripTrace
	for _, res := range batch.Probes {
		if res.Band == nil {
			continue
		}
		rows := make([]int, len(res.Borders))
		for i, b := range res.Borders {
			rows[i] = b.Index
		}
		traces = append(traces, visualization.StripTrace{
			Column:  res.Probe.Ordinal(),
			Band:    res.Band,
			Borders: rows,
		})
	}
	if len(traces) == 0 {
		return nil
	}
	return visualization.SaveImage(visualization.TracksImage(traces, tracksGap), path)
}

func stripImage(res *ProbeResult, path string) error {
	return visualization.SaveImage(visualization.Strip(res.Band), path)
}
