// Package annotations reads the probe track points placed with the
// annotation tool.
package annotations

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"optreg/internal/models"
)

// ErrNoAnnotations is returned for a probe without any annotated points
var ErrNoAnnotations = errors.New("probe has no annotation points")

// Source yields the raw annotation points of one probe in volume voxels
type Source interface {
	Points(p models.Probe) ([]models.TrackPoint, error)
}

// Table holds the combined annotation table written by the annotation
// tool: an unnamed index column followed by AP, ML, DV and probe_name.
type Table struct {
	byProbe map[models.Probe][]models.TrackPoint
	rows    int
	ignored int
}

// LoadTable reads a combined annotation CSV
func LoadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open annotations: %w", err)
	}
	defer f.Close()

	t, err := ReadTable(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read annotations %s: %w", path, err)
	}
	return t, nil
}

// ReadTable parses a combined annotation table. Rows naming an unknown
// probe are logged and left out.
func ReadTable(r io.Reader) (*Table, error) {
	cols, records, err := readRecords(r, "AP", "ML", "DV", "probe_name")
	if err != nil {
		return nil, err
	}

	t := &Table{byProbe: make(map[models.Probe][]models.TrackPoint)}
	for line, rec := range records {
		probe, err := models.ParseProbe(rec[cols["probe_name"]])
		if err != nil {
			log.WithError(err).WithField("row", line+1).Warn("Ignoring annotation row")
			t.ignored++
			continue
		}
		pt, err := parsePoint(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line+1, err)
		}
		t.byProbe[probe] = append(t.byProbe[probe], pt)
		t.rows++
	}
	return t, nil
}

// Len returns the number of annotation rows kept
func (t *Table) Len() int { return t.rows }

// Ignored returns the number of rows naming an unknown probe
func (t *Table) Ignored() int { return t.ignored }

// Points returns the points of p in file order
func (t *Table) Points(p models.Probe) ([]models.TrackPoint, error) {
	pts := t.byProbe[p]
	if len(pts) == 0 {
		return nil, fmt.Errorf("%s: %w", p.Name(), ErrNoAnnotations)
	}
	return append([]models.TrackPoint(nil), pts...), nil
}

// Dir reads one file per probe, <Root>/<short name>.csv, with AP, ML and
// DV columns
type Dir struct {
	Root string
}

// Path returns the file holding the points of p
func (d Dir) Path(p models.Probe) string {
	return filepath.Join(d.Root, p.Short()+".csv")
}

// Points reads the points of p. A missing file is reported as an error
// wrapping fs.ErrNotExist.
func (d Dir) Points(p models.Probe) ([]models.TrackPoint, error) {
	f, err := os.Open(d.Path(p))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Name(), err)
	}
	defer f.Close()

	cols, records, err := readRecords(f, "AP", "ML", "DV")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Name(), err)
	}

	pts := make([]models.TrackPoint, 0, len(records))
	for line, rec := range records {
		pt, err := parsePoint(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", p.Name(), line+1, err)
		}
		pts = append(pts, pt)
	}
	if len(pts) == 0 {
		return nil, fmt.Errorf("%s: %w", p.Name(), ErrNoAnnotations)
	}
	return pts, nil
}

// WriteDir writes per-probe files for every probe with points in t
func WriteDir(t *Table, root string) error {
	if err := os.MkdirAll(root, 0755); err != nil {
		return fmt.Errorf("failed to create annotation directory: %w", err)
	}
	d := Dir{Root: root}
	for _, p := range models.AllProbes() {
		pts := t.byProbe[p]
		if len(pts) == 0 {
			continue
		}
		if err := writePoints(d.Path(p), pts); err != nil {
			return err
		}
	}
	return nil
}

func writePoints(path string, pts []models.TrackPoint) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"AP", "ML", "DV"}); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	for _, p := range pts {
		if err := w.Write([]string{formatFloat(p.AP), formatFloat(p.ML), formatFloat(p.DV)}); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// readRecords reads a CSV with a header row and locates the required
// columns by name. Extra columns, such as a leading index, are ignored.
func readRecords(r io.Reader, required ...string) (map[string]int, [][]string, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("missing header row")
	}
	if err != nil {
		return nil, nil, err
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, nil, fmt.Errorf("missing column %q", name)
		}
	}

	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	return cols, records, nil
}

func parsePoint(rec []string, cols map[string]int) (models.TrackPoint, error) {
	var v [3]float64
	for i, name := range []string{"AP", "DV", "ML"} {
		f, err := strconv.ParseFloat(strings.TrimSpace(rec[cols[name]]), 64)
		if err != nil {
			return models.TrackPoint{}, fmt.Errorf("bad %s value: %w", name, err)
		}
		v[i] = f
	}
	return models.TrackPoint{AP: v[0], DV: v[1], ML: v[2]}, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
