// Package config provides configuration loading and management for optreg.
// It handles loading configuration from YAML or TOML files and provides
// default values that reproduce the registration used for the OPT pipeline.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Annotation layouts understood by the orchestrator
const (
	// LayoutCombined reads every probe from one probe_annotations.csv
	LayoutCombined = "combined"

	// LayoutPerProbe reads one <short name>.csv file per probe
	LayoutPerProbe = "per_probe"
)

// LogConfig controls where log output goes
type LogConfig struct {
	// Logfile, when set, receives a copy of every log line
	Logfile string `yaml:"logfile" toml:"logfile"`

	// MaxSize is the size in megabytes before the log file is rotated
	MaxSize int `yaml:"maxSize" toml:"max_log_size"`

	// MaxAge is the number of days rotated files are kept
	MaxAge int `yaml:"maxAge" toml:"max_log_age"`

	// Verbose enables debug output
	Verbose bool `yaml:"verbose" toml:"verbose"`
}

// Config represents the application configuration
type Config struct {
	// Atlas reference data shared by every mouse
	Atlas struct {
		// TemplateVolume is the Drishti template brain. Optional; when set
		// its extents define the warp's bounding box.
		TemplateVolume string `yaml:"templateVolume" toml:"template_volume"`

		// LabelVolume is the .npy annotation volume indexed by structure
		LabelVolume string `yaml:"labelVolume" toml:"label_volume"`

		// StructureTree is the CSV listing structure acronyms by row
		StructureTree string `yaml:"structureTree" toml:"structure_tree"`

		// TemplateLandmarks is the .npy landmark array of the template brain
		TemplateLandmarks string `yaml:"templateLandmarks" toml:"template_landmarks"`
	} `yaml:"atlas" toml:"atlas"`

	// Subject file naming inside the per-mouse directory
	Subject struct {
		// ScanType selects mouse<ID>_<scanType>.pvl.nc.001
		ScanType string `yaml:"scanType" toml:"scan_type"`

		// HeaderMode is "drishti" or "legacy"
		HeaderMode string `yaml:"headerMode" toml:"header_mode"`

		// AnnotationLayout is LayoutCombined or LayoutPerProbe
		AnnotationLayout string `yaml:"annotationLayout" toml:"annotation_layout"`

		// AnnotationDir holds per-probe files, relative to the mouse directory
		AnnotationDir string `yaml:"annotationDir" toml:"annotation_dir"`
	} `yaml:"subject" toml:"subject"`

	// Registration constants mapping warped voxels into CCF space
	Registration struct {
		// VolumeSize is the (X, Y, Z) bounding box pinned by the warp corners
		VolumeSize [3]float64 `yaml:"volumeSize" toml:"volume_size"`

		// Origin is subtracted from the flipped warped point
		Origin [3]float64 `yaml:"origin" toml:"origin"`

		// Scale converts template voxels to CCF voxels per axis (AP, ML, DV)
		Scale [3]float64 `yaml:"scale" toml:"scale"`

		// APFlip is the template A/P extent used to mirror the A/P axis
		APFlip float64 `yaml:"apFlip" toml:"ap_flip"`

		// VoxelMM is the CCF voxel size in millimeters
		VoxelMM float64 `yaml:"voxelMM" toml:"voxel_mm"`
	} `yaml:"registration" toml:"registration"`

	// Track sampling along the fitted line
	Track struct {
		RangeMin float64 `yaml:"rangeMin" toml:"range_min"`
		RangeMax float64 `yaml:"rangeMax" toml:"range_max"`
		Step     float64 `yaml:"step" toml:"step"`
	} `yaml:"track" toml:"track"`

	// Borders controls the structure boundary filter
	Borders struct {
		// MinGap is the smallest accepted distance between boundaries
		MinGap int `yaml:"minGap" toml:"min_gap"`

		// ExemptLabel marks thin structures kept regardless of MinGap
		ExemptLabel string `yaml:"exemptLabel" toml:"exempt_label"`
	} `yaml:"borders" toml:"borders"`

	// Output parameters
	Output struct {
		// SaveFigures writes the line-fit plot and per-probe intensity strips
		SaveFigures bool `yaml:"saveFigures" toml:"save_figures"`

		// BandWidth is the number of intensity samples taken across each track point
		BandWidth int `yaml:"bandWidth" toml:"band_width"`
	} `yaml:"output" toml:"output"`

	Log LogConfig `yaml:"log" toml:"log"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Subject.ScanType = "fluor"
	cfg.Subject.HeaderMode = "drishti"
	cfg.Subject.AnnotationLayout = LayoutCombined
	cfg.Subject.AnnotationDir = "probe_annotations"

	cfg.Registration.VolumeSize = [3]float64{1024, 1024, 1023}
	cfg.Registration.Origin = [3]float64{-35, 42, 217}
	cfg.Registration.Scale = [3]float64{1160.0 / 1023.0, 1140.0 / 940.0, 800.0 / 590.0}
	cfg.Registration.APFlip = 1023
	cfg.Registration.VoxelMM = 0.01

	cfg.Track.RangeMin = -200
	cfg.Track.RangeMax = 200
	cfg.Track.Step = 0.7

	cfg.Borders.MinGap = 3
	cfg.Borders.ExemptLabel = "6b"

	cfg.Output.SaveFigures = true
	cfg.Output.BandWidth = 40

	cfg.Log.MaxSize = 10
	cfg.Log.MaxAge = 30

	return cfg
}

// LoadConfig loads configuration from a YAML or TOML file, chosen by extension.
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if isTOML(configPath) {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a run
func (c *Config) Validate() error {
	if c.Track.Step <= 0 {
		return fmt.Errorf("track step must be positive, got %g", c.Track.Step)
	}
	if c.Track.RangeMax <= c.Track.RangeMin {
		return fmt.Errorf("track range [%g, %g] is empty", c.Track.RangeMin, c.Track.RangeMax)
	}
	switch c.Subject.HeaderMode {
	case "drishti", "legacy":
	default:
		return fmt.Errorf("unknown header mode %q", c.Subject.HeaderMode)
	}
	switch c.Subject.AnnotationLayout {
	case LayoutCombined, LayoutPerProbe:
	default:
		return fmt.Errorf("unknown annotation layout %q", c.Subject.AnnotationLayout)
	}
	if c.Registration.VoxelMM <= 0 {
		return fmt.Errorf("voxel size must be positive, got %g", c.Registration.VoxelMM)
	}
	return nil
}

// SaveConfig saves the configuration to a YAML or TOML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	f, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	defer f.Close()

	if isTOML(configPath) {
		if err := toml.NewEncoder(f).Encode(cfg); err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		return nil
	}

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}
	return enc.Close()
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
