package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, [3]float64{1024, 1024, 1023}, cfg.Registration.VolumeSize)
	assert.Equal(t, [3]float64{-35, 42, 217}, cfg.Registration.Origin)
	assert.InDelta(t, 1160.0/1023.0, cfg.Registration.Scale[0], 1e-12)
	assert.Equal(t, 3, cfg.Borders.MinGap)
	assert.Equal(t, "6b", cfg.Borders.ExemptLabel)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "optreg.yaml")
	content := `
atlas:
  labelVolume: /atlas/labels.npy
subject:
  scanType: gfp
track:
  step: 0.5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/atlas/labels.npy", cfg.Atlas.LabelVolume)
	assert.Equal(t, "gfp", cfg.Subject.ScanType)
	assert.Equal(t, 0.5, cfg.Track.Step)
	// untouched fields keep their defaults
	assert.Equal(t, -200.0, cfg.Track.RangeMin)
	assert.Equal(t, LayoutCombined, cfg.Subject.AnnotationLayout)
}

func TestLoadConfigTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "optreg.toml")
	content := `
[subject]
annotation_layout = "per_probe"

[borders]
min_gap = 4

[log]
verbose = true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, LayoutPerProbe, cfg.Subject.AnnotationLayout)
	assert.Equal(t, 4, cfg.Borders.MinGap)
	assert.True(t, cfg.Log.Verbose)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("track:\n  step: 0\n"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	for _, name := range []string{"cfg.yaml", "cfg.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			cfg := DefaultConfig()
			cfg.Atlas.StructureTree = "/atlas/tree.csv"
			cfg.Output.SaveFigures = false

			require.NoError(t, SaveConfig(cfg, path))

			loaded, err := LoadConfig(path)
			require.NoError(t, err)
			assert.Equal(t, cfg.Atlas.StructureTree, loaded.Atlas.StructureTree)
			assert.False(t, loaded.Output.SaveFigures)
			assert.InDeltaSlice(t, cfg.Registration.Scale[:], loaded.Registration.Scale[:], 1e-12)
		})
	}
}
