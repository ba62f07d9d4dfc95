package logging

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optreg/pkg/config"
)

func TestSetupWritesLogfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")

	closer := Setup(config.LogConfig{Logfile: path, MaxSize: 1, MaxAge: 1, Verbose: true})
	defer log.SetOutput(os.Stderr)

	assert.Equal(t, log.DebugLevel, log.GetLevel())
	log.WithField("probe", "Probe A1").Info("skipped")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Probe A1")
}

func TestSetupWithoutLogfile(t *testing.T) {
	closer := Setup(config.LogConfig{})
	assert.Equal(t, log.InfoLevel, log.GetLevel())
	assert.NoError(t, closer.Close())
}
