package testhelpers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/anirudhatalmale6-alt/icecast-streamer-windows/internal/config"
	"github.com/stretchr/testify/require"
)

// NewTestConfigFile returns the path of a settings file isolated in a
// temporary directory. If cfg is provided it is written to the file,
// otherwise the file does not exist.
func NewTestConfigFile(t *testing.T, cfg ...config.Config) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), config.FileName)
	if len(cfg) > 0 {
		require.NoError(t, config.Save(path, cfg[0]))
	}

	t.Cleanup(func() { _ = os.RemoveAll(path) })

	return path
}

// ValidConfig returns a configuration which passes stream validation.
func ValidConfig() config.Config {
	cfg := config.Default()
	cfg.Device = "Microphone (USB Audio Device)"
	return cfg
}
