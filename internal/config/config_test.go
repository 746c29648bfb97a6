package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
database:
  host: db.internal
  name: facecore
face_recognition:
  default_threshold: 0.8
`

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 0.8, cfg.FaceRecognition.DefaultThreshold)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 128, cfg.FaceRecognition.MinEmbeddingLength)
	assert.Equal(t, 10*time.Minute, cfg.FaceRecognition.AutoEnrollMinInterval)
	assert.NotEmpty(t, cfg.IncidentSeverity)
}

func TestLoadEnvOverridesTakePrecedence(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	t.Setenv("FACECORE_DB_HOST", "override.internal")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "override.internal", cfg.Database.Host)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load("/nonexistent/path.yaml")
	assert.Error(t, err)
}

func TestWatcherReloadsOnFileChange(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	w, err := NewWatcher(path)
	require.NoError(t, err)
	assert.Equal(t, 0.8, w.Current().FaceRecognition.DefaultThreshold)

	updated := `
face_recognition:
  default_threshold: 0.95
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))
	w.reload()

	assert.Equal(t, 0.95, w.Current().FaceRecognition.DefaultThreshold)
}
