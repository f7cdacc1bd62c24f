package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	backend, err := cfg.GetBackend()
	require.NoError(t, err)
	assert.Equal(t, BackendConfig{BaseURL: "http://localhost:5000/api", Timeout: time.Minute}, backend)

	analysis, err := cfg.GetAnalysis()
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, analysis.BatchInterval)

	ttl, err := cfg.GetStatusTTL()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, ttl)

	assert.Equal(t, "file", cfg.GetSession().StoreType)

	dev, err := cfg.GetDevServer()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:5000", dev.ListenAddress)
	assert.Equal(t, 8*time.Hour, dev.TokenTTL)
	assert.Equal(t, map[string]string{"astro": "transit"}, dev.Users)
}

func TestNewFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exodetect.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend:
  base_url: https://exodetect.example.org/api
  timeout: 5s
session:
  store:
    type: sqlite
    sqlite_path: /tmp/session.db
analysis:
  batch_interval: 1s
`), 0o600))

	cfg, err := NewFromFile(path)
	require.NoError(t, err)

	backend, err := cfg.GetBackend()
	require.NoError(t, err)
	assert.Equal(t, "https://exodetect.example.org/api", backend.BaseURL)
	assert.Equal(t, 5*time.Second, backend.Timeout)

	session := cfg.GetSession()
	assert.Equal(t, "sqlite", session.StoreType)
	assert.Equal(t, "/tmp/session.db", session.SQLitePath)

	analysis, err := cfg.GetAnalysis()
	require.NoError(t, err)
	assert.Equal(t, time.Second, analysis.BatchInterval)

	// untouched keys keep their defaults
	assert.Equal(t, "auto", cfg.GetString("frontend.color"))
}

func TestNewFromFileMissing(t *testing.T) {
	_, err := NewFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("EXODETECT_BACKEND_BASE_URL", "http://10.0.0.7:5000/api")
	path := filepath.Join(t.TempDir(), "exodetect.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o600))

	cfg, err := NewFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.7:5000/api", cfg.GetString("backend.base_url"))
	assert.Equal(t, "debug", cfg.GetString("logging.level"))
}

func TestInvalidDuration(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())
	cfg.Set("analysis.batch_interval", "soon")

	_, err := cfg.GetAnalysis()
	assert.Error(t, err)
}
