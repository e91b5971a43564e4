package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server: {}\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "device", cfg.Camera.Type)
	assert.Equal(t, "/dev/video0", cfg.Camera.URL)
	assert.Equal(t, 15, cfg.Camera.FPS)
	assert.Equal(t, 640, cfg.Camera.Width)
	assert.Equal(t, Duration(time.Second), cfg.Camera.AcquireTimeout)
	assert.Equal(t, 0.015, cfg.Detector.KeypointThreshold)
	assert.Equal(t, 1024, cfg.Detector.MaxKeypoints)
	assert.Equal(t, 0.5, cfg.Detector.RegionThreshold)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 10, cfg.Database.MaxConns)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadParsesYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  api_key: secret
camera:
  url: rtsp://example/stream
  type: rtsp
  fps: 30
  acquire_timeout: 2s
tracking:
  uniqueness: 4.0
  min_matches: 8
database:
  host: db.local
  name: tracking
  user: app
  password: pw
storage:
  frame_retention: 1000
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "secret", cfg.Server.APIKey)
	assert.Equal(t, "rtsp://example/stream", cfg.Camera.URL)
	assert.Equal(t, "rtsp", cfg.Camera.Type)
	assert.Equal(t, 30, cfg.Camera.FPS)
	assert.Equal(t, Duration(2*time.Second), cfg.Camera.AcquireTimeout)
	assert.Equal(t, 4.0, cfg.Tracking.Uniqueness)
	assert.Equal(t, 8, cfg.Tracking.MinMatches)
	assert.Equal(t, 1000, cfg.Storage.FrameRetention)
	assert.Equal(t, "postgres://app:pw@db.local:5432/tracking?sslmode=disable", cfg.Database.DSN())
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
database:
  host: yaml-host
`)

	t.Setenv("MAR_SERVER_PORT", "7000")
	t.Setenv("MAR_API_KEY", "env-key")
	t.Setenv("MAR_DB_HOST", "env-host")
	t.Setenv("MAR_CAMERA_URL", "rtsp://env/stream")
	t.Setenv("MAR_CAMERA_TYPE", "rtsp")
	t.Setenv("MAR_MODELS_DIR", "/opt/models")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "env-key", cfg.Server.APIKey)
	assert.Equal(t, "env-host", cfg.Database.Host)
	assert.Equal(t, "rtsp://env/stream", cfg.Camera.URL)
	assert.Equal(t, "rtsp", cfg.Camera.Type)
	assert.Equal(t, "/opt/models", cfg.Detector.ModelsDir)
}

func TestLoadDurationNanoseconds(t *testing.T) {
	path := writeConfig(t, "camera:\n  acquire_timeout: 500000000\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Duration(500*time.Millisecond), cfg.Camera.AcquireTimeout)
}

func TestLoadInvalidDuration(t *testing.T) {
	path := writeConfig(t, "camera:\n  acquire_timeout: fast\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a map\n")
	_, err := Load(path)
	assert.Error(t, err)
}
