package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager_CreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	m, err := NewManager(path)
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err, "default config should be written to disk")

	cfg := m.Get()
	assert.Equal(t, 14, cfg.Stream.FPS)
	assert.Equal(t, 10, cfg.Stream.Capacity)
	assert.Equal(t, 2, cfg.Stream.Slots)
	assert.Equal(t, "/mjpeg/1", cfg.Endpoints.Stream)
	assert.Equal(t, "testpattern", cfg.Sensor.Driver)
}

func TestNewManager_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("server_port: 9090\nstream:\n  fps: 20\n  capacity: 4\n")
	require.NoError(t, os.WriteFile(path, data, 0644))

	m, err := NewManager(path)
	require.NoError(t, err)

	cfg := m.Get()
	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, 20, cfg.Stream.FPS)
	assert.Equal(t, 4, cfg.Stream.Capacity)
	assert.Equal(t, 2, cfg.Stream.Slots, "unset keys fall back to defaults")
	assert.Equal(t, "/jpg", cfg.Endpoints.Snapshot)
}

func TestNewManager_RejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stream:\n  capacity: 0\n"), 0644))

	_, err := NewManager(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream.capacity")
}

func TestManager_SaveViperKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	m, err := NewManager(path)
	require.NoError(t, err)

	m.GetViper().Set("stream.fps", 30)
	require.NoError(t, m.Save())

	reloaded, err := NewManager(path)
	require.NoError(t, err)
	assert.Equal(t, 30, reloaded.Get().Stream.FPS)
}

func TestManager_OverridesDoNotPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	m, err := NewManager(path)
	require.NoError(t, err)

	m.SetPort(7000)
	m.SetLogLevel("debug")
	assert.Equal(t, 7000, m.Get().ServerPort)
	assert.Equal(t, "debug", m.Get().LogLevel)

	reloaded, err := NewManager(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, reloaded.Get().ServerPort)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"zero fps", func(c *Config) { c.Stream.FPS = 0 }, "stream.fps"},
		{"single slot", func(c *Config) { c.Stream.Slots = 1 }, "stream.slots"},
		{"relative endpoint", func(c *Config) { c.Endpoints.Control = "control" }, "endpoints.control"},
		{"duplicate endpoint", func(c *Config) { c.Endpoints.Snapshot = c.Endpoints.Stream }, "share path"},
		{"quality", func(c *Config) { c.Sensor.Quality = 0 }, "sensor.quality"},
		{"no driver", func(c *Config) { c.Sensor.Driver = "" }, "sensor.driver"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStreamConfig_Durations(t *testing.T) {
	s := Default().Stream
	assert.Equal(t, time.Second/14, s.TargetPeriod())
	assert.Equal(t, 5*time.Second, s.WriteTimeout())
	assert.Equal(t, time.Millisecond, s.ProbeTimeout())
}

func TestIsKey(t *testing.T) {
	for _, key := range []string{"server_port", "stream.fps", "stream.reject_when_full", "endpoints.control", "sensor.quality", "Stream.FPS"} {
		assert.True(t, IsKey(key), key)
	}
	for _, key := range []string{"foo", "stream", "stream.bogus", "sensor", ""} {
		assert.False(t, IsKey(key), key)
	}
}
