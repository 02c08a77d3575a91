package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bryanchriswhite/CamStreamer/internal/logger"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	ServerPort int    `json:"server_port" yaml:"server_port" mapstructure:"server_port"`
	LogLevel   string `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
	LogPretty  bool   `json:"log_pretty" yaml:"log_pretty" mapstructure:"log_pretty"`

	Stream    StreamConfig    `json:"stream" yaml:"stream" mapstructure:"stream"`
	Endpoints EndpointsConfig `json:"endpoints" yaml:"endpoints" mapstructure:"endpoints"`
	Sensor    SensorConfig    `json:"sensor" yaml:"sensor" mapstructure:"sensor"`
}

// StreamConfig controls the capture/fan-out pipeline
type StreamConfig struct {
	FPS            int  `json:"fps" yaml:"fps" mapstructure:"fps"`
	Capacity       int  `json:"capacity" yaml:"capacity" mapstructure:"capacity"`
	Slots          int  `json:"slots" yaml:"slots" mapstructure:"slots"`
	MaxFrameBytes  int  `json:"max_frame_bytes" yaml:"max_frame_bytes" mapstructure:"max_frame_bytes"`
	WriteTimeoutMS int  `json:"write_timeout_ms" yaml:"write_timeout_ms" mapstructure:"write_timeout_ms"`
	ProbeTimeoutMS int  `json:"probe_timeout_ms" yaml:"probe_timeout_ms" mapstructure:"probe_timeout_ms"`
	RejectWhenFull bool `json:"reject_when_full" yaml:"reject_when_full" mapstructure:"reject_when_full"`
}

// TargetPeriod is the capture period derived from FPS.
func (s StreamConfig) TargetPeriod() time.Duration {
	if s.FPS <= 0 {
		return time.Second
	}
	return time.Second / time.Duration(s.FPS)
}

// WriteTimeout is the per-frame write deadline for a viewer.
func (s StreamConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutMS) * time.Millisecond
}

// ProbeTimeout bounds the liveness read performed before each frame.
func (s StreamConfig) ProbeTimeout() time.Duration {
	return time.Duration(s.ProbeTimeoutMS) * time.Millisecond
}

// EndpointsConfig holds the HTTP paths of the camera endpoints
type EndpointsConfig struct {
	Stream   string `json:"stream" yaml:"stream" mapstructure:"stream"`
	Snapshot string `json:"snapshot" yaml:"snapshot" mapstructure:"snapshot"`
	Control  string `json:"control" yaml:"control" mapstructure:"control"`
}

// SensorConfig selects and configures the camera driver
type SensorConfig struct {
	Driver  string `json:"driver" yaml:"driver" mapstructure:"driver"`
	Device  string `json:"device" yaml:"device" mapstructure:"device"`
	Width   int    `json:"width" yaml:"width" mapstructure:"width"`
	Height  int    `json:"height" yaml:"height" mapstructure:"height"`
	Quality int    `json:"quality" yaml:"quality" mapstructure:"quality"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		ServerPort: 8080,
		LogLevel:   "info",
		Stream: StreamConfig{
			FPS:            14,
			Capacity:       10,
			Slots:          2,
			MaxFrameBytes:  4 << 20,
			WriteTimeoutMS: 5000,
			ProbeTimeoutMS: 1,
		},
		Endpoints: EndpointsConfig{
			Stream:   "/mjpeg/1",
			Snapshot: "/jpg",
			Control:  "/control",
		},
		Sensor: SensorConfig{
			Driver:  "testpattern",
			Device:  "/dev/video0",
			Width:   640,
			Height:  480,
			Quality: 80,
		},
	}
}

// Validate checks the configuration for values the pipeline cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.ServerPort < 0 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("server_port out of range: %d", c.ServerPort))
	}
	if c.Stream.FPS <= 0 {
		errs = append(errs, fmt.Errorf("stream.fps must be positive, got %d", c.Stream.FPS))
	}
	if c.Stream.Capacity < 1 {
		errs = append(errs, fmt.Errorf("stream.capacity must be at least 1, got %d", c.Stream.Capacity))
	}
	if c.Stream.Slots < 2 {
		errs = append(errs, fmt.Errorf("stream.slots must be at least 2, got %d", c.Stream.Slots))
	}
	if c.Stream.MaxFrameBytes <= 0 {
		errs = append(errs, fmt.Errorf("stream.max_frame_bytes must be positive, got %d", c.Stream.MaxFrameBytes))
	}
	if c.Stream.WriteTimeoutMS < 0 || c.Stream.ProbeTimeoutMS < 0 {
		errs = append(errs, errors.New("stream timeouts must not be negative"))
	}

	seen := make(map[string]string)
	for name, path := range map[string]string{
		"endpoints.stream":   c.Endpoints.Stream,
		"endpoints.snapshot": c.Endpoints.Snapshot,
		"endpoints.control":  c.Endpoints.Control,
	} {
		if !strings.HasPrefix(path, "/") {
			errs = append(errs, fmt.Errorf("%s must start with '/': %q", name, path))
			continue
		}
		if other, dup := seen[path]; dup {
			errs = append(errs, fmt.Errorf("%s and %s share path %q", name, other, path))
		}
		seen[path] = name
	}

	if c.Sensor.Driver == "" {
		errs = append(errs, errors.New("sensor.driver must be set"))
	}
	if c.Sensor.Width <= 0 || c.Sensor.Height <= 0 {
		errs = append(errs, fmt.Errorf("sensor resolution must be positive, got %dx%d", c.Sensor.Width, c.Sensor.Height))
	}
	if c.Sensor.Quality < 1 || c.Sensor.Quality > 100 {
		errs = append(errs, fmt.Errorf("sensor.quality must be within 1..100, got %d", c.Sensor.Quality))
	}

	return errors.Join(errs...)
}

// Manager handles configuration
type Manager struct {
	configPath string
	v          *viper.Viper
	config     *Config
	mu         sync.RWMutex
}

// DefaultPath returns $HOME/.config/camstreamer/config.yaml
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "camstreamer", "config.yaml"), nil
}

// NewManager creates a new configuration manager. An empty configFile
// selects DefaultPath. A missing file is created with defaults.
func NewManager(configFile string) (*Manager, error) {
	path := configFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	m := &Manager{
		configPath: path,
		v:          viper.New(),
	}
	m.v.SetConfigFile(path)
	m.v.SetConfigType("yaml")
	setDefaults(m.v, Default())

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.WithComponent("config").Info().
			Str("path", path).
			Msg("Config file not found, creating new config")
		m.config = Default()
		if err := m.write(m.config); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	if err := m.load(); err != nil {
		return nil, err
	}

	logger.WithComponent("config").Info().
		Str("path", m.configPath).
		Str("driver", m.config.Sensor.Driver).
		Int("fps", m.config.Stream.FPS).
		Int("capacity", m.config.Stream.Capacity).
		Msg("Config loaded")

	return m, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server_port", d.ServerPort)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_pretty", d.LogPretty)
	v.SetDefault("stream.fps", d.Stream.FPS)
	v.SetDefault("stream.capacity", d.Stream.Capacity)
	v.SetDefault("stream.slots", d.Stream.Slots)
	v.SetDefault("stream.max_frame_bytes", d.Stream.MaxFrameBytes)
	v.SetDefault("stream.write_timeout_ms", d.Stream.WriteTimeoutMS)
	v.SetDefault("stream.probe_timeout_ms", d.Stream.ProbeTimeoutMS)
	v.SetDefault("stream.reject_when_full", d.Stream.RejectWhenFull)
	v.SetDefault("endpoints.stream", d.Endpoints.Stream)
	v.SetDefault("endpoints.snapshot", d.Endpoints.Snapshot)
	v.SetDefault("endpoints.control", d.Endpoints.Control)
	v.SetDefault("sensor.driver", d.Sensor.Driver)
	v.SetDefault("sensor.device", d.Sensor.Device)
	v.SetDefault("sensor.width", d.Sensor.Width)
	v.SetDefault("sensor.height", d.Sensor.Height)
	v.SetDefault("sensor.quality", d.Sensor.Quality)
}

// IsKey reports whether key names a configuration value
func IsKey(key string) bool {
	v := viper.New()
	setDefaults(v, Default())
	return slices.Contains(v.AllKeys(), strings.ToLower(key))
}

// load reads the configuration from disk through viper
func (m *Manager) load() error {
	if err := m.v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	return m.refresh()
}

// refresh decodes viper's merged view into a Config and validates it
func (m *Manager) refresh() error {
	var cfg Config
	if err := m.v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", m.configPath, err)
	}

	m.mu.Lock()
	m.config = &cfg
	m.mu.Unlock()
	return nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return Default()
	}
	cfg := *m.config
	return &cfg
}

// GetViper exposes the underlying viper instance for key-level access
func (m *Manager) GetViper() *viper.Viper {
	return m.v
}

// Save validates viper's current settings and writes them to disk
func (m *Manager) Save() error {
	if err := m.refresh(); err != nil {
		return err
	}
	return m.write(m.Get())
}

func (m *Manager) write(cfg *Config) error {
	log := logger.WithComponent("config")

	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		log.Error().Err(err).Str("path", m.configPath).Msg("Failed to write config")
		return err
	}

	log.Debug().Str("path", m.configPath).Msg("Config saved")
	return nil
}

// SetPort overrides the server port for this process only
func (m *Manager) SetPort(port int) {
	m.mu.Lock()
	m.config.ServerPort = port
	m.mu.Unlock()
}

// SetLogLevel overrides the log level for this process only
func (m *Manager) SetLogLevel(level string) {
	m.mu.Lock()
	m.config.LogLevel = level
	m.mu.Unlock()
}

// GetConfigPath returns the path to the config file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}
