package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/dj-oyu/motionglyph/internal/logger"
	"github.com/dj-oyu/motionglyph/internal/pipeline"
	"github.com/dj-oyu/motionglyph/internal/symbols"
	"gopkg.in/yaml.v3"
)

// Source kinds.
const (
	SourceNone      = "none"
	SourceDir       = "dir"
	SourceSynthetic = "synthetic"
)

// DetectionConfig configures the pipeline of a session.
type DetectionConfig struct {
	Threshold  int    `yaml:"threshold"`
	RegionSize int    `yaml:"region_size"`
	Alphabet   string `yaml:"alphabet,omitempty"` // Fixed alphabet; shuffled when empty
	Seed       *int64 `yaml:"seed,omitempty"`     // Reproducible randomness when set
}

// SourceConfig selects where frames come from.
type SourceConfig struct {
	Kind   string `yaml:"kind"`
	Path   string `yaml:"path,omitempty"`
	FPS    int    `yaml:"fps"`
	Width  int    `yaml:"width,omitempty"`  // 0 = lock to the first frame
	Height int    `yaml:"height,omitempty"` // 0 = lock to the first frame
	Loop   bool   `yaml:"loop,omitempty"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// WebRTCConfig configures the data channel symbol feed.
type WebRTCConfig struct {
	Enabled    bool     `yaml:"enabled"`
	STUN       []string `yaml:"stun,omitempty"`
	MaxClients int      `yaml:"max_clients"`
}

// RedisConfig configures the pub/sub symbol sink.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Channel string `yaml:"channel"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level string `yaml:"level"`
	Color bool   `yaml:"color"`
}

// Config is the top-level motionglyph.yml configuration.
type Config struct {
	Detection DetectionConfig `yaml:"detection"`
	Source    SourceConfig    `yaml:"source"`
	HTTP      HTTPConfig      `yaml:"http"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	WebRTC    WebRTCConfig    `yaml:"webrtc"`
	Redis     RedisConfig     `yaml:"redis"`
	Log       LogConfig       `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() Config {
	def := pipeline.DefaultConfig()
	return Config{
		Detection: DetectionConfig{
			Threshold:  def.Threshold,
			RegionSize: def.RegionSize,
		},
		Source: SourceConfig{
			Kind: SourceNone,
			FPS:  30,
		},
		HTTP:    HTTPConfig{Addr: ":8080"},
		Metrics: MetricsConfig{Addr: ":9090"},
		WebRTC: WebRTCConfig{
			STUN:       []string{"stun:stun.l.google.com:19302"},
			MaxClients: 10,
		},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			Channel: "motionglyph:symbols",
		},
		Log: LogConfig{Level: "info", Color: true},
	}
}

// Load reads a YAML file on top of Default and validates the result.
// Fields missing from the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {
	if err := c.Pipeline().Validate(); err != nil {
		return err
	}
	if c.Detection.Alphabet != "" {
		if _, err := symbols.ParseAlphabet(c.Detection.Alphabet); err != nil {
			return err
		}
	}

	switch c.Source.Kind {
	case SourceNone, SourceSynthetic:
	case SourceDir:
		if c.Source.Path == "" {
			return fmt.Errorf("source.path is required for kind %q", SourceDir)
		}
	default:
		return fmt.Errorf("unknown source kind %q", c.Source.Kind)
	}
	if c.Source.FPS <= 0 {
		return fmt.Errorf("source.fps must be positive, got %d", c.Source.FPS)
	}
	if c.Source.Width < 0 || c.Source.Height < 0 {
		return fmt.Errorf("source size must be non-negative, got %dx%d", c.Source.Width, c.Source.Height)
	}
	if (c.Source.Width == 0) != (c.Source.Height == 0) {
		return fmt.Errorf("source.width and source.height must be set together")
	}

	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	if c.WebRTC.Enabled && c.WebRTC.MaxClients <= 0 {
		return fmt.Errorf("webrtc.max_clients must be positive, got %d", c.WebRTC.MaxClients)
	}
	if c.Redis.Enabled && (c.Redis.Addr == "" || strings.TrimSpace(c.Redis.Channel) == "") {
		return fmt.Errorf("redis.addr and redis.channel are required when redis is enabled")
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// Pipeline returns the pipeline tunables.
func (c *Config) Pipeline() pipeline.Config {
	return pipeline.Config{
		Threshold:  c.Detection.Threshold,
		RegionSize: c.Detection.RegionSize,
	}
}
