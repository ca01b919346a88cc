// Package config loads the hermes process configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings of a hermes process. Zero sections are filled
// from Default.
type Config struct {
	Address string        `yaml:"address"`
	Log     LogConfig     `yaml:"log"`
	WS      WSConfig      `yaml:"ws"`
	JSONRPC JSONRPCConfig `yaml:"jsonrpc"`
	Stream  StreamConfig  `yaml:"stream"`
	NATS    NATSConfig    `yaml:"nats"`
	Metrics MetricsConfig `yaml:"metrics"`
	Client  ClientConfig  `yaml:"client"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type WSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	Path    string `yaml:"path"`
}

type JSONRPCConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	Path    string `yaml:"path"`
}

type StreamConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Prefix  string `yaml:"prefix"`
	Queue   string `yaml:"queue"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Listen    string `yaml:"listen"`
	Namespace string `yaml:"namespace"`
}

// ClientConfig configures the call and echo commands.
type ClientConfig struct {
	Transport      string        `yaml:"transport"`
	URL            string        `yaml:"url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

func Default() *Config {
	return &Config{
		Address: "default",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		WS: WSConfig{
			Enabled: true,
			Listen:  ":8080",
			Path:    "/ws",
		},
		JSONRPC: JSONRPCConfig{
			Enabled: true,
			Listen:  ":8080",
			Path:    "/rpc",
		},
		Stream: StreamConfig{
			Enabled: false,
			Listen:  ":9090",
		},
		NATS: NATSConfig{
			Enabled: false,
			URL:     "nats://127.0.0.1:4222",
			Prefix:  "hermes",
			Queue:   "hermes",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Listen:    ":9100",
			Namespace: "hermes",
		},
		Client: ClientConfig{
			Transport:      "ws",
			URL:            "ws://127.0.0.1:8080/ws",
			RequestTimeout: 30 * time.Second,
		},
	}
}

// Load reads the configuration from the given YAML file path on top of
// Default. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Address == "" {
		errs = append(errs, errors.New("address must not be empty"))
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}

	if c.WS.Enabled && c.WS.Listen == "" {
		errs = append(errs, errors.New("ws.listen must be set"))
	}

	if c.JSONRPC.Enabled && c.JSONRPC.Listen == "" {
		errs = append(errs, errors.New("jsonrpc.listen must be set"))
	}

	if c.WS.Enabled && c.JSONRPC.Enabled && c.WS.Listen == c.JSONRPC.Listen && c.WS.Path == c.JSONRPC.Path {
		errs = append(errs, errors.New("ws.path and jsonrpc.path must differ on a shared listener"))
	}

	if c.Stream.Enabled && c.Stream.Listen == "" {
		errs = append(errs, errors.New("stream.listen must be set"))
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, errors.New("nats.url must be set"))
	}

	switch c.Client.Transport {
	case "ws", "jsonrpc", "stream", "nats":
	default:
		errs = append(errs, fmt.Errorf("unknown client transport %q", c.Client.Transport))
	}

	return errors.Join(errs...)
}

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// NewLogger builds the process logger writing to w.
func NewLogger(cfg LogConfig, w io.Writer) *slog.Logger {
	level, _ := ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}
