package cli

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the daemon configuration for `turc serve`.
type Config struct {
	// Listen is the API bind address. Loopback by default.
	Listen  string       `yaml:"listen"`
	DataDir string       `yaml:"data_dir"`
	Engine  EngineConfig `yaml:"engine"`
	Log     LogConfig    `yaml:"log"`
	Notify  NotifyConfig `yaml:"notify"`
}

// EngineConfig points at the engine daemon's socket.io endpoint.
type EngineConfig struct {
	URL       string `yaml:"url"`
	Namespace string `yaml:"namespace"`
	// InsecureSkipVerify disables TLS verification for wss:// engines
	// with self-signed certificates.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// LogConfig controls daemon logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// NotifyConfig selects notification sinks. Empty values disable a sink.
type NotifyConfig struct {
	// Webhook receives a POST per finished download.
	Webhook string `yaml:"webhook"`
	// JSONL appends one notification per line; the desktop shell tails
	// this file to raise toasts. Default <data_dir>/notifications.jsonl.
	JSONL string `yaml:"jsonl"`
}

func (c *Config) defaults() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8642"
	}
	if c.DataDir == "" {
		home, _ := os.UserHomeDir()
		c.DataDir = filepath.Join(home, ".turc")
	}
	if c.Engine.URL == "" {
		c.Engine.URL = "http://127.0.0.1:4320/engine.io"
	}
	if c.Engine.Namespace == "" {
		c.Engine.Namespace = "/"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Notify.JSONL == "" {
		c.Notify.JSONL = filepath.Join(c.DataDir, "notifications.jsonl")
	}
}

// LoadConfigFile reads a YAML config file.
func LoadConfigFile(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
