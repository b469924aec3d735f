package syncagent

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the device-side configuration for the sync agent.
type Config struct {
	ServerURL             string `yaml:"server_url"`
	DeviceToken           string `yaml:"device_token"`
	QueuePath             string `yaml:"queue_path"`
	FlushIntervalSeconds  int    `yaml:"flush_interval_seconds"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
}

func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("server_url required")
	}
	if cfg.QueuePath == "" {
		cfg.QueuePath = "patrol-queue.db"
	}
	if cfg.FlushIntervalSeconds <= 0 {
		cfg.FlushIntervalSeconds = 60
	}
	if cfg.RequestTimeoutSeconds <= 0 {
		cfg.RequestTimeoutSeconds = 30
	}
	return &cfg, nil
}

func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalSeconds) * time.Second
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}
