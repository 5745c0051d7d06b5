package domain

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultJoinTimeout = 30 * time.Second
	MinJoinTimeout     = 5 * time.Second
	MaxJoinTimeout     = 300 * time.Second
)

func DefaultConfig() *Config {
	return &Config{
		DataDir:       "./data",
		Engine:        DefaultEngineConfig(),
		Notifications: DefaultNotificationsConfig(),
	}
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		WorkerCount:          10,
		JoinTimeout:          DefaultJoinTimeout,
		NodeExecutionTimeout: 5 * time.Minute,
		RetryBackoff:         time.Second,
		QueueCapacity:        256,
		Environment:          "production",
	}
}

func DefaultNotificationsConfig() NotificationsConfig {
	return NotificationsConfig{
		Enabled:       false,
		URL:           "nats://localhost:4222",
		SubjectPrefix: "interlace",
	}
}

// ClampJoinTimeout forces the configured join timeout into the safe range,
// falling back to the default when unset.
func ClampJoinTimeout(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return DefaultJoinTimeout
	case d < MinJoinTimeout:
		return MinJoinTimeout
	case d > MaxJoinTimeout:
		return MaxJoinTimeout
	default:
		return d
	}
}

// LoadConfig reads a YAML config file over the defaults. An unreadable file
// is an error; callers that want the hard-coded fallback use DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyOverrides()
	return cfg, nil
}

func (c *Config) applyOverrides() {
	if v := os.Getenv("INTERLACE_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("INTERLACE_NATS_URL"); v != "" {
		c.Notifications.URL = v
	}
	if v := os.Getenv("INTERLACE_ENVIRONMENT"); v != "" {
		c.Engine.Environment = v
	}
	if c.Engine.Environment == "" {
		c.Engine.Environment = DefaultEngineConfig().Environment
	}
	if c.Engine.WorkerCount <= 0 {
		c.Engine.WorkerCount = DefaultEngineConfig().WorkerCount
	}
	if c.Engine.QueueCapacity <= 0 {
		c.Engine.QueueCapacity = DefaultEngineConfig().QueueCapacity
	}
	c.Engine.JoinTimeout = ClampJoinTimeout(c.Engine.JoinTimeout)
}
