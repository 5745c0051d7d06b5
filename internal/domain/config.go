package domain

import (
	"log/slog"
	"time"
)

type Config struct {
	DataDir string       `json:"data_dir" yaml:"data_dir"`
	Logger  *slog.Logger `json:"-" yaml:"-"`

	Engine        EngineConfig        `json:"engine" yaml:"engine"`
	Notifications NotificationsConfig `json:"notifications" yaml:"notifications"`
}

type EngineConfig struct {
	// WorkerCount bounds the pool shared by whole-flow runs and parallel
	// branch fan-out.
	WorkerCount int `json:"worker_count" yaml:"worker_count"`

	// JoinTimeout is how long a parent branch waits for its fan-out
	// children. Clamped to [MinJoinTimeout, MaxJoinTimeout] at use.
	JoinTimeout time.Duration `json:"join_timeout" yaml:"join_timeout"`

	NodeExecutionTimeout time.Duration `json:"node_execution_timeout" yaml:"node_execution_timeout"`

	// RunTimeout stamps a deadline onto every accepted run; zero means
	// unbounded. RetryBackoff is the delay applied when a retry is requested
	// without an explicit one.
	RunTimeout   time.Duration `json:"run_timeout" yaml:"run_timeout"`
	RetryBackoff time.Duration `json:"retry_backoff" yaml:"retry_backoff"`

	QueueCapacity int `json:"queue_capacity" yaml:"queue_capacity"`

	// Environment is seeded into every run context under the environment key.
	Environment string `json:"environment" yaml:"environment"`
}

type NotificationsConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	URL           string `json:"url" yaml:"url"`
	SubjectPrefix string `json:"subject_prefix" yaml:"subject_prefix"`
}
