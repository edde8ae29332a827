package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Pool     PoolConfig     `mapstructure:"pool" validate:"required"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`

	// AuthToken is the static bearer token required on API requests.
	// An empty token disables authentication.
	AuthToken string `mapstructure:"auth_token"`

	// EnableCORS controls whether the permissive CORS middleware is
	// installed.
	EnableCORS bool `mapstructure:"enable_cors"`
}

// DatabaseConfig contains all database-related configuration settings.
// An empty URL selects the in-memory job store.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// RedisConfig configures the optional lifecycle event publisher. An
// empty URL disables publishing.
type RedisConfig struct {
	URL     string `mapstructure:"url" validate:"omitempty,uri"`
	Channel string `mapstructure:"channel"`
}

// PoolConfig contains the worker pool and per-queue settings.
type PoolConfig struct {
	WorkerCount       int           `mapstructure:"worker_count" validate:"required,gte=1"`
	MaxConcurrentJobs int           `mapstructure:"max_concurrent_jobs" validate:"required,gte=1"`
	JobTimeout        time.Duration `mapstructure:"job_timeout" validate:"required"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"`
	MaxRetries        int           `mapstructure:"max_retries" validate:"gte=0"`
	AutoRetry         bool          `mapstructure:"auto_retry"`
	AutoRestart       bool          `mapstructure:"auto_restart"`
	MaxRestarts       int           `mapstructure:"max_restarts" validate:"gte=0"`
	RestartDelay      time.Duration `mapstructure:"restart_delay"`
	ShutdownGrace     time.Duration `mapstructure:"shutdown_grace"`
}

// MonitorConfig contains the observability settings.
type MonitorConfig struct {
	MetricRetention   int           `mapstructure:"metric_retention" validate:"gte=0"`
	AlertHistory      int           `mapstructure:"alert_history" validate:"gte=0"`
	RecentJobs        int           `mapstructure:"recent_jobs" validate:"gte=0"`
	EvalInterval      time.Duration `mapstructure:"eval_interval"`
	FailureRate       float64       `mapstructure:"failure_rate" validate:"gte=0,lte=1"`
	MinRunningWorkers int           `mapstructure:"min_running_workers" validate:"gte=0"`
}
