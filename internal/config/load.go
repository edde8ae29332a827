package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config file in the working directory
	v.SetConfigName("podforge")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables with PODFORGE_ prefix override file values,
	// e.g. PODFORGE_SERVER_PORT and PODFORGE_POOL_WORKER_COUNT.
	v.SetEnvPrefix("PODFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.enable_cors", true)

	// Registering empty defaults keeps AutomaticEnv working for keys
	// that have no file-level value.
	v.SetDefault("server.auth_token", "")
	v.SetDefault("database.url", "")
	v.SetDefault("redis.url", "")

	v.SetDefault("pool.worker_count", 3)
	v.SetDefault("pool.max_concurrent_jobs", 3)
	v.SetDefault("pool.job_timeout", "2m")
	v.SetDefault("pool.retry_delay", "5s")
	v.SetDefault("pool.max_retries", 3)
	v.SetDefault("pool.auto_retry", true)
	v.SetDefault("pool.auto_restart", true)
	v.SetDefault("pool.max_restarts", 3)
	v.SetDefault("pool.restart_delay", "5s")
	v.SetDefault("pool.shutdown_grace", "30s")

	v.SetDefault("monitor.metric_retention", 1000)
	v.SetDefault("monitor.alert_history", 100)
	v.SetDefault("monitor.recent_jobs", 500)
	v.SetDefault("monitor.eval_interval", "15s")
	v.SetDefault("monitor.failure_rate", 0.5)
	v.SetDefault("monitor.min_running_workers", 1)

	v.SetDefault("redis.channel", "podforge:jobs")
}
