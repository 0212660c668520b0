package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "SUMMARIZER"

// legacyEnv maps config keys to the unprefixed variable names used by
// existing deployments. Prefixed variables take precedence.
var legacyEnv = map[string]string{
	"server.port":   "PORT",
	"database.url":  "DATABASE_URL",
	"queue.url":     "UPSTASH_REDIS_REST_URL",
	"queue.token":   "UPSTASH_REDIS_REST_TOKEN",
	"ml.url":        "LIGHTNING_AI_URL",
	"ml.auth_token": "LIGHTNING_AI_AUTH_TOKEN",
	"wakeup.secret": "RAILWAY_WAKEUP_SECRET",
	"wakeup.url":    "RAILWAY_CONSUMER_WAKEUP_URL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("queue.key", "summarization_jobs_v1")

	v.SetDefault("ml.health_path", "/health")
	v.SetDefault("ml.summarize_path", "/summarize")
	v.SetDefault("ml.health_timeout", 5*time.Second)
	v.SetDefault("ml.summarize_timeout", 4*time.Minute)

	v.SetDefault("wakeup.timeout", 10*time.Second)
	v.SetDefault("wakeup.rate_per_second", 1.0)
	v.SetDefault("wakeup.burst", 3)

	v.SetDefault("consumer.max_job_attempts", 3)
	v.SetDefault("consumer.poll_interval", 5*time.Second)
	v.SetDefault("consumer.max_empty_polls", 6)
	v.SetDefault("consumer.health_check_interval", 10*time.Second)
	v.SetDefault("consumer.max_ml_wait", 150*time.Second)
	v.SetDefault("consumer.max_concurrent_jobs", 8)
	v.SetDefault("consumer.autostart", false)

	// Keys without defaults still need to be known to viper so that
	// AutomaticEnv values reach Unmarshal.
	for _, key := range []string{"database.url", "queue.url", "queue.token", "ml.url", "ml.auth_token", "wakeup.secret", "wakeup.url"} {
		v.SetDefault(key, "")
	}
}

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable %s: %w", legacy, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate runs the struct tag validation on cfg.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
