package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue" validate:"required"`
	ML       MLConfig       `mapstructure:"ml" validate:"required"`
	Wakeup   WakeupConfig   `mapstructure:"wakeup"`
	Consumer ConsumerConfig `mapstructure:"consumer" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// QueueConfig describes the Redis list that carries summarization jobs.
type QueueConfig struct {
	URL   string `mapstructure:"url" validate:"required"`
	Token string `mapstructure:"token" validate:"required"`
	Key   string `mapstructure:"key" validate:"required"`
}

// MLConfig describes the remote summarization service.
type MLConfig struct {
	URL              string        `mapstructure:"url" validate:"required,url"`
	AuthToken        string        `mapstructure:"auth_token" validate:"required"`
	HealthPath       string        `mapstructure:"health_path" validate:"required,startswith=/"`
	SummarizePath    string        `mapstructure:"summarize_path" validate:"required,startswith=/"`
	HealthTimeout    time.Duration `mapstructure:"health_timeout" validate:"gt=0"`
	SummarizeTimeout time.Duration `mapstructure:"summarize_timeout" validate:"gt=0"`
}

// WakeupSecretHeader carries the shared wakeup secret.
const WakeupSecretHeader = "X-Wakeup-Secret"

// WakeupConfig holds both sides of the wakeup signal.
// Secret is checked by the worker when non-empty; URL is where producers send it.
type WakeupConfig struct {
	Secret        string        `mapstructure:"secret"`
	URL           string        `mapstructure:"url" validate:"omitempty,url"`
	Timeout       time.Duration `mapstructure:"timeout" validate:"gt=0"`
	RatePerSecond float64       `mapstructure:"rate_per_second" validate:"gt=0"`
	Burst         int           `mapstructure:"burst" validate:"gte=1"`
}

// ConsumerConfig tunes the consumer loop.
type ConsumerConfig struct {
	MaxJobAttempts      int           `mapstructure:"max_job_attempts" validate:"gte=1"`
	PollInterval        time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	MaxEmptyPolls       int           `mapstructure:"max_empty_polls" validate:"gte=1"`
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval" validate:"gt=0"`
	MaxMLWait           time.Duration `mapstructure:"max_ml_wait" validate:"gt=0"`
	MaxConcurrentJobs   int           `mapstructure:"max_concurrent_jobs" validate:"gte=1"`
	Autostart           bool          `mapstructure:"autostart"`
}
