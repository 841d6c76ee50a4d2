package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Redis    RedisConfig
	SMTP     SMTPConfig
	Worker   WorkerConfig
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
}

type RedisConfig struct {
	URL          string `mapstructure:"url"`
	MaxRetries   int    `mapstructure:"max_retries"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

type SMTPConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	From        string `mapstructure:"from"`
	ClinicInbox string `mapstructure:"clinic_inbox"`
}

type WorkerConfig struct {
	OutboxBatchSize        int `mapstructure:"outbox_batch_size"`
	OutboxPollSeconds      int `mapstructure:"outbox_poll_seconds"`
	OutboxRetryAttempts    int `mapstructure:"outbox_retry_attempts"`
	OutboxRetryDelaySecs   int `mapstructure:"outbox_retry_delay_seconds"`
	ReminderIntervalMins   int `mapstructure:"reminder_interval_minutes"`
	OutboxRetentionDays    int `mapstructure:"outbox_retention_days"`
}

func (w WorkerConfig) OutboxPollInterval() time.Duration {
	return time.Duration(w.OutboxPollSeconds) * time.Second
}

func (w WorkerConfig) OutboxRetryDelay() time.Duration {
	return time.Duration(w.OutboxRetryDelaySecs) * time.Second
}

func (w WorkerConfig) ReminderInterval() time.Duration {
	return time.Duration(w.ReminderIntervalMins) * time.Minute
}

// secrets holds the values that never belong in the YAML file.
type secrets struct {
	DBPassword   string `envconfig:"DB_PASSWORD"`
	JWTSecret    string `envconfig:"JWT_SECRET"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	RedisURL     string `envconfig:"REDIS_URL"`
}

// LoadConfig reads config.yaml and then overlays secrets from the
// environment; the environment always wins.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var sec secrets
	if err := envconfig.Process("", &sec); err != nil {
		return nil, fmt.Errorf("failed to read environment secrets: %w", err)
	}
	if sec.DBPassword != "" {
		config.Database.Password = sec.DBPassword
	}
	if sec.JWTSecret != "" {
		config.JWT.Secret = sec.JWTSecret
	}
	if sec.SMTPPassword != "" {
		config.SMTP.Password = sec.SMTPPassword
	}
	if sec.RedisURL != "" {
		config.Redis.URL = sec.RedisURL
	}

	applyDefaults(&config)
	return &config, nil
}

func applyDefaults(c *Config) {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.TimeoutSeconds == 0 {
		c.Server.TimeoutSeconds = 30
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Worker.OutboxBatchSize == 0 {
		c.Worker.OutboxBatchSize = 100
	}
	if c.Worker.OutboxPollSeconds == 0 {
		c.Worker.OutboxPollSeconds = 5
	}
	if c.Worker.OutboxRetryAttempts == 0 {
		c.Worker.OutboxRetryAttempts = 3
	}
	if c.Worker.OutboxRetryDelaySecs == 0 {
		c.Worker.OutboxRetryDelaySecs = 2
	}
	if c.Worker.ReminderIntervalMins == 0 {
		c.Worker.ReminderIntervalMins = 60
	}
	if c.Worker.OutboxRetentionDays == 0 {
		c.Worker.OutboxRetentionDays = 7
	}
}
