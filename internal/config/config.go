// Package config handles configuration loading for the threat
// detection service.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hackn3y/security-monitor-dash/internal/consumer"
	"github.com/hackn3y/security-monitor-dash/internal/detection"
	"github.com/hackn3y/security-monitor-dash/internal/kafka"
	"github.com/hackn3y/security-monitor-dash/internal/storage"
)

// Config holds the complete application configuration.
type Config struct {
	Logging       LoggingConfig       `yaml:"logging"`
	Kafka         kafka.Config        `yaml:"kafka"`
	Queue         QueueConfig         `yaml:"queue"`
	Validation    ValidationConfig    `yaml:"validation"`
	Consumer      consumer.Config     `yaml:"consumer"`
	Storage       StorageConfig       `yaml:"storage"`
	Detection     detection.Config    `yaml:"detection"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// QueueConfig holds queue settings.
type QueueConfig struct {
	Size int `yaml:"size"`
}

// ValidationConfig holds event validation settings.
type ValidationConfig struct {
	MaxEventAge time.Duration `yaml:"max_event_age"`
	MaxFuture   time.Duration `yaml:"max_future"`
}

// StorageBackend selects where event history and alerts live.
type StorageBackend string

const (
	BackendClickHouse StorageBackend = "clickhouse"
	BackendRedis      StorageBackend = "redis"
	BackendMemory     StorageBackend = "memory"
)

// StorageConfig holds storage settings. The redis backend keeps only
// the event window in Redis and the alerts in memory.
type StorageConfig struct {
	Backend    StorageBackend           `yaml:"backend"`
	ClickHouse storage.ClickHouseConfig `yaml:"clickhouse"`
	Redis      storage.RedisConfig      `yaml:"redis"`
}

// SlackConfig holds Slack webhook settings.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
	Username   string `yaml:"username"`
}

// SNSConfig holds SNS direct-message settings.
type SNSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	TopicARN string `yaml:"topic_arn"`
	Region   string `yaml:"region"`
}

// PolicyOverride adjusts channel routing for one severity level.
type PolicyOverride struct {
	SendPush          *bool `yaml:"send_push"`
	SendDirectMessage *bool `yaml:"send_direct_message"`
}

// NotificationsConfig holds notification channel settings.
type NotificationsConfig struct {
	Slack  SlackConfig               `yaml:"slack"`
	SNS    SNSConfig                 `yaml:"sns"`
	Policy map[string]PolicyOverride `yaml:"policy"` // keyed by severity
}

// MetricsConfig holds CloudWatch metrics settings.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
	Region    string `yaml:"region"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Kafka: *kafka.DefaultConfig(),
		Queue: QueueConfig{
			Size: 4096,
		},
		Validation: ValidationConfig{
			MaxEventAge: 7 * 24 * time.Hour,
			MaxFuture:   5 * time.Minute,
		},
		Consumer:  consumer.DefaultConfig(),
		Detection: detection.DefaultConfig(),
		Storage: StorageConfig{
			Backend:    BackendMemory,
			ClickHouse: storage.DefaultClickHouseConfig(),
			Redis:      storage.DefaultRedisConfig(),
		},
		Notifications: NotificationsConfig{
			Slack: SlackConfig{
				Enabled:  false,
				Username: "Security Monitor",
			},
			SNS: SNSConfig{
				Enabled: false,
				Region:  "us-east-1",
			},
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Namespace: "SecurityMonitoring",
			Region:    "us-east-1",
		},
	}
}

// Load loads configuration from a file or returns defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := os.Getenv("SECMON_CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, use defaults
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if level := os.Getenv("SECMON_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}

	if brokers := os.Getenv("SECMON_KAFKA_BROKERS"); brokers != "" {
		c.Kafka.Brokers = splitAndTrim(brokers, ",")
	}

	if topic := os.Getenv("SECMON_KAFKA_TOPIC"); topic != "" {
		c.Kafka.Topic = topic
	}

	if group := os.Getenv("SECMON_KAFKA_GROUP"); group != "" {
		c.Kafka.ConsumerGroup = group
	}

	// Storage settings
	if backend := os.Getenv("SECMON_STORAGE_BACKEND"); backend != "" {
		c.Storage.Backend = StorageBackend(backend)
	}

	if host := os.Getenv("CLICKHOUSE_HOST"); host != "" {
		c.Storage.ClickHouse.Hosts = []string{host}
	}

	if db := os.Getenv("CLICKHOUSE_DATABASE"); db != "" {
		c.Storage.ClickHouse.Database = db
	}

	if user := os.Getenv("CLICKHOUSE_USER"); user != "" {
		c.Storage.ClickHouse.Username = user
	}

	if pass := os.Getenv("CLICKHOUSE_PASSWORD"); pass != "" {
		c.Storage.ClickHouse.Password = pass
	}

	if addr := os.Getenv("REDIS_ADDRESS"); addr != "" {
		c.Storage.Redis.Address = addr
	}

	if pass := os.Getenv("REDIS_PASSWORD"); pass != "" {
		c.Storage.Redis.Password = pass
	}

	// Notification settings
	if url := os.Getenv("SLACK_WEBHOOK_URL"); url != "" {
		c.Notifications.Slack.WebhookURL = url
		c.Notifications.Slack.Enabled = true
	}

	if arn := os.Getenv("SNS_TOPIC_ARN"); arn != "" {
		c.Notifications.SNS.TopicARN = arn
		c.Notifications.SNS.Enabled = true
	}

	if region := os.Getenv("AWS_REGION"); region != "" {
		c.Notifications.SNS.Region = region
		c.Metrics.Region = region
	}

	if enabled := os.Getenv("SECMON_METRICS_ENABLED"); enabled == "true" {
		c.Metrics.Enabled = true
	}
}

// splitAndTrim splits a string by separator and trims whitespace from each part.
func splitAndTrim(s, sep string) []string {
	parts := make([]string, 0)
	for _, part := range strings.Split(s, sep) {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Kafka.Validate(); err != nil {
		return err
	}

	if c.Queue.Size <= 0 {
		return fmt.Errorf("queue size must be positive")
	}

	if c.Consumer.Workers <= 0 {
		return fmt.Errorf("consumer workers must be positive")
	}

	switch c.Storage.Backend {
	case BackendClickHouse, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("invalid storage backend: %s", c.Storage.Backend)
	}

	if c.Notifications.Slack.Enabled && c.Notifications.Slack.WebhookURL == "" {
		return fmt.Errorf("slack enabled but webhook_url is empty")
	}

	if c.Notifications.SNS.Enabled && c.Notifications.SNS.TopicARN == "" {
		return fmt.Errorf("sns enabled but topic_arn is empty")
	}

	for severity := range c.Notifications.Policy {
		if !detection.Severity(severity).IsValid() {
			return fmt.Errorf("invalid severity in notification policy: %s", severity)
		}
	}

	return nil
}
