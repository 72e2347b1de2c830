package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging defaults = %+v", cfg.Logging)
	}
	if cfg.Queue.Size != 4096 {
		t.Errorf("queue size = %d", cfg.Queue.Size)
	}
	if cfg.Storage.Backend != BackendMemory {
		t.Errorf("default backend = %s, want memory", cfg.Storage.Backend)
	}
	if cfg.Detection.BruteForceThreshold != 5 {
		t.Errorf("brute force threshold = %d, want 5", cfg.Detection.BruteForceThreshold)
	}
	if cfg.Notifications.Slack.Enabled || cfg.Notifications.SNS.Enabled {
		t.Error("notification channels must be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
logging:
  level: debug
  format: text
queue:
  size: 128
storage:
  backend: clickhouse
  clickhouse:
    hosts: ["ch1:9000"]
    database: threats
detection:
  brute_force_threshold: 3
notifications:
  slack:
    enabled: true
    webhook_url: https://hooks.slack.com/services/T/B/X
  policy:
    LOW:
      send_push: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SECMON_CONFIG_PATH", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Queue.Size != 128 {
		t.Errorf("queue size = %d", cfg.Queue.Size)
	}
	if cfg.Storage.Backend != BackendClickHouse {
		t.Errorf("backend = %s", cfg.Storage.Backend)
	}
	if got := cfg.Storage.ClickHouse.Hosts; len(got) != 1 || got[0] != "ch1:9000" {
		t.Errorf("hosts = %v", got)
	}
	if cfg.Detection.BruteForceThreshold != 3 {
		t.Errorf("threshold = %d", cfg.Detection.BruteForceThreshold)
	}
	// Untouched sections keep their defaults.
	if cfg.Detection.BruteForceWindow != 5*time.Minute {
		t.Errorf("brute force window lost its default: %v", cfg.Detection.BruteForceWindow)
	}
	if cfg.Detection.RateLimitThreshold != 100 {
		t.Errorf("rate limit threshold lost its default: %d", cfg.Detection.RateLimitThreshold)
	}
	if !cfg.Notifications.Slack.Enabled {
		t.Error("slack should be enabled")
	}

	override, ok := cfg.Notifications.Policy["LOW"]
	if !ok || override.SendPush == nil || !*override.SendPush {
		t.Errorf("LOW policy override = %+v", override)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("SECMON_CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Queue.Size != DefaultConfig().Queue.Size {
		t.Errorf("queue size = %d", cfg.Queue.Size)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SECMON_CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("SECMON_LOG_LEVEL", "warn")
	t.Setenv("SECMON_KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("SECMON_STORAGE_BACKEND", "redis")
	t.Setenv("REDIS_ADDRESS", "redis:6379")
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.com/services/T/B/Y")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Logging.Level != "warn" {
		t.Errorf("level = %s", cfg.Logging.Level)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.Storage.Backend != BackendRedis {
		t.Errorf("backend = %s", cfg.Storage.Backend)
	}
	if cfg.Storage.Redis.Address != "redis:6379" {
		t.Errorf("redis address = %s", cfg.Storage.Redis.Address)
	}
	if !cfg.Notifications.Slack.Enabled {
		t.Error("webhook env should enable slack")
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero queue size", func(c *Config) { c.Queue.Size = 0 }},
		{"no kafka brokers", func(c *Config) { c.Kafka.Brokers = nil }},
		{"zero workers", func(c *Config) { c.Consumer.Workers = 0 }},
		{"bogus backend", func(c *Config) { c.Storage.Backend = "etcd" }},
		{"slack without webhook", func(c *Config) { c.Notifications.Slack.Enabled = true }},
		{"sns without topic", func(c *Config) { c.Notifications.SNS.Enabled = true }},
		{"bogus policy severity", func(c *Config) {
			c.Notifications.Policy = map[string]PolicyOverride{"SEVERE": {}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
