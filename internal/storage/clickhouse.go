package storage

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseConfig holds the configuration for the ClickHouse connection.
type ClickHouseConfig struct {
	Hosts           []string      `yaml:"hosts"`
	Database        string        `yaml:"database"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	TLSEnabled      bool          `yaml:"tls_enabled"`
	DialTimeout     time.Duration `yaml:"dial_timeout"`
}

// DefaultClickHouseConfig returns the default ClickHouse configuration.
func DefaultClickHouseConfig() ClickHouseConfig {
	return ClickHouseConfig{
		Hosts:           []string{"localhost:9000"},
		Database:        "secmon",
		Username:        "default",
		Password:        "",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		TLSEnabled:      false,
		DialTimeout:     10 * time.Second,
	}
}

// ClickHouseClient wraps the ClickHouse connection.
type ClickHouseClient struct {
	conn   driver.Conn
	config ClickHouseConfig
}

// NewClickHouseClient opens and verifies a ClickHouse connection.
func NewClickHouseClient(cfg ClickHouseConfig) (*ClickHouseClient, error) {
	opts := &clickhouse.Options{
		Addr: cfg.Hosts,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionZSTD,
		},
		DialTimeout:     cfg.DialTimeout,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}

	if cfg.TLSEnabled {
		opts.TLS = &tls.Config{
			InsecureSkipVerify: false,
		}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, WrapUnavailable("Open", "", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.Ping(ctx); err != nil {
		return nil, WrapUnavailable("Ping", "", err)
	}

	return &ClickHouseClient{conn: conn, config: cfg}, nil
}

// Close closes the ClickHouse connection.
func (c *ClickHouseClient) Close() error {
	return c.conn.Close()
}

// Ping checks if the connection is alive.
func (c *ClickHouseClient) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

// EnsureSchema creates the event and alert tables if they do not exist.
// The events table is ordered by (source_ip, timestamp) to serve the
// per-IP window queries the rule bank issues.
func (c *ClickHouseClient) EnsureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS events (
			event_id          String,
			timestamp         Int64,
			event_type        LowCardinality(String),
			action            String,
			source_ip         String,
			destination_ip    String,
			user              String,
			resource          String,
			user_agent        String,
			request_method    LowCardinality(String),
			status_code       Int32,
			response_time     Float64,
			bytes_transferred Int64
		) ENGINE = MergeTree()
		ORDER BY (source_ip, timestamp)
		TTL toDateTime(timestamp) + INTERVAL 30 DAY`,

		`CREATE TABLE IF NOT EXISTS alerts (
			alert_id          String,
			timestamp         Int64,
			created_at        String,
			rule              LowCardinality(String),
			severity          LowCardinality(String),
			description       String,
			details           String,
			source_event_id   String,
			source_event_type LowCardinality(String),
			source_ip         String,
			user              String,
			resource          String,
			status            LowCardinality(String)
		) ENGINE = ReplacingMergeTree()
		ORDER BY (alert_id)`,
	}

	for _, stmt := range ddl {
		if err := c.conn.Exec(ctx, stmt); err != nil {
			return WrapUnavailable("EnsureSchema", "", err)
		}
	}
	return nil
}
