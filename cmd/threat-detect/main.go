// Package main is the entry point for the threat detection service.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/hackn3y/security-monitor-dash/internal/alerting"
	"github.com/hackn3y/security-monitor-dash/internal/config"
	"github.com/hackn3y/security-monitor-dash/internal/consumer"
	"github.com/hackn3y/security-monitor-dash/internal/detection"
	"github.com/hackn3y/security-monitor-dash/internal/ingest"
	"github.com/hackn3y/security-monitor-dash/internal/kafka"
	"github.com/hackn3y/security-monitor-dash/internal/logging"
	"github.com/hackn3y/security-monitor-dash/internal/metrics"
	"github.com/hackn3y/security-monitor-dash/internal/queue"
	"github.com/hackn3y/security-monitor-dash/internal/schema"
	"github.com/hackn3y/security-monitor-dash/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"kafka_topic", cfg.Kafka.Topic,
		"queue_size", cfg.Queue.Size,
		"storage_backend", cfg.Storage.Backend,
		"slack_enabled", cfg.Notifications.Slack.Enabled,
		"sns_enabled", cfg.Notifications.SNS.Enabled,
		"metrics_enabled", cfg.Metrics.Enabled,
		"slack_webhook", logging.MaskURL(cfg.Notifications.Slack.WebhookURL),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	var (
		eventStore storage.EventStore
		alertStore alerting.AlertStore
		chClient   *storage.ClickHouseClient
		redisStore *storage.RedisEventStore
	)

	switch cfg.Storage.Backend {
	case config.BackendClickHouse:
		chClient, err = storage.NewClickHouseClient(cfg.Storage.ClickHouse)
		if err != nil {
			slog.Error("failed to connect to ClickHouse", "error", err)
			os.Exit(1)
		}
		if err := chClient.EnsureSchema(ctx); err != nil {
			slog.Error("failed to ensure ClickHouse schema", "error", err)
			os.Exit(1)
		}
		eventStore = storage.NewClickHouseEventStore(chClient)
		alertStore = storage.NewClickHouseAlertStore(chClient)

	case config.BackendRedis:
		redisStore, err = storage.NewRedisEventStore(cfg.Storage.Redis)
		if err != nil {
			slog.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		eventStore = redisStore
		// Alerts stay in memory on the redis backend.
		alertStore = storage.NewMemoryStore()

	default:
		mem := storage.NewMemoryStore()
		eventStore = mem
		alertStore = mem
	}

	// Detection engine
	rules := detection.BuildRules(cfg.Detection)
	engine, err := detection.NewEngine(rules, eventStore, cfg.Detection.QueryTimeout)
	if err != nil {
		slog.Error("failed to build detection engine", "error", err)
		os.Exit(1)
	}
	slog.Info("detection engine initialized", "rules", len(engine.Rules()))

	// AWS clients, shared by SNS and CloudWatch when either is enabled
	var awsRegion string
	if cfg.Notifications.SNS.Enabled {
		awsRegion = cfg.Notifications.SNS.Region
	} else if cfg.Metrics.Enabled {
		awsRegion = cfg.Metrics.Region
	}

	var push, direct alerting.Channel
	var emitter detection.MetricsEmitter = metrics.NopEmitter{}

	if awsRegion != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(awsRegion))
		if err != nil {
			slog.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}

		if cfg.Notifications.SNS.Enabled {
			direct = alerting.NewSNSChannel(sns.NewFromConfig(awsCfg), cfg.Notifications.SNS.TopicARN)
		}
		if cfg.Metrics.Enabled {
			emitter = metrics.NewCloudWatchEmitter(cloudwatch.NewFromConfig(awsCfg), cfg.Metrics.Namespace)
		}
	}

	if cfg.Notifications.Slack.Enabled {
		push = alerting.NewSlackChannel(cfg.Notifications.Slack.WebhookURL, cfg.Notifications.Slack.Username)
	}

	// Routing policy with per-severity overrides
	policy := alerting.DefaultSeverityPolicy()
	for key, override := range cfg.Notifications.Policy {
		sev := detection.Severity(strings.ToUpper(key))
		entry := policy.For(sev)
		if override.SendPush != nil {
			entry.SendPush = *override.SendPush
		}
		if override.SendDirectMessage != nil {
			entry.SendDirectMessage = *override.SendDirectMessage
		}
		policy[sev] = entry
	}

	dispatcher := alerting.NewDispatcher(policy, push, direct)
	materializer := alerting.NewMaterializer(alertStore, dispatcher)

	processor, err := detection.NewProcessor(engine, materializer, emitter)
	if err != nil {
		slog.Error("failed to build processor", "error", err)
		os.Exit(1)
	}

	// Queue and workers
	eventQueue := queue.NewRingBuffer(cfg.Queue.Size)

	detConsumer := consumer.New(eventQueue, processor, cfg.Consumer)
	detConsumer.Start(ctx)

	// Kafka ingest
	validator := schema.NewValidatorWithConfig(schema.ValidatorConfig{
		MaxAge:    cfg.Validation.MaxEventAge,
		MaxFuture: cfg.Validation.MaxFuture,
	})
	ingestor := ingest.New(validator, eventStore, eventQueue)

	kafkaConsumer, err := kafka.NewConsumer(&cfg.Kafka, ingestor.Handle, logger)
	if err != nil {
		slog.Error("failed to create kafka consumer", "error", err)
		os.Exit(1)
	}
	if err := kafkaConsumer.StartAsync(); err != nil {
		slog.Error("failed to start kafka consumer", "error", err)
		os.Exit(1)
	}

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received", "signal", sig.String())

	// Stop intake first so the queue can drain
	if err := kafkaConsumer.Stop(); err != nil {
		slog.Error("kafka consumer stop error", "error", err)
	}

	detConsumer.Stop()
	cancel()
	eventQueue.Close()

	if chClient != nil {
		if err := chClient.Close(); err != nil {
			slog.Error("clickhouse close error", "error", err)
		}
	}
	if redisStore != nil {
		if err := redisStore.Close(); err != nil {
			slog.Error("redis close error", "error", err)
		}
	}

	queueMetrics := eventQueue.Metrics()
	consumerMetrics := detConsumer.Metrics()
	ingestMetrics := ingestor.Metrics()
	slog.Info("shutdown complete",
		"events_received", ingestMetrics.Received,
		"events_dropped", ingestMetrics.Dropped,
		"batches_queued", queueMetrics.Pushed,
		"batches_processed", consumerMetrics.Batches,
		"events_evaluated", consumerMetrics.Events,
		"alerts_generated", consumerMetrics.Alerts,
	)
}
