// Package consumer runs the detection workers that drain the event queue.
package consumer

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hackn3y/security-monitor-dash/internal/detection"
	"github.com/hackn3y/security-monitor-dash/internal/queue"
	"github.com/hackn3y/security-monitor-dash/internal/schema"
)

// Config holds the consumer configuration.
type Config struct {
	Workers      int           `yaml:"workers"`
	PollInterval time.Duration `yaml:"poll_interval"`
	ShutdownWait time.Duration `yaml:"shutdown_wait"`
}

// DefaultConfig returns the default consumer configuration.
func DefaultConfig() Config {
	return Config{
		Workers:      4,
		PollInterval: 10 * time.Millisecond,
		ShutdownWait: 30 * time.Second,
	}
}

// BatchProcessor evaluates one batch of events against the rule bank.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, events []schema.Event) detection.BatchResult
}

// Consumer pops event batches from the queue and runs detection on them.
type Consumer struct {
	queue     *queue.RingBuffer
	processor BatchProcessor
	config    Config

	wg   sync.WaitGroup
	done chan struct{}

	// Metrics
	batches uint64
	events  uint64
	alerts  uint64
	errors  uint64
}

// New creates a new Consumer.
func New(q *queue.RingBuffer, p BatchProcessor, cfg Config) *Consumer {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	return &Consumer{
		queue:     q,
		processor: p,
		config:    cfg,
		done:      make(chan struct{}),
	}
}

// Start starts the consumer workers.
func (c *Consumer) Start(ctx context.Context) {
	for i := 0; i < c.config.Workers; i++ {
		c.wg.Add(1)
		go c.worker(ctx, i)
	}

	slog.Info("detection consumer started", "workers", c.config.Workers)
}

// worker is a single consumer worker goroutine.
func (c *Consumer) worker(ctx context.Context, id int) {
	defer c.wg.Done()

	slog.Debug("detection worker started", "worker_id", id)

	for {
		select {
		case <-ctx.Done():
			slog.Debug("detection worker stopping (context)", "worker_id", id)
			return
		case <-c.done:
			slog.Debug("detection worker stopping (done)", "worker_id", id)
			return
		default:
			batch, err := c.queue.PopWithTimeout(c.config.PollInterval)
			if err != nil {
				if err == queue.ErrQueueEmpty {
					continue
				}
				if err == queue.ErrQueueClosed {
					return
				}
				slog.Warn("unexpected queue error", "worker_id", id, "error", err)
				atomic.AddUint64(&c.errors, 1)
				continue
			}

			result := c.processor.ProcessBatch(ctx, batch)

			atomic.AddUint64(&c.batches, 1)
			atomic.AddUint64(&c.events, uint64(result.EventsProcessed))
			atomic.AddUint64(&c.alerts, uint64(result.AlertsGenerated))
		}
	}
}

// Stop stops the consumer gracefully. Queued batches still being
// processed get up to ShutdownWait to finish.
func (c *Consumer) Stop() {
	close(c.done)

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("detection consumer stopped gracefully")
	case <-time.After(c.config.ShutdownWait):
		slog.Warn("detection consumer shutdown timed out")
	}
}

// Metrics returns consumer statistics.
func (c *Consumer) Metrics() ConsumerMetrics {
	return ConsumerMetrics{
		Batches: atomic.LoadUint64(&c.batches),
		Events:  atomic.LoadUint64(&c.events),
		Alerts:  atomic.LoadUint64(&c.alerts),
		Errors:  atomic.LoadUint64(&c.errors),
	}
}

// ConsumerMetrics holds consumer statistics.
type ConsumerMetrics struct {
	Batches uint64 `json:"batches"`
	Events  uint64 `json:"events"`
	Alerts  uint64 `json:"alerts"`
	Errors  uint64 `json:"errors"`
}
