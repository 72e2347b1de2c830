// Package ingest decodes inbound event messages, validates them, and
// feeds them into the event history and the detection queue.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/hackn3y/security-monitor-dash/internal/kafka"
	"github.com/hackn3y/security-monitor-dash/internal/queue"
	"github.com/hackn3y/security-monitor-dash/internal/schema"
	"github.com/hackn3y/security-monitor-dash/internal/storage"
)

// Ingestor turns raw Kafka messages into validated event batches.
// Invalid events are dropped with a warning; a message is acknowledged
// once its surviving events are queued for detection.
type Ingestor struct {
	validator *schema.Validator
	events    storage.EventStore
	queue     *queue.RingBuffer

	received uint64
	dropped  uint64
}

// New creates an Ingestor. The event store may be nil when the
// deployment keeps history elsewhere.
func New(v *schema.Validator, events storage.EventStore, q *queue.RingBuffer) *Ingestor {
	return &Ingestor{validator: v, events: events, queue: q}
}

// Handle implements kafka.MessageHandler. The message payload is either
// a single event object or a JSON array of events.
func (in *Ingestor) Handle(ctx context.Context, msg kafka.Message) error {
	events, err := decodeEvents(msg.Value)
	if err != nil {
		// Malformed payloads are dropped, not retried: redelivery
		// cannot fix them.
		slog.Warn("dropping undecodable message",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		atomic.AddUint64(&in.dropped, 1)
		return nil
	}

	batch := make(queue.Batch, 0, len(events))
	for i := range events {
		e := &events[i]
		atomic.AddUint64(&in.received, 1)

		if err := in.validator.Validate(e); err != nil {
			slog.Warn("dropping invalid event",
				"event_id", e.EventID,
				"error", err,
			)
			atomic.AddUint64(&in.dropped, 1)
			continue
		}
		batch = append(batch, *e)
	}

	if len(batch) == 0 {
		return nil
	}

	// History first, so window queries can see the batch being evaluated.
	if in.events != nil {
		if err := in.events.InsertEvents(ctx, batch); err != nil {
			slog.Warn("failed to record event history", "error", err, "events", len(batch))
		}
	}

	if err := in.queue.Push(batch); err != nil {
		// Not acknowledging the message lets the broker redeliver it
		// once the queue drains.
		return fmt.Errorf("ingest: queue push failed: %w", err)
	}
	return nil
}

// decodeEvents accepts either a single JSON event or an array of events.
func decodeEvents(payload []byte) ([]schema.Event, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty payload")
	}

	if trimmed[0] == '[' {
		var events []schema.Event
		if err := json.Unmarshal(trimmed, &events); err != nil {
			return nil, err
		}
		return events, nil
	}

	var event schema.Event
	if err := json.Unmarshal(trimmed, &event); err != nil {
		return nil, err
	}
	return []schema.Event{event}, nil
}

// Metrics returns ingest counters.
func (in *Ingestor) Metrics() IngestMetrics {
	return IngestMetrics{
		Received: atomic.LoadUint64(&in.received),
		Dropped:  atomic.LoadUint64(&in.dropped),
	}
}

// IngestMetrics holds ingest statistics.
type IngestMetrics struct {
	Received uint64 `json:"received"`
	Dropped  uint64 `json:"dropped"`
}
