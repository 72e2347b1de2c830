package detection

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hackn3y/security-monitor-dash/internal/schema"
)

// AlertSink materializes findings into persisted alerts. Failures are
// handled inside the sink; a failed alert must not abort the batch.
type AlertSink interface {
	HandleFinding(ctx context.Context, finding Finding, event *schema.Event)
}

// MetricsEmitter counts alerts generated per batch, fire-and-forget.
type MetricsEmitter interface {
	Emit(ctx context.Context, name string, value float64)
}

// AlertsGeneratedMetric is the counter emitted after each batch that
// produced at least one alert.
const AlertsGeneratedMetric = "AlertsGenerated"

// ErrNilProcessor is returned when the processor is missing a collaborator.
var ErrNilProcessor = errors.New("detection: processor requires engine and alert sink")

// Processor drives one detection pass over a batch of newly observed
// events: evaluate each event, hand findings to the alert sink, and
// report counts to the metrics emitter.
type Processor struct {
	engine  *Engine
	sink    AlertSink
	metrics MetricsEmitter
}

// NewProcessor creates a batch processor. The metrics emitter may be nil.
func NewProcessor(engine *Engine, sink AlertSink, metrics MetricsEmitter) (*Processor, error) {
	if engine == nil || sink == nil {
		return nil, ErrNilProcessor
	}
	return &Processor{engine: engine, sink: sink, metrics: metrics}, nil
}

// BatchResult summarizes one processed batch.
type BatchResult struct {
	EventsProcessed int `json:"events_processed"`
	AlertsGenerated int `json:"alerts_generated"`
}

// ProcessBatch evaluates every event in the batch sequentially.
// Failures while handling one event or finding never abort the others;
// the design favors partial success over fail-fast.
func (p *Processor) ProcessBatch(ctx context.Context, events []schema.Event) BatchResult {
	var result BatchResult

	for i := range events {
		event := &events[i]
		findings := p.engine.Evaluate(ctx, event)

		for _, finding := range findings {
			p.sink.HandleFinding(ctx, finding, event)
			result.AlertsGenerated++
		}
		result.EventsProcessed++
	}

	if result.AlertsGenerated > 0 && p.metrics != nil {
		p.metrics.Emit(ctx, AlertsGeneratedMetric, float64(result.AlertsGenerated))
	}

	slog.Debug("batch processed",
		"events", result.EventsProcessed,
		"alerts", result.AlertsGenerated,
	)

	return result
}
