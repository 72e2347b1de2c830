package alerting

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hackn3y/security-monitor-dash/internal/detection"
	"github.com/hackn3y/security-monitor-dash/internal/schema"
)

// AlertStore persists materialized alerts. Writes are append-only and
// keyed by a fresh unique identifier per alert.
type AlertStore interface {
	Put(ctx context.Context, alert *Alert) error
}

// Materializer converts threat findings into persisted alerts and
// hands them to the notification dispatcher.
type Materializer struct {
	store      AlertStore
	dispatcher *Dispatcher
	now        func() time.Time
	newID      func() string
}

// NewMaterializer creates a materializer. The dispatcher may be nil
// when notifications are disabled.
func NewMaterializer(store AlertStore, dispatcher *Dispatcher) *Materializer {
	return &Materializer{
		store:      store,
		dispatcher: dispatcher,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Materialize builds the persisted alert record for a finding: fresh
// unique ID, creation time in both epoch and ISO-8601 form, status
// OPEN, and the reduced source-event projection.
func (m *Materializer) Materialize(finding detection.Finding, event *schema.Event) *Alert {
	now := m.now().UTC()

	return &Alert{
		AlertID:     m.newID(),
		Timestamp:   now.Unix(),
		CreatedAt:   now.Format(time.RFC3339),
		Rule:        finding.Rule,
		Severity:    finding.Severity,
		Description: finding.Description,
		Details:     finding.Details,
		SourceEvent: SourceEventRef{
			EventID:   event.EventID,
			EventType: event.EventType,
			SourceIP:  event.SourceIP,
			User:      event.User,
			Resource:  event.Resource,
		},
		Status: StatusOpen,
	}
}

// HandleFinding materializes, persists, and dispatches one finding.
// A persistence failure is logged and swallowed so it cannot abort
// processing of subsequent findings in the same batch.
func (m *Materializer) HandleFinding(ctx context.Context, finding detection.Finding, event *schema.Event) {
	alert := m.Materialize(finding, event)

	if m.store != nil {
		if err := m.store.Put(ctx, alert); err != nil {
			slog.Error("failed to persist alert",
				"alert_id", alert.AlertID,
				"rule", alert.Rule,
				"error", err,
			)
		}
	}

	if m.dispatcher != nil {
		m.dispatcher.Dispatch(ctx, alert)
	}

	slog.Info("alert created",
		"alert_id", alert.AlertID,
		"rule", alert.Rule,
		"severity", alert.Severity,
		"source_ip", alert.SourceEvent.SourceIP,
	)
}
