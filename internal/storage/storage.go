package storage

import (
	"context"

	"github.com/hackn3y/security-monitor-dash/internal/alerting"
	"github.com/hackn3y/security-monitor-dash/internal/schema"
)

// EventStore persists events and serves the historical window queries
// the rule bank depends on.
type EventStore interface {
	// InsertEvents appends a batch of events to the history.
	InsertEvents(ctx context.Context, events []schema.Event) error

	// QueryWindow returns all known events for the source IP with
	// timestamp >= since, in unspecified order. Fails with
	// ErrStoreUnavailable when the backing store cannot be reached.
	QueryWindow(ctx context.Context, sourceIP string, since int64) ([]schema.Event, error)
}

// AlertFilter narrows alert listings.
type AlertFilter struct {
	Status   alerting.AlertStatus
	Severity string
	Rule     string
	Since    int64
	Limit    int
}

// AlertStore persists materialized alerts and their status lifecycle.
// The detection core only calls Put; status transitions serve the
// (external) alert-management surface.
type AlertStore interface {
	Put(ctx context.Context, alert *alerting.Alert) error
	Get(ctx context.Context, alertID string) (*alerting.Alert, error)
	List(ctx context.Context, filter AlertFilter) ([]*alerting.Alert, error)
	UpdateStatus(ctx context.Context, alertID string, status alerting.AlertStatus) error
}
