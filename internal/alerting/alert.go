// Package alerting materializes threat findings into persisted alerts
// and routes them to notification channels by severity policy.
package alerting

import (
	"github.com/hackn3y/security-monitor-dash/internal/detection"
	"github.com/hackn3y/security-monitor-dash/internal/schema"
)

// AlertStatus tracks the lifecycle of an alert. The detection core
// only ever creates alerts in state OPEN; transitions happen through
// the alert store.
type AlertStatus string

const (
	StatusOpen         AlertStatus = "OPEN"
	StatusAcknowledged AlertStatus = "ACKNOWLEDGED"
	StatusResolved     AlertStatus = "RESOLVED"
)

// IsValid checks if the status is a valid value.
func (s AlertStatus) IsValid() bool {
	switch s {
	case StatusOpen, StatusAcknowledged, StatusResolved:
		return true
	}
	return false
}

// CanTransitionTo reports whether the status change is allowed:
// OPEN -> ACKNOWLEDGED -> RESOLVED, with reopen back to OPEN.
func (s AlertStatus) CanTransitionTo(next AlertStatus) bool {
	switch s {
	case StatusOpen:
		return next == StatusAcknowledged
	case StatusAcknowledged:
		return next == StatusResolved || next == StatusOpen
	case StatusResolved:
		return next == StatusOpen
	}
	return false
}

// SourceEventRef is the reduced projection of the triggering event
// embedded in a persisted alert.
type SourceEventRef struct {
	EventID   string           `json:"eventId"`
	EventType schema.EventType `json:"eventType"`
	SourceIP  string           `json:"sourceIp"`
	User      string           `json:"user"`
	Resource  string           `json:"resource"`
}

// Alert is the persisted record materialized from a finding.
// AlertID is globally unique; Timestamp and CreatedAt are the same
// creation instant in epoch-seconds and ISO-8601 form.
type Alert struct {
	AlertID     string              `json:"alertId"`
	Timestamp   int64               `json:"timestamp"`
	CreatedAt   string              `json:"createdAt"`
	Rule        string              `json:"rule"`
	Severity    detection.Severity  `json:"severity"`
	Description string              `json:"description"`
	Details     map[string]any      `json:"details"`
	SourceEvent SourceEventRef      `json:"sourceEvent"`
	Status      AlertStatus         `json:"status"`
}
