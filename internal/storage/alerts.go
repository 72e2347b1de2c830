package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hackn3y/security-monitor-dash/internal/alerting"
	"github.com/hackn3y/security-monitor-dash/internal/detection"
	"github.com/hackn3y/security-monitor-dash/internal/schema"
)

// ClickHouseAlertStore persists alerts to ClickHouse.
type ClickHouseAlertStore struct {
	client *ClickHouseClient
}

// NewClickHouseAlertStore creates an alert store over the client.
func NewClickHouseAlertStore(client *ClickHouseClient) *ClickHouseAlertStore {
	return &ClickHouseAlertStore{client: client}
}

// Put appends an alert record.
func (s *ClickHouseAlertStore) Put(ctx context.Context, alert *alerting.Alert) error {
	details, err := json.Marshal(alert.Details)
	if err != nil {
		slog.Warn("failed to marshal alert details, storing empty object",
			"alert_id", alert.AlertID, "error", err)
		details = []byte("{}")
	}

	err = s.client.conn.Exec(ctx, `INSERT INTO alerts (
		alert_id, timestamp, created_at, rule, severity, description,
		details, source_event_id, source_event_type, source_ip, user,
		resource, status
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.AlertID,
		alert.Timestamp,
		alert.CreatedAt,
		alert.Rule,
		string(alert.Severity),
		alert.Description,
		string(details),
		alert.SourceEvent.EventID,
		string(alert.SourceEvent.EventType),
		alert.SourceEvent.SourceIP,
		alert.SourceEvent.User,
		alert.SourceEvent.Resource,
		string(alert.Status),
	)
	if err != nil {
		return WrapUnavailable("Put", "alerts", err)
	}
	return nil
}

// Get retrieves an alert by ID.
func (s *ClickHouseAlertStore) Get(ctx context.Context, alertID string) (*alerting.Alert, error) {
	rows, err := s.client.conn.Query(ctx, selectAlerts+` WHERE alert_id = ? ORDER BY timestamp DESC LIMIT 1`, alertID)
	if err != nil {
		return nil, WrapUnavailable("Get", "alerts", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, &StorageError{Op: "Get", Table: "alerts", Err: fmt.Errorf("%w: alert_id=%s", ErrNotFound, alertID)}
	}
	return scanAlert(rows)
}

const selectAlerts = `SELECT
	alert_id, timestamp, created_at, rule, severity, description,
	details, source_event_id, source_event_type, source_ip, user,
	resource, status
FROM alerts FINAL`

type alertRows interface {
	Scan(dest ...any) error
}

func scanAlert(rows alertRows) (*alerting.Alert, error) {
	var (
		a          alerting.Alert
		severity   string
		details    string
		eventType  string
		status     string
	)
	if err := rows.Scan(
		&a.AlertID,
		&a.Timestamp,
		&a.CreatedAt,
		&a.Rule,
		&severity,
		&a.Description,
		&details,
		&a.SourceEvent.EventID,
		&eventType,
		&a.SourceEvent.SourceIP,
		&a.SourceEvent.User,
		&a.SourceEvent.Resource,
		&status,
	); err != nil {
		return nil, WrapUnavailable("Scan", "alerts", err)
	}

	a.Severity = detection.Severity(severity)
	a.SourceEvent.EventType = schema.EventType(eventType)
	a.Status = alerting.AlertStatus(status)

	if details != "" {
		if err := json.Unmarshal([]byte(details), &a.Details); err != nil {
			slog.Warn("failed to unmarshal alert details", "alert_id", a.AlertID, "error", err)
		}
	}
	return &a, nil
}

// List returns alerts matching the filter, newest first.
func (s *ClickHouseAlertStore) List(ctx context.Context, filter AlertFilter) ([]*alerting.Alert, error) {
	query := selectAlerts + ` WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Severity != "" {
		query += ` AND severity = ?`
		args = append(args, filter.Severity)
	}
	if filter.Rule != "" {
		query += ` AND rule = ?`
		args = append(args, filter.Rule)
	}
	if filter.Since > 0 {
		query += ` AND timestamp >= ?`
		args = append(args, filter.Since)
	}

	query += ` ORDER BY timestamp DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
	}

	rows, err := s.client.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, WrapUnavailable("List", "alerts", err)
	}
	defer rows.Close()

	var alerts []*alerting.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}

	if err := rows.Err(); err != nil {
		return nil, WrapUnavailable("List", "alerts", err)
	}
	return alerts, nil
}

// UpdateStatus applies a status transition. The ReplacingMergeTree
// dedupes on alert_id, so the update is a versioned re-insert.
func (s *ClickHouseAlertStore) UpdateStatus(ctx context.Context, alertID string, status alerting.AlertStatus) error {
	alert, err := s.Get(ctx, alertID)
	if err != nil {
		return err
	}

	if !alert.Status.CanTransitionTo(status) {
		return &StorageError{
			Op:    "UpdateStatus",
			Table: "alerts",
			Err:   fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, alert.Status, status),
		}
	}

	alert.Status = status
	return s.Put(ctx, alert)
}
