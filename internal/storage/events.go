package storage

import (
	"context"

	"github.com/hackn3y/security-monitor-dash/internal/schema"
)

// ClickHouseEventStore persists events to ClickHouse and serves window
// queries over the (source_ip, timestamp) ordering key.
type ClickHouseEventStore struct {
	client *ClickHouseClient
}

// NewClickHouseEventStore creates an event store over the client.
func NewClickHouseEventStore(client *ClickHouseClient) *ClickHouseEventStore {
	return &ClickHouseEventStore{client: client}
}

// InsertEvents appends a batch of events to the history.
func (s *ClickHouseEventStore) InsertEvents(ctx context.Context, events []schema.Event) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := s.client.conn.PrepareBatch(ctx, `INSERT INTO events (
		event_id, timestamp, event_type, action, source_ip, destination_ip,
		user, resource, user_agent, request_method, status_code,
		response_time, bytes_transferred
	)`)
	if err != nil {
		return WrapUnavailable("InsertEvents", "events", err)
	}

	for i := range events {
		e := &events[i]
		if err := batch.Append(
			e.EventID,
			e.Timestamp,
			string(e.EventType),
			e.Action,
			e.SourceIP,
			e.DestinationIP,
			e.User,
			e.Resource,
			e.UserAgent,
			e.RequestMethod,
			int32(e.StatusCode),
			e.ResponseTime,
			e.BytesTransferred,
		); err != nil {
			return WrapUnavailable("InsertEvents", "events", err)
		}
	}

	if err := batch.Send(); err != nil {
		return WrapUnavailable("InsertEvents", "events", err)
	}
	return nil
}

// QueryWindow returns all events for the source IP with
// timestamp >= since. Order is unspecified; callers apply their own
// field predicates on the result.
func (s *ClickHouseEventStore) QueryWindow(ctx context.Context, sourceIP string, since int64) ([]schema.Event, error) {
	rows, err := s.client.conn.Query(ctx, `SELECT
		event_id, timestamp, event_type, action, source_ip, destination_ip,
		user, resource, user_agent, request_method, status_code,
		response_time, bytes_transferred
	FROM events
	WHERE source_ip = ? AND timestamp >= ?`, sourceIP, since)
	if err != nil {
		return nil, WrapUnavailable("QueryWindow", "events", err)
	}
	defer rows.Close()

	var events []schema.Event
	for rows.Next() {
		var (
			e          schema.Event
			eventType  string
			statusCode int32
		)
		if err := rows.Scan(
			&e.EventID,
			&e.Timestamp,
			&eventType,
			&e.Action,
			&e.SourceIP,
			&e.DestinationIP,
			&e.User,
			&e.Resource,
			&e.UserAgent,
			&e.RequestMethod,
			&statusCode,
			&e.ResponseTime,
			&e.BytesTransferred,
		); err != nil {
			return nil, WrapUnavailable("QueryWindow", "events", err)
		}
		e.EventType = schema.EventType(eventType)
		e.StatusCode = int(statusCode)
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, WrapUnavailable("QueryWindow", "events", err)
	}
	return events, nil
}
