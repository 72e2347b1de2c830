package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hackn3y/security-monitor-dash/internal/alerting"
	"github.com/hackn3y/security-monitor-dash/internal/schema"
)

// MemoryStore is an in-memory event and alert store for development
// and deterministic tests. Safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string][]schema.Event // keyed by source IP
	alerts map[string]*alerting.Alert
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events: make(map[string][]schema.Event),
		alerts: make(map[string]*alerting.Alert),
	}
}

// InsertEvents appends a batch of events to the history.
func (s *MemoryStore) InsertEvents(_ context.Context, events []schema.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		s.events[e.SourceIP] = append(s.events[e.SourceIP], e)
	}
	return nil
}

// QueryWindow returns all events for the source IP with
// timestamp >= since.
func (s *MemoryStore) QueryWindow(_ context.Context, sourceIP string, since int64) ([]schema.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []schema.Event
	for _, e := range s.events[sourceIP] {
		if e.Timestamp >= since {
			result = append(result, e)
		}
	}
	return result, nil
}

// Put stores an alert.
func (s *MemoryStore) Put(_ context.Context, alert *alerting.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *alert
	s.alerts[alert.AlertID] = &copied
	return nil
}

// Get retrieves an alert by ID.
func (s *MemoryStore) Get(_ context.Context, alertID string) (*alerting.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alert, ok := s.alerts[alertID]
	if !ok {
		return nil, &StorageError{Op: "Get", Table: "alerts", Err: fmt.Errorf("%w: alert_id=%s", ErrNotFound, alertID)}
	}
	copied := *alert
	return &copied, nil
}

// List returns alerts matching the filter, newest first.
func (s *MemoryStore) List(_ context.Context, filter AlertFilter) ([]*alerting.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*alerting.Alert
	for _, alert := range s.alerts {
		if filter.Status != "" && alert.Status != filter.Status {
			continue
		}
		if filter.Severity != "" && string(alert.Severity) != filter.Severity {
			continue
		}
		if filter.Rule != "" && alert.Rule != filter.Rule {
			continue
		}
		if filter.Since > 0 && alert.Timestamp < filter.Since {
			continue
		}
		copied := *alert
		result = append(result, &copied)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp > result[j].Timestamp
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// UpdateStatus applies a status transition.
func (s *MemoryStore) UpdateStatus(_ context.Context, alertID string, status alerting.AlertStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.alerts[alertID]
	if !ok {
		return &StorageError{Op: "UpdateStatus", Table: "alerts", Err: fmt.Errorf("%w: alert_id=%s", ErrNotFound, alertID)}
	}

	if !alert.Status.CanTransitionTo(status) {
		return &StorageError{
			Op:    "UpdateStatus",
			Table: "alerts",
			Err:   fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, alert.Status, status),
		}
	}

	alert.Status = status
	return nil
}
