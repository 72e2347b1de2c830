// Package schema defines the canonical security event format.
// All ingested events are normalized to this structure before detection.
package schema

import (
	"time"
)

// EventType categorizes the kind of activity an event records.
type EventType string

const (
	EventAuthentication EventType = "authentication"
	EventAPIRequest     EventType = "api_request"
	EventFileAccess     EventType = "file_access"
	EventAdminAction    EventType = "admin_action"
	EventNetwork        EventType = "network"
	EventUnknown        EventType = "unknown"
)

// IsValid checks if the event type is a valid value.
func (t EventType) IsValid() bool {
	switch t {
	case EventAuthentication, EventAPIRequest, EventFileAccess,
		EventAdminAction, EventNetwork, EventUnknown:
		return true
	}
	return false
}

// Event represents one observed security event.
// Events are immutable once constructed; the detection engine treats
// them as read-only input. Timestamps are epoch seconds and are NOT
// guaranteed non-decreasing across producers (clock skew).
type Event struct {
	EventID          string    `json:"eventId" validate:"required,max=128"`
	Timestamp        int64     `json:"timestamp" validate:"required"`
	EventType        EventType `json:"eventType" validate:"required,event_type"`
	Action           string    `json:"action,omitempty" validate:"max=256"`
	SourceIP         string    `json:"sourceIp,omitempty" validate:"max=64"`
	DestinationIP    string    `json:"destinationIp,omitempty" validate:"max=64"`
	User             string    `json:"user,omitempty" validate:"max=256"`
	Resource         string    `json:"resource,omitempty" validate:"max=1024"`
	UserAgent        string    `json:"userAgent,omitempty" validate:"max=1024"`
	RequestMethod    string    `json:"requestMethod,omitempty" validate:"max=16"`
	StatusCode       int       `json:"statusCode,omitempty" validate:"min=0,max=599"`
	ResponseTime     float64   `json:"responseTime,omitempty" validate:"min=0"`
	BytesTransferred int64     `json:"bytesTransferred,omitempty" validate:"min=0"`
}

// Time returns the event timestamp as a time.Time in UTC.
func (e *Event) Time() time.Time {
	return time.Unix(e.Timestamp, 0).UTC()
}

// DefaultUser is assigned when an event arrives without a user field.
const DefaultUser = "anonymous"

// ApplyDefaults fills absent optional fields with safe defaults so the
// rule bank can assume well-formed input.
func (e *Event) ApplyDefaults() {
	if e.User == "" {
		e.User = DefaultUser
	}
	if e.EventType == "" {
		e.EventType = EventUnknown
	}
}
