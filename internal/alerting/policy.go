package alerting

import (
	"github.com/hackn3y/security-monitor-dash/internal/detection"
)

// ChannelPolicy flags which notification channels fire for a severity.
type ChannelPolicy struct {
	SendPush          bool `yaml:"send_push"`
	SendDirectMessage bool `yaml:"send_direct_message"`
}

// SeverityPolicy maps each severity to its enabled channels.
// Process-wide and read-only after initialization.
type SeverityPolicy map[detection.Severity]ChannelPolicy

// DefaultSeverityPolicy returns the default routing: push
// notifications for MEDIUM and above, direct messages disabled.
func DefaultSeverityPolicy() SeverityPolicy {
	return SeverityPolicy{
		detection.SeverityLow:      {SendPush: false, SendDirectMessage: false},
		detection.SeverityMedium:   {SendPush: true, SendDirectMessage: false},
		detection.SeverityHigh:     {SendPush: true, SendDirectMessage: false},
		detection.SeverityCritical: {SendPush: true, SendDirectMessage: false},
	}
}

// For returns the channel policy for a severity. Unknown severities
// get no channels.
func (p SeverityPolicy) For(sev detection.Severity) ChannelPolicy {
	return p[sev]
}
