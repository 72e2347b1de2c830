package alerting

import (
	"context"
	"log/slog"
)

// Dispatcher routes alerts to notification channels according to the
// severity policy. Channels are invoked independently; one channel
// failing never prevents the other from being attempted, and no
// failure propagates to the alert-creation flow.
type Dispatcher struct {
	policy SeverityPolicy
	push   Channel
	direct Channel
}

// NewDispatcher creates a dispatcher. Either channel may be nil when
// that transport is not configured.
func NewDispatcher(policy SeverityPolicy, push, direct Channel) *Dispatcher {
	if policy == nil {
		policy = DefaultSeverityPolicy()
	}
	return &Dispatcher{policy: policy, push: push, direct: direct}
}

// Dispatch sends the alert through every channel the severity policy
// enables. Channel failures are logged and swallowed.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *Alert) {
	policy := d.policy.For(alert.Severity)

	if policy.SendPush && d.push != nil {
		d.send(ctx, d.push, alert)
	}
	if policy.SendDirectMessage && d.direct != nil {
		d.send(ctx, d.direct, alert)
	}
}

func (d *Dispatcher) send(ctx context.Context, ch Channel, alert *Alert) {
	if err := ch.Send(ctx, alert); err != nil {
		slog.Error("notification failed",
			"channel", ch.Name(),
			"alert_id", alert.AlertID,
			"rule", alert.Rule,
			"error", err,
		)
		return
	}
	slog.Debug("notification sent",
		"channel", ch.Name(),
		"alert_id", alert.AlertID,
	)
}
