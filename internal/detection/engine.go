package detection

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hackn3y/security-monitor-dash/internal/schema"
)

var (
	// ErrNoRules is returned when the engine is constructed with an
	// empty rule bank. This is the only catastrophic failure mode.
	ErrNoRules = errors.New("detection: rule bank is empty")

	// ErrNoWindowQuery is returned when no window query port is wired.
	ErrNoWindowQuery = errors.New("detection: window query port is required")
)

// Engine runs every rule in the bank against incoming events.
// It is side-effect-free aside from window query reads and holds no
// mutable state, so evaluating the same event twice with an identical
// window response yields identical findings.
type Engine struct {
	rules        []Rule
	window       WindowQuery
	queryTimeout time.Duration
}

// NewEngine creates a detection engine over the given rule bank.
func NewEngine(rules []Rule, window WindowQuery, queryTimeout time.Duration) (*Engine, error) {
	if len(rules) == 0 {
		return nil, ErrNoRules
	}
	if window == nil {
		return nil, ErrNoWindowQuery
	}
	if queryTimeout <= 0 {
		queryTimeout = 5 * time.Second
	}

	return &Engine{
		rules:        rules,
		window:       window,
		queryTimeout: queryTimeout,
	}, nil
}

// Evaluate runs all rules against the event and returns the non-nil
// findings in rule-bank order. A rule failure (typically a window
// query error) is logged and yields no finding for that rule; it never
// aborts evaluation of the remaining rules.
func (e *Engine) Evaluate(ctx context.Context, event *schema.Event) []Finding {
	var findings []Finding

	for _, rule := range e.rules {
		ruleCtx, cancel := context.WithTimeout(ctx, e.queryTimeout)
		finding, err := rule.Evaluate(ruleCtx, event, e.window)
		cancel()

		if err != nil {
			slog.Warn("rule evaluation failed",
				"rule", rule.Name,
				"event_id", event.EventID,
				"error", err,
			)
			continue
		}
		if finding != nil {
			findings = append(findings, *finding)
		}
	}

	return findings
}

// Rules returns the names of the rules in the bank, in evaluation order.
func (e *Engine) Rules() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name
	}
	return names
}
