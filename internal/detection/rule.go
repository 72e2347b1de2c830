// Package detection implements the threat-detection rule engine.
// Each incoming event is evaluated against a fixed bank of independent
// rules; rules that need history consult the window query port.
package detection

import (
	"context"

	"github.com/hackn3y/security-monitor-dash/internal/schema"
)

// Severity classifies the impact of a threat finding.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Rank returns the position of the severity in the total order
// LOW < MEDIUM < HIGH < CRITICAL. Unknown severities rank lowest.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// IsValid checks if the severity is a valid value.
func (s Severity) IsValid() bool {
	return s.Rank() > 0
}

// Finding is the output of a single rule evaluation. Findings are
// ephemeral: they exist only between evaluation and alert
// materialization and are never persisted directly.
type Finding struct {
	Rule        string         `json:"rule"`
	Severity    Severity       `json:"severity"`
	Description string         `json:"description"`
	Details     map[string]any `json:"details"`
}

// WindowQuery is the port rules use to fetch recent events for a
// source IP. Implementations return all known events for the source
// with timestamp >= since, in unspecified order. The window may
// overfetch; rules apply exact field predicates on the result.
type WindowQuery interface {
	QueryWindow(ctx context.Context, sourceIP string, since int64) ([]schema.Event, error)
}

// RuleFunc evaluates one event against a single detection predicate.
// A nil finding means the rule did not trigger. Errors are confined to
// the rule boundary by the engine and never abort sibling rules.
type RuleFunc func(ctx context.Context, event *schema.Event, win WindowQuery) (*Finding, error)

// Rule is one named entry in the rule bank.
type Rule struct {
	Name     string
	Severity Severity
	Evaluate RuleFunc
}

// Fixed rule names. These are part of the persisted alert contract.
const (
	RuleBruteForce           = "BRUTE_FORCE_DETECTION"
	RuleSuspiciousIP         = "SUSPICIOUS_IP_DETECTION"
	RulePrivilegeEscalation  = "PRIVILEGE_ESCALATION"
	RuleDataExfiltration     = "DATA_EXFILTRATION"
	RuleNetworkScanning      = "NETWORK_SCANNING"
	RuleDirectoryTraversal   = "DIRECTORY_TRAVERSAL"
	RuleAnomalousTimeAccess  = "ANOMALOUS_TIME_ACCESS"
	RulePrivilegedFailedAuth = "PRIVILEGED_ACCOUNT_FAILED_AUTH"
	RuleSQLInjection         = "SQL_INJECTION_ATTEMPT"
	RuleRateLimitViolation   = "API_RATE_LIMIT_VIOLATION"
	RuleCredentialStuffing   = "CREDENTIAL_STUFFING"
	RuleGeoAnomaly           = "GEO_LOCATION_ANOMALY"
)
