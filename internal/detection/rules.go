package detection

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hackn3y/security-monitor-dash/internal/schema"
)

// ruleSet binds the rule predicates to a configuration and a clock.
// The clock is injectable so window cutoffs are deterministic in tests.
type ruleSet struct {
	cfg Config
	now func() time.Time
}

// BuildRules returns the fixed rule bank in its canonical order.
// Findings for one event are always reported in this order.
func BuildRules(cfg Config) []Rule {
	return buildRules(cfg, time.Now)
}

func buildRules(cfg Config, now func() time.Time) []Rule {
	rs := &ruleSet{cfg: cfg, now: now}

	return []Rule{
		{Name: RuleBruteForce, Severity: SeverityHigh, Evaluate: rs.detectBruteForce},
		{Name: RuleSuspiciousIP, Severity: SeverityMedium, Evaluate: rs.detectSuspiciousIP},
		{Name: RulePrivilegeEscalation, Severity: SeverityCritical, Evaluate: rs.detectPrivilegeEscalation},
		{Name: RuleDataExfiltration, Severity: SeverityHigh, Evaluate: rs.detectDataExfiltration},
		{Name: RuleNetworkScanning, Severity: SeverityMedium, Evaluate: rs.detectNetworkScanning},
		{Name: RuleDirectoryTraversal, Severity: SeverityMedium, Evaluate: rs.detectDirectoryTraversal},
		{Name: RuleAnomalousTimeAccess, Severity: SeverityLow, Evaluate: rs.detectAnomalousTimeAccess},
		{Name: RulePrivilegedFailedAuth, Severity: SeverityMedium, Evaluate: rs.detectPrivilegedFailedAuth},
		{Name: RuleSQLInjection, Severity: SeverityHigh, Evaluate: rs.detectSQLInjection},
		{Name: RuleRateLimitViolation, Severity: SeverityMedium, Evaluate: rs.detectRateLimitViolation},
		{Name: RuleCredentialStuffing, Severity: SeverityCritical, Evaluate: rs.detectCredentialStuffing},
		{Name: RuleGeoAnomaly, Severity: SeverityMedium, Evaluate: rs.detectGeoAnomaly},
	}
}

// isFailedLogin reports whether an event is a failed authentication.
func isFailedLogin(e *schema.Event) bool {
	return e.EventType == schema.EventAuthentication && e.Action == "login_failed"
}

func containsAny(s string, substrings []string) (string, bool) {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return sub, true
		}
	}
	return "", false
}

func hasAnyPrefix(s string, prefixes []string) (string, bool) {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return p, true
		}
	}
	return "", false
}

func inList(s string, list []string) bool {
	for _, v := range list {
		if s == v {
			return true
		}
	}
	return false
}

// detectBruteForce flags repeated failed logins from a single IP.
func (rs *ruleSet) detectBruteForce(ctx context.Context, event *schema.Event, win WindowQuery) (*Finding, error) {
	if !isFailedLogin(event) {
		return nil, nil
	}

	since := rs.now().Add(-rs.cfg.BruteForceWindow).Unix()
	history, err := win.QueryWindow(ctx, event.SourceIP, since)
	if err != nil {
		return nil, fmt.Errorf("brute force window query: %w", err)
	}

	// The window may overfetch by IP and time; apply the exact
	// field predicate here.
	failed := 0
	for i := range history {
		if isFailedLogin(&history[i]) {
			failed++
		}
	}

	if failed < rs.cfg.BruteForceThreshold {
		return nil, nil
	}

	return &Finding{
		Rule:        RuleBruteForce,
		Severity:    SeverityHigh,
		Description: fmt.Sprintf("Brute force attack detected from %s", event.SourceIP),
		Details: map[string]any{
			"failed_attempts": failed,
			"time_window":     rs.cfg.BruteForceWindow.String(),
			"target_user":     event.User,
		},
	}, nil
}

// detectSuspiciousIP flags requests from known high-risk IP ranges.
func (rs *ruleSet) detectSuspiciousIP(_ context.Context, event *schema.Event, _ WindowQuery) (*Finding, error) {
	prefix, ok := hasAnyPrefix(event.SourceIP, rs.cfg.HighRiskIPPrefixes)
	if !ok {
		return nil, nil
	}

	return &Finding{
		Rule:        RuleSuspiciousIP,
		Severity:    SeverityMedium,
		Description: fmt.Sprintf("Request from suspicious IP: %s", event.SourceIP),
		Details: map[string]any{
			"ip_category":    "potential_tor_or_vpn",
			"matched_prefix": prefix,
			"action":         event.Action,
			"resource":       event.Resource,
		},
	}, nil
}

// detectPrivilegeEscalation flags non-privileged users performing
// admin actions.
func (rs *ruleSet) detectPrivilegeEscalation(_ context.Context, event *schema.Event, _ WindowQuery) (*Finding, error) {
	if event.EventType != schema.EventAdminAction {
		return nil, nil
	}
	if !inList(event.User, rs.cfg.NonPrivilegedUsers) {
		return nil, nil
	}
	if !inList(event.Action, rs.cfg.PrivilegedActions) {
		return nil, nil
	}

	return &Finding{
		Rule:        RulePrivilegeEscalation,
		Severity:    SeverityCritical,
		Description: fmt.Sprintf("Privilege escalation attempt by %s", event.User),
		Details: map[string]any{
			"user":     event.User,
			"action":   event.Action,
			"resource": event.Resource,
		},
	}, nil
}

// detectDataExfiltration flags unusually large transfers.
// The threshold comparison is strict: exactly 10 MiB does not fire.
func (rs *ruleSet) detectDataExfiltration(_ context.Context, event *schema.Event, _ WindowQuery) (*Finding, error) {
	if event.BytesTransferred <= rs.cfg.DataExfiltrationThreshold {
		return nil, nil
	}

	return &Finding{
		Rule:        RuleDataExfiltration,
		Severity:    SeverityHigh,
		Description: fmt.Sprintf("Large data transfer detected: %d bytes from %s", event.BytesTransferred, event.SourceIP),
		Details: map[string]any{
			"bytes":     event.BytesTransferred,
			"source_ip": event.SourceIP,
			"resource":  event.Resource,
			"user":      event.User,
		},
	}, nil
}

// detectNetworkScanning flags port scanning and resource probing.
func (rs *ruleSet) detectNetworkScanning(_ context.Context, event *schema.Event, _ WindowQuery) (*Finding, error) {
	if event.EventType != schema.EventNetwork {
		return nil, nil
	}
	if event.Action != "scan" && event.Action != "probe" {
		return nil, nil
	}

	return &Finding{
		Rule:        RuleNetworkScanning,
		Severity:    SeverityMedium,
		Description: fmt.Sprintf("Network scanning detected from %s", event.SourceIP),
		Details: map[string]any{
			"scan_type": event.Action,
			"target":    event.DestinationIP,
			"resource":  event.Resource,
		},
	}, nil
}

// detectDirectoryTraversal flags 404 probes against well-known
// sensitive paths.
func (rs *ruleSet) detectDirectoryTraversal(_ context.Context, event *schema.Event, _ WindowQuery) (*Finding, error) {
	if event.StatusCode != 404 {
		return nil, nil
	}
	path, ok := containsAny(event.Resource, rs.cfg.SuspiciousPaths)
	if !ok {
		return nil, nil
	}

	return &Finding{
		Rule:        RuleDirectoryTraversal,
		Severity:    SeverityMedium,
		Description: fmt.Sprintf("Potential directory traversal or scanning attempt from %s", event.SourceIP),
		Details: map[string]any{
			"resource":     event.Resource,
			"matched_path": path,
			"source_ip":    event.SourceIP,
		},
	}, nil
}

// detectAnomalousTimeAccess flags access to sensitive resources during
// unusual hours. Hour-of-day is derived from the event timestamp in UTC.
func (rs *ruleSet) detectAnomalousTimeAccess(_ context.Context, event *schema.Event, _ WindowQuery) (*Finding, error) {
	hour := event.Time().Hour()
	if hour < rs.cfg.AnomalousHoursStart || hour >= rs.cfg.AnomalousHoursEnd {
		return nil, nil
	}
	if _, ok := containsAny(event.Resource, rs.cfg.SensitiveResources); !ok {
		return nil, nil
	}

	return &Finding{
		Rule:        RuleAnomalousTimeAccess,
		Severity:    SeverityLow,
		Description: fmt.Sprintf("Access to sensitive resource during unusual hours from %s", event.SourceIP),
		Details: map[string]any{
			"time":     event.Time().Format("2006-01-02 15:04:05 UTC"),
			"resource": event.Resource,
			"user":     event.User,
		},
	}, nil
}

// detectPrivilegedFailedAuth flags failed logins against privileged
// accounts.
func (rs *ruleSet) detectPrivilegedFailedAuth(_ context.Context, event *schema.Event, _ WindowQuery) (*Finding, error) {
	if !isFailedLogin(event) {
		return nil, nil
	}
	if !inList(event.User, rs.cfg.PrivilegedAccounts) {
		return nil, nil
	}

	return &Finding{
		Rule:        RulePrivilegedFailedAuth,
		Severity:    SeverityMedium,
		Description: fmt.Sprintf("Failed authentication on privileged account: %s", event.User),
		Details: map[string]any{
			"user":      event.User,
			"source_ip": event.SourceIP,
		},
	}, nil
}

// detectSQLInjection flags SQL injection patterns in the request path
// or user agent. Matching is case-insensitive.
func (rs *ruleSet) detectSQLInjection(_ context.Context, event *schema.Event, _ WindowQuery) (*Finding, error) {
	resource := strings.ToLower(event.Resource)
	userAgent := strings.ToLower(event.UserAgent)

	for _, pattern := range rs.cfg.SQLInjectionPattern {
		if strings.Contains(resource, pattern) || strings.Contains(userAgent, pattern) {
			return &Finding{
				Rule:        RuleSQLInjection,
				Severity:    SeverityHigh,
				Description: fmt.Sprintf("Potential SQL injection detected in request from %s", event.SourceIP),
				Details: map[string]any{
					"resource":        event.Resource,
					"source_ip":       event.SourceIP,
					"user_agent":      event.UserAgent,
					"pattern_matched": pattern,
				},
			}, nil
		}
	}

	return nil, nil
}

// detectRateLimitViolation flags excessive request rates from one IP.
// All event types count toward the limit.
func (rs *ruleSet) detectRateLimitViolation(ctx context.Context, event *schema.Event, win WindowQuery) (*Finding, error) {
	since := rs.now().Add(-rs.cfg.RateLimitWindow).Unix()
	history, err := win.QueryWindow(ctx, event.SourceIP, since)
	if err != nil {
		return nil, fmt.Errorf("rate limit window query: %w", err)
	}

	count := len(history)
	if count < rs.cfg.RateLimitThreshold {
		return nil, nil
	}

	return &Finding{
		Rule:        RuleRateLimitViolation,
		Severity:    SeverityMedium,
		Description: fmt.Sprintf("Excessive requests from %s: %d in %s", event.SourceIP, count, rs.cfg.RateLimitWindow),
		Details: map[string]any{
			"source_ip":     event.SourceIP,
			"request_count": count,
			"time_window":   rs.cfg.RateLimitWindow.String(),
			"threshold":     rs.cfg.RateLimitThreshold,
		},
	}, nil
}

// detectCredentialStuffing flags many distinct usernames failing to
// log in from a single IP.
func (rs *ruleSet) detectCredentialStuffing(ctx context.Context, event *schema.Event, win WindowQuery) (*Finding, error) {
	if !isFailedLogin(event) {
		return nil, nil
	}

	since := rs.now().Add(-rs.cfg.CredentialStuffingWindow).Unix()
	history, err := win.QueryWindow(ctx, event.SourceIP, since)
	if err != nil {
		return nil, fmt.Errorf("credential stuffing window query: %w", err)
	}

	total := 0
	users := make(map[string]struct{})
	for i := range history {
		if isFailedLogin(&history[i]) {
			total++
			users[history[i].User] = struct{}{}
		}
	}

	if len(users) < rs.cfg.CredentialStuffingThreshold {
		return nil, nil
	}

	return &Finding{
		Rule:        RuleCredentialStuffing,
		Severity:    SeverityCritical,
		Description: fmt.Sprintf("Credential stuffing attack from %s", event.SourceIP),
		Details: map[string]any{
			"source_ip":                  event.SourceIP,
			"unique_usernames_attempted": len(users),
			"total_attempts":             total,
			"time_window":                rs.cfg.CredentialStuffingWindow.String(),
		},
	}, nil
}

// detectGeoAnomaly flags identified users reaching in from high-risk
// regions. This is a placeholder keyed on static IP prefixes, not a
// real GeoIP lookup.
func (rs *ruleSet) detectGeoAnomaly(_ context.Context, event *schema.Event, _ WindowQuery) (*Finding, error) {
	if _, ok := hasAnyPrefix(event.SourceIP, rs.cfg.HighRiskIPPrefixes); !ok {
		return nil, nil
	}
	if event.User == "anonymous" || event.User == "guest" {
		return nil, nil
	}

	return &Finding{
		Rule:        RuleGeoAnomaly,
		Severity:    SeverityMedium,
		Description: fmt.Sprintf("User %s accessing from unusual geographic location", event.User),
		Details: map[string]any{
			"user":              event.User,
			"source_ip":         event.SourceIP,
			"location_category": "high_risk_region",
			"action":            event.Action,
			"resource":          event.Resource,
		},
	}, nil
}
