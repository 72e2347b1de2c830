package detection

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hackn3y/security-monitor-dash/internal/schema"
)

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

// fakeWindow serves canned per-IP history, filtered by since like a
// real store would.
type fakeWindow struct {
	events map[string][]schema.Event
	err    error
	calls  int
}

func (f *fakeWindow) QueryWindow(_ context.Context, sourceIP string, since int64) ([]schema.Event, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []schema.Event
	for _, e := range f.events[sourceIP] {
		if e.Timestamp >= since {
			out = append(out, e)
		}
	}
	return out, nil
}

func testRules(t *testing.T) []Rule {
	t.Helper()
	return buildRules(DefaultConfig(), func() time.Time { return testNow })
}

func findRule(t *testing.T, rules []Rule, name string) Rule {
	t.Helper()
	for _, r := range rules {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("rule %s not found", name)
	return Rule{}
}

func failedLogin(ip, user string, ts time.Time) schema.Event {
	return schema.Event{
		EventID:   "evt-" + user,
		Timestamp: ts.Unix(),
		EventType: schema.EventAuthentication,
		Action:    "login_failed",
		SourceIP:  ip,
		User:      user,
	}
}

func TestBruteForce(t *testing.T) {
	rules := testRules(t)
	rule := findRule(t, rules, RuleBruteForce)

	makeHistory := func(n int) []schema.Event {
		var out []schema.Event
		for i := 0; i < n; i++ {
			e := failedLogin("10.0.0.1", "alice", testNow.Add(-time.Duration(i)*time.Second))
			e.EventID = fmt.Sprintf("evt-%d", i)
			out = append(out, e)
		}
		return out
	}

	tests := []struct {
		name     string
		history  []schema.Event
		wantFire bool
	}{
		{"below threshold", makeHistory(4), false},
		{"at threshold", makeHistory(5), true},
		{"above threshold", makeHistory(8), true},
		{
			"stale attempts outside window ignored",
			append(makeHistory(4), failedLogin("10.0.0.1", "alice", testNow.Add(-10*time.Minute))),
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			win := &fakeWindow{events: map[string][]schema.Event{"10.0.0.1": tt.history}}
			event := failedLogin("10.0.0.1", "alice", testNow)

			finding, err := rule.Evaluate(context.Background(), &event, win)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (finding != nil) != tt.wantFire {
				t.Fatalf("fired=%v, want %v", finding != nil, tt.wantFire)
			}
			if finding != nil {
				if finding.Severity != SeverityHigh {
					t.Errorf("severity = %s, want HIGH", finding.Severity)
				}
				if finding.Details["target_user"] != "alice" {
					t.Errorf("target_user = %v", finding.Details["target_user"])
				}
			}
		})
	}
}

func TestBruteForceIgnoresSuccessfulLogins(t *testing.T) {
	rule := findRule(t, testRules(t), RuleBruteForce)

	history := []schema.Event{
		failedLogin("10.0.0.1", "alice", testNow),
		failedLogin("10.0.0.1", "alice", testNow),
		failedLogin("10.0.0.1", "alice", testNow),
		failedLogin("10.0.0.1", "alice", testNow),
		{EventID: "ok", Timestamp: testNow.Unix(), EventType: schema.EventAuthentication, Action: "login_success", SourceIP: "10.0.0.1", User: "alice"},
	}
	win := &fakeWindow{events: map[string][]schema.Event{"10.0.0.1": history}}
	event := failedLogin("10.0.0.1", "alice", testNow)

	finding, err := rule.Evaluate(context.Background(), &event, win)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if finding != nil {
		t.Fatal("4 failed + 1 success should not fire")
	}
}

func TestBruteForceSkipsWindowOnNonFailedLogin(t *testing.T) {
	rule := findRule(t, testRules(t), RuleBruteForce)

	win := &fakeWindow{}
	event := schema.Event{EventID: "e1", Timestamp: testNow.Unix(), EventType: schema.EventAPIRequest, Action: "read", SourceIP: "10.0.0.1"}

	finding, err := rule.Evaluate(context.Background(), &event, win)
	if err != nil || finding != nil {
		t.Fatalf("want no finding, no error; got %v, %v", finding, err)
	}
	if win.calls != 0 {
		t.Errorf("window queried %d times for non-auth event, want 0", win.calls)
	}
}

func TestSuspiciousIP(t *testing.T) {
	rule := findRule(t, testRules(t), RuleSuspiciousIP)

	tests := []struct {
		ip       string
		wantFire bool
	}{
		{"185.220.101.5", true},
		{"45.142.3.9", true},
		{"123.45.6.7", true},
		{"192.168.1.1", false},
		{"8.8.8.8", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			event := schema.Event{EventID: "e1", Timestamp: testNow.Unix(), EventType: schema.EventAPIRequest, SourceIP: tt.ip}
			finding, err := rule.Evaluate(context.Background(), &event, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (finding != nil) != tt.wantFire {
				t.Fatalf("fired=%v, want %v", finding != nil, tt.wantFire)
			}
		})
	}
}

func TestPrivilegeEscalation(t *testing.T) {
	rule := findRule(t, testRules(t), RulePrivilegeEscalation)

	tests := []struct {
		name      string
		eventType schema.EventType
		user      string
		action    string
		wantFire  bool
	}{
		{"non-privileged user doing user_create", schema.EventAdminAction, "user1", "user_create", true},
		{"guest doing permission_change", schema.EventAdminAction, "guest", "permission_change", true},
		{"admin doing user_create", schema.EventAdminAction, "admin", "user_create", false},
		{"non-privileged user doing read", schema.EventAdminAction, "user1", "read", false},
		{"wrong event type", schema.EventAPIRequest, "user1", "user_create", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := schema.Event{
				EventID:   "e1",
				Timestamp: testNow.Unix(),
				EventType: tt.eventType,
				User:      tt.user,
				Action:    tt.action,
			}
			finding, err := rule.Evaluate(context.Background(), &event, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (finding != nil) != tt.wantFire {
				t.Fatalf("fired=%v, want %v", finding != nil, tt.wantFire)
			}
			if finding != nil && finding.Severity != SeverityCritical {
				t.Errorf("severity = %s, want CRITICAL", finding.Severity)
			}
		})
	}
}

func TestDataExfiltrationBoundary(t *testing.T) {
	rule := findRule(t, testRules(t), RuleDataExfiltration)

	const tenMiB = 10 * 1024 * 1024

	tests := []struct {
		name     string
		bytes    int64
		wantFire bool
	}{
		{"exactly at threshold does not fire", tenMiB, false},
		{"one byte over fires", tenMiB + 1, true},
		{"small transfer", 4096, false},
		{"zero", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := schema.Event{EventID: "e1", Timestamp: testNow.Unix(), EventType: schema.EventFileAccess, BytesTransferred: tt.bytes}
			finding, err := rule.Evaluate(context.Background(), &event, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (finding != nil) != tt.wantFire {
				t.Fatalf("fired=%v, want %v", finding != nil, tt.wantFire)
			}
		})
	}
}

func TestNetworkScanning(t *testing.T) {
	rule := findRule(t, testRules(t), RuleNetworkScanning)

	tests := []struct {
		name      string
		eventType schema.EventType
		action    string
		wantFire  bool
	}{
		{"scan", schema.EventNetwork, "scan", true},
		{"probe", schema.EventNetwork, "probe", true},
		{"connect", schema.EventNetwork, "connect", false},
		{"scan on wrong type", schema.EventAPIRequest, "scan", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := schema.Event{EventID: "e1", Timestamp: testNow.Unix(), EventType: tt.eventType, Action: tt.action}
			finding, err := rule.Evaluate(context.Background(), &event, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (finding != nil) != tt.wantFire {
				t.Fatalf("fired=%v, want %v", finding != nil, tt.wantFire)
			}
		})
	}
}

func TestDirectoryTraversal(t *testing.T) {
	rule := findRule(t, testRules(t), RuleDirectoryTraversal)

	tests := []struct {
		name     string
		status   int
		resource string
		wantFire bool
	}{
		{"404 on .env", 404, "/.env", true},
		{"404 with traversal sequence", 404, "/static/../../etc/passwd", true},
		{"200 on .env", 200, "/.env", false},
		{"404 on ordinary path", 404, "/index.html", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := schema.Event{EventID: "e1", Timestamp: testNow.Unix(), EventType: schema.EventAPIRequest, StatusCode: tt.status, Resource: tt.resource}
			finding, err := rule.Evaluate(context.Background(), &event, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (finding != nil) != tt.wantFire {
				t.Fatalf("fired=%v, want %v", finding != nil, tt.wantFire)
			}
		})
	}
}

func TestAnomalousTimeAccess(t *testing.T) {
	rule := findRule(t, testRules(t), RuleAnomalousTimeAccess)

	tests := []struct {
		name     string
		when     time.Time
		resource string
		wantFire bool
	}{
		{"03:00 UTC on sensitive resource", time.Date(2024, 3, 15, 3, 0, 0, 0, time.UTC), "/admin", true},
		{"02:00 UTC lower bound inclusive", time.Date(2024, 3, 15, 2, 0, 0, 0, time.UTC), "/database", true},
		{"05:00 UTC upper bound exclusive", time.Date(2024, 3, 15, 5, 0, 0, 0, time.UTC), "/admin", false},
		{"09:00 UTC on sensitive resource", time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC), "/admin", false},
		{"03:00 UTC on ordinary resource", time.Date(2024, 3, 15, 3, 0, 0, 0, time.UTC), "/home", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := schema.Event{EventID: "e1", Timestamp: tt.when.Unix(), EventType: schema.EventFileAccess, Resource: tt.resource}
			finding, err := rule.Evaluate(context.Background(), &event, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (finding != nil) != tt.wantFire {
				t.Fatalf("fired=%v, want %v", finding != nil, tt.wantFire)
			}
			if finding != nil && finding.Severity != SeverityLow {
				t.Errorf("severity = %s, want LOW", finding.Severity)
			}
		})
	}
}

func TestPrivilegedFailedAuth(t *testing.T) {
	rule := findRule(t, testRules(t), RulePrivilegedFailedAuth)

	tests := []struct {
		user     string
		action   string
		wantFire bool
	}{
		{"admin", "login_failed", true},
		{"root", "login_failed", true},
		{"alice", "login_failed", false},
		{"admin", "login_success", false},
	}

	for _, tt := range tests {
		t.Run(tt.user+"/"+tt.action, func(t *testing.T) {
			event := schema.Event{EventID: "e1", Timestamp: testNow.Unix(), EventType: schema.EventAuthentication, Action: tt.action, User: tt.user}
			finding, err := rule.Evaluate(context.Background(), &event, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (finding != nil) != tt.wantFire {
				t.Fatalf("fired=%v, want %v", finding != nil, tt.wantFire)
			}
		})
	}
}

func TestSQLInjection(t *testing.T) {
	rule := findRule(t, testRules(t), RuleSQLInjection)

	tests := []struct {
		name      string
		resource  string
		userAgent string
		wantFire  bool
		pattern   string
	}{
		{"union select in path", "/search?q=1 UNION SELECT password FROM users", "", true, "union select"},
		{"classic tautology", "/login?user=' OR '1'='1", "", true, "' or '1'='1"},
		{"pattern in user agent", "/home", "sqlmap drop table users", true, "drop table"},
		{"clean request", "/products?id=42", "Mozilla/5.0", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := schema.Event{EventID: "e1", Timestamp: testNow.Unix(), EventType: schema.EventAPIRequest, Resource: tt.resource, UserAgent: tt.userAgent}
			finding, err := rule.Evaluate(context.Background(), &event, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (finding != nil) != tt.wantFire {
				t.Fatalf("fired=%v, want %v", finding != nil, tt.wantFire)
			}
			if finding != nil && finding.Details["pattern_matched"] != tt.pattern {
				t.Errorf("pattern_matched = %v, want %s", finding.Details["pattern_matched"], tt.pattern)
			}
		})
	}
}

func TestRateLimitViolation(t *testing.T) {
	rule := findRule(t, testRules(t), RuleRateLimitViolation)

	makeHistory := func(n int) []schema.Event {
		var out []schema.Event
		for i := 0; i < n; i++ {
			out = append(out, schema.Event{
				EventID:   fmt.Sprintf("evt-%d", i),
				Timestamp: testNow.Add(-time.Duration(i) * 100 * time.Millisecond).Unix(),
				EventType: schema.EventAPIRequest,
				SourceIP:  "10.0.0.2",
			})
		}
		return out
	}

	tests := []struct {
		name     string
		history  []schema.Event
		wantFire bool
	}{
		{"below threshold", makeHistory(99), false},
		{"at threshold", makeHistory(100), true},
		{"above threshold", makeHistory(250), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			win := &fakeWindow{events: map[string][]schema.Event{"10.0.0.2": tt.history}}
			event := schema.Event{EventID: "e1", Timestamp: testNow.Unix(), EventType: schema.EventAPIRequest, SourceIP: "10.0.0.2"}

			finding, err := rule.Evaluate(context.Background(), &event, win)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (finding != nil) != tt.wantFire {
				t.Fatalf("fired=%v, want %v", finding != nil, tt.wantFire)
			}
			if finding != nil {
				if finding.Details["request_count"] != len(tt.history) {
					t.Errorf("request_count = %v, want %d", finding.Details["request_count"], len(tt.history))
				}
			}
		})
	}
}

func TestCredentialStuffing(t *testing.T) {
	rule := findRule(t, testRules(t), RuleCredentialStuffing)

	makeHistory := func(distinctUsers, repeats int) []schema.Event {
		var out []schema.Event
		for i := 0; i < distinctUsers; i++ {
			for r := 0; r < repeats; r++ {
				e := failedLogin("10.0.0.3", fmt.Sprintf("user%d", i), testNow.Add(-time.Duration(i)*time.Second))
				out = append(out, e)
			}
		}
		return out
	}

	tests := []struct {
		name      string
		history   []schema.Event
		wantFire  bool
		wantUsers int
		wantTotal int
	}{
		{"nine distinct users", makeHistory(9, 1), false, 0, 0},
		{"ten distinct users", makeHistory(10, 1), true, 10, 10},
		{"ten users with repeats", makeHistory(10, 3), true, 10, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			win := &fakeWindow{events: map[string][]schema.Event{"10.0.0.3": tt.history}}
			event := failedLogin("10.0.0.3", "victim", testNow)

			finding, err := rule.Evaluate(context.Background(), &event, win)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (finding != nil) != tt.wantFire {
				t.Fatalf("fired=%v, want %v", finding != nil, tt.wantFire)
			}
			if finding != nil {
				if finding.Details["unique_usernames_attempted"] != tt.wantUsers {
					t.Errorf("unique_usernames_attempted = %v, want %d", finding.Details["unique_usernames_attempted"], tt.wantUsers)
				}
				if finding.Details["total_attempts"] != tt.wantTotal {
					t.Errorf("total_attempts = %v, want %d", finding.Details["total_attempts"], tt.wantTotal)
				}
				if finding.Severity != SeverityCritical {
					t.Errorf("severity = %s, want CRITICAL", finding.Severity)
				}
			}
		})
	}
}

func TestGeoAnomaly(t *testing.T) {
	rule := findRule(t, testRules(t), RuleGeoAnomaly)

	tests := []struct {
		name     string
		ip       string
		user     string
		wantFire bool
	}{
		{"identified user from high-risk range", "185.220.101.5", "user1", true},
		{"anonymous from high-risk range", "185.220.101.5", "anonymous", false},
		{"guest from high-risk range", "185.220.101.5", "guest", false},
		{"identified user from normal range", "192.168.1.10", "user1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := schema.Event{EventID: "e1", Timestamp: testNow.Unix(), EventType: schema.EventAPIRequest, SourceIP: tt.ip, User: tt.user}
			finding, err := rule.Evaluate(context.Background(), &event, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (finding != nil) != tt.wantFire {
				t.Fatalf("fired=%v, want %v", finding != nil, tt.wantFire)
			}
		})
	}
}

// A high-risk source IP with an identified user trips both the
// suspicious-IP rule and the geo rule; neither suppresses the other.
func TestSuspiciousIPAndGeoAnomalyCoFire(t *testing.T) {
	rules := testRules(t)
	win := &fakeWindow{}

	event := schema.Event{
		EventID:   "e1",
		Timestamp: testNow.Unix(),
		EventType: schema.EventAPIRequest,
		SourceIP:  "185.220.101.5",
		User:      "user1",
	}

	engine, err := NewEngine(rules, win, time.Second)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	findings := engine.Evaluate(context.Background(), &event)

	var names []string
	for _, f := range findings {
		names = append(names, f.Rule)
	}

	hasRule := func(name string) bool {
		for _, n := range names {
			if n == name {
				return true
			}
		}
		return false
	}

	if !hasRule(RuleSuspiciousIP) || !hasRule(RuleGeoAnomaly) {
		t.Fatalf("expected both %s and %s, got %v", RuleSuspiciousIP, RuleGeoAnomaly, names)
	}
}

func TestWindowErrorMeansNoEvidence(t *testing.T) {
	storeDown := errors.New("store unavailable")

	for _, name := range []string{RuleBruteForce, RuleRateLimitViolation, RuleCredentialStuffing} {
		t.Run(name, func(t *testing.T) {
			rule := findRule(t, testRules(t), name)
			win := &fakeWindow{err: storeDown}
			event := failedLogin("10.0.0.1", "alice", testNow)

			finding, err := rule.Evaluate(context.Background(), &event, win)
			if err == nil {
				t.Fatal("expected error to surface to the engine")
			}
			if finding != nil {
				t.Fatal("a failed window query must not produce a finding")
			}
		})
	}
}
