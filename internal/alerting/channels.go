package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/hackn3y/security-monitor-dash/internal/detection"
)

// Channel delivers a formatted alert notification.
type Channel interface {
	Name() string
	Send(ctx context.Context, alert *Alert) error
}

// severityColor maps severities to attachment colors.
func severityColor(sev detection.Severity) string {
	switch sev {
	case detection.SeverityCritical:
		return "#FF0000"
	case detection.SeverityHigh:
		return "#FF6600"
	case detection.SeverityMedium:
		return "#FFCC00"
	case detection.SeverityLow:
		return "#36A64F"
	default:
		return "#808080"
	}
}

func severityEmoji(sev detection.Severity) string {
	switch sev {
	case detection.SeverityCritical:
		return ":rotating_light:"
	case detection.SeverityHigh:
		return ":warning:"
	case detection.SeverityMedium:
		return ":large_orange_diamond:"
	case detection.SeverityLow:
		return ":information_source:"
	default:
		return ":bell:"
	}
}

// isScalar reports whether a detail value can appear in a field table.
func isScalar(v any) bool {
	switch v.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}

// titleCase converts a snake_case detail key to a display title.
func titleCase(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// SlackChannel sends alerts to a Slack incoming webhook. This is the
// push-style notification channel.
type SlackChannel struct {
	webhookURL string
	username   string
	client     *http.Client
}

// NewSlackChannel creates a new Slack channel.
func NewSlackChannel(webhookURL, username string) *SlackChannel {
	if username == "" {
		username = "Security Monitor"
	}
	return &SlackChannel{
		webhookURL: webhookURL,
		username:   username,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *SlackChannel) Name() string {
	return "slack"
}

func (s *SlackChannel) Send(ctx context.Context, alert *Alert) error {
	payload := map[string]any{
		"username":   s.username,
		"icon_emoji": ":shield:",
		"attachments": []map[string]any{
			{
				"color":     severityColor(alert.Severity),
				"title":     fmt.Sprintf("%s Security Alert: %s", severityEmoji(alert.Severity), alert.Rule),
				"text":      alert.Description,
				"fields":    s.buildFields(alert),
				"footer":    "Security Monitoring Dashboard",
				"ts":        alert.Timestamp,
				"mrkdwn_in": []string{"text", "pretext"},
			},
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.webhookURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("slack returned %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// buildFields assembles the attachment field table: the source-event
// projection, all scalar detail entries, and the alert ID. Non-scalar
// detail values are omitted.
func (s *SlackChannel) buildFields(alert *Alert) []map[string]any {
	fields := []map[string]any{
		{"title": "Source IP", "value": orUnknown(alert.SourceEvent.SourceIP), "short": true},
		{"title": "User", "value": orUnknown(alert.SourceEvent.User), "short": true},
		{"title": "Resource", "value": orUnknown(alert.SourceEvent.Resource), "short": true},
		{"title": "Event Type", "value": orUnknown(string(alert.SourceEvent.EventType)), "short": true},
	}

	// Deterministic field order for stable payloads.
	keys := make([]string, 0, len(alert.Details))
	for k := range alert.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if k == "source_ip" || k == "user" || k == "resource" {
			continue
		}
		v := alert.Details[k]
		if !isScalar(v) {
			continue
		}
		fields = append(fields, map[string]any{
			"title": titleCase(k),
			"value": fmt.Sprintf("%v", v),
			"short": true,
		})
	}

	fields = append(fields, map[string]any{
		"title": "Alert ID",
		"value": alert.AlertID,
		"short": false,
	})

	return fields
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// snsAPI is the subset of the SNS client used by the channel.
type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSChannel publishes alerts to an SNS topic. This is the
// direct-message notification channel; it carries the same fields as
// the push channel in plaintext form.
type SNSChannel struct {
	client   snsAPI
	topicARN string
}

// NewSNSChannel creates a new SNS channel.
func NewSNSChannel(client snsAPI, topicARN string) *SNSChannel {
	return &SNSChannel{client: client, topicARN: topicARN}
}

func (c *SNSChannel) Name() string {
	return "sns"
}

func (c *SNSChannel) Send(ctx context.Context, alert *Alert) error {
	details, err := json.MarshalIndent(alert.Details, "", "  ")
	if err != nil {
		details = []byte("{}")
	}

	message := fmt.Sprintf(`SECURITY ALERT - %s

Rule: %s
Description: %s

Event Details:
- Source IP: %s
- User: %s
- Resource: %s
- Event Type: %s

Alert ID: %s
Timestamp: %s

Additional Details:
%s
`,
		alert.Severity,
		alert.Rule,
		alert.Description,
		orUnknown(alert.SourceEvent.SourceIP),
		orUnknown(alert.SourceEvent.User),
		orUnknown(alert.SourceEvent.Resource),
		orUnknown(string(alert.SourceEvent.EventType)),
		alert.AlertID,
		alert.CreatedAt,
		string(details),
	)

	_, err = c.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(c.topicARN),
		Subject:  aws.String(fmt.Sprintf("Security Alert: %s (%s)", alert.Rule, alert.Severity)),
		Message:  aws.String(message),
	})
	if err != nil {
		return fmt.Errorf("sns publish failed: %w", err)
	}

	return nil
}
