package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/technosupport/physical-mcp/internal/obslog"
	"github.com/technosupport/physical-mcp/internal/rules"
)

// WebhookNotifier fires an alert as a JSON POST to an arbitrary URL.
// No retries: if the endpoint is down, the alert is logged and dropped.
type WebhookNotifier struct {
	defaultURL string
	client     *http.Client
	log        *obslog.Logger
}

func NewWebhookNotifier(defaultURL string) *WebhookNotifier {
	return &WebhookNotifier{
		defaultURL: defaultURL,
		client:     &http.Client{Timeout: 5 * time.Second},
		log:        obslog.New("notify-webhook"),
	}
}

type webhookPayload struct {
	Event         string    `json:"event"`
	RuleID        string    `json:"rule_id"`
	RuleName      string    `json:"rule_name"`
	Condition     string    `json:"condition"`
	Priority      string    `json:"priority"`
	Reasoning     string    `json:"reasoning"`
	Confidence    float64   `json:"confidence"`
	Timestamp     time.Time `json:"timestamp"`
	SceneSummary  string    `json:"scene_summary"`
	CustomMessage string    `json:"custom_message,omitempty"`
}

func (n *WebhookNotifier) Notify(ctx context.Context, alert rules.AlertEvent, url string) bool {
	if url == "" {
		url = n.defaultURL
	}
	if url == "" {
		return false
	}

	payload := webhookPayload{
		Event:         "rule_triggered",
		RuleID:        alert.Rule.ID,
		RuleName:      alert.Rule.Name,
		Condition:     alert.Rule.Condition,
		Priority:      string(alert.Rule.Priority),
		Reasoning:     alert.Evaluation.Reasoning,
		Confidence:    alert.Evaluation.Confidence,
		Timestamp:     alert.Evaluation.Timestamp,
		SceneSummary:  alert.SceneSummary,
		CustomMessage: alert.Rule.CustomMessage,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		n.log.Printf("marshal error: %v", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		n.log.Printf("request build error: %v", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.log.Printf("error posting to %s: %v", url, err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		n.log.Printf("webhook failed: %s returned %d", url, resp.StatusCode)
		return false
	}
	n.log.Printf("webhook sent to %s: %d", url, resp.StatusCode)
	return true
}
