package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/technosupport/physical-mcp/internal/obslog"
	"github.com/technosupport/physical-mcp/internal/rules"
)

var slackPriorityEmoji = map[rules.Priority]string{
	rules.PriorityLow:      ":information_source:",
	rules.PriorityMedium:   ":warning:",
	rules.PriorityHigh:     ":rotating_light:",
	rules.PriorityCritical: ":red_circle:",
}

// SlackNotifier pushes alerts to a Slack channel via an incoming
// webhook, using Block Kit. Slack incoming webhooks don't support
// file uploads, so this is text-only.
type SlackNotifier struct {
	defaultURL string
	client     *http.Client
	log        *obslog.Logger
}

func NewSlackNotifier(defaultURL string) *SlackNotifier {
	return &SlackNotifier{
		defaultURL: defaultURL,
		client:     &http.Client{Timeout: 15 * time.Second},
		log:        obslog.New("notify-slack"),
	}
}

func (n *SlackNotifier) buildBlocks(alert rules.AlertEvent) []map[string]any {
	emoji := slackPriorityEmoji[alert.Rule.Priority]
	if emoji == "" {
		emoji = ":warning:"
	}

	body := alert.Rule.CustomMessage
	if body == "" {
		body = fmt.Sprintf("%s\n\n*Condition:* %s\n*Confidence:* %.0f%%",
			alert.Evaluation.Reasoning, alert.Rule.Condition, alert.Evaluation.Confidence*100)
	}

	return []map[string]any{
		{
			"type": "header",
			"text": map[string]any{
				"type":  "plain_text",
				"text":  alert.Rule.Name,
				"emoji": true,
			},
		},
		{
			"type": "section",
			"text": map[string]any{
				"type": "mrkdwn",
				"text": emoji + " " + body,
			},
		},
		{
			"type": "context",
			"elements": []map[string]any{
				{
					"type": "mrkdwn",
					"text": "physical-mcp | " + string(alert.Rule.Priority) + " priority",
				},
			},
		},
	}
}

// Notify sends alert to Slack. Returns true on success.
func (n *SlackNotifier) Notify(ctx context.Context, alert rules.AlertEvent, webhookURL string) bool {
	url := webhookURL
	if url == "" {
		url = n.defaultURL
	}
	if url == "" {
		return false
	}

	fallback := alert.Rule.CustomMessage
	if fallback == "" {
		fallback = fmt.Sprintf("[%s] %s: %s", strings.ToUpper(string(alert.Rule.Priority)), alert.Rule.Name, alert.Evaluation.Reasoning)
	}

	payload := map[string]any{
		"blocks": n.buildBlocks(alert),
		"text":   fallback,
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		n.log.Printf("marshal error: %v", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		n.log.Printf("request build error: %v", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.log.Printf("slack error: %v", err)
		return false
	}
	defer resp.Body.Close()

	ok := resp.StatusCode < 400
	if ok {
		n.log.Printf("slack alert sent: %s", alert.Rule.Name)
	} else {
		n.log.Printf("slack webhook failed: HTTP %d", resp.StatusCode)
	}
	return ok
}
