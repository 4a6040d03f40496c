package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/technosupport/physical-mcp/internal/obslog"
	"github.com/technosupport/physical-mcp/internal/rules"
)

var ntfyPriority = map[rules.Priority]string{
	rules.PriorityLow:      "2",
	rules.PriorityMedium:   "3",
	rules.PriorityHigh:     "4",
	rules.PriorityCritical: "5",
}

var ntfyTags = map[rules.Priority]string{
	rules.PriorityLow:      "camera",
	rules.PriorityMedium:   "camera,eyes",
	rules.PriorityHigh:     "camera,warning",
	rules.PriorityCritical: "camera,rotating_light",
}

// NtfyNotifier pushes notifications via ntfy.sh (or a self-hosted
// instance), attaching the camera frame as a JPEG when one is available.
type NtfyNotifier struct {
	defaultTopic string
	serverURL    string
	client       *http.Client
	log          *obslog.Logger
}

func NewNtfyNotifier(defaultTopic, serverURL string) *NtfyNotifier {
	if serverURL == "" {
		serverURL = "https://ntfy.sh"
	}
	return &NtfyNotifier{
		defaultTopic: defaultTopic,
		serverURL:    strings.TrimRight(serverURL, "/"),
		client:       &http.Client{Timeout: 15 * time.Second},
		log:          obslog.New("notify-ntfy"),
	}
}

func (n *NtfyNotifier) send(ctx context.Context, url, message string, headers map[string]string, frameBase64 string) bool {
	var req *http.Request
	var err error

	if frameBase64 != "" {
		imgBytes, decErr := base64.StdEncoding.DecodeString(frameBase64)
		if decErr != nil {
			n.log.Printf("frame decode error: %v", decErr)
			return false
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(imgBytes))
		if err == nil {
			req.Header.Set("Filename", "camera.jpg")
			req.Header.Set("X-Message", message)
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(message))
	}
	if err != nil {
		n.log.Printf("request build error: %v", err)
		return false
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		n.log.Printf("ntfy error: %v", err)
		return false
	}
	defer resp.Body.Close()

	ok := resp.StatusCode < 400
	if ok {
		n.log.Printf("ntfy sent: %s", headers["Title"])
	} else {
		n.log.Printf("ntfy failed: HTTP %d", resp.StatusCode)
	}
	return ok
}

// Notify sends a triggered-rule alert, with the camera frame attached
// when available.
func (n *NtfyNotifier) Notify(ctx context.Context, alert rules.AlertEvent, topic string) bool {
	if topic == "" {
		topic = n.defaultTopic
	}
	if topic == "" {
		return false
	}

	url := n.serverURL + "/" + topic
	priority := ntfyPriority[alert.Rule.Priority]
	if priority == "" {
		priority = "3"
	}
	tags := ntfyTags[alert.Rule.Priority]
	if tags == "" {
		tags = "camera"
	}

	headers := map[string]string{
		"Title":    alert.Rule.Name,
		"Priority": priority,
		"Tags":     tags,
	}
	message := fmt.Sprintf("%s\n\nCondition: %s\nConfidence: %.0f%%",
		alert.Evaluation.Reasoning, alert.Rule.Condition, alert.Evaluation.Confidence*100)

	return n.send(ctx, url, message, headers, alert.FrameBase64)
}

// NotifyScene sends a lightweight pre-evaluation "something changed" notice.
func (n *NtfyNotifier) NotifyScene(ctx context.Context, topic, changeLevel string, ruleNames []string, frameBase64 string) bool {
	if topic == "" {
		return false
	}
	url := n.serverURL + "/" + topic
	headers := map[string]string{
		"Title":    "Scene Change: " + titleCase(changeLevel),
		"Priority": "2",
		"Tags":     "camera,mag",
	}
	message := fmt.Sprintf("Monitoring: %s\nEvaluating camera now...", strings.Join(ruleNames, ", "))
	return n.send(ctx, url, message, headers, frameBase64)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
