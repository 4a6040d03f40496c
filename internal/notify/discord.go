package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/technosupport/physical-mcp/internal/obslog"
	"github.com/technosupport/physical-mcp/internal/rules"
)

var discordPriorityColor = map[rules.Priority]int{
	rules.PriorityLow:      0x3498DB,
	rules.PriorityMedium:   0xF1C40F,
	rules.PriorityHigh:     0xE67E22,
	rules.PriorityCritical: 0xE74C3C,
}

// DiscordNotifier pushes alerts, with camera-frame photos, to a
// Discord channel via an incoming webhook, as a rich embed.
type DiscordNotifier struct {
	defaultURL string
	client     *http.Client
	log        *obslog.Logger
}

func NewDiscordNotifier(defaultURL string) *DiscordNotifier {
	return &DiscordNotifier{
		defaultURL: defaultURL,
		client:     &http.Client{Timeout: 15 * time.Second},
		log:        obslog.New("notify-discord"),
	}
}

type discordEmbed struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Color       int               `json:"color"`
	Timestamp   string            `json:"timestamp"`
	Footer      discordEmbedFooter `json:"footer"`
	Image       *discordEmbedImage `json:"image,omitempty"`
}

type discordEmbedFooter struct {
	Text string `json:"text"`
}

type discordEmbedImage struct {
	URL string `json:"url"`
}

func (n *DiscordNotifier) buildEmbed(alert rules.AlertEvent, hasImage bool) discordEmbed {
	color, ok := discordPriorityColor[alert.Rule.Priority]
	if !ok {
		color = 0xF1C40F
	}

	description := alert.Rule.CustomMessage
	if description == "" {
		description = fmt.Sprintf("%s\n\n**Condition:** %s\n**Confidence:** %.0f%%",
			alert.Evaluation.Reasoning, alert.Rule.Condition, alert.Evaluation.Confidence*100)
	}

	embed := discordEmbed{
		Title:       alert.Rule.Name,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Footer:      discordEmbedFooter{Text: "physical-mcp | " + string(alert.Rule.Priority)},
	}
	if hasImage {
		embed.Image = &discordEmbedImage{URL: "attachment://camera.jpg"}
	}
	return embed
}

// Notify sends alert to Discord. Returns true on success.
func (n *DiscordNotifier) Notify(ctx context.Context, alert rules.AlertEvent, webhookURL string) bool {
	url := webhookURL
	if url == "" {
		url = n.defaultURL
	}
	if url == "" {
		return false
	}

	embed := n.buildEmbed(alert, alert.FrameBase64 != "")

	var req *http.Request
	var err error

	if alert.FrameBase64 != "" {
		imgBytes, decErr := base64.StdEncoding.DecodeString(alert.FrameBase64)
		if decErr != nil {
			n.log.Printf("discord error: %v", decErr)
			return false
		}

		payloadJSON, _ := json.Marshal(map[string]any{"embeds": []discordEmbed{embed}})

		var body bytes.Buffer
		w := multipart.NewWriter(&body)
		pj, perr := w.CreateFormField("payload_json")
		if perr == nil {
			_, _ = pj.Write(payloadJSON)
		}
		part, ferr := w.CreateFormFile("files[0]", "camera.jpg")
		if ferr == nil {
			_, _ = part.Write(imgBytes)
		}
		_ = w.Close()

		req, err = http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
		if err == nil {
			req.Header.Set("Content-Type", w.FormDataContentType())
		}
	} else {
		payload, _ := json.Marshal(map[string]any{"embeds": []discordEmbed{embed}})
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	}

	if err != nil {
		n.log.Printf("discord request build error: %v", err)
		return false
	}

	resp, err := n.client.Do(req)
	if err != nil {
		n.log.Printf("discord error: %v", err)
		return false
	}
	defer resp.Body.Close()

	ok := resp.StatusCode < 400
	if ok {
		n.log.Printf("discord alert sent: %s", alert.Rule.Name)
	} else {
		n.log.Printf("discord webhook failed: HTTP %d", resp.StatusCode)
	}
	return ok
}
