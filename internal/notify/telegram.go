package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/technosupport/physical-mcp/internal/obslog"
	"github.com/technosupport/physical-mcp/internal/rules"
)

var telegramPriorityEmoji = map[rules.Priority]string{
	rules.PriorityLow:      "ℹ️",
	rules.PriorityMedium:   "⚠️",
	rules.PriorityHigh:     "\U0001f6a8",
	rules.PriorityCritical: "\U0001f534",
}

// TelegramNotifier pushes alerts, with camera-frame photos, to a
// Telegram chat via the Bot API.
type TelegramNotifier struct {
	botToken       string
	defaultChatID  string
	apiBase        string
	client         *http.Client
	log            *obslog.Logger
}

func NewTelegramNotifier(botToken, defaultChatID string) *TelegramNotifier {
	return &TelegramNotifier{
		botToken:      botToken,
		defaultChatID: defaultChatID,
		apiBase:       "https://api.telegram.org",
		client:        &http.Client{Timeout: 15 * time.Second},
		log:           obslog.New("notify-telegram"),
	}
}

func (n *TelegramNotifier) formatMessage(alert rules.AlertEvent) string {
	if alert.Rule.CustomMessage != "" {
		return alert.Rule.CustomMessage
	}
	emoji := telegramPriorityEmoji[alert.Rule.Priority]
	if emoji == "" {
		emoji = "⚠️"
	}
	return fmt.Sprintf("%s *%s*\n\n%s\n\n_Condition:_ %s\n_Confidence:_ %.0f%%",
		emoji, alert.Rule.Name, alert.Evaluation.Reasoning, alert.Rule.Condition, alert.Evaluation.Confidence*100)
}

// Notify sends alert to Telegram. Returns true on success.
func (n *TelegramNotifier) Notify(ctx context.Context, alert rules.AlertEvent, chatID string) bool {
	if chatID == "" {
		chatID = n.defaultChatID
	}
	if n.botToken == "" || chatID == "" {
		return false
	}

	message := n.formatMessage(alert)

	var ok bool
	var err error
	if alert.FrameBase64 != "" {
		ok, err = n.sendPhoto(ctx, chatID, message, alert.FrameBase64)
	} else {
		ok, err = n.sendMessage(ctx, chatID, message)
	}
	if err != nil {
		n.log.Printf("telegram error: %v", err)
		return false
	}
	if ok {
		n.log.Printf("telegram alert sent: %s", alert.Rule.Name)
	}
	return ok
}

func (n *TelegramNotifier) sendPhoto(ctx context.Context, chatID, caption, frameBase64 string) (bool, error) {
	imgBytes, err := base64.StdEncoding.DecodeString(frameBase64)
	if err != nil {
		return false, err
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	_ = w.WriteField("chat_id", chatID)
	_ = w.WriteField("caption", caption)
	_ = w.WriteField("parse_mode", "Markdown")
	part, err := w.CreateFormFile("photo", "camera.jpg")
	if err != nil {
		return false, err
	}
	if _, err := part.Write(imgBytes); err != nil {
		return false, err
	}
	if err := w.Close(); err != nil {
		return false, err
	}

	url := fmt.Sprintf("%s/bot%s/sendPhoto", n.apiBase, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := n.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		n.log.Printf("telegram sendPhoto failed: HTTP %d — %s", resp.StatusCode, string(respBody))
		return false, nil
	}
	return true, nil
}

func (n *TelegramNotifier) sendMessage(ctx context.Context, chatID, text string) (bool, error) {
	payload := map[string]string{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return false, err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		n.log.Printf("telegram sendMessage failed: HTTP %d — %s", resp.StatusCode, string(respBody))
		return false, nil
	}
	return true, nil
}
