package notify

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/technosupport/physical-mcp/internal/obslog"
	"github.com/technosupport/physical-mcp/internal/rules"
)

// OpenClawNotifier bridges alerts into OpenClaw's multi-channel
// delivery (Telegram, WhatsApp, Discord, Slack, Signal, ...) via the
// `openclaw message send` CLI.
type OpenClawNotifier struct {
	defaultChannel string
	defaultTarget  string
	bin            string
	log            *obslog.Logger
}

func NewOpenClawNotifier(defaultChannel, defaultTarget, bin string) *OpenClawNotifier {
	if bin == "" {
		if found, err := exec.LookPath("openclaw"); err == nil {
			bin = found
		} else {
			bin = "openclaw"
		}
	}
	return &OpenClawNotifier{
		defaultChannel: defaultChannel,
		defaultTarget:  defaultTarget,
		bin:            bin,
		log:            obslog.New("notify-openclaw"),
	}
}

// Notify delivers alert via OpenClaw. Tries with the camera frame
// attached first; if media upload fails it falls back to text-only so
// the alert still gets through.
func (n *OpenClawNotifier) Notify(ctx context.Context, alert rules.AlertEvent, channel, target string) bool {
	ch := channel
	if ch == "" {
		ch = n.defaultChannel
	}
	dest := target
	if dest == "" {
		dest = n.defaultTarget
	}

	if ch == "" {
		n.log.Printf("no channel configured")
		return false
	}
	if dest == "" {
		n.log.Printf("no target configured")
		return false
	}

	message := formatOpenClawMessage(alert)
	baseArgs := []string{"message", "send", "--channel", ch, "--target", dest, "-m", message}

	if mediaPath, err := n.prepareMedia(alert.FrameBase64); err == nil && mediaPath != "" {
		args := append(append([]string{}, baseArgs...), "--media", mediaPath)
		if n.run(ctx, args, ch+"/"+dest, alert.Rule.Name) {
			return true
		}
		n.log.Printf("media attach failed, retrying text-only")
	}

	return n.run(ctx, baseArgs, ch+"/"+dest, alert.Rule.Name)
}

func (n *OpenClawNotifier) prepareMedia(frameBase64 string) (string, error) {
	if frameBase64 == "" {
		return "", nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	mediaDir := filepath.Join(home, ".openclaw", "workspace")
	if err := os.MkdirAll(mediaDir, 0o750); err != nil {
		return "", err
	}
	imgBytes, err := base64.StdEncoding.DecodeString(frameBase64)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(mediaDir, "camera-alert.jpg")
	if err := os.WriteFile(dest, imgBytes, 0o640); err != nil {
		return "", err
	}
	return dest, nil
}

func (n *OpenClawNotifier) run(ctx context.Context, args []string, label, ruleName string) bool {
	runCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	cmd := exec.CommandContext(runCtx, n.bin, args...)
	out, err := cmd.CombinedOutput()

	if err == nil {
		n.log.Printf("openclaw alert sent to %s: %s", label, ruleName)
		return true
	}
	if _, ok := err.(*exec.Error); ok {
		n.log.Printf("openclaw CLI not found at %q; install OpenClaw or set openclaw_bin in config", n.bin)
		return false
	}
	n.log.Printf("openclaw send failed: %v — %s", err, truncate(string(out), 200))
	return false
}

func formatOpenClawMessage(alert rules.AlertEvent) string {
	if alert.Rule.CustomMessage != "" {
		return alert.Rule.CustomMessage
	}
	msg := fmt.Sprintf("[%s] %s\nConfidence: %.0f%%", alert.Rule.Name, alert.Evaluation.Reasoning, alert.Evaluation.Confidence*100)
	if alert.SceneSummary != "" {
		msg += "\nScene: " + truncate(alert.SceneSummary, 200)
	}
	return msg
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
