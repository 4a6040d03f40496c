package notify

import (
	"os/exec"
	"runtime"

	"golang.org/x/time/rate"

	"github.com/technosupport/physical-mcp/internal/obslog"
)

// DesktopNotifier fires OS-native desktop notifications, rate limited
// to at most one per interval to keep rapid scene changes from
// spamming the user.
type DesktopNotifier struct {
	limiter  *rate.Limiter
	platform string
	log      *obslog.Logger
}

// NewDesktopNotifier builds a notifier allowing at most one
// notification per minIntervalSeconds.
func NewDesktopNotifier(minIntervalSeconds float64) *DesktopNotifier {
	return &DesktopNotifier{
		limiter:  rate.NewLimiter(rate.Limit(1.0/minIntervalSeconds), 1),
		platform: runtime.GOOS,
		log:      obslog.New("notify-desktop"),
	}
}

// Notify fires a desktop notification, fire-and-forget. Returns false
// if rate-limited or the platform has no supported backend.
func (n *DesktopNotifier) Notify(title, body string) bool {
	if !n.limiter.Allow() {
		n.log.Printf("rate-limited, skipping desktop notification")
		return false
	}

	var cmd *exec.Cmd
	switch n.platform {
	case "darwin":
		if _, err := exec.LookPath("terminal-notifier"); err == nil {
			cmd = exec.Command("terminal-notifier",
				"-title", title, "-message", body, "-sound", "default", "-group", "physical-mcp")
		} else {
			script := `display notification "` + escapeAppleScript(body) + `" with title "` + escapeAppleScript(title) + `"`
			cmd = exec.Command("osascript", "-e", script)
		}
	case "linux":
		cmd = exec.Command("notify-send", "--app-name=Physical MCP", title, body)
	case "windows":
		cmd = exec.Command("powershell", "-Command", windowsToastScript(title, body))
	default:
		n.log.Printf("desktop notifications unsupported on %s", n.platform)
		return false
	}

	if err := cmd.Start(); err != nil {
		n.log.Printf("desktop notification error: %v", err)
		return false
	}
	// Fire-and-forget: don't block on the child process exiting.
	go cmd.Wait()

	n.log.Printf("desktop notification: %s", title)
	return true
}

func escapeAppleScript(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '\\', '"':
			out = append(out, '\\', r)
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

func windowsToastScript(title, body string) string {
	return "[Windows.UI.Notifications.ToastNotificationManager, " +
		"Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null; " +
		"$xml = [Windows.UI.Notifications.ToastNotificationManager]::" +
		"GetTemplateContent([Windows.UI.Notifications.ToastTemplateType]::ToastText02); " +
		"$texts = $xml.GetElementsByTagName('text'); " +
		"$texts[0].AppendChild($xml.CreateTextNode('" + escapeAppleScript(title) + "')) | Out-Null; " +
		"$texts[1].AppendChild($xml.CreateTextNode('" + escapeAppleScript(body) + "')) | Out-Null; " +
		"$toast = [Windows.UI.Notifications.ToastNotification]::new($xml); " +
		"[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier('Physical MCP').Show($toast)"
}
