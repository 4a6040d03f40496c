// Package friendlyerr maps technical errors from the camera, vision
// provider, config and notification layers to short, actionable
// messages a non-technical user can act on without reading a stack
// trace.
package friendlyerr

import (
	"fmt"
	"runtime"
	"strings"
)

// FriendlyError is a consumer-facing error with a suggested fix.
type FriendlyError struct {
	Title   string
	Message string
	Fix     string
	DocsURL string
}

func contains(msg string, any ...string) bool {
	for _, s := range any {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// Camera converts a camera-layer error into a FriendlyError.
func Camera(err error) FriendlyError {
	msg := strings.ToLower(err.Error())

	if contains(msg, "not authorized", "permission", "tcc") {
		switch runtime.GOOS {
		case "darwin":
			return FriendlyError{
				Title:   "Camera permission needed",
				Message: "macOS is blocking camera access for this app.",
				Fix: "Open System Settings > Privacy & Security > Camera, " +
					"then enable access for your terminal app (Terminal, " +
					"iTerm2, VS Code, etc.). You may need to restart the app.",
			}
		case "linux":
			return FriendlyError{
				Title:   "Camera permission needed",
				Message: "Linux is blocking camera access.",
				Fix: "Make sure your user is in the 'video' group: " +
					"sudo usermod -aG video $USER, then log out and back in.",
			}
		}
		return FriendlyError{
			Title:   "Camera permission denied",
			Message: "The system is blocking camera access.",
			Fix:     "Check your operating system's privacy settings for camera access.",
		}
	}

	// RTSP/stream errors are checked before the generic "cannot open"
	// case below since RTSP failures often also contain that phrase.
	if contains(msg, "rtsp", "stream") {
		return FriendlyError{
			Title:   "Camera stream not responding",
			Message: "Could not connect to the camera's video stream.",
			Fix: "Check that your camera is powered on and connected to WiFi. " +
				"Verify the RTSP URL is correct. Common formats:\n" +
				"  rtsp://IP:554/ch0_0.h264\n" +
				"  rtsp://admin:password@IP:554/stream\n" +
				"Try 'physical-mcp discover' to scan for cameras.",
		}
	}

	if contains(msg, "cannot open", "no camera", "device not found") {
		return FriendlyError{
			Title:   "Camera not found",
			Message: "No camera was detected on this device.",
			Fix: "Make sure your camera is plugged in and recognized by your " +
				"system. Try a different USB port. For IP cameras, check that " +
				"the camera is powered on and connected to your WiFi network.",
		}
	}

	if contains(msg, "timeout", "timed out") {
		return FriendlyError{
			Title:   "Camera timed out",
			Message: "The camera took too long to respond.",
			Fix: "The camera may be busy or on a slow network. Try:\n" +
				"1. Restart the camera (unplug, wait 10 seconds, plug back in)\n" +
				"2. Move the camera closer to your WiFi router\n" +
				"3. Check if other devices can reach the camera",
		}
	}

	return FriendlyError{
		Title:   "Camera error",
		Message: fmt.Sprintf("Something went wrong with the camera: %v", err),
		Fix:     "Try restarting physical-mcp and your camera. If the issue persists, run 'physical-mcp doctor' for diagnostics.",
	}
}

// Provider converts a vision-provider error into a FriendlyError.
func Provider(err error) FriendlyError {
	msg := strings.ToLower(err.Error())

	if contains(msg, "auth", "api key", "401", "403") {
		return FriendlyError{
			Title:   "Vision provider key invalid",
			Message: "Your AI vision provider API key was rejected.",
			Fix: "Check your API key in ~/.config/physical-mcp/config.yaml " +
				"under the 'reasoning' section. Keys may have expired or " +
				"been revoked. Get a new key from your provider's dashboard.",
		}
	}

	if contains(msg, "rate", "429", "quota", "limit") {
		return FriendlyError{
			Title:   "AI provider rate limit",
			Message: "Too many requests to the AI vision provider.",
			Fix: "The system will automatically retry with backoff. If this " +
				"keeps happening:\n" +
				"1. Reduce the number of active cameras\n" +
				"2. Increase cooldown_seconds on your rules\n" +
				"3. Upgrade your API plan or switch to a provider with higher limits",
		}
	}

	if contains(msg, "no provider", "not configured") {
		return FriendlyError{
			Title:   "No AI vision provider set up",
			Message: "physical-mcp needs an AI provider to analyze camera frames.",
			Fix: "Run 'physical-mcp setup' to configure a vision provider, or " +
				"add one to ~/.config/physical-mcp/config.yaml:\n\n" +
				"  reasoning:\n" +
				"    provider: google\n" +
				"    api_key: YOUR_API_KEY\n\n" +
				"Supported providers: google (Gemini), openai (GPT-4), anthropic (Claude).",
		}
	}

	return FriendlyError{
		Title:   "AI vision error",
		Message: fmt.Sprintf("The AI vision provider returned an error: %v", err),
		Fix:     "This is usually temporary. The system will retry automatically. If it persists, try 'physical-mcp doctor'.",
	}
}

// Config converts a configuration-loading error into a FriendlyError.
func Config(err error) FriendlyError {
	msg := strings.ToLower(err.Error())

	if contains(msg, "yaml", "parse", "invalid") {
		return FriendlyError{
			Title:   "Configuration file error",
			Message: "The configuration file has a formatting issue.",
			Fix: "Check ~/.config/physical-mcp/config.yaml for syntax errors. " +
				"Common issues:\n" +
				"- Missing spaces after colons (use 'key: value' not 'key:value')\n" +
				"- Incorrect indentation (use 2 spaces, not tabs)\n" +
				"- Missing quotes around special characters\n" +
				"Run 'physical-mcp doctor' to validate your config.",
		}
	}

	return FriendlyError{
		Title:   "Configuration error",
		Message: fmt.Sprintf("There's a problem with your setup: %v", err),
		Fix:     "Run 'physical-mcp setup' to reconfigure, or check ~/.config/physical-mcp/config.yaml",
	}
}

// Notification converts a notifier-delivery error into a FriendlyError.
// kind is the notifier name ("telegram", "discord", "ntfy", ...);
// empty falls back to sniffing err's message.
func Notification(err error, kind string) FriendlyError {
	msg := strings.ToLower(err.Error())

	if kind == "telegram" || contains(msg, "telegram") {
		if contains(msg, "401", "unauthorized") {
			return FriendlyError{
				Title:   "Telegram bot token invalid",
				Message: "Your Telegram bot token was rejected.",
				Fix: "1. Open Telegram and message @BotFather\n" +
					"2. Use /mybots to check your bot\n" +
					"3. If needed, use /revoke to get a new token\n" +
					"4. Update TELEGRAM_BOT_TOKEN in your config",
			}
		}
		if contains(msg, "chat not found", "chat_id") {
			return FriendlyError{
				Title:   "Telegram chat not found",
				Message: "The Telegram chat ID is incorrect.",
				Fix: "1. Message your bot on Telegram first\n" +
					"2. Visit: api.telegram.org/bot<TOKEN>/getUpdates\n" +
					"3. Find your chat.id in the response\n" +
					"4. Update TELEGRAM_CHAT_ID in your config",
			}
		}
	}

	if kind == "discord" || contains(msg, "discord") {
		return FriendlyError{
			Title:   "Discord webhook error",
			Message: "Could not send alert to Discord.",
			Fix: "Check your Discord webhook URL:\n" +
				"1. In Discord, go to Channel Settings > Integrations > Webhooks\n" +
				"2. Copy the webhook URL\n" +
				"3. Update DISCORD_WEBHOOK_URL in your config",
		}
	}

	if kind == "ntfy" || contains(msg, "ntfy") {
		return FriendlyError{
			Title:   "Push notification error",
			Message: "Could not send push notification via ntfy.",
			Fix: "1. Install the ntfy app on your phone (ntfy.sh)\n" +
				"2. Subscribe to your topic in the app\n" +
				"3. Make sure your topic matches NTFY_TOPIC in config",
		}
	}

	return FriendlyError{
		Title:   "Notification error",
		Message: fmt.Sprintf("Could not send alert: %v", err),
		Fix:     "Check your notification settings in the configuration file.",
	}
}

// Format renders e for terminal or chat display.
func Format(e FriendlyError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⚠️  %s\n", e.Title)
	fmt.Fprintf(&b, "   %s\n\n", e.Message)
	b.WriteString("💡 How to fix:\n")
	for _, line := range strings.Split(e.Fix, "\n") {
		fmt.Fprintf(&b, "   %s\n", line)
	}
	if e.DocsURL != "" {
		fmt.Fprintf(&b, "\n   📖 More info: %s\n", e.DocsURL)
	}
	return strings.TrimRight(b.String(), "\n")
}
