// Package notify fans an alert event out to whichever channels a watch
// rule's notification target names: webhook, desktop, ntfy, telegram,
// discord, slack, openclaw, or a local no-op.
package notify

import (
	"context"
	"strings"

	"github.com/technosupport/physical-mcp/internal/obslog"
	"github.com/technosupport/physical-mcp/internal/rules"
)

// splitList splits s on commas, trimming whitespace. An empty s yields
// a single empty-string element so zipPairs still has something to
// zip against a populated sibling list.
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

// channelTarget is one fanout destination.
type channelTarget struct {
	channel string
	target  string
}

// zipPairs pairs up channels and targets positionally, broadcasting a
// single-element list across however many elements the other side
// has (e.g. one channel with three comma-separated targets), and
// wrapping around by index otherwise.
func zipPairs(channels, targets []string) []channelTarget {
	n := len(channels)
	if len(targets) > n {
		n = len(targets)
	}
	pairs := make([]channelTarget, n)
	for i := 0; i < n; i++ {
		pairs[i] = channelTarget{
			channel: channels[i%len(channels)],
			target:  targets[i%len(targets)],
		}
	}
	return pairs
}

// Config wires default targets for each channel so a rule's
// NotificationTarget can leave Target/Channel/URL blank and fall back
// to whatever the daemon config set up globally.
type Config struct {
	DesktopEnabled bool

	WebhookURL string

	NtfyTopic    string
	NtfyServer   string // defaults to https://ntfy.sh

	TelegramBotToken string
	TelegramChatID   string

	DiscordWebhookURL string

	SlackWebhookURL string

	OpenClawBin     string
	OpenClawChannel string
	OpenClawTarget  string
}

// Dispatcher routes a triggered alert to the notifier implied by its
// rule's NotificationTarget.
type Dispatcher struct {
	cfg Config
	log *obslog.Logger

	webhook  *WebhookNotifier
	desktop  *DesktopNotifier
	ntfy     *NtfyNotifier
	telegram *TelegramNotifier
	discord  *DiscordNotifier
	slack    *SlackNotifier
	openclaw *OpenClawNotifier
}

// New builds a Dispatcher. Each channel-specific notifier is always
// constructed; whether it ever fires depends on whether a rule routes
// to it and whether its target/URL ends up non-empty.
func New(cfg Config) *Dispatcher {
	var desktop *DesktopNotifier
	if cfg.DesktopEnabled {
		desktop = NewDesktopNotifier(10.0)
	}

	return &Dispatcher{
		cfg:      cfg,
		log:      obslog.New("notify"),
		webhook:  NewWebhookNotifier(cfg.WebhookURL),
		desktop:  desktop,
		ntfy:     NewNtfyNotifier(cfg.NtfyTopic, cfg.NtfyServer),
		telegram: NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID),
		discord:  NewDiscordNotifier(cfg.DiscordWebhookURL),
		slack:    NewSlackNotifier(cfg.SlackWebhookURL),
		openclaw: NewOpenClawNotifier(cfg.OpenClawChannel, cfg.OpenClawTarget, cfg.OpenClawBin),
	}
}

// Dispatch routes alert to the channel its rule's NotificationTarget
// names, returning whether delivery succeeded.
func (d *Dispatcher) Dispatch(ctx context.Context, alert rules.AlertEvent) bool {
	target := alert.Rule.Notification

	switch target.Type {
	case "webhook":
		url := target.URL
		if url == "" {
			url = d.cfg.WebhookURL
		}
		return d.webhook.Notify(ctx, alert, url)

	case "desktop":
		if d.desktop == nil {
			d.log.Printf("desktop notification requested for rule %q but desktop notifications are disabled", alert.Rule.Name)
			return false
		}
		title := desktopTitle(alert)
		body := alert.Evaluation.Reasoning
		return d.desktop.Notify(title, body)

	case "ntfy":
		ok := true
		for _, topic := range splitList(target.Channel) {
			if topic == "" {
				topic = d.cfg.NtfyTopic
			}
			if !d.ntfy.Notify(ctx, alert, topic) {
				ok = false
			}
		}
		// Bonus: a desktop popup alongside ntfy, when desktop is also enabled.
		if d.desktop != nil {
			d.desktop.Notify(desktopTitle(alert), alert.Evaluation.Reasoning)
		}
		return ok

	case "telegram":
		ok := true
		for _, chatID := range splitList(target.Target) {
			if chatID == "" {
				chatID = d.cfg.TelegramChatID
			}
			if !d.telegram.Notify(ctx, alert, chatID) {
				ok = false
			}
		}
		return ok

	case "discord":
		url := target.URL
		if url == "" {
			url = d.cfg.DiscordWebhookURL
		}
		return d.discord.Notify(ctx, alert, url)

	case "slack":
		url := target.URL
		if url == "" {
			url = d.cfg.SlackWebhookURL
		}
		return d.slack.Notify(ctx, alert, url)

	case "openclaw":
		ok := true
		for _, pair := range zipPairs(splitList(target.Channel), splitList(target.Target)) {
			if !d.openclaw.Notify(ctx, alert, pair.channel, pair.target) {
				ok = false
			}
		}
		return ok

	case "local":
		// The MCP tool response itself is the notification; nothing to send.
		return true

	default:
		d.log.Printf("unknown notification type %q for rule %q", target.Type, alert.Rule.Name)
		return false
	}
}

// NotifyScene sends a lightweight pre-evaluation "something changed"
// notice, used by the perception loop ahead of a full rule evaluation.
func (d *Dispatcher) NotifyScene(ctx context.Context, changeLevel string, ruleNames []string, frameBase64 string) bool {
	topic := d.cfg.NtfyTopic
	if topic == "" {
		return false
	}
	return d.ntfy.NotifyScene(ctx, topic, changeLevel, ruleNames, frameBase64)
}

// NotifyDesktop sends a direct desktop popup outside of the rule
// dispatch path, e.g. for daemon-level status notices.
func (d *Dispatcher) NotifyDesktop(title, body string) bool {
	if d.desktop == nil {
		return false
	}
	return d.desktop.Notify(title, body)
}

func desktopTitle(alert rules.AlertEvent) string {
	return "[" + string(alert.Rule.Priority) + "] " + alert.Rule.Name
}
