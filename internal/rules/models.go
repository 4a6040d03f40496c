// Package rules implements watch rules: natural-language conditions
// evaluated against camera scenes, with cooldown-gated alert emission.
package rules

import "time"

// Priority is a rule's alert severity.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// NotificationTarget describes where a rule's alerts should be sent.
// Channel and Target may each be a comma-separated list; the
// dispatcher splits and invokes once per resulting pair (fanout).
type NotificationTarget struct {
	Type    string `yaml:"type" json:"type"` // local|desktop|ntfy|telegram|discord|slack|webhook|openclaw
	URL     string `yaml:"url,omitempty" json:"url,omitempty"`
	Channel string `yaml:"channel,omitempty" json:"channel,omitempty"`
	Target  string `yaml:"target,omitempty" json:"target,omitempty"`
}

// DefaultNotificationTarget is applied to rules with no explicit target.
func DefaultNotificationTarget() NotificationTarget {
	return NotificationTarget{Type: "local"}
}

// WatchRule is a user-defined condition to evaluate against a camera
// feed, with its notification routing and cooldown.
type WatchRule struct {
	ID               string              `yaml:"id" json:"id"`
	Name             string              `yaml:"name" json:"name"`
	Condition        string              `yaml:"condition" json:"condition"`
	CameraID         string              `yaml:"camera_id" json:"camera_id"`
	Priority         Priority            `yaml:"priority" json:"priority"`
	Enabled          bool                `yaml:"enabled" json:"enabled"`
	Notification     NotificationTarget  `yaml:"notification" json:"notification"`
	CooldownSeconds  int                 `yaml:"cooldown_seconds" json:"cooldown_seconds"`
	CustomMessage    string              `yaml:"custom_message,omitempty" json:"custom_message,omitempty"`
	OwnerID          string              `yaml:"owner_id,omitempty" json:"owner_id,omitempty"`
	OwnerName        string              `yaml:"owner_name,omitempty" json:"owner_name,omitempty"`
	CreatedAt        time.Time           `yaml:"created_at" json:"created_at"`
	LastTriggered    *time.Time          `yaml:"last_triggered,omitempty" json:"last_triggered,omitempty"`
}

// NewWatchRule applies field defaults matching the reference model:
// medium priority, enabled, local notification, 60s cooldown.
func NewWatchRule(id, name, condition string) WatchRule {
	return WatchRule{
		ID:              id,
		Name:            name,
		Condition:       condition,
		Priority:        PriorityMedium,
		Enabled:         true,
		Notification:    DefaultNotificationTarget(),
		CooldownSeconds: 60,
		CreatedAt:       time.Now(),
	}
}

// InCooldown reports whether the rule last fired within its cooldown window.
func (r WatchRule) InCooldown(now time.Time) bool {
	if r.LastTriggered == nil {
		return false
	}
	return now.Sub(*r.LastTriggered) < time.Duration(r.CooldownSeconds)*time.Second
}

// Evaluation is one LLM verdict on whether a rule's condition currently holds.
type Evaluation struct {
	RuleID     string    `json:"rule_id"`
	Triggered  bool      `json:"triggered"`
	Confidence float64   `json:"confidence"`
	Reasoning  string    `json:"reasoning"`
	Timestamp  time.Time `json:"timestamp"`
}

// AlertEvent is emitted once a rule's evaluation clears the confidence
// and cooldown gates.
type AlertEvent struct {
	Rule         WatchRule  `json:"rule"`
	Evaluation   Evaluation `json:"evaluation"`
	SceneSummary string     `json:"scene_summary"`
	FrameBase64  string     `json:"frame_base64,omitempty"`
}

// PendingAlert is a scene-change event queued for client-side
// evaluation when no server-side vision provider is configured: the
// MCP client (Claude Desktop, etc.) evaluates the watch rules itself
// using the frame and scene context supplied here.
type PendingAlert struct {
	ID                string           `json:"id"`
	CameraID          string           `json:"camera_id"`
	CameraName        string           `json:"camera_name"`
	Timestamp         time.Time        `json:"timestamp"`
	ChangeLevel       string           `json:"change_level"`
	ChangeDescription string           `json:"change_description"`
	FrameBase64       string           `json:"frame_base64"`
	SceneContext      string           `json:"scene_context"`
	ActiveRules       []ActiveRuleInfo `json:"active_rules"`
	ExpiresAt         time.Time        `json:"expires_at"`
}

// ActiveRuleInfo is the trimmed rule shape handed to clients doing
// their own reasoning — condition and priority only, no routing details.
type ActiveRuleInfo struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Condition string   `json:"condition"`
	Priority  Priority `json:"priority"`
}
