package mcpserver

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/technosupport/physical-mcp/internal/rules"
)

func (s *Server) registerRuleTools() {
	s.mcp.AddTool(mcp.NewTool("add_watch_rule",
		mcp.WithDescription("Add a new watch rule: a natural-language condition to evaluate against a camera's scene."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Short human-readable name for the rule.")),
		mcp.WithString("condition", mcp.Required(), mcp.Description("Natural-language condition, e.g. 'a person is at the front door'.")),
		mcp.WithString("camera_id", mcp.Description("Camera this rule applies to. Defaults to the first configured camera.")),
		mcp.WithString("priority", mcp.Description("low|medium|high|critical. Defaults to medium.")),
		mcp.WithNumber("cooldown_seconds", mcp.Description("Minimum seconds between repeat alerts. Defaults to 60.")),
		mcp.WithString("notification_type", mcp.Description("local|desktop|ntfy|telegram|discord|slack|webhook|openclaw. Defaults to the daemon's configured channel.")),
		mcp.WithString("notification_url", mcp.Description("Webhook/discord/slack URL, for notification types that deliver via URL.")),
		mcp.WithString("notification_channel", mcp.Description("Channel/topic for the notification type, e.g. an ntfy topic. May be a comma-separated list for fanout.")),
		mcp.WithString("custom_message", mcp.Description("Optional custom alert message.")),
		mcp.WithString("owner_id", mcp.Description("Opaque id of the user/agent that owns this rule.")),
		mcp.WithString("owner_name", mcp.Description("Human-readable name of the rule's owner.")),
	), s.handleAddWatchRule)

	s.mcp.AddTool(mcp.NewTool("list_watch_rules",
		mcp.WithDescription("List every configured watch rule."),
	), s.handleListWatchRules)

	s.mcp.AddTool(mcp.NewTool("remove_watch_rule",
		mcp.WithDescription("Remove a watch rule by id."),
		mcp.WithString("rule_id", mcp.Required(), mcp.Description("The rule to remove.")),
	), s.handleRemoveWatchRule)
}

func randomRuleID() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "00000000"
	}
	return "r_" + hex.EncodeToString(buf)
}

func (s *Server) handleAddWatchRule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	condition := req.GetString("condition", "")
	if name == "" || condition == "" {
		return mcp.NewToolResultError("name and condition are required"), nil
	}

	rule := rules.NewWatchRule(randomRuleID(), name, condition)
	rule.CameraID = req.GetString("camera_id", "")
	if rule.CameraID == "" {
		if entry := s.getCamera(""); entry != nil {
			rule.CameraID = entry.ID
		}
	}
	if p := req.GetString("priority", ""); p != "" {
		rule.Priority = rules.Priority(p)
	}
	if cd := int(req.GetFloat("cooldown_seconds", 0)); cd > 0 {
		rule.CooldownSeconds = cd
	}
	rule.CustomMessage = req.GetString("custom_message", "")
	rule.OwnerID = req.GetString("owner_id", "")
	rule.OwnerName = req.GetString("owner_name", "")

	target := rules.NotificationTarget{Type: req.GetString("notification_type", "")}
	if target.Type == "" || target.Type == "local" {
		if s.cfg.DefaultNotification.Type != "" && s.cfg.DefaultNotification.Type != "local" {
			target = s.cfg.DefaultNotification
		} else {
			target.Type = "local"
		}
	}
	if url := req.GetString("notification_url", ""); url != "" {
		target.URL = url
	}
	if channel := req.GetString("notification_channel", ""); channel != "" {
		target.Channel = channel
	}
	rule.Notification = target

	s.cfg.Rules.AddRule(rule)
	if s.cfg.RulesStore != nil {
		_ = s.cfg.RulesStore.Save(s.cfg.Rules.ListRules())
	}
	s.ensurePerceptionLoops(ctx)

	s.emitLog("info", "rule_added", rule.CameraID, rule.ID, fmt.Sprintf("watch rule %q added: %s", rule.Name, rule.Condition))
	return mcp.NewToolResultText(fmt.Sprintf("Added rule %q (id=%s) on %s.", rule.Name, rule.ID, camLabel("", rule.CameraID))), nil
}

func (s *Server) handleListWatchRules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	all := s.cfg.Rules.ListRules()
	if len(all) == 0 {
		return mcp.NewToolResultText("No watch rules configured."), nil
	}

	out := fmt.Sprintf("%d watch rule(s):\n", len(all))
	for _, r := range all {
		state := "enabled"
		if !r.Enabled {
			state = "disabled"
		}
		out += fmt.Sprintf("- %s (id=%s, camera=%s, priority=%s, %s): %s\n", r.Name, r.ID, r.CameraID, r.Priority, state, r.Condition)
	}
	return mcp.NewToolResultText(out), nil
}

func (s *Server) handleRemoveWatchRule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ruleID := req.GetString("rule_id", "")
	if ruleID == "" {
		return mcp.NewToolResultError("rule_id is required"), nil
	}
	if !s.cfg.Rules.RemoveRule(ruleID) {
		return mcp.NewToolResultError(fmt.Sprintf("rule %q not found", ruleID)), nil
	}
	if s.cfg.Alerts != nil {
		s.cfg.Alerts.FlushRule(ruleID)
	}
	if s.cfg.RulesStore != nil {
		_ = s.cfg.RulesStore.Save(s.cfg.Rules.ListRules())
	}
	s.emitLog("info", "rule_removed", "", ruleID, fmt.Sprintf("watch rule %s removed", ruleID))
	return mcp.NewToolResultText(fmt.Sprintf("Removed rule %s.", ruleID)), nil
}
