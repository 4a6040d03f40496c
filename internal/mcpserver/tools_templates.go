package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/technosupport/physical-mcp/internal/rules"
)

func (s *Server) registerTemplateTools() {
	s.mcp.AddTool(mcp.NewTool("list_rule_templates",
		mcp.WithDescription("List built-in watch-rule templates, optionally filtered by category (security, pets, family, automation, business)."),
		mcp.WithString("category", mcp.Description("Optional category filter.")),
	), s.handleListRuleTemplates)

	s.mcp.AddTool(mcp.NewTool("create_rule_from_template",
		mcp.WithDescription("Create a watch rule from a built-in template."),
		mcp.WithString("template_id", mcp.Required(), mcp.Description("The template id, from list_rule_templates.")),
		mcp.WithString("camera_id", mcp.Description("Camera this rule applies to. Defaults to the first configured camera.")),
		mcp.WithString("name_override", mcp.Description("Optional custom name instead of the template's default.")),
	), s.handleCreateRuleFromTemplate)
}

func (s *Server) handleListRuleTemplates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category := req.GetString("category", "")
	tmpls := listTemplates(category)
	if len(tmpls) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No templates found for category %q. Categories: %v", category, templateCategories())), nil
	}

	out := fmt.Sprintf("%d template(s):\n", len(tmpls))
	for _, t := range tmpls {
		out += fmt.Sprintf("- %s (id=%s, category=%s, priority=%s): %s\n", t.Name, t.ID, t.Category, t.Priority, t.Description)
	}
	return mcp.NewToolResultText(out), nil
}

func (s *Server) handleCreateRuleFromTemplate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	templateID := req.GetString("template_id", "")
	tmpl, ok := getTemplate(templateID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("template %q not found", templateID)), nil
	}

	name := req.GetString("name_override", "")
	if name == "" {
		name = tmpl.Name
	}

	cameraID := req.GetString("camera_id", "")
	if cameraID == "" {
		if entry := s.getCamera(""); entry != nil {
			cameraID = entry.ID
		}
	}

	rule := rules.NewWatchRule(randomRuleID(), name, tmpl.Condition)
	rule.CameraID = cameraID
	rule.Priority = tmpl.Priority
	rule.CooldownSeconds = tmpl.CooldownSeconds
	if s.cfg.DefaultNotification.Type != "" && s.cfg.DefaultNotification.Type != "local" {
		rule.Notification = s.cfg.DefaultNotification
	}

	s.cfg.Rules.AddRule(rule)
	if s.cfg.RulesStore != nil {
		_ = s.cfg.RulesStore.Save(s.cfg.Rules.ListRules())
	}
	s.ensurePerceptionLoops(ctx)

	s.emitLog("info", "rule_added", cameraID, rule.ID, fmt.Sprintf("watch rule %q created from template %q", rule.Name, tmpl.ID))
	return mcp.NewToolResultText(fmt.Sprintf("Created rule %q (id=%s) from template %q on %s.", rule.Name, rule.ID, tmpl.ID, camLabel("", cameraID))), nil
}
