package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/technosupport/physical-mcp/internal/rules"
)

func (s *Server) registerAlertTools() {
	s.mcp.AddTool(mcp.NewTool("check_camera_alerts",
		mcp.WithDescription("Check for pending scene-change alerts queued for client-side reasoning. "+
			"Call this periodically when no server-side vision provider is configured: for each "+
			"pending alert, look at its frame and active rules, then call report_rule_evaluation."),
	), s.handleCheckCameraAlerts)

	s.mcp.AddTool(mcp.NewTool("report_rule_evaluation",
		mcp.WithDescription("Report your evaluation of one or more watch rules against a pending alert's frame."),
		mcp.WithString("alert_id", mcp.Description("The pending alert id this evaluation is for.")),
		mcp.WithString("rule_id", mcp.Required(), mcp.Description("The watch rule being evaluated.")),
		mcp.WithBoolean("triggered", mcp.Required(), mcp.Description("Whether the rule's condition currently holds.")),
		mcp.WithNumber("confidence", mcp.Description("Confidence in this verdict, 0.0-1.0.")),
		mcp.WithString("reasoning", mcp.Description("Brief explanation of the verdict.")),
	), s.handleReportRuleEvaluation)
}

func (s *Server) handleCheckCameraAlerts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.ensurePerceptionLoops(ctx)

	pending := s.cfg.Alerts.PopAll()
	if len(pending) == 0 {
		return mcp.NewToolResultText("No pending alerts."), nil
	}

	out := fmt.Sprintf("%d pending alert(s):\n", len(pending))
	content := []mcp.Content{}
	for _, a := range pending {
		out += fmt.Sprintf("- id=%s camera=%s change=%s: %s\n", a.ID, camLabel(a.CameraName, a.CameraID), a.ChangeLevel, a.ChangeDescription)
		for _, r := range a.ActiveRules {
			out += fmt.Sprintf("    rule %s (%s, priority=%s): %s\n", r.ID, r.Name, r.Priority, r.Condition)
		}
	}
	content = append(content, mcp.NewTextContent(out))
	if len(pending) > 0 && pending[0].FrameBase64 != "" {
		content = append(content, mcp.NewImageContent(pending[0].FrameBase64, "image/jpeg"))
	}

	s.emitLog("info", "alerts_checked", "", "", fmt.Sprintf("delivered %d pending alert(s) to client", len(pending)))
	return &mcp.CallToolResult{Content: content}, nil
}

func (s *Server) handleReportRuleEvaluation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ruleID := req.GetString("rule_id", "")
	if ruleID == "" {
		return mcp.NewToolResultError("rule_id is required"), nil
	}
	triggered := req.GetBool("triggered", false)
	confidence := req.GetFloat("confidence", 1.0)
	reasoning := req.GetString("reasoning", "")
	alertID := req.GetString("alert_id", "")

	rule, ok := s.cfg.Rules.GetRule(ruleID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("rule %q not found", ruleID)), nil
	}

	eval := rules.ClientEvaluation{
		RuleID:     ruleID,
		Triggered:  triggered,
		Confidence: confidence,
		Reasoning:  reasoning,
	}

	sceneSummary := reasoning
	frameBase64 := ""
	if entry := s.getCamera(rule.CameraID); entry != nil {
		sceneSummary = entry.Scene.Current().Summary
	}

	alerts := s.cfg.Rules.ProcessClientEvaluations([]rules.ClientEvaluation{eval}, sceneSummary, frameBase64)
	if len(alerts) == 0 {
		result := ruleEvaluationResult{Processed: true, Triggered: triggered}
		if !triggered {
			result.Message = fmt.Sprintf("Recorded: rule %q did not trigger.", rule.Name)
		} else {
			result.Message = fmt.Sprintf(
				"Rule %q reported triggered but did not clear the confidence/cooldown gate (confidence=%.2f).", rule.Name, confidence,
			)
		}
		return mcp.NewToolResultStructured(result, result.Message), nil
	}

	triggeredRules := make([]string, 0, len(alerts))
	for _, alert := range alerts {
		s.cfg.Stats.RecordAlert()
		s.cfg.Notifier.Dispatch(ctx, alert)
		s.recordAlertEvent("alert_fired", alert.Rule.CameraID, "", alert.Rule.ID, alert.Rule.Name, alert.Evaluation.Reasoning)
		triggeredRules = append(triggeredRules, alert.Rule.ID)
	}

	if alertID != "" {
		s.cfg.Alerts.FlushRule(ruleID)
	}

	s.emitLog("info", "rule_triggered", rule.CameraID, rule.ID, fmt.Sprintf("rule %q triggered: %s", rule.Name, reasoning))
	result := ruleEvaluationResult{
		Processed:      true,
		Triggered:      true,
		TriggeredRules: triggeredRules,
		Message:        fmt.Sprintf("Alert fired for rule %q.", rule.Name),
	}
	return mcp.NewToolResultStructured(result, result.Message), nil
}

// ruleEvaluationResult is the structured contract returned by
// report_rule_evaluation: processed confirms the evaluation was
// recorded, triggered reflects this call's verdict, and
// triggered_rules lists the rule ids that actually cleared the
// confidence/cooldown gate and fired an alert.
type ruleEvaluationResult struct {
	Processed      bool     `json:"processed"`
	Triggered      bool     `json:"triggered"`
	TriggeredRules []string `json:"triggered_rules"`
	Message        string   `json:"message"`
}
