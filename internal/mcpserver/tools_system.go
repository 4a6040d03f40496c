package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/technosupport/physical-mcp/internal/vision"
)

func (s *Server) registerSystemTools() {
	s.mcp.AddTool(mcp.NewTool("get_system_stats",
		mcp.WithDescription("Get daemon-wide statistics: analysis counts, estimated cost, alert counts, uptime."),
	), s.handleGetSystemStats)

	s.mcp.AddTool(mcp.NewTool("get_camera_health",
		mcp.WithDescription("Get health status for every configured camera at once."),
	), s.handleGetCameraHealth)

	s.mcp.AddTool(mcp.NewTool("configure_provider",
		mcp.WithDescription("Configure (or clear) the server-side vision provider used for automatic scene analysis and rule evaluation."),
		mcp.WithString("provider", mcp.Description("anthropic|openai|openai-compatible|google. Empty clears the provider, switching to client-side reasoning.")),
		mcp.WithString("api_key", mcp.Description("API key for the provider.")),
		mcp.WithString("model", mcp.Description("Model name/id.")),
		mcp.WithString("base_url", mcp.Description("Base URL override, for openai-compatible endpoints.")),
	), s.handleConfigureProvider)
}

func (s *Server) handleGetSystemStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sum := s.cfg.Stats.Summary()
	info := s.cfg.Analyzer.Info()

	out := fmt.Sprintf("Vision provider: %s\n", providerLabel(info))
	out += fmt.Sprintf("Total analyses: %d (today: %d)\n", sum.TotalAnalyses, sum.TodayAnalyses)
	out += fmt.Sprintf("Estimated cost today: $%.4f\n", sum.EstimatedTodayCostUSD)
	if sum.DailyBudgetUSD > 0 {
		out += fmt.Sprintf("Daily budget: $%.2f\n", sum.DailyBudgetUSD)
		if sum.BudgetRemainingPct != nil {
			out += fmt.Sprintf("Budget remaining: %.1f%%\n", *sum.BudgetRemainingPct)
		}
	}
	out += fmt.Sprintf("Analyses this hour: %d", sum.AnalysesThisHour)
	if sum.MaxPerHour > 0 {
		out += fmt.Sprintf(" / %d", sum.MaxPerHour)
	}
	out += "\n"
	out += fmt.Sprintf("Total alerts fired: %d\n", sum.TotalAlerts)
	out += fmt.Sprintf("Uptime: %.0fs\n", sum.UptimeSeconds)

	if recent := s.logs.drain(); len(recent) > 0 {
		out += "\nRecent activity:\n"
		for _, e := range recent[max(0, len(recent)-5):] {
			out += "  " + e.Formatted + "\n"
		}
	}
	return mcp.NewToolResultText(out), nil
}

func providerLabel(info vision.ProviderInfo) string {
	if !info.Configured {
		return "none configured (client-side reasoning mode)"
	}
	return fmt.Sprintf("%s (%s)", info.Provider, info.Model)
}

func (s *Server) handleGetCameraHealth(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	all := s.cfg.Health.All()
	if len(all) == 0 {
		return mcp.NewToolResultText("No health data yet for any camera."), nil
	}

	out := ""
	for id, h := range all {
		out += fmt.Sprintf("- %s: status=%s, consecutive_errors=%d", id, h.Status, h.ConsecutiveErrors)
		if h.LastError != "" {
			out += fmt.Sprintf(", last_error=%q", h.LastError)
		}
		out += "\n"
	}
	return mcp.NewToolResultText(out), nil
}

// configureProviderResult mirrors the reference daemon's
// _apply_provider_configuration contract: status/provider/model/
// reasoning_mode always report the post-call state, and
// fallback_warning_emitted/fallback_warning_reason record whether this
// call itself caused a server->client transition (had_provider was
// true and the new provider could not be built).
type configureProviderResult struct {
	Status                 string `json:"status"`
	Provider               string `json:"provider"`
	Model                  string `json:"model"`
	ReasoningMode          string `json:"reasoning_mode"`
	FallbackWarningEmitted bool   `json:"fallback_warning_emitted"`
	FallbackWarningReason  string `json:"fallback_warning_reason"`
}

func (s *Server) handleConfigureProvider(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	provider := req.GetString("provider", "")
	apiKey := req.GetString("api_key", "")
	model := req.GetString("model", "")
	baseURL := req.GetString("base_url", "")

	hadProvider := s.cfg.Analyzer.HasProvider()

	var p vision.Provider
	if provider != "" {
		p = vision.CreateProvider(vision.ReasoningConfig{
			Provider: provider,
			APIKey:   apiKey,
			Model:    model,
			BaseURL:  baseURL,
		})
		if p == nil {
			return mcp.NewToolResultError(fmt.Sprintf("could not configure provider %q: missing or unrecognized provider/api_key", provider)), nil
		}
	}

	s.cfg.Analyzer.SetProvider(p)

	switchedToFallback := hadProvider && p == nil
	fallbackReason := ""
	if switchedToFallback {
		fallbackReason = "runtime_switch"
		s.emitFallbackWarning("")
	}

	result := configureProviderResult{
		Status:                 "configured",
		Provider:               provider,
		FallbackWarningEmitted: switchedToFallback,
		FallbackWarningReason:  fallbackReason,
	}
	if result.Provider == "" {
		result.Provider = "none"
	}
	if p != nil {
		result.Model = p.ModelName()
		result.ReasoningMode = "server"
		s.emitLog("info", "provider_configured", "", "", fmt.Sprintf("vision provider set to %s (%s)", provider, model))
	} else {
		result.Model = "none"
		result.ReasoningMode = "client"
		s.emitLog("info", "provider_configured", "", "", "vision provider cleared; switching to client-side reasoning")
	}

	var text string
	if p != nil {
		text = fmt.Sprintf("Vision provider configured: %s (%s).", provider, model)
	} else {
		text = "Vision provider cleared. Falling back to client-side reasoning via capture_frame/report_rule_evaluation."
	}
	if switchedToFallback {
		text += " A fallback warning was emitted."
	}
	return mcp.NewToolResultStructured(result, text), nil
}
