package mcpserver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// analysisErrorBackoff mirrors perception.Loop's own backoff window for
// a failed analysis call, so an on-demand analyze_now failure holds the
// camera off the normal sampling loop for the same cooldown.
const analysisErrorBackoff = 30 * time.Second

func (s *Server) registerSceneTools() {
	s.mcp.AddTool(mcp.NewTool("get_scene_state",
		mcp.WithDescription("Get the current understood scene for a camera: summary, detected objects, people count."),
		mcp.WithString("camera_id", mcp.Description("Camera to inspect. Defaults to the first configured camera.")),
	), s.handleGetSceneState)

	s.mcp.AddTool(mcp.NewTool("get_recent_changes",
		mcp.WithDescription("Get the recent change log for a camera (what has changed in the scene over time)."),
		mcp.WithString("camera_id", mcp.Description("Camera to inspect. Defaults to the first configured camera.")),
		mcp.WithNumber("minutes", mcp.Description("How far back to look, in minutes. 0 returns the entire retained log.")),
	), s.handleGetRecentChanges)

	s.mcp.AddTool(mcp.NewTool("analyze_now",
		mcp.WithDescription("Force an immediate vision-model analysis of a camera's current frame, bypassing the normal sampling cadence."),
		mcp.WithString("camera_id", mcp.Description("Camera to analyze. Defaults to the first configured camera.")),
		mcp.WithString("question", mcp.Description("Optional specific question to ask about the scene.")),
	), s.handleAnalyzeNow)
}

func (s *Server) handleGetSceneState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cameraID := req.GetString("camera_id", "")
	entry := s.getCamera(cameraID)
	if entry == nil {
		return mcp.NewToolResultError("no camera found"), nil
	}

	snap := entry.Scene.Current()
	label := camLabel(entry.Name, entry.ID)
	if snap.Summary == "" {
		return mcp.NewToolResultText(fmt.Sprintf("%s: no scene analysis yet.", label)), nil
	}

	out := fmt.Sprintf("%s scene: %s\n", label, snap.Summary)
	if len(snap.Objects) > 0 {
		out += fmt.Sprintf("Objects: %s\n", strings.Join(snap.Objects, ", "))
	}
	out += fmt.Sprintf("People count: %d\n", snap.PeopleCount)
	out += fmt.Sprintf("Last updated: %s\n", snap.UpdatedAt.Format("2006-01-02 15:04:05"))
	return mcp.NewToolResultText(out), nil
}

func (s *Server) handleGetRecentChanges(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cameraID := req.GetString("camera_id", "")
	entry := s.getCamera(cameraID)
	if entry == nil {
		return mcp.NewToolResultError("no camera found"), nil
	}

	minutes := int(req.GetFloat("minutes", 0))
	changes := entry.Scene.GetChangeLog(minutes)
	if len(changes) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No recorded changes for %s.", camLabel(entry.Name, entry.ID))), nil
	}

	out := fmt.Sprintf("Recent changes for %s:\n", camLabel(entry.Name, entry.ID))
	for _, c := range changes {
		out += fmt.Sprintf("- %s: %s\n", c.Timestamp.Format("15:04:05"), c.Description)
	}
	return mcp.NewToolResultText(out), nil
}

func (s *Server) handleAnalyzeNow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cameraID := req.GetString("camera_id", "")
	question := req.GetString("question", "")

	entry := s.getCamera(cameraID)
	if entry == nil {
		return mcp.NewToolResultError("no camera found"), nil
	}

	if !s.cfg.Analyzer.HasProvider() {
		s.emitFallbackWarning(entry.ID)
		return mcp.NewToolResultText(
			"No server-side vision provider is configured, so analyze_now can't run here. " +
				"Use capture_frame to get the current image and reason over it yourself, then " +
				"call report_rule_evaluation with your findings.",
		), nil
	}

	f, err := entry.Source.GrabFrame(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to capture from %s: %v", camLabel(entry.Name, entry.ID), err)), nil
	}

	prev := entry.Scene.Current()
	result, err := s.cfg.Analyzer.AnalyzeScene(ctx, f, prev, question)
	if err != nil {
		s.cfg.Health.RecordAnalysisError(entry.ID, entry.Name, err, time.Now().Add(analysisErrorBackoff))
		return mcp.NewToolResultError(fmt.Sprintf("analysis failed: %v", err)), nil
	}
	s.cfg.Health.RecordAnalysisSuccess(entry.ID, entry.Name)
	s.cfg.Stats.RecordAnalysis()

	if result.Summary == "" {
		// The provider call timed out (internal/vision.IsTimeoutError) —
		// an empty scene, not an error; keep whatever state was current.
		return mcp.NewToolResultText(fmt.Sprintf(
			"Analysis for %s timed out; no new scene data, previous state retained.",
			camLabel(entry.Name, entry.ID),
		)), nil
	}

	entry.Scene.Update(result.Summary, result.Objects, result.PeopleCount, result.NotableChanges)
	s.emitLog("info", "analysis_complete", entry.ID, "", fmt.Sprintf("on-demand analysis for %s: %s", camLabel(entry.Name, entry.ID), result.Summary))

	return mcp.NewToolResultText(fmt.Sprintf("Analysis for %s: %s", camLabel(entry.Name, entry.ID), result.Summary)), nil
}

func (s *Server) emitFallbackWarning(cameraID string) {
	s.emitLog("warning", "fallback_mode", cameraID, "",
		"no server-side vision provider configured; relying on client-side reasoning via capture_frame/report_rule_evaluation")
}
