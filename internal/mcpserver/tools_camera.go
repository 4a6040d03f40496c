package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/technosupport/physical-mcp/internal/camhealth"
)

func (s *Server) registerCameraTools() {
	s.mcp.AddTool(mcp.NewTool("capture_frame",
		mcp.WithDescription("Capture the current frame from a camera and return it as an image, with scene context."),
		mcp.WithString("camera_id", mcp.Description("Camera to capture from. Defaults to the first configured camera.")),
	), s.handleCaptureFrame)

	s.mcp.AddTool(mcp.NewTool("list_cameras",
		mcp.WithDescription("List every configured camera, its status, and any detected-but-unconfigured hardware."),
	), s.handleListCameras)

	s.mcp.AddTool(mcp.NewTool("get_camera_status",
		mcp.WithDescription("Get detailed capture/analysis health for one camera."),
		mcp.WithString("camera_id", mcp.Description("Camera to inspect. Defaults to the first configured camera.")),
	), s.handleGetCameraStatus)
}

func (s *Server) handleCaptureFrame(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cameraID := req.GetString("camera_id", "")
	entry := s.getCamera(cameraID)
	if entry == nil {
		return mcp.NewToolResultError("no camera found; configure a camera before capturing"), nil
	}

	f, ok := entry.Buffer.Latest()
	if !ok {
		var err error
		f, err = entry.Source.GrabFrame(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to capture from %s: %v", camLabel(entry.Name, entry.ID), err)), nil
		}
	}

	thumb, err := f.Thumbnail(1024, 80)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode frame: %v", err)), nil
	}

	snap := entry.Scene.Current()
	label := camLabel(entry.Name, entry.ID)
	s.emitLog("info", "frame_captured", entry.ID, "", fmt.Sprintf("captured frame from %s", label))

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(fmt.Sprintf("Captured frame from %s. Scene: %s", label, describeScene(snap.Summary))),
			mcp.NewImageContent(thumb, "image/jpeg"),
		},
	}, nil
}

func describeScene(summary string) string {
	if summary == "" {
		return "no scene analysis yet"
	}
	return summary
}

func (s *Server) handleListCameras(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries := s.cfg.Registry.List()
	if len(entries) == 0 {
		msg := "No cameras configured."
		if s.cfg.HardwareEnumerator != nil {
			if hw := s.cfg.HardwareEnumerator(); len(hw) > 0 {
				msg += fmt.Sprintf(" Detected hardware not yet configured: %v", hw)
			}
		}
		return mcp.NewToolResultText(msg), nil
	}

	out := "Configured cameras:\n"
	for _, e := range entries {
		h := s.cfg.Health.Get(e.ID)
		out += fmt.Sprintf("- %s: type=%s status=%s\n", camLabel(e.Name, e.ID), e.Kind, h.Status)
	}
	if s.cfg.HardwareEnumerator != nil {
		if hw := s.cfg.HardwareEnumerator(); len(hw) > 0 {
			out += fmt.Sprintf("\nAdditional hardware detected but not configured: %v\n", hw)
		}
	}
	return mcp.NewToolResultText(out), nil
}

func (s *Server) handleGetCameraStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cameraID := req.GetString("camera_id", "")
	entry := s.getCamera(cameraID)
	if entry == nil {
		return mcp.NewToolResultError("no camera found"), nil
	}

	h := s.cfg.Health.Get(entry.ID)
	out := fmt.Sprintf("Camera %s status: %s\n", camLabel(entry.Name, entry.ID), h.Status)
	out += fmt.Sprintf("Consecutive errors: %d\n", h.ConsecutiveErrors)
	if h.LastSuccessAt != nil {
		out += fmt.Sprintf("Last successful analysis: %s\n", h.LastSuccessAt.Format("2006-01-02 15:04:05"))
	}
	if h.LastFrameAt != nil {
		out += fmt.Sprintf("Last frame received: %s\n", h.LastFrameAt.Format("2006-01-02 15:04:05"))
	}
	if h.LastError != "" {
		out += fmt.Sprintf("Last error: %s\n", h.LastError)
	}
	if h.BackoffUntil != nil {
		out += fmt.Sprintf("Backing off until: %s\n", h.BackoffUntil.Format("2006-01-02 15:04:05"))
	}
	if h.Status == camhealth.StatusUnknown {
		out += h.Message + "\n"
	}
	return mcp.NewToolResultText(out), nil
}
