package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerMemoryTools() {
	s.mcp.AddTool(mcp.NewTool("read_memory",
		mcp.WithDescription("Read the persistent cross-session memory file: past events, rule context, and learned preferences."),
	), s.handleReadMemory)

	s.mcp.AddTool(mcp.NewTool("save_memory",
		mcp.WithDescription("Save a note to persistent cross-session memory: an event, a rule's context, or a learned preference."),
		mcp.WithString("kind", mcp.Required(), mcp.Description("event|rule_context|preference")),
		mcp.WithString("content", mcp.Required(), mcp.Description("The text to save. For rule_context and preference this is the context/value.")),
		mcp.WithString("key", mcp.Description("For rule_context, the rule id. For preference, the preference key.")),
	), s.handleSaveMemory)
}

func (s *Server) handleReadMemory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.cfg.Memory == nil {
		return mcp.NewToolResultText("No memory store configured."), nil
	}
	content := s.cfg.Memory.ReadAll()
	if content == "" {
		return mcp.NewToolResultText("Memory is empty."), nil
	}
	return mcp.NewToolResultText(content), nil
}

func (s *Server) handleSaveMemory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.cfg.Memory == nil {
		return mcp.NewToolResultError("no memory store configured"), nil
	}

	kind := req.GetString("kind", "")
	content := req.GetString("content", "")
	key := req.GetString("key", "")
	if content == "" {
		return mcp.NewToolResultError("content is required"), nil
	}

	var err error
	switch kind {
	case "event":
		err = s.cfg.Memory.AppendEvent(content)
	case "rule_context":
		if key == "" {
			return mcp.NewToolResultError("key (rule id) is required for rule_context"), nil
		}
		err = s.cfg.Memory.SetRuleContext(key, content)
	case "preference":
		if key == "" {
			return mcp.NewToolResultError("key is required for preference"), nil
		}
		err = s.cfg.Memory.SetPreference(key, content)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown kind %q; expected event, rule_context, or preference", kind)), nil
	}

	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save memory: %v", err)), nil
	}
	return mcp.NewToolResultText("Saved."), nil
}
