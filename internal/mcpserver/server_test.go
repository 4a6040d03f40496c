package mcpserver

import (
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/technosupport/physical-mcp/internal/alertqueue"
	"github.com/technosupport/physical-mcp/internal/camhealth"
	"github.com/technosupport/physical-mcp/internal/eventbus"
	"github.com/technosupport/physical-mcp/internal/memory"
	"github.com/technosupport/physical-mcp/internal/notify"
	"github.com/technosupport/physical-mcp/internal/replay"
	"github.com/technosupport/physical-mcp/internal/rules"
	"github.com/technosupport/physical-mcp/internal/stats"
	"github.com/technosupport/physical-mcp/internal/vision"
	"github.com/technosupport/physical-mcp/internal/visionapi"
)

func newTestServer(t *testing.T) (*Server, *visionapi.Registry) {
	t.Helper()
	reg := visionapi.NewRegistry(10, nil)

	srv := New(Config{
		Registry: reg,
		Rules:    rules.NewEngine(),
		Alerts:   alertqueue.New(0, 0),
		Replay:   replay.New(0),
		Events:   eventbus.New(""),
		Notifier: notify.New(notify.Config{}),
		Memory:   memory.New(t.TempDir() + "/memory.md"),
		Stats:    stats.New(0, 0),
		Analyzer: vision.NewAnalyzer(nil, vision.DefaultThumbnailConfig()),
		Health:   camhealth.New(),
	})
	return srv, reg
}

func toolReq(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected first content block to be text, got %T", res.Content[0])
	return tc.Text
}

func isErrorResult(res *mcp.CallToolResult) bool {
	return res.IsError
}
