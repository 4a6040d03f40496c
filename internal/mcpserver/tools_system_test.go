package mcpserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSystemStatsNoProvider(t *testing.T) {
	s, _ := newTestServer(t)
	res, err := s.handleGetSystemStats(t.Context(), toolReq(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "client-side reasoning mode")
}

func TestGetSystemStatsIncludesRecentActivity(t *testing.T) {
	s, _ := newTestServer(t)
	s.emitLog("info", "test_event", "cloud:a", "", "something happened")

	res, err := s.handleGetSystemStats(t.Context(), toolReq(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "something happened")
}

func TestGetCameraHealthEmpty(t *testing.T) {
	s, _ := newTestServer(t)
	res, err := s.handleGetCameraHealth(t.Context(), toolReq(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "No health data")
}

func TestGetCameraHealthReportsTrackedCameras(t *testing.T) {
	s, _ := newTestServer(t)
	s.cfg.Health.RecordFrame("cloud:a", "A")

	res, err := s.handleGetCameraHealth(t.Context(), toolReq(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "cloud:a")
}

func TestConfigureProviderEmptyClears(t *testing.T) {
	s, _ := newTestServer(t)
	res, err := s.handleConfigureProvider(t.Context(), toolReq(nil))
	require.NoError(t, err)
	assert.False(t, s.cfg.Analyzer.HasProvider())
	assert.Contains(t, resultText(t, res), "cleared")
}

func TestConfigureProviderUnknownErrors(t *testing.T) {
	s, _ := newTestServer(t)
	res, err := s.handleConfigureProvider(t.Context(), toolReq(map[string]any{
		"provider": "anthropic",
		"api_key":  "",
	}))
	require.NoError(t, err)
	assert.True(t, isErrorResult(res))
}

func TestConfigureProviderSucceeds(t *testing.T) {
	s, _ := newTestServer(t)
	res, err := s.handleConfigureProvider(t.Context(), toolReq(map[string]any{
		"provider": "anthropic",
		"api_key":  "sk-test-key",
		"model":    "claude-3-5-sonnet",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.True(t, s.cfg.Analyzer.HasProvider())
	assert.Equal(t, "claude-3-5-sonnet", s.cfg.Analyzer.Info().Model)
}
