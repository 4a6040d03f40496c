package mcpserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadMemoryEmpty(t *testing.T) {
	s, _ := newTestServer(t)
	res, err := s.handleReadMemory(t.Context(), toolReq(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "empty")
}

func TestSaveMemoryEventThenRead(t *testing.T) {
	s, _ := newTestServer(t)
	res, err := s.handleSaveMemory(t.Context(), toolReq(map[string]any{
		"kind":    "event",
		"content": "the porch light was left on all night",
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	readRes, err := s.handleReadMemory(t.Context(), toolReq(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, readRes), "porch light was left on")
}

func TestSaveMemoryRuleContextRequiresKey(t *testing.T) {
	s, _ := newTestServer(t)
	res, err := s.handleSaveMemory(t.Context(), toolReq(map[string]any{
		"kind":    "rule_context",
		"content": "added after a package theft last week",
	}))
	require.NoError(t, err)
	assert.True(t, isErrorResult(res))
}

func TestSaveMemoryPreference(t *testing.T) {
	s, _ := newTestServer(t)
	res, err := s.handleSaveMemory(t.Context(), toolReq(map[string]any{
		"kind":    "preference",
		"key":     "alert_quiet_hours",
		"content": "22:00-07:00",
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	readRes, err := s.handleReadMemory(t.Context(), toolReq(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, readRes), "alert_quiet_hours")
}

func TestSaveMemoryUnknownKind(t *testing.T) {
	s, _ := newTestServer(t)
	res, err := s.handleSaveMemory(t.Context(), toolReq(map[string]any{
		"kind":    "bogus",
		"content": "x",
	}))
	require.NoError(t, err)
	assert.True(t, isErrorResult(res))
}
