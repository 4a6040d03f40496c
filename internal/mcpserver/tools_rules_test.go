package mcpserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddWatchRuleMissingFieldsErrors(t *testing.T) {
	s, _ := newTestServer(t)
	res, err := s.handleAddWatchRule(t.Context(), toolReq(map[string]any{"name": "Front door"}))
	require.NoError(t, err)
	assert.True(t, isErrorResult(res))
}

func TestAddWatchRuleThenList(t *testing.T) {
	s, reg := newTestServer(t)
	_, err := reg.AddCloudCamera("cloud:a", "A")
	require.NoError(t, err)

	res, err := s.handleAddWatchRule(t.Context(), toolReq(map[string]any{
		"name":      "Front door",
		"condition": "a person is at the front door",
		"camera_id": "cloud:a",
		"priority":  "high",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), "Front door")

	rules := s.cfg.Rules.ListRules()
	require.Len(t, rules, 1)
	assert.Equal(t, "high", string(rules[0].Priority))
	assert.Equal(t, "cloud:a", rules[0].CameraID)

	listRes, err := s.handleListWatchRules(t.Context(), toolReq(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, listRes), "Front door")
}

func TestRemoveWatchRuleUnknown(t *testing.T) {
	s, _ := newTestServer(t)
	res, err := s.handleRemoveWatchRule(t.Context(), toolReq(map[string]any{"rule_id": "nope"}))
	require.NoError(t, err)
	assert.True(t, isErrorResult(res))
}

func TestRemoveWatchRuleExisting(t *testing.T) {
	s, reg := newTestServer(t)
	_, err := reg.AddCloudCamera("cloud:a", "A")
	require.NoError(t, err)

	addRes, err := s.handleAddWatchRule(t.Context(), toolReq(map[string]any{
		"name":      "Motion",
		"condition": "anything moved",
		"camera_id": "cloud:a",
	}))
	require.NoError(t, err)
	require.False(t, addRes.IsError)

	rules := s.cfg.Rules.ListRules()
	require.Len(t, rules, 1)
	ruleID := rules[0].ID

	res, err := s.handleRemoveWatchRule(t.Context(), toolReq(map[string]any{"rule_id": ruleID}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Empty(t, s.cfg.Rules.ListRules())
}

func TestListWatchRulesEmpty(t *testing.T) {
	s, _ := newTestServer(t)
	res, err := s.handleListWatchRules(t.Context(), toolReq(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "No watch rules configured")
}
