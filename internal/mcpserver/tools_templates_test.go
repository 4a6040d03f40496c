package mcpserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListRuleTemplatesAll(t *testing.T) {
	s, _ := newTestServer(t)
	res, err := s.handleListRuleTemplates(t.Context(), toolReq(nil))
	require.NoError(t, err)
	out := resultText(t, res)
	assert.Contains(t, out, "person-detection")
	assert.Contains(t, out, "crowding-alert")
}

func TestListRuleTemplatesByCategory(t *testing.T) {
	s, _ := newTestServer(t)
	res, err := s.handleListRuleTemplates(t.Context(), toolReq(map[string]any{"category": "pets"}))
	require.NoError(t, err)
	out := resultText(t, res)
	assert.Contains(t, out, "pet-on-furniture")
	assert.Contains(t, out, "pet-at-door")
	assert.NotContains(t, out, "baby-monitor")
}

func TestListRuleTemplatesUnknownCategory(t *testing.T) {
	s, _ := newTestServer(t)
	res, err := s.handleListRuleTemplates(t.Context(), toolReq(map[string]any{"category": "nonexistent"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "No templates found")
}

func TestCreateRuleFromTemplateUnknown(t *testing.T) {
	s, _ := newTestServer(t)
	res, err := s.handleCreateRuleFromTemplate(t.Context(), toolReq(map[string]any{"template_id": "nope"}))
	require.NoError(t, err)
	assert.True(t, isErrorResult(res))
}

func TestCreateRuleFromTemplateSucceeds(t *testing.T) {
	s, reg := newTestServer(t)
	_, err := reg.AddCloudCamera("cloud:a", "A")
	require.NoError(t, err)

	res, err := s.handleCreateRuleFromTemplate(t.Context(), toolReq(map[string]any{
		"template_id": "person-at-door",
		"camera_id":   "cloud:a",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	rules := s.cfg.Rules.ListRules()
	require.Len(t, rules, 1)
	assert.Equal(t, "Person at the Door", rules[0].Name)
	assert.Equal(t, "cloud:a", rules[0].CameraID)
	assert.Equal(t, 30, rules[0].CooldownSeconds)
}

func TestCreateRuleFromTemplateNameOverride(t *testing.T) {
	s, reg := newTestServer(t)
	_, err := reg.AddCloudCamera("cloud:a", "A")
	require.NoError(t, err)

	res, err := s.handleCreateRuleFromTemplate(t.Context(), toolReq(map[string]any{
		"template_id":   "motion-alert",
		"camera_id":     "cloud:a",
		"name_override": "Garage Motion",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	rules := s.cfg.Rules.ListRules()
	require.Len(t, rules, 1)
	assert.Equal(t, "Garage Motion", rules[0].Name)
}
