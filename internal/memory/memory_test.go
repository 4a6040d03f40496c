package memory

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendEventAndGetRecentEvents(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "memory.md"))
	require.NoError(t, s.AppendEvent("person detected at front door"))
	require.NoError(t, s.AppendEvent("package delivered"))

	events := s.GetRecentEvents(10)
	require.Len(t, events, 2)
	assert.Contains(t, events[0], "person detected at front door")
	assert.Contains(t, events[1], "package delivered")
}

func TestSetRuleContextOverwritesPreviousEntry(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "memory.md"))
	require.NoError(t, s.SetRuleContext("r1", "first reason"))
	require.NoError(t, s.SetRuleContext("r1", "updated reason"))

	text := s.ReadAll()
	assert.Contains(t, text, "updated reason")
	assert.NotContains(t, text, "first reason")
}

func TestRemoveRuleContextDeletesEntry(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "memory.md"))
	require.NoError(t, s.SetRuleContext("r1", "some reason"))
	require.NoError(t, s.RemoveRuleContext("r1"))

	text := s.ReadAll()
	assert.NotContains(t, text, "some reason")
}

func TestRemoveRuleContextOnMissingFileIsNoop(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "never-created.md"))
	assert.NoError(t, s.RemoveRuleContext("r1"))
}

func TestSetPreferenceOverwritesSameKey(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "memory.md"))
	require.NoError(t, s.SetPreference("notify_style", "quiet"))
	require.NoError(t, s.SetPreference("notify_style", "verbose"))

	text := s.ReadAll()
	assert.Contains(t, text, "verbose")
	assert.NotContains(t, text, "quiet")
}

func TestEventLogTrimsToMax(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "memory.md"))
	for i := 0; i < maxEvents+10; i++ {
		require.NoError(t, s.AppendEvent("event"))
	}
	assert.Len(t, s.GetRecentEvents(0), maxEvents)
}
