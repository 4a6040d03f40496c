package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAddGetRemoveRule(t *testing.T) {
	e := NewEngine()
	r := NewWatchRule("r1", "Person Detection", "a person is visible")
	e.AddRule(r)

	got, ok := e.GetRule("r1")
	assert.True(t, ok)
	assert.Equal(t, "Person Detection", got.Name)

	assert.True(t, e.RemoveRule("r1"))
	assert.False(t, e.RemoveRule("r1"))
}

func TestGetActiveRulesExcludesDisabledAndCooldown(t *testing.T) {
	e := NewEngine()

	enabled := NewWatchRule("a", "A", "cond a")
	disabled := NewWatchRule("b", "B", "cond b")
	disabled.Enabled = false
	recentlyTriggered := NewWatchRule("c", "C", "cond c")
	now := time.Now()
	recentlyTriggered.LastTriggered = &now
	recentlyTriggered.CooldownSeconds = 60

	e.LoadRules([]WatchRule{enabled, disabled, recentlyTriggered})

	active := e.GetActiveRules()
	assert.Len(t, active, 1)
	assert.Equal(t, "a", active[0].ID)
}

func TestProcessEvaluationsAppliesConfidenceGate(t *testing.T) {
	e := NewEngine()
	e.AddRule(NewWatchRule("r1", "Person", "a person is visible"))

	alerts := e.ProcessEvaluations([]Evaluation{
		{RuleID: "r1", Triggered: true, Confidence: 0.5, Reasoning: "maybe"},
	}, "scene", "")
	assert.Empty(t, alerts)

	alerts = e.ProcessEvaluations([]Evaluation{
		{RuleID: "r1", Triggered: true, Confidence: 0.9, Reasoning: "clear"},
	}, "scene", "")
	assert.Len(t, alerts, 1)
	assert.Equal(t, "r1", alerts[0].Rule.ID)

	rule, _ := e.GetRule("r1")
	assert.NotNil(t, rule.LastTriggered)
}

func TestProcessEvaluationsRespectsCooldownAfterFiring(t *testing.T) {
	e := NewEngine()
	r := NewWatchRule("r1", "Person", "a person is visible")
	r.CooldownSeconds = 300
	e.AddRule(r)

	first := e.ProcessEvaluations([]Evaluation{
		{RuleID: "r1", Triggered: true, Confidence: 0.9},
	}, "scene", "")
	assert.Len(t, first, 1)

	second := e.ProcessEvaluations([]Evaluation{
		{RuleID: "r1", Triggered: true, Confidence: 0.95},
	}, "scene", "")
	assert.Empty(t, second)
}

func TestProcessClientEvaluationsSkipsEmptyRuleID(t *testing.T) {
	e := NewEngine()
	e.AddRule(NewWatchRule("r1", "Person", "a person is visible"))

	alerts := e.ProcessClientEvaluations([]ClientEvaluation{
		{RuleID: "", Triggered: true, Confidence: 0.99},
		{RuleID: "r1", Triggered: true, Confidence: 0.99, Reasoning: "clear"},
	}, "scene", "")
	assert.Len(t, alerts, 1)
}
