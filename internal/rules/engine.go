package rules

import (
	"sync"
	"time"

	"github.com/technosupport/physical-mcp/internal/obslog"
)

// MinTriggerConfidence is the evaluation confidence floor below which
// a triggered=true verdict is still discarded — missing an event beats
// a false alert.
const MinTriggerConfidence = 0.75

// Engine evaluates watch rules against LLM output and turns qualifying
// evaluations into AlertEvents, gated by per-rule cooldown. Safe for
// concurrent use.
type Engine struct {
	mu    sync.RWMutex
	rules map[string]WatchRule
	log   *obslog.Logger
}

// NewEngine constructs an empty Engine.
func NewEngine() *Engine {
	return &Engine{rules: make(map[string]WatchRule), log: obslog.New("rules")}
}

// AddRule inserts or replaces a rule by ID.
func (e *Engine) AddRule(r WatchRule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules[r.ID] = r
}

// RemoveRule deletes a rule by ID, reporting whether it existed.
func (e *Engine) RemoveRule(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.rules[id]; !ok {
		return false
	}
	delete(e.rules, id)
	return true
}

// LoadRules replaces the entire rule set.
func (e *Engine) LoadRules(rs []WatchRule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = make(map[string]WatchRule, len(rs))
	for _, r := range rs {
		e.rules[r.ID] = r
	}
}

// ListRules returns every loaded rule, enabled or not.
func (e *Engine) ListRules() []WatchRule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]WatchRule, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, r)
	}
	return out
}

// GetRule looks up a single rule by ID.
func (e *Engine) GetRule(id string) (WatchRule, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.rules[id]
	return r, ok
}

// GetActiveRules returns enabled rules not currently in cooldown — the
// set that should actually be sent to the vision provider this cycle.
func (e *Engine) GetActiveRules() []WatchRule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	now := time.Now()
	active := make([]WatchRule, 0, len(e.rules))
	for _, r := range e.rules {
		if !r.Enabled || r.InCooldown(now) {
			continue
		}
		active = append(active, r)
	}
	return active
}

// HasActiveRules is a fast boolean check used by the sampler's cost gate.
func (e *Engine) HasActiveRules() bool {
	return len(e.GetActiveRules()) > 0
}

// ProcessEvaluations applies the confidence and cooldown gates to a
// batch of LLM evaluations and returns the AlertEvents that qualify,
// stamping last_triggered on each rule that fires.
func (e *Engine) ProcessEvaluations(evals []Evaluation, sceneSummary string, frameBase64 string) []AlertEvent {
	now := time.Now()
	var alerts []AlertEvent

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, ev := range evals {
		rule, ok := e.rules[ev.RuleID]
		name := "unknown"
		if ok {
			name = rule.Name
		}
		e.log.Printf("eval: rule=%q triggered=%v confidence=%.2f reason=%.100s", name, ev.Triggered, ev.Confidence, ev.Reasoning)

		if !ev.Triggered || ev.Confidence < MinTriggerConfidence {
			continue
		}
		if !ok || !rule.Enabled || rule.InCooldown(now) {
			continue
		}

		rule.LastTriggered = &now
		e.rules[rule.ID] = rule

		alerts = append(alerts, AlertEvent{
			Rule:         rule,
			Evaluation:   ev,
			SceneSummary: sceneSummary,
			FrameBase64:  frameBase64,
		})
	}
	return alerts
}

// ClientEvaluation is the loosely-typed shape the MCP
// report_rule_evaluation tool receives from a reasoning client —
// fields are coerced defensively since the caller is an LLM, not code.
type ClientEvaluation struct {
	RuleID     string
	Triggered  bool
	Confidence float64
	Reasoning  string
}

// ProcessClientEvaluations is ProcessEvaluations for client-submitted
// (rather than server-vision-provider) evaluations, stamping each with
// the current time before delegating.
func (e *Engine) ProcessClientEvaluations(evals []ClientEvaluation, sceneSummary, frameBase64 string) []AlertEvent {
	now := time.Now()
	parsed := make([]Evaluation, 0, len(evals))
	for _, ev := range evals {
		if ev.RuleID == "" {
			continue
		}
		parsed = append(parsed, Evaluation{
			RuleID:     ev.RuleID,
			Triggered:  ev.Triggered,
			Confidence: ev.Confidence,
			Reasoning:  ev.Reasoning,
			Timestamp:  now,
		})
	}
	return e.ProcessEvaluations(parsed, sceneSummary, frameBase64)
}
