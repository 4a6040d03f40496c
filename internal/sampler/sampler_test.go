package sampler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/technosupport/physical-mcp/internal/changedetect"
)

func fixedCfg() Config {
	return Config{
		HeartbeatInterval: 300 * time.Second,
		DebounceSeconds:   3 * time.Second,
		CooldownSeconds:   10 * time.Second,
	}
}

func TestDecideNoActiveRulesNeverFires(t *testing.T) {
	s := New(changedetect.New(changedetect.DefaultThresholds()), fixedCfg())
	now := time.Unix(1000, 0)
	fired := s.decide(changedetect.Result{Level: changedetect.LevelMajor}, now, false)
	assert.False(t, fired)
}

func TestDecideCooldownBlocksImmediateRefire(t *testing.T) {
	s := New(changedetect.New(changedetect.DefaultThresholds()), fixedCfg())
	now := time.Unix(1000, 0)
	assert.True(t, s.decide(changedetect.Result{Level: changedetect.LevelMajor}, now, true))

	again := now.Add(2 * time.Second)
	assert.False(t, s.decide(changedetect.Result{Level: changedetect.LevelMajor}, again, true))
}

func TestDecideHeartbeatFiresOnCalmFrameAfterInterval(t *testing.T) {
	s := New(changedetect.New(changedetect.DefaultThresholds()), fixedCfg())
	now := time.Unix(1000, 0)
	assert.True(t, s.decide(changedetect.Result{Level: changedetect.LevelMajor}, now, true))

	later := now.Add(301 * time.Second)
	assert.True(t, s.decide(changedetect.Result{Level: changedetect.LevelNone}, later, true))
}

func TestDecideModeratePendingFiresAfterDebounceEvenOnCalmFrame(t *testing.T) {
	s := New(changedetect.New(changedetect.DefaultThresholds()), fixedCfg())
	base := time.Unix(1000, 0)

	// Prime lastAnalysis so cooldown isn't the blocker.
	s.lastAnalysis = base.Add(-1 * time.Hour)

	assert.False(t, s.decide(changedetect.Result{Level: changedetect.LevelModerate}, base, true))
	assert.True(t, s.pendingModerate)

	// A brief action: the very next tick reads calm (NONE), but the
	// debounce window has not elapsed yet.
	tooSoon := base.Add(1 * time.Second)
	assert.False(t, s.decide(changedetect.Result{Level: changedetect.LevelNone}, tooSoon, true))

	// Once the debounce window elapses, the pending spike fires even
	// though the current frame is calm.
	afterDebounce := base.Add(4 * time.Second)
	assert.True(t, s.decide(changedetect.Result{Level: changedetect.LevelNone}, afterDebounce, true))
	assert.False(t, s.pendingModerate)
}

func TestDecideMinorPendingUsesLongerDebounce(t *testing.T) {
	s := New(changedetect.New(changedetect.DefaultThresholds()), fixedCfg())
	base := time.Unix(2000, 0)
	s.lastAnalysis = base.Add(-1 * time.Hour)

	assert.False(t, s.decide(changedetect.Result{Level: changedetect.LevelMinor}, base, true))
	assert.True(t, s.pendingMinor)

	// MODERATE debounce (3s) would have elapsed, but MINOR needs 4.5s.
	mid := base.Add(3500 * time.Millisecond)
	assert.False(t, s.decide(changedetect.Result{Level: changedetect.LevelNone}, mid, true))

	after := base.Add(4600 * time.Millisecond)
	assert.True(t, s.decide(changedetect.Result{Level: changedetect.LevelNone}, after, true))
}

func TestDecideModerateSupersedesPendingMinor(t *testing.T) {
	s := New(changedetect.New(changedetect.DefaultThresholds()), fixedCfg())
	base := time.Unix(3000, 0)
	s.lastAnalysis = base.Add(-1 * time.Hour)

	assert.False(t, s.decide(changedetect.Result{Level: changedetect.LevelMinor}, base, true))
	assert.True(t, s.pendingMinor)

	assert.False(t, s.decide(changedetect.Result{Level: changedetect.LevelModerate}, base.Add(1*time.Second), true))
	assert.True(t, s.pendingModerate)
	assert.False(t, s.pendingMinor)
}
