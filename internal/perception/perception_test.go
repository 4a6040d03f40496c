package perception

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technosupport/physical-mcp/internal/alertqueue"
	"github.com/technosupport/physical-mcp/internal/camhealth"
	"github.com/technosupport/physical-mcp/internal/changedetect"
	"github.com/technosupport/physical-mcp/internal/eventbus"
	"github.com/technosupport/physical-mcp/internal/frame"
	"github.com/technosupport/physical-mcp/internal/framebuffer"
	"github.com/technosupport/physical-mcp/internal/notify"
	"github.com/technosupport/physical-mcp/internal/replay"
	"github.com/technosupport/physical-mcp/internal/rules"
	"github.com/technosupport/physical-mcp/internal/sampler"
	"github.com/technosupport/physical-mcp/internal/scene"
	"github.com/technosupport/physical-mcp/internal/stats"
	"github.com/technosupport/physical-mcp/internal/vision"
)

// fakeCamera yields a fixed sequence of solid-color frames, one per GrabFrame call.
type fakeCamera struct {
	mu  sync.Mutex
	n   uint64
	err error
}

func (c *fakeCamera) Open(ctx context.Context) error  { return nil }
func (c *fakeCamera) Close(ctx context.Context) error { return nil }
func (c *fakeCamera) IsOpen() bool                    { return true }
func (c *fakeCamera) SourceID() string                { return "cam1" }
func (c *fakeCamera) GrabFrame(ctx context.Context) (frame.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return frame.Frame{}, c.err
	}
	c.n++
	img := image.NewGray(image.Rect(0, 0, 16, 16))
	return frame.New(img, "cam1", c.n, time.Now()), nil
}

type fakeProvider struct {
	resp map[string]any
	err  error
}

func (p *fakeProvider) AnalyzeImage(ctx context.Context, imageB64, prompt string) (string, error) {
	return "", p.err
}
func (p *fakeProvider) AnalyzeImageJSON(ctx context.Context, imageB64, prompt string) (map[string]any, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.resp, nil
}
func (p *fakeProvider) ProviderName() string { return "fake" }
func (p *fakeProvider) ModelName() string    { return "fake-model" }

func activeRule() rules.WatchRule {
	r := rules.NewWatchRule("r1", "Someone at the door", "a person is visible near the door")
	return r
}

func newTestDeps(t *testing.T, analyzer *vision.Analyzer) Deps {
	t.Helper()
	engine := rules.NewEngine()
	engine.AddRule(activeRule())

	return Deps{
		CameraID:     "cam1",
		CameraName:   "Front Door",
		Camera:       &fakeCamera{},
		Buffer:       framebuffer.New(10),
		Sampler:      sampler.New(changedetect.New(changedetect.DefaultThresholds()), sampler.Config{HeartbeatInterval: time.Hour, DebounceSeconds: 0, CooldownSeconds: 0}),
		Analyzer:     analyzer,
		Scene:        scene.New(0),
		Rules:        engine,
		Stats:        stats.New(0, 120),
		Alerts:       alertqueue.New(0, 0),
		Notifier:     notify.New(notify.Config{}),
		Events:       eventbus.New(""),
		Replay:       replay.New(0),
		Health:       camhealth.New(),
		CaptureFPS:   2,
		ImageQuality: 75,
	}
}

func TestTickServerSideRecordsAnalysisOnSuccess(t *testing.T) {
	p := &fakeProvider{resp: map[string]any{
		"scene": map[string]any{"summary": "a calm entryway", "people_count": float64(0)},
		"evaluations": []any{
			map[string]any{"rule_id": "r1", "triggered": true, "confidence": 0.95, "reasoning": "a person is at the door"},
		},
	}}
	analyzer := vision.NewAnalyzer(p, vision.DefaultThumbnailConfig())
	deps := newTestDeps(t, analyzer)
	loop := New(deps)

	loop.tick(context.Background())

	assert.Equal(t, 1, deps.Stats.Summary().TotalAnalyses)
	assert.Equal(t, 1, deps.Stats.Summary().TotalAlerts)
	assert.Equal(t, "a calm entryway", deps.Scene.Current().Summary)
	assert.Equal(t, camhealth.StatusRunning, deps.Health.Get("cam1").Status)

	entries := deps.Replay.Recent(0)
	require.Len(t, entries, 1)
	assert.Equal(t, "watch_rule_triggered", entries[0].EventType)
}

func TestTickServerSideBacksOffOnError(t *testing.T) {
	p := &fakeProvider{err: errors.New("429 rate limited")}
	analyzer := vision.NewAnalyzer(p, vision.DefaultThumbnailConfig())
	deps := newTestDeps(t, analyzer)
	loop := New(deps)

	loop.tick(context.Background())

	assert.Equal(t, 1, loop.consecutiveErrors)
	assert.True(t, loop.backoffUntil.After(time.Now()))
	assert.Equal(t, camhealth.StatusDegraded, deps.Health.Get("cam1").Status)

	entries := deps.Replay.Recent(0)
	require.Len(t, entries, 1)
	assert.Equal(t, "provider_error", entries[0].EventType)

	// A second tick immediately after should short-circuit on the
	// still-active backoff window rather than calling the provider again.
	loop.tick(context.Background())
	assert.Equal(t, 1, loop.consecutiveErrors)
}

func TestTickClientSideQueuesPendingAlertWithNoProvider(t *testing.T) {
	deps := newTestDeps(t, vision.NewAnalyzer(nil, vision.DefaultThumbnailConfig()))
	loop := New(deps)

	loop.tick(context.Background())

	assert.True(t, deps.Alerts.HasPending())
	alerts := deps.Alerts.PopAll()
	require.Len(t, alerts, 1)
	assert.Equal(t, "cam1", alerts[0].CameraID)
	assert.Equal(t, "major", alerts[0].ChangeLevel) // first frame is always "Initial frame" (major)
}

type fakeEvaluator struct {
	evals []rules.ClientEvaluation
	ok    bool
	calls int32
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, fr frame.Frame, change changedetect.Result, activeRules []rules.WatchRule, sceneContext string) ([]rules.ClientEvaluation, bool) {
	atomic.AddInt32(&f.calls, 1)
	return f.evals, f.ok
}

func TestTickClientSideUsesSamplingEvaluatorWhenAvailable(t *testing.T) {
	deps := newTestDeps(t, vision.NewAnalyzer(nil, vision.DefaultThumbnailConfig()))
	ev := &fakeEvaluator{ok: true, evals: []rules.ClientEvaluation{
		{RuleID: "r1", Triggered: true, Confidence: 0.9, Reasoning: "visible at the door"},
	}}
	deps.Evaluator = ev
	loop := New(deps)

	loop.tick(context.Background())

	assert.EqualValues(t, 1, ev.calls)
	assert.False(t, deps.Alerts.HasPending())
	assert.Equal(t, 1, deps.Stats.Summary().TotalAlerts)
}

func TestTickNoActiveRulesNeverAnalyzes(t *testing.T) {
	deps := newTestDeps(t, vision.NewAnalyzer(nil, vision.DefaultThumbnailConfig()))
	deps.Rules = rules.NewEngine() // no rules loaded
	loop := New(deps)

	loop.tick(context.Background())

	assert.False(t, deps.Alerts.HasPending())
	assert.Equal(t, 0, deps.Stats.Summary().TotalAnalyses)
}

func TestTickSurvivesGrabFrameError(t *testing.T) {
	deps := newTestDeps(t, vision.NewAnalyzer(nil, vision.DefaultThumbnailConfig()))
	deps.Camera = &fakeCamera{err: errors.New("device unplugged")}
	loop := New(deps)

	assert.NotPanics(t, func() { loop.tick(context.Background()) })
}
