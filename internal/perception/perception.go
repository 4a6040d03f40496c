// Package perception runs the daemon's canonical per-camera loop: grab
// a frame, run free local change detection, and — only when watch
// rules are actually active — spend an LLM call to analyze the scene
// and evaluate those rules. With no active rules, a camera is pure
// local monitoring at zero API cost.
package perception

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/technosupport/physical-mcp/internal/alertqueue"
	"github.com/technosupport/physical-mcp/internal/cache"
	"github.com/technosupport/physical-mcp/internal/camera"
	"github.com/technosupport/physical-mcp/internal/camhealth"
	"github.com/technosupport/physical-mcp/internal/changedetect"
	"github.com/technosupport/physical-mcp/internal/eventbus"
	"github.com/technosupport/physical-mcp/internal/frame"
	"github.com/technosupport/physical-mcp/internal/framebuffer"
	"github.com/technosupport/physical-mcp/internal/memory"
	"github.com/technosupport/physical-mcp/internal/notify"
	"github.com/technosupport/physical-mcp/internal/obslog"
	"github.com/technosupport/physical-mcp/internal/replay"
	"github.com/technosupport/physical-mcp/internal/rules"
	"github.com/technosupport/physical-mcp/internal/sampler"
	"github.com/technosupport/physical-mcp/internal/scene"
	"github.com/technosupport/physical-mcp/internal/stats"
	"github.com/technosupport/physical-mcp/internal/vision"
)

// maxBackoff caps the exponential retry delay after consecutive
// vision-provider errors.
const maxBackoff = 45 * time.Second

// pendingAlertTTL matches AlertQueue's own default but is stamped here
// too so PendingAlert.ExpiresAt is populated before it ever reaches the
// queue.
const pendingAlertTTL = 300 * time.Second

// ClientEvaluator lets an MCP session evaluate watch rules itself (via
// sampling) when no server-side vision provider is configured. A nil
// ClientEvaluator, or one that returns ok=false, falls back to queuing
// a PendingAlert for the client to poll instead.
type ClientEvaluator interface {
	Evaluate(ctx context.Context, f frame.Frame, change changedetect.Result, activeRules []rules.WatchRule, sceneContext string) (evals []rules.ClientEvaluation, ok bool)
}

// Deps wires one camera's full perception pipeline together. All
// fields except Camera, Buffer, Detector/Sampler, Scene, Rules, Stats
// and Alerts are optional — a nil Analyzer means client-side reasoning
// mode, a nil Notifier/Memory/Events/Replay/Health simply skips that
// side effect.
type Deps struct {
	CameraID   string
	CameraName string

	Camera   camera.Source
	Buffer   *framebuffer.Buffer
	Sampler  *sampler.Sampler
	Analyzer *vision.Analyzer
	Scene    *scene.State
	Rules    *rules.Engine
	Stats    *stats.Tracker
	Alerts   *alertqueue.Queue

	Notifier  *notify.Dispatcher
	Memory    *memory.Store
	Events    *eventbus.Bus
	Replay    *replay.Log
	Health    *camhealth.Tracker
	Evaluator ClientEvaluator

	// SceneCache publishes every scene update outside this process, so
	// a file-based proxy or a VisionAPI replica behind a load balancer
	// can answer "what is this camera looking at" without reaching
	// into this loop. Optional; nil skips publication entirely.
	SceneCache cache.SceneCache

	CaptureFPS   int
	ImageQuality int
}

// Loop is one camera's running perception pipeline.
type Loop struct {
	deps  Deps
	log   *obslog.Logger
	label string

	consecutiveErrors int
	backoffUntil      time.Time
}

// New constructs a Loop. Call Run to start it; Run blocks until ctx is
// cancelled and never exits early on a per-frame error.
func New(deps Deps) *Loop {
	if deps.CaptureFPS <= 0 {
		deps.CaptureFPS = 2
	}
	if deps.ImageQuality <= 0 {
		deps.ImageQuality = 75
	}
	return &Loop{deps: deps, log: obslog.New("perception"), label: camLabel(deps.CameraName, deps.CameraID)}
}

func camLabel(name, id string) string {
	if name != "" {
		return fmt.Sprintf("%s (%s)", name, id)
	}
	if id != "" {
		return id
	}
	return "unknown"
}

// Run captures and processes frames until ctx is cancelled. A failure
// analyzing or even grabbing one frame never stops the loop — it logs
// and waits for the next interval, exactly like every other camera's
// loop running alongside it.
func (l *Loop) Run(ctx context.Context) {
	interval := time.Second / time.Duration(l.deps.CaptureFPS)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		l.tick(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Printf("[%s] perception loop panic recovered: %v", l.label, r)
		}
	}()

	f, err := l.deps.Camera.GrabFrame(ctx)
	if err != nil {
		l.log.Printf("[%s] grab frame failed: %v", l.label, err)
		return
	}
	l.deps.Buffer.Push(f)
	if l.deps.Health != nil {
		l.deps.Health.RecordFrame(l.deps.CameraID, l.deps.CameraName)
	}

	hasActiveRules := l.deps.Rules.HasActiveRules()
	shouldAnalyze, change := l.deps.Sampler.ShouldAnalyze(f, time.Now(), hasActiveRules)

	if change.Level != changedetect.LevelNone {
		l.deps.Scene.RecordChange(change.Description)
	}

	if !shouldAnalyze {
		return
	}

	switch {
	case l.deps.Analyzer != nil && l.deps.Analyzer.HasProvider() && !l.deps.Stats.BudgetExceeded():
		l.runServerSide(ctx, f, change)
	default:
		l.runClientSide(ctx, f, change)
	}
}

// runServerSide makes the single combined analyze+evaluate call and
// processes whatever alerts it produces. A failure here is the only
// path that drives the exponential backoff timer.
func (l *Loop) runServerSide(ctx context.Context, f frame.Frame, change changedetect.Result) {
	now := time.Now()
	if now.Before(l.backoffUntil) {
		if l.deps.Health != nil {
			l.deps.Health.RecordBackoff(l.deps.CameraID, l.deps.CameraName)
		}
		if l.consecutiveErrors <= 3 {
			l.log.Printf("[%s] in backoff, retry in %.0fs", l.label, time.Until(l.backoffUntil).Seconds())
		}
		return
	}

	activeRules := l.deps.Rules.GetActiveRules()

	// AnalyzeAndEvaluate already treats a provider-call timeout as an
	// empty-summary, nil-error result (see internal/vision), so a slow
	// call never reaches recordProviderError's backoff path — only a
	// genuine API/auth/billing failure does.
	result, err := l.deps.Analyzer.AnalyzeAndEvaluate(ctx, f, l.deps.Scene.Current(), activeRules)
	if err != nil {
		l.recordProviderError(ctx, err)
		return
	}

	l.consecutiveErrors = 0
	l.backoffUntil = time.Time{}
	if l.deps.Health != nil {
		l.deps.Health.RecordAnalysisSuccess(l.deps.CameraID, l.deps.CameraName)
	}

	summary := result.Scene.Summary
	if summary != "" && !isAnalysisErrorSummary(summary) {
		l.deps.Scene.Update(summary, result.Scene.Objects, result.Scene.PeopleCount, change.Description)
		l.publishScene(ctx)
	} else {
		l.log.Printf("[%s] analysis returned no data, keeping previous scene", l.label)
	}
	l.deps.Stats.RecordAnalysis()
	l.log.Printf("[%s] scene: %.100s", l.label, summary)

	if len(result.Evaluations) == 0 || len(activeRules) == 0 {
		return
	}

	frameB64, err := encodeBase64(f, l.deps.ImageQuality)
	if err != nil {
		l.log.Printf("[%s] encoding alert frame failed: %v", l.label, err)
		return
	}

	alerts := l.deps.Rules.ProcessEvaluations(result.Evaluations, result.Scene.Summary, frameB64)
	for _, alert := range alerts {
		l.fireAlert(ctx, alert)
	}
}

func isAnalysisErrorSummary(s string) bool {
	return len(s) >= 15 && s[:15] == "Analysis error:"
}

// publishScene mirrors the freshly updated snapshot into the optional
// external cache. Best-effort: a cache outage never blocks the loop.
func (l *Loop) publishScene(ctx context.Context) {
	if l.deps.SceneCache == nil {
		return
	}
	if err := l.deps.SceneCache.Set(ctx, l.deps.CameraID, l.deps.Scene.Current()); err != nil {
		l.log.Printf("[%s] scene cache publish failed: %v", l.label, err)
	}
}

func (l *Loop) recordProviderError(ctx context.Context, err error) {
	l.consecutiveErrors++
	wait := time.Duration(float64(5*time.Second) * pow2(l.consecutiveErrors-1))
	if wait > maxBackoff {
		wait = maxBackoff
	}
	l.backoffUntil = time.Now().Add(wait)

	if l.deps.Health != nil {
		l.deps.Health.RecordAnalysisError(l.deps.CameraID, l.deps.CameraName, err, l.backoffUntil)
	}
	l.log.Printf("[%s] analysis error #%d, backing off %.0fs: %.150s", l.label, l.consecutiveErrors, wait.Seconds(), err.Error())

	msg := fmt.Sprintf("[%s] vision provider error (retry in %.0fs): %.120s", l.label, wait.Seconds(), err.Error())
	l.recordEvent(ctx, "provider_error", "", "", msg)
}

func pow2(n int) float64 {
	if n < 0 {
		return 1
	}
	result := 1.0
	for i := 0; i < n; i++ {
		result *= 2
	}
	return result
}

// fireAlert runs every side effect a triggered watch rule has: stats,
// log line, outbound notification, event-bus publish, memory note and
// replay-log entry.
func (l *Loop) fireAlert(ctx context.Context, alert rules.AlertEvent) {
	l.deps.Stats.RecordAlert()
	l.log.Printf("ALERT [%s]: %s — %s", l.label, alert.Rule.Name, alert.Evaluation.Reasoning)

	if l.deps.Notifier != nil {
		l.deps.Notifier.Dispatch(ctx, alert)
	}
	if l.deps.Events != nil {
		l.deps.Events.Publish(ctx, "alert", eventbus.Event{
			"type":       "watch_rule_triggered",
			"rule_id":    alert.Rule.ID,
			"rule_name":  alert.Rule.Name,
			"camera_id":  l.deps.CameraID,
			"confidence": alert.Evaluation.Confidence,
			"reasoning":  alert.Evaluation.Reasoning,
		})
	}
	if l.deps.Memory != nil {
		_ = l.deps.Memory.AppendEvent(fmt.Sprintf("ALERT [%s]: %s triggered — %s", l.label, alert.Rule.Name, alert.Evaluation.Reasoning))
	}
	l.recordEvent(ctx, "watch_rule_triggered", alert.Rule.ID, alert.Rule.Name, alert.Evaluation.Reasoning)
}

func (l *Loop) recordEvent(_ context.Context, eventType, ruleID, ruleName, message string) {
	if l.deps.Replay == nil {
		return
	}
	l.deps.Replay.Append(replay.Event{
		EventType:  eventType,
		CameraID:   l.deps.CameraID,
		CameraName: l.deps.CameraName,
		RuleID:     ruleID,
		RuleName:   ruleName,
		Message:    message,
	})
}

// runClientSide handles the no-server-provider path: try MCP sampling
// first if a session is attached and supports it, else queue a
// PendingAlert for the client to poll via check_camera_alerts.
func (l *Loop) runClientSide(ctx context.Context, f frame.Frame, change changedetect.Result) {
	activeRules := l.deps.Rules.GetActiveRules()
	if len(activeRules) == 0 {
		return
	}

	if l.deps.Evaluator != nil {
		sceneContext := l.deps.Scene.Current().Summary
		if evals, ok := l.deps.Evaluator.Evaluate(ctx, f, change, activeRules, sceneContext); ok {
			l.processClientEvaluations(ctx, f, evals)
			return
		}
	}

	l.queuePendingAlert(ctx, f, change, activeRules)
}

func (l *Loop) processClientEvaluations(ctx context.Context, f frame.Frame, evals []rules.ClientEvaluation) {
	frameB64, err := encodeBase64(f, l.deps.ImageQuality)
	if err != nil {
		l.log.Printf("[%s] encoding sampling alert frame failed: %v", l.label, err)
		frameB64 = ""
	}
	alerts := l.deps.Rules.ProcessClientEvaluations(evals, l.deps.Scene.Current().Summary, frameB64)
	for _, alert := range alerts {
		l.fireAlert(ctx, alert)
	}
}

func (l *Loop) queuePendingAlert(ctx context.Context, f frame.Frame, change changedetect.Result, activeRules []rules.WatchRule) {
	frameB64, err := f.Thumbnail(0, 75)
	if err != nil {
		l.log.Printf("[%s] encoding pending-alert frame failed: %v", l.label, err)
		return
	}

	ruleInfos := make([]rules.ActiveRuleInfo, 0, len(activeRules))
	ruleNames := make([]string, 0, len(activeRules))
	for _, r := range activeRules {
		ruleInfos = append(ruleInfos, rules.ActiveRuleInfo{ID: r.ID, Name: r.Name, Condition: r.Condition, Priority: r.Priority})
		ruleNames = append(ruleNames, r.Name)
	}

	alert := rules.PendingAlert{
		ID:                "pa_" + randomHex(4),
		CameraID:          l.deps.CameraID,
		CameraName:        l.deps.CameraName,
		Timestamp:         time.Now(),
		ChangeLevel:       string(change.Level),
		ChangeDescription: change.Description,
		FrameBase64:       frameB64,
		SceneContext:      l.deps.Scene.Current().Summary,
		ActiveRules:       ruleInfos,
		ExpiresAt:         time.Now().Add(pendingAlertTTL),
	}
	l.deps.Alerts.Push(alert)
	l.log.Printf("[%s] queued alert %s: %s change, %d active rules", l.label, alert.ID, change.Level, len(activeRules))

	msg := fmt.Sprintf("%s scene change detected (hash_distance=%d, pixel_diff=%.1f%%). active rules: %s.",
		change.Level, change.HashDistance, change.PixelDiffPct*100, joinNames(ruleNames))
	l.recordEvent(ctx, "camera_alert_pending_eval", "", "", msg)

	if l.deps.Events != nil {
		l.deps.Events.Publish(ctx, "scene_change", eventbus.Event{
			"type":         "scene_change",
			"camera_id":    l.deps.CameraID,
			"change_level": string(change.Level),
			"active_rules": ruleNames,
		})
	}

	if l.deps.Notifier != nil {
		sceneFrameB64, err := f.Thumbnail(0, 75)
		if err == nil {
			l.deps.Notifier.NotifyScene(ctx, string(change.Level), ruleNames, sceneFrameB64)
		}
		l.deps.Notifier.NotifyDesktop(
			fmt.Sprintf("Camera [%s]: %s change", displayName(l.deps.CameraName, l.deps.CameraID), change.Level),
			fmt.Sprintf("Rules: %s. Check Claude.", joinNames(ruleNames)),
		)
	}
}

func displayName(name, id string) string {
	if name != "" {
		return name
	}
	return id
}

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}

func encodeBase64(f frame.Frame, quality int) (string, error) {
	data, err := f.EncodeJPEG(quality)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "00000000"[:n*2]
	}
	return hex.EncodeToString(b)
}
