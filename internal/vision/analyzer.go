package vision

import (
	"context"
	"fmt"

	"github.com/technosupport/physical-mcp/internal/frame"
	"github.com/technosupport/physical-mcp/internal/obslog"
	"github.com/technosupport/physical-mcp/internal/rules"
	"github.com/technosupport/physical-mcp/internal/scene"
)

// ThumbnailConfig controls the image sent on every provider call —
// kept small deliberately, since cost scales with image size.
type ThumbnailConfig struct {
	MaxDim  int
	Quality int
}

// DefaultThumbnailConfig matches the reference implementation's defaults.
func DefaultThumbnailConfig() ThumbnailConfig {
	return ThumbnailConfig{MaxDim: 640, Quality: 60}
}

// SceneResult is the parsed output of a scene-analysis call.
type SceneResult struct {
	Summary        string
	Objects        []string
	PeopleCount    int
	Activity       string
	NotableChanges string
}

// Analyzer orchestrates vision-provider calls for scene analysis and
// rule evaluation. Safe for concurrent use; SetProvider may be called
// while analyses are in flight (e.g. from a config hot-reload).
type Analyzer struct {
	provider Provider
	thumbs   ThumbnailConfig
	log      *obslog.Logger
}

// NewAnalyzer constructs an Analyzer. provider may be nil (client-side
// reasoning mode — the perception loop queues PendingAlerts instead of
// calling AnalyzeScene/EvaluateRules).
func NewAnalyzer(provider Provider, thumbs ThumbnailConfig) *Analyzer {
	return &Analyzer{provider: provider, thumbs: thumbs, log: obslog.New("analyzer")}
}

// HasProvider reports whether a server-side vision provider is configured.
func (a *Analyzer) HasProvider() bool { return a.provider != nil }

// ProviderInfo describes the configured provider for status reporting.
type ProviderInfo struct {
	Configured bool
	Provider   string
	Model      string
}

// Info returns the current provider's identity.
func (a *Analyzer) Info() ProviderInfo {
	if a.provider == nil {
		return ProviderInfo{Configured: false}
	}
	return ProviderInfo{Configured: true, Provider: a.provider.ProviderName(), Model: a.provider.ModelName()}
}

// SetProvider swaps the active provider (nil to disable server-side reasoning).
func (a *Analyzer) SetProvider(p Provider) { a.provider = p }

// AnalyzeScene describes what's in f. API/auth/billing errors are
// returned so the perception loop can trigger backoff; JSON parse
// failures are retried once as plain text before giving up and
// returning a best-effort summary.
func (a *Analyzer) AnalyzeScene(ctx context.Context, f frame.Frame, prev scene.Snapshot, question string) (SceneResult, error) {
	if a.provider == nil {
		return SceneResult{}, fmt.Errorf("no vision provider configured")
	}

	prompt := BuildAnalysisPrompt(prev, question)
	imageB64, err := f.Thumbnail(a.thumbs.MaxDim, a.thumbs.Quality)
	if err != nil {
		return SceneResult{}, fmt.Errorf("thumbnailing frame: %w", err)
	}

	raw, err := a.provider.AnalyzeImageJSON(ctx, imageB64, prompt)
	if err == nil {
		return sceneResultFromJSON(raw), nil
	}

	if IsTimeoutError(err) {
		a.log.Printf("scene analysis call timed out after %s, returning empty scene", DefaultCallTimeout)
		return SceneResult{}, nil
	}

	if IsAPIError(err) {
		return SceneResult{}, err
	}

	// JSON parse (or similar non-API) failure: retry as plain text —
	// the API call itself worked, the response just wasn't valid JSON.
	text, err2 := a.provider.AnalyzeImage(ctx, imageB64, prompt)
	if err2 != nil {
		if IsTimeoutError(err2) {
			a.log.Printf("scene analysis retry call timed out after %s, returning empty scene", DefaultCallTimeout)
			return SceneResult{}, nil
		}
		if IsAPIError(err2) {
			return SceneResult{}, err2
		}
		a.log.Printf("scene analysis retry failed: %v", err2)
		return SceneResult{Summary: fmt.Sprintf("Analysis error: %v", err2)}, nil
	}
	return SceneResult{Summary: text}, nil
}

func sceneResultFromJSON(raw map[string]any) SceneResult {
	r := SceneResult{}
	if v, ok := raw["summary"].(string); ok {
		r.Summary = v
	}
	if v, ok := raw["activity"].(string); ok {
		r.Activity = v
	}
	if v, ok := raw["notable_changes"].(string); ok {
		r.NotableChanges = v
	}
	if arr, ok := raw["objects"].([]any); ok {
		for _, o := range arr {
			if s, ok := o.(string); ok {
				r.Objects = append(r.Objects, s)
			}
		}
	}
	switch v := raw["people_count"].(type) {
	case float64:
		r.PeopleCount = int(v)
	case int:
		r.PeopleCount = v
	}
	return r
}

// EvaluateRules checks f against active watch rules in a single call.
// Returns an empty slice (not an error) when no provider is configured
// or no rules are active — callers treat that as "nothing to report"
// rather than a failure.
func (a *Analyzer) EvaluateRules(ctx context.Context, f frame.Frame, snap scene.Snapshot, activeRules []rules.WatchRule) ([]rules.Evaluation, error) {
	if a.provider == nil || len(activeRules) == 0 {
		return nil, nil
	}

	prompt := BuildRuleEvalPrompt(snap, activeRules)
	imageB64, err := f.Thumbnail(a.thumbs.MaxDim, a.thumbs.Quality)
	if err != nil {
		return nil, fmt.Errorf("thumbnailing frame: %w", err)
	}

	raw, err := a.provider.AnalyzeImageJSON(ctx, imageB64, prompt)
	if err != nil {
		if IsTimeoutError(err) {
			a.log.Printf("rule evaluation call timed out after %s, no evaluations this cycle", DefaultCallTimeout)
			return nil, nil
		}
		if IsAPIError(err) {
			return nil, err
		}
		a.log.Printf("rule evaluation failed: %v", err)
		return nil, nil
	}
	return evaluationsFromJSON(raw), nil
}

// CombinedResult is the parsed output of a combined analyze+evaluate call.
type CombinedResult struct {
	Scene       SceneResult
	Evaluations []rules.Evaluation
}

// AnalyzeAndEvaluate runs scene analysis and rule evaluation in a
// single provider call — half the latency and cost of AnalyzeScene
// plus EvaluateRules run sequentially. Used by the perception loop
// whenever there are active rules to check.
func (a *Analyzer) AnalyzeAndEvaluate(ctx context.Context, f frame.Frame, prev scene.Snapshot, activeRules []rules.WatchRule) (CombinedResult, error) {
	if a.provider == nil {
		return CombinedResult{}, fmt.Errorf("no vision provider configured")
	}

	prompt := BuildCombinedPrompt(prev, activeRules, 1)
	imageB64, err := f.Thumbnail(a.thumbs.MaxDim, a.thumbs.Quality)
	if err != nil {
		return CombinedResult{}, fmt.Errorf("thumbnailing frame: %w", err)
	}

	raw, err := a.provider.AnalyzeImageJSON(ctx, imageB64, prompt)
	if err != nil {
		if IsTimeoutError(err) {
			// spec: a timed-out call yields an empty-summary scene, not
			// an error — the perception loop keeps running without
			// entering backoff.
			a.log.Printf("combined analyze+evaluate call timed out after %s, returning empty scene", DefaultCallTimeout)
			return CombinedResult{}, nil
		}
		return CombinedResult{}, err
	}

	result := CombinedResult{Evaluations: evaluationsFromJSON(raw)}
	if sceneRaw, ok := raw["scene"].(map[string]any); ok {
		result.Scene = sceneResultFromJSON(sceneRaw)
	}
	return result, nil
}

func evaluationsFromJSON(raw map[string]any) []rules.Evaluation {
	arr, ok := raw["evaluations"].([]any)
	if !ok {
		return nil
	}
	out := make([]rules.Evaluation, 0, len(arr))
	for _, item := range arr {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		ev := rules.Evaluation{}
		if v, ok := m["rule_id"].(string); ok {
			ev.RuleID = v
		}
		if v, ok := m["triggered"].(bool); ok {
			ev.Triggered = v
		}
		if v, ok := m["reasoning"].(string); ok {
			ev.Reasoning = v
		}
		switch v := m["confidence"].(type) {
		case float64:
			ev.Confidence = v
		case int:
			ev.Confidence = float64(v)
		}
		if ev.RuleID == "" {
			continue
		}
		out = append(out, ev)
	}
	return out
}
