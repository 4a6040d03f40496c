package vision

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technosupport/physical-mcp/internal/frame"
	"github.com/technosupport/physical-mcp/internal/rules"
	"github.com/technosupport/physical-mcp/internal/scene"
)

type fakeProvider struct {
	imageResp string
	jsonResp  map[string]any
	err       error
}

func (f *fakeProvider) AnalyzeImage(ctx context.Context, imageB64, prompt string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.imageResp, nil
}

func (f *fakeProvider) AnalyzeImageJSON(ctx context.Context, imageB64, prompt string) (map[string]any, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.jsonResp, nil
}

func (f *fakeProvider) ProviderName() string { return "fake" }
func (f *fakeProvider) ModelName() string    { return "fake-model" }

func testFrame(t *testing.T) frame.Frame {
	t.Helper()
	return frame.New(testImage(), "cam1", 1, testTime())
}

func TestAnalyzeSceneParsesJSON(t *testing.T) {
	p := &fakeProvider{jsonResp: map[string]any{
		"summary":      "a calm kitchen",
		"objects":      []any{"counter", "stove"},
		"people_count": float64(1),
	}}
	a := NewAnalyzer(p, DefaultThumbnailConfig())

	result, err := a.AnalyzeScene(context.Background(), testFrame(t), scene.Snapshot{}, "")
	require.NoError(t, err)
	assert.Equal(t, "a calm kitchen", result.Summary)
	assert.Equal(t, []string{"counter", "stove"}, result.Objects)
	assert.Equal(t, 1, result.PeopleCount)
}

func TestAnalyzeSceneReturnsAPIErrorForBackoff(t *testing.T) {
	p := &fakeProvider{err: errors.New("429 rate limit exceeded")}
	a := NewAnalyzer(p, DefaultThumbnailConfig())

	_, err := a.AnalyzeScene(context.Background(), testFrame(t), scene.Snapshot{}, "")
	assert.Error(t, err)
	assert.True(t, IsAPIError(err))
}

func TestAnalyzeSceneNoProviderErrors(t *testing.T) {
	a := NewAnalyzer(nil, DefaultThumbnailConfig())
	_, err := a.AnalyzeScene(context.Background(), testFrame(t), scene.Snapshot{}, "")
	assert.Error(t, err)
}

func TestEvaluateRulesNoRulesReturnsEmpty(t *testing.T) {
	p := &fakeProvider{}
	a := NewAnalyzer(p, DefaultThumbnailConfig())
	evals, err := a.EvaluateRules(context.Background(), testFrame(t), scene.Snapshot{}, nil)
	require.NoError(t, err)
	assert.Empty(t, evals)
}

func TestAnalyzeAndEvaluateParsesSceneAndEvaluations(t *testing.T) {
	p := &fakeProvider{jsonResp: map[string]any{
		"scene": map[string]any{
			"summary":      "front porch, empty",
			"people_count": float64(0),
		},
		"evaluations": []any{
			map[string]any{"rule_id": "r1", "triggered": false, "confidence": 0.2, "reasoning": "no one present"},
		},
	}}
	a := NewAnalyzer(p, DefaultThumbnailConfig())

	result, err := a.AnalyzeAndEvaluate(context.Background(), testFrame(t), scene.Snapshot{},
		[]rules.WatchRule{rules.NewWatchRule("r1", "Person", "a person is visible")})
	require.NoError(t, err)
	assert.Equal(t, "front porch, empty", result.Scene.Summary)
	require.Len(t, result.Evaluations, 1)
	assert.False(t, result.Evaluations[0].Triggered)
}

func TestAnalyzeAndEvaluateNoProviderErrors(t *testing.T) {
	a := NewAnalyzer(nil, DefaultThumbnailConfig())
	_, err := a.AnalyzeAndEvaluate(context.Background(), testFrame(t), scene.Snapshot{}, nil)
	assert.Error(t, err)
}

func TestEvaluateRulesParsesEvaluations(t *testing.T) {
	p := &fakeProvider{jsonResp: map[string]any{
		"evaluations": []any{
			map[string]any{"rule_id": "r1", "triggered": true, "confidence": 0.92, "reasoning": "clear view"},
		},
	}}
	a := NewAnalyzer(p, DefaultThumbnailConfig())

	evals, err := a.EvaluateRules(context.Background(), testFrame(t), scene.Snapshot{},
		[]rules.WatchRule{rules.NewWatchRule("r1", "Person", "a person is visible")})
	require.NoError(t, err)
	require.Len(t, evals, 1)
	assert.Equal(t, "r1", evals[0].RuleID)
	assert.True(t, evals[0].Triggered)
	assert.InDelta(t, 0.92, evals[0].Confidence, 0.001)
}
