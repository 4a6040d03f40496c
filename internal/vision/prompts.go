package vision

import (
	"fmt"
	"strings"

	"github.com/technosupport/physical-mcp/internal/rules"
	"github.com/technosupport/physical-mcp/internal/scene"
)

const strictEvalInstructions = `Evaluate STRICTLY. Only trigger a rule if you see clear, unambiguous visual evidence.
- For gesture rules (waving, pointing): raised hands/arms must be clearly visible
- For action rules (drinking, eating, etc.): the person must be ACTIVELY performing the action, not just near an object
- A water bottle visible near someone does NOT mean they are drinking
- Confidence 0.9+ = certain, 0.7-0.9 = likely, below 0.7 = do not trigger
- When in doubt, set triggered=false. Missing an event is better than a false alert.`

func sceneContextString(snap scene.Snapshot) string {
	if snap.Summary == "" {
		return ""
	}
	return fmt.Sprintf("Summary: %s\nObjects: %s\nPeople count: %d",
		snap.Summary, strings.Join(snap.Objects, ", "), snap.PeopleCount)
}

func framePreamble(frameCount int) string {
	if frameCount <= 1 {
		return "Analyze this camera frame."
	}
	return fmt.Sprintf(
		"You are given %d consecutive camera frames spanning ~1.5 seconds.\n"+
			"Frame 1 = oldest, Frame %d = most recent.\n"+
			"Analyze the SEQUENCE — look for actions that happen across frames "+
			"(e.g., hand raising to mouth = drinking, arm going up = waving).\n"+
			"A brief action visible in even ONE frame should be detected.",
		frameCount, frameCount)
}

// BuildAnalysisPrompt builds the scene-analysis-only prompt.
func BuildAnalysisPrompt(prev scene.Snapshot, question string) string {
	context := ""
	if ctx := sceneContextString(prev); ctx != "" {
		context = fmt.Sprintf("Previous scene state:\n%s\n\nDescribe what changed, if anything.\n", ctx)
	}
	questionPart := ""
	if question != "" {
		questionPart = fmt.Sprintf("\nAlso answer this specific question: %s\n", question)
	}
	return fmt.Sprintf(`Analyze this camera frame. Provide a structured description.
%s%s
Respond in JSON only:
{
  "summary": "<1-2 sentence description of the scene>",
  "objects": ["<list of notable objects visible>"],
  "people_count": <number of people visible>,
  "activity": "<what is happening in the scene>",
  "notable_changes": "<what changed from previous state, or 'none' if first frame>"
}`, context, questionPart)
}

func rulesText(rs []rules.WatchRule) string {
	lines := make([]string, 0, len(rs))
	for _, r := range rs {
		lines = append(lines, fmt.Sprintf(`  {"id": "%s", "condition": "%s"}`, r.ID, r.Condition))
	}
	return strings.Join(lines, "\n")
}

// BuildRuleEvalPrompt builds the rule-evaluation-only prompt.
func BuildRuleEvalPrompt(snap scene.Snapshot, rs []rules.WatchRule) string {
	context := ""
	if ctx := sceneContextString(snap); ctx != "" {
		context = fmt.Sprintf("Current scene context:\n%s\n\n", ctx)
	}
	return fmt.Sprintf(`You are a visual monitoring system. Analyze the image against these watch rules.
%s
Active watch rules:
[%s]

For EACH rule, determine if the condition is currently met in the image.
Respond in JSON only:
{
  "evaluations": [
    {
      "rule_id": "<id>",
      "triggered": true/false,
      "confidence": 0.0-1.0,
      "reasoning": "<brief explanation>"
    }
  ]
}

%s`, context, rulesText(rs), strictEvalInstructions)
}

// BuildCombinedPrompt builds a single prompt doing scene analysis and
// rule evaluation together — one LLM call instead of two sequential
// ones, halving per-cycle latency.
func BuildCombinedPrompt(prev scene.Snapshot, rs []rules.WatchRule, frameCount int) string {
	context := ""
	if ctx := sceneContextString(prev); ctx != "" {
		context = fmt.Sprintf("Previous scene state:\n%s\n\n", ctx)
	}
	return fmt.Sprintf(`%s

Evaluate watch rules in the same response.
%s
Active watch rules:
[%s]

IMPORTANT: The camera may be tilted or at an unusual angle. Interpret the scene from the camera's perspective.

Respond in JSON only:
{
  "scene": {
    "summary": "<1-2 sentence description>",
    "objects": ["<notable objects>"],
    "people_count": <number>,
    "activity": "<what is happening>",
    "notable_changes": "<what changed or 'none'>"
  },
  "evaluations": [
    {
      "rule_id": "<id>",
      "triggered": true/false,
      "confidence": 0.0-1.0,
      "reasoning": "<brief explanation>"
    }
  ]
}

%s`, framePreamble(frameCount), context, rulesText(rs), strictEvalInstructions)
}
