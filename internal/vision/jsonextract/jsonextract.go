// Package jsonextract pulls a JSON object out of free-form LLM text,
// the same 4-stage fallback every vision provider needs: markdown
// fences get stripped, then a direct parse is tried, then the
// outermost {...} span, then truncation repair by bracket-balancing.
package jsonextract

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON is returned when no stage manages to parse a JSON object
// out of the text.
var ErrNoJSON = errors.New("could not extract json from response")

// Extract attempts to parse a JSON object out of text, trying stages
// in order and returning the result of the first one that succeeds.
func Extract(text string) (map[string]any, error) {
	text = strings.TrimSpace(text)
	text = stripFences(text)

	if obj, ok := tryParse(text); ok {
		return obj, nil
	}

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start != -1 && end > start {
		if obj, ok := tryParse(text[start : end+1]); ok {
			return obj, nil
		}
	}

	if start != -1 {
		fragment := strings.TrimRight(text[start:], " \t\n\r")
		fragment = strings.TrimRight(fragment, ",")
		fragment += strings.Repeat("]", max(0, strings.Count(fragment, "[")-strings.Count(fragment, "]")))
		fragment += strings.Repeat("}", max(0, strings.Count(fragment, "{")-strings.Count(fragment, "}")))
		if obj, ok := tryParse(fragment); ok {
			return obj, nil
		}
	}

	return nil, ErrNoJSON
}

func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	end := len(lines)
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		end = len(lines) - 1
	}
	if end <= 1 {
		return text
	}
	return strings.TrimSpace(strings.Join(lines[1:end], "\n"))
}

func tryParse(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
