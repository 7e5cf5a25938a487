package llm

import (
	"fmt"
	"regexp"
	"strings"
)

var fencedBlockRE = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// ExtractJSON tolerates an LLM response that wraps its JSON payload in a
// markdown fenced code block, or that prefixes/suffixes the JSON object
// with prose, and returns just the object text. Used by the intent
// classifier (spec.md §4.4) and anywhere else a stage expects strict
// JSON back from a model that doesn't reliably emit only that.
func ExtractJSON(raw string) (string, error) {
	text := strings.TrimSpace(raw)

	if m := fencedBlockRE.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("no JSON object found in response")
	}
	return text[start : end+1], nil
}
