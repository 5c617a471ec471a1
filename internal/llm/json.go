package llm

import (
	"encoding/json"
	"log"
	"strings"
)

// ParseJSONResponse parses a JSON object from an LLM response, handling
// markdown code fences and prose around the object.
func ParseJSONResponse(text string) map[string]any {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		endIdx := len(lines) - 1
		for i := len(lines) - 1; i > 0; i-- {
			if strings.TrimSpace(lines[i]) == "```" {
				endIdx = i
				break
			}
		}
		text = strings.Join(lines[1:endIdx], "\n")
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &result); err != nil {
		log.Printf("Failed to parse LLM response as JSON: %v", err)
		return nil
	}
	return result
}

// String reads a string field from a parsed response.
func String(m map[string]any, key, fallback string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return fallback
}

// Strings reads a list of strings from a parsed response, skipping non-strings.
func Strings(m map[string]any, key string) []string {
	arr, ok := m[key].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, v := range arr {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
