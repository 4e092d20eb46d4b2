package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StripFences removes surrounding markdown code fences from a model
// response.
func StripFences(response string) string {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	return strings.TrimSpace(response)
}

// ExtractJSONObject returns the first balanced {...} block in a model
// response. Models frequently wrap the object in prose or markdown fences;
// this scans past that noise. The bool is false when no complete object is
// found.
func ExtractJSONObject(response string) (string, bool) {
	s := StripFences(response)

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// DecodeJSONObject extracts the first JSON object from a model response and
// unmarshals it into v.
func DecodeJSONObject(response string, v any) error {
	block, ok := ExtractJSONObject(response)
	if !ok {
		return fmt.Errorf("no JSON object found in response")
	}
	if err := json.Unmarshal([]byte(block), v); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return nil
}
