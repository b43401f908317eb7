package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DecodeJSON parses a model reply into target. The reply may be wrapped in a
// fenced code block (```json ... ```).
func DecodeJSON(content string, target interface{}) error {
	trimmed := stripCodeFence(strings.TrimSpace(content))
	if trimmed == "" {
		return errors.New("empty payload")
	}
	if err := json.Unmarshal([]byte(trimmed), target); err != nil {
		return fmt.Errorf("decode payload: %w (snippet: %s)", err, snippet(trimmed))
	}
	return nil
}

func stripCodeFence(s string) string {
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		// drop the language tag on the opening line
		if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "json")
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func snippet(s string) string {
	const max = 120
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
