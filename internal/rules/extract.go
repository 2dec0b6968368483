package rules

import (
	"encoding/json"
	"strings"
)

// maxParseAttempts bounds substring parse attempts so adversarial inputs with
// many stray braces cannot trigger quadratic work.
const maxParseAttempts = 100

// ExtractEmbeddedJSON locates a JSON object inside free-form text and returns
// it decoded, or nil when none parses. Template descriptions are authored by
// hand in a rich-text-ish field, so the object is often surrounded by prose
// or stray braces; candidates are taken between a left-to-right scan of '{'
// positions and a right-to-left scan of '}' positions, skipping spans whose
// brace counts cannot balance. Only top-level objects qualify, so a legacy
// bracket-list description can never be mistaken for a JSON filter.
func ExtractEmbeddedJSON(text string) map[string]interface{} {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	// Fast path: the whole description is one JSON object.
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		if obj := tryParseObject(trimmed); obj != nil {
			return obj
		}
	}

	opens := make([]int, 0, 8)
	closes := make([]int, 0, 8)
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '{':
			opens = append(opens, i)
		case '}':
			closes = append(closes, i)
		}
	}
	attempts := 0
	for _, start := range opens {
		for k := len(closes) - 1; k >= 0; k-- {
			end := closes[k]
			if end <= start {
				break
			}
			candidate := text[start : end+1]
			if !bracesBalance(candidate) {
				continue
			}
			attempts++
			if attempts > maxParseAttempts {
				return nil
			}
			if obj := tryParseObject(candidate); obj != nil {
				return obj
			}
		}
	}
	return nil
}

func tryParseObject(candidate string) map[string]interface{} {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return nil
	}
	return obj
}

func bracesBalance(s string) bool {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}
