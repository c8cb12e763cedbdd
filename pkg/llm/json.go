package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoJSON indicates a completion without a parseable JSON value.
var ErrNoJSON = errors.New("no valid JSON found in response")

var (
	thinkBlockPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)
	jsonFencePattern  = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n?(.*?)```")
)

// StripThinking removes <think>...</think> blocks from a completion.
func StripThinking(response string) string {
	return strings.TrimSpace(thinkBlockPattern.ReplaceAllString(response, ""))
}

// ExtractJSON returns the first complete JSON object or array in a completion.
// Reasoning blocks are dropped and a fenced block is preferred when present.
func ExtractJSON(response string) (string, error) {
	cleaned := StripThinking(response)

	candidates := []string{}
	if m := jsonFencePattern.FindStringSubmatch(cleaned); m != nil {
		candidates = append(candidates, m[1])
	}
	candidates = append(candidates, cleaned)

	for _, text := range candidates {
		for start := 0; start < len(text); start++ {
			if text[start] != '{' && text[start] != '[' {
				continue
			}
			if end, ok := matchingClose(text, start); ok {
				candidate := text[start : end+1]
				if json.Valid([]byte(candidate)) {
					return candidate, nil
				}
			}
		}
	}

	return "", ErrNoJSON
}

// matchingClose returns the index of the bracket closing the one at start,
// tracking both bracket kinds and skipping JSON strings.
func matchingClose(s string, start int) (int, bool) {
	var (
		stack    []byte
		inString bool
		escaped  bool
	)
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
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return 0, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// ParseJSONResponse extracts JSON from a response and unmarshals it into the target.
func ParseJSONResponse[T any](response string) (T, error) {
	var result T

	jsonStr, err := ExtractJSON(response)
	if err != nil {
		return result, err
	}

	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return result, fmt.Errorf("unmarshal JSON: %w", err)
	}

	return result, nil
}
