package sql

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrEmptyCompletion indicates the completion had no text once reasoning and fences were removed.
	ErrEmptyCompletion = errors.New("completion is empty")

	// ErrNoStatement indicates the completion contains no recognized statement keyword.
	ErrNoStatement = errors.New("completion contains no SQL statement")
)

var (
	thinkBlockPattern  = regexp.MustCompile(`(?s)<think>.*?</think>`)
	fencedBlockPattern = regexp.MustCompile("(?s)```[A-Za-z]*\\s*\\n?(.*?)```")

	// Keywords at the start of a line are preferred over ones inside prose.
	lineKeywordPattern  = regexp.MustCompile(`(?im)^\s*(SELECT|INSERT|UPDATE|DELETE|WITH)\b`)
	upperKeywordPattern = regexp.MustCompile(`\b(SELECT|INSERT|UPDATE|DELETE|WITH)\b`)
	anyKeywordPattern   = regexp.MustCompile(`(?i)\b(SELECT|INSERT|UPDATE|DELETE|WITH)\b`)
)

// ExtractStatement pulls the SQL statement out of a raw completion.
//
// <think> blocks are dropped and the first fenced code block, when present, is
// used instead of the whole text. The statement starts at the first recognized
// keyword and runs to the end of the text: nothing after it is discarded, so a
// second smuggled statement is still visible to ValidateStatement.
func ExtractStatement(completion string) (string, error) {
	text := thinkBlockPattern.ReplaceAllString(completion, "")
	if m := fencedBlockPattern.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	if text == "" {
		return "", ErrEmptyCompletion
	}

	start := -1
	for _, p := range []*regexp.Regexp{lineKeywordPattern, upperKeywordPattern, anyKeywordPattern} {
		if loc := p.FindStringSubmatchIndex(text); loc != nil {
			start = loc[2]
			break
		}
	}
	if start < 0 {
		return "", ErrNoStatement
	}

	return strings.TrimSpace(text[start:]), nil
}
