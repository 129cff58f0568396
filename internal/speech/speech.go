// Package speech turns markdown-flavoured agent replies into plain prose
// that reads naturally through a text-to-speech engine.
package speech

import (
	"regexp"
	"strings"
)

// CodeBlockPlaceholder replaces fenced code blocks.
const CodeBlockPlaceholder = " [code block] "

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Fences go first so inline-code stripping never splits a multi-line block.
var rules = []rule{
	{regexp.MustCompile("(?s)```.*?```"), CodeBlockPlaceholder},
	{regexp.MustCompile("`([^`]+)`"), "$1"},
	{regexp.MustCompile(`\*\*([^*]+)\*\*`), "$1"},
	{regexp.MustCompile(`\*([^*]+)\*`), "$1"},
	{regexp.MustCompile(`#{1,6}\s`), ""},
	{regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`), "$1"},
}

// Normalize strips markdown formatting from text. The rule set is applied
// until the text stops changing, which makes Normalize idempotent. Every
// pass either removes markup characters or consumes backtick fences, so the
// loop terminates.
func Normalize(text string) string {
	for {
		next := pass(text)
		if next == text {
			return next
		}
		text = next
	}
}

func pass(text string) string {
	for _, r := range rules {
		text = r.pattern.ReplaceAllString(text, r.replacement)
	}
	return strings.TrimSpace(text)
}
