package agent

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/agentbridge/agentbridge/internal/speech"
)

// Fallback replies spoken when the agent produced nothing usable.
const (
	EmptyStructuredReply   = "I received your message but had no response."
	EmptyUnstructuredReply = "No response received"
)

// Strategy pulls reply text out of a parsed agent document. ok is false
// when the strategy has nothing to offer and the next one should be tried.
type Strategy func(doc gjson.Result) (text string, ok bool)

// PathStrategy yields the string at a gjson path when it is non-empty.
func PathStrategy(path string) Strategy {
	return func(doc gjson.Result) (string, bool) {
		value := doc.Get(path)
		if value.Type != gjson.String || value.Str == "" {
			return "", false
		}
		return value.Str, true
	}
}

// Strategies are tried in order; the payload shape emitted by the agent's
// --json mode comes first.
var Strategies = []Strategy{
	PathStrategy("result.payloads.0.text"),
	PathStrategy("text"),
	PathStrategy("content"),
	PathStrategy("response"),
}

// Extract parses stdout as JSON and returns the first text a strategy
// yields. When stdout is not JSON it returns the trimmed raw text and
// structured=false.
func Extract(stdout string) (text string, structured bool) {
	trimmed := strings.TrimSpace(stdout)
	if !gjson.Valid(trimmed) {
		return trimmed, false
	}

	doc := gjson.Parse(trimmed)
	for _, strategy := range Strategies {
		if text, ok := strategy(doc); ok {
			return text, true
		}
	}
	return "", true
}

// Reply turns agent stdout into the text returned to the caller.
func Reply(stdout string) string {
	text, structured := Extract(stdout)
	if !structured {
		if text == "" {
			return EmptyUnstructuredReply
		}
		return text
	}

	if text = speech.Normalize(text); text == "" {
		return EmptyStructuredReply
	}
	return text
}
