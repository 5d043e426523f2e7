// Package llm holds the provider-independent side of the text-completion
// gateway: response envelope extraction, the gateway error type and the
// timeout/retry guard wrapped around every provider client.
package llm

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrNoText is returned when a response envelope carries no usable text.
var ErrNoText = errors.New("llm: response carries no text")

// textPaths are checked in order; the first non-blank string wins.
var textPaths = []string{
	"choices.0.message.content",
	"response",
	"result.response",
	"result.0.content",
	"result",
	"output_text",
}

// ExtractText pulls the generated text out of a provider response body.
// OpenAI-style chat completions, Workers AI envelopes (bare or wrapped in
// "result") and a top-level JSON string are accepted. Anything else is
// ErrNoText.
func ExtractText(raw []byte) (string, error) {
	if !gjson.ValidBytes(raw) {
		return "", ErrNoText
	}
	root := gjson.ParseBytes(raw)
	if root.Type == gjson.String {
		return nonBlank(root)
	}
	if !root.IsObject() {
		return "", ErrNoText
	}
	for _, path := range textPaths {
		if text, err := nonBlank(root.Get(path)); err == nil {
			return text, nil
		}
	}
	return "", ErrNoText
}

func nonBlank(v gjson.Result) (string, error) {
	if v.Type != gjson.String {
		return "", ErrNoText
	}
	text := strings.TrimSpace(v.Str)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}
