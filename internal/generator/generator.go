// Package generator produces decoration text (themes, meme captions) from a
// generative language model. Every call site has a deterministic fallback.
package generator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// ErrEmptyResponse is returned when the model answers without any text.
var ErrEmptyResponse = errors.New("generator returned no text")

// TextGenerator turns a prompt into free text.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// StripCodeFence removes markdown code fences models like to wrap JSON in.
func StripCodeFence(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

// DecodeJSON parses a model answer as JSON of type T.
func DecodeJSON[T any](text string) (T, error) {
	var v T
	err := json.Unmarshal([]byte(StripCodeFence(text)), &v)
	return v, err
}
