// Package translator normalizes inbound text to English for embedding and
// retrieval while preserving the original for response generation.
package translator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/finrelay/concierge/generator"
)

// ErrMalformedTranslation means the model reply could not be decoded into
// the required fields. The caller must fail the run rather than guess.
var ErrMalformedTranslation = errors.New("translator: malformed translation response")

const systemPrompt = `You are a translation assistant. For the given text:
1. Detect if it's not in English
2. If not English, translate to English while preserving key terms such as amounts and merchant names
3. Return ONLY a JSON object in this format:
{
  "isEnglish": boolean,
  "englishVersion": "the English translation or original text",
  "originalText": "the original input text"
}
Do not include any other text in your response.`

// Result is the normalized form of one inbound message.
type Result struct {
	IsEnglish      bool
	EnglishVersion string
	OriginalText   string
}

// CanonicalText is the text used for embedding and retrieval.
func (r Result) CanonicalText() string {
	return r.EnglishVersion
}

type Normalizer struct {
	generator generator.Generator
}

func (n *Normalizer) Normalize(ctx context.Context, text string) (Result, error) {
	raw, err := n.generator.Complete(ctx, systemPrompt, text)
	if err != nil {
		return Result{}, fmt.Errorf("translator: %w", err)
	}

	return decode(raw, text)
}

// wire shape: pointer fields so an absent field is distinguishable from a
// zero value and fails closed.
type payload struct {
	IsEnglish      *bool   `json:"isEnglish"`
	EnglishVersion *string `json:"englishVersion"`
	OriginalText   *string `json:"originalText"`
}

func decode(raw string, original string) (Result, error) {
	var p payload
	if err := json.Unmarshal([]byte(stripFences(raw)), &p); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedTranslation, err)
	}

	if p.IsEnglish == nil || p.EnglishVersion == nil || p.OriginalText == nil {
		return Result{}, fmt.Errorf("%w: missing required field", ErrMalformedTranslation)
	}

	if len(strings.TrimSpace(*p.EnglishVersion)) == 0 {
		return Result{}, fmt.Errorf("%w: empty english version", ErrMalformedTranslation)
	}

	result := Result{
		IsEnglish:      *p.IsEnglish,
		EnglishVersion: *p.EnglishVersion,
		OriginalText:   *p.OriginalText,
	}

	// The model occasionally echoes a paraphrased original. The inbound text
	// is authoritative.
	result.OriginalText = original

	if result.IsEnglish {
		result.EnglishVersion = original
	}

	return result, nil
}

// stripFences tolerates a fenced code block around the JSON object.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func NewNormalizer(g generator.Generator) *Normalizer {
	if g == nil {
		panic("generator is required")
	}

	return &Normalizer{
		generator: g,
	}
}
