package translator

import (
	"context"
	"errors"
	"testing"
)

// mockGenerator returns a canned completion.
type mockGenerator struct {
	response string
	err      error
}

func (m *mockGenerator) Complete(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
	return m.response, m.err
}

func TestNormalizeEnglishPassthrough(t *testing.T) {
	n := NewNormalizer(&mockGenerator{
		response: `{"isEnglish": true, "englishVersion": "What is my balance?", "originalText": "What is my balance?"}`,
	})

	got, err := n.Normalize(context.Background(), "What is my balance?")
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}

	if !got.IsEnglish {
		t.Error("expected IsEnglish = true")
	}
	if got.CanonicalText() != got.OriginalText {
		t.Errorf("canonical %q should equal original %q for English input", got.CanonicalText(), got.OriginalText)
	}
}

func TestNormalizeTranslation(t *testing.T) {
	n := NewNormalizer(&mockGenerator{
		response: `{"isEnglish": false, "englishVersion": "What is my balance?", "originalText": "¿Cuál es mi saldo?"}`,
	})

	got, err := n.Normalize(context.Background(), "¿Cuál es mi saldo?")
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}

	if got.IsEnglish {
		t.Error("expected IsEnglish = false")
	}
	if got.CanonicalText() != "What is my balance?" {
		t.Errorf("unexpected canonical text: %q", got.CanonicalText())
	}
	if got.OriginalText != "¿Cuál es mi saldo?" {
		t.Errorf("original text not preserved: %q", got.OriginalText)
	}
}

func TestNormalizeKeepsInboundTextAuthoritative(t *testing.T) {
	// The model paraphrased the original; the inbound text wins.
	n := NewNormalizer(&mockGenerator{
		response: `{"isEnglish": false, "englishVersion": "What is my balance?", "originalText": "cual es mi saldo"}`,
	})

	got, err := n.Normalize(context.Background(), "¿Cuál es mi saldo?")
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}

	if got.OriginalText != "¿Cuál es mi saldo?" {
		t.Errorf("original text not preserved: %q", got.OriginalText)
	}
}

func TestNormalizeToleratesCodeFences(t *testing.T) {
	n := NewNormalizer(&mockGenerator{
		response: "```json\n{\"isEnglish\": true, \"englishVersion\": \"hi\", \"originalText\": \"hi\"}\n```",
	})

	if _, err := n.Normalize(context.Background(), "hi"); err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
}

func TestNormalizeMalformedResponses(t *testing.T) {
	cases := map[string]string{
		"not json":       `sure! the text is in English.`,
		"missing flag":   `{"englishVersion": "hi", "originalText": "hi"}`,
		"missing fields": `{"isEnglish": true}`,
		"empty english":  `{"isEnglish": false, "englishVersion": "", "originalText": "hola"}`,
	}

	for name, response := range cases {
		t.Run(name, func(t *testing.T) {
			n := NewNormalizer(&mockGenerator{response: response})
			_, err := n.Normalize(context.Background(), "hola")
			if !errors.Is(err, ErrMalformedTranslation) {
				t.Errorf("expected ErrMalformedTranslation, got %v", err)
			}
		})
	}
}

func TestNormalizePropagatesGeneratorError(t *testing.T) {
	n := NewNormalizer(&mockGenerator{err: errors.New("provider down")})
	if _, err := n.Normalize(context.Background(), "hola"); err == nil {
		t.Fatal("expected error")
	}
}
