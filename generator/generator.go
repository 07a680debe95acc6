package generator

import "context"

// Generator produces one completion per call. Both the language normalizer
// and the response step run on this interface.
type Generator interface {
	Complete(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
}
