package llm

import (
	"context"
)

// LLMClient is the black-box natural language extractor dependency. The
// pipeline only needs single-turn prompt-in, text-out generation.
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
