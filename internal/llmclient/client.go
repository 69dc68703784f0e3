// internal/llmclient/client.go
package llmclient

import (
	"context"
	"errors"
)

// GenerationRequest carries one prompt pair to the model.
type GenerationRequest struct {
	SystemPrompt string
	UserPrompt   string

	// ForceJSONFormat asks the model for a JSON-only response body.
	ForceJSONFormat bool
}

// LLMClient is the contract the agent programs against. Implementations must
// be safe for concurrent use.
type LLMClient interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// ErrDisabled is returned by the disabled client configured with the "none"
// provider. Callers treat it as "answer this without a model".
var ErrDisabled = errors.New("llm client is disabled")

// Disabled is an LLMClient that always reports ErrDisabled.
type Disabled struct{}

// Generate implements LLMClient.
func (Disabled) Generate(context.Context, GenerationRequest) (string, error) {
	return "", ErrDisabled
}
