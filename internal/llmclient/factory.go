// internal/llmclient/factory.go
package llmclient

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/internal/config"
)

// NewClient creates an LLMClient based on the configured provider. The
// "none" provider yields a disabled client so the agent can run on the
// deterministic classifier alone.
func NewClient(cfg config.LLMConfig, logger *zap.Logger) (LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(cfg, logger)
	case config.ProviderNone:
		return Disabled{}, nil
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s, %s]",
			cfg.Provider, config.ProviderGemini, config.ProviderNone)
	}
}
