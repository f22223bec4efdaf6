package llm

import (
	"fmt"
	"strings"

	"ArticleRewriter/internal/config"
	"ArticleRewriter/internal/ports"
)

// New selects the adapter named by cfg.Provider.
func New(cfg config.LLMConfig) (ports.ChatModel, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "openai":
		client, err := NewOpenAIClient(cfg.OpenAI)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "anthropic":
		client, err := NewAnthropicClient(cfg.Anthropic)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
