package provider

import (
	"context"
	"fmt"

	"github.com/ragstack/ragd/config"
	openai_provider "github.com/ragstack/ragd/provider/openai"
)

// LLM is the external generative/embedding capability consumed by the
// pipeline. Complete performs a single blocking completion call; no retry,
// no streaming.
type LLM interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// New builds the configured provider client.
func New(cfg config.ProvidersConfig) (LLM, error) {
	if cfg.OpenAI.APIKey == "" {
		return nil, fmt.Errorf("openai api key not configured (providers.openai.api_key)")
	}
	return openai_provider.NewClient(cfg.OpenAI), nil
}
