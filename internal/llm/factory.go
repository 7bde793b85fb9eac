package llm

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/chat-server-go/internal/config"
)

// NewClient builds the provider selected by LLM_PROVIDER, wrapped with
// timeouts and metrics.
func NewClient(ctx context.Context, cfg *config.Config) (Client, error) {
	var (
		c   Client
		err error
	)

	switch cfg.LLMProvider {
	case config.ProviderHuggingFace:
		c = NewHuggingFaceClient(cfg.HuggingFaceBaseURL, cfg.HuggingFaceToken, cfg.HuggingFaceModel, cfg.MaxTokens, config.GeneratorTimeout)
	case config.ProviderGemini:
		c, err = NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.MaxTokens)
		if err != nil {
			return nil, err
		}
	case config.ProviderMock:
		log.Warn().Msg("LLM_PROVIDER=mock, using echo generator")
		c = NewMockClient()
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}

	log.Info().Str("provider", c.Name()).Msg("response generator ready")
	return Instrument(c, config.GeneratorTimeout), nil
}
