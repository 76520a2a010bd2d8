package ai

import (
	"context"
	"log/slog"

	"github.com/myrjola/noir/internal/errors"
)

var ErrUnknownProvider = errors.NewSentinel("unknown AI provider")

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Settings selects and configures a game master backend.
type Settings struct {
	Provider      string
	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
}

// New creates the Model for the configured provider.
func New(ctx context.Context, s Settings) (Model, error) {
	switch s.Provider {
	case ProviderGemini:
		model, err := NewGemini(ctx, s.GeminiAPIKey, s.GeminiModel, s.GeminiBaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "new gemini model")
		}
		return model, nil
	case ProviderOpenAI:
		return NewOpenAI(s.OpenAIAPIKey, s.OpenAIModel, s.OpenAIBaseURL), nil
	default:
		return nil, errors.Wrap(ErrUnknownProvider, "new model", slog.String("provider", s.Provider))
	}
}
