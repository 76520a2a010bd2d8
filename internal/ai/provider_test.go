package ai_test

import (
	"context"
	"testing"

	"github.com/myrjola/noir/internal/ai"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	ctx := context.Background()

	model, err := ai.New(ctx, ai.Settings{Provider: ai.ProviderOpenAI, OpenAIAPIKey: "key"})
	require.NoError(t, err)
	require.IsType(t, &ai.OpenAI{}, model)

	model, err = ai.New(ctx, ai.Settings{Provider: ai.ProviderGemini, GeminiAPIKey: "key"})
	require.NoError(t, err)
	require.IsType(t, &ai.Gemini{}, model)

	_, err = ai.New(ctx, ai.Settings{Provider: ai.ProviderGemini})
	require.Error(t, err, "Gemini needs an API key")

	_, err = ai.New(ctx, ai.Settings{Provider: "carrier-pigeon"})
	require.ErrorIs(t, err, ai.ErrUnknownProvider)
}
