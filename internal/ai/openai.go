package ai

import (
	"context"
	"log/slog"

	"github.com/myrjola/noir/internal/errors"
	"github.com/sashabaranov/go-openai"
)

const (
	DefaultOpenAIModel = openai.GPT3Dot5Turbo1106
	MaxTokens          = 4096
)

// OpenAI calls an OpenAI compatible chat completion endpoint in JSON mode.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates an OpenAI model. An empty baseURL selects the public endpoint.
func NewOpenAI(apiKey string, model string, baseURL string) *OpenAI {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

func (o *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	completion, err := o.client.CreateChatCompletion(ctx,
		openai.ChatCompletionRequest{ //nolint:exhaustruct // this is better for readability
			Model:     o.model,
			MaxTokens: MaxTokens,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: req.SystemInstruction},
				{Role: openai.ChatMessageRoleUser, Content: req.Message},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		},
	)
	if err != nil {
		return "", errors.Wrap(classifyOpenAIError(err), "create chat completion", slog.String("model", o.model))
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("chat completion without choices", slog.String("model", o.model))
	}
	return completion.Choices[0].Message.Content, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{StatusCode: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &StatusError{StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	return err
}
