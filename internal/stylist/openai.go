package stylist

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// DefaultGroqBaseURL is the OpenAI-compatible endpoint used by default.
const DefaultGroqBaseURL = "https://api.groq.com/openai/v1/"

// OpenAI rewrites through any OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	client openai.Client
	model  string
	name   string
}

// NewOpenAI returns a rewriter for the endpoint at baseURL. An empty baseURL
// uses the OpenAI default. Retries are disabled; the Stylist timeout bounds
// the whole call.
func NewOpenAI(name, apiKey, baseURL, model string) *OpenAI {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  model,
		name:   name,
	}
}

func (o *OpenAI) Name() string { return o.name }

func (o *OpenAI) Rewrite(ctx context.Context, userInput, text string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt(userInput, text)),
		},
		Temperature: openai.Float(temperature),
		TopP:        openai.Float(topP),
		MaxTokens:   openai.Int(maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
