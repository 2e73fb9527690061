package openai

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff/v4"
	"github.com/sashabaranov/go-openai"
)

var ErrNoChoices = errors.New("no choices in response")

// Client is the chat completion surface shared by the OpenAI client and the Gemini adapter.
type Client interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// adapter wraps the OpenAI client
type adapter struct {
	client *openai.Client
}

func NewAdapter(client *openai.Client) Client {
	return &adapter{client: client}
}

func (a *adapter) CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return a.client.CreateChatCompletion(ctx, request)
}

// GetCompletionContent extracts the content from the first choice. An empty response is a
// permanent error, so retries stop at it.
func GetCompletionContent(response openai.ChatCompletionResponse) (string, error) {
	if len(response.Choices) == 0 {
		return "", backoff.Permanent(ErrNoChoices)
	}
	return response.Choices[0].Message.Content, nil
}
