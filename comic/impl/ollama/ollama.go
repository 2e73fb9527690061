package ollama

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	implOpenai "github.com/visionex-project/comicex/comic/impl/openai"
)

// Client talks to a local Ollama server. The same model reads bubbles and translates them.
type Client interface {
	// Describe sends an image together with a prompt and returns the raw answer.
	Describe(ctx context.Context, image []byte, mimeType string, prompt string) (string, error)
	Translate(ctx context.Context, text string, sourceLanguage string, targetLanguage string) (string, error)
}

type generator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

type client struct {
	llm generator
	// Used to delay the next request when the server fails.
	backoffDuration time.Duration
}

// New connects to the server at serverURL. E.g., http://localhost:11434
func New(serverURL string, model string, backoffDuration time.Duration) (Client, error) {
	llm, err := ollama.New(
		ollama.WithModel(model),
		ollama.WithServerURL(serverURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	return &client{llm: llm, backoffDuration: backoffDuration}, nil
}

func (c *client) Describe(ctx context.Context, image []byte, mimeType string, prompt string) (string, error) {
	return c.generate(ctx, llms.BinaryPart(mimeType, image), llms.TextPart(prompt))
}

func (c *client) Translate(ctx context.Context, text string, sourceLanguage string, targetLanguage string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	translated, err := c.generate(ctx, llms.TextPart(implOpenai.TranslatePrompt(text, sourceLanguage, targetLanguage)))
	if err != nil {
		return "", fmt.Errorf("translation failed: %w", err)
	}
	return strings.TrimSpace(translated), nil
}

func (c *client) generate(ctx context.Context, parts ...llms.ContentPart) (string, error) {
	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: parts,
		},
	}
	return backoff.RetryWithData(func() (string, error) {
		completion, err := c.llm.GenerateContent(ctx, messages, llms.WithTemperature(0))
		if err != nil {
			return "", fmt.Errorf("error getting response from ollama: %w", err)
		}
		if len(completion.Choices) == 0 {
			return "", errors.New("no choices in ollama response")
		}
		return completion.Choices[0].Content, nil
	}, backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(c.backoffDuration), 4), ctx))
}
