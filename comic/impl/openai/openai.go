package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sashabaranov/go-openai"

	yaOpenai "github.com/visionex-project/comicex/pkg/openai"
	"github.com/visionex-project/comicex/pkg/textproc"
)

// Client translates recognized bubble text with a chat model.
type Client interface {
	Translate(ctx context.Context, text string, sourceLanguage string, targetLanguage string) (string, error)
}

type client struct {
	chat  yaOpenai.Client
	model string
	// Used to delay the next request when the API fails.
	backoffDuration time.Duration
}

// New works with any chat completion backend, e.g. OpenAI through yaOpenai.NewAdapter or Gemini
// through the genai adapter.
func New(chat yaOpenai.Client, model string, backoffDuration time.Duration) Client {
	return &client{chat: chat, model: model, backoffDuration: backoffDuration}
}

func (c *client) Translate(ctx context.Context, text string, sourceLanguage string, targetLanguage string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	request := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: `You translate the speech bubbles of comic books.
Keep the tone and the punctuation of the original. Reply with the translation only, without quotes or explanations.`,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: TranslatePrompt(text, sourceLanguage, targetLanguage),
			},
		},
		Temperature: 0.3,
	}

	translated, err := backoff.RetryWithData(func() (string, error) {
		response, err := c.chat.CreateChatCompletion(ctx, request)
		if err != nil {
			return "", fmt.Errorf("failed to create chat completion: %w", err)
		}
		return yaOpenai.GetCompletionContent(response)
	}, backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(c.backoffDuration), 4), ctx))
	if err != nil {
		return "", fmt.Errorf("translation failed: %w", err)
	}
	return strings.TrimSpace(translated), nil
}

// TranslatePrompt is the user prompt shared by every translation backend.
func TranslatePrompt(text string, sourceLanguage string, targetLanguage string) string {
	return fmt.Sprintf("Translate the following %s text to %s.\n%s",
		textproc.LanguageName(sourceLanguage),
		textproc.LanguageName(targetLanguage),
		text,
	)
}
