package recognizer

import (
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"time"

	"github.com/sashabaranov/go-openai"

	yaOpenai "github.com/visionex-project/comicex/pkg/openai"
)

// ChatRecognizer sends the crop to a vision chat model, OpenAI or Gemini through the genai adapter.
type ChatRecognizer struct {
	chat  yaOpenai.Client
	model string
	// Used to delay the next request when the API fails.
	backoffDuration time.Duration
}

func NewChat(chat yaOpenai.Client, model string, backoffDuration time.Duration) *ChatRecognizer {
	return &ChatRecognizer{chat: chat, model: model, backoffDuration: backoffDuration}
}

func (r *ChatRecognizer) Recognize(ctx context.Context, crop image.Image) ([]Extraction, error) {
	byteImage, err := encodePNG(crop)
	if err != nil {
		return nil, err
	}

	request := openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: ExtractionPrompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    "data:image/png;base64," + base64.StdEncoding.EncodeToString(byteImage),
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
	}

	response, err := retry(ctx, r.backoffDuration, func() (string, error) {
		result, err := r.chat.CreateChatCompletion(ctx, request)
		if err != nil {
			return "", err
		}
		return yaOpenai.GetCompletionContent(result)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}
	return ParseExtractions(response), nil
}
