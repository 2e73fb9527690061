package genai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/generative-ai-go/genai"
	"github.com/sashabaranov/go-openai"

	"github.com/visionex-project/comicex/pkg/utils"
)

// Client exposes Gemini through the OpenAI chat completion shape so that translators and
// recognizers do not depend on the backend.
type Client interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type client struct {
	genaiClient *genai.Client
}

func New(genaiClient *genai.Client) Client {
	return &client{genaiClient: genaiClient}
}

type GenaiModel string

const (
	GenaiModelFlash    GenaiModel = "gemini-1.5-flash"
	GenaiModelPro      GenaiModel = "gemini-1.5-pro"
	GenaiModelFlash2_0 GenaiModel = "gemini-2.0-flash"
)

// CreateChatCompletion fails permanently on requests that cannot succeed on a retry.
func (c *client) CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if err := ValidateModel(request.Model); err != nil {
		return openai.ChatCompletionResponse{}, backoff.Permanent(err)
	}
	if len(request.Messages) == 0 {
		return openai.ChatCompletionResponse{}, backoff.Permanent(errors.New("no messages in request"))
	}

	history, parts, err := toGenaiConversation(request.Messages)
	if err != nil {
		return openai.ChatCompletionResponse{}, backoff.Permanent(err)
	}
	genaiModel := c.genaiClient.GenerativeModel(request.Model)
	chatSession := genaiModel.StartChat()
	chatSession.History = history

	resp, err := chatSession.SendMessage(ctx, parts...)
	if err != nil {
		return openai.ChatCompletionResponse{}, err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return openai.ChatCompletionResponse{}, errors.New("no response from model")
	}

	return openai.ChatCompletionResponse{
		Model: request.Model,
		Choices: []openai.ChatCompletionChoice{
			{
				Message: openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleAssistant,
					Content: partsText(resp.Candidates[0].Content.Parts),
				},
			},
		},
	}, nil
}

// toGenaiConversation splits the messages into the chat history and the parts of the last
// message. System messages become user turns prefixed with "System: ".
func toGenaiConversation(messages []openai.ChatCompletionMessage) ([]*genai.Content, []genai.Part, error) {
	history := []*genai.Content{}
	for _, message := range messages[:len(messages)-1] {
		parts, err := toGenaiParts(message)
		if err != nil {
			return nil, nil, err
		}
		if message.Role == openai.ChatMessageRoleSystem {
			parts = []genai.Part{genai.Text("System: " + message.Content)}
		}
		history = append(history, &genai.Content{Parts: parts, Role: toGenaiRole(message.Role)})
	}

	parts, err := toGenaiParts(messages[len(messages)-1])
	if err != nil {
		return nil, nil, err
	}
	return history, parts, nil
}

func toGenaiParts(message openai.ChatCompletionMessage) ([]genai.Part, error) {
	if message.MultiContent == nil {
		if message.Content == "" {
			return []genai.Part{}, nil
		}
		return []genai.Part{genai.Text(message.Content)}, nil
	}

	parts := []genai.Part{}
	for _, content := range message.MultiContent {
		if content.Type != openai.ChatMessagePartTypeImageURL {
			parts = append(parts, genai.Text(content.Text))
			continue
		}
		if content.ImageURL == nil {
			return nil, errors.New("image part without URL")
		}
		data, mimeType, err := decodeImageURL(content.ImageURL.URL)
		if err != nil {
			return nil, err
		}
		parts = append(parts, genai.Blob{MIMEType: mimeType, Data: data})
	}
	return parts, nil
}

func toGenaiRole(role string) string {
	if role == openai.ChatMessageRoleAssistant {
		return "model"
	}
	return "user"
}

func partsText(parts []genai.Part) string {
	texts := utils.Map(parts, func(part genai.Part) string {
		if text, ok := part.(genai.Text); ok {
			return string(text)
		}
		return ""
	})
	return strings.Join(texts, "")
}

// decodeImageURL reads a base64 data URI. E.g., data:image/png;base64,iVBORw0KGgo...
func decodeImageURL(dataURI string) ([]byte, string, error) {
	if !strings.HasPrefix(dataURI, "data:") {
		return nil, "", errors.New("invalid data URI format")
	}

	header, payload, found := strings.Cut(dataURI, ",")
	if !found {
		return nil, "", errors.New("invalid data URI format")
	}

	mimeType := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
	decodedData, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode data URI: %w", err)
	}
	return decodedData, mimeType, nil
}

func ValidateModel(model string) error {
	switch GenaiModel(model) {
	case GenaiModelFlash, GenaiModelPro, GenaiModelFlash2_0:
		return nil
	default:
		return fmt.Errorf("invalid model: %s", model)
	}
}
