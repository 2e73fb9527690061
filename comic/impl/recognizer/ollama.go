package recognizer

import (
	"context"
	"fmt"
	"image"

	"github.com/visionex-project/comicex/comic/impl/ollama"
)

// OllamaRecognizer asks a local vision model served by Ollama.
type OllamaRecognizer struct {
	client ollama.Client
}

func NewOllama(client ollama.Client) *OllamaRecognizer {
	return &OllamaRecognizer{client: client}
}

func (r *OllamaRecognizer) Recognize(ctx context.Context, crop image.Image) ([]Extraction, error) {
	byteImage, err := encodePNG(crop)
	if err != nil {
		return nil, err
	}
	response, err := r.client.Describe(ctx, byteImage, "image/png", ExtractionPrompt)
	if err != nil {
		return nil, fmt.Errorf("failed to describe crop: %w", err)
	}
	return ParseExtractions(response), nil
}
