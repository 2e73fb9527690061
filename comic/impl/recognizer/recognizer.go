package recognizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"log"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/visionex-project/comicex/pkg/utils"
)

// Recognizer reads the text of one cropped bubble.
type Recognizer interface {
	Recognize(ctx context.Context, crop image.Image) ([]Extraction, error)
}

type Extraction struct {
	// E.g., "WAIT FOR ME!"
	Text string `json:"text"`
	// ISO 639 code reported by the recognizer. E.g., eng
	Language string `json:"language"`
}

// ExtractionPrompt asks a vision model for every bubble text of a crop.
const ExtractionPrompt = `Extract the text from the speech bubbles in this comic image.
Return a JSON array of objects with the fields "text" and "language", where "language" is the three letter ISO 639-2 code of the text.
Keep the reading order of the bubbles. Return an empty array when there is no text.
Example:
` + "```json" + `
[
  { "text": "Where are you going?", "language": "eng" }
]
` + "```"

// ParseExtractions reads the JSON array between the first "```json" fence and the next "```".
// A missing or malformed payload yields no extractions; it is logged, not returned.
func ParseExtractions(response string) []Extraction {
	payload, err := extractJson(response)
	if err != nil {
		log.Printf("Failed to find extraction payload: %v", err)
		return []Extraction{}
	}

	var extractions []Extraction
	if err := json.Unmarshal([]byte(payload), &extractions); err != nil {
		log.Printf("Failed to parse extraction payload: %v", err)
		return []Extraction{}
	}
	return nonBlank(extractions)
}

func extractJson(text string) (string, error) {
	_, rest, found := strings.Cut(text, "```json")
	if !found {
		return "", fmt.Errorf("no JSON block in the text")
	}
	payload, _, found := strings.Cut(rest, "```")
	if !found {
		return "", fmt.Errorf("no closing JSON block in the text")
	}
	return payload, nil
}

func nonBlank(extractions []Extraction) []Extraction {
	return utils.Map(
		utils.Filter(extractions, func(extraction Extraction) bool {
			return strings.TrimSpace(extraction.Text) != ""
		}),
		func(extraction Extraction) Extraction {
			return Extraction{Text: strings.TrimSpace(extraction.Text), Language: strings.TrimSpace(extraction.Language)}
		},
	)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode crop: %w", err)
	}
	return buf.Bytes(), nil
}

func retry[T any](ctx context.Context, backoffDuration time.Duration, operation func() (T, error)) (T, error) {
	return backoff.RetryWithData(operation, backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(backoffDuration), 4), ctx))
}
