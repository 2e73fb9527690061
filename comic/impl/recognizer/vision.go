package recognizer

import (
	"context"
	"fmt"
	"image"
	"time"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"

	"github.com/visionex-project/comicex/comic/impl/vision"
)

// VisionRecognizer reads a crop with Google Cloud Vision document text detection.
type VisionRecognizer struct {
	client          vision.Client
	backoffDuration time.Duration
}

func NewVision(client vision.Client, backoffDuration time.Duration) *VisionRecognizer {
	return &VisionRecognizer{client: client, backoffDuration: backoffDuration}
}

func (r *VisionRecognizer) Recognize(ctx context.Context, crop image.Image) ([]Extraction, error) {
	byteImage, err := encodePNG(crop)
	if err != nil {
		return nil, err
	}

	annotation, err := retry(ctx, r.backoffDuration, func() (*visionpb.TextAnnotation, error) {
		return r.client.DetectDocumentText(ctx, &visionpb.Image{Content: byteImage}, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to detect text: %w", err)
	}

	text, language := vision.DocumentText(annotation)
	return nonBlank([]Extraction{{Text: text, Language: language}}), nil
}
