package recognizer

import (
	"context"
	"fmt"
	"image"
	"time"

	"cloud.google.com/go/documentai/apiv1/documentaipb"

	"github.com/visionex-project/comicex/comic/impl/documentai"
)

// DocumentaiRecognizer reads a crop with a Document AI OCR processor.
type DocumentaiRecognizer struct {
	client          documentai.Client
	spec            documentai.Spec
	backoffDuration time.Duration
}

func NewDocumentai(client documentai.Client, spec documentai.Spec, backoffDuration time.Duration) *DocumentaiRecognizer {
	return &DocumentaiRecognizer{client: client, spec: spec, backoffDuration: backoffDuration}
}

func (r *DocumentaiRecognizer) Recognize(ctx context.Context, crop image.Image) ([]Extraction, error) {
	byteImage, err := encodePNG(crop)
	if err != nil {
		return nil, err
	}

	response, err := retry(ctx, r.backoffDuration, func() (*documentaipb.ProcessResponse, error) {
		return r.client.ProcessDocument(ctx, r.spec.ProcessRequest(byteImage))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to process document: %w", err)
	}

	text, language := documentai.DocumentText(response.GetDocument())
	return nonBlank([]Extraction{{Text: text, Language: language}}), nil
}
