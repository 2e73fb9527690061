package documentai

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/googleapis/gax-go/v2"
)

// Client is the part of the DocumentProcessorClient used for bubble OCR. Tests replace it with a fake.
// Ref: https://pkg.go.dev/cloud.google.com/go/documentai
type Client interface {
	ProcessDocument(ctx context.Context, req *documentaipb.ProcessRequest, opts ...gax.CallOption) (*documentaipb.ProcessResponse, error)
}

type Spec struct {
	// E.g., comicex-prod
	ProjectID string
	// E.g., us
	Location string
	// E.g., 98dae69a95e1906
	ProcessorID string
}

func (s Spec) ProcessorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s", s.ProjectID, s.Location, s.ProcessorID)
}

// ProcessRequest asks the OCR processor to read one PNG crop.
func (s Spec) ProcessRequest(png []byte) *documentaipb.ProcessRequest {
	return &documentaipb.ProcessRequest{
		Name: s.ProcessorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  png,
				MimeType: "image/png",
			},
		},
	}
}

// DocumentText returns the document text on one line and the most confident language of the
// first page.
func DocumentText(document *documentaipb.Document) (string, string) {
	text := strings.Join(strings.Fields(document.GetText()), " ")

	language := ""
	confidence := float32(-1)
	if pages := document.GetPages(); len(pages) > 0 {
		for _, detected := range pages[0].GetDetectedLanguages() {
			if detected.GetLanguageCode() != "" && detected.GetConfidence() > confidence {
				language, confidence = detected.GetLanguageCode(), detected.GetConfidence()
			}
		}
	}
	return text, language
}
