package vision

import (
	"context"
	"strings"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	gax "github.com/googleapis/gax-go/v2"

	"github.com/visionex-project/comicex/pkg/utils"
)

// Client is the part of vision.ImageAnnotatorClient used for bubble OCR. Tests replace it with a fake.
// Ref: https://pkg.go.dev/cloud.google.com/go/vision/apiv1
type Client interface {
	DetectDocumentText(ctx context.Context, image *visionpb.Image, imageContext *visionpb.ImageContext, opts ...gax.CallOption) (*visionpb.TextAnnotation, error)
}

// DocumentText returns the text of an annotation on one line together with the most confident
// detected language of its first page. E.g., ("HELLO THERE!", "en")
func DocumentText(annotation *visionpb.TextAnnotation) (string, string) {
	text := strings.Join(strings.Fields(annotation.GetText()), " ")

	language := ""
	confidence := float32(-1)
	for _, page := range annotation.GetPages()[:min(1, len(annotation.GetPages()))] {
		languages := utils.Filter(page.GetProperty().GetDetectedLanguages(), func(detected *visionpb.TextAnnotation_DetectedLanguage) bool {
			return detected.GetLanguageCode() != ""
		})
		for _, detected := range languages {
			if detected.GetConfidence() > confidence {
				language, confidence = detected.GetLanguageCode(), detected.GetConfidence()
			}
		}
	}
	return text, language
}
