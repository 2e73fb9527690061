package documentai

import (
	"testing"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
)

func TestProcessRequest(t *testing.T) {
	spec := Spec{ProjectID: "comicex", Location: "eu", ProcessorID: "abc"}
	request := spec.ProcessRequest([]byte{1})

	if request.GetName() != "projects/comicex/locations/eu/processors/abc" {
		t.Errorf("name = %s", request.GetName())
	}
	if request.GetRawDocument().GetMimeType() != "image/png" || len(request.GetRawDocument().GetContent()) != 1 {
		t.Errorf("raw document = %+v", request.GetRawDocument())
	}
}

func TestDocumentText(t *testing.T) {
	document := &documentaipb.Document{
		Text: "WHAT\nIS  THIS?",
		Pages: []*documentaipb.Document_Page{{
			DetectedLanguages: []*documentaipb.Document_Page_DetectedLanguage{
				{LanguageCode: "en", Confidence: 0.9},
				{LanguageCode: "fr", Confidence: 0.1},
			},
		}},
	}

	text, language := DocumentText(document)
	if text != "WHAT IS THIS?" || language != "en" {
		t.Errorf("DocumentText() = %q, %q", text, language)
	}
}
