package impl

import (
	"image"

	"github.com/visionex-project/comicex/pkg/geometry"
	"github.com/visionex-project/comicex/pkg/layout"
)

// RecognizedText is the text read from one bubble.
type RecognizedText struct {
	// Normalized source text. E.g., "Wait for me!"
	Text string
	// Language reported by the recognizer, or the configured source language. E.g., eng
	Language string
	// The bubble the text was read from.
	Region geometry.Rect
}

// bubbleText is a bubble together with its text before and after translation.
type bubbleText struct {
	box         geometry.DetectedBox
	recognized  RecognizedText
	translation string
}

// PageOutcome is what translating one page image produces.
type PageOutcome struct {
	// The page with translated text drawn in.
	Translated image.Image
	// The page with the original text removed.
	Cleaned *image.RGBA
	// Merged bubbles in detection order.
	Bubbles []geometry.DetectedBox
	// Enlarged text mask regions of the whole page.
	Regions []geometry.TextMaskRegion
	Texts   []RecognizedText
	// Texts that did not fit their regions even at the smallest font size.
	Overflows []layout.Overflow
}

// PageResult is the outcome of one page of a batch.
type PageResult struct {
	// Position of the page in the sorted input. E.g., 0
	Index int
	// E.g., 001.jpg
	Name string
	// Object the translated page was written to. E.g., 0000.png
	Output    string
	Bubbles   int
	Regions   int
	Overflows []layout.Overflow
	// Set when the page failed. Other pages are unaffected.
	Err error
}
