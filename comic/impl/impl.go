package impl

import (
	"context"
	"image"

	"github.com/visionex-project/comicex/comic/impl/font"
	"github.com/visionex-project/comicex/comic/impl/recognizer"
	"github.com/visionex-project/comicex/comic/impl/record"
	"github.com/visionex-project/comicex/comic/impl/storage"
	"github.com/visionex-project/comicex/pkg/compositor"
	"github.com/visionex-project/comicex/pkg/geometry"
	"github.com/visionex-project/comicex/pkg/layout"
	"github.com/visionex-project/comicex/pkg/merger"
	"github.com/visionex-project/comicex/pkg/segmenter"
)

// Detector finds speech bubbles on a page.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]geometry.DetectedBox, error)
}

// HeatmapModel scores every pixel of a page by how likely it belongs to text.
type HeatmapModel interface {
	Heatmap(ctx context.Context, img image.Image) (segmenter.Heatmap, error)
}

// LanguageModelClient translates the text of one bubble.
type LanguageModelClient interface {
	Translate(ctx context.Context, text string, sourceLanguage string, targetLanguage string) (string, error)
}

// Ledger keeps a record of every run and page.
type Ledger interface {
	StartRun(ctx context.Context, run record.Run) (int64, error)
	SavePage(ctx context.Context, runID int64, page record.Page) error
}

type Pipeline struct {
	// Every detector runs on the whole page and their boxes are merged together.
	detectors  []Detector
	recognizer recognizer.Recognizer
	// Nil keeps the recognized text untranslated.
	translator LanguageModelClient
	heatmap    HeatmapModel

	// Removes the original text before the translation is drawn.
	compositor   *compositor.Compositor
	fontProvider font.FontProvider
	storage      Storage
	// Nil disables the ledger.
	ledger Ledger

	options Options
}

type Storage struct {
	// Receives the translated pages. E.g., storage.NewLocal()
	Client storage.Client
	// Directory or bucket of the translated pages. E.g., out
	Output string

	// Receives a copy of every page before and after translation. Nil disables the mirror.
	Mirror storage.Client
	// E.g., comicex-pages
	MirrorBucket string
}

type Options struct {
	Merge merger.Strategy
	// E.g., 0.9
	MergeThreshold float64
	Segmenter      segmenter.Segmenter
	Layout         layout.Engine

	// E.g., en
	SourceLanguage string
	// E.g., hu
	TargetLanguage string

	// Pages translated at the same time. E.g., 4
	Workers int
	// Also writes the page without text to clean/%04d.png.
	KeepCleaned bool
	// Also writes numbered bubble and region boxes to debug/%04d.png.
	Debug bool
	// Stored with the run in the ledger. E.g., chapters/001
	Input string
}

func New(
	detectors []Detector,
	recognizer recognizer.Recognizer,
	translator LanguageModelClient,
	heatmap HeatmapModel,
	compositor *compositor.Compositor,
	fontProvider font.FontProvider,
	storage Storage,
	ledger Ledger,
	options Options,
) *Pipeline {
	if options.Merge == nil {
		options.Merge = merger.MinAreaRatio{}
	}
	if options.Workers <= 0 {
		options.Workers = 1
	}
	return &Pipeline{
		detectors:    detectors,
		recognizer:   recognizer,
		translator:   translator,
		heatmap:      heatmap,
		compositor:   compositor,
		fontProvider: fontProvider,
		storage:      storage,
		ledger:       ledger,
		options:      options,
	}
}
