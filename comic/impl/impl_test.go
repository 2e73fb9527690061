package impl

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

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

var (
	bubbleRect  = geometry.R(20, 20, 120, 100)
	textRect    = image.Rect(40, 40, 80, 60)
	outsideRect = image.Rect(150, 150, 170, 170)
)

type fakeDetector struct {
	boxes []geometry.DetectedBox
	err   error
}

func (f fakeDetector) Detect(context.Context, image.Image) ([]geometry.DetectedBox, error) {
	return append([]geometry.DetectedBox{}, f.boxes...), f.err
}

type fakeRecognizer struct {
	extractions []recognizer.Extraction
	err         error
}

func (f fakeRecognizer) Recognize(context.Context, image.Image) ([]recognizer.Extraction, error) {
	return f.extractions, f.err
}

type fakeTranslator struct {
	calls atomic.Int32
}

func (f *fakeTranslator) Translate(_ context.Context, text string, sourceLanguage string, targetLanguage string) (string, error) {
	f.calls.Add(1)
	return "szia", nil
}

// fakeHeatmap is hot on the given rectangles.
type fakeHeatmap struct {
	hot []image.Rectangle
	err error
}

func (f fakeHeatmap) Heatmap(_ context.Context, img image.Image) (segmenter.Heatmap, error) {
	if f.err != nil {
		return segmenter.Heatmap{}, f.err
	}
	heatmap := segmenter.NewHeatmap(img.Bounds().Dx(), img.Bounds().Dy())
	for _, rect := range f.hot {
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			for x := rect.Min.X; x < rect.Max.X; x++ {
				heatmap.Set(x, y, 1)
			}
		}
	}
	return heatmap, nil
}

// fakeInpainter paints masked pixels white and keeps the rest of the tile.
type fakeInpainter struct {
	calls atomic.Int32
	size  int
}

func (f *fakeInpainter) Inpaint(_ context.Context, tile image.Image, mask *image.Gray) (image.Image, error) {
	f.calls.Add(1)
	if f.size > 0 {
		return image.NewRGBA(image.Rect(0, 0, f.size, f.size)), nil
	}
	result := image.NewRGBA(tile.Bounds())
	draw.Draw(result, result.Bounds(), tile, tile.Bounds().Min, draw.Src)
	for y := 0; y < result.Bounds().Dy(); y++ {
		for x := 0; x < result.Bounds().Dx(); x++ {
			if mask.GrayAt(x, y).Y != 0 {
				result.Set(x, y, color.White)
			}
		}
	}
	return result, nil
}

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeStorage) SaveBytes(_ context.Context, bucket string, object string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[bucket+"/"+object] = data
	return nil
}

type fakeLedger struct {
	mu    sync.Mutex
	pages []record.Page
}

func (f *fakeLedger) StartRun(context.Context, record.Run) (int64, error) {
	return 7, nil
}

func (f *fakeLedger) SavePage(_ context.Context, runID int64, page record.Page) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages = append(f.pages, page)
	return nil
}

type fakeSource struct {
	pages    []image.Image
	failing  map[int]error
	closeErr error
	closed   bool
}

func (f *fakeSource) PageCount() int {
	return len(f.pages)
}

func (f *fakeSource) Name(index int) string {
	return fmt.Sprintf("%02d.png", index+1)
}

func (f *fakeSource) RenderPage(index int) (image.Image, error) {
	if err := f.failing[index]; err != nil {
		return nil, err
	}
	return f.pages[index], nil
}

func (f *fakeSource) Close() error {
	f.closed = true
	return f.closeErr
}

// newPage is a white page with black text inside the bubble and a black mark outside of it.
func newPage() *image.RGBA {
	page := image.NewRGBA(image.Rect(0, 0, 200, 200))
	draw.Draw(page, page.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(page, textRect, image.Black, image.Point{}, draw.Src)
	draw.Draw(page, outsideRect, image.Black, image.Point{}, draw.Src)
	return page
}

type testPipeline struct {
	pipeline   *Pipeline
	inpainter  *fakeInpainter
	translator *fakeTranslator
	ledger     *fakeLedger
	mirror     *fakeStorage
	output     string
}

type pipelineOption func(*pipelineSetup)

type pipelineSetup struct {
	detectors  []Detector
	recognizer recognizer.Recognizer
	heatmap    HeatmapModel
	inpainter  *fakeInpainter
	options    Options
	noLLM      bool
}

func newTestPipeline(t *testing.T, opts ...pipelineOption) testPipeline {
	t.Helper()
	setup := pipelineSetup{
		detectors: []Detector{
			fakeDetector{boxes: []geometry.DetectedBox{{Rect: bubbleRect, Confidence: 0.9}}},
			fakeDetector{boxes: []geometry.DetectedBox{{Rect: geometry.R(22, 22, 118, 98), Confidence: 0.7}}},
		},
		recognizer: fakeRecognizer{extractions: []recognizer.Extraction{{Text: "hello  there", Language: "eng"}}},
		heatmap:    fakeHeatmap{hot: []image.Rectangle{textRect, outsideRect}},
		inpainter:  &fakeInpainter{},
		options: Options{
			Merge:          merger.MinAreaRatio{},
			MergeThreshold: 0.9,
			Segmenter:      segmenter.Segmenter{Threshold: 0.5, PaddingX: 5, PaddingY: 5},
			Layout:         layout.Engine{MaxSize: 40, MinSize: 8, Step: 1},
			SourceLanguage: "en",
			TargetLanguage: "hu",
			Workers:        1,
		},
	}
	for _, opt := range opts {
		opt(&setup)
	}

	c, err := compositor.New(setup.inpainter, 256)
	if err != nil {
		t.Fatalf("compositor.New() error = %v", err)
	}
	fonts, err := font.New("")
	if err != nil {
		t.Fatalf("font.New() error = %v", err)
	}

	translator := &fakeTranslator{}
	var llm LanguageModelClient = translator
	if setup.noLLM {
		llm = nil
	}
	ledger := &fakeLedger{}
	mirror := &fakeStorage{}
	output := t.TempDir()
	pipeline := New(
		setup.detectors,
		setup.recognizer,
		llm,
		setup.heatmap,
		c,
		fonts,
		Storage{Client: storage.NewLocal(), Output: output, Mirror: mirror, MirrorBucket: "mirror"},
		ledger,
		setup.options,
	)
	return testPipeline{
		pipeline:   pipeline,
		inpainter:  setup.inpainter,
		translator: translator,
		ledger:     ledger,
		mirror:     mirror,
		output:     output,
	}
}

func isDark(c color.Color) bool {
	r, _, _, _ := c.RGBA()
	return r < 0x8000
}

func TestTranslatePage(t *testing.T) {
	tp := newTestPipeline(t)

	outcome, err := tp.pipeline.TranslatePage(context.Background(), newPage())
	if err != nil {
		t.Fatalf("TranslatePage() error = %v", err)
	}

	if len(outcome.Bubbles) != 1 {
		t.Errorf("bubbles = %v, want the two detections merged into one", outcome.Bubbles)
	}
	if len(outcome.Regions) != 2 {
		t.Errorf("regions = %v, want 2", outcome.Regions)
	}
	if len(outcome.Texts) != 1 || outcome.Texts[0].Language != "eng" || outcome.Texts[0].Region != bubbleRect {
		t.Fatalf("texts = %+v", outcome.Texts)
	}
	if strings.Contains(outcome.Texts[0].Text, "  ") {
		t.Errorf("text %q was not normalized", outcome.Texts[0].Text)
	}
	if got := tp.translator.calls.Load(); got != 1 {
		t.Errorf("translator called %d times, want 1", got)
	}
	if len(outcome.Overflows) != 0 {
		t.Errorf("unexpected overflows: %+v", outcome.Overflows)
	}

	if isDark(outcome.Cleaned.At(60, 50)) {
		t.Errorf("text inside the bubble was not removed")
	}
	if !isDark(outcome.Cleaned.At(160, 160)) {
		t.Errorf("mark outside of every bubble was removed")
	}

	drawn := false
	for y := 35; y < 65 && !drawn; y++ {
		for x := 35; x < 85 && !drawn; x++ {
			drawn = isDark(outcome.Translated.At(x, y))
		}
	}
	if !drawn {
		t.Errorf("no translated text drawn into the text region")
	}
}

func TestTranslatePageWithoutTranslator(t *testing.T) {
	tp := newTestPipeline(t, func(s *pipelineSetup) { s.noLLM = true })

	outcome, err := tp.pipeline.TranslatePage(context.Background(), newPage())
	if err != nil {
		t.Fatalf("TranslatePage() error = %v", err)
	}
	if len(outcome.Texts) != 1 {
		t.Fatalf("texts = %+v, want the recognized text kept", outcome.Texts)
	}
	if tp.translator.calls.Load() != 0 {
		t.Errorf("translator called without being configured")
	}
}

func TestTranslatePageReportsBubbleWithoutRegion(t *testing.T) {
	tp := newTestPipeline(t, func(s *pipelineSetup) {
		s.heatmap = fakeHeatmap{hot: []image.Rectangle{outsideRect}}
	})

	outcome, err := tp.pipeline.TranslatePage(context.Background(), newPage())
	if err != nil {
		t.Fatalf("TranslatePage() error = %v", err)
	}
	if len(outcome.Texts) != 1 {
		t.Fatalf("texts = %+v, want 1", outcome.Texts)
	}
	if len(outcome.Overflows) != 1 {
		t.Fatalf("overflows = %+v, want the unplaced translation", outcome.Overflows)
	}
	overflow := outcome.Overflows[0]
	if overflow.Text != "szia" {
		t.Errorf("overflow text = %q, want %q", overflow.Text, "szia")
	}
	if len(overflow.Remaining) != 1 || overflow.Remaining[0] != "szia" {
		t.Errorf("remaining = %q, want every word", overflow.Remaining)
	}
	if overflow.Size != 8 {
		t.Errorf("size = %v, want the minimum size 8", overflow.Size)
	}
	if tp.inpainter.calls.Load() != 0 {
		t.Errorf("inpainter called without any assigned region")
	}
}

func TestTranslatePageSkipsBubbles(t *testing.T) {
	tests := []struct {
		name        string
		extractions []recognizer.Extraction
	}{
		{name: "no text", extractions: []recognizer.Extraction{}},
		{name: "blank text", extractions: []recognizer.Extraction{{Text: "   ", Language: "eng"}}},
		{name: "punctuation only", extractions: []recognizer.Extraction{{Text: "...!?", Language: "eng"}}},
		{name: "target language", extractions: []recognizer.Extraction{{Text: "Szia!", Language: "hun"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp := newTestPipeline(t, func(s *pipelineSetup) {
				s.recognizer = fakeRecognizer{extractions: tt.extractions}
			})

			outcome, err := tp.pipeline.TranslatePage(context.Background(), newPage())
			if err != nil {
				t.Fatalf("TranslatePage() error = %v", err)
			}
			if len(outcome.Texts) != 0 {
				t.Errorf("texts = %+v, want none", outcome.Texts)
			}
			if tp.inpainter.calls.Load() != 0 {
				t.Errorf("inpainter called without any text to replace")
			}
			if !isDark(outcome.Cleaned.At(60, 50)) {
				t.Errorf("text of a skipped bubble was removed")
			}
		})
	}
}

func TestTranslatePageCollaboratorFailures(t *testing.T) {
	failure := errors.New("service unavailable")
	tests := []struct {
		name         string
		option       pipelineOption
		collaborator string
		cause        error
	}{
		{
			name: "detector",
			option: func(s *pipelineSetup) {
				s.detectors = append(s.detectors, fakeDetector{err: failure})
			},
			collaborator: COLLABORATOR_DETECTOR,
			cause:        failure,
		},
		{
			name:         "recognizer",
			option:       func(s *pipelineSetup) { s.recognizer = fakeRecognizer{err: failure} },
			collaborator: COLLABORATOR_RECOGNIZER,
			cause:        failure,
		},
		{
			name:         "heatmap",
			option:       func(s *pipelineSetup) { s.heatmap = fakeHeatmap{err: failure} },
			collaborator: COLLABORATOR_HEATMAP,
			cause:        failure,
		},
		{
			name:         "inpainter tile size",
			option:       func(s *pipelineSetup) { s.inpainter = &fakeInpainter{size: 64} },
			collaborator: COLLABORATOR_INPAINTER,
			cause:        compositor.ErrUnexpectedTileSize,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp := newTestPipeline(t, tt.option)

			_, err := tp.pipeline.TranslatePage(context.Background(), newPage())

			var collaboratorFailure *CollaboratorFailure
			if !errors.As(err, &collaboratorFailure) {
				t.Fatalf("error = %v, want a CollaboratorFailure", err)
			}
			if collaboratorFailure.Collaborator != tt.collaborator {
				t.Errorf("collaborator = %s, want %s", collaboratorFailure.Collaborator, tt.collaborator)
			}
			if !errors.Is(err, tt.cause) {
				t.Errorf("error = %v, want it to wrap %v", err, tt.cause)
			}
			if !IsPageFailure(err) {
				t.Errorf("IsPageFailure(%v) = false", err)
			}
		})
	}
}

func TestRunKeepsPageOrder(t *testing.T) {
	tp := newTestPipeline(t, func(s *pipelineSetup) {
		s.options.Workers = 3
		s.options.KeepCleaned = true
		s.options.Debug = true
	})
	unreadable := errors.New("truncated file")
	src := &fakeSource{
		pages:   []image.Image{newPage(), newPage(), newPage(), newPage(), newPage()},
		failing: map[int]error{2: unreadable},
	}

	results, err := tp.pipeline.Run(context.Background(), src)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !src.closed {
		t.Errorf("source was not closed")
	}
	if len(results) != 5 {
		t.Fatalf("results = %d, want 5", len(results))
	}

	for i, result := range results {
		if result.Index != i || result.Name != src.Name(i) {
			t.Errorf("result %d = %+v, out of order", i, result)
		}
		if i == 2 {
			var inputError *InputError
			if !errors.As(result.Err, &inputError) || inputError.Page != "03.png" || !errors.Is(result.Err, unreadable) {
				t.Errorf("result 2 error = %v, want an InputError for 03.png", result.Err)
			}
			continue
		}
		if result.Err != nil {
			t.Errorf("result %d error = %v", i, result.Err)
			continue
		}
		want := fmt.Sprintf("%04d.png", i)
		if result.Output != want || result.Bubbles != 1 || result.Regions != 2 {
			t.Errorf("result %d = %+v", i, result)
		}
		for _, object := range []string{want, "clean/" + want, "debug/" + want} {
			if _, err := os.Stat(filepath.Join(tp.output, object)); err != nil {
				t.Errorf("missing %s: %v", object, err)
			}
		}
	}

	if _, err := os.Stat(filepath.Join(tp.output, "0002.png")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("failed page was written")
	}
	if len(tp.ledger.pages) != 5 {
		t.Errorf("ledger pages = %d, want 5", len(tp.ledger.pages))
	}
	for _, page := range tp.ledger.pages {
		if (page.Index == 2) != (page.Status == record.STATUS_FAILED) {
			t.Errorf("ledger page %d status = %s", page.Index, page.Status)
		}
	}
	if len(tp.mirror.objects) != 8 {
		t.Errorf("mirrored objects = %d, want a before and an after image per translated page", len(tp.mirror.objects))
	}
	if err := Failures(results); !errors.Is(err, unreadable) || !IsPageFailure(err) {
		t.Errorf("Failures() = %v, want a page failure wrapping %v", err, unreadable)
	}
}

func TestRunReleaseFailure(t *testing.T) {
	tp := newTestPipeline(t)
	closeErr := errors.New("close failed")
	src := &fakeSource{pages: []image.Image{newPage()}, closeErr: closeErr}

	results, err := tp.pipeline.Run(context.Background(), src)

	var exhaustion *ResourceExhaustion
	if !errors.As(err, &exhaustion) || exhaustion.Primary != nil {
		t.Fatalf("Run() error = %v, want a ResourceExhaustion without primary error", err)
	}
	if !errors.Is(err, closeErr) {
		t.Errorf("Run() error = %v, want it to wrap %v", err, closeErr)
	}
	if len(results) != 1 || results[0].Err != nil {
		t.Errorf("results = %+v", results)
	}
}

func TestRunCancelled(t *testing.T) {
	tp := newTestPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := tp.pipeline.Run(ctx, &fakeSource{pages: []image.Image{newPage(), newPage()}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want %v", err, context.Canceled)
	}
	if IsPageFailure(err) {
		t.Errorf("IsPageFailure(%v) = true for an interrupted run", err)
	}
	for _, result := range results {
		if !errors.Is(result.Err, context.Canceled) {
			t.Errorf("result %d error = %v", result.Index, result.Err)
		}
	}
}

func TestWithCleanup(t *testing.T) {
	primary := &InputError{Page: "01.png", Err: errors.New("bad header")}
	cleanup := errors.New("temp file busy")

	if got := WithCleanup(primary, nil); got != error(primary) {
		t.Errorf("WithCleanup(primary, nil) = %v, want the primary error", got)
	}
	if got := WithCleanup(nil, nil); got != nil {
		t.Errorf("WithCleanup(nil, nil) = %v", got)
	}

	err := WithCleanup(primary, cleanup)
	if !strings.HasPrefix(err.Error(), primary.Error()) {
		t.Errorf("Error() = %q, want it to lead with %q", err.Error(), primary.Error())
	}
	var inputError *InputError
	if !errors.As(err, &inputError) || inputError != primary {
		t.Errorf("errors.As() did not find the primary error")
	}
	if !errors.Is(err, cleanup) {
		t.Errorf("errors.Is() did not find the cleanup error")
	}
}

func TestContrastingColor(t *testing.T) {
	tests := []struct {
		name       string
		background color.Color
		want       color.Color
	}{
		{name: "white", background: color.White, want: color.Black},
		{name: "light yellow", background: color.RGBA{255, 250, 200, 255}, want: color.Black},
		{name: "black", background: color.Black, want: color.White},
		{name: "dark blue", background: color.RGBA{10, 20, 90, 255}, want: color.White},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := image.NewRGBA(image.Rect(0, 0, 10, 10))
			draw.Draw(img, img.Bounds(), image.NewUniform(tt.background), image.Point{}, draw.Src)
			if got := contrastingColor(img, image.Rect(2, 2, 8, 8)); got != tt.want {
				t.Errorf("contrastingColor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCrop(t *testing.T) {
	page := newPage()
	cropped := crop(page, image.Rect(30, 30, 90, 70))
	if cropped.Bounds() != image.Rect(0, 0, 60, 40) {
		t.Fatalf("bounds = %v", cropped.Bounds())
	}
	if !isDark(cropped.At(20, 20)) || isDark(cropped.At(0, 0)) {
		t.Errorf("crop does not keep the page content")
	}
}

func TestDebugOverlay(t *testing.T) {
	page := newPage()
	overlay := debugOverlay(page, []geometry.DetectedBox{{Rect: bubbleRect}}, nil)

	if got := overlay.RGBAAt(50, 20); got != (color.RGBA{0, 0, 255, 255}) {
		t.Errorf("bubble border = %v, want blue", got)
	}
	if page.RGBAAt(50, 20) != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("overlay modified the page")
	}
}

func TestNumberFontParsedOnce(t *testing.T) {
	first := numberFont()
	if first == nil {
		t.Fatalf("numberFont() = nil")
	}
	if second := numberFont(); second != first {
		t.Errorf("numberFont() parsed the font again")
	}
	if numberFace() == numberFace() {
		t.Errorf("numberFace() shared a face between overlays")
	}
}
