package impl

import (
	"context"
	"fmt"
	"image"
	"log"
	"strings"
	"unicode"

	"github.com/visionex-project/comicex/comic/impl/font"
	"github.com/visionex-project/comicex/comic/impl/recognizer"
	"github.com/visionex-project/comicex/pkg/assigner"
	"github.com/visionex-project/comicex/pkg/geometry"
	"github.com/visionex-project/comicex/pkg/layout"
	"github.com/visionex-project/comicex/pkg/textproc"
	"github.com/visionex-project/comicex/pkg/utils"
)

// TranslatePage replaces the text of every speech bubble on img with its translation.
func (p *Pipeline) TranslatePage(ctx context.Context, img image.Image) (*PageOutcome, error) {
	page := geometry.FromImage(img.Bounds())

	bubbles, err := p.detectBubbles(ctx, img)
	if err != nil {
		return nil, err
	}

	texts, err := p.readBubbles(ctx, img, page, bubbles)
	if err != nil {
		return nil, err
	}

	heatmap, err := p.heatmap.Heatmap(ctx, img)
	if err != nil {
		return nil, &CollaboratorFailure{Collaborator: COLLABORATOR_HEATMAP, Err: err}
	}
	regions, err := p.options.Segmenter.Segment(heatmap, img.Bounds().Dx(), img.Bounds().Dy())
	if err != nil {
		return nil, &CollaboratorFailure{Collaborator: COLLABORATOR_HEATMAP, Err: err}
	}

	assignments, unassigned := assigner.Assign(
		texts,
		regions,
		func(text bubbleText) geometry.Rect { return text.box.Rect },
		func(region geometry.TextMaskRegion) geometry.Rect { return region.Rect },
	)
	log.Printf("Found %d bubbles with text and %d text regions, %d regions outside of them", len(texts), len(regions), len(unassigned))

	// Only text that is going to be replaced is removed.
	masks := utils.FlatMap(assignments, func(assignment assigner.Assignment[bubbleText, geometry.TextMaskRegion]) []geometry.Rect {
		return geometry.Rects(assignment.Children)
	})
	cleaned, err := p.compositor.RemoveMaskedContent(ctx, img, masks)
	if err != nil {
		return nil, &CollaboratorFailure{Collaborator: COLLABORATOR_INPAINTER, Err: err}
	}

	translated, overflows := p.drawTranslations(cleaned, page, assignments)

	return &PageOutcome{
		Translated: translated,
		Cleaned:    cleaned,
		Bubbles:    bubbles,
		Regions:    regions,
		Texts: utils.Map(texts, func(text bubbleText) RecognizedText {
			return text.recognized
		}),
		Overflows: overflows,
	}, nil
}

func (p *Pipeline) detectBubbles(ctx context.Context, img image.Image) ([]geometry.DetectedBox, error) {
	boxes := []geometry.DetectedBox{}
	for _, detector := range p.detectors {
		detected, err := detector.Detect(ctx, img)
		if err != nil {
			return nil, &CollaboratorFailure{Collaborator: COLLABORATOR_DETECTOR, Err: err}
		}
		boxes = utils.Concat(boxes, detected)
	}
	return p.options.Merge.Merge(boxes, p.options.MergeThreshold), nil
}

// readBubbles recognizes and translates the text of every bubble. Bubbles without letters, and
// bubbles already written in the target language, are left out.
func (p *Pipeline) readBubbles(ctx context.Context, img image.Image, page geometry.Rect, bubbles []geometry.DetectedBox) ([]bubbleText, error) {
	texts := []bubbleText{}
	for i, bubble := range bubbles {
		area := bubble.Rect.Clip(page)
		if area.Empty() {
			log.Printf("Skipping bubble %d outside of the page: %v", i+1, bubble.Rect)
			continue
		}

		extractions, err := p.recognizer.Recognize(ctx, crop(img, area.Pixels()))
		if err != nil {
			return nil, &CollaboratorFailure{Collaborator: COLLABORATOR_RECOGNIZER, Err: err}
		}
		text := textproc.Normalize(strings.Join(utils.Map(extractions, func(extraction recognizer.Extraction) string {
			return extraction.Text
		}), " "))
		if !utils.Some([]rune(text), unicode.IsLetter) {
			if text != "" {
				log.Printf("Skipping bubble %d without letters: %q", i+1, text)
			}
			continue
		}

		language := p.options.SourceLanguage
		if detected, ok := utils.Find(extractions, func(extraction recognizer.Extraction) bool {
			return extraction.Language != ""
		}); ok {
			language = detected.Language
		}
		target := textproc.LanguageCode(p.options.TargetLanguage)
		if target != "" && textproc.LanguageCode(language) == target {
			log.Printf("Skipping bubble %d already in %s", i+1, p.options.TargetLanguage)
			continue
		}

		translation, err := p.translate(ctx, text, language)
		if err != nil {
			return nil, &CollaboratorFailure{Collaborator: COLLABORATOR_TRANSLATOR, Err: err}
		}
		if translation == "" {
			log.Printf("Empty translation for bubble %d, keeping %q", i+1, text)
			translation = text
		}

		texts = append(texts, bubbleText{
			box: bubble,
			recognized: RecognizedText{
				Text:     text,
				Language: language,
				Region:   bubble.Rect,
			},
			translation: translation,
		})
	}
	return texts, nil
}

func (p *Pipeline) translate(ctx context.Context, text string, sourceLanguage string) (string, error) {
	if p.translator == nil {
		return text, nil
	}
	translation, err := p.translator.Translate(ctx, text, sourceLanguage, p.options.TargetLanguage)
	if err != nil {
		return "", fmt.Errorf("failed to translate %q: %w", text, err)
	}
	return strings.TrimSpace(translation), nil
}

// drawTranslations lays out every translation into the text regions of its bubble. Text that
// does not fit is drawn as far as it goes and reported. A bubble without regions reports all of
// its words.
func (p *Pipeline) drawTranslations(
	cleaned *image.RGBA,
	page geometry.Rect,
	assignments []assigner.Assignment[bubbleText, geometry.TextMaskRegion],
) (image.Image, []layout.Overflow) {
	ttf := p.fontProvider.GetFontByLanguage(p.options.TargetLanguage).ByWeight(font.SEMIBOLD_WEIGHT)
	measurer := layout.NewFontMeasurer(ttf)

	var translated image.Image = cleaned
	overflows := []layout.Overflow{}
	for _, assignment := range assignments {
		regions := utils.Filter(utils.Map(assignment.Children, func(region geometry.TextMaskRegion) geometry.Rect {
			return region.Rect.Clip(page)
		}), func(region geometry.Rect) bool {
			return !region.Empty()
		})
		if len(regions) == 0 {
			log.Printf("Failed to place %q, no text region inside bubble %v", assignment.Parent.translation, assignment.Parent.box.Rect)
			overflows = append(overflows, layout.Overflow{
				Text:      assignment.Parent.translation,
				Remaining: strings.Fields(assignment.Parent.translation),
				Size:      p.options.Layout.MinSize,
			})
			continue
		}

		result := p.options.Layout.Layout(assignment.Parent.translation, regions, measurer)
		if result.Overflow != nil {
			log.Printf("Failed to fit %q at size %v, %d words left", result.Overflow.Text, result.Overflow.Size, len(result.Overflow.Remaining))
			overflows = append(overflows, *result.Overflow)
		}

		textColor := contrastingColor(cleaned, geometry.Combined(regions).Pixels())
		translated = layout.Render(translated, result, ttf, textColor)
	}
	return translated, overflows
}
