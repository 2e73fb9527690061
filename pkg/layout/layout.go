package layout

import (
	"math"
	"strings"

	"github.com/visionex-project/comicex/pkg/geometry"
	"github.com/visionex-project/comicex/pkg/utils"
)

// Measurer reports text metrics for a font at a given size.
type Measurer interface {
	// Width of text in pixels.
	Measure(text string, size float64) float64
	// Vertical advance between two consecutive lines in pixels.
	LineHeight(size float64) float64
}

// Engine searches for the largest font size at which a text fits into a set of regions.
type Engine struct {
	// E.g., 40
	MaxSize float64
	// E.g., 8
	MinSize float64
	// Decrement between two attempts. E.g., 1
	Step float64
}

// Line is one committed line of text. X and Y locate the top-left corner of the line box.
type Line struct {
	Text   string
	X      float64
	Y      float64
	Width  float64
	Height float64
}

type RegionLayout struct {
	Region geometry.Rect
	Lines  []Line
}

// Overflow reports text that did not fit even at the smallest size.
type Overflow struct {
	Text string
	// Words left over once every region was filled at MinSize. E.g., ["there"]
	Remaining []string
	Size      float64
}

type Result struct {
	// Font size the lines were laid out with. E.g., 24
	Size    float64
	Regions []RegionLayout
	// Set when the text could not be laid out completely. The regions then hold the best
	// partial layout at MinSize.
	Overflow *Overflow
}

// Words returns the laid out words in reading order.
func (r Result) Words() []string {
	return utils.FlatMap(r.Regions, func(region RegionLayout) []string {
		return utils.FlatMap(region.Lines, func(line Line) []string {
			return strings.Fields(line.Text)
		})
	})
}

// Layout places the whitespace separated words of text into regions, top to bottom, trying
// font sizes from MaxSize down to MinSize.
func (e Engine) Layout(text string, regions []geometry.Rect, measurer Measurer) Result {
	words := strings.Fields(text)
	sorted := utils.SortStableBy(regions, func(r geometry.Rect) float64 {
		return r.Y1
	})

	step := e.Step
	if step <= 0 {
		step = 1
	}

	for size := e.MaxSize; size >= e.MinSize; size -= step {
		placed, remaining := pack(words, sorted, measurer, size)
		if len(remaining) == 0 {
			return Result{Size: size, Regions: placed}
		}
	}

	placed, remaining := pack(words, sorted, measurer, e.MinSize)
	if len(remaining) == 0 {
		return Result{Size: e.MinSize, Regions: placed}
	}
	return Result{
		Size:    e.MinSize,
		Regions: placed,
		Overflow: &Overflow{
			Text:      text,
			Remaining: remaining,
			Size:      e.MinSize,
		},
	}
}

// pack fills regions greedily at one font size and returns the words that did not fit.
func pack(words []string, regions []geometry.Rect, measurer Measurer, size float64) ([]RegionLayout, []string) {
	lineHeight := measurer.LineHeight(size)
	remaining := words
	layouts := make([]RegionLayout, 0, len(regions))

	for _, region := range regions {
		maxLines := 0
		if lineHeight > 0 {
			maxLines = int(math.Floor(region.Height() / lineHeight))
		}

		texts := []string{}
		current := ""
		for len(remaining) > 0 && len(texts) < maxLines {
			word := remaining[0]
			candidate := word
			if current != "" {
				candidate = current + " " + word
			}
			if measurer.Measure(candidate, size) <= region.Width() {
				current = candidate
				remaining = remaining[1:]
				continue
			}
			if current == "" {
				// A word wider than the region closes it.
				break
			}
			texts = append(texts, current)
			current = ""
		}
		if current != "" {
			texts = append(texts, current)
		}

		layouts = append(layouts, RegionLayout{
			Region: region,
			Lines:  center(texts, region, measurer, size, lineHeight),
		})
	}
	return layouts, remaining
}

func center(texts []string, region geometry.Rect, measurer Measurer, size, lineHeight float64) []Line {
	top := region.Y1 + (region.Height()-float64(len(texts))*lineHeight)/2
	lines := make([]Line, len(texts))
	for i, text := range texts {
		width := measurer.Measure(text, size)
		lines[i] = Line{
			Text:   text,
			X:      region.X1 + (region.Width()-width)/2,
			Y:      top + float64(i)*lineHeight,
			Width:  width,
			Height: lineHeight,
		}
	}
	return lines
}
