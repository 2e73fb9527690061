package layout

import (
	"image"
	"image/color"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
)

// Extra space between lines relative to the font height.
const LINE_SPACING = 1.15

// FontMeasurer measures text with a TrueType font. Faces are cached per size; a truetype face
// is not safe for concurrent use so every call is serialized.
type FontMeasurer struct {
	mu    sync.Mutex
	font  *truetype.Font
	faces map[float64]font.Face
	dc    *gg.Context
}

func NewFontMeasurer(ttf *truetype.Font) *FontMeasurer {
	return &FontMeasurer{
		font:  ttf,
		faces: map[float64]font.Face{},
		dc:    gg.NewContext(1, 1),
	}
}

func (m *FontMeasurer) Measure(text string, size float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dc.SetFontFace(m.face(size))
	width, _ := m.dc.MeasureString(text)
	return width
}

func (m *FontMeasurer) LineHeight(size float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dc.SetFontFace(m.face(size))
	return m.dc.FontHeight() * LINE_SPACING
}

func (m *FontMeasurer) face(size float64) font.Face {
	if face, ok := m.faces[size]; ok {
		return face
	}
	face := truetype.NewFace(m.font, &truetype.Options{Size: size})
	m.faces[size] = face
	return face
}

// Render draws every committed line of result onto img, centered in its line box.
func Render(img image.Image, result Result, ttf *truetype.Font, textColor color.Color) image.Image {
	drawingContext := gg.NewContextForImage(img)
	drawingContext.SetFontFace(truetype.NewFace(ttf, &truetype.Options{Size: result.Size}))
	drawingContext.SetColor(textColor)

	for _, region := range result.Regions {
		for _, line := range region.Lines {
			drawingContext.DrawStringAnchored(
				line.Text,
				line.X+line.Width/2,  /* =x */
				line.Y+line.Height/2, /* =y */
				0.5,                  /* =ax (center in x) */
				0.35,                 /* =ay (almost center in y) */
			)
		}
	}
	return drawingContext.Image()
}
