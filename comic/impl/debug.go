package impl

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"

	"github.com/visionex-project/comicex/pkg/geometry"
)

// debugOverlay draws numbered bubbles in blue and numbered text regions in red over img.
func debugOverlay(img image.Image, bubbles []geometry.DetectedBox, regions []geometry.TextMaskRegion) *image.RGBA {
	overlay := image.NewRGBA(img.Bounds())
	draw.Draw(overlay, overlay.Bounds(), img, img.Bounds().Min, draw.Src)

	face := numberFace()
	drawBoxesWithNumbers(overlay, face, geometry.Rects(bubbles), color.RGBA{0, 0, 255, 255} /* =blue */, 3)
	drawBoxesWithNumbers(overlay, face, geometry.Rects(regions), color.RGBA{255, 0, 0, 255} /* =red */, 1)
	return overlay
}

func drawBoxesWithNumbers(img *image.RGBA, face font.Face, rects []geometry.Rect, color color.RGBA, thickness int) {
	for i, rect := range rects {
		pixels := rect.Pixels()
		drawRectangle(img, pixels, color, thickness)
		if face != nil {
			drawNumber(img, face, pixels, color, i+1)
		}
	}
}

func drawRectangle(img *image.RGBA, rect image.Rectangle, color color.RGBA, thickness int) {
	// Draw top and bottom horizontal lines.
	for x := rect.Min.X - thickness; x <= rect.Max.X+thickness; x++ {
		for t := 0; t < thickness; t++ {
			img.Set(x, rect.Min.Y-t, color)
			img.Set(x, rect.Max.Y+t, color)
		}
	}

	// Draw left and right vertical lines.
	for y := rect.Min.Y - thickness; y <= rect.Max.Y+thickness; y++ {
		for t := 0; t < thickness; t++ {
			img.Set(rect.Min.X-t, y, color)
			img.Set(rect.Max.X+t, y, color)
		}
	}
}

// numberFont is parsed once. Faces cache glyphs and are not safe for concurrent use, so every
// overlay gets its own.
var numberFont = sync.OnceValue(func() *truetype.Font {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil
	}
	return f
})

func numberFace() font.Face {
	f := numberFont()
	if f == nil {
		return nil
	}
	return truetype.NewFace(f, &truetype.Options{
		Size: 20,
		DPI:  72,
	})
}

func drawNumber(img *image.RGBA, face font.Face, rect image.Rectangle, color color.RGBA, number int) {
	// 1 pixel up on the top of the rectangle.
	yOffset := rect.Min.Y - 1

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color),
		Face: face,
		Dot:  fixed.P(rect.Min.X, yOffset),
	}

	d.DrawString(fmt.Sprintf("%d", number))
}
