package impl

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"github.com/lucasb-eyer/go-colorful"
)

var (
	black = colorful.Color{R: 0, G: 0, B: 0}
	white = colorful.Color{R: 1, G: 1, B: 1}
)

// crop copies area of img into a new image anchored at the origin.
func crop(img image.Image, area image.Rectangle) *image.RGBA {
	area = area.Intersect(img.Bounds())
	cropped := image.NewRGBA(image.Rect(0, 0, area.Dx(), area.Dy()))
	draw.Draw(cropped, cropped.Bounds(), img, area.Min, draw.Src)
	return cropped
}

func encodePNG(img image.Image) ([]byte, error) {
	buffer := new(bytes.Buffer)
	if err := png.Encode(buffer, img); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// meanColor averages the pixels of img inside area. An empty area is white.
func meanColor(img image.Image, area image.Rectangle) colorful.Color {
	area = area.Intersect(img.Bounds())
	if area.Empty() {
		return white
	}

	var r, g, b float64
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			r += float64(c.R)
			g += float64(c.G)
			b += float64(c.B)
		}
	}
	count := float64(area.Dx()*area.Dy()) * 255
	return colorful.Color{R: r / count, G: g / count, B: b / count}
}

// contrastingColor picks black or white text, whichever differs the most (CIEDE2000) from the
// background inside area.
// CIEDE2000 Reference: https://en.wikipedia.org/wiki/Color_difference#CIEDE2000
func contrastingColor(img image.Image, area image.Rectangle) color.Color {
	background := meanColor(img, area)
	if background.DistanceCIEDE2000(black) >= background.DistanceCIEDE2000(white) {
		return color.Black
	}
	return color.White
}
