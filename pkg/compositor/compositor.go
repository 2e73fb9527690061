package compositor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"

	"github.com/visionex-project/comicex/pkg/geometry"
)

var ErrUnexpectedTileSize = errors.New("inpainter returned a tile of unexpected size")

// Inpainter fills the white pixels of mask with content inferred from the surrounding tile.
// Both inputs are exactly tileSize x tileSize and the output must be the same size.
type Inpainter interface {
	Inpaint(ctx context.Context, tile image.Image, mask *image.Gray) (image.Image, error)
}

// Compositor removes masked content from a page by inpainting it one square tile at a time.
type Compositor struct {
	inpainter Inpainter
	// Edge length the inpainter expects. E.g., 512
	tileSize int
}

func New(inpainter Inpainter, tileSize int) (*Compositor, error) {
	if inpainter == nil {
		return nil, errors.New("inpainter is required")
	}
	if tileSize <= 0 {
		return nil, fmt.Errorf("tile size must be positive, got: %d", tileSize)
	}
	return &Compositor{inpainter: inpainter, tileSize: tileSize}, nil
}

// RemoveMaskedContent returns a copy of img with every masked rectangle inpainted. Tiles that
// contain no masked pixel are copied as is.
func (c *Compositor) RemoveMaskedContent(ctx context.Context, img image.Image, masks []geometry.Rect) (*image.RGBA, error) {
	bounds := img.Bounds()
	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, img, bounds.Min, draw.Src)

	mask := RasterizeMask(bounds, masks)

	for y := bounds.Min.Y; y < bounds.Max.Y; y += c.tileSize {
		for x := bounds.Min.X; x < bounds.Max.X; x += c.tileSize {
			tileRect := image.Rect(x, y, min(x+c.tileSize, bounds.Max.X), min(y+c.tileSize, bounds.Max.Y))
			if !hasMaskedPixel(mask, tileRect) {
				continue
			}
			if err := c.inpaintTile(ctx, result, mask, tileRect); err != nil {
				return nil, fmt.Errorf("failed to inpaint tile %v: %w", tileRect, err)
			}
		}
	}
	return result, nil
}

func (c *Compositor) inpaintTile(ctx context.Context, page *image.RGBA, mask *image.Gray, tileRect image.Rectangle) error {
	square := image.Rect(0, 0, c.tileSize, c.tileSize)

	tile := image.NewRGBA(square)
	xdraw.BiLinear.Scale(tile, square, page, tileRect, xdraw.Src, nil)

	tileMask := image.NewGray(square)
	xdraw.NearestNeighbor.Scale(tileMask, square, mask, tileRect, xdraw.Src, nil)

	inpainted, err := c.inpainter.Inpaint(ctx, tile, tileMask)
	if err != nil {
		return err
	}
	if inpainted.Bounds().Dx() != c.tileSize || inpainted.Bounds().Dy() != c.tileSize {
		return fmt.Errorf("%w: got %dx%d, expected %dx%d",
			ErrUnexpectedTileSize, inpainted.Bounds().Dx(), inpainted.Bounds().Dy(), c.tileSize, c.tileSize)
	}

	xdraw.BiLinear.Scale(page, tileRect, inpainted, inpainted.Bounds(), xdraw.Src, nil)
	return nil
}

// RasterizeMask draws every rectangle as opaque white on a black canvas covering bounds.
// Rectangles are rounded outward and clipped to bounds.
func RasterizeMask(bounds image.Rectangle, masks []geometry.Rect) *image.Gray {
	mask := image.NewGray(bounds)
	white := image.NewUniform(color.Gray{Y: 255})
	for _, rect := range masks {
		area := rect.Pixels().Intersect(bounds)
		if area.Empty() {
			continue
		}
		draw.Draw(mask, area, white, image.Point{}, draw.Src)
	}
	return mask
}

func hasMaskedPixel(mask *image.Gray, area image.Rectangle) bool {
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			if mask.GrayAt(x, y).Y != 0 {
				return true
			}
		}
	}
	return false
}
