package lama

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"log"
	"math"

	"github.com/visionex-project/comicex/comic/impl/model"
	"github.com/visionex-project/comicex/pkg/config"
)

type runner interface {
	Run(inputs map[string]model.Tensor) (model.Tensor, error)
}

// LaMa is an AI model that removes masked objects from images.
// Ref: https://github.com/advimman/lama
type Client struct {
	net runner
	// Edge of the square tiles the model was exported for. E.g., 512
	size int
}

func New(session *model.Session, cfg config.ModelConfig) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid inpaint model config: %w", err)
	}
	net, err := model.LoadNet(session, "lama", cfg.Path)
	if err != nil {
		return nil, err
	}
	return &Client{net: net, size: cfg.InputSize}, nil
}

// Inpaint fills the white pixels of mask in tile. Both must already have the model tile size.
func (c *Client) Inpaint(_ context.Context, tile image.Image, mask *image.Gray) (image.Image, error) {
	bounds := tile.Bounds()
	if bounds.Dx() != c.size || bounds.Dy() != c.size || mask.Bounds().Size() != bounds.Size() {
		return nil, fmt.Errorf("expected %dx%d tile and mask, got %v and %v", c.size, c.size, bounds.Size(), mask.Bounds().Size())
	}

	output, err := c.net.Run(map[string]model.Tensor{
		"image": model.ImageTensor(tile, c.size, c.size, model.UnitNormalization),
		"mask":  model.MaskTensor(mask),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to run lama: %w", err)
	}
	return toImage(output)
}

// toImage converts a [1, 3, H, W] output of raw 0..255 values into an image.
func toImage(output model.Tensor) (*image.RGBA, error) {
	shape := output.Shape
	if len(shape) != 4 || shape[0] != 1 || shape[1] != 3 {
		return nil, fmt.Errorf("expected a [1, 3, H, W] output, got shape %v", shape)
	}
	height, width := shape[2], shape[3]
	plane := width * height
	if len(output.Data) != 3*plane {
		return nil, fmt.Errorf("output holds %d values, want %d", len(output.Data), 3*plane)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < plane; i++ {
		img.Pix[4*i] = channel(output.Data[i])
		img.Pix[4*i+1] = channel(output.Data[plane+i])
		img.Pix[4*i+2] = channel(output.Data[2*plane+i])
		img.Pix[4*i+3] = 255
	}
	return img, nil
}

func channel(value float32) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Round(float64(value)))))
}

// MockClient returns the tile unchanged. Used when no inpainting model is configured, so the
// original text stays visible under the translation.
type MockClient struct{}

func NewMock() *MockClient {
	log.Printf("Warning: Using mock LaMa client. Original text will not be removed.")
	return &MockClient{}
}

func (m *MockClient) Inpaint(_ context.Context, tile image.Image, _ *image.Gray) (image.Image, error) {
	bounds := tile.Bounds()
	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, tile, bounds.Min, draw.Src)
	return result, nil
}
