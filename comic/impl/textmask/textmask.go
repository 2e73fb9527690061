package textmask

import (
	"context"
	"fmt"
	"image"
	"log"
	"math"

	"github.com/visionex-project/comicex/comic/impl/model"
	"github.com/visionex-project/comicex/pkg/config"
	"github.com/visionex-project/comicex/pkg/segmenter"
)

// Input sides of the text detector must be multiples of this stride.
const STRIDE = 32

type runner interface {
	Run(inputs map[string]model.Tensor) (model.Tensor, error)
}

// Model produces a text probability heatmap with a DBNet detector exported to ONNX.
type Model struct {
	net runner
	// Longest input side. Larger pages are scaled down first. E.g., 1024
	maxSide int
	debug   bool
}

func New(session *model.Session, cfg config.ModelConfig) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid text mask model config: %w", err)
	}
	net, err := model.LoadNet(session, "text mask detector", cfg.Path)
	if err != nil {
		return nil, err
	}
	return &Model{net: net, maxSide: cfg.InputSize, debug: cfg.Debug}, nil
}

// Heatmap returns the activation map at model resolution. Callers upsample it to the page.
func (m *Model) Heatmap(_ context.Context, img image.Image) (segmenter.Heatmap, error) {
	width, height := inputSize(img.Bounds().Dx(), img.Bounds().Dy(), m.maxSide)
	input := model.ImageTensor(img, width, height, model.ImageNetNormalization)

	output, err := m.net.Run(map[string]model.Tensor{"x": input})
	if err != nil {
		return segmenter.Heatmap{}, fmt.Errorf("failed to run text mask detector: %w", err)
	}
	if m.debug {
		log.Printf("Text mask input %dx%d, output %v", width, height, output.Shape)
	}
	return toHeatmap(output)
}

// inputSize scales the page so its longest side is at most maxSide, then rounds both sides up to
// the stride.
func inputSize(width, height, maxSide int) (int, int) {
	scale := 1.0
	if longest := max(width, height); maxSide > 0 && longest > maxSide {
		scale = float64(maxSide) / float64(longest)
	}
	return roundUp(float64(width) * scale), roundUp(float64(height) * scale)
}

func roundUp(side float64) int {
	return max(STRIDE, int(math.Ceil(side/STRIDE))*STRIDE)
}

// toHeatmap reads a [1, 1, H, W] probability map.
func toHeatmap(output model.Tensor) (segmenter.Heatmap, error) {
	shape := output.Shape
	if len(shape) != 4 || shape[0] != 1 || shape[1] != 1 {
		return segmenter.Heatmap{}, fmt.Errorf("expected a [1, 1, H, W] output, got shape %v", shape)
	}
	heatmap := segmenter.Heatmap{Width: shape[3], Height: shape[2], Values: output.Data}
	if err := heatmap.Validate(); err != nil {
		return segmenter.Heatmap{}, err
	}
	return heatmap, nil
}
