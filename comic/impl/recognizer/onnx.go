package recognizer

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"

	"github.com/visionex-project/comicex/comic/impl/model"
	"github.com/visionex-project/comicex/pkg/config"
	"github.com/visionex-project/comicex/pkg/textproc"
)

// Maps 8-bit channels to [-1, 1].
var ctcNormalization = model.Normalization{
	Scale: 1.0 / 255,
	Mean:  [3]float32{0.5, 0.5, 0.5},
	Std:   [3]float32{0.5, 0.5, 0.5},
}

type runner interface {
	Run(inputs map[string]model.Tensor) (model.Tensor, error)
}

// OnnxRecognizer reads a crop with a CTC text line recognizer exported to ONNX. It has no
// language detection, so every extraction carries the configured source language.
type OnnxRecognizer struct {
	net    runner
	labels []string
	// Input height of the model. E.g., 48
	height   int
	language string
}

func NewOnnx(session *model.Session, cfg config.ModelConfig, labelPath string, language string) (*OnnxRecognizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid recognizer model config: %w", err)
	}
	file, err := os.Open(labelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open labels: %w", err)
	}
	defer file.Close()
	labels, err := textproc.LoadLabels(file)
	if err != nil {
		return nil, err
	}

	net, err := model.LoadNet(session, "text recognizer", cfg.Path)
	if err != nil {
		return nil, err
	}
	return &OnnxRecognizer{net: net, labels: labels, height: cfg.InputSize, language: language}, nil
}

func (r *OnnxRecognizer) Recognize(_ context.Context, crop image.Image) ([]Extraction, error) {
	bounds := crop.Bounds()
	if bounds.Empty() {
		return []Extraction{}, nil
	}
	width := max(1, int(math.Round(float64(bounds.Dx())*float64(r.height)/float64(bounds.Dy()))))

	output, err := r.net.Run(map[string]model.Tensor{"": model.ImageTensor(crop, width, r.height, ctcNormalization)})
	if err != nil {
		return nil, fmt.Errorf("failed to run text recognizer: %w", err)
	}
	logits, err := toLogits(output)
	if err != nil {
		return nil, err
	}

	text := textproc.DecodeCTC(logits, r.labels)
	return nonBlank([]Extraction{{Text: text, Language: r.language}}), nil
}

// toLogits splits a [1, T, C] output into T rows of class scores.
func toLogits(output model.Tensor) ([][]float32, error) {
	shape := output.Shape
	if len(shape) != 3 || shape[0] != 1 {
		return nil, fmt.Errorf("expected a [1, T, C] output, got shape %v", shape)
	}
	steps, classes := shape[1], shape[2]
	if len(output.Data) != steps*classes {
		return nil, fmt.Errorf("output holds %d values, want %d", len(output.Data), steps*classes)
	}

	logits := make([][]float32, steps)
	for t := range logits {
		logits[t] = output.Data[t*classes : (t+1)*classes]
	}
	return logits, nil
}
