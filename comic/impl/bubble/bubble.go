package bubble

import (
	"context"
	"fmt"
	"image"
	"log"

	"github.com/visionex-project/comicex/comic/impl/model"
	"github.com/visionex-project/comicex/pkg/config"
	"github.com/visionex-project/comicex/pkg/geometry"
)

// Values per prediction: cx, cy, w, h, confidence, class.
const ROW_LENGTH = 6

type runner interface {
	Run(inputs map[string]model.Tensor) (model.Tensor, error)
}

// Detector finds speech bubbles with a YOLO model exported to ONNX.
type Detector struct {
	net       runner
	inputSize int
	threshold float64
	debug     bool
}

func New(session *model.Session, cfg config.ModelConfig) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bubble model config: %w", err)
	}
	net, err := model.LoadNet(session, "bubble detector", cfg.Path)
	if err != nil {
		return nil, err
	}
	return &Detector{net: net, inputSize: cfg.InputSize, threshold: cfg.Threshold, debug: cfg.Debug}, nil
}

// Detect stretches the page to the square model input and maps the predictions back to page
// coordinates.
func (d *Detector) Detect(_ context.Context, img image.Image) ([]geometry.DetectedBox, error) {
	bounds := img.Bounds()
	input := model.ImageTensor(img, d.inputSize, d.inputSize, model.UnitNormalization)

	output, err := d.net.Run(map[string]model.Tensor{"": input})
	if err != nil {
		return nil, fmt.Errorf("failed to run bubble detector: %w", err)
	}

	boxes, err := parseDetections(output, float64(d.inputSize), geometry.FromImage(bounds), d.threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to decode bubble detections: %w", err)
	}
	if d.debug {
		log.Printf("Bubble detector output %v, %d boxes above %v", output.Shape, len(boxes), d.threshold)
	}
	return boxes, nil
}

// parseDetections decodes a [1, N, 6] or [1, C, N] prediction tensor. Predictions below threshold
// are dropped and the rest are scaled from the model input to page.
func parseDetections(output model.Tensor, inputSize float64, page geometry.Rect, threshold float64) ([]geometry.DetectedBox, error) {
	if len(output.Shape) != 3 {
		return nil, fmt.Errorf("expected a rank 3 output, got shape %v", output.Shape)
	}

	// YOLOv8 exports features first, [1, C, N]. Row major [1, N, 6] outputs are read as is.
	count, features := output.Shape[2], output.Shape[1]
	at := func(i, k int) float32 {
		return output.Data[k*count+i]
	}
	if output.Shape[2] == ROW_LENGTH {
		count, features = output.Shape[1], output.Shape[2]
		at = func(i, k int) float32 {
			return output.Data[i*features+k]
		}
	}
	if features < ROW_LENGTH-1 {
		return nil, fmt.Errorf("expected at least %d values per prediction, got %d", ROW_LENGTH-1, features)
	}
	if len(output.Data) < count*features {
		return nil, fmt.Errorf("output holds %d values, want %d", len(output.Data), count*features)
	}

	scaleX := page.Width() / inputSize
	scaleY := page.Height() / inputSize

	boxes := []geometry.DetectedBox{}
	for i := 0; i < count; i++ {
		confidence := float64(at(i, 4))
		if confidence < threshold {
			continue
		}
		classID := 0
		if features >= ROW_LENGTH {
			classID = int(at(i, 5))
		}

		cx, cy := float64(at(i, 0)), float64(at(i, 1))
		w, h := float64(at(i, 2)), float64(at(i, 3))
		rect := geometry.R(
			page.X1+(cx-w/2)*scaleX,
			page.Y1+(cy-h/2)*scaleY,
			page.X1+(cx+w/2)*scaleX,
			page.Y1+(cy+h/2)*scaleY,
		).Clip(page)
		if rect.Empty() {
			continue
		}

		boxes = append(boxes, geometry.DetectedBox{Rect: rect, Confidence: confidence, ClassID: classID})
	}
	return boxes, nil
}
