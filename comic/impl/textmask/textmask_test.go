package textmask

import (
	"context"
	"image"
	"reflect"
	"testing"

	"github.com/visionex-project/comicex/comic/impl/model"
)

type fakeRunner struct {
	output model.Tensor
	inputs map[string]model.Tensor
}

func (f *fakeRunner) Run(inputs map[string]model.Tensor) (model.Tensor, error) {
	f.inputs = inputs
	return f.output, nil
}

func TestInputSize(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		maxSide       int
		wantW, wantH  int
	}{
		{name: "already aligned", width: 640, height: 320, maxSide: 1024, wantW: 640, wantH: 320},
		{name: "rounds up", width: 700, height: 1000, maxSide: 1024, wantW: 704, wantH: 1024},
		{name: "scales down", width: 1000, height: 2000, maxSide: 1024, wantW: 512, wantH: 1024},
		{name: "tiny page", width: 3, height: 3, maxSide: 1024, wantW: 32, wantH: 32},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			w, h := inputSize(test.width, test.height, test.maxSide)
			if w != test.wantW || h != test.wantH {
				t.Errorf("inputSize() = %dx%d, want %dx%d", w, h, test.wantW, test.wantH)
			}
		})
	}
}

func TestHeatmap(t *testing.T) {
	runner := &fakeRunner{output: model.Tensor{Shape: []int{1, 1, 64, 32}, Data: make([]float32, 64*32)}}
	m := &Model{net: runner, maxSide: 1024}

	heatmap, err := m.Heatmap(context.Background(), image.NewRGBA(image.Rect(0, 0, 30, 60)))
	if err != nil {
		t.Fatalf("Heatmap() error = %v", err)
	}
	if heatmap.Width != 32 || heatmap.Height != 64 {
		t.Errorf("heatmap = %dx%d, want 32x64", heatmap.Width, heatmap.Height)
	}
	input, ok := runner.inputs["x"]
	if !ok {
		t.Fatalf("input x was not bound")
	}
	if !reflect.DeepEqual(input.Shape, []int{1, 3, 64, 32}) {
		t.Errorf("input shape = %v, want [1 3 64 32]", input.Shape)
	}
}

func TestToHeatmapRejectsShapes(t *testing.T) {
	tests := []model.Tensor{
		{Shape: []int{1, 2, 4, 4}, Data: make([]float32, 32)},
		{Shape: []int{4, 4}, Data: make([]float32, 16)},
		{Shape: []int{1, 1, 4, 4}, Data: make([]float32, 15)},
	}
	for _, output := range tests {
		if _, err := toHeatmap(output); err == nil {
			t.Errorf("toHeatmap(%v) returned no error", output.Shape)
		}
	}
}
