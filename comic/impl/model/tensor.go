package model

import (
	"encoding/binary"
	"image"
	"math"

	xdraw "golang.org/x/image/draw"
)

// Normalization maps an 8-bit channel value v to (v*Scale - Mean[c]) / Std[c].
type Normalization struct {
	Scale float32
	Mean  [3]float32
	Std   [3]float32
}

var (
	// Scales to [0, 1].
	UnitNormalization = Normalization{Scale: 1.0 / 255, Std: [3]float32{1, 1, 1}}
	// ImageNet statistics.
	ImageNetNormalization = Normalization{
		Scale: 1.0 / 255,
		Mean:  [3]float32{0.485, 0.456, 0.406},
		Std:   [3]float32{0.229, 0.224, 0.225},
	}
)

// Tensor is a dense float32 tensor in row-major order.
type Tensor struct {
	// E.g., [1, 3, 1024, 1024]
	Shape []int
	Data  []float32
}

// ImageTensor resizes img to width x height with bilinear interpolation and lays it out as a
// [1, 3, height, width] RGB tensor.
func ImageTensor(img image.Image, width, height int, normalization Normalization) Tensor {
	resized := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.BiLinear.Scale(resized, resized.Bounds(), img, img.Bounds(), xdraw.Src, nil)

	plane := width * height
	data := make([]float32, 3*plane)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			offset := resized.PixOffset(x, y)
			index := y*width + x
			for c := 0; c < 3; c++ {
				value := float32(resized.Pix[offset+c]) * normalization.Scale
				data[c*plane+index] = (value - normalization.Mean[c]) / normalization.Std[c]
			}
		}
	}
	return Tensor{Shape: []int{1, 3, height, width}, Data: data}
}

// MaskTensor lays out a grayscale mask as a [1, 1, height, width] tensor scaled to [0, 1].
func MaskTensor(mask *image.Gray) Tensor {
	bounds := mask.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	data := make([]float32, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			data[y*width+x] = float32(mask.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y) / 255
		}
	}
	return Tensor{Shape: []int{1, 1, height, width}, Data: data}
}

func (t Tensor) bytes() []byte {
	buffer := make([]byte, 4*len(t.Data))
	for i, value := range t.Data {
		binary.LittleEndian.PutUint32(buffer[4*i:], math.Float32bits(value))
	}
	return buffer
}
