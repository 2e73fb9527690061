package segmenter

import (
	"fmt"

	"github.com/visionex-project/comicex/pkg/geometry"
	"github.com/visionex-project/comicex/pkg/utils"
)

// Regions whose bounding box is this wide or tall (or less) are treated as noise.
const minRegionSide = 5

// Heatmap holds per-pixel text activations in row-major order.
type Heatmap struct {
	Width  int
	Height int
	// Activations in [0, 1]. E.g., 0.93 for a pixel in the middle of a glyph
	Values []float32
}

func NewHeatmap(width, height int) Heatmap {
	return Heatmap{Width: width, Height: height, Values: make([]float32, width*height)}
}

func (h Heatmap) At(x, y int) float32 {
	return h.Values[y*h.Width+x]
}

func (h Heatmap) Set(x, y int, value float32) {
	h.Values[y*h.Width+x] = value
}

func (h Heatmap) Validate() error {
	if h.Width <= 0 || h.Height <= 0 {
		return fmt.Errorf("heatmap has no pixels: %dx%d", h.Width, h.Height)
	}
	if len(h.Values) != h.Width*h.Height {
		return fmt.Errorf("heatmap has %d values, expected %d", len(h.Values), h.Width*h.Height)
	}
	return nil
}

// Segmenter turns a model heatmap into padded text regions at image resolution.
type Segmenter struct {
	// Activation a pixel must exceed to count as text. E.g., 0.01
	Threshold float32
	// Outward padding applied to each region. E.g., 15
	PaddingX float64
	PaddingY float64
}

// Segment upsamples the heatmap to the image size before flood filling, so the regions are
// expressed in image pixels.
func (s Segmenter) Segment(h Heatmap, width, height int) ([]geometry.TextMaskRegion, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size: %dx%d", width, height)
	}
	upsampled := Upsample(h, width, height)
	return Enlarge(ExtractRegions(upsampled, s.Threshold), s.PaddingX, s.PaddingY), nil
}

// Upsample resizes h with bilinear interpolation. Corner pixels of the source map onto corner
// pixels of the destination.
func Upsample(h Heatmap, width, height int) Heatmap {
	if h.Width == width && h.Height == height {
		values := make([]float32, len(h.Values))
		copy(values, h.Values)
		return Heatmap{Width: width, Height: height, Values: values}
	}

	result := NewHeatmap(width, height)
	for y := 0; y < height; y++ {
		srcY := sourceCoordinate(y, h.Height, height)
		y0 := int(srcY)
		y1 := min(y0+1, h.Height-1)
		dy := float32(srcY - float64(y0))

		for x := 0; x < width; x++ {
			srcX := sourceCoordinate(x, h.Width, width)
			x0 := int(srcX)
			x1 := min(x0+1, h.Width-1)
			dx := float32(srcX - float64(x0))

			top := h.At(x0, y0)*(1-dx) + h.At(x1, y0)*dx
			bottom := h.At(x0, y1)*(1-dx) + h.At(x1, y1)*dx
			result.Set(x, y, top*(1-dy)+bottom*dy)
		}
	}
	return result
}

func sourceCoordinate(dst, srcSize, dstSize int) float64 {
	if dstSize <= 1 || srcSize <= 1 {
		return 0
	}
	return float64(dst) * float64(srcSize-1) / float64(dstSize-1)
}

// ExtractRegions finds 8-connected components of pixels above threshold in raster order.
// A component becomes a region spanning (minX, minY, maxX, maxY) of its pixels, with the mean
// activation as confidence. Components no larger than minRegionSide on either axis are dropped.
func ExtractRegions(h Heatmap, threshold float32) []geometry.TextMaskRegion {
	visited := make([]bool, len(h.Values))
	regions := []geometry.TextMaskRegion{}

	for y := 0; y < h.Height; y++ {
		for x := 0; x < h.Width; x++ {
			index := y*h.Width + x
			if visited[index] || h.Values[index] <= threshold {
				continue
			}
			region := floodFill(h, threshold, visited, x, y)
			if region.Width() <= minRegionSide || region.Height() <= minRegionSide {
				continue
			}
			regions = append(regions, region)
		}
	}
	return regions
}

func floodFill(h Heatmap, threshold float32, visited []bool, startX, startY int) geometry.TextMaskRegion {
	minX, minY, maxX, maxY := startX, startY, startX, startY
	var sum float64
	count := 0

	queue := []int{startY*h.Width + startX}
	visited[queue[0]] = true
	for len(queue) > 0 {
		index := queue[0]
		queue = queue[1:]
		x, y := index%h.Width, index/h.Width

		sum += float64(h.Values[index])
		count++
		minX, minY = min(minX, x), min(minY, y)
		maxX, maxY = max(maxX, x), max(maxY, y)

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if (dx == 0 && dy == 0) || nx < 0 || ny < 0 || nx >= h.Width || ny >= h.Height {
					continue
				}
				neighbor := ny*h.Width + nx
				if visited[neighbor] || h.Values[neighbor] <= threshold {
					continue
				}
				visited[neighbor] = true
				queue = append(queue, neighbor)
			}
		}
	}

	return geometry.TextMaskRegion{
		Rect:       geometry.R(float64(minX), float64(minY), float64(maxX), float64(maxY)),
		Confidence: sum / float64(count),
	}
}

// Enlarge pads every region outward. The pre-padding rectangle is kept on each region.
func Enlarge(regions []geometry.TextMaskRegion, paddingX, paddingY float64) []geometry.TextMaskRegion {
	return utils.Map(regions, func(region geometry.TextMaskRegion) geometry.TextMaskRegion {
		return region.Enlarge(paddingX, paddingY)
	})
}
