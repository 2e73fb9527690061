package geometry

import (
	"image"
	"math"

	"github.com/visionex-project/comicex/pkg/utils"
)

// Rect is an axis-aligned rectangle in image pixel space.
// Coordinates stay float64 through every stage and are rounded only when a rectangle is
// rasterized. E.g., {X1: 10, Y1: 10, X2: 110, Y2: 110}
type Rect struct {
	X1 float64
	Y1 float64
	X2 float64
	Y2 float64
}

func R(x1, y1, x2, y2 float64) Rect {
	return Rect{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

func FromImage(r image.Rectangle) Rect {
	return Rect{X1: float64(r.Min.X), Y1: float64(r.Min.Y), X2: float64(r.Max.X), Y2: float64(r.Max.Y)}
}

func (r Rect) Width() float64 {
	return r.X2 - r.X1
}

func (r Rect) Height() float64 {
	return r.Y2 - r.Y1
}

// Area returns 0 for degenerate rectangles so that they never count as overlapping.
func (r Rect) Area() float64 {
	if r.Empty() {
		return 0
	}
	return r.Width() * r.Height()
}

func (r Rect) Empty() bool {
	return r.X2 <= r.X1 || r.Y2 <= r.Y1
}

// Intersection returns the overlapping rectangle and false when the two do not overlap.
func (r Rect) Intersection(o Rect) (Rect, bool) {
	in := Rect{
		X1: math.Max(r.X1, o.X1),
		Y1: math.Max(r.Y1, o.Y1),
		X2: math.Min(r.X2, o.X2),
		Y2: math.Min(r.Y2, o.Y2),
	}
	if in.Empty() {
		return Rect{}, false
	}
	return in, true
}

func (r Rect) IntersectionArea(o Rect) float64 {
	in, ok := r.Intersection(o)
	if !ok {
		return 0
	}
	return in.Area()
}

// ContainedRatio returns the share of r's area that lies inside o.
func (r Rect) ContainedRatio(o Rect) float64 {
	area := r.Area()
	if area == 0 {
		return 0
	}
	return r.IntersectionArea(o) / area
}

func (r Rect) Union(o Rect) Rect {
	return Rect{
		X1: math.Min(r.X1, o.X1),
		Y1: math.Min(r.Y1, o.Y1),
		X2: math.Max(r.X2, o.X2),
		Y2: math.Max(r.Y2, o.Y2),
	}
}

func (r Rect) Contains(o Rect) bool {
	return r.X1 <= o.X1 && r.Y1 <= o.Y1 && r.X2 >= o.X2 && r.Y2 >= o.Y2
}

func (r Rect) Enlarge(paddingX, paddingY float64) Rect {
	return Rect{X1: r.X1 - paddingX, Y1: r.Y1 - paddingY, X2: r.X2 + paddingX, Y2: r.Y2 + paddingY}
}

// Clip restricts r to bounds. The result may be empty.
func (r Rect) Clip(bounds Rect) Rect {
	return Rect{
		X1: math.Max(r.X1, bounds.X1),
		Y1: math.Max(r.Y1, bounds.Y1),
		X2: math.Min(r.X2, bounds.X2),
		Y2: math.Min(r.Y2, bounds.Y2),
	}
}

// Pixels rounds r outward to the pixel grid.
func (r Rect) Pixels() image.Rectangle {
	return image.Rect(
		int(math.Floor(r.X1)),
		int(math.Floor(r.Y1)),
		int(math.Ceil(r.X2)),
		int(math.Ceil(r.Y2)),
	)
}

// Combined returns the smallest rectangle covering every given rectangle.
func Combined(rects []Rect) Rect {
	if len(rects) == 0 {
		return Rect{}
	}
	return utils.Reduce(rects[1:], func(combined Rect, current Rect) Rect {
		return combined.Union(current)
	}, rects[0])
}
