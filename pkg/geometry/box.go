package geometry

// DetectedBox is a bubble (or object) found by a detector.
type DetectedBox struct {
	Rect
	// Detector score in [0, 1]. E.g., 0.85
	Confidence float64
	// Detector class. E.g., 0 for a speech bubble
	ClassID int
}

// TextMaskRegion is a tight region of text pixels taken from a text heatmap.
// Values are comparable so that regions can be used as keys of consumed sets.
type TextMaskRegion struct {
	Rect
	// Mean heatmap activation of the connected component. E.g., 0.74
	Confidence float64
	// The rectangle before padding was applied. Only meaningful when Enlarged is set.
	Original Rect
	Enlarged bool
}

// Enlarge grows the region outward and keeps the rectangle it was grown from.
func (t TextMaskRegion) Enlarge(paddingX, paddingY float64) TextMaskRegion {
	original := t.Rect
	if t.Enlarged {
		original = t.Original
	}
	return TextMaskRegion{
		Rect:       t.Rect.Enlarge(paddingX, paddingY),
		Confidence: t.Confidence,
		Original:   original,
		Enlarged:   true,
	}
}

func Rects[T interface{ Bounds() Rect }](items []T) []Rect {
	rects := make([]Rect, len(items))
	for i, item := range items {
		rects[i] = item.Bounds()
	}
	return rects
}

// Bounds exposes the embedded rectangle so that derived types satisfy the same accessors.
func (r Rect) Bounds() Rect {
	return r
}
