package merger

import (
	"fmt"

	"github.com/visionex-project/comicex/pkg/geometry"
)

// Strategy collapses boxes that describe the same physical bubble.
type Strategy interface {
	Merge(boxes []geometry.DetectedBox, threshold float64) []geometry.DetectedBox
}

const (
	StrategyMinArea     = "min-area"
	StrategyContainment = "containment"
)

// New returns the strategy registered under name.
func New(name string) (Strategy, error) {
	switch name {
	case StrategyMinArea, "":
		return MinAreaRatio{}, nil
	case StrategyContainment:
		return Containment{}, nil
	default:
		return nil, fmt.Errorf("unknown merge strategy: %s", name)
	}
}

// MinAreaRatio merges pairs whose intersection covers more than threshold of the smaller box,
// and repeats until no pair qualifies.
type MinAreaRatio struct{}

func (MinAreaRatio) Merge(originalBoxes []geometry.DetectedBox, threshold float64) []geometry.DetectedBox {
	boxes := make([]geometry.DetectedBox, len(originalBoxes))
	copy(boxes, originalBoxes)

	for {
		type pair struct{ first, second int }
		candidates := []pair{}
		for i := 0; i < len(boxes); i++ {
			for j := i + 1; j < len(boxes); j++ {
				if OverlapRatio(boxes[i].Rect, boxes[j].Rect) > threshold {
					candidates = append(candidates, pair{i, j})
				}
			}
		}
		if len(candidates) == 0 {
			return boxes
		}

		used := map[int]bool{}
		removed := map[int]bool{}
		for _, candidate := range candidates {
			if used[candidate.first] || used[candidate.second] {
				continue
			}
			used[candidate.first] = true
			used[candidate.second] = true

			boxes[candidate.first] = mergePair(boxes[candidate.first], boxes[candidate.second])
			removed[candidate.second] = true
		}

		kept := make([]geometry.DetectedBox, 0, len(boxes)-len(removed))
		for i, box := range boxes {
			if !removed[i] {
				kept = append(kept, box)
			}
		}
		boxes = kept
	}
}

// OverlapRatio is the intersection area divided by the area of the smaller rectangle.
func OverlapRatio(a, b geometry.Rect) float64 {
	minArea := min(a.Area(), b.Area())
	if minArea == 0 {
		return 0
	}
	return a.IntersectionArea(b) / minArea
}

func mergePair(a, b geometry.DetectedBox) geometry.DetectedBox {
	return geometry.DetectedBox{
		Rect:       a.Rect.Union(b.Rect),
		Confidence: (a.Confidence + b.Confidence) / 2,
		ClassID:    max(a.ClassID, b.ClassID),
	}
}

// Containment groups boxes in a single pass. Two boxes are linked when at least threshold of
// either box lies inside the other; every box reachable from a seed through such links joins
// the seed's group.
type Containment struct{}

func (Containment) Merge(boxes []geometry.DetectedBox, threshold float64) []geometry.DetectedBox {
	grouped := make([]bool, len(boxes))
	result := []geometry.DetectedBox{}

	for i := range boxes {
		if grouped[i] {
			continue
		}
		grouped[i] = true
		group := []geometry.DetectedBox{boxes[i]}

		queue := []int{i}
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			for j := i + 1; j < len(boxes); j++ {
				if grouped[j] || !contained(boxes[current].Rect, boxes[j].Rect, threshold) {
					continue
				}
				grouped[j] = true
				group = append(group, boxes[j])
				queue = append(queue, j)
			}
		}

		result = append(result, mergeGroup(group))
	}
	return result
}

func contained(a, b geometry.Rect, threshold float64) bool {
	if a.IntersectionArea(b) == 0 {
		return false
	}
	return a.ContainedRatio(b) >= threshold || b.ContainedRatio(a) >= threshold
}

func mergeGroup(group []geometry.DetectedBox) geometry.DetectedBox {
	merged := group[0]
	confidence := 0.0
	for _, box := range group {
		merged.Rect = merged.Rect.Union(box.Rect)
		merged.ClassID = max(merged.ClassID, box.ClassID)
		confidence += box.Confidence
	}
	merged.Confidence = confidence / float64(len(group))
	return merged
}
