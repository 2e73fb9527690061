package assigner

import (
	"github.com/visionex-project/comicex/pkg/geometry"
)

// Assignment groups the children placed inside one parent, in the order they were discovered.
type Assignment[P any, C comparable] struct {
	Parent   P
	Children []C
}

// Assign places each child into the parent it overlaps the most by absolute intersection area.
// Children are visited in input order and a child value is consumed at most once. Ties keep the
// earlier parent and a child that overlaps no parent is returned as unassigned. Every parent
// yields exactly one Assignment, possibly with no children.
func Assign[P any, C comparable](
	parents []P,
	children []C,
	parentRect func(P) geometry.Rect,
	childRect func(C) geometry.Rect,
) ([]Assignment[P, C], []C) {
	assignments := make([]Assignment[P, C], len(parents))
	for i, parent := range parents {
		assignments[i] = Assignment[P, C]{Parent: parent, Children: []C{}}
	}

	consumed := map[C]bool{}
	unassigned := []C{}
	for _, child := range children {
		if consumed[child] {
			unassigned = append(unassigned, child)
			continue
		}

		best := -1
		bestArea := 0.0
		rect := childRect(child)
		for i, parent := range parents {
			if area := parentRect(parent).IntersectionArea(rect); area > bestArea {
				best, bestArea = i, area
			}
		}
		if best < 0 {
			unassigned = append(unassigned, child)
			continue
		}

		consumed[child] = true
		assignments[best].Children = append(assignments[best].Children, child)
	}
	return assignments, unassigned
}
