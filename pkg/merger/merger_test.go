package merger

import (
	"math"
	"math/rand"
	"reflect"
	"testing"

	"github.com/visionex-project/comicex/pkg/geometry"
)

func box(x1, y1, x2, y2, confidence float64) geometry.DetectedBox {
	return geometry.DetectedBox{Rect: geometry.R(x1, y1, x2, y2), Confidence: confidence}
}

func TestMinAreaRatioMerge(t *testing.T) {
	tests := []struct {
		name      string
		input     []geometry.DetectedBox
		threshold float64
		want      []geometry.DetectedBox
	}{
		{
			name:      "no overlap",
			input:     []geometry.DetectedBox{box(0, 0, 100, 100, 0.9), box(200, 200, 300, 300, 0.85)},
			threshold: 0.9,
			want:      []geometry.DetectedBox{box(0, 0, 100, 100, 0.9), box(200, 200, 300, 300, 0.85)},
		},
		{
			name:      "exact overlap",
			input:     []geometry.DetectedBox{box(10, 10, 110, 110, 0.9), box(10, 10, 110, 110, 0.8)},
			threshold: 0.9,
			want:      []geometry.DetectedBox{box(10, 10, 110, 110, 0.85)},
		},
		{
			name:      "contained box",
			input:     []geometry.DetectedBox{box(50, 50, 150, 150, 0.9), box(60, 60, 140, 140, 0.7)},
			threshold: 0.5,
			want:      []geometry.DetectedBox{box(50, 50, 150, 150, 0.8)},
		},
		{
			name:      "adjacent boxes stay apart",
			input:     []geometry.DetectedBox{box(0, 0, 100, 100, 0.95), box(101, 101, 200, 200, 0.75)},
			threshold: 0.5,
			want:      []geometry.DetectedBox{box(0, 0, 100, 100, 0.95), box(101, 101, 200, 200, 0.75)},
		},
		{
			name:      "chain",
			input:     []geometry.DetectedBox{box(10, 10, 50, 50, 0.9), box(11, 11, 80, 80, 0.8), box(12, 12, 110, 110, 0.85)},
			threshold: 0.1,
			want:      []geometry.DetectedBox{box(10, 10, 110, 110, 0.85)},
		},
		{
			name:      "empty",
			input:     nil,
			threshold: 0.5,
			want:      []geometry.DetectedBox{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MinAreaRatio{}.Merge(tt.input, tt.threshold)
			assertBoxes(t, got, tt.want)
		})
	}
}

func TestMinAreaRatioKeepsHigherClass(t *testing.T) {
	a := box(0, 0, 10, 10, 0.5)
	b := box(0, 0, 10, 10, 0.5)
	b.ClassID = 3
	got := MinAreaRatio{}.Merge([]geometry.DetectedBox{a, b}, 0.5)
	if len(got) != 1 || got[0].ClassID != 3 {
		t.Fatalf("Merge() = %+v, want one box with class 3", got)
	}
}

func TestMinAreaRatioProperties(t *testing.T) {
	random := rand.New(rand.NewSource(7))
	for round := 0; round < 200; round++ {
		boxes := randomBoxes(random, 2+random.Intn(12))
		threshold := []float64{0.1, 0.3, 0.5, 0.9}[round%4]

		merged := MinAreaRatio{}.Merge(boxes, threshold)

		again := MinAreaRatio{}.Merge(merged, threshold)
		if !reflect.DeepEqual(again, merged) {
			t.Fatalf("round %d: merge is not idempotent:\nfirst:  %+v\nsecond: %+v", round, merged, again)
		}
		for i := range merged {
			for j := i + 1; j < len(merged); j++ {
				if ratio := OverlapRatio(merged[i].Rect, merged[j].Rect); ratio > threshold {
					t.Fatalf("round %d: boxes %d and %d still overlap with ratio %v > %v", round, i, j, ratio, threshold)
				}
			}
		}
		for _, input := range boxes {
			if !coveredByOne(merged, input.Rect) {
				t.Fatalf("round %d: input %+v is not contained in any merged box", round, input)
			}
		}
	}
}

func TestContainmentMerge(t *testing.T) {
	tests := []struct {
		name      string
		input     []geometry.DetectedBox
		threshold float64
		want      []geometry.DetectedBox
	}{
		{
			name:      "inner box is absorbed",
			input:     []geometry.DetectedBox{box(0, 0, 100, 100, 0.9), box(10, 10, 20, 20, 0.5)},
			threshold: 0.8,
			want:      []geometry.DetectedBox{box(0, 0, 100, 100, 0.7)},
		},
		{
			name:      "partial overlap below threshold",
			input:     []geometry.DetectedBox{box(0, 0, 10, 10, 0.9), box(5, 0, 15, 10, 0.5)},
			threshold: 0.8,
			want:      []geometry.DetectedBox{box(0, 0, 10, 10, 0.9), box(5, 0, 15, 10, 0.5)},
		},
		{
			name: "linked through a shared box",
			input: []geometry.DetectedBox{
				box(0, 0, 50, 50, 0.6),
				box(40, 40, 100, 100, 0.6),
				box(45, 45, 55, 55, 0.9),
			},
			threshold: 0.2,
			want:      []geometry.DetectedBox{box(0, 0, 100, 100, 0.7)},
		},
		{
			name:      "disjoint",
			input:     []geometry.DetectedBox{box(0, 0, 10, 10, 0.9), box(20, 20, 30, 30, 0.5)},
			threshold: 0.5,
			want:      []geometry.DetectedBox{box(0, 0, 10, 10, 0.9), box(20, 20, 30, 30, 0.5)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Containment{}.Merge(tt.input, tt.threshold)
			assertBoxes(t, got, tt.want)
		})
	}
}

func TestContainmentInvariant(t *testing.T) {
	random := rand.New(rand.NewSource(11))
	for round := 0; round < 100; round++ {
		boxes := randomBoxes(random, 1+random.Intn(10))
		merged := Containment{}.Merge(boxes, 0.6)
		for _, input := range boxes {
			if !coveredByOne(merged, input.Rect) {
				t.Fatalf("round %d: input %+v is not contained in any merged box %+v", round, input, merged)
			}
		}
	}
}

func TestNew(t *testing.T) {
	if s, err := New(StrategyMinArea); err != nil || s != (MinAreaRatio{}) {
		t.Errorf("New(%q) = %v, %v", StrategyMinArea, s, err)
	}
	if s, err := New(StrategyContainment); err != nil || s != (Containment{}) {
		t.Errorf("New(%q) = %v, %v", StrategyContainment, s, err)
	}
	if _, err := New("iou"); err == nil {
		t.Errorf("New(\"iou\") returned no error")
	}
}

func randomBoxes(random *rand.Rand, n int) []geometry.DetectedBox {
	boxes := make([]geometry.DetectedBox, n)
	for i := range boxes {
		x := float64(random.Intn(300))
		y := float64(random.Intn(300))
		boxes[i] = geometry.DetectedBox{
			Rect:       geometry.R(x, y, x+float64(5+random.Intn(120)), y+float64(5+random.Intn(120))),
			Confidence: random.Float64(),
			ClassID:    random.Intn(2),
		}
	}
	return boxes
}

func coveredByOne(boxes []geometry.DetectedBox, r geometry.Rect) bool {
	for _, b := range boxes {
		if b.Contains(r) {
			return true
		}
	}
	return false
}

func assertBoxes(t *testing.T, got, want []geometry.DetectedBox) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d boxes %+v, want %d boxes %+v", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i].Rect != want[i].Rect || got[i].ClassID != want[i].ClassID {
			t.Errorf("box %d = %+v, want %+v", i, got[i], want[i])
		}
		if math.Abs(got[i].Confidence-want[i].Confidence) > 1e-9 {
			t.Errorf("box %d confidence = %v, want %v", i, got[i].Confidence, want[i].Confidence)
		}
	}
}
