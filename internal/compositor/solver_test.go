package compositor

import (
	"reflect"
	"testing"
)

var (
	contentA = ContentRef{URL: "https://example.com/a.m3u8", Kind: KindVideo}
	contentB = ContentRef{URL: "https://example.com/b.m3u8", Kind: KindVideo}
)

func TestSolve_full_merge(t *testing.T) {
	// 3x2 grid: A A B / A A B merges into a 2x2 A box and a 1x2 B box.
	assignment := AssignmentMap{
		0: contentA, 1: contentA, 2: contentB,
		3: contentA, 4: contentA, 5: contentB,
	}

	boxes := Solve(3, 2, assignment)
	if len(boxes) != 2 {
		t.Fatalf("expected 2 boxes, got %d: %+v", len(boxes), boxes)
	}

	want := []Box{
		{Content: contentA, X: 0, Y: 0, W: 2, H: 2, Spaces: []int{0, 1, 3, 4}},
		{Content: contentB, X: 2, Y: 0, W: 1, H: 2, Spaces: []int{2, 5}},
	}
	if !reflect.DeepEqual(boxes, want) {
		t.Errorf("boxes mismatch\n got %+v\nwant %+v", boxes, want)
	}
}

func TestSolve_l_shape_is_not_merged_into_one_box(t *testing.T) {
	// 2x2 grid: A A / A _ cannot be one rectangle. The column grows first,
	// so the result is a 1x2 box plus a 1x1 box.
	assignment := AssignmentMap{0: contentA, 1: contentA, 2: contentA}

	boxes := Solve(2, 2, assignment)
	want := []Box{
		{Content: contentA, X: 0, Y: 0, W: 1, H: 2, Spaces: []int{0, 2}},
		{Content: contentA, X: 1, Y: 0, W: 1, H: 1, Spaces: []int{1}},
	}
	if !reflect.DeepEqual(boxes, want) {
		t.Errorf("boxes mismatch\n got %+v\nwant %+v", boxes, want)
	}
}

func TestSolve_empty_assignment(t *testing.T) {
	if boxes := Solve(3, 3, AssignmentMap{}); len(boxes) != 0 {
		t.Errorf("expected no boxes for empty assignment, got %+v", boxes)
	}
	if boxes := Solve(0, 0, AssignmentMap{0: contentA}); boxes != nil {
		t.Errorf("expected nil for degenerate grid, got %+v", boxes)
	}
}

func TestSolve_zero_refs_are_empty_cells(t *testing.T) {
	assignment := AssignmentMap{0: {}, 1: contentA}
	boxes := Solve(2, 1, assignment)
	if len(boxes) != 1 || boxes[0].X != 1 {
		t.Errorf("zero ref should be skipped, got %+v", boxes)
	}
}

func TestSolve_partition_totality(t *testing.T) {
	tests := []struct {
		name       string
		cols, rows int
		assignment AssignmentMap
	}{
		{"checkerboard", 4, 4, AssignmentMap{
			0: contentA, 2: contentA, 5: contentB, 7: contentB,
			8: contentA, 10: contentA, 13: contentB, 15: contentB,
		}},
		{"single column", 1, 5, AssignmentMap{0: contentA, 1: contentA, 3: contentB}},
		{"uniform", 3, 3, AssignmentMap{
			0: contentA, 1: contentA, 2: contentA,
			3: contentA, 4: contentA, 5: contentA,
			6: contentA, 7: contentA, 8: contentA,
		}},
		{"sparse", 5, 4, AssignmentMap{3: contentA, 11: contentB, 17: contentA}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			boxes := Solve(tt.cols, tt.rows, tt.assignment)

			covered := make(map[int]int)
			for _, b := range boxes {
				if len(b.Spaces) != b.W*b.H {
					t.Errorf("box %+v: %d spaces for %dx%d rect", b, len(b.Spaces), b.W, b.H)
				}
				for i := 1; i < len(b.Spaces); i++ {
					if b.Spaces[i] <= b.Spaces[i-1] {
						t.Errorf("box %+v: spaces not sorted ascending", b)
					}
				}
				for _, s := range b.Spaces {
					covered[s]++
					if got := tt.assignment[s]; got != b.Content {
						t.Errorf("box %+v covers cell %d holding %+v", b, s, got)
					}
				}
			}

			for idx, c := range tt.assignment {
				if c.IsZero() {
					continue
				}
				if covered[idx] != 1 {
					t.Errorf("cell %d covered %d times, want exactly once", idx, covered[idx])
				}
			}
			for idx, n := range covered {
				if n != 1 {
					t.Errorf("cell %d covered %d times", idx, n)
				}
			}
		})
	}
}

func TestSolve_deterministic(t *testing.T) {
	assignment := AssignmentMap{
		0: contentA, 1: contentA, 2: contentB,
		3: contentA, 4: contentA, 5: contentB,
		7: contentB, 8: contentB,
	}
	first := Solve(3, 3, assignment)
	for i := 0; i < 10; i++ {
		if again := Solve(3, 3, assignment); !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs\n got %+v\nwant %+v", i, again, first)
		}
	}
}
