package recast

import "testing"

// flatCompact builds a compact heightfield from a w x h field with one
// walkable span per column.
func flatCompact(t *testing.T, w, h int) *CompactHeightfield {
	t.Helper()
	hf := newTestHeightfield(t, w, h)
	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			hf.AddSpan(x, z, 0, 1, WalkableArea, 1)
		}
	}
	chf, err := BuildCompactHeightfield(1, 1, hf)
	if err != nil {
		t.Fatal(err)
	}
	return chf
}

func TestMedianFilterWalkableArea(t *testing.T) {
	chf := flatCompact(t, 5, 5)

	// A single deviant span in the middle of a uniform area is noise the
	// median removes.
	center := chf.Cells[2+2*5].Index
	chf.Areas[center] = 7
	if err := MedianFilterWalkableArea(chf); err != nil {
		t.Fatal(err)
	}
	if chf.Areas[center] != WalkableArea {
		t.Errorf("center area = %d, want %d", chf.Areas[center], WalkableArea)
	}
	for i, a := range chf.Areas {
		if a != WalkableArea {
			t.Errorf("span %d area = %d after filtering uniform field", i, a)
		}
	}
}

func TestMedianFilterPreservesNullArea(t *testing.T) {
	chf := flatCompact(t, 5, 5)

	// Null spans (e.g. from erosion) pass through untouched.
	null := chf.Cells[1+1*5].Index
	chf.Areas[null] = NullArea
	if err := MedianFilterWalkableArea(chf); err != nil {
		t.Fatal(err)
	}
	if chf.Areas[null] != NullArea {
		t.Errorf("null span area = %d, want %d", chf.Areas[null], NullArea)
	}
	center := chf.Cells[2+2*5].Index
	if chf.Areas[center] != WalkableArea {
		t.Errorf("neighbour of null span area = %d, want %d", chf.Areas[center], WalkableArea)
	}
}
