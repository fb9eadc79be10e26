package recast

import "testing"

func newTestHeightfield(t *testing.T, w, h int) *Heightfield {
	t.Helper()
	bmin := []float32{0, 0, 0}
	bmax := []float32{float32(w), 100, float32(h)}
	hf, err := NewHeightfield(w, h, bmin, bmax, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	return hf
}

func TestFilterLowHangingWalkableObstacles(t *testing.T) {
	// An unwalkable span within climb distance above a walkable one becomes
	// walkable.
	hf := newTestHeightfield(t, 1, 1)
	hf.Spans[0] = &Span{Min: 0, Max: 2, Area: WalkableArea,
		Next: &Span{Min: 3, Max: 4, Area: NullArea}}
	FilterLowHangingWalkableObstacles(2, hf)
	if hf.Spans[0].Next.Area != WalkableArea {
		t.Error("low obstacle should become walkable")
	}

	// Too high to step onto.
	hf.Spans[0] = &Span{Min: 0, Max: 2, Area: WalkableArea,
		Next: &Span{Min: 6, Max: 8, Area: NullArea}}
	FilterLowHangingWalkableObstacles(2, hf)
	if hf.Spans[0].Next.Area != NullArea {
		t.Error("high obstacle should stay unwalkable")
	}

	// Walkability must not cascade through stacked unwalkable spans.
	hf.Spans[0] = &Span{Min: 0, Max: 2, Area: WalkableArea,
		Next: &Span{Min: 3, Max: 4, Area: NullArea,
			Next: &Span{Min: 5, Max: 6, Area: NullArea}}}
	FilterLowHangingWalkableObstacles(2, hf)
	if hf.Spans[0].Next.Next.Area != NullArea {
		t.Error("walkability cascaded through unwalkable spans")
	}
}

func TestFilterLedgeSpans(t *testing.T) {
	// A 3x3 plateau at height 10 surrounded by nothing: every span borders
	// the grid edge or a missing column, so all become unwalkable.
	hf := newTestHeightfield(t, 3, 3)
	for z := 0; z < 3; z++ {
		for x := 0; x < 3; x++ {
			hf.Spans[x+z*3] = &Span{Min: 0, Max: 10, Area: WalkableArea}
		}
	}
	FilterLedgeSpans(5, 2, hf)
	for i, s := range hf.Spans {
		if i == 4 {
			// The center span only borders spans at the same height.
			if s.Area != WalkableArea {
				t.Error("center of the plateau should stay walkable")
			}
			continue
		}
		if s.Area != NullArea {
			t.Errorf("rim span %d should be a ledge", i)
		}
	}

	// A uniform field with padded borders keeps its interior walkable.
	hf = newTestHeightfield(t, 5, 5)
	for z := 0; z < 5; z++ {
		for x := 0; x < 5; x++ {
			hf.Spans[x+z*5] = &Span{Min: 0, Max: 1, Area: WalkableArea}
		}
	}
	FilterLedgeSpans(5, 2, hf)
	if hf.Spans[2+2*5].Area != WalkableArea {
		t.Error("interior span of a flat field should stay walkable")
	}
}

func TestFilterWalkableLowHeightSpans(t *testing.T) {
	hf := newTestHeightfield(t, 1, 1)

	// Headroom of 3 under a ceiling span.
	hf.Spans[0] = &Span{Min: 0, Max: 2, Area: WalkableArea,
		Next: &Span{Min: 5, Max: 6, Area: NullArea}}
	FilterWalkableLowHeightSpans(5, hf)
	if hf.Spans[0].Area != NullArea {
		t.Error("span with low headroom should be cleared")
	}

	// No ceiling, headroom is unbounded.
	hf.Spans[0] = &Span{Min: 0, Max: 2, Area: WalkableArea}
	FilterWalkableLowHeightSpans(5, hf)
	if hf.Spans[0].Area != WalkableArea {
		t.Error("open span should stay walkable")
	}
}
