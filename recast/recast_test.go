package recast

import "testing"

func TestCalcBounds(t *testing.T) {
	verts := []float32{1, 2, 3}
	bmin := make([]float32, 3)
	bmax := make([]float32, 3)
	CalcBounds(verts, 1, bmin, bmax)
	for k := 0; k < 3; k++ {
		if bmin[k] != verts[k] || bmax[k] != verts[k] {
			t.Errorf("bounds of a single vertex should equal it, got %v %v", bmin, bmax)
		}
	}

	verts = []float32{
		1, 2, 3,
		0, 2, 5,
	}
	CalcBounds(verts, 2, bmin, bmax)
	if bmin[0] != 0 || bmin[1] != 2 || bmin[2] != 3 {
		t.Errorf("bmin = %v", bmin)
	}
	if bmax[0] != 1 || bmax[1] != 2 || bmax[2] != 5 {
		t.Errorf("bmax = %v", bmax)
	}
}

func TestCalcGridSize(t *testing.T) {
	bmin := []float32{0, 2, 3}
	bmax := []float32{1, 2, 6}
	w, h := CalcGridSize(bmin, bmax, 1.5)
	if w != 1 {
		t.Errorf("width = %d, want 1", w)
	}
	if h != 2 {
		t.Errorf("height = %d, want 2", h)
	}
}

func TestNewHeightfield(t *testing.T) {
	bmin := []float32{0, 2, 3}
	bmax := []float32{1, 2, 6}
	w, h := CalcGridSize(bmin, bmax, 1.5)
	hf, err := NewHeightfield(w, h, bmin, bmax, 1.5, 2)
	if err != nil {
		t.Fatal(err)
	}
	if hf.Width != w || hf.Height != h {
		t.Errorf("size = %dx%d, want %dx%d", hf.Width, hf.Height, w, h)
	}
	if hf.CellSize != 1.5 || hf.CellHeight != 2 {
		t.Errorf("cell size = %v/%v", hf.CellSize, hf.CellHeight)
	}
	if len(hf.Spans) != w*h {
		t.Errorf("len(Spans) = %d, want %d", len(hf.Spans), w*h)
	}

	if _, err := NewHeightfield(0, 3, bmin, bmax, 1.5, 2); err == nil {
		t.Error("expected error for zero width")
	}
}

func TestMarkWalkableTriangles(t *testing.T) {
	verts := []float32{
		0, 0, 0,
		1, 0, 0,
		0, 0, -1,
	}
	walkable := []int32{0, 1, 2}
	unwalkable := []int32{0, 2, 1}

	areas := []uint8{NullArea}
	MarkWalkableTriangles(45, verts, walkable, areas)
	if areas[0] != WalkableArea {
		t.Errorf("flat triangle should be walkable, area = %d", areas[0])
	}

	areas[0] = NullArea
	MarkWalkableTriangles(45, verts, unwalkable, areas)
	if areas[0] != NullArea {
		t.Errorf("downward facing triangle should stay null, area = %d", areas[0])
	}

	// Areas of non-walkable triangles are left untouched.
	areas[0] = 42
	MarkWalkableTriangles(45, verts, unwalkable, areas)
	if areas[0] != 42 {
		t.Errorf("area id overwritten, got %d", areas[0])
	}

	// Slopes equal to the limit are not walkable.
	areas[0] = NullArea
	MarkWalkableTriangles(0, verts, walkable, areas)
	if areas[0] != NullArea {
		t.Errorf("slope at the limit should not be walkable, area = %d", areas[0])
	}
}

func TestClearUnwalkableTriangles(t *testing.T) {
	verts := []float32{
		0, 0, 0,
		1, 0, 0,
		0, 0, -1,
	}
	walkable := []int32{0, 1, 2}
	unwalkable := []int32{0, 2, 1}

	areas := []uint8{42}
	ClearUnwalkableTriangles(45, verts, unwalkable, areas)
	if areas[0] != NullArea {
		t.Errorf("steep triangle should be cleared, area = %d", areas[0])
	}

	areas[0] = 42
	ClearUnwalkableTriangles(45, verts, walkable, areas)
	if areas[0] != 42 {
		t.Errorf("walkable triangle should keep its area, got %d", areas[0])
	}
}

func TestAddSpan(t *testing.T) {
	bmin := []float32{0, 0, 0}
	bmax := []float32{2, 2, 2}
	hf, err := NewHeightfield(2, 2, bmin, bmax, 1, 1)
	if err != nil {
		t.Fatal(err)
	}

	hf.AddSpan(0, 0, 0, 1, 42, 1)
	s := hf.Spans[0]
	if s == nil || s.Min != 0 || s.Max != 1 || s.Area != 42 {
		t.Fatalf("span = %+v", s)
	}

	// Adding the same span merges in place.
	hf.AddSpan(0, 0, 0, 1, 42, 1)
	s = hf.Spans[0]
	if s == nil || s.Min != 0 || s.Max != 1 || s.Next != nil {
		t.Fatalf("merged span = %+v", s)
	}

	// Touching span extends the existing one.
	hf.AddSpan(0, 0, 1, 2, 42, 1)
	s = hf.Spans[0]
	if s == nil || s.Min != 0 || s.Max != 2 || s.Next != nil {
		t.Fatalf("extended span = %+v", s)
	}

	// A span bridging two disjoint spans collapses the column to one.
	hf.Spans[1] = nil
	hf.AddSpan(1, 0, 0, 1, 42, 1)
	hf.AddSpan(1, 0, 2, 3, 42, 1)
	if hf.Spans[1] == nil || hf.Spans[1].Next == nil {
		t.Fatal("expected two disjoint spans")
	}
	hf.AddSpan(1, 0, 1, 2, 42, 1)
	s = hf.Spans[1]
	if s == nil || s.Min != 0 || s.Max != 3 || s.Next != nil {
		t.Fatalf("bridged span = %+v", s)
	}
}

func TestBuildCompactHeightfield(t *testing.T) {
	bmin := []float32{0, 0, 0}
	bmax := []float32{3, 4, 3}
	hf, err := NewHeightfield(3, 3, bmin, bmax, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	for z := 0; z < 3; z++ {
		for x := 0; x < 3; x++ {
			hf.AddSpan(x, z, 0, 1, WalkableArea, 1)
		}
	}

	chf, err := BuildCompactHeightfield(1, 1, hf)
	if err != nil {
		t.Fatal(err)
	}
	if chf.SpanCount != 9 {
		t.Fatalf("span count = %d, want 9", chf.SpanCount)
	}

	// The center cell connects in all four directions, corners in two.
	center := &chf.Spans[chf.Cells[1+1*3].Index]
	for dir := 0; dir < 4; dir++ {
		if center.Con(dir) == NotConnected {
			t.Errorf("center span missing connection in dir %d", dir)
		}
	}
	corner := &chf.Spans[chf.Cells[0].Index]
	ncons := 0
	for dir := 0; dir < 4; dir++ {
		if corner.Con(dir) != NotConnected {
			ncons++
		}
	}
	if ncons != 2 {
		t.Errorf("corner span has %d connections, want 2", ncons)
	}
}
