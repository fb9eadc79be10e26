package recast

import "testing"

func TestRasterizeTriangle(t *testing.T) {
	verts := []float32{
		0, 0, 0,
		1, 0, 0,
		0, 0, -1,
	}
	bmin := make([]float32, 3)
	bmax := make([]float32, 3)
	CalcBounds(verts, 3, bmin, bmax)

	w, h := CalcGridSize(bmin, bmax, 0.5)
	hf, err := NewHeightfield(w, h, bmin, bmax, 0.5, 0.5)
	if err != nil {
		t.Fatal(err)
	}

	RasterizeTriangle(verts[:3], verts[3:6], verts[6:9], 42, hf, 1)

	want := map[int]bool{
		0 + 0*w: true,
		1 + 0*w: false,
		0 + 1*w: true,
		1 + 1*w: true,
	}
	for col, filled := range want {
		s := hf.Spans[col]
		if filled != (s != nil) {
			t.Errorf("column %d: span present = %v, want %v", col, s != nil, filled)
			continue
		}
		if s == nil {
			continue
		}
		if s.Min != 0 || s.Max != 1 || s.Area != 42 || s.Next != nil {
			t.Errorf("column %d: span = %+v", col, s)
		}
	}
}

func TestRasterizeTriangleOutsideField(t *testing.T) {
	// A triangle whose bounding box overlaps the heightfield but whose
	// surface does not must not generate spans.
	bmin := []float32{0, 0, 0}
	bmax := []float32{10, 10, 10}
	hf, err := NewHeightfield(10, 10, bmin, bmax, 1, 1)
	if err != nil {
		t.Fatal(err)
	}

	verts := []float32{
		-10.0, 5.5, -10.0,
		-10.0, 5.5, 3,
		3.0, 5.5, -10.0,
	}
	RasterizeTriangle(verts[:3], verts[3:6], verts[6:9], 42, hf, 1)

	for i, s := range hf.Spans {
		if s != nil {
			t.Fatalf("column %d has a span, triangle is outside the field", i)
		}
	}
}

func TestRasterizeSkinnyTriangles(t *testing.T) {
	// Thin slivers along either axis must not index outside the grid.
	along := [][]float32{
		{
			5, 0, 0.005,
			5, 0, -0.005,
			-5, 0, 0.005,
			-5, 0, 0.005,
			5, 0, -0.005,
			-5, 0, -0.005,
		},
		{
			0.005, 0, 5,
			-0.005, 0, 5,
			0.005, 0, -5,
			0.005, 0, -5,
			-0.005, 0, 5,
			-0.005, 0, -5,
		},
	}
	for _, verts := range along {
		bmin := make([]float32, 3)
		bmax := make([]float32, 3)
		CalcBounds(verts, 6, bmin, bmax)
		w, h := CalcGridSize(bmin, bmax, 1)
		hf, err := NewHeightfield(w, h, bmin, bmax, 1, 1)
		if err != nil {
			t.Fatal(err)
		}
		tris := []int32{0, 1, 2, 3, 4, 5}
		areas := []uint8{42, 42}
		if err := RasterizeTriangles(verts, tris, areas, hf, 1); err != nil {
			t.Fatal(err)
		}
		if hf.SpanCount() == 0 {
			t.Error("sliver triangles rasterized no spans")
		}
	}
}

func TestRasterizeTriangles(t *testing.T) {
	verts := []float32{
		0, 0, 0,
		1, 0, 0,
		0, 0, -1,
		0, 0, 1,
	}
	tris := []int32{
		0, 1, 2,
		0, 3, 1,
	}
	areas := []uint8{1, 2}
	bmin := make([]float32, 3)
	bmax := make([]float32, 3)
	CalcBounds(verts, 4, bmin, bmax)

	w, h := CalcGridSize(bmin, bmax, 0.5)
	hf, err := NewHeightfield(w, h, bmin, bmax, 0.5, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if err := RasterizeTriangles(verts, tris, areas, hf, 1); err != nil {
		t.Fatal(err)
	}

	wantArea := map[int]uint8{
		0 + 0*w: 1,
		0 + 1*w: 1,
		1 + 1*w: 1,
		0 + 2*w: 2,
		1 + 2*w: 2,
		0 + 3*w: 2,
	}
	for col, area := range wantArea {
		s := hf.Spans[col]
		if s == nil {
			t.Errorf("column %d: no span", col)
			continue
		}
		if s.Min != 0 || s.Max != 1 || s.Area != area || s.Next != nil {
			t.Errorf("column %d: span = %+v, want area %d", col, s, area)
		}
	}
	if hf.Spans[1+0*w] != nil || hf.Spans[1+3*w] != nil {
		t.Error("spans rasterized outside the triangles")
	}
}
