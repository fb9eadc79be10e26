package detour

import (
	"bytes"
	"testing"
)

// quadParams builds a single-polygon square tile, 5x5 world units.
func quadParams() *NavMeshCreateParams {
	return &NavMeshCreateParams{
		Verts: []int{
			0, 0, 0,
			0, 0, 10,
			10, 0, 10,
			10, 0, 0,
		},
		VertCount: 4,
		Polys: []int{
			0, 1, 2, 3, meshNullIdx, meshNullIdx,
			0xffff, 0xffff, 0xffff, 0xffff, 0xffff, 0xffff,
		},
		PolyFlags:      []uint16{1},
		PolyAreas:      []uint8{63},
		PolyCount:      1,
		Nvp:            6,
		BMin:           [3]float32{0, 0, 0},
		BMax:           [3]float32{5, 1, 5},
		WalkableHeight: 2,
		WalkableRadius: 0.6,
		WalkableClimb:  0.9,
		CellSize:       0.5,
		CellHeight:     0.1,
		BuildBvTree:    true,
	}
}

func TestCreateNavMeshData(t *testing.T) {
	data, err := CreateNavMeshData(quadParams())
	if err != nil {
		t.Fatal(err)
	}
	hdr, err := decodeTileHeader(data)
	if err != nil {
		t.Fatal(err)
	}
	if hdr.PolyCount != 1 || hdr.VertCount != 4 {
		t.Fatalf("header counts: %d polys, %d verts", hdr.PolyCount, hdr.VertCount)
	}
	if hdr.DetailTriCount != 2 {
		t.Fatalf("fan triangulation produced %d tris, want 2", hdr.DetailTriCount)
	}
	if hdr.BvNodeCount < 1 {
		t.Fatal("no BV tree nodes")
	}
}

func TestCreateNavMeshDataRejectsWideVerts(t *testing.T) {
	p := quadParams()
	p.Nvp = VertsPerPolygon + 1
	if _, err := CreateNavMeshData(p); err == nil {
		t.Fatal("expected error for nvp above the format limit")
	}
}

func TestCreateNavMeshDataDeterminism(t *testing.T) {
	a, err := CreateNavMeshData(quadParams())
	if err != nil {
		t.Fatal(err)
	}
	b, err := CreateNavMeshData(quadParams())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("identical inputs produced different blobs")
	}
}

func TestTileCodecRoundTrip(t *testing.T) {
	p := quadParams()
	// Detail submesh whose vertices are exactly the polygon corners.
	p.DetailMeshes = []int{0, 4, 0, 2}
	p.DetailVerts = []float32{
		0, 0, 0,
		0, 0, 5,
		5, 0, 5,
		5, 0, 0,
	}
	p.DetailVertsCount = 4
	p.DetailTris = []uint8{
		0, 1, 2, 0,
		0, 2, 3, 0,
	}
	p.DetailTriCount = 2

	data, err := CreateNavMeshData(p)
	if err != nil {
		t.Fatal(err)
	}
	d, err := decodeTile(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(d.polys) != 1 || d.polys[0].VertCount != 4 {
		t.Fatalf("decoded poly = %+v", d.polys[0])
	}
	if d.polys[0].Area() != 63 {
		t.Fatalf("decoded area = %d", d.polys[0].Area())
	}
	if len(d.detailMeshes) != 1 || d.detailMeshes[0].VertCount != 0 {
		t.Fatalf("detail mesh = %+v", d.detailMeshes[0])
	}
	// World-space vertices: grid * cellSize.
	if d.verts[0] != 0 || d.verts[3*2] != 5 {
		t.Fatalf("decoded verts = %v", d.verts)
	}

	reenc, err := d.encode()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, reenc) {
		t.Fatal("decode/encode round trip changed the blob")
	}
}

func TestSingleTileNavMesh(t *testing.T) {
	data, err := CreateNavMeshData(quadParams())
	if err != nil {
		t.Fatal(err)
	}
	nav, err := NewSingleTileNavMesh(data, TileFreeData)
	if err != nil {
		t.Fatal(err)
	}
	if nav.PolyCount() != 1 {
		t.Fatalf("poly count = %d", nav.PolyCount())
	}

	base := nav.GetPolyRefBase(nav.GetTile(0))
	if base == 0 {
		t.Fatal("zero base ref")
	}
	if _, _, err := nav.GetTileAndPolyByRef(base); err != nil {
		t.Fatal(err)
	}
	if nav.IsValidPolyRef(base + 1) {
		t.Fatal("out-of-range poly ref accepted")
	}

	salt, it, ip := nav.DecodePolyID(base)
	if nav.EncodePolyID(salt, it, ip) != base {
		t.Fatal("poly ref encode/decode not symmetric")
	}
}

func TestRemoveTileOwnership(t *testing.T) {
	data, err := CreateNavMeshData(quadParams())
	if err != nil {
		t.Fatal(err)
	}

	// With TileFreeData the mesh owns the blob and keeps it.
	nav, err := NewSingleTileNavMesh(data, TileFreeData)
	if err != nil {
		t.Fatal(err)
	}
	base := nav.GetPolyRefBase(nav.GetTile(0))
	got, err := nav.RemoveTile(base)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("owned tile data handed back on remove")
	}
	if nav.IsValidPolyRef(base) {
		t.Fatal("ref still valid after tile removal")
	}

	// Without the flag the caller gets the bytes back.
	nav, err = NewSingleTileNavMesh(data, 0)
	if err != nil {
		t.Fatal(err)
	}
	base = nav.GetPolyRefBase(nav.GetTile(0))
	got, err = nav.RemoveTile(base)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("expected tile data back when not owned")
	}
}

func TestFindNearestPoly(t *testing.T) {
	data, err := CreateNavMeshData(quadParams())
	if err != nil {
		t.Fatal(err)
	}
	nav, err := NewSingleTileNavMesh(data, TileFreeData)
	if err != nil {
		t.Fatal(err)
	}

	query := &NavMeshQuery{}
	if err := query.Init(nav, 2048); err != nil {
		t.Fatal(err)
	}
	if query.NodePoolCapacity() != 2048 {
		t.Fatalf("node pool capacity = %d", query.NodePoolCapacity())
	}

	filter := NewQueryFilter()
	center := []float32{2.5, 0, 2.5}
	ext := []float32{1, 1, 1}
	ref, pt, err := query.FindNearestPoly(center, ext, filter)
	if err != nil {
		t.Fatal(err)
	}
	if ref == 0 {
		t.Fatal("no polygon found at the center of the quad")
	}
	if pt[0] != 2.5 || pt[1] != 0 || pt[2] != 2.5 {
		t.Fatalf("nearest point = %v", pt)
	}

	// A point outside the quad clamps onto the boundary.
	closest := make([]float32, 3)
	over, err := query.ClosestPointOnPoly(ref, []float32{7, 0, 2.5}, closest)
	if err != nil {
		t.Fatal(err)
	}
	if over {
		t.Fatal("point beyond the edge reported as over the polygon")
	}
	if closest[0] != 5 || closest[2] != 2.5 {
		t.Fatalf("clamped point = %v", closest)
	}

	// An excluding filter hides everything.
	filter.ExcludeFlags = 0xffff
	ref, _, err = query.FindNearestPoly(center, ext, filter)
	if err != nil {
		t.Fatal(err)
	}
	if ref != 0 {
		t.Fatal("filter did not exclude the polygon")
	}
}

func TestGetPolyHeight(t *testing.T) {
	data, err := CreateNavMeshData(quadParams())
	if err != nil {
		t.Fatal(err)
	}
	nav, err := NewSingleTileNavMesh(data, TileFreeData)
	if err != nil {
		t.Fatal(err)
	}
	query := &NavMeshQuery{}
	if err := query.Init(nav, 64); err != nil {
		t.Fatal(err)
	}
	ref := nav.GetPolyRefBase(nav.GetTile(0))

	h, err := query.GetPolyHeight(ref, []float32{1, 5, 1})
	if err != nil {
		t.Fatal(err)
	}
	if h != 0 {
		t.Fatalf("height = %f, want 0", h)
	}

	if _, err := query.GetPolyHeight(ref, []float32{20, 0, 20}); err == nil {
		t.Fatal("expected error for point outside the polygon")
	}
}
