package recast

import (
	"reflect"
	"testing"
)

// buildPlaneCompact rasterizes a flat 10x10 plane and runs it through the
// filters, compaction and erosion.
func buildPlaneCompact(t *testing.T) *CompactHeightfield {
	t.Helper()
	verts := []float32{
		0, 0, 0,
		10, 0, 0,
		10, 0, 10,
		0, 0, 10,
	}
	tris := []int32{
		0, 2, 1,
		0, 3, 2,
	}
	areas := make([]uint8, 2)
	MarkWalkableTriangles(45, verts, tris, areas)
	for i, a := range areas {
		if a != WalkableArea {
			t.Fatalf("triangle %d not walkable", i)
		}
	}

	bmin := make([]float32, 3)
	bmax := make([]float32, 3)
	CalcBounds(verts, 4, bmin, bmax)
	cs := float32(0.5)
	ch := float32(0.2)
	w, h := CalcGridSize(bmin, bmax, cs)
	hf, err := NewHeightfield(w, h, bmin, bmax, cs, ch)
	if err != nil {
		t.Fatal(err)
	}
	if err := RasterizeTriangles(verts, tris, areas, hf, 1); err != nil {
		t.Fatal(err)
	}

	walkableHeight := 10
	walkableClimb := 4
	FilterLowHangingWalkableObstacles(walkableClimb, hf)
	FilterLedgeSpans(walkableHeight, walkableClimb, hf)
	FilterWalkableLowHeightSpans(walkableHeight, hf)

	chf, err := BuildCompactHeightfield(walkableHeight, walkableClimb, hf)
	if err != nil {
		t.Fatal(err)
	}
	if chf.SpanCount < (w-1)*(h-1) {
		t.Fatalf("span count = %d, want at least %d", chf.SpanCount, (w-1)*(h-1))
	}
	if err := ErodeWalkableArea(2, chf); err != nil {
		t.Fatal(err)
	}
	return chf
}

func countRegions(chf *CompactHeightfield) int {
	seen := map[int]bool{}
	for i := range chf.Spans {
		r := chf.Spans[i].Reg
		if r != 0 && r&BorderReg == 0 {
			seen[r] = true
		}
	}
	return len(seen)
}

func TestBuildRegionsWatershed(t *testing.T) {
	chf := buildPlaneCompact(t)
	BuildDistanceField(chf)
	if chf.MaxDistance == 0 {
		t.Fatal("distance field is flat at zero")
	}
	if err := BuildRegions(chf, 0, 8, 20); err != nil {
		t.Fatal(err)
	}
	if n := countRegions(chf); n != 1 {
		t.Fatalf("region count = %d, want 1", n)
	}
	// Every walkable span belongs to the region.
	for i := range chf.Spans {
		if chf.Areas[i] != NullArea && chf.Spans[i].Reg == 0 {
			t.Fatal("walkable span left without region")
		}
		if chf.Areas[i] == NullArea && chf.Spans[i].Reg != 0 {
			t.Fatal("eroded span assigned a region")
		}
	}
}

func TestBuildRegionsMonotone(t *testing.T) {
	chf := buildPlaneCompact(t)
	if err := BuildRegionsMonotone(chf, 0, 8, 20); err != nil {
		t.Fatal(err)
	}
	if n := countRegions(chf); n < 1 {
		t.Fatalf("region count = %d, want >= 1", n)
	}
	for i := range chf.Spans {
		if chf.Areas[i] != NullArea && chf.Spans[i].Reg == 0 {
			t.Fatal("walkable span left without region")
		}
	}
}

func TestBuildLayerRegions(t *testing.T) {
	chf := buildPlaneCompact(t)
	if err := BuildLayerRegions(chf, 0, 8); err != nil {
		t.Fatal(err)
	}
	if n := countRegions(chf); n < 1 {
		t.Fatalf("region count = %d, want >= 1", n)
	}
}

func TestBuildContoursPlane(t *testing.T) {
	chf := buildPlaneCompact(t)
	BuildDistanceField(chf)
	if err := BuildRegions(chf, 0, 8, 20); err != nil {
		t.Fatal(err)
	}

	cset, err := BuildContours(chf, 1.3, 24, TessWallEdges)
	if err != nil {
		t.Fatal(err)
	}
	if len(cset.Contours) != 1 {
		t.Fatalf("contour count = %d, want 1", len(cset.Contours))
	}
	c := &cset.Contours[0]
	if c.NVerts() < 4 {
		t.Fatalf("contour has %d verts, want >= 4", c.NVerts())
	}
	if c.Reg == 0 {
		t.Fatal("contour has null region")
	}
	if c.Area != WalkableArea {
		t.Fatalf("contour area = %d", c.Area)
	}
	// The simplified outline must stay within the raw one's bounds.
	for i := 0; i < c.NVerts(); i++ {
		x := c.Verts[i*4]
		z := c.Verts[i*4+2]
		if x < 0 || x > cset.Width || z < 0 || z > cset.Height {
			t.Fatalf("contour vertex (%d,%d) outside grid", x, z)
		}
	}
}

func buildPlanePolyMesh(t *testing.T) (*PolyMesh, *CompactHeightfield) {
	t.Helper()
	chf := buildPlaneCompact(t)
	BuildDistanceField(chf)
	if err := BuildRegions(chf, 0, 8, 20); err != nil {
		t.Fatal(err)
	}
	cset, err := BuildContours(chf, 1.3, 24, TessWallEdges)
	if err != nil {
		t.Fatal(err)
	}
	pmesh, err := BuildPolyMesh(cset, 6)
	if err != nil {
		t.Fatal(err)
	}
	return pmesh, chf
}

func TestBuildPolyMeshPlane(t *testing.T) {
	pmesh, _ := buildPlanePolyMesh(t)
	if pmesh.NPolys < 1 {
		t.Fatal("no polygons built")
	}
	if pmesh.NVerts < 4 {
		t.Fatalf("vert count = %d, want >= 4", pmesh.NVerts)
	}
	nvp := pmesh.NVP
	for i := 0; i < pmesh.NPolys; i++ {
		p := pmesh.Polys[i*nvp*2 : i*nvp*2+nvp]
		nv := 0
		for _, v := range p {
			if v == MeshNullIdx {
				break
			}
			if v >= pmesh.NVerts {
				t.Fatalf("poly %d references vertex %d of %d", i, v, pmesh.NVerts)
			}
			nv++
		}
		if nv < 3 {
			t.Fatalf("poly %d has %d verts", i, nv)
		}
		if pmesh.Areas[i] != WalkableArea {
			t.Fatalf("poly %d area = %d", i, pmesh.Areas[i])
		}
	}

	// Internal edges must be symmetric; the rest are boundary.
	adj := map[[2]int]int{}
	for i := 0; i < pmesh.NPolys; i++ {
		p := pmesh.Polys[i*nvp*2:]
		for j := 0; j < nvp; j++ {
			if p[j] == MeshNullIdx {
				break
			}
			if p[nvp+j] != MeshNullIdx && p[nvp+j]&0x8000 == 0 {
				adj[[2]int{i, j}] = p[nvp+j]
			}
		}
	}
	for k, other := range adj {
		found := false
		q := pmesh.Polys[other*nvp*2:]
		for j := 0; j < nvp; j++ {
			if q[j] == MeshNullIdx {
				break
			}
			if q[nvp+j] == k[0] {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("adjacency %v -> %d not symmetric", k, other)
		}
	}
}

func TestBuildPolyMeshDetailPlane(t *testing.T) {
	pmesh, chf := buildPlanePolyMesh(t)
	dmesh, err := BuildPolyMeshDetail(pmesh, chf, 3.0, 0.4)
	if err != nil {
		t.Fatal(err)
	}
	if dmesh.NMeshes() != pmesh.NPolys {
		t.Fatalf("submesh count = %d, want %d", dmesh.NMeshes(), pmesh.NPolys)
	}
	for i := 0; i < dmesh.NMeshes(); i++ {
		m := dmesh.Meshes[i*4 : i*4+4]
		nverts, ntris := m[1], m[3]
		if nverts < 3 || ntris < 1 {
			t.Fatalf("submesh %d: %d verts, %d tris", i, nverts, ntris)
		}
		for j := 0; j < ntris; j++ {
			tri := dmesh.Tris[(m[2]+j)*4 : (m[2]+j)*4+4]
			for k := 0; k < 3; k++ {
				if int(tri[k]) >= nverts {
					t.Fatalf("submesh %d tri %d references vertex %d of %d", i, j, tri[k], nverts)
				}
			}
		}
		// A flat plane's detail verts stay at the span height.
		base := m[0]
		for j := 0; j < nverts; j++ {
			y := dmesh.Verts[(base+j)*3+1]
			if y < 0 || y > 1 {
				t.Fatalf("detail vertex height %f out of range", y)
			}
		}
	}
}

func TestPolyMeshDeterminism(t *testing.T) {
	a, _ := buildPlanePolyMesh(t)
	b, _ := buildPlanePolyMesh(t)
	if a.NVerts != b.NVerts || a.NPolys != b.NPolys {
		t.Fatalf("mesh sizes differ: %d/%d vs %d/%d", a.NVerts, a.NPolys, b.NVerts, b.NPolys)
	}
	if !reflect.DeepEqual(a.Verts[:a.NVerts*3], b.Verts[:b.NVerts*3]) {
		t.Fatal("vertex data differs between identical builds")
	}
	if !reflect.DeepEqual(a.Polys[:a.NPolys*a.NVP*2], b.Polys[:b.NPolys*b.NVP*2]) {
		t.Fatal("polygon data differs between identical builds")
	}
}
