package mesh

import (
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestTriMeshBounds(t *testing.T) {
	m, err := NewTriMesh([]mgl32.Vec3{
		{-5, 0, -5},
		{5, 0, -5},
		{5, 1, 5},
	}, []uint32{0, 1, 2})
	if err != nil {
		t.Fatal(err)
	}
	if !m.HasSystemRAMCopy() {
		t.Fatal("in-memory mesh must have a system copy")
	}
	bmin, bmax := m.Bounds()
	if bmin != (mgl32.Vec3{-5, 0, -5}) || bmax != (mgl32.Vec3{5, 1, 5}) {
		t.Fatalf("bounds = %v %v", bmin, bmax)
	}
	if m.TriCount() != 1 {
		t.Fatalf("tri count = %d", m.TriCount())
	}
}

func TestNewTriMeshValidation(t *testing.T) {
	verts := []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 0, 1}}
	if _, err := NewTriMesh(verts, []uint32{0, 1}); err == nil {
		t.Error("accepted truncated index list")
	}
	if _, err := NewTriMesh(verts, []uint32{0, 1, 3}); err == nil {
		t.Error("accepted out-of-range index")
	}
}

func TestReadOBJ(t *testing.T) {
	const src = `
# quad
v -5 0 -5
v 5 0 -5
v 5 0 5
v -5 0 5
vn 0 1 0
f 1//1 2//1 3//1
f 1//1 3//1 4//1
`
	m, err := ReadOBJ(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Verts) != 4 {
		t.Fatalf("vert count = %d", len(m.Verts))
	}
	if m.TriCount() != 2 {
		t.Fatalf("tri count = %d", m.TriCount())
	}
	if m.Indices[0] != 0 || m.Indices[1] != 1 || m.Indices[2] != 2 {
		t.Fatalf("indices = %v", m.Indices[:3])
	}
}

func TestReadOBJQuadFaces(t *testing.T) {
	const src = `
v 0 0 0
v 1 0 0
v 1 0 1
v 0 0 1
f 1 2 3 4
`
	m, err := ReadOBJ(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if m.TriCount() != 2 {
		t.Fatalf("quad face should fan into 2 tris, got %d", m.TriCount())
	}
}

func TestReadOBJNegativeIndices(t *testing.T) {
	const src = `
v 0 0 0
v 1 0 0
v 0 0 1
f -3 -2 -1
`
	m, err := ReadOBJ(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if m.Indices[0] != 0 || m.Indices[2] != 2 {
		t.Fatalf("indices = %v", m.Indices)
	}
}

func TestReadOBJErrors(t *testing.T) {
	if _, err := ReadOBJ(strings.NewReader("v 0 0 0\n")); err == nil {
		t.Error("accepted OBJ with no faces")
	}
	if _, err := ReadOBJ(strings.NewReader("v 0 0 0\nf 1 2 9\n")); err == nil {
		t.Error("accepted face with out-of-range index")
	}
}
