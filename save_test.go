package navbake

import (
	"bytes"
	"path/filepath"
	"testing"

	"navbake/detour"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	c, err := Build(flatQuad(t, 5), DefaultBuildOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}

	data, err := SaveNavMesh(c.NavMesh())
	if err != nil {
		t.Fatalf("SaveNavMesh: %v", err)
	}
	loaded, err := LoadNavMesh(data)
	if err != nil {
		t.Fatalf("LoadNavMesh: %v", err)
	}
	if got, want := loaded.PolyCount(), c.NavMesh().PolyCount(); got != want {
		t.Fatalf("loaded PolyCount = %d, want %d", got, want)
	}

	// The loaded mesh must serve queries like the original.
	var q detour.NavMeshQuery
	if err := q.Init(loaded, 2048); err != nil {
		t.Fatalf("query init: %v", err)
	}
	ref, _, err := q.FindNearestPoly([]float32{0, 0, 0}, []float32{2, 4, 2}, detour.NewQueryFilter())
	if err != nil {
		t.Fatal(err)
	}
	if ref == 0 {
		t.Fatal("no polygon near the origin after reload")
	}

	// A second save of the loaded mesh reproduces the bytes.
	data2, err := SaveNavMesh(loaded)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, data2) {
		t.Error("save/load/save is not byte-stable")
	}
}

func TestSaveLoadFile(t *testing.T) {
	c, err := Build(flatQuad(t, 5), DefaultBuildOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "flat.nav")
	if err := SaveNavMeshFile(path, c.NavMesh()); err != nil {
		t.Fatalf("SaveNavMeshFile: %v", err)
	}
	loaded, err := LoadNavMeshFile(path)
	if err != nil {
		t.Fatalf("LoadNavMeshFile: %v", err)
	}
	if loaded.PolyCount() != c.NavMesh().PolyCount() {
		t.Error("file round trip changed the polygon count")
	}
}

func TestLoadNavMeshRejectsGarbage(t *testing.T) {
	if _, err := LoadNavMesh(nil); err == nil {
		t.Error("accepted empty blob")
	}
	if _, err := LoadNavMesh([]byte("not a navmesh set at all")); err == nil {
		t.Error("accepted blob with bad magic")
	}
	c, err := Build(flatQuad(t, 5), DefaultBuildOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	data, err := SaveNavMesh(c.NavMesh())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := LoadNavMesh(data[:len(data)/2]); err == nil {
		t.Error("accepted truncated blob")
	}
}
