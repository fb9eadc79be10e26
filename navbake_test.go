package navbake

import (
	"bytes"
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"navbake/detour"
	"navbake/mesh"
)

// flatQuad returns a horizontal square spanning (-half..half) in x and z
// at y=0, split into two triangles with upward normals.
func flatQuad(t *testing.T, half float32) *mesh.TriMesh {
	t.Helper()
	m, err := mesh.NewTriMesh(
		[]mgl32.Vec3{
			{-half, 0, -half},
			{-half, 0, half},
			{half, 0, half},
			{half, 0, -half},
		},
		[]uint32{0, 1, 2, 0, 2, 3},
	)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

// stairs returns six horizontal treads, each 4 units deep and 6 wide,
// ascending in y by rise per step. There are no riser faces; steps meet
// only across the height gap.
func stairs(t *testing.T, rise float32) *mesh.TriMesh {
	t.Helper()
	var verts []mgl32.Vec3
	var indices []uint32
	for i := 0; i < 6; i++ {
		x0 := float32(i) * 4
		x1 := x0 + 4
		y := float32(i) * rise
		base := uint32(len(verts))
		verts = append(verts,
			mgl32.Vec3{x0, y, 0},
			mgl32.Vec3{x0, y, 6},
			mgl32.Vec3{x1, y, 6},
			mgl32.Vec3{x1, y, 0},
		)
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}
	m, err := mesh.NewTriMesh(verts, indices)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

// steepRamp returns a single 60 degree ramp, steeper than the default
// 45 degree walkable slope.
func steepRamp(t *testing.T) *mesh.TriMesh {
	t.Helper()
	m, err := mesh.NewTriMesh(
		[]mgl32.Vec3{
			{0, 0, 0},
			{0, 0, 6},
			{3, 5.2, 6},
			{3, 5.2, 0},
		},
		[]uint32{0, 1, 2, 0, 2, 3},
	)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

type gpuOnlyAsset struct{}

func (gpuOnlyAsset) HasSystemRAMCopy() bool               { return false }
func (gpuOnlyAsset) SystemCopy() ([]mgl32.Vec3, []uint32) { return nil, nil }
func (gpuOnlyAsset) Bounds() (mgl32.Vec3, mgl32.Vec3)     { return mgl32.Vec3{}, mgl32.Vec3{} }

func nearestRef(t *testing.T, c *NavMeshComponent, pos, halfExtents []float32) detour.PolyRef {
	t.Helper()
	ref, _, err := c.Query().FindNearestPoly(pos, halfExtents, detour.NewQueryFilter())
	if err != nil {
		t.Fatalf("FindNearestPoly(%v): %v", pos, err)
	}
	return ref
}

// reachable walks the intra-tile link graph from one polygon to another.
func reachable(nav *detour.NavMesh, from, to detour.PolyRef) bool {
	if from == 0 || to == 0 {
		return false
	}
	tile := nav.GetTile(0)
	visited := map[detour.PolyRef]bool{from: true}
	stack := []detour.PolyRef{from}
	for len(stack) > 0 {
		ref := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if ref == to {
			return true
		}
		_, poly, err := nav.GetTileAndPolyByRef(ref)
		if err != nil {
			return false
		}
		for l := poly.FirstLink; l != detour.NullLink; l = tile.Links[l].Next {
			next := tile.Links[l].Ref
			if next != 0 && !visited[next] {
				visited[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}

func TestBuildFlatQuad(t *testing.T) {
	c, err := Build(flatQuad(t, 5), DefaultBuildOptions(), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if c.State() != StateReady {
		t.Fatalf("state = %v, want Ready", c.State())
	}
	if c.NavMesh() == nil || c.Query() == nil {
		t.Fatal("ready component missing navmesh or query")
	}
	if c.PolyCount() < 1 {
		t.Fatalf("PolyCount = %d, want >= 1", c.PolyCount())
	}

	ref, pt, err := c.Query().FindNearestPoly([]float32{0, 0, 0}, []float32{2, 4, 2}, detour.NewQueryFilter())
	if err != nil {
		t.Fatalf("FindNearestPoly: %v", err)
	}
	if ref == 0 {
		t.Fatal("no polygon near the origin")
	}
	if pt[1] < -0.5 || pt[1] > 0.5 {
		t.Errorf("nearest point y = %g, want near 0", pt[1])
	}
}

func TestBuildStairsClimb(t *testing.T) {
	bottom := []float32{2, 0, 3}
	top := []float32{22, 3.5, 3}
	ext := []float32{1.4, 2, 1.4}

	opts := DefaultBuildOptions()
	opts.Agent.MaxClimb = 0.9
	c, err := Build(stairs(t, 0.7), opts, nil)
	if err != nil {
		t.Fatalf("Build(maxClimb=0.9): %v", err)
	}
	if c.State() != StateReady {
		t.Fatalf("state = %v, want Ready", c.State())
	}
	if !reachable(c.NavMesh(), nearestRef(t, c, bottom, ext), nearestRef(t, c, top, ext)) {
		t.Error("top step not reachable from bottom with maxClimb=0.9")
	}

	opts.Agent.MaxClimb = 0.4
	c2, err := Build(stairs(t, 0.7), opts, nil)
	if err != nil {
		t.Fatalf("Build(maxClimb=0.4): %v", err)
	}
	if c2.State() != StateReady {
		t.Fatalf("state = %v, want Ready", c2.State())
	}
	if reachable(c2.NavMesh(), nearestRef(t, c2, bottom, ext), nearestRef(t, c2, top, ext)) {
		t.Error("top step reachable from bottom with maxClimb=0.4")
	}
}

func TestBuildSteepRampSoftEmpty(t *testing.T) {
	c, err := Build(steepRamp(t), DefaultBuildOptions(), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if c.State() != StateNotGenerated {
		t.Fatalf("state = %v, want NotGenerated", c.State())
	}
	if c.NavMesh() != nil || c.Query() != nil {
		t.Error("soft-empty component should carry no navmesh or query")
	}
	if c.PolyCount() != 0 {
		t.Errorf("PolyCount = %d, want 0", c.PolyCount())
	}
}

// tileBoundsXZ returns the xz bounding box over a tile's polygon vertices.
func tileBoundsXZ(nav *detour.NavMesh) (minX, minZ, maxX, maxZ float32) {
	tile := nav.GetTile(0)
	minX, minZ = tile.Verts[0], tile.Verts[2]
	maxX, maxZ = minX, minZ
	for i := 0; i < len(tile.Verts); i += 3 {
		minX = min(minX, tile.Verts[i])
		maxX = max(maxX, tile.Verts[i])
		minZ = min(minZ, tile.Verts[i+2])
		maxZ = max(maxZ, tile.Verts[i+2])
	}
	return minX, minZ, maxX, maxZ
}

func TestPartitionEquivalence(t *testing.T) {
	build := func(p PartitionMethod) *NavMeshComponent {
		opts := DefaultBuildOptions()
		opts.Partition = p
		c, err := Build(flatQuad(t, 5), opts, nil)
		if err != nil {
			t.Fatalf("Build(%v): %v", p, err)
		}
		if c.State() != StateReady {
			t.Fatalf("Build(%v) state = %v, want Ready", p, c.State())
		}
		return c
	}
	ws := build(PartitionWatershed)
	mono := build(PartitionMonotone)

	tol := DefaultBuildOptions().CellSize + 1e-5
	wMinX, wMinZ, wMaxX, wMaxZ := tileBoundsXZ(ws.NavMesh())
	mMinX, mMinZ, mMaxX, mMaxZ := tileBoundsXZ(mono.NavMesh())
	for _, d := range []float32{wMinX - mMinX, wMinZ - mMinZ, wMaxX - mMaxX, wMaxZ - mMaxZ} {
		if d < -tol || d > tol {
			t.Fatalf("walkable bounds differ beyond %g: watershed (%g,%g)-(%g,%g) vs monotone (%g,%g)-(%g,%g)",
				tol, wMinX, wMinZ, wMaxX, wMaxZ, mMinX, mMinZ, mMaxX, mMaxZ)
		}
	}
}

func TestVertexCapSoftPath(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	log := zap.New(core)

	opts := DefaultBuildOptions()
	opts.MaxVertsPerPoly = detour.VertsPerPolygon + 1
	c, err := Build(flatQuad(t, 5), opts, log)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if c.State() != StateNotGenerated {
		t.Fatalf("state = %v, want NotGenerated", c.State())
	}
	if c.NavMesh() != nil {
		t.Error("vertex-cap path should not produce a navmesh")
	}
	if n := logs.FilterLevelExact(zap.WarnLevel).Len(); n != 1 {
		t.Errorf("got %d warnings, want exactly 1", n)
	}
}

func TestMissingSystemCopy(t *testing.T) {
	c, err := Build(gpuOnlyAsset{}, DefaultBuildOptions(), nil)
	if err == nil {
		t.Fatal("Build accepted a mesh without a system RAM copy")
	}
	if c != nil {
		t.Error("failed build should not return a component")
	}
	var be *BuildError
	if !errors.As(err, &be) {
		t.Fatalf("error %T is not a *BuildError", err)
	}
	if be.Kind != KindPrecondition || be.Stage != StageInput {
		t.Errorf("got kind=%v stage=%v, want precondition/input", be.Kind, be.Stage)
	}
}

func TestBuildDeterminism(t *testing.T) {
	bake := func() []byte {
		c, err := Build(flatQuad(t, 5), DefaultBuildOptions(), nil)
		if err != nil {
			t.Fatal(err)
		}
		data, err := SaveNavMesh(c.NavMesh())
		if err != nil {
			t.Fatal(err)
		}
		return data
	}
	if !bytes.Equal(bake(), bake()) {
		t.Error("two builds of the same input produced different nav data")
	}
}

func TestErosionMonotonic(t *testing.T) {
	area := func(radius float32) float32 {
		opts := DefaultBuildOptions()
		opts.Agent.Radius = radius
		c, err := Build(flatQuad(t, 5), opts, nil)
		if err != nil {
			t.Fatalf("Build(radius=%g): %v", radius, err)
		}
		minX, minZ, maxX, maxZ := tileBoundsXZ(c.NavMesh())
		return (maxX - minX) * (maxZ - minZ)
	}
	small := area(0.6)
	large := area(1.2)
	if large > small+1e-3 {
		t.Errorf("walkable area grew with agent radius: %g -> %g", small, large)
	}
}

// rampWithApron returns a flat apron (x 0..6) joined to a ramp (x 6..10)
// rising at roughly 35 degrees, both 6 units wide.
func rampWithApron(t *testing.T) *mesh.TriMesh {
	t.Helper()
	m, err := mesh.NewTriMesh(
		[]mgl32.Vec3{
			{0, 0, 0},
			{0, 0, 6},
			{6, 0, 6},
			{6, 0, 0},
			{10, 2.8, 6},
			{10, 2.8, 0},
		},
		[]uint32{0, 1, 2, 0, 2, 3, 3, 2, 4, 3, 4, 5},
	)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestDeriveConfig(t *testing.T) {
	opts := DefaultBuildOptions()
	bmin := []float32{-5, 0, -5}
	bmax := []float32{5, 0, 5}
	cfg := deriveConfig(&opts, bmin, bmax)

	if cfg.WalkableHeight != 10 {
		t.Errorf("WalkableHeight = %d, want 10", cfg.WalkableHeight)
	}
	if cfg.WalkableClimb != 5 {
		t.Errorf("WalkableClimb = %d, want 5", cfg.WalkableClimb)
	}
	if cfg.WalkableRadius != 2 {
		t.Errorf("WalkableRadius = %d, want 2", cfg.WalkableRadius)
	}
	if cfg.MinRegionArea != 64 || cfg.MergeRegionArea != 400 {
		t.Errorf("region areas = %d/%d, want 64/400", cfg.MinRegionArea, cfg.MergeRegionArea)
	}
	if cfg.Width != 33 || cfg.Height != 33 {
		t.Errorf("grid = %dx%d, want 33x33", cfg.Width, cfg.Height)
	}
	if cfg.DetailSampleDist != opts.CellSize*opts.DetailSampleDist {
		t.Errorf("DetailSampleDist = %g", cfg.DetailSampleDist)
	}

	// Sub-cell sampling distances disable detail sampling entirely.
	opts.DetailSampleDist = 0.5
	if cfg := deriveConfig(&opts, bmin, bmax); cfg.DetailSampleDist != 0 {
		t.Errorf("DetailSampleDist = %g, want 0 for sub-cell input", cfg.DetailSampleDist)
	}
}

func TestGridResolutionMonotonic(t *testing.T) {
	bmin := []float32{-5, 0, -5}
	bmax := []float32{5, 0, 5}

	opts := DefaultBuildOptions()
	fine := deriveConfig(&opts, bmin, bmax)
	opts.CellSize = 0.7
	coarse := deriveConfig(&opts, bmin, bmax)

	if coarse.Width*coarse.Height >= fine.Width*fine.Height {
		t.Errorf("grid did not shrink with larger cells: %dx%d vs %dx%d",
			coarse.Width, coarse.Height, fine.Width, fine.Height)
	}
}

func TestWalkableSlopeMonotonic(t *testing.T) {
	polyCount := func(maxSlope float32) int {
		opts := DefaultBuildOptions()
		opts.Agent.MaxSlope = maxSlope
		c, err := Build(rampWithApron(t), opts, nil)
		if err != nil {
			t.Fatalf("Build(maxSlope=%g): %v", maxSlope, err)
		}
		if c.State() != StateReady {
			t.Fatalf("Build(maxSlope=%g) state = %v, want Ready", maxSlope, c.State())
		}
		return c.PolyCount()
	}

	// At 30 degrees only the apron is walkable; at 60 the ramp joins it.
	strict := polyCount(30)
	loose := polyCount(60)
	if strict < 1 {
		t.Fatalf("no polygons from the flat apron at maxSlope=30")
	}
	if loose < strict {
		t.Errorf("raising maxSlope removed polygons: %d -> %d", strict, loose)
	}
}

func TestDestroy(t *testing.T) {
	c, err := Build(flatQuad(t, 5), DefaultBuildOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	c.Destroy()
	if c.NavMesh() != nil || c.Query() != nil {
		t.Error("Destroy left navmesh or query attached")
	}
	if c.State() != StateUninitialized {
		t.Errorf("state after Destroy = %v, want Uninitialized", c.State())
	}
}
