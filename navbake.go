// Package navbake bakes a triangle mesh into a queryable navigation mesh.
// The build is a fixed sequence of geometry stages: voxelize, filter,
// compact, partition, contour, polygonize, detail, pack. Each stage's
// output feeds the next and intermediates are dropped as soon as the
// pipeline is done with them.
package navbake

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"navbake/detour"
	"navbake/mesh"
	"navbake/recast"
)

// BuildState tracks how far a component's build progressed.
type BuildState int

const (
	StateUninitialized BuildState = iota
	StateVoxelized
	StateFiltered
	StateCompact
	StatePartitioned
	StateContoured
	StatePolygonized
	StateDetailed
	StatePacked
	StateReady
	StateFailed
	// StateNotGenerated marks the soft path: the component exists but
	// carries no NavMesh, either because the vertex cap was exceeded or
	// the mesh produced no walkable polygons.
	StateNotGenerated
)

var stateNames = [...]string{
	"Uninitialized", "Voxelized", "Filtered", "Compact", "Partitioned",
	"Contoured", "Polygonized", "Detailed", "Packed", "Ready", "Failed",
	"NotGenerated",
}

func (s BuildState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("BuildState(%d)", int(s))
	}
	return stateNames[s]
}

// queryNodePoolSize is the node-pool capacity of the component's query.
const queryNodePoolSize = 2048

// NavMeshComponent owns a baked navigation mesh and its query context.
// It is not safe for concurrent use; once Ready, the mesh itself is
// read-only and queries go through Query.
type NavMeshComponent struct {
	state   BuildState
	options BuildOptions
	log     *zap.Logger

	navMesh *detour.NavMesh
	query   *detour.NavMeshQuery
}

// State reports the terminal state of the build: Ready, Failed, or
// NotGenerated.
func (c *NavMeshComponent) State() BuildState { return c.state }

// NavMesh returns the baked mesh, or nil on the NotGenerated path.
func (c *NavMeshComponent) NavMesh() *detour.NavMesh { return c.navMesh }

// Query returns the query context bound to the mesh, or nil on the
// NotGenerated path.
func (c *NavMeshComponent) Query() *detour.NavMeshQuery { return c.query }

// Options returns the options the component was built with.
func (c *NavMeshComponent) Options() BuildOptions { return c.options }

// PolyCount reports the number of polygons across the baked mesh, 0 when
// no mesh was generated.
func (c *NavMeshComponent) PolyCount() int {
	if c.navMesh == nil {
		return 0
	}
	return c.navMesh.PolyCount()
}

// Destroy releases the NavMesh, the query context and the nav data they
// hold. The component is unusable afterwards.
func (c *NavMeshComponent) Destroy() {
	c.navMesh = nil
	c.query = nil
	c.state = StateUninitialized
}

// deriveConfig converts the world-unit options and mesh bounds into the
// voxel-space parameter record the pipeline stages consume.
func deriveConfig(o *BuildOptions, bmin, bmax []float32) recast.Config {
	cfg := recast.Config{
		CellSize:               o.CellSize,
		CellHeight:             o.CellHeight,
		WalkableSlopeAngle:     o.Agent.MaxSlope,
		WalkableHeight:         int(math.Ceil(float64(o.Agent.Height / o.CellHeight))),
		WalkableClimb:          int(math.Ceil(float64(o.Agent.MaxClimb / o.CellHeight))),
		WalkableRadius:         int(math.Ceil(float64(o.Agent.Radius / o.CellSize))),
		MaxEdgeLen:             int(o.MaxEdgeLen / o.CellSize),
		MaxSimplificationError: o.MaxSimplificationError,
		MinRegionArea:          int(o.RegionMinDimension * o.RegionMinDimension),
		MergeRegionArea:        int(o.RegionMergeDimension * o.RegionMergeDimension),
		MaxVertsPerPoly:        o.MaxVertsPerPoly,
		DetailSampleMaxError:   o.CellHeight * o.DetailSampleMaxError,
	}
	if o.DetailSampleDist >= 0.9 {
		cfg.DetailSampleDist = o.CellSize * o.DetailSampleDist
	}
	copy(cfg.BMin[:], bmin)
	copy(cfg.BMax[:], bmax)
	cfg.Width, cfg.Height = recast.CalcGridSize(bmin, bmax, o.CellSize)
	return cfg
}

// Build bakes the asset into a NavMeshComponent. A nil logger disables
// logging. The returned error is always a *BuildError; the soft paths
// (vertex cap exceeded, no walkable polygons) return a component in
// state NotGenerated and a nil error.
func Build(asset mesh.Asset, options BuildOptions, log *zap.Logger) (*NavMeshComponent, error) {
	if log == nil {
		log = zap.NewNop()
	}
	c := &NavMeshComponent{state: StateUninitialized, options: options, log: log}

	if err := options.Validate(); err != nil {
		c.state = StateFailed
		return nil, buildErr(StageInput, KindPrecondition, err)
	}
	if !asset.HasSystemRAMCopy() {
		c.state = StateFailed
		return nil, buildErr(StageInput, KindPrecondition,
			fmt.Errorf("mesh has no system RAM copy"))
	}

	srcVerts, srcIndices := asset.SystemCopy()
	if len(srcIndices) == 0 {
		c.state = StateFailed
		return nil, buildErr(StageInput, KindPrecondition, fmt.Errorf("mesh has no triangles"))
	}
	verts := make([]float32, 0, len(srcVerts)*3)
	for _, v := range srcVerts {
		verts = append(verts, v[0], v[1], v[2])
	}
	tris := make([]int32, len(srcIndices))
	for i, idx := range srcIndices {
		tris[i] = int32(idx)
	}
	amin, amax := asset.Bounds()
	bmin := []float32{amin[0], amin[1], amin[2]}
	bmax := []float32{amax[0], amax[1], amax[2]}

	cfg := deriveConfig(&options, bmin, bmax)
	log.Debug("baking navmesh",
		zap.Int("gridWidth", cfg.Width), zap.Int("gridHeight", cfg.Height),
		zap.Int("verts", len(srcVerts)), zap.Int("tris", len(tris)/3),
		zap.Stringer("partition", options.Partition))

	// Voxelize.
	hf, err := recast.NewHeightfield(cfg.Width, cfg.Height, bmin, bmax, cfg.CellSize, cfg.CellHeight)
	if err != nil {
		c.state = StateFailed
		return nil, buildErr(StageVoxelize, KindAllocation, err)
	}
	areas := make([]uint8, len(tris)/3)
	recast.MarkWalkableTriangles(cfg.WalkableSlopeAngle, verts, tris, areas)
	if err := recast.RasterizeTriangles(verts, tris, areas, hf, cfg.WalkableClimb); err != nil {
		c.state = StateFailed
		return nil, buildErr(StageVoxelize, KindStage, err)
	}
	c.state = StateVoxelized

	// Filter out spans an agent cannot stand on.
	recast.FilterLowHangingWalkableObstacles(cfg.WalkableClimb, hf)
	recast.FilterLedgeSpans(cfg.WalkableHeight, cfg.WalkableClimb, hf)
	recast.FilterWalkableLowHeightSpans(cfg.WalkableHeight, hf)
	c.state = StateFiltered

	// Compact and erode by the agent radius.
	chf, err := recast.BuildCompactHeightfield(cfg.WalkableHeight, cfg.WalkableClimb, hf)
	if err != nil {
		c.state = StateFailed
		return nil, buildErr(StageCompact, KindStage, err)
	}
	hf = nil
	if err := recast.ErodeWalkableArea(cfg.WalkableRadius, chf); err != nil {
		c.state = StateFailed
		return nil, buildErr(StageCompact, KindStage, err)
	}
	c.state = StateCompact

	// Partition the walkable surface into regions.
	switch options.Partition {
	case PartitionWatershed:
		recast.BuildDistanceField(chf)
		err = recast.BuildRegions(chf, cfg.BorderSize, cfg.MinRegionArea, cfg.MergeRegionArea)
	case PartitionMonotone:
		err = recast.BuildRegionsMonotone(chf, cfg.BorderSize, cfg.MinRegionArea, cfg.MergeRegionArea)
	case PartitionLayer:
		err = recast.BuildLayerRegions(chf, cfg.BorderSize, cfg.MinRegionArea)
	}
	if err != nil {
		c.state = StateFailed
		return nil, buildErr(StagePartition, KindStage, err)
	}
	c.state = StatePartitioned

	cset, err := recast.BuildContours(chf, cfg.MaxSimplificationError, cfg.MaxEdgeLen, recast.TessWallEdges)
	if err != nil {
		c.state = StateFailed
		return nil, buildErr(StageContour, KindStage, err)
	}
	c.state = StateContoured

	pmesh, err := recast.BuildPolyMesh(cset, cfg.MaxVertsPerPoly)
	if err != nil {
		c.state = StateFailed
		return nil, buildErr(StagePolyMesh, KindStage, err)
	}
	c.state = StatePolygonized

	dmesh, err := recast.BuildPolyMeshDetail(pmesh, chf, cfg.DetailSampleDist, cfg.DetailSampleMaxError)
	if err != nil {
		c.state = StateFailed
		return nil, buildErr(StageDetail, KindStage, err)
	}
	chf = nil
	cset = nil
	c.state = StateDetailed

	// Vertex-cap guard: the tile format stores at most
	// detour.VertsPerPolygon corners per polygon.
	if options.MaxVertsPerPoly > detour.VertsPerPolygon {
		log.Warn("maxVertsPerPoly exceeds the nav-data format ceiling, navmesh not generated",
			zap.Int("maxVertsPerPoly", options.MaxVertsPerPoly),
			zap.Int("ceiling", detour.VertsPerPolygon))
		c.state = StateNotGenerated
		return c, nil
	}
	if pmesh.NPolys == 0 {
		log.Warn("no walkable polygons produced, navmesh not generated")
		c.state = StateNotGenerated
		return c, nil
	}

	// Mark every walkable polygon as traversable before packing;
	// downstream filters match on these flags.
	for i := 0; i < pmesh.NPolys; i++ {
		if pmesh.Areas[i] == recast.WalkableArea {
			pmesh.Flags[i] = 1
		}
	}

	params := &detour.NavMeshCreateParams{
		Verts:            pmesh.Verts,
		VertCount:        pmesh.NVerts,
		Polys:            pmesh.Polys,
		PolyFlags:        pmesh.Flags,
		PolyAreas:        pmesh.Areas,
		PolyCount:        pmesh.NPolys,
		Nvp:              pmesh.NVP,
		DetailMeshes:     dmesh.Meshes,
		DetailVerts:      dmesh.Verts,
		DetailVertsCount: len(dmesh.Verts) / 3,
		DetailTris:       dmesh.Tris,
		DetailTriCount:   len(dmesh.Tris) / 4,
		BMin:             pmesh.BMin,
		BMax:             pmesh.BMax,
		WalkableHeight:   options.Agent.Height,
		WalkableRadius:   options.Agent.Radius,
		WalkableClimb:    options.Agent.MaxClimb,
		CellSize:         options.CellSize,
		CellHeight:       options.CellHeight,
		BuildBvTree:      true,
	}
	navData, err := detour.CreateNavMeshData(params)
	if err != nil {
		c.state = StateFailed
		return nil, buildErr(StagePack, KindPack, err)
	}
	c.state = StatePacked

	navMesh, err := detour.NewSingleTileNavMesh(navData, detour.TileFreeData)
	if err != nil {
		c.state = StateFailed
		return nil, buildErr(StagePack, KindPack, err)
	}
	query := &detour.NavMeshQuery{}
	if err := query.Init(navMesh, queryNodePoolSize); err != nil {
		c.state = StateFailed
		return nil, buildErr(StagePack, KindPack, err)
	}

	c.navMesh = navMesh
	c.query = query
	c.state = StateReady
	log.Info("navmesh baked",
		zap.Int("polys", pmesh.NPolys),
		zap.Int("verts", pmesh.NVerts),
		zap.Int("navDataBytes", len(navData)))
	return c, nil
}

// MustBuild is Build with the fatal policy: any build error terminates the
// process through the logger.
func MustBuild(asset mesh.Asset, options BuildOptions, log *zap.Logger) *NavMeshComponent {
	if log == nil {
		log = zap.NewNop()
	}
	c, err := Build(asset, options, log)
	if err != nil {
		log.Fatal("navmesh build failed", zap.Error(err))
	}
	return c
}
