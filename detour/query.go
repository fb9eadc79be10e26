package detour

import (
	"fmt"
	"math"

	"navbake/common"
)

// QueryFilter selects which polygons a query may use and how traversal
// over each area is costed.
type QueryFilter struct {
	AreaCost     [maxAreas]float32
	IncludeFlags uint16
	ExcludeFlags uint16
}

// NewQueryFilter accepts every flagged polygon at unit cost.
func NewQueryFilter() *QueryFilter {
	f := &QueryFilter{
		IncludeFlags: 0xffff,
		ExcludeFlags: 0,
	}
	for i := range f.AreaCost {
		f.AreaCost[i] = 1
	}
	return f
}

// PassFilter reports whether the polygon is usable under this filter.
func (f *QueryFilter) PassFilter(poly *Poly) bool {
	return poly.Flags&f.IncludeFlags != 0 && poly.Flags&f.ExcludeFlags == 0
}

// NavMeshQuery answers placement queries against a NavMesh. Allocate it,
// then Init it with the mesh; one query per goroutine.
type NavMeshQuery struct {
	nav      *NavMesh
	nodePool *NodePool
	openList *NodeQueue
}

// Init binds the query to a mesh and sizes the search node pool.
func (q *NavMeshQuery) Init(nav *NavMesh, maxNodes int) error {
	if nav == nil {
		return fmt.Errorf("detour: query needs a navmesh")
	}
	if maxNodes <= 0 || maxNodes > 1<<nodeParentBits-1 {
		return fmt.Errorf("detour: node pool size %d out of range", maxNodes)
	}
	q.nav = nav
	if q.nodePool == nil || q.nodePool.MaxNodes() < maxNodes {
		q.nodePool = NewNodePool(maxNodes, int(common.NextPow2(uint32(maxNodes/4))))
	} else {
		q.nodePool.Clear()
	}
	if q.openList == nil {
		q.openList = NewNodeQueue(maxNodes)
	} else {
		q.openList.Clear()
	}
	return nil
}

// AttachedNavMesh returns the mesh the query was initialized with.
func (q *NavMeshQuery) AttachedNavMesh() *NavMesh { return q.nav }

// NodePoolCapacity reports the search node capacity set at Init.
func (q *NavMeshQuery) NodePoolCapacity() int {
	if q.nodePool == nil {
		return 0
	}
	return q.nodePool.MaxNodes()
}

func overlapQuantBounds(amin, amax, bmin, bmax [3]uint16) bool {
	return amin[0] <= bmax[0] && amax[0] >= bmin[0] &&
		amin[1] <= bmax[1] && amax[1] >= bmin[1] &&
		amin[2] <= bmax[2] && amax[2] >= bmin[2]
}

func overlapBounds(amin, amax, bmin, bmax []float32) bool {
	return amin[0] <= bmax[0] && amax[0] >= bmin[0] &&
		amin[1] <= bmax[1] && amax[1] >= bmin[1] &&
		amin[2] <= bmax[2] && amax[2] >= bmin[2]
}

// pointInPolygon tests the xz projection with the y axis ignored.
func pointInPolygon(pt []float32, verts []float32, nverts int) bool {
	c := false
	for i, j := 0, nverts-1; i < nverts; j, i = i, i+1 {
		vi := verts[i*3:]
		vj := verts[j*3:]
		if (vi[2] > pt[2]) != (vj[2] > pt[2]) &&
			pt[0] < (vj[0]-vi[0])*(pt[2]-vi[2])/(vj[2]-vi[2])+vi[0] {
			c = !c
		}
	}
	return c
}

func distancePtSegSqr2D(pt, p, q []float32) (dist, t float32) {
	pqx := q[0] - p[0]
	pqz := q[2] - p[2]
	dx := pt[0] - p[0]
	dz := pt[2] - p[2]
	d := pqx*pqx + pqz*pqz
	t = pqx*dx + pqz*dz
	if d > 0 {
		t /= d
	}
	t = common.Clamp(t, 0, 1)
	dx = p[0] + t*pqx - pt[0]
	dz = p[2] + t*pqz - pt[2]
	return dx*dx + dz*dz, t
}

// closestHeightPointTriangle returns the triangle height under p, if p's
// xz projection lies within the triangle.
func closestHeightPointTriangle(p, a, b, c []float32) (float32, bool) {
	const eps = 1e-6
	v0 := [3]float32{c[0] - a[0], c[1] - a[1], c[2] - a[2]}
	v1 := [3]float32{b[0] - a[0], b[1] - a[1], b[2] - a[2]}
	v2 := [3]float32{p[0] - a[0], p[1] - a[1], p[2] - a[2]}

	dot00 := common.Vdot2D(v0[:], v0[:])
	dot01 := common.Vdot2D(v0[:], v1[:])
	dot02 := common.Vdot2D(v0[:], v2[:])
	dot11 := common.Vdot2D(v1[:], v1[:])
	dot12 := common.Vdot2D(v1[:], v2[:])

	denom := dot00*dot11 - dot01*dot01
	if float32(math.Abs(float64(denom))) < eps {
		return 0, false
	}
	u := dot11*dot02 - dot01*dot12
	v := dot00*dot12 - dot01*dot02
	if denom < 0 {
		denom, u, v = -denom, -u, -v
	}
	// Inside the triangle when barycentric coordinates are in range.
	if u >= 0 && v >= 0 && u+v <= denom {
		return a[1] + (v0[1]*u+v1[1]*v)/denom, true
	}
	return 0, false
}

// polyWorldVerts copies the polygon corners into out, returning the count.
func polyWorldVerts(tile *MeshTile, poly *Poly, out []float32) int {
	nv := int(poly.VertCount)
	for i := 0; i < nv; i++ {
		common.Vcopy(out[i*3:i*3+3], tile.Verts[int(poly.Verts[i])*3:])
	}
	return nv
}

// detailTriVert resolves detail triangle vertex index j: indices below the
// polygon's corner count alias the polygon corners.
func detailTriVert(tile *MeshTile, poly *Poly, pd *PolyDetail, j int) []float32 {
	if j < int(poly.VertCount) {
		return tile.Verts[int(poly.Verts[j])*3:]
	}
	return tile.DetailVerts[(int(pd.VertBase)+j-int(poly.VertCount))*3:]
}

// GetPolyHeight returns the detail mesh height at pos, which must be
// within the polygon's xz bounds.
func (q *NavMeshQuery) GetPolyHeight(ref PolyRef, pos []float32) (float32, error) {
	tile, poly, err := q.nav.GetTileAndPolyByRef(ref)
	if err != nil {
		return 0, err
	}
	if poly.Type() == polyTypeOffMeshConnection {
		return 0, fmt.Errorf("detour: no height on off-mesh connection")
	}

	var verts [VertsPerPolygon * 3]float32
	nv := polyWorldVerts(tile, poly, verts[:])
	if !pointInPolygon(pos, verts[:], nv) {
		return 0, fmt.Errorf("detour: position outside polygon")
	}

	_, _, polyIdx := q.nav.DecodePolyID(ref)
	pd := &tile.DetailMeshes[polyIdx]
	for j := 0; j < int(pd.TriCount); j++ {
		t := tile.DetailTris[(int(pd.TriBase)+j)*4:]
		va := detailTriVert(tile, poly, pd, int(t[0]))
		vb := detailTriVert(tile, poly, pd, int(t[1]))
		vc := detailTriVert(tile, poly, pd, int(t[2]))
		if h, ok := closestHeightPointTriangle(pos, va, vb, vc); ok {
			return h, nil
		}
	}

	// On rare occasions the point is within the polygon but outside every
	// detail triangle due to simplification; fall back to the nearest
	// detail edge height.
	best := float32(math.MaxFloat32)
	height := float32(0)
	for j := 0; j < int(pd.TriCount); j++ {
		t := tile.DetailTris[(int(pd.TriBase)+j)*4:]
		for k := 0; k < 3; k++ {
			va := detailTriVert(tile, poly, pd, int(t[k]))
			vb := detailTriVert(tile, poly, pd, int(t[(k+1)%3]))
			d, tt := distancePtSegSqr2D(pos, va, vb)
			if d < best {
				best = d
				height = va[1] + (vb[1]-va[1])*tt
			}
		}
	}
	return height, nil
}

// ClosestPointOnPoly clamps pos to the polygon surface. posOverPoly is
// true when pos projects inside the polygon; the returned point then
// carries the detail mesh height.
func (q *NavMeshQuery) ClosestPointOnPoly(ref PolyRef, pos, closest []float32) (posOverPoly bool, err error) {
	tile, poly, err := q.nav.GetTileAndPolyByRef(ref)
	if err != nil {
		return false, err
	}

	var verts [VertsPerPolygon * 3]float32
	nv := polyWorldVerts(tile, poly, verts[:])

	common.Vcopy(closest, pos)
	if pointInPolygon(pos, verts[:], nv) {
		if h, herr := q.GetPolyHeight(ref, pos); herr == nil {
			closest[1] = h
		}
		return true, nil
	}

	// Outside: clamp to the nearest boundary edge.
	best := float32(math.MaxFloat32)
	for i, j := 0, nv-1; i < nv; j, i = i, i+1 {
		d, t := distancePtSegSqr2D(pos, verts[j*3:], verts[i*3:])
		if d < best {
			best = d
			common.Vlerp(closest, verts[j*3:j*3+3], verts[i*3:i*3+3], t)
		}
	}
	return false, nil
}

// ClosestPointOnPolyBoundary is the cheap variant: it never samples the
// detail mesh, so the height is only as accurate as the polygon corners.
func (q *NavMeshQuery) ClosestPointOnPolyBoundary(ref PolyRef, pos, closest []float32) error {
	tile, poly, err := q.nav.GetTileAndPolyByRef(ref)
	if err != nil {
		return err
	}

	var verts [VertsPerPolygon * 3]float32
	nv := polyWorldVerts(tile, poly, verts[:])

	if pointInPolygon(pos, verts[:], nv) {
		common.Vcopy(closest, pos)
		return nil
	}
	best := float32(math.MaxFloat32)
	for i, j := 0, nv-1; i < nv; j, i = i, i+1 {
		d, t := distancePtSegSqr2D(pos, verts[j*3:], verts[i*3:])
		if d < best {
			best = d
			common.Vlerp(closest, verts[j*3:j*3+3], verts[i*3:i*3+3], t)
		}
	}
	return nil
}

// queryPolygonsInTile collects polygons whose bounds overlap the query
// box, walking the BV tree when the tile carries one.
func (q *NavMeshQuery) queryPolygonsInTile(tile *MeshTile, qmin, qmax []float32, filter *QueryFilter, out []PolyRef) []PolyRef {
	base := q.nav.GetPolyRefBase(tile)

	if len(tile.BVTree) > 0 {
		hdr := tile.Header
		// Clamp and quantize the query box into tree space.
		qfac := hdr.BvQuantFactor
		minx := common.Clamp(qmin[0], hdr.BMin[0], hdr.BMax[0]) - hdr.BMin[0]
		miny := common.Clamp(qmin[1], hdr.BMin[1], hdr.BMax[1]) - hdr.BMin[1]
		minz := common.Clamp(qmin[2], hdr.BMin[2], hdr.BMax[2]) - hdr.BMin[2]
		maxx := common.Clamp(qmax[0], hdr.BMin[0], hdr.BMax[0]) - hdr.BMin[0]
		maxy := common.Clamp(qmax[1], hdr.BMin[1], hdr.BMax[1]) - hdr.BMin[1]
		maxz := common.Clamp(qmax[2], hdr.BMin[2], hdr.BMax[2]) - hdr.BMin[2]
		bmin := [3]uint16{uint16(minx*qfac) & 0xfffe, uint16(miny*qfac) & 0xfffe, uint16(minz*qfac) & 0xfffe}
		bmax := [3]uint16{uint16(maxx*qfac+1) | 1, uint16(maxy*qfac+1) | 1, uint16(maxz*qfac+1) | 1}

		for i := 0; i < len(tile.BVTree); {
			node := &tile.BVTree[i]
			overlap := overlapQuantBounds(bmin, bmax, node.BMin, node.BMax)
			isLeaf := node.I >= 0
			if isLeaf && overlap {
				ref := base + PolyRef(node.I)
				if filter.PassFilter(&tile.Polys[node.I]) {
					out = append(out, ref)
				}
			}
			if overlap || isLeaf {
				i++
			} else {
				i += int(-node.I)
			}
		}
		return out
	}

	var bmin, bmax [3]float32
	for i := range tile.Polys {
		poly := &tile.Polys[i]
		if poly.Type() == polyTypeOffMeshConnection {
			continue
		}
		if !filter.PassFilter(poly) {
			continue
		}
		v := tile.Verts[int(poly.Verts[0])*3:]
		common.Vcopy(bmin[:], v)
		common.Vcopy(bmax[:], v)
		for j := 1; j < int(poly.VertCount); j++ {
			v = tile.Verts[int(poly.Verts[j])*3:]
			common.Vmin(bmin[:], v)
			common.Vmax(bmax[:], v)
		}
		if overlapBounds(qmin, qmax, bmin[:], bmax[:]) {
			out = append(out, base+PolyRef(i))
		}
	}
	return out
}

// QueryPolygons returns the polygons overlapping the box around center.
func (q *NavMeshQuery) QueryPolygons(center, halfExtents []float32, filter *QueryFilter) ([]PolyRef, error) {
	if q.nav == nil {
		return nil, fmt.Errorf("detour: query not initialized")
	}
	bmin := []float32{center[0] - halfExtents[0], center[1] - halfExtents[1], center[2] - halfExtents[2]}
	bmax := []float32{center[0] + halfExtents[0], center[1] + halfExtents[1], center[2] + halfExtents[2]}

	var refs []PolyRef
	for i := 0; i < q.nav.MaxTiles(); i++ {
		tile := q.nav.GetTile(i)
		if tile.Header == nil {
			continue
		}
		if !overlapBounds(bmin, bmax, tile.Header.BMin[:], tile.Header.BMax[:]) {
			continue
		}
		refs = q.queryPolygonsInTile(tile, bmin, bmax, filter, refs)
	}
	return refs, nil
}

// FindNearestPoly returns the polygon nearest to center within the search
// box, and the closest point on it. A zero ref means nothing was found.
func (q *NavMeshQuery) FindNearestPoly(center, halfExtents []float32, filter *QueryFilter) (PolyRef, []float32, error) {
	refs, err := q.QueryPolygons(center, halfExtents, filter)
	if err != nil {
		return 0, nil, err
	}

	var nearest PolyRef
	nearestPt := make([]float32, 3)
	best := float32(math.MaxFloat32)
	closest := make([]float32, 3)

	for _, ref := range refs {
		posOverPoly, err := q.ClosestPointOnPoly(ref, center, closest)
		if err != nil {
			continue
		}

		// Favor polys the point is directly over: for those only the
		// height difference matters, and climb range wins ties.
		var d float32
		diff := []float32{center[0] - closest[0], center[1] - closest[1], center[2] - closest[2]}
		if posOverPoly {
			d = common.Abs(diff[1])
			if tile, _, terr := q.nav.GetTileAndPolyByRef(ref); terr == nil {
				d -= tile.Header.WalkableClimb
				if d < 0 {
					d = 0
				}
			}
		} else {
			d = common.Vlen(diff)
		}

		if d < best {
			best = d
			nearest = ref
			common.Vcopy(nearestPt, closest)
		}
	}
	return nearest, nearestPt, nil
}
