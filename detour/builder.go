package detour

import (
	"fmt"
	"math"
	"sort"

	"navbake/common"
)

// NavMeshCreateParams collects everything the packer needs to serialize one
// tile. Poly mesh fields use the builder's grid-unit layout; detail fields
// are world space. Off-mesh connection fields are reserved and must be
// empty for now.
type NavMeshCreateParams struct {
	// Poly mesh attributes.
	Verts     []int // grid units, 3 per vertex
	VertCount int
	Polys     []int // nvp*2 per polygon: corners then edge data
	PolyFlags []uint16
	PolyAreas []uint8
	PolyCount int
	Nvp       int

	// Height detail attributes.
	DetailMeshes     []int // 4 per polygon: vert base/count, tri base/count
	DetailVerts      []float32
	DetailVertsCount int
	DetailTris       []uint8
	DetailTriCount   int

	// Off-mesh connections, reserved.
	OffMeshConVerts  []float32
	OffMeshConRad    []float32
	OffMeshConFlags  []uint16
	OffMeshConAreas  []uint8
	OffMeshConDir    []uint8
	OffMeshConUserID []uint32
	OffMeshConCount  int

	// Tile attributes.
	UserID     uint32
	TileX      int
	TileY      int
	TileLayer  int
	BMin, BMax [3]float32

	// Agent attributes, world units.
	WalkableHeight float32
	WalkableRadius float32
	WalkableClimb  float32

	CellSize   float32
	CellHeight float32

	// BuildBvTree should be set for meshes that will serve spatial queries.
	BuildBvTree bool
}

type bvItem struct {
	bmin, bmax [3]uint16
	i          int
}

func calcItemExtents(items []bvItem) (bmin, bmax [3]uint16) {
	bmin = items[0].bmin
	bmax = items[0].bmax
	for _, it := range items[1:] {
		for k := 0; k < 3; k++ {
			bmin[k] = min(bmin[k], it.bmin[k])
			bmax[k] = max(bmax[k], it.bmax[k])
		}
	}
	return bmin, bmax
}

func longestAxis(x, y, z uint16) int {
	axis := 0
	maxVal := x
	if y > maxVal {
		axis = 1
		maxVal = y
	}
	if z > maxVal {
		axis = 2
	}
	return axis
}

func subdivide(items []bvItem, imin, imax int, nodes []BVNode, curNode *int) {
	inum := imax - imin
	node := &nodes[*curNode]
	icur := *curNode
	*curNode++

	if inum == 1 {
		// Leaf.
		node.BMin = items[imin].bmin
		node.BMax = items[imin].bmax
		node.I = int32(items[imin].i)
		return
	}

	node.BMin, node.BMax = calcItemExtents(items[imin:imax])
	axis := longestAxis(node.BMax[0]-node.BMin[0], node.BMax[1]-node.BMin[1], node.BMax[2]-node.BMin[2])
	sort.SliceStable(items[imin:imax], func(a, b int) bool {
		return items[imin+a].bmin[axis] < items[imin+b].bmin[axis]
	})

	isplit := imin + inum/2
	subdivide(items, imin, isplit, nodes, curNode)
	subdivide(items, isplit, imax, nodes, curNode)

	iescape := *curNode - icur
	node.I = -int32(iescape)
}

func createBVTree(params *NavMeshCreateParams, nodes []BVNode) int {
	items := make([]bvItem, params.PolyCount)
	quantFactor := 1 / params.CellSize

	for i := range items {
		it := &items[i]
		it.i = i

		if params.DetailMeshes != nil {
			// Detail verts give tighter bounds than the snapped mesh verts.
			vb := params.DetailMeshes[i*4]
			ndv := params.DetailMeshes[i*4+1]
			var bmin, bmax [3]float32
			dv := params.DetailVerts[vb*3:]
			common.Vcopy(bmin[:], dv)
			common.Vcopy(bmax[:], dv)
			for j := 1; j < ndv; j++ {
				common.Vmin(bmin[:], dv[j*3:])
				common.Vmax(bmax[:], dv[j*3:])
			}
			for k := 0; k < 3; k++ {
				it.bmin[k] = uint16(common.Clamp(int((bmin[k]-params.BMin[k])*quantFactor), 0, 0xffff))
				it.bmax[k] = uint16(common.Clamp(int((bmax[k]-params.BMin[k])*quantFactor), 0, 0xffff))
			}
		} else {
			p := params.Polys[i*params.Nvp*2:]
			x := params.Verts[p[0]*3]
			y := params.Verts[p[0]*3+1]
			z := params.Verts[p[0]*3+2]
			it.bmin[0], it.bmin[1], it.bmin[2] = uint16(x), uint16(y), uint16(z)
			it.bmax = it.bmin
			for j := 1; j < params.Nvp; j++ {
				if p[j] == meshNullIdx {
					break
				}
				x = params.Verts[p[j]*3]
				y = params.Verts[p[j]*3+1]
				z = params.Verts[p[j]*3+2]
				it.bmin[0] = min(it.bmin[0], uint16(x))
				it.bmin[1] = min(it.bmin[1], uint16(y))
				it.bmin[2] = min(it.bmin[2], uint16(z))
				it.bmax[0] = max(it.bmax[0], uint16(x))
				it.bmax[1] = max(it.bmax[1], uint16(y))
				it.bmax[2] = max(it.bmax[2], uint16(z))
			}
			// Y is in cell-height units, remap to cell-size quantization.
			chs := params.CellHeight / params.CellSize
			it.bmin[1] = uint16(math.Floor(float64(float32(it.bmin[1]) * chs)))
			it.bmax[1] = uint16(math.Ceil(float64(float32(it.bmax[1]) * chs)))
		}
	}

	curNode := 0
	subdivide(items, 0, params.PolyCount, nodes, &curNode)
	return curNode
}

// CreateNavMeshData serializes a built poly mesh and detail mesh into a
// single-tile navigation blob. The caller passes the bytes to NavMesh init,
// normally with TileFreeData so the mesh owns them.
func CreateNavMeshData(params *NavMeshCreateParams) ([]byte, error) {
	if params.Nvp > VertsPerPolygon {
		return nil, fmt.Errorf("detour: %d verts per poly exceeds format limit %d", params.Nvp, VertsPerPolygon)
	}
	if params.VertCount == 0 || params.VertCount >= 0xffff {
		return nil, fmt.Errorf("detour: vertex count %d out of range", params.VertCount)
	}
	if params.PolyCount == 0 {
		return nil, fmt.Errorf("detour: no polygons")
	}
	if params.OffMeshConCount != 0 {
		return nil, fmt.Errorf("detour: off-mesh connections are not supported")
	}

	nvp := params.Nvp

	// Count edges and tile-border portal edges; each consumes a link slot,
	// portals one on each side.
	edgeCount := 0
	portalCount := 0
	for i := 0; i < params.PolyCount; i++ {
		p := params.Polys[i*2*nvp:]
		for j := 0; j < nvp; j++ {
			if p[j] == meshNullIdx {
				break
			}
			edgeCount++
			if p[nvp+j]&0x8000 != 0 && p[nvp+j] != 0xffff {
				portalCount++
			}
		}
	}
	maxLinkCount := edgeCount + portalCount*2

	// Detail vertices beyond the polygon corners; the corners themselves
	// are shared with the poly mesh and not stored twice.
	uniqueDetailVertCount := 0
	detailTriCount := 0
	if params.DetailMeshes != nil {
		detailTriCount = params.DetailTriCount
		for i := 0; i < params.PolyCount; i++ {
			p := params.Polys[i*nvp*2:]
			ndv := params.DetailMeshes[i*4+1]
			nv := 0
			for j := 0; j < nvp; j++ {
				if p[j] == meshNullIdx {
					break
				}
				nv++
			}
			uniqueDetailVertCount += ndv - nv
		}
	} else {
		// No detail mesh, fan-triangulate the polygons on load bounds.
		for i := 0; i < params.PolyCount; i++ {
			p := params.Polys[i*nvp*2:]
			nv := 0
			for j := 0; j < nvp; j++ {
				if p[j] == meshNullIdx {
					break
				}
				nv++
			}
			detailTriCount += nv - 2
		}
	}

	bvNodeCount := 0
	if params.BuildBvTree {
		bvNodeCount = params.PolyCount * 2
	}

	d := &tileData{
		header: MeshHeader{
			Magic:           navMeshMagic,
			Version:         navMeshVersion,
			X:               int32(params.TileX),
			Y:               int32(params.TileY),
			Layer:           int32(params.TileLayer),
			UserID:          params.UserID,
			PolyCount:       int32(params.PolyCount),
			VertCount:       int32(params.VertCount),
			MaxLinkCount:    int32(maxLinkCount),
			DetailMeshCount: int32(params.PolyCount),
			DetailVertCount: int32(uniqueDetailVertCount),
			DetailTriCount:  int32(detailTriCount),
			BvNodeCount:     int32(bvNodeCount),
			OffMeshConCount: 0,
			OffMeshBase:     int32(params.PolyCount),
			WalkableHeight:  params.WalkableHeight,
			WalkableRadius:  params.WalkableRadius,
			WalkableClimb:   params.WalkableClimb,
			BMin:            params.BMin,
			BMax:            params.BMax,
			BvQuantFactor:   1 / params.CellSize,
		},
		verts:        make([]float32, params.VertCount*3),
		polys:        make([]Poly, params.PolyCount),
		links:        make([]Link, maxLinkCount),
		detailMeshes: make([]PolyDetail, params.PolyCount),
		detailVerts:  make([]float32, uniqueDetailVertCount*3),
		detailTris:   make([]uint8, detailTriCount*4),
	}

	// Mesh vertices to world space.
	for i := 0; i < params.VertCount; i++ {
		d.verts[i*3] = params.BMin[0] + float32(params.Verts[i*3])*params.CellSize
		d.verts[i*3+1] = params.BMin[1] + float32(params.Verts[i*3+1])*params.CellHeight
		d.verts[i*3+2] = params.BMin[2] + float32(params.Verts[i*3+2])*params.CellSize
	}

	// Polygons.
	for i := 0; i < params.PolyCount; i++ {
		p := &d.polys[i]
		src := params.Polys[i*2*nvp:]
		p.Flags = params.PolyFlags[i]
		p.SetArea(params.PolyAreas[i])
		p.SetType(polyTypeGround)
		for j := 0; j < nvp; j++ {
			if src[j] == meshNullIdx {
				break
			}
			p.Verts[j] = uint16(src[j])
			switch {
			case src[nvp+j] == 0xffff:
				// Border edge with no portal.
				p.Neis[j] = 0
			case src[nvp+j]&0x8000 != 0:
				// Portal edge; remap the poly mesh direction to a side.
				switch src[nvp+j] & 0xf {
				case 0:
					p.Neis[j] = extLink | 4
				case 1:
					p.Neis[j] = extLink | 2
				case 2:
					p.Neis[j] = extLink | 0
				case 3:
					p.Neis[j] = extLink | 6
				}
			default:
				p.Neis[j] = uint16(src[nvp+j] + 1)
			}
			p.VertCount++
		}
	}

	// Detail submeshes.
	if params.DetailMeshes != nil {
		vbase := 0
		for i := 0; i < params.PolyCount; i++ {
			dtl := &d.detailMeshes[i]
			vb := params.DetailMeshes[i*4]
			ndv := params.DetailMeshes[i*4+1]
			nv := int(d.polys[i].VertCount)
			dtl.VertBase = uint32(vbase)
			dtl.VertCount = uint8(ndv - nv)
			dtl.TriBase = uint32(params.DetailMeshes[i*4+2])
			dtl.TriCount = uint8(params.DetailMeshes[i*4+3])
			if ndv-nv > 0 {
				copy(d.detailVerts[vbase*3:], params.DetailVerts[(vb+nv)*3:vb*3+ndv*3])
				vbase += ndv - nv
			}
		}
		copy(d.detailTris, params.DetailTris[:detailTriCount*4])
	} else {
		// Triangulate each polygon as a local fan.
		tbase := 0
		for i := 0; i < params.PolyCount; i++ {
			dtl := &d.detailMeshes[i]
			nv := int(d.polys[i].VertCount)
			dtl.VertBase = 0
			dtl.VertCount = 0
			dtl.TriBase = uint32(tbase)
			dtl.TriCount = uint8(nv - 2)
			for j := 2; j < nv; j++ {
				t := d.detailTris[tbase*4:]
				t[0] = 0
				t[1] = uint8(j - 1)
				t[2] = uint8(j)
				// Edge flags: outer edges of the fan are polygon boundary.
				t[3] = 1 << 4
				if j == 2 {
					t[3] |= 1
				}
				if j == nv-1 {
					t[3] |= 1 << 2
				}
				tbase++
			}
		}
	}

	// BV tree for fast point queries.
	if params.BuildBvTree {
		d.bvTree = make([]BVNode, bvNodeCount)
		n := createBVTree(params, d.bvTree)
		d.bvTree = d.bvTree[:n]
		d.header.BvNodeCount = int32(n)
	}

	return d.encode()
}
