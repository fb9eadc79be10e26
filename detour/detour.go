// Package detour packs polygon meshes into queryable navigation data. The
// tile blob layout is an opaque little-endian format owned by this package;
// NavMesh decodes it on init and NavMeshQuery answers placement queries
// against the decoded tiles.
package detour

const (
	// navMeshMagic identifies a tile blob ('DNAV').
	navMeshMagic = 'D'<<24 | 'N'<<16 | 'A'<<8 | 'V'
	// navMeshVersion is bumped on any layout change.
	navMeshVersion = 7

	// VertsPerPolygon is the format ceiling for polygon corners.
	VertsPerPolygon = 6

	// maxAreas is the number of distinct area ids a filter can cost.
	maxAreas = 64

	// extLink marks a polygon edge that crosses the tile border.
	extLink = 0x8000
	// NullLink marks the end of a link chain.
	NullLink = 0xffffffff

	// meshNullIdx mirrors the poly mesh null vertex index.
	meshNullIdx = 0xffff
)

// Tile flags.
const (
	// TileFreeData transfers blob ownership to the NavMesh: the tile keeps
	// the only reference and RemoveTile does not hand the bytes back.
	TileFreeData = 0x01
)

// Polygon types.
const (
	polyTypeGround            = 0
	polyTypeOffMeshConnection = 1
)

// PolyRef identifies a polygon within a NavMesh. It packs the tile salt,
// tile index and polygon index; the bit split is chosen at mesh init from
// the tile and polygon capacity.
type PolyRef uint32

// MeshHeader leads every tile blob.
type MeshHeader struct {
	Magic           int32
	Version         int32
	X, Y, Layer     int32
	UserID          uint32
	PolyCount       int32
	VertCount       int32
	MaxLinkCount    int32
	DetailMeshCount int32
	DetailVertCount int32
	DetailTriCount  int32
	BvNodeCount     int32
	OffMeshConCount int32
	OffMeshBase     int32
	WalkableHeight  float32
	WalkableRadius  float32
	WalkableClimb   float32
	BMin, BMax      [3]float32
	// BvQuantFactor converts world units to BV tree quantized units.
	BvQuantFactor float32
}

// Poly is one convex polygon of a tile.
type Poly struct {
	// FirstLink indexes the first link in the chain, or NullLink.
	FirstLink uint32
	// Verts index into the tile vertex array; only the first VertCount
	// entries are valid.
	Verts [VertsPerPolygon]uint16
	// Neis holds per-edge neighbour data: 0 for a border edge, the
	// neighbour polygon index plus one for an internal edge, or extLink
	// combined with a side for a tile-border edge.
	Neis        [VertsPerPolygon]uint16
	Flags       uint16
	VertCount   uint8
	AreaAndType uint8
}

// SetArea stores the area id in the low 6 bits.
func (p *Poly) SetArea(a uint8) { p.AreaAndType = (p.AreaAndType & 0xc0) | (a & 0x3f) }

// SetType stores the polygon type in the high 2 bits.
func (p *Poly) SetType(t uint8) { p.AreaAndType = (p.AreaAndType & 0x3f) | (t << 6) }

func (p *Poly) Area() uint8 { return p.AreaAndType & 0x3f }
func (p *Poly) Type() uint8 { return p.AreaAndType >> 6 }

// PolyDetail maps a polygon to its detail submesh. The first VertCount
// detail vertices of a polygon are its corners and are not repeated in the
// detail vertex array.
type PolyDetail struct {
	VertBase  uint32
	TriBase   uint32
	VertCount uint8
	TriCount  uint8
}

// Link connects a polygon edge to a neighbour polygon.
type Link struct {
	Ref  PolyRef
	Next uint32
	Edge uint8
	Side uint8
	BMin uint8
	BMax uint8
}

// BVNode is one node of a tile's bounding volume tree. Bounds are
// quantized; a negative I is an escape offset for subtree skipping.
type BVNode struct {
	BMin [3]uint16
	BMax [3]uint16
	I    int32
}

// OffMeshConnection is reserved; builds produce none but the format carries
// the section so the layout will not change when they are added.
type OffMeshConnection struct {
	Pos    [6]float32
	Rad    float32
	Poly   uint16
	Flags  uint8
	Side   uint8
	UserID uint32
}

// MeshTile is one decoded tile.
type MeshTile struct {
	Salt          uint32
	LinksFreeList uint32
	Header        *MeshHeader
	Polys         []Poly
	Verts         []float32
	Links         []Link
	DetailMeshes  []PolyDetail
	DetailVerts   []float32
	DetailTris    []uint8
	BVTree        []BVNode
	OffMeshCons   []OffMeshConnection
	Data          []byte
	Flags         int
	Next          *MeshTile
}
