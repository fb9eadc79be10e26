package detour

import (
	"fmt"

	"navbake/common"
)

// NavMeshParams bound a navigation mesh at init time. For a single-tile
// mesh they are derived from the tile header.
type NavMeshParams struct {
	Orig       [3]float32
	TileWidth  float32
	TileHeight float32
	MaxTiles   int
	MaxPolys   int
}

// NavMesh is a queryable navigation mesh built from one or more tile
// blobs. It is not safe for concurrent mutation; queries are read-only
// once all tiles are added.
type NavMesh struct {
	params                       NavMeshParams
	orig                         [3]float32
	tileWidth, tileHeight        float32
	maxTiles                     int
	tileLutMask                  int
	posLookup                    []*MeshTile
	nextFree                     *MeshTile
	tiles                        []MeshTile
	saltBits, tileBits, polyBits uint
}

// NewNavMesh initializes a tiled navigation mesh with explicit parameters.
func NewNavMesh(params *NavMeshParams) (*NavMesh, error) {
	m := &NavMesh{
		params:     *params,
		orig:       params.Orig,
		tileWidth:  params.TileWidth,
		tileHeight: params.TileHeight,
		maxTiles:   params.MaxTiles,
	}

	lutSize := int(common.NextPow2(uint32(params.MaxTiles) / 4))
	if lutSize == 0 {
		lutSize = 1
	}
	m.tileLutMask = lutSize - 1
	m.posLookup = make([]*MeshTile, lutSize)
	m.tiles = make([]MeshTile, m.maxTiles)
	for i := m.maxTiles - 1; i >= 0; i-- {
		m.tiles[i].Salt = 1
		m.tiles[i].Next = m.nextFree
		m.nextFree = &m.tiles[i]
	}

	m.tileBits = uint(common.Ilog2(common.NextPow2(uint32(params.MaxTiles))))
	m.polyBits = uint(common.Ilog2(common.NextPow2(uint32(params.MaxPolys))))
	// Keep one bit in reserve so the salt mask cannot overflow 32 bits.
	m.saltBits = min(31, 32-m.tileBits-m.polyBits)
	if m.saltBits < 10 {
		return nil, fmt.Errorf("detour: tile/poly capacity leaves %d salt bits, need 10", m.saltBits)
	}
	return m, nil
}

// NewSingleTileNavMesh sets up a mesh sized for exactly one tile and adds
// it. With TileFreeData the mesh takes ownership of the blob.
func NewSingleTileNavMesh(data []byte, flags int) (*NavMesh, error) {
	hdr, err := decodeTileHeader(data)
	if err != nil {
		return nil, err
	}
	params := &NavMeshParams{
		Orig:       hdr.BMin,
		TileWidth:  hdr.BMax[0] - hdr.BMin[0],
		TileHeight: hdr.BMax[2] - hdr.BMin[2],
		MaxTiles:   1,
		MaxPolys:   int(hdr.PolyCount),
	}
	m, err := NewNavMesh(params)
	if err != nil {
		return nil, err
	}
	if _, err := m.AddTile(data, flags); err != nil {
		return nil, err
	}
	return m, nil
}

// EncodePolyID packs a polygon reference.
func (m *NavMesh) EncodePolyID(salt uint32, it, ip int) PolyRef {
	return PolyRef(salt)<<(m.polyBits+m.tileBits) | PolyRef(it)<<m.polyBits | PolyRef(ip)
}

// DecodePolyID unpacks a polygon reference.
func (m *NavMesh) DecodePolyID(ref PolyRef) (salt uint32, it, ip int) {
	saltMask := PolyRef(1)<<m.saltBits - 1
	tileMask := PolyRef(1)<<m.tileBits - 1
	polyMask := PolyRef(1)<<m.polyBits - 1
	salt = uint32(ref >> (m.polyBits + m.tileBits) & saltMask)
	it = int(ref >> m.polyBits & tileMask)
	ip = int(ref & polyMask)
	return salt, it, ip
}

func (m *NavMesh) tileIndex(t *MeshTile) int {
	for i := range m.tiles {
		if &m.tiles[i] == t {
			return i
		}
	}
	return -1
}

// GetPolyRefBase returns the reference of polygon 0 in the tile; adding
// the polygon index gives any other polygon of the tile.
func (m *NavMesh) GetPolyRefBase(t *MeshTile) PolyRef {
	it := m.tileIndex(t)
	if it < 0 {
		return 0
	}
	return m.EncodePolyID(t.Salt, it, 0)
}

func computeTileHash(x, y, mask int) int {
	const h1 = 0x8da6b343
	const h2 = 0xd8163841
	n := uint32(h1*x) + uint32(h2*y)
	return int(n) & mask
}

// AddTile decodes a tile blob into the mesh and wires the internal polygon
// links. Only one tile per grid location may exist.
func (m *NavMesh) AddTile(data []byte, flags int) (PolyRef, error) {
	d, err := decodeTile(data)
	if err != nil {
		return 0, err
	}
	hdr := &d.header

	if m.getTileAt(int(hdr.X), int(hdr.Y), int(hdr.Layer)) != nil {
		return 0, fmt.Errorf("detour: tile (%d,%d,%d) already added", hdr.X, hdr.Y, hdr.Layer)
	}
	tile := m.nextFree
	if tile == nil {
		return 0, fmt.Errorf("detour: out of tile slots (max %d)", m.maxTiles)
	}
	m.nextFree = tile.Next
	tile.Next = nil

	// Insert into the position lookup.
	h := computeTileHash(int(hdr.X), int(hdr.Y), m.tileLutMask)
	tile.Next = m.posLookup[h]
	m.posLookup[h] = tile

	tile.Header = hdr
	tile.Verts = d.verts
	tile.Polys = d.polys
	tile.Links = d.links
	tile.DetailMeshes = d.detailMeshes
	tile.DetailVerts = d.detailVerts
	tile.DetailTris = d.detailTris
	tile.BVTree = d.bvTree
	tile.OffMeshCons = d.offMeshCons
	tile.Data = data
	tile.Flags = flags

	// Chain all links into the free list.
	tile.LinksFreeList = 0
	if len(tile.Links) == 0 {
		tile.LinksFreeList = NullLink
	} else {
		tile.Links[len(tile.Links)-1].Next = NullLink
		for i := 0; i < len(tile.Links)-1; i++ {
			tile.Links[i].Next = uint32(i + 1)
		}
	}

	m.connectIntLinks(tile)

	return m.GetPolyRefBase(tile), nil
}

func (m *NavMesh) allocLink(tile *MeshTile) uint32 {
	if tile.LinksFreeList == NullLink {
		return NullLink
	}
	link := tile.LinksFreeList
	tile.LinksFreeList = tile.Links[link].Next
	return link
}

// connectIntLinks builds the link chains for edges between polygons of the
// same tile.
func (m *NavMesh) connectIntLinks(tile *MeshTile) {
	base := m.GetPolyRefBase(tile)
	for i := range tile.Polys {
		poly := &tile.Polys[i]
		poly.FirstLink = NullLink
		if poly.Type() == polyTypeOffMeshConnection {
			continue
		}
		// Build edge links backwards so the list is in edge order.
		for j := int(poly.VertCount) - 1; j >= 0; j-- {
			if poly.Neis[j] == 0 || poly.Neis[j]&extLink != 0 {
				continue
			}
			idx := m.allocLink(tile)
			if idx == NullLink {
				continue
			}
			link := &tile.Links[idx]
			link.Ref = base + PolyRef(poly.Neis[j]-1)
			link.Edge = uint8(j)
			link.Side = 0xff
			link.BMin, link.BMax = 0, 0
			link.Next = poly.FirstLink
			poly.FirstLink = idx
		}
	}
}

func (m *NavMesh) getTileAt(x, y, layer int) *MeshTile {
	h := computeTileHash(x, y, m.tileLutMask)
	for tile := m.posLookup[h]; tile != nil; tile = tile.Next {
		if tile.Header != nil &&
			int(tile.Header.X) == x && int(tile.Header.Y) == y && int(tile.Header.Layer) == layer {
			return tile
		}
	}
	return nil
}

// GetTileAndPolyByRef resolves a polygon reference, validating the salt.
func (m *NavMesh) GetTileAndPolyByRef(ref PolyRef) (*MeshTile, *Poly, error) {
	if ref == 0 {
		return nil, nil, fmt.Errorf("detour: null poly ref")
	}
	salt, it, ip := m.DecodePolyID(ref)
	if it >= m.maxTiles {
		return nil, nil, fmt.Errorf("detour: tile index %d out of range", it)
	}
	tile := &m.tiles[it]
	if tile.Salt != salt || tile.Header == nil {
		return nil, nil, fmt.Errorf("detour: stale poly ref %#x", ref)
	}
	if ip >= int(tile.Header.PolyCount) {
		return nil, nil, fmt.Errorf("detour: poly index %d out of range", ip)
	}
	return tile, &tile.Polys[ip], nil
}

// IsValidPolyRef reports whether the reference resolves to a live polygon.
func (m *NavMesh) IsValidPolyRef(ref PolyRef) bool {
	_, _, err := m.GetTileAndPolyByRef(ref)
	return err == nil
}

// Params returns the init-time parameters, for serialization.
func (m *NavMesh) Params() NavMeshParams { return m.params }

// GetTile returns tile i, which may be empty.
func (m *NavMesh) GetTile(i int) *MeshTile {
	return &m.tiles[i]
}

// MaxTiles returns the tile capacity.
func (m *NavMesh) MaxTiles() int { return m.maxTiles }

// PolyCount sums the polygons of all live tiles.
func (m *NavMesh) PolyCount() int {
	n := 0
	for i := range m.tiles {
		if m.tiles[i].Header != nil {
			n += int(m.tiles[i].Header.PolyCount)
		}
	}
	return n
}

// RemoveTile detaches a tile. Unless the tile was added with TileFreeData,
// the blob is returned to the caller; otherwise nil, and the bytes are
// released with the tile.
func (m *NavMesh) RemoveTile(ref PolyRef) ([]byte, error) {
	tile, _, err := m.GetTileAndPolyByRef(ref)
	if err != nil {
		return nil, err
	}

	h := computeTileHash(int(tile.Header.X), int(tile.Header.Y), m.tileLutMask)
	var prev *MeshTile
	for cur := m.posLookup[h]; cur != nil; cur = cur.Next {
		if cur == tile {
			if prev != nil {
				prev.Next = cur.Next
			} else {
				m.posLookup[h] = cur.Next
			}
			break
		}
		prev = cur
	}

	var data []byte
	if tile.Flags&TileFreeData == 0 {
		data = tile.Data
	}
	tile.Header = nil
	tile.Polys = nil
	tile.Verts = nil
	tile.Links = nil
	tile.DetailMeshes = nil
	tile.DetailVerts = nil
	tile.DetailTris = nil
	tile.BVTree = nil
	tile.OffMeshCons = nil
	tile.Data = nil
	tile.Flags = 0

	tile.Salt = (tile.Salt + 1) & (1<<m.saltBits - 1)
	if tile.Salt == 0 {
		tile.Salt++
	}
	tile.Next = m.nextFree
	m.nextFree = tile

	return data, nil
}
