package detour

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// tileData is the decoded form of a tile blob, section order as written:
// header, vertices, polygons, link placeholders, detail meshes, detail
// vertices, detail triangles, BV tree, off-mesh connections. Links are
// serialized zeroed and rebuilt on load.
type tileData struct {
	header       MeshHeader
	verts        []float32
	polys        []Poly
	links        []Link
	detailMeshes []PolyDetail
	detailVerts  []float32
	detailTris   []uint8
	bvTree       []BVNode
	offMeshCons  []OffMeshConnection
}

func (d *tileData) encode() ([]byte, error) {
	var buf bytes.Buffer
	for _, section := range []any{
		d.header,
		d.verts,
		d.polys,
		d.links,
		d.detailMeshes,
		d.detailVerts,
		d.detailTris,
		d.bvTree,
		d.offMeshCons,
	} {
		if err := binary.Write(&buf, binary.LittleEndian, section); err != nil {
			return nil, fmt.Errorf("detour: encode tile: %w", err)
		}
	}
	return buf.Bytes(), nil
}

func decodeTileHeader(data []byte) (*MeshHeader, error) {
	var hdr MeshHeader
	r := bytes.NewReader(data)
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("detour: read tile header: %w", err)
	}
	if hdr.Magic != navMeshMagic {
		return nil, fmt.Errorf("detour: bad tile magic %#x", hdr.Magic)
	}
	if hdr.Version != navMeshVersion {
		return nil, fmt.Errorf("detour: tile version %d, want %d", hdr.Version, navMeshVersion)
	}
	return &hdr, nil
}

func decodeTile(data []byte) (*tileData, error) {
	hdr, err := decodeTileHeader(data)
	if err != nil {
		return nil, err
	}

	d := &tileData{
		header:       *hdr,
		verts:        make([]float32, hdr.VertCount*3),
		polys:        make([]Poly, hdr.PolyCount),
		links:        make([]Link, hdr.MaxLinkCount),
		detailMeshes: make([]PolyDetail, hdr.DetailMeshCount),
		detailVerts:  make([]float32, hdr.DetailVertCount*3),
		detailTris:   make([]uint8, hdr.DetailTriCount*4),
		bvTree:       make([]BVNode, hdr.BvNodeCount),
		offMeshCons:  make([]OffMeshConnection, hdr.OffMeshConCount),
	}

	r := bytes.NewReader(data)
	var skip MeshHeader
	for _, section := range []any{
		&skip,
		d.verts,
		d.polys,
		d.links,
		d.detailMeshes,
		d.detailVerts,
		d.detailTris,
		d.bvTree,
		d.offMeshCons,
	} {
		if err := binary.Read(r, binary.LittleEndian, section); err != nil {
			return nil, fmt.Errorf("detour: decode tile: %w", err)
		}
	}
	return d, nil
}
