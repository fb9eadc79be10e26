package navbake

import (
	"fmt"
	"os"

	"navbake/common/binio"
	"navbake/detour"
)

// Saved blob layout: a set header (magic, version, tile count, mesh
// parameters) followed by one (ref, size, tile blob) record per live tile.
const (
	navMeshSetMagic   = 'M'<<24 | 'S'<<16 | 'E'<<8 | 'T'
	navMeshSetVersion = 1
)

// SaveNavMesh serializes a navigation mesh, including its init parameters
// and every live tile, into a portable little-endian blob.
func SaveNavMesh(m *detour.NavMesh) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("navbake: nil navmesh")
	}
	w := binio.NewWriter()
	w.WriteInt32(navMeshSetMagic)
	w.WriteInt32(navMeshSetVersion)

	numTiles := 0
	for i := 0; i < m.MaxTiles(); i++ {
		t := m.GetTile(i)
		if t.Header == nil || t.Data == nil {
			continue
		}
		numTiles++
	}
	w.WriteInt32(int32(numTiles))

	params := m.Params()
	w.WriteFloat32s(params.Orig[:])
	w.WriteFloat32(params.TileWidth)
	w.WriteFloat32(params.TileHeight)
	w.WriteInt32(int32(params.MaxTiles))
	w.WriteInt32(int32(params.MaxPolys))

	for i := 0; i < m.MaxTiles(); i++ {
		t := m.GetTile(i)
		if t.Header == nil || t.Data == nil {
			continue
		}
		w.WriteUint32(uint32(m.GetPolyRefBase(t)))
		w.WriteInt32(int32(len(t.Data)))
		w.WriteUint8s(t.Data)
	}
	return w.Bytes(), nil
}

// LoadNavMesh restores a navigation mesh saved with SaveNavMesh. The
// loaded mesh owns its tile data.
func LoadNavMesh(data []byte) (*detour.NavMesh, error) {
	r := binio.NewReader(data)
	magic := r.ReadInt32()
	version := r.ReadInt32()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("navbake: truncated navmesh set header: %w", err)
	}
	if magic != navMeshSetMagic {
		return nil, fmt.Errorf("navbake: bad navmesh set magic %#x", magic)
	}
	if version != navMeshSetVersion {
		return nil, fmt.Errorf("navbake: unsupported navmesh set version %d", version)
	}

	numTiles := int(r.ReadInt32())
	var params detour.NavMeshParams
	r.ReadFloat32s(params.Orig[:])
	params.TileWidth = r.ReadFloat32()
	params.TileHeight = r.ReadFloat32()
	params.MaxTiles = int(r.ReadInt32())
	params.MaxPolys = int(r.ReadInt32())
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("navbake: truncated navmesh set header: %w", err)
	}
	if numTiles < 0 || params.MaxTiles <= 0 || numTiles > params.MaxTiles {
		return nil, fmt.Errorf("navbake: navmesh set holds %d tiles for capacity %d", numTiles, params.MaxTiles)
	}

	m, err := detour.NewNavMesh(&params)
	if err != nil {
		return nil, err
	}
	for i := 0; i < numTiles; i++ {
		r.ReadUint32() // original tile ref, refs are per-instance
		size := int(r.ReadInt32())
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("navbake: truncated tile record %d: %w", i, err)
		}
		if size <= 0 || size > r.Remaining() {
			return nil, fmt.Errorf("navbake: tile record %d has bad size %d", i, size)
		}
		blob := make([]byte, size)
		r.ReadUint8s(blob)
		if _, err := m.AddTile(blob, detour.TileFreeData); err != nil {
			return nil, fmt.Errorf("navbake: restoring tile %d: %w", i, err)
		}
	}
	return m, nil
}

// SaveNavMeshFile writes the mesh to disk in SaveNavMesh format.
func SaveNavMeshFile(path string, m *detour.NavMesh) error {
	data, err := SaveNavMesh(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadNavMeshFile reads a mesh written by SaveNavMeshFile.
func LoadNavMeshFile(path string) (*detour.NavMesh, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadNavMesh(data)
}
