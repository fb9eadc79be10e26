// Package mesh provides the source-geometry side of a navmesh bake: an
// asset abstraction over CPU-resident triangle meshes and a Wavefront OBJ
// loader for baking files directly.
package mesh

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Asset is a triangle mesh that may or may not have a CPU-resident copy.
// Bakes only read the system copy; GPU-only meshes cannot be baked.
type Asset interface {
	// HasSystemRAMCopy reports whether SystemCopy can be served.
	HasSystemRAMCopy() bool
	// SystemCopy returns vertex positions and the triangle index list.
	// Implementations with richer per-vertex data return positions only.
	SystemCopy() (verts []mgl32.Vec3, indices []uint32)
	// Bounds returns the axis-aligned bounding box.
	Bounds() (bmin, bmax mgl32.Vec3)
}

// TriMesh is the plain in-memory Asset.
type TriMesh struct {
	Verts   []mgl32.Vec3
	Indices []uint32
}

// NewTriMesh wraps vertex and index data, validating the index range.
func NewTriMesh(verts []mgl32.Vec3, indices []uint32) (*TriMesh, error) {
	if len(indices)%3 != 0 {
		return nil, fmt.Errorf("mesh: index count %d not a multiple of 3", len(indices))
	}
	for _, idx := range indices {
		if int(idx) >= len(verts) {
			return nil, fmt.Errorf("mesh: index %d out of range (%d verts)", idx, len(verts))
		}
	}
	return &TriMesh{Verts: verts, Indices: indices}, nil
}

func (m *TriMesh) HasSystemRAMCopy() bool { return m.Verts != nil }

func (m *TriMesh) SystemCopy() ([]mgl32.Vec3, []uint32) {
	return m.Verts, m.Indices
}

func (m *TriMesh) Bounds() (mgl32.Vec3, mgl32.Vec3) {
	if len(m.Verts) == 0 {
		return mgl32.Vec3{}, mgl32.Vec3{}
	}
	bmin := m.Verts[0]
	bmax := m.Verts[0]
	for _, v := range m.Verts[1:] {
		for k := 0; k < 3; k++ {
			if v[k] < bmin[k] {
				bmin[k] = v[k]
			}
			if v[k] > bmax[k] {
				bmax[k] = v[k]
			}
		}
	}
	return bmin, bmax
}

// TriCount returns the number of triangles.
func (m *TriMesh) TriCount() int { return len(m.Indices) / 3 }
