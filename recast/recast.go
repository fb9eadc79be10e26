// Package recast implements the voxel-based navigation surface pipeline:
// triangle rasterization into a heightfield, span filtering, compact
// heightfield construction, region partitioning, contour tracing and
// polygon/detail mesh generation.
//
// The pipeline operates on a regular grid defined by a cell size on the
// xz-plane and a cell height on the y-axis. Stages are pure functions of
// their inputs; every failable stage returns an error.
package recast

import (
	"fmt"
	"math"

	"navbake/common"
)

const (
	// NullArea marks unwalkable voxels and polygons.
	NullArea uint8 = 0
	// WalkableArea is the default area id for walkable surface. It is also
	// the maximum area id usable by callers.
	WalkableArea uint8 = 63

	// NotConnected marks an absent neighbour link on a compact span.
	NotConnected = 0x3f

	// spanMaxHeight is the ceiling of span min/max values on the height grid.
	spanMaxHeight = 0xffff
)

// Config carries the derived, voxel-space build parameters shared by the
// pipeline stages.
type Config struct {
	// Width and Height are the heightfield dimensions in cells (x and z).
	Width  int
	Height int

	// BorderSize is the non-navigable border around the heightfield in cells.
	BorderSize int

	// CellSize is the xz-plane cell size and CellHeight the y-axis cell size,
	// both in world units.
	CellSize   float32
	CellHeight float32

	// BMin and BMax bound the field's AABB in world units.
	BMin [3]float32
	BMax [3]float32

	// WalkableSlopeAngle is the maximum walkable slope in degrees.
	WalkableSlopeAngle float32

	// WalkableHeight is the minimum floor-to-ceiling clearance in voxels,
	// WalkableClimb the maximum traversable ledge in voxels, and
	// WalkableRadius the erosion distance from obstructions in voxels.
	WalkableHeight int
	WalkableClimb  int
	WalkableRadius int

	// MaxEdgeLen limits border contour edge length, in cells.
	MaxEdgeLen int

	// MaxSimplificationError is the maximum deviation of a simplified
	// contour from the raw contour, in voxels.
	MaxSimplificationError float32

	// MinRegionArea is the minimum cell count for isolated regions;
	// MergeRegionArea the cell count under which regions get merged.
	MinRegionArea   int
	MergeRegionArea int

	// MaxVertsPerPoly caps polygon vertex count in the output mesh.
	MaxVertsPerPoly int

	// DetailSampleDist is the detail mesh sampling distance in world units
	// (zero disables sampling); DetailSampleMaxError the maximum allowed
	// surface deviation in world units.
	DetailSampleDist     float32
	DetailSampleMaxError float32
}

// CalcBounds computes the AABB of a packed vertex array.
func CalcBounds(verts []float32, nv int, bmin, bmax []float32) {
	common.Vcopy(bmin, verts)
	common.Vcopy(bmax, verts)
	for i := 1; i < nv; i++ {
		v := common.Vert(verts, i)
		common.Vmin(bmin, v)
		common.Vmax(bmax, v)
	}
}

// CalcGridSize computes the grid dimensions covering the given bounds.
func CalcGridSize(bmin, bmax []float32, cellSize float32) (width, height int) {
	width = int((bmax[0]-bmin[0])/cellSize + 0.5)
	height = int((bmax[2]-bmin[2])/cellSize + 0.5)
	return width, height
}

func calcTriNormal(v0, v1, v2, norm []float32) {
	var e0, e1 [3]float32
	common.Vsub(e0[:], v1, v0)
	common.Vsub(e1[:], v2, v0)
	common.Vcross(norm, e0[:], e1[:])
	common.Vnormalize(norm)
}

// MarkWalkableTriangles sets areas[i] to WalkableArea for every triangle
// whose slope is below walkableSlopeAngle. Entries of steeper triangles are
// left untouched.
func MarkWalkableTriangles(walkableSlopeAngle float32, verts []float32, tris []int32, areas []uint8) {
	walkableThr := float32(math.Cos(float64(walkableSlopeAngle) / 180.0 * math.Pi))
	norm := make([]float32, 3)
	for i := 0; i < len(tris)/3; i++ {
		tri := tris[i*3 : i*3+3]
		calcTriNormal(common.Vert(verts, int(tri[0])), common.Vert(verts, int(tri[1])), common.Vert(verts, int(tri[2])), norm)
		if norm[1] > walkableThr {
			areas[i] = WalkableArea
		}
	}
}

// ClearUnwalkableTriangles is the inverse marking: triangles steeper than
// walkableSlopeAngle get NullArea.
func ClearUnwalkableTriangles(walkableSlopeAngle float32, verts []float32, tris []int32, areas []uint8) {
	walkableLimitY := float32(math.Cos(float64(walkableSlopeAngle) / 180.0 * math.Pi))
	norm := make([]float32, 3)
	for i := 0; i < len(tris)/3; i++ {
		tri := tris[i*3 : i*3+3]
		calcTriNormal(common.Vert(verts, int(tri[0])), common.Vert(verts, int(tri[1])), common.Vert(verts, int(tri[2])), norm)
		if norm[1] <= walkableLimitY {
			areas[i] = NullArea
		}
	}
}

// Span is one solid vertical interval in a heightfield column.
type Span struct {
	Min  int // lower extent, in cell-height units
	Max  int // upper extent, in cell-height units
	Area uint8
	Next *Span // next higher span in the column
}

// Heightfield is the solid voxel representation: a grid of columns, each a
// linked list of spans ordered bottom to top.
type Heightfield struct {
	Width      int
	Height     int
	BMin, BMax [3]float32
	CellSize   float32
	CellHeight float32
	Spans      []*Span // column heads, Width*Height entries
}

// NewHeightfield allocates an empty heightfield covering the given bounds.
func NewHeightfield(width, height int, bmin, bmax []float32, cellSize, cellHeight float32) (*Heightfield, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("recast: invalid heightfield size %dx%d", width, height)
	}
	hf := &Heightfield{
		Width:      width,
		Height:     height,
		CellSize:   cellSize,
		CellHeight: cellHeight,
		Spans:      make([]*Span, width*height),
	}
	common.Vcopy(hf.BMin[:], bmin)
	common.Vcopy(hf.BMax[:], bmax)
	return hf, nil
}

// SpanCount counts spans with a non-null area across the whole field.
func (hf *Heightfield) SpanCount() int {
	n := 0
	for _, s := range hf.Spans {
		for ; s != nil; s = s.Next {
			if s.Area != NullArea {
				n++
			}
		}
	}
	return n
}

// CompactCell indexes the spans of one column in a compact heightfield.
type CompactCell struct {
	Index int // index of the first span in the column
	Count int // number of spans in the column
}

// CompactSpan is one walkable interval of open space above a surface.
type CompactSpan struct {
	Y    int    // bottom of the open space (surface height)
	H    int    // height of the open space
	Reg  int    // region id, 0 when unassigned
	cons uint32 // packed per-direction neighbour indices
}

// SetCon stores the neighbour span layer index for a direction, or
// NotConnected.
func (s *CompactSpan) SetCon(dir, layer int) {
	shift := uint(dir) * 6
	s.cons = (s.cons &^ (0x3f << shift)) | (uint32(layer&0x3f) << shift)
}

// Con returns the neighbour span layer index for a direction, or
// NotConnected.
func (s *CompactSpan) Con(dir int) int {
	shift := uint(dir) * 6
	return int((s.cons >> shift) & 0x3f)
}

// CompactHeightfield is the connectivity-oriented representation of the
// walkable surface: spans are packed densely per column and carry explicit
// neighbour links.
type CompactHeightfield struct {
	Width          int
	Height         int
	SpanCount      int
	WalkableHeight int
	WalkableClimb  int
	BorderSize     int
	MaxDistance    int // largest value in Dist, set by BuildDistanceField
	MaxRegions     int // highest region id, set by the partitioners
	BMin, BMax     [3]float32
	CellSize       float32
	CellHeight     float32
	Cells          []CompactCell
	Spans          []CompactSpan
	Dist           []int // distance field, nil until BuildDistanceField
	Areas          []uint8
}

// BuildCompactHeightfield converts the solid heightfield into the compact
// representation, keeping only spans with walkable area and headroom, and
// computes the four-directional neighbour links.
func BuildCompactHeightfield(walkableHeight, walkableClimb int, hf *Heightfield) (*CompactHeightfield, error) {
	spanCount := hf.SpanCount()

	chf := &CompactHeightfield{
		Width:          hf.Width,
		Height:         hf.Height,
		SpanCount:      spanCount,
		WalkableHeight: walkableHeight,
		WalkableClimb:  walkableClimb,
		CellSize:       hf.CellSize,
		CellHeight:     hf.CellHeight,
		Cells:          make([]CompactCell, hf.Width*hf.Height),
		Spans:          make([]CompactSpan, spanCount),
		Areas:          make([]uint8, spanCount),
	}
	copy(chf.BMin[:], hf.BMin[:])
	copy(chf.BMax[:], hf.BMax[:])
	chf.BMax[1] += float32(walkableHeight) * hf.CellHeight

	// Fill in cells and spans.
	idx := 0
	for col := 0; col < hf.Width*hf.Height; col++ {
		span := hf.Spans[col]
		if span == nil {
			continue
		}
		cell := &chf.Cells[col]
		cell.Index = idx
		cell.Count = 0
		for ; span != nil; span = span.Next {
			if span.Area == NullArea {
				continue
			}
			bot := span.Max
			top := spanMaxHeight
			if span.Next != nil {
				top = span.Next.Min
			}
			chf.Spans[idx].Y = common.Clamp(bot, 0, spanMaxHeight)
			chf.Spans[idx].H = common.Clamp(top-bot, 0, 0xff)
			chf.Areas[idx] = span.Area
			idx++
			cell.Count++
		}
	}

	// Find neighbour connections.
	const maxLayers = NotConnected - 1
	tooHighLayer := 0
	for z := 0; z < chf.Height; z++ {
		for x := 0; x < chf.Width; x++ {
			cell := &chf.Cells[x+z*chf.Width]
			for i := cell.Index; i < cell.Index+cell.Count; i++ {
				s := &chf.Spans[i]
				for dir := 0; dir < 4; dir++ {
					s.SetCon(dir, NotConnected)
					nx := x + common.DirOffsetX(dir)
					nz := z + common.DirOffsetZ(dir)
					if nx < 0 || nz < 0 || nx >= chf.Width || nz >= chf.Height {
						continue
					}
					// Accept the first neighbour span reachable with enough
					// clearance and a small enough climb.
					ncell := &chf.Cells[nx+nz*chf.Width]
					for k := ncell.Index; k < ncell.Index+ncell.Count; k++ {
						ns := &chf.Spans[k]
						bot := max(s.Y, ns.Y)
						top := min(s.Y+s.H, ns.Y+ns.H)
						if top-bot >= walkableHeight && common.Abs(ns.Y-s.Y) <= walkableClimb {
							layer := k - ncell.Index
							if layer < 0 || layer > maxLayers {
								tooHighLayer = max(tooHighLayer, layer)
								continue
							}
							s.SetCon(dir, layer)
							break
						}
					}
				}
			}
		}
	}

	if tooHighLayer > maxLayers {
		return chf, fmt.Errorf("recast: heightfield has too many layers %d (max %d)", tooHighLayer, maxLayers)
	}
	return chf, nil
}
