package recast

import (
	"math"

	"navbake/common"
)

func overlapBounds(amin, amax, bmin, bmax []float32) bool {
	return amin[0] <= bmax[0] && amax[0] >= bmin[0] &&
		amin[1] <= bmax[1] && amax[1] >= bmin[1] &&
		amin[2] <= bmax[2] && amax[2] >= bmin[2]
}

// AddSpan inserts a span into the heightfield column (x, z), merging it with
// any overlapping spans. Area ids are merged when the span maximums are
// within flagMergeThr of each other; the higher id wins.
func (hf *Heightfield) AddSpan(x, z, smin, smax int, area uint8, flagMergeThr int) {
	newSpan := &Span{Min: smin, Max: smax, Area: area}

	col := x + z*hf.Width
	var prev *Span
	cur := hf.Spans[col]

	for cur != nil {
		if cur.Min > newSpan.Max {
			// Past the new span, insertion point found.
			break
		}
		if cur.Max < newSpan.Min {
			prev = cur
			cur = cur.Next
			continue
		}
		// Overlap, merge into newSpan and unlink cur.
		newSpan.Min = min(newSpan.Min, cur.Min)
		newSpan.Max = max(newSpan.Max, cur.Max)
		if common.Abs(newSpan.Max-cur.Max) <= flagMergeThr {
			newSpan.Area = max(newSpan.Area, cur.Area)
		}
		next := cur.Next
		if prev != nil {
			prev.Next = next
		} else {
			hf.Spans[col] = next
		}
		cur = next
	}

	if prev != nil {
		newSpan.Next = prev.Next
		prev.Next = newSpan
	} else {
		newSpan.Next = hf.Spans[col]
		hf.Spans[col] = newSpan
	}
}

type axis int

const (
	axisX axis = 0
	axisY axis = 1
	axisZ axis = 2
)

// dividePoly splits a convex polygon (max 12 vertices) with an axis-aligned
// plane into the part below the offset (out1) and the part above it (out2).
func dividePoly(in []float32, nin int, out1 []float32, out2 []float32, axisOffset float32, ax axis) (nout1, nout2 int) {
	var delta [12]float32
	for i := 0; i < nin; i++ {
		delta[i] = axisOffset - in[i*3+int(ax)]
	}

	a := 0
	b := nin - 1
	for ; a < nin; b, a = a, a+1 {
		sameSide := (delta[a] >= 0) == (delta[b] >= 0)
		if !sameSide {
			s := delta[b] / (delta[b] - delta[a])
			out1[nout1*3+0] = in[b*3+0] + (in[a*3+0]-in[b*3+0])*s
			out1[nout1*3+1] = in[b*3+1] + (in[a*3+1]-in[b*3+1])*s
			out1[nout1*3+2] = in[b*3+2] + (in[a*3+2]-in[b*3+2])*s
			common.Vcopy(common.Vert(out2, nout2), common.Vert(out1, nout1))
			nout1++
			nout2++
			// Points on the dividing line were already emitted above.
			if delta[a] > 0 {
				common.Vcopy(common.Vert(out1, nout1), common.Vert(in, a))
				nout1++
			} else if delta[a] < 0 {
				common.Vcopy(common.Vert(out2, nout2), common.Vert(in, a))
				nout2++
			}
			continue
		}
		if delta[a] >= 0 {
			common.Vcopy(common.Vert(out1, nout1), common.Vert(in, a))
			nout1++
			if delta[a] != 0 {
				continue
			}
		}
		common.Vcopy(common.Vert(out2, nout2), common.Vert(in, a))
		nout2++
	}
	return nout1, nout2
}

// rasterizeTri clips a triangle against every grid cell it touches and adds
// the resulting vertical extents as spans.
func rasterizeTri(v0, v1, v2 []float32, area uint8, hf *Heightfield, flagMergeThr int) {
	var tmin, tmax [3]float32
	common.Vcopy(tmin[:], v0)
	common.Vcopy(tmax[:], v0)
	common.Vmin(tmin[:], v1)
	common.Vmin(tmin[:], v2)
	common.Vmax(tmax[:], v1)
	common.Vmax(tmax[:], v2)

	if !overlapBounds(tmin[:], tmax[:], hf.BMin[:], hf.BMax[:]) {
		return
	}

	w := hf.Width
	h := hf.Height
	by := hf.BMax[1] - hf.BMin[1]
	ics := 1.0 / hf.CellSize
	ich := 1.0 / hf.CellHeight

	// Footprint of the triangle on the grid's z-axis. -1 keeps the polygon
	// clipped properly at the lower edge.
	z0 := common.Clamp(int((tmin[2]-hf.BMin[2])*ics), -1, h-1)
	z1 := common.Clamp(int((tmax[2]-hf.BMin[2])*ics), 0, h-1)

	// Four clip buffers, 7*3 floats each: a triangle clipped against a
	// square can gain at most four vertices.
	buf := make([]float32, 7*3*4)
	in := buf
	inRow := buf[7*3 : 7*3*2]
	p1 := buf[7*3*2 : 7*3*3]
	p2 := buf[7*3*3:]

	common.Vcopy(in, v0)
	common.Vcopy(in[3:], v1)
	common.Vcopy(in[6:], v2)
	nvIn := 3

	for z := z0; z <= z1; z++ {
		// Clip the polygon to the row; the remainder carries to the next one.
		cellZ := hf.BMin[2] + float32(z)*hf.CellSize
		var nvRow int
		nvRow, nvIn = dividePoly(in, nvIn, inRow, p1, cellZ+hf.CellSize, axisZ)
		in, p1 = p1, in
		if nvRow < 3 || z < 0 {
			continue
		}

		minX := inRow[0]
		maxX := inRow[0]
		for i := 1; i < nvRow; i++ {
			minX = min(minX, inRow[i*3])
			maxX = max(maxX, inRow[i*3])
		}
		x0 := int((minX - hf.BMin[0]) * ics)
		x1 := int((maxX - hf.BMin[0]) * ics)
		if x1 < 0 || x0 >= w {
			continue
		}
		x0 = common.Clamp(x0, -1, w-1)
		x1 = common.Clamp(x1, 0, w-1)

		nv2 := nvRow
		for x := x0; x <= x1; x++ {
			cellX := hf.BMin[0] + float32(x)*hf.CellSize
			var nv int
			nv, nv2 = dividePoly(inRow, nv2, p1, p2, cellX+hf.CellSize, axisX)
			inRow, p2 = p2, inRow
			if nv < 3 || x < 0 {
				continue
			}

			spanMin := p1[1]
			spanMax := p1[1]
			for i := 1; i < nv; i++ {
				spanMin = min(spanMin, p1[i*3+1])
				spanMax = max(spanMax, p1[i*3+1])
			}
			spanMin -= hf.BMin[1]
			spanMax -= hf.BMin[1]
			if spanMax < 0 || spanMin > by {
				continue
			}
			spanMin = max(spanMin, 0)
			spanMax = min(spanMax, by)

			// Snap to the height grid.
			smin := common.Clamp(int(math.Floor(float64(spanMin*ich))), 0, spanMaxHeight)
			smax := common.Clamp(int(math.Ceil(float64(spanMax*ich))), smin+1, spanMaxHeight)

			hf.AddSpan(x, z, smin, smax, area, flagMergeThr)
		}
	}
}

// RasterizeTriangle rasterizes a single triangle into the heightfield.
func RasterizeTriangle(v0, v1, v2 []float32, area uint8, hf *Heightfield, flagMergeThr int) {
	rasterizeTri(v0, v1, v2, area, hf, flagMergeThr)
}

// RasterizeTriangles rasterizes an indexed triangle mesh into the
// heightfield, tagging spans with the per-triangle area ids.
func RasterizeTriangles(verts []float32, tris []int32, areas []uint8, hf *Heightfield, flagMergeThr int) error {
	for i := 0; i < len(tris)/3; i++ {
		v0 := common.Vert(verts, int(tris[i*3+0]))
		v1 := common.Vert(verts, int(tris[i*3+1]))
		v2 := common.Vert(verts, int(tris[i*3+2]))
		rasterizeTri(v0, v1, v2, areas[i], hf, flagMergeThr)
	}
	return nil
}
