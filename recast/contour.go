package recast

import (
	"fmt"
	"sort"

	"navbake/common"
)

const (
	// ContourRegMask extracts the region id from a contour vertex flags
	// field.
	ContourRegMask = 0xffff
	// BorderVertex flags contour vertices that lie on a tile border. They
	// are removed later so that segments match up across tiles.
	BorderVertex = 0x10000
	// AreaBorder flags contour vertices on the border between two areas.
	AreaBorder = 0x20000

	// TessWallEdges requests tessellation of solid edges during contour
	// simplification.
	TessWallEdges = 0x01
	// TessAreaEdges requests tessellation of edges between areas.
	TessAreaEdges = 0x02
)

// Contour is one simplified region outline. Verts holds len/4 vertices with
// stride 4: x, y, z in cell units and a flags field carrying the neighbour
// region id plus BorderVertex and AreaBorder bits. RawVerts keeps the
// unsimplified outline.
type Contour struct {
	Verts    []int
	RawVerts []int
	Reg      int
	Area     uint8
}

// NVerts returns the number of simplified vertices.
func (c *Contour) NVerts() int { return len(c.Verts) / 4 }

// ContourSet holds the simplified outlines of all regions, in the
// coordinate frame of the unpadded heightfield.
type ContourSet struct {
	Contours   []Contour
	BMin, BMax [3]float32
	CellSize   float32
	CellHeight float32
	Width      int
	Height     int
	BorderSize int
	MaxError   float32
}

// getCornerHeight returns the height of the corner ahead of span i in
// direction dir, taking the maximum floor over the up-to-four spans that
// meet there. isBorderVertex is set when the corner sits between two border
// region cells and two matching interior cells.
func getCornerHeight(x, z, i, dir int, chf *CompactHeightfield, isBorderVertex *bool) int {
	w := chf.Width
	s := &chf.Spans[i]
	ch := s.Y
	dirp := (dir + 1) & 0x3

	var regs [4]int

	// Combine region and area codes so border vertices between two areas
	// are not removed.
	regs[0] = chf.Spans[i].Reg | int(chf.Areas[i])<<16

	if s.Con(dir) != NotConnected {
		ax := x + common.DirOffsetX(dir)
		az := z + common.DirOffsetZ(dir)
		ai := chf.Cells[ax+az*w].Index + s.Con(dir)
		as := &chf.Spans[ai]
		if as.Y > ch {
			ch = as.Y
		}
		regs[1] = as.Reg | int(chf.Areas[ai])<<16
		if as.Con(dirp) != NotConnected {
			ax2 := ax + common.DirOffsetX(dirp)
			az2 := az + common.DirOffsetZ(dirp)
			ai2 := chf.Cells[ax2+az2*w].Index + as.Con(dirp)
			as2 := &chf.Spans[ai2]
			if as2.Y > ch {
				ch = as2.Y
			}
			regs[2] = as2.Reg | int(chf.Areas[ai2])<<16
		}
	}
	if s.Con(dirp) != NotConnected {
		ax := x + common.DirOffsetX(dirp)
		az := z + common.DirOffsetZ(dirp)
		ai := chf.Cells[ax+az*w].Index + s.Con(dirp)
		as := &chf.Spans[ai]
		if as.Y > ch {
			ch = as.Y
		}
		regs[3] = as.Reg | int(chf.Areas[ai])<<16
		if as.Con(dir) != NotConnected {
			ax2 := ax + common.DirOffsetX(dir)
			az2 := az + common.DirOffsetZ(dir)
			ai2 := chf.Cells[ax2+az2*w].Index + as.Con(dir)
			as2 := &chf.Spans[ai2]
			if as2.Y > ch {
				ch = as2.Y
			}
			regs[2] = as2.Reg | int(chf.Areas[ai2])<<16
		}
	}

	// The vertex is a border vertex when two same exterior cells in a row
	// are followed by two interior cells and none of the regions are zero.
	for j := 0; j < 4; j++ {
		a := j
		b := (j + 1) & 0x3
		c := (j + 2) & 0x3
		d := (j + 3) & 0x3

		twoSameExts := regs[a]&regs[b]&BorderReg != 0 && regs[a] == regs[b]
		twoInts := (regs[c]|regs[d])&BorderReg == 0
		intsSameArea := regs[c]>>16 == regs[d]>>16
		noZeros := regs[a] != 0 && regs[b] != 0 && regs[c] != 0 && regs[d] != 0
		if twoSameExts && twoInts && intsSameArea && noZeros {
			*isBorderVertex = true
			break
		}
	}

	return ch
}

// walkContour traces the raw outline of the region containing span i,
// starting from one of its unconnected edges marked in flags. Visited edges
// are cleared from flags as it goes.
func walkContour(x, z, i int, chf *CompactHeightfield, flags []int, points *[]int) {
	// Choose the first non-connected edge.
	dir := 0
	for flags[i]&(1<<dir) == 0 {
		dir++
	}

	startDir := dir
	starti := i
	area := chf.Areas[i]
	w := chf.Width

	for iter := 0; iter < 40000; iter++ {
		if flags[i]&(1<<dir) != 0 {
			// Choose the edge corner.
			isBorderVertex := false
			isAreaBorder := false
			px := x
			py := getCornerHeight(x, z, i, dir, chf, &isBorderVertex)
			pz := z
			switch dir {
			case 0:
				pz++
			case 1:
				px++
				pz++
			case 2:
				px++
			}
			r := 0
			s := &chf.Spans[i]
			if s.Con(dir) != NotConnected {
				ax := x + common.DirOffsetX(dir)
				az := z + common.DirOffsetZ(dir)
				ai := chf.Cells[ax+az*w].Index + s.Con(dir)
				r = chf.Spans[ai].Reg
				if area != chf.Areas[ai] {
					isAreaBorder = true
				}
			}
			if isBorderVertex {
				r |= BorderVertex
			}
			if isAreaBorder {
				r |= AreaBorder
			}
			*points = append(*points, px, py, pz, r)

			flags[i] &^= 1 << dir // remove visited edge
			dir = (dir + 1) & 0x3 // rotate CW
		} else {
			ni := -1
			nx := x + common.DirOffsetX(dir)
			nz := z + common.DirOffsetZ(dir)
			s := &chf.Spans[i]
			if s.Con(dir) != NotConnected {
				ni = chf.Cells[nx+nz*w].Index + s.Con(dir)
			}
			if ni == -1 {
				// Should not happen.
				return
			}
			x = nx
			z = nz
			i = ni
			dir = (dir + 3) & 0x3 // rotate CCW
		}

		if starti == i && startDir == dir {
			break
		}
	}
}

func distancePtSegSq2D(x, z, px, pz, qx, qz int) float64 {
	pqx := float64(qx - px)
	pqz := float64(qz - pz)
	dx := float64(x - px)
	dz := float64(z - pz)
	d := pqx*pqx + pqz*pqz
	t := pqx*dx + pqz*dz
	if d > 0 {
		t /= d
	}
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	dx = float64(px) + t*pqx - float64(x)
	dz = float64(pz) + t*pqz - float64(z)
	return dx*dx + dz*dz
}

// simplifyContour reduces the raw outline to the vertices that matter:
// points where the neighbour region changes are mandatory, the rest are
// kept only while the raw outline deviates more than maxError from the
// simplified shape. Long edges are optionally split.
func simplifyContour(points []int, simplified *[]int, maxError float32, maxEdgeLen, buildFlags int) {
	// Add initial points.
	hasConnections := false
	for i := 0; i < len(points); i += 4 {
		if points[i+3]&ContourRegMask != 0 {
			hasConnections = true
			break
		}
	}

	if hasConnections {
		// The contour has some portals to other regions. Add a new point to
		// every location where the region changes.
		ni := len(points) / 4
		for i := 0; i < ni; i++ {
			ii := (i + 1) % ni
			differentRegs := points[i*4+3]&ContourRegMask != points[ii*4+3]&ContourRegMask
			areaBorders := points[i*4+3]&AreaBorder != points[ii*4+3]&AreaBorder
			if differentRegs || areaBorders {
				*simplified = append(*simplified, points[i*4], points[i*4+1], points[i*4+2], i)
			}
		}
	}

	if len(*simplified) == 0 {
		// No connections at all: seed the simplification with the
		// lower-left and upper-right vertices of the contour.
		llx, lly, llz, lli := points[0], points[1], points[2], 0
		urx, ury, urz, uri := points[0], points[1], points[2], 0
		for i := 0; i < len(points); i += 4 {
			x := points[i]
			y := points[i+1]
			z := points[i+2]
			if x < llx || (x == llx && z < llz) {
				llx, lly, llz, lli = x, y, z, i/4
			}
			if x > urx || (x == urx && z > urz) {
				urx, ury, urz, uri = x, y, z, i/4
			}
		}
		*simplified = append(*simplified, llx, lly, llz, lli)
		*simplified = append(*simplified, urx, ury, urz, uri)
	}

	// Add points until all raw points are within error tolerance of the
	// simplified shape.
	pn := len(points) / 4
	for i := 0; i < len(*simplified)/4; {
		ii := (i + 1) % (len(*simplified) / 4)

		ax := (*simplified)[i*4]
		az := (*simplified)[i*4+2]
		ai := (*simplified)[i*4+3]

		bx := (*simplified)[ii*4]
		bz := (*simplified)[ii*4+2]
		bi := (*simplified)[ii*4+3]

		// Find maximum deviation from the segment.
		maxd := float64(0)
		maxi := -1
		var ci, cinc, endi int

		// Traverse the segment in lexicographic order so the max deviation
		// comes out the same when traversing opposite segments.
		if bx > ax || (bx == ax && bz > az) {
			cinc = 1
			ci = (ai + cinc) % pn
			endi = bi
		} else {
			cinc = pn - 1
			ci = (bi + cinc) % pn
			endi = ai
			ax, bx = bx, ax
			az, bz = bz, az
		}

		// Tessellate only outer edges or edges between areas.
		if points[ci*4+3]&ContourRegMask == 0 || points[ci*4+3]&AreaBorder != 0 {
			for ci != endi {
				d := distancePtSegSq2D(points[ci*4], points[ci*4+2], ax, az, bx, bz)
				if d > maxd {
					maxd = d
					maxi = ci
				}
				ci = (ci + cinc) % pn
			}
		}

		// If the max deviation is larger than accepted error, add a new
		// point, else continue to the next segment.
		if maxi != -1 && maxd > float64(maxError)*float64(maxError) {
			*simplified = insertSimplifiedPoint(*simplified, i+1,
				points[maxi*4], points[maxi*4+1], points[maxi*4+2], maxi)
		} else {
			i++
		}
	}

	// Split too long edges.
	if maxEdgeLen > 0 && buildFlags&(TessWallEdges|TessAreaEdges) != 0 {
		for i := 0; i < len(*simplified)/4; {
			ii := (i + 1) % (len(*simplified) / 4)

			ax := (*simplified)[i*4]
			az := (*simplified)[i*4+2]
			ai := (*simplified)[i*4+3]

			bx := (*simplified)[ii*4]
			bz := (*simplified)[ii*4+2]
			bi := (*simplified)[ii*4+3]

			maxi := -1
			ci := (ai + 1) % pn

			tess := false
			if buildFlags&TessWallEdges != 0 && points[ci*4+3]&ContourRegMask == 0 {
				tess = true
			}
			if buildFlags&TessAreaEdges != 0 && points[ci*4+3]&AreaBorder != 0 {
				tess = true
			}

			if tess {
				dx := bx - ax
				dz := bz - az
				if dx*dx+dz*dz > maxEdgeLen*maxEdgeLen {
					// Round based on lexicographic order so the tessellation
					// is the same regardless of traversal direction.
					n := bi - ai
					if bi < ai {
						n = bi + pn - ai
					}
					if n > 1 {
						if bx > ax || (bx == ax && bz > az) {
							maxi = (ai + n/2) % pn
						} else {
							maxi = (ai + (n+1)/2) % pn
						}
					}
				}
			}

			if maxi != -1 {
				*simplified = insertSimplifiedPoint(*simplified, i+1,
					points[maxi*4], points[maxi*4+1], points[maxi*4+2], maxi)
			} else {
				i++
			}
		}
	}

	for i := 0; i < len(*simplified)/4; i++ {
		// The edge vertex flag is taken from the current raw point and the
		// neighbour region from the next raw point.
		ai := ((*simplified)[i*4+3] + 1) % pn
		bi := (*simplified)[i*4+3]
		(*simplified)[i*4+3] = points[ai*4+3]&(ContourRegMask|AreaBorder) |
			points[bi*4+3]&BorderVertex
	}
}

func insertSimplifiedPoint(simplified []int, at, x, y, z, idx int) []int {
	simplified = append(simplified, 0, 0, 0, 0)
	copy(simplified[(at+1)*4:], simplified[at*4:])
	simplified[at*4] = x
	simplified[at*4+1] = y
	simplified[at*4+2] = z
	simplified[at*4+3] = idx
	return simplified
}

func calcAreaOfPolygon2D(verts []int, nverts int) int {
	area := 0
	for i, j := 0, nverts-1; i < nverts; j, i = i, i+1 {
		vi := vert4(verts, i)
		vj := vert4(verts, j)
		area += vi[0]*vj[2] - vj[0]*vi[2]
	}
	return (area + 1) / 2
}

// removeDegenerateSegments drops adjacent vertices that are equal on the
// xz-plane, which would otherwise confuse the triangulator.
func removeDegenerateSegments(simplified []int) []int {
	npts := len(simplified) / 4
	for i := 0; i < npts; i++ {
		ni := next(i, npts)
		if vequal2D(vert4(simplified, i), vert4(simplified, ni)) {
			copy(simplified[i*4:], simplified[(i+1)*4:])
			simplified = simplified[:len(simplified)-4]
			npts--
		}
	}
	return simplified
}

func contourInCone(i, n int, verts, pj []int) bool {
	pi := vert4(verts, i)
	pi1 := vert4(verts, next(i, n))
	pin1 := vert4(verts, prev(i, n))

	// If P[i] is a convex vertex (i+1 left or on (i-1,i)).
	if leftOn(pin1, pi, pi1) {
		return left(pi, pj, pin1) && left(pj, pi, pi1)
	}
	// Assume (i-1, i, i+1) not collinear; P[i] is reflex.
	return !(leftOn(pi, pj, pi1) && leftOn(pj, pi, pin1))
}

func intersectSegContour(d0, d1 []int, i, n int, verts []int) bool {
	// For each edge (k, k+1) of P.
	for k := 0; k < n; k++ {
		k1 := next(k, n)
		// Skip edges incident to i.
		if i == k || i == k1 {
			continue
		}
		p0 := vert4(verts, k)
		p1 := vert4(verts, k1)
		if vequal2D(d0, p0) || vequal2D(d1, p0) || vequal2D(d0, p1) || vequal2D(d1, p1) {
			continue
		}
		if intersect(d0, d1, p0, p1) {
			return true
		}
	}
	return false
}

// mergeContours splices contour b into contour a with a degenerate edge
// between vertex ia of a and vertex ib of b. b is emptied.
func mergeContours(a, b *Contour, ia, ib int) {
	na := a.NVerts()
	nb := b.NVerts()
	verts := make([]int, 0, (na+nb+2)*4)

	// Copy contour a.
	for i := 0; i <= na; i++ {
		src := vert4(a.Verts, (ia+i)%na)
		verts = append(verts, src[0], src[1], src[2], src[3])
	}
	// Copy contour b.
	for i := 0; i <= nb; i++ {
		src := vert4(b.Verts, (ib+i)%nb)
		verts = append(verts, src[0], src[1], src[2], src[3])
	}

	a.Verts = verts
	b.Verts = nil
}

type contourHole struct {
	contour    *Contour
	minx, minz int
	leftmost   int
}

type contourRegion struct {
	outline *Contour
	holes   []*contourHole
}

type potentialDiagonal struct {
	vert int
	dist int
}

// findLeftMostVertex finds the lowest, leftmost vertex of a contour.
func findLeftMostVertex(c *Contour) (minx, minz, leftmost int) {
	minx = c.Verts[0]
	minz = c.Verts[2]
	for i := 1; i < c.NVerts(); i++ {
		x := c.Verts[i*4]
		z := c.Verts[i*4+2]
		if x < minx || (x == minx && z < minz) {
			minx = x
			minz = z
			leftmost = i
		}
	}
	return minx, minz, leftmost
}

// mergeRegionHoles merges all holes of a region into its outline via the
// shortest non-intersecting diagonals, left to right.
func mergeRegionHoles(region *contourRegion) {
	for _, h := range region.holes {
		h.minx, h.minz, h.leftmost = findLeftMostVertex(h.contour)
	}
	sort.Slice(region.holes, func(i, j int) bool {
		a, b := region.holes[i], region.holes[j]
		if a.minx != b.minx {
			return a.minx < b.minx
		}
		return a.minz < b.minz
	})

	maxVerts := region.outline.NVerts()
	for _, h := range region.holes {
		maxVerts += h.contour.NVerts()
	}
	diags := make([]potentialDiagonal, 0, maxVerts)

	outline := region.outline

	// Merge the holes into the outline one by one.
	for i, h := range region.holes {
		hole := h.contour

		index := -1
		bestVertex := h.leftmost
		for iter := 0; iter < hole.NVerts(); iter++ {
			// Find potential diagonals: the best vertex must be in the cone
			// described by three consecutive vertices of the outline.
			diags = diags[:0]
			corner := vert4(hole.Verts, bestVertex)
			for j := 0; j < outline.NVerts(); j++ {
				if contourInCone(j, outline.NVerts(), outline.Verts, corner) {
					dx := outline.Verts[j*4] - corner[0]
					dz := outline.Verts[j*4+2] - corner[2]
					diags = append(diags, potentialDiagonal{vert: j, dist: dx*dx + dz*dz})
				}
			}
			// Shortest diagonals first.
			sort.Slice(diags, func(a, b int) bool { return diags[a].dist < diags[b].dist })

			// Find a diagonal that is not intersecting the outline nor the
			// remaining holes.
			index = -1
			for j := range diags {
				pt := vert4(outline.Verts, diags[j].vert)
				intersects := intersectSegContour(pt, corner, diags[j].vert, outline.NVerts(), outline.Verts)
				for k := i; k < len(region.holes) && !intersects; k++ {
					intersects = intersectSegContour(pt, corner, -1,
						region.holes[k].contour.NVerts(), region.holes[k].contour.Verts)
				}
				if !intersects {
					index = diags[j].vert
					break
				}
			}
			// If found non-intersecting diagonal, stop looking.
			if index != -1 {
				break
			}
			// All the potential diagonals for the current vertex were
			// intersecting; try the next vertex.
			bestVertex = (bestVertex + 1) % hole.NVerts()
		}

		if index == -1 {
			continue
		}
		mergeContours(region.outline, hole, index, bestVertex)
	}
}

// BuildContours traces and simplifies the outline of every region in the
// compact heightfield. Vertices at portals between regions are mandatory so
// neighbouring contours match up; maxError bounds the deviation of the
// simplified outline from the raw one, and maxEdgeLen splits long edges
// when buildFlags requests tessellation. Holes are merged into their
// region's outline.
func BuildContours(chf *CompactHeightfield, maxError float32, maxEdgeLen, buildFlags int) (*ContourSet, error) {
	w := chf.Width
	h := chf.Height
	borderSize := chf.BorderSize

	cset := &ContourSet{
		BMin:       chf.BMin,
		BMax:       chf.BMax,
		CellSize:   chf.CellSize,
		CellHeight: chf.CellHeight,
		Width:      w - borderSize*2,
		Height:     h - borderSize*2,
		BorderSize: borderSize,
		MaxError:   maxError,
	}
	if borderSize > 0 {
		// Remove the padding offset from the bounds.
		pad := float32(borderSize) * chf.CellSize
		cset.BMin[0] += pad
		cset.BMin[2] += pad
		cset.BMax[0] -= pad
		cset.BMax[2] -= pad
	}

	// Mark boundaries: for each span a bit per direction where the
	// neighbour belongs to another region.
	flags := make([]int, chf.SpanCount)
	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			cell := &chf.Cells[x+z*w]
			for i := cell.Index; i < cell.Index+cell.Count; i++ {
				s := &chf.Spans[i]
				if s.Reg == 0 || s.Reg&BorderReg != 0 {
					flags[i] = 0
					continue
				}
				res := 0
				for dir := 0; dir < 4; dir++ {
					r := 0
					if s.Con(dir) != NotConnected {
						ax := x + common.DirOffsetX(dir)
						az := z + common.DirOffsetZ(dir)
						ai := chf.Cells[ax+az*w].Index + s.Con(dir)
						r = chf.Spans[ai].Reg
					}
					if r == s.Reg {
						res |= 1 << dir
					}
				}
				flags[i] = res ^ 0xf // inverse, mark non-connected edges
			}
		}
	}

	verts := make([]int, 0, 256)
	simplified := make([]int, 0, 64)

	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			cell := &chf.Cells[x+z*w]
			for i := cell.Index; i < cell.Index+cell.Count; i++ {
				if flags[i] == 0 || flags[i] == 0xf {
					flags[i] = 0
					continue
				}
				reg := chf.Spans[i].Reg
				if reg == 0 || reg&BorderReg != 0 {
					continue
				}
				area := chf.Areas[i]

				verts = verts[:0]
				simplified = simplified[:0]

				walkContour(x, z, i, chf, flags, &verts)
				simplifyContour(verts, &simplified, maxError, maxEdgeLen, buildFlags)
				simplified = removeDegenerateSegments(simplified)

				if len(simplified)/4 < 3 {
					continue
				}

				cont := Contour{
					Verts:    append([]int(nil), simplified...),
					RawVerts: append([]int(nil), verts...),
					Reg:      reg,
					Area:     area,
				}
				if borderSize > 0 {
					// Remove the padding offset from the vertices.
					for j := 0; j < len(cont.Verts); j += 4 {
						cont.Verts[j] -= borderSize
						cont.Verts[j+2] -= borderSize
					}
					for j := 0; j < len(cont.RawVerts); j += 4 {
						cont.RawVerts[j] -= borderSize
						cont.RawVerts[j+2] -= borderSize
					}
				}
				cset.Contours = append(cset.Contours, cont)
			}
		}
	}

	// Merge holes.
	if len(cset.Contours) > 0 {
		// Calculate the winding of all polygons; contours wound backwards
		// are holes.
		winding := make([]int, len(cset.Contours))
		nholes := 0
		for i := range cset.Contours {
			cont := &cset.Contours[i]
			winding[i] = 1
			if calcAreaOfPolygon2D(cont.Verts, cont.NVerts()) < 0 {
				winding[i] = -1
				nholes++
			}
		}

		if nholes > 0 {
			// Collect the outline contour and hole contours per region,
			// assuming one outline and multiple holes.
			nregions := chf.MaxRegions + 1
			regions := make([]contourRegion, nregions)
			holeCounts := make([]int, nregions)

			for i := range cset.Contours {
				cont := &cset.Contours[i]
				if winding[i] > 0 {
					if regions[cont.Reg].outline != nil {
						return nil, fmt.Errorf("recast: region %d has multiple outlines", cont.Reg)
					}
					regions[cont.Reg].outline = cont
				} else {
					holeCounts[cont.Reg]++
				}
			}
			for i := range regions {
				if holeCounts[i] > 0 {
					regions[i].holes = make([]*contourHole, 0, holeCounts[i])
				}
			}
			for i := range cset.Contours {
				cont := &cset.Contours[i]
				if winding[i] < 0 {
					regions[cont.Reg].holes = append(regions[cont.Reg].holes, &contourHole{contour: cont})
				}
			}

			for i := range regions {
				reg := &regions[i]
				if len(reg.holes) == 0 {
					continue
				}
				if reg.outline != nil {
					mergeRegionHoles(reg)
				} else {
					// The region has no outline. This can happen when the
					// contour becomes self-overlapping because of too
					// aggressive simplification.
					return nil, fmt.Errorf("recast: bad outline for region %d", i)
				}
			}
		}
	}

	return cset, nil
}
