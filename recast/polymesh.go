package recast

import "fmt"

const (
	// MeshNullIdx marks unused vertex slots and open edges in polygon data.
	MeshNullIdx = 0xffff
	// MultipleRegs is the region id given to polygons that ended up
	// covering more than one source region.
	MultipleRegs = 0

	vertexBucketCount = 1 << 12
)

// PolyMesh is the convex polygon mesh built from the contour set. Verts
// holds NVerts vertices in cell units with stride 3. Polys holds NPolys
// entries of 2*NVP values: NVP vertex indices followed by NVP neighbour
// entries, where MeshNullIdx means unused or open and the 0x8000 bit marks
// a portal edge to a tile border.
type PolyMesh struct {
	Verts        []int
	Polys        []int
	Regs         []int
	Areas        []uint8
	Flags        []uint16
	NVerts       int
	NPolys       int
	MaxPolys     int
	NVP          int
	BMin, BMax   [3]float32
	CellSize     float32
	CellHeight   float32
	BorderSize   int
	MaxEdgeError float32
}

type meshEdge struct {
	vert     [2]int
	polyEdge [2]int
	poly     [2]int
}

// buildMeshAdjacency fills the neighbour half of each polygon entry by
// matching shared edges. Based on code by Eric Lengyel:
// https://web.archive.org/web/20080704083314/http://www.terathon.com/code/edges.php
func buildMeshAdjacency(polys []int, npolys, nverts, vertsPerPoly int) {
	maxEdgeCount := npolys * vertsPerPoly
	firstEdge := make([]int, nverts)
	nextEdge := make([]int, maxEdgeCount)
	edges := make([]meshEdge, 0, maxEdgeCount)

	for i := range firstEdge {
		firstEdge[i] = MeshNullIdx
	}

	for i := 0; i < npolys; i++ {
		t := polys[i*vertsPerPoly*2:]
		for j := 0; j < vertsPerPoly; j++ {
			if t[j] == MeshNullIdx {
				break
			}
			v0 := t[j]
			v1 := t[0]
			if j+1 < vertsPerPoly && t[j+1] != MeshNullIdx {
				v1 = t[j+1]
			}
			if v0 < v1 {
				edges = append(edges, meshEdge{
					vert:     [2]int{v0, v1},
					poly:     [2]int{i, i},
					polyEdge: [2]int{j, 0},
				})
				nextEdge[len(edges)-1] = firstEdge[v0]
				firstEdge[v0] = len(edges) - 1
			}
		}
	}

	for i := 0; i < npolys; i++ {
		t := polys[i*vertsPerPoly*2:]
		for j := 0; j < vertsPerPoly; j++ {
			if t[j] == MeshNullIdx {
				break
			}
			v0 := t[j]
			v1 := t[0]
			if j+1 < vertsPerPoly && t[j+1] != MeshNullIdx {
				v1 = t[j+1]
			}
			if v0 > v1 {
				for e := firstEdge[v1]; e != MeshNullIdx; e = nextEdge[e] {
					edge := &edges[e]
					if edge.vert[1] == v0 && edge.poly[0] == edge.poly[1] {
						edge.poly[1] = i
						edge.polyEdge[1] = j
						break
					}
				}
			}
		}
	}

	// Store adjacency.
	for i := range edges {
		e := &edges[i]
		if e.poly[0] != e.poly[1] {
			p0 := polys[e.poly[0]*vertsPerPoly*2:]
			p1 := polys[e.poly[1]*vertsPerPoly*2:]
			p0[vertsPerPoly+e.polyEdge[0]] = e.poly[1]
			p1[vertsPerPoly+e.polyEdge[1]] = e.poly[0]
		}
	}
}

func computeVertexHash(x, y, z int) int {
	// Large multiplicative constants, arbitrarily chosen primes.
	h1 := 0x8da6b343
	h2 := 0xd8163841
	h3 := 0xcb1ab31f
	n := h1*x + h2*y + h3*z
	return n & (vertexBucketCount - 1)
}

// addVertex welds vertices that share x and z and are within two cells in
// height, returning the index of the kept vertex and the new vertex count.
func addVertex(x, y, z int, verts, firstVert, nextVert []int, nv int) (int, int) {
	bucket := computeVertexHash(x, 0, z)
	for i := firstVert[bucket]; i != -1; i = nextVert[i] {
		vy := verts[i*3+1]
		dy := vy - y
		if dy < 0 {
			dy = -dy
		}
		if verts[i*3] == x && dy <= 2 && verts[i*3+2] == z {
			return i, nv
		}
	}

	i := nv
	nv++
	verts[i*3] = x
	verts[i*3+1] = y
	verts[i*3+2] = z
	nextVert[i] = firstVert[bucket]
	firstVert[bucket] = i
	return i, nv
}

const (
	triFlag    = 0x80000000
	triIdxMask = 0x0fffffff
)

// diagonalie reports whether (v_i, v_j) is a proper internal or external
// diagonal of the polygon, ignoring edges incident to v_i and v_j.
func diagonalie(i, j, n int, verts, indices []int) bool {
	d0 := vert4(verts, indices[i]&triIdxMask)
	d1 := vert4(verts, indices[j]&triIdxMask)

	for k := 0; k < n; k++ {
		k1 := next(k, n)
		if k == i || k1 == i || k == j || k1 == j {
			continue
		}
		p0 := vert4(verts, indices[k]&triIdxMask)
		p1 := vert4(verts, indices[k1]&triIdxMask)
		if vequal2D(d0, p0) || vequal2D(d1, p0) || vequal2D(d0, p1) || vequal2D(d1, p1) {
			continue
		}
		if intersect(d0, d1, p0, p1) {
			return false
		}
	}
	return true
}

// inCone reports whether the diagonal (i, j) is strictly internal to the
// polygon in the neighbourhood of the i endpoint.
func inCone(i, j, n int, verts, indices []int) bool {
	pi := vert4(verts, indices[i]&triIdxMask)
	pj := vert4(verts, indices[j]&triIdxMask)
	pi1 := vert4(verts, indices[next(i, n)]&triIdxMask)
	pin1 := vert4(verts, indices[prev(i, n)]&triIdxMask)

	if leftOn(pin1, pi, pi1) {
		return left(pi, pj, pin1) && left(pj, pi, pi1)
	}
	return !(leftOn(pi, pj, pi1) && leftOn(pj, pi, pin1))
}

func diagonal(i, j, n int, verts, indices []int) bool {
	return inCone(i, j, n, verts, indices) && diagonalie(i, j, n, verts, indices)
}

func diagonalieLoose(i, j, n int, verts, indices []int) bool {
	d0 := vert4(verts, indices[i]&triIdxMask)
	d1 := vert4(verts, indices[j]&triIdxMask)

	for k := 0; k < n; k++ {
		k1 := next(k, n)
		if k == i || k1 == i || k == j || k1 == j {
			continue
		}
		p0 := vert4(verts, indices[k]&triIdxMask)
		p1 := vert4(verts, indices[k1]&triIdxMask)
		if vequal2D(d0, p0) || vequal2D(d1, p0) || vequal2D(d0, p1) || vequal2D(d1, p1) {
			continue
		}
		if intersectProp(d0, d1, p0, p1) {
			return false
		}
	}
	return true
}

func inConeLoose(i, j, n int, verts, indices []int) bool {
	pi := vert4(verts, indices[i]&triIdxMask)
	pj := vert4(verts, indices[j]&triIdxMask)
	pi1 := vert4(verts, indices[next(i, n)]&triIdxMask)
	pin1 := vert4(verts, indices[prev(i, n)]&triIdxMask)

	if leftOn(pin1, pi, pi1) {
		return leftOn(pi, pj, pin1) && leftOn(pj, pi, pi1)
	}
	return !(leftOn(pi, pj, pi1) && leftOn(pj, pi, pin1))
}

func diagonalLoose(i, j, n int, verts, indices []int) bool {
	return inConeLoose(i, j, n, verts, indices) && diagonalieLoose(i, j, n, verts, indices)
}

// triangulate ear-clips the polygon described by indices into tris. It
// returns the number of triangles written, negated when the contour was
// degenerate and triangulation only partially succeeded.
func triangulate(n int, verts, indices, tris []int) int {
	ntris := 0
	dst := 0

	// The high bit of an index marks a vertex whose ear can be clipped.
	for i := 0; i < n; i++ {
		i1 := next(i, n)
		i2 := next(i1, n)
		if diagonal(i, i2, n, verts, indices) {
			indices[i1] |= triFlag
		}
	}

	for n > 3 {
		minLen := -1
		mini := -1
		for i := 0; i < n; i++ {
			i1 := next(i, n)
			if indices[i1]&triFlag != 0 {
				p0 := vert4(verts, indices[i]&triIdxMask)
				p2 := vert4(verts, indices[next(i1, n)]&triIdxMask)

				dx := p2[0] - p0[0]
				dz := p2[2] - p0[2]
				length := dx*dx + dz*dz
				if minLen < 0 || length < minLen {
					minLen = length
					mini = i
				}
			}
		}

		if mini == -1 {
			// The contour may have overlapping segments. Retry with a looser
			// inCone test so a crossing diagonal can still be found.
			for i := 0; i < n; i++ {
				i1 := next(i, n)
				i2 := next(i1, n)
				if diagonalLoose(i, i2, n, verts, indices) {
					p0 := vert4(verts, indices[i]&triIdxMask)
					p2 := vert4(verts, indices[next(i2, n)]&triIdxMask)
					dx := p2[0] - p0[0]
					dz := p2[2] - p0[2]
					length := dx*dx + dz*dz
					if minLen < 0 || length < minLen {
						minLen = length
						mini = i
					}
				}
			}
			if mini == -1 {
				// The contour is messed up. This sometimes happens when the
				// contour simplification is too aggressive.
				return -ntris
			}
		}

		i := mini
		i1 := next(i, n)
		i2 := next(i1, n)

		tris[dst] = indices[i] & triIdxMask
		tris[dst+1] = indices[i1] & triIdxMask
		tris[dst+2] = indices[i2] & triIdxMask
		dst += 3
		ntris++

		// Remove P[i1] by shifting P[i+1]...P[n-1] left one index.
		n--
		for k := i1; k < n; k++ {
			indices[k] = indices[k+1]
		}

		if i1 >= n {
			i1 = 0
		}
		i = prev(i1, n)

		// Update diagonal flags.
		if diagonal(prev(i, n), i1, n, verts, indices) {
			indices[i] |= triFlag
		} else {
			indices[i] &= triIdxMask
		}
		if diagonal(i, next(i1, n), n, verts, indices) {
			indices[i1] |= triFlag
		} else {
			indices[i1] &= triIdxMask
		}
	}

	// Append the remaining triangle.
	tris[dst] = indices[0] & triIdxMask
	tris[dst+1] = indices[1] & triIdxMask
	tris[dst+2] = indices[2] & triIdxMask
	ntris++

	return ntris
}

func countPolyVerts(p []int, nvp int) int {
	for i := 0; i < nvp; i++ {
		if p[i] == MeshNullIdx {
			return i
		}
	}
	return nvp
}

func uleft(a, b, c []int) bool {
	return (b[0]-a[0])*(c[2]-a[2])-(c[0]-a[0])*(b[2]-a[2]) < 0
}

// getPolyMergeValue returns the squared length of the shared edge between
// polygons pa and pb when merging them along it keeps the result convex and
// within nvp vertices, or -1 when they cannot merge. ea and eb are the
// shared edge indices in each polygon.
func getPolyMergeValue(pa, pb, verts []int, nvp int) (val, ea, eb int) {
	na := countPolyVerts(pa, nvp)
	nb := countPolyVerts(pb, nvp)

	// If the merged polygon would be too big, do not merge.
	if na+nb-2 > nvp {
		return -1, 0, 0
	}

	// Check if the polygons share an edge.
	ea = -1
	eb = -1
	for i := 0; i < na; i++ {
		va0 := pa[i]
		va1 := pa[(i+1)%na]
		if va0 > va1 {
			va0, va1 = va1, va0
		}
		for j := 0; j < nb; j++ {
			vb0 := pb[j]
			vb1 := pb[(j+1)%nb]
			if vb0 > vb1 {
				vb0, vb1 = vb1, vb0
			}
			if va0 == vb0 && va1 == vb1 {
				ea = i
				eb = j
				break
			}
		}
	}
	if ea == -1 || eb == -1 {
		return -1, 0, 0
	}

	// Check that the merged polygon would be convex.
	va := pa[(ea+na-1)%na]
	vb := pa[ea]
	vc := pb[(eb+2)%nb]
	if !uleft(verts[va*3:], verts[vb*3:], verts[vc*3:]) {
		return -1, 0, 0
	}

	va = pb[(eb+nb-1)%nb]
	vb = pb[eb]
	vc = pa[(ea+2)%na]
	if !uleft(verts[va*3:], verts[vb*3:], verts[vc*3:]) {
		return -1, 0, 0
	}

	va = pa[ea]
	vb = pa[(ea+1)%na]
	dx := verts[va*3] - verts[vb*3]
	dz := verts[va*3+2] - verts[vb*3+2]
	return dx*dx + dz*dz, ea, eb
}

// mergePolyVerts rewrites pa as the union of pa and pb along their shared
// edge (ea, eb).
func mergePolyVerts(pa, pb []int, ea, eb int, tmp []int, nvp int) {
	na := countPolyVerts(pa, nvp)
	nb := countPolyVerts(pb, nvp)

	for i := 0; i < nvp; i++ {
		tmp[i] = MeshNullIdx
	}
	n := 0
	for i := 0; i < na-1; i++ {
		tmp[n] = pa[(ea+1+i)%na]
		n++
	}
	for i := 0; i < nb-1; i++ {
		tmp[n] = pb[(eb+1+i)%nb]
		n++
	}
	copy(pa[:nvp], tmp[:nvp])
}

// canRemoveVertex checks that removing a border vertex leaves enough edges
// to re-triangulate the hole and that the hole boundary is a single loop.
func canRemoveVertex(mesh *PolyMesh, rem int) bool {
	nvp := mesh.NVP

	numTouchedVerts := 0
	numRemainingEdges := 0
	for i := 0; i < mesh.NPolys; i++ {
		p := mesh.Polys[i*nvp*2:]
		nv := countPolyVerts(p, nvp)
		numRemoved := 0
		for j := 0; j < nv; j++ {
			if p[j] == rem {
				numTouchedVerts++
				numRemoved++
			}
		}
		if numRemoved > 0 {
			numRemainingEdges += nv - (numRemoved + 1)
		}
	}

	// Too few edges would remain to create a polygon. This happens for
	// example when the tip of a triangle is marked for deletion but no
	// other polygon shares the vertex.
	if numRemainingEdges <= 2 {
		return false
	}

	// Find edges which share the removed vertex.
	maxEdges := numTouchedVerts * 2
	nedges := 0
	edges := make([]int, maxEdges*3)
	for i := 0; i < mesh.NPolys; i++ {
		p := mesh.Polys[i*nvp*2:]
		nv := countPolyVerts(p, nvp)

		for j, k := 0, nv-1; j < nv; k, j = j, j+1 {
			if p[j] != rem && p[k] != rem {
				continue
			}
			// Arrange the edge so that the removed vertex comes first.
			b := p[k]
			if b == rem {
				b = p[j]
			}

			exists := false
			for m := 0; m < nedges; m++ {
				e := edges[m*3 : m*3+3]
				if e[1] == b {
					// Increment the shared count.
					e[2]++
					exists = true
				}
			}
			if !exists {
				edges[nedges*3] = rem
				edges[nedges*3+1] = b
				edges[nedges*3+2] = 1
				nedges++
			}
		}
	}

	// More than two open edges means two non-adjacent polygons share the
	// removed vertex; do not remove it in that case.
	numOpenEdges := 0
	for i := 0; i < nedges; i++ {
		if edges[i*3+2] < 2 {
			numOpenEdges++
		}
	}
	return numOpenEdges <= 2
}

// removeVertex removes vertex rem from the mesh, collects the boundary of
// the resulting hole and re-triangulates it.
func removeVertex(mesh *PolyMesh, rem, maxTris int) error {
	nvp := mesh.NVP

	numRemovedVerts := 0
	for i := 0; i < mesh.NPolys; i++ {
		p := mesh.Polys[i*nvp*2:]
		nv := countPolyVerts(p, nvp)
		for j := 0; j < nv; j++ {
			if p[j] == rem {
				numRemovedVerts++
			}
		}
	}

	nedges := 0
	edges := make([]int, numRemovedVerts*nvp*4)
	var hole, hreg, harea []int

	for i := 0; i < mesh.NPolys; i++ {
		p := mesh.Polys[i*nvp*2 : i*nvp*2+nvp*2]
		nv := countPolyVerts(p, nvp)
		hasRem := false
		for j := 0; j < nv; j++ {
			if p[j] == rem {
				hasRem = true
			}
		}
		if !hasRem {
			continue
		}

		// Collect edges which do not touch the removed vertex.
		for j, k := 0, nv-1; j < nv; k, j = j, j+1 {
			if p[j] != rem && p[k] != rem {
				e := edges[nedges*4 : nedges*4+4]
				e[0] = p[k]
				e[1] = p[j]
				e[2] = mesh.Regs[i]
				e[3] = int(mesh.Areas[i])
				nedges++
			}
		}
		// Remove the polygon.
		p2 := mesh.Polys[(mesh.NPolys-1)*nvp*2 : mesh.NPolys*nvp*2]
		if &p[0] != &p2[0] {
			copy(p[:nvp], p2[:nvp])
		}
		for j := nvp; j < nvp*2; j++ {
			p[j] = MeshNullIdx
		}
		mesh.Regs[i] = mesh.Regs[mesh.NPolys-1]
		mesh.Areas[i] = mesh.Areas[mesh.NPolys-1]
		mesh.NPolys--
		i--
	}

	// Remove the vertex.
	for i := rem; i < mesh.NVerts-1; i++ {
		copy(mesh.Verts[i*3:i*3+3], mesh.Verts[(i+1)*3:(i+1)*3+3])
	}
	mesh.NVerts--

	// Adjust indices to match the removed vertex layout.
	for i := 0; i < mesh.NPolys; i++ {
		p := mesh.Polys[i*nvp*2:]
		nv := countPolyVerts(p, nvp)
		for j := 0; j < nv; j++ {
			if p[j] > rem {
				p[j]--
			}
		}
	}
	for i := 0; i < nedges; i++ {
		if edges[i*4] > rem {
			edges[i*4]--
		}
		if edges[i*4+1] > rem {
			edges[i*4+1]--
		}
	}

	if nedges == 0 {
		return nil
	}

	// Start with one vertex, keep appending connected segments to the
	// start and end of the hole.
	hole = append(hole, edges[0])
	hreg = append(hreg, edges[2])
	harea = append(harea, edges[3])

	for nedges != 0 {
		match := false
		for i := 0; i < nedges; i++ {
			ea := edges[i*4]
			eb := edges[i*4+1]
			r := edges[i*4+2]
			a := edges[i*4+3]
			add := false
			if hole[0] == eb {
				// The segment matches the beginning of the hole boundary.
				hole = append([]int{ea}, hole...)
				hreg = append([]int{r}, hreg...)
				harea = append([]int{a}, harea...)
				add = true
			} else if hole[len(hole)-1] == ea {
				// The segment matches the end of the hole boundary.
				hole = append(hole, eb)
				hreg = append(hreg, r)
				harea = append(harea, a)
				add = true
			}
			if add {
				// The edge segment was used, remove it.
				copy(edges[i*4:i*4+4], edges[(nedges-1)*4:(nedges-1)*4+4])
				nedges--
				match = true
				i--
			}
		}
		if !match {
			break
		}
	}

	nhole := len(hole)
	tris := make([]int, nhole*3)
	tverts := make([]int, nhole*4)
	thole := make([]int, nhole)

	// Generate a temporary vertex array for triangulation.
	for i := 0; i < nhole; i++ {
		pi := hole[i]
		tverts[i*4] = mesh.Verts[pi*3]
		tverts[i*4+1] = mesh.Verts[pi*3+1]
		tverts[i*4+2] = mesh.Verts[pi*3+2]
		thole[i] = i
	}

	// Triangulate the hole.
	ntris := triangulate(nhole, tverts, thole, tris)
	if ntris < 0 {
		ntris = -ntris
	}

	// Merge the hole triangles back to polygons.
	polys := make([]int, (ntris+1)*nvp)
	pregs := make([]int, ntris)
	pareas := make([]uint8, ntris)
	tmpPoly := polys[ntris*nvp:]

	npolys := 0
	for i := 0; i < ntris*nvp; i++ {
		polys[i] = MeshNullIdx
	}
	for j := 0; j < ntris; j++ {
		t := tris[j*3 : j*3+3]
		if t[0] != t[1] && t[0] != t[2] && t[1] != t[2] {
			polys[npolys*nvp] = hole[t[0]]
			polys[npolys*nvp+1] = hole[t[1]]
			polys[npolys*nvp+2] = hole[t[2]]

			// Polygons covering multiple regions get a special id.
			if hreg[t[0]] != hreg[t[1]] || hreg[t[1]] != hreg[t[2]] {
				pregs[npolys] = MultipleRegs
			} else {
				pregs[npolys] = hreg[t[0]]
			}
			pareas[npolys] = uint8(harea[t[0]])
			npolys++
		}
	}
	if npolys == 0 {
		return nil
	}

	// Merge polygons.
	if nvp > 3 {
		for {
			bestMergeVal := 0
			bestPa, bestPb, bestEa, bestEb := 0, 0, 0, 0
			for j := 0; j < npolys-1; j++ {
				pj := polys[j*nvp:]
				for k := j + 1; k < npolys; k++ {
					pk := polys[k*nvp:]
					v, ea, eb := getPolyMergeValue(pj, pk, mesh.Verts, nvp)
					if v > bestMergeVal {
						bestMergeVal = v
						bestPa, bestPb = j, k
						bestEa, bestEb = ea, eb
					}
				}
			}

			if bestMergeVal <= 0 {
				break
			}
			pa := polys[bestPa*nvp:]
			pb := polys[bestPb*nvp:]
			mergePolyVerts(pa, pb, bestEa, bestEb, tmpPoly, nvp)
			if pregs[bestPa] != pregs[bestPb] {
				pregs[bestPa] = MultipleRegs
			}
			last := polys[(npolys-1)*nvp:]
			if &pb[0] != &last[0] {
				copy(pb[:nvp], last[:nvp])
			}
			pregs[bestPb] = pregs[npolys-1]
			pareas[bestPb] = pareas[npolys-1]
			npolys--
		}
	}

	// Store polygons.
	for i := 0; i < npolys; i++ {
		if mesh.NPolys >= maxTris {
			break
		}
		p := mesh.Polys[mesh.NPolys*nvp*2 : (mesh.NPolys+1)*nvp*2]
		for j := range p {
			p[j] = MeshNullIdx
		}
		copy(p[:nvp], polys[i*nvp:(i+1)*nvp])
		mesh.Regs[mesh.NPolys] = pregs[i]
		mesh.Areas[mesh.NPolys] = pareas[i]
		mesh.NPolys++
		if mesh.NPolys > maxTris {
			return fmt.Errorf("recast: too many polygons %d (max %d)", mesh.NPolys, maxTris)
		}
	}
	return nil
}

// BuildPolyMesh triangulates every contour and merges the triangles into
// convex polygons with up to nvp vertices, welding duplicate vertices and
// computing polygon adjacency. Vertices flagged as border vertices during
// contour tracing are removed so edges match across tiles.
func BuildPolyMesh(cset *ContourSet, nvp int) (*PolyMesh, error) {
	mesh := &PolyMesh{
		BMin:         cset.BMin,
		BMax:         cset.BMax,
		CellSize:     cset.CellSize,
		CellHeight:   cset.CellHeight,
		BorderSize:   cset.BorderSize,
		MaxEdgeError: cset.MaxError,
		NVP:          nvp,
	}

	maxVertices := 0
	maxTris := 0
	maxVertsPerCont := 0
	for i := range cset.Contours {
		nv := cset.Contours[i].NVerts()
		// Skip null contours.
		if nv < 3 {
			continue
		}
		maxVertices += nv
		maxTris += nv - 2
		if nv > maxVertsPerCont {
			maxVertsPerCont = nv
		}
	}
	if maxVertices >= 0xfffe {
		return nil, fmt.Errorf("recast: too many vertices %d", maxVertices)
	}

	vflags := make([]uint8, maxVertices)
	mesh.Verts = make([]int, maxVertices*3)
	mesh.Polys = make([]int, maxTris*nvp*2)
	for i := range mesh.Polys {
		mesh.Polys[i] = MeshNullIdx
	}
	mesh.Regs = make([]int, maxTris)
	mesh.Areas = make([]uint8, maxTris)
	mesh.MaxPolys = maxTris

	nextVert := make([]int, maxVertices)
	firstVert := make([]int, vertexBucketCount)
	for i := range firstVert {
		firstVert[i] = -1
	}

	indices := make([]int, maxVertsPerCont)
	tris := make([]int, maxVertsPerCont*3)
	polys := make([]int, (maxVertsPerCont+1)*nvp)
	tmpPoly := polys[maxVertsPerCont*nvp:]

	for ci := range cset.Contours {
		cont := &cset.Contours[ci]
		if cont.NVerts() < 3 {
			continue
		}

		// Triangulate the contour.
		for j := 0; j < cont.NVerts(); j++ {
			indices[j] = j
		}
		ntris := triangulate(cont.NVerts(), cont.Verts, indices[:cont.NVerts()], tris)
		if ntris <= 0 {
			// Bad triangulation, should not happen.
			ntris = -ntris
		}

		// Add and merge vertices.
		for j := 0; j < cont.NVerts(); j++ {
			v := cont.Verts[j*4 : j*4+4]
			var idx int
			idx, mesh.NVerts = addVertex(v[0], v[1], v[2], mesh.Verts, firstVert, nextVert, mesh.NVerts)
			indices[j] = idx
			if v[3]&BorderVertex != 0 {
				// This vertex should be removed.
				vflags[idx] = 1
			}
		}

		// Build initial polygons.
		npolys := 0
		for i := range polys {
			polys[i] = MeshNullIdx
		}
		for j := 0; j < ntris; j++ {
			t := tris[j*3 : j*3+3]
			if t[0] != t[1] && t[0] != t[2] && t[1] != t[2] {
				polys[npolys*nvp] = indices[t[0]]
				polys[npolys*nvp+1] = indices[t[1]]
				polys[npolys*nvp+2] = indices[t[2]]
				npolys++
			}
		}
		if npolys == 0 {
			continue
		}

		// Merge polygons.
		if nvp > 3 {
			for {
				bestMergeVal := 0
				bestPa, bestPb, bestEa, bestEb := 0, 0, 0, 0
				for j := 0; j < npolys-1; j++ {
					pj := polys[j*nvp:]
					for k := j + 1; k < npolys; k++ {
						pk := polys[k*nvp:]
						v, ea, eb := getPolyMergeValue(pj, pk, mesh.Verts, nvp)
						if v > bestMergeVal {
							bestMergeVal = v
							bestPa, bestPb = j, k
							bestEa, bestEb = ea, eb
						}
					}
				}

				if bestMergeVal <= 0 {
					// Could not merge any polygons, stop.
					break
				}
				pa := polys[bestPa*nvp:]
				pb := polys[bestPb*nvp:]
				mergePolyVerts(pa, pb, bestEa, bestEb, tmpPoly, nvp)
				last := polys[(npolys-1)*nvp:]
				if &pb[0] != &last[0] {
					copy(pb[:nvp], last[:nvp])
				}
				npolys--
			}
		}

		// Store polygons.
		for j := 0; j < npolys; j++ {
			p := mesh.Polys[mesh.NPolys*nvp*2:]
			copy(p[:nvp], polys[j*nvp:(j+1)*nvp])
			mesh.Regs[mesh.NPolys] = cont.Reg
			mesh.Areas[mesh.NPolys] = cont.Area
			mesh.NPolys++
			if mesh.NPolys > maxTris {
				return nil, fmt.Errorf("recast: too many polygons %d (max %d)", mesh.NPolys, maxTris)
			}
		}
	}

	// Remove edge vertices.
	for i := 0; i < mesh.NVerts; i++ {
		if vflags[i] == 0 {
			continue
		}
		if !canRemoveVertex(mesh, i) {
			continue
		}
		if err := removeVertex(mesh, i, maxTris); err != nil {
			return nil, err
		}
		// mesh.NVerts was decremented inside removeVertex; fix up the
		// flags to match.
		copy(vflags[i:], vflags[i+1:mesh.NVerts+1])
		i--
	}

	// Calculate adjacency.
	buildMeshAdjacency(mesh.Polys, mesh.NPolys, mesh.NVerts, nvp)

	// Find portal edges.
	if mesh.BorderSize > 0 {
		w := cset.Width
		h := cset.Height
		for i := 0; i < mesh.NPolys; i++ {
			p := mesh.Polys[i*2*nvp:]
			for j := 0; j < nvp; j++ {
				if p[j] == MeshNullIdx {
					break
				}
				// Skip connected edges.
				if p[nvp+j] != MeshNullIdx {
					continue
				}
				nj := j + 1
				if nj >= nvp || p[nj] == MeshNullIdx {
					nj = 0
				}
				va := mesh.Verts[p[j]*3:]
				vb := mesh.Verts[p[nj]*3:]

				switch {
				case va[0] == 0 && vb[0] == 0:
					p[nvp+j] = 0x8000 | 0
				case va[2] == h && vb[2] == h:
					p[nvp+j] = 0x8000 | 1
				case va[0] == w && vb[0] == w:
					p[nvp+j] = 0x8000 | 2
				case va[2] == 0 && vb[2] == 0:
					p[nvp+j] = 0x8000 | 3
				}
			}
		}
	}

	// The flags array is allocated here but filled by the caller.
	mesh.Flags = make([]uint16, mesh.NPolys)

	if mesh.NVerts > 0xffff {
		return nil, fmt.Errorf("recast: mesh has too many vertices %d (max %d)", mesh.NVerts, 0xffff)
	}
	if mesh.NPolys > 0xffff {
		return nil, fmt.Errorf("recast: mesh has too many polygons %d (max %d)", mesh.NPolys, 0xffff)
	}

	return mesh, nil
}
