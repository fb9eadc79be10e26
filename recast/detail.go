package recast

import (
	"fmt"
	"math"

	"navbake/common"
)

const (
	unsetHeight      = 0xffff
	maxDetailVerts   = 127
	maxDetailTris    = 255
	maxVertsPerEdge  = 32
	retractSize      = 256
	evUndef         = -1
	evHull          = -2
	sampleJitter    = 0.1
)

// PolyMeshDetail carries the per-polygon height detail triangles. Meshes
// holds one entry of 4 values per polygon: base vertex, vertex count, base
// triangle, triangle count. Verts are world-space positions; Tris hold
// three local vertex indices plus an edge flags byte.
type PolyMeshDetail struct {
	Meshes []int
	Verts  []float32
	Tris   []uint8
}

// NMeshes returns the number of submeshes.
func (d *PolyMeshDetail) NMeshes() int { return len(d.Meshes) / 4 }

// heightPatch caches span heights over one polygon's bounding rectangle.
type heightPatch struct {
	data          []int
	xmin, zmin    int
	width, height int
}

func dvdot2D(a, b []float32) float32 {
	return a[0]*b[0] + a[2]*b[2]
}

func dvdistSq2D(p, q []float32) float32 {
	dx := q[0] - p[0]
	dz := q[2] - p[2]
	return dx*dx + dz*dz
}

func dvdist2D(p, q []float32) float32 {
	return float32(math.Sqrt(float64(dvdistSq2D(p, q))))
}

func dvcross2D(p1, p2, p3 []float32) float32 {
	u1 := p2[0] - p1[0]
	v1 := p2[2] - p1[2]
	u2 := p3[0] - p1[0]
	v2 := p3[2] - p1[2]
	return u1*v2 - v1*u2
}

// circumCircle computes the circumcircle of a triangle in coordinates
// relative to p1 for precision. Returns false for degenerate triangles.
func circumCircle(p1, p2, p3, c []float32) (r float32, ok bool) {
	const eps = 1e-6
	v1 := []float32{0, 0, 0}
	v2 := []float32{p2[0] - p1[0], p2[1] - p1[1], p2[2] - p1[2]}
	v3 := []float32{p3[0] - p1[0], p3[1] - p1[1], p3[2] - p1[2]}

	cp := dvcross2D(v1, v2, v3)
	if float32(math.Abs(float64(cp))) > eps {
		v1Sq := dvdot2D(v1, v1)
		v2Sq := dvdot2D(v2, v2)
		v3Sq := dvdot2D(v3, v3)
		c[0] = (v1Sq*(v2[2]-v3[2]) + v2Sq*(v3[2]-v1[2]) + v3Sq*(v1[2]-v2[2])) / (2 * cp)
		c[1] = 0
		c[2] = (v1Sq*(v3[0]-v2[0]) + v2Sq*(v1[0]-v3[0]) + v3Sq*(v2[0]-v1[0])) / (2 * cp)
		r = dvdist2D(c, v1)
		c[0] += p1[0]
		c[1] += p1[1]
		c[2] += p1[2]
		return r, true
	}
	copy(c, p1[:3])
	return 0, false
}

func distPtTri(p, a, b, c []float32) float32 {
	v0 := []float32{c[0] - a[0], c[1] - a[1], c[2] - a[2]}
	v1 := []float32{b[0] - a[0], b[1] - a[1], b[2] - a[2]}
	v2 := []float32{p[0] - a[0], p[1] - a[1], p[2] - a[2]}

	dot00 := dvdot2D(v0, v0)
	dot01 := dvdot2D(v0, v1)
	dot02 := dvdot2D(v0, v2)
	dot11 := dvdot2D(v1, v1)
	dot12 := dvdot2D(v1, v2)

	// Compute barycentric coordinates.
	invDenom := 1.0 / (dot00*dot11 - dot01*dot01)
	u := (dot11*dot02 - dot01*dot12) * invDenom
	v := (dot00*dot12 - dot01*dot02) * invDenom

	// If the point lies inside the triangle, return the interpolated y.
	const eps = 1e-4
	if u >= -eps && v >= -eps && u+v <= 1+eps {
		y := a[1] + v0[1]*u + v1[1]*v
		return float32(math.Abs(float64(y - p[1])))
	}
	return math.MaxFloat32
}

func distancePtSeg(pt, p, q []float32) float32 {
	pqx := q[0] - p[0]
	pqy := q[1] - p[1]
	pqz := q[2] - p[2]
	dx := pt[0] - p[0]
	dy := pt[1] - p[1]
	dz := pt[2] - p[2]
	d := pqx*pqx + pqy*pqy + pqz*pqz
	t := pqx*dx + pqy*dy + pqz*dz
	if d > 0 {
		t /= d
	}
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	dx = p[0] + t*pqx - pt[0]
	dy = p[1] + t*pqy - pt[1]
	dz = p[2] + t*pqz - pt[2]
	return dx*dx + dy*dy + dz*dz
}

func distancePtSeg2D(pt, p, q []float32) float32 {
	pqx := q[0] - p[0]
	pqz := q[2] - p[2]
	dx := pt[0] - p[0]
	dz := pt[2] - p[2]
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
	dx = p[0] + t*pqx - pt[0]
	dz = p[2] + t*pqz - pt[2]
	return dx*dx + dz*dz
}

func distToTriMesh(p, verts []float32, tris []int) float32 {
	dmin := float32(math.MaxFloat32)
	for i := 0; i < len(tris)/4; i++ {
		va := verts[tris[i*4]*3:]
		vb := verts[tris[i*4+1]*3:]
		vc := verts[tris[i*4+2]*3:]
		d := distPtTri(p, va, vb, vc)
		if d < dmin {
			dmin = d
		}
	}
	if dmin == math.MaxFloat32 {
		return -1
	}
	return dmin
}

// distToPoly returns the distance from p to the polygon boundary, negative
// when p is inside.
func distToPoly(nvert int, verts, p []float32) float32 {
	dmin := float32(math.MaxFloat32)
	c := false
	for i, j := 0, nvert-1; i < nvert; j, i = i, i+1 {
		vi := verts[i*3:]
		vj := verts[j*3:]
		if (vi[2] > p[2]) != (vj[2] > p[2]) &&
			p[0] < (vj[0]-vi[0])*(p[2]-vi[2])/(vj[2]-vi[2])+vi[0] {
			c = !c
		}
		d := distancePtSeg2D(p, vj, vi)
		if d < dmin {
			dmin = d
		}
	}
	if c {
		return -dmin
	}
	return dmin
}

// getHeight looks up the height at (fx, fz) in the height patch. When the
// cell is unset it walks neighbour cells in a spiral up to radius, ring by
// ring, keeping the height closest to fy.
func getHeight(fx, fy, fz, ics, ch float32, radius int, hp *heightPatch) int {
	ix := int(math.Floor(float64(fx*ics + 0.01)))
	iz := int(math.Floor(float64(fz*ics + 0.01)))
	ix = common.Clamp(ix-hp.xmin, 0, hp.width-1)
	iz = common.Clamp(iz-hp.zmin, 0, hp.height-1)
	h := hp.data[ix+iz*hp.width]

	if h == unsetHeight {
		// Bad data; spiral outwards looking for a cell with a valid height,
		// stopping at the end of the first ring that produced one.
		x, z, dx, dz := 1, 0, 1, 0
		maxSize := radius*2 + 1
		maxIter := maxSize*maxSize - 1
		nextRingIterStart := 8
		nextRingIters := 16
		dmin := float32(math.MaxFloat32)
		for i := 0; i < maxIter; i++ {
			nx := ix + x
			nz := iz + z
			if nx >= 0 && nz >= 0 && nx < hp.width && nz < hp.height {
				nh := hp.data[nx+nz*hp.width]
				if nh != unsetHeight {
					d := float32(math.Abs(float64(float32(nh)*ch - fy)))
					if d < dmin {
						h = nh
						dmin = d
					}
				}
			}
			if i+1 == nextRingIterStart {
				if h != unsetHeight {
					break
				}
				nextRingIterStart += nextRingIters
				nextRingIters += 8
			}
			if x == z || (x < 0 && x == -z) || (x > 0 && x == 1-z) {
				dx, dz = -dz, dx
			}
			x += dx
			z += dz
		}
	}
	return h
}

func findEdge(edges []int, s, t int) int {
	for i := 0; i < len(edges)/4; i++ {
		e := edges[i*4 : i*4+4]
		if (e[0] == s && e[1] == t) || (e[0] == t && e[1] == s) {
			return i
		}
	}
	return evUndef
}

func addEdge(edges *[]int, maxEdges, s, t, l, r int) error {
	if len(*edges)/4 >= maxEdges {
		return fmt.Errorf("recast: too many detail edges (%d/%d)", len(*edges)/4, maxEdges)
	}
	if findEdge(*edges, s, t) == evUndef {
		*edges = append(*edges, s, t, l, r)
	}
	return nil
}

func updateLeftFace(edges []int, e, s, t, f int) {
	if edges[e] == s && edges[e+1] == t && edges[e+2] == evUndef {
		edges[e+2] = f
	} else if edges[e+1] == s && edges[e] == t && edges[e+3] == evUndef {
		edges[e+3] = f
	}
}

func overlapSegSeg2D(a, b, c, d []float32) bool {
	a1 := dvcross2D(a, b, d)
	a2 := dvcross2D(a, b, c)
	if a1*a2 < 0 {
		a3 := dvcross2D(c, d, a)
		a4 := a3 + a2 - a1
		if a3*a4 < 0 {
			return true
		}
	}
	return false
}

func overlapEdges(pts []float32, edgeList []int, s1, t1 int) bool {
	for i := 0; i < len(edgeList)/4; i++ {
		s0 := edgeList[i*4]
		t0 := edgeList[i*4+1]
		// Same or connected edges do not overlap.
		if s0 == s1 || s0 == t1 || t0 == s1 || t0 == t1 {
			continue
		}
		if overlapSegSeg2D(pts[s0*3:], pts[t0*3:], pts[s1*3:], pts[t1*3:]) {
			return true
		}
	}
	return false
}

// completeFacet finds the best delaunay point to the left of an incomplete
// edge and records the resulting face.
func completeFacet(pts []float32, npts int, edges *[]int, maxEdges, nfaces, e int) (int, error) {
	const eps = 1e-5
	edge := e * 4

	var s, t int
	if (*edges)[edge+2] == evUndef {
		s = (*edges)[edge]
		t = (*edges)[edge+1]
	} else if (*edges)[edge+3] == evUndef {
		s = (*edges)[edge+1]
		t = (*edges)[edge]
	} else {
		// Edge already completed.
		return nfaces, nil
	}

	// Find the best point on the left of the edge.
	pt := npts
	c := []float32{0, 0, 0}
	r := float32(-1)
	for u := 0; u < npts; u++ {
		if u == s || u == t {
			continue
		}
		if dvcross2D(pts[s*3:], pts[t*3:], pts[u*3:]) <= eps {
			continue
		}
		if r < 0 {
			// The circle is not updated yet, do it now.
			pt = u
			r, _ = circumCircle(pts[s*3:], pts[t*3:], pts[u*3:], c)
			continue
		}
		d := dvdist2D(c, pts[u*3:])
		const tol = 0.001
		if d > r*(1+tol) {
			// Outside current circumcircle, skip.
			continue
		} else if d < r*(1-tol) {
			// Inside safe circumcircle, update circle.
			pt = u
			r, _ = circumCircle(pts[s*3:], pts[t*3:], pts[u*3:], c)
		} else {
			// Inside epsilon circumcircle; do extra tests to make sure the
			// edge is valid.
			if overlapEdges(pts, *edges, s, u) {
				continue
			}
			if overlapEdges(pts, *edges, t, u) {
				continue
			}
			pt = u
			r, _ = circumCircle(pts[s*3:], pts[t*3:], pts[u*3:], c)
		}
	}

	// Add new triangle or update edge info if s-t is on the hull.
	if pt < npts {
		updateLeftFace(*edges, e*4, s, t, nfaces)

		e = findEdge(*edges, pt, s)
		if e == evUndef {
			if err := addEdge(edges, maxEdges, pt, s, nfaces, evUndef); err != nil {
				return nfaces, err
			}
		} else {
			updateLeftFace(*edges, e*4, pt, s, nfaces)
		}

		e = findEdge(*edges, t, pt)
		if e == evUndef {
			if err := addEdge(edges, maxEdges, t, pt, nfaces, evUndef); err != nil {
				return nfaces, err
			}
		} else {
			updateLeftFace(*edges, e*4, t, pt, nfaces)
		}
		nfaces++
	} else {
		updateLeftFace(*edges, e*4, s, t, evHull)
	}
	return nfaces, nil
}

// delaunayHull triangulates the point set constrained to the hull edges.
func delaunayHull(npts int, pts []float32, nhull int, hull []int, tris *[]int) error {
	nfaces := 0
	maxEdges := npts * 10
	edges := make([]int, 0, maxEdges*4)

	for i, j := 0, nhull-1; i < nhull; j, i = i, i+1 {
		if err := addEdge(&edges, maxEdges, hull[j], hull[i], evHull, evUndef); err != nil {
			return err
		}
	}

	for currentEdge := 0; currentEdge < len(edges)/4; currentEdge++ {
		var err error
		if edges[currentEdge*4+2] == evUndef {
			if nfaces, err = completeFacet(pts, npts, &edges, maxEdges, nfaces, currentEdge); err != nil {
				return err
			}
		}
		if edges[currentEdge*4+3] == evUndef {
			if nfaces, err = completeFacet(pts, npts, &edges, maxEdges, nfaces, currentEdge); err != nil {
				return err
			}
		}
	}

	// Create triangles from the face information.
	*tris = (*tris)[:0]
	for i := 0; i < nfaces*4; i++ {
		*tris = append(*tris, -1)
	}
	for i := 0; i < len(edges)/4; i++ {
		e := edges[i*4 : i*4+4]
		if e[3] >= 0 {
			// Left face.
			t := (*tris)[e[3]*4 : e[3]*4+4]
			if t[0] == -1 {
				t[0] = e[0]
				t[1] = e[1]
			} else if t[0] == e[1] {
				t[2] = e[0]
			} else if t[1] == e[0] {
				t[2] = e[1]
			}
		}
		if e[2] >= 0 {
			// Right face.
			t := (*tris)[e[2]*4 : e[2]*4+4]
			if t[0] == -1 {
				t[0] = e[1]
				t[1] = e[0]
			} else if t[0] == e[0] {
				t[2] = e[1]
			} else if t[1] == e[1] {
				t[2] = e[0]
			}
		}
	}

	// Remove dangling faces.
	for i := 0; i < len(*tris)/4; i++ {
		t := (*tris)[i*4:]
		if t[0] == -1 || t[1] == -1 || t[2] == -1 {
			n := len(*tris)
			t[0] = (*tris)[n-4]
			t[1] = (*tris)[n-3]
			t[2] = (*tris)[n-2]
			t[3] = (*tris)[n-1]
			*tris = (*tris)[:n-4]
			i--
		}
	}
	return nil
}

// polyMinExtent computes the minimum extent of the polygon: the smallest
// over its edges of the maximum distance from any other vertex to the edge.
// Slivers have a small minimum extent.
func polyMinExtent(verts []float32, nverts int) float32 {
	minDist := float32(math.MaxFloat32)
	for i := 0; i < nverts; i++ {
		ni := (i + 1) % nverts
		p1 := verts[i*3:]
		p2 := verts[ni*3:]
		maxEdgeDist := float32(0)
		for j := 0; j < nverts; j++ {
			if j == i || j == ni {
				continue
			}
			d := distancePtSeg2D(verts[j*3:], p1, p2)
			if d > maxEdgeDist {
				maxEdgeDist = d
			}
		}
		if maxEdgeDist < minDist {
			minDist = maxEdgeDist
		}
	}
	return float32(math.Sqrt(float64(minDist)))
}

// triangulateHull fans the hull into triangles, always advancing the side
// that yields the shorter perimeter. This handles tessellated straight
// edges better than a delaunay triangulation would.
func triangulateHull(verts []float32, nhull int, hull []int, tris *[]int) {
	start, left, right := 0, 1, nhull-1

	// Start from an ear with the shortest perimeter. This tends to favor
	// well formed triangles as the starting point.
	dmin := float32(math.MaxFloat32)
	for i := 0; i < nhull; i++ {
		pi := prev(i, nhull)
		ni := next(i, nhull)
		pv := verts[hull[pi]*3:]
		cv := verts[hull[i]*3:]
		nv := verts[hull[ni]*3:]
		d := dvdist2D(pv, cv) + dvdist2D(cv, nv) + dvdist2D(nv, pv)
		if d < dmin {
			start = i
			left = ni
			right = pi
			dmin = d
		}
	}

	*tris = append(*tris, hull[start], hull[left], hull[right], 0)

	// Triangulate the polygon by moving left or right, depending on which
	// triangle has the shorter perimeter.
	for next(left, nhull) != right {
		nleft := next(left, nhull)
		nright := prev(right, nhull)
		cvleft := verts[hull[left]*3:]
		nvleft := verts[hull[nleft]*3:]
		cvright := verts[hull[right]*3:]
		nvright := verts[hull[nright]*3:]
		dleft := dvdist2D(cvleft, nvleft) + dvdist2D(nvleft, cvright)
		dright := dvdist2D(cvright, nvright) + dvdist2D(cvleft, nvright)

		if dleft < dright {
			*tris = append(*tris, hull[left], hull[nleft], hull[right], 0)
			left = nleft
		} else {
			*tris = append(*tris, hull[left], hull[nright], hull[right], 0)
			right = nright
		}
	}
}

func getJitterX(i int) float32 {
	return float32((i*0x8da6b343)&0xffff)/65535.0*2.0 - 1.0
}

func getJitterZ(i int) float32 {
	return float32((i*0xd8163841)&0xffff)/65535.0*2.0 - 1.0
}

// buildPolyDetail tessellates one polygon: edge samples keep heights
// seamless across polygon boundaries, then interior samples are added where
// the surface deviates more than sampleMaxError from the triangulation.
func buildPolyDetail(in []float32, nin int, sampleDist, sampleMaxError float32,
	heightSearchRadius int, chf *CompactHeightfield, hp *heightPatch,
	verts []float32, tris *[]int) (int, error) {

	var edge [(maxVertsPerEdge + 1) * 3]float32
	var hull [maxDetailVerts]int
	nhull := 0

	nverts := nin
	copy(verts[:nin*3], in[:nin*3])
	*tris = (*tris)[:0]

	cs := chf.CellSize
	ics := 1.0 / cs

	// Calculate the minimum extent of the polygon.
	minExtent := polyMinExtent(verts, nverts)

	// Tessellate outlines. This is done in a separate pass to ensure
	// seamless height values across polygon boundaries.
	if sampleDist > 0 {
		for i, j := 0, nin-1; i < nin; j, i = i, i+1 {
			vj := in[j*3:]
			vi := in[i*3:]
			swapped := false
			// Make sure the segments are always handled in the same order
			// using a lexicographic sort, or else there will be seams.
			if float32(math.Abs(float64(vj[0]-vi[0]))) < 1e-6 {
				if vj[2] > vi[2] {
					vj, vi = vi, vj
					swapped = true
				}
			} else if vj[0] > vi[0] {
				vj, vi = vi, vj
				swapped = true
			}

			// Create samples along the edge.
			dx := vi[0] - vj[0]
			dy := vi[1] - vj[1]
			dz := vi[2] - vj[2]
			d := float32(math.Sqrt(float64(dx*dx + dz*dz)))
			nn := 1 + int(math.Floor(float64(d/sampleDist)))
			if nn >= maxVertsPerEdge {
				nn = maxVertsPerEdge - 1
			}
			if nverts+nn >= maxDetailVerts {
				nn = maxDetailVerts - 1 - nverts
			}
			for k := 0; k <= nn; k++ {
				u := float32(k) / float32(nn)
				pos := edge[k*3 : k*3+3]
				pos[0] = vj[0] + dx*u
				pos[1] = vj[1] + dy*u
				pos[2] = vj[2] + dz*u
				pos[1] = float32(getHeight(pos[0], pos[1], pos[2], ics, chf.CellHeight, heightSearchRadius, hp)) * chf.CellHeight
			}
			// Simplify samples.
			var idx [maxVertsPerEdge]int
			idx[0] = 0
			idx[1] = nn
			nidx := 2
			for k := 0; k < nidx-1; {
				a := idx[k]
				b := idx[k+1]
				va := edge[a*3:]
				vb := edge[b*3:]
				// Find the maximum deviation along the segment.
				maxd := float32(0)
				maxi := -1
				for m := a + 1; m < b; m++ {
					dev := distancePtSeg(edge[m*3:], va, vb)
					if dev > maxd {
						maxd = dev
						maxi = m
					}
				}
				// If the max deviation is larger than the accepted error,
				// add a new point, else continue to the next segment.
				if maxi != -1 && maxd > sampleMaxError*sampleMaxError {
					for m := nidx; m > k; m-- {
						idx[m] = idx[m-1]
					}
					idx[k+1] = maxi
					nidx++
				} else {
					k++
				}
			}

			hull[nhull] = j
			nhull++
			// Add new vertices.
			if swapped {
				for k := nidx - 2; k > 0; k-- {
					copy(verts[nverts*3:nverts*3+3], edge[idx[k]*3:idx[k]*3+3])
					hull[nhull] = nverts
					nhull++
					nverts++
				}
			} else {
				for k := 1; k < nidx-1; k++ {
					copy(verts[nverts*3:nverts*3+3], edge[idx[k]*3:idx[k]*3+3])
					hull[nhull] = nverts
					nhull++
					nverts++
				}
			}
		}
	}

	// If the polygon minimum extent is small (sliver or small triangle),
	// do not try to add internal points.
	if minExtent < sampleDist*2 {
		triangulateHull(verts, nhull, hull[:], tris)
		return nverts, nil
	}

	// Tessellate the base mesh. triangulateHull is used instead of
	// delaunayHull because it creates better triangulations for long thin
	// triangles when there are no internal points.
	triangulateHull(verts, nhull, hull[:], tris)
	if len(*tris) == 0 {
		return nverts, fmt.Errorf("recast: could not triangulate polygon (%d verts)", nverts)
	}

	if sampleDist > 0 {
		// Create sample locations in a grid.
		bmin := []float32{in[0], in[1], in[2]}
		bmax := []float32{in[0], in[1], in[2]}
		for i := 1; i < nin; i++ {
			for k := 0; k < 3; k++ {
				if in[i*3+k] < bmin[k] {
					bmin[k] = in[i*3+k]
				}
				if in[i*3+k] > bmax[k] {
					bmax[k] = in[i*3+k]
				}
			}
		}
		x0 := int(math.Floor(float64(bmin[0] / sampleDist)))
		x1 := int(math.Ceil(float64(bmax[0] / sampleDist)))
		z0 := int(math.Floor(float64(bmin[2] / sampleDist)))
		z1 := int(math.Ceil(float64(bmax[2] / sampleDist)))

		var samples []int
		for z := z0; z < z1; z++ {
			for x := x0; x < x1; x++ {
				pt := []float32{float32(x) * sampleDist, (bmax[1] + bmin[1]) * 0.5, float32(z) * sampleDist}
				// Make sure the samples are not too close to the edges.
				if distToPoly(nin, in, pt) > -sampleDist/2 {
					continue
				}
				samples = append(samples, x,
					getHeight(pt[0], pt[1], pt[2], ics, chf.CellHeight, heightSearchRadius, hp),
					z, 0)
			}
		}

		// Add the samples starting from the one with the most error. Stop
		// when all samples are added or the max error is within threshold.
		nsamples := len(samples) / 4
		for iter := 0; iter < nsamples; iter++ {
			if nverts >= maxDetailVerts {
				break
			}

			// Find the sample with the most error.
			bestpt := []float32{0, 0, 0}
			bestd := float32(0)
			besti := -1
			for i := 0; i < nsamples; i++ {
				s := samples[i*4 : i*4+4]
				if s[3] != 0 {
					continue // already added
				}
				// The sample location is jittered to get rid of some bad
				// triangulations caused by the symmetrical grid structure.
				pt := []float32{
					float32(s[0])*sampleDist + getJitterX(i)*cs*sampleJitter,
					float32(s[1]) * chf.CellHeight,
					float32(s[2])*sampleDist + getJitterZ(i)*cs*sampleJitter,
				}
				d := distToTriMesh(pt, verts, *tris)
				if d < 0 {
					continue // did not hit the mesh
				}
				if d > bestd {
					bestd = d
					besti = i
					bestpt = pt
				}
			}
			// If the max error is within the accepted threshold, stop.
			if bestd <= sampleMaxError || besti == -1 {
				break
			}
			samples[besti*4+3] = 1 // mark as added

			copy(verts[nverts*3:nverts*3+3], bestpt)
			nverts++

			// Create a new triangulation.
			// TODO: Incremental add instead of full rebuild.
			if err := delaunayHull(nverts, verts, nhull, hull[:], tris); err != nil {
				return nverts, err
			}
		}
	}

	ntris := len(*tris) / 4
	if ntris > maxDetailTris {
		*tris = (*tris)[:maxDetailTris*4]
	}
	return nverts, nil
}

// seedArrayWithPolyCenter walks from the span nearest a polygon vertex
// towards the polygon center and seeds the height BFS from there.
func seedArrayWithPolyCenter(chf *CompactHeightfield, meshpoly []int, npoly int,
	verts []int, bs int, hp *heightPatch, queue *[]int) {
	// Reads of the compact heightfield are offset by the border size since
	// the border offset was already removed from the polymesh vertices.
	offset := [9 * 2]int{0, 0, -1, -1, 0, -1, 1, -1, 1, 0, 1, 1, 0, 1, -1, 1, -1, 0}

	// Find the cell closest to a poly vertex.
	startCellX, startCellZ, startSpanIndex := 0, 0, -1
	dmin := unsetHeight
	for j := 0; j < npoly && dmin > 0; j++ {
		for k := 0; k < 9 && dmin > 0; k++ {
			ax := verts[meshpoly[j]*3] + offset[k*2]
			ay := verts[meshpoly[j]*3+1]
			az := verts[meshpoly[j]*3+2] + offset[k*2+1]
			if ax < hp.xmin || ax >= hp.xmin+hp.width ||
				az < hp.zmin || az >= hp.zmin+hp.height {
				continue
			}
			cell := &chf.Cells[(ax+bs)+(az+bs)*chf.Width]
			for i := cell.Index; i < cell.Index+cell.Count && dmin > 0; i++ {
				s := &chf.Spans[i]
				d := ay - s.Y
				if d < 0 {
					d = -d
				}
				if d < dmin {
					startCellX = ax
					startCellZ = az
					startSpanIndex = i
					dmin = d
				}
			}
		}
	}

	// Find the center of the polygon.
	pcx, pcz := 0, 0
	for j := 0; j < npoly; j++ {
		pcx += verts[meshpoly[j]*3]
		pcz += verts[meshpoly[j]*3+2]
	}
	pcx /= npoly
	pcz /= npoly

	// DFS towards the center. Intermediate nodes must be recorded: in rare
	// cases contour simplification can make a direct walk get stuck even
	// though the polygons are convex.
	*queue = (*queue)[:0]
	*queue = append(*queue, startCellX, startCellZ, startSpanIndex)
	dirs := [4]int{0, 1, 2, 3}
	for i := range hp.data {
		hp.data[i] = 0
	}

	cx, cz, ci := -1, -1, -1
	for {
		if len(*queue) < 3 {
			// Walk towards the polygon center failed to reach it.
			break
		}
		n := len(*queue)
		ci = (*queue)[n-1]
		cz = (*queue)[n-2]
		cx = (*queue)[n-3]
		*queue = (*queue)[:n-3]

		if cx == pcx && cz == pcz {
			break
		}

		// If already at the correct x position, prefer the direction
		// directly towards the center on the z axis; otherwise prefer the
		// x axis.
		var directDir int
		if cx == pcx {
			v := -1
			if pcz > cz {
				v = 1
			}
			directDir = common.DirForOffset(0, v)
		} else {
			v := -1
			if pcx > cx {
				v = 1
			}
			directDir = common.DirForOffset(v, 0)
		}

		// Push the direct direction last so it is popped first.
		dirs[3], dirs[directDir] = dirs[directDir], dirs[3]

		cs := &chf.Spans[ci]
		for i := 0; i < 4; i++ {
			dir := dirs[i]
			if cs.Con(dir) == NotConnected {
				continue
			}
			newX := cx + common.DirOffsetX(dir)
			newZ := cz + common.DirOffsetZ(dir)
			hpx := newX - hp.xmin
			hpz := newZ - hp.zmin
			if hpx < 0 || hpx >= hp.width || hpz < 0 || hpz >= hp.height {
				continue
			}
			if hp.data[hpx+hpz*hp.width] != 0 {
				continue
			}
			hp.data[hpx+hpz*hp.width] = 1
			*queue = append(*queue, newX, newZ,
				chf.Cells[(newX+bs)+(newZ+bs)*chf.Width].Index+cs.Con(dir))
		}

		dirs[3], dirs[directDir] = dirs[directDir], dirs[3]
	}

	// getHeightData seeds are given in coordinates with borders.
	*queue = (*queue)[:0]
	*queue = append(*queue, cx+bs, cz+bs, ci)

	for i := range hp.data {
		hp.data[i] = unsetHeight
	}
	cs := &chf.Spans[ci]
	hp.data[cx-hp.xmin+(cz-hp.zmin)*hp.width] = cs.Y
}

// getHeightData fills the height patch with span heights for one polygon:
// directly from spans of the polygon's region, then flood-filled outwards
// from the region borders.
func getHeightData(chf *CompactHeightfield, meshpoly []int, npoly int,
	verts []int, bs int, hp *heightPatch, queue []int, region int) []int {
	queue = queue[:0]
	for i := range hp.data[:hp.width*hp.height] {
		hp.data[i] = unsetHeight
	}

	empty := true

	// The polygon cannot be sampled when it was created from polygons of
	// different regions: it could overlap polygons of those regions and the
	// sampled heights would be wrong.
	if region != MultipleRegs {
		// Copy the height from the same region and mark region borders as
		// seed points for filling the rest.
		for hz := 0; hz < hp.height; hz++ {
			z := hp.zmin + hz + bs
			for hx := 0; hx < hp.width; hx++ {
				x := hp.xmin + hx + bs
				cell := &chf.Cells[x+z*chf.Width]
				for i := cell.Index; i < cell.Index+cell.Count; i++ {
					s := &chf.Spans[i]
					if s.Reg != region {
						continue
					}
					hp.data[hx+hz*hp.width] = s.Y
					empty = false

					border := false
					for dir := 0; dir < 4; dir++ {
						if s.Con(dir) == NotConnected {
							continue
						}
						ax := x + common.DirOffsetX(dir)
						az := z + common.DirOffsetZ(dir)
						ai := chf.Cells[ax+az*chf.Width].Index + s.Con(dir)
						if chf.Spans[ai].Reg != region {
							border = true
							break
						}
					}
					if border {
						queue = append(queue, x, z, i)
					}
					break
				}
			}
		}
	}

	// If the polygon does not contain any points from the current region
	// (rare, but happens) or could overlap polygons of the same region,
	// use the center as the seed point.
	if empty {
		seedArrayWithPolyCenter(chf, meshpoly, npoly, verts, bs, hp, &queue)
	}

	// BFS from the seeds. Assuming the seed is centered in the polygon,
	// this does not walk onto overlapping polygons and sample wrong
	// heights.
	head := 0
	for head*3 < len(queue) {
		cx := queue[head*3]
		cz := queue[head*3+1]
		ci := queue[head*3+2]
		head++
		if head >= retractSize {
			head = 0
			queue = queue[retractSize*3:]
		}

		cs := &chf.Spans[ci]
		for dir := 0; dir < 4; dir++ {
			if cs.Con(dir) == NotConnected {
				continue
			}
			ax := cx + common.DirOffsetX(dir)
			az := cz + common.DirOffsetZ(dir)
			hx := ax - hp.xmin - bs
			hz := az - hp.zmin - bs
			if hx < 0 || hx >= hp.width || hz < 0 || hz >= hp.height {
				continue
			}
			if hp.data[hx+hz*hp.width] != unsetHeight {
				continue
			}
			ai := chf.Cells[ax+az*chf.Width].Index + cs.Con(dir)
			hp.data[hx+hz*hp.width] = chf.Spans[ai].Y
			queue = append(queue, ax, az, ai)
		}
	}
	return queue
}

func getEdgeFlags(va, vb []float32, vpoly []float32, npoly int) uint8 {
	// The edge is part of the polygon boundary when both endpoints sit on
	// one of its edges.
	const thrSqr = 0.001 * 0.001
	for i, j := 0, npoly-1; i < npoly; j, i = i, i+1 {
		if distancePtSeg2D(va, vpoly[j*3:], vpoly[i*3:]) < thrSqr &&
			distancePtSeg2D(vb, vpoly[j*3:], vpoly[i*3:]) < thrSqr {
			return 1
		}
	}
	return 0
}

func getTriFlags(va, vb, vc []float32, vpoly []float32, npoly int) uint8 {
	var flags uint8
	flags |= getEdgeFlags(va, vb, vpoly, npoly) << 0
	flags |= getEdgeFlags(vb, vc, vpoly, npoly) << 2
	flags |= getEdgeFlags(vc, va, vpoly, npoly) << 4
	return flags
}

// BuildPolyMeshDetail builds the detail triangle mesh for every polygon of
// the poly mesh, sampling span heights so the navmesh surface follows the
// original geometry within sampleMaxError.
func BuildPolyMeshDetail(mesh *PolyMesh, chf *CompactHeightfield, sampleDist, sampleMaxError float32) (*PolyMeshDetail, error) {
	dmesh := &PolyMeshDetail{}
	if mesh.NVerts == 0 || mesh.NPolys == 0 {
		return dmesh, nil
	}

	nvp := mesh.NVP
	cs := mesh.CellSize
	ch := mesh.CellHeight
	orig := mesh.BMin
	borderSize := mesh.BorderSize
	heightSearchRadius := int(math.Ceil(float64(mesh.MaxEdgeError)))
	if heightSearchRadius < 1 {
		heightSearchRadius = 1
	}

	var tris []int
	verts := make([]float32, 256*3)
	var queue []int
	hp := &heightPatch{}

	nPolyVerts := 0
	maxhw, maxhh := 0, 0
	bounds := make([]int, mesh.NPolys*4)
	poly := make([]float32, nvp*3)

	// Find the max size of a polygon area.
	for i := 0; i < mesh.NPolys; i++ {
		p := mesh.Polys[i*nvp*2:]
		b := bounds[i*4 : i*4+4]
		b[0] = chf.Width
		b[1] = 0
		b[2] = chf.Height
		b[3] = 0
		for j := 0; j < nvp; j++ {
			if p[j] == MeshNullIdx {
				break
			}
			v := mesh.Verts[p[j]*3:]
			b[0] = min(b[0], v[0])
			b[1] = max(b[1], v[0])
			b[2] = min(b[2], v[2])
			b[3] = max(b[3], v[2])
			nPolyVerts++
		}
		b[0] = max(0, b[0]-1)
		b[1] = min(chf.Width, b[1]+1)
		b[2] = max(0, b[2]-1)
		b[3] = min(chf.Height, b[3]+1)
		if b[0] >= b[1] || b[2] >= b[3] {
			continue
		}
		maxhw = max(maxhw, b[1]-b[0])
		maxhh = max(maxhh, b[3]-b[2])
	}
	hp.data = make([]int, maxhw*maxhh)

	vcap := nPolyVerts + nPolyVerts/2
	tcap := vcap * 2
	dmesh.Meshes = make([]int, mesh.NPolys*4)
	dmesh.Verts = make([]float32, 0, vcap*3)
	dmesh.Tris = make([]uint8, 0, tcap*4)

	for i := 0; i < mesh.NPolys; i++ {
		p := mesh.Polys[i*nvp*2:]

		// Store polygon vertices for processing.
		npoly := 0
		for j := 0; j < nvp; j++ {
			if p[j] == MeshNullIdx {
				break
			}
			v := mesh.Verts[p[j]*3:]
			poly[j*3] = float32(v[0]) * cs
			poly[j*3+1] = float32(v[1]) * ch
			poly[j*3+2] = float32(v[2]) * cs
			npoly++
		}

		// Get the height data from the area of the polygon.
		hp.xmin = bounds[i*4]
		hp.zmin = bounds[i*4+2]
		hp.width = bounds[i*4+1] - bounds[i*4]
		hp.height = bounds[i*4+3] - bounds[i*4+2]
		queue = getHeightData(chf, p[:npoly], npoly, mesh.Verts, borderSize, hp, queue, mesh.Regs[i])

		// Build detail mesh.
		nverts, err := buildPolyDetail(poly, npoly, sampleDist, sampleMaxError,
			heightSearchRadius, chf, hp, verts, &tris)
		if err != nil {
			return nil, err
		}

		// Move detail verts to world space.
		for j := 0; j < nverts; j++ {
			verts[j*3] += orig[0]
			verts[j*3+1] += orig[1] + chf.CellHeight
			verts[j*3+2] += orig[2]
		}
		// Offset the polygon too, it is used for flag checking.
		for j := 0; j < npoly; j++ {
			poly[j*3] += orig[0]
			poly[j*3+1] += orig[1]
			poly[j*3+2] += orig[2]
		}

		// Store the detail submesh.
		ntris := len(tris) / 4
		dmesh.Meshes[i*4] = len(dmesh.Verts) / 3
		dmesh.Meshes[i*4+1] = nverts
		dmesh.Meshes[i*4+2] = len(dmesh.Tris) / 4
		dmesh.Meshes[i*4+3] = ntris

		dmesh.Verts = append(dmesh.Verts, verts[:nverts*3]...)
		for j := 0; j < ntris; j++ {
			t := tris[j*4 : j*4+4]
			dmesh.Tris = append(dmesh.Tris,
				uint8(t[0]), uint8(t[1]), uint8(t[2]),
				getTriFlags(verts[t[0]*3:], verts[t[1]*3:], verts[t[2]*3:], poly, npoly))
		}
	}

	return dmesh, nil
}
