package recast

import (
	"fmt"

	"navbake/common"
)

// BorderReg flags region ids that belong to the heightfield border strip.
// Border regions are never merged and never produce contours.
const BorderReg = 0x8000

const nullNei = 0xffff

// calculateDistanceField computes, for every span, twice the chamfer
// distance to the nearest area boundary. Cardinal steps cost 2, diagonal
// steps cost 3.
func calculateDistanceField(chf *CompactHeightfield, src []int) (maxDist int) {
	w := chf.Width
	h := chf.Height

	for i := range src {
		src[i] = 0xffff
	}

	// Mark boundary spans.
	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			cell := &chf.Cells[x+z*w]
			for i := cell.Index; i < cell.Index+cell.Count; i++ {
				if chf.Areas[i] == NullArea {
					src[i] = 0
					continue
				}
				s := &chf.Spans[i]
				area := chf.Areas[i]
				nc := 0
				for dir := 0; dir < 4; dir++ {
					if s.Con(dir) == NotConnected {
						continue
					}
					nx := x + common.DirOffsetX(dir)
					nz := z + common.DirOffsetZ(dir)
					ni := chf.Cells[nx+nz*w].Index + s.Con(dir)
					if chf.Areas[ni] == area {
						nc++
					}
				}
				if nc != 4 {
					src[i] = 0
				}
			}
		}
	}

	// Pass 1: top-left to bottom-right.
	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			cell := &chf.Cells[x+z*w]
			for i := cell.Index; i < cell.Index+cell.Count; i++ {
				s := &chf.Spans[i]

				if s.Con(0) != NotConnected {
					// (-1,0)
					ax := x + common.DirOffsetX(0)
					az := z + common.DirOffsetZ(0)
					ai := chf.Cells[ax+az*w].Index + s.Con(0)
					if src[ai]+2 < src[i] {
						src[i] = src[ai] + 2
					}
					as := &chf.Spans[ai]

					if as.Con(3) != NotConnected {
						// (-1,-1)
						aax := ax + common.DirOffsetX(3)
						aaz := az + common.DirOffsetZ(3)
						aai := chf.Cells[aax+aaz*w].Index + as.Con(3)
						if src[aai]+3 < src[i] {
							src[i] = src[aai] + 3
						}
					}
				}
				if s.Con(3) != NotConnected {
					// (0,-1)
					ax := x + common.DirOffsetX(3)
					az := z + common.DirOffsetZ(3)
					ai := chf.Cells[ax+az*w].Index + s.Con(3)
					if src[ai]+2 < src[i] {
						src[i] = src[ai] + 2
					}
					as := &chf.Spans[ai]

					if as.Con(2) != NotConnected {
						// (1,-1)
						aax := ax + common.DirOffsetX(2)
						aaz := az + common.DirOffsetZ(2)
						aai := chf.Cells[aax+aaz*w].Index + as.Con(2)
						if src[aai]+3 < src[i] {
							src[i] = src[aai] + 3
						}
					}
				}
			}
		}
	}

	// Pass 2: bottom-right to top-left.
	for z := h - 1; z >= 0; z-- {
		for x := w - 1; x >= 0; x-- {
			cell := &chf.Cells[x+z*w]
			for i := cell.Index; i < cell.Index+cell.Count; i++ {
				s := &chf.Spans[i]

				if s.Con(2) != NotConnected {
					// (1,0)
					ax := x + common.DirOffsetX(2)
					az := z + common.DirOffsetZ(2)
					ai := chf.Cells[ax+az*w].Index + s.Con(2)
					if src[ai]+2 < src[i] {
						src[i] = src[ai] + 2
					}
					as := &chf.Spans[ai]

					if as.Con(1) != NotConnected {
						// (1,1)
						aax := ax + common.DirOffsetX(1)
						aaz := az + common.DirOffsetZ(1)
						aai := chf.Cells[aax+aaz*w].Index + as.Con(1)
						if src[aai]+3 < src[i] {
							src[i] = src[aai] + 3
						}
					}
				}
				if s.Con(1) != NotConnected {
					// (0,1)
					ax := x + common.DirOffsetX(1)
					az := z + common.DirOffsetZ(1)
					ai := chf.Cells[ax+az*w].Index + s.Con(1)
					if src[ai]+2 < src[i] {
						src[i] = src[ai] + 2
					}
					as := &chf.Spans[ai]

					if as.Con(0) != NotConnected {
						// (-1,1)
						aax := ax + common.DirOffsetX(0)
						aaz := az + common.DirOffsetZ(0)
						aai := chf.Cells[aax+aaz*w].Index + as.Con(0)
						if src[aai]+3 < src[i] {
							src[i] = src[aai] + 3
						}
					}
				}
			}
		}
	}

	for i := 0; i < chf.SpanCount; i++ {
		if src[i] > maxDist {
			maxDist = src[i]
		}
	}
	return maxDist
}

// boxBlur smooths the distance field with a 3x3 box filter. Values at or
// below thr*2 are kept sharp so thin boundaries survive the blur.
func boxBlur(chf *CompactHeightfield, thr int, src, dst []int) []int {
	w := chf.Width
	h := chf.Height
	thr *= 2

	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			cell := &chf.Cells[x+z*w]
			for i := cell.Index; i < cell.Index+cell.Count; i++ {
				s := &chf.Spans[i]
				cd := src[i]
				if cd <= thr {
					dst[i] = cd
					continue
				}

				d := cd
				for dir := 0; dir < 4; dir++ {
					if s.Con(dir) == NotConnected {
						d += cd * 2
						continue
					}
					ax := x + common.DirOffsetX(dir)
					az := z + common.DirOffsetZ(dir)
					ai := chf.Cells[ax+az*w].Index + s.Con(dir)
					d += src[ai]

					as := &chf.Spans[ai]
					dir2 := (dir + 1) & 0x3
					if as.Con(dir2) == NotConnected {
						d += cd
						continue
					}
					ax2 := ax + common.DirOffsetX(dir2)
					az2 := az + common.DirOffsetZ(dir2)
					ai2 := chf.Cells[ax2+az2*w].Index + as.Con(dir2)
					d += src[ai2]
				}
				dst[i] = (d + 5) / 9
			}
		}
	}
	return dst
}

// BuildDistanceField computes the blurred boundary distance for every span
// and stores it in chf.Dist with the peak in chf.MaxDistance. It must run
// before BuildRegions.
func BuildDistanceField(chf *CompactHeightfield) {
	src := make([]int, chf.SpanCount)
	dst := make([]int, chf.SpanCount)

	chf.MaxDistance = calculateDistanceField(chf, src)
	chf.Dist = boxBlur(chf, 1, src, dst)
}

type levelStackEntry struct {
	x, z  int
	index int
}

func floodRegion(x, z, i, level, r int, chf *CompactHeightfield,
	srcReg, srcDist []int, stack *[]levelStackEntry) bool {
	w := chf.Width
	area := chf.Areas[i]

	*stack = (*stack)[:0]
	*stack = append(*stack, levelStackEntry{x, z, i})
	srcReg[i] = r
	srcDist[i] = 0

	lev := 0
	if level >= 2 {
		lev = level - 2
	}
	count := 0

	for len(*stack) > 0 {
		back := (*stack)[len(*stack)-1]
		*stack = (*stack)[:len(*stack)-1]
		cx, cz, ci := back.x, back.z, back.index

		cs := &chf.Spans[ci]

		// Check if any of the neighbours already have a valid region set.
		ar := 0
		for dir := 0; dir < 4; dir++ {
			// 8 connected
			if cs.Con(dir) == NotConnected {
				continue
			}
			ax := cx + common.DirOffsetX(dir)
			az := cz + common.DirOffsetZ(dir)
			ai := chf.Cells[ax+az*w].Index + cs.Con(dir)
			if chf.Areas[ai] != area {
				continue
			}
			nr := srcReg[ai]
			if nr&BorderReg != 0 {
				// Do not take borders into account.
				continue
			}
			if nr != 0 && nr != r {
				ar = nr
				break
			}

			as := &chf.Spans[ai]
			dir2 := (dir + 1) & 0x3
			if as.Con(dir2) == NotConnected {
				continue
			}
			ax2 := ax + common.DirOffsetX(dir2)
			az2 := az + common.DirOffsetZ(dir2)
			ai2 := chf.Cells[ax2+az2*w].Index + as.Con(dir2)
			if chf.Areas[ai2] != area {
				continue
			}
			nr2 := srcReg[ai2]
			if nr2 != 0 && nr2 != r {
				ar = nr2
				break
			}
		}
		if ar != 0 {
			srcReg[ci] = 0
			continue
		}

		count++

		// Expand neighbours.
		for dir := 0; dir < 4; dir++ {
			if cs.Con(dir) == NotConnected {
				continue
			}
			ax := cx + common.DirOffsetX(dir)
			az := cz + common.DirOffsetZ(dir)
			ai := chf.Cells[ax+az*w].Index + cs.Con(dir)
			if chf.Areas[ai] != area {
				continue
			}
			if chf.Dist[ai] >= lev && srcReg[ai] == 0 {
				srcReg[ai] = r
				srcDist[ai] = 0
				*stack = append(*stack, levelStackEntry{ax, az, ai})
			}
		}
	}

	return count > 0
}

type dirtyEntry struct {
	index     int
	region    int
	distance2 int
}

func expandRegions(maxIter, level int, chf *CompactHeightfield,
	srcReg, srcDist []int, stack *[]levelStackEntry, fillStack bool) {
	w := chf.Width
	h := chf.Height

	if fillStack {
		// Find cells revealed by the raised level.
		*stack = (*stack)[:0]
		for z := 0; z < h; z++ {
			for x := 0; x < w; x++ {
				cell := &chf.Cells[x+z*w]
				for i := cell.Index; i < cell.Index+cell.Count; i++ {
					if chf.Dist[i] >= level && srcReg[i] == 0 && chf.Areas[i] != NullArea {
						*stack = append(*stack, levelStackEntry{x, z, i})
					}
				}
			}
		}
	} else {
		// Use the cells in the input stack, mark assigned ones as consumed.
		for j := range *stack {
			if srcReg[(*stack)[j].index] != 0 {
				(*stack)[j].index = -1
			}
		}
	}

	var dirty []dirtyEntry
	iter := 0
	for len(*stack) > 0 {
		failed := 0
		dirty = dirty[:0]

		for j := range *stack {
			x := (*stack)[j].x
			z := (*stack)[j].z
			i := (*stack)[j].index
			if i < 0 {
				failed++
				continue
			}

			r := srcReg[i]
			d2 := 0xffff
			area := chf.Areas[i]
			s := &chf.Spans[i]
			for dir := 0; dir < 4; dir++ {
				if s.Con(dir) == NotConnected {
					continue
				}
				ax := x + common.DirOffsetX(dir)
				az := z + common.DirOffsetZ(dir)
				ai := chf.Cells[ax+az*w].Index + s.Con(dir)
				if chf.Areas[ai] != area {
					continue
				}
				if srcReg[ai] > 0 && srcReg[ai]&BorderReg == 0 {
					if srcDist[ai]+2 < d2 {
						r = srcReg[ai]
						d2 = srcDist[ai] + 2
					}
				}
			}
			if r != 0 {
				(*stack)[j].index = -1 // mark as used
				dirty = append(dirty, dirtyEntry{i, r, d2})
			} else {
				failed++
			}
		}

		// Copy entries that differ between src and dst to keep them in sync.
		for _, e := range dirty {
			srcReg[e.index] = e.region
			srcDist[e.index] = e.distance2
		}

		if failed == len(*stack) {
			break
		}

		if level > 0 {
			iter++
			if iter >= maxIter {
				break
			}
		}
	}
}

const (
	logNBStacks = 3
	nbStacks    = 1 << logNBStacks
)

func sortCellsByLevel(startLevel int, chf *CompactHeightfield, srcReg []int,
	stacks [][]levelStackEntry, logLevelsPerStack int) {
	w := chf.Width
	h := chf.Height
	startLevel >>= logLevelsPerStack

	for j := range stacks {
		stacks[j] = stacks[j][:0]
	}

	// Put all cells in the level range into the appropriate stacks.
	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			cell := &chf.Cells[x+z*w]
			for i := cell.Index; i < cell.Index+cell.Count; i++ {
				if chf.Areas[i] == NullArea || srcReg[i] != 0 {
					continue
				}
				level := chf.Dist[i] >> logLevelsPerStack
				sID := startLevel - level
				if sID >= len(stacks) {
					continue
				}
				if sID < 0 {
					sID = 0
				}
				stacks[sID] = append(stacks[sID], levelStackEntry{x, z, i})
			}
		}
	}
}

func appendStacks(src []levelStackEntry, dst *[]levelStackEntry, srcReg []int) {
	for _, e := range src {
		if e.index < 0 || srcReg[e.index] != 0 {
			continue
		}
		*dst = append(*dst, e)
	}
}

// region accumulates per-region bookkeeping for the merge and filter passes.
// connections is the ordered neighbour list along the region contour; floors
// lists regions stacked above or below this one in the same columns.
type region struct {
	spanCount        int
	id               int
	area             uint8
	remap            bool
	visited          bool
	overlap          bool
	connectsToBorder bool
	ymin, ymax       int
	connections      []int
	floors           []int
}

func newRegion(id int) *region {
	return &region{id: id, ymin: 0xffff}
}

func (reg *region) removeAdjacentDuplicateConnections() {
	for i := 0; i < len(reg.connections) && len(reg.connections) > 1; {
		ni := (i + 1) % len(reg.connections)
		if reg.connections[i] == reg.connections[ni] {
			reg.connections = append(reg.connections[:i], reg.connections[i+1:]...)
		} else {
			i++
		}
	}
}

func (reg *region) replaceNeighbour(oldID, newID int) {
	changed := false
	for i := range reg.connections {
		if reg.connections[i] == oldID {
			reg.connections[i] = newID
			changed = true
		}
	}
	for i := range reg.floors {
		if reg.floors[i] == oldID {
			reg.floors[i] = newID
		}
	}
	if changed {
		reg.removeAdjacentDuplicateConnections()
	}
}

func (reg *region) addUniqueFloorRegion(n int) {
	for _, f := range reg.floors {
		if f == n {
			return
		}
	}
	reg.floors = append(reg.floors, n)
}

func (reg *region) addUniqueConnection(n int) {
	for _, c := range reg.connections {
		if c == n {
			return
		}
	}
	reg.connections = append(reg.connections, n)
}

func (reg *region) connectedToBorder() bool {
	// A null neighbour id means the contour touches the null region.
	for _, c := range reg.connections {
		if c == 0 {
			return true
		}
	}
	return false
}

func canMergeWithRegion(rega, regb *region) bool {
	if rega.area != regb.area {
		return false
	}
	n := 0
	for _, c := range rega.connections {
		if c == regb.id {
			n++
		}
	}
	if n > 1 {
		return false
	}
	for _, f := range rega.floors {
		if f == regb.id {
			return false
		}
	}
	return true
}

// mergeRegions splices regb's contour neighbour list into rega at the shared
// edge, keeping the combined list in contour order.
func mergeRegions(rega, regb *region) bool {
	aid := rega.id
	bid := regb.id

	acon := make([]int, len(rega.connections))
	copy(acon, rega.connections)
	bcon := regb.connections

	insa := -1
	for i, c := range acon {
		if c == bid {
			insa = i
			break
		}
	}
	if insa == -1 {
		return false
	}

	insb := -1
	for i, c := range bcon {
		if c == aid {
			insb = i
			break
		}
	}
	if insb == -1 {
		return false
	}

	rega.connections = rega.connections[:0]
	for i, n := 0, len(acon); i < n-1; i++ {
		rega.connections = append(rega.connections, acon[(insa+1+i)%n])
	}
	for i, n := 0, len(bcon); i < n-1; i++ {
		rega.connections = append(rega.connections, bcon[(insb+1+i)%n])
	}
	rega.removeAdjacentDuplicateConnections()

	for _, f := range regb.floors {
		rega.addUniqueFloorRegion(f)
	}
	rega.spanCount += regb.spanCount
	regb.spanCount = 0
	regb.connections = regb.connections[:0]

	return true
}

func isSolidEdge(chf *CompactHeightfield, srcReg []int, x, z, i, dir int) bool {
	s := &chf.Spans[i]
	r := 0
	if s.Con(dir) != NotConnected {
		ax := x + common.DirOffsetX(dir)
		az := z + common.DirOffsetZ(dir)
		ai := chf.Cells[ax+az*chf.Width].Index + s.Con(dir)
		r = srcReg[ai]
	}
	return r != srcReg[i]
}

// walkRegionContour walks the boundary of the region containing span i and
// records the sequence of neighbour region ids seen across the edge.
func walkRegionContour(x, z, i, dir int, chf *CompactHeightfield,
	srcReg []int, cont *[]int) {
	w := chf.Width
	startDir := dir
	starti := i

	ss := &chf.Spans[i]
	curReg := 0
	if ss.Con(dir) != NotConnected {
		ax := x + common.DirOffsetX(dir)
		az := z + common.DirOffsetZ(dir)
		ai := chf.Cells[ax+az*w].Index + ss.Con(dir)
		curReg = srcReg[ai]
	}
	*cont = append(*cont, curReg)

	for iter := 0; iter < 40000; iter++ {
		s := &chf.Spans[i]

		if isSolidEdge(chf, srcReg, x, z, i, dir) {
			r := 0
			if s.Con(dir) != NotConnected {
				ax := x + common.DirOffsetX(dir)
				az := z + common.DirOffsetZ(dir)
				ai := chf.Cells[ax+az*w].Index + s.Con(dir)
				r = srcReg[ai]
			}
			if r != curReg {
				curReg = r
				*cont = append(*cont, curReg)
			}
			dir = (dir + 1) & 0x3 // rotate CW
		} else {
			ni := -1
			nx := x + common.DirOffsetX(dir)
			nz := z + common.DirOffsetZ(dir)
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

	// Remove adjacent duplicates.
	for j := 0; len(*cont) > 1 && j < len(*cont); {
		nj := (j + 1) % len(*cont)
		if (*cont)[j] == (*cont)[nj] {
			*cont = append((*cont)[:j], (*cont)[j+1:]...)
		} else {
			j++
		}
	}
}

// mergeAndFilterRegions removes regions smaller than minRegionArea unless
// they touch a tile border, merges regions smaller than mergeRegionSize into
// their smallest compatible neighbour, and compacts the surviving ids into a
// contiguous range starting at 1. Overlapping region ids are returned.
func mergeAndFilterRegions(minRegionArea, mergeRegionSize int, maxRegionID *int,
	chf *CompactHeightfield, srcReg []int) (overlaps []int) {
	w := chf.Width
	h := chf.Height

	nreg := *maxRegionID + 1
	regions := make([]*region, 0, nreg)
	for i := 0; i < nreg; i++ {
		regions = append(regions, newRegion(i))
	}

	// Find the edge of each region and the connections around its contour.
	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			cell := &chf.Cells[x+z*w]
			for i := cell.Index; i < cell.Index+cell.Count; i++ {
				r := srcReg[i]
				if r == 0 || r >= nreg {
					continue
				}

				reg := regions[r]
				reg.spanCount++

				// Update floors.
				for j := cell.Index; j < cell.Index+cell.Count; j++ {
					if i == j {
						continue
					}
					floorID := srcReg[j]
					if floorID == 0 || floorID >= nreg {
						continue
					}
					if floorID == r {
						reg.overlap = true
					}
					reg.addUniqueFloorRegion(floorID)
				}

				// Contour already found.
				if len(reg.connections) > 0 {
					continue
				}

				reg.area = chf.Areas[i]

				// Check if this cell is next to a border.
				ndir := -1
				for dir := 0; dir < 4; dir++ {
					if isSolidEdge(chf, srcReg, x, z, i, dir) {
						ndir = dir
						break
					}
				}
				if ndir != -1 {
					// The cell is at a border; walk around the contour to
					// find all the neighbours.
					walkRegionContour(x, z, i, ndir, chf, srcReg, &reg.connections)
				}
			}
		}
	}

	// Remove too small regions.
	var stack, trace []int
	for i := 0; i < nreg; i++ {
		reg := regions[i]
		if reg.id == 0 || reg.id&BorderReg != 0 {
			continue
		}
		if reg.spanCount == 0 || reg.visited {
			continue
		}

		// Count the total size of all connected regions, and track whether
		// the blob touches a tile border. Border-connected blobs are kept
		// because their true size cannot be estimated.
		connectsToBorder := false
		spanCount := 0
		stack = stack[:0]
		trace = trace[:0]

		reg.visited = true
		stack = append(stack, i)

		for len(stack) > 0 {
			ri := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			creg := regions[ri]
			spanCount += creg.spanCount
			trace = append(trace, ri)

			for _, nei := range creg.connections {
				if nei&BorderReg != 0 {
					connectsToBorder = true
					continue
				}
				neireg := regions[nei]
				if neireg.visited {
					continue
				}
				if neireg.id == 0 || neireg.id&BorderReg != 0 {
					continue
				}
				stack = append(stack, neireg.id)
				neireg.visited = true
			}
		}

		if spanCount < minRegionArea && !connectsToBorder {
			// Kill all visited regions.
			for _, ri := range trace {
				regions[ri].spanCount = 0
				regions[ri].id = 0
			}
		}
	}

	// Merge too small regions into neighbour regions until no candidates
	// remain.
	for {
		mergeCount := 0
		for i := 0; i < nreg; i++ {
			reg := regions[i]
			if reg.id == 0 || reg.id&BorderReg != 0 {
				continue
			}
			if reg.overlap || reg.spanCount == 0 {
				continue
			}
			if reg.spanCount > mergeRegionSize && reg.connectedToBorder() {
				continue
			}

			// Small region, or not connected to a border at all. Find the
			// smallest neighbour that accepts a merge.
			smallest := 0xfffffff
			mergeID := reg.id
			for _, nei := range reg.connections {
				if nei&BorderReg != 0 {
					continue
				}
				mreg := regions[nei]
				if mreg.id == 0 || mreg.id&BorderReg != 0 || mreg.overlap {
					continue
				}
				if mreg.spanCount < smallest &&
					canMergeWithRegion(reg, mreg) && canMergeWithRegion(mreg, reg) {
					smallest = mreg.spanCount
					mergeID = mreg.id
				}
			}
			if mergeID == reg.id {
				continue
			}

			oldID := reg.id
			target := regions[mergeID]
			if mergeRegions(target, reg) {
				// Fix up regions pointing to the merged id.
				for j := 0; j < nreg; j++ {
					other := regions[j]
					if other.id == 0 || other.id&BorderReg != 0 {
						continue
					}
					if other.id == oldID {
						other.id = mergeID
					}
					other.replaceNeighbour(oldID, mergeID)
				}
				mergeCount++
			}
		}
		if mergeCount == 0 {
			break
		}
	}

	// Compress region ids.
	for i := 0; i < nreg; i++ {
		regions[i].remap = regions[i].id != 0 && regions[i].id&BorderReg == 0
	}
	regIDGen := 0
	for i := 0; i < nreg; i++ {
		if !regions[i].remap {
			continue
		}
		oldID := regions[i].id
		regIDGen++
		for j := i; j < nreg; j++ {
			if regions[j].id == oldID {
				regions[j].id = regIDGen
				regions[j].remap = false
			}
		}
	}
	*maxRegionID = regIDGen

	// Remap regions.
	for i := 0; i < chf.SpanCount; i++ {
		if srcReg[i]&BorderReg == 0 {
			srcReg[i] = regions[srcReg[i]].id
		}
	}

	for i := 0; i < nreg; i++ {
		if regions[i].overlap {
			overlaps = append(overlaps, regions[i].id)
		}
	}
	return overlaps
}

// mergeAndFilterLayerRegions flattens monotone regions into 2D layers so
// that regions stacked in the same column never share an id, then removes
// small layers and compacts the ids.
func mergeAndFilterLayerRegions(minRegionArea int, maxRegionID *int,
	chf *CompactHeightfield, srcReg []int) {
	w := chf.Width
	h := chf.Height

	nreg := *maxRegionID + 1
	regions := make([]*region, 0, nreg)
	for i := 0; i < nreg; i++ {
		regions = append(regions, newRegion(i))
	}

	// Find region neighbours and overlapping regions.
	var lregs []int
	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			cell := &chf.Cells[x+z*w]

			lregs = lregs[:0]
			for i := cell.Index; i < cell.Index+cell.Count; i++ {
				s := &chf.Spans[i]
				ri := srcReg[i]
				if ri == 0 || ri >= nreg {
					continue
				}
				reg := regions[ri]

				reg.spanCount++
				if s.Y < reg.ymin {
					reg.ymin = s.Y
				}
				if s.Y > reg.ymax {
					reg.ymax = s.Y
				}

				// Collect all region layers in this column.
				lregs = append(lregs, ri)

				// Update neighbours.
				for dir := 0; dir < 4; dir++ {
					if s.Con(dir) == NotConnected {
						continue
					}
					ax := x + common.DirOffsetX(dir)
					az := z + common.DirOffsetZ(dir)
					ai := chf.Cells[ax+az*w].Index + s.Con(dir)
					rai := srcReg[ai]
					if rai > 0 && rai < nreg && rai != ri {
						reg.addUniqueConnection(rai)
					}
					if rai&BorderReg != 0 {
						reg.connectsToBorder = true
					}
				}
			}

			// Update overlapping regions.
			for i := 0; i < len(lregs)-1; i++ {
				for j := i + 1; j < len(lregs); j++ {
					if lregs[i] != lregs[j] {
						regions[lregs[i]].addUniqueFloorRegion(lregs[j])
						regions[lregs[j]].addUniqueFloorRegion(lregs[i])
					}
				}
			}
		}
	}

	// Create 2D layers from regions.
	layerID := 1
	for i := 0; i < nreg; i++ {
		regions[i].id = 0
	}

	// Merge monotone regions to create non-overlapping areas.
	var stack []int
	for i := 1; i < nreg; i++ {
		root := regions[i]
		if root.id != 0 {
			continue
		}

		root.id = layerID
		stack = append(stack[:0], i)

		for len(stack) > 0 {
			// Pop front.
			reg := regions[stack[0]]
			stack = stack[1:]

			for _, nei := range reg.connections {
				regn := regions[nei]
				if regn.id != 0 {
					continue
				}
				// Skip neighbours that overlap the root region.
				overlap := false
				for _, f := range root.floors {
					if f == nei {
						overlap = true
						break
					}
				}
				if overlap {
					continue
				}

				stack = append(stack, nei)

				regn.id = layerID
				// Merge current layers to root.
				for _, f := range regn.floors {
					root.addUniqueFloorRegion(f)
				}
				if regn.ymin < root.ymin {
					root.ymin = regn.ymin
				}
				if regn.ymax > root.ymax {
					root.ymax = regn.ymax
				}
				root.spanCount += regn.spanCount
				regn.spanCount = 0
				root.connectsToBorder = root.connectsToBorder || regn.connectsToBorder
			}
		}

		layerID++
	}

	// Remove small regions.
	for i := 0; i < nreg; i++ {
		if regions[i].spanCount > 0 && regions[i].spanCount < minRegionArea &&
			!regions[i].connectsToBorder {
			reg := regions[i].id
			for j := 0; j < nreg; j++ {
				if regions[j].id == reg {
					regions[j].id = 0
				}
			}
		}
	}

	// Compress region ids.
	for i := 0; i < nreg; i++ {
		regions[i].remap = regions[i].id != 0 && regions[i].id&BorderReg == 0
	}
	regIDGen := 0
	for i := 0; i < nreg; i++ {
		if !regions[i].remap {
			continue
		}
		oldID := regions[i].id
		regIDGen++
		for j := i; j < nreg; j++ {
			if regions[j].id == oldID {
				regions[j].id = regIDGen
				regions[j].remap = false
			}
		}
	}
	*maxRegionID = regIDGen

	// Remap regions.
	for i := 0; i < chf.SpanCount; i++ {
		if srcReg[i]&BorderReg == 0 {
			srcReg[i] = regions[srcReg[i]].id
		}
	}
}

func paintRectRegion(minx, maxx, minz, maxz, regID int,
	chf *CompactHeightfield, srcReg []int) {
	w := chf.Width
	for z := minz; z < maxz; z++ {
		for x := minx; x < maxx; x++ {
			cell := &chf.Cells[x+z*w]
			for i := cell.Index; i < cell.Index+cell.Count; i++ {
				if chf.Areas[i] != NullArea {
					srcReg[i] = regID
				}
			}
		}
	}
}

// paintBorderRegions assigns the four border strips their own flagged
// regions so the partitioners never grow into them.
func paintBorderRegions(chf *CompactHeightfield, borderSize int, srcReg []int, id *int) {
	w := chf.Width
	h := chf.Height

	// Make sure the border does not overflow.
	bw := borderSize
	if bw > w {
		bw = w
	}
	bh := borderSize
	if bh > h {
		bh = h
	}

	paintRectRegion(0, bw, 0, h, *id|BorderReg, chf, srcReg)
	*id++
	paintRectRegion(w-bw, w, 0, h, *id|BorderReg, chf, srcReg)
	*id++
	paintRectRegion(0, w, 0, bh, *id|BorderReg, chf, srcReg)
	*id++
	paintRectRegion(0, w, h-bh, h, *id|BorderReg, chf, srcReg)
	*id++
}

type sweepSpan struct {
	rid int // row id
	id  int // region id
	ns  int // number of samples
	nei int // neighbour id
}

// sweepRows runs the row-by-row monotone sweep shared by BuildRegionsMonotone
// and BuildLayerRegions, writing provisional region ids into srcReg and
// returning the next free id.
func sweepRows(chf *CompactHeightfield, borderSize, id int, srcReg []int) int {
	w := chf.Width
	h := chf.Height

	sweeps := make([]sweepSpan, w+1)
	var prev []int

	for z := borderSize; z < h-borderSize; z++ {
		// Collect spans from this row.
		if len(prev) < id+1 {
			prev = make([]int, id+1)
		} else {
			prev = prev[:id+1]
		}
		for i := range prev {
			prev[i] = 0
		}
		rid := 1

		for x := borderSize; x < w-borderSize; x++ {
			cell := &chf.Cells[x+z*w]
			for i := cell.Index; i < cell.Index+cell.Count; i++ {
				s := &chf.Spans[i]
				if chf.Areas[i] == NullArea {
					continue
				}

				// -x
				previd := 0
				if s.Con(0) != NotConnected {
					ax := x + common.DirOffsetX(0)
					az := z + common.DirOffsetZ(0)
					ai := chf.Cells[ax+az*w].Index + s.Con(0)
					if srcReg[ai]&BorderReg == 0 && chf.Areas[i] == chf.Areas[ai] {
						previd = srcReg[ai]
					}
				}

				if previd == 0 {
					previd = rid
					rid++
					sweeps[previd].rid = previd
					sweeps[previd].ns = 0
					sweeps[previd].nei = 0
				}

				// -z
				if s.Con(3) != NotConnected {
					ax := x + common.DirOffsetX(3)
					az := z + common.DirOffsetZ(3)
					ai := chf.Cells[ax+az*w].Index + s.Con(3)
					if srcReg[ai] > 0 && srcReg[ai]&BorderReg == 0 && chf.Areas[i] == chf.Areas[ai] {
						nr := srcReg[ai]
						if sweeps[previd].nei == 0 || sweeps[previd].nei == nr {
							sweeps[previd].nei = nr
							sweeps[previd].ns++
							prev[nr]++
						} else {
							sweeps[previd].nei = nullNei
						}
					}
				}

				srcReg[i] = previd
			}
		}

		// Create unique ids: a sweep keeps its neighbour's id only when the
		// neighbour touched it along its whole length.
		for i := 1; i < rid; i++ {
			if sweeps[i].nei != nullNei && sweeps[i].nei != 0 &&
				prev[sweeps[i].nei] == sweeps[i].ns {
				sweeps[i].id = sweeps[i].nei
			} else {
				sweeps[i].id = id
				id++
			}
		}

		// Remap row ids to region ids.
		for x := borderSize; x < w-borderSize; x++ {
			cell := &chf.Cells[x+z*w]
			for i := cell.Index; i < cell.Index+cell.Count; i++ {
				if srcReg[i] > 0 && srcReg[i] < rid {
					srcReg[i] = sweeps[srcReg[i]].id
				}
			}
		}
	}

	return id
}

// BuildRegionsMonotone partitions the walkable surface with a single
// row-by-row sweep. It never produces overlapping regions and needs no
// distance field, at the cost of occasional long thin regions.
func BuildRegionsMonotone(chf *CompactHeightfield, borderSize, minRegionArea, mergeRegionArea int) error {
	srcReg := make([]int, chf.SpanCount)
	id := 1

	if borderSize > 0 {
		paintBorderRegions(chf, borderSize, srcReg, &id)
	}
	chf.BorderSize = borderSize

	id = sweepRows(chf, borderSize, id, srcReg)

	// Merge regions and filter out small regions.
	chf.MaxRegions = id
	mergeAndFilterRegions(minRegionArea, mergeRegionArea, &chf.MaxRegions, chf, srcReg)

	// Monotone partitioning does not generate overlapping regions.
	for i := 0; i < chf.SpanCount; i++ {
		chf.Spans[i].Reg = srcReg[i]
	}
	return nil
}

// BuildRegions partitions the walkable surface with watershed flooding over
// the distance field. Regions grow from local distance maxima outwards,
// which gives well shaped regions without long thin slivers.
// BuildDistanceField must have been called first.
func BuildRegions(chf *CompactHeightfield, borderSize, minRegionArea, mergeRegionArea int) error {
	if chf.Dist == nil {
		return fmt.Errorf("recast: distance field not built")
	}

	buf := make([]int, chf.SpanCount*2)
	srcReg := buf[:chf.SpanCount]
	srcDist := buf[chf.SpanCount:]

	lvlStacks := make([][]levelStackEntry, nbStacks)
	for i := range lvlStacks {
		lvlStacks[i] = make([]levelStackEntry, 0, 256)
	}
	stack := make([]levelStackEntry, 0, 256)

	regionID := 1
	level := (chf.MaxDistance + 1) &^ 1

	// TODO: Figure out a better formula. expandIters defines how much the
	// watershed "overflows" and simplifies the regions; tying it to the
	// agent radius was usually a good indication of how greedy it could be.
	const expandIters = 8

	if borderSize > 0 {
		paintBorderRegions(chf, borderSize, srcReg, &regionID)
	}
	chf.BorderSize = borderSize

	sID := -1
	for level > 0 {
		if level >= 2 {
			level -= 2
		} else {
			level = 0
		}
		sID = (sID + 1) & (nbStacks - 1)

		if sID == 0 {
			sortCellsByLevel(level, chf, srcReg, lvlStacks, 1)
		} else {
			// Copy left overs from the last level.
			appendStacks(lvlStacks[sID-1], &lvlStacks[sID], srcReg)
		}

		// Expand current regions until no empty connected cells are found.
		expandRegions(expandIters, level, chf, srcReg, srcDist, &lvlStacks[sID], false)

		// Mark new regions with ids.
		for _, e := range lvlStacks[sID] {
			if e.index >= 0 && srcReg[e.index] == 0 {
				if floodRegion(e.x, e.z, e.index, level, regionID, chf, srcReg, srcDist, &stack) {
					if regionID == 0xffff {
						return fmt.Errorf("recast: region id overflow")
					}
					regionID++
				}
			}
		}
	}

	// Expand current regions until no empty connected cells are found.
	expandRegions(expandIters*8, 0, chf, srcReg, srcDist, &stack, true)

	// Merge regions and filter out small regions.
	chf.MaxRegions = regionID
	overlaps := mergeAndFilterRegions(minRegionArea, mergeRegionArea, &chf.MaxRegions, chf, srcReg)
	if len(overlaps) > 0 {
		return fmt.Errorf("recast: %d overlapping regions", len(overlaps))
	}

	for i := 0; i < chf.SpanCount; i++ {
		chf.Spans[i].Reg = srcReg[i]
	}
	return nil
}

// BuildLayerRegions partitions the walkable surface into non-overlapping 2D
// layers. The result is meant for layered tile building rather than direct
// contour tracing.
func BuildLayerRegions(chf *CompactHeightfield, borderSize, minRegionArea int) error {
	srcReg := make([]int, chf.SpanCount)
	id := 1

	if borderSize > 0 {
		paintBorderRegions(chf, borderSize, srcReg, &id)
	}
	chf.BorderSize = borderSize

	id = sweepRows(chf, borderSize, id, srcReg)

	// Merge monotone regions into layers and remove small regions.
	chf.MaxRegions = id
	mergeAndFilterLayerRegions(minRegionArea, &chf.MaxRegions, chf, srcReg)

	for i := 0; i < chf.SpanCount; i++ {
		chf.Spans[i].Reg = srcReg[i]
	}
	return nil
}
