package recast

import "navbake/common"

// ErodeWalkableArea shrinks the walkable area by erosionRadius cells so that
// agents keep clearance from walls. A two-pass chamfer distance transform
// approximates the distance to the nearest boundary; spans closer than the
// radius lose their walkable area.
func ErodeWalkableArea(erosionRadius int, chf *CompactHeightfield) error {
	w := chf.Width
	h := chf.Height

	dist := make([]int, chf.SpanCount)
	for i := range dist {
		dist[i] = 0xff
	}

	// Mark boundary spans: null area, or any missing/null cardinal neighbour.
	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			cell := &chf.Cells[x+z*w]
			for i := cell.Index; i < cell.Index+cell.Count; i++ {
				if chf.Areas[i] == NullArea {
					dist[i] = 0
					continue
				}
				s := &chf.Spans[i]
				nc := 0
				for dir := 0; dir < 4; dir++ {
					con := s.Con(dir)
					if con == NotConnected {
						break
					}
					nx := x + common.DirOffsetX(dir)
					nz := z + common.DirOffsetZ(dir)
					ni := chf.Cells[nx+nz*w].Index + con
					if chf.Areas[ni] == NullArea {
						break
					}
					nc++
				}
				if nc != 4 {
					dist[i] = 0
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
					as := &chf.Spans[ai]
					dist[i] = min(dist[i], min(dist[ai]+2, 255))

					// (-1,-1)
					if as.Con(3) != NotConnected {
						bx := ax + common.DirOffsetX(3)
						bz := az + common.DirOffsetZ(3)
						bi := chf.Cells[bx+bz*w].Index + as.Con(3)
						dist[i] = min(dist[i], min(dist[bi]+3, 255))
					}
				}
				if s.Con(3) != NotConnected {
					// (0,-1)
					ax := x + common.DirOffsetX(3)
					az := z + common.DirOffsetZ(3)
					ai := chf.Cells[ax+az*w].Index + s.Con(3)
					as := &chf.Spans[ai]
					dist[i] = min(dist[i], min(dist[ai]+2, 255))

					// (1,-1)
					if as.Con(2) != NotConnected {
						bx := ax + common.DirOffsetX(2)
						bz := az + common.DirOffsetZ(2)
						bi := chf.Cells[bx+bz*w].Index + as.Con(2)
						dist[i] = min(dist[i], min(dist[bi]+3, 255))
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
					as := &chf.Spans[ai]
					dist[i] = min(dist[i], min(dist[ai]+2, 255))

					// (1,1)
					if as.Con(1) != NotConnected {
						bx := ax + common.DirOffsetX(1)
						bz := az + common.DirOffsetZ(1)
						bi := chf.Cells[bx+bz*w].Index + as.Con(1)
						dist[i] = min(dist[i], min(dist[bi]+3, 255))
					}
				}
				if s.Con(1) != NotConnected {
					// (0,1)
					ax := x + common.DirOffsetX(1)
					az := z + common.DirOffsetZ(1)
					ai := chf.Cells[ax+az*w].Index + s.Con(1)
					as := &chf.Spans[ai]
					dist[i] = min(dist[i], min(dist[ai]+2, 255))

					// (-1,1)
					if as.Con(0) != NotConnected {
						bx := ax + common.DirOffsetX(0)
						bz := az + common.DirOffsetZ(0)
						bi := chf.Cells[bx+bz*w].Index + as.Con(0)
						dist[i] = min(dist[i], min(dist[bi]+3, 255))
					}
				}
			}
		}
	}

	minBoundaryDist := erosionRadius * 2
	for i := 0; i < chf.SpanCount; i++ {
		if dist[i] < minBoundaryDist {
			chf.Areas[i] = NullArea
		}
	}
	return nil
}

// MedianFilterWalkableArea smooths area assignments with a 3x3 median
// filter, removing single-span noise left by rasterization.
func MedianFilterWalkableArea(chf *CompactHeightfield) error {
	w := chf.Width
	h := chf.Height

	areas := make([]uint8, chf.SpanCount)
	for i := range areas {
		areas[i] = 0xff
	}

	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			cell := &chf.Cells[x+z*w]
			for i := cell.Index; i < cell.Index+cell.Count; i++ {
				s := &chf.Spans[i]
				if chf.Areas[i] == NullArea {
					areas[i] = chf.Areas[i]
					continue
				}

				var nei [9]uint8
				for j := range nei {
					nei[j] = chf.Areas[i]
				}
				for dir := 0; dir < 4; dir++ {
					if s.Con(dir) == NotConnected {
						continue
					}
					ax := x + common.DirOffsetX(dir)
					az := z + common.DirOffsetZ(dir)
					ai := chf.Cells[ax+az*w].Index + s.Con(dir)
					if chf.Areas[ai] != NullArea {
						nei[dir*2+0] = chf.Areas[ai]
					}
					// Diagonal through the next direction.
					as := &chf.Spans[ai]
					dir2 := (dir + 1) & 0x3
					if as.Con(dir2) == NotConnected {
						continue
					}
					bx := ax + common.DirOffsetX(dir2)
					bz := az + common.DirOffsetZ(dir2)
					bi := chf.Cells[bx+bz*w].Index + as.Con(dir2)
					if chf.Areas[bi] != NullArea {
						nei[dir2*2+1] = chf.Areas[bi]
					}
				}
				// Median of 9 via insertion sort.
				for j := 1; j < 9; j++ {
					v := nei[j]
					k := j - 1
					for k >= 0 && nei[k] > v {
						nei[k+1] = nei[k]
						k--
					}
					nei[k+1] = v
				}
				areas[i] = nei[4]
			}
		}
	}

	copy(chf.Areas, areas)
	return nil
}
