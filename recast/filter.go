package recast

import "navbake/common"

// FilterLowHangingWalkableObstacles reclassifies unwalkable spans as
// walkable when a walkable span sits directly below within walkableClimb.
// This lets agents step over curbs and similar low obstructions.
func FilterLowHangingWalkableObstacles(walkableClimb int, hf *Heightfield) {
	for z := 0; z < hf.Height; z++ {
		for x := 0; x < hf.Width; x++ {
			var prev *Span
			prevWalkable := false
			prevArea := NullArea

			for span := hf.Spans[x+z*hf.Width]; span != nil; span = span.Next {
				walkable := span.Area != NullArea
				if !walkable && prevWalkable {
					if common.Abs(span.Max-prev.Max) <= walkableClimb {
						span.Area = prevArea
					}
				}
				// Track the raw flag so walkability cannot propagate up
				// through a stack of unwalkable spans.
				prevWalkable = walkable
				prevArea = span.Area
				prev = span
			}
		}
	}
}

// FilterLedgeSpans marks spans as unwalkable when the drop to a neighbour
// exceeds walkableClimb, or when the accessible neighbours disagree in
// height by more than walkableClimb (a steep slope rasterized into steps).
func FilterLedgeSpans(walkableHeight, walkableClimb int, hf *Heightfield) {
	for z := 0; z < hf.Height; z++ {
		for x := 0; x < hf.Width; x++ {
			for span := hf.Spans[x+z*hf.Width]; span != nil; span = span.Next {
				if span.Area == NullArea {
					continue
				}

				bot := span.Max
				top := spanMaxHeight
				if span.Next != nil {
					top = span.Next.Min
				}

				minNeighborHeight := spanMaxHeight
				accessibleMin := span.Max
				accessibleMax := span.Max

				for dir := 0; dir < 4; dir++ {
					nx := x + common.DirOffsetX(dir)
					nz := z + common.DirOffsetZ(dir)
					if nx < 0 || nz < 0 || nx >= hf.Width || nz >= hf.Height {
						// Grid edge counts as a ledge.
						minNeighborHeight = min(minNeighborHeight, -walkableClimb-bot)
						continue
					}

					// The gap from minus infinity to the first neighbour span.
					nspan := hf.Spans[nx+nz*hf.Width]
					nbot := -walkableClimb
					ntop := spanMaxHeight
					if nspan != nil {
						ntop = nspan.Min
					}
					if min(top, ntop)-max(bot, nbot) > walkableHeight {
						minNeighborHeight = min(minNeighborHeight, nbot-bot)
					}

					// The gaps above each neighbour span.
					for ; nspan != nil; nspan = nspan.Next {
						nbot = nspan.Max
						ntop = spanMaxHeight
						if nspan.Next != nil {
							ntop = nspan.Next.Min
						}
						if min(top, ntop)-max(bot, nbot) > walkableHeight {
							minNeighborHeight = min(minNeighborHeight, nbot-bot)
							if common.Abs(nbot-bot) <= walkableClimb {
								accessibleMin = min(accessibleMin, nbot)
								accessibleMax = max(accessibleMax, nbot)
							}
						}
					}
				}

				if minNeighborHeight < -walkableClimb {
					span.Area = NullArea
				} else if accessibleMax-accessibleMin > walkableClimb {
					span.Area = NullArea
				}
			}
		}
	}
}

// FilterWalkableLowHeightSpans clears the walkable flag from spans whose
// headroom is below walkableHeight.
func FilterWalkableLowHeightSpans(walkableHeight int, hf *Heightfield) {
	for z := 0; z < hf.Height; z++ {
		for x := 0; x < hf.Width; x++ {
			for span := hf.Spans[x+z*hf.Width]; span != nil; span = span.Next {
				bot := span.Max
				top := spanMaxHeight
				if span.Next != nil {
					top = span.Next.Min
				}
				if top-bot < walkableHeight {
					span.Area = NullArea
				}
			}
		}
	}
}
