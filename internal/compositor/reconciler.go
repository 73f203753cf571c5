package compositor

// MatchBoxes pairs boxes with reusable region instances. Three matcher tiers
// run in order, each tier attempted against all still-unmatched boxes before
// the next tier is considered, so the most stable reuse wins globally rather
// than per box:
//
//  1. equal content, running, and assigned spaces intersecting the box's
//     spaces (in-place reuse),
//  2. equal content and running, anywhere on the grid,
//  3. equal content and still loading (reuse an in-flight load).
//
// The result maps box index to the matched region; boxes absent from the map
// need a fresh instance. MatchBoxes never claims a region for two boxes.
func MatchBoxes(boxes []Box, regions []*Region) map[int]*Region {
	matched := make(map[int]*Region, len(boxes))
	used := make(map[*Region]bool, len(regions))

	tiers := []func(b Box, r *Region) bool{
		func(b Box, r *Region) bool {
			return r.content == b.Content && r.running() && spacesIntersect(r.pos.Spaces, b.Spaces)
		},
		func(b Box, r *Region) bool {
			return r.content == b.Content && r.running()
		},
		func(b Box, r *Region) bool {
			return r.content == b.Content && r.inLoading()
		},
	}

	for _, tier := range tiers {
		for i, b := range boxes {
			if _, ok := matched[i]; ok {
				continue
			}
			for _, r := range regions {
				if used[r] {
					continue
				}
				if tier(b, r) {
					matched[i] = r
					used[r] = true
					break
				}
			}
		}
	}

	return matched
}

// PixelRect computes a box's pixel geometry. Cell size rounds down, so a
// grid that does not divide evenly leaves a sliver at the right and bottom
// edges rather than overflowing the display.
func PixelRect(g GridConfig, b Box) Rect {
	spaceW, spaceH := g.SpaceSize()
	spaces := append([]int(nil), b.Spaces...)
	return Rect{
		X:      spaceW * b.X,
		Y:      spaceH * b.Y,
		Width:  spaceW * b.W,
		Height: spaceH * b.H,
		Spaces: spaces,
	}
}

// spacesIntersect reports whether two ascending cell-index lists share an
// element.
func spacesIntersect(a, b []int) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			return true
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return false
}
