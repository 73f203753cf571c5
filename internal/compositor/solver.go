package compositor

// Solve converts a sparse cell assignment into a list of merged rectangular
// boxes. Pure and deterministic: the same assignment always yields the same
// box list, in the same order.
//
// The algorithm is a greedy rectangle growth over a row-major scan. For the
// first unclaimed non-empty cell it grows downward as far as the column holds
// equal content, then absorbs whole column strips rightward while every row
// of the strip matches. The result is a reuse-friendly partition of the
// assigned cells, not a minimal rectangle cover; that trade-off is accepted.
func Solve(cols, rows int, assignment AssignmentMap) []Box {
	if cols <= 0 || rows <= 0 {
		return nil
	}

	claimed := make([]bool, cols*rows)
	var boxes []Box

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			idx := y*cols + x
			if claimed[idx] {
				continue
			}
			content, ok := assignment[idx]
			if !ok || content.IsZero() {
				continue
			}

			// Grow downward: extend while the cell directly below is
			// unclaimed and holds equal content. maxY is exclusive.
			maxY := y + 1
			for maxY < rows {
				below := maxY*cols + x
				c, ok := assignment[below]
				if claimed[below] || !ok || c != content {
					break
				}
				maxY++
			}

			// Grow rightward one column strip at a time: every row in
			// [y, maxY) at the candidate column must match.
			cx := x + 1
			for cx < cols && columnMatches(assignment, claimed, cols, cx, y, maxY, content) {
				cx++
			}

			w := cx - x
			h := maxY - y
			// Row-major construction keeps Spaces sorted ascending.
			spaces := make([]int, 0, w*h)
			for ry := y; ry < maxY; ry++ {
				for rx := x; rx < cx; rx++ {
					i := ry*cols + rx
					claimed[i] = true
					spaces = append(spaces, i)
				}
			}

			boxes = append(boxes, Box{Content: content, X: x, Y: y, W: w, H: h, Spaces: spaces})
		}
	}

	return boxes
}

// columnMatches reports whether every cell of column cx in rows [y, maxY) is
// unclaimed and holds exactly content.
func columnMatches(assignment AssignmentMap, claimed []bool, cols, cx, y, maxY int, content ContentRef) bool {
	for ry := y; ry < maxY; ry++ {
		i := ry*cols + cx
		c, ok := assignment[i]
		if claimed[i] || !ok || c != content {
			return false
		}
	}
	return true
}
