package state

import "fmt"

// geometry is one window's top-left screen coordinate and size. ok is false
// when any of the underlying fetches failed.
type geometry struct {
	row, col      int
	width, height int
	ok            bool
}

// classifyGeometry derives a layout by counting distinct rows and distinct
// columns among the windows' top-left corners. One row and several columns is
// a side-by-side split; several rows and one column is a stack; both is a
// mixed split. Ties (several windows sharing one corner) are complex, and any
// missing geometry makes the arrangement unknown.
func classifyGeometry(geoms []geometry) Layout {
	switch len(geoms) {
	case 0:
		return Layout{Type: LayoutEmpty, Description: "no windows"}
	case 1:
		return Layout{Type: LayoutSingle, Description: "single window"}
	}

	for _, g := range geoms {
		if !g.ok {
			return Layout{
				Type:        LayoutUnknown,
				Description: fmt.Sprintf("%d windows, geometry unavailable", len(geoms)),
			}
		}
	}

	rows := map[int]struct{}{}
	cols := map[int]struct{}{}
	for _, g := range geoms {
		rows[g.row] = struct{}{}
		cols[g.col] = struct{}{}
	}

	n := len(geoms)
	switch {
	case len(rows) == 1 && len(cols) > 1:
		return Layout{Type: LayoutHorizontal, Description: fmt.Sprintf("%d windows side by side", n)}
	case len(rows) > 1 && len(cols) == 1:
		return Layout{Type: LayoutVertical, Description: fmt.Sprintf("%d windows stacked", n)}
	case len(rows) > 1 && len(cols) > 1:
		return Layout{Type: LayoutMixed, Description: fmt.Sprintf("%d windows in a mixed split", n)}
	default:
		return Layout{Type: LayoutComplex, Description: fmt.Sprintf("%d windows with overlapping geometry", n)}
	}
}
