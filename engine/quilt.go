package engine

import "fmt"

// Placement is an oriented patch anchored with its mask's top-left cell at
// (Row, Col) on a quilt board.
type Placement struct {
	Patch Patch
	Row   int
	Col   int
}

// QuiltSquare is a read-only view of one quilt board cell. When Filled, PatchID
// identifies the placed patch and MaskRow/MaskCol the cell of its (oriented)
// mask that covers this square.
type QuiltSquare struct {
	Filled  bool
	PatchID int
	MaskRow int
	MaskCol int
}

// QuiltBoard is a player's personal placement grid. Cells are only ever
// filled, never cleared, and no two placed patches overlap.
type QuiltBoard struct {
	width, height int
	cells         [][]QuiltSquare // cells[row][col]
	placements    []Placement
}

// NewQuiltBoard returns an empty width×height board.
func NewQuiltBoard(width, height int) *QuiltBoard {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	q := &QuiltBoard{width: width, height: height, cells: make([][]QuiltSquare, height)}
	for r := range q.cells {
		q.cells[r] = make([]QuiltSquare, width)
	}
	return q
}

// Width returns the number of columns.
func (q *QuiltBoard) Width() int { return q.width }

// Height returns the number of rows.
func (q *QuiltBoard) Height() int { return q.height }

func (q *QuiltBoard) inBounds(row, col int) bool {
	return row >= 0 && row < q.height && col >= 0 && col < q.width
}

// IsValidPlacement reports whether every filled cell of p, offset by the
// origin, lands inside the board on an empty cell.
func (q *QuiltBoard) IsValidPlacement(p Patch, row, col int) bool {
	for r := 0; r < p.Height(); r++ {
		for c := 0; c < p.Width(); c++ {
			if !p.Filled(r, c) {
				continue
			}
			gr, gc := row+r, col+c
			if !q.inBounds(gr, gc) || q.cells[gr][gc].Filled {
				return false
			}
		}
	}
	return true
}

// Place commits p at the origin. Placing without a valid position is a caller
// defect; callers validate first.
func (q *QuiltBoard) Place(p Patch, row, col int) error {
	if !q.IsValidPlacement(p, row, col) {
		return fmt.Errorf("%w: %w: patch %d at (%d,%d)", ErrPrecondition, ErrIllegalPlacement, p.ID, row, col)
	}
	for r := 0; r < p.Height(); r++ {
		for c := 0; c < p.Width(); c++ {
			if p.Filled(r, c) {
				q.cells[row+r][col+c] = QuiltSquare{Filled: true, PatchID: p.ID, MaskRow: r, MaskCol: c}
			}
		}
	}
	q.placements = append(q.placements, Placement{Patch: p, Row: row, Col: col})
	return nil
}

// CanPlace reports whether p fits anywhere in any orientation.
func (q *QuiltBoard) CanPlace(p Patch) bool {
	_, ok := q.FirstLegalPlacement(p)
	return ok
}

// FirstLegalPlacement searches orientations (rotation 0..3, unflipped then
// flipped) and origins in row-major order. The result is a starting hint for
// an interactive placement, not a binding choice.
func (q *QuiltBoard) FirstLegalPlacement(p Patch) (Placement, bool) {
	for _, o := range p.Orientations() {
		for row := 0; row < q.height; row++ {
			for col := 0; col < q.width; col++ {
				if q.IsValidPlacement(o, row, col) {
					return Placement{Patch: o, Row: row, Col: col}, true
				}
			}
		}
	}
	return Placement{}, false
}

// EmptyCount returns the number of unfilled cells.
func (q *QuiltBoard) EmptyCount() int {
	n := 0
	for _, row := range q.cells {
		for _, sq := range row {
			if !sq.Filled {
				n++
			}
		}
	}
	return n
}

// ContainsFilledSquare reports whether some size×size block is entirely filled.
func (q *QuiltBoard) ContainsFilledSquare(size int) bool {
	if size <= 0 || size > q.width || size > q.height {
		return false
	}
	for top := 0; top <= q.height-size; top++ {
		for left := 0; left <= q.width-size; left++ {
			if q.blockFilled(top, left, size) {
				return true
			}
		}
	}
	return false
}

func (q *QuiltBoard) blockFilled(top, left, size int) bool {
	for r := top; r < top+size; r++ {
		for c := left; c < left+size; c++ {
			if !q.cells[r][c].Filled {
				return false
			}
		}
	}
	return true
}

// Cell returns the square at (row, col); ok is false outside the board.
func (q *QuiltBoard) Cell(row, col int) (sq QuiltSquare, ok bool) {
	if !q.inBounds(row, col) {
		return QuiltSquare{}, false
	}
	return q.cells[row][col], true
}

// Placements returns the committed placements in order.
func (q *QuiltBoard) Placements() []Placement {
	out := make([]Placement, len(q.placements))
	copy(out, q.placements)
	return out
}

// Occupancy returns a row-major copy of the patch ids covering each cell,
// 0 meaning empty.
func (q *QuiltBoard) Occupancy() [][]int {
	out := make([][]int, q.height)
	for r, row := range q.cells {
		out[r] = make([]int, q.width)
		for c, sq := range row {
			if sq.Filled {
				out[r][c] = sq.PatchID
			}
		}
	}
	return out
}

// Clone returns an independent copy of the board.
func (q *QuiltBoard) Clone() *QuiltBoard {
	c := NewQuiltBoard(q.width, q.height)
	for r := range q.cells {
		copy(c.cells[r], q.cells[r])
	}
	c.placements = q.Placements()
	return c
}
