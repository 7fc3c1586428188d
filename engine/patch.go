package engine

import (
	"fmt"
	"strings"
)

// Mask encoding characters.
const (
	MaskFilled    = '*'
	MaskEmpty     = '.'
	MaskRowSep    = ','
	maskEmptyAlt  = ' '
	numRotations  = 4
	numFlipStates = 2
)

// Patch is an immutable placeable shape. Rotating or flipping returns a new
// value; the receiver is never modified. Identity is by ID, so every
// orientation of a patch is the same patch for market and ownership purposes.
type Patch struct {
	ID       int
	Price    int
	Movement int
	Income   int
	Rotation int  // quarter turns clockwise, 0..3
	Flipped  bool // mirrored horizontally

	mask [][]bool // rectangular, never mutated after construction
}

// NewPatch validates the attributes and copies the mask. Rows shorter than
// the widest one are padded with empty cells.
func NewPatch(id, price, movement, income int, mask [][]bool) (Patch, error) {
	if price < 0 || movement < 0 || income < 0 {
		return Patch{}, fmt.Errorf("%w: %w: patch %d has negative attribute (price %d, movement %d, income %d)",
			ErrConfig, ErrMalformedDefinition, id, price, movement, income)
	}
	m := normalizeMask(mask)
	if countFilled(m) == 0 {
		return Patch{}, fmt.Errorf("%w: %w: patch %d has no filled cell", ErrConfig, ErrBadMask, id)
	}
	return Patch{ID: id, Price: price, Movement: movement, Income: income, mask: m}, nil
}

// ParseMask decodes a mask string: rows separated by ',', '*' for a filled
// cell, '.' or ' ' for an empty one. A trailing separator is ignored.
func ParseMask(s string) ([][]bool, error) {
	s = strings.TrimSuffix(s, string(MaskRowSep))
	if s == "" {
		return nil, fmt.Errorf("%w: %w: empty mask", ErrConfig, ErrBadMask)
	}
	rows := strings.Split(s, string(MaskRowSep))
	mask := make([][]bool, len(rows))
	for r, row := range rows {
		mask[r] = make([]bool, 0, len(row))
		for _, ch := range row {
			switch ch {
			case MaskFilled:
				mask[r] = append(mask[r], true)
			case MaskEmpty, maskEmptyAlt:
				mask[r] = append(mask[r], false)
			default:
				return nil, fmt.Errorf("%w: %w: unexpected character %q in %q", ErrConfig, ErrBadMask, ch, s)
			}
		}
	}
	return normalizeMask(mask), nil
}

func normalizeMask(mask [][]bool) [][]bool {
	width := 0
	for _, row := range mask {
		if len(row) > width {
			width = len(row)
		}
	}
	out := make([][]bool, len(mask))
	for r, row := range mask {
		out[r] = make([]bool, width)
		copy(out[r], row)
	}
	return out
}

func countFilled(mask [][]bool) int {
	n := 0
	for _, row := range mask {
		for _, filled := range row {
			if filled {
				n++
			}
		}
	}
	return n
}

// Height returns the number of mask rows.
func (p Patch) Height() int { return len(p.mask) }

// Width returns the number of mask columns.
func (p Patch) Width() int {
	if len(p.mask) == 0 {
		return 0
	}
	return len(p.mask[0])
}

// Filled reports whether the mask cell is filled. Out-of-mask coordinates are
// simply empty; grid bounds are the board's concern.
func (p Patch) Filled(row, col int) bool {
	if row < 0 || row >= p.Height() || col < 0 || col >= p.Width() {
		return false
	}
	return p.mask[row][col]
}

// BlockCount returns the number of filled cells. Only used to order the market.
func (p Patch) BlockCount() int { return countFilled(p.mask) }

// Mask returns a copy of the occupancy mask.
func (p Patch) Mask() [][]bool { return normalizeMask(p.mask) }

// SameAs reports whether both values are orientations of the same patch.
func (p Patch) SameAs(other Patch) bool { return p.ID == other.ID }

// RotateClockwise returns the patch turned a quarter clockwise. Row c of the
// result is column c of the receiver read bottom to top.
func (p Patch) RotateClockwise() Patch {
	h, w := p.Height(), p.Width()
	rotated := make([][]bool, w)
	for c := 0; c < w; c++ {
		rotated[c] = make([]bool, h)
		for r := 0; r < h; r++ {
			rotated[c][r] = p.mask[h-1-r][c]
		}
	}
	out := p
	out.mask = rotated
	out.Rotation = (p.Rotation + 1) % numRotations
	return out
}

// FlipHorizontal returns the mirror image of the patch.
func (p Patch) FlipHorizontal() Patch {
	w := p.Width()
	flipped := make([][]bool, p.Height())
	for r, row := range p.mask {
		flipped[r] = make([]bool, w)
		for c := range row {
			flipped[r][w-1-c] = row[c]
		}
	}
	out := p
	out.mask = flipped
	out.Flipped = !p.Flipped
	return out
}

// Orient returns the patch with the given rotation and flip applied from its
// current orientation.
func (p Patch) Orient(quarterTurns int, flip bool) Patch {
	out := p
	for i := 0; i < ((quarterTurns%numRotations)+numRotations)%numRotations; i++ {
		out = out.RotateClockwise()
	}
	if flip {
		out = out.FlipHorizontal()
	}
	return out
}

// Orientations returns the eight variants in search order: rotation 0..3,
// each unflipped then flipped.
func (p Patch) Orientations() []Patch {
	out := make([]Patch, 0, numRotations*numFlipStates)
	cur := p
	for i := 0; i < numRotations; i++ {
		out = append(out, cur, cur.FlipHorizontal())
		cur = cur.RotateClockwise()
	}
	return out
}

// String encodes the mask in the same form ParseMask accepts.
func (p Patch) String() string {
	var sb strings.Builder
	for r, row := range p.mask {
		if r > 0 {
			sb.WriteRune(MaskRowSep)
		}
		for _, filled := range row {
			if filled {
				sb.WriteRune(MaskFilled)
			} else {
				sb.WriteRune(MaskEmpty)
			}
		}
	}
	return sb.String()
}
