package engine

import "fmt"

// Bonus is the static content of a time board square.
type Bonus uint8

const (
	BonusNone      Bonus = iota // 0
	BonusIncome                 // 1: button income
	BonusFreePatch              // 2: leather patch
)

// FreePatchMask is the shape of the placeholder patch held by free patch squares.
const FreePatchMask = "*"

// trackSquare holds one square's unconsumed bonuses and the markers resting
// on it in arrival order.
type trackSquare struct {
	income    bool
	freePatch *Patch
	markers   []int
}

// TrackSquare is a read-only view of a time board square.
type TrackSquare struct {
	Income    bool
	FreePatch bool
	Markers   []int
}

// TimeBoard is the shared linear track. Each player has exactly one marker on
// it and markers only move forward.
type TimeBoard struct {
	squares          []trackSquare
	positions        []int
	repeatableIncome bool
	incomeSquares    []bool // static layout, used when income is repeatable
}

// NewTimeBoard builds the track from a static layout. Free patch squares get a
// 1×1 placeholder patch; ids are assigned from firstFreePatchID in track order.
func NewTimeBoard(layout []Bonus, firstFreePatchID int) (*TimeBoard, error) {
	if len(layout) == 0 {
		return nil, fmt.Errorf("%w: %w: empty track layout", ErrConfig, ErrMalformedDefinition)
	}
	mask, err := ParseMask(FreePatchMask)
	if err != nil {
		return nil, err
	}
	tb := &TimeBoard{
		squares:       make([]trackSquare, len(layout)),
		incomeSquares: make([]bool, len(layout)),
	}
	nextID := firstFreePatchID
	for i, b := range layout {
		switch b {
		case BonusNone:
		case BonusIncome:
			tb.squares[i].income = true
			tb.incomeSquares[i] = true
		case BonusFreePatch:
			p, err := NewPatch(nextID, 0, 0, 0, mask)
			if err != nil {
				return nil, err
			}
			tb.squares[i].freePatch = &p
			nextID++
		default:
			return nil, fmt.Errorf("%w: %w: bonus %d at square %d", ErrConfig, ErrUnknownBonus, b, i)
		}
	}
	return tb, nil
}

// Len returns the number of squares.
func (tb *TimeBoard) Len() int { return len(tb.squares) }

// Last returns the index of the final square.
func (tb *TimeBoard) Last() int { return len(tb.squares) - 1 }

// PlaceMarkers puts n markers (players 0..n-1) on square 0.
func (tb *TimeBoard) PlaceMarkers(n int) {
	for i := range tb.squares {
		tb.squares[i].markers = nil
	}
	tb.positions = make([]int, n)
	for p := 0; p < n; p++ {
		tb.squares[0].markers = append(tb.squares[0].markers, p)
	}
}

// Position returns the square the player's marker rests on.
func (tb *TimeBoard) Position(player int) int { return tb.positions[player] }

// Advance moves a marker to the given square, clamped to the last one, and
// returns the square it left. Moving backwards is a caller defect.
func (tb *TimeBoard) Advance(player, to int) (from int, err error) {
	if player < 0 || player >= len(tb.positions) {
		return 0, fmt.Errorf("%w: no marker for player %d", ErrPrecondition, player)
	}
	from = tb.positions[player]
	if to < from {
		return from, fmt.Errorf("%w: %w: player %d from %d to %d", ErrPrecondition, ErrNegativeAdvance, player, from, to)
	}
	if to > tb.Last() {
		to = tb.Last()
	}
	if to == from {
		return from, nil
	}
	tb.squares[from].markers = removeMarker(tb.squares[from].markers, player)
	tb.squares[to].markers = append(tb.squares[to].markers, player)
	tb.positions[player] = to
	return from, nil
}

func removeMarker(markers []int, player int) []int {
	out := markers[:0]
	for _, m := range markers {
		if m != player {
			out = append(out, m)
		}
	}
	return out
}

// CollectCrossedBonuses resolves every bonus on squares (from, to]: income
// squares pay the player's income rate, free patch squares hand their patch
// back to the caller for placement. Collected bonuses are consumed, except
// income when the board was configured with repeatable income.
func (tb *TimeBoard) CollectCrossedBonuses(p *PlayerState, from, to int) (buttons int, patches []Patch) {
	if to > tb.Last() {
		to = tb.Last()
	}
	for i := from + 1; i <= to; i++ {
		sq := &tb.squares[i]
		if tb.repeatableIncome {
			if tb.incomeSquares[i] {
				p.Money += p.Income
				buttons++
			}
		} else if sq.income {
			p.Money += p.Income
			buttons++
			sq.income = false
		}
		if sq.freePatch != nil {
			patches = append(patches, *sq.freePatch)
			sq.freePatch = nil
		}
	}
	return buttons, patches
}

// IsGameOver reports whether every marker reached the last square or the
// market ran dry.
func (tb *TimeBoard) IsGameOver(players []*PlayerState, market *Market) bool {
	if market.Empty() {
		return true
	}
	for _, p := range players {
		if p.Position != tb.Last() {
			return false
		}
	}
	return true
}

// LeaderPosition returns the furthest position among players.
func (tb *TimeBoard) LeaderPosition(players []*PlayerState) int {
	lead := 0
	for _, p := range players {
		if p.Position > lead {
			lead = p.Position
		}
	}
	return lead
}

// Markers returns the players resting on a square, earliest arrival first.
func (tb *TimeBoard) Markers(square int) []int {
	out := make([]int, len(tb.squares[square].markers))
	copy(out, tb.squares[square].markers)
	return out
}

// Square returns a view of square i.
func (tb *TimeBoard) Square(i int) TrackSquare {
	sq := tb.squares[i]
	income := sq.income
	if tb.repeatableIncome {
		income = tb.incomeSquares[i]
	}
	return TrackSquare{Income: income, FreePatch: sq.freePatch != nil, Markers: tb.Markers(i)}
}

// PendingFreePatches returns the free patches still waiting on the track.
func (tb *TimeBoard) PendingFreePatches() []Patch {
	var out []Patch
	for _, sq := range tb.squares {
		if sq.freePatch != nil {
			out = append(out, *sq.freePatch)
		}
	}
	return out
}
