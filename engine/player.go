package engine

// PlayerState holds one player's economy, track position and quilt board.
type PlayerState struct {
	Name     string
	Money    int // buttons
	Income   int // buttons paid per income square crossed
	Position int
	Quilt    *QuiltBoard
}

// NewPlayerState returns a player at square 0 with an empty board.
func NewPlayerState(name string, money, boardWidth, boardHeight int) *PlayerState {
	return &PlayerState{
		Name:  name,
		Money: money,
		Quilt: NewQuiltBoard(boardWidth, boardHeight),
	}
}

// CanAfford reports whether the player can pay for p.
func (p *PlayerState) CanAfford(patch Patch) bool { return patch.Price <= p.Money }

// SpecialTile is the one-time bonus for the first player whose board contains
// a fully filled Size×Size square. Its Value is paid only in final scores.
type SpecialTile struct {
	Size  int
	Value int
	Owner int // player index, -1 while unclaimed
}

// Owned reports whether a player has claimed the tile.
func (s SpecialTile) Owned() bool { return s.Owner >= 0 }
