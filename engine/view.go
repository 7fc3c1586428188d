package engine

// PatchView is a display copy of a patch.
type PatchView struct {
	ID         int      `json:"id"`
	Price      int      `json:"price"`
	Movement   int      `json:"movement"`
	Income     int      `json:"income"`
	BlockCount int      `json:"blockCount"`
	Rows       []string `json:"rows"`
}

// PlayerView is a display copy of one player.
type PlayerView struct {
	Name      string  `json:"name"`
	Money     int     `json:"money"`
	Income    int     `json:"income"`
	Position  int     `json:"position"`
	Empty     int     `json:"emptyCells"`
	Score     int     `json:"score"`
	Occupancy [][]int `json:"occupancy"` // patch id per cell, 0 when empty
}

// TrackSquareView is a display copy of one time board square.
type TrackSquareView struct {
	Income    bool  `json:"income,omitempty"`
	FreePatch bool  `json:"freePatch,omitempty"`
	Markers   []int `json:"markers,omitempty"`
}

// View is a read-only snapshot of everything a front end renders. Building
// it never mutates the game.
type View struct {
	Phase        string            `json:"phase"`
	Acting       int               `json:"acting"`
	Turn         int               `json:"turn"`
	Players      []PlayerView      `json:"players"`
	Window       []PatchView       `json:"window"`
	MarketSize   int               `json:"marketSize"`
	Track        []TrackSquareView `json:"track"`
	SpecialOwner int               `json:"specialOwner"`
	Pending      *PatchView        `json:"pendingFreePatch,omitempty"`
}

// NewPatchView renders p's current orientation.
func NewPatchView(p Patch) PatchView {
	return PatchView{
		ID:         p.ID,
		Price:      p.Price,
		Movement:   p.Movement,
		Income:     p.Income,
		BlockCount: p.BlockCount(),
		Rows:       maskRows(p),
	}
}

func maskRows(p Patch) []string {
	rows := make([]string, p.Height())
	for r := range rows {
		b := make([]byte, p.Width())
		for c := range b {
			if p.Filled(r, c) {
				b[c] = MaskFilled
			} else {
				b[c] = MaskEmpty
			}
		}
		rows[r] = string(b)
	}
	return rows
}

// View returns a snapshot of the game.
func (g *GameState) View() View {
	v := View{
		Phase:        g.phase.String(),
		Acting:       g.current,
		Turn:         g.turnNumber,
		MarketSize:   g.Market.Len(),
		SpecialOwner: g.Special.Owner,
	}
	for i, p := range g.Players {
		v.Players = append(v.Players, PlayerView{
			Name:      p.Name,
			Money:     p.Money,
			Income:    p.Income,
			Position:  p.Position,
			Empty:     p.Quilt.EmptyCount(),
			Score:     g.Score(i),
			Occupancy: p.Quilt.Occupancy(),
		})
	}
	for _, p := range g.Window() {
		v.Window = append(v.Window, NewPatchView(p))
	}
	v.Track = make([]TrackSquareView, g.Track.Len())
	for i := range v.Track {
		sq := g.Track.Square(i)
		v.Track[i] = TrackSquareView{Income: sq.Income, FreePatch: sq.FreePatch, Markers: sq.Markers}
	}
	if fp, ok := g.PendingFreePatch(); ok {
		pv := NewPatchView(fp)
		v.Pending = &pv
	}
	return v
}
