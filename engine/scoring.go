package engine

// emptyCellPenalty is paid per uncovered quilt square at game end.
const emptyCellPenalty = 2

// Score returns the player's score: special tile value (if owned), plus
// buttons, minus two per empty quilt square. It can be computed at any time
// but is final only once the game is over.
func (g *GameState) Score(player int) int {
	p := g.Players[player]
	score := 0
	if g.Rules.SpecialTile && g.Special.Owner == player {
		score += g.Special.Value
	}
	return score + p.Money - emptyCellPenalty*p.Quilt.EmptyCount()
}

// Scores returns Score for every player.
func (g *GameState) Scores() []int {
	scores := make([]int, len(g.Players))
	for i := range g.Players {
		scores[i] = g.Score(i)
	}
	return scores
}

// Outcome is the ranked result of a game.
type Outcome struct {
	Scores  []int
	Winners []int // every player holding the top score
	Tie     bool  // more than one winner
}

// Winner returns the sole winner, or false on a tie.
func (o Outcome) Winner() (int, bool) {
	if o.Tie || len(o.Winners) == 0 {
		return -1, false
	}
	return o.Winners[0], true
}

// Outcome ranks the current scores. Ties are reported, never broken.
func (g *GameState) Outcome() Outcome {
	scores := g.Scores()
	best := scores[0]
	for _, s := range scores[1:] {
		if s > best {
			best = s
		}
	}
	var winners []int
	for i, s := range scores {
		if s == best {
			winners = append(winners, i)
		}
	}
	return Outcome{Scores: scores, Winners: winners, Tie: len(winners) > 1}
}

// Utilities returns +1 for a sole winner, 0 for tied winners and -1 for
// everyone else. It returns all zeros while the game is still running.
func (g *GameState) Utilities() []float32 {
	u := make([]float32, len(g.Players))
	if !g.IsTerminal() {
		return u
	}
	o := g.Outcome()
	for i := range u {
		u[i] = -1
	}
	for _, w := range o.Winners {
		if o.Tie {
			u[w] = 0
		} else {
			u[w] = 1
		}
	}
	return u
}
