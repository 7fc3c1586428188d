// Package engine implements the Patchwork rules: the per-player quilt board,
// the circle of patches with its neutral token, and the time board that
// drives turn order, income and bonus pickups.
//
// The engine is single-threaded and never blocks. Interactive steps (choosing
// a patch, orienting and positioning it) happen outside; the engine validates
// each submitted choice in full before mutating anything.
package engine

import (
	"fmt"
	"math/rand/v2"
)

// Phase describes what the engine is waiting for.
type Phase uint8

const (
	PhaseAwaitingAction   Phase = iota // 0: acting player buys or passes
	PhasePlacingFreePatch              // 1: acting player must place a collected free patch
	PhaseGameOver                      // 2
)

// String returns a readable phase name.
func (ph Phase) String() string {
	switch ph {
	case PhaseAwaitingAction:
		return "awaiting_action"
	case PhasePlacingFreePatch:
		return "placing_free_patch"
	case PhaseGameOver:
		return "game_over"
	default:
		return "unknown"
	}
}

// ActionKind identifies the last player action.
type ActionKind uint8

const (
	ActionNone ActionKind = iota
	ActionBuy
	ActionPass
	ActionPlaceFreePatch
)

// TurnReport is a fully observable summary of the most recent action,
// including every side effect resolved after it.
type TurnReport struct {
	Action          ActionKind
	Actor           int
	PatchID         int // bought or placed patch
	Row, Col        int
	From, To        int // marker positions
	MoneyDelta      int // net change of the actor's buttons
	IncomeSquares   int // income squares collected
	FreePatches     []int
	Discarded       []int // free patches that fit nowhere
	NoOpPass        bool
	SpecialTile     bool
	NextPlayer      int
	GameOverReached bool
}

// GameState holds the complete state of one game session.
type GameState struct {
	Rules   HouseRules
	Players []*PlayerState
	Market  *Market
	Track   *TimeBoard
	Special SpecialTile

	current       int
	phase         Phase
	pendingFree   []Patch
	discarded     []Patch
	passedInPlace []bool
	turnNumber    int
	totalPatches  int
	moneyBefore   int
	last          TurnReport
}

// NewRand returns a deterministic random source for the given seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// NewGame builds a ready-to-play game from a catalog. The circle is shuffled
// with rng (nil keeps catalog order) and the neutral token placed after the
// smallest patch. names must hold one entry per player.
func NewGame(rules HouseRules, catalog Catalog, names []string, rng *rand.Rand) (*GameState, error) {
	n := rules.numPlayers()
	if n < 2 {
		return nil, fmt.Errorf("%w: %w: need at least 2 players, got %d", ErrConfig, ErrMalformedDefinition, n)
	}
	if len(names) != n {
		return nil, fmt.Errorf("%w: %w: want %d player names, got %d", ErrConfig, ErrMalformedDefinition, n, len(names))
	}
	if rules.BoardWidth <= 0 || rules.BoardHeight <= 0 || rules.MarketWindow <= 0 || rules.StartingButtons < 0 {
		return nil, fmt.Errorf("%w: %w: invalid house rules %+v", ErrConfig, ErrMalformedDefinition, rules)
	}
	patches, err := BuildPatches(catalog.Patches)
	if err != nil {
		return nil, err
	}
	if len(patches) == 0 {
		return nil, fmt.Errorf("%w: %w: empty patch circle", ErrConfig, ErrMalformedDefinition)
	}
	track, err := NewTimeBoard(catalog.Track, len(patches)+1)
	if err != nil {
		return nil, err
	}
	track.repeatableIncome = rules.RepeatableIncome

	g := &GameState{
		Rules:   rules,
		Market:  NewMarket(patches),
		Track:   track,
		Special: SpecialTile{Size: rules.SpecialTileSize, Value: rules.SpecialTileValue, Owner: -1},
		last:    TurnReport{Actor: -1, NextPlayer: 0},
	}
	if rng != nil {
		g.Market.Shuffle(rng)
	}
	g.Market.PlaceNeutralToken()

	g.Players = make([]*PlayerState, n)
	for i, name := range names {
		g.Players[i] = NewPlayerState(name, rules.StartingButtons, rules.BoardWidth, rules.BoardHeight)
	}
	g.Track.PlaceMarkers(n)
	g.passedInPlace = make([]bool, n)
	g.totalPatches = len(patches) + len(track.PendingFreePatches())
	return g, nil
}

// ---------------------------------------------------------------------------
// Query methods
// ---------------------------------------------------------------------------

// Phase returns what the engine is waiting for.
func (g *GameState) Phase() Phase { return g.phase }

// IsGameOver reports whether the game has ended.
func (g *GameState) IsGameOver() bool { return g.phase == PhaseGameOver }

// ActingPlayer returns the index of the player who must act next.
func (g *GameState) ActingPlayer() int { return g.current }

// TurnNumber returns the number of completed turns.
func (g *GameState) TurnNumber() int { return g.turnNumber }

// LastTurn returns the summary of the most recent action.
func (g *GameState) LastTurn() TurnReport {
	r := g.last
	r.FreePatches = append([]int(nil), g.last.FreePatches...)
	r.Discarded = append([]int(nil), g.last.Discarded...)
	return r
}

// Window returns the patches currently offered for purchase.
func (g *GameState) Window() []Patch { return g.Market.Next(g.Rules.MarketWindow) }

// PendingFreePatch returns the free patch the acting player must place.
func (g *GameState) PendingFreePatch() (Patch, bool) {
	if g.phase != PhasePlacingFreePatch || len(g.pendingFree) == 0 {
		return Patch{}, false
	}
	return g.pendingFree[0], true
}

// Discarded returns the free patches that were dropped for lack of space.
func (g *GameState) Discarded() []Patch { return append([]Patch(nil), g.discarded...) }

// Opponents returns all player indices except the given player.
func (g *GameState) Opponents(player int) []int {
	opps := make([]int, 0, len(g.Players)-1)
	for i := range g.Players {
		if i != player {
			opps = append(opps, i)
		}
	}
	return opps
}

// TotalPatches returns the number of patches the game started with, free
// patches on the track included.
func (g *GameState) TotalPatches() int { return g.totalPatches }

// TrackedPatches counts every patch wherever it is now: market, quilts,
// track, pending placement or discarded. It always equals TotalPatches.
func (g *GameState) TrackedPatches() int {
	n := g.Market.Len() + len(g.Track.PendingFreePatches()) + len(g.pendingFree) + len(g.discarded)
	for _, p := range g.Players {
		n += len(p.Quilt.Placements())
	}
	return n
}
