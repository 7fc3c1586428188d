package engine

import "fmt"

// DecisionContext identifies the kind of choice the acting player faces.
type DecisionContext uint8

const (
	CtxChooseAction   DecisionContext = iota // buy from the window or pass
	CtxPlaceFreePatch                        // place the pending free patch
	CtxTerminal                              // game over
)

// String returns a readable context name.
func (c DecisionContext) String() string {
	switch c {
	case CtxChooseAction:
		return "choose_action"
	case CtxPlaceFreePatch:
		return "place_free_patch"
	case CtxTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// DecisionCtx returns the current decision context for the acting player.
func (g *GameState) DecisionCtx() DecisionContext {
	switch g.phase {
	case PhasePlacingFreePatch:
		return CtxPlaceFreePatch
	case PhaseGameOver:
		return CtxTerminal
	}
	return CtxChooseAction
}

// IsTerminal reports whether no further action is possible.
func (g *GameState) IsTerminal() bool { return g.phase == PhaseGameOver }

// CheckPurchase reports why the acting player could not buy the patch at
// windowIdx, or nil if some placement of it is affordable and fits.
func (g *GameState) CheckPurchase(windowIdx int) error {
	if err := g.requirePhase(PhaseAwaitingAction); err != nil {
		return err
	}
	chosen, err := g.windowPatch(windowIdx)
	if err != nil {
		return err
	}
	p := g.Players[g.current]
	if !p.CanAfford(chosen) {
		return fmt.Errorf("%w: %w: patch %d costs %d, player %d has %d",
			ErrRejected, ErrInsufficientFunds, chosen.ID, chosen.Price, g.current, p.Money)
	}
	if !p.Quilt.CanPlace(chosen) {
		return fmt.Errorf("%w: %w: patch %d fits nowhere", ErrRejected, ErrIllegalPlacement, chosen.ID)
	}
	return nil
}

// LegalPurchases returns the window indices the acting player can buy.
func (g *GameState) LegalPurchases() []int {
	if g.phase != PhaseAwaitingAction {
		return nil
	}
	var idx []int
	for i := range g.Window() {
		if g.CheckPurchase(i) == nil {
			idx = append(idx, i)
		}
	}
	return idx
}

// CanBuy reports whether at least one window patch is buyable.
func (g *GameState) CanBuy() bool { return len(g.LegalPurchases()) > 0 }

// PlacementHint returns the first legal placement of p on the acting
// player's board. It is advisory: Buy and PlaceFreePatch re-validate.
func (g *GameState) PlacementHint(p Patch) (Placement, bool) {
	return g.Players[g.current].Quilt.FirstLegalPlacement(p)
}

// LegalPlacements lists every legal placement of every orientation of p on
// the acting player's board.
func (g *GameState) LegalPlacements(p Patch) []Placement {
	q := g.Players[g.current].Quilt
	var out []Placement
	seen := make(map[string]bool)
	for _, o := range p.Orientations() {
		key := o.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		for row := 0; row < q.Height(); row++ {
			for col := 0; col < q.Width(); col++ {
				if q.IsValidPlacement(o, row, col) {
					out = append(out, Placement{Patch: o, Row: row, Col: col})
				}
			}
		}
	}
	return out
}
