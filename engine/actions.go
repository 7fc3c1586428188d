package engine

import "fmt"

// Buy purchases the patch at windowIdx of the current market window and
// places it as described by pl. pl.Patch must be an orientation of the chosen
// patch. Every check runs before the first mutation, so a rejected choice
// leaves the game untouched.
func (g *GameState) Buy(windowIdx int, pl Placement) error {
	if err := g.requirePhase(PhaseAwaitingAction); err != nil {
		return err
	}
	chosen, err := g.windowPatch(windowIdx)
	if err != nil {
		return err
	}
	oriented, err := matchOrientation(chosen, pl.Patch)
	if err != nil {
		return err
	}
	acting := g.current
	p := g.Players[acting]
	if !p.CanAfford(chosen) {
		return fmt.Errorf("%w: %w: patch %d costs %d, player %d has %d",
			ErrRejected, ErrInsufficientFunds, chosen.ID, chosen.Price, acting, p.Money)
	}
	if !p.Quilt.IsValidPlacement(oriented, pl.Row, pl.Col) {
		return fmt.Errorf("%w: %w: patch %d at (%d,%d)", ErrRejected, ErrIllegalPlacement, chosen.ID, pl.Row, pl.Col)
	}

	// Commit.
	if err := p.Quilt.Place(oriented, pl.Row, pl.Col); err != nil {
		return err
	}
	if err := g.Market.Remove(chosen.ID); err != nil {
		return err
	}
	g.beginReport(ActionBuy)
	g.last.PatchID = chosen.ID
	g.last.Row, g.last.Col = pl.Row, pl.Col
	p.Money -= chosen.Price
	p.Income += chosen.Income
	g.clearPassedInPlace()

	from, to, err := g.moveMarker(acting, p.Position+chosen.Movement)
	if err != nil {
		return err
	}
	g.resolveBonuses(acting, from, to)
	return nil
}

// Pass moves the acting player's marker to one square past the furthest
// other player, clamped to the track end, and pays one button per square
// moved. A player already level with or ahead of every other marker does not
// move and gains nothing.
func (g *GameState) Pass() error {
	if err := g.requirePhase(PhaseAwaitingAction); err != nil {
		return err
	}
	acting := g.current
	p := g.Players[acting]
	g.beginReport(ActionPass)

	furthest := -1
	for _, o := range g.Opponents(acting) {
		if g.Players[o].Position > furthest {
			furthest = g.Players[o].Position
		}
	}
	if p.Position >= furthest {
		g.last.From, g.last.To = p.Position, p.Position
		g.last.NoOpPass = true
		g.passedInPlace[acting] = true
		g.finishTurn()
		return nil
	}

	from, to, err := g.moveMarker(acting, furthest+1)
	if err != nil {
		return err
	}
	p.Money += to - from
	g.clearPassedInPlace()
	g.resolveBonuses(acting, from, to)
	return nil
}

// PlaceFreePatch places the pending free patch collected from the track.
func (g *GameState) PlaceFreePatch(pl Placement) error {
	if err := g.requirePhase(PhasePlacingFreePatch); err != nil {
		return err
	}
	pending := g.pendingFree[0]
	oriented, err := matchOrientation(pending, pl.Patch)
	if err != nil {
		return err
	}
	q := g.Players[g.current].Quilt
	if !q.IsValidPlacement(oriented, pl.Row, pl.Col) {
		return fmt.Errorf("%w: %w: free patch %d at (%d,%d)", ErrRejected, ErrIllegalPlacement, pending.ID, pl.Row, pl.Col)
	}
	if err := q.Place(oriented, pl.Row, pl.Col); err != nil {
		return err
	}
	g.pendingFree = g.pendingFree[1:]
	g.beginReport(ActionPlaceFreePatch)
	g.last.PatchID = pending.ID
	g.last.Row, g.last.Col = pl.Row, pl.Col
	pos := g.Players[g.current].Position
	g.last.From, g.last.To = pos, pos
	g.settleFreePatches()
	return nil
}

// ---------------------------------------------------------------------------
// Turn resolution
// ---------------------------------------------------------------------------

func (g *GameState) requirePhase(want Phase) error {
	switch {
	case g.phase == PhaseGameOver:
		return fmt.Errorf("%w: %w", ErrPrecondition, ErrGameOver)
	case g.phase != want:
		return fmt.Errorf("%w: %w: phase is %s, want %s", ErrPrecondition, ErrWrongPhase, g.phase, want)
	}
	return nil
}

func (g *GameState) windowPatch(idx int) (Patch, error) {
	window := g.Window()
	if idx < 0 || idx >= len(window) {
		return Patch{}, fmt.Errorf("%w: %w: index %d, window holds %d patches", ErrRejected, ErrChoiceOutOfRange, idx, len(window))
	}
	return window[idx], nil
}

// matchOrientation returns the orientation of base whose mask equals the
// submitted patch. Attributes always come from base.
func matchOrientation(base, submitted Patch) (Patch, error) {
	if !base.SameAs(submitted) {
		return Patch{}, fmt.Errorf("%w: %w: want patch %d, got %d", ErrPrecondition, ErrPatchMismatch, base.ID, submitted.ID)
	}
	want := submitted.String()
	for _, o := range base.Orientations() {
		if o.String() == want {
			return o, nil
		}
	}
	return Patch{}, fmt.Errorf("%w: %w: mask %q is not an orientation of patch %d", ErrPrecondition, ErrPatchMismatch, want, base.ID)
}

func (g *GameState) beginReport(kind ActionKind) {
	g.last = TurnReport{Action: kind, Actor: g.current, NextPlayer: g.current}
	g.moneyBefore = g.Players[g.current].Money
}

// moveMarker advances a marker on the track and mirrors the result in the
// player's Position.
func (g *GameState) moveMarker(player, to int) (from, landed int, err error) {
	from, err = g.Track.Advance(player, to)
	if err != nil {
		return from, from, err
	}
	landed = g.Track.Position(player)
	g.Players[player].Position = landed
	g.last.From, g.last.To = from, landed
	return from, landed, nil
}

// resolveBonuses applies every bonus crossed in (from, to] and queues the
// collected free patches for placement.
func (g *GameState) resolveBonuses(player, from, to int) {
	squares, free := g.Track.CollectCrossedBonuses(g.Players[player], from, to)
	g.last.IncomeSquares = squares
	for _, fp := range free {
		g.last.FreePatches = append(g.last.FreePatches, fp.ID)
	}
	g.pendingFree = append(g.pendingFree, free...)
	g.settleFreePatches()
}

// settleFreePatches discards queued free patches that fit nowhere on the
// acting player's board. It stops at the first one that fits and waits for
// PlaceFreePatch; once the queue is empty the turn ends.
func (g *GameState) settleFreePatches() {
	q := g.Players[g.current].Quilt
	g.last.MoneyDelta = g.Players[g.current].Money - g.moneyBefore
	for len(g.pendingFree) > 0 {
		if q.CanPlace(g.pendingFree[0]) {
			g.phase = PhasePlacingFreePatch
			return
		}
		g.discarded = append(g.discarded, g.pendingFree[0])
		g.last.Discarded = append(g.last.Discarded, g.pendingFree[0].ID)
		g.pendingFree = g.pendingFree[1:]
	}
	g.finishTurn()
}

// finishTurn awards the special tile, selects the next player and checks
// for the end of the game.
func (g *GameState) finishTurn() {
	acting := g.current
	g.phase = PhaseAwaitingAction
	g.awardSpecialTile(acting)
	g.last.MoneyDelta = g.Players[acting].Money - g.moneyBefore

	g.current = g.nextPlayer(acting)
	g.last.NextPlayer = g.current
	g.turnNumber++
	g.checkGameEnd()
}

func (g *GameState) awardSpecialTile(player int) {
	if !g.Rules.SpecialTile || g.Special.Owned() {
		return
	}
	if g.Players[player].Quilt.ContainsFilledSquare(g.Special.Size) {
		g.Special.Owner = player
		g.last.SpecialTile = true
	}
}

// nextPlayer returns the player furthest behind. Among players sharing that
// square, anyone other than the one who just acted goes first, and players
// who have not yet passed in place go before those who have. Remaining ties
// go to the earliest arrival.
func (g *GameState) nextPlayer(acted int) int {
	lowest := g.Players[0].Position
	for _, p := range g.Players[1:] {
		if p.Position < lowest {
			lowest = p.Position
		}
	}
	waiting := g.Track.Markers(lowest)
	for _, m := range waiting {
		if m != acted && !g.passedInPlace[m] {
			return m
		}
	}
	for _, m := range waiting {
		if m != acted {
			return m
		}
	}
	return acted
}

func (g *GameState) clearPassedInPlace() {
	for i := range g.passedInPlace {
		g.passedInPlace[i] = false
	}
}

// stalled reports whether every player has passed in place since the last
// buy or moving pass. No later action could change the state.
func (g *GameState) stalled() bool {
	for _, passed := range g.passedInPlace {
		if !passed {
			return false
		}
	}
	return true
}

// checkGameEnd ends the game when the track or market says so, or when the
// game has stalled.
func (g *GameState) checkGameEnd() {
	if g.Track.IsGameOver(g.Players, g.Market) || g.stalled() {
		g.phase = PhaseGameOver
		g.last.GameOverReached = true
	}
}
