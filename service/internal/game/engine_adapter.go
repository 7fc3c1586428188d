// internal/game/engine_adapter.go
package game

import (
	"errors"
	"fmt"
	"time"

	engine "github.com/bruno00o/Patchwork/engine"
	"github.com/google/uuid"
)

// applyBuy orients the chosen window patch and buys it.
// Assumes lock is held by caller.
func (g *PatchworkGame) applyBuy(action PlayerAction) error {
	if err := g.Engine.CheckPurchase(action.Window); err != nil {
		return err
	}
	patch := g.Engine.Window()[action.Window].Orient(action.Rotation, action.Flipped)
	return g.Engine.Buy(action.Window, engine.Placement{Patch: patch, Row: action.Row, Col: action.Col})
}

// applyPlaceFreePatch orients and places the pending free patch.
// Assumes lock is held by caller.
func (g *PatchworkGame) applyPlaceFreePatch(action PlayerAction) error {
	pending, ok := g.Engine.PendingFreePatch()
	if !ok {
		// Let the engine report the phase error.
		return g.Engine.PlaceFreePatch(engine.Placement{})
	}
	patch := pending.Orient(action.Rotation, action.Flipped)
	return g.Engine.PlaceFreePatch(engine.Placement{Patch: patch, Row: action.Row, Col: action.Col})
}

// rejectAction tells the player why their action was refused.
// Assumes lock is held by caller.
func (g *PatchworkGame) rejectAction(playerID uuid.UUID, action PlayerAction, err error) {
	if errors.Is(err, engine.ErrRejected) {
		g.logger.Debugf("rejected %s from %s: %v", action.Type, playerID, err)
	} else {
		g.logger.Warnf("invalid %s from %s: %v", action.Type, playerID, err)
	}
	g.fireEventToPlayer(playerID, GameEvent{
		Type: EventPrivateActionRejected,
		User: &EventUser{ID: playerID},
		Payload: map[string]interface{}{
			"action":  string(action.Type),
			"message": err.Error(),
		},
	})
}

// afterEngineAction publishes what the last engine action did and moves the
// session on to the next decision or the end of the game.
// Assumes lock is held by caller.
func (g *PatchworkGame) afterEngineAction(actorID uuid.UUID) {
	g.emitTurnEvents(actorID, g.Engine.LastTurn())
	if g.Engine.IsTerminal() {
		g.endGame()
		return
	}
	g.onTurnAdvanced()
}

// emitTurnEvents fires one public event per effect in rep, in the order the
// engine resolved them.
// Assumes lock is held by caller.
func (g *PatchworkGame) emitTurnEvents(actorID uuid.UUID, rep engine.TurnReport) {
	user := g.eventUser(actorID)
	move := map[string]interface{}{
		"from":       rep.From,
		"to":         rep.To,
		"moneyDelta": rep.MoneyDelta,
	}

	switch rep.Action {
	case engine.ActionBuy:
		g.fireEvent(GameEvent{Type: EventPlayerBuy, User: user, Patch: g.placedPatch(rep), Payload: move})
		g.logAction(actorID, string(EventPlayerBuy), mergePayload(move, map[string]interface{}{
			"patch": rep.PatchID, "row": rep.Row, "col": rep.Col,
		}))
	case engine.ActionPass:
		move["noOp"] = rep.NoOpPass
		g.fireEvent(GameEvent{Type: EventPlayerPass, User: user, Payload: move})
		g.logAction(actorID, string(EventPlayerPass), move)
	case engine.ActionPlaceFreePatch:
		g.fireEvent(GameEvent{Type: EventPlayerFreePatchPlaced, User: user, Patch: g.placedPatch(rep)})
		g.logAction(actorID, string(EventPlayerFreePatchPlaced), map[string]interface{}{
			"patch": rep.PatchID, "row": rep.Row, "col": rep.Col,
		})
	}

	if rep.IncomeSquares > 0 {
		income := map[string]interface{}{
			"squares": rep.IncomeSquares,
			"income":  g.Engine.Players[rep.Actor].Income,
		}
		g.fireEvent(GameEvent{Type: EventPlayerButtonIncome, User: user, Payload: income})
		g.logAction(actorID, string(EventPlayerButtonIncome), income)
	}
	for _, id := range rep.FreePatches {
		if containsInt(rep.Discarded, id) {
			continue
		}
		g.fireEvent(GameEvent{Type: EventPlayerFreePatch, User: user, Patch: &EventPatch{ID: id}})
		g.logAction(actorID, string(EventPlayerFreePatch), map[string]interface{}{"patch": id})
	}
	for _, id := range rep.Discarded {
		g.fireEvent(GameEvent{Type: EventPlayerFreePatchDiscard, User: user, Patch: &EventPatch{ID: id}})
		g.logAction(actorID, string(EventPlayerFreePatchDiscard), map[string]interface{}{"patch": id})
	}
	if rep.SpecialTile {
		tile := map[string]interface{}{
			"size":  g.Engine.Special.Size,
			"value": g.Engine.Special.Value,
		}
		g.fireEvent(GameEvent{Type: EventPlayerSpecialTile, User: user, Payload: tile})
		g.logAction(actorID, string(EventPlayerSpecialTile), tile)
	}
}

// placedPatch describes the patch rep placed, as it lies on the quilt.
// Assumes lock is held by caller.
func (g *PatchworkGame) placedPatch(rep engine.TurnReport) *EventPatch {
	row, col := rep.Row, rep.Col
	ev := &EventPatch{ID: rep.PatchID, Row: &row, Col: &col}
	for _, pl := range g.Engine.Players[rep.Actor].Quilt.Placements() {
		if pl.Patch.ID == rep.PatchID {
			pv := engine.NewPatchView(pl.Patch)
			ev.Price, ev.Movement, ev.Income, ev.Rows = pv.Price, pv.Movement, pv.Income, pv.Rows
		}
	}
	return ev
}

func (g *PatchworkGame) eventUser(playerID uuid.UUID) *EventUser {
	u := &EventUser{ID: playerID}
	if p := g.getPlayerByID(playerID); p != nil {
		u.Name = p.Name
	}
	return u
}

// onTurnAdvanced announces the next decision and restarts the turn timer.
// Assumes lock is held by caller.
func (g *PatchworkGame) onTurnAdvanced() {
	g.TurnID++
	g.broadcastPlayerTurn()
	g.scheduleNextTurnTimer()
}

// currentPlayerID returns the player the engine is waiting for.
// Assumes lock is held by caller.
func (g *PatchworkGame) currentPlayerID() uuid.UUID {
	return g.EngineToPlayer[g.Engine.ActingPlayer()]
}

// broadcastPlayerTurn notifies all players whose decision is next.
// Assumes lock is held by caller.
func (g *PatchworkGame) broadcastPlayerTurn() {
	if g.GameOver || !g.Started || g.Engine.IsTerminal() {
		return
	}
	playerID := g.currentPlayerID()
	payload := map[string]interface{}{
		"turn":     g.TurnID,
		"decision": g.Engine.DecisionCtx().String(),
	}
	g.logger.Debugf("turn %d: %s for player %s", g.TurnID, g.Engine.DecisionCtx(), playerID)
	g.fireEvent(GameEvent{Type: EventGamePlayerTurn, User: g.eventUser(playerID), Payload: payload})
	g.logAction(playerID, string(EventGamePlayerTurn), payload)
}

// scheduleNextTurnTimer arms the timer for the current decision.
// Assumes lock is held by caller.
func (g *PatchworkGame) scheduleNextTurnTimer() {
	if g.turnTimer != nil {
		g.turnTimer.Stop()
		g.turnTimer = nil
	}
	if g.TurnDuration <= 0 || g.GameOver || !g.Started || g.closed {
		return
	}

	expectedTurnID := g.TurnID
	playerID := g.currentPlayerID()
	g.turnTimer = time.AfterFunc(g.TurnDuration, func() {
		g.Mu.Lock()
		defer g.Mu.Unlock()
		if g.GameOver || !g.Started || g.closed || g.TurnID != expectedTurnID {
			return
		}
		g.handleTimeout(playerID)
	})
}

// handleTimeout acts for a player who let the timer run out: a pending free
// patch goes to its first legal spot, otherwise the player passes.
// Assumes lock is held by caller.
func (g *PatchworkGame) handleTimeout(playerID uuid.UUID) {
	g.logger.Infof("player %s timed out on turn %d", playerID, g.TurnID)
	g.logAction(playerID, "player_timeout", map[string]interface{}{"turn": g.TurnID})

	var err error
	switch g.Engine.DecisionCtx() {
	case engine.CtxPlaceFreePatch:
		pending, _ := g.Engine.PendingFreePatch()
		pl, ok := g.Engine.PlacementHint(pending)
		if !ok {
			err = fmt.Errorf("no legal spot for free patch %d", pending.ID)
			break
		}
		err = g.Engine.PlaceFreePatch(pl)
	case engine.CtxChooseAction:
		err = g.Engine.Pass()
	default:
		return
	}
	if err != nil {
		g.logger.WithError(err).Errorf("timeout action for %s failed", playerID)
		return
	}
	g.afterEngineAction(playerID)
}

func mergePayload(a, b map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
