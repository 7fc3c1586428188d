// internal/game/driver.go
package game

import (
	"context"
	"errors"
	"fmt"

	engine "github.com/bruno00o/Patchwork/engine"
	"github.com/google/uuid"
)

// ErrFreePatchRequired is returned when a player backs out of placing a free
// patch. Free patches cannot be declined while they fit.
var ErrFreePatchRequired = errors.New("the free patch must be placed")

// Choice is an answer at the action prompt: pass, or buy the window patch at
// index Window.
type Choice struct {
	Pass   bool
	Window int
}

// Display is an interactive front end driven by Run. Its methods are called
// from one goroutine; Notify may also be called from the turn timer.
type Display interface {
	ShowState(v engine.View)
	ChooseAction(ctx context.Context, v engine.View) (Choice, error)
	// ChoosePlacement returns an orientation of p anchored on the acting
	// player's quilt, or false when the player backs out.
	ChoosePlacement(ctx context.Context, v engine.View, p engine.Patch) (engine.Placement, bool, error)
	Reject(err error)
	Notify(ev GameEvent)
	ShowOutcome(v engine.View, o engine.Outcome)
}

type decision struct {
	over    bool
	ctx     engine.DecisionContext
	player  uuid.UUID
	view    engine.View
	window  []engine.Patch
	pending engine.Patch
	outcome engine.Outcome
}

// Run asks the display for each decision in turn until the game ends or ctx
// is cancelled. Rejected choices are reported and asked again. When the game
// has no BroadcastFn, public events go to d.Notify.
func Run(ctx context.Context, g *PatchworkGame, d Display) error {
	g.Mu.Lock()
	if g.BroadcastFn == nil {
		g.BroadcastFn = d.Notify
	}
	g.Mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		next, err := g.nextDecision()
		if err != nil {
			return err
		}
		if next.over {
			d.ShowOutcome(next.view, next.outcome)
			return nil
		}
		d.ShowState(next.view)

		var action PlayerAction
		switch next.ctx {
		case engine.CtxPlaceFreePatch:
			pl, ok, err := d.ChoosePlacement(ctx, next.view, next.pending)
			if err != nil {
				return err
			}
			if !ok {
				d.Reject(fmt.Errorf("%w: %w", engine.ErrRejected, ErrFreePatchRequired))
				continue
			}
			if action, err = placementAction(ActionPlaceFreePatch, 0, next.pending, pl); err != nil {
				return err
			}
		case engine.CtxChooseAction:
			choice, err := d.ChooseAction(ctx, next.view)
			if err != nil {
				return err
			}
			if choice.Pass {
				action = PlayerAction{Type: ActionPass}
				break
			}
			if err := g.CheckPurchase(choice.Window); err != nil {
				if err := report(d, err); err != nil {
					return err
				}
				continue
			}
			patch := next.window[choice.Window]
			pl, ok, err := d.ChoosePlacement(ctx, next.view, patch)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if action, err = placementAction(ActionBuy, choice.Window, patch, pl); err != nil {
				return err
			}
		}

		if err := g.HandlePlayerAction(next.player, action); err != nil {
			if err := report(d, err); err != nil {
				return err
			}
		}
	}
}

// nextDecision captures what the game is waiting for.
func (g *PatchworkGame) nextDecision() (decision, error) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if g.Engine == nil {
		return decision{}, fmt.Errorf("%w: %w", engine.ErrPrecondition, ErrNotStarted)
	}
	d := decision{
		over: g.GameOver,
		ctx:  g.Engine.DecisionCtx(),
		view: g.Engine.View(),
	}
	if d.over {
		d.outcome = g.Engine.Outcome()
		return d, nil
	}
	d.player = g.currentPlayerID()
	d.window = g.Engine.Window()
	d.pending, _ = g.Engine.PendingFreePatch()
	return d, nil
}

// report shows recoverable errors on the display and returns the rest.
func report(d Display, err error) error {
	switch {
	case errors.Is(err, ErrSessionOver):
		return nil
	case errors.Is(err, engine.ErrRejected):
		d.Reject(err)
		return nil
	}
	return err
}

// placementAction converts a placement of base into a PlayerAction.
func placementAction(kind ActionType, window int, base engine.Patch, pl engine.Placement) (PlayerAction, error) {
	rot, flip, ok := orientationOf(base, pl.Patch)
	if !ok {
		return PlayerAction{}, fmt.Errorf("%w: %w: patch %d", engine.ErrPrecondition, engine.ErrPatchMismatch, base.ID)
	}
	return PlayerAction{Type: kind, Window: window, Row: pl.Row, Col: pl.Col, Rotation: rot, Flipped: flip}, nil
}

// orientationOf finds the rotation and flip that turn base into oriented.
func orientationOf(base, oriented engine.Patch) (rot int, flip bool, ok bool) {
	if !base.SameAs(oriented) {
		return 0, false, false
	}
	want := oriented.String()
	for rot = 0; rot < 4; rot++ {
		for _, flip = range []bool{false, true} {
			if base.Orient(rot, flip).String() == want {
				return rot, flip, true
			}
		}
	}
	return 0, false, false
}
