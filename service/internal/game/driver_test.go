// internal/game/driver_test.go
package game

import (
	"context"
	"errors"
	"testing"

	engine "github.com/bruno00o/Patchwork/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedDisplay answers prompts from fixed queues.
type scriptedDisplay struct {
	choices    []Choice
	placements []*engine.Placement // nil entry backs out
	asked      int
	placed     int
	states     int
	rejected   []error
	notified   []GameEventType
	outcome    *engine.Outcome
}

func (d *scriptedDisplay) ShowState(engine.View) { d.states++ }

func (d *scriptedDisplay) ChooseAction(context.Context, engine.View) (Choice, error) {
	if d.asked >= len(d.choices) {
		return Choice{}, errors.New("script exhausted")
	}
	c := d.choices[d.asked]
	d.asked++
	return c, nil
}

func (d *scriptedDisplay) ChoosePlacement(_ context.Context, _ engine.View, p engine.Patch) (engine.Placement, bool, error) {
	if d.placed >= len(d.placements) {
		return engine.Placement{}, false, errors.New("script exhausted")
	}
	pl := d.placements[d.placed]
	d.placed++
	if pl == nil {
		return engine.Placement{}, false, nil
	}
	out := *pl
	out.Patch = p.Orient(pl.Patch.Rotation, pl.Patch.Flipped)
	return out, true, nil
}

func (d *scriptedDisplay) Reject(err error) { d.rejected = append(d.rejected, err) }

func (d *scriptedDisplay) Notify(ev GameEvent) { d.notified = append(d.notified, ev.Type) }

func (d *scriptedDisplay) ShowOutcome(_ engine.View, o engine.Outcome) { d.outcome = &o }

func TestRunRepromptsAndFinishes(t *testing.T) {
	g, players, _ := setupTestGame(t, testTrack(3, nil))
	g.BroadcastFn = nil
	placeMarker(t, g, 1, 1)

	d := &scriptedDisplay{
		choices: []Choice{
			{Window: 9},  // out of range: re-prompted
			{Window: 0},  // backs out of the placement
			{Pass: true}, // A 0->2
			{Pass: true}, // B 1->2, game over
		},
		placements: []*engine.Placement{nil},
	}
	require.NoError(t, Run(context.Background(), g, d))

	assert.Equal(t, 4, d.asked)
	assert.Equal(t, 1, d.placed)
	require.Len(t, d.rejected, 1)
	assert.ErrorIs(t, d.rejected[0], engine.ErrChoiceOutOfRange)
	require.NotNil(t, d.outcome)
	assert.Equal(t, []int{0}, d.outcome.Winners)
	assert.Contains(t, d.notified, EventGameEnd, "Run wires Notify as the broadcaster")
	assert.True(t, g.GameOver)

	res, ok := g.Result()
	require.True(t, ok)
	assert.Equal(t, players[0].ID, res.Winners[0])
}

func TestRunBuysWithOrientation(t *testing.T) {
	g, _, _ := setupTestGame(t, testTrack(20, nil))
	chosen := g.Engine.Window()[0]

	d := &scriptedDisplay{
		choices:    []Choice{{Window: 0}},
		placements: []*engine.Placement{{Patch: engine.Patch{Rotation: 1, Flipped: true}, Row: 2, Col: 3}},
	}
	// The script runs dry on the next prompt.
	err := Run(context.Background(), g, d)
	require.EqualError(t, err, "script exhausted")

	placed := g.Engine.Players[0].Quilt.Placements()
	require.Len(t, placed, 1)
	assert.Equal(t, chosen.ID, placed[0].Patch.ID)
	assert.Equal(t, chosen.Orient(1, true).String(), placed[0].Patch.String())
	assert.Equal(t, 2, placed[0].Row)
	assert.Equal(t, 3, placed[0].Col)
}

func TestRunFreePatchCannotBeDeclined(t *testing.T) {
	g, _, _ := setupTestGame(t, testTrack(10, map[int]engine.Bonus{1: engine.BonusFreePatch}))
	placeMarker(t, g, 1, 1)

	d := &scriptedDisplay{
		choices:    []Choice{{Pass: true}},
		placements: []*engine.Placement{nil, {Row: 0, Col: 0}},
	}
	err := Run(context.Background(), g, d)
	require.EqualError(t, err, "script exhausted")

	require.Len(t, d.rejected, 1)
	assert.ErrorIs(t, d.rejected[0], ErrFreePatchRequired)
	assert.Equal(t, 6, g.Engine.Players[0].Quilt.Occupancy()[0][0])
}

func TestRunStopsOnCancel(t *testing.T) {
	g, _, _ := setupTestGame(t, testTrack(10, nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Run(ctx, g, &scriptedDisplay{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunRequiresStartedGame(t *testing.T) {
	g, _, _ := newTestGame(t, testTrack(10, nil))
	err := Run(context.Background(), g, &scriptedDisplay{})
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestOrientationOf(t *testing.T) {
	base, err := engine.NewPatch(1, 0, 0, 0, [][]bool{{true, false}, {true, true}, {false, true}})
	require.NoError(t, err)
	for rot := 0; rot < 4; rot++ {
		for _, flip := range []bool{false, true} {
			target := base.Orient(rot, flip)
			gotRot, gotFlip, ok := orientationOf(base, target)
			require.True(t, ok)
			assert.Equal(t, target.String(), base.Orient(gotRot, gotFlip).String())
		}
	}
	other, err := engine.NewPatch(2, 0, 0, 0, [][]bool{{true}})
	require.NoError(t, err)
	_, _, ok := orientationOf(base, other)
	assert.False(t, ok)
}
