// internal/game/game_test.go
package game

import (
	"context"
	"sync"
	"testing"
	"time"

	engine "github.com/bruno00o/Patchwork/engine"
	"github.com/bruno00o/Patchwork/service/internal/cache"
	"github.com/bruno00o/Patchwork/service/internal/database"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockBroadcaster captures game events for testing assertions.
type mockBroadcaster struct {
	mu           sync.Mutex
	allEvents    []GameEvent
	playerEvents map[uuid.UUID][]GameEvent
}

func newMockBroadcaster() *mockBroadcaster {
	return &mockBroadcaster{
		playerEvents: make(map[uuid.UUID][]GameEvent),
	}
}

func (mb *mockBroadcaster) broadcastFn(ev GameEvent) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = append(mb.allEvents, ev)
}

func (mb *mockBroadcaster) broadcastToPlayerFn(playerID uuid.UUID, ev GameEvent) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.playerEvents[playerID] = append(mb.playerEvents[playerID], ev)
}

func (mb *mockBroadcaster) clear() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = []GameEvent{}
	mb.playerEvents = make(map[uuid.UUID][]GameEvent)
}

func (mb *mockBroadcaster) types() []GameEventType {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	out := make([]GameEventType, len(mb.allEvents))
	for i, ev := range mb.allEvents {
		out[i] = ev.Type
	}
	return out
}

func (mb *mockBroadcaster) getLastEvent() *GameEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if len(mb.allEvents) == 0 {
		return nil
	}
	return &mb.allEvents[len(mb.allEvents)-1]
}

func (mb *mockBroadcaster) getLastPlayerEvent(playerID uuid.UUID) *GameEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	events := mb.playerEvents[playerID]
	if len(events) == 0 {
		return nil
	}
	return &events[len(events)-1]
}

func (mb *mockBroadcaster) find(typ GameEventType) *GameEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	for i := range mb.allEvents {
		if mb.allEvents[i].Type == typ {
			return &mb.allEvents[i]
		}
	}
	return nil
}

type fakeHistorian struct {
	mu   sync.Mutex
	recs []cache.GameActionRecord
}

func (f *fakeHistorian) PublishGameAction(_ context.Context, rec cache.GameActionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, rec)
	return nil
}

func (f *fakeHistorian) hasType(actionType string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.recs {
		if r.ActionType == actionType {
			return true
		}
	}
	return false
}

type fakeArchive struct {
	mu     sync.Mutex
	stored []database.FinalGameState
}

func (f *fakeArchive) StoreFinalGameState(_ context.Context, state database.FinalGameState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = append(f.stored, state)
	return nil
}

func (f *fakeArchive) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stored)
}

// testTrack returns an n-square layout with the given bonuses.
func testTrack(n int, bonuses map[int]engine.Bonus) []engine.Bonus {
	layout := make([]engine.Bonus, n)
	for i, b := range bonuses {
		layout[i] = b
	}
	return layout
}

// testCatalog has five affordable patches; free patch ids start at 6.
func testCatalog(track []engine.Bonus) *engine.Catalog {
	return &engine.Catalog{
		Patches: []engine.PatchDefinition{
			{Price: 2, Movement: 1, Income: 0, Mask: "**"},
			{Price: 3, Movement: 2, Income: 1, Mask: "**,**"},
			{Price: 1, Movement: 1, Income: 0, Mask: "***"},
			{Price: 4, Movement: 3, Income: 2, Mask: "*.,**"},
			{Price: 2, Movement: 2, Income: 0, Mask: "*"},
		},
		Track: track,
	}
}

// newTestGame seats two players on the given track without starting.
func newTestGame(t *testing.T, track []engine.Bonus) (*PatchworkGame, []*Player, *mockBroadcaster) {
	t.Helper()
	g := NewPatchworkGame(engine.BasicHouseRules())
	g.Catalog = testCatalog(track)
	mb := newMockBroadcaster()
	g.BroadcastFn = mb.broadcastFn
	g.BroadcastToPlayerFn = mb.broadcastToPlayerFn

	players := []*Player{NewPlayer("Ada"), NewPlayer("Bob")}
	for _, p := range players {
		require.NoError(t, g.AddPlayer(p))
	}
	return g, players, mb
}

// setupTestGame returns a started game with the setup events cleared.
func setupTestGame(t *testing.T, track []engine.Bonus) (*PatchworkGame, []*Player, *mockBroadcaster) {
	t.Helper()
	g, players, mb := newTestGame(t, track)
	require.NoError(t, g.Start(1))
	require.True(t, g.Started, "Game should be marked as started")
	mb.clear()
	return g, players, mb
}

// placeMarker moves a marker without resolving bonuses.
// Assumes lock is held by caller or the game is otherwise idle.
func placeMarker(t *testing.T, g *PatchworkGame, player, pos int) {
	t.Helper()
	_, err := g.Engine.Track.Advance(player, pos)
	require.NoError(t, err)
	g.Engine.Players[player].Position = pos
}

func TestStartAnnouncesFirstTurn(t *testing.T) {
	g, players, mb := newTestGame(t, testTrack(10, nil))
	require.NoError(t, g.Start(7))

	assert.Equal(t, []GameEventType{EventGameStart, EventGamePlayerTurn}, mb.types())
	start := mb.find(EventGameStart)
	require.NotNil(t, start.State)
	assert.Len(t, start.State.Players, 2)
	assert.Equal(t, players[0].ID, start.State.CurrentPlayerID)

	turn := mb.getLastEvent()
	assert.Equal(t, players[0].ID, turn.User.ID)
	assert.Equal(t, "choose_action", turn.Payload["decision"])
	assert.Equal(t, 1, g.TurnID)
	assert.Equal(t, uint64(7), g.Seed)
	assert.Equal(t, 0, g.PlayerToEngine[players[0].ID])
	assert.Equal(t, players[1].ID, g.EngineToPlayer[1])

	err := g.Start(7)
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestAddPlayerErrors(t *testing.T) {
	g, players, _ := newTestGame(t, testTrack(10, nil))
	assert.ErrorIs(t, g.AddPlayer(players[0]), ErrDuplicatePlayer)

	require.NoError(t, g.Start(1))
	err := g.AddPlayer(NewPlayer("Late"))
	assert.ErrorIs(t, err, ErrAlreadyStarted)
	assert.ErrorIs(t, err, engine.ErrPrecondition)
}

func TestStartRejectsWrongSeatCount(t *testing.T) {
	g := NewPatchworkGame(engine.BasicHouseRules())
	g.Catalog = testCatalog(testTrack(10, nil))
	require.NoError(t, g.AddPlayer(NewPlayer("Solo")))
	err := g.Start(1)
	assert.ErrorIs(t, err, engine.ErrConfig)
	assert.False(t, g.Started)
}

func TestActionBeforeStart(t *testing.T) {
	g, players, _ := newTestGame(t, testTrack(10, nil))
	err := g.HandlePlayerAction(players[0].ID, PlayerAction{Type: ActionPass})
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestPassAdvancesTurn(t *testing.T) {
	g, players, mb := setupTestGame(t, testTrack(10, nil))
	placeMarker(t, g, 1, 3)

	require.NoError(t, g.HandlePlayerAction(players[0].ID, PlayerAction{Type: ActionPass}))

	assert.Equal(t, []GameEventType{EventPlayerPass, EventGamePlayerTurn}, mb.types())
	pass := mb.find(EventPlayerPass)
	assert.Equal(t, players[0].ID, pass.User.ID)
	assert.Equal(t, "Ada", pass.User.Name)
	assert.Equal(t, 0, pass.Payload["from"])
	assert.Equal(t, 4, pass.Payload["to"])
	assert.Equal(t, 4, pass.Payload["moneyDelta"])
	assert.Equal(t, false, pass.Payload["noOp"])

	assert.Equal(t, players[1].ID, mb.getLastEvent().User.ID)
	assert.Equal(t, 9, g.Engine.Players[0].Money)
	assert.Equal(t, 2, g.TurnID)
}

func TestNoOpPassesStallTheGame(t *testing.T) {
	g, players, mb := setupTestGame(t, testTrack(10, nil))

	// Both markers start level, so neither pass moves.
	require.NoError(t, g.HandlePlayerAction(players[0].ID, PlayerAction{Type: ActionPass}))
	pass := mb.find(EventPlayerPass)
	assert.Equal(t, true, pass.Payload["noOp"])
	assert.Equal(t, 0, pass.Payload["moneyDelta"])
	assert.False(t, g.GameOver)

	require.NoError(t, g.HandlePlayerAction(players[1].ID, PlayerAction{Type: ActionPass}))
	assert.True(t, g.GameOver)
	assert.Equal(t, EventGameEnd, mb.getLastEvent().Type)
}

func TestNotYourTurnRejected(t *testing.T) {
	g, players, mb := setupTestGame(t, testTrack(10, nil))

	err := g.HandlePlayerAction(players[1].ID, PlayerAction{Type: ActionPass})
	assert.ErrorIs(t, err, ErrNotYourTurn)
	assert.ErrorIs(t, err, engine.ErrRejected)

	assert.Empty(t, mb.types(), "rejections must not broadcast publicly")
	private := mb.getLastPlayerEvent(players[1].ID)
	require.NotNil(t, private)
	assert.Equal(t, EventPrivateActionRejected, private.Type)
	assert.Equal(t, string(ActionPass), private.Payload["action"])
	assert.Equal(t, 0, g.Engine.ActingPlayer())
}

func TestUnknownActionRejected(t *testing.T) {
	g, players, _ := setupTestGame(t, testTrack(10, nil))
	err := g.HandlePlayerAction(players[0].ID, PlayerAction{Type: "action_snap"})
	assert.ErrorIs(t, err, ErrUnknownAction)

	err = g.HandlePlayerAction(uuid.New(), PlayerAction{Type: ActionPass})
	assert.ErrorIs(t, err, ErrUnknownPlayer)
}

func TestBuyPlacesPatch(t *testing.T) {
	g, players, mb := setupTestGame(t, testTrack(20, nil))
	chosen := g.Engine.Window()[0]

	require.NoError(t, g.HandlePlayerAction(players[0].ID, PlayerAction{Type: ActionBuy, Window: 0, Row: 0, Col: 0}))

	buy := mb.find(EventPlayerBuy)
	require.NotNil(t, buy)
	require.NotNil(t, buy.Patch)
	assert.Equal(t, chosen.ID, buy.Patch.ID)
	assert.Equal(t, chosen.Price, buy.Patch.Price)
	require.NotNil(t, buy.Patch.Row)
	assert.Equal(t, 0, *buy.Patch.Row)
	assert.Equal(t, -chosen.Price, buy.Payload["moneyDelta"])

	p := g.Engine.Players[0]
	assert.Equal(t, 5-chosen.Price, p.Money)
	assert.Equal(t, chosen.Movement, p.Position)
	assert.Equal(t, chosen.ID, p.Quilt.Occupancy()[0][0])
	assert.False(t, g.Engine.Market.Contains(chosen.ID))
}

func TestBuyRotated(t *testing.T) {
	g, players, _ := setupTestGame(t, testTrack(20, nil))
	idx := -1
	for i, p := range g.Engine.Window() {
		if p.Width() != p.Height() {
			idx = i
			break
		}
	}
	if idx < 0 {
		t.Skip("window holds only square patches for this seed")
	}
	chosen := g.Engine.Window()[idx]
	rotated := chosen.Orient(1, false)

	require.NoError(t, g.HandlePlayerAction(players[0].ID, PlayerAction{Type: ActionBuy, Window: idx, Row: 0, Col: 0, Rotation: 1}))

	placed := g.Engine.Players[0].Quilt.Placements()
	require.Len(t, placed, 1)
	assert.Equal(t, rotated.String(), placed[0].Patch.String())
}

func TestBuyRejectionLeavesStateUntouched(t *testing.T) {
	g, players, mb := setupTestGame(t, testTrack(10, nil))
	g.Engine.Players[0].Money = 0
	before := g.Engine.View()

	err := g.HandlePlayerAction(players[0].ID, PlayerAction{Type: ActionBuy, Window: 0})
	assert.ErrorIs(t, err, engine.ErrInsufficientFunds)

	err = g.HandlePlayerAction(players[0].ID, PlayerAction{Type: ActionBuy, Window: 7})
	assert.ErrorIs(t, err, engine.ErrChoiceOutOfRange)

	assert.Equal(t, before, g.Engine.View())
	assert.Empty(t, mb.types())
	assert.Equal(t, EventPrivateActionRejected, mb.getLastPlayerEvent(players[0].ID).Type)
	assert.Equal(t, 1, g.TurnID)
}

func TestFreePatchFlow(t *testing.T) {
	g, players, mb := setupTestGame(t, testTrack(10, map[int]engine.Bonus{1: engine.BonusFreePatch}))
	placeMarker(t, g, 1, 1)

	require.NoError(t, g.HandlePlayerAction(players[0].ID, PlayerAction{Type: ActionPass}))
	assert.Equal(t, []GameEventType{EventPlayerPass, EventPlayerFreePatch, EventGamePlayerTurn}, mb.types())
	collected := mb.find(EventPlayerFreePatch)
	assert.Equal(t, 6, collected.Patch.ID)
	turn := mb.getLastEvent()
	assert.Equal(t, players[0].ID, turn.User.ID, "the collector places the free patch")
	assert.Equal(t, "place_free_patch", turn.Payload["decision"])

	err := g.HandlePlayerAction(players[1].ID, PlayerAction{Type: ActionPass})
	assert.ErrorIs(t, err, ErrNotYourTurn)
	err = g.HandlePlayerAction(players[0].ID, PlayerAction{Type: ActionPass})
	assert.ErrorIs(t, err, engine.ErrWrongPhase)

	mb.clear()
	require.NoError(t, g.HandlePlayerAction(players[0].ID, PlayerAction{Type: ActionPlaceFreePatch, Row: 4, Col: 4}))
	assert.Equal(t, []GameEventType{EventPlayerFreePatchPlaced, EventGamePlayerTurn}, mb.types())
	assert.Equal(t, 6, g.Engine.Players[0].Quilt.Occupancy()[4][4])
	assert.Equal(t, players[1].ID, mb.getLastEvent().User.ID)
}

func TestIncomeEvent(t *testing.T) {
	g, players, mb := setupTestGame(t, testTrack(10, map[int]engine.Bonus{1: engine.BonusIncome}))
	placeMarker(t, g, 1, 1)
	g.Engine.Players[0].Income = 3

	require.NoError(t, g.HandlePlayerAction(players[0].ID, PlayerAction{Type: ActionPass}))
	income := mb.find(EventPlayerButtonIncome)
	require.NotNil(t, income)
	assert.Equal(t, 1, income.Payload["squares"])
	assert.Equal(t, 3, income.Payload["income"])
	// 2 for the squares moved plus 3 income.
	assert.Equal(t, 10, g.Engine.Players[0].Money)
}

func TestGameEndFiresCallbacksAndSinks(t *testing.T) {
	g, players, mb := newTestGame(t, testTrack(3, nil))
	hist := &fakeHistorian{}
	arch := &fakeArchive{}
	g.Historian = hist
	g.Archive = arch

	var gotWinners []uuid.UUID
	var gotScores map[uuid.UUID]int
	endCalls := 0
	g.OnGameEnd = func(gameID uuid.UUID, winners []uuid.UUID, scores map[uuid.UUID]int) {
		endCalls++
		assert.Equal(t, g.ID, gameID)
		gotWinners, gotScores = winners, scores
	}
	require.NoError(t, g.Start(3))
	placeMarker(t, g, 1, 1)

	// A 0->2 (+2), then B 1->2 (+1, clamped): both markers on the last square.
	require.NoError(t, g.HandlePlayerAction(players[0].ID, PlayerAction{Type: ActionPass}))
	require.NoError(t, g.HandlePlayerAction(players[1].ID, PlayerAction{Type: ActionPass}))

	assert.True(t, g.GameOver)
	assert.Equal(t, EventGameEnd, mb.getLastEvent().Type)
	assert.Equal(t, 1, endCalls)
	assert.Equal(t, []uuid.UUID{players[0].ID}, gotWinners)
	assert.Equal(t, 7-2*81, gotScores[players[0].ID])
	assert.Equal(t, 6-2*81, gotScores[players[1].ID])

	res, ok := g.Result()
	require.True(t, ok)
	assert.False(t, res.Tie)

	err := g.HandlePlayerAction(players[1].ID, PlayerAction{Type: ActionPass})
	assert.ErrorIs(t, err, ErrSessionOver)

	g.Flush()
	require.Equal(t, 1, arch.count())
	assert.True(t, hist.hasType(string(EventGameStart)))
	assert.True(t, hist.hasType(string(EventPlayerPass)))
	assert.True(t, hist.hasType(string(EventGameEnd)))
	arch.mu.Lock()
	stored := arch.stored[0]
	arch.mu.Unlock()
	assert.Equal(t, g.ID, stored.GameID)
	assert.Equal(t, "basic", stored.Variant)
	require.Len(t, stored.Players, 2)
	assert.Equal(t, "Ada", stored.Players[0].Name)
	assert.Len(t, stored.Players[0].Quilt, 9)
	assert.False(t, stored.Tie)
	assert.Equal(t, []uuid.UUID{players[0].ID}, stored.Winners)
}

func TestEndGameAbortsRunningGame(t *testing.T) {
	g, players, mb := setupTestGame(t, testTrack(10, nil))
	g.Engine.Players[1].Money = 50

	g.EndGame()
	assert.True(t, g.GameOver)
	res, ok := g.Result()
	require.True(t, ok)
	assert.Equal(t, []uuid.UUID{players[1].ID}, res.Winners)
	assert.False(t, res.Tie)
	assert.Equal(t, EventGameEnd, mb.getLastEvent().Type)

	mb.clear()
	g.EndGame()
	assert.Empty(t, mb.types(), "second EndGame is a no-op")
}

func TestTurnTimeoutPassesForPlayer(t *testing.T) {
	g, players, mb := newTestGame(t, testTrack(30, nil))
	g.TurnDuration = 20 * time.Millisecond
	require.NoError(t, g.Start(1))
	defer g.EndGame()
	g.Mu.Lock()
	placeMarker(t, g, 1, 5)
	g.Mu.Unlock()

	assert.Eventually(t, func() bool {
		return mb.find(EventPlayerPass) != nil
	}, 2*time.Second, 5*time.Millisecond)

	pass := mb.find(EventPlayerPass)
	assert.Equal(t, players[0].ID, pass.User.ID)
	assert.Equal(t, 6, pass.Payload["to"])

	g.Mu.Lock()
	defer g.Mu.Unlock()
	assert.GreaterOrEqual(t, g.Engine.Players[0].Position, 6)
	assert.GreaterOrEqual(t, g.TurnID, 2)
}

func TestCloseDisarmsTurnTimer(t *testing.T) {
	g, players, mb := newTestGame(t, testTrack(30, nil))
	hist := &fakeHistorian{}
	g.Historian = hist
	g.TurnDuration = 20 * time.Millisecond
	require.NoError(t, g.Start(1))
	g.Mu.Lock()
	placeMarker(t, g, 1, 5)
	g.Mu.Unlock()

	g.Close()
	time.Sleep(60 * time.Millisecond)

	assert.Nil(t, mb.find(EventPlayerPass))
	assert.False(t, hist.hasType("player_timeout"))
	g.Mu.Lock()
	defer g.Mu.Unlock()
	assert.Nil(t, g.turnTimer)
	assert.Equal(t, 0, g.Engine.Players[0].Position)
	assert.Equal(t, players[0].ID, g.currentPlayerID())
}

func TestTurnTimeoutPlacesFreePatch(t *testing.T) {
	g, players, _ := setupTestGame(t, testTrack(10, map[int]engine.Bonus{1: engine.BonusFreePatch}))
	placeMarker(t, g, 1, 1)
	require.NoError(t, g.HandlePlayerAction(players[0].ID, PlayerAction{Type: ActionPass}))
	require.Equal(t, engine.CtxPlaceFreePatch, g.Engine.DecisionCtx())

	g.Mu.Lock()
	g.handleTimeout(players[0].ID)
	g.Mu.Unlock()

	assert.Equal(t, engine.CtxChooseAction, g.Engine.DecisionCtx())
	assert.Equal(t, 6, g.Engine.Players[0].Quilt.Occupancy()[0][0])
	assert.Equal(t, 1, g.Engine.ActingPlayer())
}

func TestSnapshot(t *testing.T) {
	g, players, _ := setupTestGame(t, testTrack(10, nil))

	s := g.Snapshot(players[1].ID)
	assert.Equal(t, g.ID, s.GameID)
	assert.Equal(t, "choose_action", s.Decision)
	assert.Equal(t, players[0].ID, s.CurrentPlayerID)
	require.Len(t, s.Players, 2)
	assert.True(t, s.Players[0].IsCurrentTurn)
	assert.False(t, s.Players[0].IsSelf)
	assert.True(t, s.Players[1].IsSelf)
	assert.True(t, s.Players[1].Connected)
	assert.Len(t, s.Window, 3)
	assert.Len(t, s.Track, 10)
	assert.Nil(t, s.SpecialOwnerID)
	assert.Nil(t, s.PendingFreePatch)
}

func TestReconnectSendsSync(t *testing.T) {
	g, players, mb := setupTestGame(t, testTrack(10, nil))

	g.HandleDisconnect(players[1].ID)
	assert.False(t, g.Snapshot(uuid.Nil).Players[1].Connected)

	// Private events skip disconnected players.
	err := g.HandlePlayerAction(players[1].ID, PlayerAction{Type: ActionPass})
	assert.ErrorIs(t, err, ErrNotYourTurn)
	assert.Nil(t, mb.getLastPlayerEvent(players[1].ID))

	g.HandleReconnect(players[1].ID)
	ev := mb.getLastPlayerEvent(players[1].ID)
	require.NotNil(t, ev)
	assert.Equal(t, EventPrivateSyncState, ev.Type)
	require.NotNil(t, ev.State)
	assert.True(t, ev.State.Players[1].IsSelf)
	assert.True(t, ev.State.Players[1].Connected)
}
