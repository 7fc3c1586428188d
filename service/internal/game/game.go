// internal/game/game.go
package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	engine "github.com/bruno00o/Patchwork/engine"
	"github.com/bruno00o/Patchwork/service/internal/cache"
	"github.com/bruno00o/Patchwork/service/internal/database"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Session errors. Each wraps engine.ErrRejected or engine.ErrPrecondition so
// callers handle them the same way as engine errors.
var (
	ErrNotStarted      = errors.New("game has not started")
	ErrAlreadyStarted  = errors.New("game already started")
	ErrSessionOver     = errors.New("game is over")
	ErrUnknownPlayer   = errors.New("unknown player")
	ErrDuplicatePlayer = errors.New("player already seated")
	ErrNotYourTurn     = errors.New("not your turn")
	ErrUnknownAction   = errors.New("unknown action type")
)

// OnGameEndFunc is called once when a game finishes, with every tied winner.
type OnGameEndFunc func(gameID uuid.UUID, winners []uuid.UUID, scores map[uuid.UUID]int)

// Player is a seat in a game.
type Player struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Connected bool      `json:"connected"`
}

// NewPlayer returns a connected player with a fresh ID.
func NewPlayer(name string) *Player {
	return &Player{ID: uuid.New(), Name: name, Connected: true}
}

// ActionType names a player action.
type ActionType string

const (
	ActionBuy            ActionType = "action_buy"
	ActionPass           ActionType = "action_pass"
	ActionPlaceFreePatch ActionType = "action_place_free_patch"
)

// PlayerAction is one choice submitted by a player. Window applies to buys.
// Row and Col anchor the top-left cell of the patch after Rotation clockwise
// quarter turns and an optional horizontal flip.
type PlayerAction struct {
	Type     ActionType `json:"type"`
	Window   int        `json:"window,omitempty"`
	Row      int        `json:"row"`
	Col      int        `json:"col"`
	Rotation int        `json:"rotation,omitempty"`
	Flipped  bool       `json:"flipped,omitempty"`
}

// Result is the final standing of a finished game.
type Result struct {
	Scores  map[uuid.UUID]int
	Winners []uuid.UUID
	Tie     bool
}

// PatchworkGame is one running game session around an engine.GameState.
// Exported methods take Mu; callbacks run with Mu held and must not call back
// into the game.
type PatchworkGame struct {
	ID      uuid.UUID
	Rules   engine.HouseRules
	Catalog *engine.Catalog // nil loads the embedded catalog of Rules.Variant
	Seed    uint64

	Players []*Player

	Engine         *engine.GameState
	PlayerToEngine map[uuid.UUID]int
	EngineToPlayer []uuid.UUID

	// Turn Management
	TurnID       int
	TurnDuration time.Duration // 0 disables the turn timer
	turnTimer    *time.Timer
	actionIndex  int

	Started  bool
	GameOver bool
	closed   bool
	result   *Result

	Mu sync.Mutex

	BroadcastFn         func(ev GameEvent)
	BroadcastToPlayerFn func(playerID uuid.UUID, ev GameEvent)
	OnGameEnd           OnGameEndFunc

	Historian Historian // optional
	Archive   Archive   // optional

	sinkWrites sync.WaitGroup

	logger *log.Entry
}

// NewPatchworkGame creates an unstarted game with the given rules.
func NewPatchworkGame(rules engine.HouseRules) *PatchworkGame {
	id := uuid.New()
	return &PatchworkGame{
		ID:             id,
		Rules:          rules,
		PlayerToEngine: make(map[uuid.UUID]int),
		logger:         log.WithField("game", id),
	}
}

// AddPlayer seats p. Seats are taken in join order and fixed at Start.
func (g *PatchworkGame) AddPlayer(p *Player) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if g.Started || g.GameOver {
		return fmt.Errorf("%w: %w", engine.ErrPrecondition, ErrAlreadyStarted)
	}
	if g.getPlayerByID(p.ID) != nil {
		return fmt.Errorf("%w: %w: %s", engine.ErrRejected, ErrDuplicatePlayer, p.ID)
	}
	g.Players = append(g.Players, p)
	g.logger.Infof("player %s (%s) joined, %d seated", p.ID, p.Name, len(g.Players))
	return nil
}

// Start builds the engine from the seated players and announces the first turn.
func (g *PatchworkGame) Start(seed uint64) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if g.Started || g.GameOver {
		return fmt.Errorf("%w: %w", engine.ErrPrecondition, ErrAlreadyStarted)
	}
	if g.Rules.NumPlayers == 0 {
		g.Rules.NumPlayers = uint8(len(g.Players))
	}
	var catalog engine.Catalog
	if g.Catalog != nil {
		catalog = *g.Catalog
	} else {
		var err error
		if catalog, err = engine.LoadCatalog(g.Rules.Variant); err != nil {
			return err
		}
	}
	names := make([]string, len(g.Players))
	for i, p := range g.Players {
		names[i] = p.Name
	}
	eng, err := engine.NewGame(g.Rules, catalog, names, engine.NewRand(seed))
	if err != nil {
		return err
	}

	g.Engine = eng
	g.Seed = seed
	g.EngineToPlayer = make([]uuid.UUID, len(g.Players))
	for i, p := range g.Players {
		g.PlayerToEngine[p.ID] = i
		g.EngineToPlayer[i] = p.ID
	}
	g.Started = true
	g.logger.Infof("starting %s game with %d players, seed %d", g.Rules.Variant, len(g.Players), seed)

	payload := map[string]interface{}{
		"seed":    seed,
		"variant": g.Rules.Variant.String(),
		"players": names,
	}
	g.logAction(uuid.Nil, string(EventGameStart), payload)
	state := g.syncState(uuid.Nil)
	g.fireEvent(GameEvent{Type: EventGameStart, Payload: payload, State: &state})
	g.onTurnAdvanced()
	return nil
}

// HandlePlayerAction validates and applies one action. Rejected actions leave
// the game unchanged, are reported privately to the player and returned.
func (g *PatchworkGame) HandlePlayerAction(playerID uuid.UUID, action PlayerAction) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if g.GameOver {
		return fmt.Errorf("%w: %w", engine.ErrPrecondition, ErrSessionOver)
	}
	if !g.Started {
		return fmt.Errorf("%w: %w", engine.ErrPrecondition, ErrNotStarted)
	}
	engineIdx, ok := g.PlayerToEngine[playerID]
	if !ok {
		return fmt.Errorf("%w: %w: %s", engine.ErrRejected, ErrUnknownPlayer, playerID)
	}
	if engineIdx != g.Engine.ActingPlayer() {
		err := fmt.Errorf("%w: %w", engine.ErrRejected, ErrNotYourTurn)
		g.rejectAction(playerID, action, err)
		return err
	}

	var err error
	switch action.Type {
	case ActionBuy:
		err = g.applyBuy(action)
	case ActionPass:
		err = g.Engine.Pass()
	case ActionPlaceFreePatch:
		err = g.applyPlaceFreePatch(action)
	default:
		err = fmt.Errorf("%w: %w: %q", engine.ErrRejected, ErrUnknownAction, action.Type)
	}
	if err != nil {
		g.rejectAction(playerID, action, err)
		return err
	}
	g.afterEngineAction(playerID)
	return nil
}

// CheckPurchase reports whether the acting player may buy the window patch.
func (g *PatchworkGame) CheckPurchase(windowIdx int) error {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if g.Engine == nil {
		return fmt.Errorf("%w: %w", engine.ErrPrecondition, ErrNotStarted)
	}
	return g.Engine.CheckPurchase(windowIdx)
}

// EndGame stops the game now, scoring the current boards. Games normally end
// on their own when the engine reaches its terminal state.
func (g *PatchworkGame) EndGame() {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if !g.Started {
		return
	}
	g.endGame()
}

// Result returns the final standing once the game is over.
func (g *PatchworkGame) Result() (Result, bool) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if g.result == nil {
		return Result{}, false
	}
	return *g.result, true
}

// View returns the engine snapshot.
func (g *PatchworkGame) View() engine.View {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if g.Engine == nil {
		return engine.View{SpecialOwner: -1}
	}
	return g.Engine.View()
}

// Flush waits for pending historian and archive writes. Call it without
// holding Mu.
func (g *PatchworkGame) Flush() {
	g.sinkWrites.Wait()
}

// Close stops the turn timer, stops new sink writes and waits for the pending
// ones. The game can still be read but no longer acts on its own.
func (g *PatchworkGame) Close() {
	g.Mu.Lock()
	g.closed = true
	if g.turnTimer != nil {
		g.turnTimer.Stop()
		g.turnTimer = nil
	}
	g.Mu.Unlock()
	g.Flush()
}

// HandleDisconnect marks a player as disconnected. The game keeps running;
// the turn timer, if any, acts for them.
func (g *PatchworkGame) HandleDisconnect(playerID uuid.UUID) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	p := g.getPlayerByID(playerID)
	if p == nil {
		return
	}
	p.Connected = false
	g.logger.Infof("player %s disconnected", playerID)
	g.logAction(playerID, "player_disconnect", nil)
}

// HandleReconnect marks a player as connected and sends them a full sync.
func (g *PatchworkGame) HandleReconnect(playerID uuid.UUID) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	p := g.getPlayerByID(playerID)
	if p == nil {
		return
	}
	p.Connected = true
	g.logger.Infof("player %s reconnected", playerID)
	g.logAction(playerID, "player_reconnect", nil)
	if g.Started {
		g.sendSyncState(playerID)
	}
}

// endGame scores the game, records it and fires the end callbacks.
// Assumes lock is held by caller.
func (g *PatchworkGame) endGame() {
	if g.GameOver {
		g.logger.Debug("endGame called, but game is already over")
		return
	}
	g.GameOver = true
	g.Started = false
	if g.turnTimer != nil {
		g.turnTimer.Stop()
		g.turnTimer = nil
	}

	out := g.Engine.Outcome()
	scores := make(map[uuid.UUID]int, len(out.Scores))
	scoresPayload := make(map[string]int, len(out.Scores))
	for i, s := range out.Scores {
		scores[g.EngineToPlayer[i]] = s
		scoresPayload[g.EngineToPlayer[i].String()] = s
	}
	winners := make([]uuid.UUID, len(out.Winners))
	winnerStrings := make([]string, len(out.Winners))
	for i, w := range out.Winners {
		winners[i] = g.EngineToPlayer[w]
		winnerStrings[i] = winners[i].String()
	}
	g.result = &Result{Scores: scores, Winners: winners, Tie: out.Tie}

	payload := map[string]interface{}{
		"scores":  scoresPayload,
		"winners": winnerStrings,
		"tie":     out.Tie,
		"turns":   g.Engine.TurnNumber(),
	}
	g.logAction(uuid.Nil, string(EventGameEnd), payload)
	g.persistFinalGameState(out, winners)
	g.fireEvent(GameEvent{Type: EventGameEnd, Payload: payload})

	if g.OnGameEnd != nil {
		g.OnGameEnd(g.ID, winners, scores)
	}
	g.logger.Infof("game over after %d turns, winners %v, scores %v", g.Engine.TurnNumber(), winners, scores)
}

// persistFinalGameState hands the final boards to the archive.
// Assumes lock is held by caller.
func (g *PatchworkGame) persistFinalGameState(out engine.Outcome, winners []uuid.UUID) {
	if g.Archive == nil || g.closed {
		return
	}
	view := g.Engine.View()
	state := database.FinalGameState{
		GameID:  g.ID,
		Variant: g.Rules.Variant.String(),
		Players: make([]database.FinalPlayerState, len(view.Players)),
		Winners: winners,
		Tie:     out.Tie,
		Turns:   view.Turn,
		EndedAt: time.Now().UTC(),
	}
	for i, pv := range view.Players {
		state.Players[i] = database.FinalPlayerState{
			UserID:   g.EngineToPlayer[i],
			Name:     pv.Name,
			Score:    out.Scores[i],
			Money:    pv.Money,
			Income:   pv.Income,
			Empty:    pv.Empty,
			Position: pv.Position,
			Quilt:    quiltRows(pv.Occupancy),
		}
	}
	if view.SpecialOwner >= 0 {
		owner := g.EngineToPlayer[view.SpecialOwner]
		state.SpecialOwner = &owner
	}

	archive := g.Archive
	g.sinkWrites.Add(1)
	go func() {
		defer g.sinkWrites.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := archive.StoreFinalGameState(ctx, state); err != nil {
			g.logger.WithError(err).Error("failed storing final game state")
		}
	}()
}

// quiltRows renders occupancy as one string per row, '.' for empty cells and
// '#' for covered ones.
func quiltRows(occupancy [][]int) []string {
	rows := make([]string, len(occupancy))
	for r, cells := range occupancy {
		b := make([]byte, len(cells))
		for c, id := range cells {
			if id == 0 {
				b[c] = '.'
			} else {
				b[c] = '#'
			}
		}
		rows[r] = string(b)
	}
	return rows
}

// fireEvent broadcasts an event to every player.
// Assumes lock is held by caller.
func (g *PatchworkGame) fireEvent(ev GameEvent) {
	if g.BroadcastFn != nil {
		g.BroadcastFn(ev)
	}
}

// fireEventToPlayer sends an event to one connected player.
// Assumes lock is held by caller.
func (g *PatchworkGame) fireEventToPlayer(playerID uuid.UUID, ev GameEvent) {
	if g.BroadcastToPlayerFn == nil {
		return
	}
	if p := g.getPlayerByID(playerID); p != nil && p.Connected {
		g.BroadcastToPlayerFn(playerID, ev)
	}
}

// getPlayerByID finds a seated player.
// Assumes lock is held by caller.
func (g *PatchworkGame) getPlayerByID(playerID uuid.UUID) *Player {
	for _, p := range g.Players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

// logAction sends an action record to the historian, if one is attached.
// Assumes lock is held by caller.
func (g *PatchworkGame) logAction(actorID uuid.UUID, actionType string, payload map[string]interface{}) {
	g.actionIndex++
	if payload == nil {
		payload = make(map[string]interface{})
	}
	if g.Historian == nil || g.closed {
		return
	}
	record := cache.GameActionRecord{
		GameID:        g.ID,
		ActionIndex:   g.actionIndex,
		ActorUserID:   actorID,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     time.Now().UnixMilli(),
	}

	historian := g.Historian
	g.sinkWrites.Add(1)
	go func(rec cache.GameActionRecord) {
		defer g.sinkWrites.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := historian.PublishGameAction(ctx, rec); err != nil {
			g.logger.WithError(err).Errorf("failed publishing action %d (%s)", rec.ActionIndex, rec.ActionType)
		}
	}(record)
}
