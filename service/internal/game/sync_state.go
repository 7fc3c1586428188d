// internal/game/sync_state.go
package game

import (
	engine "github.com/bruno00o/Patchwork/engine"
	"github.com/google/uuid"
)

// SyncPlayer is one player's public state. Patchwork hides nothing, so every
// observer gets the same fields.
type SyncPlayer struct {
	PlayerID       uuid.UUID `json:"playerId"`
	Username       string    `json:"username"`
	Connected      bool      `json:"connected"`
	IsCurrentTurn  bool      `json:"isCurrentTurn"`
	IsSelf         bool      `json:"isSelf,omitempty"`
	Money          int       `json:"money"`
	Income         int       `json:"income"`
	Position       int       `json:"position"`
	EmptyCells     int       `json:"emptyCells"`
	Score          int       `json:"score"`
	HasSpecialTile bool      `json:"hasSpecialTile,omitempty"`
	Occupancy      [][]int   `json:"occupancy"`
}

// SyncState is the full game state sent on start and on reconnect.
type SyncState struct {
	GameID           uuid.UUID                `json:"gameId"`
	Variant          string                   `json:"variant"`
	Started          bool                     `json:"started"`
	GameOver         bool                     `json:"gameOver"`
	Phase            string                   `json:"phase"`
	Decision         string                   `json:"decision"`
	CurrentPlayerID  uuid.UUID                `json:"currentPlayerId"`
	TurnID           int                      `json:"turnId"`
	Players          []SyncPlayer             `json:"players"`
	Window           []engine.PatchView       `json:"window"`
	MarketSize       int                      `json:"marketSize"`
	Track            []engine.TrackSquareView `json:"track"`
	SpecialOwnerID   *uuid.UUID               `json:"specialOwnerId,omitempty"`
	PendingFreePatch *engine.PatchView        `json:"pendingFreePatch,omitempty"`
}

// Snapshot returns the state as seen by forUser. uuid.Nil marks no player
// as self.
func (g *PatchworkGame) Snapshot(forUser uuid.UUID) SyncState {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.syncState(forUser)
}

// syncState builds a SyncState from the engine view.
// Assumes lock is held by caller.
func (g *PatchworkGame) syncState(forUser uuid.UUID) SyncState {
	s := SyncState{
		GameID:   g.ID,
		Variant:  g.Rules.Variant.String(),
		Started:  g.Started,
		GameOver: g.GameOver,
		TurnID:   g.TurnID,
	}
	if g.Engine == nil {
		return s
	}

	v := g.Engine.View()
	s.Phase = v.Phase
	s.Decision = g.Engine.DecisionCtx().String()
	s.GameOver = s.GameOver || g.Engine.IsTerminal()
	s.CurrentPlayerID = g.EngineToPlayer[v.Acting]
	s.Window = v.Window
	s.MarketSize = v.MarketSize
	s.Track = v.Track
	s.PendingFreePatch = v.Pending
	if v.SpecialOwner >= 0 {
		owner := g.EngineToPlayer[v.SpecialOwner]
		s.SpecialOwnerID = &owner
	}

	for i, pv := range v.Players {
		id := g.EngineToPlayer[i]
		sp := SyncPlayer{
			PlayerID:       id,
			Username:       pv.Name,
			IsCurrentTurn:  i == v.Acting && !s.GameOver,
			IsSelf:         id == forUser && forUser != uuid.Nil,
			Money:          pv.Money,
			Income:         pv.Income,
			Position:       pv.Position,
			EmptyCells:     pv.Empty,
			Score:          pv.Score,
			HasSpecialTile: v.SpecialOwner == i,
			Occupancy:      pv.Occupancy,
		}
		if p := g.getPlayerByID(id); p != nil {
			sp.Connected = p.Connected
		}
		s.Players = append(s.Players, sp)
	}
	return s
}

// sendSyncState sends the full state privately to one player.
// Assumes lock is held by caller.
func (g *PatchworkGame) sendSyncState(playerID uuid.UUID) {
	state := g.syncState(playerID)
	g.fireEventToPlayer(playerID, GameEvent{
		Type:  EventPrivateSyncState,
		User:  &EventUser{ID: playerID},
		State: &state,
	})
}
