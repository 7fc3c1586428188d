// internal/game/events.go
package game

import (
	"github.com/google/uuid"
)

// GameEventType represents the type of a game-related event broadcast to front ends.
type GameEventType string

// Constants defining the various GameEvent types.
const (
	EventGameStart              GameEventType = "game_start"                  // Public: engine built, first turn follows.
	EventPlayerBuy              GameEventType = "player_buy"                  // Public: patch bought and placed.
	EventPlayerPass             GameEventType = "player_pass"                 // Public: marker moved, buttons earned.
	EventPlayerButtonIncome     GameEventType = "player_button_income"        // Public: income squares crossed.
	EventPlayerFreePatch        GameEventType = "player_free_patch"           // Public: free patch collected, placement pending.
	EventPlayerFreePatchPlaced  GameEventType = "player_free_patch_placed"    // Public: free patch placed.
	EventPlayerFreePatchDiscard GameEventType = "player_free_patch_discarded" // Public: free patch fit nowhere.
	EventPlayerSpecialTile      GameEventType = "player_special_tile"         // Public: special tile awarded.
	EventGamePlayerTurn         GameEventType = "game_player_turn"            // Public: whose turn it is.
	EventPrivateActionRejected  GameEventType = "private_action_rejected"     // Private: choice rejected, retry.
	EventPrivateSyncState       GameEventType = "private_sync_state"          // Private: full state sync.
	EventGameEnd                GameEventType = "game_end"                    // Public: final scores.
)

// EventUser identifies a user within a GameEvent payload.
type EventUser struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name,omitempty"`
}

// EventPatch identifies a patch and where it went.
type EventPatch struct {
	ID       int      `json:"id"`
	Price    int      `json:"price,omitempty"`
	Movement int      `json:"movement,omitempty"`
	Income   int      `json:"income,omitempty"`
	Rows     []string `json:"rows,omitempty"`
	Row      *int     `json:"row,omitempty"`
	Col      *int     `json:"col,omitempty"`
}

// GameEvent is the standard structure for broadcasting game state changes and actions.
type GameEvent struct {
	Type  GameEventType `json:"type"`
	User  *EventUser    `json:"user,omitempty"`  // The user initiating or targeted by the event.
	Patch *EventPatch   `json:"patch,omitempty"` // Patch involved, if any.

	Payload map[string]interface{} `json:"payload,omitempty"` // Additional arbitrary data.

	State *SyncState `json:"state,omitempty"` // Full state for sync events.
}
