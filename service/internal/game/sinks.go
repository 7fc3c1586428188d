// internal/game/sinks.go
package game

import (
	"context"

	"github.com/bruno00o/Patchwork/service/internal/cache"
	"github.com/bruno00o/Patchwork/service/internal/database"
)

// Historian receives every logged action. *cache.Historian satisfies it.
type Historian interface {
	PublishGameAction(ctx context.Context, rec cache.GameActionRecord) error
}

// Archive receives the final state of each finished game. *database.Archive
// satisfies it.
type Archive interface {
	StoreFinalGameState(ctx context.Context, state database.FinalGameState) error
}
