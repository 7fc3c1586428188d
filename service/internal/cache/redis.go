// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// DefaultTTL is how long a game's action list survives after its last write.
const DefaultTTL = 24 * time.Hour

// GameActionRecord is one entry in a game's action history.
type GameActionRecord struct {
	GameID        uuid.UUID              `json:"game_id"`
	ActionIndex   int                    `json:"action_index"`
	ActorUserID   uuid.UUID              `json:"actor_user_id"` // uuid.Nil for game-level events.
	ActionType    string                 `json:"action_type"`
	ActionPayload map[string]interface{} `json:"action_payload"`
	Timestamp     int64                  `json:"timestamp"` // Unix milliseconds.
}

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Historian appends game actions to a per-game Redis list and publishes each
// one on a per-game channel for live observers.
type Historian struct {
	rdb *redis.Client
	ttl time.Duration
}

// Connect dials Redis and verifies the connection with PING.
func Connect(ctx context.Context, opts Options) (*Historian, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	log.WithField("addr", opts.Addr).Info("connected to redis")
	return New(rdb, opts.TTL), nil
}

// New wraps an existing client. A non-positive ttl selects DefaultTTL.
func New(rdb *redis.Client, ttl time.Duration) *Historian {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Historian{rdb: rdb, ttl: ttl}
}

// ActionsKey is the list holding a game's action records.
func ActionsKey(gameID uuid.UUID) string {
	return "patchwork:game:" + gameID.String() + ":actions"
}

// ChannelName is the pub/sub channel a game's actions are published on.
func ChannelName(gameID uuid.UUID) string {
	return "patchwork:game:" + gameID.String() + ":events"
}

// PublishGameAction appends rec to the game's list, refreshes its expiry and
// publishes it, all in one MULTI/EXEC.
func (h *Historian) PublishGameAction(ctx context.Context, rec GameActionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal action %d: %w", rec.ActionIndex, err)
	}
	key := ActionsKey(rec.GameID)
	pipe := h.rdb.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, h.ttl)
	pipe.Publish(ctx, ChannelName(rec.GameID), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish action %d for game %s: %w", rec.ActionIndex, rec.GameID, err)
	}
	return nil
}

// Actions returns every recorded action of a game in publish order.
func (h *Historian) Actions(ctx context.Context, gameID uuid.UUID) ([]GameActionRecord, error) {
	raw, err := h.rdb.LRange(ctx, ActionsKey(gameID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read actions for game %s: %w", gameID, err)
	}
	records := make([]GameActionRecord, 0, len(raw))
	for i, s := range raw {
		var rec GameActionRecord
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			return nil, fmt.Errorf("decode action %d for game %s: %w", i, gameID, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Subscribe listens on a game's channel. The caller closes the PubSub.
func (h *Historian) Subscribe(ctx context.Context, gameID uuid.UUID) *redis.PubSub {
	return h.rdb.Subscribe(ctx, ChannelName(gameID))
}

// Close releases the client.
func (h *Historian) Close() error {
	return h.rdb.Close()
}
