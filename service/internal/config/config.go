// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	engine "github.com/bruno00o/Patchwork/engine"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config holds everything the patchwork binary reads from the environment.
type Config struct {
	Variant          engine.Variant
	Seed             uint64
	SeedSet          bool // false means pick a seed at startup
	Players          []string
	TurnTimeout      time.Duration // 0 disables the turn timer
	RepeatableIncome bool

	RedisAddr     string // empty disables the action historian
	RedisPassword string
	RedisDB       int

	DatabaseURL string // empty disables the result archive

	LogLevel log.Level
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup. Unset variables take their defaults.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Config{
		Variant:  engine.VariantAdvanced,
		Players:  []string{"Player 1", "Player 2"},
		LogLevel: log.InfoLevel,
	}
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok {
			return "", false
		}
		v = strings.TrimSpace(v)
		return v, v != ""
	}

	if v, ok := get("PATCHWORK_VARIANT"); ok {
		variant, err := engine.ParseVariant(v)
		if err != nil {
			return Config{}, fmt.Errorf("PATCHWORK_VARIANT: %w", err)
		}
		cfg.Variant = variant
	}
	if v, ok := get("PATCHWORK_SEED"); ok {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("PATCHWORK_SEED: %w", err)
		}
		cfg.Seed, cfg.SeedSet = seed, true
	}
	if v, ok := get("PATCHWORK_PLAYERS"); ok {
		var names []string
		for _, n := range strings.Split(v, ",") {
			if n = strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
		if len(names) < 2 {
			return Config{}, fmt.Errorf("PATCHWORK_PLAYERS: need at least 2 names, got %d", len(names))
		}
		cfg.Players = names
	}
	if v, ok := get("PATCHWORK_TURN_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("PATCHWORK_TURN_TIMEOUT: %w", err)
		}
		if d < 0 {
			return Config{}, fmt.Errorf("PATCHWORK_TURN_TIMEOUT: negative duration %s", d)
		}
		cfg.TurnTimeout = d
	}
	if v, ok := get("PATCHWORK_REPEATABLE_INCOME"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("PATCHWORK_REPEATABLE_INCOME: %w", err)
		}
		cfg.RepeatableIncome = b
	}

	cfg.RedisAddr, _ = get("REDIS_ADDR")
	cfg.RedisPassword, _ = get("REDIS_PASSWORD")
	if v, ok := get("REDIS_DB"); ok {
		db, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("REDIS_DB: %w", err)
		}
		cfg.RedisDB = db
	}
	cfg.DatabaseURL, _ = get("DATABASE_URL")

	if v, ok := get("LOG_LEVEL"); ok {
		lvl, err := log.ParseLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
		}
		cfg.LogLevel = lvl
	}
	return cfg, nil
}

// HouseRules returns the engine rules for the configured variant and seating.
func (c Config) HouseRules() engine.HouseRules {
	rules := engine.DefaultHouseRules()
	if c.Variant == engine.VariantBasic {
		rules = engine.BasicHouseRules()
	}
	rules.NumPlayers = uint8(len(c.Players))
	rules.RepeatableIncome = c.RepeatableIncome
	return rules
}
