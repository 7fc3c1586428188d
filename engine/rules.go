package engine

import (
	"fmt"
	"strings"
)

// Variant selects the catalog and optional rules.
type Variant uint8

const (
	VariantBasic    Variant = iota // small catalog, no special tile
	VariantAdvanced                // complete catalog, 7×7 special tile
)

// String returns the catalog name of the variant.
func (v Variant) String() string {
	switch v {
	case VariantBasic:
		return "basic"
	case VariantAdvanced:
		return "advanced"
	default:
		return "unknown"
	}
}

// ParseVariant accepts a variant name as printed by String. "complete" is
// an alias for the advanced variant.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "basic":
		return VariantBasic, nil
	case "advanced", "complete":
		return VariantAdvanced, nil
	default:
		return 0, fmt.Errorf("%w: unknown variant %q", ErrConfig, s)
	}
}

// HouseRules holds configurable game rule settings.
type HouseRules struct {
	Variant          Variant
	NumPlayers       uint8 // 0 treated as 2
	BoardWidth       int
	BoardHeight      int
	MarketWindow     int // patches offered each turn
	StartingButtons  int
	SpecialTile      bool
	SpecialTileSize  int
	SpecialTileValue int
	RepeatableIncome bool // if true, income squares pay every player who crosses them
}

// DefaultHouseRules returns the standard advanced rules.
func DefaultHouseRules() HouseRules {
	return HouseRules{
		Variant:          VariantAdvanced,
		NumPlayers:       2,
		BoardWidth:       9,
		BoardHeight:      9,
		MarketWindow:     3,
		StartingButtons:  5,
		SpecialTile:      true,
		SpecialTileSize:  7,
		SpecialTileValue: 7,
		RepeatableIncome: false,
	}
}

// BasicHouseRules returns the rules of the basic variant.
func BasicHouseRules() HouseRules {
	r := DefaultHouseRules()
	r.Variant = VariantBasic
	r.SpecialTile = false
	return r
}

// numPlayers returns the effective number of players, treating 0 as 2.
func (r *HouseRules) numPlayers() int {
	if r.NumPlayers == 0 {
		return 2
	}
	return int(r.NumPlayers)
}
