package engine

import (
	"bufio"
	"bytes"
	"embed"
	"fmt"
	"io"
	"strconv"
	"strings"
)

//go:embed assets/*.txt
var assets embed.FS

// PatchDefinition is one static patch record.
type PatchDefinition struct {
	Price    int
	Movement int
	Income   int
	Mask     string
}

// Catalog is the static input of a game: the patch circle and the track layout.
type Catalog struct {
	Patches []PatchDefinition
	Track   []Bonus
}

// Track layout characters.
const (
	TrackPlain     = '.'
	TrackIncome    = 'x'
	TrackFreePatch = '*'
)

const (
	patchFieldSep   = ":"
	patchFieldCount = 4
	commentPrefix   = "#"
)

// ParsePatchDefinitions reads one "price:movement:income:mask" record per
// line. Blank lines and lines starting with '#' are skipped.
func ParsePatchDefinitions(r io.Reader) ([]PatchDefinition, error) {
	var defs []PatchDefinition
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, commentPrefix) {
			continue
		}
		fields := strings.Split(text, patchFieldSep)
		if len(fields) != patchFieldCount {
			return nil, fmt.Errorf("%w: %w: line %d: want %d fields, got %d", ErrConfig, ErrMalformedDefinition, line, patchFieldCount, len(fields))
		}
		var nums [3]int
		for i := 0; i < 3; i++ {
			n, err := strconv.Atoi(fields[i])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("%w: %w: line %d: field %d is not a non-negative integer: %q", ErrConfig, ErrMalformedDefinition, line, i+1, fields[i])
			}
			nums[i] = n
		}
		def := PatchDefinition{Price: nums[0], Movement: nums[1], Income: nums[2], Mask: fields[3]}
		if _, err := ParseMask(def.Mask); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		defs = append(defs, def)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading patch definitions: %w", ErrConfig, err)
	}
	return defs, nil
}

// ParseTrackLayout reads the track one character per square, across lines.
func ParseTrackLayout(r io.Reader) ([]Bonus, error) {
	var layout []Bonus
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, commentPrefix) {
			continue
		}
		for _, ch := range text {
			switch ch {
			case TrackPlain:
				layout = append(layout, BonusNone)
			case TrackIncome:
				layout = append(layout, BonusIncome)
			case TrackFreePatch:
				layout = append(layout, BonusFreePatch)
			default:
				return nil, fmt.Errorf("%w: %w: line %d: unexpected character %q", ErrConfig, ErrUnknownBonus, line, ch)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading track layout: %w", ErrConfig, err)
	}
	if len(layout) == 0 {
		return nil, fmt.Errorf("%w: %w: empty track layout", ErrConfig, ErrMalformedDefinition)
	}
	return layout, nil
}

// BuildPatches turns definitions into patches with ids 1..n in input order.
func BuildPatches(defs []PatchDefinition) ([]Patch, error) {
	patches := make([]Patch, 0, len(defs))
	for i, d := range defs {
		mask, err := ParseMask(d.Mask)
		if err != nil {
			return nil, fmt.Errorf("patch %d: %w", i+1, err)
		}
		p, err := NewPatch(i+1, d.Price, d.Movement, d.Income, mask)
		if err != nil {
			return nil, err
		}
		patches = append(patches, p)
	}
	return patches, nil
}

// LoadCatalog returns the embedded catalog of a variant.
func LoadCatalog(v Variant) (Catalog, error) {
	var patchFile, boardFile string
	switch v {
	case VariantBasic:
		patchFile, boardFile = "assets/basic_patches.txt", "assets/basic_board.txt"
	case VariantAdvanced:
		patchFile, boardFile = "assets/complete_patches.txt", "assets/complete_board.txt"
	default:
		return Catalog{}, fmt.Errorf("%w: unknown variant %d", ErrConfig, v)
	}
	raw, err := assets.ReadFile(patchFile)
	if err != nil {
		return Catalog{}, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	defs, err := ParsePatchDefinitions(bytes.NewReader(raw))
	if err != nil {
		return Catalog{}, err
	}
	raw, err = assets.ReadFile(boardFile)
	if err != nil {
		return Catalog{}, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	track, err := ParseTrackLayout(bytes.NewReader(raw))
	if err != nil {
		return Catalog{}, err
	}
	return Catalog{Patches: defs, Track: track}, nil
}
