package engine

import (
	"fmt"
	"math/rand/v2"
)

// Market is the circle of patches. The neutral token points at the first
// patch of the purchase window; the window wraps around the end of the list.
type Market struct {
	patches []Patch
	token   int
}

// NewMarket builds a market holding patches in the given order.
func NewMarket(patches []Patch) *Market {
	m := &Market{patches: make([]Patch, len(patches))}
	copy(m.patches, patches)
	return m
}

// Shuffle randomizes the circle using the injected source. It must run
// before PlaceNeutralToken.
func (m *Market) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(m.patches), func(i, j int) {
		m.patches[i], m.patches[j] = m.patches[j], m.patches[i]
	})
}

// PlaceNeutralToken puts the token just after the patch with the fewest
// filled cells (first one on ties), wrapping to the start.
func (m *Market) PlaceNeutralToken() {
	if len(m.patches) == 0 {
		m.token = 0
		return
	}
	smallest := 0
	for i, p := range m.patches {
		if p.BlockCount() < m.patches[smallest].BlockCount() {
			smallest = i
		}
	}
	m.token = (smallest + 1) % len(m.patches)
}

// Token returns the neutral token index.
func (m *Market) Token() int { return m.token }

// Len returns the number of patches left.
func (m *Market) Len() int { return len(m.patches) }

// Empty reports whether every patch has been bought.
func (m *Market) Empty() bool { return len(m.patches) == 0 }

// Next returns up to n patches starting at the token, in circular order.
func (m *Market) Next(n int) []Patch {
	if n > len(m.patches) {
		n = len(m.patches)
	}
	if n <= 0 {
		return nil
	}
	out := make([]Patch, n)
	for i := 0; i < n; i++ {
		out[i] = m.patches[(m.token+i)%len(m.patches)]
	}
	return out
}

func (m *Market) indexOf(id int) int {
	for i, p := range m.patches {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// Contains reports whether a patch with this id is still in the circle.
func (m *Market) Contains(id int) bool { return m.indexOf(id) >= 0 }

// Remove takes the patch out of the circle and moves the token to its slot,
// so the window continues from the patch that followed it.
func (m *Market) Remove(id int) error {
	idx := m.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("%w: %w: id %d", ErrPrecondition, ErrPatchNotInMarket, id)
	}
	m.patches = append(m.patches[:idx], m.patches[idx+1:]...)
	m.token = idx
	if m.token >= len(m.patches) {
		m.token = 0
	}
	return nil
}

// Patches returns a copy of the circle in list order.
func (m *Market) Patches() []Patch {
	out := make([]Patch, len(m.patches))
	copy(out, m.patches)
	return out
}
