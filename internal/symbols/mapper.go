package symbols

import "github.com/dj-oyu/motionglyph/internal/randsrc"

// Mapper hands out alphabet symbols so that none repeats before every
// symbol has been used once.
type Mapper struct {
	alphabet Alphabet
	used     map[rune]struct{}
	rng      randsrc.Source
}

// NewMapper creates a mapper over alphabet.
func NewMapper(alphabet Alphabet, rng randsrc.Source) *Mapper {
	if rng == nil {
		rng = randsrc.Default()
	}
	return &Mapper{
		alphabet: alphabet,
		used:     make(map[rune]struct{}, len(alphabet)),
		rng:      rng,
	}
}

// Next picks a symbol uniformly from the ones not used in the current cycle.
// A full used set is cleared before choosing.
func (m *Mapper) Next() rune {
	if len(m.used) >= len(m.alphabet) {
		clear(m.used)
	}

	available := make([]rune, 0, len(m.alphabet)-len(m.used))
	for _, s := range m.alphabet {
		if _, ok := m.used[s]; !ok {
			available = append(available, s)
		}
	}
	if len(available) == 0 {
		clear(m.used)
		available = append(available, m.alphabet...)
	}

	s := available[m.rng.Intn(len(available))]
	m.used[s] = struct{}{}
	return s
}

// Used returns the symbols of the current cycle in alphabet order.
func (m *Mapper) Used() []rune {
	out := make([]rune, 0, len(m.used))
	for _, s := range m.alphabet {
		if _, ok := m.used[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Alphabet returns the mapper's alphabet.
func (m *Mapper) Alphabet() Alphabet {
	return m.alphabet
}

// Reset clears the used set. The alphabet is kept.
func (m *Mapper) Reset() {
	clear(m.used)
}
