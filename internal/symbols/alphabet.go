package symbols

import (
	"fmt"

	"github.com/dj-oyu/motionglyph/internal/randsrc"
)

const (
	// SourceLetters is the pool an alphabet is shuffled from.
	SourceLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

	// AlphabetSize is the number of symbols kept after shuffling.
	AlphabetSize = 24
)

// Alphabet is an ordered set of distinct symbols.
type Alphabet []rune

// NewAlphabet shuffles SourceLetters with a Fisher-Yates pass and keeps the
// first AlphabetSize letters.
func NewAlphabet(rng randsrc.Source) Alphabet {
	if rng == nil {
		rng = randsrc.Default()
	}
	letters := []rune(SourceLetters)
	for i := len(letters) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		letters[i], letters[j] = letters[j], letters[i]
	}
	return Alphabet(letters[:AlphabetSize])
}

// ParseAlphabet builds an alphabet from a string of exactly AlphabetSize
// distinct symbols.
func ParseAlphabet(s string) (Alphabet, error) {
	runes := []rune(s)
	if len(runes) != AlphabetSize {
		return nil, fmt.Errorf("alphabet must have %d symbols, got %d", AlphabetSize, len(runes))
	}
	seen := make(map[rune]struct{}, len(runes))
	for _, r := range runes {
		if _, dup := seen[r]; dup {
			return nil, fmt.Errorf("alphabet has duplicate symbol %q", r)
		}
		seen[r] = struct{}{}
	}
	return Alphabet(runes), nil
}

// Contains reports whether r belongs to the alphabet.
func (a Alphabet) Contains(r rune) bool {
	for _, s := range a {
		if s == r {
			return true
		}
	}
	return false
}

func (a Alphabet) String() string {
	return string(a)
}
