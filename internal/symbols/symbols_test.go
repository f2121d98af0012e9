package symbols

import (
	"testing"

	"github.com/dj-oyu/motionglyph/internal/randsrc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAlphabet(t *testing.T) {
	t.Parallel()

	for seed := int64(0); seed < 20; seed++ {
		a := NewAlphabet(randsrc.Seeded(seed))
		require.Len(t, a, AlphabetSize)

		seen := map[rune]bool{}
		for _, r := range a {
			assert.Contains(t, SourceLetters, string(r))
			assert.False(t, seen[r], "duplicate %q for seed %d", r, seed)
			seen[r] = true
		}
	}

	assert.Equal(t, NewAlphabet(randsrc.Seeded(9)), NewAlphabet(randsrc.Seeded(9)))
}

func TestParseAlphabet(t *testing.T) {
	t.Parallel()

	a, err := ParseAlphabet("ABCDEFGHIJKLMNOPQRSTUVWX")
	require.NoError(t, err)
	assert.Len(t, a, 24)
	assert.True(t, a.Contains('X'))
	assert.False(t, a.Contains('Y'))
	assert.Equal(t, "ABCDEFGHIJKLMNOPQRSTUVWX", a.String())

	_, err = ParseAlphabet("")
	assert.Error(t, err)

	_, err = ParseAlphabet("ABCDEFGHIJKLMNOPQRSTUVWA")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")

	for _, s := range []string{"ABC", "ABCDEFGHIJKLMNOPQRSTUVW", "ABCDEFGHIJKLMNOPQRSTUVWXY"} {
		_, err = ParseAlphabet(s)
		assert.ErrorContains(t, err, "must have 24 symbols", "%q", s)
	}
}

func TestMapperNext(t *testing.T) {
	t.Parallel()

	alphabet, err := ParseAlphabet("ABCDEFGHIJKLMNOPQRSTUVWX")
	require.NoError(t, err)

	t.Run("full cycle is a permutation", func(t *testing.T) {
		t.Parallel()
		for seed := int64(0); seed < 10; seed++ {
			m := NewMapper(alphabet, randsrc.Seeded(seed))
			seen := map[rune]bool{}
			for i := 0; i < len(alphabet); i++ {
				s := m.Next()
				assert.True(t, alphabet.Contains(s))
				assert.False(t, seen[s], "repeat %q within cycle (seed %d)", s, seed)
				seen[s] = true
			}
			assert.Len(t, seen, len(alphabet))
			assert.Len(t, m.Used(), len(alphabet))
		}
	})

	t.Run("used set clears after exhaustion", func(t *testing.T) {
		t.Parallel()
		m := NewMapper(alphabet, randsrc.Seeded(5))
		for i := 0; i < len(alphabet); i++ {
			m.Next()
		}
		s := m.Next()
		assert.Equal(t, []rune{s}, m.Used())

		seen := map[rune]bool{s: true}
		for i := 1; i < len(alphabet); i++ {
			n := m.Next()
			assert.False(t, seen[n])
			seen[n] = true
		}
	})

	t.Run("samples by index over the available view", func(t *testing.T) {
		t.Parallel()
		m := NewMapper(Alphabet("ABC"), &randsrc.Sequence{Values: []int{1, 1, 0}})

		assert.Equal(t, 'B', m.Next()) // [A B C] -> 1
		assert.Equal(t, 'C', m.Next()) // [A C] -> 1
		assert.Equal(t, 'A', m.Next()) // [A] -> 0
		assert.Equal(t, []rune("ABC"), m.Used())
	})

	t.Run("reset clears used but keeps alphabet", func(t *testing.T) {
		t.Parallel()
		m := NewMapper(alphabet, randsrc.Seeded(1))
		m.Next()
		m.Next()
		m.Reset()
		assert.Empty(t, m.Used())
		assert.Equal(t, alphabet, m.Alphabet())
	})
}
