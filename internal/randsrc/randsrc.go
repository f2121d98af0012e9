// Package randsrc provides the non-cryptographic randomness used for bit
// generation and symbol sampling.
package randsrc

import (
	"math/rand"

	"github.com/pion/randutil"
)

// Source yields uniform integers in [0, n). It panics if n <= 0.
type Source interface {
	Intn(n int) int
}

// Default returns a time-seeded generator.
func Default() Source {
	return randutil.NewMathRandomGenerator()
}

// Seeded returns a reproducible generator for tests and replays.
func Seeded(seed int64) Source {
	return rand.New(rand.NewSource(seed))
}

// Sequence replays a fixed list of values, wrapping around at the end.
// Each value is reduced modulo the requested bound.
type Sequence struct {
	Values []int
	next   int
}

// Intn implements Source.
func (s *Sequence) Intn(n int) int {
	if n <= 0 {
		panic("randsrc: invalid argument to Intn")
	}
	if len(s.Values) == 0 {
		return 0
	}
	v := s.Values[s.next%len(s.Values)]
	s.next++
	if v < 0 {
		v = -v
	}
	return v % n
}
