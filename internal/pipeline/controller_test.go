package pipeline

import (
	"testing"

	"github.com/dj-oyu/motionglyph/internal/randsrc"
	"github.com/dj-oyu/motionglyph/internal/symbols"
	"github.com/dj-oyu/motionglyph/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixedAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWX"

func newTestController(t *testing.T, seed int64) *Controller {
	t.Helper()
	a, err := symbols.ParseAlphabet(fixedAlphabet)
	require.NoError(t, err)
	return New(
		WithConfig(Config{Threshold: 30, RegionSize: 20}),
		WithRand(randsrc.Seeded(seed)),
		WithAlphabet(a),
	)
}

// blockFrames returns n 100x60 frames. Frames after the first alternate a
// 20x20 block at the origin between two colors differing by 3*40 from each
// other, so every consecutive pair has exactly one active region.
func blockFrames(n int) []*types.Frame {
	frames := make([]*types.Frame, n)
	for i := range frames {
		f := types.NewFrame(100, 60)
		f.Fill(10, 10, 10)
		shade := uint8(50)
		if i%2 == 1 {
			shade = 90
		}
		for y := 0; y < 20; y++ {
			for x := 0; x < 20; x++ {
				f.SetRGB(x, y, shade, shade, shade)
			}
		}
		f.FrameNum = uint64(i)
		frames[i] = f
	}
	return frames
}

func TestEndToEndFirstSymbol(t *testing.T) {
	c := newTestController(t, 1)
	c.Start()

	var results []TickResult
	for _, f := range blockFrames(6) {
		results = append(results, c.Tick(f))
	}

	assert.False(t, results[0].Processed, "first frame is the baseline")
	for i, r := range results[1:] {
		assert.True(t, r.Motion, "tick %d", i+2)
		assert.Equal(t, 1, r.ActiveRegions, "tick %d", i+2)
		assert.Equal(t, 15, r.TotalRegions)
		assert.True(t, r.BitAppended)
	}
	for _, r := range results[1:5] {
		assert.False(t, r.SymbolEmitted)
	}

	last := results[5]
	require.True(t, last.SymbolEmitted)
	assert.True(t, last.CodeReady)
	assert.Equal(t, Counters{MotionEvents: 5, SymbolsEmitted: 1}, last.Counters)

	sym := []rune(last.Symbol)
	require.Len(t, sym, 1)
	assert.Contains(t, fixedAlphabet, last.Symbol)
	assert.Equal(t, sym, c.Used())
	assert.Equal(t, last.Symbol, c.Symbols())
	assert.Len(t, c.Bits(), 5)
}

func TestTickWhileIdle(t *testing.T) {
	c := newTestController(t, 2)
	for _, f := range blockFrames(10) {
		r := c.Tick(f)
		assert.False(t, r.Processed)
	}
	assert.Equal(t, Counters{}, c.Counters())
	assert.Equal(t, Idle, c.State())
}

func TestNoMotion(t *testing.T) {
	c := newTestController(t, 3)
	c.Start()
	f := types.NewFrame(40, 40)
	for i := 0; i < 5; i++ {
		r := c.Tick(f.Clone())
		assert.False(t, r.Motion)
		assert.Empty(t, r.Regions)
	}
	assert.Equal(t, "", c.Bits())
	assert.Zero(t, c.Counters().MotionEvents)
}

func TestStopKeepsStateResetClearsIt(t *testing.T) {
	c := newTestController(t, 4)
	c.Start()
	frames := blockFrames(12)
	for _, f := range frames[:7] {
		c.Tick(f)
	}
	require.Equal(t, uint64(6), c.Counters().MotionEvents)
	require.Equal(t, uint64(1), c.Counters().SymbolsEmitted)
	alphabet := c.Alphabet().String()

	c.Stop()
	assert.Equal(t, Idle, c.State())
	assert.Equal(t, uint64(6), c.Counters().MotionEvents)
	assert.Len(t, c.Bits(), 6)
	assert.Len(t, c.Used(), 1)

	// After restart the next frame is a fresh baseline.
	c.Start()
	r := c.Tick(frames[7])
	assert.False(t, r.Processed)
	r = c.Tick(frames[8])
	assert.True(t, r.Motion)
	assert.Equal(t, uint64(7), r.Counters.MotionEvents)

	c.Reset()
	assert.Equal(t, Detecting, c.State())
	assert.Equal(t, Counters{}, c.Counters())
	assert.Equal(t, "", c.Bits())
	assert.Empty(t, c.Used())
	assert.Equal(t, "", c.Symbols())
	assert.Equal(t, alphabet, c.Alphabet().String())

	c.Stop()
	c.Reset()
	assert.Equal(t, Idle, c.State())
}

func TestResetMidCode(t *testing.T) {
	c := newTestController(t, 5)
	c.Start()
	frames := blockFrames(20)
	for _, f := range frames[:4] {
		c.Tick(f)
	}
	c.Reset()

	emitted := 0
	for i, f := range frames[4:10] {
		if c.Tick(f).SymbolEmitted {
			emitted++
			assert.Equal(t, 4, i, "first symbol after reset needs five fresh bits")
		}
	}
	assert.Equal(t, 1, emitted)
}

func TestSymbolsCycleWithoutRepeat(t *testing.T) {
	c := newTestController(t, 6)
	c.Start()

	frames := blockFrames(2)
	c.Tick(frames[0])
	for i := 0; i < 24*5; i++ {
		c.Tick(frames[(i+1)%2])
	}
	out := c.Symbols()
	require.Len(t, out, 24)

	seen := map[rune]bool{}
	for _, s := range out {
		assert.False(t, seen[s], "symbol %q repeated within a cycle", s)
		seen[s] = true
	}
	assert.Len(t, c.Used(), 24)

	for i := 0; i < 5; i++ {
		c.Tick(frames[(i+1)%2])
	}
	assert.Len(t, c.Used(), 1, "used set clears once the alphabet is exhausted")
}

func TestConfigure(t *testing.T) {
	c := newTestController(t, 7)
	require.NoError(t, c.Configure(800, 10))
	assert.Equal(t, Config{Threshold: 800, RegionSize: 10}, c.Config())

	assert.Error(t, c.Configure(-1, 10))
	assert.Error(t, c.Configure(30, 0))
	assert.Equal(t, Config{Threshold: 800, RegionSize: 10}, c.Config())

	// Threshold above the max per-pixel delta suppresses all motion.
	c.Start()
	for _, f := range blockFrames(4) {
		assert.False(t, c.Tick(f).Motion)
	}

	require.NoError(t, c.Configure(30, 5))
	frames := blockFrames(2)
	c.Tick(frames[0])
	r := c.Tick(frames[1])
	assert.Equal(t, 16, r.ActiveRegions, "4x4 cells of 5px cover the 20px block")
	assert.Equal(t, 20*12, r.TotalRegions)
}

func TestFrameSizeChangePanics(t *testing.T) {
	c := newTestController(t, 8)
	c.Start()
	c.Tick(types.NewFrame(10, 10))
	assert.Panics(t, func() { c.Tick(types.NewFrame(11, 10)) })
}

func TestSnapshot(t *testing.T) {
	c := newTestController(t, 9)
	c.Start()
	for _, f := range blockFrames(6) {
		c.Tick(f)
	}
	st := c.Snapshot()
	assert.Equal(t, c.ID(), st.ID)
	assert.Equal(t, Detecting, st.State)
	assert.Equal(t, fixedAlphabet, st.Alphabet)
	assert.Len(t, st.Bits, 5)
	assert.Len(t, st.Symbols, 1)
	assert.Equal(t, st.Symbols, st.Used)
	assert.Equal(t, 100, st.Width)
	assert.Equal(t, 60, st.Height)

	text, err := st.State.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "detecting", string(text))
}

func TestIndependentSessions(t *testing.T) {
	a := newTestController(t, 10)
	b := newTestController(t, 10)
	assert.NotEqual(t, a.ID(), b.ID())

	a.Start()
	for _, f := range blockFrames(6) {
		a.Tick(f)
	}
	assert.Equal(t, uint64(5), a.Counters().MotionEvents)
	assert.Zero(t, b.Counters().MotionEvents)
}

func TestDefaultAlphabetIsShuffledSubset(t *testing.T) {
	c := New(WithRand(randsrc.Seeded(11)))
	a := c.Alphabet()
	require.Len(t, a, symbols.AlphabetSize)
	for _, r := range a {
		assert.Contains(t, symbols.SourceLetters, string(r))
	}
}
