package encoder

import (
	"strings"

	"github.com/dj-oyu/motionglyph/internal/randsrc"
)

// CodeWidth is the number of bits per decoded code.
const CodeWidth = 5

// Tick is the outcome of one motion tick.
type Tick struct {
	Appended  bool // A bit was appended
	Bit       byte // Value of the appended bit
	CodeReady bool // A new CodeWidth-bit boundary was reached
	Code      int  // Decoded code in [0, 31], valid when CodeReady
}

// Encoder accumulates one random bit per motion tick and cuts the stream
// into CodeWidth-bit codes.
//
// The value of each bit is drawn from the random source; motion only decides
// whether a bit is drawn at all.
type Encoder struct {
	rng     randsrc.Source
	bits    []byte
	decoded int
}

// New creates an empty encoder drawing bits from rng.
func New(rng randsrc.Source) *Encoder {
	if rng == nil {
		rng = randsrc.Default()
	}
	return &Encoder{rng: rng}
}

// OnMotionTick appends a bit when activeRegions > 0 and reports whether a
// new code became ready.
func (e *Encoder) OnMotionTick(activeRegions int) Tick {
	if activeRegions <= 0 {
		return Tick{}
	}

	bit := byte(e.rng.Intn(2))
	e.bits = append(e.bits, bit)
	t := Tick{Appended: true, Bit: bit}

	if len(e.bits)%CodeWidth != 0 {
		return t
	}

	start := e.decoded * CodeWidth
	t.Code = decode(e.bits[start : start+CodeWidth])
	t.CodeReady = true
	e.decoded++
	return t
}

// Len returns the number of bits accumulated so far.
func (e *Encoder) Len() int {
	return len(e.bits)
}

// Decoded returns the number of codes cut from the stream.
func (e *Encoder) Decoded() int {
	return e.decoded
}

// Bits returns a copy of the bitstream.
func (e *Encoder) Bits() []byte {
	return append([]byte(nil), e.bits...)
}

// String renders the bitstream as a string of '0' and '1'.
func (e *Encoder) String() string {
	var sb strings.Builder
	sb.Grow(len(e.bits))
	for _, b := range e.bits {
		sb.WriteByte('0' + b)
	}
	return sb.String()
}

// Reset clears the bitstream and the decode cursor.
func (e *Encoder) Reset() {
	e.bits = e.bits[:0]
	e.decoded = 0
}

func decode(bits []byte) int {
	v := 0
	for _, b := range bits {
		v = v<<1 | int(b)
	}
	return v
}
