package pipeline

import (
	"fmt"

	"github.com/dj-oyu/motionglyph/internal/encoder"
	"github.com/dj-oyu/motionglyph/internal/logger"
	"github.com/dj-oyu/motionglyph/internal/motion"
	"github.com/dj-oyu/motionglyph/internal/randsrc"
	"github.com/dj-oyu/motionglyph/internal/symbols"
	"github.com/dj-oyu/motionglyph/pkg/types"
	"github.com/google/uuid"
)

// DefaultThreshold is the default motionDetectionThreshold.
const DefaultThreshold = 30

// State is the detection lifecycle state.
type State int

const (
	Idle State = iota
	Detecting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Detecting:
		return "detecting"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Config holds the two tunables of the pipeline.
type Config struct {
	Threshold  int `json:"threshold" yaml:"threshold"`
	RegionSize int `json:"region_size" yaml:"region_size"`
}

// DefaultConfig returns threshold 30 and 20x20 regions.
func DefaultConfig() Config {
	return Config{
		Threshold:  DefaultThreshold,
		RegionSize: motion.DefaultRegionSize,
	}
}

// Validate rejects values the pipeline cannot run with.
func (c Config) Validate() error {
	if c.Threshold < 0 {
		return fmt.Errorf("threshold must be non-negative, got %d", c.Threshold)
	}
	if c.RegionSize < 1 {
		return fmt.Errorf("region_size must be at least 1, got %d", c.RegionSize)
	}
	return nil
}

// Counters are the running totals of a session.
type Counters struct {
	MotionEvents   uint64 `json:"motion_events"`
	SymbolsEmitted uint64 `json:"symbols_emitted"`
}

// TickResult reports what one frame did to the pipeline.
type TickResult struct {
	Processed     bool           `json:"processed"` // false while idle or on the baseline frame
	Motion        bool           `json:"motion"`
	Regions       []types.Region `json:"regions"`
	ActiveRegions int            `json:"active_regions"`
	TotalRegions  int            `json:"total_regions"`
	BitAppended   bool           `json:"bit_appended"`
	Bit           byte           `json:"bit"`
	CodeReady     bool           `json:"code_ready"`
	Code          int            `json:"code"`
	SymbolEmitted bool           `json:"symbol_emitted"`
	Symbol        string         `json:"symbol,omitempty"`
	Counters      Counters       `json:"counters"`
}

// Status is a point-in-time view of a controller.
type Status struct {
	ID       string   `json:"id"`
	State    State    `json:"state"`
	Config   Config   `json:"config"`
	Counters Counters `json:"counters"`
	Bits     string   `json:"bits"`
	Symbols  string   `json:"symbols"`
	Used     string   `json:"used"`
	Alphabet string   `json:"alphabet"`
	Width    int      `json:"width"`
	Height   int      `json:"height"`
}

// Option configures a Controller.
type Option func(*options)

type options struct {
	cfg      Config
	rng      randsrc.Source
	alphabet symbols.Alphabet
}

// WithConfig sets the initial threshold and region size.
func WithConfig(cfg Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithRand injects the random source shared by bit generation, alphabet
// shuffling and symbol sampling.
func WithRand(rng randsrc.Source) Option {
	return func(o *options) { o.rng = rng }
}

// WithAlphabet uses a fixed alphabet instead of a shuffled one.
func WithAlphabet(a symbols.Alphabet) Option {
	return func(o *options) { o.alphabet = a }
}

// Controller runs frames through diff, aggregation, bit encoding and symbol
// mapping. It is not safe for concurrent use; one goroutine owns it.
type Controller struct {
	id    string
	cfg   Config
	state State

	prev *types.Frame
	mask *motion.Mask

	enc      *encoder.Encoder
	mapper   *symbols.Mapper
	output   []rune
	counters Counters
}

// New creates an idle controller.
func New(opts ...Option) *Controller {
	o := options{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		o.rng = randsrc.Default()
	}
	if err := o.cfg.Validate(); err != nil {
		logger.Warn("Pipeline", "Invalid config (%v), using defaults", err)
		o.cfg = DefaultConfig()
	}
	if len(o.alphabet) == 0 {
		o.alphabet = symbols.NewAlphabet(o.rng)
	}

	c := &Controller{
		id:     uuid.NewString(),
		cfg:    o.cfg,
		state:  Idle,
		enc:    encoder.New(o.rng),
		mapper: symbols.NewMapper(o.alphabet, o.rng),
	}
	logger.Debug("Pipeline", "Session %s created (alphabet=%s)", c.id, o.alphabet)
	return c
}

// ID returns the session identifier.
func (c *Controller) ID() string {
	return c.id
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	return c.state
}

// Config returns the active configuration.
func (c *Controller) Config() Config {
	return c.cfg
}

// Configure sets threshold and region size for the next tick.
func (c *Controller) Configure(threshold, regionSize int) error {
	cfg := Config{Threshold: threshold, RegionSize: regionSize}
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg
	logger.Debug("Pipeline", "Session %s configured: threshold=%d region=%d", c.id, threshold, regionSize)
	return nil
}

// Start moves to Detecting. The next frame becomes the baseline.
func (c *Controller) Start() {
	if c.state == Detecting {
		return
	}
	c.state = Detecting
	c.prev = nil
	logger.Info("Pipeline", "Session %s detecting", c.id)
}

// Stop moves to Idle and drops the cached frame. Counters, bits and the
// used set are kept.
func (c *Controller) Stop() {
	if c.state == Idle {
		return
	}
	c.state = Idle
	c.prev = nil
	logger.Info("Pipeline", "Session %s stopped", c.id)
}

// Reset clears bits, used symbols, emitted symbols and counters. The state
// and the alphabet are unchanged.
func (c *Controller) Reset() {
	c.enc.Reset()
	c.mapper.Reset()
	c.output = c.output[:0]
	c.counters = Counters{}
	logger.Info("Pipeline", "Session %s reset", c.id)
}

// Tick processes one frame. Frames must keep the dimensions of the first
// frame after Start; a change panics.
func (c *Controller) Tick(frame *types.Frame) TickResult {
	if c.state != Detecting {
		return TickResult{Counters: c.counters}
	}
	if c.prev == nil {
		c.prev = frame
		return TickResult{Counters: c.counters}
	}

	c.mask = motion.DiffInto(c.mask, c.prev, frame, c.cfg.Threshold)
	regions := motion.ActiveRegions(c.mask, c.cfg.RegionSize)

	res := TickResult{
		Processed:     true,
		Regions:       regions,
		ActiveRegions: len(regions),
		TotalRegions:  motion.GridCells(frame.Width, frame.Height, c.cfg.RegionSize),
	}

	if res.ActiveRegions > 0 {
		res.Motion = true
		c.counters.MotionEvents++

		t := c.enc.OnMotionTick(res.ActiveRegions)
		res.BitAppended = t.Appended
		res.Bit = t.Bit
		if t.CodeReady {
			// The decoded code only marks the boundary; the symbol is drawn
			// independently of its value.
			res.CodeReady = true
			res.Code = t.Code

			s := c.mapper.Next()
			c.output = append(c.output, s)
			c.counters.SymbolsEmitted++
			res.SymbolEmitted = true
			res.Symbol = string(s)
		}
	}

	c.prev = frame
	res.Counters = c.counters
	return res
}

// Counters returns the running totals.
func (c *Controller) Counters() Counters {
	return c.counters
}

// Symbols returns the emitted symbol sequence since the last reset.
func (c *Controller) Symbols() string {
	return string(c.output)
}

// Used returns the used set of the current symbol cycle.
func (c *Controller) Used() []rune {
	return c.mapper.Used()
}

// Alphabet returns the session alphabet.
func (c *Controller) Alphabet() symbols.Alphabet {
	return c.mapper.Alphabet()
}

// Bits returns the bitstream as a 0/1 string.
func (c *Controller) Bits() string {
	return c.enc.String()
}

// Snapshot returns the full controller status.
func (c *Controller) Snapshot() Status {
	st := Status{
		ID:       c.id,
		State:    c.state,
		Config:   c.cfg,
		Counters: c.counters,
		Bits:     c.enc.String(),
		Symbols:  string(c.output),
		Used:     string(c.mapper.Used()),
		Alphabet: c.mapper.Alphabet().String(),
	}
	if c.prev != nil {
		st.Width, st.Height = c.prev.Width, c.prev.Height
	}
	return st
}
