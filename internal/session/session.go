// Package session runs one detection pipeline as a concurrent service: it
// serializes access to the controller, pumps frames from a source, records
// metrics and publishes events.
package session

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/dj-oyu/motionglyph/internal/broadcast"
	"github.com/dj-oyu/motionglyph/internal/logger"
	"github.com/dj-oyu/motionglyph/internal/metrics"
	"github.com/dj-oyu/motionglyph/internal/pipeline"
	"github.com/dj-oyu/motionglyph/internal/source"
	"github.com/dj-oyu/motionglyph/pkg/types"
)

var (
	// ErrNoSource is returned when a source is required but none is attached.
	ErrNoSource = errors.New("no frame source attached")
	// ErrIdle is returned for uploaded frames while the session is not detecting.
	ErrIdle = errors.New("session is not detecting")
)

// Publisher receives session events.
type Publisher interface {
	Publish(ctx context.Context, ev broadcast.Event) error
}

// Option configures a Session.
type Option func(*Session)

// WithMetrics records counters into m instead of a private instance.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithPublisher adds an event publisher.
func WithPublisher(p Publisher) Option {
	return func(s *Session) { s.publishers = append(s.publishers, p) }
}

// WithSource attaches the frame source driven by Run and Drain.
func WithSource(src source.Source) Option {
	return func(s *Session) { s.src = src }
}

// WithNormalizer sets the resolution normalizer applied to every frame.
func WithNormalizer(n *source.Normalizer) Option {
	return func(s *Session) { s.norm = n }
}

// RequireSource makes Start fail with ErrNoSource when no source is attached.
func RequireSource() Option {
	return func(s *Session) { s.requireSource = true }
}

// Session is safe for concurrent use.
type Session struct {
	mu            sync.Mutex
	ctrl          *pipeline.Controller
	norm          *source.Normalizer
	metrics       *metrics.Metrics
	publishers    []Publisher
	src           source.Source
	requireSource bool
	uploads       uint64
}

// New wraps ctrl.
func New(ctrl *pipeline.Controller, opts ...Option) *Session {
	s := &Session{ctrl: ctrl}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.norm == nil {
		s.norm = source.NewNormalizer(0, 0)
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.ctrl.ID()
}

// Metrics returns the metrics the session records into.
func (s *Session) Metrics() *metrics.Metrics {
	return s.metrics
}

// HasSource reports whether a frame source is attached.
func (s *Session) HasSource() bool {
	return s.src != nil
}

// Detecting reports whether the session is in the Detecting state.
func (s *Session) Detecting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.State() == pipeline.Detecting
}

// Start begins detection.
func (s *Session) Start(ctx context.Context) error {
	if s.requireSource && s.src == nil {
		return ErrNoSource
	}

	s.mu.Lock()
	s.ctrl.Start()
	s.mu.Unlock()

	s.metrics.Detecting.Store(1)
	s.publish(ctx, stateEvent(s.ID(), pipeline.Detecting, "start"))
	return nil
}

// Stop ends detection. Counters and outputs are kept.
func (s *Session) Stop(ctx context.Context) {
	s.mu.Lock()
	s.ctrl.Stop()
	s.mu.Unlock()

	s.metrics.Detecting.Store(0)
	s.publish(ctx, stateEvent(s.ID(), pipeline.Idle, "stop"))
}

// Reset clears bits, symbols and counters without changing the state.
func (s *Session) Reset(ctx context.Context) {
	s.mu.Lock()
	s.ctrl.Reset()
	state := s.ctrl.State()
	s.mu.Unlock()

	s.metrics.Resets.Add(1)
	s.metrics.ActiveRegions.Store(0)
	s.publish(ctx, stateEvent(s.ID(), state, "reset"))
}

// Configure updates threshold and region size.
func (s *Session) Configure(ctx context.Context, threshold, regionSize int) error {
	s.mu.Lock()
	err := s.ctrl.Configure(threshold, regionSize)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.publish(ctx, broadcast.NewEvent(broadcast.TypeConfig, s.ID(), map[string]any{
		"threshold":   threshold,
		"region_size": regionSize,
	}))
	return nil
}

// Config returns the active pipeline configuration.
func (s *Session) Config() pipeline.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.Config()
}

// Status returns a snapshot of the controller.
func (s *Session) Status() pipeline.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.Snapshot()
}

// HandleImage normalizes and ticks an uploaded image. It fails with ErrIdle
// unless the session is detecting.
func (s *Session) HandleImage(ctx context.Context, img image.Image) (pipeline.TickResult, error) {
	if !s.Detecting() {
		s.metrics.FramesReceived.Add(1)
		s.metrics.FramesIgnored.Add(1)
		return pipeline.TickResult{}, ErrIdle
	}

	frame := s.norm.Image(img)
	s.mu.Lock()
	frame.FrameNum = s.uploads
	s.uploads++
	s.mu.Unlock()
	frame.Timestamp = time.Now()

	return s.HandleFrame(ctx, frame), nil
}

// HandleFrame runs one frame through the pipeline and publishes the
// resulting events.
func (s *Session) HandleFrame(ctx context.Context, frame *types.Frame) pipeline.TickResult {
	frame = s.norm.Frame(frame)

	s.mu.Lock()
	detecting := s.ctrl.State() == pipeline.Detecting
	start := time.Now()
	res := s.ctrl.Tick(frame)
	elapsed := time.Since(start)
	s.mu.Unlock()

	s.metrics.FramesReceived.Add(1)
	if !detecting {
		s.metrics.FramesIgnored.Add(1)
		return res
	}
	if !res.Processed {
		return res
	}

	s.metrics.FramesProcessed.Add(1)
	s.metrics.ActiveRegions.Store(uint64(res.ActiveRegions))
	s.metrics.ObserveTick(elapsed)

	if !res.Motion {
		return res
	}
	s.metrics.MotionTicks.Add(1)
	s.publish(ctx, tickEvent(s.ID(), frame.FrameNum, res))

	if res.CodeReady {
		s.metrics.CodesDecoded.Add(1)
	}
	if res.SymbolEmitted {
		s.metrics.SymbolsEmitted.Add(1)
		logger.Info("Session", "Session %s emitted %q (code=%d, total=%d)",
			s.ID(), res.Symbol, res.Code, res.Counters.SymbolsEmitted)
		s.publish(ctx, symbolEvent(s.ID(), frame.FrameNum, res))
	}
	return res
}

func (s *Session) publish(ctx context.Context, ev broadcast.Event) {
	for _, p := range s.publishers {
		if err := p.Publish(ctx, ev); err != nil {
			s.metrics.PublishErrors.Add(1)
			logger.Warn("Session", "Failed to publish %s event: %v", ev.Type, err)
		}
	}
}

func stateEvent(id string, state pipeline.State, action string) broadcast.Event {
	return broadcast.NewEvent(broadcast.TypeState, id, map[string]any{
		"state":  state.String(),
		"action": action,
	})
}

func tickEvent(id string, frameNum uint64, res pipeline.TickResult) broadcast.Event {
	regions := make([]any, len(res.Regions))
	for i, r := range res.Regions {
		regions[i] = map[string]any{"x": r.X, "y": r.Y, "width": r.Width, "height": r.Height}
	}
	return broadcast.NewEvent(broadcast.TypeTick, id, map[string]any{
		"frame":          frameNum,
		"active_regions": res.ActiveRegions,
		"total_regions":  res.TotalRegions,
		"regions":        regions,
		"bit_appended":   res.BitAppended,
		"bit":            int(res.Bit),
		"code_ready":     res.CodeReady,
		"motion_events":  res.Counters.MotionEvents,
	})
}

func symbolEvent(id string, frameNum uint64, res pipeline.TickResult) broadcast.Event {
	return broadcast.NewEvent(broadcast.TypeSymbol, id, map[string]any{
		"frame":           frameNum,
		"symbol":          res.Symbol,
		"code":            res.Code,
		"symbols_emitted": res.Counters.SymbolsEmitted,
		"motion_events":   res.Counters.MotionEvents,
	})
}
