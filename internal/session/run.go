package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dj-oyu/motionglyph/internal/logger"
	"github.com/dj-oyu/motionglyph/internal/source"
)

// DefaultFPS is the polling rate used when Run is given a non-positive fps.
const DefaultFPS = 30

// Run polls the attached source at fps while the session is detecting and
// skips reads while idle. It returns nil when ctx is cancelled or the source
// is exhausted.
func (s *Session) Run(ctx context.Context, fps int) error {
	if s.src == nil {
		return ErrNoSource
	}
	if fps <= 0 {
		fps = DefaultFPS
	}

	logger.Info("Reader", "Starting frame reading (polling at %dfps)", fps)

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	idleCount := 0

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			// Skip reading while idle so sources are not drained.
			if !s.Detecting() {
				idleCount++
				if idleCount%(fps*10) == 0 {
					logger.Debug("Reader", "Not detecting, idle (count=%d)", idleCount)
				}
				continue
			}

			if idleCount > 0 {
				logger.Info("Reader", "Resuming frame reading")
				idleCount = 0
			}

			if _, done := s.step(ctx); done {
				return nil
			}
		}
	}
}

const maxConsecutiveErrors = 10

// Drain feeds every remaining source frame through the pipeline without
// pacing and returns the number of frames read. Read errors are counted and
// skipped; Drain gives up after maxConsecutiveErrors in a row.
func (s *Session) Drain(ctx context.Context) (int, error) {
	if s.src == nil {
		return 0, ErrNoSource
	}
	n, errorCount := 0, 0
	for {
		read, done := s.step(ctx)
		if done {
			return n, ctx.Err()
		}
		if !read {
			errorCount++
			if errorCount >= maxConsecutiveErrors {
				return n, fmt.Errorf("giving up after %d consecutive read errors", errorCount)
			}
			continue
		}
		errorCount = 0
		n++
	}
}

// step reads and ticks one frame. It reports whether a frame was read and
// whether the source is exhausted or ctx is cancelled.
func (s *Session) step(ctx context.Context) (read, done bool) {
	frame, err := s.src.Next(ctx)
	switch {
	case err == nil:
		s.HandleFrame(ctx, frame)
		return true, false
	case errors.Is(err, source.ErrExhausted):
		logger.Info("Reader", "Source exhausted")
		return false, true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false, true
	default:
		s.metrics.ReadErrors.Add(1)
		logger.Warn("Reader", "Read error: %v", err)
		return false, false
	}
}

// Close releases the attached source.
func (s *Session) Close() error {
	if s.src == nil {
		return nil
	}
	return s.src.Close()
}
