package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	// Frame counters
	FramesReceived  atomic.Uint64
	FramesProcessed atomic.Uint64
	FramesIgnored   atomic.Uint64 // Frames delivered while idle

	// Pipeline counters
	MotionTicks    atomic.Uint64
	CodesDecoded   atomic.Uint64
	SymbolsEmitted atomic.Uint64
	Resets         atomic.Uint64

	// Error counters
	ReadErrors    atomic.Uint64
	DecodeErrors  atomic.Uint64
	PublishErrors atomic.Uint64

	// Latest tick
	ActiveRegions atomic.Uint64
	Detecting     atomic.Uint64 // 0 = idle, 1 = detecting

	// Subscribers
	EventClients  atomic.Uint64
	WebRTCClients atomic.Uint64

	tickDuration prometheus.Histogram

	// Prometheus collectors
	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "motionglyph_tick_duration_seconds",
			Help:    "Time spent processing one frame",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
	}

	m.registerPrometheusMetrics()

	return m
}

type gaugeDef struct {
	name  string
	help  string
	value *atomic.Uint64
}

// registerPrometheusMetrics registers all metrics with Prometheus
func (m *Metrics) registerPrometheusMetrics() {
	defs := []gaugeDef{
		{"motionglyph_frames_received_total", "Total frames delivered to the pipeline", &m.FramesReceived},
		{"motionglyph_frames_processed_total", "Total frames diffed against a previous frame", &m.FramesProcessed},
		{"motionglyph_frames_ignored_total", "Total frames delivered while idle", &m.FramesIgnored},
		{"motionglyph_motion_ticks_total", "Total frames with at least one active region", &m.MotionTicks},
		{"motionglyph_codes_decoded_total", "Total 5-bit codes cut from the bitstream", &m.CodesDecoded},
		{"motionglyph_symbols_emitted_total", "Total symbols emitted", &m.SymbolsEmitted},
		{"motionglyph_resets_total", "Total session resets", &m.Resets},
		{"motionglyph_read_errors_total", "Total frame source read errors", &m.ReadErrors},
		{"motionglyph_decode_errors_total", "Total uploaded frames that failed to decode", &m.DecodeErrors},
		{"motionglyph_publish_errors_total", "Total event publish failures", &m.PublishErrors},
		{"motionglyph_active_regions", "Active regions in the latest processed frame", &m.ActiveRegions},
		{"motionglyph_detecting", "Detection active (0=idle, 1=detecting)", &m.Detecting},
		{"motionglyph_event_clients", "Connected SSE clients", &m.EventClients},
		{"motionglyph_webrtc_clients", "Connected WebRTC data channel clients", &m.WebRTCClients},
	}

	for _, d := range defs {
		v := d.value
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: d.name, Help: d.help},
			func() float64 { return float64(v.Load()) },
		))
	}

	m.registry.MustRegister(m.tickDuration)
}

// ObserveTick records the processing time of one frame.
func (m *Metrics) ObserveTick(d time.Duration) {
	m.tickDuration.Observe(d.Seconds())
}

// Gather returns the current metric families, mainly for tests.
func (m *Metrics) Gather() (map[string]float64, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(families))
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			switch {
			case metric.GetGauge() != nil:
				out[f.GetName()] = metric.GetGauge().GetValue()
			case metric.GetHistogram() != nil:
				out[f.GetName()] = float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	return out, nil
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer serves /metrics on addr until ctx is cancelled.
func (m *Metrics) StartServer(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listen on %s: %w", addr, err)
	}
	return m.Serve(ctx, ln)
}

// Serve serves /metrics on ln and shuts down gracefully when ctx is
// cancelled. It returns nil after a clean shutdown.
func (m *Metrics) Serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
