// Package server exposes a detection session over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dj-oyu/motionglyph/internal/broadcast"
	"github.com/dj-oyu/motionglyph/internal/logger"
	"github.com/dj-oyu/motionglyph/internal/session"
	"github.com/dj-oyu/motionglyph/internal/source"
	"github.com/dj-oyu/motionglyph/internal/webrtc"
)

// Config defines the runtime configuration for the API server.
type Config struct {
	Addr          string
	MaxFrameBytes int64         // Upper bound for POST /api/frame bodies
	KeepAlive     time.Duration // SSE keepalive interval
}

// DefaultConfig returns the default API server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:          ":8080",
		MaxFrameBytes: 32 << 20,
		KeepAlive:     30 * time.Second,
	}
}

// Server serves the session API.
type Server struct {
	cfg     Config
	session *session.Session
	hub     *broadcast.Hub
	webrtc  *webrtc.Server // nil when the data channel feed is disabled
	started time.Time
}

// New returns a configured API server. rtc may be nil.
func New(cfg Config, sess *session.Session, hub *broadcast.Hub, rtc *webrtc.Server) *Server {
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.MaxFrameBytes <= 0 {
		cfg.MaxFrameBytes = def.MaxFrameBytes
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = def.KeepAlive
	}
	return &Server{
		cfg:     cfg,
		session: sess,
		hub:     hub,
		webrtc:  rtc,
		started: time.Now(),
	}
}

// Handler exposes the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/api/start", s.handleStart)
	mux.HandleFunc("/api/stop", s.handleStop)
	mux.HandleFunc("/api/reset", s.handleReset)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/frame", s.handleFrame)
	mux.HandleFunc("/api/webrtc/offer", s.handleWebRTCOffer)

	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP", "Starting HTTP server on %s", s.cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// SSE streams end when the hub closes.
	_ = s.hub.Close()
	return httpServer.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.session.Status()
	payload := map[string]any{
		"status":         "ok",
		"session":        st.ID,
		"state":          st.State,
		"has_source":     s.session.HasSource(),
		"event_clients":  s.hub.ClientCount(),
		"webrtc_enabled": s.webrtc != nil,
		"uptime_seconds": time.Since(s.started).Seconds(),
	}
	if s.webrtc != nil {
		payload["webrtc_clients"] = s.webrtc.ClientCount()
	}
	writeJSON(w, payload)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.session.Status())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, eventCh := s.hub.Subscribe()
	m := s.session.Metrics()
	m.EventClients.Store(uint64(s.hub.ClientCount()))
	defer func() {
		s.hub.Unsubscribe(id)
		m.EventClients.Store(uint64(s.hub.ClientCount()))
	}()

	streamEventsFromChannel(w, r, eventCh, wantsProtobuf(r), s.cfg.KeepAlive)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.session.Start(r.Context()); err != nil {
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusConflict)
		return
	}
	writeJSON(w, s.session.Status())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.session.Stop(r.Context())
	writeJSON(w, s.session.Status())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.session.Reset(r.Context())
	writeJSON(w, s.session.Status())
}

type configRequest struct {
	Threshold  *int `json:"threshold"`
	RegionSize *int `json:"region_size"`
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, s.session.Config())
	case http.MethodPost:
		var req configRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONWithStatus(w, map[string]any{"error": "Invalid config data"}, http.StatusBadRequest)
			return
		}

		// Missing fields keep their current values.
		cfg := s.session.Config()
		if req.Threshold != nil {
			cfg.Threshold = *req.Threshold
		}
		if req.RegionSize != nil {
			cfg.RegionSize = *req.RegionSize
		}
		if err := s.session.Configure(r.Context(), cfg.Threshold, cfg.RegionSize); err != nil {
			writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusBadRequest)
			return
		}
		writeJSON(w, s.session.Config())
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxFrameBytes)
	img, format, err := source.Decode(body)
	if err != nil {
		s.session.Metrics().DecodeErrors.Add(1)
		logger.Debug("HTTP", "Frame upload rejected: %v", err)
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusBadRequest)
		return
	}

	res, err := s.session.HandleImage(r.Context(), img)
	if errors.Is(err, session.ErrIdle) {
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusConflict)
		return
	}
	if err != nil {
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusInternalServerError)
		return
	}

	logger.Debug("HTTP", "Frame upload (%s) ticked: motion=%v symbol=%q", format, res.Motion, res.Symbol)
	writeJSON(w, res)
}

func (s *Server) handleWebRTCOffer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.webrtc == nil {
		writeJSONWithStatus(w, map[string]any{"error": "WebRTC is disabled"}, http.StatusServiceUnavailable)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONWithStatus(w, map[string]any{"error": "Invalid offer data"}, http.StatusBadRequest)
		return
	}

	answer, err := s.webrtc.HandleOffer(body)
	switch {
	case errors.Is(err, webrtc.ErrInvalidOffer):
		writeJSONWithStatus(w, map[string]any{"error": "Invalid offer data"}, http.StatusBadRequest)
		return
	case errors.Is(err, webrtc.ErrMaxClients):
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusServiceUnavailable)
		return
	case err != nil:
		logger.Warn("HTTP", "WebRTC offer error: %v", err)
		writeJSONWithStatus(w, map[string]any{"error": "Failed to handle offer"}, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(answer)
}

func writeJSON(w http.ResponseWriter, payload any) {
	writeJSONWithStatus(w, payload, http.StatusOK)
}

func writeJSONWithStatus(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		_, _ = fmt.Fprintf(w, `{"error":"%s"}`, err.Error())
	}
}
