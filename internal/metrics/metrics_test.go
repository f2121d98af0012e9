package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatherReflectsCounters(t *testing.T) {
	m := New()
	m.FramesReceived.Add(3)
	m.SymbolsEmitted.Add(1)
	m.Detecting.Store(1)
	m.ObserveTick(2 * time.Millisecond)

	values, err := m.Gather()
	require.NoError(t, err)
	assert.Equal(t, 3.0, values["motionglyph_frames_received_total"])
	assert.Equal(t, 1.0, values["motionglyph_symbols_emitted_total"])
	assert.Equal(t, 1.0, values["motionglyph_detecting"])
	assert.Equal(t, 1.0, values["motionglyph_tick_duration_seconds"])
}

func TestHandlerServesText(t *testing.T) {
	m := New()
	m.MotionTicks.Add(5)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(string(body), "motionglyph_motion_ticks_total 5"))
}

func TestServeShutsDownOnCancel(t *testing.T) {
	m := New()
	m.SymbolsEmitted.Add(2)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "motionglyph_symbols_emitted_total 2")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("metrics server did not stop")
	}

	_, err = http.Get("http://" + ln.Addr().String() + "/metrics")
	assert.Error(t, err, "listener is closed after shutdown")
}

func TestStartServerBadAddr(t *testing.T) {
	err := New().StartServer(context.Background(), "256.0.0.1:bad")
	assert.ErrorContains(t, err, "metrics listen")
}
