package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/NERVsystems/railmap/pkg/geo"
	"github.com/NERVsystems/railmap/pkg/layers"
	"github.com/NERVsystems/railmap/pkg/mapview"
	"github.com/NERVsystems/railmap/pkg/monitoring"
	"github.com/NERVsystems/railmap/pkg/session"
	"github.com/NERVsystems/railmap/pkg/tools"
)

// staticAPI serves one empty collection per layer and accepts every correction
type staticAPI struct{}

func (staticAPI) FetchLayer(context.Context, layers.Kind, geo.Query) (*geojson.FeatureCollection, error) {
	return geojson.NewFeatureCollection(), nil
}

func (staticAPI) SubmitCorrection(context.Context, orb.Polygon, string) error {
	return nil
}

var london = geo.Viewport{North: 52, South: 51, East: 0.1, West: -0.1}

func newRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	sess := session.New(mapview.NewHeadless(london, nil), staticAPI{}, 0, nil)
	t.Cleanup(sess.Close)
	sess.Start(context.Background())
	return tools.NewRegistry(nil, sess, nil)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewServer(t *testing.T) {
	s := NewServer(newRegistry(t), discardLogger())
	if s == nil || s.MCPServer() == nil {
		t.Fatal("NewServer returned no MCP server")
	}
}

func TestServerShutdownBeforeRun(t *testing.T) {
	s := NewServer(newRegistry(t), discardLogger())
	// Shutdown of a server that never ran is a no-op
	s.Shutdown()
	s.Shutdown()
}

func TestServerRunWithContext(t *testing.T) {
	s := NewServer(newRegistry(t), discardLogger())
	in, inWriter := io.Pipe()
	defer inWriter.Close()
	s.SetIO(in, io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.RunWithContext(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("RunWithContext() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after context cancellation")
	}
	s.WaitForShutdown()
}

func TestServerStopsAtEndOfInput(t *testing.T) {
	s := NewServer(newRegistry(t), discardLogger())
	s.SetIO(strings.NewReader(""), io.Discard)

	done := make(chan error, 1)
	go func() { done <- s.Run() }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop at end of input")
	}
}

func TestServerShutdown(t *testing.T) {
	s := NewServer(newRegistry(t), discardLogger())
	in, inWriter := io.Pipe()
	defer inWriter.Close()
	s.SetIO(in, io.Discard)

	go s.Run()
	// Shutdown may race with startup, keep asking until the server stops
	stopped := make(chan struct{})
	go func() {
		s.WaitForShutdown()
		close(stopped)
	}()
	deadline := time.After(5 * time.Second)
	for {
		s.Shutdown()
		select {
		case <-stopped:
			return
		case <-deadline:
			t.Fatal("server did not stop after Shutdown")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	hc := monitoring.NewHealthChecker("railmap-test", "test")
	t.Cleanup(hc.Shutdown)
	return NewHandler(discardLogger(), hc, newRegistry(t))
}

func TestHandlerProbes(t *testing.T) {
	h := newTestHandler(t)

	for _, path := range []string{"/health", "/ready", "/live", "/metrics"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rr.Code)
		}
		if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Errorf("GET %s missing security headers", path)
		}
	}
}

func TestHandlerState(t *testing.T) {
	h := newTestHandler(t)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/state", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /state = %d, want 200", rr.Code)
	}

	var state tools.MapStateOutput
	if err := json.Unmarshal(rr.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.Viewport != london {
		t.Errorf("viewport = %+v, want %+v", state.Viewport, london)
	}
	if len(state.Overlays) != 2 {
		t.Errorf("overlays = %d, want 2", len(state.Overlays))
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/state", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /state = %d, want 405", rr.Code)
	}
}

func TestResponseWriterCapturesStatus(t *testing.T) {
	rr := httptest.NewRecorder()
	rw := newResponseWriter(rr)
	rw.WriteHeader(http.StatusTeapot)
	rw.WriteHeader(http.StatusOK)
	rw.Write([]byte("short and stout"))

	if rw.statusCode != http.StatusTeapot || rr.Code != http.StatusTeapot {
		t.Errorf("status = %d/%d, want 418", rw.statusCode, rr.Code)
	}
	if rw.bytesWritten != int64(len("short and stout")) {
		t.Errorf("bytes = %d", rw.bytesWritten)
	}
}
