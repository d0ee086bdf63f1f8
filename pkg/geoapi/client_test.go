package geoapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/NERVsystems/railmap/pkg/core"
	"github.com/NERVsystems/railmap/pkg/geo"
	"github.com/NERVsystems/railmap/pkg/layers"
)

var fastRetry = core.RetryOptions{
	MaxAttempts:  3,
	InitialDelay: time.Millisecond,
	MaxDelay:     5 * time.Millisecond,
	Multiplier:   2,
}

func newTestClient(t *testing.T, handler http.Handler, hooks *MonitoringHooks) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Options{
		BaseURL:   srv.URL,
		UserAgent: "railmap-test/1.0",
		Retry:     fastRetry,
		Hooks:     hooks,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

const waysBody = `{"type":"FeatureCollection","features":[
 {"type":"Feature","geometry":{"type":"LineString","coordinates":[[-0.1,51],[0.1,52]]},"properties":{"p1":"A","p2":"B"}}
]}`

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{"empty", "", true},
		{"no scheme", "trains.example.org", true},
		{"ftp", "ftp://trains.example.org", true},
		{"http", "http://trains.example.org", false},
		{"trailing slash", "https://trains.example.org/", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(Options{BaseURL: tt.baseURL})
			if (err != nil) != tt.wantErr {
				t.Errorf("NewClient(%q) error = %v, wantErr %v", tt.baseURL, err, tt.wantErr)
			}
		})
	}
}

func TestFetchLayerRequest(t *testing.T) {
	var gotPath, gotQuery, gotUA string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, waysBody)
	}), nil)

	q := geo.NewQuery(geo.Viewport{North: 52, South: 51, East: 0.1, West: -0.1})
	fc, err := c.FetchLayer(context.Background(), layers.Ways, q)
	if err != nil {
		t.Fatalf("FetchLayer: %v", err)
	}

	if gotPath != "/geo/ways" {
		t.Errorf("path = %q, want /geo/ways", gotPath)
	}
	if want := "xmax=0.1&xmin=-0.1&ymax=52&ymin=51"; gotQuery != want {
		t.Errorf("query = %q, want %q", gotQuery, want)
	}
	if gotUA != "railmap-test/1.0" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if len(fc.Features) != 1 {
		t.Fatalf("features = %d, want 1", len(fc.Features))
	}
	if fc.Features[0].Properties["p1"] != "A" {
		t.Errorf("p1 = %v", fc.Features[0].Properties["p1"])
	}
}

func TestFetchLayerStationsPath(t *testing.T) {
	var gotPath string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		io.WriteString(w, `{"type":"FeatureCollection","features":[]}`)
	}), nil)

	q := geo.NewQuery(geo.Viewport{North: 1, South: 0, East: 1, West: 0}).WithLimit(geo.DefaultLimit)
	if _, err := c.FetchLayer(context.Background(), layers.Stations, q); err != nil {
		t.Fatal(err)
	}
	if gotPath != "/geo/stations" {
		t.Errorf("path = %q, want /geo/stations", gotPath)
	}
}

func TestFetchLayerErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind core.Kind
		attempts int32
	}{
		{"bad request not retried", http.StatusBadRequest, "bad box", core.KindServerRejection, 1},
		{"server error retried", http.StatusInternalServerError, "boom", core.KindServerRejection, 3},
		{"invalid json", http.StatusOK, "not json", core.KindParseFailure, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}), nil)

			_, err := c.FetchLayer(context.Background(), layers.Ways, geo.Query{})
			if err == nil {
				t.Fatal("expected error")
			}
			if !core.IsKind(err, tt.wantKind) {
				t.Errorf("kind = %s, want %s (%v)", core.KindOf(err), tt.wantKind, err)
			}
			if got := calls.Load(); got != tt.attempts {
				t.Errorf("attempts = %d, want %d", got, tt.attempts)
			}
		})
	}
}

func TestFetchLayerRejectionIgnoresBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, "<html>stack trace</html>")
	}), nil)

	_, err := c.FetchLayer(context.Background(), layers.Ways, geo.Query{})
	if msg := core.UserMessage(err); strings.Contains(msg, "stack trace") {
		t.Errorf("message leaked response body: %q", msg)
	}
}

func TestFetchLayerNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(Options{BaseURL: url, Retry: core.NoRetry})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.FetchLayer(context.Background(), layers.Stations, geo.Query{})
	if !core.IsKind(err, core.KindNetworkFailure) {
		t.Errorf("kind = %s, want network failure (%v)", core.KindOf(err), err)
	}
}

func TestFetchLayerUnknownKind(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}), nil)
	if _, err := c.FetchLayer(context.Background(), layers.Kind("signals"), geo.Query{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestSubmitCorrection(t *testing.T) {
	var (
		gotMethod string
		gotType   string
		gotBody   map[string]json.RawMessage
	)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/geo/correct_station" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotMethod = r.Method
		gotType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		io.WriteString(w, "ok")
	}), nil)

	poly := orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}
	if err := c.SubmitCorrection(context.Background(), poly, "KGX"); err != nil {
		t.Fatalf("SubmitCorrection: %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("method = %s, want POST", gotMethod)
	}
	if gotType != "application/json" {
		t.Errorf("Content-Type = %q", gotType)
	}

	var name string
	if err := json.Unmarshal(gotBody["name"], &name); err != nil || name != "KGX" {
		t.Errorf("name = %q (%v)", name, err)
	}
	var geom struct {
		Type        string         `json:"type"`
		Coordinates [][][2]float64 `json:"coordinates"`
	}
	if err := json.Unmarshal(gotBody["poly"], &geom); err != nil {
		t.Fatalf("poly: %v", err)
	}
	if geom.Type != "Polygon" {
		t.Errorf("poly type = %q, want Polygon", geom.Type)
	}
	if len(geom.Coordinates) != 1 || len(geom.Coordinates[0]) != 4 {
		t.Errorf("poly coordinates = %v", geom.Coordinates)
	}
}

func TestSubmitCorrectionRejected(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, "STANOX not found")
	}), nil)

	err := c.SubmitCorrection(context.Background(), orb.Polygon{{{0, 0}, {1, 1}, {0, 0}}}, "99999")
	if err == nil {
		t.Fatal("expected error")
	}
	if !core.IsKind(err, core.KindServerRejection) {
		t.Errorf("kind = %s, want server rejection", core.KindOf(err))
	}
	if msg := core.UserMessage(err); msg != "STANOX not found" {
		t.Errorf("message = %q, want server text verbatim", msg)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("correction sent %d times, want exactly once", got)
	}
}

func TestStationSuggestions(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/station_suggestions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if q := r.URL.Query().Get("query"); q != "king" {
			t.Errorf("query = %q", q)
		}
		io.WriteString(w, `{"suggestions":[{"name":"London Kings Cross","code":"87700","code_type":"STANOX"}]}`)
	}), nil)

	got, err := c.StationSuggestions(context.Background(), " king ")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Code != "87700" || got[0].CodeType != "STANOX" {
		t.Errorf("suggestions = %+v", got)
	}

	// Served from cache
	if _, err := c.StationSuggestions(context.Background(), "king"); err != nil {
		t.Fatal(err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("server calls = %d, want 1", n)
	}
}

func TestStationSuggestionsShortQuery(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("short query must not reach the server")
	}), nil)

	for _, q := range []string{"", "ki", "  ab  ", "αβ"} {
		got, err := c.StationSuggestions(context.Background(), q)
		if err != nil || got != nil {
			t.Errorf("StationSuggestions(%q) = %v, %v", q, got, err)
		}
	}
}

func TestCheckHealth(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "1" {
			t.Errorf("health probe limit = %q", r.URL.Query().Get("limit"))
		}
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, `{"type":"FeatureCollection","features":[]}`)
	}), nil)

	if err := c.CheckHealth(context.Background()); err != nil {
		t.Errorf("healthy server: %v", err)
	}
	healthy.Store(false)
	if err := c.CheckHealth(context.Background()); err == nil {
		t.Error("expected error from unavailable server")
	}
}

func TestMonitoringHooks(t *testing.T) {
	var (
		mu        sync.Mutex
		requests  []string
		responses []bool
		cacheHits []bool
		failures  []string
	)
	hooks := &MonitoringHooks{
		OnRequest: func(service, operation string) {
			mu.Lock()
			defer mu.Unlock()
			requests = append(requests, service+"/"+operation)
		},
		OnResponse: func(service, operation string, d time.Duration, success bool) {
			mu.Lock()
			defer mu.Unlock()
			responses = append(responses, success)
		},
		OnError: func(service, errorType string) {
			mu.Lock()
			defer mu.Unlock()
			failures = append(failures, errorType)
		},
		OnCache: func(cacheType string, hit bool) {
			mu.Lock()
			defer mu.Unlock()
			cacheHits = append(cacheHits, hit)
		},
	}

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, "nope")
			return
		}
		io.WriteString(w, `{"suggestions":[]}`)
	}), hooks)

	c.StationSuggestions(context.Background(), "euston")
	c.StationSuggestions(context.Background(), "euston")
	c.SubmitCorrection(context.Background(), orb.Polygon{{{0, 0}, {1, 1}, {0, 0}}}, "1")

	mu.Lock()
	defer mu.Unlock()
	if len(requests) != 2 || requests[0] != "geo/station_suggestions" || requests[1] != "geo/correct_station" {
		t.Errorf("requests = %v", requests)
	}
	if len(responses) != 2 || !responses[0] || responses[1] {
		t.Errorf("responses = %v", responses)
	}
	if len(cacheHits) != 2 || cacheHits[0] || !cacheHits[1] {
		t.Errorf("cache lookups = %v", cacheHits)
	}
	if len(failures) != 1 || failures[0] != string(core.KindServerRejection) {
		t.Errorf("failures = %v", failures)
	}
}

func TestRateLimit(t *testing.T) {
	var waits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"type":"FeatureCollection","features":[]}`)
	}))
	defer srv.Close()

	c, err := NewClient(Options{
		BaseURL:   srv.URL,
		RateLimit: 50,
		RateBurst: 1,
		Hooks: &MonitoringHooks{
			OnRateLimit: func(string, time.Duration) { waits.Add(1) },
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if _, err := c.FetchLayer(context.Background(), layers.Ways, geo.Query{}); err != nil {
			t.Fatal(err)
		}
	}
	if waits.Load() == 0 {
		t.Error("expected the limiter to delay at least one request")
	}
}
