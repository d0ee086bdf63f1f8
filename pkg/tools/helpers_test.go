package tools

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/railmap/pkg/core"
	"github.com/NERVsystems/railmap/pkg/geo"
	"github.com/NERVsystems/railmap/pkg/geoapi"
	"github.com/NERVsystems/railmap/pkg/mapview"
	"github.com/NERVsystems/railmap/pkg/session"
)

// AssertErrorResult checks that a result is an error result
func AssertErrorResult(t *testing.T, result *mcp.CallToolResult, message string) {
	t.Helper()
	if result == nil || !result.IsError {
		t.Error(message)
	}
}

// AssertSuccessResult checks that a result is a success result
func AssertSuccessResult(t *testing.T, result *mcp.CallToolResult, message string) {
	t.Helper()
	if result != nil && result.IsError {
		t.Errorf("%s. Got error: %s", message, resultText(result))
	}
}

// ParseResultJSON parses the JSON content from a CallToolResult
func ParseResultJSON(result *mcp.CallToolResult, out any) error {
	return json.Unmarshal([]byte(resultText(result)), out)
}

func resultText(result *mcp.CallToolResult) string {
	for _, c := range result.Content {
		if text, ok := c.(mcp.TextContent); ok {
			return text.Text
		}
	}
	return ""
}

func newRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

// fakeGeoServer answers layer, correction and suggestion requests
type fakeGeoServer struct {
	mu          sync.Mutex
	counts      map[string]int
	rejectWith  string
	suggestions string
}

func (f *fakeGeoServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.counts[r.URL.Path]++
	reject := f.rejectWith
	f.mu.Unlock()

	switch r.URL.Path {
	case "/geo/ways":
		io.WriteString(w, `{"type":"FeatureCollection","features":[
			{"type":"Feature","geometry":{"type":"LineString","coordinates":[[-0.1,51.5],[0.1,51.5]]},"properties":{"p1":"KGX","p2":"FPK"}}]}`)
	case "/geo/stations":
		io.WriteString(w, `{"type":"FeatureCollection","features":[
			{"type":"Feature","geometry":{"type":"Point","coordinates":[0,51.5]},"properties":{"nr_ref":"KGX"}}]}`)
	case "/geo/correct_station":
		if reject != "" {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, reject)
		}
	case "/station_suggestions":
		io.WriteString(w, `{"suggestions":[{"name":"London Kings Cross","code":"87700","code_type":"STANOX"}]}`)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeGeoServer) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[path]
}

func (f *fakeGeoServer) reject(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejectWith = reason
}

var london = geo.Viewport{North: 52, South: 51, East: 0.1, West: -0.1}

func newTestRegistry(t *testing.T) (*Registry, *fakeGeoServer) {
	t.Helper()
	gs := &fakeGeoServer{counts: make(map[string]int)}
	srv := httptest.NewServer(gs)
	t.Cleanup(srv.Close)

	client, err := geoapi.NewClient(geoapi.Options{BaseURL: srv.URL, Retry: core.NoRetry})
	if err != nil {
		t.Fatal(err)
	}
	sess := session.New(mapview.NewHeadless(london, nil), client, 0, nil)
	t.Cleanup(sess.Close)
	sess.Start(context.Background())

	return NewRegistry(nil, sess, client), gs
}
