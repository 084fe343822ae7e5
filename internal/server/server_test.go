package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mutecast/mutecast/internal/detect"
	"github.com/mutecast/mutecast/internal/library"
	"github.com/mutecast/mutecast/internal/server"
	audiomock "github.com/mutecast/mutecast/pkg/audio/mock"
	fpmock "github.com/mutecast/mutecast/pkg/provider/fingerprint/mock"
)

func testEntry(name string) library.Entry {
	return library.Entry{
		Name:        name,
		Fingerprint: []byte("fp-" + name),
		Metadata:    library.Metadata{Duration: 30 * time.Second, SampleRate: 44100, Channels: 1},
	}
}

// newTestServer assembles a Server around an idle monitor and a disk store.
func newTestServer(t *testing.T) (*server.Server, *library.Library, library.Store) {
	t.Helper()

	lib := library.New()
	store, err := library.NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}

	matcher, err := detect.NewMatcher(&fpmock.Provider{}, lib, 0.8, 0.01, nil)
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}
	monitor, err := detect.NewMonitor(detect.MonitorConfig{
		SampleRate:   44100,
		Channels:     1,
		ChunkSize:    1024,
		WindowChunks: 10,
		GracePeriod:  2 * time.Second,
	}, &audiomock.Platform{}, matcher, nil)
	if err != nil {
		t.Fatalf("NewMonitor: %v", err)
	}

	return server.New(":0", monitor, lib, store, nil), lib, store
}

func doRequest(t *testing.T, srv *server.Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestStatusEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(t, srv, "GET", "/api/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var status detect.Status
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if status.Running {
		t.Error("Running = true for an unstarted monitor")
	}
}

func TestListPatterns(t *testing.T) {
	srv, lib, _ := newTestServer(t)
	lib.Add(testEntry("zeta"))
	lib.Add(testEntry("alpha"))

	rec := doRequest(t, srv, "GET", "/api/patterns", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body struct {
		Patterns []library.Info `json:"patterns"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if len(body.Patterns) != 2 {
		t.Fatalf("patterns = %d, want 2", len(body.Patterns))
	}
	if body.Patterns[0].Name != "alpha" || body.Patterns[1].Name != "zeta" {
		t.Errorf("patterns not sorted by name: %+v", body.Patterns)
	}
}

func TestDeletePattern_ExactName(t *testing.T) {
	srv, lib, store := newTestServer(t)
	lib.Add(testEntry("jingle"))
	store.Save(context.Background(), testEntry("jingle"))

	rec := doRequest(t, srv, "DELETE", "/api/patterns/jingle", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body)
	}

	if _, ok := lib.Get("jingle"); ok {
		t.Error("pattern still in library")
	}
	stored, _ := store.Load(context.Background())
	if len(stored) != 0 {
		t.Errorf("store holds %d patterns after delete, want 0", len(stored))
	}
}

func TestDeletePattern_FuzzyName(t *testing.T) {
	srv, lib, _ := newTestServer(t)
	lib.Add(testEntry("ACME Spring Sale"))

	rec := doRequest(t, srv, "DELETE", "/api/patterns/acme%20spring%20sale", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body)
	}

	var body struct {
		Deleted string `json:"deleted"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Deleted != "ACME Spring Sale" {
		t.Errorf("Deleted = %q, want resolved name", body.Deleted)
	}
	if lib.Len() != 0 {
		t.Error("pattern still in library")
	}
}

func TestDeletePattern_Unknown(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(t, srv, "DELETE", "/api/patterns/nothing-like-this", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestSetThreshold(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(t, srv, "PUT", "/api/threshold", `{"threshold": 0.92}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body)
	}

	var body struct {
		Threshold float64 `json:"threshold"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Threshold != 0.92 {
		t.Errorf("Threshold = %v, want 0.92", body.Threshold)
	}
}

func TestSetThreshold_Rejected(t *testing.T) {
	srv, _, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "above one", body: `{"threshold": 1.2}`},
		{name: "negative", body: `{"threshold": -0.1}`},
		{name: "not json", body: `threshold=0.9`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, srv, "PUT", "/api/threshold", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	srv, _, _ := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		t.Run(path, func(t *testing.T) {
			rec := doRequest(t, srv, "GET", path, "")
			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
			}
		})
	}
}
