package observability

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danmuck/framefactor/internal/testutil/testlog"
)

type stubSource struct {
	snap Snapshot
}

func (s stubSource) Status() Snapshot { return s.snap }

func get(t *testing.T, a *Admin, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, req)
	return rec
}

func TestAdminHealthAndReady(t *testing.T) {
	testlog.Start(t)
	a := NewAdmin("server", stubSource{snap: Snapshot{Role: "server"}}, nil)
	if rec := get(t, a, "/health"); rec.Code != http.StatusOK {
		t.Fatalf("unexpected health status: %d", rec.Code)
	}
	if rec := get(t, a, "/ready"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected not ready before ticking, got %d", rec.Code)
	}

	running := NewAdmin("server", stubSource{snap: Snapshot{Role: "server", Running: true, Ticks: 3}}, nil)
	if rec := get(t, running, "/ready"); rec.Code != http.StatusOK {
		t.Fatalf("expected ready, got %d", rec.Code)
	}
}

func TestAdminPeersAndEntities(t *testing.T) {
	testlog.Start(t)
	snap := Snapshot{
		Role:     "server",
		Running:  true,
		Peers:    []PeerStatus{{ID: 1, RemoteAddr: "127.0.0.1:5000"}, {ID: 2}},
		Entities: []uint64{0, 1},
		Types:    []string{"053c55fe-dcd8-4746-829f-51760445739e"},
	}
	a := NewAdmin("server", stubSource{snap: snap}, []string{"http://example.test"})

	rec := get(t, a, "/peers")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var peers struct {
		Peers []PeerStatus `json:"peers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &peers); err != nil {
		t.Fatalf("decode peers: %v", err)
	}
	if len(peers.Peers) != 2 || peers.Peers[0].ID != 1 || peers.Peers[0].RemoteAddr != "127.0.0.1:5000" {
		t.Fatalf("unexpected peers: %+v", peers.Peers)
	}

	rec = get(t, a, "/entities")
	var ents struct {
		Count    int      `json:"count"`
		Entities []uint64 `json:"entities"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &ents); err != nil {
		t.Fatalf("decode entities: %v", err)
	}
	if ents.Count != 2 || ents.Entities[1] != 1 {
		t.Fatalf("unexpected entities: %+v", ents)
	}
}

func TestAdminMetricsEndpoint(t *testing.T) {
	testlog.Start(t)
	a := NewAdmin("admin-test", stubSource{}, nil)
	RecordFrames("admin-test", "in", 2)
	rec := get(t, a, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected metrics status: %d", rec.Code)
	}
	if body := rec.Body.String(); len(body) == 0 {
		t.Fatalf("empty metrics body")
	}
}
