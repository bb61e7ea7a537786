package twin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/danvoulez/lablab/internal/api"
	twinmodel "github.com/danvoulez/lablab/internal/model/twin"
	twinservice "github.com/danvoulez/lablab/internal/service/twin"
)

func setupRouter(backendURL string) *chi.Mux {
	store := twinservice.NewStore(api.New(backendURL, time.Second, zap.NewNop()), zap.NewNop())
	handler := New(store, zap.NewNop())

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r
}

func fakeBackend(divergencesBody string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/twin-observations", "/executions/run-7/twin-observations":
			w.Write([]byte(`[{"span_id":"sp1","side":"physical","cycle_id":"c1","metrics":{"energy":-120.4},"recorded_at":"t"}]`))
		case "/twin-divergences", "/executions/run-7/twin-divergences":
			w.Write([]byte(divergencesBody))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestRefreshEndpoint(t *testing.T) {
	backend := fakeBackend(`[{"span_id":"sp1","cycle_id":"c1","metric":"energy","severity":"warning","absolute_delta":1.5,"percent_delta":1.2,"detected_at":"t"}]`)
	defer backend.Close()

	router := setupRouter(backend.URL)
	req := httptest.NewRequest(http.MethodPost, "/twin/refresh", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var snapshot twinservice.Snapshot
	if err := json.Unmarshal(resp.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if len(snapshot.Observations) != 1 || len(snapshot.Divergences) != 1 {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
}

func TestRefreshEndpointFailureKeepsSnapshot(t *testing.T) {
	backend := fakeBackend(`not json`)
	defer backend.Close()

	router := setupRouter(backend.URL)
	req := httptest.NewRequest(http.MethodPost, "/twin/refresh", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.Code)
	}

	var snapshot twinservice.Snapshot
	if err := json.Unmarshal(resp.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if snapshot.Error == "" {
		t.Fatal("expected the error cell in the response")
	}
	if len(snapshot.Observations) != 0 {
		t.Fatal("failed refresh must not apply partial data")
	}
}

func TestSeverityViews(t *testing.T) {
	backend := fakeBackend(`[
		{"span_id":"sp1","cycle_id":"c1","metric":"energy","severity":"warning","absolute_delta":1.5,"percent_delta":1.2,"detected_at":"t"},
		{"span_id":"sp2","cycle_id":"c2","metric":"rmsd","severity":"CRITICAL","absolute_delta":3.0,"percent_delta":40,"detected_at":"t"}
	]`)
	defer backend.Close()

	router := setupRouter(backend.URL)
	refresh := httptest.NewRequest(http.MethodPost, "/twin/refresh", nil)
	router.ServeHTTP(httptest.NewRecorder(), refresh)

	req := httptest.NewRequest(http.MethodGet, "/twin/critical", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	var critical []twinmodel.Divergence
	if err := json.Unmarshal(resp.Body.Bytes(), &critical); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if len(critical) != 1 || critical[0].SpanID != "sp2" {
		t.Fatalf("unexpected critical view: %+v", critical)
	}
}

func TestExecutionEndpoint(t *testing.T) {
	backend := fakeBackend(`[]`)
	defer backend.Close()

	router := setupRouter(backend.URL)
	req := httptest.NewRequest(http.MethodGet, "/executions/run-7/twin", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var payload struct {
		Observations []twinmodel.Observation `json:"observations"`
		Divergences  []twinmodel.Divergence  `json:"divergences"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if len(payload.Observations) != 1 {
		t.Fatalf("unexpected execution payload: %+v", payload)
	}
}
