package twin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/danvoulez/lablab/internal/api"
)

const observationsPayload = `[
	{"span_id": "sp1", "side": "physical", "cycle_id": "c1", "metrics": {"energy": -120.4}, "recorded_at": "2025-10-02T11:00:00Z"},
	{"span_id": "sp1", "side": "digital", "cycle_id": "c1", "metrics": {"energy": -118.9}, "recorded_at": "2025-10-02T11:00:01Z"}
]`

const divergencesPayload = `[
	{"span_id": "sp1", "cycle_id": "c1", "metric": "energy", "severity": "warning", "absolute_delta": 1.5, "percent_delta": 1.2, "detected_at": "2025-10-02T11:00:02Z"},
	{"span_id": "sp2", "cycle_id": "c4", "metric": "rmsd", "severity": "CRITICAL", "absolute_delta": 3.1, "percent_delta": 40, "detected_at": "2025-10-02T11:00:03Z"}
]`

func newBackend(divergenceStatus *atomic.Int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/twin-observations":
			w.Write([]byte(observationsPayload))
		case "/twin-divergences":
			if status := divergenceStatus.Load(); status != 0 {
				w.WriteHeader(int(status))
				return
			}
			w.Write([]byte(divergencesPayload))
		case "/executions/run-7/twin-observations":
			w.Write([]byte(`[{"span_id": "sp9", "side": "digital", "cycle_id": "c2", "metrics": {}, "recorded_at": "t", "execution_id": "run-7"}]`))
		case "/executions/run-7/twin-divergences":
			w.Write([]byte(`[]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestStore(baseURL string) *Store {
	return NewStore(api.New(baseURL, time.Second, zap.NewNop()), zap.NewNop())
}

func TestRefreshLoadsBothCollections(t *testing.T) {
	var failDiv atomic.Int32
	srv := newBackend(&failDiv)
	defer srv.Close()

	store := newTestStore(srv.URL)
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh err: %v", err)
	}

	snapshot := store.Snapshot()
	if len(snapshot.Observations) != 2 || len(snapshot.Divergences) != 2 {
		t.Fatalf("unexpected snapshot: %d observations, %d divergences", len(snapshot.Observations), len(snapshot.Divergences))
	}
	if snapshot.Loading || snapshot.Error != "" {
		t.Fatalf("unexpected state after refresh: %+v", snapshot)
	}
	if !store.HasObservations() || !store.HasDivergences() {
		t.Fatal("expected both collections to be reported as loaded")
	}
}

func TestSeverityFiltersAreCaseInsensitive(t *testing.T) {
	var failDiv atomic.Int32
	srv := newBackend(&failDiv)
	defer srv.Close()

	store := newTestStore(srv.URL)
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh err: %v", err)
	}

	critical := store.CriticalDivergences()
	if len(critical) != 1 || critical[0].SpanID != "sp2" {
		t.Fatalf("expected the CRITICAL divergence, got %+v", critical)
	}

	warnings := store.WarningDivergences()
	if len(warnings) != 1 || warnings[0].Metric != "energy" {
		t.Fatalf("expected the warning divergence, got %+v", warnings)
	}
	for _, divergence := range warnings {
		if divergence.SpanID == "sp2" {
			t.Fatal("a critical divergence must not appear among warnings")
		}
	}
}

func TestRefreshIsAtomicOnFailure(t *testing.T) {
	var failDiv atomic.Int32
	srv := newBackend(&failDiv)
	defer srv.Close()

	store := newTestStore(srv.URL)
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("first Refresh err: %v", err)
	}
	before := store.Snapshot()

	failDiv.Store(http.StatusInternalServerError)
	if err := store.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh failure")
	}

	after := store.Snapshot()
	if len(after.Observations) != len(before.Observations) || len(after.Divergences) != len(before.Divergences) {
		t.Fatal("failed refresh must leave both collections unchanged")
	}
	if after.Error == "" {
		t.Fatal("expected a human-readable error cell")
	}
	if after.Loading {
		t.Fatal("loading must reset after a failed refresh")
	}
}

func TestRefreshClearsPreviousError(t *testing.T) {
	var failDiv atomic.Int32
	failDiv.Store(http.StatusBadGateway)
	srv := newBackend(&failDiv)
	defer srv.Close()

	store := newTestStore(srv.URL)
	if err := store.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh failure")
	}

	failDiv.Store(0)
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("second Refresh err: %v", err)
	}
	if snapshot := store.Snapshot(); snapshot.Error != "" {
		t.Fatalf("error cell must clear on success, got %q", snapshot.Error)
	}
}

func TestExecutionTwinDataDoesNotMutateStore(t *testing.T) {
	var failDiv atomic.Int32
	srv := newBackend(&failDiv)
	defer srv.Close()

	store := newTestStore(srv.URL)
	observations, divergences, err := store.ExecutionTwinData(context.Background(), "run-7")
	if err != nil {
		t.Fatalf("ExecutionTwinData err: %v", err)
	}

	if len(observations) != 1 || observations[0].ExecutionID != "run-7" {
		t.Fatalf("unexpected scoped observations: %+v", observations)
	}
	if len(divergences) != 0 {
		t.Fatalf("unexpected scoped divergences: %+v", divergences)
	}
	if store.HasObservations() || store.HasDivergences() {
		t.Fatal("scoped fetch must not touch the global store")
	}
}
