package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/danvoulez/lablab/internal/api"
	"github.com/danvoulez/lablab/internal/service/simulation"
)

func TestStreamDeliversWorkflowEvents(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"session_id": "s1",
			"pdb": "ATOM",
			"plddt": [90],
			"confidence": {"overall": 87.3},
			"structure_hash": "h1",
			"audit_trail": [],
			"started_at": "t"
		}`))
	}))
	defer backend.Close()

	workflow := simulation.NewWorkflow(api.New(backend.URL, time.Second, zap.NewNop()), zap.NewNop())
	handler := New(workflow, zap.NewNop())

	srv := httptest.NewServer(http.HandlerFunc(handler.HandleStream))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial err: %v", err)
	}
	defer conn.Close()

	// Wait until the handler has registered its subscription before the
	// turn runs, otherwise the events are published to nobody.
	waitFor(t, func() bool { return workflow.Subscribers() > 0 })

	if err := workflow.Submit(context.Background(), "fold MKV"); err != nil {
		t.Fatalf("Submit err: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))

	var types []string
	for len(types) < 5 {
		var event simulation.Event
		if err := conn.ReadJSON(&event); err != nil {
			t.Fatalf("read err after %v: %v", types, err)
		}
		types = append(types, string(event.Type))
	}

	want := []string{"message", "thinking", "session", "message", "thinking"}
	for i, eventType := range want {
		if types[i] != eventType {
			t.Fatalf("unexpected event order: got %v want %v", types, want)
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
