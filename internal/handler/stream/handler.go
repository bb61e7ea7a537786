package stream

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/danvoulez/lablab/internal/service/simulation"
)

// Handler feeds workflow events to websocket clients so a UI can render the
// transcript, thinking flag, and session updates live.
type Handler struct {
	workflow *simulation.Workflow
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// New creates the stream handler.
func New(workflow *simulation.Workflow, logger *zap.Logger) *Handler {
	return &Handler{
		workflow: workflow,
		logger:   logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// HandleStream upgrades the connection and forwards workflow events until
// the client goes away.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	events, cancel := h.workflow.Subscribe()
	defer cancel()

	// Drain client frames so close frames are processed; a read error ends
	// the subscription, which in turn ends the write loop below.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for event := range events {
		if err := conn.WriteJSON(event); err != nil {
			h.logger.Debug("websocket write failed", zap.Error(err))
			return
		}
	}
}
