package twin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/danvoulez/lablab/internal/api"
	twinservice "github.com/danvoulez/lablab/internal/service/twin"
	"github.com/danvoulez/lablab/pkg/utils"
)

// Handler exposes the twin aggregation store over HTTP.
type Handler struct {
	store  *twinservice.Store
	logger *zap.Logger
}

// New creates the twin handler.
func New(store *twinservice.Store, logger *zap.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// RegisterRoutes mounts the twin routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/twin/refresh", h.handleRefresh)
	r.Get("/twin", h.handleSnapshot)
	r.Get("/twin/critical", h.handleCritical)
	r.Get("/twin/warnings", h.handleWarnings)
	r.Get("/executions/{executionID}/twin", h.handleExecution)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Refresh(r.Context()); err != nil {
		// The snapshot carries the error cell and the untouched collections.
		utils.RespondJSON(w, statusFor(err), h.store.Snapshot())
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.store.Snapshot())
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.store.Snapshot())
}

func (h *Handler) handleCritical(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.store.CriticalDivergences())
}

func (h *Handler) handleWarnings(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.store.WarningDivergences())
}

func (h *Handler) handleExecution(w http.ResponseWriter, r *http.Request) {
	executionID := chi.URLParam(r, "executionID")

	observations, divergences, err := h.store.ExecutionTwinData(r.Context(), executionID)
	if err != nil {
		h.logger.Warn("execution twin fetch failed", zap.String("execution_id", executionID), zap.Error(err))
		utils.RespondError(w, statusFor(err), "failed to load twin data for execution")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"observations": observations,
		"divergences":  divergences,
	})
}

func statusFor(err error) int {
	switch api.KindOf(err) {
	case api.KindTimeout:
		return http.StatusGatewayTimeout
	case api.KindNetwork, api.KindServer, api.KindMalformed:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
