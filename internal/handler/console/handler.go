package console

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/danvoulez/lablab/internal/api"
	"github.com/danvoulez/lablab/internal/service/simulation"
	"github.com/danvoulez/lablab/pkg/utils"
)

// Handler exposes the conversational workflow over HTTP.
type Handler struct {
	workflow *simulation.Workflow
	gateway  *api.Client
	logger   *zap.Logger
}

// New creates the console handler.
func New(workflow *simulation.Workflow, gateway *api.Client, logger *zap.Logger) *Handler {
	return &Handler{workflow: workflow, gateway: gateway, logger: logger}
}

// RegisterRoutes mounts the console routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/console/submit", h.handleSubmit)
	r.Post("/console/chat", h.handleChat)
	r.Get("/console/transcript", h.handleTranscript)
	r.Get("/console/session", h.handleSession)
	r.Get("/console/session/manifesto", h.handleManifesto)
	r.Get("/console/thinking", h.handleThinking)
	r.Get("/health", h.handleHealth)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	text, ok := decodeTextPayload(w, r)
	if !ok {
		return
	}

	if err := h.workflow.Submit(r.Context(), text); err != nil {
		respondWorkflowError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusAccepted, map[string]any{
		"transcript": h.workflow.Transcript(),
		"session":    h.workflow.Session(),
	})
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	text, ok := decodeTextPayload(w, r)
	if !ok {
		return
	}

	if err := h.workflow.SendChatMessage(r.Context(), text); err != nil {
		respondWorkflowError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusAccepted, map[string]any{
		"transcript": h.workflow.Transcript(),
	})
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.workflow.Transcript())
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	sess := h.workflow.Session()
	if sess == nil {
		utils.RespondError(w, http.StatusNotFound, "no simulation has completed yet")
		return
	}
	utils.RespondJSON(w, http.StatusOK, sess)
}

func (h *Handler) handleManifesto(w http.ResponseWriter, r *http.Request) {
	sess := h.workflow.Session()
	if sess == nil || sess.Manifesto == nil {
		utils.RespondError(w, http.StatusNotFound, "no manifesto available")
		return
	}
	utils.RespondJSON(w, http.StatusOK, sess.Manifesto)
}

func (h *Handler) handleThinking(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]bool{"thinking": h.workflow.Thinking()})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, err := h.gateway.Health(r.Context())
	if err != nil {
		h.logger.Warn("backend health check failed", zap.Error(err))
		utils.RespondError(w, statusFor(err), "simulation backend is not healthy")
		return
	}
	utils.RespondJSON(w, http.StatusOK, status)
}

func decodeTextPayload(w http.ResponseWriter, r *http.Request) (string, bool) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return "", false
	}
	return payload.Text, true
}

func respondWorkflowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, simulation.ErrBusy):
		utils.RespondError(w, http.StatusConflict, "a request is already in flight")
	case errors.Is(err, simulation.ErrEmptyInput), errors.Is(err, simulation.ErrInputTooLong):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, "request failed")
	}
}

// statusFor maps a classified gateway error to the console's answer code.
func statusFor(err error) int {
	switch api.KindOf(err) {
	case api.KindTimeout:
		return http.StatusGatewayTimeout
	case api.KindNetwork, api.KindServer, api.KindMalformed:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
