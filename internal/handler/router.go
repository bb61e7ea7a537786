package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	apiclient "github.com/danvoulez/lablab/internal/api"
	"github.com/danvoulez/lablab/internal/handler/console"
	"github.com/danvoulez/lablab/internal/handler/stream"
	twinhandler "github.com/danvoulez/lablab/internal/handler/twin"
	"github.com/danvoulez/lablab/internal/service/simulation"
	twinservice "github.com/danvoulez/lablab/internal/service/twin"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(workflow *simulation.Workflow, twinStore *twinservice.Store, gateway *apiclient.Client, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	consoleHandler := console.New(workflow, gateway, logger)
	twinHandler := twinhandler.New(twinStore, logger)
	streamHandler := stream.New(workflow, logger)

	r.Route("/api", func(api chi.Router) {
		consoleHandler.RegisterRoutes(api)
		twinHandler.RegisterRoutes(api)
		api.Get("/stream", streamHandler.HandleStream)
	})

	return r
}
