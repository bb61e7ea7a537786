package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/danvoulez/lablab/internal/api"
	"github.com/danvoulez/lablab/internal/config"
	"github.com/danvoulez/lablab/internal/handler"
	"github.com/danvoulez/lablab/internal/service/simulation"
	twinservice "github.com/danvoulez/lablab/internal/service/twin"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg.Production())
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if cfg.Production() && cfg.Backend.UsedDefaultURL {
		logger.Warn("DISCOVERY_API_BASE_URL not set in production, using default",
			zap.String("base_url", cfg.Backend.BaseURL))
	}

	gateway := api.New(cfg.Backend.BaseURL, cfg.Backend.Timeout, logger.Named("gateway"))
	workflow := simulation.NewWorkflow(gateway, logger.Named("simulation"))
	twinStore := twinservice.NewStore(gateway, logger.Named("twin"))

	router := handler.NewRouter(workflow, twinStore, gateway, logger.Named("http"))

	startServer(ctx, cfg.Server, router, logger)
}

func newLogger(production bool) (*zap.Logger, error) {
	if production {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger *zap.Logger) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("discovery console listening", zap.String("addr", serverCfg.Addr))
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
