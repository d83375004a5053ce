package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"songrelay/config"
	"songrelay/core/mcptool"
	"songrelay/core/musicapp"
	"songrelay/core/relay"
	"songrelay/logger"
)

// Version is reported to MCP clients and in trace resources.
const Version = "1.0.0"

const shutdownTimeout = 5 * time.Second

// NewRouter wires every route onto a gorilla/mux router and wraps it in the
// cross-cutting middleware. mcpHandler may be nil to leave /mcp unmounted.
func NewRouter(h *APIHandler, mcpHandler http.Handler) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/send-tracks", h.SendTracksHandler).Methods(http.MethodPost)
	router.HandleFunc("/health", h.HealthHandler).Methods(http.MethodGet)
	router.HandleFunc("/.well-known/mcp.json", h.ManifestHandler).Methods(http.MethodGet)
	if mcpHandler != nil {
		router.Handle("/mcp", mcpHandler).Methods(http.MethodGet, http.MethodPost, http.MethodDelete)
	}

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody("Not Found"))
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("Method Not Allowed"))
	})

	// CORS sits outside the router so preflight requests never hit method matching.
	return recoverMiddleware(requestLogMiddleware(corsMiddleware(router)))
}

// Build assembles the full handler tree from configuration.
func Build(cfg *config.Config) http.Handler {
	client := musicapp.NewClient(cfg.MusicAppURL, cfg.MusicAppAPIKey, cfg.MusicAppTimeout)
	svc := relay.NewService(client)
	mcpServer := mcptool.NewServer(svc, Version)
	return NewRouter(NewAPIHandler(cfg, svc), mcptool.Handler(mcpServer))
}

// Start runs the relay until ctx is cancelled or SIGINT/SIGTERM arrives.
func Start(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 设置服务器超时; writes must outlive the outbound delivery timeout.
	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           Build(cfg),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.MusicAppTimeout + 15*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("relay server starting",
			logger.String("addr", server.Addr),
			logger.String("music_app_url", cfg.MusicAppURL),
			logger.Bool("music_app_auth", cfg.MusicAppAPIKey != ""),
			logger.Duration("music_app_timeout", cfg.MusicAppTimeout))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down relay server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("relay server stopped")
	return <-errCh
}
