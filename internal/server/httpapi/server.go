// Package httpapi exposes the relay over HTTP: upload, passcode
// verification, file download and health. Each error kind maps to its own
// status code so clients can tell "wrong passcode" from "expired" from
// "not found".
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ajeevsan/fileUpload-backend/internal/logging"
	"github.com/ajeevsan/fileUpload-backend/internal/server/config"
	"github.com/ajeevsan/fileUpload-backend/internal/server/services"
)

// Server is the public HTTP server of the relay.
type Server struct {
	httpServer *http.Server
	logger     logging.Logger
}

// NewServer wires the routes and middleware onto a chi router.
func NewServer(cfg *config.Config, logger logging.Logger, svc *services.UploadService) *Server {
	log := logger.With("module", "http_server")

	h := &handler{
		service:       svc,
		logger:        log,
		maxUploadSize: cfg.MaxUploadSize,
	}

	router := chi.NewRouter()
	router.Use(requestLogger(log))

	router.Post("/upload", h.handleUpload)
	router.Post("/download/{id}", h.handleVerify)
	router.Get("/file/{id}", h.handleFetch)
	router.Get("/health", h.handleHealth)

	srv := &http.Server{
		Addr:         cfg.EndpointAddrHTTP,
		Handler:      router,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	return &Server{httpServer: srv, logger: log}
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP shutdown error", "error", err.Error())
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
