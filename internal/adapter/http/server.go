package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/httplog/v2"

	"smart-browser-agent/internal/application/port/output"
)

const shutdownTimeout = 15 * time.Second

type Server struct {
	srv    *http.Server
	logger output.LoggerPort
}

// NewRequestLogger builds the httplog logger used for access logs.
func NewRequestLogger(level string, jsonOutput bool) *httplog.Logger {
	return httplog.NewLogger("smart-browser-agent", httplog.Options{
		JSON:     jsonOutput,
		LogLevel: httplog.LevelByName(level),
		Concise:  true,
	})
}

func NewServer(addr string, handler http.Handler, logger output.LoggerPort) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("HTTP server shutting down")
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
