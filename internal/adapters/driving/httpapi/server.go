package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/custodia-labs/stash/internal/core/ports/driving"
	"github.com/custodia-labs/stash/internal/logger"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

// Ports aggregates the driving ports served over HTTP.
type Ports struct {
	Tasks      driving.TaskService
	Search     driving.SearchService
	Documents  driving.DocumentService
	Embeddings driving.EmbeddingGenerator
}

// Validate ensures all ports are set.
func (p *Ports) Validate() error {
	switch {
	case p.Tasks == nil:
		return fmt.Errorf("%w: tasks", ErrMissingService)
	case p.Search == nil:
		return fmt.Errorf("%w: search", ErrMissingService)
	case p.Documents == nil:
		return fmt.Errorf("%w: documents", ErrMissingService)
	case p.Embeddings == nil:
		return fmt.Errorf("%w: embeddings", ErrMissingService)
	}
	return nil
}

// Server is the REST API server.
type Server struct {
	ports   *Ports
	handler http.Handler
}

// NewServer builds the router for ports.
func NewServer(ports *Ports) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, err
	}
	s := &Server{ports: ports}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /tasks", s.handleCreateTask)
	mux.HandleFunc("GET /tasks", s.handleListTasks)
	mux.HandleFunc("POST /tasks/run", s.handleRunTasks)
	mux.HandleFunc("POST /tasks/{id}/cancel", s.handleCancelTask)
	mux.HandleFunc("POST /search", s.handleSearch)
	mux.HandleFunc("POST /search/semantic", s.handleSemanticSearch)
	mux.HandleFunc("POST /embeddings", s.handleEmbeddings)
	mux.HandleFunc("PUT /links", s.handleSaveLink)
	mux.HandleFunc("PUT /notes", s.handleSaveNote)

	log := logger.L()
	s.handler = recoverMiddleware(log, loggingMiddleware(log, mux))
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute, // tasks/run processes tasks inline
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.L().Info("starting http server", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.L().Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return <-errCh
}
