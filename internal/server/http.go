// Package server exposes receiver state over HTTP: a JSON status API, a
// websocket detection feed and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/jeongseonghan/nr-sync/internal/logging"
)

const shutdownTimeout = 5 * time.Second

// Server is the HTTP server for the receiver.
type Server struct {
	mux     *http.ServeMux
	handler *Handlers
	metrics http.Handler
	addr    string
	log     logging.Logger
}

// NewServer creates a new HTTP server. metrics may be nil.
func NewServer(addr string, handler *Handlers, metrics http.Handler, log logging.Logger) *Server {
	if log == nil {
		log = logging.Noop()
	}
	s := &Server{
		mux:     http.NewServeMux(),
		handler: handler,
		metrics: metrics,
		addr:    addr,
		log:     log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// API routes
	s.mux.HandleFunc("/api/status", s.handler.HandleStatus)
	s.mux.HandleFunc("/api/detections", s.handler.HandleDetections)
	s.mux.HandleFunc("/api/messages", s.handler.HandleMessages)

	// WebSocket
	s.mux.HandleFunc("/ws", s.handler.HandleWebSocket)

	if s.metrics != nil {
		s.mux.Handle("/metrics", s.metrics)
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.mux }

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", logging.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.handler.Hub().Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
