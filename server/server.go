// Package server exposes the summarizer over HTTP, with an optional gRPC
// health endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/aschepis/backscratcher/summarizer/config"
	"github.com/aschepis/backscratcher/summarizer/relay"
	"github.com/aschepis/backscratcher/summarizer/summarize"
	"github.com/rs/zerolog"
)

// Streamer produces token streams for the HTTP handlers.
type Streamer interface {
	StreamSummary(ctx context.Context, params summarize.Params) (*relay.Stream, error)
	StreamResponse(ctx context.Context, content string) (*relay.Stream, error)
}

// Server is the HTTP server of summarizerd.
type Server struct {
	streamer   Streamer
	config     config.HTTPServerConfig
	httpServer *http.Server
	health     *HealthServer
	logger     zerolog.Logger
}

// New creates a Server. The gRPC health listener is enabled when cfg.GRPC is
// set.
func New(cfg config.HTTPServerConfig, streamer Streamer, logger zerolog.Logger) *Server {
	s := &Server{
		streamer: streamer,
		config:   cfg,
		logger:   logger.With().Str("component", "http-server").Logger(),
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg.GRPC != "" {
		s.health = NewHealthServer(logger)
	}
	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /stream_summary/{$}", s.handleStreamSummary)
	mux.HandleFunc("POST /stream_chat/{$}", s.handleStreamChat)
	mux.HandleFunc("POST /stream_summary", redirectSlash)
	mux.HandleFunc("POST /stream_chat", redirectSlash)
	return Chain(mux, s.config.CORS, s.logger)
}

// Start listens on the configured addresses and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr(), err)
	}

	var grpcLn net.Listener
	if s.health != nil {
		grpcLn, err = net.Listen("tcp", s.config.GRPC)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("failed to listen on %s: %w", s.config.GRPC, err)
		}
	}
	return s.Serve(ctx, ln, grpcLn)
}

// Serve serves HTTP on ln (and gRPC health on grpcLn, if non-nil) until ctx
// is done or a listener fails, then shuts both down gracefully.
func (s *Server) Serve(ctx context.Context, ln, grpcLn net.Listener) error {
	errCh := make(chan error, 2)

	go func() {
		s.logger.Info().Str("address", ln.Addr().String()).Msg("Starting HTTP server")
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if grpcLn != nil && s.health != nil {
		go func() {
			if err := s.health.Serve(grpcLn); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		s.logger.Error().Err(serveErr).Msg("Server failed")
	}

	return errors.Join(serveErr, s.shutdown())
}

func (s *Server) shutdown() error {
	timeout := time.Duration(s.config.ShutdownTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if s.health != nil {
		s.health.GracefulStop()
	}

	s.logger.Info().Msg("Shutting down HTTP server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// redirectSlash sends a POST to the canonical trailing-slash path. 307 keeps
// the method and body.
func redirectSlash(w http.ResponseWriter, r *http.Request) {
	target := *r.URL
	target.Path += "/"
	http.Redirect(w, r, target.String(), http.StatusTemporaryRedirect)
}
