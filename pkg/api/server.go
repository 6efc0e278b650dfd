package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/cvlviz/cvld/pkg/config"
	"github.com/cvlviz/cvld/pkg/coordinator"
	"github.com/cvlviz/cvld/pkg/log"
	"github.com/cvlviz/cvld/pkg/metrics"
	"github.com/cvlviz/cvld/pkg/object"
	"github.com/cvlviz/cvld/pkg/timeseries"
)

// Server is the HTTP edge. It translates requests into coordinator operations
// and serves the non-mutating read paths directly against the store.
type Server struct {
	cfg        *config.Config
	coord      *coordinator.Coordinator
	store      *object.Store
	ts         *timeseries.Set
	httpServer *http.Server
	logger     zerolog.Logger
}

// NewServer wires the edge to its collaborators.
func NewServer(cfg *config.Config, coord *coordinator.Coordinator, store *object.Store, ts *timeseries.Set) *Server {
	return &Server{
		cfg:    cfg,
		coord:  coord,
		store:  store,
		ts:     ts,
		logger: log.WithComponent("api"),
	}
}

// Handler builds the full route table wrapped in the logging and CORS
// middleware. Exposed separately so tests can drive it through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/object", s.handleObject)
	mux.HandleFunc("/list", s.handleList)
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/ts", s.handleTimeseries)
	mux.HandleFunc("/info", s.handleInfo)
	mux.HandleFunc("/trust", s.handleTrust)
	mux.HandleFunc("/publish", s.handlePublish)
	mux.HandleFunc("/delete", s.handleDelete)
	mux.HandleFunc("/control", s.handleControl)
	mux.HandleFunc("/query", s.handleQuery)
	mux.HandleFunc("/state", s.handleState)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", metrics.HealthHandler)
	// Catch-all so unknown paths get the fixed 404 body instead of the
	// ServeMux default.
	mux.HandleFunc("/", s.handleNotFound)
	return s.withMiddleware(mux)
}

// Start serves until ctx is cancelled, then shuts down gracefully. TLS is
// used when enabled in the configuration; Validate has already checked that
// the certificate and key exist.
func (s *Server) Start(ctx context.Context) error {
	addr := s.cfg.ListenAddr()
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
		// No write timeout: /events streams indefinitely and /query blocks
		// up to the broadcast deadline.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %v", addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.cfg.SSL {
			s.logger.Info().Str("addr", addr).Msg("SSL enabled")
			err = s.httpServer.ServeTLS(listener, s.cfg.CertFile, s.cfg.KeyFile)
		} else {
			err = s.httpServer.Serve(listener)
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	s.logger.Info().Str("addr", addr).Bool("read_only", s.cfg.ReadOnly).Msg("HTTP server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
