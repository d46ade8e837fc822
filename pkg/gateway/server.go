package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/courierhq/courier/internal/logger"
	"github.com/courierhq/courier/internal/tlsutil"
	"github.com/courierhq/courier/pkg/metrics"
	"github.com/courierhq/courier/pkg/queue"
)

// Server is the public mTLS ingress server.
type Server struct {
	server       *http.Server
	config       *Config
	shutdownOnce sync.Once
}

// NewServer creates the gateway server.
//
// The server is created in a stopped state. Call Start() to begin serving
// requests.
func NewServer(cfg *Config, q queue.Queue) (*Server, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tlsCfg, err := tlsutil.NewServerTLSConfig(&cfg.TLS)
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway TLS config: %w", err)
	}

	registry, err := NewRegistryClient(cfg.RegistryURL, &cfg.RegistryTLS, cfg.RegistryTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to build registry client: %w", err)
	}

	handler := NewHandler(cfg, registry, q)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Post("/api/v1/messages", handler.Submit)
	r.Get("/health", handler.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		TLSConfig:    tlsCfg,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &Server{
		server: server,
		config: cfg,
	}, nil
}

// Start starts the gateway server and blocks until the context is
// cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("gateway listening",
			"port", s.config.Port,
			"mtls", s.config.TLS.CAFile != "",
		)

		// Certificate material comes from TLSConfig.
		if err := s.server.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("gateway shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("gateway failed: %w", err)
	}
}

// Stop initiates graceful shutdown of the gateway.
//
// Stop is safe to call multiple times and safe to call concurrently with
// Start().
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("gateway shutdown error: %w", err)
			logger.Error("gateway shutdown error", "error", err)
		} else {
			logger.Info("gateway stopped gracefully")
		}
	})
	return shutdownErr
}
