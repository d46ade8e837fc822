package api

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/courierhq/courier/internal/logger"
	jwtauth "github.com/courierhq/courier/internal/registry/api/auth"
	"github.com/courierhq/courier/internal/tlsutil"
	"github.com/courierhq/courier/pkg/crypto"
	"github.com/courierhq/courier/pkg/queue"
	"github.com/courierhq/courier/pkg/store"
)

// Server provides the registry HTTP server.
//
// It hosts the operator portal, the admin API and the internal
// service-to-service surface on one listener. The server supports graceful
// shutdown with a configurable timeout.
type Server struct {
	server       *http.Server
	jwtService   *jwtauth.JWTService
	config       APIConfig
	shutdownOnce sync.Once
}

// NewServer creates a new registry HTTP server.
//
// The server is created in a stopped state. Call Start() to begin serving
// requests.
//
// The JWT service is created internally from the config. The JWT secret must
// be configured via config.JWT.Secret or the COURIER_JWT_SECRET environment
// variable.
func NewServer(config APIConfig, st store.Store, q queue.Queue, cryptoSvc *crypto.Service) (*Server, error) {
	config.applyDefaults()

	jwtSecret := config.GetJWTSecret()
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("JWT secret must be at least 32 characters; set via %s env var or config", EnvJWTSecret)
	}

	jwtService, err := jwtauth.NewJWTService(jwtauth.JWTConfig{
		Secret:               jwtSecret,
		Issuer:               "courier",
		AccessTokenDuration:  config.JWT.AccessTokenDuration,
		RefreshTokenDuration: config.JWT.RefreshTokenDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}

	router := NewRouter(st, q, cryptoSvc, jwtService)

	// The listener carries the /internal confirmation surface, so outside
	// development it runs mutual TLS against the internal CA.
	var tlsConfig *tls.Config
	if config.TLS.CertFile != "" || config.TLS.KeyFile != "" {
		tlsConfig, err = tlsutil.NewServerTLSConfig(&config.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to build registry TLS config: %w", err)
		}
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      router,
		TLSConfig:    tlsConfig,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return &Server{
		server:     server,
		jwtService: jwtService,
		config:     config,
	}, nil
}

// Start starts the registry HTTP server and blocks until the context is
// cancelled or an error occurs.
//
// When the context is cancelled, Start initiates graceful shutdown and
// returns.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("registry server listening",
			"port", s.config.Port,
			"tls", s.server.TLSConfig != nil,
			"mtls", s.config.TLS.CAFile != "",
		)

		var err error
		if s.server.TLSConfig != nil {
			err = s.server.ListenAndServeTLS("", "")
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
				// Context was cancelled, error is not needed
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("registry server shutdown signal received")
		// Create new context with timeout for graceful shutdown
		// Don't use the cancelled ctx as it would cause immediate shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("registry server failed: %w", err)
	}
}

// Stop initiates graceful shutdown of the registry server.
//
// Stop is safe to call multiple times and safe to call concurrently with
// Start().
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("registry server shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("registry server shutdown error: %w", err)
			logger.Error("registry server shutdown error", "error", err)
		} else {
			logger.Info("registry server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server is listening on.
func (s *Server) Port() int {
	return s.config.Port
}
