package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/courierhq/courier/internal/logger"
	jwtauth "github.com/courierhq/courier/internal/registry/api/auth"
	"github.com/courierhq/courier/internal/registry/api/handlers"
	apiMiddleware "github.com/courierhq/courier/pkg/api/middleware"
	"github.com/courierhq/courier/pkg/crypto"
	"github.com/courierhq/courier/pkg/metrics"
	"github.com/courierhq/courier/pkg/queue"
	"github.com/courierhq/courier/pkg/store"
)

// NewRouter creates and configures the chi router with all middleware and routes.
//
// The router is configured with:
//   - Request ID middleware for request tracking
//   - Real IP extraction for proper client identification
//   - Custom request logging using the internal logger
//   - Panic recovery to prevent server crashes
//   - Request timeout to prevent hung requests
//
// Routes:
//   - GET /health - Component health report (503 when a dependency is down)
//   - GET /health/ready - Readiness probe, same scan
//   - GET /metrics - Prometheus exposition (404 when metrics disabled)
//   - POST /portal/auth/login - Operator authentication
//   - POST /portal/auth/refresh - Token refresh
//   - POST /portal/auth/forgot-password - Password reset ticket
//   - POST /portal/auth/reset-password - Ticket redemption
//   - GET /portal/profile - Current operator info
//   - GET /portal/messages - Role-scoped message listing
//   - GET /portal/messages/{id}/body - Body decryption (admin only)
//   - /admin/users/* - Operator management (admin + user manager)
//   - /admin/certificates/* - Client certificate lifecycle (admin only)
//   - GET /admin/stats, GET /admin/audit - System views (admin only)
//   - DELETE /admin/messages - Data retention purge (admin only)
//   - /internal/* - Service-to-service surface (gateway and workers)
func NewRouter(st store.Store, q queue.Queue, cryptoSvc *crypto.Service, jwtService *jwtauth.JWTService) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	healthHandler := handlers.NewHealthHandler(st, q, cryptoSvc)

	// Health routes - unauthenticated
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Health)
		r.Get("/ready", healthHandler.Readiness)
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Root redirect to health for convenience
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	authHandler := handlers.NewAuthHandler(st, jwtService)
	messageHandler := handlers.NewMessageHandler(st, cryptoSvc)
	userHandler := handlers.NewUserHandler(st)
	certHandler := handlers.NewCertificateHandler(st, metrics.NewCertificateMetrics())
	adminHandler := handlers.NewAdminHandler(st)
	internalHandler := handlers.NewInternalHandler(st, cryptoSvc, metrics.NewMessageMetrics())

	// Operator portal
	r.Route("/portal", func(r chi.Router) {
		// Public endpoints
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
			r.Post("/forgot-password", authHandler.ForgotPassword)
			r.Post("/reset-password", authHandler.ResetPassword)
		})

		// Authenticated endpoints
		r.Group(func(r chi.Router) {
			r.Use(apiMiddleware.JWTAuth(jwtService))

			r.Get("/profile", authHandler.Profile)
			r.Get("/messages", messageHandler.List)
			r.Get("/messages/{id}/body", messageHandler.GetBody)
		})
	})

	// Admin API
	r.Route("/admin", func(r chi.Router) {
		r.Use(apiMiddleware.JWTAuth(jwtService))

		// User management: admins and user managers
		r.Route("/users", func(r chi.Router) {
			r.Use(apiMiddleware.RequireUserManager())

			r.Post("/", userHandler.Create)
			r.Get("/", userHandler.List)
			r.Put("/{id}/role", userHandler.UpdateRole)
			r.Put("/{id}/status", userHandler.UpdateStatus)
			r.Post("/{id}/password", userHandler.SetPassword)
		})

		// Everything else: admin only
		r.Group(func(r chi.Router) {
			r.Use(apiMiddleware.RequireAdmin())

			r.Route("/certificates", func(r chi.Router) {
				r.Post("/", certHandler.Register)
				r.Get("/", certHandler.List)
				r.Get("/expiring", certHandler.Expiring)
				r.Post("/{clientID}/revoke", certHandler.Revoke)
			})

			r.Get("/stats", adminHandler.Stats)
			r.Get("/audit", adminHandler.Audit)
			r.Delete("/messages", adminHandler.PurgeMessages)
		})
	})

	// Service-to-service surface. Protected by the listener's mutual TLS;
	// the server warns at startup when it comes up without certificates.
	r.Route("/internal", func(r chi.Router) {
		r.Post("/messages", internalHandler.RegisterMessage)
		r.Get("/messages/{id}", internalHandler.GetStatus)
		r.Post("/messages/{id}/deliver", internalHandler.Deliver)
		r.Patch("/messages/{id}/status", internalHandler.UpdateStatus)
		r.Post("/clients/validate", internalHandler.ValidateClient)
	})

	return r
}

// requestLogger logs the start and completion of each HTTP request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		// Wrap response writer to capture status code
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)

		logArgs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", duration.String(),
		}

		// Log healthcheck requests at DEBUG to avoid polluting logs in k8s
		if isHealthPath(r.URL.Path) {
			logger.Debug("API request completed", logArgs...)
		} else {
			logger.Info("API request completed", logArgs...)
		}
	})
}

// isHealthPath reports whether the path is a health or metrics probe.
func isHealthPath(path string) bool {
	return path == "/metrics" || path == "/health" || strings.HasPrefix(path, "/health/")
}
