// Package web exposes the credential and spreadsheet services over HTTP.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/cors"

	"github.com/JonMunkholm/sheetgate/internal/auth"
	"github.com/JonMunkholm/sheetgate/internal/config"
	"github.com/JonMunkholm/sheetgate/internal/core"
	"github.com/JonMunkholm/sheetgate/internal/sheet"
	"github.com/JonMunkholm/sheetgate/internal/web/middleware"
)

const msgRateLimited = "Too many requests. Please try again later."

// Server is the HTTP server.
type Server struct {
	cfg         *config.Config
	auth        *auth.Service
	guard       *auth.Guard
	ingestor    *sheet.Ingestor
	hashLimiter *core.Limiter

	router      *chi.Mux
	server      *http.Server
	authLimiter *httprate.RateLimiter
}

// Deps are the services the server routes to.
type Deps struct {
	Auth        *auth.Service
	Guard       *auth.Guard
	Ingestor    *sheet.Ingestor
	HashLimiter *core.Limiter
}

// NewServer builds the router. Nothing listens until Start.
func NewServer(deps Deps, cfg *config.Config) *Server {
	s := &Server{
		cfg:         cfg,
		auth:        deps.Auth,
		guard:       deps.Guard,
		ingestor:    deps.Ingestor,
		hashLimiter: deps.HashLimiter,
		router:      chi.NewRouter(),
	}
	if cfg.Rate.Enabled {
		s.authLimiter = newRateLimiter(cfg.Rate.AuthLimit)
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.ClientMetadata)
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	}
	s.router.Use(securityHeaders)
	s.router.Use(cors.New(cors.Options{
		AllowedOrigins:   s.cfg.Security.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	if s.cfg.Rate.Enabled {
		s.router.Use(newRateLimiter(s.cfg.Rate.RequestsPerMinute).Handler)
	}
}

func (s *Server) setupRoutes() {
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "Not found.")
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed.")
	})

	s.router.Get("/healthz", s.handleHealth)

	// The same routes are served at the root and under the /api prefixes
	// the browser client uses. Both mounts count against one auth limit.
	s.router.Group(s.authRoutes)
	s.router.Route("/api/auth", s.authRoutes)

	upload := s.router.With()
	if s.cfg.Upload.RequireAuth {
		upload = s.router.With(s.requireAuth())
	}
	upload.Post("/upload", s.handleUpload)
	upload.Post("/api/upload", s.handleUpload)
}

func (s *Server) authRoutes(r chi.Router) {
	credentials := r
	if s.authLimiter != nil {
		credentials = r.With(s.authLimiter.Handler)
	}
	credentials.Post("/signup", s.handleSignup)
	credentials.Post("/login", s.handleLogin)

	r.With(s.requireAuth()).Get("/user", s.handleCurrentUser)
	r.With(s.requireAuth()).Post("/logout", s.handleLogout)
	r.With(s.requireAuth(auth.RoleAdmin)).Get("/admin-only", s.handleAdminOnly)
}

func (s *Server) requireAuth(roles ...auth.Role) func(http.Handler) http.Handler {
	return middleware.RequireAuth(s.guard, s.respondError, roles...)
}

// newRateLimiter counts requests per client address over a sliding minute.
// TrustedRealIP has already rewritten RemoteAddr for proxied callers.
func newRateLimiter(perMinute int) *httprate.RateLimiter {
	return httprate.NewRateLimiter(perMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeMessage(w, http.StatusTooManyRequests, msgRateLimited)
		}),
	)
}

// Start listens on the configured address and blocks until Shutdown.
func (s *Server) Start() error {
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
