// Package web provides the HTTP server: the file type admin pages, the
// upload wizard, the JSON API and the operational endpoints.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/JonMunkholm/fileentity/internal/config"
	"github.com/JonMunkholm/fileentity/internal/core"
	"github.com/JonMunkholm/fileentity/internal/metrics"
	"github.com/JonMunkholm/fileentity/internal/storage"
	mw "github.com/JonMunkholm/fileentity/internal/web/middleware"
	"github.com/JonMunkholm/fileentity/internal/wizard"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Deps are the services the handlers call.
type Deps struct {
	Admin    *core.AdminService
	Wizard   *wizard.Wizard
	Resolver *core.Resolver
	Registry core.Registry
	Files    core.FileRepository
	Limiter  *wizard.UploadLimiter
	Storage  *storage.Set
	Audit    core.AuditReader
	// Ping reports backing store health. Optional.
	Ping func(context.Context) error
}

// Server is the HTTP server.
type Server struct {
	cfg     *config.Config
	deps    Deps
	router  *chi.Mux
	server  *http.Server
	limiter *rateLimiter
}

// NewServer creates a Server. Call Shutdown to stop its background work.
func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		router: chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		s.limiter = newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute)
		s.router.Use(s.limiter.middleware)
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.cfg.Metrics.Enabled {
		s.router.Handle(s.cfg.Metrics.Path, metrics.Handler())
	}

	s.router.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(&s.cfg.Security))

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/file/add", http.StatusFound)
		})

		r.Route("/admin/structure/file-types", func(r chi.Router) {
			r.Use(mw.RequirePermission(core.PermAdministerFileTypes))

			r.Get("/", s.handleFileTypeList)
			r.Get("/add", s.handleFileTypeAddForm)
			r.Post("/add", s.handleFileTypeAdd)

			r.Route("/manage/{id}", func(r chi.Router) {
				r.Get("/", s.handleFileTypeEditForm)
				r.Get("/edit", s.handleFileTypeEditForm)
				r.Post("/edit", s.handleFileTypeEdit)
				r.Get("/disable", s.handleStatusConfirm(false))
				r.Post("/disable", s.handleStatusChange(false))
				r.Get("/enable", s.handleStatusConfirm(true))
				r.Post("/enable", s.handleStatusChange(true))
				r.Get("/delete", s.handleDeleteConfirm)
				r.Post("/delete", s.handleDelete)
				r.Post("/fields", s.handleFieldAttach)
				r.Post("/fields/{field}/delete", s.handleFieldDetach)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.RequirePermission(core.PermCreateFiles))

			r.Get("/file/add", s.handleUploadForm)
			r.Post("/file/add", s.handleUploadStart)
			r.Get("/file/add/{session}", s.handleWizardStep)
			r.Post("/file/add/{session}", s.handleWizardSubmit)
			r.Get("/file/{id}", s.handleFileView)
			r.Get("/file/{id}/download", s.handleFileDownload)
		})

		r.Route("/api", func(r chi.Router) {
			r.Get("/file-types", s.handleAPIListFileTypes)
			r.Get("/file-types/{id}", s.handleAPIGetFileType)
			r.Get("/resolve", s.handleAPIResolve)
			r.Get("/audit-log", s.handleAuditLog)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and its rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

const defaultCSP = "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; font-src 'self'; form-action 'self'"

func securityHeaders(csp bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if csp {
				h.Set("Content-Security-Policy", defaultCSP)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimiter is a fixed-window limiter per client IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int
	window   time.Duration
	done     chan struct{}
	once     sync.Once
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		done:     make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// cleanup drops visitors idle for two windows.
func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.mu.Lock()
			for ip, v := range rl.visitors {
				if time.Since(v.lastReset) > rl.window*2 {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.once.Do(func() { close(rl.done) })
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	if !exists || time.Since(v.lastReset) > rl.window {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: time.Now()}
		return true
	}
	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(core.GetIPAddressFromContext(r.Context())) {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(rl.window.Seconds())))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeError writes a bare JSON error for failures outside any handler.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeJSON encodes v as JSON. Encoding errors are only logged because the
// header is already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
