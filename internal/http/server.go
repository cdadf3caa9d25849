// Package http is the web surface of the time tracker: login, the clock
// toggle, per-date entry management, and the monthly invoice export.
// Pages are server-rendered from embedded templates.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"kintai/internal/auth"
	"kintai/internal/cache"
	"kintai/internal/core"
	"kintai/internal/export"
	"kintai/internal/services"
	"kintai/internal/session"
	appweb "kintai/web"
)

type Server struct {
	http.Server
	templates *template.Template

	sessions *session.Manager
	creds    *auth.CredentialStore
	clock    *services.ClockService
	entries  *services.EntryService
	exporter *export.Exporter

	rateLimiter *rateLimiter

	// Day lists are the hottest read; entries change rarely outside the
	// owner's own edits, so a short TTL plus explicit invalidation is enough.
	dayCache *cache.LRUCache[[]core.WorkEntry]
	caches   *cache.Manager

	now func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run
// http.Server.
func NewServer(addr string, sessions *session.Manager, creds *auth.CredentialStore, clock *services.ClockService, entries *services.EntryService, exporter *export.Exporter) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		sessions:    sessions,
		creds:       creds,
		clock:       clock,
		entries:     entries,
		exporter:    exporter,
		rateLimiter: newRateLimiter(),
		dayCache:    cache.NewLRUCache[[]core.WorkEntry](200, 5*time.Minute),
		caches:      cache.NewManager(),
		now:         time.Now,
	}
	s.caches.Register(s.dayCache)
	s.caches.StartCleanup(10 * time.Minute)

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("/login", s.withSecurityHeaders(s.handleLogin))
	mux.HandleFunc("/register", s.withSecurityHeaders(s.handleRegister))
	mux.HandleFunc("/logout", s.withSecurityHeaders(s.withSession(s.handleLogout)))

	mux.HandleFunc("/", s.withSecurityHeaders(s.withSession(s.handleIndex)))
	mux.HandleFunc("/clock/toggle", s.withSecurityHeaders(s.withSession(s.handleClockToggle)))
	mux.HandleFunc("/clock/commit", s.withSecurityHeaders(s.withSession(s.handleClockCommit)))
	mux.HandleFunc("/clock/discard", s.withSecurityHeaders(s.withSession(s.handleClockDiscard)))

	mux.HandleFunc("/entries", s.withSecurityHeaders(s.withSession(s.handleEntries)))
	mux.HandleFunc("/entries/update", s.withSecurityHeaders(s.withSession(s.handleEntryUpdate)))
	mux.HandleFunc("/entries/delete", s.withSecurityHeaders(s.withSession(s.handleEntryDelete)))

	mux.HandleFunc("/export", s.withSecurityHeaders(s.withSession(s.handleExport)))

	return s
}

// Shutdown stops the cleanup goroutines once and then shuts down the
// listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.caches != nil {
			s.caches.Stop()
		}
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting of mutations,
// and request logging.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP,
			"user_agent", r.Header.Get("User-Agent"))

		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", clientIP)
	}
}

// withSession resolves the login session from the cookie and redirects
// anonymous requests to the login page.
func (s *Server) withSession(next func(http.ResponseWriter, *http.Request, *session.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.sessionFrom(r)
		if !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, r, sess)
	}
}

type ctxKey string

const ctxKeyRequestID ctxKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// getDayEntries serves a user's day list through the LRU cache.
func (s *Server) getDayEntries(ctx context.Context, username, date string) ([]core.WorkEntry, error) {
	key := dayKey(username, date)
	if items, found := s.dayCache.Get(key); found {
		slog.DebugContext(ctx, "Day list cache hit", "username", username, "date", date)
		result := make([]core.WorkEntry, len(items))
		copy(result, items)
		return result, nil
	}

	items, err := s.entries.ListByDate(ctx, username, date)
	if err != nil {
		return nil, fmt.Errorf("list entries (date=%s): %w", date, err)
	}
	s.dayCache.Set(key, items)
	return items, nil
}

func (s *Server) invalidateDay(username, date string) {
	s.dayCache.Delete(dayKey(username, date))
}

func dayKey(username, date string) string {
	return username + "|" + date
}
