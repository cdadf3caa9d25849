package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kintai/internal/core"
	"kintai/internal/session"
)

const sessionCookieName = "kintai_session"

func (s *Server) sessionFrom(r *http.Request) (*session.Session, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil {
		return nil, false
	}
	return s.sessions.Get(c.Value)
}

func setSessionCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// sanitizeInput trims whitespace and strips control characters except tab,
// newline and carriage return.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// requestDate reads the "date" parameter, defaulting to today.
func requestDate(r *http.Request) (string, error) {
	v := strings.TrimSpace(r.FormValue("date"))
	if v == "" {
		return time.Now().Format(core.DateLayout), nil
	}
	return core.ParseDate(v)
}

// requestMonth reads the "month" parameter, defaulting to the current month.
func requestMonth(r *http.Request) (string, error) {
	v := strings.TrimSpace(r.FormValue("month"))
	if v == "" {
		return time.Now().Format(core.MonthLayout), nil
	}
	return core.ParseMonth(v)
}

func formID(r *http.Request) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(r.FormValue("id")), 10, 64)
}

// render executes a page template, answering 500 when templates failed to
// load at startup.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution failed", "error", err, "template", name)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	w.WriteHeader(http.StatusMethodNotAllowed)
}
