package http

import (
	"errors"
	"log/slog"
	"net/http"

	"kintai/internal/core"
	"kintai/internal/session"
)

type loginPage struct {
	Error string
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := s.sessionFrom(r); ok {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		s.render(w, r, "login.html", loginPage{})
	case http.MethodPost:
		s.handleLoginSubmit(w, r)
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

func (s *Server) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		s.render(w, r, "login.html", loginPage{Error: "Invalid request"})
		return
	}
	username := sanitizeInput(r.Form.Get("username"))
	password := r.Form.Get("password")

	if !s.creds.Verify(r.Context(), username, password) {
		slog.WarnContext(r.Context(), "Login failed", "username", username)
		w.WriteHeader(http.StatusUnauthorized)
		s.render(w, r, "login.html", loginPage{Error: "Wrong username or password"})
		return
	}

	sess := s.sessions.Create(username)
	setSessionCookie(w, sess.ID)
	slog.InfoContext(r.Context(), "Login succeeded", "username", username)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		s.render(w, r, "login.html", loginPage{Error: "Invalid request"})
		return
	}
	username := sanitizeInput(r.Form.Get("username"))
	password := r.Form.Get("password")

	err := s.creds.Register(r.Context(), username, password)
	switch {
	case errors.Is(err, core.ErrUserExists):
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.render(w, r, "login.html", loginPage{Error: "Username already taken"})
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "Registration failed", "username", username, "error", err)
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.render(w, r, "login.html", loginPage{Error: "Username and password are required"})
		return
	}

	// First login right after signup.
	sess := s.sessions.Create(username)
	setSessionCookie(w, sess.ID)
	slog.InfoContext(r.Context(), "User registered", "username", username)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	s.sessions.Destroy(sess.ID)
	clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
