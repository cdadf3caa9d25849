package http

import (
	"errors"
	"log/slog"
	"net/http"

	"kintai/internal/core"
	"kintai/internal/session"
)

type entriesPage struct {
	Username   string
	Date       string
	Entries    []entryView
	TotalHours string
	Error      string
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	date, err := requestDate(r)
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}
	s.renderEntries(w, r, sess, date, "")
}

func (s *Server) renderEntries(w http.ResponseWriter, r *http.Request, sess *session.Session, date, errMsg string) {
	page := entriesPage{Username: sess.Username, Date: date, Error: errMsg}

	entries, err := s.getDayEntries(r.Context(), sess.Username, date)
	if err != nil {
		slog.ErrorContext(r.Context(), "Day list error", "username", sess.Username, "date", date, "error", err)
		http.Error(w, "entries unavailable", http.StatusInternalServerError)
		return
	}
	page.Entries, page.TotalHours = viewEntries(entries)
	s.render(w, r, "entries.html", page)
}

func (s *Server) handleEntryUpdate(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	id, err := formID(r)
	if err != nil {
		http.Error(w, "invalid entry id", http.StatusBadRequest)
		return
	}
	date, err := requestDate(r)
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}

	start, err := core.ParseClock(r.Form.Get("start"))
	if err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.renderEntries(w, r, sess, date, "Invalid start time")
		return
	}
	end, err := core.ParseClock(r.Form.Get("end"))
	if err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.renderEntries(w, r, sess, date, "Invalid end time")
		return
	}
	title := sanitizeInput(r.Form.Get("title"))
	memo := sanitizeInput(r.Form.Get("memo"))

	err = s.entries.Update(r.Context(), id, start, end, title, memo)
	switch {
	case errors.Is(err, core.ErrEntryNotFound):
		http.Error(w, "entry not found", http.StatusNotFound)
		return
	case errors.Is(err, core.ErrEndBeforeStart):
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.renderEntries(w, r, sess, date, "End must come after start")
		return
	case errors.Is(err, core.ErrEmptyTitle):
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.renderEntries(w, r, sess, date, "A task title is required")
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "Entry update error", "entry_id", id, "error", err)
		http.Error(w, "could not update entry", http.StatusInternalServerError)
		return
	}

	s.invalidateDay(sess.Username, date)
	slog.InfoContext(r.Context(), "Entry updated", "username", sess.Username, "entry_id", id)
	http.Redirect(w, r, "/entries?date="+date, http.StatusSeeOther)
}

func (s *Server) handleEntryDelete(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	id, err := formID(r)
	if err != nil {
		http.Error(w, "invalid entry id", http.StatusBadRequest)
		return
	}
	date, err := requestDate(r)
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}

	err = s.entries.Delete(r.Context(), id)
	switch {
	case errors.Is(err, core.ErrEntryNotFound):
		http.Error(w, "entry not found", http.StatusNotFound)
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "Entry delete error", "entry_id", id, "error", err)
		http.Error(w, "could not delete entry", http.StatusInternalServerError)
		return
	}

	s.invalidateDay(sess.Username, date)
	slog.InfoContext(r.Context(), "Entry deleted", "username", sess.Username, "entry_id", id)
	http.Redirect(w, r, "/entries?date="+date, http.StatusSeeOther)
}
