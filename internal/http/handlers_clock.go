package http

import (
	"errors"
	"log/slog"
	"net/http"

	"kintai/internal/core"
	"kintai/internal/session"
)

type entryView struct {
	ID    int64
	Date  string
	Start string
	End   string
	Title string
	Memo  string
	Hours string
}

type indexPage struct {
	Username     string
	Date         string
	State        string
	Running      bool
	Closing      bool
	PendingStart string
	CandStart    string
	CandEnd      string
	Entries      []entryView
	TotalHours   string
	Error        string
}

func viewEntries(entries []core.WorkEntry) ([]entryView, string) {
	views := make([]entryView, 0, len(entries))
	var total int64
	for _, e := range entries {
		views = append(views, entryView{
			ID:    e.ID,
			Date:  e.Date,
			Start: e.Start.String(),
			End:   e.End.String(),
			Title: e.Title,
			Memo:  e.Memo,
			Hours: core.FormatHours(e.Minutes()),
		})
		total += e.Minutes()
	}
	return views, core.FormatHours(total)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	s.renderIndex(w, r, sess, "")
}

func (s *Server) renderIndex(w http.ResponseWriter, r *http.Request, sess *session.Session, errMsg string) {
	ctx := r.Context()
	today := s.now().Format(core.DateLayout)

	page := indexPage{
		Username: sess.Username,
		Date:     today,
		Error:    errMsg,
	}

	status, err := s.clock.Status(ctx, sess)
	if err != nil {
		slog.ErrorContext(ctx, "Clock status error", "username", sess.Username, "error", err)
		http.Error(w, "clock unavailable", http.StatusInternalServerError)
		return
	}
	page.State = status.State.String()
	switch status.State {
	case core.StateRunning:
		page.Running = true
		page.PendingStart = status.PendingStart.Format("15:04")
	case core.StateClosing:
		page.Closing = true
		page.CandStart = status.Candidate.Start.Format("15:04")
		page.CandEnd = status.Candidate.End.Format("15:04")
	}

	entries, err := s.getDayEntries(ctx, sess.Username, today)
	if err != nil {
		slog.ErrorContext(ctx, "Day list error", "username", sess.Username, "date", today, "error", err)
	} else {
		page.Entries, page.TotalHours = viewEntries(entries)
	}

	s.render(w, r, "index.html", page)
}

func (s *Server) handleClockToggle(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	status, err := s.clock.Toggle(r.Context(), sess, s.now())
	if err != nil {
		slog.ErrorContext(r.Context(), "Clock toggle error", "username", sess.Username, "error", err)
		http.Error(w, "clock unavailable", http.StatusInternalServerError)
		return
	}
	slog.InfoContext(r.Context(), "Clock toggled",
		"username", sess.Username,
		"state", status.State.String())
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleClockCommit(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	title := sanitizeInput(r.Form.Get("title"))
	memo := sanitizeInput(r.Form.Get("memo"))

	entry, err := s.clock.Commit(r.Context(), sess, title, memo)
	switch {
	case errors.Is(err, core.ErrNotClosing):
		w.WriteHeader(http.StatusConflict)
		s.renderIndex(w, r, sess, "Nothing to commit, clock out first")
		return
	case errors.Is(err, core.ErrEmptyTitle):
		// The candidate survives a rejected commit, the form can retry.
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.renderIndex(w, r, sess, "A task title is required")
		return
	case errors.Is(err, core.ErrEndBeforeStart):
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.renderIndex(w, r, sess, "End must come after start")
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "Commit error", "username", sess.Username, "error", err)
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.renderIndex(w, r, sess, "Could not save the entry")
		return
	}

	s.invalidateDay(sess.Username, entry.Date)
	slog.InfoContext(r.Context(), "Entry committed",
		"username", sess.Username,
		"entry_id", entry.ID,
		"date", entry.Date)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleClockDiscard(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	s.clock.Discard(r.Context(), sess)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
