package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"kintai/internal/core"
	"kintai/internal/export"
	"kintai/internal/export/xlsx"
	"kintai/internal/session"
)

// maxTemplateBytes caps the uploaded workbook size.
const maxTemplateBytes = 10 << 20

type exportDay struct {
	Date  string
	Hours string
}

type exportPage struct {
	Username   string
	Month      string
	Days       []exportDay
	TotalHours string
	Error      string
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	switch r.Method {
	case http.MethodGet:
		month, err := requestMonth(r)
		if err != nil {
			http.Error(w, "invalid month", http.StatusBadRequest)
			return
		}
		s.renderExport(w, r, sess, month, "")
	case http.MethodPost:
		s.handleExportSubmit(w, r, sess)
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

func (s *Server) renderExport(w http.ResponseWriter, r *http.Request, sess *session.Session, month, errMsg string) {
	page := exportPage{Username: sess.Username, Month: month, Error: errMsg}

	sum, err := s.entries.MonthSummary(r.Context(), sess.Username, month)
	if err != nil {
		slog.ErrorContext(r.Context(), "Month summary error", "username", sess.Username, "month", month, "error", err)
	} else {
		for _, d := range sum.Days {
			page.Days = append(page.Days, exportDay{Date: d.Date, Hours: core.FormatHours(d.TotalMinutes)})
		}
		page.TotalHours = core.FormatHours(sum.TotalMinutes)
	}

	s.render(w, r, "export.html", page)
}

// handleExportSubmit fills the uploaded invoice template with the chosen
// month and streams it back as a download.
func (s *Server) handleExportSubmit(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if err := r.ParseMultipartForm(maxTemplateBytes); err != nil {
		http.Error(w, "invalid upload", http.StatusBadRequest)
		return
	}
	month, err := requestMonth(r)
	if err != nil {
		http.Error(w, "invalid month", http.StatusBadRequest)
		return
	}
	label := sanitizeInput(r.FormValue("label"))
	rate, err := strconv.ParseFloat(strings.TrimSpace(r.FormValue("rate")), 64)
	if err != nil || rate < 0 {
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.renderExport(w, r, sess, month, "Hourly rate must be a number")
		return
	}

	file, _, err := r.FormFile("template")
	if err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.renderExport(w, r, sess, month, "Upload the invoice template first")
		return
	}
	defer file.Close()

	tmpl, err := xlsx.Open(file)
	if err != nil {
		slog.WarnContext(r.Context(), "Rejected template upload", "username", sess.Username, "error", err)
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.renderExport(w, r, sess, month, "The uploaded file is not a valid workbook")
		return
	}
	defer tmpl.Close()

	req := export.Request{
		Username:   sess.Username,
		YearMonth:  month,
		Label:      label,
		HourlyRate: rate,
	}
	if err := s.exporter.Fill(r.Context(), req, tmpl); err != nil {
		if errors.Is(err, export.ErrMissingTemplate) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			s.renderExport(w, r, sess, month, "Upload the invoice template first")
			return
		}
		slog.ErrorContext(r.Context(), "Export fill error", "username", sess.Username, "month", month, "error", err)
		http.Error(w, "could not build the invoice", http.StatusInternalServerError)
		return
	}

	payload, err := tmpl.Bytes()
	if err != nil {
		slog.ErrorContext(r.Context(), "Export serialization error", "username", sess.Username, "month", month, "error", err)
		http.Error(w, "could not build the invoice", http.StatusInternalServerError)
		return
	}

	filename := export.Filename(month)
	w.Header().Set("Content-Type", export.MIMEXLSX)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	if _, err := w.Write(payload); err != nil {
		slog.WarnContext(r.Context(), "Export write aborted", "username", sess.Username, "error", err)
		return
	}

	slog.InfoContext(r.Context(), "Invoice exported",
		"username", sess.Username,
		"month", month,
		"filename", filename,
		"bytes", len(payload))
}
