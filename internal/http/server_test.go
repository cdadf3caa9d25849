package http

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"kintai/internal/auth"
	"kintai/internal/export"
	"kintai/internal/services"
	"kintai/internal/session"
	"kintai/internal/storage"
)

func newTestServer(t *testing.T) (*Server, *storage.SQLiteRepository) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "kintai.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	sessions := session.NewManager(time.Hour)
	t.Cleanup(sessions.Stop)

	entries := services.NewEntryService(repo, nil)
	clock := services.NewClockService(repo, entries)
	creds := auth.NewCredentialStore(repo)
	exporter := export.NewExporter(repo, export.DefaultLayout())

	srv := NewServer(":0", sessions, creds, clock, entries, exporter)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, repo
}

func doForm(srv *Server, method, path, form string, cookie *http.Cookie) *httptest.ResponseRecorder {
	var body io.Reader
	if form != "" {
		body = strings.NewReader(form)
	}
	req := httptest.NewRequest(method, path, body)
	if form != "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

// register signs up a user and returns the session cookie.
func register(t *testing.T, srv *Server, username string) *http.Cookie {
	t.Helper()
	rr := doForm(srv, http.MethodPost, "/register", "username="+username+"&password=secret", nil)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("register status = %d", rr.Code)
	}
	for _, c := range rr.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	t.Fatal("no session cookie after register")
	return nil
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := doForm(srv, http.MethodGet, path, "", nil)
		if rr.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rr.Code)
		}
	}
}

func TestAnonymousRedirectsToLogin(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{"/", "/entries", "/export"} {
		rr := doForm(srv, http.MethodGet, path, "", nil)
		if rr.Code != http.StatusSeeOther {
			t.Errorf("%s status = %d, want 303", path, rr.Code)
		}
		if loc := rr.Header().Get("Location"); loc != "/login" {
			t.Errorf("%s redirects to %q", path, loc)
		}
	}
}

func TestLoginFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	cookie := register(t, srv, "alice")

	rr := doForm(srv, http.MethodGet, "/", "", cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("index status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "alice") {
		t.Error("index does not show the username")
	}

	// Wrong password is rejected.
	rr = doForm(srv, http.MethodPost, "/login", "username=alice&password=wrong", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("bad login status = %d, want 401", rr.Code)
	}

	// Correct password signs in.
	rr = doForm(srv, http.MethodPost, "/login", "username=alice&password=secret", nil)
	if rr.Code != http.StatusSeeOther {
		t.Errorf("login status = %d, want 303", rr.Code)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	srv, _ := newTestServer(t)
	register(t, srv, "alice")

	rr := doForm(srv, http.MethodPost, "/register", "username=alice&password=other", nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("duplicate register status = %d, want 422", rr.Code)
	}
}

func TestLogoutDestroysSession(t *testing.T) {
	srv, _ := newTestServer(t)
	cookie := register(t, srv, "alice")

	rr := doForm(srv, http.MethodPost, "/logout", "", cookie)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("logout status = %d", rr.Code)
	}
	rr = doForm(srv, http.MethodGet, "/", "", cookie)
	if rr.Code != http.StatusSeeOther {
		t.Errorf("index after logout status = %d, want redirect", rr.Code)
	}
}

func TestClockToggleAndCommit(t *testing.T) {
	srv, _ := newTestServer(t)
	cookie := register(t, srv, "alice")

	current := time.Date(2025, 6, 2, 9, 0, 0, 0, time.Local)
	srv.now = func() time.Time { return current }

	rr := doForm(srv, http.MethodPost, "/clock/toggle", "", cookie)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("clock in status = %d", rr.Code)
	}
	rr = doForm(srv, http.MethodGet, "/", "", cookie)
	if !strings.Contains(rr.Body.String(), "Working since 09:00") {
		t.Fatalf("index does not show running clock: %s", rr.Body.String())
	}

	current = current.Add(65 * time.Minute)
	rr = doForm(srv, http.MethodPost, "/clock/toggle", "", cookie)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("clock out status = %d", rr.Code)
	}
	rr = doForm(srv, http.MethodGet, "/", "", cookie)
	if !strings.Contains(rr.Body.String(), "Closing: 09:00") {
		t.Fatalf("index does not show closing interval: %s", rr.Body.String())
	}

	// Empty title keeps the candidate for a retry.
	rr = doForm(srv, http.MethodPost, "/clock/commit", "title=&memo=", cookie)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty title commit status = %d, want 422", rr.Code)
	}

	rr = doForm(srv, http.MethodPost, "/clock/commit", "title=review&memo=weekly", cookie)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("commit status = %d, body: %s", rr.Code, rr.Body.String())
	}

	rr = doForm(srv, http.MethodGet, "/", "", cookie)
	body := rr.Body.String()
	if !strings.Contains(body, "review") || !strings.Contains(body, "1.0") {
		t.Errorf("index missing committed entry: %s", body)
	}
}

func TestCommitWithoutCandidate(t *testing.T) {
	srv, _ := newTestServer(t)
	cookie := register(t, srv, "alice")

	rr := doForm(srv, http.MethodPost, "/clock/commit", "title=review", cookie)
	if rr.Code != http.StatusConflict {
		t.Errorf("commit status = %d, want 409", rr.Code)
	}
}

func TestEntryUpdateAndDelete(t *testing.T) {
	srv, _ := newTestServer(t)
	cookie := register(t, srv, "alice")

	current := time.Date(2025, 6, 2, 9, 0, 0, 0, time.Local)
	srv.now = func() time.Time { return current }
	doForm(srv, http.MethodPost, "/clock/toggle", "", cookie)
	current = current.Add(90 * time.Minute)
	doForm(srv, http.MethodPost, "/clock/toggle", "", cookie)
	doForm(srv, http.MethodPost, "/clock/commit", "title=meeting", cookie)

	rr := doForm(srv, http.MethodGet, "/entries?date=2025-06-02", "", cookie)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "meeting") {
		t.Fatalf("entries page: %d %s", rr.Code, rr.Body.String())
	}
	id := entryID(t, srv, cookie)

	// Inverted interval is rejected.
	rr = doForm(srv, http.MethodPost, "/entries/update",
		"id="+id+"&date=2025-06-02&start=11:00&end=10:00&title=meeting", cookie)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("inverted update status = %d, want 422", rr.Code)
	}

	rr = doForm(srv, http.MethodPost, "/entries/update",
		"id="+id+"&date=2025-06-02&start=09:00&end=11:30&title=planning&memo=q3", cookie)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("update status = %d, body: %s", rr.Code, rr.Body.String())
	}
	rr = doForm(srv, http.MethodGet, "/entries?date=2025-06-02", "", cookie)
	if !strings.Contains(rr.Body.String(), "planning") || !strings.Contains(rr.Body.String(), "2.5") {
		t.Errorf("updated entry missing: %s", rr.Body.String())
	}

	rr = doForm(srv, http.MethodPost, "/entries/delete", "id=999&date=2025-06-02", cookie)
	if rr.Code != http.StatusNotFound {
		t.Errorf("delete absent id status = %d, want 404", rr.Code)
	}

	rr = doForm(srv, http.MethodPost, "/entries/delete", "id="+id+"&date=2025-06-02", cookie)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("delete status = %d", rr.Code)
	}
	rr = doForm(srv, http.MethodGet, "/entries?date=2025-06-02", "", cookie)
	if !strings.Contains(rr.Body.String(), "No entries on this date") {
		t.Errorf("entry still listed after delete: %s", rr.Body.String())
	}
}

// entryID pulls the single entry id of 2025-06-02 from the update form.
func entryID(t *testing.T, srv *Server, cookie *http.Cookie) string {
	t.Helper()
	rr := doForm(srv, http.MethodGet, "/entries?date=2025-06-02", "", cookie)
	body := rr.Body.String()
	marker := `name="id" value="`
	i := strings.Index(body, marker)
	if i < 0 {
		t.Fatalf("no entry id in page: %s", body)
	}
	rest := body[i+len(marker):]
	return rest[:strings.Index(rest, `"`)]
}

func invoiceTemplate(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	layout := export.DefaultLayout()
	if _, err := f.NewSheet(layout.InvoiceSheet); err != nil {
		t.Fatalf("new sheet: %v", err)
	}
	if _, err := f.NewSheet(layout.ReportSheet); err != nil {
		t.Fatalf("new sheet: %v", err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("serialize template: %v", err)
	}
	return buf.Bytes()
}

func TestExportDownload(t *testing.T) {
	srv, _ := newTestServer(t)
	cookie := register(t, srv, "alice")

	current := time.Date(2025, 6, 2, 9, 0, 0, 0, time.Local)
	srv.now = func() time.Time { return current }
	doForm(srv, http.MethodPost, "/clock/toggle", "", cookie)
	current = current.Add(370 * time.Minute)
	doForm(srv, http.MethodPost, "/clock/toggle", "", cookie)
	doForm(srv, http.MethodPost, "/clock/commit", "title=development", cookie)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("month", "2025-06")
	_ = mw.WriteField("label", "development work")
	_ = mw.WriteField("rate", "3000")
	fw, err := mw.CreateFormFile("template", "template.xlsx")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := fw.Write(invoiceTemplate(t)); err != nil {
		t.Fatalf("write template: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/export", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("export status = %d, body: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != export.MIMEXLSX {
		t.Errorf("content type = %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "invoice_202506.xlsx") {
		t.Errorf("content disposition = %q", cd)
	}
	if rr.Body.Len() == 0 {
		t.Error("empty workbook payload")
	}

	// The filled template round-trips with the written hours in place.
	filled, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer filled.Close()
	layout := export.DefaultLayout()
	hours, err := filled.GetCellValue(layout.ReportSheet, "C8")
	if err != nil {
		t.Fatalf("read cell: %v", err)
	}
	if hours != "6.1" {
		t.Errorf("day hours cell = %q, want 6.1", hours)
	}
}

func TestExportWithoutTemplate(t *testing.T) {
	srv, _ := newTestServer(t)
	cookie := register(t, srv, "alice")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("month", "2025-06")
	_ = mw.WriteField("rate", "3000")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/export", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("export without template status = %d, want 422", rr.Code)
	}
}
