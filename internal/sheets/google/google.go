// Package google mirrors work entries to a Google Sheets timesheet. Rows are
// keyed by entry id in column A so edits and deletes find their row again.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"kintai/internal/core"
	ports "kintai/internal/sheets"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	timesheetName string
}

// Ensure interface conformance
var (
	_ ports.EntryWriter  = (*Client)(nil)
	_ ports.EntryDeleter = (*Client)(nil)
)

// New creates a timesheet client for one spreadsheet and sheet. Credentials
// come from the environment (GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS).
func New(ctx context.Context, spreadsheetID, timesheetName string) (*Client, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(timesheetName) == "" {
		timesheetName = "Timesheet"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		timesheetName: timesheetName,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return service, nil
}

// UpsertEntry writes the entry's row, replacing an existing row with the same
// id or appending a new one.
func (c *Client) UpsertEntry(ctx context.Context, e core.WorkEntry) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	row, found, err := c.findRowByID(ctx, e.ID)
	if err != nil {
		return "", err
	}
	if !found {
		// Append after the last used row.
		rng := fmt.Sprintf("%s!A:A", c.timesheetName)
		resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("get sheet dimensions for %s: %w", c.timesheetName, err)
		}
		row = len(resp.Values) + 1
	}

	dataRange := fmt.Sprintf("%s!A%d:H%d", c.timesheetName, row, row)
	vr := &gsheet.ValueRange{Values: [][]any{{
		e.ID, e.Username, e.Date, e.Start.String(), e.End.String(), e.Title, e.Memo, e.Minutes(),
	}}}

	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("update row in sheet %s: %w", c.timesheetName, err)
	}

	slog.InfoContext(ctx, "Entry mirrored to timesheet",
		"entry_id", e.ID, "sheets_ref", dataRange, "appended", !found)

	return dataRange, nil
}

// DeleteEntry blanks the mirrored row for an entry id. Unknown ids are a
// no-op: the entry may never have been mirrored.
func (c *Client) DeleteEntry(ctx context.Context, id int64) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	row, found, err := c.findRowByID(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		slog.WarnContext(ctx, "No mirrored row for deleted entry", "entry_id", id)
		return nil
	}

	rng := fmt.Sprintf("%s!A%d:H%d", c.timesheetName, row, row)
	_, err = c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear row in sheet %s: %w", c.timesheetName, err)
	}

	slog.InfoContext(ctx, "Mirrored row cleared", "entry_id", id, "sheets_ref", rng)
	return nil
}

// findRowByID scans column A for the entry id, returning the 1-based row.
func (c *Client) findRowByID(ctx context.Context, id int64) (int, bool, error) {
	rng := fmt.Sprintf("%s!A:A", c.timesheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, false, fmt.Errorf("read id column of %s: %w", c.timesheetName, err)
	}

	want := strconv.FormatInt(id, 10)
	for i, cells := range resp.Values {
		if len(cells) == 0 {
			continue
		}
		if fmt.Sprint(cells[0]) == want {
			return i + 1, true, nil
		}
	}
	return 0, false, nil
}
