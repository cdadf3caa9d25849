// Package storage persists users, work entries, and the pending clock in
// SQLite. Every operation is a single statement on a shared connection pool;
// there are no long-lived transactions.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"kintai/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateUser stores a username with its password hash. Returns
// core.ErrUserExists when the username is already taken; the stored hash is
// left untouched in that case.
func (r *SQLiteRepository) CreateUser(ctx context.Context, username, passwordHash string) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (username, password_hash) VALUES (?, ?)`,
		username, passwordHash)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create user rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrUserExists
	}

	slog.InfoContext(ctx, "User created", "username", username)
	return nil
}

// GetPasswordHash returns the stored hash for a username. Absent usernames
// surface as a wrapped sql.ErrNoRows; callers deciding auth outcomes must not
// leak the distinction.
func (r *SQLiteRepository) GetPasswordHash(ctx context.Context, username string) (string, error) {
	var hash string
	err := r.db.QueryRowContext(ctx,
		`SELECT password_hash FROM users WHERE username = ?`, username).Scan(&hash)
	if err != nil {
		return "", fmt.Errorf("get password hash: %w", err)
	}
	return hash, nil
}

// GetPending returns the open clock-in timestamp for a user, or nil when the
// user is not clocked in. Row existence is the sole source of truth for the
// running state.
func (r *SQLiteRepository) GetPending(ctx context.Context, username string) (*time.Time, error) {
	var raw string
	err := r.db.QueryRowContext(ctx,
		`SELECT start_time FROM pending_log WHERE username = ?`, username).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pending clock: %w", err)
	}
	t, err := time.ParseInLocation(time.RFC3339, raw, time.Local)
	if err != nil {
		return nil, fmt.Errorf("parse pending start time %q: %w", raw, err)
	}
	return &t, nil
}

// SavePending upserts the open clock-in timestamp. Last writer wins: two
// concurrent sessions racing here silently discard the earlier start.
func (r *SQLiteRepository) SavePending(ctx context.Context, username string, start time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO pending_log (username, start_time) VALUES (?, ?)
		 ON CONFLICT(username) DO UPDATE SET start_time = excluded.start_time`,
		username, start.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save pending clock: %w", err)
	}
	return nil
}

// ClearPending deletes the pending row. Idempotent.
func (r *SQLiteRepository) ClearPending(ctx context.Context, username string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM pending_log WHERE username = ?`, username)
	if err != nil {
		return fmt.Errorf("clear pending clock: %w", err)
	}
	return nil
}

// InsertEntry stores a completed work entry and returns its id.
func (r *SQLiteRepository) InsertEntry(ctx context.Context, e core.WorkEntry) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO worklog (username, date, "start", "end", title, memo)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.Username, e.Date, e.Start.String(), e.End.String(), e.Title, e.Memo)
	if err != nil {
		return 0, fmt.Errorf("insert entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert entry id: %w", err)
	}

	slog.InfoContext(ctx, "Work entry saved",
		"entry_id", id,
		"username", e.Username,
		"entry_date", e.Date,
		"entry_title", e.Title)
	return id, nil
}

// GetEntry returns one entry by id, core.ErrEntryNotFound when absent.
func (r *SQLiteRepository) GetEntry(ctx context.Context, id int64) (core.WorkEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, date, "start", "end", title, memo
		 FROM worklog WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.WorkEntry{}, core.ErrEntryNotFound
	}
	if err != nil {
		return core.WorkEntry{}, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

// GetEntriesByDate returns a user's entries for one calendar date in
// ascending id order, which is the insertion order.
func (r *SQLiteRepository) GetEntriesByDate(ctx context.Context, username, date string) ([]core.WorkEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, username, date, "start", "end", title, memo
		 FROM worklog WHERE username = ? AND date = ? ORDER BY id ASC`,
		username, date)
	if err != nil {
		return nil, fmt.Errorf("get entries by date: %w", err)
	}
	defer rows.Close()

	var entries []core.WorkEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// GetEntriesByMonth groups a user's entries for a "2006-01" month by date.
// The duration is computed in SQL with the historical strftime arithmetic:
// (end.hour-start.hour)*60 + (end.minute-start.minute).
func (r *SQLiteRepository) GetEntriesByMonth(ctx context.Context, username, yearMonth string) (map[string][]core.TaskDuration, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT date, title,
		        (strftime('%H', "end") - strftime('%H', "start")) * 60 +
		        (strftime('%M', "end") - strftime('%M', "start")) AS duration
		 FROM worklog
		 WHERE username = ? AND strftime('%Y-%m', date) = ?
		 ORDER BY date, id`,
		username, yearMonth)
	if err != nil {
		return nil, fmt.Errorf("get entries by month: %w", err)
	}
	defer rows.Close()

	byDate := make(map[string][]core.TaskDuration)
	for rows.Next() {
		var (
			date     string
			title    string
			duration int64
		)
		if err := rows.Scan(&date, &title, &duration); err != nil {
			return nil, fmt.Errorf("scan month row: %w", err)
		}
		byDate[date] = append(byDate[date], core.TaskDuration{Title: title, Minutes: duration})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate month rows: %w", err)
	}
	return byDate, nil
}

// UpdateEntry rewrites the mutable fields of an entry and returns the bumped
// version. The date stays derived from the original start timestamp and is
// not editable. Returns core.ErrEntryNotFound when the id does not exist.
// Updating re-queues the row for the timesheet mirror.
func (r *SQLiteRepository) UpdateEntry(ctx context.Context, id int64, start, end core.ClockTime, title, memo string) (int64, error) {
	var version int64
	err := r.db.QueryRowContext(ctx,
		`UPDATE worklog
		 SET "start" = ?, "end" = ?, title = ?, memo = ?,
		     version = version + 1, sync_status = 'pending'
		 WHERE id = ?
		 RETURNING version`,
		start.String(), end.String(), title, memo, id).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, core.ErrEntryNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("update entry: %w", err)
	}

	slog.InfoContext(ctx, "Work entry updated", "entry_id", id, "entry_title", title)
	return version, nil
}

// DeleteEntry removes an entry, core.ErrEntryNotFound when the id is absent.
func (r *SQLiteRepository) DeleteEntry(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM worklog WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete entry rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrEntryNotFound
	}

	slog.InfoContext(ctx, "Work entry deleted", "entry_id", id)
	return nil
}

// PendingSyncEntry is the minimal payload for timesheet mirror messages.
type PendingSyncEntry struct {
	ID      int64
	Version int64
}

// GetPendingSyncEntries lists entries not yet mirrored to the timesheet. This
// backs the worker's periodic scan that recovers from lost queue messages.
func (r *SQLiteRepository) GetPendingSyncEntries(ctx context.Context, limit int) ([]PendingSyncEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, version FROM worklog
		 WHERE sync_status = 'pending' ORDER BY id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync entries: %w", err)
	}
	defer rows.Close()

	var pending []PendingSyncEntry
	for rows.Next() {
		var p PendingSyncEntry
		if err := rows.Scan(&p.ID, &p.Version); err != nil {
			return nil, fmt.Errorf("scan pending sync entry: %w", err)
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending sync entries: %w", err)
	}
	return pending, nil
}

// MarkSynced records that an entry reached the timesheet.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE worklog SET sync_status = 'synced' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark entry synced: %w", err)
	}
	slog.InfoContext(ctx, "Entry marked as synced", "entry_id", id)
	return nil
}

// MarkSyncError flags an entry whose mirror attempt failed.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE worklog SET sync_status = 'error' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark entry sync error: %w", err)
	}
	slog.WarnContext(ctx, "Entry marked with sync error", "entry_id", id)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (core.WorkEntry, error) {
	var (
		e          core.WorkEntry
		start, end string
	)
	if err := row.Scan(&e.ID, &e.Username, &e.Date, &start, &end, &e.Title, &e.Memo); err != nil {
		return core.WorkEntry{}, err
	}
	var err error
	if e.Start, err = core.ParseClock(start); err != nil {
		return core.WorkEntry{}, fmt.Errorf("stored start %q: %w", start, err)
	}
	if e.End, err = core.ParseClock(end); err != nil {
		return core.WorkEntry{}, fmt.Errorf("stored end %q: %w", end, err)
	}
	return e, nil
}
