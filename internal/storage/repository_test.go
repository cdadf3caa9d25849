package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"kintai/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "kintai.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func entry(user, date, start, end, title string) core.WorkEntry {
	s, _ := core.ParseClock(start)
	e, _ := core.ParseClock(end)
	return core.WorkEntry{Username: user, Date: date, Start: s, End: e, Title: title}
}

func TestCreateUserDuplicate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.CreateUser(ctx, "alice", "hash-one"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if err := repo.CreateUser(ctx, "alice", "hash-two"); !errors.Is(err, core.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	// The original hash survives the duplicate attempt.
	hash, err := repo.GetPasswordHash(ctx, "alice")
	if err != nil {
		t.Fatalf("get hash: %v", err)
	}
	if hash != "hash-one" {
		t.Fatalf("stored hash changed: %q", hash)
	}
}

func TestGetPasswordHashAbsent(t *testing.T) {
	repo := newTestRepo(t)
	if _, err := repo.GetPasswordHash(context.Background(), "nobody"); err == nil {
		t.Fatal("expected error for absent user")
	}
}

func TestPendingClockLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	got, err := repo.GetPending(ctx, "alice")
	if err != nil || got != nil {
		t.Fatalf("expected no pending, got %v, %v", got, err)
	}

	first := time.Date(2025, 6, 1, 9, 0, 0, 0, time.Local)
	if err := repo.SavePending(ctx, "alice", first); err != nil {
		t.Fatalf("save pending: %v", err)
	}
	got, err = repo.GetPending(ctx, "alice")
	if err != nil || got == nil || !got.Equal(first) {
		t.Fatalf("get pending = %v, %v", got, err)
	}

	// Upsert: last writer wins.
	second := first.Add(30 * time.Minute)
	if err := repo.SavePending(ctx, "alice", second); err != nil {
		t.Fatalf("save pending again: %v", err)
	}
	got, _ = repo.GetPending(ctx, "alice")
	if got == nil || !got.Equal(second) {
		t.Fatalf("expected overwritten pending, got %v", got)
	}

	if err := repo.ClearPending(ctx, "alice"); err != nil {
		t.Fatalf("clear pending: %v", err)
	}
	// Idempotent.
	if err := repo.ClearPending(ctx, "alice"); err != nil {
		t.Fatalf("clear pending twice: %v", err)
	}
	got, _ = repo.GetPending(ctx, "alice")
	if got != nil {
		t.Fatalf("pending not cleared: %v", got)
	}
}

func TestEntryRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.InsertEntry(ctx, entry("alice", "2025-06-01", "09:00", "10:05", "review"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	entries, err := repo.GetEntriesByDate(ctx, "alice", "2025-06-01")
	if err != nil {
		t.Fatalf("get by date: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d", len(entries))
	}
	got := entries[0]
	if got.ID != id || got.Title != "review" || got.Start.String() != "09:00" || got.End.String() != "10:05" {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	// Edit one field; the rest stays.
	version, err := repo.UpdateEntry(ctx, id, got.Start, got.End, "review (updated)", got.Memo)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if version != 2 {
		t.Fatalf("version after update = %d", version)
	}
	after, err := repo.GetEntry(ctx, id)
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if after.Title != "review (updated)" {
		t.Fatalf("title = %q", after.Title)
	}
	if after.Start != got.Start || after.End != got.End || after.Memo != got.Memo || after.Date != got.Date {
		t.Fatalf("unexpected field changed: %+v", after)
	}
}

func TestEntriesByDateOrderedByID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// Inserted out of chronological order on purpose: ordering is by id.
	repo.InsertEntry(ctx, entry("alice", "2025-06-01", "13:00", "14:00", "later"))
	repo.InsertEntry(ctx, entry("alice", "2025-06-01", "09:00", "10:00", "earlier"))

	entries, err := repo.GetEntriesByDate(ctx, "alice", "2025-06-01")
	if err != nil {
		t.Fatalf("get by date: %v", err)
	}
	if len(entries) != 2 || entries[0].Title != "later" || entries[1].Title != "earlier" {
		t.Fatalf("order mismatch: %+v", entries)
	}
}

func TestEntriesByDateScopedToUser(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	repo.InsertEntry(ctx, entry("alice", "2025-06-01", "09:00", "10:00", "mine"))
	repo.InsertEntry(ctx, entry("bob", "2025-06-01", "09:00", "10:00", "theirs"))

	entries, _ := repo.GetEntriesByDate(ctx, "alice", "2025-06-01")
	if len(entries) != 1 || entries[0].Title != "mine" {
		t.Fatalf("user scoping broken: %+v", entries)
	}
}

func TestGetEntriesByMonth(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	repo.InsertEntry(ctx, entry("alice", "2025-06-01", "09:00", "10:05", "A"))
	repo.InsertEntry(ctx, entry("alice", "2025-06-02", "13:00", "13:30", "B"))
	// Other month and other user are excluded.
	repo.InsertEntry(ctx, entry("alice", "2025-07-01", "09:00", "10:00", "X"))
	repo.InsertEntry(ctx, entry("bob", "2025-06-01", "09:00", "10:00", "Y"))

	byDate, err := repo.GetEntriesByMonth(ctx, "alice", "2025-06")
	if err != nil {
		t.Fatalf("get by month: %v", err)
	}
	if len(byDate) != 2 {
		t.Fatalf("dates = %d (%v)", len(byDate), byDate)
	}
	d1 := byDate["2025-06-01"]
	if len(d1) != 1 || d1[0].Title != "A" || d1[0].Minutes != 65 {
		t.Fatalf("2025-06-01 = %+v", d1)
	}
	d2 := byDate["2025-06-02"]
	if len(d2) != 1 || d2[0].Title != "B" || d2[0].Minutes != 30 {
		t.Fatalf("2025-06-02 = %+v", d2)
	}
}

func TestUpdateDeleteAbsentID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id, _ := repo.InsertEntry(ctx, entry("alice", "2025-06-01", "09:00", "10:00", "keep"))

	if err := repo.DeleteEntry(ctx, 9999); !errors.Is(err, core.ErrEntryNotFound) {
		t.Fatalf("delete absent: %v", err)
	}
	if _, err := repo.UpdateEntry(ctx, 9999, core.ClockTime{Hour: 9}, core.ClockTime{Hour: 10}, "x", ""); !errors.Is(err, core.ErrEntryNotFound) {
		t.Fatalf("update absent: %v", err)
	}

	// Existing rows are untouched by the failed operations.
	if _, err := repo.GetEntry(ctx, id); err != nil {
		t.Fatalf("existing entry affected: %v", err)
	}
}

func TestSyncBookkeeping(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id1, _ := repo.InsertEntry(ctx, entry("alice", "2025-06-01", "09:00", "10:00", "A"))
	id2, _ := repo.InsertEntry(ctx, entry("alice", "2025-06-01", "10:00", "11:00", "B"))

	pending, err := repo.GetPendingSyncEntries(ctx, 10)
	if err != nil {
		t.Fatalf("pending sync: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != id1 || pending[0].Version != 1 {
		t.Fatalf("pending = %+v", pending)
	}

	if err := repo.MarkSynced(ctx, id1); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	pending, _ = repo.GetPendingSyncEntries(ctx, 10)
	if len(pending) != 1 || pending[0].ID != id2 {
		t.Fatalf("pending after sync = %+v", pending)
	}

	// An update re-queues the entry with a bumped version.
	if _, err := repo.UpdateEntry(ctx, id1, core.ClockTime{Hour: 9}, core.ClockTime{Hour: 10, Minute: 30}, "A", ""); err != nil {
		t.Fatalf("update: %v", err)
	}
	pending, _ = repo.GetPendingSyncEntries(ctx, 10)
	if len(pending) != 2 || pending[0].ID != id1 || pending[0].Version != 2 {
		t.Fatalf("pending after update = %+v", pending)
	}

	if err := repo.MarkSyncError(ctx, id2); err != nil {
		t.Fatalf("mark sync error: %v", err)
	}
	pending, _ = repo.GetPendingSyncEntries(ctx, 10)
	if len(pending) != 1 || pending[0].ID != id1 {
		t.Fatalf("pending after error = %+v", pending)
	}
}
