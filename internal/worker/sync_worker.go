// Package worker mirrors committed work entries from SQLite into the
// external timesheet. Queue messages drive the hot path; a periodic scan
// of sync_status picks up anything a lost message left behind.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"kintai/internal/amqp"
	"kintai/internal/core"
	"kintai/internal/sheets"
	"kintai/internal/storage"
)

// SyncWorker applies entry events to the timesheet backend and keeps the
// per-row sync bookkeeping in SQLite.
type SyncWorker struct {
	storage   *storage.SQLiteRepository
	writer    sheets.EntryWriter
	deleter   sheets.EntryDeleter
	batchSize int
}

func NewSyncWorker(storage *storage.SQLiteRepository, writer sheets.EntryWriter, deleter sheets.EntryDeleter, batchSize int) *SyncWorker {
	return &SyncWorker{
		storage:   storage,
		writer:    writer,
		deleter:   deleter,
		batchSize: batchSize,
	}
}

// HandleEntryEvent dispatches one queue message. Returning an error makes
// the consumer nack and requeue.
func (w *SyncWorker) HandleEntryEvent(ctx context.Context, msg *amqp.EntryEventMessage) error {
	switch msg.Kind {
	case amqp.KindSync:
		return w.handleSync(ctx, msg)
	case amqp.KindDelete:
		return w.handleDelete(ctx, msg)
	default:
		// Unknown kinds are dropped, requeueing would loop forever.
		slog.WarnContext(ctx, "Dropping message of unknown kind",
			"kind", msg.Kind,
			"id", msg.ID)
		return nil
	}
}

func (w *SyncWorker) handleSync(ctx context.Context, msg *amqp.EntryEventMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"id", msg.ID,
		"version", msg.Version)

	entry, err := w.storage.GetEntry(ctx, msg.ID)
	if errors.Is(err, core.ErrEntryNotFound) {
		// Deleted between publish and consume. The delete message for it
		// is already in flight or processed.
		slog.InfoContext(ctx, "Entry gone before sync, skipping", "id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get entry from storage: %w", err)
	}

	return w.mirrorEntry(ctx, entry)
}

func (w *SyncWorker) handleDelete(ctx context.Context, msg *amqp.EntryEventMessage) error {
	slog.InfoContext(ctx, "Processing delete message", "id", msg.ID)

	if w.deleter == nil {
		slog.WarnContext(ctx, "No timesheet deleter configured, skipping row removal",
			"id", msg.ID)
		return nil
	}

	if err := w.deleter.DeleteEntry(ctx, msg.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to delete timesheet row",
			"id", msg.ID,
			"error", err,
			"timestamp", msg.Timestamp)
		return fmt.Errorf("delete timesheet row: %w", err)
	}

	slog.InfoContext(ctx, "Deleted timesheet row", "id", msg.ID)
	return nil
}

// ProcessPendingEntries mirrors entries still marked pending. This is the
// backup path for lost queue messages.
func (w *SyncWorker) ProcessPendingEntries(ctx context.Context) error {
	pending, err := w.storage.GetPendingSyncEntries(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending entries: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending entries", "count", len(pending))

	for _, p := range pending {
		entry, err := w.storage.GetEntry(ctx, p.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get entry", "id", p.ID, "error", err)
			if err := w.storage.MarkSyncError(ctx, p.ID); err != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error", "id", p.ID, "error", err)
			}
			continue
		}
		if err := w.mirrorEntry(ctx, entry); err != nil {
			slog.ErrorContext(ctx, "Failed to sync entry", "id", p.ID, "error", err)
			continue
		}
	}
	return nil
}

// StartupSyncCheck drains the pending backlog once at worker startup, with
// a larger batch than the periodic scan. Recovers from worker downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	pending, err := w.storage.GetPendingSyncEntries(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending entries for startup check: %w", err)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending entries found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending entries on startup, processing...",
		"count", len(pending))

	synced := 0
	failed := 0
	for _, p := range pending {
		entry, err := w.storage.GetEntry(ctx, p.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get entry for startup sync",
				"id", p.ID, "error", err)
			if err := w.storage.MarkSyncError(ctx, p.ID); err != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error", "id", p.ID, "error", err)
			}
			failed++
			continue
		}
		if err := w.mirrorEntry(ctx, entry); err != nil {
			slog.ErrorContext(ctx, "Failed to sync entry during startup",
				"id", p.ID, "error", err)
			failed++
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(pending),
		"synced", synced,
		"errors", failed)
	return nil
}

func (w *SyncWorker) mirrorEntry(ctx context.Context, entry core.WorkEntry) error {
	ref, err := w.writer.UpsertEntry(ctx, entry)
	if err != nil {
		if markErr := w.storage.MarkSyncError(ctx, entry.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", entry.ID, "error", markErr)
		}
		return fmt.Errorf("upsert timesheet row: %w", err)
	}

	if err := w.storage.MarkSynced(ctx, entry.ID); err != nil {
		// The mirror write itself worked, so keep going.
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", entry.ID, "error", err)
	}

	slog.InfoContext(ctx, "Synced entry to timesheet",
		"id", entry.ID,
		"row_ref", ref,
		"date", entry.Date,
		"title", entry.Title)
	return nil
}
