// Package services orchestrates the domain operations across storage, the
// session-held clock state, and the optional AMQP mirror queue.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"kintai/internal/amqp"
	"kintai/internal/core"
	"kintai/internal/storage"
)

// EntryService owns the work-entry lifecycle. Queue publishes are best
// effort: the database write is the source of truth and the worker's
// periodic scan recovers anything a lost message missed.
type EntryService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewEntryService(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *EntryService {
	return &EntryService{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

// Create validates and stores a completed entry, then queues it for the
// timesheet mirror.
func (s *EntryService) Create(ctx context.Context, e core.WorkEntry) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}

	id, err := s.storage.InsertEntry(ctx, e)
	if err != nil {
		return 0, fmt.Errorf("save entry: %w", err)
	}

	s.publishSync(ctx, id, 1)
	return id, nil
}

// ListByDate returns a user's entries for one date in insertion order.
func (s *EntryService) ListByDate(ctx context.Context, username, date string) ([]core.WorkEntry, error) {
	normalized, err := core.ParseDate(date)
	if err != nil {
		return nil, err
	}
	return s.storage.GetEntriesByDate(ctx, username, normalized)
}

// MonthSummary aggregates a user's month for display and export.
func (s *EntryService) MonthSummary(ctx context.Context, username, yearMonth string) (core.MonthSummary, error) {
	normalized, err := core.ParseMonth(yearMonth)
	if err != nil {
		return core.MonthSummary{}, err
	}
	byDate, err := s.storage.GetEntriesByMonth(ctx, username, normalized)
	if err != nil {
		return core.MonthSummary{}, fmt.Errorf("load month: %w", err)
	}
	return core.SummarizeMonth(normalized, byDate), nil
}

// Update rewrites an entry's interval, title, and memo. The same same-day
// validation as interval closure applies, so edits cannot smuggle in a
// negative duration. Returns core.ErrEntryNotFound for absent ids.
func (s *EntryService) Update(ctx context.Context, id int64, start, end core.ClockTime, title, memo string) error {
	current, err := s.storage.GetEntry(ctx, id)
	if err != nil {
		return err
	}

	candidate := current
	candidate.Start, candidate.End, candidate.Title, candidate.Memo = start, end, title, memo
	if err := candidate.Validate(); err != nil {
		return err
	}

	version, err := s.storage.UpdateEntry(ctx, id, start, end, title, memo)
	if err != nil {
		return err
	}

	s.publishSync(ctx, id, version)
	return nil
}

// Delete removes an entry and queues the mirrored row's removal. Returns
// core.ErrEntryNotFound for absent ids; nothing else is touched then.
func (s *EntryService) Delete(ctx context.Context, id int64) error {
	if err := s.storage.DeleteEntry(ctx, id); err != nil {
		return err
	}

	s.publishDelete(ctx, id)
	return nil
}

func (s *EntryService) publishSync(ctx context.Context, id, version int64) {
	if s.amqpClient == nil {
		return
	}
	if err := s.amqpClient.PublishEntrySync(ctx, id, version); err != nil {
		// The entry is saved; the worker's pending scan will pick it up.
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"entry_id", id, "version", version, "error", err)
	}
}

func (s *EntryService) publishDelete(ctx context.Context, id int64) {
	if s.amqpClient == nil {
		return
	}
	if err := s.amqpClient.PublishEntryDelete(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish delete message",
			"entry_id", id, "error", err)
	}
}

// Close releases the service's AMQP resources. The repository is owned by
// the caller.
func (s *EntryService) Close() error {
	if s.amqpClient != nil {
		return s.amqpClient.Close()
	}
	return nil
}
