package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"kintai/internal/core"
	"kintai/internal/session"
	"kintai/internal/storage"
)

// ClockService drives the toggle state machine against the pending-clock
// store. The Closing candidate lives only in the session; once the pending
// row is cleared, an abandoned candidate cannot be recovered.
type ClockService struct {
	storage *storage.SQLiteRepository
	entries *EntryService
}

func NewClockService(storage *storage.SQLiteRepository, entries *EntryService) *ClockService {
	return &ClockService{storage: storage, entries: entries}
}

// ClockStatus is the view-model of a user's clock.
type ClockStatus struct {
	State        core.ClockState
	PendingStart time.Time      // valid while Running
	Candidate    core.Candidate // valid while Closing
}

// Status reconstructs the clock state: Closing if the session holds a
// candidate, otherwise Running or Idle from the pending-clock row.
func (s *ClockService) Status(ctx context.Context, sess *session.Session) (ClockStatus, error) {
	if cand, ok := sess.Candidate(); ok {
		return ClockStatus{State: core.StateClosing, Candidate: cand}, nil
	}

	pending, err := s.storage.GetPending(ctx, sess.Username)
	if err != nil {
		return ClockStatus{}, fmt.Errorf("read pending clock: %w", err)
	}
	clock := core.ResumeClock(pending)
	st := ClockStatus{State: clock.State()}
	if start, ok := clock.PendingStart(); ok {
		st.PendingStart = start
	}
	return st, nil
}

// Toggle advances the clock at now. From Idle it persists a pending clock-in;
// from Running it clears the pending row and parks the closed interval in the
// session for commit. While Closing the toggle holds, mirroring the machine.
func (s *ClockService) Toggle(ctx context.Context, sess *session.Session, now time.Time) (ClockStatus, error) {
	if cand, ok := sess.Candidate(); ok {
		return ClockStatus{State: core.StateClosing, Candidate: cand}, nil
	}

	pending, err := s.storage.GetPending(ctx, sess.Username)
	if err != nil {
		return ClockStatus{}, fmt.Errorf("read pending clock: %w", err)
	}

	clock := core.ResumeClock(pending)
	switch clock.Toggle(now) {
	case core.StateRunning:
		if err := s.storage.SavePending(ctx, sess.Username, now); err != nil {
			return ClockStatus{}, fmt.Errorf("persist clock-in: %w", err)
		}
		slog.InfoContext(ctx, "Clock started",
			"username", sess.Username, "clock_state", core.StateRunning.String())
		return ClockStatus{State: core.StateRunning, PendingStart: now}, nil

	case core.StateClosing:
		// Clear first: the pending row must not survive the interval close,
		// even if the user never commits the candidate.
		if err := s.storage.ClearPending(ctx, sess.Username); err != nil {
			return ClockStatus{}, fmt.Errorf("clear clock-in: %w", err)
		}
		cand, _ := clock.Candidate()
		sess.SetCandidate(cand)
		slog.InfoContext(ctx, "Clock stopped, awaiting title",
			"username", sess.Username, "clock_state", core.StateClosing.String())
		return ClockStatus{State: core.StateClosing, Candidate: cand}, nil
	}

	return ClockStatus{State: clock.State()}, nil
}

// Commit turns the session's candidate into a stored WorkEntry. The
// candidate survives a validation failure so the user can retry.
func (s *ClockService) Commit(ctx context.Context, sess *session.Session, title, memo string) (core.WorkEntry, error) {
	cand, ok := sess.Candidate()
	if !ok {
		return core.WorkEntry{}, core.ErrNotClosing
	}

	entry, err := cand.Entry(sess.Username, title, memo)
	if err != nil {
		return core.WorkEntry{}, err
	}

	id, err := s.entries.Create(ctx, entry)
	if err != nil {
		return core.WorkEntry{}, err
	}
	entry.ID = id
	sess.ClearCandidate()

	slog.InfoContext(ctx, "Interval committed",
		"username", sess.Username,
		"entry_id", id,
		"entry_date", entry.Date,
		"minutes", entry.Minutes())
	return entry, nil
}

// Discard abandons the session's candidate without persisting anything.
func (s *ClockService) Discard(ctx context.Context, sess *session.Session) {
	if _, ok := sess.Candidate(); ok {
		sess.ClearCandidate()
		slog.InfoContext(ctx, "Candidate discarded", "username", sess.Username)
	}
}
