package core

import (
	"errors"
	"time"
)

// ClockState is the per-user clock-in/out state.
type ClockState int

const (
	// StateIdle means no open interval.
	StateIdle ClockState = iota
	// StateRunning means a pending clock-in exists and the interval is open.
	StateRunning
	// StateClosing means an interval was just closed and awaits a title/memo
	// before it becomes a stored WorkEntry.
	StateClosing
)

func (s ClockState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

var (
	ErrNotClosing = errors.New("no closed interval awaiting commit")
	ErrNotRunning = errors.New("clock is not running")
)

// Candidate is a just-closed interval held in memory until the user commits
// it with a title or abandons it. An abandoned candidate is unrecoverable:
// the pending row was already cleared when the interval closed.
type Candidate struct {
	Start time.Time
	End   time.Time
}

// Entry converts the candidate into a WorkEntry, deriving the calendar date
// from the start timestamp. It rejects intervals whose end wall-clock time is
// not after the start on the same date, so the legacy minute arithmetic never
// goes negative through this path.
func (c Candidate) Entry(username, title, memo string) (WorkEntry, error) {
	e := WorkEntry{
		Username: username,
		Date:     c.Start.Format(DateLayout),
		Start:    ClockOf(c.Start),
		End:      ClockOf(c.End),
		Title:    title,
		Memo:     memo,
	}
	if c.End.Format(DateLayout) != e.Date {
		return WorkEntry{}, ErrEndBeforeStart
	}
	if err := e.Validate(); err != nil {
		return WorkEntry{}, err
	}
	return e, nil
}

// Clock is the toggle state machine for one user. It is a pure value: the
// caller persists the pending start and holds the candidate across requests.
type Clock struct {
	state        ClockState
	pendingStart time.Time
	candidate    *Candidate
}

// ResumeClock reconstructs the machine from the pending-clock store. A nil
// pending start resumes Idle, anything else Running. There is no Closing on
// resume: a candidate only ever lives in memory.
func ResumeClock(pendingStart *time.Time) Clock {
	if pendingStart == nil {
		return Clock{state: StateIdle}
	}
	return Clock{state: StateRunning, pendingStart: *pendingStart}
}

// State returns the current machine state.
func (c *Clock) State() ClockState { return c.state }

// PendingStart returns the open interval's start while Running.
func (c *Clock) PendingStart() (time.Time, bool) {
	if c.state != StateRunning {
		return time.Time{}, false
	}
	return c.pendingStart, true
}

// Candidate returns the closed interval while Closing.
func (c *Clock) Candidate() (Candidate, bool) {
	if c.state != StateClosing || c.candidate == nil {
		return Candidate{}, false
	}
	return *c.candidate, true
}

// Toggle advances the machine. Idle opens an interval at now; Running closes
// the open interval into a candidate and moves to Closing. Toggling while
// Closing is a no-op: the pending commit has to resolve first.
func (c *Clock) Toggle(now time.Time) ClockState {
	switch c.state {
	case StateIdle:
		c.pendingStart = now
		c.state = StateRunning
	case StateRunning:
		c.candidate = &Candidate{Start: c.pendingStart, End: now}
		c.pendingStart = time.Time{}
		c.state = StateClosing
	}
	return c.state
}

// Commit turns the Closing candidate into a WorkEntry and returns to Idle.
// The candidate is kept on validation failure so the user can fix the input
// and retry.
func (c *Clock) Commit(username, title, memo string) (WorkEntry, error) {
	cand, ok := c.Candidate()
	if !ok {
		return WorkEntry{}, ErrNotClosing
	}
	entry, err := cand.Entry(username, title, memo)
	if err != nil {
		return WorkEntry{}, err
	}
	c.candidate = nil
	c.state = StateIdle
	return entry, nil
}

// Discard abandons the Closing candidate and returns to Idle.
func (c *Clock) Discard() {
	if c.state == StateClosing {
		c.candidate = nil
		c.state = StateIdle
	}
}
