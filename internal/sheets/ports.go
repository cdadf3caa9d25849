// Package sheets defines the outbound ports for the timesheet mirror: the
// worker pushes committed work entries to an external sheet through these.
package sheets

import (
	"context"

	"kintai/internal/core"
)

type (
	// EntryWriter inserts or rewrites one entry's mirrored row, keyed by the
	// entry id. Returns a backend-specific row reference.
	EntryWriter interface {
		UpsertEntry(ctx context.Context, e core.WorkEntry) (rowRef string, err error)
	}

	// EntryDeleter removes an entry's mirrored row. Deleting an id that was
	// never mirrored is not an error.
	EntryDeleter interface {
		DeleteEntry(ctx context.Context, id int64) error
	}
)
