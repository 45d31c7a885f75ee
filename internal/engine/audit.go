package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/stowage/internal/logging"
	"github.com/mesh-intelligence/stowage/pkg/types"
)

// newLogID returns a time-ordered UUID, falling back to a random one.
func newLogID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// stamp returns ts, or the engine clock when ts is zero.
func (e *Engine) stamp(ts types.Date) time.Time {
	if ts.IsZero() {
		return e.now().UTC()
	}
	return ts.Time
}

// record appends entries to the audit log. Failures are logged and do not
// undo the committed action. Callers must not hold any engine lock.
func (e *Engine) record(ctx context.Context, entries ...types.LogEntry) {
	if e.audit == nil {
		return
	}
	for _, entry := range entries {
		entry.LogID = newLogID()
		if entry.Timestamp.IsZero() {
			entry.Timestamp = e.now().UTC()
		}
		if err := e.audit.AppendLog(ctx, entry); err != nil {
			e.log.Warn(ctx, "audit append failed",
				logging.String("action", entry.ActionType),
				logging.String("item_id", entry.ItemID),
				logging.Err(err))
		}
	}
}
