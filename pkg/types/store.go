// Persistence and audit interfaces implemented by storage backends.
package types

import (
	"context"
	"errors"
	"time"
)

// Audit action types.
const (
	LogActionPlacement     = "placement"
	LogActionRearrangement = "rearrangement"
	LogActionRetrieval     = "retrieval"
	LogActionPlace         = "place"
	LogActionDisposal      = "disposal"
	LogActionSimulation    = "simulation"
)

// LogEntry records one committed action.
type LogEntry struct {
	LogID      string         `json:"logId"`
	Timestamp  time.Time      `json:"timestamp"`
	UserID     string         `json:"userId,omitempty"`
	ActionType string         `json:"actionType"`
	ItemID     string         `json:"itemId,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// LogFilter narrows a log query. Zero fields match everything.
type LogFilter struct {
	From       time.Time
	To         time.Time
	ItemID     string
	UserID     string
	ActionType string
}

// Matches reports whether e satisfies every non-zero field of f.
func (f LogFilter) Matches(e LogEntry) bool {
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Timestamp.After(f.To) {
		return false
	}
	if f.ItemID != "" && e.ItemID != f.ItemID {
		return false
	}
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.ActionType != "" && e.ActionType != f.ActionType {
		return false
	}
	return true
}

// AuditLog receives log entries for committed actions.
type AuditLog interface {
	AppendLog(ctx context.Context, entry LogEntry) error
}

// Snapshot is the complete persisted state of the engine plus the current
// mission date, which the engine itself does not track.
type Snapshot struct {
	Date       Date        `json:"date"`
	Containers []Container `json:"containers"`
	Items      []Item      `json:"items"`
	Placements []Placement `json:"placements"`
}

// Store persists snapshots and audit entries.
type Store interface {
	AuditLog

	// Attach connects the store to the backend described by config.
	// Returns ErrAlreadyAttached if called while already attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent.
	Detach() error

	// SaveSnapshot replaces the persisted state with snap.
	SaveSnapshot(ctx context.Context, snap Snapshot) error

	// LoadSnapshot returns the persisted state; an empty snapshot if none
	// was saved yet.
	LoadSnapshot(ctx context.Context) (Snapshot, error)

	// Logs returns entries matching filter in timestamp order.
	Logs(ctx context.Context, filter LogFilter) ([]LogEntry, error)
}

// Store lifecycle errors.
var (
	ErrStoreDetached   = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
)
