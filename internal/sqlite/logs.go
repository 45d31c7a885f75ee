// Audit log persistence and export.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/stowage/pkg/types"
)

// AppendLog stores one audit entry, assigning a log id when it has none.
func (b *Backend) AppendLog(ctx context.Context, entry types.LogEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrStoreDetached
	}
	if entry.LogID == "" {
		entry.LogID = generateUUID()
	}

	rec := logRecord(entry)
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding log entry: %w", err)
	}
	var details any
	if rec.Details != nil {
		raw, err := json.Marshal(rec.Details)
		if err != nil {
			return fmt.Errorf("encoding log details: %w", err)
		}
		details = string(raw)
	}
	if _, err := b.db.ExecContext(ctx,
		`INSERT INTO logs (log_id, timestamp, user_id, action_type, item_id, details) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.LogID, rec.Timestamp, rec.UserID, rec.ActionType, rec.ItemID, details); err != nil {
		return fmt.Errorf("inserting log entry: %w", err)
	}
	return appendJSONL(b.path(logsJSONL), line)
}

// Logs returns the entries matching filter, oldest first.
func (b *Backend) Logs(ctx context.Context, filter types.LogFilter) ([]types.LogEntry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	var (
		where []string
		args  []any
	)
	if !filter.From.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, formatTime(filter.From))
	}
	if !filter.To.IsZero() {
		where = append(where, "timestamp <= ?")
		args = append(args, formatTime(filter.To))
	}
	for col, v := range map[string]string{
		"item_id":     filter.ItemID,
		"user_id":     filter.UserID,
		"action_type": filter.ActionType,
	} {
		if v != "" {
			where = append(where, col+" = ?")
			args = append(args, v)
		}
	}
	query := `SELECT log_id, timestamp, user_id, action_type, item_id, details FROM logs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp, log_id"

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying logs: %w", err)
	}
	defer rows.Close()

	out := []types.LogEntry{}
	for rows.Next() {
		var (
			e       types.LogEntry
			ts      string
			details sql.NullString
		)
		if err := rows.Scan(&e.LogID, &ts, &e.UserID, &e.ActionType, &e.ItemID, &details); err != nil {
			return nil, fmt.Errorf("scanning log entry: %w", err)
		}
		if e.Timestamp, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("log %s timestamp %q: %w", e.LogID, ts, err)
		}
		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &e.Details); err != nil {
				return nil, fmt.Errorf("log %s details: %w", e.LogID, err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ExportLogs writes the entries matching filter to path as JSONL, replacing
// the file atomically, and returns how many were written.
func (b *Backend) ExportLogs(ctx context.Context, path string, filter types.LogFilter) (int, error) {
	entries, err := b.Logs(ctx, filter)
	if err != nil {
		return 0, err
	}
	lines, err := marshalRecords(entries)
	if err != nil {
		return 0, err
	}
	if err := writeJSONL(path, lines); err != nil {
		return 0, fmt.Errorf("exporting logs: %w", err)
	}
	return len(entries), nil
}
