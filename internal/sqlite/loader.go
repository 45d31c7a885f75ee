// JSONL loading for startup.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// jsonlTableMapping maps JSONL files to their SQLite tables and columns.
// Tables referenced by foreign keys load first.
var jsonlTableMapping = []struct {
	file    string
	table   string
	columns []string
}{
	{containersJSONL, "containers", []string{"container_id", "zone", "width", "depth", "height"}},
	{itemsJSONL, "items", []string{"item_id", "name", "width", "depth", "height", "mass", "priority",
		"expiry_date", "usage_limit", "current_uses", "preferred_zone", "is_waste", "disposed"}},
	{placementsJSONL, "placements", []string{"item_id", "container_id",
		"start_width", "start_depth", "start_height", "end_width", "end_depth", "end_height"}},
	{metaJSONL, "meta", []string{"key", "value"}},
	{logsJSONL, "logs", []string{"log_id", "timestamp", "user_id", "action_type", "item_id", "details"}},
}

// loadAllJSONL reads each JSONL file in dataDir into its table. Loading is
// transactional: all files load or the database stays empty. Malformed lines
// and unknown fields are ignored.
func loadAllJSONL(db *sql.DB, dataDir string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	for _, mapping := range jsonlTableMapping {
		records, err := readJSONL(filepath.Join(dataDir, mapping.file))
		if err != nil {
			return fmt.Errorf("reading %s: %w", mapping.file, err)
		}
		if len(records) == 0 {
			continue
		}
		if err := insertRecords(tx, mapping.table, mapping.columns, records); err != nil {
			return fmt.Errorf("loading %s into %s: %w", mapping.file, mapping.table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing load transaction: %w", err)
	}
	return nil
}

// insertRecords inserts parsed JSONL records into a table. Only the listed
// columns are read; nested JSON values are stored as JSON text. Records that
// violate a constraint are skipped.
func insertRecords(tx *sql.Tx, table string, columns []string, records []json.RawMessage) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	stmt, err := tx.Prepare(fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), placeholders))
	if err != nil {
		return fmt.Errorf("preparing insert for %s: %w", table, err)
	}
	defer stmt.Close()

	for _, rec := range records {
		var obj map[string]any
		if err := json.Unmarshal(rec, &obj); err != nil {
			continue
		}
		args := make([]any, len(columns))
		for i, col := range columns {
			switch v := obj[col].(type) {
			case map[string]any, []any:
				b, err := json.Marshal(v)
				if err != nil {
					continue
				}
				args[i] = string(b)
			default:
				args[i] = v
			}
		}
		if _, err := stmt.Exec(args...); err != nil {
			continue
		}
	}
	return nil
}
