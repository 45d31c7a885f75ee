// Snapshot persistence: containers, items, placements and the mission date.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/stowage/pkg/types"
)

// SaveSnapshot replaces the stored containers, items and placements with
// snap, and stores snap.Date as the mission date when it is set.
func (b *Backend) SaveSnapshot(ctx context.Context, snap types.Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrStoreDetached
	}

	containers := make([]containerJSON, 0, len(snap.Containers))
	for _, c := range snap.Containers {
		containers = append(containers, containerRecord(c))
	}
	items := make([]itemJSON, 0, len(snap.Items))
	for _, it := range snap.Items {
		items = append(items, itemRecord(it))
	}
	placements := make([]placementJSON, 0, len(snap.Placements))
	for _, p := range snap.Placements {
		placements = append(placements, placementRecord(p))
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"placements", "items", "containers"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	for _, c := range containers {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO containers (container_id, zone, width, depth, height) VALUES (?, ?, ?, ?, ?)`,
			c.ContainerID, c.Zone, c.Width, c.Depth, c.Height); err != nil {
			return fmt.Errorf("inserting container %s: %w", c.ContainerID, err)
		}
	}
	for _, it := range items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO items (item_id, name, width, depth, height, mass, priority, expiry_date,
			 usage_limit, current_uses, preferred_zone, is_waste, disposed)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			it.ItemID, it.Name, it.Width, it.Depth, it.Height, it.Mass, it.Priority, it.ExpiryDate,
			it.UsageLimit, it.CurrentUses, it.PreferredZone, it.IsWaste, it.Disposed); err != nil {
			return fmt.Errorf("inserting item %s: %w", it.ItemID, err)
		}
	}
	for _, p := range placements {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO placements (item_id, container_id, start_width, start_depth, start_height,
			 end_width, end_depth, end_height) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ItemID, p.ContainerID, p.StartWidth, p.StartDepth, p.StartHeight,
			p.EndWidth, p.EndDepth, p.EndHeight); err != nil {
			return fmt.Errorf("inserting placement %s: %w", p.ItemID, err)
		}
	}
	if !snap.Date.IsZero() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO meta (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			metaCurrentDate, formatTime(snap.Date.Time)); err != nil {
			return fmt.Errorf("storing mission date: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}

	meta, err := b.metaRecords(ctx)
	if err != nil {
		return err
	}
	files := make(map[string][]json.RawMessage, 4)
	if files[containersJSONL], err = marshalRecords(containers); err != nil {
		return err
	}
	if files[itemsJSONL], err = marshalRecords(items); err != nil {
		return err
	}
	if files[placementsJSONL], err = marshalRecords(placements); err != nil {
		return err
	}
	if files[metaJSONL], err = marshalRecords(meta); err != nil {
		return err
	}
	for name, lines := range files {
		if err := writeJSONL(b.path(name), lines); err != nil {
			return fmt.Errorf("persisting %s: %w", name, err)
		}
	}
	return nil
}

func (b *Backend) metaRecords(ctx context.Context) ([]metaJSON, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT key, value FROM meta ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("querying meta: %w", err)
	}
	defer rows.Close()
	var out []metaJSON
	for rows.Next() {
		var m metaJSON
		if err := rows.Scan(&m.Key, &m.Value); err != nil {
			return nil, fmt.Errorf("scanning meta: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// LoadSnapshot returns the stored state. A fresh data directory yields an
// empty snapshot with a zero Date.
func (b *Backend) LoadSnapshot(ctx context.Context) (types.Snapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return types.Snapshot{}, types.ErrStoreDetached
	}

	snap := types.Snapshot{
		Containers: []types.Container{},
		Items:      []types.Item{},
		Placements: []types.Placement{},
	}
	var err error
	if snap.Containers, err = b.loadContainers(ctx); err != nil {
		return types.Snapshot{}, err
	}
	if snap.Items, err = b.loadItems(ctx); err != nil {
		return types.Snapshot{}, err
	}
	if snap.Placements, err = b.loadPlacements(ctx); err != nil {
		return types.Snapshot{}, err
	}

	var raw string
	err = b.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, metaCurrentDate).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return types.Snapshot{}, fmt.Errorf("querying mission date: %w", err)
	default:
		t, err := parseTime(raw)
		if err != nil {
			return types.Snapshot{}, fmt.Errorf("parsing mission date %q: %w", raw, err)
		}
		snap.Date = types.NewDate(t)
	}
	return snap, nil
}

func (b *Backend) loadContainers(ctx context.Context) ([]types.Container, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT container_id, zone, width, depth, height FROM containers ORDER BY container_id`)
	if err != nil {
		return nil, fmt.Errorf("querying containers: %w", err)
	}
	defer rows.Close()
	out := []types.Container{}
	for rows.Next() {
		var c types.Container
		if err := rows.Scan(&c.ContainerID, &c.Zone, &c.Width, &c.Depth, &c.Height); err != nil {
			return nil, fmt.Errorf("scanning container: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (b *Backend) loadItems(ctx context.Context) ([]types.Item, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT item_id, name, width, depth, height, mass, priority, expiry_date, usage_limit,
		 current_uses, preferred_zone, is_waste, disposed FROM items ORDER BY item_id`)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer rows.Close()
	out := []types.Item{}
	for rows.Next() {
		var (
			it     types.Item
			expiry sql.NullString
			limit  sql.NullInt64
		)
		if err := rows.Scan(&it.ItemID, &it.Name, &it.Width, &it.Depth, &it.Height, &it.Mass,
			&it.Priority, &expiry, &limit, &it.CurrentUses, &it.PreferredZone, &it.Waste, &it.Disposed); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		if expiry.Valid && expiry.String != "" {
			t, err := parseTime(expiry.String)
			if err != nil {
				return nil, fmt.Errorf("item %s expiry %q: %w", it.ItemID, expiry.String, err)
			}
			it.ExpiryDate = types.DatePtr(types.NewDate(t))
		}
		if limit.Valid {
			it.UsageLimit = types.IntPtr(int(limit.Int64))
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (b *Backend) loadPlacements(ctx context.Context) ([]types.Placement, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT item_id, container_id, start_width, start_depth, start_height,
		 end_width, end_depth, end_height FROM placements ORDER BY item_id`)
	if err != nil {
		return nil, fmt.Errorf("querying placements: %w", err)
	}
	defer rows.Close()
	out := []types.Placement{}
	for rows.Next() {
		var p types.Placement
		s, e := &p.Position.StartCoordinates, &p.Position.EndCoordinates
		if err := rows.Scan(&p.ItemID, &p.ContainerID, &s.Width, &s.Depth, &s.Height,
			&e.Width, &e.Depth, &e.Height); err != nil {
			return nil, fmt.Errorf("scanning placement: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
