// JSON record structures for the JSONL data files. Field names match the
// SQLite columns so the loader can insert records generically.
package sqlite

import (
	"time"

	"github.com/mesh-intelligence/stowage/pkg/types"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Parse(time.RFC3339Nano, s)
	}
	return t, nil
}

// containerJSON represents a container in containers.jsonl.
type containerJSON struct {
	ContainerID string  `json:"container_id"`
	Zone        string  `json:"zone"`
	Width       float64 `json:"width"`
	Depth       float64 `json:"depth"`
	Height      float64 `json:"height"`
}

// itemJSON represents an item in items.jsonl.
type itemJSON struct {
	ItemID        string  `json:"item_id"`
	Name          string  `json:"name"`
	Width         float64 `json:"width"`
	Depth         float64 `json:"depth"`
	Height        float64 `json:"height"`
	Mass          float64 `json:"mass"`
	Priority      int     `json:"priority"`
	ExpiryDate    *string `json:"expiry_date"`
	UsageLimit    *int    `json:"usage_limit"`
	CurrentUses   int     `json:"current_uses"`
	PreferredZone string  `json:"preferred_zone"`
	IsWaste       bool    `json:"is_waste"`
	Disposed      bool    `json:"disposed"`
}

// placementJSON represents a placement in placements.jsonl.
type placementJSON struct {
	ItemID      string  `json:"item_id"`
	ContainerID string  `json:"container_id"`
	StartWidth  float64 `json:"start_width"`
	StartDepth  float64 `json:"start_depth"`
	StartHeight float64 `json:"start_height"`
	EndWidth    float64 `json:"end_width"`
	EndDepth    float64 `json:"end_depth"`
	EndHeight   float64 `json:"end_height"`
}

// metaJSON represents a key/value pair in meta.jsonl.
type metaJSON struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// logJSON represents an audit entry in logs.jsonl.
type logJSON struct {
	LogID      string         `json:"log_id"`
	Timestamp  string         `json:"timestamp"`
	UserID     string         `json:"user_id"`
	ActionType string         `json:"action_type"`
	ItemID     string         `json:"item_id"`
	Details    map[string]any `json:"details"`
}

func containerRecord(c types.Container) containerJSON {
	return containerJSON{ContainerID: c.ContainerID, Zone: c.Zone, Width: c.Width, Depth: c.Depth, Height: c.Height}
}

func itemRecord(it types.Item) itemJSON {
	rec := itemJSON{
		ItemID:        it.ItemID,
		Name:          it.Name,
		Width:         it.Width,
		Depth:         it.Depth,
		Height:        it.Height,
		Mass:          it.Mass,
		Priority:      it.Priority,
		UsageLimit:    it.UsageLimit,
		CurrentUses:   it.CurrentUses,
		PreferredZone: it.PreferredZone,
		IsWaste:       it.Waste,
		Disposed:      it.Disposed,
	}
	if it.ExpiryDate != nil && !it.ExpiryDate.IsZero() {
		s := formatTime(it.ExpiryDate.Time)
		rec.ExpiryDate = &s
	}
	return rec
}

func placementRecord(p types.Placement) placementJSON {
	s, e := p.Position.StartCoordinates, p.Position.EndCoordinates
	return placementJSON{
		ItemID:      p.ItemID,
		ContainerID: p.ContainerID,
		StartWidth:  s.Width,
		StartDepth:  s.Depth,
		StartHeight: s.Height,
		EndWidth:    e.Width,
		EndDepth:    e.Depth,
		EndHeight:   e.Height,
	}
}

func logRecord(e types.LogEntry) logJSON {
	return logJSON{
		LogID:      e.LogID,
		Timestamp:  formatTime(e.Timestamp),
		UserID:     e.UserID,
		ActionType: e.ActionType,
		ItemID:     e.ItemID,
		Details:    e.Details,
	}
}
