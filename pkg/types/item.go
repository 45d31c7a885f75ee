// Item entity and the lifecycle (waste) classifier.
package types

import "math"

// Waste reasons reported by Classify.
const (
	ReasonExpired   = "Expired"
	ReasonOutOfUses = "Out of Uses"
)

// Item is a cargo record. Where an item is stowed is not part of the
// entity; the engine owns the item-to-container relation.
type Item struct {
	ItemID        string  `json:"itemId"`
	Name          string  `json:"name"`
	Width         float64 `json:"width"`
	Depth         float64 `json:"depth"`
	Height        float64 `json:"height"`
	Mass          float64 `json:"mass"`
	Priority      int     `json:"priority"`
	ExpiryDate    *Date   `json:"expiryDate,omitempty"`
	UsageLimit    *int    `json:"usageLimit,omitempty"`
	CurrentUses   int     `json:"currentUses"`
	PreferredZone string  `json:"preferredZone,omitempty"`

	// Waste is set by the day simulation once the item has been classified
	// as waste; Classify never sets it.
	Waste bool `json:"isWaste"`

	// Disposed is set when the item left the station in an undocked
	// container. Disposed items are never placed again.
	Disposed bool `json:"disposed,omitempty"`
}

// Extent returns the item's dimensions as a Coordinates extent.
func (i Item) Extent() Coordinates {
	return Coordinates{Width: i.Width, Depth: i.Depth, Height: i.Height}
}

// Volume returns width * depth * height.
func (i Item) Volume() float64 {
	return i.Extent().Volume()
}

// Validate checks that the item has an id and positive, finite dimensions.
// Returns ErrInvalidRequest or ErrInvalidGeometry.
func (i Item) Validate() error {
	if i.ItemID == "" {
		return ErrInvalidRequest
	}
	for _, v := range []float64{i.Width, i.Depth, i.Height} {
		if !(v > 0) || math.IsInf(v, 0) {
			return ErrInvalidGeometry
		}
	}
	if i.Mass < 0 || math.IsNaN(i.Mass) {
		return ErrInvalidRequest
	}
	if i.UsageLimit != nil && *i.UsageLimit < 0 {
		return ErrInvalidRequest
	}
	return nil
}

// IsExpired reports whether the item has an expiry date and now is after it.
func (i Item) IsExpired(now Date) bool {
	if i.ExpiryDate == nil || i.ExpiryDate.IsZero() {
		return false
	}
	return now.After(i.ExpiryDate.Time)
}

// IsDepleted reports whether the item has a usage limit and has reached it.
func (i Item) IsDepleted() bool {
	return i.UsageLimit != nil && i.CurrentUses >= *i.UsageLimit
}

// RemainingUses returns the uses left before depletion, or nil when the
// item has no usage limit.
func (i Item) RemainingUses() *int {
	if i.UsageLimit == nil {
		return nil
	}
	left := *i.UsageLimit - i.CurrentUses
	if left < 0 {
		left = 0
	}
	return &left
}

// Use records one use and returns the new use count. Counts never decrease.
func (i *Item) Use() int {
	i.CurrentUses++
	return i.CurrentUses
}

// Classify returns the waste reason for item at now, or "" if it is not
// waste. Expiry takes precedence over depletion when both hold.
func Classify(item Item, now Date) string {
	switch {
	case item.IsExpired(now):
		return ReasonExpired
	case item.IsDepleted():
		return ReasonOutOfUses
	default:
		return ""
	}
}

// IsWaste reports whether Classify finds a waste reason for item at now.
func IsWaste(item Item, now Date) bool {
	return Classify(item, now) != ""
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
