// Coordinate and extent value types.
package types

// Coordinates is a point on the three container axes. Width runs across the
// open face, Depth runs away from it (depth 0 is the open face), and Height
// runs from floor to ceiling.
type Coordinates struct {
	Width  float64 `json:"width"`
	Depth  float64 `json:"depth"`
	Height float64 `json:"height"`
}

// Add returns the component-wise sum of c and o.
func (c Coordinates) Add(o Coordinates) Coordinates {
	return Coordinates{Width: c.Width + o.Width, Depth: c.Depth + o.Depth, Height: c.Height + o.Height}
}

// Sub returns the component-wise difference c - o.
func (c Coordinates) Sub(o Coordinates) Coordinates {
	return Coordinates{Width: c.Width - o.Width, Depth: c.Depth - o.Depth, Height: c.Height - o.Height}
}

// Volume returns the product of the three components, treating c as an extent.
func (c Coordinates) Volume() float64 {
	return c.Width * c.Depth * c.Height
}

// Position is an axis-aligned box given by its start and end corners.
// End is greater than or equal to Start on every axis.
type Position struct {
	StartCoordinates Coordinates `json:"startCoordinates"`
	EndCoordinates   Coordinates `json:"endCoordinates"`
}

// NewPosition returns the box that starts at origin and spans extent.
func NewPosition(origin, extent Coordinates) Position {
	return Position{StartCoordinates: origin, EndCoordinates: origin.Add(extent)}
}

// Extent returns End - Start.
func (p Position) Extent() Coordinates {
	return p.EndCoordinates.Sub(p.StartCoordinates)
}

// Valid reports whether End is not before Start on any axis and no
// coordinate is negative.
func (p Position) Valid() bool {
	s, e := p.StartCoordinates, p.EndCoordinates
	if s.Width < 0 || s.Depth < 0 || s.Height < 0 {
		return false
	}
	return e.Width >= s.Width && e.Depth >= s.Depth && e.Height >= s.Height
}

// Contains reports whether o lies entirely inside p.
func (p Position) Contains(o Position) bool {
	return o.StartCoordinates.Width >= p.StartCoordinates.Width &&
		o.StartCoordinates.Depth >= p.StartCoordinates.Depth &&
		o.StartCoordinates.Height >= p.StartCoordinates.Height &&
		o.EndCoordinates.Width <= p.EndCoordinates.Width &&
		o.EndCoordinates.Depth <= p.EndCoordinates.Depth &&
		o.EndCoordinates.Height <= p.EndCoordinates.Height
}

// Overlaps reports whether p and o share any interior volume.
func (p Position) Overlaps(o Position) bool {
	return p.StartCoordinates.Width < o.EndCoordinates.Width && o.StartCoordinates.Width < p.EndCoordinates.Width &&
		p.StartCoordinates.Depth < o.EndCoordinates.Depth && o.StartCoordinates.Depth < p.EndCoordinates.Depth &&
		p.StartCoordinates.Height < o.EndCoordinates.Height && o.StartCoordinates.Height < p.EndCoordinates.Height
}
