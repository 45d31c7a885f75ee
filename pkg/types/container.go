// Container entity.
package types

import "math"

// Container is a rigid, axis-aligned storage volume. The open face is the
// Width x Height plane at depth 0. Containers are never resized.
type Container struct {
	ContainerID string  `json:"containerId"`
	Zone        string  `json:"zone"`
	Width       float64 `json:"width"`
	Depth       float64 `json:"depth"`
	Height      float64 `json:"height"`
}

// Extent returns the container's dimensions as a Coordinates extent.
func (c Container) Extent() Coordinates {
	return Coordinates{Width: c.Width, Depth: c.Depth, Height: c.Height}
}

// Validate checks that the container has an id and at least one whole cell
// on every axis. Returns ErrInvalidRequest or ErrInvalidGeometry.
func (c Container) Validate() error {
	if c.ContainerID == "" {
		return ErrInvalidRequest
	}
	for _, v := range []float64{c.Width, c.Depth, c.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) || math.Floor(v) < 1 {
			return ErrInvalidGeometry
		}
	}
	return nil
}

// SameGeometry reports whether c and o describe the same volume and zone.
func (c Container) SameGeometry(o Container) bool {
	return c.Zone == o.Zone && c.Width == o.Width && c.Depth == o.Depth && c.Height == o.Height
}

// ContainerUsage summarises occupancy of one container in cells.
type ContainerUsage struct {
	Container
	TotalCells int      `json:"totalCells"`
	UsedCells  int      `json:"usedCells"`
	FreeCells  int      `json:"freeCells"`
	Items      []string `json:"items"`
}

// Utilization returns UsedCells / TotalCells.
func (u ContainerUsage) Utilization() float64 {
	if u.TotalCells == 0 {
		return 0
	}
	return float64(u.UsedCells) / float64(u.TotalCells)
}
