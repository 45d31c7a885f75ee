// Integer cell geometry and the mapping from real-valued positions to cells.
package grid

import (
	"math"

	"github.com/mesh-intelligence/stowage/pkg/types"
)

// Cell is an integer cell coordinate, or a cell count when used as an extent.
type Cell struct {
	W, D, H int
}

// Volume returns W * D * H.
func (c Cell) Volume() int {
	return c.W * c.D * c.H
}

// Add returns the component-wise sum.
func (c Cell) Add(o Cell) Cell {
	return Cell{W: c.W + o.W, D: c.D + o.D, H: c.H + o.H}
}

// Positive reports whether every component is at least 1.
func (c Cell) Positive() bool {
	return c.W > 0 && c.D > 0 && c.H > 0
}

// Box is a half-open cell region [Min, Max) on every axis.
type Box struct {
	Min, Max Cell
}

// BoxAt returns the box with the given origin and extent.
func BoxAt(origin, extent Cell) Box {
	return Box{Min: origin, Max: origin.Add(extent)}
}

// Extent returns Max - Min.
func (b Box) Extent() Cell {
	return Cell{W: b.Max.W - b.Min.W, D: b.Max.D - b.Min.D, H: b.Max.H - b.Min.H}
}

// Empty reports whether the box covers no cell.
func (b Box) Empty() bool {
	return b.Max.W <= b.Min.W || b.Max.D <= b.Min.D || b.Max.H <= b.Min.H
}

// Contains reports whether o lies within b.
func (b Box) Contains(o Box) bool {
	return o.Min.W >= b.Min.W && o.Min.D >= b.Min.D && o.Min.H >= b.Min.H &&
		o.Max.W <= b.Max.W && o.Max.D <= b.Max.D && o.Max.H <= b.Max.H
}

// Position converts the box to real coordinates.
func (b Box) Position() types.Position {
	return types.Position{
		StartCoordinates: types.Coordinates{Width: float64(b.Min.W), Depth: float64(b.Min.D), Height: float64(b.Min.H)},
		EndCoordinates:   types.Coordinates{Width: float64(b.Max.W), Depth: float64(b.Max.D), Height: float64(b.Max.H)},
	}
}

// BoxOf voxelises a position: every axis covers [floor(start), ceil(end)).
// This is the only rounding rule used anywhere in the engine.
func BoxOf(p types.Position) Box {
	return Box{
		Min: Cell{
			W: int(math.Floor(p.StartCoordinates.Width)),
			D: int(math.Floor(p.StartCoordinates.Depth)),
			H: int(math.Floor(p.StartCoordinates.Height)),
		},
		Max: Cell{
			W: int(math.Ceil(p.EndCoordinates.Width)),
			D: int(math.Ceil(p.EndCoordinates.Depth)),
			H: int(math.Ceil(p.EndCoordinates.Height)),
		},
	}
}

// ExtentOf returns the number of cells an item of the given real extent
// spans when its start is cell-aligned: ceil on every axis.
func ExtentOf(c types.Coordinates) Cell {
	return Cell{
		W: int(math.Ceil(c.Width)),
		D: int(math.Ceil(c.Depth)),
		H: int(math.Ceil(c.Height)),
	}
}

// BoundsOf returns the whole cells available inside a container of the
// given real extent: floor on every axis, so no cell pokes out of the walls.
func BoundsOf(c types.Coordinates) Cell {
	return Cell{
		W: int(math.Floor(c.Width)),
		D: int(math.Floor(c.Depth)),
		H: int(math.Floor(c.Height)),
	}
}

// PositionAt returns the real position of an item of extent ext placed with
// its start at origin. End is origin + ext exactly, so BoxOf of the result
// is BoxAt(origin, ExtentOf(ext)).
func PositionAt(origin Cell, ext types.Coordinates) types.Position {
	start := types.Coordinates{Width: float64(origin.W), Depth: float64(origin.D), Height: float64(origin.H)}
	return types.NewPosition(start, ext)
}
