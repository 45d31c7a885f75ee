// Package grid implements the per-container occupancy grid: a dense voxel
// map at one-unit resolution recording which item, if any, occupies each
// cell. The grid is the ground truth for every fit, placement, and
// accessibility query the engine makes.
//
// A Grid is not safe for concurrent use; the engine serialises access per
// container.
package grid

import (
	"fmt"
	"slices"

	"github.com/mesh-intelligence/stowage/pkg/types"
)

// empty marks a free cell.
const empty int32 = 0

// Grid is the occupancy map of one container.
type Grid struct {
	bounds Cell
	cells  []int32 // slot per cell, empty or index+1 into ids

	ids   []string
	slots map[string]int32
	boxes map[string]Box // region last occupied by each item
}

// Candidate is a feasible origin for an extent, with its accessibility score
// (the depth-axis start; lower is closer to the open face).
type Candidate struct {
	Box   Box
	Score int
}

// New returns an empty grid of the given cell bounds.
// Returns ErrInvalidGeometry if any bound is below 1.
func New(bounds Cell) (*Grid, error) {
	if !bounds.Positive() {
		return nil, fmt.Errorf("grid bounds %+v: %w", bounds, types.ErrInvalidGeometry)
	}
	return &Grid{
		bounds: bounds,
		cells:  make([]int32, bounds.Volume()),
		slots:  make(map[string]int32),
		boxes:  make(map[string]Box),
	}, nil
}

// Bounds returns the grid size in cells.
func (g *Grid) Bounds() Cell {
	return g.bounds
}

// TotalCells returns the number of cells in the grid.
func (g *Grid) TotalCells() int {
	return len(g.cells)
}

// UsedCells returns the number of occupied cells.
func (g *Grid) UsedCells() int {
	n := 0
	for _, s := range g.cells {
		if s != empty {
			n++
		}
	}
	return n
}

// FreeCells returns the number of unoccupied cells.
func (g *Grid) FreeCells() int {
	return g.TotalCells() - g.UsedCells()
}

func (g *Grid) inBounds(w, d, h int) bool {
	return w >= 0 && d >= 0 && h >= 0 && w < g.bounds.W && d < g.bounds.D && h < g.bounds.H
}

func (g *Grid) index(w, d, h int) int {
	return (w*g.bounds.D+d)*g.bounds.H + h
}

// IsOccupied reports whether the cell holds an item. Cells outside the grid
// count as occupied so bounds checks compose with fit checks.
func (g *Grid) IsOccupied(w, d, h int) bool {
	if !g.inBounds(w, d, h) {
		return true
	}
	return g.cells[g.index(w, d, h)] != empty
}

// At returns the id of the item occupying the cell, if any.
func (g *Grid) At(w, d, h int) (string, bool) {
	if !g.inBounds(w, d, h) {
		return "", false
	}
	s := g.cells[g.index(w, d, h)]
	if s == empty {
		return "", false
	}
	return g.ids[s-1], true
}

// InBounds reports whether b lies entirely inside the grid.
func (g *Grid) InBounds(b Box) bool {
	return !b.Empty() && BoxAt(Cell{}, g.bounds).Contains(b)
}

// CanFit reports whether an item of the given extent fits with its start
// at origin: the box must lie inside the grid and every cell must be free.
func (g *Grid) CanFit(extent, origin Cell) bool {
	return g.regionFree(BoxAt(origin, extent))
}

func (g *Grid) regionFree(b Box) bool {
	if !g.InBounds(b) {
		return false
	}
	for w := b.Min.W; w < b.Max.W; w++ {
		for d := b.Min.D; d < b.Max.D; d++ {
			for h := b.Min.H; h < b.Max.H; h++ {
				if g.cells[g.index(w, d, h)] != empty {
					return false
				}
			}
		}
	}
	return true
}

// Occupy marks every cell of b as held by id. The region must be free and
// inside the grid; callers check CanFit first. A violation panics with an
// error wrapping ErrCellConflict, and nothing is marked.
func (g *Grid) Occupy(b Box, id string) {
	if id == "" || !g.regionFree(b) {
		panic(fmt.Errorf("occupy %+v by %q: %w", b, id, types.ErrCellConflict))
	}
	if _, held := g.boxes[id]; held {
		panic(fmt.Errorf("occupy %+v: %q already placed: %w", b, id, types.ErrCellConflict))
	}
	slot := g.slot(id)
	for w := b.Min.W; w < b.Max.W; w++ {
		for d := b.Min.D; d < b.Max.D; d++ {
			for h := b.Min.H; h < b.Max.H; h++ {
				g.cells[g.index(w, d, h)] = slot
			}
		}
	}
	g.boxes[id] = b
}

func (g *Grid) slot(id string) int32 {
	if s, ok := g.slots[id]; ok {
		return s
	}
	g.ids = append(g.ids, id)
	s := int32(len(g.ids))
	g.slots[id] = s
	return s
}

// Free clears every cell of b that lies inside the grid. Items whose whole
// region was cleared are forgotten.
func (g *Grid) Free(b Box) {
	seen := make(map[int32]struct{})
	for w := max(b.Min.W, 0); w < min(b.Max.W, g.bounds.W); w++ {
		for d := max(b.Min.D, 0); d < min(b.Max.D, g.bounds.D); d++ {
			for h := max(b.Min.H, 0); h < min(b.Max.H, g.bounds.H); h++ {
				i := g.index(w, d, h)
				if s := g.cells[i]; s != empty {
					seen[s] = struct{}{}
					g.cells[i] = empty
				}
			}
		}
	}
	for s := range seen {
		id := g.ids[s-1]
		if r, ok := g.boxes[id]; ok && b.Contains(r) {
			delete(g.boxes, id)
		}
	}
}

// Remove frees the region held by id and reports whether id was placed.
func (g *Grid) Remove(id string) (Box, bool) {
	b, ok := g.boxes[id]
	if !ok {
		return Box{}, false
	}
	g.Free(b)
	return b, true
}

// Region returns the region id occupies.
func (g *Grid) Region(id string) (Box, bool) {
	b, ok := g.boxes[id]
	return b, ok
}

// Items returns the ids of every placed item, sorted.
func (g *Grid) Items() []string {
	out := make([]string, 0, len(g.boxes))
	for id := range g.boxes {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// CandidatePositions enumerates every integer origin where extent fits,
// ordered by accessibility score (depth start), then width start, then
// height start. The enumeration visits origins in exactly that order.
func (g *Grid) CandidatePositions(extent Cell) []Candidate {
	var out []Candidate
	g.scan(extent, func(c Candidate) bool {
		out = append(out, c)
		return true
	})
	return out
}

// FirstFit returns the best-ranked candidate, the same one
// CandidatePositions would list first, without enumerating the rest.
func (g *Grid) FirstFit(extent Cell) (Candidate, bool) {
	var (
		best  Candidate
		found bool
	)
	g.scan(extent, func(c Candidate) bool {
		best, found = c, true
		return false
	})
	return best, found
}

func (g *Grid) scan(extent Cell, yield func(Candidate) bool) {
	if !extent.Positive() {
		return
	}
	for d := 0; d+extent.D <= g.bounds.D; d++ {
		for w := 0; w+extent.W <= g.bounds.W; w++ {
			for h := 0; h+extent.H <= g.bounds.H; h++ {
				origin := Cell{W: w, D: d, H: h}
				if !g.CanFit(extent, origin) {
					continue
				}
				if !yield(Candidate{Box: BoxAt(origin, extent), Score: d}) {
					return
				}
			}
		}
	}
}

// AccessibleItems returns the ids of items with at least one cell on the
// open face (depth 0), sorted.
func (g *Grid) AccessibleItems() []string {
	set := make(map[string]struct{})
	for w := 0; w < g.bounds.W; w++ {
		for h := 0; h < g.bounds.H; h++ {
			if id, ok := g.At(w, 0, h); ok {
				set[id] = struct{}{}
			}
		}
	}
	return sortedKeys(set)
}

// BlockingItems returns the ids of items occupying any cell between the
// open face and id's near face, within id's width/height footprint. The
// second result is false if id is not in the grid.
func (g *Grid) BlockingItems(id string) ([]string, bool) {
	b, ok := g.boxes[id]
	if !ok {
		return nil, false
	}
	set := make(map[string]struct{})
	for w := b.Min.W; w < b.Max.W; w++ {
		for h := b.Min.H; h < b.Max.H; h++ {
			for d := 0; d < b.Min.D; d++ {
				if other, ok := g.At(w, d, h); ok && other != id {
					set[other] = struct{}{}
				}
			}
		}
	}
	return sortedKeys(set), true
}

// Cells returns a copy of the cell contents in index order, "" for free
// cells. Two grids with equal Cells are bit-for-bit identical in occupancy.
func (g *Grid) Cells() []string {
	out := make([]string, len(g.cells))
	for i, s := range g.cells {
		if s != empty {
			out[i] = g.ids[s-1]
		}
	}
	return out
}

// Clone returns a deep copy of g.
func (g *Grid) Clone() *Grid {
	c := &Grid{
		bounds: g.bounds,
		cells:  slices.Clone(g.cells),
		ids:    slices.Clone(g.ids),
		slots:  make(map[string]int32, len(g.slots)),
		boxes:  make(map[string]Box, len(g.boxes)),
	}
	for k, v := range g.slots {
		c.slots[k] = v
	}
	for k, v := range g.boxes {
		c.boxes[k] = v
	}
	return c
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
