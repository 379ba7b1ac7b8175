// Package spatial implements the uniform hash grid used for SPH
// neighbor search.
//
// The grid is rebuilt from scratch every step: Populate assigns each
// particle to one cell, FindNeighbors walks every cell's 3x3x3 window
// and records each unordered candidate pair exactly once (j > i).
package spatial

import (
	"fmt"
	"math"
)

// MaxAxes is the number of axes a Grid can describe.
const MaxAxes = 3

// padding is the number of extra cells added per axis so that every
// in-domain particle has a full window of neighbor cells inside the grid.
const padding = 3

// Grid is an axis-aligned decomposition of space into cubic cells.
// Axes beyond len(Count) behave as a single cell at offset 0.
type Grid struct {
	Count  []int
	Offset []float64
}

// ComputeGrid builds a grid with the given cell length that strictly
// contains extents ([min, max] per axis) and is centered on them.
func ComputeGrid(extents [][2]float64, cellLength float64) Grid {
	g := Grid{
		Count:  make([]int, len(extents)),
		Offset: make([]float64, len(extents)),
	}

	for i, e := range extents {
		lo, hi := e[0], e[1]
		g.Count[i] = int(math.Ceil((hi-lo)/cellLength)) + padding
		size := float64(g.Count[i]) * cellLength
		g.Offset[i] = (lo+hi)/2 - size/2
	}

	return g
}

func (g Grid) count(axis int) int {
	if axis < len(g.Count) {
		return g.Count[axis]
	}
	return 1
}

func (g Grid) offset(axis int) float64 {
	if axis < len(g.Offset) {
		return g.Offset[axis]
	}
	return 0
}

// NumCells returns the number of buckets a CellContents slice needs.
func (g Grid) NumCells() int {
	if len(g.Count) == 0 {
		return 0
	}
	n := 1
	for a := 0; a < MaxAxes; a++ {
		n *= g.count(a)
	}
	return n
}

// Cell returns the integer cell coordinate of a position.
func (g Grid) Cell(x, y, z, invH float64) [3]int {
	pos := [3]float64{x, y, z}
	var c [3]int
	for a := 0; a < len(g.Count) && a < MaxAxes; a++ {
		c[a] = int(math.Floor((pos[a] - g.offset(a)) * invH))
	}
	return c
}

// Hash returns the linear index of a cell. There is no wraparound: a
// coordinate outside the grid means the padding contract was broken,
// which is unrecoverable.
func (g Grid) Hash(cx, cy, cz int) int {
	c := [3]int{cx, cy, cz}
	for a := 0; a < MaxAxes; a++ {
		if c[a] < 0 || c[a] >= g.count(a) {
			panic(fmt.Sprintf("spatial: cell (%d, %d, %d) outside grid %v", cx, cy, cz, g.Count))
		}
	}
	return cx + g.count(0)*(cy+g.count(1)*cz)
}

// Contains reports whether a cell coordinate lies inside the grid.
func (g Grid) Contains(cx, cy, cz int) bool {
	return cx >= 0 && cx < g.count(0) &&
		cy >= 0 && cy < g.count(1) &&
		cz >= 0 && cz < g.count(2)
}

// ContainsPoint reports whether a position falls in a cell inside the
// grid, i.e. whether Hash would accept its Cell. NaN never does.
func (g Grid) ContainsPoint(x, y, z, invH float64) bool {
	pos := [3]float64{x, y, z}
	for a := 0; a < len(g.Count) && a < MaxAxes; a++ {
		f := (pos[a] - g.offset(a)) * invH
		if !(f >= 0 && f < float64(g.count(a))) {
			return false
		}
	}
	return true
}

// NewCellContents allocates one empty bucket per cell.
func NewCellContents(g Grid) [][]int {
	return make([][]int, g.NumCells())
}

// Populate clears every bucket and assigns each particle to the cell
// containing it. ys and zs may be nil for lower-dimensional layouts.
// pointToCell, when non-nil, receives the linear cell of each particle.
func Populate(g Grid, xs, ys, zs []float64, invH float64, contents [][]int, pointToCell []int) {
	for i := range contents {
		contents[i] = contents[i][:0]
	}

	for i := range xs {
		var y, z float64
		if ys != nil {
			y = ys[i]
		}
		if zs != nil {
			z = zs[i]
		}

		c := g.Cell(xs[i], y, z, invH)
		idx := g.Hash(c[0], c[1], c[2])
		contents[idx] = append(contents[idx], i)
		if pointToCell != nil {
			pointToCell[i] = idx
		}
	}
}

// FindNeighbors fills neighbors[i] with every candidate j > i found in
// i's cell or one of the adjacent cells. Windows are clamped at the
// grid edges.
func FindNeighbors(g Grid, contents [][]int, neighbors [][]int) {
	for i := range neighbors {
		neighbors[i] = neighbors[i][:0]
	}
	if len(g.Count) == 0 {
		return
	}

	nx, ny, nz := g.count(0), g.count(1), g.count(2)
	for x := 0; x < nx; x++ {
		for y := 0; y < ny; y++ {
			for z := 0; z < nz; z++ {
				src := contents[g.Hash(x, y, z)]
				if len(src) == 0 {
					continue
				}

				for dx := -1; dx <= 1; dx++ {
					for dy := -1; dy <= 1; dy++ {
						for dz := -1; dz <= 1; dz++ {
							if !g.Contains(x+dx, y+dy, z+dz) {
								continue
							}
							dst := contents[g.Hash(x+dx, y+dy, z+dz)]
							for _, i := range src {
								for _, j := range dst {
									if i < j {
										neighbors[i] = append(neighbors[i], j)
									}
								}
							}
						}
					}
				}
			}
		}
	}
}

// Occupancy returns the largest bucket size and the number of
// non-empty cells.
func Occupancy(contents [][]int) (maxPerCell, occupied int) {
	for _, c := range contents {
		if len(c) > 0 {
			occupied++
		}
		if len(c) > maxPerCell {
			maxPerCell = len(c)
		}
	}
	return maxPerCell, occupied
}
