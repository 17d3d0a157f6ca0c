// Package density keeps a coarse 3D visit count of agent positions.
package density

import (
	"errors"
	"math"
	"sort"
	"sync"

	"airspace-sim/internal/geometry"
)

var ErrBadGrid = errors.New("density: invalid grid")

type cell struct{ x, z, y int }

// Grid splits a square area of side Range centred on the origin into
// GridCount x GridCount columns, each cut into vertical layers whose
// lower bounds are Heights.
type Grid struct {
	mu      sync.Mutex
	rng     float64
	n       int
	heights []float64
	side    float64
	counts  []int
	last    map[int]cell
	total   int
}

// New creates a grid. Heights must be ascending.
func New(rangeM float64, gridCount int, heights []float64) (*Grid, error) {
	if rangeM <= 0 || gridCount <= 0 || len(heights) == 0 {
		return nil, ErrBadGrid
	}
	if !sort.Float64sAreSorted(heights) {
		return nil, ErrBadGrid
	}
	return &Grid{
		rng:     rangeM,
		n:       gridCount,
		heights: append([]float64(nil), heights...),
		side:    rangeM / float64(gridCount),
		counts:  make([]int, gridCount*gridCount*len(heights)),
		last:    make(map[int]cell),
	}, nil
}

func (g *Grid) cellOf(p geometry.Vec3) cell {
	x := int(math.Floor((p.X + g.rng/2) / g.side))
	z := int(math.Floor((p.Z + g.rng/2) / g.side))
	y := sort.SearchFloat64s(g.heights, p.Y)
	if y == len(g.heights) || g.heights[y] != p.Y {
		y--
	}
	return cell{
		x: geometry.Clamp(x, 0, g.n-1),
		z: geometry.Clamp(z, 0, g.n-1),
		y: geometry.Clamp(y, 0, len(g.heights)-1),
	}
}

func (g *Grid) index(c cell) int {
	return (c.y*g.n+c.z)*g.n + c.x
}

// Observe records the agent position and reports whether it entered a
// new cell.
func (g *Grid) Observe(id int, p geometry.Vec3) bool {
	if !p.IsFinite() {
		return false
	}
	c := g.cellOf(p)
	g.mu.Lock()
	defer g.mu.Unlock()
	if prev, ok := g.last[id]; ok && prev == c {
		return false
	}
	g.last[id] = c
	g.counts[g.index(c)]++
	g.total++
	return true
}

// Forget drops the last known cell of an agent.
func (g *Grid) Forget(id int) {
	g.mu.Lock()
	delete(g.last, id)
	g.mu.Unlock()
}

// Count returns the visits of the cell containing p.
func (g *Grid) Count(p geometry.Vec3) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.counts[g.index(g.cellOf(p))]
}

// Reset clears all counts.
func (g *Grid) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	clear(g.counts)
	clear(g.last)
	g.total = 0
}

// Snapshot is a copy of the grid for display. Cells are indexed
// [layer][z][x].
type Snapshot struct {
	Range    float64   `json:"range"`
	CellSize float64   `json:"cell_size"`
	Heights  []float64 `json:"heights"`
	Total    int       `json:"total"`
	Max      int       `json:"max"`
	Cells    [][][]int `json:"cells"`
}

func (g *Grid) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := Snapshot{
		Range:    g.rng,
		CellSize: g.side,
		Heights:  append([]float64(nil), g.heights...),
		Total:    g.total,
		Cells:    make([][][]int, len(g.heights)),
	}
	for y := range s.Cells {
		s.Cells[y] = make([][]int, g.n)
		for z := range s.Cells[y] {
			row := make([]int, g.n)
			copy(row, g.counts[g.index(cell{z: z, y: y}):])
			s.Cells[y][z] = row
			for _, v := range row {
				s.Max = max(s.Max, v)
			}
		}
	}
	return s
}
