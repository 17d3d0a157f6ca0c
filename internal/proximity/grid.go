package proximity

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"
)

type cell struct{ x, y, z int }

// minCellSize keeps the grid finite when every radius is zero.
const minCellSize = 1.0

func cellOf(x, y, z, size float64) cell {
	return cell{int(math.Floor(x / size)), int(math.Floor(y / size)), int(math.Floor(z / size))}
}

// overlaps returns every pair whose spheres touch. Any two overlapping
// spheres are at most one cell apart because the cell edge equals the
// largest possible radius sum.
func overlaps(ctx context.Context, live []sphere, workers int) ([]Pair, error) {
	if len(live) < 2 {
		return nil, nil
	}
	var maxR float64
	for _, s := range live {
		maxR = math.Max(maxR, s.radius)
	}
	size := math.Max(2*maxR, minCellSize)

	cells := make(map[cell][]int, len(live))
	keys := make([]cell, len(live))
	for i, s := range live {
		c := cellOf(s.pos.X, s.pos.Y, s.pos.Z, size)
		keys[i] = c
		cells[c] = append(cells[c], i)
	}

	chunk := (len(live) + workers - 1) / workers
	results := make([][]Pair, workers)
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := min(lo+chunk, len(live))
		if lo >= hi {
			break
		}
		g.Go(func() error {
			var found []Pair
			for i := lo; i < hi; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				a := live[i]
				c := keys[i]
				for dx := -1; dx <= 1; dx++ {
					for dy := -1; dy <= 1; dy++ {
						for dz := -1; dz <= 1; dz++ {
							for _, j := range cells[cell{c.x + dx, c.y + dy, c.z + dz}] {
								if j <= i {
									continue
								}
								b := live[j]
								if a.id == b.id {
									continue
								}
								reach := a.radius + b.radius
								if a.pos.Sub(b.pos).LenSq() <= reach*reach {
									found = append(found, MakePair(a.id, b.id))
								}
							}
						}
					}
				}
			}
			results[w] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Pair
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}
