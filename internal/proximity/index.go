// Package proximity implements the broad phase: it finds agent pairs whose
// interest spheres overlap and reports how that set changed since the
// previous tick.
package proximity

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"airspace-sim/internal/geometry"
)

// DefaultCapacity bounds the number of registered spheres.
const DefaultCapacity = 1024

var (
	ErrCapacity   = errors.New("proximity: capacity exceeded")
	ErrRegistered = errors.New("proximity: id already registered")
	ErrHandle     = errors.New("proximity: unknown handle")
)

// Handle identifies a registration.
type Handle int

// Pair is an unordered agent pair stored as (min, max).
type Pair struct {
	A int `json:"a"`
	B int `json:"b"`
}

// MakePair canonicalizes the pair order.
func MakePair(a, b int) Pair {
	if a > b {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

// Key packs the pair into a single map key.
func (p Pair) Key() uint64 { return uint64(uint32(p.A))<<32 | uint64(uint32(p.B)) }

// Other returns the member of p that is not id.
func (p Pair) Other(id int) int {
	if p.A == id {
		return p.B
	}
	return p.A
}

// Events is the difference between two consecutive overlap sets.
type Events struct {
	Entered []Pair
	Stayed  []Pair
	Exited  []Pair
}

type sphere struct {
	id     int
	pos    geometry.Vec3
	radius float64
}

// Index is a uniform-grid broad phase. It is not safe for concurrent use;
// Tick parallelizes its own scan.
type Index struct {
	capacity int
	workers  int
	next     Handle
	spheres  map[Handle]*sphere
	byID     map[int]Handle
	previous map[uint64]Pair
}

// Option configures an Index.
type Option func(*Index)

// WithCapacity overrides DefaultCapacity.
func WithCapacity(n int) Option { return func(ix *Index) { ix.capacity = n } }

// WithWorkers sets how many goroutines Tick may use.
func WithWorkers(n int) Option { return func(ix *Index) { ix.workers = n } }

// New creates an empty index.
func New(opts ...Option) *Index {
	ix := &Index{
		capacity: DefaultCapacity,
		workers:  4,
		spheres:  make(map[Handle]*sphere),
		byID:     make(map[int]Handle),
		previous: make(map[uint64]Pair),
	}
	for _, o := range opts {
		o(ix)
	}
	if ix.workers < 1 {
		ix.workers = 1
	}
	return ix
}

// Register adds a sphere for agent id with the given radius.
func (ix *Index) Register(id int, radius float64) (Handle, error) {
	if _, ok := ix.byID[id]; ok {
		return 0, fmt.Errorf("%w: %d", ErrRegistered, id)
	}
	if len(ix.spheres) >= ix.capacity {
		return 0, ErrCapacity
	}
	h := ix.next
	ix.next++
	ix.spheres[h] = &sphere{id: id, radius: sanitizeRadius(radius)}
	ix.byID[id] = h
	return h, nil
}

// Unregister removes a sphere. Pairs it was part of are reported as exited
// on the next Tick and never again as entered or stayed.
func (ix *Index) Unregister(h Handle) error {
	s, ok := ix.spheres[h]
	if !ok {
		return ErrHandle
	}
	delete(ix.spheres, h)
	delete(ix.byID, s.id)
	return nil
}

// UpdateRadius changes the radius of a registered sphere.
func (ix *Index) UpdateRadius(h Handle, radius float64) error {
	s, ok := ix.spheres[h]
	if !ok {
		return ErrHandle
	}
	s.radius = sanitizeRadius(radius)
	return nil
}

// Lookup returns the handle registered for id.
func (ix *Index) Lookup(id int) (Handle, bool) {
	h, ok := ix.byID[id]
	return h, ok
}

// Len returns the number of registered spheres.
func (ix *Index) Len() int { return len(ix.spheres) }

func sanitizeRadius(r float64) float64 {
	if r < 0 || r != r || r > 1e12 {
		return 0
	}
	return r
}

// Tick moves every sphere whose id is present in positions, recomputes the
// overlap set and returns it as a difference against the previous Tick.
// Each category is sorted by pair so the result does not depend on the
// order in which agents were registered.
func (ix *Index) Tick(ctx context.Context, positions map[int]geometry.Vec3) (Events, error) {
	live := make([]sphere, 0, len(ix.spheres))
	for _, s := range ix.spheres {
		if p, ok := positions[s.id]; ok && p.IsFinite() {
			s.pos = p
		}
		live = append(live, *s)
	}
	slices.SortFunc(live, func(a, b sphere) int { return cmp.Compare(a.id, b.id) })

	pairs, err := overlaps(ctx, live, ix.workers)
	if err != nil {
		return Events{}, err
	}

	current := make(map[uint64]Pair, len(pairs))
	var ev Events
	for _, p := range pairs {
		k := p.Key()
		current[k] = p
		if _, ok := ix.previous[k]; ok {
			ev.Stayed = append(ev.Stayed, p)
		} else {
			ev.Entered = append(ev.Entered, p)
		}
	}
	for k, p := range ix.previous {
		if _, ok := current[k]; !ok {
			ev.Exited = append(ev.Exited, p)
		}
	}
	sortPairs(ev.Entered)
	sortPairs(ev.Stayed)
	sortPairs(ev.Exited)
	ix.previous = current
	return ev, nil
}

func sortPairs(ps []Pair) {
	slices.SortFunc(ps, func(a, b Pair) int {
		if c := cmp.Compare(a.A, b.A); c != 0 {
			return c
		}
		return cmp.Compare(a.B, b.B)
	})
}
