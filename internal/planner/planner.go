// Package planner answers flight requests with straight cruise routes.
package planner

import (
	"log/slog"

	"airspace-sim/internal/geometry"
	"airspace-sim/internal/uav"
	"airspace-sim/internal/waypoint"
)

// Planner queues flight requests and answers them once per tick, in
// request order.
type Planner struct {
	queue []*uav.Agent
	log   *slog.Logger
}

// New creates an empty planner.
func New(log *slog.Logger) *Planner {
	if log == nil {
		log = slog.Default()
	}
	return &Planner{log: log}
}

// Submit puts a grounded agent into the request queue.
func (p *Planner) Submit(a *uav.Agent) error {
	if err := a.RequestFlight(); err != nil {
		return err
	}
	a.MarkWaiting()
	p.queue = append(p.queue, a)
	return nil
}

// Pending returns the number of unanswered requests.
func (p *Planner) Pending() int { return len(p.queue) }

// Forget drops a queued request, e.g. for an agent removed before it was
// answered.
func (p *Planner) Forget(id int) {
	out := p.queue[:0]
	for _, a := range p.queue {
		if a.ID() != id {
			out = append(out, a)
		}
	}
	clear(p.queue[len(out):])
	p.queue = out
}

// Process answers every queued request and returns how many flights were
// approved.
func (p *Planner) Process() int {
	approved := 0
	for _, a := range p.queue {
		params := a.Params()
		target := Reachable(a.Position(), a.Target(), params.Speed, params.MaxFlightTime)
		if target != a.Target() {
			p.log.Debug("target beyond range, pulled in", "uav", a.ID(), "target", target)
			a.SetTarget(target)
		}
		route := BuildRoute(a.Position(), target, params.Speed, params.CruiseHeight)
		if err := a.Approve(route); err != nil {
			p.log.Warn("cannot approve flight", "uav", a.ID(), "err", err)
			continue
		}
		approved++
	}
	clear(p.queue)
	p.queue = p.queue[:0]
	return approved
}

// Reachable pulls target toward start when it lies beyond half of what the
// agent can fly within its flight time budget. A zero budget means no limit.
func Reachable(start, target geometry.Vec3, speed, maxFlightTime float64) geometry.Vec3 {
	limit := speed * maxFlightTime / 2
	d := start.Dist(target)
	if limit <= 0 || d <= limit {
		return target
	}
	return start.Lerp(target, limit/d)
}

// BuildRoute returns the four waypoint cruise route: climb at the start,
// cruise at height, descend onto the target.
func BuildRoute(start, target geometry.Vec3, speed, height float64) []waypoint.Waypoint {
	origin := waypoint.New(start, speed)
	return []waypoint.Waypoint{
		origin,
		origin.PushToHeight(height, false),
		waypoint.New(target, speed).PushToHeight(height, false),
		waypoint.New(target.WithY(0), speed),
	}
}
