package evasion

import (
	"airspace-sim/internal/geometry"
	"airspace-sim/internal/uav"
)

const (
	goBackMinSpeed  = 0.3
	goBackSmoothing = 0.5
	goBackResume    = 0.95
)

// GoBack first slows the agent down in proportion to how deep the tracked
// neighbours are inside its Reaction zone. When any of them gets within a
// third of that zone the agent backs off with a repulsion aimed behind it.
type GoBack struct {
	Registry Registry
}

func (GoBack) Name() string { return string(ReactionGoBack) }

func (g GoBack) Apply(now float64, self, other *uav.Agent) bool {
	if !self.FlyingSegment() {
		return false
	}
	watch := make(map[int]bool)
	for _, inst := range self.Tracker().Instances() {
		watch[inst.Other] = true
	}
	watch[other.ID()] = true
	self.SetManeuver(&goBack{reg: g.Registry, watch: watch, mult: 1})
	return true
}

type goBack struct {
	reg     Registry
	watch   map[int]bool
	mult    float64
	backoff *repulsion
}

func (m *goBack) Name() string {
	if m.backoff != nil {
		return "go_back/backoff"
	}
	return string(ReactionGoBack)
}

// proximityRatio maps a distance onto the slowdown ratio in [0, 1].
func proximityRatio(d float64, l [4]float64) float64 {
	awareness, reaction, imminent := l[0], l[1], l[2]
	var r float64
	switch {
	case d <= reaction/2:
		if den := reaction - imminent; den > 0 {
			r = 1 - (d-imminent)/den
		}
	case d <= reaction:
		if den := awareness - reaction; den > 0 {
			r = 0.5 * (1 - (d-reaction)/den)
		}
	}
	return geometry.Clamp01(r)
}

func (m *goBack) Step(a *uav.Agent, now, dt float64) bool {
	if m.backoff != nil {
		return m.backoff.Step(a, now, dt)
	}
	if !a.FlyingSegment() {
		return false
	}

	limits := a.Limits()
	pos := a.Position()
	worst := 0.0
	for id := range m.watch {
		if !a.Tracker().Has(id) {
			continue
		}
		other, ok := m.reg.Agent(id)
		if !ok {
			continue
		}
		d := other.Position().Dist(pos)
		if d <= limits.Reaction()/3 {
			a.Logger().Debug("neighbour critical, backing off", "other", id)
			a.SetSpeedMultiplier(1)
			m.backoff = &repulsion{reg: m.reg, params: backoffRepulsionParams}
			return m.backoff.Step(a, now, dt)
		}
		worst = max(worst, proximityRatio(d, limits))
	}

	if worst <= 0 {
		m.mult = geometry.Lerp(m.mult, 1, goBackSmoothing)
		if m.mult > goBackResume {
			a.SetSpeedMultiplier(1)
			return false
		}
	} else {
		target := geometry.Lerp(1, goBackMinSpeed, worst)
		m.mult = geometry.Lerp(m.mult, target, goBackSmoothing)
	}
	a.SetSpeedMultiplier(m.mult)
	return true
}
