package evasion

import "airspace-sim/internal/uav"

// WaitAndGo suspends the agent in place until the other agent has moved
// away or the hold times out. The hold itself is run by the agent's flight
// state machine.
type WaitAndGo struct {
	YieldToEvader bool
}

func (WaitAndGo) Name() string { return string(EvasionWaitAndGo) }

func (w WaitAndGo) Apply(now float64, self, other *uav.Agent) bool {
	if w.YieldToEvader && other.EvasionID == self.ID() {
		return false
	}
	// A hold against this agent already timed out; do not wait for it again.
	if self.EvasionID == other.ID() && now > self.WaitDeadline() {
		self.Logger().Debug("wait timeout already spent", "other", other.ID(), "deadline", self.WaitDeadline())
		return false
	}
	if _, ok := self.NextWaypoint(); !ok {
		return false
	}
	if _, ok := other.NextWaypoint(); !ok {
		return false
	}
	self.EvasionID = other.ID()
	self.WaitEvasion = true
	return true
}
