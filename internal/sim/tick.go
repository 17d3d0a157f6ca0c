package sim

import (
	"context"
	"errors"
	"math"
	"slices"
	"time"

	"airspace-sim/internal/conflict"
	"airspace-sim/internal/geometry"
	"airspace-sim/internal/logging"
	"airspace-sim/internal/telemetry"
	"airspace-sim/internal/uav"
)

// Run starts the real-time simulation loop and stops when the context is
// done. Every wall tick advances TimeScale times as much simulated time.
func (s *Simulator) Run(ctx context.Context) error {
	log := logging.FromContext(ctx)
	log.Info("starting simulator", "tick_interval", s.tickInterval, "time_scale", s.cfg.TimeScale)
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	step := s.tickInterval.Seconds() * s.cfg.TimeScale
	for {
		select {
		case <-ticker.C:
			if err := s.RunFor(ctx, step); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					log.Info("stopping simulator")
					return nil
				}
				return err
			}
		case <-ctx.Done():
			log.Info("stopping simulator")
			return nil
		}
	}
}

// RunFor advances the simulation by seconds of simulated time as fast as
// possible. Time shorter than a tick is carried into the next call, so
// repeated short calls add up to the requested total.
func (s *Simulator) RunFor(ctx context.Context, seconds float64) error {
	total := s.carry + seconds
	steps := int(math.Floor(total/s.dt + 1e-9))
	s.carry = max(0, total-float64(steps)*s.dt)
	for i := 0; i < steps; i++ {
		if err := s.Tick(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Tick advances every agent by one fixed step.
func (s *Simulator) Tick(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.now += s.dt
	s.spawnDue()
	s.planner.Process()

	if err := s.updateProximity(ctx); err != nil {
		return err
	}
	s.updateConflicts()
	s.advanceAgents()
	if s.now >= s.nextCheck {
		s.periodicChecks()
		for s.nextCheck <= s.now {
			s.nextCheck++
		}
	}
	s.applyRemovals()
	s.emitTelemetry(ctx)
	return nil
}

func (s *Simulator) spawnDue() {
	if s.spawner == nil {
		return
	}
	for _, req := range s.spawner.Due(s.now) {
		if _, err := s.addAgentLocked(s.nextID, req.Params, req.Origin, req.Target, nil); err != nil {
			s.log.Warn("spawn failed", "uav", s.nextID, "err", err)
			s.nextID++
		}
	}
}

func (s *Simulator) updateProximity(ctx context.Context) error {
	positions := make(map[int]geometry.Vec3, len(s.order))
	for _, id := range s.order {
		positions[id] = s.agents[id].Position()
	}
	ev, err := s.index.Tick(ctx, positions)
	if err != nil {
		return err
	}
	for _, p := range ev.Entered {
		a, okA := s.agents[p.A]
		b, okB := s.agents[p.B]
		if !okA || !okB {
			continue
		}
		a.Tracker().Add(p.B, b.CrashRadius())
		b.Tracker().Add(p.A, a.CrashRadius())
	}
	for _, p := range ev.Exited {
		if a, ok := s.agents[p.A]; ok {
			a.Tracker().Remove(p.B, s.responder)
		}
		if b, ok := s.agents[p.B]; ok {
			b.Tracker().Remove(p.A, s.responder)
		}
	}
	return nil
}

func (s *Simulator) lookup(id int) (conflict.Body, bool) {
	a, ok := s.agents[id]
	if !ok {
		return nil, false
	}
	return a, true
}

func (s *Simulator) locate(id int) (geometry.Vec3, bool) {
	a, ok := s.agents[id]
	if !ok {
		return geometry.Vec3{}, false
	}
	return a.Position(), true
}

func (s *Simulator) updateConflicts() {
	for _, id := range s.order {
		a := s.agents[id]
		a.Tracker().Update(a, s.lookup, s.responder)
	}
}

func (s *Simulator) advanceAgents() {
	for _, id := range s.order {
		if s.agents[id].Advance(s.now, s.dt, s.locate) {
			s.stageRemoval(id, EventLanded)
		}
	}
}

// periodicChecks runs once per simulated second: the stuck agent watchdog
// and the density grid.
func (s *Simulator) periodicChecks() {
	for _, id := range s.order {
		a := s.agents[id]
		if !a.State().Airborne() {
			continue
		}
		if a.CheckStationary(s.cfg.WatchdogLimit) {
			s.log.Warn("watchdog removing stationary agent", "uav", id, "pos", a.Position())
			s.stageRemoval(id, EventWatchdog)
			continue
		}
		s.density.Observe(id, a.Position())
	}
}

func (s *Simulator) stageRemoval(id int, reason string) {
	s.removals = append(s.removals, removal{id: id, reason: reason})
}

// applyRemovals drops staged agents after the conflict pass. Every other
// tracker forgets them first so active levels get their end events.
func (s *Simulator) applyRemovals() {
	if len(s.removals) == 0 {
		return
	}
	for _, r := range s.removals {
		a, ok := s.agents[r.id]
		if !ok {
			continue
		}
		for _, oid := range s.order {
			if oid == r.id {
				continue
			}
			if o, ok := s.agents[oid]; ok {
				o.Tracker().Remove(r.id, s.responder)
			}
		}
		for _, inst := range a.Tracker().Instances() {
			a.Tracker().Remove(inst.Other, s.responder)
		}

		s.stats.FlightFinished(a.Finish(s.now))
		if h, ok := s.handles[r.id]; ok {
			if err := s.index.Unregister(h); err != nil {
				s.log.Warn("proximity unregister failed", "uav", r.id, "err", err)
			}
			delete(s.handles, r.id)
		}
		s.planner.Forget(r.id)
		s.density.Forget(r.id)
		delete(s.agents, r.id)

		switch r.reason {
		case EventLanded:
			s.landed++
		case EventWatchdog:
			s.removedStuck++
		}
		s.events.add(Event{Time: s.now, Kind: r.reason, Self: r.id, Other: uav.NoAgent, Level: conflict.LevelNone})
	}
	s.order = slices.DeleteFunc(s.order, func(id int) bool {
		_, ok := s.agents[id]
		return !ok
	})
	s.removals = s.removals[:0]
}

func (s *Simulator) emitTelemetry(ctx context.Context) {
	if s.writer == nil {
		return
	}
	if s.cfg.TelemetrySeconds > 0 {
		if s.now < s.nextTelemetry {
			return
		}
		for s.nextTelemetry <= s.now {
			s.nextTelemetry += s.cfg.TelemetrySeconds
		}
	}
	log := logging.FromContext(ctx)
	batch := make([]telemetry.AgentRow, 0, len(s.order))
	for _, id := range s.order {
		batch = append(batch, s.gen.AgentRow(s.agents[id].Snapshot(), s.now))
	}
	if len(batch) == 0 {
		return
	}

	// Batch support if writer implements WriteBatch
	if bw, ok := s.writer.(batchWriter); ok {
		if err := bw.WriteBatch(batch); err != nil {
			log.Error("batch write failed", "err", err)
		}
		return
	}
	for _, row := range batch {
		if err := s.writer.Write(row); err != nil {
			log.Error("write failed", "agent_id", row.AgentID, "err", err)
		}
	}
}
