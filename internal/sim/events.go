package sim

import (
	"airspace-sim/internal/conflict"
	"airspace-sim/internal/uav"
)

// Event kinds recorded in the event log.
const (
	EventSpawn         = "spawn"
	EventConflictStart = "conflict_start"
	EventConflictEnd   = "conflict_end"
	EventCrash         = "crash"
	EventLanded        = "landed"
	EventWatchdog      = "watchdog"
	EventReset         = "reset"
)

// Event is one entry of the bounded simulation event log.
type Event struct {
	Time     float64 `json:"sim_time"`
	Kind     string  `json:"kind"`
	Self     int     `json:"self"`
	Other    int     `json:"other"`
	Level    int     `json:"level"`
	Distance float64 `json:"distance,omitempty"`
}

// eventLog is a ring buffer keeping the most recent events.
type eventLog struct {
	buf   []Event
	start int
	n     int
}

func newEventLog(size int) *eventLog {
	if size <= 0 {
		size = 1
	}
	return &eventLog{buf: make([]Event, size)}
}

func (l *eventLog) add(e Event) {
	if l.n < len(l.buf) {
		l.buf[(l.start+l.n)%len(l.buf)] = e
		l.n++
		return
	}
	l.buf[l.start] = e
	l.start = (l.start + 1) % len(l.buf)
}

// last returns up to limit most recent events, oldest first. A limit of
// zero or less returns all.
func (l *eventLog) last(limit int) []Event {
	if limit <= 0 || limit > l.n {
		limit = l.n
	}
	out := make([]Event, limit)
	for i := range out {
		out[i] = l.buf[(l.start+l.n-limit+i)%len(l.buf)]
	}
	return out
}

func (l *eventLog) reset() {
	l.start, l.n = 0, 0
}

// Events returns up to limit most recent events, oldest first.
func (s *Simulator) Events(limit int) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events.last(limit)
}

// recorder forwards conflict transitions to statistics and the event log.
// It runs inside a tick with the simulator lock held.
type recorder struct{ s *Simulator }

func (r *recorder) ConflictStarted(ev conflict.Event, now float64) {
	r.s.stats.ConflictStarted(ev, now)
	r.s.events.add(Event{Time: now, Kind: EventConflictStart, Self: ev.Self, Other: ev.Other, Level: ev.Level, Distance: ev.Distance})
}

func (r *recorder) ConflictEnded(ev conflict.Event, now float64) {
	r.s.stats.ConflictEnded(ev, now)
	r.s.events.add(Event{Time: now, Kind: EventConflictEnd, Self: ev.Self, Other: ev.Other, Level: ev.Level, Distance: ev.Distance})
}

func (r *recorder) Crash(ev conflict.Event, a *uav.Agent, now float64) {
	r.s.stats.Crash(ev, a, now)
	r.s.events.add(Event{Time: now, Kind: EventCrash, Self: ev.Self, Other: ev.Other, Level: ev.Level, Distance: ev.Distance})
}
