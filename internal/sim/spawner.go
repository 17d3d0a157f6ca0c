package sim

import (
	"math"
	"math/rand"

	"airspace-sim/internal/config"
	"airspace-sim/internal/geometry"
	"airspace-sim/internal/uav"
)

const targetAttempts = 32

// SpawnRequest describes an agent the spawner wants created.
type SpawnRequest struct {
	Params uav.Params
	Origin geometry.Vec3
	Target geometry.Vec3
}

// Spawner emits random flights at a fixed rate of simulated time.
type Spawner struct {
	rng       *rand.Rand
	rangeM    float64
	heights   []float64
	byHeading bool
	interval  float64
	next      float64
}

// NewSpawner creates a spawner for cfg driven by r.
func NewSpawner(cfg *config.SimulationConfig, r *rand.Rand) *Spawner {
	sp := &Spawner{
		rng:       r,
		rangeM:    cfg.RangeMeters(),
		heights:   cfg.Heights(),
		byHeading: cfg.FlightLevels.ByHeading,
	}
	sp.SetRate(cfg.Spawn.FlightsPerHour, 0)
	return sp
}

// SetRate sets flights per simulated hour starting at now. A rate of zero
// stops spawning.
func (sp *Spawner) SetRate(flightsPerHour, now float64) {
	if flightsPerHour <= 0 {
		sp.interval = 0
		return
	}
	sp.interval = 3600 / flightsPerHour
	sp.next = now
}

// Interval returns the simulated seconds between spawns.
func (sp *Spawner) Interval() float64 { return sp.interval }

// Due returns every request scheduled at or before now.
func (sp *Spawner) Due(now float64) []SpawnRequest {
	var out []SpawnRequest
	for sp.interval > 0 && sp.next <= now {
		out = append(out, sp.Generate())
		sp.next += sp.interval
	}
	return out
}

// RandomParams draws agent stats: speeds in 1..30 with speed not above the
// maximum, flight time 15..60 minutes, diameter 0.1..3.
func RandomParams(r *rand.Rand) uav.Params {
	maxSpeed := float64(r.Intn(30) + 1)
	speed := float64(r.Intn(30) + 1)
	for speed > maxSpeed {
		speed = float64(r.Intn(30) + 1)
	}
	return uav.Params{
		MaxSpeed:      maxSpeed,
		Speed:         speed,
		Diameter:      0.1 + r.Float64()*2.9,
		MaxFlightTime: float64(r.Intn(45*60) + 15*60),
	}
}

func (sp *Spawner) randomPosition() geometry.Vec3 {
	half := sp.rangeM / 2
	return geometry.V(sp.rng.Float64()*sp.rangeM-half, 0, sp.rng.Float64()*sp.rangeM-half)
}

// Generate draws one flight. Targets are redrawn a few times when out of
// range; the planner clamps whatever is left.
func (sp *Spawner) Generate() SpawnRequest {
	p := RandomParams(sp.rng)
	origin := sp.randomPosition()
	target := sp.randomPosition()
	reach := p.Speed * p.MaxFlightTime * 0.5
	for i := 0; i < targetAttempts && origin.Dist(target) > reach; i++ {
		target = sp.randomPosition()
	}
	if sp.byHeading {
		p.CruiseHeight = sp.heights[sectorLevel(origin, target, len(sp.heights))]
	} else {
		p.CruiseHeight = sp.heights[sp.rng.Intn(len(sp.heights))]
	}
	return SpawnRequest{Params: p, Origin: origin, Target: target}
}

// sectorLevel maps the compass sector of the flight onto one of n levels.
func sectorLevel(from, to geometry.Vec3, n int) int {
	d := to.Sub(from)
	angle := geometry.Angle(d, geometry.V(1, 0, 0))
	if d.Dot(geometry.V(0, 0, 1)) <= 0 {
		angle += 180
	}
	lvl := int(math.Floor(angle / (360 / float64(n))))
	return geometry.Clamp(lvl, 0, n-1)
}
