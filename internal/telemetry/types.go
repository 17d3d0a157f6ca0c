// Telemetry rows with greptime tags
package telemetry

import (
	"os"
	"time"
)

// AgentRow is one per-tick sample of an agent.
type AgentRow struct {
	RunID     string    `json:"run_id"`     // TAG
	AgentID   string    `json:"agent_id"`   // TAG
	State     string    `json:"state"`      // FIELD
	X         float64   `json:"x"`          // FIELD
	Y         float64   `json:"y"`          // FIELD
	Z         float64   `json:"z"`          // FIELD
	Heading   float64   `json:"heading"`    // FIELD, degrees from +Z
	Speed     float64   `json:"speed"`      // FIELD
	Level     int       `json:"level"`      // FIELD
	Step      int       `json:"step"`       // FIELD
	EvasionID int       `json:"evasion_id"` // FIELD
	Waiting   bool      `json:"waiting"`    // FIELD
	SimTime   float64   `json:"sim_time"`   // FIELD
	Timestamp time.Time `json:"ts"`         // TIME INDEX
}

// Conflict row event kinds.
const (
	EventStart = "start"
	EventEnd   = "end"
	EventCrash = "crash"
)

// ConflictRow records a conflict level transition. Crash rows carry the
// extra flight context fields.
type ConflictRow struct {
	RunID         string    `json:"run_id"`   // TAG
	Event         string    `json:"event"`    // TAG
	Level         int       `json:"level"`    // FIELD
	Self          int       `json:"self"`     // FIELD
	Other         int       `json:"other"`    // FIELD
	Distance      float64   `json:"distance"` // FIELD
	CrashDistance float64   `json:"crash_distance"`
	X             float64   `json:"x"`
	Y             float64   `json:"y"`
	Z             float64   `json:"z"`
	Heading       float64   `json:"heading,omitempty"`
	State         string    `json:"state,omitempty"`
	Step          int       `json:"step,omitempty"`
	Progress      float64   `json:"progress,omitempty"`
	Speed         float64   `json:"speed,omitempty"`
	Diameter      float64   `json:"diameter,omitempty"`
	ActiveTable   string    `json:"active_table,omitempty"`
	NextWaypoint  string    `json:"next_waypoint,omitempty"`
	Target        string    `json:"target,omitempty"`
	SimTime       float64   `json:"sim_time"`
	Timestamp     time.Time `json:"ts"` // TIME INDEX
}

// FlightRow summarises one finished flight.
type FlightRow struct {
	RunID        string    `json:"run_id"`   // TAG
	AgentID      string    `json:"agent_id"` // TAG
	Start        float64   `json:"start"`
	End          float64   `json:"end"`
	Duration     float64   `json:"duration"`
	Distance     float64   `json:"distance"`
	HoldTime     float64   `json:"hold_time"`
	Completed    bool      `json:"completed"`
	Speed        float64   `json:"speed"`
	Diameter     float64   `json:"diameter"`
	MaxAwareness int       `json:"max_awareness"`
	MaxReaction  int       `json:"max_reaction"`
	MaxImminent  int       `json:"max_imminent"`
	MaxCrash     int       `json:"max_crash"`
	Path         string    `json:"path"`
	Timestamp    time.Time `json:"ts"` // TIME INDEX
}

// SweepRow is the result of one density step of a sweep.
type SweepRow struct {
	RunID          string    `json:"run_id"` // TAG
	Mode           string    `json:"mode"`   // TAG
	Range          float64   `json:"range"`
	CollisionRange float64   `json:"collision_range"`
	Evasion        string    `json:"evasion"`
	Reaction       string    `json:"reaction"`
	FlightLevel    float64   `json:"flight_level"`
	Minutes        float64   `json:"minutes"`
	Density        float64   `json:"density"`
	FlightCount    int       `json:"flight_count"`
	Awareness      int       `json:"awareness"`
	Reactions      int       `json:"reactions"`
	Imminent       int       `json:"imminent"`
	Crashes        int       `json:"crashes"`
	Timestamp      time.Time `json:"ts"` // TIME INDEX
}

func envOr(key, def string) string {
	if env := os.Getenv(key); env != "" {
		return env
	}
	return def
}

// Table names default to the uav_* tables and can be overridden through
// the environment.
var (
	AgentTableName    = envOr("GREPTIMEDB_TABLE", "uav_telemetry")
	ConflictTableName = envOr("GREPTIMEDB_CONFLICT_TABLE", "uav_conflicts")
	FlightTableName   = envOr("GREPTIMEDB_FLIGHT_TABLE", "uav_flights")
	SweepTableName    = envOr("GREPTIMEDB_SWEEP_TABLE", "uav_sweep")
)

func (AgentRow) TableName() string    { return AgentTableName }
func (ConflictRow) TableName() string { return ConflictTableName }
func (FlightRow) TableName() string   { return FlightTableName }
func (SweepRow) TableName() string    { return SweepTableName }
