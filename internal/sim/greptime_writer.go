package sim

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"

	"airspace-sim/internal/telemetry"
)

const defaultGreptimePort = 4001

// greptimeClient is the subset of the ingester client used by the writer.
type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeDBWriter writes agent, conflict, flight and sweep rows to
// GreptimeDB via the ingester client. Tables are created on first write.
type GreptimeDBWriter struct {
	client        greptimeClient
	agentTable    string
	conflictTable string
	flightTable   string
	sweepTable    string
	timeout       time.Duration
	log           *slog.Logger
}

// NewGreptimeDBWriter connects to endpoint ("host" or "host:port").
func NewGreptimeDBWriter(endpoint, database string) (*GreptimeDBWriter, error) {
	host, port, err := splitEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	cfg := greptime.NewConfig(host).WithPort(port).WithDatabase(database)
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("greptime client: %w", err)
	}
	return newGreptimeDBWriter(client), nil
}

func newGreptimeDBWriter(client greptimeClient) *GreptimeDBWriter {
	return &GreptimeDBWriter{
		client:        client,
		agentTable:    telemetry.AgentTableName,
		conflictTable: telemetry.ConflictTableName,
		flightTable:   telemetry.FlightTableName,
		sweepTable:    telemetry.SweepTableName,
		timeout:       5 * time.Second,
		log:           slog.Default(),
	}
}

func splitEndpoint(endpoint string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		// No port given.
		return endpoint, defaultGreptimePort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("greptime endpoint %q: %w", endpoint, err)
	}
	return host, port, nil
}

func (w *GreptimeDBWriter) write(tbl *table.Table, name string, n int) error {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	if _, err := w.client.Write(ctx, tbl); err != nil {
		w.log.Error("greptime write failed", "table", name, "rows", n, "err", err)
		return err
	}
	w.log.Debug("greptime write", "table", name, "rows", n)
	return nil
}

// Write inserts a single agent row.
func (w *GreptimeDBWriter) Write(row telemetry.AgentRow) error {
	return w.WriteBatch([]telemetry.AgentRow{row})
}

// WriteBatch inserts multiple agent rows.
func (w *GreptimeDBWriter) WriteBatch(rows []telemetry.AgentRow) error {
	if len(rows) == 0 {
		return nil
	}
	tbl, err := table.New(w.agentTable)
	if err != nil {
		return err
	}
	tbl.AddTagColumn("run_id", types.STRING)
	tbl.AddTagColumn("agent_id", types.STRING)
	tbl.AddFieldColumn("state", types.STRING)
	tbl.AddFieldColumn("x", types.FLOAT64)
	tbl.AddFieldColumn("y", types.FLOAT64)
	tbl.AddFieldColumn("z", types.FLOAT64)
	tbl.AddFieldColumn("heading", types.FLOAT64)
	tbl.AddFieldColumn("speed", types.FLOAT64)
	tbl.AddFieldColumn("level", types.INT64)
	tbl.AddFieldColumn("step", types.INT64)
	tbl.AddFieldColumn("evasion_id", types.INT64)
	tbl.AddFieldColumn("waiting", types.BOOLEAN)
	tbl.AddFieldColumn("sim_time", types.FLOAT64)
	tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND)

	for _, r := range rows {
		if err := tbl.AddRow(r.RunID, r.AgentID, r.State, r.X, r.Y, r.Z, r.Heading, r.Speed,
			int64(r.Level), int64(r.Step), int64(r.EvasionID), r.Waiting, r.SimTime, r.Timestamp); err != nil {
			return err
		}
	}
	return w.write(tbl, w.agentTable, len(rows))
}

// WriteConflict inserts one conflict transition.
func (w *GreptimeDBWriter) WriteConflict(r telemetry.ConflictRow) error {
	tbl, err := table.New(w.conflictTable)
	if err != nil {
		return err
	}
	tbl.AddTagColumn("run_id", types.STRING)
	tbl.AddTagColumn("event", types.STRING)
	tbl.AddFieldColumn("level", types.INT64)
	tbl.AddFieldColumn("self", types.INT64)
	tbl.AddFieldColumn("other", types.INT64)
	tbl.AddFieldColumn("distance", types.FLOAT64)
	tbl.AddFieldColumn("crash_distance", types.FLOAT64)
	tbl.AddFieldColumn("x", types.FLOAT64)
	tbl.AddFieldColumn("y", types.FLOAT64)
	tbl.AddFieldColumn("z", types.FLOAT64)
	tbl.AddFieldColumn("state", types.STRING)
	tbl.AddFieldColumn("step", types.INT64)
	tbl.AddFieldColumn("active_table", types.STRING)
	tbl.AddFieldColumn("next_waypoint", types.STRING)
	tbl.AddFieldColumn("target", types.STRING)
	tbl.AddFieldColumn("sim_time", types.FLOAT64)
	tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND)

	if err := tbl.AddRow(r.RunID, r.Event, int64(r.Level), int64(r.Self), int64(r.Other),
		r.Distance, r.CrashDistance, r.X, r.Y, r.Z, r.State, int64(r.Step),
		r.ActiveTable, r.NextWaypoint, r.Target, r.SimTime, r.Timestamp); err != nil {
		return err
	}
	return w.write(tbl, w.conflictTable, 1)
}

// WriteFlight inserts one finished flight.
func (w *GreptimeDBWriter) WriteFlight(r telemetry.FlightRow) error {
	tbl, err := table.New(w.flightTable)
	if err != nil {
		return err
	}
	tbl.AddTagColumn("run_id", types.STRING)
	tbl.AddTagColumn("agent_id", types.STRING)
	tbl.AddFieldColumn("start", types.FLOAT64)
	tbl.AddFieldColumn("end", types.FLOAT64)
	tbl.AddFieldColumn("duration", types.FLOAT64)
	tbl.AddFieldColumn("distance", types.FLOAT64)
	tbl.AddFieldColumn("hold_time", types.FLOAT64)
	tbl.AddFieldColumn("completed", types.BOOLEAN)
	tbl.AddFieldColumn("max_awareness", types.INT64)
	tbl.AddFieldColumn("max_reaction", types.INT64)
	tbl.AddFieldColumn("max_imminent", types.INT64)
	tbl.AddFieldColumn("max_crash", types.INT64)
	tbl.AddFieldColumn("path", types.STRING)
	tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND)

	if err := tbl.AddRow(r.RunID, r.AgentID, r.Start, r.End, r.Duration, r.Distance, r.HoldTime,
		r.Completed, int64(r.MaxAwareness), int64(r.MaxReaction), int64(r.MaxImminent),
		int64(r.MaxCrash), r.Path, r.Timestamp); err != nil {
		return err
	}
	return w.write(tbl, w.flightTable, 1)
}

// WriteSweep inserts one sweep result row.
func (w *GreptimeDBWriter) WriteSweep(r telemetry.SweepRow) error {
	tbl, err := table.New(w.sweepTable)
	if err != nil {
		return err
	}
	tbl.AddTagColumn("run_id", types.STRING)
	tbl.AddTagColumn("mode", types.STRING)
	tbl.AddFieldColumn("range", types.FLOAT64)
	tbl.AddFieldColumn("collision_range", types.FLOAT64)
	tbl.AddFieldColumn("evasion", types.STRING)
	tbl.AddFieldColumn("reaction", types.STRING)
	tbl.AddFieldColumn("flight_level", types.FLOAT64)
	tbl.AddFieldColumn("minutes", types.FLOAT64)
	tbl.AddFieldColumn("density", types.FLOAT64)
	tbl.AddFieldColumn("flight_count", types.INT64)
	tbl.AddFieldColumn("awareness", types.INT64)
	tbl.AddFieldColumn("reactions", types.INT64)
	tbl.AddFieldColumn("imminent", types.INT64)
	tbl.AddFieldColumn("crashes", types.INT64)
	tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND)

	if err := tbl.AddRow(r.RunID, r.Mode, r.Range, r.CollisionRange, r.Evasion, r.Reaction,
		r.FlightLevel, r.Minutes, r.Density, int64(r.FlightCount), int64(r.Awareness),
		int64(r.Reactions), int64(r.Imminent), int64(r.Crashes), r.Timestamp); err != nil {
		return err
	}
	return w.write(tbl, w.sweepTable, 1)
}
