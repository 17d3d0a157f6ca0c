package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/goforj/godump"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"airspace-sim/internal/admin"
	"airspace-sim/internal/config"
	"airspace-sim/internal/logging"
	"airspace-sim/internal/scenario"
	"airspace-sim/internal/sim"
)

var (
	simPrintOnly  bool
	simConfigPath string
	simSchemaPath string
	simTick       time.Duration
	simLogFile    string
	simOutput     string
	simScenario   string
	simDump       string
	simAdminAddr  string
	simDuration   time.Duration
	simAppLog     string
	simRate       float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the conflict simulator",
	Long: "simulate flies random and scripted UAVs, emitting agent telemetry, conflict events and " +
		"flight records. With --duration it runs that much simulated time as fast as possible; " +
		"otherwise it runs in real time until interrupted.",
	RunE: runSimulate,
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(simConfigPath, simSchemaPath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	if cmd.Flags().Changed("rate") {
		cfg.Spawn.FlightsPerHour = simRate
	}

	tick, err := tickInterval(simTick)
	if err != nil {
		return fmt.Errorf("TICK_INTERVAL: %w", err)
	}

	if simOutput == outputTUI && !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("--output %s needs an interactive terminal", outputTUI)
	}
	log, logCloser := appLogger(simAppLog, simOutput == outputTUI)
	defer logCloser.Close()

	writer, cleanup, err := newWriters(cfg, simPrintOnly, simOutput, simLogFile)
	if err != nil {
		return err
	}
	var closeOnce sync.Once
	closeWriters := func() { closeOnce.Do(cleanup) }
	defer closeWriters()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.NewContext(ctx, log)

	id := runID()
	simulator, err := sim.NewSimulator(id, cfg, writer,
		sim.WithLogger(log),
		sim.WithTickInterval(tick),
		sim.WithRand(rand.New(rand.NewSource(cfg.Spawn.Seed))),
	)
	if err != nil {
		return err
	}

	if simScenario != "" {
		sc, err := scenario.Lookup(simScenario)
		if err != nil {
			return err
		}
		if err := sc.Apply(simulator); err != nil {
			return err
		}
		log.Info("scenario loaded", "name", sc.Name, "agents", len(sc.Agents))
	}

	log.Info("simulation starting", "run_id", id, "flights_per_hour", cfg.Spawn.FlightsPerHour,
		"evasion", cfg.Evasion.Strategy, "reaction", cfg.Evasion.Reaction)

	if simDuration > 0 {
		err = simulator.RunFor(ctx, simDuration.Seconds())
	} else {
		err = runRealtime(ctx, simulator, writer)
	}
	if err != nil && ctx.Err() == nil {
		return err
	}

	closeWriters()
	sum := simulator.Summary()
	log.Info("simulation stopped", "sim_time", sum.Time, "landed", sum.Landed, "agents", sum.Agents)
	return dumpSummary(simDump, sum)
}

// runRealtime runs the simulator and, when configured, the admin API
// until ctx is done or one of them fails.
func runRealtime(ctx context.Context, s *sim.Simulator, writer sim.TelemetryWriter) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Run(gctx) })
	if simAdminAddr != "" {
		srv := admin.NewServer(s, logging.FromContext(ctx))
		if tw, ok := tuiOf(writer); ok {
			tw.SetAdminStatus(true)
		}
		g.Go(func() error { return srv.Start(gctx, simAdminAddr) })
	}
	return g.Wait()
}

func tuiOf(w sim.TelemetryWriter) (*sim.TUIWriter, bool) {
	if tw, ok := w.(*sim.TUIWriter); ok {
		return tw, true
	}
	if mw, ok := w.(*sim.MultiWriter); ok {
		for _, inner := range mw.Writers() {
			if tw, ok := inner.(*sim.TUIWriter); ok {
				return tw, true
			}
		}
	}
	return nil, false
}

// dumpSummary pretty-prints the final run summary. "-" selects STDOUT.
func dumpSummary(path string, sum sim.Summary) error {
	if path == "" {
		return nil
	}
	var w io.Writer = os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	godump.Fdump(w, sum)
	return nil
}

func init() {
	simulateCmd.Flags().BoolVar(&simPrintOnly, "print-only", false, "Print telemetry to STDOUT instead of writing to DB")
	simulateCmd.Flags().StringVar(&simConfigPath, "config", "config/simulation.yaml", "Path to simulation configuration YAML")
	simulateCmd.Flags().StringVar(&simSchemaPath, "schema", "schemas/simulation.cue", "Path to CUE schema file")
	simulateCmd.Flags().DurationVar(&simTick, "tick", 100*time.Millisecond, "Wall-clock tick interval in real-time mode (e.g. 50ms, 1s)")
	simulateCmd.Flags().StringVar(&simLogFile, "log-file", "", "Path to export agent telemetry (JSONL); conflicts and flights go next to it")
	simulateCmd.Flags().StringVar(&simOutput, "output", outputJSON, "STDOUT renderer: json, color or tui")
	simulateCmd.Flags().StringVar(&simScenario, "scenario", "", "Built-in scenario name or path to a scenario YAML")
	simulateCmd.Flags().StringVar(&simDump, "dump", "", "Dump the final summary to a file, or - for STDOUT")
	simulateCmd.Flags().StringVar(&simAdminAddr, "admin-addr", ":8080", "Admin API listen address; empty disables it")
	simulateCmd.Flags().DurationVar(&simDuration, "duration", 0, "Simulated time to run in batch mode (e.g. 30m); 0 runs in real time")
	simulateCmd.Flags().StringVar(&simAppLog, "app-log", "", "Write application logs to a rotating JSON file")
	simulateCmd.Flags().Float64Var(&simRate, "rate", 0, "Override spawn.flights_per_hour")
}
