package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"airspace-sim/internal/config"
	"airspace-sim/internal/logging"
	"airspace-sim/internal/sim"
	"airspace-sim/internal/sweep"
)

var (
	sweepConfigPath string
	sweepSchemaPath string
	sweepAppLog     string
	sweepPrintOnly  bool
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a batch density sweep",
	Long: "sweep runs one simulation per flight density between sweep.start_density and " +
		"sweep.end_density, checkpointing after each one, and writes a CSV table and a JSON summary.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(sweepConfigPath, sweepSchemaPath)
		if err != nil {
			return err
		}
		if err := cfg.ApplyEnv(); err != nil {
			return err
		}

		log, logCloser := appLogger(sweepAppLog, false)
		defer logCloser.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = logging.NewContext(ctx, log)

		opts := []sweep.Option{sweep.WithLogger(log)}
		if endpoint := os.Getenv("GREPTIMEDB_ENDPOINT"); endpoint != "" && !sweepPrintOnly {
			database := os.Getenv("GREPTIMEDB_DATABASE")
			if database == "" {
				database = "public"
			}
			w, err := sim.NewGreptimeDBWriter(endpoint, database)
			if err != nil {
				return err
			}
			opts = append(opts, sweep.WithSink(w))
		}

		for _, p := range []string{cfg.Sweep.Checkpoint, cfg.Sweep.Results, cfg.Sweep.Summary} {
			if p == "" {
				continue
			}
			if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
				return err
			}
		}

		d := sweep.New(runID(), cfg, opts...)
		rows, err := d.Run(ctx)
		if err != nil {
			return err
		}
		if cfg.Sweep.Results != "" {
			if err := sweep.WriteCSV(cfg.Sweep.Results, rows); err != nil {
				return err
			}
		}
		if cfg.Sweep.Summary != "" {
			if err := sweep.WriteSummary(cfg.Sweep.Summary, d.RunID(), cfg, rows); err != nil {
				return err
			}
		}
		log.Info("sweep finished", "run_id", d.RunID(), "densities", len(rows),
			"results", cfg.Sweep.Results, "summary", cfg.Sweep.Summary)
		return nil
	},
}

func init() {
	sweepCmd.Flags().StringVar(&sweepConfigPath, "config", "config/simulation.yaml", "Path to simulation configuration YAML")
	sweepCmd.Flags().StringVar(&sweepSchemaPath, "schema", "schemas/simulation.cue", "Path to CUE schema file")
	sweepCmd.Flags().StringVar(&sweepAppLog, "app-log", "", "Write application logs to a rotating JSON file")
	sweepCmd.Flags().BoolVar(&sweepPrintOnly, "print-only", false, "Skip GreptimeDB even when GREPTIMEDB_ENDPOINT is set")
}
