package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"airspace-sim/internal/sim"
)

var (
	replayInput     string
	replaySpeed     float64
	replayPrintOnly bool
	replayOutput    string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a telemetry log file",
	Long:  "replay feeds agent rows and their conflict log back into GreptimeDB or STDOUT, paced by simulated time.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayOutput == outputTUI {
			return fmt.Errorf("replay does not support --output %s", outputTUI)
		}
		writer, cleanup, err := newWriters(nil, replayPrintOnly, replayOutput, "")
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return sim.ReplayLogFile(ctx, replayInput, writer, replaySpeed)
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to telemetry log file")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier")
	replayCmd.Flags().BoolVar(&replayPrintOnly, "print-only", false, "Print telemetry to STDOUT instead of writing to DB")
	replayCmd.Flags().StringVar(&replayOutput, "output", outputJSON, "STDOUT renderer: json or color")
	replayCmd.MarkFlagRequired("input")
}
