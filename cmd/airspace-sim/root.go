package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "airspace-sim",
	Short: "UAV conflict detection and evasion simulator",
	Long: "airspace-sim flies simulated UAVs through a shared airspace, tracks conflicts at four " +
		"alert levels and lets agents evade each other. It runs in real time, as a batch density " +
		"sweep, or replays recorded telemetry.",
	SilenceUsage: true,
}

var appLogLevel string

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&appLogLevel, "log-level", "info", "Application log level (debug, info, warn, error)")
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(dashboardCmd)
}
