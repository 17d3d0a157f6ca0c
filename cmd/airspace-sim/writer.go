package main

import (
	"fmt"
	"io"
	"os"

	"airspace-sim/internal/config"
	"airspace-sim/internal/sim"
)

// Output renderers used when telemetry is not sent to GreptimeDB.
const (
	outputJSON  = "json"
	outputColor = "color"
	outputTUI   = "tui"
)

// newWriters sets up the telemetry writer based on flags and env vars. It
// returns the writer and a cleanup function to close any resources.
func newWriters(cfg *config.SimulationConfig, printOnly bool, output, logFile string) (sim.TelemetryWriter, func(), error) {
	writer, err := baseWriters(cfg, printOnly, output)
	if err != nil {
		return nil, nil, err
	}
	if logFile == "" {
		cleanup := func() {}
		if c, ok := writer.(io.Closer); ok {
			cleanup = func() { c.Close() }
		}
		return writer, cleanup, nil
	}

	fw, err := sim.NewFileWriter(logFile, sim.ConflictPath(logFile), sim.FlightPath(logFile))
	if err != nil {
		if c, ok := writer.(io.Closer); ok {
			c.Close()
		}
		return nil, nil, err
	}
	mw := sim.NewMultiWriter(writer, fw)
	return mw, func() { mw.Close() }, nil
}

// baseWriters chooses the underlying writer based on the printOnly flag,
// the output renderer and env vars.
func baseWriters(cfg *config.SimulationConfig, printOnly bool, output string) (sim.TelemetryWriter, error) {
	endpoint := os.Getenv("GREPTIMEDB_ENDPOINT")
	if !printOnly && endpoint != "" {
		database := os.Getenv("GREPTIMEDB_DATABASE")
		if database == "" {
			database = "public"
		}
		return sim.NewGreptimeDBWriter(endpoint, database)
	}

	switch output {
	case "", outputJSON:
		return sim.NewJSONStdoutWriter(), nil
	case outputColor:
		return sim.NewColorStdoutWriter(cfg), nil
	case outputTUI:
		return sim.NewTUIWriter(cfg), nil
	}
	return nil, fmt.Errorf("unknown output %q (want json, color or tui)", output)
}
