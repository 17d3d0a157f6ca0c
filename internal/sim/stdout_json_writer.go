package sim

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"airspace-sim/internal/telemetry"
)

// JSONStdoutWriter prints agent, conflict and flight rows as JSON lines.
type JSONStdoutWriter struct {
	out io.Writer
}

// NewJSONStdoutWriter creates a JSONStdoutWriter writing to os.Stdout.
func NewJSONStdoutWriter() *JSONStdoutWriter {
	return &JSONStdoutWriter{out: os.Stdout}
}

func (w *JSONStdoutWriter) emit(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w.out, string(data))
	return err
}

// Write outputs an agent row in JSON format.
func (w *JSONStdoutWriter) Write(row telemetry.AgentRow) error { return w.emit(row) }

// WriteBatch outputs multiple agent rows in JSON format.
func (w *JSONStdoutWriter) WriteBatch(rows []telemetry.AgentRow) error {
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteConflict outputs a conflict row in JSON format.
func (w *JSONStdoutWriter) WriteConflict(row telemetry.ConflictRow) error { return w.emit(row) }

// WriteFlight outputs a flight row in JSON format.
func (w *JSONStdoutWriter) WriteFlight(row telemetry.FlightRow) error { return w.emit(row) }
