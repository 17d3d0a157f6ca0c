package sim

import "airspace-sim/internal/telemetry"

// MultiWriter fan-outs rows to multiple writers. Conflict and flight rows
// go to every writer that implements the matching interface.
type MultiWriter struct {
	writers []TelemetryWriter
}

// NewMultiWriter creates a new MultiWriter.
func NewMultiWriter(ws ...TelemetryWriter) *MultiWriter {
	return &MultiWriter{writers: ws}
}

// Writers returns the wrapped writers in fan-out order.
func (mw *MultiWriter) Writers() []TelemetryWriter { return mw.writers }

// Write sends an agent row to all writers.
func (mw *MultiWriter) Write(row telemetry.AgentRow) error {
	for _, w := range mw.writers {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// WriteBatch sends multiple agent rows to all writers, using batch if supported.
func (mw *MultiWriter) WriteBatch(rows []telemetry.AgentRow) error {
	for _, w := range mw.writers {
		if bw, ok := w.(batchWriter); ok {
			if err := bw.WriteBatch(rows); err != nil {
				return err
			}
			continue
		}
		for _, r := range rows {
			if err := w.Write(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteConflict sends a conflict row to every conflict writer.
func (mw *MultiWriter) WriteConflict(row telemetry.ConflictRow) error {
	for _, w := range mw.writers {
		if cw, ok := w.(ConflictWriter); ok {
			if err := cw.WriteConflict(row); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteFlight sends a flight row to every flight writer.
func (mw *MultiWriter) WriteFlight(row telemetry.FlightRow) error {
	for _, w := range mw.writers {
		if fw, ok := w.(FlightWriter); ok {
			if err := fw.WriteFlight(row); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close closes every writer that can be closed, returning the first error.
func (mw *MultiWriter) Close() error {
	var err error
	for _, w := range mw.writers {
		if c, ok := w.(interface{ Close() error }); ok {
			if e := c.Close(); e != nil && err == nil {
				err = e
			}
		}
	}
	return err
}
