package sim

import (
	"errors"
	"testing"

	"airspace-sim/internal/telemetry"
)

// MockWriter collects agent rows for validation
type MockWriter struct {
	Rows []telemetry.AgentRow
}

func (w *MockWriter) Write(row telemetry.AgentRow) error {
	w.Rows = append(w.Rows, row)
	return nil
}

// captureWriter records every row kind.
type captureWriter struct {
	MockWriter
	batches   int
	conflicts []telemetry.ConflictRow
	flights   []telemetry.FlightRow
	closed    bool
}

func (w *captureWriter) WriteBatch(rows []telemetry.AgentRow) error {
	w.batches++
	w.Rows = append(w.Rows, rows...)
	return nil
}

func (w *captureWriter) WriteConflict(row telemetry.ConflictRow) error {
	w.conflicts = append(w.conflicts, row)
	return nil
}

func (w *captureWriter) WriteFlight(row telemetry.FlightRow) error {
	w.flights = append(w.flights, row)
	return nil
}

func (w *captureWriter) Close() error {
	w.closed = true
	return nil
}

type failingWriter struct{}

func (failingWriter) Write(telemetry.AgentRow) error { return errors.New("boom") }

func TestMultiWriterFanOut(t *testing.T) {
	plain := &MockWriter{}
	full := &captureWriter{}
	mw := NewMultiWriter(plain, full)

	rows := []telemetry.AgentRow{{AgentID: "1"}, {AgentID: "2"}}
	if err := mw.WriteBatch(rows); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	if len(plain.Rows) != 2 || len(full.Rows) != 2 || full.batches != 1 {
		t.Fatalf("rows plain=%d full=%d batches=%d", len(plain.Rows), len(full.Rows), full.batches)
	}
	if err := mw.WriteConflict(telemetry.ConflictRow{Level: 1}); err != nil {
		t.Fatalf("WriteConflict: %v", err)
	}
	if err := mw.WriteFlight(telemetry.FlightRow{AgentID: "1"}); err != nil {
		t.Fatalf("WriteFlight: %v", err)
	}
	if len(full.conflicts) != 1 || len(full.flights) != 1 {
		t.Fatalf("optional rows not forwarded")
	}
	if err := mw.Close(); err != nil || !full.closed {
		t.Fatalf("Close: %v closed=%v", err, full.closed)
	}
}

func TestMultiWriterStopsOnError(t *testing.T) {
	after := &MockWriter{}
	mw := NewMultiWriter(failingWriter{}, after)
	if err := mw.Write(telemetry.AgentRow{}); err == nil {
		t.Fatal("expected error")
	}
	if len(after.Rows) != 0 {
		t.Fatal("writers after a failure should not run")
	}
}
