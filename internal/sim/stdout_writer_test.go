package sim

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"airspace-sim/internal/config"
	"airspace-sim/internal/telemetry"
)

func TestJSONStdoutWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	w := &JSONStdoutWriter{out: buf}
	if err := w.WriteBatch([]telemetry.AgentRow{{AgentID: "1"}, {AgentID: "2"}}); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	if err := w.WriteConflict(telemetry.ConflictRow{Event: telemetry.EventCrash}); err != nil {
		t.Fatalf("WriteConflict: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d", len(lines))
	}
	var row telemetry.ConflictRow
	if err := json.Unmarshal([]byte(lines[2]), &row); err != nil || row.Event != telemetry.EventCrash {
		t.Fatalf("bad conflict line %q: %v", lines[2], err)
	}
}

func TestColorStdoutWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	w := &ColorStdoutWriter{cfg: config.Default(), out: buf}
	if err := w.WriteConflict(telemetry.ConflictRow{Event: telemetry.EventCrash, Level: 3, Self: 1, Other: 2}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	output := buf.String()
	if !strings.Contains(output, "Simulation Configuration:") || !strings.Contains(output, "CRASH") {
		t.Fatalf("unexpected output: %q", output)
	}
	if !strings.Contains(output, colorRed) {
		t.Fatalf("expected color codes in output: %q", output)
	}

	buf.Reset()
	if err := w.WriteBatch([]telemetry.AgentRow{{AgentID: "1", Level: 0}, {AgentID: "2", Level: -1}}); err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	if strings.Contains(buf.String(), "Simulation Configuration:") {
		t.Fatalf("overview printed more than once")
	}
	if !strings.Contains(buf.String(), "agents=2") || !strings.Contains(buf.String(), "awareness=1") {
		t.Fatalf("summary missing: %q", buf.String())
	}
}
