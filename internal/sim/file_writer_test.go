package sim

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"airspace-sim/internal/telemetry"
)

func TestFileWriter(t *testing.T) {
	dir := t.TempDir()
	ts := time.Unix(0, 0).UTC()
	aRow := telemetry.AgentRow{RunID: "r1", AgentID: "1", State: "transit", X: 4, Y: 5, Z: 6, Heading: 90, Timestamp: ts}
	cRow := telemetry.ConflictRow{RunID: "r1", Event: telemetry.EventStart, Level: 2, Self: 1, Other: 2, Distance: 9, Timestamp: ts}
	fRow := telemetry.FlightRow{RunID: "r1", AgentID: "1", Distance: 120, Completed: true, Timestamp: ts}

	cases := []struct {
		name   string
		write  func(*FileWriter) error
		path   func(string) string
		decode func([]byte)
	}{
		{
			name:  "agent",
			write: func(fw *FileWriter) error { return fw.Write(aRow) },
			path:  func(p string) string { return p },
			decode: func(b []byte) {
				var got telemetry.AgentRow
				if err := json.Unmarshal(b, &got); err != nil {
					t.Fatalf("decode agent: %v", err)
				}
				if got.Heading != aRow.Heading || got.State != aRow.State || got.Z != aRow.Z {
					t.Fatalf("unexpected agent row: %#v", got)
				}
			},
		},
		{
			name:  "conflict",
			write: func(fw *FileWriter) error { return fw.WriteConflict(cRow) },
			path:  ConflictPath,
			decode: func(b []byte) {
				var got telemetry.ConflictRow
				if err := json.Unmarshal(b, &got); err != nil {
					t.Fatalf("decode conflict: %v", err)
				}
				if got.Level != cRow.Level || got.Event != cRow.Event || got.Other != cRow.Other {
					t.Fatalf("unexpected conflict row: %#v", got)
				}
			},
		},
		{
			name:  "flight",
			write: func(fw *FileWriter) error { return fw.WriteFlight(fRow) },
			path:  FlightPath,
			decode: func(b []byte) {
				var got telemetry.FlightRow
				if err := json.Unmarshal(b, &got); err != nil {
					t.Fatalf("decode flight: %v", err)
				}
				if got.Distance != fRow.Distance || !got.Completed {
					t.Fatalf("unexpected flight row: %#v", got)
				}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			base := filepath.Join(dir, tc.name+".jsonl")
			fw, err := NewFileWriter(base, ConflictPath(base), FlightPath(base))
			if err != nil {
				t.Fatalf("NewFileWriter: %v", err)
			}
			if err := tc.write(fw); err != nil {
				t.Fatalf("write: %v", err)
			}
			if err := fw.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}
			data, err := os.ReadFile(tc.path(base))
			if err != nil {
				t.Fatalf("read file: %v", err)
			}
			tc.decode(data)
		})
	}
}

func TestFileWriterSkipsDisabledLogs(t *testing.T) {
	base := filepath.Join(t.TempDir(), "agents.jsonl")
	fw, err := NewFileWriter(base, "", "")
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}
	defer fw.Close()
	if err := fw.WriteConflict(telemetry.ConflictRow{}); err != nil {
		t.Fatalf("WriteConflict: %v", err)
	}
	if err := fw.WriteFlight(telemetry.FlightRow{}); err != nil {
		t.Fatalf("WriteFlight: %v", err)
	}
	if _, err := os.Stat(ConflictPath(base)); !os.IsNotExist(err) {
		t.Fatalf("conflict file should not exist: %v", err)
	}
}
