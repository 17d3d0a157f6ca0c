package sim

import (
	"encoding/json"
	"os"

	"airspace-sim/internal/telemetry"
)

// FileWriter writes agent, conflict and flight rows to JSONL files.
type FileWriter struct {
	agentFile    *os.File
	conflictFile *os.File
	flightFile   *os.File
	agentEnc     *json.Encoder
	conflictEnc  *json.Encoder
	flightEnc    *json.Encoder
}

// ConflictPath and FlightPath derive the companion file names used next
// to an agent row file.
func ConflictPath(agentPath string) string { return agentPath + ".conflicts" }
func FlightPath(agentPath string) string   { return agentPath + ".flights" }

// NewFileWriter creates a FileWriter. conflictPath or flightPath may be
// empty to skip those logs.
func NewFileWriter(agentPath, conflictPath, flightPath string) (*FileWriter, error) {
	af, err := os.Create(agentPath)
	if err != nil {
		return nil, err
	}
	fw := &FileWriter{agentFile: af, agentEnc: json.NewEncoder(af)}
	if conflictPath != "" {
		cf, err := os.Create(conflictPath)
		if err != nil {
			af.Close()
			return nil, err
		}
		fw.conflictFile = cf
		fw.conflictEnc = json.NewEncoder(cf)
	}
	if flightPath != "" {
		ff, err := os.Create(flightPath)
		if err != nil {
			if fw.conflictFile != nil {
				fw.conflictFile.Close()
			}
			af.Close()
			return nil, err
		}
		fw.flightFile = ff
		fw.flightEnc = json.NewEncoder(ff)
	}
	return fw, nil
}

// Write logs a single agent row.
func (f *FileWriter) Write(row telemetry.AgentRow) error {
	return f.agentEnc.Encode(row)
}

// WriteBatch logs multiple agent rows.
func (f *FileWriter) WriteBatch(rows []telemetry.AgentRow) error {
	for _, r := range rows {
		if err := f.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteConflict logs a conflict row, if enabled.
func (f *FileWriter) WriteConflict(row telemetry.ConflictRow) error {
	if f.conflictEnc == nil {
		return nil
	}
	return f.conflictEnc.Encode(row)
}

// WriteFlight logs a finished flight row, if enabled.
func (f *FileWriter) WriteFlight(row telemetry.FlightRow) error {
	if f.flightEnc == nil {
		return nil
	}
	return f.flightEnc.Encode(row)
}

// Close closes any underlying files.
func (f *FileWriter) Close() error {
	var err error
	for _, file := range []*os.File{f.agentFile, f.conflictFile, f.flightFile} {
		if file == nil {
			continue
		}
		if e := file.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}
