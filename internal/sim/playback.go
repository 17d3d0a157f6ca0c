package sim

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"time"

	"airspace-sim/internal/telemetry"
)

// ReplayLog replays agent rows from r to writer. Rows sharing a sample time
// are delivered together, as a batch when the writer supports it. A speed
// >0 replays at that multiple of simulated time; speed <= 0 inserts no
// delay.
func ReplayLog(ctx context.Context, r io.Reader, writer TelemetryWriter, speed float64) error {
	dec := json.NewDecoder(r)
	var (
		batch []telemetry.AgentRow
		prev  float64
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := writeRows(writer, batch)
		batch = batch[:0]
		return err
	}
	for {
		var row telemetry.AgentRow
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				return flush()
			}
			return err
		}
		if len(batch) > 0 && row.SimTime != batch[0].SimTime {
			if err := flush(); err != nil {
				return err
			}
			if err := wait(ctx, row.SimTime-prev, speed); err != nil {
				return err
			}
		}
		if len(batch) == 0 {
			prev = row.SimTime
		}
		batch = append(batch, row)
	}
}

// ReplayConflicts replays a conflict log into writer without delay.
func ReplayConflicts(r io.Reader, writer ConflictWriter) error {
	dec := json.NewDecoder(r)
	for {
		var row telemetry.ConflictRow
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := writer.WriteConflict(row); err != nil {
			return err
		}
	}
}

func writeRows(w TelemetryWriter, rows []telemetry.AgentRow) error {
	if bw, ok := w.(batchWriter); ok {
		return bw.WriteBatch(rows)
	}
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	return nil
}

func wait(ctx context.Context, simSeconds, speed float64) error {
	if speed <= 0 || simSeconds <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(time.Duration(simSeconds / speed * float64(time.Second)))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ReplayLogFile opens a file and replays its agent rows. When writer also
// accepts conflicts and the matching conflict log exists, it is replayed
// afterwards.
func ReplayLogFile(ctx context.Context, path string, writer TelemetryWriter, speed float64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := ReplayLog(ctx, f, writer, speed); err != nil {
		return err
	}
	cw, ok := writer.(ConflictWriter)
	if !ok {
		return nil
	}
	cf, err := os.Open(ConflictPath(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer cf.Close()
	return ReplayConflicts(cf, cw)
}
