package sweep

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"airspace-sim/internal/telemetry"
)

// ErrCheckpointMismatch is returned when a checkpoint was written for a
// different sweep configuration.
var ErrCheckpointMismatch = errors.New("sweep: checkpoint does not match configuration")

// Progress is the resumable state of a sweep. It is stored as zstd
// compressed msgpack after every finished density.
type Progress struct {
	RunID       string               `msgpack:"run_id"`
	Fingerprint string               `msgpack:"fingerprint"`
	Done        int                  `msgpack:"done"`
	Rows        []telemetry.SweepRow `msgpack:"rows"`
}

// Save writes p to w.
func (p *Progress) Save(w io.Writer) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}
	defer zw.Close()

	if err := msgpack.NewEncoder(zw).Encode(p); err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to close zstd writer: %w", err)
	}
	return nil
}

// LoadProgress reads progress written by Save.
func LoadProgress(r io.Reader) (*Progress, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer zr.Close()

	var p Progress
	if err := msgpack.NewDecoder(zr).Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode progress: %w", err)
	}
	// msgpack restores times in the local zone.
	for i := range p.Rows {
		p.Rows[i].Timestamp = p.Rows[i].Timestamp.UTC()
	}
	return &p, nil
}

// SaveCheckpoint atomically replaces the checkpoint at path.
func SaveCheckpoint(path string, p *Progress) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := p.Save(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadCheckpoint reads the checkpoint at path. A missing file yields nil
// progress and no error.
func LoadCheckpoint(path string) (*Progress, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadProgress(f)
}
