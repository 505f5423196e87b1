package persistence

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/talgya/pedsim/internal/engine"
)

// TickLog appends one JSON line per tick report to a zstd-compressed file.
type TickLog struct {
	path string

	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

// TickLogPath is the file a run's tick log is written to under dir.
func TickLogPath(dir, runID string) string {
	return filepath.Join(dir, fmt.Sprintf("ticks-%s.jsonl.zst", runID))
}

// OpenTickLog creates the tick log for a run under dir.
func OpenTickLog(dir, runID string) (*TickLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("tick log dir: %w", err)
	}
	path := TickLogPath(dir, runID)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open tick log: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	return &TickLog{
		path: path,
		f:    f,
		enc:  enc,
		w:    bufio.NewWriterSize(enc, 128*1024),
	}, nil
}

// Path returns the log file path.
func (l *TickLog) Path() string { return l.path }

// Write appends a report. Lines are buffered until Flush or Close.
func (l *TickLog) Write(rep engine.TickReport) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return fmt.Errorf("tick log %s: closed", l.path)
	}
	b, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	if _, err := l.w.Write(b); err != nil {
		return err
	}
	return l.w.WriteByte('\n')
}

// Flush pushes buffered lines into the compressor.
func (l *TickLog) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return nil
	}
	if err := l.w.Flush(); err != nil {
		return err
	}
	return l.enc.Flush()
}

// Close flushes and closes the log.
func (l *TickLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return nil
	}
	var err error
	if ferr := l.w.Flush(); ferr != nil {
		err = ferr
	}
	if cerr := l.enc.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if cerr := l.f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	l.w, l.enc, l.f = nil, nil, nil
	return err
}

// ReadTickLog decodes every report in a tick log file.
func ReadTickLog(path string) ([]engine.TickReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	var out []engine.TickReport
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		var rep engine.TickReport
		if err := json.Unmarshal(sc.Bytes(), &rep); err != nil {
			return nil, fmt.Errorf("line %d: %w", len(out)+1, err)
		}
		out = append(out, rep)
	}
	return out, sc.Err()
}
