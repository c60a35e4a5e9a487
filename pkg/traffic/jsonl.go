package traffic

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/agenttap/agenttap/internal/logging"
)

// maxLineSize bounds a single JSONL line. SSE response bodies for long agent
// turns run to several megabytes, so the default scanner buffer is far too
// small.
const maxLineSize = 64 << 20

// Load reads exchanges from a JSONL traffic log. Lines that fail to decode
// are skipped with a diagnostic; the returned count reports how many were
// skipped.
func Load(path string) ([]Exchange, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open traffic log: %w", err)
	}
	defer f.Close()

	var entries []Exchange
	skipped := 0
	lineNo := 0

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var e Exchange
		if err := decodeEntry([]byte(line), &e); err != nil {
			logging.L.Warn("skipping malformed traffic line",
				zap.Int("line", lineNo),
				zap.Error(err),
			)
			skipped++
			continue
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, skipped, fmt.Errorf("read traffic log: %w", err)
	}
	return entries, skipped, nil
}

// decodeEntry decodes one log line with numbers kept as json.Number, so the
// statistics engine can tell integer fields from floating-point ones.
func decodeEntry(line []byte, e *Exchange) error {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	return dec.Decode(e)
}

// Writer appends exchanges to a shared JSONL log. Multiple proxy listeners
// may write to the same file concurrently, possibly from separate processes,
// so every append happens under an exclusive flock and is flushed before the
// lock is released. Lines are never interleaved or truncated.
type Writer struct {
	mu   sync.Mutex
	path string
}

// NewWriter creates the output directory if needed and returns a writer for
// the traffic log inside it.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &Writer{path: filepath.Join(dir, LogName)}, nil
}

// Path returns the log file path.
func (w *Writer) Path() string {
	return w.path
}

// Append serializes the exchange and appends it as one line.
func (w *Writer) Append(e *Exchange) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode exchange: %w", err)
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open traffic log: %w", err)
	}
	defer f.Close()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("lock traffic log: %w", err)
	}
	defer syscall.Flock(int(f.Fd()), syscall.LOCK_UN)

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("append to traffic log: %w", err)
	}
	return f.Sync()
}
