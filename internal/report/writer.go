package report

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ajsharma/page_verify/internal/events"
)

// DefaultBufferSize is the buffer size for event writers (8 KB).
const DefaultBufferSize = 8 * 1024

// Writer appends events to one JSONL file.
type Writer struct {
	path   string
	file   *os.File
	writer *bufio.Writer
	closed bool
	mu     sync.Mutex
}

// Open creates the parent directories of path and opens it for appending.
func Open(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	return &Writer{
		path:   path,
		file:   f,
		writer: bufio.NewWriterSize(f, DefaultBufferSize),
	}, nil
}

// Path returns the file being written.
func (w *Writer) Path() string {
	return w.path
}

// WriteEvent writes one event as a JSON line. Run lifecycle events are
// synced to disk immediately; step events stay buffered until the next
// sync or Close.
func (w *Writer) WriteEvent(event *events.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return os.ErrClosed
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if _, err := w.writer.Write(append(data, '\n')); err != nil {
		return err
	}

	if strings.HasPrefix(event.EventType, "run.") {
		if err := w.writer.Flush(); err != nil {
			return err
		}
		return w.file.Sync()
	}

	return nil
}

// Close flushes, syncs and closes the file. It is safe to call twice.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	var lastErr error
	if err := w.writer.Flush(); err != nil {
		lastErr = err
	}
	if err := w.file.Sync(); err != nil {
		lastErr = err
	}
	if err := w.file.Close(); err != nil {
		lastErr = err
	}

	return lastErr
}
