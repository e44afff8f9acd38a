package logger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var errWriterClosed = errors.New("logger: file writer closed")

// DailyFileWriter is an io.Writer that appends to {service}_{date}.log inside
// a directory and switches to a new file on the first write of a new day.
// It is safe for concurrent use.
type DailyFileWriter struct {
	service string
	dir     string
	now     func() time.Time

	mu     sync.Mutex
	file   *os.File
	date   string
	closed bool
}

// NewDailyFileWriter opens today's log file in dir. The directory must exist.
//
// Parameters:
//   - service: Prefix of the log file names
//   - dir: Directory holding the log files
//
// Returns:
//   - The writer, or an error if the file could not be opened
func NewDailyFileWriter(service string, dir string) (*DailyFileWriter, error) {
	w := &DailyFileWriter{service: service, dir: dir, now: time.Now}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.openLocked(w.now().Format(time.DateOnly)); err != nil {
		return nil, err
	}

	return w, nil
}

// Write implements io.Writer.
func (w *DailyFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, errWriterClosed
	}

	if date := w.now().Format(time.DateOnly); date != w.date || w.file == nil {
		if err := w.openLocked(date); err != nil {
			return 0, err
		}
	}

	return w.file.Write(p)
}

// CurrentLogFile returns the path of the file currently written to, or "" once
// the writer is closed.
func (w *DailyFileWriter) CurrentLogFile() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return ""
	}

	return w.path(w.date)
}

// Close closes the current file. Later writes fail. Safe to call twice.
func (w *DailyFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil

	return err
}

func (w *DailyFileWriter) path(date string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s_%s.log", w.service, date))
}

// openLocked switches to the file for date; caller must hold w.mu.
func (w *DailyFileWriter) openLocked(date string) error {
	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}

	name := w.path(date)
	f, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", name, err)
	}

	w.file = f
	w.date = date
	return nil
}
