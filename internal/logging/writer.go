package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

const dateSuffixLayout = "2006-01-02"

// timeOfDay is the daily rotation instant, local time.
type timeOfDay struct {
	hour   int
	minute int
}

func parseTimeOfDay(value string) (timeOfDay, error) {
	var tod timeOfDay
	if _, err := fmt.Sscanf(value, "%d:%d", &tod.hour, &tod.minute); err != nil {
		return timeOfDay{}, fmt.Errorf("rotation time %q: want HH:MM: %w", value, err)
	}
	if tod.hour < 0 || tod.hour > 23 || tod.minute < 0 || tod.minute > 59 {
		return timeOfDay{}, fmt.Errorf("rotation time %q out of range", value)
	}
	return tod, nil
}

func (t timeOfDay) next(now time.Time) time.Time {
	at := time.Date(now.Year(), now.Month(), now.Day(), t.hour, t.minute, 0, 0, now.Location())
	if !now.Before(at) {
		at = at.AddDate(0, 0, 1)
	}
	return at
}

// datedFileWriter appends to {dir}/{prefix}_{date}.log and rolls to a new
// dated file when the daily rotation instant passes, pruning files beyond
// the retention window on each roll. Only the writer goroutine of one sink
// calls Write, so no locking is needed beyond Close.
type datedFileWriter struct {
	dir           string
	prefix        string
	rotateAt      timeOfDay
	retentionDays int

	mu     sync.Mutex
	file   *os.File
	rollAt time.Time
}

func newDatedFileWriter(dir, prefix string, rotateAt timeOfDay, retentionDays int) *datedFileWriter {
	return &datedFileWriter{
		dir:           dir,
		prefix:        prefix,
		rotateAt:      rotateAt,
		retentionDays: retentionDays,
	}
}

// Open creates the current dated file immediately. Setup-installed sinks
// call it so the files exist before the first record; registered sinks skip
// it and open on first write.
func (w *datedFileWriter) Open() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ensureFile(time.Now())
}

func (w *datedFileWriter) currentPath(now time.Time) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s_%s.log", w.prefix, now.Format(dateSuffixLayout)))
}

func (w *datedFileWriter) ensureFile(now time.Time) error {
	if w.file != nil && now.Before(w.rollAt) {
		return nil
	}
	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
		w.prune(now)
	}
	path := w.currentPath(now)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", path, err)
	}
	w.file = file
	w.rollAt = w.rotateAt.next(now)
	return nil
}

func (w *datedFileWriter) prune(now time.Time) {
	PruneOldLogs(w.retentionDays, RetentionTarget{
		Dir:     w.dir,
		Pattern: w.prefix + "_*.log",
		Exclude: []string{w.currentPath(now)},
	})
}

func (w *datedFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.ensureFile(time.Now()); err != nil {
		return 0, err
	}
	return w.file.Write(p)
}

func (w *datedFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// newSizeRotatingWriter backs a sink with lumberjack size-based rotation:
// {dir}/{prefix}.log rolled at maxSizeMB, rolled files kept retentionDays.
func newSizeRotatingWriter(dir, prefix string, maxSizeMB, retentionDays int) io.WriteCloser {
	return &lumberjack.Logger{
		Filename:   filepath.Join(dir, prefix+".log"),
		MaxSize:    maxSizeMB,
		MaxAge:     retentionDays,
		MaxBackups: 0,
		Compress:   false,
	}
}

// touchFile creates an empty file if it does not exist, preserving the
// eager-create behavior of Setup-installed sinks in size-rotation mode.
func touchFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("create log file %s: %w", path, err)
	}
	return file.Close()
}
