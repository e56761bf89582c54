package logging

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
)

const (
	ansiReset  = "\x1b[0m"
	ansiDim    = "\x1b[2m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiRed    = "\x1b[31m"
	ansiBold   = "\x1b[1m"
	ansiCyan   = "\x1b[36m"
)

// consoleSink writes human readable lines synchronously. Color is enabled
// only when the writer is a terminal.
type consoleSink struct {
	mu       sync.Mutex
	w        io.Writer
	minLevel slog.Level
	color    bool
}

func newConsoleSink(w io.Writer, minLevel slog.Level) *consoleSink {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &consoleSink{w: w, minLevel: minLevel, color: color}
}

func levelColor(level slog.Level) string {
	switch {
	case level >= LevelCritical:
		return ansiBold + ansiRed
	case level >= slog.LevelError:
		return ansiRed
	case level >= slog.LevelWarn:
		return ansiYellow
	case level >= slog.LevelInfo:
		return ansiGreen
	default:
		return ansiDim
	}
}

func shortTrace(trace string) string {
	if len(trace) > 8 {
		return trace[:8]
	}
	return trace
}

func (s *consoleSink) write(e entry) {
	if e.level < s.minLevel {
		return
	}

	var buf bytes.Buffer
	buf.Grow(128 + len(e.message))
	if s.color {
		buf.WriteString(ansiDim)
		buf.WriteString(formatTimestamp(e.time))
		buf.WriteString(ansiReset)
		buf.WriteString(" | ")
		buf.WriteString(levelColor(e.level))
		buf.WriteString(paddedLevelLabel(e.level))
		buf.WriteString(ansiReset)
		buf.WriteString(" | ")
		buf.WriteString(ansiCyan)
		buf.WriteByte('[')
		buf.WriteString(string(e.service))
		buf.WriteByte(']')
		buf.WriteString(ansiReset)
		buf.WriteByte(' ')
		buf.WriteString(ansiDim)
		buf.WriteString(shortTrace(e.trace))
		buf.WriteString(ansiReset)
		buf.WriteString(" - ")
		buf.WriteString(e.message)
	} else {
		buf.WriteString(formatTimestamp(e.time))
		buf.WriteString(" | ")
		buf.WriteString(paddedLevelLabel(e.level))
		buf.WriteString(" | [")
		buf.WriteString(string(e.service))
		buf.WriteString("] ")
		buf.WriteString(shortTrace(e.trace))
		buf.WriteString(" - ")
		buf.WriteString(e.message)
	}
	buf.WriteByte('\n')

	s.mu.Lock()
	_, _ = s.w.Write(buf.Bytes())
	s.mu.Unlock()
}
