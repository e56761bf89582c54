package logging

import (
	"bytes"
	"time"
)

const logTimestampLayout = "2006-01-02 15:04:05"

func formatTimestamp(ts time.Time) string {
	return ts.In(time.Local).Format(logTimestampLayout)
}

// LineFormat renders one stamped record as a log line, newline included.
type LineFormat func(e entry) []byte

// FileFormat is the default format for the per-service files:
//
//	2026-08-29 10:30:00 | INFO     | server:handleUsers:42 | <trace> - message
func FileFormat(e entry) []byte {
	var buf bytes.Buffer
	buf.Grow(96 + len(e.message))
	buf.WriteString(formatTimestamp(e.time))
	buf.WriteString(" | ")
	buf.WriteString(paddedLevelLabel(e.level))
	buf.WriteString(" | ")
	buf.WriteString(e.source)
	buf.WriteString(" | ")
	buf.WriteString(e.trace)
	buf.WriteString(" - ")
	buf.WriteString(e.message)
	buf.WriteByte('\n')
	return buf.Bytes()
}

// MinimalFormat is the default for registered custom sinks:
//
//	2026-08-29 10:30:00 | <trace> | message
func MinimalFormat(e entry) []byte {
	var buf bytes.Buffer
	buf.Grow(64 + len(e.message))
	buf.WriteString(formatTimestamp(e.time))
	buf.WriteString(" | ")
	buf.WriteString(e.trace)
	buf.WriteString(" | ")
	buf.WriteString(e.message)
	buf.WriteByte('\n')
	return buf.Bytes()
}
