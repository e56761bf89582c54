package logging

import (
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"logkit/internal/servicectx"
)

// Field keys stamped onto every record by the router before any sink filter
// runs. Filters may rely on both being present.
const (
	FieldTraceID = "trace_id"
	FieldService = "service"
)

// MarkAccess is the mark key that diverts a record to the access stream and
// keeps it out of the info-tier files.
const MarkAccess = "access"

// entry is the stamped, immutable form of a record handed to sink filters
// and queues.
type entry struct {
	time    time.Time
	level   slog.Level
	message string
	source  string
	service servicectx.Service
	trace   string
	marks   map[string]bool
}

func (e entry) marked(key string) bool {
	return e.marks[key]
}

// Mark flags a record for a key-filtered sink, e.g.
// logger.InfoContext(ctx, "GET /users 200", logging.Mark(logging.MarkAccess)).
func Mark(key string) slog.Attr {
	return slog.Bool(key, true)
}

func buildEntry(record slog.Record, preAttrs []slog.Attr, service servicectx.Service, trace string) entry {
	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	e := entry{
		time:    ts,
		level:   record.Level,
		message: strings.TrimSpace(record.Message),
		source:  sourceLocation(record.PC),
		service: service,
		trace:   trace,
	}
	collect := func(attr slog.Attr) {
		attr.Value = attr.Value.Resolve()
		if attr.Value.Kind() == slog.KindBool && attr.Key != "" {
			if e.marks == nil {
				e.marks = make(map[string]bool)
			}
			e.marks[attr.Key] = attr.Value.Bool()
		}
	}
	for _, attr := range preAttrs {
		collect(attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		collect(attr)
		return true
	})
	return e
}

// sourceLocation renders the record's program counter as pkg:function:line.
func sourceLocation(pc uintptr) string {
	if pc == 0 {
		return ""
	}
	frames := runtime.CallersFrames([]uintptr{pc})
	frame, _ := frames.Next()
	if frame.Function == "" {
		return ""
	}
	name := frame.Function
	if idx := strings.LastIndexByte(name, '/'); idx >= 0 {
		name = name[idx+1:]
	}
	// "pkg.Func" -> "pkg:Func"; method and closure suffixes keep their dots.
	if idx := strings.IndexByte(name, '.'); idx >= 0 {
		name = name[:idx] + ":" + name[idx+1:]
	}
	return fmt.Sprintf("%s:%d", name, frame.Line)
}
