package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"logkit/internal/servicectx"
)

const (
	defaultLogDir        = "./logs"
	defaultRotateAt      = "00:00"
	defaultRetentionDays = 7
)

// Options configures a Setup call. The zero value gives INFO level,
// ./logs, daily rotation at midnight, seven day retention, and a console
// sink on stderr.
type Options struct {
	// Level is the minimum level for the console and info-tier file sinks
	// (DEBUG, INFO, WARNING, ERROR, CRITICAL). Error-tier file sinks always
	// start at ERROR.
	Level string
	// Dir is the log directory, created if missing.
	Dir string
	// Service selects which per-service file sinks are installed. Unknown
	// values normalize to the default service with a warning.
	Service string
	// RotateAt is the daily rotation time of day, "HH:MM".
	RotateAt string
	// MaxSizeMB switches file sinks to size-based rotation when positive;
	// daily rotation is used otherwise.
	MaxSizeMB int
	// RetentionDays bounds how long rotated files are kept.
	RetentionDays int
	// NoConsole suppresses the console sink.
	NoConsole bool
	// ConsoleWriter overrides the console destination, mainly for tests.
	ConsoleWriter io.Writer
}

// sinkDefaults are the Setup-recorded settings later RegisterSink calls
// inherit.
type sinkDefaults struct {
	dir           string
	rotateAt      timeOfDay
	maxSizeMB     int
	retentionDays int
}

// SinkOptions configures an additional file sink registered after Setup.
type SinkOptions struct {
	// Level is the sink's minimum level; INFO when empty.
	Level string
	// FilterKey restricts the sink to records carrying that mark. Empty
	// admits every record that clears the level gate.
	FilterKey string
	// Format overrides the line format; MinimalFormat when nil.
	Format LineFormat
}

// routerState is the immutable sink-set snapshot the handler reads. Setup
// and RegisterSink publish a fresh snapshot; emission concurrent with either
// sees a consistent, possibly one-generation-stale set. minLevel is the
// lowest level any sink in the set accepts, so Enabled stays a single load
// while per-sink gating happens in Handle.
type routerState struct {
	service  servicectx.Service
	minLevel slog.Level
	console  *consoleSink
	sinks    []*fileSink
	events   []EventSink
}

// Manager owns the sink set and hands out slog.Loggers routed through it.
// All state lives on the Manager; two Managers never interfere.
type Manager struct {
	mu       sync.Mutex
	state    atomic.Pointer[routerState]
	defaults sinkDefaults
}

// New returns an unconfigured Manager. Its loggers drop every record until
// Setup runs.
func New() *Manager {
	return &Manager{}
}

// Setup installs the sink set described by opts, replacing any prior set; it
// is idempotent, so re-running it never duplicates sinks or files.
func (m *Manager) Setup(opts Options) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	service, known := servicectx.ParseService(opts.Service)
	level := parseLevel(opts.Level)

	dir := opts.Dir
	if dir == "" {
		dir = defaultLogDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	rotateSpec := opts.RotateAt
	if rotateSpec == "" {
		rotateSpec = defaultRotateAt
	}
	rotateAt, err := parseTimeOfDay(rotateSpec)
	if err != nil {
		return err
	}

	retention := opts.RetentionDays
	if retention <= 0 {
		retention = defaultRetentionDays
	}

	defaults := sinkDefaults{
		dir:           dir,
		rotateAt:      rotateAt,
		maxSizeMB:     opts.MaxSizeMB,
		retentionDays: retention,
	}

	services := []servicectx.Service{service}
	if service == servicectx.ServiceAPI {
		services = append(services, servicectx.ServiceScheduler)
	}

	var sinks []*fileSink
	for _, svc := range services {
		info, err := newServiceSink(defaults, svc, "info", level, serviceFilter{
			service:          svc,
			excludeErrorTier: true,
			excludeMarks:     []string{MarkAccess},
		})
		if err != nil {
			closeSinks(sinks)
			return err
		}
		sinks = append(sinks, info)

		errSink, err := newServiceSink(defaults, svc, "error", slog.LevelError, serviceFilter{service: svc})
		if err != nil {
			closeSinks(sinks)
			return err
		}
		sinks = append(sinks, errSink)
	}

	var console *consoleSink
	if !opts.NoConsole {
		w := opts.ConsoleWriter
		if w == nil {
			w = os.Stderr
		}
		console = newConsoleSink(w, level)
	}

	PruneOldLogs(retention, RetentionTarget{Dir: dir, Pattern: "*_*.log"})

	// Error-tier sinks accept >= ERROR even when the configured level sits
	// above it, so the snapshot floor must cover both.
	minLevel := level
	for _, sink := range sinks {
		if sink.minLevel < minLevel {
			minLevel = sink.minLevel
		}
	}

	// Event sinks attached between Setups survive reconfiguration.
	var events []EventSink
	if prev := m.state.Load(); prev != nil {
		events = prev.events
	}

	prev := m.state.Swap(&routerState{
		service:  service,
		minLevel: minLevel,
		console:  console,
		sinks:    sinks,
		events:   events,
	})
	m.defaults = defaults
	if prev != nil {
		closeSinks(prev.sinks)
	}

	logger := m.Logger()
	logger.Info(fmt.Sprintf("Logging initialized for service %s at level %s", service, levelLabel(level)))
	if !known && opts.Service != "" {
		logger.Warn(fmt.Sprintf("Unknown service %q, using %s", opts.Service, service))
	}
	return nil
}

// newServiceSink builds one Setup-installed file sink. Setup sinks create
// their file immediately so an empty tier is still visible on disk.
func newServiceSink(d sinkDefaults, svc servicectx.Service, tier string, minLevel slog.Level, filter serviceFilter) (*fileSink, error) {
	prefix := fmt.Sprintf("%s_%s", svc, tier)
	w, err := openSinkWriter(d, prefix, true)
	if err != nil {
		return nil, err
	}
	return newFileSink(prefix, minLevel, filter, FileFormat, w), nil
}

func openSinkWriter(d sinkDefaults, prefix string, eager bool) (io.WriteCloser, error) {
	if d.maxSizeMB > 0 {
		if eager {
			if err := touchFile(filepath.Join(d.dir, prefix+".log")); err != nil {
				return nil, err
			}
		}
		return newSizeRotatingWriter(d.dir, prefix, d.maxSizeMB, d.retentionDays), nil
	}
	w := newDatedFileWriter(d.dir, prefix, d.rotateAt, d.retentionDays)
	if eager {
		if err := w.Open(); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// RegisterSink adds a named file sink after Setup. The sink inherits the
// recorded directory, rotation, and retention settings, opens its file
// lazily on first write, and never disturbs already installed sinks.
func (m *Manager) RegisterSink(name string, opts SinkOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.state.Load()
	if cur == nil {
		return ErrNotConfigured
	}

	w, err := openSinkWriter(m.defaults, name, false)
	if err != nil {
		return err
	}

	var filter sinkFilter = acceptAll{}
	if opts.FilterKey != "" {
		filter = markFilter{key: opts.FilterKey}
	}
	format := opts.Format
	if format == nil {
		format = MinimalFormat
	}
	sink := newFileSink(name, parseLevel(opts.Level), filter, format, w)

	next := *cur
	next.sinks = append(append([]*fileSink(nil), cur.sinks...), sink)
	if sink.minLevel < next.minLevel {
		next.minLevel = sink.minLevel
	}
	m.state.Store(&next)
	return nil
}

// AttachEventSink wires an additional consumer that receives every record
// the router stamps, regardless of file sink filters.
func (m *Manager) AttachEventSink(sink EventSink) {
	if sink == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.state.Load()
	if cur == nil {
		return
	}
	next := *cur
	next.events = append(append([]EventSink(nil), cur.events...), sink)
	m.state.Store(&next)
}

// Logger returns a slog.Logger routed through the manager's sink set.
func (m *Manager) Logger() *slog.Logger {
	return slog.New(&routerHandler{manager: m})
}

// Sync blocks until every line enqueued so far has been written.
func (m *Manager) Sync() {
	st := m.state.Load()
	if st == nil {
		return
	}
	for _, s := range st.sinks {
		s.sync()
	}
}

// Close drains all queues and closes every writer. Intended for tests and
// process shutdown; the manager reverts to its unconfigured state.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.state.Swap(nil)
	if prev != nil {
		closeSinks(prev.sinks)
	}
}

func closeSinks(sinks []*fileSink) {
	for _, s := range sinks {
		s.close()
	}
}

// routerHandler implements slog.Handler over the manager's current
// snapshot. It stamps trace_id and service, then fans the stamped entry out
// to every matching sink.
type routerHandler struct {
	manager *Manager
	attrs   []slog.Attr
	prefix  string
}

func (h *routerHandler) Enabled(_ context.Context, level slog.Level) bool {
	st := h.manager.state.Load()
	return st != nil && level >= st.minLevel
}

func (h *routerHandler) Handle(ctx context.Context, record slog.Record) error {
	st := h.manager.state.Load()
	if st == nil {
		return nil
	}

	service, ok := servicectx.ServiceFromContext(ctx)
	if !ok {
		service = st.service
	}
	trace := servicectx.TraceID(ctx)

	e := buildEntry(record, h.attrs, service, trace)

	if st.console != nil {
		st.console.write(e)
	}
	for _, sink := range st.sinks {
		if sink.accepts(e) {
			sink.enqueue(e)
		}
	}
	if len(st.events) > 0 {
		evt := eventFromEntry(e)
		for _, sink := range st.events {
			sink.Append(evt)
		}
	}
	return nil
}

func (h *routerHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := &routerHandler{manager: h.manager, prefix: h.prefix}
	next.attrs = append(append([]slog.Attr(nil), h.attrs...), qualifyAttrs(h.prefix, attrs)...)
	return next
}

func (h *routerHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &routerHandler{manager: h.manager, attrs: h.attrs, prefix: h.prefix + name + "."}
}

func qualifyAttrs(prefix string, attrs []slog.Attr) []slog.Attr {
	if prefix == "" {
		return attrs
	}
	out := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		attr.Key = prefix + attr.Key
		out[i] = attr
	}
	return out
}
