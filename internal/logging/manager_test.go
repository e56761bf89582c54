package logging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"logkit/internal/servicectx"
)

func datedName(prefix string) string {
	return fmt.Sprintf("%s_%s.log", prefix, time.Now().Format("2006-01-02"))
}

func readLog(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return string(data)
}

func countLines(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	return len(strings.Split(s, "\n"))
}

func TestSetupCreatesServiceFiles(t *testing.T) {
	dir := t.TempDir()
	m := New()
	defer m.Close()
	if err := m.Setup(Options{Dir: dir, Service: "api", NoConsole: true}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	m.Sync()

	for _, name := range []string{
		datedName("api_info"),
		datedName("api_error"),
		datedName("scheduler_info"),
		datedName("scheduler_error"),
	} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s to exist after setup: %v", name, err)
		}
	}

	if got := countLines(readLog(t, dir, datedName("scheduler_info"))); got != 0 {
		t.Fatalf("scheduler_info should be empty after api setup, has %d lines", got)
	}
	if got := countLines(readLog(t, dir, datedName("api_info"))); got != 1 {
		t.Fatalf("api_info should hold only the init line, has %d lines", got)
	}
}

func TestSetupIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	m := New()
	defer m.Close()
	for i := 0; i < 3; i++ {
		if err := m.Setup(Options{Dir: dir, Service: "api", NoConsole: true}); err != nil {
			t.Fatalf("setup %d: %v", i, err)
		}
	}

	m.Logger().Info("probe message")
	m.Sync()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 log files after repeated setup, got %d", len(entries))
	}
	if got := strings.Count(readLog(t, dir, datedName("api_info")), "probe message"); got != 1 {
		t.Fatalf("probe message written %d times, want 1", got)
	}
}

func TestServiceRouting(t *testing.T) {
	dir := t.TempDir()
	m := New()
	defer m.Close()
	if err := m.Setup(Options{Dir: dir, Service: "api", NoConsole: true}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	logger := m.Logger()

	schedCtx := servicectx.WithService(context.Background(), servicectx.ServiceScheduler)
	logger.InfoContext(schedCtx, "job tick")
	workerCtx := servicectx.WithService(context.Background(), servicectx.ServiceWorker)
	logger.InfoContext(workerCtx, "worker heartbeat")
	m.Sync()

	sched := readLog(t, dir, datedName("scheduler_info"))
	if !strings.Contains(sched, "job tick") {
		t.Fatalf("scheduler_info missing scheduler record: %q", sched)
	}
	if strings.Contains(sched, "worker heartbeat") {
		t.Fatal("scheduler_info captured a worker record")
	}
	api := readLog(t, dir, datedName("api_info"))
	if strings.Contains(api, "job tick") || strings.Contains(api, "worker heartbeat") {
		t.Fatalf("api_info captured foreign records: %q", api)
	}
}

func TestErrorTierSplit(t *testing.T) {
	dir := t.TempDir()
	m := New()
	defer m.Close()
	if err := m.Setup(Options{Dir: dir, Service: "worker", NoConsole: true}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	logger := m.Logger()
	ctx := servicectx.WithService(context.Background(), servicectx.ServiceWorker)

	logger.InfoContext(ctx, "plain info")
	logger.WarnContext(ctx, "plain warning")
	logger.ErrorContext(ctx, "plain error")
	logger.Log(ctx, LevelCritical, "plain critical")
	m.Sync()

	info := readLog(t, dir, datedName("worker_info"))
	errFile := readLog(t, dir, datedName("worker_error"))

	for _, msg := range []string{"plain info", "plain warning"} {
		if !strings.Contains(info, msg) {
			t.Fatalf("info file missing %q", msg)
		}
		if strings.Contains(errFile, msg) {
			t.Fatalf("error file captured sub-error record %q", msg)
		}
	}
	for _, msg := range []string{"plain error", "plain critical"} {
		if !strings.Contains(errFile, msg) {
			t.Fatalf("error file missing %q", msg)
		}
		if strings.Contains(info, msg) {
			t.Fatalf("info file captured error-tier record %q", msg)
		}
	}
	if !strings.Contains(errFile, "CRITICAL") {
		t.Fatal("critical record not labeled CRITICAL")
	}
}

func TestErrorSinkAcceptsErrorsUnderCriticalLevel(t *testing.T) {
	dir := t.TempDir()
	m := New()
	defer m.Close()
	if err := m.Setup(Options{Dir: dir, Service: "worker", Level: "CRITICAL", NoConsole: true}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	logger := m.Logger()

	logger.Error("disk failure")
	logger.Info("routine detail")
	m.Sync()

	errFile := readLog(t, dir, datedName("worker_error"))
	if !strings.Contains(errFile, "disk failure") {
		t.Fatalf("error sink dropped an ERROR record under a CRITICAL configured level: %q", errFile)
	}
	info := readLog(t, dir, datedName("worker_info"))
	if strings.Contains(info, "routine detail") {
		t.Fatal("info sink accepted a record below the configured level")
	}
}

func TestRegisteredSinkBelowConfiguredLevel(t *testing.T) {
	dir := t.TempDir()
	m := New()
	defer m.Close()
	if err := m.Setup(Options{Dir: dir, Service: "api", NoConsole: true}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := m.RegisterSink("debugstream", SinkOptions{Level: "DEBUG", FilterKey: "diag"}); err != nil {
		t.Fatalf("register sink: %v", err)
	}
	logger := m.Logger()

	logger.Debug("low level detail", Mark("diag"))
	m.Sync()

	stream := readLog(t, dir, datedName("debugstream"))
	if !strings.Contains(stream, "low level detail") {
		t.Fatalf("registered DEBUG sink missed a DEBUG record under an INFO configured level: %q", stream)
	}
	info := readLog(t, dir, datedName("api_info"))
	if strings.Contains(info, "low level detail") {
		t.Fatal("info sink accepted a DEBUG record")
	}
}

func TestRegisterSinkBeforeSetup(t *testing.T) {
	m := New()
	err := m.RegisterSink("audit", SinkOptions{})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestRegisterSinkMarkFilter(t *testing.T) {
	dir := t.TempDir()
	m := New()
	defer m.Close()
	if err := m.Setup(Options{Dir: dir, Service: "api", NoConsole: true}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := m.RegisterSink("access", SinkOptions{FilterKey: MarkAccess}); err != nil {
		t.Fatalf("register sink: %v", err)
	}

	// Lazy open: no file until the first matching record.
	if _, err := os.Stat(filepath.Join(dir, datedName("access"))); !os.IsNotExist(err) {
		t.Fatalf("access file created before first write: %v", err)
	}

	logger := m.Logger()
	logger.Info("GET /users 200", Mark(MarkAccess))
	logger.Info("regular record")
	m.Sync()

	access := readLog(t, dir, datedName("access"))
	if !strings.Contains(access, "GET /users 200") {
		t.Fatalf("access sink missing marked record: %q", access)
	}
	if strings.Contains(access, "regular record") {
		t.Fatal("access sink captured unmarked record")
	}
	info := readLog(t, dir, datedName("api_info"))
	if strings.Contains(info, "GET /users 200") {
		t.Fatal("info sink captured access-marked record")
	}
	if !strings.Contains(info, "regular record") {
		t.Fatal("info sink missing unmarked record")
	}
}

func TestSizeRotationFilenames(t *testing.T) {
	dir := t.TempDir()
	m := New()
	defer m.Close()
	if err := m.Setup(Options{Dir: dir, Service: "scheduler", MaxSizeMB: 5, NoConsole: true}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	m.Sync()

	for _, name := range []string{"scheduler_info.log", "scheduler_error.log"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s in size-rotation mode: %v", name, err)
		}
	}
}

func TestUnknownServiceDefaultsToAPI(t *testing.T) {
	dir := t.TempDir()
	m := New()
	defer m.Close()
	if err := m.Setup(Options{Dir: dir, Service: "inventory", NoConsole: true}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	m.Sync()
	if _, err := os.Stat(filepath.Join(dir, datedName("api_info"))); err != nil {
		t.Fatalf("unknown service should fall back to api sinks: %v", err)
	}
	if !strings.Contains(readLog(t, dir, datedName("api_info")), "inventory") {
		t.Fatal("expected fallback warning to mention the unknown service")
	}
}

func TestTraceStamping(t *testing.T) {
	dir := t.TempDir()
	m := New()
	defer m.Close()
	if err := m.Setup(Options{Dir: dir, Service: "worker", NoConsole: true}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	logger := m.Logger()

	ctx := servicectx.WithService(servicectx.NewScope(context.Background()), servicectx.ServiceWorker)
	logger.InfoContext(ctx, "first step")
	logger.InfoContext(ctx, "second step")
	m.Sync()

	// The init line from Setup carries its own trace; only the scoped
	// records matter here.
	var traces []string
	for _, line := range strings.Split(strings.TrimSpace(readLog(t, dir, datedName("worker_info"))), "\n") {
		if !strings.Contains(line, "step") {
			continue
		}
		parts := strings.Split(line, " | ")
		if len(parts) != 4 {
			t.Fatalf("unexpected line shape: %q", line)
		}
		trace, _, ok := strings.Cut(parts[3], " - ")
		if !ok {
			t.Fatalf("missing trace separator: %q", line)
		}
		traces = append(traces, trace)
	}
	if len(traces) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(traces))
	}
	if len(traces[0]) != 36 {
		t.Fatalf("trace id %q is not a UUID", traces[0])
	}
	if traces[0] != traces[1] {
		t.Fatalf("trace id changed within one scope: %q vs %q", traces[0], traces[1])
	}
}

func TestConsoleLine(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	m := New()
	defer m.Close()
	if err := m.Setup(Options{Dir: dir, Service: "api", ConsoleWriter: &buf}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	m.Logger().Info("console probe")
	m.Sync()

	out := buf.String()
	if !strings.Contains(out, "console probe") {
		t.Fatalf("console output missing message: %q", out)
	}
	if !strings.Contains(out, "[api]") {
		t.Fatalf("console output missing service tag: %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatal("color escapes emitted for a non-terminal writer")
	}
}

func TestEventSinkReceivesRecords(t *testing.T) {
	dir := t.TempDir()
	m := New()
	defer m.Close()
	if err := m.Setup(Options{Dir: dir, Service: "api", NoConsole: true}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	var got []Event
	m.AttachEventSink(eventSinkFunc(func(evt Event) { got = append(got, evt) }))

	m.Logger().Warn("observed warning")
	m.Sync()

	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].Message != "observed warning" || got[0].Level != "WARNING" || got[0].Service != "api" {
		t.Fatalf("unexpected event: %+v", got[0])
	}
	if len(got[0].TraceID) != 36 {
		t.Fatalf("event trace id %q is not a UUID", got[0].TraceID)
	}
}

func TestEventSinkSurvivesResetup(t *testing.T) {
	dir := t.TempDir()
	m := New()
	defer m.Close()
	if err := m.Setup(Options{Dir: dir, Service: "api", NoConsole: true}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	var got []Event
	m.AttachEventSink(eventSinkFunc(func(evt Event) { got = append(got, evt) }))

	if err := m.Setup(Options{Dir: dir, Service: "api", NoConsole: true}); err != nil {
		t.Fatalf("re-setup: %v", err)
	}
	got = got[:0]
	m.Logger().Warn("still observed")
	m.Sync()

	if len(got) != 1 || got[0].Message != "still observed" {
		t.Fatalf("event sink detached by re-setup: %+v", got)
	}
}

type eventSinkFunc func(Event)

func (f eventSinkFunc) Append(evt Event) { f(evt) }

func TestConcurrentEmission(t *testing.T) {
	dir := t.TempDir()
	m := New()
	defer m.Close()
	if err := m.Setup(Options{Dir: dir, Service: "api", NoConsole: true}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	logger := m.Logger()

	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 50; i++ {
				logger.Info(fmt.Sprintf("burst %d-%d", g, i))
			}
		}(g)
	}
	// Reconfigure while records are in flight; emission must never panic.
	for i := 0; i < 4; i++ {
		if err := m.Setup(Options{Dir: dir, Service: "api", NoConsole: true}); err != nil {
			t.Fatalf("setup during burst: %v", err)
		}
	}
	for g := 0; g < 8; g++ {
		<-done
	}
	m.Sync()
}
