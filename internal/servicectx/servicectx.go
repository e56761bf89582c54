// Package servicectx carries the service role and trace identifier for a
// logical task through context.Context, so log routing can tell interleaved
// requests, scheduler jobs, and worker tasks apart without shared mutable
// state.
package servicectx

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Service identifies the logical role of the current execution.
type Service string

const (
	ServiceAPI       Service = "api"
	ServiceScheduler Service = "scheduler"
	ServiceWorker    Service = "worker"
)

// DefaultService is assumed when a context carries no service value.
const DefaultService = ServiceAPI

type contextKey string

const (
	serviceKey contextKey = "service"
	traceKey   contextKey = "trace_id"
)

// ParseService normalizes a service string. The legacy value "app" maps to
// api; anything unrecognized falls back to api. The second return reports
// whether the input was a known value, so callers can surface typos without
// failing.
func ParseService(value string) (Service, bool) {
	switch Service(strings.ToLower(strings.TrimSpace(value))) {
	case ServiceAPI:
		return ServiceAPI, true
	case ServiceScheduler:
		return ServiceScheduler, true
	case ServiceWorker:
		return ServiceWorker, true
	case "app": // legacy alias
		return ServiceAPI, true
	case "":
		return DefaultService, true
	default:
		return DefaultService, false
	}
}

// WithService annotates context with the service role.
func WithService(ctx context.Context, svc Service) context.Context {
	normalized, _ := ParseService(string(svc))
	return context.WithValue(ctx, serviceKey, normalized)
}

// ServiceFromContext extracts the service role if present.
func ServiceFromContext(ctx context.Context) (Service, bool) {
	if ctx == nil {
		return "", false
	}
	if svc, ok := ctx.Value(serviceKey).(Service); ok && svc != "" {
		return svc, true
	}
	return "", false
}

// traceVar holds the trace ID for one logical scope. Storing a pointer in
// the context lets a lazy first read persist its generated ID for every
// later read in the same scope.
type traceVar struct {
	mu sync.Mutex
	id string
}

func (v *traceVar) get() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.id == "" {
		v.id = uuid.NewString()
	}
	return v.id
}

// NewScope installs an empty trace holder so the first TraceID read in the
// returned context generates an ID once and keeps it for the scope.
func NewScope(ctx context.Context) context.Context {
	return context.WithValue(ctx, traceKey, &traceVar{})
}

// WithTraceID pins the trace identifier for the returned scope.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey, &traceVar{id: strings.TrimSpace(id)})
}

// TraceIDFromContext extracts the trace identifier without generating one.
func TraceIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(traceKey).(*traceVar)
	if !ok {
		return "", false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.id == "" {
		return "", false
	}
	return v.id, true
}

// TraceID returns the trace identifier for the scope, generating a random
// UUID on first read. Without a scope installed each call yields a fresh ID.
func TraceID(ctx context.Context) string {
	if ctx != nil {
		if v, ok := ctx.Value(traceKey).(*traceVar); ok {
			return v.get()
		}
	}
	return uuid.NewString()
}
