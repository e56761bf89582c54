// Package httpmw provides net/http middleware that binds requests into the
// logging context: trace propagation and access logging.
package httpmw

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"logkit/internal/logging"
	"logkit/internal/servicectx"
)

// HeaderTraceID is the canonical trace header; HeaderRequestID is accepted
// as an inbound alias.
const (
	HeaderTraceID   = "X-Trace-ID"
	HeaderRequestID = "X-Request-ID"
)

// Trace binds every request to the api service and a trace ID taken from
// X-Trace-ID or X-Request-ID, minting a fresh UUID when neither is present.
// The trace ID is echoed on the response so clients can correlate.
func Trace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trace := r.Header.Get(HeaderTraceID)
		if trace == "" {
			trace = r.Header.Get(HeaderRequestID)
		}
		if trace == "" {
			trace = uuid.NewString()
		}

		ctx := servicectx.WithService(r.Context(), servicectx.ServiceAPI)
		ctx = servicectx.WithTraceID(servicectx.NewScope(ctx), trace)

		w.Header().Set(HeaderTraceID, trace)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AccessLog emits one access-marked record per request with method, path,
// status, duration, and client IP. Pair it with a registered sink filtering
// on logging.MarkAccess to keep request lines out of the info files.
func AccessLog(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		logger.InfoContext(r.Context(),
			fmt.Sprintf("%s %s %d in %s from %s",
				r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond), clientIP(r)),
			logging.Mark(logging.MarkAccess))
	})
}

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
