package logging

import (
	"io"
	"log/slog"
	"sync"
)

// fileSink couples a filter, a line format, and an unbounded FIFO queue
// drained by one writer goroutine. Emission only appends to the queue, so a
// slow filesystem never blocks the caller; Close drains everything already
// enqueued before releasing the writer.
type fileSink struct {
	name     string
	minLevel slog.Level
	filter   sinkFilter
	format   LineFormat
	w        io.WriteCloser

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []entry
	pending int
	closed  bool
	done    chan struct{}
}

func newFileSink(name string, minLevel slog.Level, filter sinkFilter, format LineFormat, w io.WriteCloser) *fileSink {
	if filter == nil {
		filter = acceptAll{}
	}
	if format == nil {
		format = FileFormat
	}
	s := &fileSink{
		name:     name,
		minLevel: minLevel,
		filter:   filter,
		format:   format,
		w:        w,
		done:     make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.pump()
	return s
}

func (s *fileSink) accepts(e entry) bool {
	return e.level >= s.minLevel && s.filter.accepts(e)
}

func (s *fileSink) enqueue(e entry) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, e)
	s.pending++
	s.cond.Broadcast()
	s.mu.Unlock()
}

func (s *fileSink) pump() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.closed {
			s.mu.Unlock()
			close(s.done)
			return
		}
		e := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		_, _ = s.w.Write(s.format(e))

		s.mu.Lock()
		s.pending--
		if s.pending == 0 {
			s.cond.Broadcast()
		}
		s.mu.Unlock()
	}
}

// sync blocks until every enqueued line has been written.
func (s *fileSink) sync() {
	s.mu.Lock()
	for s.pending > 0 && !s.closed {
		s.cond.Wait()
	}
	s.mu.Unlock()
}

// close drains the queue, stops the pump, and releases the writer. Already
// enqueued writes are never discarded.
func (s *fileSink) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()
	<-s.done
	_ = s.w.Close()
}
