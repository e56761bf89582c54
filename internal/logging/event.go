package logging

import "time"

// Event is the structured form of an emitted record handed to attached
// event sinks (persistence, streaming, etc.).
type Event struct {
	Time    time.Time `json:"ts"`
	Level   string    `json:"level"`
	Service string    `json:"service"`
	TraceID string    `json:"trace_id"`
	Source  string    `json:"source,omitempty"`
	Message string    `json:"msg"`
}

// EventSink receives every record the router accepts. Implementations must
// not block; slow consumers should buffer internally.
type EventSink interface {
	Append(Event)
}

func eventFromEntry(e entry) Event {
	return Event{
		Time:    e.time,
		Level:   levelLabel(e.level),
		Service: string(e.service),
		TraceID: e.trace,
		Source:  e.source,
		Message: e.message,
	}
}
