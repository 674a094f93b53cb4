package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// LogEvent is one log record as served by /api/logs.
type LogEvent struct {
	Sequence  uint64            `json:"seq"`
	Timestamp time.Time         `json:"ts"`
	Level     string            `json:"level"`
	Message   string            `json:"msg"`
	Component string            `json:"component,omitempty"`
	EventType string            `json:"event_type,omitempty"`
	Label     string            `json:"label,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// apply stores attr on the event. Well-known keys get their own field and
// a later attr with the same key replaces an earlier one.
func (e *LogEvent) apply(attr slog.Attr) {
	key := strings.TrimSpace(attr.Key)
	if key == "" {
		return
	}
	value := attrString(attr.Value)
	switch key {
	case FieldComponent:
		e.Component = value
	case FieldEventType:
		e.EventType = value
	case FieldLabel:
		e.Label = value
	case FieldSessionID:
		e.SessionID = value
	case FieldRequestID:
		e.RequestID = value
	default:
		if e.Fields == nil {
			e.Fields = make(map[string]string)
		}
		e.Fields[key] = value
	}
}

// StreamHub keeps the most recent log events in a fixed ring so the CLI can
// tail and follow a running kiosk. Sequence numbers start at 1 with no gaps,
// so the oldest buffered event is always lastSeq-size+1.
type StreamHub struct {
	mu      sync.Mutex
	ring    []LogEvent
	head    int
	size    int
	lastSeq uint64
	// wake is closed and replaced on every Publish.
	wake chan struct{}
}

// NewStreamHub returns a hub holding up to capacity events.
func NewStreamHub(capacity int) *StreamHub {
	if capacity <= 0 {
		capacity = 512
	}
	return &StreamHub{
		ring: make([]LogEvent, capacity),
		wake: make(chan struct{}),
	}
}

// Publish assigns the next sequence number to evt and stores it, evicting
// the oldest event when the ring is full.
func (h *StreamHub) Publish(evt LogEvent) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastSeq++
	evt.Sequence = h.lastSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if h.size < len(h.ring) {
		h.ring[(h.head+h.size)%len(h.ring)] = evt
		h.size++
	} else {
		h.ring[h.head] = evt
		h.head = (h.head + 1) % len(h.ring)
	}
	close(h.wake)
	h.wake = make(chan struct{})
}

// Fetch returns up to limit events newer than since, oldest first, plus the
// latest sequence number. With wait set it blocks until such an event
// exists or ctx ends.
func (h *StreamHub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]LogEvent, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		h.mu.Lock()
		events := h.newerLocked(since, limit)
		last, wake := h.lastSeq, h.wake
		h.mu.Unlock()

		if len(events) > 0 || !wait {
			return events, last, nil
		}
		select {
		case <-ctx.Done():
			return nil, last, ctx.Err()
		case <-wake:
		}
	}
}

// Tail returns the most recent limit events without blocking.
func (h *StreamHub) Tail(limit int) ([]LogEvent, uint64) {
	if h == nil {
		return nil, 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if limit <= 0 || limit > h.size {
		limit = h.size
	}
	if limit == 0 {
		return nil, h.lastSeq
	}
	return h.newerLocked(h.lastSeq-uint64(limit), limit), h.lastSeq
}

func (h *StreamHub) newerLocked(since uint64, limit int) []LogEvent {
	if h.size == 0 || since >= h.lastSeq {
		return nil
	}
	skip := 0
	if oldest := h.lastSeq - uint64(h.size) + 1; since >= oldest {
		skip = int(since - oldest + 1)
	}
	n := h.size - skip
	if limit > 0 && n > limit {
		n = limit
	}
	out := make([]LogEvent, n)
	for i := range out {
		out[i] = h.ring[(h.head+skip+i)%len(h.ring)]
	}
	return out
}

// streamHandler publishes every record it sees to a hub before passing it on.
type streamHandler struct {
	next  slog.Handler
	hub   *StreamHub
	attrs []slog.Attr
}

func newStreamHandler(next slog.Handler, hub *StreamHub) slog.Handler {
	if hub == nil || next == nil {
		return next
	}
	return &streamHandler{next: next, hub: hub}
}

func (h *streamHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *streamHandler) Handle(ctx context.Context, record slog.Record) error {
	evt := LogEvent{
		Timestamp: record.Time,
		Level:     strings.ToUpper(record.Level.String()),
		Message:   strings.TrimSpace(record.Message),
	}
	for _, attr := range h.attrs {
		evt.apply(attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		evt.apply(attr)
		return true
	})
	h.hub.Publish(evt)
	return h.next.Handle(ctx, record.Clone())
}

func (h *streamHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &streamHandler{next: h.next.WithAttrs(attrs), hub: h.hub, attrs: merged}
}

func (h *streamHandler) WithGroup(name string) slog.Handler {
	return &streamHandler{next: h.next.WithGroup(name), hub: h.hub, attrs: h.attrs}
}
