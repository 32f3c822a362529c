package dhcp

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const (
	publishTimeout = 2 * time.Second
	eventQueueSize = 256
)

// Lease event kinds, appended to the configured subject.
const (
	EventOffered  = "offered"
	EventAcked    = "acked"
	EventDeclined = "declined"
	EventReleased = "released"
)

// EventPublisher delivers lease events. msgID is unique per event so a
// broker can drop redeliveries.
type EventPublisher interface {
	Publish(ctx context.Context, subject, msgID string, v any) error
}

type LeaseEvent struct {
	ID   uuid.UUID `json:"id"`
	Kind string    `json:"kind"`
	MAC  string    `json:"mac"`
	IP   string    `json:"ip,omitempty"`
	XID  uint32    `json:"xid"`
	At   time.Time `json:"at"`
}

type queuedEvent struct {
	span    trace.SpanContext
	subject string
	event   LeaseEvent
}

func (h *Handler) startEvents() {
	h.queue = make(chan queuedEvent, eventQueueSize)
	h.eventsDone = make(chan struct{})
	go h.runEvents()
}

// runEvents drains the queue. A slow broker delays only this goroutine.
func (h *Handler) runEvents() {
	defer close(h.eventsDone)
	for q := range h.queue {
		ctx := trace.ContextWithSpanContext(context.Background(), q.span)
		ctx, cancel := context.WithTimeout(ctx, publishTimeout)
		if err := h.events.Publish(ctx, q.subject, q.event.ID.String(), q.event); err != nil {
			h.logger.Printf("WARN publish %s event for %s: %v", q.event.Kind, q.event.MAC, err)
		}
		cancel()
	}
}

// publish enqueues an event without blocking; it is dropped when the queue
// is full or the handler is closed.
func (h *Handler) publish(ctx context.Context, kind, mac, ip string, xid uint32) {
	if h.events == nil {
		return
	}
	q := queuedEvent{
		span:    trace.SpanContextFromContext(ctx),
		subject: h.subject + "." + kind,
		event: LeaseEvent{
			ID:   uuid.New(),
			Kind: kind,
			MAC:  mac,
			IP:   ip,
			XID:  xid,
			At:   h.pool.clock.Now().UTC(),
		},
	}

	h.eventsMu.RLock()
	defer h.eventsMu.RUnlock()
	if h.eventsClosed {
		return
	}
	select {
	case h.queue <- q:
	default:
		h.logger.Printf("WARN event queue full, dropping %s event for %s", kind, mac)
	}
}

// Close stops accepting lease events and waits for queued ones to be
// published. It is safe to call more than once.
func (h *Handler) Close() {
	if h.events == nil {
		return
	}
	h.eventsMu.Lock()
	if !h.eventsClosed {
		h.eventsClosed = true
		close(h.queue)
	}
	h.eventsMu.Unlock()
	<-h.eventsDone
}
