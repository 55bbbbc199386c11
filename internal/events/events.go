// Package events carries session boundary, intervention and geometry
// notifications from the session runner to its collaborators (logger, local API).
package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Lattixe/MonkMode-windows/internal/logger"
)

// Type identifies an event.
type Type string

const (
	SessionStarted  Type = "session.started"
	SessionExtended Type = "session.extended"
	SessionEnded    Type = "session.ended"
	Intervention    Type = "intervention"
	Geometry        Type = "geometry"
	Warning         Type = "warning"
	// Snapshot is sent to new stream clients; it is never published on the bus.
	Snapshot        Type = "session.snapshot"
)

// Event is one notification. Payload is JSON-encodable.
type Event struct {
	Type    Type      `json:"type"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload,omitempty"`
}

// InterventionKind says what was blocked.
type InterventionKind string

const (
	ProcessKilled    InterventionKind = "process-killed"
	WindowSuppressed InterventionKind = "window-suppressed"
	HostsRegionLost  InterventionKind = "hosts-region-lost"
)

// InterventionPayload names the process or domain involved in an intervention.
type InterventionPayload struct {
	Kind   InterventionKind `json:"kind"`
	Target string           `json:"target"`
	Pid    uint32           `json:"pid,omitempty"`
}

// WarningPayload describes a recoverable problem surfaced to the user once.
type WarningPayload struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// Publisher accepts events.
type Publisher interface {
	Publish(e Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(e Event)

func (f PublisherFunc) Publish(e Event) { f(e) }

// Bus fans events out to subscribers without ever blocking the publisher.
type Bus struct {
	log  logger.LoggerInterface
	now  func() time.Time
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewBus creates an empty bus.
func NewBus(log logger.LoggerInterface) *Bus {
	return &Bus{
		log:  log,
		now:  time.Now,
		subs: make(map[int]chan Event),
	}
}

// Publish delivers e to every subscriber, dropping it for subscribers whose buffer is full.
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = b.now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		select {
		case ch <- e:
		default:
			// Geometry runs at frame rate; only surface drops of rarer events
			if e.Type == Geometry {
				b.log.Trace("Event dropped", slog.Int("subscriber", id), slog.String("type", string(e.Type)))
				continue
			}

			b.log.Warn("event subscriber buffer full, event dropped",
				slog.Int("subscriber", id),
				slog.String("type", string(e.Type)),
			)
		}
	}
}

// Subscribe returns a buffered channel of events and a cancel function that
// unsubscribes and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++

	ch := make(chan Event, buffer)
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()

			delete(b.subs, id)
			close(ch)
		})
	}

	return ch, cancel
}

// Subscribers returns the number of active subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
