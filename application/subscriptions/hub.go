package subscriptions

import (
	"sync"

	"go.uber.org/zap"

	"synapse/domain/core/valueobjects"
	"synapse/domain/events"
)

// DefaultBufferSize is the channel capacity for a subscription
const DefaultBufferSize = 64

// Subscription is one listener's view of the event stream. Events
// arrive on C; Cancel detaches the listener and closes C.
type Subscription struct {
	C      <-chan events.DomainEvent
	cancel func()
	once   sync.Once
}

// Cancel detaches the subscription. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

type subscriber struct {
	ch chan events.DomainEvent
}

// Hub fans domain events out to in-process subscribers. Delivery is
// best-effort: a subscriber whose buffer is full misses the event
// rather than blocking the engine.
type Hub struct {
	mu        sync.RWMutex
	closed    bool
	nextID    uint64
	byConcept map[valueobjects.ConceptID]map[uint64]*subscriber
	all       map[uint64]*subscriber
	logger    *zap.Logger
}

// NewHub creates an empty hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		byConcept: make(map[valueobjects.ConceptID]map[uint64]*subscriber),
		all:       make(map[uint64]*subscriber),
		logger:    logger,
	}
}

// Subscribe registers a listener for events whose subject is the given
// concept
func (h *Hub) Subscribe(conceptID valueobjects.ConceptID) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &subscriber{ch: make(chan events.DomainEvent, DefaultBufferSize)}
	if h.closed {
		close(sub.ch)
		return &Subscription{C: sub.ch, cancel: func() {}}
	}

	id := h.nextID
	h.nextID++
	bucket, ok := h.byConcept[conceptID]
	if !ok {
		bucket = make(map[uint64]*subscriber)
		h.byConcept[conceptID] = bucket
	}
	bucket[id] = sub

	return &Subscription{
		C: sub.ch,
		cancel: func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if bucket, ok := h.byConcept[conceptID]; ok {
				if s, ok := bucket[id]; ok {
					delete(bucket, id)
					if len(bucket) == 0 {
						delete(h.byConcept, conceptID)
					}
					close(s.ch)
				}
			}
		},
	}
}

// SubscribeAll registers a listener for every event
func (h *Hub) SubscribeAll() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &subscriber{ch: make(chan events.DomainEvent, DefaultBufferSize)}
	if h.closed {
		close(sub.ch)
		return &Subscription{C: sub.ch, cancel: func() {}}
	}

	id := h.nextID
	h.nextID++
	h.all[id] = sub

	return &Subscription{
		C: sub.ch,
		cancel: func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if s, ok := h.all[id]; ok {
				delete(h.all, id)
				close(s.ch)
			}
		},
	}
}

// Publish delivers the event to matching subscribers without blocking
func (h *Hub) Publish(event events.DomainEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}

	delivered := true
	for _, sub := range h.all {
		delivered = trySend(sub.ch, event) && delivered
	}
	for _, sub := range h.byConcept[event.GetConceptID()] {
		delivered = trySend(sub.ch, event) && delivered
	}
	if !delivered {
		h.logger.Warn("dropped event for slow subscriber",
			zap.String("eventType", event.GetEventType()),
			zap.String("conceptId", event.GetConceptID().String()),
		)
	}
}

// Close detaches every subscriber and closes their channels. Further
// publishes are no-ops and further subscriptions come back closed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for id, sub := range h.all {
		delete(h.all, id)
		close(sub.ch)
	}
	for conceptID, bucket := range h.byConcept {
		for id, sub := range bucket {
			delete(bucket, id)
			close(sub.ch)
		}
		delete(h.byConcept, conceptID)
	}
}

func trySend(ch chan events.DomainEvent, event events.DomainEvent) bool {
	select {
	case ch <- event:
		return true
	default:
		return false
	}
}
