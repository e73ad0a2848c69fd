// Package notify pushes booking transitions to interested clients and
// mirrors them onto the message buses. Delivery is best effort; clients
// reconcile through GET /bookings/{id}.
package notify

import (
	"sync"

	"go.uber.org/zap"

	"booking-service/internal/bookings"
)

// Server → client event names.
const (
	EventBookingStatus    = "booking_status"
	EventBookingResponse  = "booking_response"
	EventLocationUpdate   = "location_update"
	EventCustomerLocation = "customer_location"
	EventWorkDone         = "work_done"
	EventIssueReported    = "issue_reported"
	EventError            = "error"
)

// Message is one frame pushed to a subscriber.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func BookingKey(id string) string    { return "booking:" + id }
func CustomerKey(id string) string   { return "customer:" + id }
func TechnicianKey(id string) string { return "technician:" + id }

// Subscription receives messages published to any of its keys.
type Subscription struct {
	C <-chan Message

	ch   chan Message
	keys []string
	hub  *Hub
	once sync.Once
}

// Close unsubscribes and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.remove(s) })
}

// Hub is an in-process pub/sub keyed by booking, customer and technician.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
	log    *zap.Logger
}

// NewHub creates a hub whose subscriptions buffer up to buffer messages.
func NewHub(buffer int, log *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
		log:    log.Named("hub"),
	}
}

func (h *Hub) Subscribe(keys ...string) *Subscription {
	ch := make(chan Message, h.buffer)
	s := &Subscription{C: ch, ch: ch, keys: keys, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, k := range keys {
		if h.subs[k] == nil {
			h.subs[k] = make(map[*Subscription]struct{})
		}
		h.subs[k][s] = struct{}{}
	}
	return s
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, k := range s.keys {
		delete(h.subs[k], s)
		if len(h.subs[k]) == 0 {
			delete(h.subs, k)
		}
	}
	close(s.ch)
}

// Publish delivers msg once to every subscription on any of keys and returns
// how many took it. A full subscription misses the message; Publish never blocks.
func (h *Hub) Publish(msg Message, keys ...string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[*Subscription]struct{})
	delivered := 0
	for _, k := range keys {
		for s := range h.subs[k] {
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			select {
			case s.ch <- msg:
				delivered++
			default:
				h.log.Debug("subscriber buffer full, dropping", zap.String("key", k), zap.String("event", msg.Event))
			}
		}
	}
	return delivered
}

// Notify implements bookings.Notifier.
func (h *Hub) Notify(ev bookings.Event) {
	keys := []string{BookingKey(ev.BookingID), CustomerKey(ev.CustomerID)}
	if ev.TechnicianID != "" {
		keys = append(keys, TechnicianKey(ev.TechnicianID))
	}
	h.Publish(Message{Event: EventBookingStatus, Data: ev}, keys...)
}
