package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"booking-service/internal/bookings"
)

// Fanout hands every event to each notifier in turn.
type Fanout []bookings.Notifier

func (f Fanout) Notify(ev bookings.Event) {
	for _, n := range f {
		n.Notify(ev)
	}
}

// sink queues events for a single sender goroutine so a slow broker never
// stalls the ledger. Events beyond the buffer are dropped.
type sink struct {
	name string
	ch   chan bookings.Event
	send func(ctx context.Context, ev bookings.Event) error
	log  *zap.Logger
}

func newSink(name string, buffer int, send func(context.Context, bookings.Event) error, log *zap.Logger) *sink {
	return &sink{
		name: name,
		ch:   make(chan bookings.Event, buffer),
		send: send,
		log:  log.Named(name),
	}
}

func (s *sink) Notify(ev bookings.Event) {
	select {
	case s.ch <- ev:
	default:
		s.log.Warn("queue full, dropping event", zap.String("booking_id", ev.BookingID), zap.String("status", string(ev.Status)))
	}
}

// Run drains the queue until ctx is done.
func (s *sink) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.ch:
			sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := s.send(sctx, ev); err != nil {
				s.log.Warn("publish failed",
					zap.String("booking_id", ev.BookingID),
					zap.String("status", string(ev.Status)),
					zap.Error(err))
			}
			cancel()
		}
	}
}
