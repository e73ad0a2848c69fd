package bookings

import "time"

// Event describes one ledger transition. It is what subscribers, Kafka and
// RabbitMQ receive.
type Event struct {
	BookingID    string    `json:"booking_id"`
	CustomerID   string    `json:"customer_id"`
	TechnicianID string    `json:"technician_id,omitempty"`
	Status       Status    `json:"status"`
	At           time.Time `json:"at"`
}

// Notifier receives ledger transitions. Implementations must not block.
type Notifier interface {
	Notify(ev Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(Event) {}

func eventFor(b *Booking) Event {
	return Event{
		BookingID:    b.ID,
		CustomerID:   b.CustomerID,
		TechnicianID: b.AssignedTo(),
		Status:       b.Status,
		At:           b.UpdatedAt,
	}
}
