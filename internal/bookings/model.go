package bookings

import "time"

// Status is a booking lifecycle state.
type Status string

const (
	StatusPending        Status = "pending"
	StatusAssigned       Status = "assigned"
	StatusAccepted       Status = "accepted"
	StatusArriving       Status = "arriving"
	StatusWorking        Status = "working"
	StatusChecking       Status = "checking"
	StatusPaymentPending Status = "payment_pending"
	StatusCompleted      Status = "completed"
	StatusUnmatched      Status = "unmatched"
	StatusDeclined       Status = "declined"
	StatusCancelled      Status = "cancelled"
)

// transitions lists the allowed next states. Every non-terminal state may
// also move to cancelled.
var transitions = map[Status][]Status{
	StatusPending:        {StatusAssigned, StatusUnmatched},
	StatusAssigned:       {StatusAccepted, StatusDeclined},
	StatusAccepted:       {StatusArriving},
	StatusArriving:       {StatusWorking},
	StatusWorking:        {StatusChecking},
	StatusChecking:       {StatusPaymentPending},
	StatusPaymentPending: {StatusCompleted},
	StatusDeclined:       {StatusPending},
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusUnmatched, StatusCancelled:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	if s.IsTerminal() {
		return true
	}
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether from → to is an edge of the state machine.
func CanTransition(from, to Status) bool {
	if from.IsTerminal() || !from.Valid() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Booking is a single service request and its fulfillment lifecycle.
type Booking struct {
	ID           string    `json:"id"`
	CustomerID   string    `json:"customer_id"`
	TechnicianID *string   `json:"technician_id"`
	ServiceID    int       `json:"service_id"`
	Address      string    `json:"address"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Status       Status    `json:"status"`
	DeclinedBy   []string  `json:"declined_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AssignedTo returns the technician id or "".
func (b *Booking) AssignedTo() string {
	if b.TechnicianID == nil {
		return ""
	}
	return *b.TechnicianID
}

// HasDeclined reports whether technicianID turned this booking down before.
func (b *Booking) HasDeclined(technicianID string) bool {
	for _, id := range b.DeclinedBy {
		if id == technicianID {
			return true
		}
	}
	return false
}

func (b *Booking) clone() *Booking {
	cp := *b
	if b.TechnicianID != nil {
		id := *b.TechnicianID
		cp.TechnicianID = &id
	}
	cp.DeclinedBy = append([]string(nil), b.DeclinedBy...)
	return &cp
}

// CreateInput carries the fields a customer supplies for a new booking.
type CreateInput struct {
	CustomerID string  `json:"customer_id"`
	ServiceID  int     `json:"service_id"`
	Address    string  `json:"address"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
}

// StatusRequest is the body for PATCH /bookings/{id}/status.
type StatusRequest struct {
	Status Status `json:"status"`
}
