package bookings

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"booking-service/internal/apperrors"
	"booking-service/internal/catalog"
	"booking-service/pkg/validation"
)

// ServiceResolver looks services up by SID. *catalog.Catalog satisfies it.
type ServiceResolver interface {
	Get(sid int) (*catalog.Service, error)
}

// Ledger is the single source of truth for booking state. Mutations of one
// booking are serialised; technician slots guard the one-active-booking rule.
type Ledger struct {
	store    Store
	slots    SlotStore
	services ServiceResolver
	notifier Notifier
	locks    *keyedMutex
	log      *zap.Logger
	now      func() time.Time
}

// NewLedger creates a ledger. notifier may be nil.
func NewLedger(store Store, slots SlotStore, services ServiceResolver, notifier Notifier, log *zap.Logger) *Ledger {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Ledger{
		store:    store,
		slots:    slots,
		services: services,
		notifier: notifier,
		locks:    newKeyedMutex(),
		log:      log.Named("ledger"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create records a pending booking. An unresolvable service creates nothing.
func (l *Ledger) Create(ctx context.Context, in CreateInput) (*Booking, error) {
	if _, err := l.services.Get(in.ServiceID); err != nil {
		return nil, fmt.Errorf("service %d does not resolve: %w", in.ServiceID, apperrors.ErrInvalidRequest)
	}
	if strings.TrimSpace(in.CustomerID) == "" {
		return nil, fmt.Errorf("customer_id is required: %w", apperrors.ErrInvalidRequest)
	}
	if !validation.ValidateCoordinates(in.Latitude, in.Longitude) {
		return nil, fmt.Errorf("invalid coordinates: %w", apperrors.ErrInvalidRequest)
	}

	now := l.now()
	b := &Booking{
		ID:         uuid.New().String(),
		CustomerID: in.CustomerID,
		ServiceID:  in.ServiceID,
		Address:    strings.TrimSpace(in.Address),
		Latitude:   in.Latitude,
		Longitude:  in.Longitude,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := l.store.Insert(ctx, b); err != nil {
		return nil, err
	}

	l.log.Info("booking created", zap.String("booking_id", b.ID), zap.Int("service_id", b.ServiceID))
	l.notifier.Notify(eventFor(b))
	return b, nil
}

// Assign moves a pending booking to assigned. It fails with ErrConflict when
// the booking is no longer pending or the technician's slot is taken.
func (l *Ledger) Assign(ctx context.Context, bookingID, technicianID string) (*Booking, error) {
	unlock := l.locks.Lock(bookingID)
	defer unlock()

	b, err := l.store.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusPending || b.TechnicianID != nil {
		return nil, fmt.Errorf("booking %s is %s: %w", bookingID, b.Status, apperrors.ErrConflict)
	}

	ok, err := l.slots.Claim(ctx, technicianID, bookingID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("technician %s already holds an active booking: %w", technicianID, apperrors.ErrConflict)
	}

	b.Status = StatusAssigned
	b.TechnicianID = &technicianID
	b.UpdatedAt = l.now()
	if err := l.store.Update(ctx, b, StatusPending); err != nil {
		l.release(ctx, technicianID, bookingID)
		return nil, err
	}

	l.log.Info("booking assigned", zap.String("booking_id", bookingID), zap.String("technician_id", technicianID))
	l.notifier.Notify(eventFor(b))
	return b, nil
}

// Advance moves a booking one step along the state machine. Any other jump
// fails with ErrInvalidTransition and leaves the booking unchanged.
func (l *Ledger) Advance(ctx context.Context, bookingID string, next Status) (*Booking, error) {
	unlock := l.locks.Lock(bookingID)
	defer unlock()

	b, err := l.store.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(b.Status, next) {
		return nil, fmt.Errorf("%s → %s: %w", b.Status, next, apperrors.ErrInvalidTransition)
	}

	switch next {
	case StatusAssigned:
		return nil, fmt.Errorf("assignment needs a technician: %w", apperrors.ErrInvalidRequest)
	case StatusDeclined:
		return l.decline(ctx, b, b.AssignedTo())
	case StatusPending:
		if t := b.AssignedTo(); t != "" {
			l.release(ctx, t, b.ID)
			b.TechnicianID = nil
		}
	}
	return l.move(ctx, b, next)
}

// Cancel moves any non-terminal booking to cancelled.
func (l *Ledger) Cancel(ctx context.Context, bookingID string) (*Booking, error) {
	return l.Advance(ctx, bookingID, StatusCancelled)
}

// Decline returns an assigned booking to pending through declined. The
// technician's slot is freed and the technician is not offered it again.
func (l *Ledger) Decline(ctx context.Context, bookingID, technicianID string) (*Booking, error) {
	unlock := l.locks.Lock(bookingID)
	defer unlock()

	b, err := l.store.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusAssigned {
		return nil, fmt.Errorf("%s → %s: %w", b.Status, StatusDeclined, apperrors.ErrInvalidTransition)
	}
	if b.AssignedTo() != technicianID {
		return nil, fmt.Errorf("booking %s is not assigned to %s: %w", bookingID, technicianID, apperrors.ErrForbidden)
	}
	return l.decline(ctx, b, technicianID)
}

func (l *Ledger) decline(ctx context.Context, b *Booking, technicianID string) (*Booking, error) {
	b.DeclinedBy = append(b.DeclinedBy, technicianID)
	b, err := l.move(ctx, b, StatusDeclined)
	if err != nil {
		return nil, err
	}
	l.release(ctx, technicianID, b.ID)
	b.TechnicianID = nil
	return l.move(ctx, b, StatusPending)
}

// move writes b with status next. The caller holds the booking lock.
func (l *Ledger) move(ctx context.Context, b *Booking, next Status) (*Booking, error) {
	from := b.Status
	b.Status = next
	b.UpdatedAt = l.now()
	if err := l.store.Update(ctx, b, from); err != nil {
		return nil, err
	}
	if next.IsTerminal() && b.TechnicianID != nil {
		l.release(ctx, *b.TechnicianID, b.ID)
	}

	l.log.Info("booking advanced",
		zap.String("booking_id", b.ID),
		zap.String("from", string(from)),
		zap.String("to", string(next)))
	l.notifier.Notify(eventFor(b))
	return b, nil
}

func (l *Ledger) release(ctx context.Context, technicianID, bookingID string) {
	if err := l.slots.Release(context.WithoutCancel(ctx), technicianID, bookingID); err != nil {
		l.log.Error("slot release failed",
			zap.String("technician_id", technicianID),
			zap.String("booking_id", bookingID),
			zap.Error(err))
	}
}

// Get returns the latest committed state. It never mutates.
func (l *Ledger) Get(ctx context.Context, bookingID string) (*Booking, error) {
	return l.store.Get(ctx, bookingID)
}

// Busy reports whether the technician holds an active booking. The answer
// may be stale by the time the caller acts on it; Assign stays authoritative.
func (l *Ledger) Busy(ctx context.Context, technicianID string) (bool, error) {
	holder, err := l.slots.Holder(ctx, technicianID)
	return holder != "", err
}

func (l *Ledger) ListByCustomer(ctx context.Context, customerID string) ([]Booking, error) {
	return l.store.ListByCustomer(ctx, customerID)
}

func (l *Ledger) ListByTechnician(ctx context.Context, technicianID string) ([]Booking, error) {
	return l.store.ListByTechnician(ctx, technicianID)
}

// keyedMutex hands out one mutex per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
