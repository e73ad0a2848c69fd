package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"booking-service/internal/apperrors"
	"booking-service/internal/bookings"
	"booking-service/internal/catalog"
	"booking-service/internal/technicians"
)

// Registry is the part of *technicians.Registry the matcher reads.
type Registry interface {
	FindAvailable(ctx context.Context, category string, near *technicians.Location) ([]technicians.Technician, error)
}

// Ledger is the part of *bookings.Ledger the matcher drives.
type Ledger interface {
	Create(ctx context.Context, in bookings.CreateInput) (*bookings.Booking, error)
	Assign(ctx context.Context, bookingID, technicianID string) (*bookings.Booking, error)
	Advance(ctx context.Context, bookingID string, next bookings.Status) (*bookings.Booking, error)
	Get(ctx context.Context, bookingID string) (*bookings.Booking, error)
	Busy(ctx context.Context, technicianID string) (bool, error)
}

// Catalog resolves a service to its category. *catalog.Catalog satisfies it.
type Catalog interface {
	Get(sid int) (*catalog.Service, error)
}

// Options bound a matching run.
type Options struct {
	Timeout       time.Duration
	RetryInterval time.Duration
	MaxAttempts   int
	Selector      Selector
}

// RequestInput is the body for POST /booking/request.
type RequestInput struct {
	CustomerID string  `json:"customer_id"`
	ServiceID  int     `json:"service_id"`
	Address    string  `json:"address"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
}

// Result is the outcome of a matching run.
type Result struct {
	BookingID    string          `json:"booking_id"`
	TechnicianID string          `json:"technician_id,omitempty"`
	Status       bookings.Status `json:"status"`
}

// Matcher bridges booking creation to technician assignment.
type Matcher struct {
	registry Registry
	ledger   Ledger
	catalog  Catalog
	opts     Options
	log      *zap.Logger
}

// NewMatcher creates a matcher. Zero options fall back to defaults.
func NewMatcher(reg Registry, ledger Ledger, cat Catalog, opts Options, log *zap.Logger) *Matcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 2 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.Selector == nil {
		opts.Selector = Nearest
	}
	return &Matcher{registry: reg, ledger: ledger, catalog: cat, opts: opts, log: log.Named("matching")}
}

// Request creates a booking and tries to assign a technician before the
// matching timeout. When none is found the booking ends unmatched and the
// error wraps apperrors.ErrUnmatched. If ctx is cancelled by the caller the
// booking is cancelled.
func (m *Matcher) Request(ctx context.Context, in RequestInput) (*Result, error) {
	svc, err := m.catalog.Get(in.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("service %d does not resolve: %w", in.ServiceID, apperrors.ErrInvalidRequest)
	}

	b, err := m.ledger.Create(ctx, bookings.CreateInput{
		CustomerID: in.CustomerID,
		ServiceID:  in.ServiceID,
		Address:    in.Address,
		Latitude:   in.Latitude,
		Longitude:  in.Longitude,
	})
	if err != nil {
		return nil, err
	}

	m.log.Info("matching booking",
		zap.String("booking_id", b.ID),
		zap.String("category", svc.ServiceCategory))
	return m.match(ctx, b.ID, svc.ServiceCategory, technicians.Location{Latitude: in.Latitude, Longitude: in.Longitude})
}

// Rematch runs matching again for a pending booking, typically after a decline.
func (m *Matcher) Rematch(ctx context.Context, bookingID string) (*Result, error) {
	b, err := m.ledger.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != bookings.StatusPending {
		return nil, fmt.Errorf("booking %s is %s: %w", bookingID, b.Status, apperrors.ErrConflict)
	}
	svc, err := m.catalog.Get(b.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("service %d does not resolve: %w", b.ServiceID, apperrors.ErrInvalidRequest)
	}
	return m.match(ctx, b.ID, svc.ServiceCategory, technicians.Location{Latitude: b.Latitude, Longitude: b.Longitude})
}

// RematchInBackground runs Rematch on its own goroutine and logs the outcome.
func (m *Matcher) RematchInBackground(bookingID string) {
	go func() {
		res, err := m.Rematch(context.Background(), bookingID)
		if err != nil {
			m.log.Warn("rematch finished without a technician", zap.String("booking_id", bookingID), zap.Error(err))
			return
		}
		m.log.Info("rematched booking", zap.String("booking_id", bookingID), zap.String("technician_id", res.TechnicianID))
	}()
}

func (m *Matcher) match(ctx context.Context, bookingID, category string, at technicians.Location) (*Result, error) {
	mctx, cancel := context.WithTimeout(ctx, m.opts.Timeout)
	defer cancel()

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for round := 1; ; round++ {
		res, err := m.round(mctx, bookingID, category, at)
		if res != nil {
			return res, nil
		}
		if err != nil && mctx.Err() == nil {
			return nil, err
		}

		m.log.Debug("no technician this round", zap.String("booking_id", bookingID), zap.Int("round", round))
		timer.Reset(m.opts.RetryInterval)
		select {
		case <-mctx.Done():
			return m.giveUp(ctx, bookingID)
		case <-timer.C:
		}
	}
}

// round tries up to MaxAttempts free candidates once. Technicians already
// holding a booking are skipped without spending an attempt. It returns a
// result on success, nil, nil when nobody could take the booking.
func (m *Matcher) round(ctx context.Context, bookingID, category string, at technicians.Location) (*Result, error) {
	b, err := m.ledger.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != bookings.StatusPending {
		return nil, fmt.Errorf("booking %s is %s: %w", bookingID, b.Status, apperrors.ErrConflict)
	}

	candidates, err := m.opts.Selector(ctx, m.registry, category, at)
	if err != nil {
		return nil, err
	}

	attempts := 0
	for _, c := range candidates {
		if b.HasDeclined(c.ID) {
			continue
		}
		if attempts == m.opts.MaxAttempts {
			break
		}
		if busy, err := m.ledger.Busy(ctx, c.ID); err != nil {
			m.log.Warn("slot lookup failed", zap.String("technician_id", c.ID), zap.Error(err))
		} else if busy {
			continue
		}
		attempts++

		assigned, err := m.ledger.Assign(ctx, bookingID, c.ID)
		if err == nil {
			m.log.Info("assigned technician",
				zap.String("booking_id", bookingID),
				zap.String("technician_id", c.ID),
				zap.Int("attempt", attempts))
			return &Result{BookingID: bookingID, TechnicianID: c.ID, Status: assigned.Status}, nil
		}
		if !errors.Is(err, apperrors.ErrConflict) {
			return nil, err
		}
		// Lost the technician to another booking, or the booking itself moved on.
		if cur, gerr := m.ledger.Get(ctx, bookingID); gerr == nil && cur.Status != bookings.StatusPending {
			return nil, fmt.Errorf("booking %s is %s: %w", bookingID, cur.Status, apperrors.ErrConflict)
		}
	}
	return nil, nil
}

// giveUp resolves a booking whose matching window closed. A caller that
// cancelled gets a cancelled booking; a timeout ends unmatched.
func (m *Matcher) giveUp(ctx context.Context, bookingID string) (*Result, error) {
	next := bookings.StatusUnmatched
	if errors.Is(ctx.Err(), context.Canceled) {
		next = bookings.StatusCancelled
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	b, err := m.ledger.Advance(wctx, bookingID, next)
	if err != nil {
		// Someone else resolved it first.
		cur, gerr := m.ledger.Get(wctx, bookingID)
		if gerr != nil {
			return nil, err
		}
		if cur.Status == bookings.StatusAssigned {
			return &Result{BookingID: bookingID, TechnicianID: cur.AssignedTo(), Status: cur.Status}, nil
		}
		return nil, err
	}

	m.log.Info("matching gave up", zap.String("booking_id", bookingID), zap.String("status", string(b.Status)))
	res := &Result{BookingID: bookingID, Status: b.Status}
	if next == bookings.StatusCancelled {
		return res, fmt.Errorf("booking %s: %w", bookingID, ctx.Err())
	}
	return res, fmt.Errorf("booking %s: %w", bookingID, apperrors.ErrUnmatched)
}
