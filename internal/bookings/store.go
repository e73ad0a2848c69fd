package bookings

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"booking-service/internal/apperrors"
)

// Store persists bookings. Update is conditional: it writes b only while the
// stored status still equals from, and returns ErrConflict otherwise.
type Store interface {
	Insert(ctx context.Context, b *Booking) error
	Get(ctx context.Context, id string) (*Booking, error)
	Update(ctx context.Context, b *Booking, from Status) error
	ListByCustomer(ctx context.Context, customerID string) ([]Booking, error)
	ListByTechnician(ctx context.Context, technicianID string) ([]Booking, error)
}

// MemoryStore keeps bookings in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]*Booking
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*Booking)}
}

func (s *MemoryStore) Insert(_ context.Context, b *Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[b.ID]; ok {
		return fmt.Errorf("booking %s already exists: %w", b.ID, apperrors.ErrConflict)
	}
	s.byID[b.ID] = b.clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("booking %s: %w", id, apperrors.ErrNotFound)
	}
	return b.clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, b *Booking, from Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.byID[b.ID]
	if !ok {
		return fmt.Errorf("booking %s: %w", b.ID, apperrors.ErrNotFound)
	}
	if cur.Status != from {
		return fmt.Errorf("booking %s is %s, not %s: %w", b.ID, cur.Status, from, apperrors.ErrConflict)
	}
	s.byID[b.ID] = b.clone()
	return nil
}

func (s *MemoryStore) ListByCustomer(_ context.Context, customerID string) ([]Booking, error) {
	return s.list(func(b *Booking) bool { return b.CustomerID == customerID }), nil
}

func (s *MemoryStore) ListByTechnician(_ context.Context, technicianID string) ([]Booking, error) {
	return s.list(func(b *Booking) bool { return b.AssignedTo() == technicianID }), nil
}

// list returns matching bookings, newest first.
func (s *MemoryStore) list(match func(*Booking) bool) []Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Booking{}
	for _, b := range s.byID {
		if match(b) {
			out = append(out, *b.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}
