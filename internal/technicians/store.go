package technicians

import (
	"context"
	"fmt"
	"sync"

	"booking-service/internal/apperrors"
)

// Store persists technicians. ListAvailable returns records in insertion order.
type Store interface {
	Insert(ctx context.Context, t *Technician) error
	Upsert(ctx context.Context, t *Technician) error
	GetByID(ctx context.Context, id string) (*Technician, error)
	GetByEmail(ctx context.Context, email string) (*Technician, error)
	ListAvailable(ctx context.Context, category string) ([]Technician, error)
	SetAvailability(ctx context.Context, id string, available bool) error
}

// MemoryStore keeps technicians in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]*Technician
	order []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*Technician)}
}

func (s *MemoryStore) Insert(_ context.Context, t *Technician) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[t.ID]; ok {
		return fmt.Errorf("technician %s already exists: %w", t.ID, apperrors.ErrConflict)
	}
	if err := s.checkUnique(t); err != nil {
		return err
	}
	s.put(t)
	return nil
}

func (s *MemoryStore) Upsert(_ context.Context, t *Technician) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkUnique(t); err != nil {
		return err
	}
	s.put(t)
	return nil
}

// checkUnique rejects an email or phone owned by another technician.
func (s *MemoryStore) checkUnique(t *Technician) error {
	for id, other := range s.byID {
		if id == t.ID {
			continue
		}
		if other.Email == t.Email {
			return fmt.Errorf("email already exists: %w", apperrors.ErrConflict)
		}
		if other.Phone == t.Phone {
			return fmt.Errorf("phone already exists: %w", apperrors.ErrConflict)
		}
	}
	return nil
}

func (s *MemoryStore) put(t *Technician) {
	if _, ok := s.byID[t.ID]; !ok {
		s.order = append(s.order, t.ID)
	}
	cp := *t
	if t.Location != nil {
		loc := *t.Location
		cp.Location = &loc
	}
	s.byID[t.ID] = &cp
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*Technician, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("technician %s: %w", id, apperrors.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) GetByEmail(_ context.Context, email string) (*Technician, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		if t := s.byID[id]; t.Email == email {
			cp := *t
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("technician %s: %w", email, apperrors.ErrNotFound)
}

func (s *MemoryStore) ListAvailable(_ context.Context, category string) ([]Technician, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Technician
	for _, id := range s.order {
		t := s.byID[id]
		if t.IsAvailable && t.ServiceCategory == category {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *MemoryStore) SetAvailability(_ context.Context, id string, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("technician %s: %w", id, apperrors.ErrNotFound)
	}
	t.IsAvailable = available
	return nil
}
