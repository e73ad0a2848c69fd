package customers

import (
	"context"
	"fmt"
	"sync"

	"booking-service/internal/apperrors"
	"booking-service/pkg/db"
)

// Store persists customers.
type Store interface {
	Insert(ctx context.Context, c *Customer) error
	Update(ctx context.Context, c *Customer) error
	GetByID(ctx context.Context, id string) (*Customer, error)
	GetByEmail(ctx context.Context, email string) (*Customer, error)
}

// MemoryStore keeps customers in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]Customer
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]Customer)}
}

func (s *MemoryStore) Insert(_ context.Context, c *Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[c.ID]; ok {
		return fmt.Errorf("customer %s already exists: %w", c.ID, apperrors.ErrConflict)
	}
	if err := s.checkUnique(c); err != nil {
		return err
	}
	s.byID[c.ID] = *c
	return nil
}

func (s *MemoryStore) Update(_ context.Context, c *Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[c.ID]; !ok {
		return fmt.Errorf("customer %s: %w", c.ID, apperrors.ErrNotFound)
	}
	if err := s.checkUnique(c); err != nil {
		return err
	}
	s.byID[c.ID] = *c
	return nil
}

func (s *MemoryStore) checkUnique(c *Customer) error {
	for id, other := range s.byID {
		if id == c.ID {
			continue
		}
		if other.Email == c.Email {
			return fmt.Errorf("email already exists: %w", apperrors.ErrConflict)
		}
		if other.Phone == c.Phone {
			return fmt.Errorf("phone already exists: %w", apperrors.ErrConflict)
		}
	}
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("customer %s: %w", id, apperrors.ErrNotFound)
	}
	return &c, nil
}

func (s *MemoryStore) GetByEmail(_ context.Context, email string) (*Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.byID {
		if c.Email == email {
			return &c, nil
		}
	}
	return nil, fmt.Errorf("customer %s: %w", email, apperrors.ErrNotFound)
}

// PostgresStore keeps customers in the customers table.
type PostgresStore struct {
	db db.Querier
}

func NewPostgresStore(q db.Querier) *PostgresStore {
	return &PostgresStore{db: q}
}

func (s *PostgresStore) Insert(ctx context.Context, c *Customer) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO customers (id,name,email,phone,password_hash,created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		c.ID, c.Name, c.Email, c.Phone, c.PasswordHash, c.CreatedAt)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("email or phone already exists: %w", apperrors.ErrConflict)
	}
	return err
}

func (s *PostgresStore) Update(ctx context.Context, c *Customer) error {
	tag, err := s.db.Exec(ctx, `UPDATE customers SET name=$1, phone=$2 WHERE id=$3`, c.Name, c.Phone, c.ID)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("phone already exists: %w", apperrors.ErrConflict)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("customer %s: %w", c.ID, apperrors.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*Customer, error) {
	return s.getOne(ctx, `SELECT id,name,email,phone,password_hash,created_at FROM customers WHERE id=$1`, id)
}

func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (*Customer, error) {
	return s.getOne(ctx, `SELECT id,name,email,phone,password_hash,created_at FROM customers WHERE email=$1`, email)
}

func (s *PostgresStore) getOne(ctx context.Context, query, key string) (*Customer, error) {
	var c Customer
	err := s.db.QueryRow(ctx, query, key).
		Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.PasswordHash, &c.CreatedAt)
	if db.IsNoRows(err) {
		return nil, fmt.Errorf("customer %s: %w", key, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
