package customers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"booking-service/internal/apperrors"
	"booking-service/pkg/jwt"
	"booking-service/pkg/validation"
)

// Service contains customer account logic.
type Service struct {
	store Store
	log   *zap.Logger
}

// NewService creates a customer service backed by the given store.
func NewService(store Store, log *zap.Logger) *Service {
	return &Service{store: store, log: log.Named("customers")}
}

// Register creates a new customer account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Customer, error) {
	switch {
	case !validation.ValidateName(req.Name):
		return nil, fmt.Errorf("name must be 2-50 characters: %w", apperrors.ErrInvalidRequest)
	case !validation.ValidateEmail(req.Email):
		return nil, fmt.Errorf("invalid email: %w", apperrors.ErrInvalidRequest)
	case !validation.ValidatePhone(req.Phone):
		return nil, fmt.Errorf("phone number must contain 10 digits: %w", apperrors.ErrInvalidRequest)
	case !validation.ValidatePassword(req.HashedPassword):
		return nil, fmt.Errorf("invalid password: %w", apperrors.ErrInvalidRequest)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.HashedPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	c := &Customer{
		ID:           uuid.New().String(),
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:        strings.TrimSpace(req.Phone),
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.Insert(ctx, c); err != nil {
		return nil, err
	}

	s.log.Info("registered customer", zap.String("id", c.ID))
	return c, nil
}

// Login authenticates a customer and returns a JWT.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	c, err := s.store.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		return nil, fmt.Errorf("invalid user credentials: %w", apperrors.ErrUnauthorized)
	}
	if bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(req.HashedPassword)) != nil {
		return nil, fmt.Errorf("invalid user credentials: %w", apperrors.ErrUnauthorized)
	}

	token, err := jwt.Generate(c.ID, c.Email, jwt.RoleCustomer)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{Token: token, Role: jwt.RoleCustomer, Customer: c}, nil
}

// GetByID fetches a single customer by primary key.
func (s *Service) GetByID(ctx context.Context, id string) (*Customer, error) {
	return s.store.GetByID(ctx, id)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*Customer, error) {
	return s.store.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

// Update edits name and phone.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*Customer, error) {
	c, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		if !validation.ValidateName(*req.Name) {
			return nil, fmt.Errorf("name must be 2-50 characters: %w", apperrors.ErrInvalidRequest)
		}
		c.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		if !validation.ValidatePhone(*req.Phone) {
			return nil, fmt.Errorf("phone number must contain 10 digits: %w", apperrors.ErrInvalidRequest)
		}
		c.Phone = strings.TrimSpace(*req.Phone)
	}
	if err := s.store.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}
