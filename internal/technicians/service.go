package technicians

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"booking-service/internal/apperrors"
	"booking-service/pkg/geo"
	"booking-service/pkg/jwt"
	"booking-service/pkg/validation"
)

// GeoIndex mirrors technician positions for radius queries. *redis.Client satisfies it.
type GeoIndex interface {
	SetTechnicianLocation(ctx context.Context, technicianID string, lat, lng float64) error
	NearbyTechnicians(ctx context.Context, lat, lng, radiusKm float64, count int) ([]string, error)
	RemoveTechnicianLocation(ctx context.Context, technicianID string) error
}

// Categories says which service categories are published. *catalog.Catalog
// satisfies it.
type Categories interface {
	HasCategory(category string) bool
}

// Registry tracks technician identity, category, availability and location.
type Registry struct {
	store      Store
	geo        GeoIndex
	categories Categories
	log        *zap.Logger
}

// NewRegistry creates a registry. geo may be nil.
func NewRegistry(store Store, geo GeoIndex, categories Categories, log *zap.Logger) *Registry {
	return &Registry{store: store, geo: geo, categories: categories, log: log.Named("technicians")}
}

// Register creates a new technician account. New technicians start unavailable.
func (r *Registry) Register(ctx context.Context, req RegisterRequest) (*Technician, error) {
	if err := r.validateRegister(req); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.HashedPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	t := &Technician{
		ID:              uuid.New().String(),
		Name:            strings.TrimSpace(req.Name),
		Email:           strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:           strings.TrimSpace(req.Phone),
		PasswordHash:    string(hash),
		ServiceCategory: req.ServiceCategory,
		IDProofType:     req.IDProofType,
		IDProofNumber:   strings.TrimSpace(req.IDProofNumber),
		CreatedAt:       time.Now().UTC(),
	}
	if err := r.store.Insert(ctx, t); err != nil {
		return nil, err
	}

	r.log.Info("registered technician", zap.String("id", t.ID), zap.String("category", t.ServiceCategory))
	return t, nil
}

func (r *Registry) validateRegister(req RegisterRequest) error {
	switch {
	case !validation.ValidateName(req.Name):
		return fmt.Errorf("name must be 2-50 characters: %w", apperrors.ErrInvalidRequest)
	case !validation.ValidateEmail(req.Email):
		return fmt.Errorf("invalid email: %w", apperrors.ErrInvalidRequest)
	case !validation.ValidatePhone(req.Phone):
		return fmt.Errorf("phone number must contain 10 digits: %w", apperrors.ErrInvalidRequest)
	case !validation.ValidatePassword(req.HashedPassword):
		return fmt.Errorf("invalid password: %w", apperrors.ErrInvalidRequest)
	case !validation.ValidateIDProofType(req.IDProofType):
		return fmt.Errorf("unsupported id proof type %q: %w", req.IDProofType, apperrors.ErrInvalidRequest)
	case !validation.ValidateIDProofNumber(req.IDProofNumber):
		return fmt.Errorf("invalid id proof number: %w", apperrors.ErrInvalidRequest)
	case !r.categories.HasCategory(req.ServiceCategory):
		return fmt.Errorf("unknown service category %q: %w", req.ServiceCategory, apperrors.ErrInvalidRequest)
	}
	return nil
}

// Login authenticates a technician and returns a JWT.
func (r *Registry) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	t, err := r.store.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		return nil, fmt.Errorf("invalid technician credentials: %w", apperrors.ErrUnauthorized)
	}
	if bcrypt.CompareHashAndPassword([]byte(t.PasswordHash), []byte(req.HashedPassword)) != nil {
		return nil, fmt.Errorf("invalid technician credentials: %w", apperrors.ErrUnauthorized)
	}

	token, err := jwt.Generate(t.ID, t.Email, jwt.RoleTechnician)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{Token: token, Role: jwt.RoleTechnician, Technician: t.Masked()}, nil
}

// Upsert inserts or replaces a technician record.
func (r *Registry) Upsert(ctx context.Context, t Technician) (*Technician, error) {
	if !r.categories.HasCategory(t.ServiceCategory) {
		return nil, fmt.Errorf("unknown service category %q: %w", t.ServiceCategory, apperrors.ErrInvalidRequest)
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if err := r.store.Upsert(ctx, &t); err != nil {
		return nil, err
	}
	r.syncGeo(ctx, &t)
	return &t, nil
}

// GetByID fetches a technician.
func (r *Registry) GetByID(ctx context.Context, id string) (*Technician, error) {
	return r.store.GetByID(ctx, id)
}

// GetByEmail fetches a technician by email.
func (r *Registry) GetByEmail(ctx context.Context, email string) (*Technician, error) {
	return r.store.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

// Update applies a profile edit.
func (r *Registry) Update(ctx context.Context, id string, req UpdateRequest) (*Technician, error) {
	t, err := r.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if !validation.ValidateName(*req.Name) {
			return nil, fmt.Errorf("name must be 2-50 characters: %w", apperrors.ErrInvalidRequest)
		}
		t.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		if !validation.ValidatePhone(*req.Phone) {
			return nil, fmt.Errorf("phone number must contain 10 digits: %w", apperrors.ErrInvalidRequest)
		}
		t.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.IDProofType != nil {
		if !validation.ValidateIDProofType(*req.IDProofType) {
			return nil, fmt.Errorf("unsupported id proof type %q: %w", *req.IDProofType, apperrors.ErrInvalidRequest)
		}
		t.IDProofType = *req.IDProofType
	}
	if req.IDProofNumber != nil {
		if !validation.ValidateIDProofNumber(*req.IDProofNumber) {
			return nil, fmt.Errorf("invalid id proof number: %w", apperrors.ErrInvalidRequest)
		}
		t.IDProofNumber = strings.TrimSpace(*req.IDProofNumber)
	}
	if req.ServiceCategory != nil {
		if !r.categories.HasCategory(*req.ServiceCategory) {
			return nil, fmt.Errorf("unknown service category %q: %w", *req.ServiceCategory, apperrors.ErrInvalidRequest)
		}
		t.ServiceCategory = *req.ServiceCategory
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		return nil, fmt.Errorf("latitude and longitude go together: %w", apperrors.ErrInvalidRequest)
	}
	if req.Latitude != nil {
		if !validation.ValidateCoordinates(*req.Latitude, *req.Longitude) {
			return nil, fmt.Errorf("invalid coordinates: %w", apperrors.ErrInvalidRequest)
		}
		t.Location = &Location{Latitude: *req.Latitude, Longitude: *req.Longitude}
	}
	if req.IsAvailable != nil {
		t.IsAvailable = *req.IsAvailable
	}

	if err := r.store.Upsert(ctx, t); err != nil {
		return nil, err
	}
	r.syncGeo(ctx, t)

	r.log.Info("updated technician", zap.String("id", id))
	return t, nil
}

// SetAvailability toggles whether the technician receives bookings.
func (r *Registry) SetAvailability(ctx context.Context, id string, available bool) error {
	if err := r.store.SetAvailability(ctx, id, available); err != nil {
		return err
	}
	r.log.Info("technician availability", zap.String("id", id), zap.Bool("available", available))

	if t, err := r.store.GetByID(ctx, id); err == nil {
		r.syncGeo(ctx, t)
	}
	return nil
}

// UpdateLocation records the technician's current position.
func (r *Registry) UpdateLocation(ctx context.Context, id string, lat, lng float64) (*Technician, error) {
	return r.Update(ctx, id, UpdateRequest{Latitude: &lat, Longitude: &lng})
}

// FindAvailable returns available technicians of a category. Those with a
// known location come first, nearest to near; the rest keep insertion order.
// An empty result is not an error.
func (r *Registry) FindAvailable(ctx context.Context, category string, near *Location) ([]Technician, error) {
	list, err := r.store.ListAvailable(ctx, category)
	if err != nil {
		return nil, err
	}
	if near == nil {
		return list, nil
	}

	dist := func(t Technician) float64 {
		return geo.DistanceKm(near.Latitude, near.Longitude, t.Location.Latitude, t.Location.Longitude)
	}
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		switch {
		case a.Location == nil:
			return false
		case b.Location == nil:
			return true
		default:
			return dist(a) < dist(b)
		}
	})
	return list, nil
}

// Nearby lists technician IDs within radiusKm using the GEO index.
func (r *Registry) Nearby(ctx context.Context, lat, lng, radiusKm float64) ([]string, error) {
	if r.geo == nil {
		return nil, errors.New("geo index not configured")
	}
	return r.geo.NearbyTechnicians(ctx, lat, lng, radiusKm, 20)
}

// syncGeo keeps the GEO index to available technicians with a location.
func (r *Registry) syncGeo(ctx context.Context, t *Technician) {
	if r.geo == nil {
		return
	}
	var err error
	if t.IsAvailable && t.Location != nil {
		err = r.geo.SetTechnicianLocation(ctx, t.ID, t.Location.Latitude, t.Location.Longitude)
	} else {
		err = r.geo.RemoveTechnicianLocation(ctx, t.ID)
	}
	if err != nil {
		r.log.Warn("geo index update failed", zap.String("id", t.ID), zap.Error(err))
	}
}
