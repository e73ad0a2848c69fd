package technicians

import (
	"time"

	"booking-service/pkg/validation"
)

// Location is a coordinate pair.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Technician is a service provider account.
type Technician struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone"`
	PasswordHash    string    `json:"-"`
	ServiceCategory string    `json:"service_category"`
	IDProofType     string    `json:"id_proof_type"`
	IDProofNumber   string    `json:"id_proof_number"`
	Rating          *float64  `json:"rating"`
	IsAvailable     bool      `json:"is_available"`
	Location        *Location `json:"location"`
	CreatedAt       time.Time `json:"created_at"`
}

// Masked returns a copy safe to hand to clients.
func (t Technician) Masked() *Technician {
	t.IDProofNumber = validation.MaskIDProof(t.IDProofNumber)
	if t.Location != nil {
		loc := *t.Location
		t.Location = &loc
	}
	return &t
}

// RegisterRequest is the body for POST /technician_register.
type RegisterRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	HashedPassword  string `json:"hashed_password"`
	IDProofType     string `json:"id_proof_type"`
	IDProofNumber   string `json:"id_proof_number"`
	ServiceCategory string `json:"service_category"`
}

// LoginRequest is the body for POST /technician_login.
type LoginRequest struct {
	Email          string `json:"email"`
	HashedPassword string `json:"hashed_password"`
}

// UpdateRequest is the body for PUT /technicians/{id}. Nil fields are left alone.
type UpdateRequest struct {
	Name            *string  `json:"name,omitempty"`
	Phone           *string  `json:"phone,omitempty"`
	IDProofType     *string  `json:"id_proof_type,omitempty"`
	IDProofNumber   *string  `json:"id_proof_number,omitempty"`
	ServiceCategory *string  `json:"service_category,omitempty"`
	Latitude        *float64 `json:"latitude,omitempty"`
	Longitude       *float64 `json:"longitude,omitempty"`
	IsAvailable     *bool    `json:"is_available,omitempty"`
}

// StatusRequest is the body for POST /technicians/status.
type StatusRequest struct {
	TechnicianID string `json:"technician_id"`
	Status       string `json:"status"` // active | inactive
}

// LocationUpdate is the body for PATCH /technicians/{id}/location.
type LocationUpdate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// AuthResponse is returned on login.
type AuthResponse struct {
	Token      string      `json:"token"`
	Role       string      `json:"role"`
	Technician *Technician `json:"technician,omitempty"`
}
