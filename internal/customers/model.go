package customers

import "time"

// Customer is an account that books services.
type Customer struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// RegisterRequest is the body for POST /register.
type RegisterRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	HashedPassword string `json:"hashed_password"`
}

// LoginRequest is the body for POST /login.
type LoginRequest struct {
	Email          string `json:"email"`
	HashedPassword string `json:"hashed_password"`
}

// UpdateRequest is the body for PUT /users/{id}.
type UpdateRequest struct {
	Name  *string `json:"name,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

// AuthResponse is returned on login.
type AuthResponse struct {
	Token    string    `json:"token"`
	Role     string    `json:"role"`
	Customer *Customer `json:"user,omitempty"`
}
