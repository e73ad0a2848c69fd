// Package auth serves account registration and login for both roles.
package auth

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"booking-service/internal/customers"
	"booking-service/internal/technicians"
	"booking-service/pkg/httpx"
)

// CustomerAccounts is satisfied by *customers.Service.
type CustomerAccounts interface {
	Register(ctx context.Context, req customers.RegisterRequest) (*customers.Customer, error)
	Login(ctx context.Context, req customers.LoginRequest) (*customers.AuthResponse, error)
}

// TechnicianAccounts is satisfied by *technicians.Registry.
type TechnicianAccounts interface {
	Register(ctx context.Context, req technicians.RegisterRequest) (*technicians.Technician, error)
	Login(ctx context.Context, req technicians.LoginRequest) (*technicians.AuthResponse, error)
}

// Handler exposes the public auth endpoints.
type Handler struct {
	customers   CustomerAccounts
	technicians TechnicianAccounts
	log         *zap.Logger
}

func NewHandler(c CustomerAccounts, t TechnicianAccounts, log *zap.Logger) *Handler {
	return &Handler{customers: c, technicians: t, log: log.Named("auth")}
}

// Mount registers the auth routes on the root router.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/register", h.RegisterCustomer)
	r.Post("/login", h.LoginCustomer)
	r.Post("/technician_register", h.RegisterTechnician)
	r.Post("/technician_login", h.LoginTechnician)
}

func (h *Handler) RegisterCustomer(w http.ResponseWriter, r *http.Request) {
	var req customers.RegisterRequest
	if !httpx.DecodeJSON(r, &req) {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}
	c, err := h.customers.Register(r.Context(), req)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"user":    c,
	})
}

func (h *Handler) LoginCustomer(w http.ResponseWriter, r *http.Request) {
	var req customers.LoginRequest
	if !httpx.DecodeJSON(r, &req) {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}
	resp, err := h.customers.Login(r.Context(), req)
	if err != nil {
		h.log.Info("customer login rejected", zap.String("email", req.Email))
		httpx.WriteJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid User Credentials"})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) RegisterTechnician(w http.ResponseWriter, r *http.Request) {
	var req technicians.RegisterRequest
	if !httpx.DecodeJSON(r, &req) {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}
	t, err := h.technicians.Register(r.Context(), req)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"message":    "Technician registered successfully",
		"technician": t.Masked(),
	})
}

func (h *Handler) LoginTechnician(w http.ResponseWriter, r *http.Request) {
	var req technicians.LoginRequest
	if !httpx.DecodeJSON(r, &req) {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}
	resp, err := h.technicians.Login(r.Context(), req)
	if err != nil {
		h.log.Info("technician login rejected", zap.String("email", req.Email))
		httpx.WriteJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid Technician Credentials"})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
