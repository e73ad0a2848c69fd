package customers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"booking-service/internal/apperrors"
	"booking-service/pkg/httpx"
	"booking-service/pkg/jwt"
)

// Handler exposes customer HTTP endpoints.
type Handler struct{ svc *Service }

// NewHandler wires a handler to the customer service.
func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// Routes returns a chi.Router for the /users mount point.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(jwt.RequireRole(jwt.RoleCustomer))
	r.Get("/", h.GetByEmail)
	r.Get("/{id}", h.GetProfile)
	r.Put("/{id}", h.Update)
	return r
}

func (h *Handler) GetByEmail(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{"message": "email is required"})
		return
	}
	c, err := h.svc.GetByEmail(r.Context(), email)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if c := jwt.GetClaims(r.Context()); c == nil || c.UserID != id {
		httpx.WriteError(w, apperrors.ErrForbidden)
		return
	}
	var req UpdateRequest
	if !httpx.DecodeJSON(r, &req) {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}
	c, err := h.svc.Update(r.Context(), id, req)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}
