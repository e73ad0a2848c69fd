package technicians

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"booking-service/internal/apperrors"
	"booking-service/pkg/httpx"
	"booking-service/pkg/jwt"
)

// Handler exposes technician HTTP endpoints.
type Handler struct {
	reg *Registry
	log *zap.Logger
}

// NewHandler wires a handler to the registry.
func NewHandler(reg *Registry, log *zap.Logger) *Handler {
	return &Handler{reg: reg, log: log}
}

// Routes returns a chi.Router for the /technicians mount point.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(jwt.RequireAuth)
		r.Get("/", h.GetByEmail)
		r.Get("/available", h.Available) // must come before /{id}
		r.Get("/nearby", h.Nearby)
		r.Get("/{id}", h.GetByID)
	})

	r.Group(func(r chi.Router) {
		r.Use(jwt.RequireRole(jwt.RoleTechnician))
		r.Post("/status", h.SetStatus)
		r.Put("/{id}", h.Update)
		r.Patch("/{id}/location", h.UpdateLocation)
	})

	return r
}

func (h *Handler) GetByEmail(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{"message": "email is required"})
		return
	}
	t, err := h.reg.GetByEmail(r.Context(), email)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, t.Masked())
}

func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	t, err := h.reg.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, t.Masked())
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !ownID(r, id) {
		httpx.WriteError(w, apperrors.ErrForbidden)
		return
	}
	var req UpdateRequest
	if !httpx.DecodeJSON(r, &req) {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}
	t, err := h.reg.Update(r.Context(), id, req)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, t.Masked())
}

// SetStatus handles POST /technicians/status with active | inactive.
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if !httpx.DecodeJSON(r, &req) {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}
	if !ownID(r, req.TechnicianID) {
		httpx.WriteError(w, apperrors.ErrForbidden)
		return
	}

	var available bool
	switch req.Status {
	case "active":
		available = true
	case "inactive":
	default:
		httpx.WriteError(w, fmt.Errorf("status must be active or inactive: %w", apperrors.ErrInvalidRequest))
		return
	}

	if err := h.reg.SetAvailability(r.Context(), req.TechnicianID, available); err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"technician_id": req.TechnicianID,
		"is_available":  available,
	})
}

func (h *Handler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !ownID(r, id) {
		httpx.WriteError(w, apperrors.ErrForbidden)
		return
	}
	var loc LocationUpdate
	if !httpx.DecodeJSON(r, &loc) {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}
	if _, err := h.reg.UpdateLocation(r.Context(), id, loc.Latitude, loc.Longitude); err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "location_updated"})
}

// Available handles GET /technicians/available?category=&lat=&lng=.
func (h *Handler) Available(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category := q.Get("category")
	if category == "" {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{"message": "category is required"})
		return
	}

	var near *Location
	if q.Get("lat") != "" && q.Get("lng") != "" {
		lat, err1 := strconv.ParseFloat(q.Get("lat"), 64)
		lng, err2 := strconv.ParseFloat(q.Get("lng"), 64)
		if err1 != nil || err2 != nil {
			httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid coordinates"})
			return
		}
		near = &Location{Latitude: lat, Longitude: lng}
	}

	list, err := h.reg.FindAvailable(r.Context(), category, near)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	out := make([]*Technician, 0, len(list))
	for _, t := range list {
		out = append(out, t.Masked())
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) Nearby(w http.ResponseWriter, r *http.Request) {
	lat, _ := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, _ := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	radius := 5.0
	if v := r.URL.Query().Get("radius"); v != "" {
		radius, _ = strconv.ParseFloat(v, 64)
	}
	ids, err := h.reg.Nearby(r.Context(), lat, lng, radius)
	if err != nil {
		h.log.Warn("nearby lookup failed", zap.Error(err))
		httpx.WriteError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"technicians": ids})
}

func ownID(r *http.Request, id string) bool {
	c := jwt.GetClaims(r.Context())
	return c != nil && c.UserID == id
}
