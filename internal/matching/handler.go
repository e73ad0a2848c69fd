package matching

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"booking-service/internal/apperrors"
	"booking-service/pkg/httpx"
	"booking-service/pkg/jwt"
)

// Handler exposes the booking request endpoint.
type Handler struct {
	m   *Matcher
	log *zap.Logger
}

func NewHandler(m *Matcher, log *zap.Logger) *Handler {
	return &Handler{m: m, log: log}
}

// Mount registers POST /booking/request on the root router.
func (h *Handler) Mount(r chi.Router) {
	r.With(jwt.RequireRole(jwt.RoleCustomer)).Post("/booking/request", h.Request)
}

// Request blocks until a technician is assigned or matching gives up.
// Closing the connection cancels the booking.
func (h *Handler) Request(w http.ResponseWriter, r *http.Request) {
	claims := jwt.GetClaims(r.Context())

	var in RequestInput
	if !httpx.DecodeJSON(r, &in) {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}
	if in.CustomerID == "" {
		in.CustomerID = claims.UserID
	}
	if in.CustomerID != claims.UserID {
		httpx.WriteError(w, apperrors.ErrForbidden)
		return
	}

	res, err := h.m.Request(r.Context(), in)
	switch {
	case errors.Is(err, apperrors.ErrUnmatched):
		httpx.WriteJSON(w, http.StatusNotFound, map[string]any{
			"message":    "No technician available at this moment",
			"booking_id": res.BookingID,
			"status":     res.Status,
		})
	case err != nil:
		if r.Context().Err() != nil {
			h.log.Info("booking request abandoned by client", zap.String("customer_id", in.CustomerID))
			return
		}
		httpx.WriteError(w, err)
	default:
		httpx.WriteJSON(w, http.StatusOK, res)
	}
}
