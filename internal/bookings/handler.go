package bookings

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"booking-service/internal/apperrors"
	"booking-service/pkg/httpx"
	"booking-service/pkg/jwt"
)

// Handler exposes booking HTTP endpoints.
type Handler struct {
	ledger    *Ledger
	onDecline func(bookingID string)
	log       *zap.Logger
}

// NewHandler wires a handler to the ledger. onDecline, if set, runs after a
// technician declines so the booking can be matched again.
func NewHandler(ledger *Ledger, onDecline func(bookingID string), log *zap.Logger) *Handler {
	return &Handler{ledger: ledger, onDecline: onDecline, log: log}
}

// Routes returns a chi.Router for the /bookings mount point.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(jwt.RequireAuth)

	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/status", h.Advance)
	r.Post("/{id}/cancel", h.Cancel)
	r.With(jwt.RequireRole(jwt.RoleTechnician)).Post("/{id}/decline", h.Decline)

	return r
}

// List handles GET /bookings?customer_id= or ?technician_id=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	claims := jwt.GetClaims(r.Context())
	q := r.URL.Query()

	var (
		list []Booking
		err  error
	)
	switch {
	case q.Get("customer_id") != "":
		if q.Get("customer_id") != claims.UserID {
			httpx.WriteError(w, apperrors.ErrForbidden)
			return
		}
		list, err = h.ledger.ListByCustomer(r.Context(), claims.UserID)
	case q.Get("technician_id") != "":
		if q.Get("technician_id") != claims.UserID {
			httpx.WriteError(w, apperrors.ErrForbidden)
			return
		}
		list, err = h.ledger.ListByTechnician(r.Context(), claims.UserID)
	default:
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{"message": "customer_id or technician_id is required"})
		return
	}
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}

// Get is the reconciliation endpoint for clients that missed a push.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	b, ok := h.load(w, r)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, b)
}

func (h *Handler) Advance(w http.ResponseWriter, r *http.Request) {
	b, ok := h.load(w, r)
	if !ok {
		return
	}
	var req StatusRequest
	if !httpx.DecodeJSON(r, &req) || !req.Status.Valid() {
		httpx.WriteError(w, fmt.Errorf("unknown status %q: %w", req.Status, apperrors.ErrInvalidRequest))
		return
	}
	if req.Status == StatusDeclined {
		h.decline(w, r, b.ID)
		return
	}
	if err := mayAdvance(jwt.GetClaims(r.Context()), b, req.Status); err != nil {
		httpx.WriteError(w, err)
		return
	}

	b, err := h.ledger.Advance(r.Context(), b.ID, req.Status)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, b)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	b, ok := h.load(w, r)
	if !ok {
		return
	}
	b, err := h.ledger.Cancel(r.Context(), b.ID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, b)
}

func (h *Handler) Decline(w http.ResponseWriter, r *http.Request) {
	b, ok := h.load(w, r)
	if !ok {
		return
	}
	h.decline(w, r, b.ID)
}

func (h *Handler) decline(w http.ResponseWriter, r *http.Request, bookingID string) {
	claims := jwt.GetClaims(r.Context())
	b, err := h.ledger.Decline(r.Context(), bookingID, claims.UserID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	if h.onDecline != nil {
		h.onDecline(b.ID)
	}
	httpx.WriteJSON(w, http.StatusOK, b)
}

// mayAdvance decides who may request next over HTTP. Job progress belongs to
// the assigned technician, either party may cancel, and the matching states
// are never set by clients.
func mayAdvance(c *jwt.Claims, b *Booking, next Status) error {
	switch next {
	case StatusCancelled:
		return nil
	case StatusPending, StatusAssigned, StatusUnmatched:
		return fmt.Errorf("%s is set by matching: %w", next, apperrors.ErrInvalidRequest)
	}
	if c.Role != jwt.RoleTechnician || c.UserID != b.AssignedTo() {
		return fmt.Errorf("only the assigned technician can move a booking to %s: %w", next, apperrors.ErrForbidden)
	}
	return nil
}

// load fetches the booking in the URL and checks the caller takes part in it.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*Booking, bool) {
	b, err := h.ledger.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, err)
		return nil, false
	}
	claims := jwt.GetClaims(r.Context())
	if claims.UserID != b.CustomerID && claims.UserID != b.AssignedTo() {
		h.log.Warn("booking access denied",
			zap.String("booking_id", b.ID),
			zap.String("user_id", claims.UserID))
		httpx.WriteError(w, apperrors.ErrForbidden)
		return nil, false
	}
	return b, true
}
