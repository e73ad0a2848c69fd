package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"booking-service/internal/apperrors"
	"booking-service/internal/bookings"
	"booking-service/internal/matching"
	"booking-service/internal/technicians"
	"booking-service/pkg/jwt"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const maxFrameBytes = 64 << 10

// safeConn serialises writes from the hub pump and the frame handlers.
type safeConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *safeConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

func (c *safeConn) close() { c.ws.Close() }

// Requester runs a booking request. *matching.Matcher satisfies it.
type Requester interface {
	Request(ctx context.Context, in matching.RequestInput) (*matching.Result, error)
}

// BookingLedger is satisfied by *bookings.Ledger.
type BookingLedger interface {
	Get(ctx context.Context, bookingID string) (*bookings.Booking, error)
	Advance(ctx context.Context, bookingID string, next bookings.Status) (*bookings.Booking, error)
}

// LocationRecorder is satisfied by *technicians.Registry.
type LocationRecorder interface {
	UpdateLocation(ctx context.Context, id string, lat, lng float64) (*technicians.Technician, error)
}

// clientFrame is what clients send: {"event": "...", "data": {...}}.
type clientFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// BookingResponse answers a booking_request frame.
type BookingResponse struct {
	BookingID    string          `json:"booking_id,omitempty"`
	TechnicianID string          `json:"technician_id,omitempty"`
	Status       bookings.Status `json:"status,omitempty"`
	Message      string          `json:"message"`
}

// LocationPayload is the data of a location_update frame.
type LocationPayload struct {
	BookingID    string  `json:"booking_id"`
	TechnicianID string  `json:"technician_id,omitempty"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
}

// JobPayload is the data of booking_accept, work_done and issue_report frames.
type JobPayload struct {
	BookingID        string `json:"booking_id"`
	WorkReport       string `json:"work_report,omitempty"`
	IssueDescription string `json:"issue_description,omitempty"`
}

// CustomerLocation tells the accepting technician where to go.
type CustomerLocation struct {
	BookingID string  `json:"booking_id"`
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// WorkReport is relayed to the customer when the technician finishes.
type WorkReport struct {
	BookingID    string `json:"booking_id"`
	TechnicianID string `json:"technician_id"`
	WorkReport   string `json:"work_report"`
}

// IssueReport is relayed to the technician when the customer raises an issue.
type IssueReport struct {
	BookingID        string `json:"booking_id"`
	CustomerID       string `json:"customer_id"`
	IssueDescription string `json:"issue_description"`
}

// WSHandler serves the booking status WebSocket endpoints.
type WSHandler struct {
	hub       *Hub
	requester Requester
	bookings  BookingLedger
	locations LocationRecorder
	log       *zap.Logger
}

func NewWSHandler(hub *Hub, requester Requester, br BookingLedger, lr LocationRecorder, log *zap.Logger) *WSHandler {
	return &WSHandler{hub: hub, requester: requester, bookings: br, locations: lr, log: log.Named("ws")}
}

// Routes returns a chi.Router for the /ws mount point.
func (h *WSHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(jwt.RequireAuth)
	r.Get("/bookings/{id}", h.Booking)
	r.Get("/customers/{id}", h.Customer)
	r.Get("/technicians/{id}", h.Technician)
	return r
}

func (h *WSHandler) Booking(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b, err := h.bookings.Get(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	uid := jwt.GetClaims(r.Context()).UserID
	if uid != b.CustomerID && uid != b.AssignedTo() {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	h.serve(w, r, BookingKey(id))
}

func (h *WSHandler) Customer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if c := jwt.GetClaims(r.Context()); c.UserID != id || c.Role != jwt.RoleCustomer {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	h.serve(w, r, CustomerKey(id))
}

func (h *WSHandler) Technician(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if c := jwt.GetClaims(r.Context()); c.UserID != id || c.Role != jwt.RoleTechnician {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	h.serve(w, r, TechnicianKey(id))
}

// serve upgrades the connection, streams hub messages for key and handles
// client frames until the client disconnects.
func (h *WSHandler) serve(w http.ResponseWriter, r *http.Request, key string) {
	claims := jwt.GetClaims(r.Context())

	// Subscribe before the handshake completes so nothing sent after it is missed.
	sub := h.hub.Subscribe(key)
	defer sub.Close()

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade error", zap.Error(err))
		return
	}
	ws.SetReadLimit(maxFrameBytes)
	conn := &safeConn{ws: ws}

	// Outstanding booking requests are cancelled when the socket goes away.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	go func() {
		for msg := range sub.C {
			if err := conn.writeJSON(msg); err != nil {
				h.log.Debug("write error", zap.String("key", key), zap.Error(err))
				conn.close()
				return
			}
		}
	}()

	h.log.Info("client connected", zap.String("key", key), zap.String("user_id", claims.UserID))
	for {
		var f clientFrame
		if err := ws.ReadJSON(&f); err != nil {
			break
		}
		h.handleFrame(ctx, conn, claims, f)
	}

	conn.close()
	h.log.Info("client disconnected", zap.String("key", key))
}

func (h *WSHandler) handleFrame(ctx context.Context, conn *safeConn, claims *jwt.Claims, f clientFrame) {
	switch f.Event {
	case "booking_request":
		if claims.Role != jwt.RoleCustomer {
			h.reply(conn, EventError, map[string]string{"message": "only customers can request bookings"})
			return
		}
		var in matching.RequestInput
		if err := json.Unmarshal(f.Data, &in); err != nil {
			h.reply(conn, EventBookingResponse, BookingResponse{Message: "invalid booking request"})
			return
		}
		in.CustomerID = claims.UserID
		go h.request(ctx, conn, in)

	case "location_update":
		if claims.Role != jwt.RoleTechnician {
			h.reply(conn, EventError, map[string]string{"message": "only technicians can send locations"})
			return
		}
		var p LocationPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			h.reply(conn, EventError, map[string]string{"message": "invalid location update"})
			return
		}
		if err := h.relayLocation(ctx, claims.UserID, p); err != nil {
			h.reply(conn, EventError, map[string]string{"message": err.Error()})
		}

	case "booking_accept", "work_done", "issue_report":
		var p JobPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			h.reply(conn, EventError, map[string]string{"message": "invalid " + f.Event})
			return
		}
		var err error
		switch f.Event {
		case "booking_accept":
			err = h.accept(ctx, claims, p)
		case "work_done":
			err = h.workDone(ctx, claims, p)
		default:
			err = h.reportIssue(ctx, claims, p)
		}
		if err != nil {
			h.reply(conn, EventError, map[string]string{"message": err.Error()})
		}

	default:
		h.reply(conn, EventError, map[string]string{"message": "unknown event " + f.Event})
	}
}

// assignedBooking loads a booking the calling technician is assigned to.
func (h *WSHandler) assignedBooking(ctx context.Context, claims *jwt.Claims, bookingID string) (*bookings.Booking, error) {
	if claims.Role != jwt.RoleTechnician {
		return nil, fmt.Errorf("only technicians can do that: %w", apperrors.ErrForbidden)
	}
	b, err := h.bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.AssignedTo() != claims.UserID {
		return nil, apperrors.ErrForbidden
	}
	return b, nil
}

// accept moves the booking to accepted, tells the customer and sends the
// customer's address to the technician.
func (h *WSHandler) accept(ctx context.Context, claims *jwt.Claims, p JobPayload) error {
	b, err := h.assignedBooking(ctx, claims, p.BookingID)
	if err != nil {
		return err
	}
	if b, err = h.bookings.Advance(ctx, b.ID, bookings.StatusAccepted); err != nil {
		return err
	}
	h.hub.Publish(Message{Event: EventBookingResponse, Data: BookingResponse{
		BookingID:    b.ID,
		TechnicianID: claims.UserID,
		Status:       b.Status,
		Message:      "Technician accepted",
	}}, CustomerKey(b.CustomerID))
	h.hub.Publish(Message{Event: EventCustomerLocation, Data: CustomerLocation{
		BookingID: b.ID,
		Address:   b.Address,
		Latitude:  b.Latitude,
		Longitude: b.Longitude,
	}}, TechnicianKey(claims.UserID))
	return nil
}

// workDone moves a working booking to checking and relays the report.
func (h *WSHandler) workDone(ctx context.Context, claims *jwt.Claims, p JobPayload) error {
	b, err := h.assignedBooking(ctx, claims, p.BookingID)
	if err != nil {
		return err
	}
	if b, err = h.bookings.Advance(ctx, b.ID, bookings.StatusChecking); err != nil {
		return err
	}
	h.hub.Publish(Message{Event: EventWorkDone, Data: WorkReport{
		BookingID:    b.ID,
		TechnicianID: claims.UserID,
		WorkReport:   p.WorkReport,
	}}, BookingKey(b.ID), CustomerKey(b.CustomerID))
	return nil
}

// reportIssue relays a customer's complaint to the assigned technician.
func (h *WSHandler) reportIssue(ctx context.Context, claims *jwt.Claims, p JobPayload) error {
	if claims.Role != jwt.RoleCustomer {
		return fmt.Errorf("only customers can report issues: %w", apperrors.ErrForbidden)
	}
	if strings.TrimSpace(p.IssueDescription) == "" {
		return fmt.Errorf("issue_description is required: %w", apperrors.ErrInvalidRequest)
	}
	b, err := h.bookings.Get(ctx, p.BookingID)
	if err != nil {
		return err
	}
	if b.CustomerID != claims.UserID {
		return apperrors.ErrForbidden
	}
	tech := b.AssignedTo()
	if tech == "" {
		return fmt.Errorf("booking %s has no technician: %w", b.ID, apperrors.ErrConflict)
	}
	h.hub.Publish(Message{Event: EventIssueReported, Data: IssueReport{
		BookingID:        b.ID,
		CustomerID:       b.CustomerID,
		IssueDescription: p.IssueDescription,
	}}, TechnicianKey(tech))
	return nil
}

func (h *WSHandler) request(ctx context.Context, conn *safeConn, in matching.RequestInput) {
	res, err := h.requester.Request(ctx, in)
	resp := BookingResponse{}
	if res != nil {
		resp.BookingID = res.BookingID
		resp.TechnicianID = res.TechnicianID
		resp.Status = res.Status
	}
	switch {
	case err == nil:
		resp.Message = "Technician assigned"
	case errors.Is(err, apperrors.ErrUnmatched):
		resp.Message = "No technician available at this moment"
	case ctx.Err() != nil:
		return
	default:
		resp.Message = err.Error()
	}
	h.reply(conn, EventBookingResponse, resp)
}

// relayLocation records the technician's position and forwards it to the
// booking's subscribers.
func (h *WSHandler) relayLocation(ctx context.Context, technicianID string, p LocationPayload) error {
	b, err := h.bookings.Get(ctx, p.BookingID)
	if err != nil {
		return err
	}
	if b.AssignedTo() != technicianID {
		return apperrors.ErrForbidden
	}
	if _, err := h.locations.UpdateLocation(ctx, technicianID, p.Latitude, p.Longitude); err != nil {
		return err
	}
	p.TechnicianID = technicianID
	h.hub.Publish(Message{Event: EventLocationUpdate, Data: p}, BookingKey(b.ID), CustomerKey(b.CustomerID))
	return nil
}

func (h *WSHandler) reply(conn *safeConn, event string, data any) {
	if err := conn.writeJSON(Message{Event: event, Data: data}); err != nil {
		h.log.Debug("reply failed", zap.String("event", event), zap.Error(err))
	}
}
