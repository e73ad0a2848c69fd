package bookings

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"booking-service/internal/apperrors"
	"booking-service/pkg/db"
)

const bookingColumns = `id,customer_id,technician_id,service_id,address,latitude,longitude,
	status,declined_by,created_at,updated_at`

// PostgresStore keeps bookings in the bookings table.
type PostgresStore struct {
	db db.Querier
}

func NewPostgresStore(q db.Querier) *PostgresStore {
	return &PostgresStore{db: q}
}

func (s *PostgresStore) Insert(ctx context.Context, b *Booking) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO bookings (id,customer_id,technician_id,service_id,address,latitude,longitude,
		                       status,declined_by,created_at,updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		b.ID, b.CustomerID, b.TechnicianID, b.ServiceID, b.Address, b.Latitude, b.Longitude,
		string(b.Status), declined(b), b.CreatedAt, b.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("booking %s already exists: %w", b.ID, apperrors.ErrConflict)
	}
	return err
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Booking, error) {
	b, err := scanBooking(s.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id))
	if db.IsNoRows(err) {
		return nil, fmt.Errorf("booking %s: %w", id, apperrors.ErrNotFound)
	}
	return b, err
}

// Update is a compare-and-set on status. A unique violation means the
// technician already holds another active booking.
func (s *PostgresStore) Update(ctx context.Context, b *Booking, from Status) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE bookings SET status=$1, technician_id=$2, declined_by=$3, updated_at=$4
		 WHERE id=$5 AND status=$6`,
		string(b.Status), b.TechnicianID, declined(b), b.UpdatedAt, b.ID, string(from))
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("technician %s already holds an active booking: %w", b.AssignedTo(), apperrors.ErrConflict)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("booking %s left %s: %w", b.ID, from, apperrors.ErrConflict)
	}
	return nil
}

func (s *PostgresStore) ListByCustomer(ctx context.Context, customerID string) ([]Booking, error) {
	return s.list(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE customer_id=$1 ORDER BY created_at DESC`, customerID)
}

func (s *PostgresStore) ListByTechnician(ctx context.Context, technicianID string) ([]Booking, error) {
	return s.list(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE technician_id=$1 ORDER BY created_at DESC`, technicianID)
}

func (s *PostgresStore) list(ctx context.Context, query, arg string) ([]Booking, error) {
	rows, err := s.db.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var status string
	err := row.Scan(&b.ID, &b.CustomerID, &b.TechnicianID, &b.ServiceID, &b.Address,
		&b.Latitude, &b.Longitude, &status, &b.DeclinedBy, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.Status = Status(status)
	return &b, nil
}

// declined never returns nil so the NOT NULL column gets '{}'.
func declined(b *Booking) []string {
	if b.DeclinedBy == nil {
		return []string{}
	}
	return b.DeclinedBy
}
