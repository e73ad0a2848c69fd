package technicians

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"booking-service/internal/apperrors"
	"booking-service/pkg/db"
)

const technicianColumns = `id,name,email,phone,password_hash,service_category,id_proof_type,id_proof_number,
	rating,is_available,latitude,longitude,created_at`

// PostgresStore keeps technicians in the technicians table.
type PostgresStore struct {
	db db.Querier
}

func NewPostgresStore(q db.Querier) *PostgresStore {
	return &PostgresStore{db: q}
}

func (s *PostgresStore) Insert(ctx context.Context, t *Technician) error {
	lat, lng := splitLocation(t.Location)
	_, err := s.db.Exec(ctx,
		`INSERT INTO technicians (id,name,email,phone,password_hash,service_category,id_proof_type,id_proof_number,
		                          rating,is_available,latitude,longitude,created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		t.ID, t.Name, t.Email, t.Phone, t.PasswordHash, t.ServiceCategory, t.IDProofType, t.IDProofNumber,
		t.Rating, t.IsAvailable, lat, lng, t.CreatedAt)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("email or phone already exists: %w", apperrors.ErrConflict)
	}
	return err
}

func (s *PostgresStore) Upsert(ctx context.Context, t *Technician) error {
	lat, lng := splitLocation(t.Location)
	_, err := s.db.Exec(ctx,
		`INSERT INTO technicians (id,name,email,phone,password_hash,service_category,id_proof_type,id_proof_number,
		                          rating,is_available,latitude,longitude,created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		 ON CONFLICT (id) DO UPDATE SET
		     name=EXCLUDED.name, email=EXCLUDED.email, phone=EXCLUDED.phone,
		     password_hash=EXCLUDED.password_hash, service_category=EXCLUDED.service_category,
		     id_proof_type=EXCLUDED.id_proof_type, id_proof_number=EXCLUDED.id_proof_number,
		     rating=EXCLUDED.rating, is_available=EXCLUDED.is_available,
		     latitude=EXCLUDED.latitude, longitude=EXCLUDED.longitude`,
		t.ID, t.Name, t.Email, t.Phone, t.PasswordHash, t.ServiceCategory, t.IDProofType, t.IDProofNumber,
		t.Rating, t.IsAvailable, lat, lng, t.CreatedAt)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("email or phone already exists: %w", apperrors.ErrConflict)
	}
	return err
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*Technician, error) {
	t, err := scanTechnician(s.db.QueryRow(ctx,
		`SELECT `+technicianColumns+` FROM technicians WHERE id=$1`, id))
	if db.IsNoRows(err) {
		return nil, fmt.Errorf("technician %s: %w", id, apperrors.ErrNotFound)
	}
	return t, err
}

func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (*Technician, error) {
	t, err := scanTechnician(s.db.QueryRow(ctx,
		`SELECT `+technicianColumns+` FROM technicians WHERE email=$1`, email))
	if db.IsNoRows(err) {
		return nil, fmt.Errorf("technician %s: %w", email, apperrors.ErrNotFound)
	}
	return t, err
}

func (s *PostgresStore) ListAvailable(ctx context.Context, category string) ([]Technician, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+technicianColumns+` FROM technicians
		 WHERE service_category=$1 AND is_available
		 ORDER BY seq`, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Technician
	for rows.Next() {
		t, err := scanTechnician(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetAvailability(ctx context.Context, id string, available bool) error {
	tag, err := s.db.Exec(ctx, `UPDATE technicians SET is_available=$1 WHERE id=$2`, available, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("technician %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

func scanTechnician(row pgx.Row) (*Technician, error) {
	var t Technician
	var lat, lng *float64
	err := row.Scan(&t.ID, &t.Name, &t.Email, &t.Phone, &t.PasswordHash, &t.ServiceCategory,
		&t.IDProofType, &t.IDProofNumber, &t.Rating, &t.IsAvailable, &lat, &lng, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		t.Location = &Location{Latitude: *lat, Longitude: *lng}
	}
	return &t, nil
}

func splitLocation(l *Location) (*float64, *float64) {
	if l == nil {
		return nil, nil
	}
	lat, lng := l.Latitude, l.Longitude
	return &lat, &lng
}
