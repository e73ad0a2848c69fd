package technicians

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"booking-service/internal/apperrors"
	"booking-service/internal/catalog"
	"booking-service/pkg/jwt"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	cat, err := catalog.Load("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return NewRegistry(NewMemoryStore(), nil, cat, zap.NewNop())
}

func seed(t *testing.T, r *Registry, id, category string, available bool, loc *Location) {
	t.Helper()
	_, err := r.Upsert(context.Background(), Technician{
		ID:              id,
		Name:            "Tech " + id,
		Email:           id + "@example.com",
		Phone:           "98765" + id[len(id)-5:],
		ServiceCategory: category,
		IsAvailable:     available,
		Location:        loc,
	})
	if err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func ids(list []Technician) []string {
	out := make([]string, 0, len(list))
	for _, t := range list {
		out = append(out, t.ID)
	}
	return out
}

func TestFindAvailableOrdersByDistanceThenInsertion(t *testing.T) {
	r := newTestRegistry(t)
	// Customer sits in central Bengaluru.
	near := &Location{Latitude: 12.9716, Longitude: 77.5946}

	seed(t, r, "tech-00001", catalog.CategoryPlumbing, true, nil)
	seed(t, r, "tech-00002", catalog.CategoryPlumbing, true, &Location{Latitude: 13.0827, Longitude: 80.2707})
	seed(t, r, "tech-00003", catalog.CategoryPlumbing, true, &Location{Latitude: 12.9352, Longitude: 77.6245})
	seed(t, r, "tech-00004", catalog.CategoryPlumbing, false, &Location{Latitude: 12.9716, Longitude: 77.5946})
	seed(t, r, "tech-00005", catalog.CategoryElectrical, true, &Location{Latitude: 12.9716, Longitude: 77.5946})
	seed(t, r, "tech-00006", catalog.CategoryPlumbing, true, nil)

	got, err := r.FindAvailable(context.Background(), catalog.CategoryPlumbing, near)
	if err != nil {
		t.Fatalf("FindAvailable: %v", err)
	}
	want := []string{"tech-00003", "tech-00002", "tech-00001", "tech-00006"}
	if g := ids(got); len(g) != len(want) {
		t.Fatalf("got %v want %v", g, want)
	} else {
		for i := range want {
			if g[i] != want[i] {
				t.Fatalf("position %d: got %v want %v", i, g, want)
			}
		}
	}
}

func TestFindAvailableWithoutLocationKeepsInsertionOrder(t *testing.T) {
	r := newTestRegistry(t)
	seed(t, r, "tech-00001", catalog.CategoryCarpentry, true, &Location{Latitude: 10, Longitude: 10})
	seed(t, r, "tech-00002", catalog.CategoryCarpentry, true, &Location{Latitude: 1, Longitude: 1})

	got, err := r.FindAvailable(context.Background(), catalog.CategoryCarpentry, nil)
	if err != nil {
		t.Fatalf("FindAvailable: %v", err)
	}
	if g := ids(got); len(g) != 2 || g[0] != "tech-00001" || g[1] != "tech-00002" {
		t.Fatalf("unexpected order %v", g)
	}
}

func TestFindAvailableEmptyIsNotAnError(t *testing.T) {
	r := newTestRegistry(t)
	got, err := r.FindAvailable(context.Background(), catalog.CategoryPainting, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no technicians, got %d", len(got))
	}
}

func TestSetAvailability(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	seed(t, r, "tech-00001", catalog.CategoryPlumbing, false, nil)

	if err := r.SetAvailability(ctx, "tech-00001", true); err != nil {
		t.Fatalf("SetAvailability: %v", err)
	}
	got, _ := r.FindAvailable(ctx, catalog.CategoryPlumbing, nil)
	if len(got) != 1 {
		t.Fatalf("expected technician to be available, got %d", len(got))
	}

	if err := r.SetAvailability(ctx, "missing", true); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpsertRejectsUnknownCategory(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Upsert(context.Background(), Technician{ID: "x", ServiceCategory: "Pest Control"})
	if !errors.Is(err, apperrors.ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
}

func TestCategoryMustBeInLoadedCatalog(t *testing.T) {
	// A known category that this deployment's catalog does not offer.
	cat, err := catalog.Parse([]byte(`{"services":[
		{"SID":1,"serviceName":"Tap Repair","serviceCategory":"Plumbing Services","details":199}]}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	r := NewRegistry(NewMemoryStore(), nil, cat, zap.NewNop())
	ctx := context.Background()

	if _, err := r.Upsert(ctx, Technician{ID: "p1", Phone: "9000000001", ServiceCategory: catalog.CategoryPlumbing}); err != nil {
		t.Fatalf("plumbing upsert: %v", err)
	}
	_, err = r.Upsert(ctx, Technician{ID: "e1", Phone: "9000000002", ServiceCategory: catalog.CategoryElectrical})
	if !errors.Is(err, apperrors.ErrInvalidRequest) {
		t.Fatalf("expected invalid request for unpublished category, got %v", err)
	}

	_, err = r.Register(ctx, RegisterRequest{
		Name:            "Ravi Kumar",
		Email:           "ravi@example.com",
		Phone:           "9876543210",
		HashedPassword:  "5f4dcc3b5aa765d61d8327deb882cf99",
		IDProofType:     "PAN",
		IDProofNumber:   "ABCDE1234F",
		ServiceCategory: catalog.CategoryElectrical,
	})
	if !errors.Is(err, apperrors.ErrInvalidRequest) {
		t.Fatalf("register under unpublished category: %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	valid := RegisterRequest{
		Name:            "Ravi Kumar",
		Email:           "ravi@example.com",
		Phone:           "9876543210",
		HashedPassword:  "5f4dcc3b5aa765d61d8327deb882cf99",
		IDProofType:     "PAN",
		IDProofNumber:   "ABCDE1234F",
		ServiceCategory: catalog.CategoryElectrical,
	}

	cases := []struct {
		name   string
		mutate func(*RegisterRequest)
	}{
		{"short phone", func(r *RegisterRequest) { r.Phone = "98765" }},
		{"bad email", func(r *RegisterRequest) { r.Email = "ravi" }},
		{"unknown proof", func(r *RegisterRequest) { r.IDProofType = "Passport" }},
		{"unknown category", func(r *RegisterRequest) { r.ServiceCategory = "Gardening" }},
		{"short name", func(r *RegisterRequest) { r.Name = "R" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := valid
			tc.mutate(&req)
			_, err := newTestRegistry(t).Register(context.Background(), req)
			if !errors.Is(err, apperrors.ErrInvalidRequest) {
				t.Fatalf("expected invalid request, got %v", err)
			}
		})
	}

	r := newTestRegistry(t)
	tech, err := r.Register(context.Background(), valid)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if tech.IsAvailable {
		t.Fatalf("new technicians must start unavailable")
	}
	if _, err := r.Register(context.Background(), valid); !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("expected conflict on duplicate email, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	if err := jwt.Init("test-secret"); err != nil {
		t.Fatalf("jwt init: %v", err)
	}
	r := newTestRegistry(t)
	ctx := context.Background()
	_, err := r.Register(ctx, RegisterRequest{
		Name:            "Ravi Kumar",
		Email:           "Ravi@Example.com",
		Phone:           "9876543210",
		HashedPassword:  "hashed-secret",
		IDProofType:     "Aadhaar",
		IDProofNumber:   "123412341234",
		ServiceCategory: catalog.CategoryPlumbing,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	resp, err := r.Login(ctx, LoginRequest{Email: "ravi@example.com", HashedPassword: "hashed-secret"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := jwt.Validate(resp.Token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.Role != jwt.RoleTechnician {
		t.Fatalf("role = %q", claims.Role)
	}
	if resp.Technician.IDProofNumber != "XXXXXXXX1234" {
		t.Fatalf("id proof not masked: %q", resp.Technician.IDProofNumber)
	}

	if _, err := r.Login(ctx, LoginRequest{Email: "ravi@example.com", HashedPassword: "wrong"}); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestUpdateRequiresBothCoordinates(t *testing.T) {
	r := newTestRegistry(t)
	seed(t, r, "tech-00001", catalog.CategoryPlumbing, true, nil)
	lat := 12.0
	_, err := r.Update(context.Background(), "tech-00001", UpdateRequest{Latitude: &lat})
	if !errors.Is(err, apperrors.ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}

	tech, err := r.UpdateLocation(context.Background(), "tech-00001", 12.5, 77.5)
	if err != nil {
		t.Fatalf("UpdateLocation: %v", err)
	}
	if tech.Location == nil || tech.Location.Latitude != 12.5 {
		t.Fatalf("location not stored: %+v", tech.Location)
	}
}
