package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"booking-service/internal/catalog"
	"booking-service/internal/customers"
	"booking-service/internal/technicians"
	"booking-service/pkg/jwt"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	if err := jwt.Init("test-secret"); err != nil {
		t.Fatalf("jwt init: %v", err)
	}
	cat, err := catalog.Load("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	log := zap.NewNop()
	h := NewHandler(
		customers.NewService(customers.NewMemoryStore(), log),
		technicians.NewRegistry(technicians.NewMemoryStore(), nil, cat, log),
		log,
	)
	r := chi.NewRouter()
	h.Mount(r)
	return r
}

func post(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b)))
	return rec
}

func TestCustomerRegisterLogin(t *testing.T) {
	srv := newTestServer(t)

	rec := post(t, srv, "/register", map[string]string{
		"name": "Asha Rao", "email": "asha@example.com", "phone": "9000000001", "hashed_password": "hashed-secret",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status %d: %s", rec.Code, rec.Body)
	}

	rec = post(t, srv, "/login", map[string]string{"email": "asha@example.com", "hashed_password": "hashed-secret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Fatalf("missing token in %s", rec.Body)
	}

	rec = post(t, srv, "/login", map[string]string{"email": "asha@example.com", "hashed_password": "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var msg map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &msg); err != nil || msg["message"] == "" {
		t.Fatalf("expected message body, got %s", rec.Body)
	}
}

func TestTechnicianRegisterValidation(t *testing.T) {
	srv := newTestServer(t)
	body := map[string]string{
		"name": "Ravi Kumar", "email": "ravi@example.com", "phone": "9876543210",
		"hashed_password": "hashed-secret", "id_proof_type": "PAN", "id_proof_number": "ABCDE1234F",
		"service_category": catalog.CategoryPlumbing,
	}

	rec := post(t, srv, "/technician_register", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status %d: %s", rec.Code, rec.Body)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("ABCDE1234F")) {
		t.Fatalf("id proof number leaked: %s", rec.Body)
	}

	body["email"] = "other@example.com"
	body["phone"] = "98765"
	if rec := post(t, srv, "/technician_register", body); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for short phone, got %d", rec.Code)
	}

	rec = post(t, srv, "/technician_login", map[string]string{"email": "ravi@example.com", "hashed_password": "hashed-secret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status %d: %s", rec.Code, rec.Body)
	}
}
