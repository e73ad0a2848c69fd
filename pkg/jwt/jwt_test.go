package jwt

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestInitRequiresSecret(t *testing.T) {
	if err := Init(""); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestGenerateValidate(t *testing.T) {
	if err := Init("test-secret"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		role string
		ttl  time.Duration
	}{
		{RoleCustomer, 10 * 24 * time.Hour},
		{RoleTechnician, 2 * 24 * time.Hour},
	}
	for _, tc := range tests {
		raw, err := Generate("id-1", "a@example.com", tc.role)
		if err != nil {
			t.Fatalf("Generate(%s): %v", tc.role, err)
		}
		c, err := Validate(raw)
		if err != nil {
			t.Fatalf("Validate(%s): %v", tc.role, err)
		}
		if c.UserID != "id-1" || c.Role != tc.role {
			t.Fatalf("claims = %+v", c)
		}
		got := c.ExpiresAt.Sub(c.IssuedAt.Time)
		if got != tc.ttl {
			t.Fatalf("%s ttl = %v, want %v", tc.role, got, tc.ttl)
		}
	}
}

func TestValidateRejectsOtherSecret(t *testing.T) {
	Init("first")
	raw, _ := Generate("id-1", "a@example.com", RoleCustomer)
	Init("second")
	if _, err := Validate(raw); err == nil {
		t.Fatal("token signed with another secret must not validate")
	}
}

func TestRequireRole(t *testing.T) {
	Init("test-secret")
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := OptionalAuth(RequireRole(RoleTechnician)(ok))

	customer, _ := Generate("c1", "c@example.com", RoleCustomer)
	technician, _ := Generate("t1", "t@example.com", RoleTechnician)

	cases := []struct {
		name  string
		token string
		want  int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"garbage", "not-a-jwt", http.StatusUnauthorized},
		{"wrong role", customer, http.StatusForbidden},
		{"right role", technician, http.StatusNoContent},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.token != "" {
			req.Header.Set("Authorization", "Bearer "+tc.token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Errorf("%s: status = %d, want %d", tc.name, rec.Code, tc.want)
		}
	}
}
