package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeCache struct {
	data map[string][]byte
	gets int
	sets int
}

func (f *fakeCache) CacheGet(_ context.Context, key string) ([]byte, bool, error) {
	f.gets++
	b, ok := f.data[key]
	return b, ok, nil
}

func (f *fakeCache) CacheSet(_ context.Context, key string, value []byte, _ time.Duration) error {
	f.sets++
	f.data[key] = value
	return nil
}

func serve(t *testing.T, h *Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestListUsesCache(t *testing.T) {
	c, _ := Load("")
	cache := &fakeCache{data: map[string][]byte{}}
	h := NewHandler(c, cache, zap.NewNop())

	first := serve(t, h, "/")
	if first.Code != http.StatusOK {
		t.Fatalf("status = %d", first.Code)
	}
	if cache.sets != 1 {
		t.Fatalf("expected one cache fill, got %d", cache.sets)
	}

	second := serve(t, h, "/")
	if second.Body.String() != first.Body.String() {
		t.Fatal("cached listing differs")
	}
	if cache.sets != 1 || cache.gets != 2 {
		t.Fatalf("gets=%d sets=%d", cache.gets, cache.sets)
	}

	var list []Service
	if err := json.Unmarshal(second.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != len(c.List()) {
		t.Fatalf("listed %d services", len(list))
	}
}

func TestHandlerLookups(t *testing.T) {
	c, _ := Load("")
	h := NewHandler(c, nil, zap.NewNop())

	cases := []struct {
		path string
		want int
	}{
		{"/10", http.StatusOK},
		{"/9999", http.StatusNotFound},
		{"/abc", http.StatusBadRequest},
		{"/category/Plumbing%20Services", http.StatusOK},
		{"/category/Gardening", http.StatusNotFound},
		{"/search?name=zzz", http.StatusOK},
		{"/categories", http.StatusOK},
	}
	for _, tc := range cases {
		if rec := serve(t, h, tc.path); rec.Code != tc.want {
			t.Errorf("GET %s = %d, want %d", tc.path, rec.Code, tc.want)
		}
	}

	rec := serve(t, h, "/search?name=zzz")
	if body := rec.Body.String(); body != "[]\n" {
		t.Fatalf("empty search body = %q", body)
	}
}
