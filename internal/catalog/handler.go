package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"booking-service/internal/apperrors"
	"booking-service/pkg/httpx"
)

const (
	listCacheKey = "catalog:services"
	listCacheTTL = 10 * time.Minute
)

// Cache stores rendered listings. *redis.Client satisfies it.
type Cache interface {
	CacheGet(ctx context.Context, key string) ([]byte, bool, error)
	CacheSet(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Handler exposes catalog HTTP endpoints.
type Handler struct {
	catalog *Catalog
	cache   Cache
	log     *zap.Logger
}

// NewHandler wires a handler to the catalog. cache may be nil.
func NewHandler(c *Catalog, cache Cache, log *zap.Logger) *Handler {
	return &Handler{catalog: c, cache: cache, log: log}
}

// Routes returns a chi.Router for the /services mount point.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Get("/categories", h.Categories)
	r.Get("/search", h.Search)
	r.Get("/category/{category}", h.ByCategory)
	r.Get("/{sid}", h.Get)
	return r
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.cache != nil {
		if b, ok, err := h.cache.CacheGet(r.Context(), listCacheKey); err == nil && ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write(b)
			return
		} else if err != nil {
			h.log.Warn("catalog cache read failed", zap.Error(err))
		}
	}

	b, err := json.Marshal(h.catalog.List())
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	if h.cache != nil {
		if err := h.cache.CacheSet(r.Context(), listCacheKey, b, listCacheTTL); err != nil {
			h.log.Warn("catalog cache write failed", zap.Error(err))
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(b)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sid, err := strconv.Atoi(chi.URLParam(r, "sid"))
	if err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid SID"})
		return
	}
	s, err := h.catalog.Get(sid)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, s)
}

func (h *Handler) ByCategory(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	if !h.catalog.HasCategory(category) {
		httpx.WriteError(w, apperrors.ErrNotFound)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, nonNil(h.catalog.ByCategory(category)))
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, nonNil(h.catalog.Search(r.URL.Query().Get("name"))))
}

func (h *Handler) Categories(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.catalog.Categories())
}

func nonNil(s []Service) []Service {
	if s == nil {
		return []Service{}
	}
	return s
}
