package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"booking-service/internal/apperrors"
)

//go:embed services.json
var defaultServices []byte

// Catalog is the read-only list of offered services. It is never
// mutated after Load, so reads need no locking.
type Catalog struct {
	services   []Service
	bySID      map[int]Service
	categories map[string]bool
}

type catalogFile struct {
	Services []Service `json:"services"`
}

// Load reads the catalog from path, or the built-in list when path is empty.
func Load(path string) (*Catalog, error) {
	data := defaultServices
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
		data = b
	}
	return Parse(data)
}

// Parse builds a catalog from the services.json format.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(f.Services)
}

// New validates services and builds a catalog ordered by SID.
func New(services []Service) (*Catalog, error) {
	c := &Catalog{bySID: make(map[int]Service, len(services)), categories: make(map[string]bool)}
	for _, s := range services {
		if _, dup := c.bySID[s.SID]; dup {
			return nil, fmt.Errorf("catalog: duplicate SID %d", s.SID)
		}
		if !HasCategory(s.ServiceCategory) {
			return nil, fmt.Errorf("catalog: service %d has unknown category %q", s.SID, s.ServiceCategory)
		}
		if s.Details.Price == nil && s.Details.Variants == nil {
			return nil, fmt.Errorf("catalog: service %d has no price details", s.SID)
		}
		c.bySID[s.SID] = s
		c.categories[s.ServiceCategory] = true
		c.services = append(c.services, s)
	}
	sort.Slice(c.services, func(i, j int) bool { return c.services[i].SID < c.services[j].SID })
	return c, nil
}

// List returns every service.
func (c *Catalog) List() []Service {
	out := make([]Service, len(c.services))
	copy(out, c.services)
	return out
}

// Get resolves a service by SID.
func (c *Catalog) Get(sid int) (*Service, error) {
	s, ok := c.bySID[sid]
	if !ok {
		return nil, fmt.Errorf("service %d: %w", sid, apperrors.ErrNotFound)
	}
	return &s, nil
}

// ByCategory returns the services of one category.
func (c *Catalog) ByCategory(category string) []Service {
	var out []Service
	for _, s := range c.services {
		if s.ServiceCategory == category {
			out = append(out, s)
		}
	}
	return out
}

// Search matches service names case-insensitively.
func (c *Catalog) Search(term string) []Service {
	term = strings.ToLower(strings.TrimSpace(term))
	var out []Service
	for _, s := range c.services {
		if strings.Contains(strings.ToLower(s.ServiceName), term) {
			out = append(out, s)
		}
	}
	return out
}

// Categories lists the categories that have at least one loaded service.
func (c *Catalog) Categories() []string {
	out := make([]string, 0, len(c.categories))
	for _, cat := range categories {
		if c.categories[cat] {
			out = append(out, cat)
		}
	}
	return out
}

// HasCategory reports whether the loaded catalog offers category.
// Technicians may only register under such a category.
func (c *Catalog) HasCategory(category string) bool {
	return c.categories[category]
}

// Categories lists every known category.
func Categories() []string {
	out := make([]string, len(categories))
	copy(out, categories)
	return out
}

// HasCategory reports whether category is one of the known categories.
func HasCategory(category string) bool {
	for _, c := range categories {
		if c == category {
			return true
		}
	}
	return false
}
