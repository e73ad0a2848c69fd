package matching

import (
	"context"
	"fmt"

	"booking-service/internal/technicians"
)

// Selector returns candidates in the order the matcher should try them.
type Selector func(ctx context.Context, reg Registry, category string, at technicians.Location) ([]technicians.Technician, error)

// Nearest tries technicians closest to the booking address first.
func Nearest(ctx context.Context, reg Registry, category string, at technicians.Location) ([]technicians.Technician, error) {
	return reg.FindAvailable(ctx, category, &at)
}

// FirstAvailable tries technicians in the order they registered.
func FirstAvailable(ctx context.Context, reg Registry, category string, _ technicians.Location) ([]technicians.Technician, error) {
	return reg.FindAvailable(ctx, category, nil)
}

// SelectorByName maps the MATCH_POLICY setting to a Selector.
func SelectorByName(name string) (Selector, error) {
	switch name {
	case "", "nearest":
		return Nearest, nil
	case "first":
		return FirstAvailable, nil
	}
	return nil, fmt.Errorf("unknown matching policy %q", name)
}
