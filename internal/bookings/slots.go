package bookings

import (
	"context"
	"sync"
)

// SlotStore holds each technician's single active-booking slot. Claim is a
// compare-and-swap: it succeeds only when the slot is empty, and exactly one
// of several concurrent callers wins.
type SlotStore interface {
	Claim(ctx context.Context, technicianID, bookingID string) (bool, error)
	Release(ctx context.Context, technicianID, bookingID string) error
	// Holder returns the booking holding the slot, or "" when it is free.
	Holder(ctx context.Context, technicianID string) (string, error)
}

// MemorySlots is a SlotStore for a single process.
type MemorySlots struct {
	mu    sync.Mutex
	slots map[string]string
}

func NewMemorySlots() *MemorySlots {
	return &MemorySlots{slots: make(map[string]string)}
}

func (m *MemorySlots) Claim(_ context.Context, technicianID, bookingID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if holder, ok := m.slots[technicianID]; ok {
		return holder == bookingID, nil
	}
	m.slots[technicianID] = bookingID
	return true, nil
}

// Release empties the slot only if bookingID still holds it.
func (m *MemorySlots) Release(_ context.Context, technicianID, bookingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.slots[technicianID] == bookingID {
		delete(m.slots, technicianID)
	}
	return nil
}

func (m *MemorySlots) Holder(_ context.Context, technicianID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slots[technicianID], nil
}

// SlotClient is the Redis side of RedisSlots. *redis.Client satisfies it.
type SlotClient interface {
	ClaimSlot(ctx context.Context, technicianID, bookingID string) (bool, error)
	ReleaseSlot(ctx context.Context, technicianID, bookingID string) error
	SlotHolder(ctx context.Context, technicianID string) (string, error)
}

// RedisSlots shares slots across instances with SET NX and a
// compare-and-delete script.
type RedisSlots struct {
	c SlotClient
}

func NewRedisSlots(c SlotClient) *RedisSlots {
	return &RedisSlots{c: c}
}

func (r *RedisSlots) Claim(ctx context.Context, technicianID, bookingID string) (bool, error) {
	ok, err := r.c.ClaimSlot(ctx, technicianID, bookingID)
	if err != nil || ok {
		return ok, err
	}
	// A retried claim for the same booking is not a conflict.
	holder, err := r.c.SlotHolder(ctx, technicianID)
	if err != nil {
		return false, err
	}
	return holder == bookingID, nil
}

func (r *RedisSlots) Release(ctx context.Context, technicianID, bookingID string) error {
	return r.c.ReleaseSlot(ctx, technicianID, bookingID)
}

func (r *RedisSlots) Holder(ctx context.Context, technicianID string) (string, error) {
	return r.c.SlotHolder(ctx, technicianID)
}
