package bookings

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"booking-service/internal/apperrors"
	"booking-service/internal/catalog"
)

const tapRepair = 10 // Plumbing Services in the built-in catalog

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Notify(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Status, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Status)
	}
	return out
}

func newTestLedger(t *testing.T) (*Ledger, *MemoryStore, *recorder) {
	t.Helper()
	cat, err := catalog.Load("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	store := NewMemoryStore()
	rec := &recorder{}
	return NewLedger(store, NewMemorySlots(), cat, rec, zap.NewNop()), store, rec
}

func create(t *testing.T, l *Ledger, customerID string) *Booking {
	t.Helper()
	b, err := l.Create(context.Background(), CreateInput{
		CustomerID: customerID,
		ServiceID:  tapRepair,
		Address:    "12 MG Road",
		Latitude:   12.97,
		Longitude:  77.59,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return b
}

func TestCreateUnknownServiceCreatesNothing(t *testing.T) {
	l, store, _ := newTestLedger(t)
	_, err := l.Create(context.Background(), CreateInput{CustomerID: "c1", ServiceID: 9999})
	if !errors.Is(err, apperrors.ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
	if n := len(store.byID); n != 0 {
		t.Fatalf("expected no bookings, found %d", n)
	}
}

func TestFullLifecycle(t *testing.T) {
	l, _, rec := newTestLedger(t)
	ctx := context.Background()
	b := create(t, l, "c1")

	if _, err := l.Assign(ctx, b.ID, "tech-x"); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	steps := []Status{StatusAccepted, StatusArriving, StatusWorking, StatusChecking, StatusPaymentPending, StatusCompleted}
	for _, next := range steps {
		got, err := l.Advance(ctx, b.ID, next)
		if err != nil {
			t.Fatalf("Advance to %s: %v", next, err)
		}
		if got.Status != next {
			t.Fatalf("status = %s, want %s", got.Status, next)
		}
	}

	want := append([]Status{StatusPending, StatusAssigned}, steps...)
	got := rec.statuses()
	if len(got) != len(want) {
		t.Fatalf("events %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestInvalidTransitionLeavesStateUnchanged(t *testing.T) {
	cases := []struct {
		name string
		path []Status
		bad  Status
	}{
		{"arriving to completed", []Status{StatusAccepted, StatusArriving}, StatusCompleted},
		{"assigned to working", nil, StatusWorking},
		{"accepted to declined", []Status{StatusAccepted}, StatusDeclined},
		{"completed to cancelled", []Status{StatusAccepted, StatusArriving, StatusWorking, StatusChecking, StatusPaymentPending, StatusCompleted}, StatusCancelled},
		{"backwards", []Status{StatusAccepted, StatusArriving}, StatusAccepted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l, _, _ := newTestLedger(t)
			ctx := context.Background()
			b := create(t, l, "c1")
			if _, err := l.Assign(ctx, b.ID, "tech-x"); err != nil {
				t.Fatalf("Assign: %v", err)
			}
			for _, s := range tc.path {
				if _, err := l.Advance(ctx, b.ID, s); err != nil {
					t.Fatalf("Advance to %s: %v", s, err)
				}
			}
			before, _ := l.Get(ctx, b.ID)

			_, err := l.Advance(ctx, b.ID, tc.bad)
			if !errors.Is(err, apperrors.ErrInvalidTransition) {
				t.Fatalf("expected invalid transition, got %v", err)
			}
			after, _ := l.Get(ctx, b.ID)
			if after.Status != before.Status || after.AssignedTo() != before.AssignedTo() {
				t.Fatalf("state changed: %+v -> %+v", before, after)
			}
		})
	}
}

func TestConcurrentAssignHasOneWinner(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	const n = 16
	ids := make([]string, n)
	for i := range ids {
		ids[i] = create(t, l, "c1").ID
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   int
		conflicts int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := l.Assign(ctx, id, "tech-x")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case errors.Is(err, apperrors.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(id)
	}
	wg.Wait()

	if winners != 1 || conflicts != n-1 {
		t.Fatalf("winners=%d conflicts=%d", winners, conflicts)
	}
	active, _ := l.ListByTechnician(ctx, "tech-x")
	if len(active) != 1 {
		t.Fatalf("technician holds %d bookings", len(active))
	}
}

func TestAssignRequiresPending(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()
	b := create(t, l, "c1")
	if _, err := l.Assign(ctx, b.ID, "tech-x"); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if _, err := l.Assign(ctx, b.ID, "tech-y"); !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	got, _ := l.Get(ctx, b.ID)
	if got.AssignedTo() != "tech-x" {
		t.Fatalf("technician overwritten: %q", got.AssignedTo())
	}
}

func TestTerminalStateReleasesSlot(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()
	first := create(t, l, "c1")
	second := create(t, l, "c2")

	if _, err := l.Assign(ctx, first.ID, "tech-x"); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if _, err := l.Assign(ctx, second.ID, "tech-x"); !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("expected conflict while busy, got %v", err)
	}
	if _, err := l.Cancel(ctx, first.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := l.Assign(ctx, second.ID, "tech-x"); err != nil {
		t.Fatalf("expected slot to be free after cancel, got %v", err)
	}
}

func TestBusyFollowsSlot(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()
	b := create(t, l, "c1")

	if busy, err := l.Busy(ctx, "tech-x"); err != nil || busy {
		t.Fatalf("fresh technician busy=%v err=%v", busy, err)
	}
	if _, err := l.Assign(ctx, b.ID, "tech-x"); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if busy, _ := l.Busy(ctx, "tech-x"); !busy {
		t.Fatal("assigned technician should be busy")
	}
	if _, err := l.Cancel(ctx, b.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if busy, _ := l.Busy(ctx, "tech-x"); busy {
		t.Fatal("slot should be free after cancel")
	}
}

func TestDeclineReturnsToPending(t *testing.T) {
	l, _, rec := newTestLedger(t)
	ctx := context.Background()
	b := create(t, l, "c1")
	if _, err := l.Assign(ctx, b.ID, "tech-x"); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	if _, err := l.Decline(ctx, b.ID, "tech-y"); !errors.Is(err, apperrors.ErrForbidden) {
		t.Fatalf("expected forbidden for another technician, got %v", err)
	}

	got, err := l.Decline(ctx, b.ID, "tech-x")
	if err != nil {
		t.Fatalf("Decline: %v", err)
	}
	if got.Status != StatusPending || got.TechnicianID != nil || !got.HasDeclined("tech-x") {
		t.Fatalf("unexpected booking after decline: %+v", got)
	}

	s := rec.statuses()
	if s[len(s)-2] != StatusDeclined || s[len(s)-1] != StatusPending {
		t.Fatalf("events %v", s)
	}

	// The slot is free again for another booking.
	other := create(t, l, "c2")
	if _, err := l.Assign(ctx, other.ID, "tech-x"); err != nil {
		t.Fatalf("Assign after decline: %v", err)
	}
}

func TestGetIsIdempotent(t *testing.T) {
	l, _, rec := newTestLedger(t)
	ctx := context.Background()
	b := create(t, l, "c1")
	if _, err := l.Assign(ctx, b.ID, "tech-x"); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	events := len(rec.statuses())

	for i := 0; i < 5; i++ {
		got, err := l.Get(ctx, b.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Status != StatusAssigned || got.AssignedTo() != "tech-x" {
			t.Fatalf("unexpected booking %+v", got)
		}
		got.Status = StatusCompleted // mutating the copy must not leak
	}
	if got, _ := l.Get(ctx, b.ID); got.Status != StatusAssigned {
		t.Fatalf("stored booking mutated through Get: %s", got.Status)
	}
	if len(rec.statuses()) != events {
		t.Fatalf("Get emitted events")
	}

	if _, err := l.Get(ctx, "missing"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusAssigned, true},
		{StatusPending, StatusUnmatched, true},
		{StatusPending, StatusAccepted, false},
		{StatusAssigned, StatusDeclined, true},
		{StatusDeclined, StatusPending, true},
		{StatusWorking, StatusCancelled, true},
		{StatusUnmatched, StatusPending, false},
		{StatusCancelled, StatusCancelled, false},
		{StatusPaymentPending, StatusCompleted, true},
		{Status("bogus"), StatusCancelled, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}
