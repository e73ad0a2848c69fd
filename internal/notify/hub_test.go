package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"booking-service/internal/bookings"
	"booking-service/internal/catalog"
	"booking-service/internal/matching"
	"booking-service/internal/technicians"
)

func receive(t *testing.T, s *Subscription) Message {
	t.Helper()
	select {
	case m, ok := <-s.C:
		if !ok {
			t.Fatalf("subscription closed")
		}
		return m
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for message")
	}
	return Message{}
}

func TestHubDeliversOncePerSubscription(t *testing.T) {
	h := NewHub(4, zap.NewNop())
	both := h.Subscribe(BookingKey("b1"), CustomerKey("c1"))
	defer both.Close()
	tech := h.Subscribe(TechnicianKey("t1"))
	defer tech.Close()
	other := h.Subscribe(CustomerKey("c2"))
	defer other.Close()

	h.Notify(bookings.Event{BookingID: "b1", CustomerID: "c1", TechnicianID: "t1", Status: bookings.StatusAssigned})

	m := receive(t, both)
	if m.Event != EventBookingStatus {
		t.Fatalf("event = %q", m.Event)
	}
	if ev := m.Data.(bookings.Event); ev.Status != bookings.StatusAssigned {
		t.Fatalf("status = %s", ev.Status)
	}
	select {
	case m := <-both.C:
		t.Fatalf("duplicate delivery %+v", m)
	default:
	}
	receive(t, tech)
	select {
	case m := <-other.C:
		t.Fatalf("unrelated subscriber got %+v", m)
	default:
	}
}

func TestHubPublishNeverBlocks(t *testing.T) {
	h := NewHub(1, zap.NewNop())
	s := h.Subscribe(BookingKey("b1"))
	defer s.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			h.Publish(Message{Event: EventBookingStatus}, BookingKey("b1"))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on a full subscriber")
	}
}

func TestSubscriptionClose(t *testing.T) {
	h := NewHub(1, zap.NewNop())
	s := h.Subscribe(BookingKey("b1"))
	s.Close()
	s.Close()

	if _, ok := <-s.C; ok {
		t.Fatalf("expected closed channel")
	}
	if n := h.Publish(Message{Event: EventBookingStatus}, BookingKey("b1")); n != 0 {
		t.Fatalf("delivered to %d closed subscriptions", n)
	}
}

type fakeKafka struct {
	mu        sync.Mutex
	published []string
	handler   func([]byte) error
}

func (f *fakeKafka) Publish(_ context.Context, topic, key string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, topic+"/"+key)
	return nil
}

func (f *fakeKafka) Subscribe(_ context.Context, _, _ string, handler func([]byte) error) {
	f.handler = handler
}

type fakeRabbit struct {
	keys chan string
}

func (f *fakeRabbit) PublishJSON(_ context.Context, key string, _ any) error {
	f.keys <- key
	return nil
}

func TestBridges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	log := zap.NewNop()

	k := &fakeKafka{}
	kb := NewKafkaBridge(k, log)
	go kb.Run(ctx)

	r := &fakeRabbit{keys: make(chan string, 1)}
	rb := NewRabbitBridge(r, log)
	go rb.Run(ctx)

	Fanout{kb, rb}.Notify(bookings.Event{BookingID: "b1", CustomerID: "c1", Status: bookings.StatusAccepted})

	select {
	case key := <-r.keys:
		if key != "booking.accepted" {
			t.Fatalf("routing key = %q", key)
		}
	case <-time.After(time.Second):
		t.Fatalf("rabbit bridge did not publish")
	}

	deadline := time.Now().Add(time.Second)
	for {
		k.mu.Lock()
		n := len(k.published)
		k.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("kafka bridge did not publish")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if k.published[0] != "booking.status/b1" {
		t.Fatalf("published %v", k.published)
	}

	hub := NewHub(1, log)
	sub := hub.Subscribe(CustomerKey("c1"))
	defer sub.Close()
	kb.Relay(ctx, hub, "test")
	if err := k.handler([]byte(`{"booking_id":"b1","customer_id":"c1","status":"arriving"}`)); err != nil {
		t.Fatalf("relay handler: %v", err)
	}
	if ev := receive(t, sub).Data.(bookings.Event); ev.Status != bookings.StatusArriving {
		t.Fatalf("relayed status = %s", ev.Status)
	}
}

// A plumber is matched, the customer hears about it, and the job walks the
// whole lifecycle; skipping a stage fails.
func TestBookingLifecycleReachesCustomer(t *testing.T) {
	ctx := context.Background()
	log := zap.NewNop()
	cat, err := catalog.Load("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}

	hub := NewHub(32, log)
	reg := technicians.NewRegistry(technicians.NewMemoryStore(), nil, cat, log)
	ledger := bookings.NewLedger(bookings.NewMemoryStore(), bookings.NewMemorySlots(), cat, hub, log)
	m := matching.NewMatcher(reg, ledger, cat, matching.Options{Timeout: time.Second, RetryInterval: 10 * time.Millisecond}, log)

	if _, err := reg.Upsert(ctx, technicians.Technician{
		ID: "plumber-x", Name: "X", Email: "x@example.com", Phone: "9000000001",
		ServiceCategory: catalog.CategoryPlumbing, IsAvailable: true,
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	sub := hub.Subscribe(CustomerKey("cust-1"))
	defer sub.Close()

	res, err := m.Request(ctx, matching.RequestInput{
		CustomerID: "cust-1", ServiceID: 10, Address: "12 MG Road", Latitude: 12.97, Longitude: 77.59,
	})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if res.TechnicianID != "plumber-x" {
		t.Fatalf("assigned %q", res.TechnicianID)
	}

	// pending, then assigned.
	for _, want := range []bookings.Status{bookings.StatusPending, bookings.StatusAssigned} {
		ev := receive(t, sub).Data.(bookings.Event)
		if ev.Status != want || ev.BookingID != res.BookingID {
			t.Fatalf("got %+v, want status %s", ev, want)
		}
		if want == bookings.StatusAssigned && ev.TechnicianID != "plumber-x" {
			t.Fatalf("assigned event without technician: %+v", ev)
		}
	}

	if _, err := ledger.Advance(ctx, res.BookingID, bookings.StatusAccepted); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := ledger.Advance(ctx, res.BookingID, bookings.StatusArriving); err != nil {
		t.Fatalf("arriving: %v", err)
	}
	if _, err := ledger.Advance(ctx, res.BookingID, bookings.StatusCompleted); err == nil {
		t.Fatalf("skipping from arriving to completed must fail")
	}
	for _, s := range []bookings.Status{bookings.StatusWorking, bookings.StatusChecking, bookings.StatusPaymentPending, bookings.StatusCompleted} {
		if _, err := ledger.Advance(ctx, res.BookingID, s); err != nil {
			t.Fatalf("advance to %s: %v", s, err)
		}
	}

	want := []bookings.Status{
		bookings.StatusAccepted, bookings.StatusArriving, bookings.StatusWorking,
		bookings.StatusChecking, bookings.StatusPaymentPending, bookings.StatusCompleted,
	}
	for _, s := range want {
		if ev := receive(t, sub).Data.(bookings.Event); ev.Status != s {
			t.Fatalf("got %s, want %s", ev.Status, s)
		}
	}
}
