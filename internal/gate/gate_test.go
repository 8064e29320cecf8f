package gate

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gakushoku/kitchen-terminal/internal/order"
	"github.com/gakushoku/kitchen-terminal/internal/printer"
	"github.com/gakushoku/kitchen-terminal/internal/ticket"
)

type fakeResolver struct {
	mu     sync.Mutex
	orders map[string]*order.Order
	calls  int
	block  chan struct{} // when set, Resolve waits on it
}

func (f *fakeResolver) Resolve(_ context.Context, raw string) (*order.Order, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	o, ok := f.orders[raw]
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeResolver) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeNotifier) MarkOrderPaid(_ context.Context, orderID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, orderID)
	return nil
}

func (f *fakeNotifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func setMeal(id string) *order.Order {
	return &order.Order{
		OrderID: id,
		Items: []order.Item{
			{MenuID: "M1", Name: "Set Meal", Quantity: 2, UnitPrice: 550, TotalPrice: 1100},
		},
		TotalAmount:   1100,
		PaymentStatus: order.PaymentPaid,
		PaymentID:     "P1",
		OrderTime:     time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
	}
}

// connectedSession returns a ready session backed by an in-memory device.
func connectedSession(t *testing.T) (*printer.Session, *printer.MemDevice) {
	t.Helper()
	dev := printer.NewMemDevice()
	s := printer.NewSession(nil, printer.WithDialer(func(printer.Endpoint) (printer.Device, error) {
		return dev, nil
	}))
	if err := s.Connect(printer.Endpoint{Transport: "memory"}); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	return s, dev
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestGate(t *testing.T, resolver Resolver, session PrintSession, opts ...Option) (*Gate, *ticket.History, *ticket.Allocator) {
	t.Helper()
	history := ticket.NewHistory()
	allocator := ticket.NewAllocator()
	opts = append([]Option{WithCooldowns(20*time.Millisecond, 10*time.Millisecond)}, opts...)
	g := New(resolver, session, history, allocator, NewLatestTokenDecoder(), 10*time.Millisecond, nil, opts...)
	t.Cleanup(g.Close)
	return g, history, allocator
}

func TestGateScanPrintsTicket(t *testing.T) {
	resolver := &fakeResolver{orders: map[string]*order.Order{"ORDER123": setMeal("ORDER123")}}
	notifier := &fakeNotifier{}
	session, dev := connectedSession(t)
	g, history, _ := newTestGate(t, resolver, session, WithNotifier(notifier))

	g.HandleToken("ORDER123")

	waitFor(t, "printed outcome", func() bool { return g.Status().LastOutcome == OutcomePrinted })

	jobs := dev.Jobs()
	if len(jobs) != 1 {
		t.Fatalf("device received %d jobs, want 1", len(jobs))
	}
	if jobs[0].TicketNo != 1 {
		t.Errorf("ticket number = %d, want 1", jobs[0].TicketNo)
	}

	var total string
	for _, ins := range jobs[0].Instructions {
		if ins.Op == printer.OpText && strings.HasPrefix(ins.Text, "合計") {
			total = ins.Text
		}
	}
	if total != "合計: ¥1100" {
		t.Errorf("total line = %q, want 合計: ¥1100", total)
	}

	if !history.Seen("ORDER123") {
		t.Error("order was not marked printed")
	}
	waitFor(t, "backend notification", func() bool { return notifier.callCount() == 1 })
}

func TestGateDuplicateTokenIsDroppedDuringProcessing(t *testing.T) {
	resolver := &fakeResolver{orders: map[string]*order.Order{"ORDER123": setMeal("ORDER123")}}
	session, dev := connectedSession(t)
	g, _, _ := newTestGate(t, resolver, session)

	g.HandleToken("ORDER123")
	g.HandleToken("ORDER123")

	waitFor(t, "printed outcome", func() bool { return g.Status().LastOutcome == OutcomePrinted })

	if got := resolver.callCount(); got != 1 {
		t.Errorf("resolver called %d times, want 1", got)
	}
	if got := len(dev.Jobs()); got != 1 {
		t.Errorf("device received %d jobs, want 1", got)
	}
}

func TestGateIgnoresTokensWhileProcessing(t *testing.T) {
	release := make(chan struct{})
	resolver := &fakeResolver{
		orders: map[string]*order.Order{"A": setMeal("A"), "B": setMeal("B")},
		block:  release,
	}
	session, _ := connectedSession(t)
	g, _, _ := newTestGate(t, resolver, session)

	g.HandleToken("A")
	g.HandleToken("B") // different token, still dropped: a scan is in flight
	close(release)

	waitFor(t, "printed outcome", func() bool { return g.Status().LastOutcome == OutcomePrinted })

	if got := resolver.callCount(); got != 1 {
		t.Errorf("resolver called %d times, want 1", got)
	}
}

func TestGateAlreadyPrinted(t *testing.T) {
	resolver := &fakeResolver{orders: map[string]*order.Order{"ORDER123": setMeal("ORDER123")}}
	session, dev := connectedSession(t)
	g, _, _ := newTestGate(t, resolver, session)

	g.HandleToken("ORDER123")
	waitFor(t, "printed outcome", func() bool { return g.Status().LastOutcome == OutcomePrinted })
	waitFor(t, "gate release", func() bool { return !g.Status().Processing })

	// The same order again, via manual entry this time.
	if err := g.Submit("ORDER123"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitFor(t, "already-printed outcome", func() bool { return g.Status().LastOutcome == OutcomeAlreadyPrinted })

	if got := len(dev.Jobs()); got != 1 {
		t.Errorf("device received %d jobs, want 1", got)
	}
}

func TestGateOrderNotFound(t *testing.T) {
	resolver := &fakeResolver{orders: map[string]*order.Order{}}
	session, dev := connectedSession(t)
	g, _, _ := newTestGate(t, resolver, session)

	g.StartScanning()
	g.HandleToken("GHOST999")

	waitFor(t, "resolution-failed outcome", func() bool { return g.Status().LastOutcome == OutcomeResolutionFailed })

	if got := g.Status().Message; got != "注文が見つかりません" {
		t.Errorf("status message = %q", got)
	}
	if got := len(dev.Jobs()); got != 0 {
		t.Errorf("device received %d jobs, want 0", got)
	}

	// Scanning resumes once the failure cooldown elapses.
	waitFor(t, "scanning to resume", func() bool {
		st := g.Status()
		return !st.Processing && st.Scanning
	})
}

func TestGatePrinterNotReady(t *testing.T) {
	resolver := &fakeResolver{orders: map[string]*order.Order{"ORDER123": setMeal("ORDER123")}}
	session := printer.NewSession(nil) // never connected
	g, history, allocator := newTestGate(t, resolver, session)

	g.HandleToken("ORDER123")

	waitFor(t, "printer-not-ready outcome", func() bool { return g.Status().LastOutcome == OutcomePrinterNotReady })

	if history.Seen("ORDER123") {
		t.Error("order was marked printed without a printer")
	}
	if got := allocator.Peek(); got != 1 {
		t.Errorf("ticket counter advanced to %d, want untouched at 1", got)
	}
}

func TestGatePrintFailureLeavesOrderReprintable(t *testing.T) {
	resolver := &fakeResolver{orders: map[string]*order.Order{"ORDER123": setMeal("ORDER123")}}
	session, dev := connectedSession(t)
	g, history, _ := newTestGate(t, resolver, session)

	dev.FailNext(printer.CodeCoverOpen)
	g.HandleToken("ORDER123")
	waitFor(t, "print-failed outcome", func() bool { return g.Status().LastOutcome == OutcomePrintFailed })

	if history.Seen("ORDER123") {
		t.Error("failed print was marked printed")
	}
	waitFor(t, "gate release", func() bool { return !g.Status().Processing })

	// Retry succeeds and the ticket number has moved on.
	if err := g.Submit("ORDER123"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitFor(t, "printed outcome", func() bool { return g.Status().LastOutcome == OutcomePrinted })

	jobs := dev.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("device received %d jobs, want 2", len(jobs))
	}
	if jobs[1].TicketNo != 2 {
		t.Errorf("retry ticket number = %d, want 2", jobs[1].TicketNo)
	}
	if !history.Seen("ORDER123") {
		t.Error("successful retry was not marked printed")
	}
}

func TestGateSubmitWhileBusy(t *testing.T) {
	release := make(chan struct{})
	resolver := &fakeResolver{
		orders: map[string]*order.Order{"A": setMeal("A")},
		block:  release,
	}
	session, _ := connectedSession(t)
	g, _, _ := newTestGate(t, resolver, session)

	g.HandleToken("A")
	if err := g.Submit("B"); err != ErrBusy {
		t.Errorf("Submit() while busy = %v, want ErrBusy", err)
	}
	close(release)

	waitFor(t, "printed outcome", func() bool { return g.Status().LastOutcome == OutcomePrinted })
}

func TestGateStopScanningStaysStopped(t *testing.T) {
	resolver := &fakeResolver{orders: map[string]*order.Order{"ORDER123": setMeal("ORDER123")}}
	session, _ := connectedSession(t)
	g, _, _ := newTestGate(t, resolver, session)

	g.StartScanning()
	if !g.Status().Scanning {
		t.Fatal("scanner did not start")
	}
	g.StopScanning()

	g.HandleToken("ORDER123")
	waitFor(t, "printed outcome", func() bool { return g.Status().LastOutcome == OutcomePrinted })
	waitFor(t, "gate release", func() bool { return !g.Status().Processing })

	// The operator stopped the camera; a finished cycle must not restart it.
	time.Sleep(50 * time.Millisecond)
	if g.Status().Scanning {
		t.Error("scanning resumed after an explicit stop")
	}
}

func TestScannerDeliversPushedTokens(t *testing.T) {
	resolver := &fakeResolver{orders: map[string]*order.Order{"ORDER123": setMeal("ORDER123")}}
	session, dev := connectedSession(t)

	decoder := NewLatestTokenDecoder()
	history := ticket.NewHistory()
	g := New(resolver, session, history, ticket.NewAllocator(), decoder, 10*time.Millisecond, nil,
		WithCooldowns(20*time.Millisecond, 10*time.Millisecond))
	t.Cleanup(g.Close)

	g.StartScanning()
	decoder.Push("ORDER123")

	waitFor(t, "printed outcome", func() bool { return g.Status().LastOutcome == OutcomePrinted })
	if got := len(dev.Jobs()); got != 1 {
		t.Errorf("device received %d jobs, want 1", got)
	}
}
