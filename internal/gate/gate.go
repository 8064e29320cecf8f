package gate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/gakushoku/kitchen-terminal/internal/events"
	"github.com/gakushoku/kitchen-terminal/internal/order"
	"github.com/gakushoku/kitchen-terminal/internal/printer"
	"github.com/gakushoku/kitchen-terminal/internal/ticket"
)

// Outcome classifies how one scan-to-print cycle ended.
type Outcome string

const (
	OutcomePrinted          Outcome = "printed"
	OutcomeAlreadyPrinted   Outcome = "already_printed"
	OutcomeResolutionFailed Outcome = "resolution_failed"
	OutcomePrinterNotReady  Outcome = "printer_not_ready"
	OutcomePrintFailed      Outcome = "print_failed"
)

// ErrBusy is returned by Submit while a scan is already being processed.
var ErrBusy = errors.New("a scan is already being processed")

// Resolver turns a token into an order.
type Resolver interface {
	Resolve(ctx context.Context, raw string) (*order.Order, error)
}

// PrintSession is the slice of the printer session the gate drives.
type PrintSession interface {
	State() printer.State
	Send(job *printer.Job) (<-chan printer.JobResult, error)
}

// Notifier reports a printed order back to the backend. Best effort.
type Notifier interface {
	MarkOrderPaid(ctx context.Context, orderID, paymentID string) error
}

// Status is a snapshot of the gate for the operator surface.
type Status struct {
	Scanning     bool          `json:"scanning"`
	Processing   bool          `json:"processing"`
	Message      string        `json:"message"`
	LastOutcome  Outcome       `json:"last_outcome,omitempty"`
	PrinterState printer.State `json:"printer_state"`
	NextTicket   int           `json:"next_ticket"`
	PrintedCount int           `json:"printed_count"`
}

// Gate runs the scan-to-print cycle. At most one token is in flight at a
// time: the camera loop is stopped while a token is processed and resumed
// only after the outcome's cooldown elapses.
type Gate struct {
	resolver  Resolver
	session   PrintSession
	history   *ticket.History
	allocator *ticket.Allocator
	notifier  Notifier
	publisher *events.Publisher
	logger    *slog.Logger
	onUpdate  func(Status)

	successCooldown time.Duration
	failureCooldown time.Duration

	scanner *Scanner

	mu           sync.Mutex
	processing   bool
	lastToken    string
	wantScanning bool
	message      string
	lastOutcome  Outcome
	closed       bool
}

// Option configures a Gate.
type Option func(*Gate)

// WithCooldowns overrides the pause before scanning resumes after a
// success or a failure outcome.
func WithCooldowns(success, failure time.Duration) Option {
	return func(g *Gate) {
		g.successCooldown = success
		g.failureCooldown = failure
	}
}

// WithNotifier registers the backend order-update call.
func WithNotifier(n Notifier) Option {
	return func(g *Gate) { g.notifier = n }
}

// WithPublisher registers the event bus publisher.
func WithPublisher(p *events.Publisher) Option {
	return func(g *Gate) { g.publisher = p }
}

// WithUpdateHandler registers a callback fired on every status change.
func WithUpdateHandler(fn func(Status)) Option {
	return func(g *Gate) { g.onUpdate = fn }
}

// New creates a gate. The scanner polls the decoder at scanInterval while
// scanning is active.
func New(resolver Resolver, session PrintSession, history *ticket.History, allocator *ticket.Allocator,
	decoder Decoder, scanInterval time.Duration, logger *slog.Logger, opts ...Option) *Gate {

	if logger == nil {
		logger = slog.Default()
	}

	g := &Gate{
		resolver:        resolver,
		session:         session,
		history:         history,
		allocator:       allocator,
		logger:          logger,
		successCooldown: 5 * time.Second,
		failureCooldown: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}

	g.scanner = NewScanner(decoder, scanInterval, g.HandleToken, logger)

	return g
}

// StartScanning turns the camera loop on. No-op while a token is being
// processed; the loop resumes automatically after the cooldown.
func (g *Gate) StartScanning() {
	g.mu.Lock()
	if g.closed || g.processing {
		g.mu.Unlock()
		return
	}
	g.wantScanning = true
	g.message = ""
	g.mu.Unlock()

	g.scanner.Start()
	g.broadcast()
}

// StopScanning turns the camera loop off and keeps it off.
func (g *Gate) StopScanning() {
	g.mu.Lock()
	g.wantScanning = false
	g.mu.Unlock()

	g.scanner.Stop()
	g.broadcast()
}

// HandleToken is the scan loop's decode callback. A token is dropped while
// another is in flight, or when it repeats the token processed just before.
func (g *Gate) HandleToken(raw string) {
	g.mu.Lock()
	if g.processing || g.closed {
		g.mu.Unlock()
		return
	}
	if raw == g.lastToken {
		g.mu.Unlock()
		return
	}
	g.processing = true
	g.lastToken = raw
	g.message = "処理中..."
	g.mu.Unlock()

	g.scanner.Stop()
	g.broadcast()

	go g.process(raw)
}

// Submit is the manual fallback: an operator-typed order ID enters the
// same pipeline as a scan. The duplicate-token check is skipped, but a
// token already in flight still wins.
func (g *Gate) Submit(raw string) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return errors.New("terminal is shut down")
	}
	if g.processing {
		g.mu.Unlock()
		return ErrBusy
	}
	g.processing = true
	g.lastToken = raw
	g.message = "処理中..."
	g.mu.Unlock()

	g.scanner.Stop()
	g.broadcast()

	go g.process(raw)
	return nil
}

func (g *Gate) process(raw string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	o, err := g.resolver.Resolve(ctx, raw)
	if err != nil {
		g.logger.Warn("⚠️ Token resolution failed", "error", err)
		g.finish(OutcomeResolutionFailed, resolutionMessage(err))
		return
	}

	if g.history.Seen(o.OrderID) {
		g.logger.Info("ℹ️ Order already printed", "order_id", o.OrderID)
		g.finish(OutcomeAlreadyPrinted, "この注文は既に印刷されています")
		return
	}

	if g.session.State() != printer.StateReady {
		g.finish(OutcomePrinterNotReady, "プリンターが接続されていません")
		return
	}

	// The ticket number is consumed here whatever happens next, the same
	// way the wall counter advances even when a ticket jams.
	n := g.allocator.Next()
	job := ticket.Format(o, n)

	results, err := g.session.Send(job)
	if err != nil {
		g.finish(OutcomePrinterNotReady, "プリンターが接続されていません")
		return
	}

	res := <-results
	if !res.Success {
		g.finish(OutcomePrintFailed, fmt.Sprintf("印刷に失敗しました (%s)", res.Code))
		return
	}

	g.history.Mark(ticket.Entry{
		OrderID:     o.OrderID,
		TicketNo:    n,
		TotalAmount: o.TotalAmount,
		PrintedAt:   time.Now(),
	})

	if g.notifier != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := g.notifier.MarkOrderPaid(ctx, o.OrderID, o.PaymentID); err != nil {
				g.logger.Warn("⚠️ Order update notification failed", "order_id", o.OrderID, "error", err)
			}
		}()
	}

	g.publisher.TicketPrinted(events.TicketPrintedEvent{
		OrderID:     o.OrderID,
		TicketNo:    n,
		TotalAmount: o.TotalAmount,
		PrintedAt:   time.Now(),
	})

	g.finish(OutcomePrinted, fmt.Sprintf("No.%02d を印刷しました", n))
}

func resolutionMessage(err error) string {
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		return "注文が見つかりません"
	case errors.Is(err, order.ErrUnsupportedFormat):
		return "読み取れないQRコードです"
	default:
		return "注文情報の取得に失敗しました"
	}
}

// finish records the outcome and schedules the cooldown that releases the
// gate and resumes scanning.
func (g *Gate) finish(outcome Outcome, message string) {
	cooldown := g.failureCooldown
	if outcome == OutcomePrinted || outcome == OutcomeAlreadyPrinted {
		cooldown = g.successCooldown
	}

	g.mu.Lock()
	g.lastOutcome = outcome
	g.message = message
	g.mu.Unlock()

	g.logger.Info("🎫 Scan cycle finished", "outcome", string(outcome), "message", message)
	g.broadcast()

	time.AfterFunc(cooldown, func() {
		g.mu.Lock()
		g.processing = false
		g.lastToken = ""
		resume := g.wantScanning && !g.closed
		g.mu.Unlock()

		if resume {
			g.scanner.Start()
		}
		g.broadcast()
	})
}

// Status returns the current gate snapshot.
func (g *Gate) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	return Status{
		Scanning:     g.scanner.Running(),
		Processing:   g.processing,
		Message:      g.message,
		LastOutcome:  g.lastOutcome,
		PrinterState: g.session.State(),
		NextTicket:   g.allocator.Peek(),
		PrintedCount: g.history.Len(),
	}
}

func (g *Gate) broadcast() {
	if g.onUpdate != nil {
		g.onUpdate(g.Status())
	}
}

// Close tears the gate down: the scanner stops and no further tokens are
// accepted.
func (g *Gate) Close() {
	g.mu.Lock()
	g.closed = true
	g.wantScanning = false
	g.mu.Unlock()

	g.scanner.Stop()
}
