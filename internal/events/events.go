// Package events publishes kitchen activity to the campus message bus so
// pickup displays and the canteen dashboard can react to printed tickets.
package events

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects this terminal publishes on.
const (
	SubjectTicketPrinted = "kitchen.ticket.printed"
	SubjectPrinterNotice = "kitchen.printer.notice"
)

// TicketPrintedEvent announces one printed pickup ticket.
type TicketPrintedEvent struct {
	OrderID     string    `json:"orderId"`
	TicketNo    int       `json:"ticketNo"`
	TotalAmount int       `json:"totalAmount"`
	PrintedAt   time.Time `json:"printedAt"`
}

// PrinterNoticeEvent announces a printer fault or recovery.
type PrinterNoticeEvent struct {
	Notice string    `json:"notice"`
	At     time.Time `json:"at"`
}

// Publisher sends events to NATS. A nil Publisher is valid and drops
// everything, so the terminal works without a bus configured.
type Publisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewPublisher connects to the bus.
func NewPublisher(url string, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}

	return &Publisher{conn: conn, logger: logger}, nil
}

// TicketPrinted publishes a printed-ticket event. Publishing is best
// effort: a bus failure is logged, never surfaced to the print path.
func (p *Publisher) TicketPrinted(ev TicketPrintedEvent) {
	p.publish(SubjectTicketPrinted, ev)
}

// PrinterNotice publishes a printer fault or recovery event.
func (p *Publisher) PrinterNotice(notice string) {
	p.publish(SubjectPrinterNotice, PrinterNoticeEvent{Notice: notice, At: time.Now()})
}

func (p *Publisher) publish(subject string, v any) {
	if p == nil || p.conn == nil {
		return
	}

	data, err := json.Marshal(v)
	if err != nil {
		p.logger.Warn("⚠️ Failed to encode event", "subject", subject, "error", err)
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Warn("⚠️ Failed to publish event", "subject", subject, "error", err)
	}
}

// Close flushes and drops the connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	p.conn.Flush()
	p.conn.Close()
}
