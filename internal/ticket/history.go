package ticket

import (
	"sync"
	"time"
)

// Entry records one successfully printed ticket.
type Entry struct {
	OrderID     string    `json:"order_id"`
	TicketNo    int       `json:"ticket_no"`
	TotalAmount int       `json:"total_amount"`
	PrintedAt   time.Time `json:"printed_at"`
}

// History is the set of orders that already produced a ticket. It backs
// duplicate suppression: an order prints at most once per process
// lifetime. The history is in-memory only and resets on restart.
type History struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	entries []Entry
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{seen: make(map[string]struct{})}
}

// Seen reports whether the order has already been printed.
func (h *History) Seen(orderID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.seen[orderID]
	return ok
}

// Mark records a successful print. Marking the same order twice is a no-op.
func (h *History) Mark(e Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.seen[e.OrderID]; ok {
		return
	}
	h.seen[e.OrderID] = struct{}{}
	h.entries = append(h.entries, e)
}

// Snapshot returns the printed entries, newest first.
func (h *History) Snapshot() []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Entry, len(h.entries))
	for i, e := range h.entries {
		out[len(h.entries)-1-i] = e
	}
	return out
}

// Len returns the number of printed tickets.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
