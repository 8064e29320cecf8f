package ticket

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/gakushoku/kitchen-terminal/internal/order"
	"github.com/gakushoku/kitchen-terminal/internal/printer"
)

func TestAllocatorWrapsAt99(t *testing.T) {
	a := NewAllocator()

	for want := 1; want <= 99; want++ {
		if got := a.Next(); got != want {
			t.Fatalf("Next() = %d, want %d", got, want)
		}
	}

	if got := a.Next(); got != 1 {
		t.Errorf("Next() after 99 = %d, want 1", got)
	}
	if got := a.Next(); got != 2 {
		t.Errorf("Next() = %d, want 2", got)
	}
}

func TestAllocatorPeek(t *testing.T) {
	a := NewAllocator()

	if got := a.Peek(); got != 1 {
		t.Errorf("Peek() = %d, want 1", got)
	}
	a.Next()
	if got := a.Peek(); got != 2 {
		t.Errorf("Peek() after Next() = %d, want 2", got)
	}
}

func TestHistory(t *testing.T) {
	h := NewHistory()

	if h.Seen("order-1") {
		t.Error("Seen() on empty history = true, want false")
	}

	h.Mark(Entry{OrderID: "order-1", TicketNo: 1, TotalAmount: 500, PrintedAt: time.Now()})

	if !h.Seen("order-1") {
		t.Error("Seen() after Mark() = false, want true")
	}

	// A second mark for the same order must not add a duplicate entry.
	h.Mark(Entry{OrderID: "order-1", TicketNo: 2, TotalAmount: 500, PrintedAt: time.Now()})
	if got := h.Len(); got != 1 {
		t.Errorf("Len() after duplicate Mark() = %d, want 1", got)
	}

	h.Mark(Entry{OrderID: "order-2", TicketNo: 2, TotalAmount: 800, PrintedAt: time.Now()})

	snap := h.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("Snapshot() returned %d entries, want 2", len(snap))
	}
	if snap[0].OrderID != "order-2" || snap[1].OrderID != "order-1" {
		t.Errorf("Snapshot() order = [%s, %s], want newest first", snap[0].OrderID, snap[1].OrderID)
	}
}

func sampleOrder() *order.Order {
	return &order.Order{
		OrderID: "ORDER-20260901-0042",
		Items: []order.Item{
			{MenuID: "M-01", Name: "唐揚げ定食", Quantity: 1, UnitPrice: 600, TotalPrice: 600},
			{MenuID: "M-07", Name: "味噌汁", Quantity: 2, UnitPrice: 250, TotalPrice: 500, Notes: "ねぎ抜き"},
		},
		TotalAmount:   1100,
		PaymentStatus: order.PaymentPaid,
		OrderTime:     time.Date(2026, 9, 1, 11, 30, 0, 0, time.Local),
	}
}

func TestFormat(t *testing.T) {
	job := Format(sampleOrder(), 1)

	if job.OrderID != "ORDER-20260901-0042" {
		t.Errorf("job.OrderID = %q", job.OrderID)
	}
	if job.TicketNo != 1 {
		t.Errorf("job.TicketNo = %d, want 1", job.TicketNo)
	}

	var texts []string
	cuts := 0
	for _, ins := range job.Instructions {
		switch ins.Op {
		case printer.OpText:
			texts = append(texts, ins.Text)
		case printer.OpCut:
			cuts++
		}
	}

	want := []string{"No.01", "1. 唐揚げ定食", "   数量: 2 × ¥250 = ¥500", "   備考: ねぎ抜き", "合計: ¥1100"}
	for _, w := range want {
		found := false
		for _, line := range texts {
			if line == w {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("ticket is missing line %q\nlines: %q", w, texts)
		}
	}

	if cuts != 1 {
		t.Errorf("ticket has %d cut instructions, want 1", cuts)
	}
}

func TestFormatIsDeterministic(t *testing.T) {
	a := Format(sampleOrder(), 7)
	b := Format(sampleOrder(), 7)

	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("Format() is not deterministic (-first +second):\n%s", diff)
	}
}

func TestFormatUnknownPayment(t *testing.T) {
	o := sampleOrder()
	o.PaymentStatus = order.PaymentUnknown

	job := Format(o, 3)

	found := false
	for _, ins := range job.Instructions {
		if ins.Op == printer.OpText && ins.Text == "※ 決済状態未確認" {
			found = true
		}
	}
	if !found {
		t.Error("ticket for unknown payment status is missing the warning line")
	}
}

func TestFormatSpecialInstructions(t *testing.T) {
	o := sampleOrder()
	o.SpecialInstructions = "アレルギー: 卵"

	job := Format(o, 4)

	found := false
	for _, ins := range job.Instructions {
		if ins.Op == printer.OpText && ins.Text == "アレルギー: 卵" {
			found = true
		}
	}
	if !found {
		t.Error("ticket is missing the special instructions line")
	}
}
