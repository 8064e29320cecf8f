package order

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
)

type fakeOrderService struct {
	orders map[string]*Order
	calls  int
}

func (f *fakeOrderService) FetchOrder(_ context.Context, id string) (*Order, error) {
	f.calls++
	o, ok := f.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

type fakePaymentService struct {
	status PaymentStatus
	err    error
}

func (f *fakePaymentService) PaymentStatus(context.Context, string) (Payment, error) {
	if f.err != nil {
		return Payment{Status: PaymentUnknown}, f.err
	}
	return Payment{Status: f.status, PaymentID: "P1"}, nil
}

func testOrder(id string) *Order {
	return &Order{
		OrderID: id,
		Items: []Item{
			{MenuID: "M1", Name: "Set Meal", Quantity: 2, UnitPrice: 550, TotalPrice: 1100},
		},
		TotalAmount: 1100,
		OrderTime:   time.Date(2025, 3, 26, 12, 0, 0, 0, time.UTC),
	}
}

func TestResolver_BareToken(t *testing.T) {
	orders := &fakeOrderService{orders: map[string]*Order{"ORDER123": testOrder("ORDER123")}}
	payments := &fakePaymentService{status: PaymentPaid}
	r := NewResolver(orders, payments, nil)

	o, err := r.Resolve(context.Background(), "ORDER123")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if o.OrderID != "ORDER123" {
		t.Errorf("Expected ORDER123, got %s", o.OrderID)
	}
	if o.PaymentStatus != PaymentPaid {
		t.Errorf("Expected paid, got %s", o.PaymentStatus)
	}
	if o.PaymentID != "P1" {
		t.Errorf("Expected payment ID P1, got %s", o.PaymentID)
	}
	if orders.calls != 1 {
		t.Errorf("Expected 1 fetch, got %d", orders.calls)
	}
}

func TestResolver_InlineTokenSkipsLookup(t *testing.T) {
	orders := &fakeOrderService{orders: map[string]*Order{}}
	r := NewResolver(orders, &fakePaymentService{status: PaymentPaid}, nil)

	raw := `{"orderId":"ORDER456","items":[{"name":"Curry","quantity":1,"unitPrice":480,"totalPrice":480}],"totalAmount":480,"paymentStatus":"paid"}`
	o, err := r.Resolve(context.Background(), raw)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if o.OrderID != "ORDER456" {
		t.Errorf("Expected ORDER456, got %s", o.OrderID)
	}
	if orders.calls != 0 {
		t.Errorf("Inline payload should not hit the order service, got %d calls", orders.calls)
	}
}

func TestResolver_PaymentFailureDowngradesToUnknown(t *testing.T) {
	orders := &fakeOrderService{orders: map[string]*Order{"ORDER123": testOrder("ORDER123")}}
	payments := &fakePaymentService{err: errors.New("provider unreachable")}
	r := NewResolver(orders, payments, nil)

	o, err := r.Resolve(context.Background(), "ORDER123")
	if err != nil {
		t.Fatalf("Resolve should not fail on payment errors: %v", err)
	}

	if o.PaymentStatus != PaymentUnknown {
		t.Errorf("Expected unknown, got %s", o.PaymentStatus)
	}
}

func TestResolver_OrderNotFound(t *testing.T) {
	orders := &fakeOrderService{orders: map[string]*Order{}}
	r := NewResolver(orders, &fakePaymentService{status: PaymentPaid}, nil)

	_, err := r.Resolve(context.Background(), "GHOST999")
	if !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("Expected ErrOrderNotFound, got %v", err)
	}
}

func TestResolver_UnsupportedToken(t *testing.T) {
	r := NewResolver(&fakeOrderService{}, &fakePaymentService{}, nil)

	_, err := r.Resolve(context.Background(), `{"unexpected":true}`)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
}
