package order

import (
	"context"
	"log/slog"
)

// OrderService fetches order details from the cafeteria backend.
type OrderService interface {
	FetchOrder(ctx context.Context, orderID string) (*Order, error)
}

// PaymentService looks up the payment provider's status for an order.
type PaymentService interface {
	PaymentStatus(ctx context.Context, orderID string) (Payment, error)
}

// Resolver turns a scanned token into an Order, or fails with one of the
// typed errors in this package. It performs no retries; re-scanning is the
// operator's retry mechanism.
type Resolver struct {
	orders   OrderService
	payments PaymentService
	logger   *slog.Logger
}

// NewResolver creates a resolver over the given lookup services.
func NewResolver(orders OrderService, payments PaymentService, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{orders: orders, payments: payments, logger: logger}
}

// Resolve parses the token and fetches the order it names. Payment status is
// a best-effort enrichment: a payment lookup failure downgrades the status
// to unknown but never fails the resolution.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*Order, error) {
	tok, err := ParseToken(raw)
	if err != nil {
		return nil, err
	}

	if tok.Kind == TokenInline {
		return tok.Inline, nil
	}

	o, err := r.orders.FetchOrder(ctx, tok.OrderID)
	if err != nil {
		return nil, err
	}

	pay, err := r.payments.PaymentStatus(ctx, tok.OrderID)
	if err != nil {
		r.logger.Warn("payment status lookup failed", "order_id", tok.OrderID, "error", err)
		pay = Payment{Status: PaymentUnknown}
	}
	o.PaymentStatus = pay.Status
	o.PaymentID = pay.PaymentID

	return o, nil
}
