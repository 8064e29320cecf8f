// Package order resolves scanned tokens into canonical order records by
// consulting the cafeteria backend's order and payment lookup services.
package order

import (
	"time"

	"github.com/cockroachdb/errors"
)

// PaymentStatus is the terminal's view of an order's payment state.
type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentPending PaymentStatus = "pending"
	PaymentUnknown PaymentStatus = "unknown"
)

// Payment is the payment provider's answer for one order: the mapped
// status plus the provider's own payment identifier, needed when
// reporting the order back as paid.
type Payment struct {
	Status    PaymentStatus `json:"status"`
	PaymentID string        `json:"paymentId,omitempty"`
}

// Typed resolution failures. Callers match with errors.Is.
var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrUnsupportedFormat = errors.New("unsupported token format")
	ErrMalformedResponse = errors.New("malformed upstream response")
)

// Item is one line of an order.
type Item struct {
	MenuID     string `json:"menuId"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	UnitPrice  int    `json:"unitPrice"`
	TotalPrice int    `json:"totalPrice"`
	Notes      string `json:"notes,omitempty"`
}

// Order is a resolved order. Amounts are in yen. Created fresh on every
// successful resolution and never mutated afterwards.
type Order struct {
	OrderID             string        `json:"orderId"`
	Items               []Item        `json:"items"`
	TotalAmount         int           `json:"totalAmount"`
	PaymentStatus       PaymentStatus `json:"paymentStatus"`
	PaymentID           string        `json:"paymentId,omitempty"`
	OrderTime           time.Time     `json:"orderTime"`
	SpecialInstructions string        `json:"specialInstructions,omitempty"`
}
