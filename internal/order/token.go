package order

import (
	"encoding/json"
	"strings"
	"time"
)

// TokenKind classifies a scanned token after parsing.
type TokenKind int

const (
	// TokenOrderID names an order held by the backend.
	TokenOrderID TokenKind = iota
	// TokenInline carries the full order payload in the QR code itself.
	TokenInline
)

// Token is the parsed form of a scanned or typed string.
type Token struct {
	Kind    TokenKind
	OrderID string
	Inline  *Order
}

// envelope is the {id, type} wrapper the storefront's QR display encodes.
type envelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// inlinePayload is a fully self-describing order QR payload.
type inlinePayload struct {
	OrderID             string `json:"orderId"`
	Items               []Item `json:"items"`
	TotalAmount         *int   `json:"totalAmount"`
	PaymentStatus       string `json:"paymentStatus"`
	OrderTime           string `json:"orderTime"`
	SpecialInstructions string `json:"specialInstructions"`
}

// ParseToken decodes a raw token. Three shapes are accepted: a bare
// non-JSON string (an order ID), a JSON envelope {id, type:"order"}, and a
// self-describing JSON order payload. Everything else fails with
// ErrUnsupportedFormat.
func ParseToken(raw string) (Token, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Token{}, ErrUnsupportedFormat
	}

	if !strings.HasPrefix(raw, "{") {
		return Token{Kind: TokenOrderID, OrderID: raw}, nil
	}

	var p inlinePayload
	if err := json.Unmarshal([]byte(raw), &p); err == nil {
		if p.OrderID != "" && len(p.Items) > 0 && p.TotalAmount != nil {
			return Token{Kind: TokenInline, Inline: p.toOrder()}, nil
		}
	}

	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err == nil {
		if env.ID != "" && env.Type == "order" {
			return Token{Kind: TokenOrderID, OrderID: env.ID}, nil
		}
	}

	return Token{}, ErrUnsupportedFormat
}

func (p *inlinePayload) toOrder() *Order {
	o := &Order{
		OrderID:             p.OrderID,
		Items:               p.Items,
		TotalAmount:         *p.TotalAmount,
		PaymentStatus:       normalizePaymentStatus(p.PaymentStatus),
		SpecialInstructions: p.SpecialInstructions,
	}
	if t, err := time.Parse(time.RFC3339, p.OrderTime); err == nil {
		o.OrderTime = t
	}
	return o
}

func normalizePaymentStatus(s string) PaymentStatus {
	switch PaymentStatus(s) {
	case PaymentPaid, PaymentPending:
		return PaymentStatus(s)
	default:
		return PaymentUnknown
	}
}
