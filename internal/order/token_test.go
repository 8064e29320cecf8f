package order

import (
	"testing"

	"github.com/cockroachdb/errors"
)

func TestParseToken_BareID(t *testing.T) {
	tok, err := ParseToken("ORDER123")
	if err != nil {
		t.Fatalf("ParseToken failed: %v", err)
	}

	if tok.Kind != TokenOrderID {
		t.Errorf("Expected TokenOrderID, got %v", tok.Kind)
	}
	if tok.OrderID != "ORDER123" {
		t.Errorf("Expected ORDER123, got %s", tok.OrderID)
	}
}

func TestParseToken_Envelope(t *testing.T) {
	tok, err := ParseToken(`{"id":"ORD20250326001","type":"order","timestamp":"2025-03-26T10:00:00Z"}`)
	if err != nil {
		t.Fatalf("ParseToken failed: %v", err)
	}

	if tok.Kind != TokenOrderID {
		t.Errorf("Expected TokenOrderID, got %v", tok.Kind)
	}
	if tok.OrderID != "ORD20250326001" {
		t.Errorf("Expected ORD20250326001, got %s", tok.OrderID)
	}
}

func TestParseToken_InlinePayload(t *testing.T) {
	raw := `{
		"orderId": "ORDER456",
		"items": [{"menuId":"M1","name":"Curry","quantity":1,"unitPrice":480,"totalPrice":480}],
		"totalAmount": 480,
		"paymentStatus": "paid",
		"orderTime": "2025-03-26T11:30:00Z"
	}`

	tok, err := ParseToken(raw)
	if err != nil {
		t.Fatalf("ParseToken failed: %v", err)
	}

	if tok.Kind != TokenInline {
		t.Fatalf("Expected TokenInline, got %v", tok.Kind)
	}
	if tok.Inline.OrderID != "ORDER456" {
		t.Errorf("Expected ORDER456, got %s", tok.Inline.OrderID)
	}
	if tok.Inline.TotalAmount != 480 {
		t.Errorf("Expected total 480, got %d", tok.Inline.TotalAmount)
	}
	if tok.Inline.PaymentStatus != PaymentPaid {
		t.Errorf("Expected paid, got %s", tok.Inline.PaymentStatus)
	}
	if tok.Inline.OrderTime.IsZero() {
		t.Error("Expected parsed order time")
	}
}

func TestParseToken_InlinePayloadUnknownStatus(t *testing.T) {
	raw := `{"orderId":"X","items":[{"name":"A","quantity":1}],"totalAmount":100,"paymentStatus":"COMPLETED"}`

	tok, err := ParseToken(raw)
	if err != nil {
		t.Fatalf("ParseToken failed: %v", err)
	}

	// Provider-native strings are not trusted; anything but paid/pending
	// downgrades to unknown.
	if tok.Inline.PaymentStatus != PaymentUnknown {
		t.Errorf("Expected unknown, got %s", tok.Inline.PaymentStatus)
	}
}

func TestParseToken_Unsupported(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"json without id", `{"foo":"bar"}`},
		{"envelope wrong type", `{"id":"X","type":"coupon"}`},
		{"broken json", `{"id":`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseToken(tc.raw)
			if !errors.Is(err, ErrUnsupportedFormat) {
				t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
			}
		})
	}
}
