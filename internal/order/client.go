package order

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cockroachdb/errors"
)

// Client talks to the cafeteria backend's REST API. It implements
// OrderService and PaymentService, and carries the fire-and-forget
// order-update notification.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a backend client. timeout bounds each request.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// orderResponse mirrors GET /api/orders/{id}.
type orderResponse struct {
	Status string `json:"status"`
	Data   *struct {
		MerchantPaymentID string `json:"merchantPaymentId"`
		Amount            struct {
			Amount int `json:"amount"`
		} `json:"amount"`
		OrderItems []struct {
			MenuID    string `json:"menuId"`
			Name      string `json:"name"`
			Quantity  int    `json:"quantity"`
			UnitPrice struct {
				Amount int `json:"amount"`
			} `json:"unitPrice"`
			Notes string `json:"notes"`
		} `json:"orderItems"`
		CreatedAt string `json:"createdAt"`
		Notes     string `json:"notes"`
	} `json:"data"`
}

// paymentResponse mirrors GET /api/payment-status.
type paymentResponse struct {
	Status string `json:"status"`
	Data   *struct {
		Status    string `json:"status"`
		PaymentID string `json:"paymentId"`
	} `json:"data"`
}

// FetchOrder retrieves an order by ID. A 404 maps to ErrOrderNotFound; any
// response that does not match the expected schema maps to
// ErrMalformedResponse.
func (c *Client) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	endpoint := fmt.Sprintf("%s/api/orders/%s", c.baseURL, url.PathEscape(orderID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build order request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "order lookup")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.Mark(errors.Newf("order %s: %d", orderID, resp.StatusCode), ErrOrderNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Mark(errors.Newf("order lookup returned %d", resp.StatusCode), ErrMalformedResponse)
	}

	var body orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decode order response"), ErrMalformedResponse)
	}
	if body.Status != "success" || body.Data == nil || body.Data.MerchantPaymentID == "" {
		return nil, errors.Mark(errors.New("unexpected order response shape"), ErrMalformedResponse)
	}

	d := body.Data
	o := &Order{
		OrderID:             d.MerchantPaymentID,
		TotalAmount:         d.Amount.Amount,
		PaymentStatus:       PaymentUnknown,
		SpecialInstructions: d.Notes,
	}
	for _, it := range d.OrderItems {
		menuID := it.MenuID
		if menuID == "" {
			menuID = "UNKNOWN"
		}
		o.Items = append(o.Items, Item{
			MenuID:     menuID,
			Name:       it.Name,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice.Amount,
			TotalPrice: it.UnitPrice.Amount * it.Quantity,
			Notes:      it.Notes,
		})
	}
	if t, err := time.Parse(time.RFC3339, d.CreatedAt); err == nil {
		o.OrderTime = t
	} else {
		o.OrderTime = time.Now()
	}

	return o, nil
}

// PaymentStatus asks the payment provider (via the backend) for an order's
// payment state. Provider status COMPLETED maps to paid, anything else to
// pending. Errors are returned so the caller can downgrade to unknown.
func (c *Client) PaymentStatus(ctx context.Context, orderID string) (Payment, error) {
	endpoint := fmt.Sprintf("%s/api/payment-status?merchantPaymentId=%s", c.baseURL, url.QueryEscape(orderID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Payment{Status: PaymentUnknown}, errors.Wrap(err, "build payment request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Payment{Status: PaymentUnknown}, errors.Wrap(err, "payment lookup")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Payment{Status: PaymentUnknown}, errors.Newf("payment lookup returned %d", resp.StatusCode)
	}

	var body paymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Payment{Status: PaymentUnknown}, errors.Wrap(err, "decode payment response")
	}
	if body.Status != "success" || body.Data == nil {
		return Payment{Status: PaymentUnknown}, errors.New("unexpected payment response shape")
	}

	pay := Payment{Status: PaymentPending, PaymentID: body.Data.PaymentID}
	if body.Data.Status == "COMPLETED" {
		pay.Status = PaymentPaid
	}
	return pay, nil
}

// MarkOrderPaid notifies the backend that an order's ticket has been printed
// and its payment confirmed. Best-effort: failures are returned for logging
// only and must not block printing.
func (c *Client) MarkOrderPaid(ctx context.Context, orderID, paymentID string) error {
	payload, err := json.Marshal(map[string]string{
		"orderId":   orderID,
		"paymentId": paymentID,
		"status":    "paid",
	})
	if err != nil {
		return errors.Wrap(err, "encode update request")
	}

	endpoint := c.baseURL + "/api/update-order"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "build update request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "order update")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Newf("order update returned %d", resp.StatusCode)
	}
	return nil
}
