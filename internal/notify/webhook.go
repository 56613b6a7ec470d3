package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/storefront-api/internal/obs"
)

// TaskKindReceipt is the queue kind for asynchronous receipt delivery.
const TaskKindReceipt = "receipt-webhook"

// ReceiptPayload is the body posted to the receipt webhook after a paid order.
type ReceiptPayload struct {
	OrderID       string    `json:"orderId"`
	TransactionID string    `json:"transactionId"`
	ReceiptNumber string    `json:"receiptNumber"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	SettledAt     time.Time `json:"settledAt"`
}

// ReceiptSender delivers receipts to an external webhook endpoint.
type ReceiptSender struct {
	URL     string
	Timeout time.Duration
	Logger  zerolog.Logger
	client  *http.Client
}

// NewReceiptSender builds a sender with an instrumented HTTP client.
func NewReceiptSender(url string, timeout time.Duration, logger zerolog.Logger) *ReceiptSender {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ReceiptSender{
		URL:     url,
		Timeout: timeout,
		Logger:  logger,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Send posts the receipt payload. A non-2xx response is an error so the queue
// retries delivery.
func (s *ReceiptSender) Send(ctx context.Context, payload ReceiptPayload) error {
	if s == nil || s.URL == "" {
		return errors.New("notify: receipt webhook url not configured")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: encode receipt: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build receipt request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		recordDelivery("error")
		return fmt.Errorf("notify: deliver receipt: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		recordDelivery("rejected")
		return fmt.Errorf("notify: receipt webhook returned %d", resp.StatusCode)
	}
	recordDelivery("delivered")
	s.Logger.Info().
		Str("order_id", payload.OrderID).
		Str("receipt_number", payload.ReceiptNumber).
		Msg("receipt delivered")
	return nil
}

func recordDelivery(result string) {
	if obs.ReceiptDeliveriesTotal != nil {
		obs.ReceiptDeliveriesTotal.WithLabelValues(result).Inc()
	}
}
