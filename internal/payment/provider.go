package payment

import (
	"context"
	"time"
)

// Settlement status values reported by providers.
const (
	StatusCompleted = "COMPLETED"
	StatusDeclined  = "DECLINED"
	StatusRefunded  = "REFUNDED"
)

// Request captures the information required to settle a charge with a provider.
type Request struct {
	OrderID        string
	Amount         int64
	Currency       string
	SourceToken    string
	IdempotencyKey string
}

// Result represents the normalised outcome of a settlement attempt. A declined
// charge is a valid Result with Settled=false, not an error.
type Result struct {
	Settled       bool      `json:"settled"`
	Status        string    `json:"status"`
	TransactionID string    `json:"transactionId,omitempty"`
	ReceiptNumber string    `json:"receiptNumber,omitempty"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	SettledAt     time.Time `json:"settledAt,omitempty"`
	ErrorCode     string    `json:"errorCode,omitempty"`
	ErrorMessage  string    `json:"errorMessage,omitempty"`
}

// Provider abstracts the operations required from an upstream settlement gateway.
type Provider interface {
	// Name reports the provider label used in logs and metrics.
	Name() string
	// Charge attempts to settle the requested amount.
	Charge(ctx context.Context, req Request) (Result, error)
	// Cancel voids or refunds a previously settled transaction.
	Cancel(ctx context.Context, transactionID string) (Result, error)
}
