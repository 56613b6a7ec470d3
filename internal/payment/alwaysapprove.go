package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AlwaysApprove is a deterministic gateway for demos and integration tests.
// Every well-formed charge settles immediately with no delay.
type AlwaysApprove struct {
	Now func() time.Time
}

// Name implements Provider.
func (a AlwaysApprove) Name() string { return "always-approve" }

func (a AlwaysApprove) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// Charge settles unconditionally.
func (a AlwaysApprove) Charge(ctx context.Context, req Request) (Result, error) {
	if err := validateRequest(req); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	now := a.now()
	return Result{
		Settled:       true,
		Status:        StatusCompleted,
		TransactionID: "SQ_" + strings.ToUpper(uuid.NewString()),
		ReceiptNumber: fmt.Sprintf("RCP_%d", now.UnixMilli()),
		Amount:        req.Amount,
		Currency:      req.Currency,
		SettledAt:     now,
	}, nil
}

// Cancel voids a settled transaction.
func (a AlwaysApprove) Cancel(ctx context.Context, transactionID string) (Result, error) {
	if strings.TrimSpace(transactionID) == "" {
		return Result{}, errors.New("transaction id is required")
	}
	return Result{
		Settled:       false,
		Status:        StatusRefunded,
		TransactionID: transactionID,
		SettledAt:     a.now(),
	}, nil
}
