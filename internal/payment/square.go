package payment

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// SquareBridge emulates a card gateway in the shape of the Square payments
// API. It never performs network calls: charges succeed with a configurable
// probability after an artificial processing delay, so checkout flows can be
// demonstrated end to end without credentials.
type SquareBridge struct {
	// FailureBps is the decline probability in basis points (500 = 5%).
	FailureBps int
	// MinDelay and MaxDelay bound the simulated processing time.
	MinDelay time.Duration
	MaxDelay time.Duration
	// Rand and Now are injectable for tests.
	Rand *rand.Rand
	Now  func() time.Time

	mu sync.Mutex
}

// NewSquareBridge builds a bridge with production-like defaults: 5% declines
// and a 500ms to 1s processing window.
func NewSquareBridge() *SquareBridge {
	return &SquareBridge{
		FailureBps: 500,
		MinDelay:   500 * time.Millisecond,
		MaxDelay:   time.Second,
	}
}

// Name implements Provider.
func (b *SquareBridge) Name() string { return "square-bridge" }

func (b *SquareBridge) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

func (b *SquareBridge) intn(n int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Rand != nil {
		return b.Rand.Intn(n)
	}
	return rand.Intn(n)
}

// Charge settles the requested amount after a simulated processing delay.
// Declines surface as a Result with ErrorCode CARD_ERROR, not as an error.
func (b *SquareBridge) Charge(ctx context.Context, req Request) (Result, error) {
	if err := validateRequest(req); err != nil {
		return Result{}, err
	}
	if err := b.wait(ctx); err != nil {
		return Result{}, err
	}

	now := b.now()
	if b.FailureBps > 0 && b.intn(10000) < b.FailureBps {
		return Result{
			Settled:      false,
			Status:       StatusDeclined,
			Amount:       req.Amount,
			Currency:     req.Currency,
			ErrorCode:    "CARD_ERROR",
			ErrorMessage: "カード決済に失敗しました。別のカードをお試しください。",
		}, nil
	}

	return Result{
		Settled:       true,
		Status:        StatusCompleted,
		TransactionID: b.transactionID(now),
		ReceiptNumber: b.receiptNumber(now),
		Amount:        req.Amount,
		Currency:      req.Currency,
		SettledAt:     now,
	}, nil
}

// Cancel voids a settled transaction. The bridge has no upstream state, so a
// cancel always succeeds for a well-formed transaction id.
func (b *SquareBridge) Cancel(ctx context.Context, transactionID string) (Result, error) {
	if strings.TrimSpace(transactionID) == "" {
		return Result{}, errors.New("transaction id is required")
	}
	if err := b.wait(ctx); err != nil {
		return Result{}, err
	}
	return Result{
		Settled:       false,
		Status:        StatusRefunded,
		TransactionID: transactionID,
		SettledAt:     b.now(),
	}, nil
}

// wait sleeps for a random duration in [MinDelay, MaxDelay], honouring
// context cancellation.
func (b *SquareBridge) wait(ctx context.Context) error {
	min := b.MinDelay
	if min < 0 {
		min = 0
	}
	max := b.MaxDelay
	if max < min {
		max = min
	}
	delay := min
	if span := max - min; span > 0 {
		delay += time.Duration(b.intn(int(span)))
	}
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// transactionID produces identifiers like SQ_1735689600123_482910573.
func (b *SquareBridge) transactionID(now time.Time) string {
	return fmt.Sprintf("SQ_%d_%09d", now.UnixMilli(), b.intn(1_000_000_000))
}

// receiptNumber produces short receipts like REC_89600123, keeping the last
// eight digits of the settlement timestamp.
func (b *SquareBridge) receiptNumber(now time.Time) string {
	ms := fmt.Sprintf("%d", now.UnixMilli())
	if len(ms) > 8 {
		ms = ms[len(ms)-8:]
	}
	return "REC_" + ms
}

func validateRequest(req Request) error {
	if req.Amount <= 0 {
		return fmt.Errorf("amount must be positive, got %d", req.Amount)
	}
	if strings.TrimSpace(req.Currency) == "" {
		return errors.New("currency is required")
	}
	if strings.TrimSpace(req.SourceToken) == "" {
		return errors.New("payment source token is required")
	}
	return nil
}
