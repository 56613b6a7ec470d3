package payment

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// countingProvider approves every charge and counts how often it is hit.
type countingProvider struct {
	mu      sync.Mutex
	charges int
}

func (p *countingProvider) Name() string { return "counting" }

func (p *countingProvider) Charge(ctx context.Context, req Request) (Result, error) {
	p.mu.Lock()
	p.charges++
	n := p.charges
	p.mu.Unlock()
	return Result{
		Settled:       true,
		Status:        StatusCompleted,
		TransactionID: fmt.Sprintf("SQ_TEST_%06d", n),
		ReceiptNumber: fmt.Sprintf("REC_%06d", n),
		Amount:        req.Amount,
		Currency:      req.Currency,
		SettledAt:     time.Unix(1735689600, 0).UTC(),
	}, nil
}

func (p *countingProvider) Cancel(ctx context.Context, transactionID string) (Result, error) {
	return Result{Status: StatusRefunded, TransactionID: transactionID}, nil
}

func newTestService(t *testing.T) (*Service, *countingProvider) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	provider := &countingProvider{}
	cache := &IdempotencyCache{Client: client, TTL: time.Minute}
	return NewService(provider, cache, nil, zerolog.Nop()), provider
}

func TestSettleReplaysIdempotencyKey(t *testing.T) {
	svc, provider := newTestService(t)
	ctx := context.Background()
	req := Request{
		OrderID:        "o-1",
		Amount:         3250,
		Currency:       "JPY",
		SourceToken:    "tok",
		IdempotencyKey: "checkout-abc",
	}

	first, err := svc.Settle(ctx, req)
	require.NoError(t, err)
	second, err := svc.Settle(ctx, req)
	require.NoError(t, err)

	require.Equal(t, first.TransactionID, second.TransactionID)
	require.Equal(t, 1, provider.charges)
}

func TestSettleDistinctKeysChargeIndependently(t *testing.T) {
	svc, provider := newTestService(t)
	ctx := context.Background()

	req := Request{OrderID: "o-1", Amount: 1000, Currency: "JPY", SourceToken: "tok"}
	req.IdempotencyKey = "key-a"
	first, err := svc.Settle(ctx, req)
	require.NoError(t, err)
	req.IdempotencyKey = "key-b"
	second, err := svc.Settle(ctx, req)
	require.NoError(t, err)

	require.NotEqual(t, first.TransactionID, second.TransactionID)
	require.Equal(t, 2, provider.charges)
}

func TestSettleSynthesisesMissingKey(t *testing.T) {
	svc, provider := newTestService(t)
	ctx := context.Background()

	req := Request{OrderID: "o-1", Amount: 1000, Currency: "JPY", SourceToken: "tok"}
	_, err := svc.Settle(ctx, req)
	require.NoError(t, err)
	_, err = svc.Settle(ctx, req)
	require.NoError(t, err)

	// No key means every attempt settles on its own.
	require.Equal(t, 2, provider.charges)
}

func TestSettleCachesDeclines(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	bridge := instantBridge(10000, 1)
	cache := &IdempotencyCache{Client: client, TTL: time.Minute}
	svc := NewService(bridge, cache, nil, zerolog.Nop())

	req := testRequest()
	req.IdempotencyKey = "declined-once"
	first, err := svc.Settle(context.Background(), req)
	require.NoError(t, err)
	require.False(t, first.Settled)

	// The decline is the recorded outcome; a retry with the same key must
	// not roll the dice again.
	bridge.FailureBps = 0
	second, err := svc.Settle(context.Background(), req)
	require.NoError(t, err)
	require.False(t, second.Settled)
	require.Equal(t, "CARD_ERROR", second.ErrorCode)
}

func TestTransactionLookup(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	result, err := svc.Settle(ctx, Request{OrderID: "o-1", Amount: 1000, Currency: "JPY", SourceToken: "tok"})
	require.NoError(t, err)

	got, err := svc.Transaction(result.TransactionID)
	require.NoError(t, err)
	require.Equal(t, result.TransactionID, got.TransactionID)

	_, err = svc.Transaction("SQ_UNKNOWN")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCancelRequiresKnownTransaction(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Cancel(ctx, "SQ_UNKNOWN")
	require.ErrorIs(t, err, ErrNotFound)

	result, err := svc.Settle(ctx, Request{OrderID: "o-1", Amount: 1000, Currency: "JPY", SourceToken: "tok"})
	require.NoError(t, err)

	refunded, err := svc.Cancel(ctx, result.TransactionID)
	require.NoError(t, err)
	require.Equal(t, StatusRefunded, refunded.Status)

	got, err := svc.Transaction(result.TransactionID)
	require.NoError(t, err)
	require.Equal(t, StatusRefunded, got.Status)
}
