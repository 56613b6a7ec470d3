package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/storefront-api/internal/events"
	"github.com/noah-isme/storefront-api/internal/obs"
)

// ErrNotFound indicates the requested transaction could not be located.
var ErrNotFound = errors.New("transaction not found")

// Service coordinates settlement attempts, idempotent replay, and transaction lookup.
type Service struct {
	Provider Provider
	Cache    *IdempotencyCache
	Bus      *events.Bus
	Logger   zerolog.Logger
	Now      func() time.Time

	mu           sync.RWMutex
	transactions map[string]Result
}

// NewService builds a settlement service around the given provider.
func NewService(provider Provider, cache *IdempotencyCache, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		Provider:     provider,
		Cache:        cache,
		Bus:          bus,
		Logger:       logger,
		transactions: make(map[string]Result),
	}
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Settle charges the provided request exactly once per idempotency key.
// Replays of a key already settled within the cache TTL return the original
// result without contacting the provider again.
func (s *Service) Settle(ctx context.Context, req Request) (Result, error) {
	if s == nil || s.Provider == nil {
		return Result{}, errors.New("payment service not configured")
	}
	if err := validateRequest(req); err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		req.IdempotencyKey = s.newIdempotencyKey()
	}

	ctx, span := otel.Tracer("payment.Service").Start(ctx, "PaymentService.Settle")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.provider", s.Provider.Name()),
		attribute.Int64("payment.amount", req.Amount),
		attribute.String("payment.currency", req.Currency),
	)

	if cached, ok, err := s.Cache.Get(ctx, req.IdempotencyKey); err != nil {
		return Result{}, err
	} else if ok {
		span.SetAttributes(attribute.Bool("payment.replayed", true))
		s.Logger.Info().
			Str("transaction_id", cached.TransactionID).
			Str("order_id", req.OrderID).
			Msg("settlement replayed from idempotency cache")
		return cached, nil
	}

	start := time.Now()
	result, err := s.Provider.Charge(ctx, req)
	elapsed := time.Since(start)
	if obs.SettlementLatency != nil {
		obs.SettlementLatency.WithLabelValues(s.Provider.Name()).Observe(obs.DurationMillis(elapsed))
	}
	if err != nil {
		span.RecordError(err)
		recordSettlement(s.Provider.Name(), "error")
		return Result{}, fmt.Errorf("charge: %w", err)
	}

	label := "declined"
	if result.Settled {
		label = "settled"
	}
	recordSettlement(s.Provider.Name(), label)
	span.SetAttributes(
		attribute.Bool("payment.settled", result.Settled),
		attribute.Float64("payment.duration_ms", obs.DurationMillis(elapsed)),
	)

	if result.Settled {
		s.mu.Lock()
		s.transactions[result.TransactionID] = result
		s.mu.Unlock()
		s.Logger.Info().
			Str("transaction_id", result.TransactionID).
			Str("order_id", req.OrderID).
			Int64("amount", result.Amount).
			Str("currency", result.Currency).
			Dur("elapsed", elapsed).
			Msg("settlement completed")
	} else {
		s.Logger.Warn().
			Str("order_id", req.OrderID).
			Str("error_code", result.ErrorCode).
			Msg("settlement declined")
		if s.Bus != nil {
			_, _ = s.Bus.Emit(ctx, events.TopicPaymentFailed, req.OrderID, map[string]any{
				"errorCode": result.ErrorCode,
				"amount":    req.Amount,
			})
		}
	}

	if err := s.Cache.Put(ctx, req.IdempotencyKey, result); err != nil {
		s.Logger.Error().Err(err).Msg("store idempotency result")
	}
	return result, nil
}

// Cancel voids a settled transaction via the provider and records the refund.
func (s *Service) Cancel(ctx context.Context, transactionID string) (Result, error) {
	if s == nil || s.Provider == nil {
		return Result{}, errors.New("payment service not configured")
	}
	s.mu.RLock()
	_, known := s.transactions[transactionID]
	s.mu.RUnlock()
	if !known {
		return Result{}, ErrNotFound
	}
	result, err := s.Provider.Cancel(ctx, transactionID)
	if err != nil {
		return Result{}, fmt.Errorf("cancel: %w", err)
	}
	s.mu.Lock()
	s.transactions[transactionID] = result
	s.mu.Unlock()
	s.Logger.Info().Str("transaction_id", transactionID).Msg("settlement refunded")
	return result, nil
}

// Transaction returns the recorded outcome for a settled transaction.
func (s *Service) Transaction(transactionID string) (Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.transactions[transactionID]
	if !ok {
		return Result{}, ErrNotFound
	}
	return result, nil
}

func recordSettlement(provider, result string) {
	if obs.SettlementTotal != nil {
		obs.SettlementTotal.WithLabelValues(provider, result).Inc()
	}
}

// newIdempotencyKey synthesises a key for clients that did not send one, so
// each such request settles independently.
func (s *Service) newIdempotencyKey() string {
	return fmt.Sprintf("idem-%d-%s", s.now().UnixMilli(), uuid.NewString())
}
