package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/storefront-api/internal/cart"
	"github.com/noah-isme/storefront-api/internal/events"
	"github.com/noah-isme/storefront-api/internal/notify"
	"github.com/noah-isme/storefront-api/internal/obs"
	"github.com/noah-isme/storefront-api/internal/order"
	"github.com/noah-isme/storefront-api/internal/payment"
	"github.com/noah-isme/storefront-api/internal/queue"
	"github.com/noah-isme/storefront-api/internal/voucher"
)

// ErrEmptyCart is returned when checkout is attempted with nothing to buy.
var ErrEmptyCart = errors.New("cart is empty")

// ErrNoPaymentMethod is returned when the request carries no source token and
// the buyer has no saved default method to fall back on.
var ErrNoPaymentMethod = errors.New("no payment method available")

// Input captures a checkout attempt.
type Input struct {
	SourceToken    string
	IdempotencyKey string
}

// Output is the outcome of a checkout attempt. A declined charge is a normal
// Output with Settled=false.
type Output struct {
	Settled      bool            `json:"settled"`
	Order        *order.Order    `json:"order,omitempty"`
	Payment      *payment.Result `json:"payment,omitempty"`
	ErrorCode    string          `json:"errorCode,omitempty"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
}

// Service drives the cart through settlement into a recorded order.
type Service struct {
	Cart     *cart.Service
	Payments *payment.Service
	Orders   *order.Store
	Vouchers *voucher.Service
	Methods  *payment.MethodStore
	Bus      *events.Bus
	Enqueuer *queue.Enqueuer
	Logger   zerolog.Logger
	Currency string
}

func (s *Service) currency() string {
	if s == nil || strings.TrimSpace(s.Currency) == "" {
		return "JPY"
	}
	return s.Currency
}

// Checkout prices the owner's cart, settles the total with the payment
// gateway, and on success records the order and empties the cart.
func (s *Service) Checkout(ctx context.Context, userID, anonID string, in Input) (Output, error) {
	if s == nil || s.Cart == nil || s.Payments == nil || s.Orders == nil {
		return Output{}, errors.New("checkout service not configured")
	}
	ctx, span := otel.Tracer("checkout.Service").Start(ctx, "CheckoutService.Checkout")
	defer span.End()

	if strings.TrimSpace(in.SourceToken) == "" {
		in.SourceToken = s.defaultChargeToken(ctx, userID, anonID)
	}
	if strings.TrimSpace(in.SourceToken) == "" {
		return Output{}, ErrNoPaymentMethod
	}

	snapshot, err := s.Cart.EnsureCart(ctx, userID, anonID)
	if err != nil {
		return Output{}, err
	}
	totals, err := s.Cart.Totals(ctx, userID, anonID)
	if err != nil {
		return Output{}, err
	}
	if len(snapshot.Items) == 0 || totals.Summary.Total <= 0 {
		recordCheckout("empty_cart")
		return Output{}, ErrEmptyCart
	}
	span.SetAttributes(
		attribute.Int64("checkout.total", int64(totals.Summary.Total)),
		attribute.Int("checkout.items", totals.ItemCount),
	)

	result, err := s.Payments.Settle(ctx, payment.Request{
		OrderID:        snapshot.ID,
		Amount:         int64(totals.Summary.Total),
		Currency:       s.currency(),
		SourceToken:    in.SourceToken,
		IdempotencyKey: in.IdempotencyKey,
	})
	if err != nil {
		recordCheckout("error")
		return Output{}, fmt.Errorf("settle: %w", err)
	}

	if !result.Settled {
		recordCheckout("declined")
		s.Logger.Warn().
			Str("cart_id", snapshot.ID).
			Str("error_code", result.ErrorCode).
			Msg("checkout declined")
		return Output{
			Settled:      false,
			Payment:      &result,
			ErrorCode:    result.ErrorCode,
			ErrorMessage: result.ErrorMessage,
		}, nil
	}

	o, err := s.Orders.Create(order.Order{
		UserID:        userID,
		AnonID:        anonID,
		Items:         snapshot.Items,
		Summary:       totals.Summary,
		VoucherCode:   snapshot.VoucherCode,
		TransactionID: result.TransactionID,
		ReceiptNumber: result.ReceiptNumber,
		Status:        order.StatusPaid,
	})
	if err != nil {
		recordCheckout("error")
		return Output{}, fmt.Errorf("record order: %w", err)
	}

	if snapshot.VoucherCode != "" && s.Vouchers != nil {
		if err := s.Vouchers.Redeem(snapshot.VoucherCode); err != nil {
			s.Logger.Error().Err(err).Str("code", snapshot.VoucherCode).Msg("redeem voucher")
		}
	}
	if _, err := s.Cart.Clear(ctx, userID, anonID); err != nil {
		s.Logger.Error().Err(err).Str("cart_id", snapshot.ID).Msg("clear cart after checkout")
	}

	if s.Bus != nil {
		_, _ = s.Bus.Emit(ctx, events.TopicOrderCreated, o.ID, map[string]any{
			"total": o.Summary.Total,
			"items": len(o.Items),
		})
		_, _ = s.Bus.Emit(ctx, events.TopicOrderPaid, o.ID, map[string]any{
			"transactionId": o.TransactionID,
		})
	}
	s.enqueueReceipt(ctx, o, result)

	recordCheckout("settled")
	s.Logger.Info().
		Str("order_id", o.ID).
		Str("transaction_id", o.TransactionID).
		Int64("total", int64(o.Summary.Total)).
		Msg("checkout settled")
	return Output{Settled: true, Order: &o, Payment: &result}, nil
}

// defaultChargeToken resolves the buyer's saved default payment method into
// a gateway source token. Returns "" when there is nothing saved.
func (s *Service) defaultChargeToken(ctx context.Context, userID, anonID string) string {
	if s.Methods == nil {
		return ""
	}
	owner := ""
	switch {
	case strings.TrimSpace(userID) != "":
		owner = "user:" + userID
	case strings.TrimSpace(anonID) != "":
		owner = "anon:" + anonID
	default:
		return ""
	}
	m, err := s.Methods.Default(ctx, owner)
	if err != nil {
		return ""
	}
	return m.ChargeToken()
}

func recordCheckout(result string) {
	if obs.CheckoutTotal != nil {
		obs.CheckoutTotal.WithLabelValues(result).Inc()
	}
}

// enqueueReceipt schedules asynchronous receipt delivery. Failure to enqueue
// never fails the checkout.
func (s *Service) enqueueReceipt(ctx context.Context, o order.Order, result payment.Result) {
	if s.Enqueuer == nil {
		return
	}
	payload, err := json.Marshal(notify.ReceiptPayload{
		OrderID:       o.ID,
		TransactionID: result.TransactionID,
		ReceiptNumber: result.ReceiptNumber,
		Amount:        result.Amount,
		Currency:      result.Currency,
		SettledAt:     result.SettledAt,
	})
	if err != nil {
		s.Logger.Error().Err(err).Msg("encode receipt task")
		return
	}
	if err := s.Enqueuer.Enqueue(ctx, queue.Task{
		Kind:           notify.TaskKindReceipt,
		Payload:        payload,
		IdempotencyKey: o.TransactionID,
		MaxAttempts:    5,
	}); err != nil {
		s.Logger.Error().Err(err).Str("order_id", o.ID).Msg("enqueue receipt delivery")
	}
}
