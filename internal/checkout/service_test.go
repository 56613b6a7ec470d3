package checkout

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-api/internal/cart"
	"github.com/noah-isme/storefront-api/internal/catalog"
	"github.com/noah-isme/storefront-api/internal/order"
	"github.com/noah-isme/storefront-api/internal/payment"
	"github.com/noah-isme/storefront-api/internal/voucher"
)

func newTestService(t *testing.T, provider payment.Provider) *Service {
	t.Helper()
	cat, err := catalog.NewStore(nil)
	require.NoError(t, err)
	_, err = cat.Create(catalog.Product{ID: "p-mug", Name: "Mug", Price: 1000, Stock: 10})
	require.NoError(t, err)

	vouchers, err := voucher.NewService(nil)
	require.NoError(t, err)

	carts := cart.NewService(cat, vouchers, nil)
	carts.ShippingFlatFee = 500

	return &Service{
		Cart:     carts,
		Payments: payment.NewService(provider, nil, nil, zerolog.Nop()),
		Orders:   order.NewStore(nil),
		Vouchers: vouchers,
		Logger:   zerolog.Nop(),
		Currency: "JPY",
	}
}

func TestCheckoutSettlesAndRecordsOrder(t *testing.T) {
	svc := newTestService(t, &payment.AlwaysApprove{})
	ctx := context.Background()

	_, err := svc.Cart.AddItem(ctx, "u-1", "", "p-mug", 2)
	require.NoError(t, err)

	out, err := svc.Checkout(ctx, "u-1", "", Input{SourceToken: "tok"})
	require.NoError(t, err)
	require.True(t, out.Settled)
	require.NotNil(t, out.Order)
	require.NotNil(t, out.Payment)

	require.Equal(t, order.StatusPaid, out.Order.Status)
	require.EqualValues(t, 2700, out.Order.Summary.Total) // 2000*1.1 + 500
	require.Equal(t, out.Payment.TransactionID, out.Order.TransactionID)
	require.Equal(t, out.Payment.ReceiptNumber, out.Order.ReceiptNumber)

	stored, err := svc.Orders.Get(out.Order.ID)
	require.NoError(t, err)
	require.Equal(t, order.StatusPaid, stored.Status)

	// A settled checkout empties the cart.
	c, err := svc.Cart.EnsureCart(ctx, "u-1", "")
	require.NoError(t, err)
	require.Empty(t, c.Items)
}

func TestCheckoutDeclineKeepsCart(t *testing.T) {
	bridge := &payment.SquareBridge{FailureBps: 10000}
	svc := newTestService(t, bridge)
	ctx := context.Background()

	_, err := svc.Cart.AddItem(ctx, "u-1", "", "p-mug", 1)
	require.NoError(t, err)

	out, err := svc.Checkout(ctx, "u-1", "", Input{SourceToken: "tok"})
	require.NoError(t, err, "declines are outcomes, not errors")
	require.False(t, out.Settled)
	require.Nil(t, out.Order)
	require.Equal(t, "CARD_ERROR", out.ErrorCode)
	require.NotEmpty(t, out.ErrorMessage)

	require.Equal(t, 0, svc.Orders.Count())
	c, err := svc.Cart.EnsureCart(ctx, "u-1", "")
	require.NoError(t, err)
	require.Len(t, c.Items, 1, "cart survives a decline so the buyer can retry")
}

func TestCheckoutEmptyCart(t *testing.T) {
	svc := newTestService(t, &payment.AlwaysApprove{})

	_, err := svc.Checkout(context.Background(), "u-1", "", Input{SourceToken: "tok"})
	require.ErrorIs(t, err, ErrEmptyCart)
	require.Equal(t, 0, svc.Orders.Count())
}

func TestCheckoutRedeemsVoucher(t *testing.T) {
	svc := newTestService(t, &payment.AlwaysApprove{})
	ctx := context.Background()

	_, err := svc.Cart.AddItem(ctx, "u-1", "", "p-mug", 3)
	require.NoError(t, err)
	_, err = svc.Cart.ApplyVoucher(ctx, "u-1", "", "WELCOME500")
	require.NoError(t, err)

	out, err := svc.Checkout(ctx, "u-1", "", Input{SourceToken: "tok"})
	require.NoError(t, err)
	require.True(t, out.Settled)
	require.Equal(t, "WELCOME500", out.Order.VoucherCode)
	require.EqualValues(t, 500, out.Order.Summary.Discount)

	v, err := svc.Vouchers.Get("WELCOME500")
	require.NoError(t, err)
	require.EqualValues(t, 1, v.UsedCount)
}

func TestCheckoutWithoutAnyPaymentMethod(t *testing.T) {
	svc := newTestService(t, &payment.AlwaysApprove{})
	ctx := context.Background()

	_, err := svc.Cart.AddItem(ctx, "u-1", "", "p-mug", 1)
	require.NoError(t, err)

	_, err = svc.Checkout(ctx, "u-1", "", Input{})
	require.ErrorIs(t, err, ErrNoPaymentMethod)
	require.Equal(t, 0, svc.Orders.Count())
}

func TestCheckoutFallsBackToSavedDefaultMethod(t *testing.T) {
	svc := newTestService(t, &payment.AlwaysApprove{})
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc.Methods = &payment.MethodStore{R: client, Prefix: "test:methods"}
	ctx := context.Background()

	_, err := svc.Methods.Add(ctx, "user:u-1", payment.SavedMethod{
		Type:    payment.MethodApplePay,
		TokenID: "tok_apple_1",
	})
	require.NoError(t, err)

	_, err = svc.Cart.AddItem(ctx, "u-1", "", "p-mug", 1)
	require.NoError(t, err)

	out, err := svc.Checkout(ctx, "u-1", "", Input{})
	require.NoError(t, err)
	require.True(t, out.Settled)

	// An explicit token still wins over the saved default.
	_, err = svc.Cart.AddItem(ctx, "u-1", "", "p-mug", 1)
	require.NoError(t, err)
	out, err = svc.Checkout(ctx, "u-1", "", Input{SourceToken: "tok-explicit"})
	require.NoError(t, err)
	require.True(t, out.Settled)
}

func TestCheckoutAnonymousOwner(t *testing.T) {
	svc := newTestService(t, &payment.AlwaysApprove{})
	ctx := context.Background()

	_, err := svc.Cart.AddItem(ctx, "", "anon-42", "p-mug", 1)
	require.NoError(t, err)

	out, err := svc.Checkout(ctx, "", "anon-42", Input{SourceToken: "tok"})
	require.NoError(t, err)
	require.True(t, out.Settled)

	owned := svc.Orders.ListByOwner("", "anon-42")
	require.Len(t, owned, 1)
	require.Equal(t, out.Order.ID, owned[0].ID)
}
