package payment

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newMethodStore(t *testing.T) *MethodStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &MethodStore{R: client, Prefix: "test:methods"}
}

func sampleCard() SavedMethod {
	return SavedMethod{
		Type:           MethodCreditCard,
		LastFourDigits: "4242",
		CardType:       "VISA",
		ExpiryMonth:    12,
		ExpiryYear:     2028,
		CardholderName: "YAMADA HANAKO",
	}
}

func TestAddFirstMethodBecomesDefault(t *testing.T) {
	s := newMethodStore(t)
	ctx := context.Background()

	card, err := s.Add(ctx, "user:u-1", sampleCard())
	require.NoError(t, err)
	require.NotEmpty(t, card.ID)
	require.True(t, card.Default)

	wallet, err := s.Add(ctx, "user:u-1", SavedMethod{
		Type:        MethodApplePay,
		TokenID:     "tok_apple_1",
		DisplayName: "Apple Pay",
	})
	require.NoError(t, err)
	require.False(t, wallet.Default, "only the first saved method auto-defaults")

	def, err := s.Default(ctx, "user:u-1")
	require.NoError(t, err)
	require.Equal(t, card.ID, def.ID)
}

func TestListIsPerOwnerAndOrdered(t *testing.T) {
	s := newMethodStore(t)
	ctx := context.Background()

	first, err := s.Add(ctx, "user:u-1", sampleCard())
	require.NoError(t, err)
	_, err = s.Add(ctx, "anon:a-1", SavedMethod{Type: MethodGooglePay, TokenID: "tok_g_1"})
	require.NoError(t, err)

	mine, err := s.List(ctx, "user:u-1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, first.ID, mine[0].ID)
	require.True(t, mine[0].Default)

	theirs, err := s.List(ctx, "anon:a-1")
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	require.Equal(t, MethodGooglePay, theirs[0].Type)
}

func TestSetDefaultAndDelete(t *testing.T) {
	s := newMethodStore(t)
	ctx := context.Background()

	card, err := s.Add(ctx, "user:u-1", sampleCard())
	require.NoError(t, err)
	bank, err := s.Add(ctx, "user:u-1", SavedMethod{
		Type:          MethodBankTransfer,
		BankName:      "みずほ銀行",
		BranchName:    "渋谷支店",
		AccountType:   "普通",
		AccountNumber: "1234567",
		AccountHolder: "ヤマダ ハナコ",
	})
	require.NoError(t, err)

	require.ErrorIs(t, s.SetDefault(ctx, "user:u-1", "missing"), ErrMethodNotFound)
	require.NoError(t, s.SetDefault(ctx, "user:u-1", bank.ID))

	def, err := s.Default(ctx, "user:u-1")
	require.NoError(t, err)
	require.Equal(t, bank.ID, def.ID)

	// Deleting the default leaves no default behind.
	require.NoError(t, s.Delete(ctx, "user:u-1", bank.ID))
	_, err = s.Default(ctx, "user:u-1")
	require.ErrorIs(t, err, ErrMethodNotFound)

	require.ErrorIs(t, s.Delete(ctx, "user:u-1", bank.ID), ErrMethodNotFound)

	remaining, err := s.List(ctx, "user:u-1")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, card.ID, remaining[0].ID)
}

func TestAddValidatesByType(t *testing.T) {
	s := newMethodStore(t)
	ctx := context.Background()

	cases := []SavedMethod{
		{Type: "crypto"},
		{Type: MethodCreditCard, LastFourDigits: "12", CardholderName: "A"},
		{Type: MethodCreditCard, LastFourDigits: "4242"},
		{Type: MethodBankTransfer, BankName: "みずほ銀行"},
		{Type: MethodApplePay},
	}
	for i, m := range cases {
		if _, err := s.Add(ctx, "user:u-1", m); err == nil {
			t.Fatalf("case %d: expected validation error for %+v", i, m)
		}
	}

	_, err := s.Add(ctx, "", sampleCard())
	require.ErrorIs(t, err, ErrInvalidMethod)
}

func TestChargeToken(t *testing.T) {
	wallet := SavedMethod{ID: "m-1", Type: MethodApplePay, TokenID: "tok_apple_1"}
	require.Equal(t, "tok_apple_1", wallet.ChargeToken())

	card := SavedMethod{ID: "m-2", Type: MethodCreditCard}
	require.Equal(t, "pm_m-2", card.ChargeToken())
}
