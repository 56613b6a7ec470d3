package voucher

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEvaluateSeedCoupons(t *testing.T) {
	svc, err := NewService(nil)
	require.NoError(t, err)

	d, err := svc.Evaluate("WELCOME500", 3000)
	require.NoError(t, err)
	require.EqualValues(t, 500, d)

	d, err = svc.Evaluate("winter10", 5000)
	require.NoError(t, err)
	require.EqualValues(t, 500, d)

	_, err = svc.Evaluate("WELCOME500", 2999)
	require.ErrorIs(t, err, ErrMinimumSpendUnmet)

	_, err = svc.Evaluate("NO-SUCH-CODE", 10000)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRedeemIncrementsUsage(t *testing.T) {
	svc, err := NewService(nil)
	require.NoError(t, err)

	require.NoError(t, svc.Redeem("VIP20"))
	v, err := svc.Get("VIP20")
	require.NoError(t, err)
	require.EqualValues(t, 1, v.UsedCount)

	require.ErrorIs(t, svc.Redeem("NOPE"), ErrNotFound)
}

func TestCreateValidatesKind(t *testing.T) {
	svc, err := NewService(nil)
	require.NoError(t, err)

	_, err = svc.Create(Voucher{Code: "bad", Kind: "bogo"})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Create(Voucher{Code: "fixed0", Kind: KindFixed})
	require.ErrorIs(t, err, ErrInvalidInput)

	v, err := svc.Create(Voucher{Code: "spring15", Kind: KindPercent, PercentBps: 1500})
	require.NoError(t, err)
	require.Equal(t, "SPRING15", v.Code)

	_, err = svc.Create(Voucher{Code: "SPRING15", Kind: KindPercent, PercentBps: 1500})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestUsageLimitExhaustsEligibility(t *testing.T) {
	svc, err := NewService(nil)
	require.NoError(t, err)

	limit := int32(1)
	_, err = svc.Create(Voucher{Code: "ONCE", Kind: KindFixed, Value: 100, UsageLimit: &limit})
	require.NoError(t, err)

	_, err = svc.Evaluate("ONCE", 1000)
	require.NoError(t, err)
	require.NoError(t, svc.Redeem("ONCE"))

	_, err = svc.Evaluate("ONCE", 1000)
	require.ErrorIs(t, err, ErrUsageLimitReached)
}
