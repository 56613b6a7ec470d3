package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/user"
)

func newTestAuth(t *testing.T) (*Service, *user.Store) {
	t.Helper()
	users, err := user.NewStore(nil)
	require.NoError(t, err)
	svc, err := NewService(Config{
		Users:          users,
		Secret:         "test-secret-please-rotate",
		AccessTokenTTL: 15 * time.Minute,
	})
	require.NoError(t, err)
	return svc, users
}

func requireAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	require.Equal(t, code, appErr.Code)
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestAuth(t)
	ctx := context.Background()

	created, err := svc.Register(ctx, "Yuki", "yuki@example.com", "correct-horse")
	require.NoError(t, err)
	require.Equal(t, user.RoleCustomer, created.Role)

	result, err := svc.Login(ctx, "YUKI@example.com", "correct-horse")
	require.NoError(t, err)
	require.Equal(t, created.ID, result.User.ID)
	require.NotEmpty(t, result.AccessToken)

	subject, err := svc.ParseAccessToken(result.AccessToken)
	require.NoError(t, err)
	require.Equal(t, created.ID, subject)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestAuth(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "", "a@example.com", "long-enough")
	requireAppErrorCode(t, err, "VALIDATION_ERROR")

	_, err = svc.Register(ctx, "A", "a@example.com", "short")
	requireAppErrorCode(t, err, "VALIDATION_ERROR")

	_, err = svc.Register(ctx, "Hanako", "hanako@example.com", "whatever-else")
	requireAppErrorCode(t, err, "EMAIL_ALREADY_USED")
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newTestAuth(t)
	ctx := context.Background()

	_, err := svc.Login(ctx, "hanako@example.com", "wrong-password")
	requireAppErrorCode(t, err, "INVALID_CREDENTIALS")

	_, err = svc.Login(ctx, "nobody@example.com", "whatever")
	requireAppErrorCode(t, err, "INVALID_CREDENTIALS")
}

func TestParseAccessTokenRejectsGarbage(t *testing.T) {
	svc, _ := newTestAuth(t)

	_, err := svc.ParseAccessToken("")
	requireAppErrorCode(t, err, "UNAUTHORIZED")

	_, err = svc.ParseAccessToken("not.a.token")
	requireAppErrorCode(t, err, "UNAUTHORIZED")
}

func TestParseAccessTokenExpiry(t *testing.T) {
	svc, _ := newTestAuth(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return base })

	result, err := svc.Login(ctx, "hanako@example.com", "hanako-demo-password")
	require.NoError(t, err)

	_, err = svc.ParseAccessToken(result.AccessToken)
	require.NoError(t, err)

	svc.WithNow(func() time.Time { return base.Add(16 * time.Minute) })
	_, err = svc.ParseAccessToken(result.AccessToken)
	requireAppErrorCode(t, err, "UNAUTHORIZED")
}

func TestTokensFromOtherSecretsAreRejected(t *testing.T) {
	svc, users := newTestAuth(t)
	other, err := NewService(Config{Users: users, Secret: "a-different-secret"})
	require.NoError(t, err)

	result, err := other.Login(context.Background(), "taro@example.com", "taro-demo-password")
	require.NoError(t, err)

	_, err = svc.ParseAccessToken(result.AccessToken)
	requireAppErrorCode(t, err, "UNAUTHORIZED")
}
