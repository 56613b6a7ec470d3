package notify

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	s, err := NewStore(client, "test:notify", nil)
	require.NoError(t, err)
	return s
}

func TestListSeededAnnouncements(t *testing.T) {
	s := newTestStore(t)
	out, err := s.List(context.Background(), "user:u-1")
	require.NoError(t, err)
	require.NotEmpty(t, out)
	for _, n := range out {
		require.False(t, n.Read, "fresh owner has read nothing")
	}
}

func TestMarkReadIsPerOwner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	all, err := s.List(ctx, "user:u-1")
	require.NoError(t, err)
	target := all[0].ID

	require.NoError(t, s.MarkRead(ctx, "user:u-1", target))

	mine, err := s.List(ctx, "user:u-1")
	require.NoError(t, err)
	for _, n := range mine {
		if n.ID == target {
			require.True(t, n.Read)
		}
	}

	theirs, err := s.List(ctx, "user:u-2")
	require.NoError(t, err)
	for _, n := range theirs {
		require.False(t, n.Read)
	}
}

func TestDismissHidesFromFeed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	all, err := s.List(ctx, "user:u-1")
	require.NoError(t, err)
	target := all[0].ID

	require.NoError(t, s.Dismiss(ctx, "user:u-1", target))

	mine, err := s.List(ctx, "user:u-1")
	require.NoError(t, err)
	require.Len(t, mine, len(all)-1)
	for _, n := range mine {
		require.NotEqual(t, target, n.ID)
	}

	// Other owners still see it.
	theirs, err := s.List(ctx, "anon:a-1")
	require.NoError(t, err)
	require.Len(t, theirs, len(all))
}

func TestMarkReadUnknownID(t *testing.T) {
	s := newTestStore(t)
	require.ErrorIs(t, s.MarkRead(context.Background(), "user:u-1", "n-missing"), ErrNotFound)
	require.ErrorIs(t, s.Dismiss(context.Background(), "user:u-1", "n-missing"), ErrNotFound)
}

func TestBroadcastPrepends(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.Broadcast("タイムセール開催中", "全品10%オフ", TagSale, "")
	require.NoError(t, err)
	require.Equal(t, MethodSite, n.Method)

	out, err := s.List(ctx, "user:u-1")
	require.NoError(t, err)
	require.Equal(t, n.ID, out[0].ID, "newest announcement comes first")

	_, err = s.Broadcast("", "body", "", "")
	require.Error(t, err)
}
