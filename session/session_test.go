package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestAppSessionStore_CreateGetDelete(t *testing.T) {
	ctx := context.Background()
	_, rdb := newRedis(t)
	s := NewAppSessionStore(rdb, time.Hour)

	require.NoError(t, s.Create(ctx, "s1", 9))
	as, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.EqualValues(t, 9, as.UserID)
	assert.Equal(t, as.IssuedAt+3600, as.ExpiresAt)

	require.NoError(t, s.Delete(ctx, "s1"))
	_, err = s.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// 删除不存在的会话不报错
	assert.NoError(t, s.Delete(ctx, "nope"))
}

func TestAppSessionStore_Expires(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	s := NewAppSessionStore(rdb, time.Minute)

	require.NoError(t, s.Create(ctx, "s1", 3))
	mr.FastForward(2 * time.Minute)

	_, err := s.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestAppSessionStore_RevokeAllForUser(t *testing.T) {
	ctx := context.Background()
	_, rdb := newRedis(t)
	s := NewAppSessionStore(rdb, time.Hour)

	require.NoError(t, s.Create(ctx, "phone", 1))
	require.NoError(t, s.Create(ctx, "laptop", 1))
	require.NoError(t, s.Create(ctx, "other", 2))

	require.NoError(t, s.RevokeAllForUser(ctx, 1))

	for _, id := range []string{"phone", "laptop"} {
		_, err := s.Get(ctx, id)
		assert.ErrorIs(t, err, ErrSessionNotFound, id)
	}
	as, err := s.Get(ctx, "other")
	require.NoError(t, err)
	assert.EqualValues(t, 2, as.UserID)

	// 没有会话的用户
	assert.NoError(t, s.RevokeAllForUser(ctx, 77))
}

func TestStore_CeremonyState(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	s := NewStore(rdb, 5*time.Minute)

	sd := &webauthn.SessionData{Challenge: "c-123", UserID: []byte{0, 0, 0, 0, 0, 0, 0, 9}}
	require.NoError(t, s.SaveAuth(ctx, "sid", sd))
	got, err := s.LoadAuth(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, sd.Challenge, got.Challenge)
	assert.Equal(t, sd.UserID, got.UserID)

	s.DelAuth(ctx, "sid")
	_, err = s.LoadAuth(ctx, "sid")
	assert.Error(t, err)

	require.NoError(t, s.SaveReg(ctx, 9, sd))
	got, err = s.LoadReg(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, "c-123", got.Challenge)

	mr.FastForward(6 * time.Minute)
	_, err = s.LoadReg(ctx, 9)
	assert.Error(t, err)
}
