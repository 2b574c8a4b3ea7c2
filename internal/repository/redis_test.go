package repository

import (
	"context"
	"testing"
	"time"

	"rentacar/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisSessionRepository(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	repo := NewRedisSessionRepository(client, time.Hour)
	ctx := context.Background()

	t.Run("SetAndGetSession", func(t *testing.T) {
		session := &models.Session{
			ID:        "abc",
			User:      &models.User{ID: 7, Email: "rina@example.com", Role: models.RoleUser, IsActive: true},
			CreatedAt: time.Now().UTC().Truncate(time.Second),
		}
		require.NoError(t, repo.SetSession(ctx, session))

		got, err := repo.GetSession(ctx, "abc")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, int64(7), got.User.ID)
		assert.Equal(t, "rina@example.com", got.User.Email)
		assert.True(t, session.CreatedAt.Equal(got.CreatedAt))
		assert.False(t, got.Leaks())

		assert.True(t, s.Exists("session:abc"))
		assert.Equal(t, time.Hour, s.TTL("session:abc"))
	})

	t.Run("GetMissingSession", func(t *testing.T) {
		got, err := repo.GetSession(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ExpiredSession", func(t *testing.T) {
		require.NoError(t, repo.SetSession(ctx, &models.Session{ID: "old", User: &models.User{ID: 1}}))
		s.FastForward(2 * time.Hour)

		got, err := repo.GetSession(ctx, "old")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ClearSession", func(t *testing.T) {
		require.NoError(t, repo.SetSession(ctx, &models.Session{ID: "bye", User: &models.User{ID: 2}}))
		require.NoError(t, repo.ClearSession(ctx, "bye"))

		got, err := repo.GetSession(ctx, "bye")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("CorruptPayload", func(t *testing.T) {
		require.NoError(t, s.Set("session:bad", "{not json"))
		_, err := repo.GetSession(ctx, "bad")
		assert.Error(t, err)
	})

	t.Run("RateLimit", func(t *testing.T) {
		key := "login:rina@example.com"
		for i := 0; i < 3; i++ {
			allowed, err := repo.CheckRateLimit(ctx, key, 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, allowed)
		}
		allowed, err := repo.CheckRateLimit(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, allowed)
		assert.Equal(t, time.Minute, s.TTL("rate_limit:"+key))

		require.NoError(t, repo.ResetRateLimit(ctx, key))
		allowed, err = repo.CheckRateLimit(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)

		s.FastForward(2 * time.Minute)
		assert.False(t, s.Exists("rate_limit:"+key))
	})
}

func TestRedisSessionRepository_NilClient(t *testing.T) {
	repo := NewRedisSessionRepository(nil, time.Hour)
	ctx := context.Background()

	_, err := repo.GetSession(ctx, "x")
	assert.Error(t, err)
	assert.Error(t, repo.SetSession(ctx, &models.Session{ID: "x"}))
	assert.Error(t, repo.ClearSession(ctx, "x"))
	_, err = repo.CheckRateLimit(ctx, "x", 1, time.Minute)
	assert.Error(t, err)
	assert.Error(t, repo.ResetRateLimit(ctx, "x"))
}

func TestPingAndClose(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})

	assert.NoError(t, Ping(context.Background(), client))
	assert.NoError(t, Close(client))
	assert.NoError(t, Close(nil))
}
