package repository

import (
	"context"
	"testing"
	"time"

	"garagebook/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisAttemptLimiter(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	defer Close(client)

	limiter := NewRedisAttemptLimiter(client)
	ctx := context.Background()

	t.Run("AllowsUpToLimit", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			ok, err := limiter.Allow(ctx, "login:10.0.0.1", 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, ok, "attempt %d", i+1)
		}
		ok, err := limiter.Allow(ctx, "login:10.0.0.1", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("KeysAreIndependent", func(t *testing.T) {
		ok, err := limiter.Allow(ctx, "login:10.0.0.2", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("WindowExpires", func(t *testing.T) {
		ttl := s.TTL(attemptKeyPrefix + "login:10.0.0.1")
		assert.Equal(t, time.Minute, ttl)

		s.FastForward(2 * time.Minute)
		ok, err := limiter.Allow(ctx, "login:10.0.0.1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("WindowIsNotExtended", func(t *testing.T) {
		key := attemptKeyPrefix + "login:10.0.0.4"
		ok, err := limiter.Allow(ctx, "login:10.0.0.4", 3, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, time.Minute, s.TTL(key))

		s.FastForward(40 * time.Second)
		_, err = limiter.Allow(ctx, "login:10.0.0.4", 3, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 20*time.Second, s.TTL(key))

		val, err := s.Get(key)
		require.NoError(t, err)
		assert.Equal(t, "2", val)
	})

	t.Run("RedisDown", func(t *testing.T) {
		s.SetError("connection refused")
		defer s.SetError("")

		_, err := limiter.Allow(ctx, "login:10.0.0.3", 3, time.Minute)
		assert.Error(t, err)
	})
}

func TestRedisAttemptLimiter_NilClient(t *testing.T) {
	limiter := NewRedisAttemptLimiter(nil)
	_, err := limiter.Allow(context.Background(), "k", 1, time.Second)
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)

	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	defer client.Close()

	assert.NoError(t, Ping(context.Background(), client))
	s.Close()
	assert.Error(t, Ping(context.Background(), client))
	assert.NoError(t, Close(nil))
}
