package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRedisStore requires a running Redis on localhost:6379
func TestRedisStore(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	s, err := NewRedisStore(RedisConfig{Addr: "localhost:6379"})
	if err != nil {
		t.Skipf("Skipping test - Redis not available: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	key := Key("redis prompt", "gpt-4o-mini")

	require.NoError(t, s.Put(ctx, key, "cached answer", time.Minute))

	text, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "cached answer", text)

	_, ok, err = s.Get(ctx, Key("never stored", "gpt-4o-mini"))
	require.NoError(t, err)
	assert.False(t, ok)
}
