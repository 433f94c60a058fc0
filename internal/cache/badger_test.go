package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBadgerStore(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := NewBadgerStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBadgerStorePutGet(t *testing.T) {
	s := newTestBadgerStore(t)
	ctx := context.Background()

	key := Key("playbook synthesis prompt", "gpt-4o")
	require.NoError(t, s.Put(ctx, key, "synthesized playbook", time.Hour))

	text, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "synthesized playbook", text)

	_, ok, err = s.Get(ctx, Key("other prompt", "gpt-4o"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBadgerStoreTTLExpiry(t *testing.T) {
	s := newTestBadgerStore(t)
	ctx := context.Background()

	key := Key("short lived", "m")
	require.NoError(t, s.Put(ctx, key, "text", time.Second))

	_, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	time.Sleep(1500 * time.Millisecond)

	_, ok, err = s.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "Badger entry TTL must expire the entry")
}

func TestBadgerStoreOverwrite(t *testing.T) {
	s := newTestBadgerStore(t)
	ctx := context.Background()

	key := Key("prompt", "m")
	require.NoError(t, s.Put(ctx, key, "first", time.Hour))
	require.NoError(t, s.Put(ctx, key, "second", time.Hour))

	text, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "second", text)
}
