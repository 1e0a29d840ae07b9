package kv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSetGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.SetEX(ctx, "k", "v", time.Minute))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	ttl, err := s.TTL(ctx, "k")
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Second)
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.SetEX(ctx, "k", "v", time.Minute))

	s.SetClock(func() time.Time { return time.Now().Add(2 * time.Minute) })

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.TTL(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreMissingKey(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, "absent")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.TTL(ctx, "absent")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, s.Del(ctx, "absent"))
}

func TestMemoryStoreHash(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.HSet(ctx, "h", "a", "1"))
	require.NoError(t, s.HSet(ctx, "h", "b", "2"))

	all, err := s.HGetAll(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, all)

	require.NoError(t, s.Del(ctx, "h"))
	all, err = s.HGetAll(ctx, "h")
	require.NoError(t, err)
	assert.Empty(t, all)
}
