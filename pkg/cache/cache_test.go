package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "stats:t1", map[string]int{"pending": 2}, time.Minute))

	var got map[string]int
	require.NoError(t, m.Get(ctx, "stats:t1", &got))
	assert.Equal(t, 2, got["pending"])

	now = now.Add(time.Minute)
	assert.ErrorIs(t, m.Get(ctx, "stats:t1", &got), ErrMiss)

	ok, err := m.Exists(ctx, "stats:t1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, "a", 1, 0))
	require.NoError(t, m.Set(ctx, "b", 2, 0))
	require.NoError(t, m.Delete(ctx, "a", "b"))

	var v int
	assert.ErrorIs(t, m.Get(ctx, "a", &v), ErrMiss)
}

func TestHashKeyStable(t *testing.T) {
	a := HashKey("inspections", map[string]string{"status": "pending", "search": "x"})
	b := HashKey("inspections", map[string]string{"search": "x", "status": "pending"})
	assert.Equal(t, a, b)
	assert.Contains(t, a, "inspections:")
}
