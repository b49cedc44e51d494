package ratecache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetMissingVenueReturnsNotFound(t *testing.T) {
	s := NewMemoryStore()
	_, ok, err := s.Get(context.Background(), "kraken")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_SetThenGetRoundTrips(t *testing.T) {
	s := NewMemoryStore()
	resetAt := time.Now().Add(30 * time.Second)

	require.NoError(t, s.Set(context.Background(), "kraken", resetAt))

	got, ok, err := s.Get(context.Background(), "kraken")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Equal(resetAt))
}

func TestMemoryStore_SetOverwritesPriorValue(t *testing.T) {
	s := NewMemoryStore()
	first := time.Now()
	second := first.Add(time.Minute)

	require.NoError(t, s.Set(context.Background(), "kraken", first))
	require.NoError(t, s.Set(context.Background(), "kraken", second))

	got, ok, err := s.Get(context.Background(), "kraken")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Equal(second))
}
