package packs

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	features map[string]map[string]bool
	calls    int
	err      error
}

func (s *stubProvider) Features(_ context.Context, organizationID string) (map[string]bool, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	f, ok := s.features[organizationID]
	if !ok {
		return map[string]bool{}, nil
	}
	return f, nil
}

func newTestCache(t *testing.T, next Provider) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(next, client, time.Minute, nil), mr
}

func TestCacheReadThrough(t *testing.T) {
	stub := &stubProvider{features: map[string]map[string]bool{
		"org-1": {"development_plans": true, "advanced_stats": false},
	}}
	cache, _ := newTestCache(t, stub)
	ctx := context.Background()

	got, err := cache.Features(ctx, "org-1")
	require.NoError(t, err)
	assert.True(t, got["development_plans"])
	assert.False(t, got["advanced_stats"])
	assert.Equal(t, 1, stub.calls)

	// Second read is served from Redis.
	got, err = cache.Features(ctx, "org-1")
	require.NoError(t, err)
	assert.True(t, got["development_plans"])
	assert.Equal(t, 1, stub.calls)
}

func TestCacheInvalidate(t *testing.T) {
	stub := &stubProvider{features: map[string]map[string]bool{
		"org-1": {"development_plans": true},
	}}
	cache, _ := newTestCache(t, stub)
	ctx := context.Background()

	_, err := cache.Features(ctx, "org-1")
	require.NoError(t, err)
	require.Equal(t, 1, stub.calls)

	require.NoError(t, cache.Invalidate(ctx, "org-1"))

	stub.features["org-1"]["development_plans"] = false
	got, err := cache.Features(ctx, "org-1")
	require.NoError(t, err)
	assert.False(t, got["development_plans"])
	assert.Equal(t, 2, stub.calls)
}

func TestCacheExpiry(t *testing.T) {
	stub := &stubProvider{features: map[string]map[string]bool{
		"org-1": {"development_plans": true},
	}}
	cache, mr := newTestCache(t, stub)
	ctx := context.Background()

	_, err := cache.Features(ctx, "org-1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = cache.Features(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stub.calls, "expired entry should hit the store again")
}

func TestCacheDegradesWhenRedisDown(t *testing.T) {
	stub := &stubProvider{features: map[string]map[string]bool{
		"org-1": {"development_plans": true},
	}}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewCache(stub, client, time.Minute, nil)

	mr.Close()

	got, err := cache.Features(context.Background(), "org-1")
	require.NoError(t, err, "redis outage must not fail pack reads")
	assert.True(t, got["development_plans"])
	assert.Equal(t, 1, stub.calls)
}

func TestCacheUnknownOrganization(t *testing.T) {
	stub := &stubProvider{}
	cache, _ := newTestCache(t, stub)

	got, err := cache.Features(context.Background(), "org-missing")
	require.NoError(t, err)
	assert.Empty(t, got)

	on, err := Enabled(context.Background(), cache, "org-missing", "development_plans")
	require.NoError(t, err)
	assert.False(t, on)
}
