package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eleven-api/internal/dto"
	"github.com/noah-isme/eleven-api/internal/repository"
)

func TestCacheServiceLookupStoreEvict(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	metrics := NewMetricsService()
	svc := NewCacheService(repository.NewCacheRepository(client, nil), metrics, 0, nil, true)
	ctx := context.Background()

	var got dto.DashboardKPIs
	assert.False(t, svc.Lookup(ctx, "eleven:kpi:2025:3", &got))

	svc.Store(ctx, "eleven:kpi:2025:3", dto.DashboardKPIs{Month: 3, Year: 2025}, 0)
	ttl := mr.TTL("eleven:kpi:2025:3")
	assert.Equal(t, defaultCacheTTL, ttl)

	require.True(t, svc.Lookup(ctx, "eleven:kpi:2025:3", &got))
	assert.Equal(t, 3, got.Month)

	svc.Store(ctx, "eleven:kpi:2025:4", dto.DashboardKPIs{Month: 4, Year: 2025}, time.Minute)
	assert.Equal(t, 2, svc.Evict(ctx, "eleven:kpi:2025:*"))
	assert.False(t, svc.Lookup(ctx, "eleven:kpi:2025:3", &got))

	snapshot := metrics.Snapshot()
	assert.EqualValues(t, 1, snapshot.CacheHits)
	assert.EqualValues(t, 2, snapshot.CacheMisses)
}

func TestCacheServiceDegradesWhenBackendFails(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	svc := NewCacheService(repository.NewCacheRepository(client, nil), nil, time.Minute, nil, true)
	mr.Close()
	ctx := context.Background()

	var got dto.DashboardKPIs
	assert.False(t, svc.Lookup(ctx, "eleven:kpi:2025:3", &got))
	svc.Store(ctx, "eleven:kpi:2025:3", dto.DashboardKPIs{}, time.Minute)
	assert.Zero(t, svc.Evict(ctx, "eleven:kpi:*"))
}

func TestCacheServiceDisabled(t *testing.T) {
	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())

	svc := NewCacheService(nil, nil, time.Minute, nil, true)
	assert.False(t, svc.Enabled())
	var got dto.DashboardKPIs
	assert.False(t, svc.Lookup(context.Background(), "k", &got))
	assert.Zero(t, svc.Evict(context.Background(), "k*"))
}
