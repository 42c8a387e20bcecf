package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/eleven-api/pkg/errors"
)

type cachedKPI struct {
	Total int `json:"total"`
}

func newCacheRepo(t *testing.T) (*CacheRepository, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheRepository(client, nil), mr
}

func TestCacheRepositorySetGet(t *testing.T) {
	repo, mr := newCacheRepo(t)
	ctx := context.Background()

	var out cachedKPI
	require.ErrorIs(t, repo.Get(ctx, "eleven:kpi:2025:3", &out), appErrors.ErrCacheMiss)

	require.NoError(t, repo.Set(ctx, "eleven:kpi:2025:3", cachedKPI{Total: 4}, time.Minute))
	require.NoError(t, repo.Get(ctx, "eleven:kpi:2025:3", &out))
	assert.Equal(t, 4, out.Total)

	mr.FastForward(2 * time.Minute)
	require.ErrorIs(t, repo.Get(ctx, "eleven:kpi:2025:3", &out), appErrors.ErrCacheMiss)
}

func TestCacheRepositoryDeleteByPattern(t *testing.T) {
	repo, mr := newCacheRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "eleven:kpi:2025:3", cachedKPI{Total: 1}, time.Minute))
	require.NoError(t, repo.Set(ctx, "eleven:kpi:2025:4", cachedKPI{Total: 2}, time.Minute))
	require.NoError(t, repo.Set(ctx, "eleven:other", cachedKPI{Total: 3}, time.Minute))

	deleted, err := repo.DeleteByPattern(ctx, "eleven:kpi:*")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	assert.True(t, mr.Exists("eleven:other"))
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	var out cachedKPI
	assert.ErrorIs(t, repo.Get(ctx, "k", &out), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "k", out, time.Minute))
	deleted, err := repo.DeleteByPattern(ctx, "*")
	assert.NoError(t, err)
	assert.Zero(t, deleted)
}
