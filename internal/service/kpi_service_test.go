package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eleven-api/internal/models"
	"github.com/noah-isme/eleven-api/internal/repository"
	appErrors "github.com/noah-isme/eleven-api/pkg/errors"
)

type countingPeriodLister struct {
	orders []models.WorkOrder
	err    error
	calls  int32
	delay  time.Duration
}

func (c *countingPeriodLister) ListForPeriod(context.Context, int, int) ([]models.WorkOrder, error) {
	atomic.AddInt32(&c.calls, 1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	return c.orders, c.err
}

func kpiOrder(status models.WorkOrderStatus, priceValue string, invoiced, collected bool) models.WorkOrder {
	return models.WorkOrder{Status: status, PriceSnapshot: decimal.RequireFromString(priceValue), IsInvoiced: invoiced, IsCollected: collected}
}

func TestComputeKPIs(t *testing.T) {
	orders := []models.WorkOrder{
		kpiOrder(models.WorkOrderStatusCompleted, "100.00", true, true),
		kpiOrder(models.WorkOrderStatusCompleted, "200.00", true, false),
		kpiOrder(models.WorkOrderStatusInProgress, "300.00", false, false),
		kpiOrder(models.WorkOrderStatusCancelled, "400.00", false, false),
	}
	counts, revenue := ComputeKPIs(orders)

	assert.Equal(t, 4, counts.Total)
	assert.Equal(t, 2, counts.Completed)
	assert.Equal(t, 2, counts.Invoiced)
	assert.Equal(t, 1, counts.Paid)
	assert.Equal(t, 50.0, counts.CompletionRate)

	assert.True(t, decimal.RequireFromString("1000").Equal(revenue.Total))
	assert.True(t, decimal.RequireFromString("300").Equal(revenue.Invoiced))
	assert.True(t, decimal.RequireFromString("100").Equal(revenue.Paid))
	assert.Equal(t, 30.0, revenue.InvoicedRate)
	assert.Equal(t, 33.33, revenue.CollectionRate)
}

func TestComputeKPIsEmptyPeriod(t *testing.T) {
	counts, revenue := ComputeKPIs(nil)
	assert.Zero(t, counts.Total)
	assert.Zero(t, counts.CompletionRate)
	assert.True(t, revenue.Total.IsZero())
	assert.Zero(t, revenue.InvoicedRate)
	assert.Zero(t, revenue.CollectionRate)
}

func TestComputeKPIsZeroPricedOrders(t *testing.T) {
	_, revenue := ComputeKPIs([]models.WorkOrder{kpiOrder(models.WorkOrderStatusPending, "0", true, true)})
	assert.Zero(t, revenue.InvoicedRate)
	assert.Zero(t, revenue.CollectionRate)
}

func newRedisCacheService(t *testing.T) *CacheService {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheService(repository.NewCacheRepository(client, nil), NewMetricsService(), time.Minute, nil, true)
}

func TestKPIServiceCachesAndInvalidates(t *testing.T) {
	lister := &countingPeriodLister{orders: []models.WorkOrder{kpiOrder(models.WorkOrderStatusCompleted, "150", true, false)}}
	svc := NewKPIService(lister, newRedisCacheService(t), time.Minute, nil)
	ctx := context.Background()

	first, hit, err := svc.DashboardKPIs(ctx, 3, 2025)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, first.WorkOrders.Total)

	second, hit, err := svc.DashboardKPIs(ctx, 3, 2025)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.True(t, first.Revenue.Total.Equal(second.Revenue.Total))
	assert.Equal(t, int32(1), atomic.LoadInt32(&lister.calls))

	svc.InvalidatePeriod(ctx, 3, 2025)
	_, hit, err = svc.DashboardKPIs(ctx, 3, 2025)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, int32(2), atomic.LoadInt32(&lister.calls))
}

func TestKPIServiceCollapsesConcurrentMisses(t *testing.T) {
	lister := &countingPeriodLister{delay: 50 * time.Millisecond}
	svc := NewKPIService(lister, nil, time.Minute, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.DashboardKPIs(context.Background(), 3, 2025)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Less(t, atomic.LoadInt32(&lister.calls), int32(8))
}

type gatedPeriodLister struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedPeriodLister) ListForPeriod(ctx context.Context, _, _ int) ([]models.WorkOrder, error) {
	g.once.Do(func() { close(g.entered) })
	select {
	case <-g.release:
		return []models.WorkOrder{kpiOrder(models.WorkOrderStatusCompleted, "150", false, false)}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestKPIServiceCancelledCallerDoesNotFailOthers(t *testing.T) {
	lister := &gatedPeriodLister{entered: make(chan struct{}), release: make(chan struct{})}
	svc := NewKPIService(lister, nil, time.Minute, nil)

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, _, err := svc.DashboardKPIs(firstCtx, 3, 2025)
		firstErr <- err
	}()
	<-lister.entered

	type outcome struct {
		total int
		err   error
	}
	second := make(chan outcome, 1)
	go func() {
		kpis, _, err := svc.DashboardKPIs(context.Background(), 3, 2025)
		if err != nil {
			second <- outcome{err: err}
			return
		}
		second <- outcome{total: kpis.WorkOrders.Total}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(lister.release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, 1, got.total)
}

func TestKPIServiceErrors(t *testing.T) {
	svc := NewKPIService(&countingPeriodLister{err: errors.New("db down")}, nil, time.Minute, nil)

	_, _, err := svc.DashboardKPIs(context.Background(), 13, 2025)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, _, err = svc.DashboardKPIs(context.Background(), 1, 2025)
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
}
