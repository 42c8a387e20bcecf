package service

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/eleven-api/internal/dto"
	"github.com/noah-isme/eleven-api/internal/models"
	"github.com/noah-isme/eleven-api/pkg/cache"
	appErrors "github.com/noah-isme/eleven-api/pkg/errors"
)

type periodOrderLister interface {
	ListForPeriod(ctx context.Context, month, year int) ([]models.WorkOrder, error)
}

var hundred = decimal.NewFromInt(100)

// KPIService aggregates period dashboards, cached per period.
type KPIService struct {
	repo   periodOrderLister
	cache  *CacheService
	ttl    time.Duration
	group  singleflight.Group
	logger *zap.Logger
	now    func() time.Time
}

// NewKPIService constructs the service. A nil or disabled cache computes every request.
func NewKPIService(repo periodOrderLister, cacheSvc *CacheService, ttl time.Duration, logger *zap.Logger) *KPIService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KPIService{repo: repo, cache: cacheSvc, ttl: ttl, logger: logger, now: time.Now}
}

func kpiCacheKey(month, year int) string {
	return cache.Key("kpi", strconv.Itoa(year), strconv.Itoa(month))
}

// DashboardKPIs returns the KPIs of a period and whether they came from cache.
func (s *KPIService) DashboardKPIs(ctx context.Context, month, year int) (*dto.DashboardKPIs, bool, error) {
	if month < 1 || month > 12 {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "month must be between 1 and 12")
	}
	if year < 2020 {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "year must be 2020 or later")
	}

	key := kpiCacheKey(month, year)
	var cached dto.DashboardKPIs
	if s.cache.Lookup(ctx, key, &cached) {
		return &cached, true, nil
	}

	// The shared computation outlives any single caller; each caller still
	// gives up on its own context.
	shared := context.WithoutCancel(ctx)
	flight := s.group.DoChan(key, func() (interface{}, error) {
		orders, err := s.repo.ListForPeriod(shared, month, year)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load period work orders")
		}
		workOrders, revenue := ComputeKPIs(orders)
		result := dto.DashboardKPIs{
			Month:       month,
			Year:        year,
			WorkOrders:  workOrders,
			Revenue:     revenue,
			GeneratedAt: s.now().UTC(),
		}
		s.cache.Store(shared, key, result, s.ttl)
		return result, nil
	})

	var value interface{}
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-flight:
		if res.Err != nil {
			return nil, false, res.Err
		}
		value = res.Val
	}
	result := value.(dto.DashboardKPIs)
	return &result, false, nil
}

// InvalidatePeriod drops the cached KPIs of a period.
func (s *KPIService) InvalidatePeriod(ctx context.Context, month, year int) {
	if removed := s.cache.Evict(ctx, kpiCacheKey(month, year)); removed > 0 {
		s.logger.Debug("kpi cache invalidated", zap.Int("month", month), zap.Int("year", year))
	}
}

// ComputeKPIs aggregates the orders of one period. Rates are percentages rounded to two
// decimals and are zero when their denominator is zero. The collection rate is measured
// against invoiced revenue.
func ComputeKPIs(orders []models.WorkOrder) (dto.WorkOrderKPIs, dto.RevenueKPIs) {
	var counts dto.WorkOrderKPIs
	revenue := dto.RevenueKPIs{Total: decimal.Zero, Invoiced: decimal.Zero, Paid: decimal.Zero}

	for _, o := range orders {
		counts.Total++
		revenue.Total = revenue.Total.Add(o.PriceSnapshot)
		if o.Status == models.WorkOrderStatusCompleted {
			counts.Completed++
		}
		if o.IsInvoiced {
			counts.Invoiced++
			revenue.Invoiced = revenue.Invoiced.Add(o.PriceSnapshot)
		}
		if o.IsCollected {
			counts.Paid++
			revenue.Paid = revenue.Paid.Add(o.PriceSnapshot)
		}
	}

	if counts.Total > 0 {
		counts.CompletionRate = math.Round(float64(counts.Completed)/float64(counts.Total)*10000) / 100
	}
	revenue.InvoicedRate = percentage(revenue.Invoiced, revenue.Total)
	revenue.CollectionRate = percentage(revenue.Paid, revenue.Invoiced)
	return counts, revenue
}

func percentage(part, whole decimal.Decimal) float64 {
	if whole.IsZero() {
		return 0
	}
	return part.Div(whole).Mul(hundred).Round(2).InexactFloat64()
}
