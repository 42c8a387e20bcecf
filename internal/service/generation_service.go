package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/eleven-api/internal/dto"
	"github.com/noah-isme/eleven-api/internal/models"
	appErrors "github.com/noah-isme/eleven-api/pkg/errors"
	"github.com/noah-isme/eleven-api/pkg/worker"
)

type eligibleBuildingLister interface {
	ListEligibleForMaintenance(ctx context.Context) ([]models.Building, error)
}

type generationStore interface {
	ExistsForPeriod(ctx context.Context, buildingID string, month, year int, orderType models.WorkOrderType) (bool, error)
	CreateIfAbsent(ctx context.Context, order *models.WorkOrder) (bool, error)
}

type taskSubmitter interface {
	Submit(ctx context.Context, task worker.Task) error
}

// GenerationService creates the monthly maintenance orders of a period.
type GenerationService struct {
	buildings eligibleBuildingLister
	orders    generationStore
	pool      taskSubmitter
	notifier  RankingNotifier
	kpis      periodInvalidator
	metrics   *MetricsService
	logger    *zap.Logger
}

// GenerationServiceParams groups constructor dependencies. A nil Pool processes buildings sequentially.
type GenerationServiceParams struct {
	Buildings eligibleBuildingLister
	Orders    generationStore
	Pool      taskSubmitter
	Notifier  RankingNotifier
	KPIs      periodInvalidator
	Metrics   *MetricsService
	Logger    *zap.Logger
}

// NewGenerationService constructs the service.
func NewGenerationService(params GenerationServiceParams) *GenerationService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerationService{
		buildings: params.Buildings,
		orders:    params.Orders,
		pool:      params.Pool,
		notifier:  params.Notifier,
		kpis:      params.KPIs,
		metrics:   params.Metrics,
		logger:    logger,
	}
}

type buildingOutcome int

const (
	outcomeCreated buildingOutcome = iota
	outcomeSkipped
	outcomeFailed
)

// GenerateMonthly creates one pending maintenance order per eligible building. Buildings
// that already have one for the period are skipped, so re-running is safe. A failing
// building is reported in the summary and does not stop the batch.
func (s *GenerationService) GenerateMonthly(ctx context.Context, month, year int) (*dto.GenerationSummary, error) {
	if month < 1 || month > 12 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "month must be between 1 and 12")
	}
	if year < 2020 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "year must be 2020 or later")
	}

	buildings, err := s.buildings.ListEligibleForMaintenance(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load eligible buildings")
	}

	// The batch runs to completion even if the caller goes away.
	batchCtx := context.WithoutCancel(ctx)
	start := time.Now()
	summary := &dto.GenerationSummary{Month: month, Year: year, Errors: []dto.GenerationError{}}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	record := func(buildingID string, outcome buildingOutcome, err error) {
		mu.Lock()
		defer mu.Unlock()
		switch outcome {
		case outcomeCreated:
			summary.Created++
		case outcomeSkipped:
			summary.Skipped++
		default:
			summary.Errors = append(summary.Errors, dto.GenerationError{BuildingID: buildingID, Message: err.Error()})
			s.logger.Warn("work order generation failed for building",
				zap.String("building_id", buildingID),
				zap.Int("month", month),
				zap.Int("year", year),
				zap.Error(err),
			)
		}
	}

	for _, b := range buildings {
		building := b
		task := func(taskCtx context.Context) {
			defer wg.Done()
			outcome, err := s.generateForBuilding(taskCtx, building, month, year)
			record(building.ID, outcome, err)
		}
		wg.Add(1)
		if s.pool == nil {
			task(batchCtx)
			continue
		}
		if err := s.pool.Submit(batchCtx, task); err != nil {
			wg.Done()
			record(building.ID, outcomeFailed, fmt.Errorf("schedule generation: %w", err))
		}
	}
	wg.Wait()

	sort.Slice(summary.Errors, func(i, j int) bool { return summary.Errors[i].BuildingID < summary.Errors[j].BuildingID })

	s.metrics.RecordGeneration(summary.Created, summary.Skipped, len(summary.Errors))
	if s.kpis != nil {
		s.kpis.InvalidatePeriod(batchCtx, month, year)
	}
	if s.notifier != nil {
		s.notifier.PortfolioChanged(batchCtx, fmt.Sprintf("work orders generated for %02d/%d", month, year))
	}

	s.logger.Info("monthly work orders generated",
		zap.Int("month", month),
		zap.Int("year", year),
		zap.Int("buildings", len(buildings)),
		zap.Int("created", summary.Created),
		zap.Int("skipped", summary.Skipped),
		zap.Int("errors", len(summary.Errors)),
		zap.Duration("duration", time.Since(start)),
	)
	return summary, nil
}

func (s *GenerationService) generateForBuilding(ctx context.Context, building models.Building, month, year int) (buildingOutcome, error) {
	exists, err := s.orders.ExistsForPeriod(ctx, building.ID, month, year, models.WorkOrderTypeMaintenance)
	if err != nil {
		return outcomeFailed, err
	}
	if exists {
		return outcomeSkipped, nil
	}

	order := &models.WorkOrder{
		BuildingID:    building.ID,
		Month:         month,
		Year:          year,
		Type:          models.WorkOrderTypeMaintenance,
		Status:        models.WorkOrderStatusPending,
		PriceSnapshot: building.Price,
	}
	created, err := s.orders.CreateIfAbsent(ctx, order)
	if err != nil {
		return outcomeFailed, err
	}
	// Another run inserted the order between the check and the insert.
	if !created {
		return outcomeSkipped, nil
	}
	return outcomeCreated, nil
}
