package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/eleven-api/internal/dto"
	"github.com/noah-isme/eleven-api/internal/models"
	appErrors "github.com/noah-isme/eleven-api/pkg/errors"
)

type billingStore interface {
	ListBillingCandidates(ctx context.Context, selector models.BillingSelector, target models.BillingTarget) ([]models.WorkOrder, error)
	ApplyBilling(ctx context.Context, id string, target models.BillingTarget, at time.Time) error
}

// BillingService flips invoicing and collection flags in bulk.
type BillingService struct {
	repo      billingStore
	kpis      periodInvalidator
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewBillingService constructs the service.
func NewBillingService(repo billingStore, kpis periodInvalidator, metrics *MetricsService, v *validator.Validate, logger *zap.Logger) *BillingService {
	if v == nil {
		v = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BillingService{repo: repo, kpis: kpis, metrics: metrics, validator: v, logger: logger, now: time.Now}
}

// BulkUpdate sets the requested flags on every order of the client, type and period whose
// flags differ from the target. Orders already in the target state are not counted, so
// repeating a request reports zero updates. Status history is not written for billing.
func (s *BillingService) BulkUpdate(ctx context.Context, req dto.BulkUpdateRequest) (*dto.BulkUpdateResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk update payload")
	}
	if req.IsInvoiced == nil && req.IsCollected == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "isInvoiced or isCollected is required")
	}

	selector := models.BillingSelector{ClientID: req.ClientID, Type: req.Type, Month: req.Month, Year: req.Year}
	target := models.BillingTarget{IsInvoiced: req.IsInvoiced, IsCollected: req.IsCollected}

	candidates, err := s.repo.ListBillingCandidates(ctx, selector, target)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to select work orders")
	}

	result := &dto.BulkUpdateResult{Errors: []dto.BulkUpdateError{}}
	now := s.now().UTC()
	for _, order := range candidates {
		if err := s.repo.ApplyBilling(ctx, order.ID, target, now); err != nil {
			s.logger.Warn("bulk billing update failed for order", zap.String("work_order_id", order.ID), zap.Error(err))
			result.Errors = append(result.Errors, dto.BulkUpdateError{WorkOrderID: order.ID, Message: err.Error()})
			continue
		}
		result.Updated++
	}

	s.metrics.RecordBillingUpdate(result.Updated, len(result.Errors))
	if result.Updated > 0 && s.kpis != nil {
		s.kpis.InvalidatePeriod(ctx, req.Month, req.Year)
	}
	s.logger.Info("bulk billing update applied",
		zap.String("client_id", req.ClientID),
		zap.String("type", string(req.Type)),
		zap.Int("month", req.Month),
		zap.Int("year", req.Year),
		zap.Int("updated", result.Updated),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}
