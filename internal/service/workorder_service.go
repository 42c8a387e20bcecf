package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/eleven-api/internal/dto"
	"github.com/noah-isme/eleven-api/internal/models"
	"github.com/noah-isme/eleven-api/internal/repository"
	appErrors "github.com/noah-isme/eleven-api/pkg/errors"
)

type workOrderStore interface {
	Create(ctx context.Context, order *models.WorkOrder) error
	GetByID(ctx context.Context, id string) (*models.WorkOrder, error)
	GetDetail(ctx context.Context, id string) (*models.WorkOrderDetail, error)
	List(ctx context.Context, filter models.WorkOrderFilter) ([]models.WorkOrderDetail, error)
	UpdateLocked(ctx context.Context, id string, mutate repository.WorkOrderMutation) (*models.WorkOrder, error)
	Delete(ctx context.Context, id string) error
	ListStatusHistory(ctx context.Context, workOrderID string) ([]models.WorkOrderStatusHistory, error)
}

type buildingReader interface {
	GetByID(ctx context.Context, id string) (*models.Building, error)
}

// periodInvalidator drops cached aggregates of a billing period.
type periodInvalidator interface {
	InvalidatePeriod(ctx context.Context, month, year int)
}

// WorkOrderService drives work orders through the operational state machine.
type WorkOrderService struct {
	repo      workOrderStore
	buildings buildingReader
	kpis      periodInvalidator
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// WorkOrderServiceParams groups constructor dependencies.
type WorkOrderServiceParams struct {
	Repo      workOrderStore
	Buildings buildingReader
	KPIs      periodInvalidator
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
}

// NewWorkOrderService constructs the service.
func NewWorkOrderService(params WorkOrderServiceParams) *WorkOrderService {
	v := params.Validator
	if v == nil {
		v = validator.New()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkOrderService{
		repo:      params.Repo,
		buildings: params.Buildings,
		kpis:      params.KPIs,
		metrics:   params.Metrics,
		validator: v,
		logger:    logger,
		now:       time.Now,
	}
}

// Create registers a single order. Maintenance orders snapshot the building price.
func (s *WorkOrderService) Create(ctx context.Context, req dto.CreateWorkOrderRequest) (*models.WorkOrderDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid work order payload")
	}
	orderType := req.Type
	if orderType == "" {
		orderType = models.WorkOrderTypeMaintenance
	}

	building, err := s.buildings.GetByID(ctx, req.BuildingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "building not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load building")
	}

	price := building.Price
	if orderType != models.WorkOrderTypeMaintenance {
		if req.PriceSnapshot == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "priceSnapshot is required for non-maintenance orders")
		}
		price = *req.PriceSnapshot
	}
	if price.IsNegative() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "price must not be negative")
	}

	order := &models.WorkOrder{
		BuildingID:    building.ID,
		Month:         req.Month,
		Year:          req.Year,
		Type:          orderType,
		Status:        models.WorkOrderStatusPending,
		PriceSnapshot: price,
		Observations:  req.Observations,
	}
	if err := s.repo.Create(ctx, order); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("a %s order already exists for this building in %02d/%d", orderType, req.Month, req.Year))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create work order")
	}
	s.invalidate(ctx, order.Month, order.Year)
	return s.Get(ctx, order.ID)
}

// List returns orders matching the query, newest first.
func (s *WorkOrderService) List(ctx context.Context, query dto.WorkOrderQuery) ([]models.WorkOrderDetail, error) {
	if query.Month != 0 && (query.Month < 1 || query.Month > 12) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "month must be between 1 and 12")
	}
	for _, status := range query.Status {
		if !status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown operational status %q", status))
		}
	}
	if query.Type != "" && !query.Type.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown work order type %q", query.Type))
	}
	orders, err := s.repo.List(ctx, models.WorkOrderFilter{
		Month:      query.Month,
		Year:       query.Year,
		BuildingID: query.BuildingID,
		ClientID:   query.ClientID,
		Status:     query.Status,
		Type:       query.Type,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list work orders")
	}
	if orders == nil {
		orders = []models.WorkOrderDetail{}
	}
	return orders, nil
}

// Get returns an order with its building and client resolved.
func (s *WorkOrderService) Get(ctx context.Context, id string) (*models.WorkOrderDetail, error) {
	detail, err := s.repo.GetDetail(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "work order not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load work order")
	}
	return detail, nil
}

// Update applies a partial update. Status changes go through the transition table and
// append one history row attributed to actorID.
func (s *WorkOrderService) Update(ctx context.Context, id string, req dto.UpdateWorkOrderRequest, actorID string) (*models.WorkOrderDetail, error) {
	if req.Type != nil && !req.Type.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown work order type %q", *req.Type))
	}
	if req.PriceSnapshot != nil && req.PriceSnapshot.IsNegative() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "priceSnapshot must not be negative")
	}

	now := s.now().UTC()
	var (
		history   *models.WorkOrderStatusHistory
		rejection error
	)
	order, err := s.repo.UpdateLocked(ctx, id, func(order *models.WorkOrder) (*models.WorkOrderStatusHistory, error) {
		history, rejection = patchWorkOrder(order, req, actorID, now)
		return history, rejection
	})
	if err != nil {
		switch {
		case rejection != nil:
			return nil, rejection
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "work order not found")
		case errors.Is(err, repository.ErrDuplicate):
			return nil, appErrors.Clone(appErrors.ErrConflict, "another order of this type already exists for the building and period")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update work order")
	}

	if history != nil {
		s.metrics.RecordTransition(string(history.FromStatus), string(history.ToStatus))
		s.logger.Info("work order status changed",
			zap.String("work_order_id", order.ID),
			zap.String("from", string(history.FromStatus)),
			zap.String("to", string(history.ToStatus)),
			zap.String("actor_id", actorID),
		)
	}
	s.invalidate(ctx, order.Month, order.Year)
	return s.Get(ctx, order.ID)
}

// patchWorkOrder applies req to the locked row. The maintenance price lock is checked
// against the type the order has once the patch lands.
func patchWorkOrder(order *models.WorkOrder, req dto.UpdateWorkOrderRequest, actorID string, now time.Time) (*models.WorkOrderStatusHistory, error) {
	finalType := order.Type
	if req.Type != nil {
		finalType = *req.Type
	}
	if req.PriceSnapshot != nil && finalType == models.WorkOrderTypeMaintenance {
		return nil, appErrors.Clone(appErrors.ErrConflict, "the price of a maintenance order is taken from the building and cannot be edited")
	}

	var history *models.WorkOrderStatusHistory
	if req.OperationalStatus != nil {
		var err error
		history, err = applyTransition(order, *req.OperationalStatus, now)
		if err != nil {
			return nil, err
		}
		if history != nil {
			if notes := strings.TrimSpace(req.Notes); notes != "" {
				history.Notes = &notes
			}
			if actorID != "" {
				actor := actorID
				history.ChangedBy = &actor
			}
		}
	}

	applyBillingFlags(order, req.IsInvoiced, req.IsCollected, now)

	if req.InvoiceReference.Set {
		if req.InvoiceReference.Cleared() {
			order.InvoiceReference = nil
			order.InvoiceFileName = nil
			order.InvoiceUploadedAt = nil
		} else {
			ref := strings.TrimSpace(*req.InvoiceReference.Value)
			order.InvoiceReference = &ref
			order.InvoiceFileName = nil
			if name := invoiceFileName(ref); name != "" {
				order.InvoiceFileName = &name
			}
			stampOnce(&order.InvoiceUploadedAt, now)
		}
	}
	if req.ExecutedAt.Set {
		order.ExecutedAt = req.ExecutedAt.Value
	}
	if req.Observations != nil {
		order.Observations = req.Observations
	}
	order.Type = finalType
	if req.PriceSnapshot != nil {
		order.PriceSnapshot = *req.PriceSnapshot
	}
	return history, nil
}

// Delete hard-deletes an order together with its history.
func (s *WorkOrderService) Delete(ctx context.Context, id string) error {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "work order not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load work order")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "work order not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete work order")
	}
	s.invalidate(ctx, order.Month, order.Year)
	return nil
}

// StatusHistory lists the transitions of an order, oldest first.
func (s *WorkOrderService) StatusHistory(ctx context.Context, id string) ([]models.WorkOrderStatusHistory, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "work order not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load work order")
	}
	rows, err := s.repo.ListStatusHistory(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load status history")
	}
	if rows == nil {
		rows = []models.WorkOrderStatusHistory{}
	}
	return rows, nil
}

func (s *WorkOrderService) invalidate(ctx context.Context, month, year int) {
	if s.kpis != nil {
		s.kpis.InvalidatePeriod(ctx, month, year)
	}
}

// invoiceFileName derives the stored file name from a URL or plain file reference.
func invoiceFileName(ref string) string {
	p := ref
	if u, err := url.Parse(ref); err == nil && u.Path != "" {
		p = u.Path
	}
	name := path.Base(p)
	if name == "." || name == "/" {
		return ""
	}
	return name
}
