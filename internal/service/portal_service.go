package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/eleven-api/internal/dto"
	"github.com/noah-isme/eleven-api/internal/models"
	appErrors "github.com/noah-isme/eleven-api/pkg/errors"
	"github.com/noah-isme/eleven-api/pkg/signing"
)

const (
	defaultPortalHistoryLimit = 20
	maxPortalHistoryLimit     = 100
)

type portalOrderStore interface {
	GetByID(ctx context.Context, id string) (*models.WorkOrder, error)
	List(ctx context.Context, filter models.WorkOrderFilter) ([]models.WorkOrderDetail, error)
	ListBuildingHistory(ctx context.Context, buildingID string, limit, offset int) ([]models.WorkOrder, int, error)
}

type workOrderUpdater interface {
	Update(ctx context.Context, id string, req dto.UpdateWorkOrderRequest, actorID string) (*models.WorkOrderDetail, error)
}

type portalLinkVerifier interface {
	Verify(token string) (string, error)
}

// PortalService backs the QR self-service pages technicians open on site.
type PortalService struct {
	buildings  buildingReader
	orders     portalOrderStore
	workOrders workOrderUpdater
	verifier   portalLinkVerifier
	logger     *zap.Logger
	now        func() time.Time
}

// PortalServiceParams groups constructor dependencies.
type PortalServiceParams struct {
	Buildings  buildingReader
	Orders     portalOrderStore
	WorkOrders workOrderUpdater
	Verifier   portalLinkVerifier
	Logger     *zap.Logger
}

// NewPortalService constructs the service.
func NewPortalService(params PortalServiceParams) *PortalService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PortalService{
		buildings:  params.Buildings,
		orders:     params.Orders,
		workOrders: params.WorkOrders,
		verifier:   params.Verifier,
		logger:     logger,
		now:        time.Now,
	}
}

// Portal returns the building summary with the open orders of the current month, oldest first.
func (s *PortalService) Portal(ctx context.Context, buildingID string) (*dto.PortalResponse, error) {
	building, err := s.building(ctx, buildingID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	orders, err := s.orders.List(ctx, models.WorkOrderFilter{
		BuildingID: building.ID,
		Month:      int(now.Month()),
		Year:       now.Year(),
		Status:     []models.WorkOrderStatus{models.WorkOrderStatusPending, models.WorkOrderStatusInProgress},
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load work orders")
	}
	sort.SliceStable(orders, func(i, j int) bool { return orders[i].CreatedAt.Before(orders[j].CreatedAt) })

	grouped := dto.PortalWorkOrders{Pending: []dto.PortalWorkOrder{}, InProgress: []dto.PortalWorkOrder{}}
	for _, o := range orders {
		switch o.Status {
		case models.WorkOrderStatusPending:
			grouped.Pending = append(grouped.Pending, toPortalWorkOrder(o.WorkOrder))
		case models.WorkOrderStatusInProgress:
			grouped.InProgress = append(grouped.InProgress, toPortalWorkOrder(o.WorkOrder))
		}
	}

	return &dto.PortalResponse{
		Building: dto.PortalBuilding{
			ID:             building.ID,
			Name:           building.Name,
			Address:        building.Address,
			ElevatorsCount: building.ElevatorsCount,
			ClientName:     building.ClientName,
		},
		WorkOrders:   grouped,
		CurrentMonth: int(now.Month()),
		CurrentYear:  now.Year(),
	}, nil
}

// PortalByToken resolves a signed QR link and returns its portal.
func (s *PortalService) PortalByToken(ctx context.Context, token string) (*dto.PortalResponse, error) {
	if s.verifier == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "portal links are not configured")
	}
	buildingID, err := s.verifier.Verify(token)
	if err != nil {
		if errors.Is(err, signing.ErrExpiredToken) {
			return nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "portal link expired")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid portal link")
	}
	return s.Portal(ctx, buildingID)
}

// Start moves a pending order of the building to in_progress.
func (s *PortalService) Start(ctx context.Context, buildingID, orderID, actorID string) (*dto.PortalActionResponse, error) {
	if _, err := s.portalOrder(ctx, buildingID, orderID, models.WorkOrderStatusPending); err != nil {
		return nil, err
	}
	status := models.WorkOrderStatusInProgress
	detail, err := s.workOrders.Update(ctx, orderID, dto.UpdateWorkOrderRequest{
		OperationalStatus: &status,
		Notes:             "started from QR portal",
	}, actorID)
	if err != nil {
		return nil, err
	}
	return &dto.PortalActionResponse{Message: "work order started", WorkOrder: toPortalWorkOrder(detail.WorkOrder)}, nil
}

// Complete moves an in-progress order of the building to completed, storing technician notes.
func (s *PortalService) Complete(ctx context.Context, buildingID, orderID, actorID string, req dto.CompletePortalRequest) (*dto.PortalActionResponse, error) {
	if _, err := s.portalOrder(ctx, buildingID, orderID, models.WorkOrderStatusInProgress); err != nil {
		return nil, err
	}
	status := models.WorkOrderStatusCompleted
	update := dto.UpdateWorkOrderRequest{OperationalStatus: &status, Notes: "completed from QR portal"}
	if req.Observations != nil {
		if obs := strings.TrimSpace(*req.Observations); obs != "" {
			update.Observations = &obs
		}
	}
	detail, err := s.workOrders.Update(ctx, orderID, update, actorID)
	if err != nil {
		return nil, err
	}
	return &dto.PortalActionResponse{Message: "work order completed", WorkOrder: toPortalWorkOrder(detail.WorkOrder)}, nil
}

// History pages through every order of the building, most recently executed first.
func (s *PortalService) History(ctx context.Context, buildingID string, limit, offset int) (*dto.PortalHistoryResponse, error) {
	if limit <= 0 {
		limit = defaultPortalHistoryLimit
	}
	if limit > maxPortalHistoryLimit {
		limit = maxPortalHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	building, err := s.building(ctx, buildingID)
	if err != nil {
		return nil, err
	}
	orders, total, err := s.orders.ListBuildingHistory(ctx, building.ID, limit, offset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load work order history")
	}
	items := make([]dto.PortalWorkOrder, 0, len(orders))
	for _, o := range orders {
		items = append(items, toPortalWorkOrder(o))
	}
	return &dto.PortalHistoryResponse{
		BuildingName: building.DisplayName(),
		Items:        items,
		Total:        total,
		HasMore:      offset+len(items) < total,
	}, nil
}

func (s *PortalService) building(ctx context.Context, id string) (*models.Building, error) {
	building, err := s.buildings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "building not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load building")
	}
	return building, nil
}

// portalOrder loads an order of the building and checks it is in the expected status.
func (s *PortalService) portalOrder(ctx context.Context, buildingID, orderID string, expected models.WorkOrderStatus) (*models.WorkOrder, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "work order not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load work order")
	}
	if order.BuildingID != buildingID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "work order not found for this building")
	}
	if order.Status != expected {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("work order is %s, expected %s", order.Status, expected))
	}
	return order, nil
}

func toPortalWorkOrder(o models.WorkOrder) dto.PortalWorkOrder {
	return dto.PortalWorkOrder{
		ID:           o.ID,
		Type:         o.Type,
		Status:       o.Status,
		Month:        o.Month,
		Year:         o.Year,
		Observations: o.Observations,
		StartedAt:    o.StartedAt,
		CompletedAt:  o.CompletedAt,
		ExecutedAt:   o.ExecutedAt,
		CreatedAt:    o.CreatedAt,
	}
}
