package dto

import (
	"time"

	"github.com/noah-isme/eleven-api/internal/models"
)

// PortalBuilding summarises a building on the QR portal.
type PortalBuilding struct {
	ID             string  `json:"id"`
	Name           *string `json:"name,omitempty"`
	Address        string  `json:"address"`
	ElevatorsCount *int    `json:"elevatorsCount,omitempty"`
	ClientName     string  `json:"clientName"`
}

// PortalWorkOrder is the compact order view shown to technicians.
type PortalWorkOrder struct {
	ID           string                 `json:"id"`
	Type         models.WorkOrderType   `json:"type"`
	Status       models.WorkOrderStatus `json:"status"`
	Month        int                    `json:"month"`
	Year         int                    `json:"year"`
	Observations *string                `json:"observations,omitempty"`
	StartedAt    *time.Time             `json:"startedAt,omitempty"`
	CompletedAt  *time.Time             `json:"completedAt,omitempty"`
	ExecutedAt   *time.Time             `json:"executedAt,omitempty"`
	CreatedAt    time.Time              `json:"createdAt"`
}

// PortalWorkOrders groups the open orders of the current period.
type PortalWorkOrders struct {
	Pending    []PortalWorkOrder `json:"pending"`
	InProgress []PortalWorkOrder `json:"inProgress"`
}

// PortalResponse is the QR landing payload for a building.
type PortalResponse struct {
	Building     PortalBuilding   `json:"building"`
	WorkOrders   PortalWorkOrders `json:"workOrders"`
	CurrentMonth int              `json:"currentMonth"`
	CurrentYear  int              `json:"currentYear"`
}

// CompletePortalRequest carries technician notes when closing an order.
type CompletePortalRequest struct {
	Observations *string `json:"observations,omitempty" validate:"omitempty,max=2000"`
}

// PortalActionResponse is returned after a technician starts or completes an order.
type PortalActionResponse struct {
	Message   string          `json:"message"`
	WorkOrder PortalWorkOrder `json:"workOrder"`
}

// PortalHistoryResponse pages through a building's orders.
type PortalHistoryResponse struct {
	BuildingName string            `json:"buildingName"`
	Items        []PortalWorkOrder `json:"items"`
	Total        int               `json:"total"`
	HasMore      bool              `json:"hasMore"`
}
