package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateBuildingRequest registers a building for a client.
type CreateBuildingRequest struct {
	ClientID          string          `json:"clientId" validate:"required,uuid"`
	Name              *string         `json:"name,omitempty" validate:"omitempty,max=255"`
	Address           string          `json:"address" validate:"required,max=255"`
	Phone             *string         `json:"phone,omitempty"`
	Email             *string         `json:"email,omitempty" validate:"omitempty,email"`
	Price             decimal.Decimal `json:"price" swaggertype:"string"`
	FloorsCount       *int            `json:"floorsCount,omitempty" validate:"omitempty,min=0"`
	ElevatorsCount    *int            `json:"elevatorsCount,omitempty" validate:"omitempty,min=0"`
	Notes             *string         `json:"notes,omitempty"`
	MaintenanceActive *bool           `json:"maintenanceActive,omitempty"`
}

// UpdateBuildingRequest patches a building. A price change is recorded in the price history.
type UpdateBuildingRequest struct {
	ClientID          *string          `json:"clientId,omitempty" validate:"omitempty,uuid"`
	Name              *string          `json:"name,omitempty" validate:"omitempty,max=255"`
	Address           *string          `json:"address,omitempty" validate:"omitempty,min=1,max=255"`
	Phone             *string          `json:"phone,omitempty"`
	Email             *string          `json:"email,omitempty" validate:"omitempty,email"`
	Price             *decimal.Decimal `json:"price,omitempty" swaggertype:"string"`
	PriceReason       *string          `json:"priceReason,omitempty" validate:"omitempty,max=255"`
	FloorsCount       *int             `json:"floorsCount,omitempty" validate:"omitempty,min=0"`
	ElevatorsCount    *int             `json:"elevatorsCount,omitempty" validate:"omitempty,min=0"`
	Notes             *string          `json:"notes,omitempty"`
	IsActive          *bool            `json:"isActive,omitempty"`
	MaintenanceActive *bool            `json:"maintenanceActive,omitempty"`
}

// CreateClientRequest registers a client.
type CreateClientRequest struct {
	Name    string  `json:"name" validate:"required,max=255"`
	Phone   *string `json:"phone,omitempty" validate:"omitempty,max=100"`
	Email   *string `json:"email,omitempty" validate:"omitempty,email"`
	Address *string `json:"address,omitempty"`
	TaxID   *string `json:"taxId,omitempty" validate:"omitempty,max=50"`
}

// UpdateClientRequest patches a client.
type UpdateClientRequest struct {
	Name    *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Phone   *string `json:"phone,omitempty" validate:"omitempty,max=100"`
	Email   *string `json:"email,omitempty" validate:"omitempty,email"`
	Address *string `json:"address,omitempty"`
	TaxID   *string `json:"taxId,omitempty" validate:"omitempty,max=50"`
}

// DeactivationResult describes what a client deactivation touched.
type DeactivationResult struct {
	ClientID             string    `json:"clientId"`
	DeactivatedAt        time.Time `json:"deactivatedAt"`
	DeactivatedBuildings []string  `json:"deactivatedBuildings"`
}

// PortalLinkResponse carries the signed link a building QR code encodes.
type PortalLinkResponse struct {
	BuildingID string    `json:"buildingId"`
	URL        string    `json:"url"`
	Token      string    `json:"token"`
	ExpiresAt  time.Time `json:"expiresAt"`
}
