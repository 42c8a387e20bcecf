package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Building is a serviced property owned by a client.
type Building struct {
	ID                string          `db:"id" json:"id"`
	ClientID          string          `db:"client_id" json:"clientId"`
	Name              *string         `db:"name" json:"name,omitempty"`
	Address           string          `db:"address" json:"address"`
	Phone             *string         `db:"phone" json:"phone,omitempty"`
	Email             *string         `db:"email" json:"email,omitempty"`
	Price             decimal.Decimal `db:"price" json:"price"`
	FloorsCount       *int            `db:"floors_count" json:"floorsCount,omitempty"`
	ElevatorsCount    *int            `db:"elevators_count" json:"elevatorsCount,omitempty"`
	Notes             *string         `db:"notes" json:"notes,omitempty"`
	IsActive          bool            `db:"is_active" json:"isActive"`
	MaintenanceActive bool            `db:"maintenance_active" json:"maintenanceActive"`
	DeletedAt         *time.Time      `db:"deleted_at" json:"deletedAt,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updatedAt"`
	ClientName        string          `db:"client_name" json:"clientName,omitempty"`
}

// DisplayName prefers the building name and falls back to its address.
func (b Building) DisplayName() string {
	if b.Name != nil && *b.Name != "" {
		return *b.Name
	}
	return b.Address
}

// EligibleForMaintenance reports whether monthly generation should cover the building.
func (b Building) EligibleForMaintenance() bool {
	return b.IsActive && b.MaintenanceActive
}

// BuildingFilter constrains listing queries.
type BuildingFilter struct {
	ClientID string
	Active   *bool
	Search   string
}

// BuildingPriceHistory records one change of a building's monthly rate.
type BuildingPriceHistory struct {
	ID         string              `db:"id" json:"id"`
	BuildingID string              `db:"building_id" json:"buildingId"`
	OldPrice   decimal.NullDecimal `db:"old_price" json:"oldPrice"`
	NewPrice   decimal.Decimal     `db:"new_price" json:"newPrice"`
	Reason     *string             `db:"reason" json:"reason,omitempty"`
	ChangedAt  time.Time           `db:"changed_at" json:"changedAt"`
}
