package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Client owns buildings and is ranked by the revenue of its portfolio.
type Client struct {
	ID             string          `db:"id" json:"id"`
	Name           string          `db:"name" json:"name"`
	Phone          *string         `db:"phone" json:"phone,omitempty"`
	Email          *string         `db:"email" json:"email,omitempty"`
	Address        *string         `db:"address" json:"address,omitempty"`
	TaxID          *string         `db:"tax_id" json:"taxId,omitempty"`
	IsActive       bool            `db:"is_active" json:"isActive"`
	DeletedAt      *time.Time      `db:"deleted_at" json:"deletedAt,omitempty"`
	ClientRank     *int            `db:"client_rank" json:"clientRank,omitempty"`
	MonthlyRevenue decimal.Decimal `db:"monthly_revenue" json:"monthlyRevenue"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updatedAt"`
}

// ClientFilter constrains listing queries.
type ClientFilter struct {
	Active *bool
	Search string
}

// ClientRanking is the computed rank and revenue written back to a client.
type ClientRanking struct {
	ClientID string          `db:"client_id" json:"clientId"`
	Rank     int             `db:"client_rank" json:"rank"`
	Revenue  decimal.Decimal `db:"monthly_revenue" json:"revenue"`
}

// ClientBuildingPrice pairs a client with the price of one of its active buildings.
// Price is null for clients without active buildings.
type ClientBuildingPrice struct {
	ClientID string              `db:"client_id"`
	Price    decimal.NullDecimal `db:"price"`
}
