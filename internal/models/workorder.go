package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// WorkOrderStatus is the operational state of a work order.
type WorkOrderStatus string

const (
	WorkOrderStatusPending    WorkOrderStatus = "pending"
	WorkOrderStatusInProgress WorkOrderStatus = "in_progress"
	WorkOrderStatusCompleted  WorkOrderStatus = "completed"
	WorkOrderStatusCancelled  WorkOrderStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s WorkOrderStatus) Valid() bool {
	switch s {
	case WorkOrderStatusPending, WorkOrderStatusInProgress, WorkOrderStatusCompleted, WorkOrderStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s WorkOrderStatus) Terminal() bool {
	return s == WorkOrderStatusCompleted || s == WorkOrderStatusCancelled
}

// WorkOrderType classifies the job performed.
type WorkOrderType string

const (
	WorkOrderTypeMaintenance   WorkOrderType = "maintenance"
	WorkOrderTypeInstallation  WorkOrderType = "installation"
	WorkOrderTypeRepair        WorkOrderType = "repair"
	WorkOrderTypeModernization WorkOrderType = "modernization"
)

// Valid reports whether t is a known type.
func (t WorkOrderType) Valid() bool {
	switch t {
	case WorkOrderTypeMaintenance, WorkOrderTypeInstallation, WorkOrderTypeRepair, WorkOrderTypeModernization:
		return true
	}
	return false
}

// WorkOrder is one task for one building in one calendar period.
type WorkOrder struct {
	ID                string          `db:"id" json:"id"`
	BuildingID        string          `db:"building_id" json:"buildingId"`
	Month             int             `db:"month" json:"month"`
	Year              int             `db:"year" json:"year"`
	Type              WorkOrderType   `db:"type" json:"type"`
	Status            WorkOrderStatus `db:"operational_status" json:"operationalStatus"`
	IsInvoiced        bool            `db:"is_invoiced" json:"isInvoiced"`
	IsCollected       bool            `db:"is_collected" json:"isCollected"`
	PriceSnapshot     decimal.Decimal `db:"price_snapshot" json:"priceSnapshot"`
	Observations      *string         `db:"observations" json:"observations,omitempty"`
	InvoiceReference  *string         `db:"invoice_reference" json:"invoiceReference,omitempty"`
	InvoiceFileName   *string         `db:"invoice_file_name" json:"invoiceFileName,omitempty"`
	InvoiceUploadedAt *time.Time      `db:"invoice_uploaded_at" json:"invoiceUploadedAt,omitempty"`
	StartedAt         *time.Time      `db:"started_at" json:"startedAt,omitempty"`
	CompletedAt       *time.Time      `db:"completed_at" json:"completedAt,omitempty"`
	ExecutedAt        *time.Time      `db:"executed_at" json:"executedAt,omitempty"`
	CancelledAt       *time.Time      `db:"cancelled_at" json:"cancelledAt,omitempty"`
	InvoicedAt        *time.Time      `db:"invoiced_at" json:"invoicedAt,omitempty"`
	PaidAt            *time.Time      `db:"paid_at" json:"paidAt,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updatedAt"`
}

// WorkOrderDetail is a work order with its building and client resolved for display.
type WorkOrderDetail struct {
	WorkOrder
	BuildingName    *string `db:"building_name" json:"buildingName,omitempty"`
	BuildingAddress string  `db:"building_address" json:"buildingAddress"`
	ClientID        string  `db:"client_id" json:"clientId"`
	ClientName      string  `db:"client_name" json:"clientName"`
}

// WorkOrderStatusHistory is an append-only record of one status transition.
type WorkOrderStatusHistory struct {
	ID          string          `db:"id" json:"id"`
	WorkOrderID string          `db:"work_order_id" json:"workOrderId"`
	FromStatus  WorkOrderStatus `db:"from_status" json:"fromStatus"`
	ToStatus    WorkOrderStatus `db:"to_status" json:"toStatus"`
	Notes       *string         `db:"notes" json:"notes,omitempty"`
	ChangedBy   *string         `db:"changed_by" json:"changedBy,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
}

// WorkOrderFilter constrains listing queries. Zero values are ignored.
type WorkOrderFilter struct {
	Month      int
	Year       int
	BuildingID string
	ClientID   string
	Status     []WorkOrderStatus
	Type       WorkOrderType
	Limit      int
	Offset     int
}

// BillingSelector identifies the orders touched by a bulk billing update.
type BillingSelector struct {
	ClientID string
	Type     WorkOrderType
	Month    int
	Year     int
}

// BillingTarget carries the flag values requested by a bulk billing update.
type BillingTarget struct {
	IsInvoiced  *bool
	IsCollected *bool
}
