package dto

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/eleven-api/internal/models"
)

// CreateWorkOrderRequest creates a single order. Maintenance orders take their price from the building.
type CreateWorkOrderRequest struct {
	BuildingID    string               `json:"buildingId" validate:"required,uuid"`
	Month         int                  `json:"month" validate:"min=1,max=12"`
	Year          int                  `json:"year" validate:"min=2020,max=2100"`
	Type          models.WorkOrderType `json:"type" validate:"omitempty,oneof=maintenance installation repair modernization"`
	PriceSnapshot *decimal.Decimal     `json:"priceSnapshot,omitempty"`
	Observations  *string              `json:"observations,omitempty"`
}

// UpdateWorkOrderRequest is a partial update driven through the status state machine.
type UpdateWorkOrderRequest struct {
	OperationalStatus *models.WorkOrderStatus `json:"operationalStatus,omitempty"`
	IsInvoiced        *bool                   `json:"isInvoiced,omitempty"`
	IsCollected       *bool                   `json:"isCollected,omitempty"`
	Observations      *string                 `json:"observations,omitempty"`
	InvoiceReference  OptionalString          `json:"invoiceReference" swaggertype:"string"`
	Type              *models.WorkOrderType   `json:"type,omitempty"`
	PriceSnapshot     *decimal.Decimal        `json:"priceSnapshot,omitempty" swaggertype:"string"`
	ExecutedAt        OptionalTime            `json:"executedAt" swaggertype:"string" format:"date-time"`
	// Notes are stored on the status history row when the status changes.
	Notes string `json:"notes,omitempty"`
}

// WorkOrderQuery mirrors supported listing filters.
type WorkOrderQuery struct {
	Month      int
	Year       int
	BuildingID string
	ClientID   string
	Status     []models.WorkOrderStatus
	Type       models.WorkOrderType
}

// PeriodRequest identifies a billing period.
type PeriodRequest struct {
	Month int `json:"month" validate:"min=1,max=12"`
	Year  int `json:"year" validate:"min=2020,max=2100"`
}

// GenerationError records a building that could not be processed.
type GenerationError struct {
	BuildingID string `json:"buildingId"`
	Message    string `json:"message"`
}

// GenerationSummary is the outcome of a monthly generation run.
type GenerationSummary struct {
	Month   int               `json:"month"`
	Year    int               `json:"year"`
	Created int               `json:"created"`
	Skipped int               `json:"skipped"`
	Errors  []GenerationError `json:"errors"`
}

// BulkUpdateRequest flips billing flags on every matching order of a client.
type BulkUpdateRequest struct {
	ClientID    string               `json:"clientId" validate:"required,uuid"`
	Type        models.WorkOrderType `json:"type" validate:"required,oneof=maintenance installation repair modernization"`
	Month       int                  `json:"month" validate:"min=1,max=12"`
	Year        int                  `json:"year" validate:"min=2020,max=2100"`
	IsInvoiced  *bool                `json:"isInvoiced,omitempty"`
	IsCollected *bool                `json:"isCollected,omitempty"`
}

// UnmarshalJSON also accepts the isFacturado and isCobrado names used by older clients.
// When both spellings are sent, isInvoiced and isCollected win.
func (r *BulkUpdateRequest) UnmarshalJSON(data []byte) error {
	type plain BulkUpdateRequest
	var body struct {
		plain
		IsFacturado *bool `json:"isFacturado"`
		IsCobrado   *bool `json:"isCobrado"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return err
	}
	*r = BulkUpdateRequest(body.plain)
	if r.IsInvoiced == nil {
		r.IsInvoiced = body.IsFacturado
	}
	if r.IsCollected == nil {
		r.IsCollected = body.IsCobrado
	}
	return nil
}

// BulkUpdateError records an order that could not be updated.
type BulkUpdateError struct {
	WorkOrderID string `json:"workOrderId"`
	Message     string `json:"message"`
}

// BulkUpdateResult reports how many orders changed.
type BulkUpdateResult struct {
	Updated int               `json:"updated"`
	Errors  []BulkUpdateError `json:"errors"`
}

// WorkOrderKPIs counts orders of a period.
type WorkOrderKPIs struct {
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	Invoiced       int     `json:"invoiced"`
	Paid           int     `json:"paid"`
	CompletionRate float64 `json:"completionRate"`
}

// RevenueKPIs sums price snapshots of a period.
type RevenueKPIs struct {
	Total          decimal.Decimal `json:"total" swaggertype:"string"`
	Invoiced       decimal.Decimal `json:"invoiced" swaggertype:"string"`
	Paid           decimal.Decimal `json:"paid" swaggertype:"string"`
	InvoicedRate   float64         `json:"invoicedRate"`
	CollectionRate float64         `json:"collectionRate"`
}

// DashboardKPIs aggregates a period for the dashboard.
type DashboardKPIs struct {
	Month       int           `json:"month"`
	Year        int           `json:"year"`
	WorkOrders  WorkOrderKPIs `json:"workOrders"`
	Revenue     RevenueKPIs   `json:"revenue"`
	GeneratedAt time.Time     `json:"generatedAt"`
}

// ExportFormat selects the period export rendering.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportFile is a rendered export ready to download.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}
