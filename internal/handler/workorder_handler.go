package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/eleven-api/internal/dto"
	"github.com/noah-isme/eleven-api/internal/middleware"
	"github.com/noah-isme/eleven-api/internal/models"
	appErrors "github.com/noah-isme/eleven-api/pkg/errors"
	"github.com/noah-isme/eleven-api/pkg/response"
)

type workOrderService interface {
	Create(ctx context.Context, req dto.CreateWorkOrderRequest) (*models.WorkOrderDetail, error)
	List(ctx context.Context, query dto.WorkOrderQuery) ([]models.WorkOrderDetail, error)
	Get(ctx context.Context, id string) (*models.WorkOrderDetail, error)
	Update(ctx context.Context, id string, req dto.UpdateWorkOrderRequest, actorID string) (*models.WorkOrderDetail, error)
	Delete(ctx context.Context, id string) error
	StatusHistory(ctx context.Context, id string) ([]models.WorkOrderStatusHistory, error)
}

type generationService interface {
	GenerateMonthly(ctx context.Context, month, year int) (*dto.GenerationSummary, error)
}

type billingService interface {
	BulkUpdate(ctx context.Context, req dto.BulkUpdateRequest) (*dto.BulkUpdateResult, error)
}

type kpiService interface {
	DashboardKPIs(ctx context.Context, month, year int) (*dto.DashboardKPIs, bool, error)
}

type exportService interface {
	Export(ctx context.Context, month, year int, format dto.ExportFormat) (*dto.ExportFile, error)
}

// WorkOrderHandler exposes work order lifecycle, billing and reporting endpoints.
type WorkOrderHandler struct {
	orders     workOrderService
	generation generationService
	billing    billingService
	kpis       kpiService
	exports    exportService
	logger     *zap.Logger
}

// WorkOrderHandlerParams groups handler dependencies.
type WorkOrderHandlerParams struct {
	Orders     workOrderService
	Generation generationService
	Billing    billingService
	KPIs       kpiService
	Exports    exportService
	Logger     *zap.Logger
}

// NewWorkOrderHandler constructs the handler.
func NewWorkOrderHandler(params WorkOrderHandlerParams) *WorkOrderHandler {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkOrderHandler{
		orders:     params.Orders,
		generation: params.Generation,
		billing:    params.Billing,
		kpis:       params.KPIs,
		exports:    params.Exports,
		logger:     logger,
	}
}

// List godoc
// @Summary List work orders
// @Tags WorkOrders
// @Produce json
// @Param month query int false "Month (1-12)"
// @Param year query int false "Year"
// @Param buildingId query string false "Building ID"
// @Param clientId query string false "Client ID"
// @Param status query string false "Comma separated operational statuses"
// @Param type query string false "Work order type"
// @Success 200 {object} response.Envelope
// @Router /work-orders [get]
func (h *WorkOrderHandler) List(c *gin.Context) {
	month, err := optionalIntQuery(c, "month")
	if err != nil {
		response.Error(c, err)
		return
	}
	year, err := optionalIntQuery(c, "year")
	if err != nil {
		response.Error(c, err)
		return
	}
	query := dto.WorkOrderQuery{
		Month:      month,
		Year:       year,
		BuildingID: strings.TrimSpace(c.Query("buildingId")),
		ClientID:   strings.TrimSpace(c.Query("clientId")),
		Type:       models.WorkOrderType(strings.TrimSpace(c.Query("type"))),
	}
	for _, raw := range strings.Split(c.Query("status"), ",") {
		if s := strings.TrimSpace(raw); s != "" {
			query.Status = append(query.Status, models.WorkOrderStatus(s))
		}
	}

	orders, err := h.orders.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, orders, len(orders))
}

// Create godoc
// @Summary Create a work order
// @Tags WorkOrders
// @Accept json
// @Produce json
// @Param payload body dto.CreateWorkOrderRequest true "Work order payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /work-orders [post]
func (h *WorkOrderHandler) Create(c *gin.Context) {
	var req dto.CreateWorkOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	order, err := h.orders.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, order)
}

// Get godoc
// @Summary Get a work order
// @Tags WorkOrders
// @Produce json
// @Param id path string true "Work order ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /work-orders/{id} [get]
func (h *WorkOrderHandler) Get(c *gin.Context) {
	order, err := h.orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, order)
}

// Update godoc
// @Summary Update a work order
// @Description Status changes follow pending -> in_progress -> completed, with cancelled reachable from any open status.
// @Tags WorkOrders
// @Accept json
// @Produce json
// @Param id path string true "Work order ID"
// @Param payload body dto.UpdateWorkOrderRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /work-orders/{id} [patch]
func (h *WorkOrderHandler) Update(c *gin.Context) {
	var req dto.UpdateWorkOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	order, err := h.orders.Update(c.Request.Context(), c.Param("id"), req, middleware.Claims(c).ActorID())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, order)
}

// Delete godoc
// @Summary Delete a work order
// @Tags WorkOrders
// @Param id path string true "Work order ID"
// @Success 204
// @Router /work-orders/{id} [delete]
func (h *WorkOrderHandler) Delete(c *gin.Context) {
	if err := h.orders.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// StatusHistory godoc
// @Summary Status transitions of a work order
// @Tags WorkOrders
// @Produce json
// @Param id path string true "Work order ID"
// @Success 200 {object} response.Envelope
// @Router /work-orders/{id}/status-history [get]
func (h *WorkOrderHandler) StatusHistory(c *gin.Context) {
	rows, err := h.orders.StatusHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, rows, len(rows))
}

// GenerateMonthly godoc
// @Summary Generate the monthly maintenance orders of a period
// @Tags WorkOrders
// @Accept json
// @Produce json
// @Param payload body dto.PeriodRequest true "Period"
// @Success 200 {object} response.Envelope
// @Router /work-orders/generate-monthly [post]
func (h *WorkOrderHandler) GenerateMonthly(c *gin.Context) {
	var req dto.PeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	summary, err := h.generation.GenerateMonthly(c.Request.Context(), req.Month, req.Year)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.ActorLogger(c, h.logger).Info("monthly generation requested",
		zap.Int("month", req.Month), zap.Int("year", req.Year), zap.Int("created", summary.Created))
	response.OK(c, summary)
}

// BulkUpdate godoc
// @Summary Bulk update billing flags
// @Tags WorkOrders
// @Accept json
// @Produce json
// @Param payload body dto.BulkUpdateRequest true "Selection and target flags"
// @Success 200 {object} response.Envelope
// @Router /work-orders/bulk-update [post]
func (h *WorkOrderHandler) BulkUpdate(c *gin.Context) {
	var req dto.BulkUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	result, err := h.billing.BulkUpdate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.ActorLogger(c, h.logger).Info("bulk billing update requested",
		zap.String("client_id", req.ClientID), zap.Int("updated", result.Updated))
	response.OK(c, result)
}

// DashboardKPIs godoc
// @Summary Period KPIs
// @Tags WorkOrders
// @Produce json
// @Param month query int true "Month (1-12)"
// @Param year query int true "Year"
// @Success 200 {object} response.Envelope
// @Router /work-orders/dashboard-kpis [get]
func (h *WorkOrderHandler) DashboardKPIs(c *gin.Context) {
	month, year, err := periodQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	start := time.Now()
	kpis, cacheHit, err := h.kpis.DashboardKPIs(c.Request.Context(), month, year)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	middleware.SetProcessingTime(c, start)
	response.JSON(c, http.StatusOK, kpis, middleware.Meta(c))
}

// Export godoc
// @Summary Export the orders of a period
// @Tags WorkOrders
// @Produce text/csv
// @Produce application/pdf
// @Param month query int true "Month (1-12)"
// @Param year query int true "Year"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /work-orders/export [get]
func (h *WorkOrderHandler) Export(c *gin.Context) {
	month, year, err := periodQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format := dto.ExportFormat(strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", string(dto.ExportFormatCSV)))))
	file, err := h.exports.Export(c.Request.Context(), month, year, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}

func optionalIntQuery(c *gin.Context, key string) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, key+" must be a number")
	}
	return value, nil
}

func periodQuery(c *gin.Context) (int, int, error) {
	month, err := optionalIntQuery(c, "month")
	if err != nil {
		return 0, 0, err
	}
	year, err := optionalIntQuery(c, "year")
	if err != nil {
		return 0, 0, err
	}
	if month == 0 || year == 0 {
		return 0, 0, appErrors.Clone(appErrors.ErrValidation, "month and year are required")
	}
	return month, year, nil
}
