package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/eleven-api/internal/dto"
	"github.com/noah-isme/eleven-api/internal/middleware"
	appErrors "github.com/noah-isme/eleven-api/pkg/errors"
	"github.com/noah-isme/eleven-api/pkg/response"
)

const (
	defaultPortalHistoryLimit = 20
)

type portalService interface {
	Portal(ctx context.Context, buildingID string) (*dto.PortalResponse, error)
	PortalByToken(ctx context.Context, token string) (*dto.PortalResponse, error)
	Start(ctx context.Context, buildingID, orderID, actorID string) (*dto.PortalActionResponse, error)
	Complete(ctx context.Context, buildingID, orderID, actorID string, req dto.CompletePortalRequest) (*dto.PortalActionResponse, error)
	History(ctx context.Context, buildingID string, limit, offset int) (*dto.PortalHistoryResponse, error)
}

// PortalHandler serves the technician QR portal.
type PortalHandler struct {
	service portalService
}

// NewPortalHandler constructs the handler.
func NewPortalHandler(svc portalService) *PortalHandler {
	return &PortalHandler{service: svc}
}

// Show godoc
// @Summary Open orders of a building for the current month
// @Tags Portal
// @Produce json
// @Param buildingId path string true "Building ID"
// @Success 200 {object} response.Envelope
// @Router /qr/{buildingId} [get]
func (h *PortalHandler) Show(c *gin.Context) {
	portal, err := h.service.Portal(c.Request.Context(), c.Param("buildingId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, portal)
}

// ShowByToken godoc
// @Summary Resolve a signed QR link
// @Tags Portal
// @Produce json
// @Param token path string true "Signed portal token"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /qr/link/{token} [get]
func (h *PortalHandler) ShowByToken(c *gin.Context) {
	portal, err := h.service.PortalByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, portal)
}

// Start godoc
// @Summary Start a pending order
// @Tags Portal
// @Produce json
// @Param buildingId path string true "Building ID"
// @Param orderId path string true "Work order ID"
// @Success 200 {object} response.Envelope
// @Router /qr/{buildingId}/work-orders/{orderId}/start [post]
func (h *PortalHandler) Start(c *gin.Context) {
	result, err := h.service.Start(c.Request.Context(), c.Param("buildingId"), c.Param("orderId"), middleware.Claims(c).ActorID())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Complete godoc
// @Summary Complete an order in progress
// @Tags Portal
// @Accept json
// @Produce json
// @Param buildingId path string true "Building ID"
// @Param orderId path string true "Work order ID"
// @Param payload body dto.CompletePortalRequest false "Technician notes"
// @Success 200 {object} response.Envelope
// @Router /qr/{buildingId}/work-orders/{orderId}/complete [post]
func (h *PortalHandler) Complete(c *gin.Context) {
	var req dto.CompletePortalRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
			return
		}
	}
	result, err := h.service.Complete(c.Request.Context(), c.Param("buildingId"), c.Param("orderId"), middleware.Claims(c).ActorID(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// History godoc
// @Summary Paged order history of a building
// @Tags Portal
// @Produce json
// @Param buildingId path string true "Building ID"
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} response.Envelope
// @Router /qr/{buildingId}/history [get]
func (h *PortalHandler) History(c *gin.Context) {
	limit, err := optionalIntQuery(c, "limit")
	if err != nil {
		response.Error(c, err)
		return
	}
	if limit == 0 {
		limit = defaultPortalHistoryLimit
	}
	offset, err := optionalIntQuery(c, "offset")
	if err != nil {
		response.Error(c, err)
		return
	}
	history, err := h.service.History(c.Request.Context(), c.Param("buildingId"), limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, history)
}
