package handler

import (
	"context"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/eleven-api/internal/dto"
	"github.com/noah-isme/eleven-api/internal/models"
	appErrors "github.com/noah-isme/eleven-api/pkg/errors"
	"github.com/noah-isme/eleven-api/pkg/response"
)

type buildingService interface {
	Create(ctx context.Context, req dto.CreateBuildingRequest) (*models.Building, error)
	List(ctx context.Context, filter models.BuildingFilter) ([]models.Building, error)
	Get(ctx context.Context, id string) (*models.Building, error)
	Update(ctx context.Context, id string, req dto.UpdateBuildingRequest) (*models.Building, error)
	Deactivate(ctx context.Context, id string) error
	PriceHistory(ctx context.Context, id string) ([]models.BuildingPriceHistory, error)
	PortalLink(ctx context.Context, id string) (*dto.PortalLinkResponse, error)
}

// BuildingHandler manages buildings under maintenance contract.
type BuildingHandler struct {
	service buildingService
}

// NewBuildingHandler constructs the handler.
func NewBuildingHandler(svc buildingService) *BuildingHandler {
	return &BuildingHandler{service: svc}
}

// List godoc
// @Summary List buildings
// @Tags Buildings
// @Produce json
// @Param clientId query string false "Client ID"
// @Param active query bool false "Only active or inactive buildings"
// @Param search query string false "Matches name or address"
// @Success 200 {object} response.Envelope
// @Router /buildings [get]
func (h *BuildingHandler) List(c *gin.Context) {
	active, err := optionalBoolQuery(c, "active")
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.BuildingFilter{
		ClientID: strings.TrimSpace(c.Query("clientId")),
		Active:   active,
		Search:   strings.TrimSpace(c.Query("search")),
	}
	buildings, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, buildings, len(buildings))
}

// Create godoc
// @Summary Create a building
// @Tags Buildings
// @Accept json
// @Produce json
// @Param payload body dto.CreateBuildingRequest true "Building payload"
// @Success 201 {object} response.Envelope
// @Router /buildings [post]
func (h *BuildingHandler) Create(c *gin.Context) {
	var req dto.CreateBuildingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	building, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, building)
}

// Get godoc
// @Summary Get a building
// @Tags Buildings
// @Produce json
// @Param id path string true "Building ID"
// @Success 200 {object} response.Envelope
// @Router /buildings/{id} [get]
func (h *BuildingHandler) Get(c *gin.Context) {
	building, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, building)
}

// Update godoc
// @Summary Update a building
// @Tags Buildings
// @Accept json
// @Produce json
// @Param id path string true "Building ID"
// @Param payload body dto.UpdateBuildingRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Router /buildings/{id} [patch]
func (h *BuildingHandler) Update(c *gin.Context) {
	var req dto.UpdateBuildingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	building, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, building)
}

// Delete godoc
// @Summary Deactivate a building
// @Tags Buildings
// @Param id path string true "Building ID"
// @Success 204
// @Router /buildings/{id} [delete]
func (h *BuildingHandler) Delete(c *gin.Context) {
	if err := h.service.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// PriceHistory godoc
// @Summary Price changes of a building
// @Tags Buildings
// @Produce json
// @Param id path string true "Building ID"
// @Success 200 {object} response.Envelope
// @Router /buildings/{id}/price-history [get]
func (h *BuildingHandler) PriceHistory(c *gin.Context) {
	rows, err := h.service.PriceHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, rows, len(rows))
}

// PortalLink godoc
// @Summary Signed QR portal link of a building
// @Tags Buildings
// @Produce json
// @Param id path string true "Building ID"
// @Success 200 {object} response.Envelope
// @Router /buildings/{id}/portal-link [get]
func (h *BuildingHandler) PortalLink(c *gin.Context) {
	link, err := h.service.PortalLink(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, link)
}

func optionalBoolQuery(c *gin.Context, key string) (*bool, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, key+" must be a boolean")
	}
	return &value, nil
}
