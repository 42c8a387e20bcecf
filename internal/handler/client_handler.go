package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/eleven-api/internal/dto"
	"github.com/noah-isme/eleven-api/internal/middleware"
	"github.com/noah-isme/eleven-api/internal/models"
	appErrors "github.com/noah-isme/eleven-api/pkg/errors"
	"github.com/noah-isme/eleven-api/pkg/response"
)

type clientService interface {
	Create(ctx context.Context, req dto.CreateClientRequest) (*models.Client, error)
	List(ctx context.Context, filter models.ClientFilter) ([]models.Client, error)
	Get(ctx context.Context, id string) (*models.Client, error)
	Update(ctx context.Context, id string, req dto.UpdateClientRequest) (*models.Client, error)
	Deactivate(ctx context.Context, id string) (*dto.DeactivationResult, error)
	RecomputeRankings(ctx context.Context) ([]models.ClientRanking, error)
}

// ClientHandler manages clients and their revenue ranking.
type ClientHandler struct {
	service clientService
	logger  *zap.Logger
}

// NewClientHandler constructs the handler.
func NewClientHandler(svc clientService, logger *zap.Logger) *ClientHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClientHandler{service: svc, logger: logger}
}

// List godoc
// @Summary List clients
// @Tags Clients
// @Produce json
// @Param active query bool false "Only active or inactive clients"
// @Param search query string false "Matches name or tax id"
// @Success 200 {object} response.Envelope
// @Router /clients [get]
func (h *ClientHandler) List(c *gin.Context) {
	active, err := optionalBoolQuery(c, "active")
	if err != nil {
		response.Error(c, err)
		return
	}
	clients, err := h.service.List(c.Request.Context(), models.ClientFilter{
		Active: active,
		Search: strings.TrimSpace(c.Query("search")),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, clients, len(clients))
}

// Create godoc
// @Summary Create a client
// @Tags Clients
// @Accept json
// @Produce json
// @Param payload body dto.CreateClientRequest true "Client payload"
// @Success 201 {object} response.Envelope
// @Router /clients [post]
func (h *ClientHandler) Create(c *gin.Context) {
	var req dto.CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	client, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, client)
}

// Get godoc
// @Summary Get a client
// @Tags Clients
// @Produce json
// @Param id path string true "Client ID"
// @Success 200 {object} response.Envelope
// @Router /clients/{id} [get]
func (h *ClientHandler) Get(c *gin.Context) {
	client, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, client)
}

// Update godoc
// @Summary Update a client
// @Tags Clients
// @Accept json
// @Produce json
// @Param id path string true "Client ID"
// @Param payload body dto.UpdateClientRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Router /clients/{id} [patch]
func (h *ClientHandler) Update(c *gin.Context) {
	var req dto.UpdateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	client, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, client)
}

// Deactivate godoc
// @Summary Deactivate a client and its active buildings
// @Tags Clients
// @Produce json
// @Param id path string true "Client ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /clients/{id} [delete]
func (h *ClientHandler) Deactivate(c *gin.Context) {
	result, err := h.service.Deactivate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.ActorLogger(c, h.logger).Info("client deactivated",
		zap.String("client_id", result.ClientID), zap.Int("buildings", len(result.DeactivatedBuildings)))
	response.OK(c, result)
}

// RecomputeRankings godoc
// @Summary Recompute the client revenue ranking
// @Tags Clients
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /clients/rankings/recompute [post]
func (h *ClientHandler) RecomputeRankings(c *gin.Context) {
	rankings, err := h.service.RecomputeRankings(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, rankings, len(rankings))
}
