package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/eleven-api/internal/dto"
	"github.com/noah-isme/eleven-api/internal/models"
	appErrors "github.com/noah-isme/eleven-api/pkg/errors"
)

type buildingStore interface {
	Create(ctx context.Context, building *models.Building, reason *string) error
	GetByID(ctx context.Context, id string) (*models.Building, error)
	List(ctx context.Context, filter models.BuildingFilter) ([]models.Building, error)
	Update(ctx context.Context, building *models.Building, priceChange *models.BuildingPriceHistory) error
	ListPriceHistory(ctx context.Context, buildingID string) ([]models.BuildingPriceHistory, error)
}

type clientReader interface {
	GetByID(ctx context.Context, id string) (*models.Client, error)
}

type portalLinkGenerator interface {
	Generate(buildingID string) (string, time.Time, error)
}

// BuildingService manages the building directory and its price history.
type BuildingService struct {
	repo          buildingStore
	clients       clientReader
	notifier      RankingNotifier
	signer        portalLinkGenerator
	portalBaseURL string
	validator     *validator.Validate
	logger        *zap.Logger
	now           func() time.Time
}

// BuildingServiceParams groups constructor dependencies.
type BuildingServiceParams struct {
	Repo          buildingStore
	Clients       clientReader
	Notifier      RankingNotifier
	Signer        portalLinkGenerator
	PortalBaseURL string
	Validator     *validator.Validate
	Logger        *zap.Logger
}

// NewBuildingService constructs the service.
func NewBuildingService(params BuildingServiceParams) *BuildingService {
	v := params.Validator
	if v == nil {
		v = validator.New()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BuildingService{
		repo:          params.Repo,
		clients:       params.Clients,
		notifier:      params.Notifier,
		signer:        params.Signer,
		portalBaseURL: strings.TrimRight(params.PortalBaseURL, "/"),
		validator:     v,
		logger:        logger,
		now:           time.Now,
	}
}

// Create registers a building and records its opening price.
func (s *BuildingService) Create(ctx context.Context, req dto.CreateBuildingRequest) (*models.Building, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid building payload")
	}
	if req.Price.IsNegative() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "price must not be negative")
	}
	if err := s.ensureClient(ctx, req.ClientID); err != nil {
		return nil, err
	}

	building := &models.Building{
		ClientID:          req.ClientID,
		Name:              req.Name,
		Address:           strings.TrimSpace(req.Address),
		Phone:             req.Phone,
		Email:             req.Email,
		Price:             req.Price,
		FloorsCount:       req.FloorsCount,
		ElevatorsCount:    req.ElevatorsCount,
		Notes:             req.Notes,
		IsActive:          true,
		MaintenanceActive: true,
	}
	if req.MaintenanceActive != nil {
		building.MaintenanceActive = *req.MaintenanceActive
	}
	if err := s.repo.Create(ctx, building, nil); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create building")
	}
	s.notify(ctx, "building created")
	return s.Get(ctx, building.ID)
}

// List returns buildings matching the filter.
func (s *BuildingService) List(ctx context.Context, filter models.BuildingFilter) ([]models.Building, error) {
	buildings, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list buildings")
	}
	if buildings == nil {
		buildings = []models.Building{}
	}
	return buildings, nil
}

// Get returns a building by id.
func (s *BuildingService) Get(ctx context.Context, id string) (*models.Building, error) {
	building, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "building not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load building")
	}
	return building, nil
}

// Update patches a building. A different price is appended to the price history.
func (s *BuildingService) Update(ctx context.Context, id string, req dto.UpdateBuildingRequest) (*models.Building, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid building payload")
	}
	if req.Price != nil && req.Price.IsNegative() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "price must not be negative")
	}
	building, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.ClientID != nil && *req.ClientID != building.ClientID {
		if err := s.ensureClient(ctx, *req.ClientID); err != nil {
			return nil, err
		}
		building.ClientID = *req.ClientID
	}

	var priceChange *models.BuildingPriceHistory
	if req.Price != nil && !req.Price.Equal(building.Price) {
		priceChange = &models.BuildingPriceHistory{
			OldPrice:  decimal.NewNullDecimal(building.Price),
			NewPrice:  *req.Price,
			Reason:    req.PriceReason,
			ChangedAt: s.now().UTC(),
		}
		building.Price = *req.Price
	}

	if req.Name != nil {
		building.Name = req.Name
	}
	if req.Address != nil {
		building.Address = strings.TrimSpace(*req.Address)
	}
	if req.Phone != nil {
		building.Phone = req.Phone
	}
	if req.Email != nil {
		building.Email = req.Email
	}
	if req.FloorsCount != nil {
		building.FloorsCount = req.FloorsCount
	}
	if req.ElevatorsCount != nil {
		building.ElevatorsCount = req.ElevatorsCount
	}
	if req.Notes != nil {
		building.Notes = req.Notes
	}
	if req.IsActive != nil {
		building.IsActive = *req.IsActive
		if building.IsActive {
			building.DeletedAt = nil
		}
	}
	if req.MaintenanceActive != nil {
		building.MaintenanceActive = *req.MaintenanceActive
	}

	if err := s.repo.Update(ctx, building, priceChange); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "building not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update building")
	}
	if priceChange != nil {
		s.logger.Info("building price changed",
			zap.String("building_id", building.ID),
			zap.String("old_price", priceChange.OldPrice.Decimal.String()),
			zap.String("new_price", priceChange.NewPrice.String()),
		)
	}
	s.notify(ctx, "building updated")
	return s.Get(ctx, building.ID)
}

// Deactivate soft-deletes a building. Its work orders are kept.
func (s *BuildingService) Deactivate(ctx context.Context, id string) error {
	building, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !building.IsActive && building.DeletedAt != nil {
		return nil
	}
	now := s.now().UTC()
	building.IsActive = false
	building.DeletedAt = &now
	if err := s.repo.Update(ctx, building, nil); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "building not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate building")
	}
	s.notify(ctx, "building deactivated")
	return nil
}

// PriceHistory lists price changes, newest first.
func (s *BuildingService) PriceHistory(ctx context.Context, id string) ([]models.BuildingPriceHistory, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListPriceHistory(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load price history")
	}
	if rows == nil {
		rows = []models.BuildingPriceHistory{}
	}
	return rows, nil
}

// PortalLink signs the link a building QR code encodes.
func (s *BuildingService) PortalLink(ctx context.Context, id string) (*dto.PortalLinkResponse, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "portal links are not configured")
	}
	building, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(building.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign portal link")
	}
	link := fmt.Sprintf("%s/%s?token=%s", s.portalBaseURL, url.PathEscape(building.ID), url.QueryEscape(token))
	return &dto.PortalLinkResponse{BuildingID: building.ID, URL: link, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *BuildingService) ensureClient(ctx context.Context, clientID string) error {
	if _, err := s.clients.GetByID(ctx, clientID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "client not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load client")
	}
	return nil
}

func (s *BuildingService) notify(ctx context.Context, reason string) {
	if s.notifier != nil {
		s.notifier.PortfolioChanged(ctx, reason)
	}
}
