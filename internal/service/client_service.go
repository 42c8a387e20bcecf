package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/eleven-api/internal/dto"
	"github.com/noah-isme/eleven-api/internal/models"
	appErrors "github.com/noah-isme/eleven-api/pkg/errors"
)

type clientStore interface {
	Create(ctx context.Context, client *models.Client) error
	GetByID(ctx context.Context, id string) (*models.Client, error)
	List(ctx context.Context, filter models.ClientFilter) ([]models.Client, error)
	Update(ctx context.Context, client *models.Client) error
	ApplyDeactivation(ctx context.Context, clientID string, buildingIDs []string, at time.Time) error
}

type buildingLister interface {
	List(ctx context.Context, filter models.BuildingFilter) ([]models.Building, error)
}

// DeactivationPlan lists the mutations a client deactivation performs.
type DeactivationPlan struct {
	ClientID    string
	At          time.Time
	BuildingIDs []string
}

// PlanClientDeactivation decides what deactivating a client touches: the client is
// soft-deleted and each of its active buildings is deactivated. Work orders are kept
// so past periods still report.
func PlanClientDeactivation(client models.Client, buildings []models.Building, at time.Time) (DeactivationPlan, error) {
	if !client.IsActive && client.DeletedAt != nil {
		return DeactivationPlan{}, appErrors.Clone(appErrors.ErrConflict, "client is already inactive")
	}
	plan := DeactivationPlan{ClientID: client.ID, At: at, BuildingIDs: []string{}}
	for _, b := range buildings {
		if b.ClientID != client.ID || !b.IsActive {
			continue
		}
		plan.BuildingIDs = append(plan.BuildingIDs, b.ID)
	}
	return plan, nil
}

// ClientService manages the client directory.
type ClientService struct {
	repo      clientStore
	buildings buildingLister
	ranking   rankingRecomputer
	notifier  RankingNotifier
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// ClientServiceParams groups constructor dependencies.
type ClientServiceParams struct {
	Repo      clientStore
	Buildings buildingLister
	Ranking   rankingRecomputer
	Notifier  RankingNotifier
	Validator *validator.Validate
	Logger    *zap.Logger
}

// NewClientService constructs the service.
func NewClientService(params ClientServiceParams) *ClientService {
	v := params.Validator
	if v == nil {
		v = validator.New()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClientService{
		repo:      params.Repo,
		buildings: params.Buildings,
		ranking:   params.Ranking,
		notifier:  params.Notifier,
		validator: v,
		logger:    logger,
		now:       time.Now,
	}
}

// Create registers an active client.
func (s *ClientService) Create(ctx context.Context, req dto.CreateClientRequest) (*models.Client, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid client payload")
	}
	client := &models.Client{
		Name:     strings.TrimSpace(req.Name),
		Phone:    req.Phone,
		Email:    req.Email,
		Address:  req.Address,
		TaxID:    req.TaxID,
		IsActive: true,
	}
	if err := s.repo.Create(ctx, client); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create client")
	}
	return client, nil
}

// List returns clients ordered by rank.
func (s *ClientService) List(ctx context.Context, filter models.ClientFilter) ([]models.Client, error) {
	clients, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list clients")
	}
	if clients == nil {
		clients = []models.Client{}
	}
	return clients, nil
}

// Get returns a client by id.
func (s *ClientService) Get(ctx context.Context, id string) (*models.Client, error) {
	client, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "client not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load client")
	}
	return client, nil
}

// Update patches contact data. Rank and revenue are owned by the ranking recompute.
func (s *ClientService) Update(ctx context.Context, id string, req dto.UpdateClientRequest) (*models.Client, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid client payload")
	}
	client, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		client.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		client.Phone = req.Phone
	}
	if req.Email != nil {
		client.Email = req.Email
	}
	if req.Address != nil {
		client.Address = req.Address
	}
	if req.TaxID != nil {
		client.TaxID = req.TaxID
	}
	if err := s.repo.Update(ctx, client); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "client not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update client")
	}
	return client, nil
}

// Deactivate soft-deletes the client and deactivates its buildings.
func (s *ClientService) Deactivate(ctx context.Context, id string) (*dto.DeactivationResult, error) {
	client, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	buildings, err := s.buildings.List(ctx, models.BuildingFilter{ClientID: id})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load client buildings")
	}

	plan, err := PlanClientDeactivation(*client, buildings, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.repo.ApplyDeactivation(ctx, plan.ClientID, plan.BuildingIDs, plan.At); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "client not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate client")
	}

	s.logger.Info("client deactivated", zap.String("client_id", plan.ClientID), zap.Int("buildings", len(plan.BuildingIDs)))
	if s.notifier != nil {
		s.notifier.PortfolioChanged(ctx, "client deactivated")
	}
	return &dto.DeactivationResult{ClientID: plan.ClientID, DeactivatedAt: plan.At, DeactivatedBuildings: plan.BuildingIDs}, nil
}

// RecomputeRankings runs the ranking recompute synchronously.
func (s *ClientService) RecomputeRankings(ctx context.Context) ([]models.ClientRanking, error) {
	return s.ranking.UpdateClientRankings(ctx)
}
