package service

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/eleven-api/internal/models"
	appErrors "github.com/noah-isme/eleven-api/pkg/errors"
)

type rankingStore interface {
	ListBuildingPrices(ctx context.Context) ([]models.ClientBuildingPrice, error)
	BulkSetRanking(ctx context.Context, rankings []models.ClientRanking) error
}

// RankingService recomputes the revenue ranking of every client.
type RankingService struct {
	repo    rankingStore
	metrics *MetricsService
	logger  *zap.Logger
}

// NewRankingService constructs the service.
func NewRankingService(repo rankingStore, metrics *MetricsService, logger *zap.Logger) *RankingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RankingService{repo: repo, metrics: metrics, logger: logger}
}

// UpdateClientRankings runs a full recompute over all clients and persists the result.
func (s *RankingService) UpdateClientRankings(ctx context.Context) ([]models.ClientRanking, error) {
	start := time.Now()
	prices, err := s.repo.ListBuildingPrices(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load building prices")
	}

	rankings := RankClients(prices)
	if err := s.repo.BulkSetRanking(ctx, rankings); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store client rankings")
	}

	elapsed := time.Since(start)
	s.metrics.ObserveRankingRecompute(elapsed)
	s.logger.Info("client rankings updated", zap.Int("clients", len(rankings)), zap.Duration("duration", elapsed))
	return rankings, nil
}

// RankClients sums the active building prices per client and assigns rank 1 to the
// highest total. Clients without active buildings rank last with zero revenue; ties
// are ordered by client id.
func RankClients(prices []models.ClientBuildingPrice) []models.ClientRanking {
	totals := make(map[string]decimal.Decimal)
	for _, p := range prices {
		sum := totals[p.ClientID]
		if p.Price.Valid {
			sum = sum.Add(p.Price.Decimal)
		}
		totals[p.ClientID] = sum
	}

	rankings := make([]models.ClientRanking, 0, len(totals))
	for clientID, revenue := range totals {
		rankings = append(rankings, models.ClientRanking{ClientID: clientID, Revenue: revenue})
	}
	sort.Slice(rankings, func(i, j int) bool {
		if cmp := rankings[i].Revenue.Cmp(rankings[j].Revenue); cmp != 0 {
			return cmp > 0
		}
		return rankings[i].ClientID < rankings[j].ClientID
	})
	for i := range rankings {
		rankings[i].Rank = i + 1
	}
	return rankings
}
