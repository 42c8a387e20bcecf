package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eleven-api/internal/models"
	appErrors "github.com/noah-isme/eleven-api/pkg/errors"
	"github.com/noah-isme/eleven-api/pkg/jobs"
)

type stubRankingStore struct {
	mu      sync.Mutex
	prices  []models.ClientBuildingPrice
	stored  []models.ClientRanking
	calls   int
	listErr error
}

func (s *stubRankingStore) ListBuildingPrices(context.Context) ([]models.ClientBuildingPrice, error) {
	return s.prices, s.listErr
}

func (s *stubRankingStore) BulkSetRanking(_ context.Context, rankings []models.ClientRanking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stored = rankings
	s.calls++
	return nil
}

func (s *stubRankingStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func price(clientID, value string) models.ClientBuildingPrice {
	if value == "" {
		return models.ClientBuildingPrice{ClientID: clientID}
	}
	return models.ClientBuildingPrice{ClientID: clientID, Price: decimal.NewNullDecimal(decimal.RequireFromString(value))}
}

func TestRankClientsSumsAndOrders(t *testing.T) {
	rankings := RankClients([]models.ClientBuildingPrice{
		price("c-b", "100"),
		price("c-a", "60"),
		price("c-a", "40"),
		price("c-c", "250.50"),
		price("c-d", ""),
	})
	require.Len(t, rankings, 4)

	assert.Equal(t, "c-c", rankings[0].ClientID)
	assert.Equal(t, 1, rankings[0].Rank)
	// c-a and c-b tie at 100; id order decides.
	assert.Equal(t, "c-a", rankings[1].ClientID)
	assert.Equal(t, "c-b", rankings[2].ClientID)
	assert.True(t, decimal.NewFromInt(100).Equal(rankings[1].Revenue))
	assert.Equal(t, "c-d", rankings[3].ClientID)
	assert.True(t, rankings[3].Revenue.IsZero())
	assert.Equal(t, 4, rankings[3].Rank)
}

func TestRankingServicePersists(t *testing.T) {
	store := &stubRankingStore{prices: []models.ClientBuildingPrice{price("c-1", "10"), price("c-2", "20")}}
	svc := NewRankingService(store, NewMetricsService(), nil)

	rankings, err := svc.UpdateClientRankings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, rankings, store.stored)
	assert.Equal(t, "c-2", store.stored[0].ClientID)
	assert.Equal(t, uint64(1), svc.metrics.Snapshot().RankingRecomputes)
}

func TestRankingServiceLoadFailure(t *testing.T) {
	store := &stubRankingStore{listErr: errors.New("db down")}
	_, err := NewRankingService(store, nil, nil).UpdateClientRankings(context.Background())
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
	assert.Zero(t, store.callCount())
}

func TestQueuedRankingNotifierRunsJob(t *testing.T) {
	store := &stubRankingStore{prices: []models.ClientBuildingPrice{price("c-1", "10")}}
	ranking := NewRankingService(store, nil, nil)
	queue := jobs.NewQueue("ranking", RankingJobHandler(ranking), jobs.QueueConfig{Workers: 1, BufferSize: 4})
	queue.Start(context.Background())
	defer queue.Stop()

	NewQueuedRankingNotifier(queue, nil).PortfolioChanged(context.Background(), "building created")

	require.Eventually(t, func() bool { return store.callCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestQueuedRankingNotifierSwallowsStoppedQueue(t *testing.T) {
	queue := jobs.NewQueue("ranking", func(context.Context, jobs.Job) error { return nil }, jobs.QueueConfig{})
	assert.NotPanics(t, func() {
		NewQueuedRankingNotifier(queue, nil).PortfolioChanged(context.Background(), "test")
	})
}

func TestSyncRankingNotifier(t *testing.T) {
	store := &stubRankingStore{}
	NewSyncRankingNotifier(NewRankingService(store, nil, nil), nil).PortfolioChanged(context.Background(), "generation")
	assert.Equal(t, 1, store.callCount())
}

func TestRankingJobHandlerRejectsUnknownType(t *testing.T) {
	handler := RankingJobHandler(NewRankingService(&stubRankingStore{}, nil, nil))
	assert.Error(t, handler(context.Background(), jobs.Job{Type: "other"}))
}

// recordingNotifier captures portfolio change events in tests.
type recordingNotifier struct {
	mu      sync.Mutex
	reasons []string
}

func (r *recordingNotifier) PortfolioChanged(_ context.Context, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons = append(r.reasons, reason)
}
