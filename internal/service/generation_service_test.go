package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eleven-api/internal/models"
	appErrors "github.com/noah-isme/eleven-api/pkg/errors"
	"github.com/noah-isme/eleven-api/pkg/worker"
)

type stubEligibleBuildings struct {
	buildings []models.Building
	err       error
}

func (s *stubEligibleBuildings) ListEligibleForMaintenance(context.Context) ([]models.Building, error) {
	return s.buildings, s.err
}

func eligibleBuildings(n int) []models.Building {
	out := make([]models.Building, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, models.Building{
			ID: fmt.Sprintf("b-%02d", i), ClientID: "client-1", Address: fmt.Sprintf("Street %d", i),
			Price: decimal.NewFromInt(int64(100 * i)), IsActive: true, MaintenanceActive: true,
		})
	}
	return out
}

func newTestGenerationService(t *testing.T, buildings []models.Building, store *memWorkOrderStore) (*GenerationService, *recordingNotifier, *recordingInvalidator) {
	t.Helper()
	pool, err := worker.New("generation-test", 4, nil)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Release(0) })

	notifier := &recordingNotifier{}
	inv := &recordingInvalidator{}
	svc := NewGenerationService(GenerationServiceParams{
		Buildings: &stubEligibleBuildings{buildings: buildings},
		Orders:    store,
		Pool:      pool,
		Notifier:  notifier,
		KPIs:      inv,
		Metrics:   NewMetricsService(),
	})
	return svc, notifier, inv
}

func TestGenerationServiceIsIdempotent(t *testing.T) {
	buildings := eligibleBuildings(5)
	store := newMemWorkOrderStore(buildings...)
	svc, notifier, inv := newTestGenerationService(t, buildings, store)
	ctx := context.Background()

	first, err := svc.GenerateMonthly(ctx, 3, 2025)
	require.NoError(t, err)
	assert.Equal(t, 5, first.Created)
	assert.Equal(t, 0, first.Skipped)
	assert.Empty(t, first.Errors)

	second, err := svc.GenerateMonthly(ctx, 3, 2025)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 5, second.Skipped)

	orders, err := store.ListForPeriod(ctx, 3, 2025)
	require.NoError(t, err)
	assert.Len(t, orders, 5)
	for _, o := range orders {
		assert.Equal(t, models.WorkOrderStatusPending, o.Status)
		assert.False(t, o.IsInvoiced)
		assert.False(t, o.IsCollected)
	}

	// Ranking is recomputed after every run, even one that created nothing.
	assert.Len(t, notifier.reasons, 2)
	assert.Equal(t, []string{"2025-03", "2025-03"}, inv.periods)
	assert.Equal(t, uint64(5), svc.metrics.Snapshot().OrdersGenerated)
}

func TestGenerationServiceSnapshotsPriceAtCreation(t *testing.T) {
	buildings := eligibleBuildings(1)
	store := newMemWorkOrderStore(buildings...)
	svc, _, _ := newTestGenerationService(t, buildings, store)

	_, err := svc.GenerateMonthly(context.Background(), 4, 2025)
	require.NoError(t, err)
	buildings[0].Price = decimal.NewFromInt(999)

	orders, err := store.ListForPeriod(context.Background(), 4, 2025)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.True(t, decimal.NewFromInt(100).Equal(orders[0].PriceSnapshot))
}

func TestGenerationServiceContinuesOnError(t *testing.T) {
	buildings := eligibleBuildings(4)
	store := newMemWorkOrderStore(buildings...)
	store.existsErr["b-02"] = errors.New("connection reset")
	store.createErr["b-04"] = errors.New("deadlock detected")
	svc, notifier, _ := newTestGenerationService(t, buildings, store)

	summary, err := svc.GenerateMonthly(context.Background(), 5, 2025)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Created)
	require.Len(t, summary.Errors, 2)
	assert.Equal(t, "b-02", summary.Errors[0].BuildingID)
	assert.Equal(t, "b-04", summary.Errors[1].BuildingID)
	assert.Contains(t, summary.Errors[1].Message, "deadlock")
	assert.Len(t, notifier.reasons, 1)
}

func TestGenerationServiceSkipsExistingMaintenanceOnly(t *testing.T) {
	buildings := eligibleBuildings(2)
	store := newMemWorkOrderStore(buildings...)
	store.put(models.WorkOrder{BuildingID: "b-01", Month: 6, Year: 2025, Type: models.WorkOrderTypeMaintenance})
	store.put(models.WorkOrder{BuildingID: "b-02", Month: 6, Year: 2025, Type: models.WorkOrderTypeRepair})
	svc, _, _ := newTestGenerationService(t, buildings, store)

	summary, err := svc.GenerateMonthly(context.Background(), 6, 2025)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 1, summary.Skipped)
}

func TestGenerationServiceValidatesPeriod(t *testing.T) {
	svc, notifier, _ := newTestGenerationService(t, nil, newMemWorkOrderStore())
	for _, tc := range []struct{ month, year int }{{0, 2025}, {13, 2025}, {1, 2019}} {
		_, err := svc.GenerateMonthly(context.Background(), tc.month, tc.year)
		assert.True(t, appErrors.Is(err, appErrors.ErrValidation), "%d/%d", tc.month, tc.year)
	}
	assert.Empty(t, notifier.reasons)
}

func TestGenerationServiceBuildingLoadFailure(t *testing.T) {
	svc := NewGenerationService(GenerationServiceParams{
		Buildings: &stubEligibleBuildings{err: errors.New("db down")},
		Orders:    newMemWorkOrderStore(),
	})
	_, err := svc.GenerateMonthly(context.Background(), 1, 2025)
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
}

func TestGenerationServiceRunsWithoutPoolAndSurvivesCancellation(t *testing.T) {
	buildings := eligibleBuildings(3)
	store := newMemWorkOrderStore(buildings...)
	svc := NewGenerationService(GenerationServiceParams{
		Buildings: &stubEligibleBuildings{buildings: buildings},
		Orders:    store,
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := svc.GenerateMonthly(ctx, 7, 2025)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Created)
}
