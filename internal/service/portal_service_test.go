package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eleven-api/internal/dto"
	"github.com/noah-isme/eleven-api/internal/models"
	appErrors "github.com/noah-isme/eleven-api/pkg/errors"
	"github.com/noah-isme/eleven-api/pkg/signing"
)

func newPortalFixture(t *testing.T) (*PortalService, *memWorkOrderStore, time.Time) {
	t.Helper()
	now := time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)
	store := newMemWorkOrderStore(testBuilding())
	workOrders, _ := newTestWorkOrderService(store, now)
	svc := NewPortalService(PortalServiceParams{
		Buildings:  &stubBuildingReader{buildings: store.buildings},
		Orders:     store,
		WorkOrders: workOrders,
		Verifier:   signing.NewPortalLinkSigner("portal-secret", time.Hour),
	})
	svc.now = func() time.Time { return now }
	return svc, store, now
}

func TestPortalServiceGroupsCurrentMonthOrders(t *testing.T) {
	svc, store, _ := newPortalFixture(t)
	store.put(models.WorkOrder{BuildingID: testBuildingID, Month: 3, Year: 2025, Type: models.WorkOrderTypeMaintenance})
	store.put(models.WorkOrder{BuildingID: testBuildingID, Month: 3, Year: 2025, Type: models.WorkOrderTypeRepair, Status: models.WorkOrderStatusInProgress})
	store.put(models.WorkOrder{BuildingID: testBuildingID, Month: 3, Year: 2025, Type: models.WorkOrderTypeInstallation, Status: models.WorkOrderStatusCompleted})
	store.put(models.WorkOrder{BuildingID: testBuildingID, Month: 2, Year: 2025, Type: models.WorkOrderTypeMaintenance})

	portal, err := svc.Portal(context.Background(), testBuildingID)
	require.NoError(t, err)
	assert.Equal(t, 3, portal.CurrentMonth)
	assert.Equal(t, "Acme", portal.Building.ClientName)
	require.Len(t, portal.WorkOrders.Pending, 1)
	require.Len(t, portal.WorkOrders.InProgress, 1)
	assert.Equal(t, models.WorkOrderTypeRepair, portal.WorkOrders.InProgress[0].Type)
}

func TestPortalServiceCurrentMonthIsUTC(t *testing.T) {
	svc, store, _ := newPortalFixture(t)
	store.put(models.WorkOrder{BuildingID: testBuildingID, Month: 3, Year: 2025, Type: models.WorkOrderTypeMaintenance})
	ahead := time.FixedZone("UTC+5", 5*60*60)
	svc.now = func() time.Time { return time.Date(2025, 4, 1, 2, 0, 0, 0, ahead) }

	portal, err := svc.Portal(context.Background(), testBuildingID)
	require.NoError(t, err)
	assert.Equal(t, 3, portal.CurrentMonth)
	assert.Equal(t, 2025, portal.CurrentYear)
	assert.Len(t, portal.WorkOrders.Pending, 1)
}

func TestPortalServiceStartAndComplete(t *testing.T) {
	svc, store, now := newPortalFixture(t)
	order := store.put(models.WorkOrder{BuildingID: testBuildingID, Month: 3, Year: 2025, Type: models.WorkOrderTypeMaintenance})
	ctx := context.Background()

	started, err := svc.Start(ctx, testBuildingID, order.ID, "tech-1")
	require.NoError(t, err)
	assert.Equal(t, models.WorkOrderStatusInProgress, started.WorkOrder.Status)
	assert.Equal(t, now, *started.WorkOrder.StartedAt)

	_, err = svc.Start(ctx, testBuildingID, order.ID, "tech-1")
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))

	notes := "  cables replaced "
	completed, err := svc.Complete(ctx, testBuildingID, order.ID, "tech-1", dto.CompletePortalRequest{Observations: &notes})
	require.NoError(t, err)
	assert.Equal(t, models.WorkOrderStatusCompleted, completed.WorkOrder.Status)
	assert.Equal(t, "cables replaced", *completed.WorkOrder.Observations)
	assert.Equal(t, now, *completed.WorkOrder.ExecutedAt)

	history, _ := store.ListStatusHistory(ctx, order.ID)
	require.Len(t, history, 2)
	assert.Equal(t, "tech-1", *history[0].ChangedBy)
}

func TestPortalServiceCompleteRequiresInProgress(t *testing.T) {
	svc, store, _ := newPortalFixture(t)
	order := store.put(models.WorkOrder{BuildingID: testBuildingID, Month: 3, Year: 2025, Type: models.WorkOrderTypeMaintenance})

	_, err := svc.Complete(context.Background(), testBuildingID, order.ID, "tech-1", dto.CompletePortalRequest{})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))
}

func TestPortalServiceRejectsForeignOrder(t *testing.T) {
	svc, store, _ := newPortalFixture(t)
	order := store.put(models.WorkOrder{BuildingID: "another-building", Month: 3, Year: 2025, Type: models.WorkOrderTypeMaintenance})

	_, err := svc.Start(context.Background(), testBuildingID, order.ID, "tech-1")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = svc.Portal(context.Background(), "missing")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestPortalServiceHistoryPaging(t *testing.T) {
	svc, store, _ := newPortalFixture(t)
	for month := 1; month <= 5; month++ {
		store.put(models.WorkOrder{BuildingID: testBuildingID, Month: month, Year: 2025, Type: models.WorkOrderTypeMaintenance})
	}

	page, err := svc.History(context.Background(), testBuildingID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, "Torre Norte", page.BuildingName)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 5, page.Total)
	assert.True(t, page.HasMore)

	last, err := svc.History(context.Background(), testBuildingID, 2, 4)
	require.NoError(t, err)
	assert.Len(t, last.Items, 1)
	assert.False(t, last.HasMore)
}

func TestPortalServicePortalByToken(t *testing.T) {
	svc, _, _ := newPortalFixture(t)
	token, _, err := signing.NewPortalLinkSigner("portal-secret", time.Hour).Generate(testBuildingID)
	require.NoError(t, err)

	portal, err := svc.PortalByToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, testBuildingID, portal.Building.ID)

	_, err = svc.PortalByToken(context.Background(), token+"x")
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}
