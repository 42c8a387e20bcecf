package service

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eleven-api/internal/dto"
	"github.com/noah-isme/eleven-api/internal/models"
	appErrors "github.com/noah-isme/eleven-api/pkg/errors"
	"github.com/noah-isme/eleven-api/pkg/signing"
)

const directoryClientID = "9a4c3a52-1b1e-4a0a-8f55-2c7f4b6b8e31"

type memBuildingStore struct {
	buildings map[string]*models.Building
	history   []models.BuildingPriceHistory
	reasons   []*string
}

func newMemBuildingStore() *memBuildingStore {
	return &memBuildingStore{buildings: map[string]*models.Building{}}
}

func (m *memBuildingStore) Create(_ context.Context, b *models.Building, reason *string) error {
	b.ID = "b-" + b.Address
	stored := *b
	m.buildings[b.ID] = &stored
	m.history = append(m.history, models.BuildingPriceHistory{BuildingID: b.ID, NewPrice: b.Price, Reason: reason})
	return nil
}

func (m *memBuildingStore) GetByID(_ context.Context, id string) (*models.Building, error) {
	b, ok := m.buildings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *b
	return &copied, nil
}

func (m *memBuildingStore) List(_ context.Context, filter models.BuildingFilter) ([]models.Building, error) {
	var out []models.Building
	for _, b := range m.buildings {
		if filter.ClientID != "" && b.ClientID != filter.ClientID {
			continue
		}
		out = append(out, *b)
	}
	return out, nil
}

func (m *memBuildingStore) Update(_ context.Context, b *models.Building, change *models.BuildingPriceHistory) error {
	if _, ok := m.buildings[b.ID]; !ok {
		return sql.ErrNoRows
	}
	stored := *b
	m.buildings[b.ID] = &stored
	if change != nil {
		change.BuildingID = b.ID
		m.history = append(m.history, *change)
	}
	return nil
}

func (m *memBuildingStore) ListPriceHistory(_ context.Context, id string) ([]models.BuildingPriceHistory, error) {
	var out []models.BuildingPriceHistory
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].BuildingID == id {
			out = append(out, m.history[i])
		}
	}
	return out, nil
}

type memClientStore struct {
	clients      map[string]*models.Client
	deactivated  []string
	deactivateAt time.Time
	applyErr     error
}

func (m *memClientStore) Create(_ context.Context, c *models.Client) error {
	c.ID = "c-" + c.Name
	stored := *c
	m.clients[c.ID] = &stored
	return nil
}

func (m *memClientStore) GetByID(_ context.Context, id string) (*models.Client, error) {
	c, ok := m.clients[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *c
	return &copied, nil
}

func (m *memClientStore) List(context.Context, models.ClientFilter) ([]models.Client, error) {
	var out []models.Client
	for _, c := range m.clients {
		out = append(out, *c)
	}
	return out, nil
}

func (m *memClientStore) Update(_ context.Context, c *models.Client) error {
	if _, ok := m.clients[c.ID]; !ok {
		return sql.ErrNoRows
	}
	stored := *c
	m.clients[c.ID] = &stored
	return nil
}

func (m *memClientStore) ApplyDeactivation(_ context.Context, clientID string, buildingIDs []string, at time.Time) error {
	if m.applyErr != nil {
		return m.applyErr
	}
	m.clients[clientID].IsActive = false
	m.clients[clientID].DeletedAt = &at
	m.deactivated = buildingIDs
	m.deactivateAt = at
	return nil
}

func newDirectoryFixture() (*BuildingService, *memBuildingStore, *memClientStore, *recordingNotifier) {
	buildings := newMemBuildingStore()
	clients := &memClientStore{clients: map[string]*models.Client{directoryClientID: {ID: directoryClientID, Name: "Acme", IsActive: true}}}
	notifier := &recordingNotifier{}
	svc := NewBuildingService(BuildingServiceParams{
		Repo:          buildings,
		Clients:       clients,
		Notifier:      notifier,
		Signer:        signing.NewPortalLinkSigner("portal-secret", time.Hour),
		PortalBaseURL: "https://app.example.com/qr/",
	})
	svc.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc, buildings, clients, notifier
}

func TestBuildingServiceCreateRecordsOpeningPrice(t *testing.T) {
	svc, store, _, notifier := newDirectoryFixture()
	building, err := svc.Create(context.Background(), dto.CreateBuildingRequest{
		ClientID: directoryClientID, Address: "Main 1", Price: decimal.RequireFromString("120.00"),
	})
	require.NoError(t, err)
	assert.True(t, building.IsActive)
	assert.True(t, building.MaintenanceActive)
	require.Len(t, store.history, 1)
	assert.False(t, store.history[0].OldPrice.Valid)
	assert.Equal(t, []string{"building created"}, notifier.reasons)
}

func TestBuildingServiceCreateRejects(t *testing.T) {
	svc, _, _, notifier := newDirectoryFixture()
	_, err := svc.Create(context.Background(), dto.CreateBuildingRequest{ClientID: directoryClientID, Address: "Main 1", Price: decimal.NewFromInt(-1)})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.Create(context.Background(), dto.CreateBuildingRequest{ClientID: "1b4e28ba-2fa1-11d2-883f-0016d3cca427", Address: "Main 1", Price: decimal.NewFromInt(10)})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	assert.Empty(t, notifier.reasons)
}

func TestBuildingServiceUpdateAppendsPriceChange(t *testing.T) {
	svc, store, _, notifier := newDirectoryFixture()
	building, err := svc.Create(context.Background(), dto.CreateBuildingRequest{ClientID: directoryClientID, Address: "Main 2", Price: decimal.NewFromInt(100)})
	require.NoError(t, err)

	same := decimal.RequireFromString("100.00")
	_, err = svc.Update(context.Background(), building.ID, dto.UpdateBuildingRequest{Price: &same})
	require.NoError(t, err)
	assert.Len(t, store.history, 1)

	newPrice := decimal.NewFromInt(140)
	reason := "annual adjustment"
	updated, err := svc.Update(context.Background(), building.ID, dto.UpdateBuildingRequest{Price: &newPrice, PriceReason: &reason})
	require.NoError(t, err)
	assert.True(t, newPrice.Equal(updated.Price))

	history, err := svc.PriceHistory(context.Background(), building.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].OldPrice.Valid)
	assert.True(t, decimal.NewFromInt(100).Equal(history[0].OldPrice.Decimal))
	assert.Equal(t, "annual adjustment", *history[0].Reason)
	assert.Len(t, notifier.reasons, 3)
}

func TestBuildingServiceDeactivateKeepsRecord(t *testing.T) {
	svc, store, _, _ := newDirectoryFixture()
	building, err := svc.Create(context.Background(), dto.CreateBuildingRequest{ClientID: directoryClientID, Address: "Main 3", Price: decimal.NewFromInt(50)})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(context.Background(), building.ID))
	stored := store.buildings[building.ID]
	assert.False(t, stored.IsActive)
	require.NotNil(t, stored.DeletedAt)
	assert.False(t, stored.EligibleForMaintenance())

	assert.True(t, appErrors.Is(svc.Deactivate(context.Background(), "missing"), appErrors.ErrNotFound))
}

func TestBuildingServicePortalLinkVerifies(t *testing.T) {
	svc, _, _, _ := newDirectoryFixture()
	building, err := svc.Create(context.Background(), dto.CreateBuildingRequest{ClientID: directoryClientID, Address: "Main 4", Price: decimal.NewFromInt(50)})
	require.NoError(t, err)

	link, err := svc.PortalLink(context.Background(), building.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link.URL, "https://app.example.com/qr/"+url.PathEscape(building.ID)+"?token="), link.URL)

	parsed, err := url.Parse(link.URL)
	require.NoError(t, err)
	resolved, err := signing.NewPortalLinkSigner("portal-secret", time.Hour).Verify(parsed.Query().Get("token"))
	require.NoError(t, err)
	assert.Equal(t, building.ID, resolved)
}

func TestPlanClientDeactivation(t *testing.T) {
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	client := models.Client{ID: "c-1", IsActive: true}
	plan, err := PlanClientDeactivation(client, []models.Building{
		{ID: "b-1", ClientID: "c-1", IsActive: true},
		{ID: "b-2", ClientID: "c-1", IsActive: false},
		{ID: "b-3", ClientID: "c-2", IsActive: true},
	}, at)
	require.NoError(t, err)
	assert.Equal(t, []string{"b-1"}, plan.BuildingIDs)
	assert.Equal(t, at, plan.At)

	client.IsActive = false
	client.DeletedAt = &at
	_, err = PlanClientDeactivation(client, nil, at)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestClientServiceDeactivateCascadesToBuildings(t *testing.T) {
	buildingSvc, buildings, clients, notifier := newDirectoryFixture()
	ctx := context.Background()
	first, err := buildingSvc.Create(ctx, dto.CreateBuildingRequest{ClientID: directoryClientID, Address: "Main 5", Price: decimal.NewFromInt(10)})
	require.NoError(t, err)

	svc := NewClientService(ClientServiceParams{Repo: clients, Buildings: buildings, Notifier: notifier})
	result, err := svc.Deactivate(ctx, directoryClientID)
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID}, result.DeactivatedBuildings)
	assert.Equal(t, []string{first.ID}, clients.deactivated)
	assert.False(t, clients.clients[directoryClientID].IsActive)
	assert.Equal(t, "client deactivated", notifier.reasons[len(notifier.reasons)-1])

	_, err = svc.Deactivate(ctx, directoryClientID)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestClientServiceCRUD(t *testing.T) {
	clients := &memClientStore{clients: map[string]*models.Client{}}
	svc := NewClientService(ClientServiceParams{Repo: clients, Buildings: newMemBuildingStore()})
	ctx := context.Background()

	_, err := svc.Create(ctx, dto.CreateClientRequest{})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	created, err := svc.Create(ctx, dto.CreateClientRequest{Name: " Globex "})
	require.NoError(t, err)
	assert.Equal(t, "Globex", created.Name)
	assert.True(t, created.IsActive)

	email := "billing@globex.test"
	updated, err := svc.Update(ctx, created.ID, dto.UpdateClientRequest{Email: &email})
	require.NoError(t, err)
	assert.Equal(t, email, *updated.Email)

	_, err = svc.Get(ctx, "missing")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	clients.applyErr = errors.New("db down")
	_, err = svc.Deactivate(ctx, created.ID)
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
}

func TestClientServiceRecomputeRankings(t *testing.T) {
	store := &stubRankingStore{prices: []models.ClientBuildingPrice{price("c-1", "5")}}
	svc := NewClientService(ClientServiceParams{Ranking: NewRankingService(store, nil, nil)})
	rankings, err := svc.RecomputeRankings(context.Background())
	require.NoError(t, err)
	require.Len(t, rankings, 1)
	assert.Equal(t, 1, rankings[0].Rank)
}
