package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eleven-api/internal/dto"
	"github.com/noah-isme/eleven-api/internal/middleware"
	"github.com/noah-isme/eleven-api/internal/models"
	appErrors "github.com/noah-isme/eleven-api/pkg/errors"
)

type responseEnvelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func newTestContext(method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		c.Request.Header.Set("Content-Type", "application/json")
	}
	return c, rec
}

func withActor(c *gin.Context, id string, role models.Role) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{
		Role:             role,
		RegisteredClaims: jwt.RegisteredClaims{Subject: id},
	})
}

type fakeWorkOrderSrv struct {
	lastQuery  dto.WorkOrderQuery
	lastUpdate dto.UpdateWorkOrderRequest
	lastActor  string
	order      *models.WorkOrderDetail
	err        error
}

func (f *fakeWorkOrderSrv) Create(context.Context, dto.CreateWorkOrderRequest) (*models.WorkOrderDetail, error) {
	return f.order, f.err
}

func (f *fakeWorkOrderSrv) List(_ context.Context, query dto.WorkOrderQuery) ([]models.WorkOrderDetail, error) {
	f.lastQuery = query
	if f.err != nil {
		return nil, f.err
	}
	return []models.WorkOrderDetail{*f.order}, nil
}

func (f *fakeWorkOrderSrv) Get(context.Context, string) (*models.WorkOrderDetail, error) {
	return f.order, f.err
}

func (f *fakeWorkOrderSrv) Update(_ context.Context, _ string, req dto.UpdateWorkOrderRequest, actorID string) (*models.WorkOrderDetail, error) {
	f.lastUpdate = req
	f.lastActor = actorID
	return f.order, f.err
}

func (f *fakeWorkOrderSrv) Delete(context.Context, string) error { return f.err }

func (f *fakeWorkOrderSrv) StatusHistory(context.Context, string) ([]models.WorkOrderStatusHistory, error) {
	return nil, f.err
}

type fakeGenerationSrv struct {
	month, year int
}

func (f *fakeGenerationSrv) GenerateMonthly(_ context.Context, month, year int) (*dto.GenerationSummary, error) {
	f.month, f.year = month, year
	return &dto.GenerationSummary{Month: month, Year: year, Created: 3, Errors: []dto.GenerationError{}}, nil
}

type fakeKPISrv struct {
	hit bool
}

func (f *fakeKPISrv) DashboardKPIs(_ context.Context, month, year int) (*dto.DashboardKPIs, bool, error) {
	return &dto.DashboardKPIs{Month: month, Year: year, WorkOrders: dto.WorkOrderKPIs{Total: 4, Completed: 2, CompletionRate: 50}}, f.hit, nil
}

type fakeExportSrv struct {
	format dto.ExportFormat
}

func (f *fakeExportSrv) Export(_ context.Context, month, year int, format dto.ExportFormat) (*dto.ExportFile, error) {
	f.format = format
	return &dto.ExportFile{Filename: "work-orders-2025-03.csv", ContentType: "text/csv", Body: []byte("Building\n")}, nil
}

func sampleDetail() *models.WorkOrderDetail {
	return &models.WorkOrderDetail{
		WorkOrder: models.WorkOrder{
			ID:            "wo-1",
			BuildingID:    "b-1",
			Month:         3,
			Year:          2025,
			Type:          models.WorkOrderTypeMaintenance,
			Status:        models.WorkOrderStatusPending,
			PriceSnapshot: decimal.NewFromInt(150),
		},
	}
}

func TestWorkOrderHandlerListParsesFilters(t *testing.T) {
	srv := &fakeWorkOrderSrv{order: sampleDetail()}
	handler := NewWorkOrderHandler(WorkOrderHandlerParams{Orders: srv})

	c, rec := newTestContext(http.MethodGet, "/work-orders?month=3&year=2025&status=pending,%20in_progress&type=repair&clientId=c-1", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, srv.lastQuery.Month)
	assert.Equal(t, 2025, srv.lastQuery.Year)
	assert.Equal(t, "c-1", srv.lastQuery.ClientID)
	assert.Equal(t, models.WorkOrderTypeRepair, srv.lastQuery.Type)
	assert.Equal(t, []models.WorkOrderStatus{models.WorkOrderStatusPending, models.WorkOrderStatusInProgress}, srv.lastQuery.Status)
	envelope := decodeEnvelope(t, rec)
	assert.EqualValues(t, 1, envelope.Meta["count"])
}

func TestWorkOrderHandlerListRejectsNonNumericMonth(t *testing.T) {
	handler := NewWorkOrderHandler(WorkOrderHandlerParams{Orders: &fakeWorkOrderSrv{order: sampleDetail()}})

	c, rec := newTestContext(http.MethodGet, "/work-orders?month=march", nil)
	handler.List(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	envelope := decodeEnvelope(t, rec)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrValidation.Code, envelope.Error.Code)
}

func TestWorkOrderHandlerUpdatePassesActor(t *testing.T) {
	srv := &fakeWorkOrderSrv{order: sampleDetail()}
	handler := NewWorkOrderHandler(WorkOrderHandlerParams{Orders: srv})

	c, rec := newTestContext(http.MethodPatch, "/work-orders/wo-1", []byte(`{"operationalStatus":"in_progress","notes":"on site"}`))
	c.Params = gin.Params{{Key: "id", Value: "wo-1"}}
	withActor(c, "user-7", models.RoleSupport)
	handler.Update(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-7", srv.lastActor)
	require.NotNil(t, srv.lastUpdate.OperationalStatus)
	assert.Equal(t, models.WorkOrderStatusInProgress, *srv.lastUpdate.OperationalStatus)
	assert.Equal(t, "on site", srv.lastUpdate.Notes)
}

func TestWorkOrderHandlerUpdateSurfacesInvalidTransition(t *testing.T) {
	srv := &fakeWorkOrderSrv{err: appErrors.Clone(appErrors.ErrInvalidTransition, "cannot move from completed to pending")}
	handler := NewWorkOrderHandler(WorkOrderHandlerParams{Orders: srv})

	c, rec := newTestContext(http.MethodPatch, "/work-orders/wo-1", []byte(`{"operationalStatus":"pending"}`))
	handler.Update(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	envelope := decodeEnvelope(t, rec)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "INVALID_TRANSITION", envelope.Error.Code)
}

func TestWorkOrderHandlerGenerateMonthly(t *testing.T) {
	gen := &fakeGenerationSrv{}
	handler := NewWorkOrderHandler(WorkOrderHandlerParams{Generation: gen})

	c, rec := newTestContext(http.MethodPost, "/work-orders/generate-monthly", []byte(`{"month":4,"year":2025}`))
	withActor(c, "admin-1", models.RoleAdmin)
	handler.GenerateMonthly(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4, gen.month)
	assert.Equal(t, 2025, gen.year)
	var summary dto.GenerationSummary
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &summary))
	assert.Equal(t, 3, summary.Created)
}

func TestWorkOrderHandlerGenerateMonthlyRejectsMalformedBody(t *testing.T) {
	handler := NewWorkOrderHandler(WorkOrderHandlerParams{Generation: &fakeGenerationSrv{}})

	c, rec := newTestContext(http.MethodPost, "/work-orders/generate-monthly", []byte(`{"month":"april"}`))
	handler.GenerateMonthly(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWorkOrderHandlerDashboardKPIsRequiresPeriod(t *testing.T) {
	handler := NewWorkOrderHandler(WorkOrderHandlerParams{KPIs: &fakeKPISrv{}})

	c, rec := newTestContext(http.MethodGet, "/work-orders/dashboard-kpis?month=3", nil)
	handler.DashboardKPIs(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWorkOrderHandlerDashboardKPIsReportsCacheHit(t *testing.T) {
	handler := NewWorkOrderHandler(WorkOrderHandlerParams{KPIs: &fakeKPISrv{hit: true}})

	c, rec := newTestContext(http.MethodGet, "/work-orders/dashboard-kpis?month=3&year=2025", nil)
	handler.DashboardKPIs(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true", rec.Header().Get(middleware.CacheHitHeader))
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	var kpis dto.DashboardKPIs
	require.NoError(t, json.Unmarshal(envelope.Data, &kpis))
	assert.Equal(t, 4, kpis.WorkOrders.Total)
	assert.Equal(t, 50.0, kpis.WorkOrders.CompletionRate)
}

func TestWorkOrderHandlerExportStreamsAttachment(t *testing.T) {
	exports := &fakeExportSrv{}
	handler := NewWorkOrderHandler(WorkOrderHandlerParams{Exports: exports})

	c, rec := newTestContext(http.MethodGet, "/work-orders/export?month=3&year=2025&format=CSV", nil)
	handler.Export(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, dto.ExportFormatCSV, exports.format)
	assert.Equal(t, `attachment; filename="work-orders-2025-03.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "Building\n", rec.Body.String())
}

func TestWorkOrderHandlerDeleteNotFound(t *testing.T) {
	handler := NewWorkOrderHandler(WorkOrderHandlerParams{Orders: &fakeWorkOrderSrv{err: appErrors.Clone(appErrors.ErrNotFound, "work order not found")}})

	c, rec := newTestContext(http.MethodDelete, "/work-orders/missing", nil)
	handler.Delete(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
