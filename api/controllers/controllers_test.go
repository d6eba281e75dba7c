package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mochkris/procurement-backend/api/middleware"
	"github.com/mochkris/procurement-backend/internal/inventory"
	"github.com/mochkris/procurement-backend/internal/purchaseorders"
	"github.com/mochkris/procurement-backend/internal/receiving"
	"github.com/mochkris/procurement-backend/internal/requisitions"
	"github.com/mochkris/procurement-backend/pkg/config"
	"github.com/mochkris/procurement-backend/pkg/db/models"
	"github.com/mochkris/procurement-backend/pkg/enums"
	pkgerrors "github.com/mochkris/procurement-backend/pkg/errors"
	"github.com/mochkris/procurement-backend/pkg/logger"
	"github.com/mochkris/procurement-backend/pkg/pagination"
	"github.com/mochkris/procurement-backend/pkg/types"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

func newRequest(method, target, body string, actor *types.Actor, params map[string]string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	ctx := req.Context()
	if actor != nil {
		ctx = middleware.WithActor(ctx, *actor)
	}
	routeCtx := chi.NewRouteContext()
	for k, v := range params {
		routeCtx.URLParams.Add(k, v)
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, routeCtx)
	return req.WithContext(ctx)
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestRequisitionCreate(t *testing.T) {
	logg := testLogger()
	dept := types.Actor{UserID: uuid.New(), Role: enums.ActorRoleDepartment}

	t.Run("missing actor", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RequisitionCreate(&stubRequisitions{}, logg).ServeHTTP(rec, newRequest(http.MethodPost, "/api/v1/requisitions", `{}`, nil, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("validation failure", func(t *testing.T) {
		rec := httptest.NewRecorder()
		body := `{"item_description":"Paper","quantity":0,"product_id":1}`
		RequisitionCreate(&stubRequisitions{}, logg).ServeHTTP(rec, newRequest(http.MethodPost, "/api/v1/requisitions", body, &dept, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, string(pkgerrors.CodeValidation), errorCode(t, rec))
	})

	t.Run("created", func(t *testing.T) {
		var got requisitions.CreateInput
		stub := &stubRequisitions{createFn: func(_ context.Context, actor types.Actor, input requisitions.CreateInput) (*requisitions.RequisitionDTO, error) {
			assert.Equal(t, dept, actor)
			got = input
			return &requisitions.RequisitionDTO{ID: uuid.New(), Status: enums.RequisitionStatusPendingApproval}, nil
		}}
		body := `{"item_description":"  Paper ","quantity":5,"product_id":1,"supplier":" Acme "}`
		rec := httptest.NewRecorder()
		RequisitionCreate(stub, logg).ServeHTTP(rec, newRequest(http.MethodPost, "/api/v1/requisitions", body, &dept, nil))

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "Paper", got.ItemDescription)
		assert.Equal(t, 5, got.Quantity)
		require.NotNil(t, got.Supplier)
		assert.Equal(t, "Acme", *got.Supplier)
	})
}

func TestRequisitionApprovalRequiresDecision(t *testing.T) {
	logg := testLogger()
	vp := types.Actor{UserID: uuid.New(), Role: enums.ActorRoleVP}
	id := uuid.New()

	rec := httptest.NewRecorder()
	RequisitionApproval(&stubRequisitions{}, logg).ServeHTTP(rec, newRequest(http.MethodPost, "/", `{}`, &vp, map[string]string{"id": id.String()}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var decided *bool
	stub := &stubRequisitions{approveFn: func(_ context.Context, _ types.Actor, gotID uuid.UUID, approved bool) (*requisitions.RequisitionDTO, error) {
		assert.Equal(t, id, gotID)
		decided = &approved
		return &requisitions.RequisitionDTO{ID: gotID, Status: enums.RequisitionStatusRejected}, nil
	}}
	rec = httptest.NewRecorder()
	RequisitionApproval(stub, logg).ServeHTTP(rec, newRequest(http.MethodPost, "/", `{"approved":false}`, &vp, map[string]string{"id": id.String()}))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, decided)
	assert.False(t, *decided)
}

func TestRequisitionFulfillmentMapsStateConflict(t *testing.T) {
	custodian := types.Actor{UserID: uuid.New(), Role: enums.ActorRoleCustodian}
	stub := &stubRequisitions{fulfillFn: func(context.Context, types.Actor, uuid.UUID) (*requisitions.FulfillmentResult, error) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "requisition not approved")
	}}

	rec := httptest.NewRecorder()
	RequisitionFulfillment(stub, testLogger()).ServeHTTP(rec, newRequest(http.MethodPost, "/", "", &custodian, map[string]string{"id": uuid.NewString()}))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeStateConflict), errorCode(t, rec))
}

func TestRequisitionListParsesFilters(t *testing.T) {
	var got requisitions.ListInput
	stub := &stubRequisitions{listFn: func(_ context.Context, input requisitions.ListInput) (*requisitions.ListResult, error) {
		got = input
		return &requisitions.ListResult{}, nil
	}}

	rec := httptest.NewRecorder()
	RequisitionList(stub, testLogger()).ServeHTTP(rec, newRequest(http.MethodGet, "/api/v1/requisitions?status=approved&product_id=7&auto=true&limit=5", "", nil, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "approved", got.Status)
	assert.Equal(t, int64(7), got.ProductID)
	require.NotNil(t, got.Auto)
	assert.True(t, *got.Auto)
	assert.Equal(t, 5, got.Limit)

	rec = httptest.NewRecorder()
	RequisitionList(stub, testLogger()).ServeHTTP(rec, newRequest(http.MethodGet, "/api/v1/requisitions?product_id=abc", "", nil, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPurchaseOrderReceipt(t *testing.T) {
	logg := testLogger()
	custodian := types.Actor{UserID: uuid.New(), Role: enums.ActorRoleCustodian}
	id := uuid.New()

	rec := httptest.NewRecorder()
	PurchaseOrderReceipt(&stubReceiving{}, logg).ServeHTTP(rec, newRequest(http.MethodPost, "/", `{}`, &custodian, map[string]string{"id": id.String()}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	PurchaseOrderReceipt(&stubReceiving{}, logg).ServeHTTP(rec, newRequest(http.MethodPost, "/", `{"damaged":false}`, &custodian, map[string]string{"id": "nope"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	stub := &stubReceiving{receiveFn: func(_ context.Context, _ types.Actor, poID uuid.UUID, damaged bool) (*receiving.Result, error) {
		assert.Equal(t, id, poID)
		assert.True(t, damaged)
		return &receiving.Result{
			PurchaseOrder: purchaseorders.PurchaseOrderDTO{ID: poID, Status: enums.PurchaseOrderStatusReturnedToSupplier},
			Damaged:       true,
		}, nil
	}}
	rec = httptest.NewRecorder()
	PurchaseOrderReceipt(stub, logg).ServeHTTP(rec, newRequest(http.MethodPost, "/", `{"damaged":true}`, &custodian, map[string]string{"id": id.String()}))
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Data receiving.Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, enums.PurchaseOrderStatusReturnedToSupplier, payload.Data.PurchaseOrder.Status)
}

func TestInventoryAdjust(t *testing.T) {
	logg := testLogger()
	custodian := types.Actor{UserID: uuid.New(), Role: enums.ActorRoleCustodian}

	rec := httptest.NewRecorder()
	InventoryAdjust(&stubInventory{}, logg).ServeHTTP(rec, newRequest(http.MethodPost, "/", `{"delta":3}`, &custodian, map[string]string{"productId": "0"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	InventoryAdjust(&stubInventory{}, logg).ServeHTTP(rec, newRequest(http.MethodPost, "/", `{"delta":3,"type":"STOLEN"}`, &custodian, map[string]string{"productId": "2"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var got inventory.AdjustInput
	stub := &stubInventory{adjustFn: func(_ context.Context, _ types.Actor, input inventory.AdjustInput) (*inventory.ItemDTO, error) {
		got = input
		return &inventory.ItemDTO{ProductID: input.ProductID, Quantity: 5}, nil
	}}
	rec = httptest.NewRecorder()
	InventoryAdjust(stub, logg).ServeHTTP(rec, newRequest(http.MethodPost, "/", `{"delta":-2}`, &custodian, map[string]string{"productId": "2"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(2), got.ProductID)
	assert.Equal(t, -2, got.Delta)
	assert.Equal(t, enums.InventoryTransactionAdjusted, got.Type)
}

func TestHealthReadyReportsDependencyFailure(t *testing.T) {
	cfg := testConfig()
	rec := httptest.NewRecorder()
	HealthReady(cfg, testLogger(), pingFunc(func(context.Context) error { return nil }), pingFunc(func(context.Context) error { return assert.AnError })).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	HealthReady(cfg, testLogger(), pingFunc(func(context.Context) error { return nil }), nil).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get(envHeader))
}

func testConfig() *config.Config {
	return &config.Config{App: config.AppConfig{Env: "test"}}
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type stubRequisitions struct {
	createFn  func(context.Context, types.Actor, requisitions.CreateInput) (*requisitions.RequisitionDTO, error)
	approveFn func(context.Context, types.Actor, uuid.UUID, bool) (*requisitions.RequisitionDTO, error)
	fulfillFn func(context.Context, types.Actor, uuid.UUID) (*requisitions.FulfillmentResult, error)
	listFn    func(context.Context, requisitions.ListInput) (*requisitions.ListResult, error)
}

func (s *stubRequisitions) Create(ctx context.Context, actor types.Actor, input requisitions.CreateInput) (*requisitions.RequisitionDTO, error) {
	if s.createFn == nil {
		panic("unexpected Create")
	}
	return s.createFn(ctx, actor, input)
}

func (s *stubRequisitions) Approve(ctx context.Context, actor types.Actor, id uuid.UUID, approved bool) (*requisitions.RequisitionDTO, error) {
	if s.approveFn == nil {
		panic("unexpected Approve")
	}
	return s.approveFn(ctx, actor, id, approved)
}

func (s *stubRequisitions) FulfillmentCheck(ctx context.Context, actor types.Actor, id uuid.UUID) (*requisitions.FulfillmentResult, error) {
	if s.fulfillFn == nil {
		panic("unexpected FulfillmentCheck")
	}
	return s.fulfillFn(ctx, actor, id)
}

func (s *stubRequisitions) Get(context.Context, uuid.UUID) (*requisitions.RequisitionDTO, error) {
	panic("unexpected Get")
}

func (s *stubRequisitions) List(ctx context.Context, input requisitions.ListInput) (*requisitions.ListResult, error) {
	if s.listFn == nil {
		panic("unexpected List")
	}
	return s.listFn(ctx, input)
}

func (s *stubRequisitions) Load(context.Context, *gorm.DB, uuid.UUID) (*models.Requisition, error) {
	panic("unexpected Load")
}

func (s *stubRequisitions) MarkPOGenerated(context.Context, *gorm.DB, types.Actor, uuid.UUID) error {
	panic("unexpected MarkPOGenerated")
}

func (s *stubRequisitions) MarkCompleted(context.Context, *gorm.DB, types.Actor, uuid.UUID) error {
	panic("unexpected MarkCompleted")
}

func (s *stubRequisitions) ReopenForPurchasing(context.Context, *gorm.DB, types.Actor, uuid.UUID) error {
	panic("unexpected ReopenForPurchasing")
}

func (s *stubRequisitions) RaiseAutoRestock(context.Context, *gorm.DB, models.InventoryItem, *uuid.UUID) (*models.Requisition, error) {
	panic("unexpected RaiseAutoRestock")
}

func (s *stubRequisitions) HasOpenAutoRequisition(context.Context, *gorm.DB, int64) (bool, error) {
	panic("unexpected HasOpenAutoRequisition")
}

type stubReceiving struct {
	receiveFn func(context.Context, types.Actor, uuid.UUID, bool) (*receiving.Result, error)
}

func (s *stubReceiving) Receive(ctx context.Context, actor types.Actor, poID uuid.UUID, damaged bool) (*receiving.Result, error) {
	if s.receiveFn == nil {
		panic("unexpected Receive")
	}
	return s.receiveFn(ctx, actor, poID, damaged)
}

func (s *stubReceiving) CompleteDirectPurchase(context.Context, types.Actor, uuid.UUID) (*receiving.Result, error) {
	panic("unexpected CompleteDirectPurchase")
}

type stubInventory struct {
	adjustFn func(context.Context, types.Actor, inventory.AdjustInput) (*inventory.ItemDTO, error)
}

func (s *stubInventory) Get(context.Context, int64) (*inventory.ItemDTO, error) {
	panic("unexpected Get")
}

func (s *stubInventory) List(context.Context, pagination.Params) (*inventory.ListResult, error) {
	panic("unexpected List")
}

func (s *stubInventory) Add(context.Context, types.Actor, inventory.AddInput) (*inventory.ItemDTO, error) {
	panic("unexpected Add")
}

func (s *stubInventory) Provision(context.Context, types.Actor, inventory.ProvisionInput) (*inventory.ItemDTO, error) {
	panic("unexpected Provision")
}

func (s *stubInventory) Upsert(context.Context, types.Actor, inventory.UpsertInput) (*inventory.ItemDTO, error) {
	panic("unexpected Upsert")
}

func (s *stubInventory) Update(context.Context, int64, inventory.UpdateInput) (*inventory.ItemDTO, error) {
	panic("unexpected Update")
}

func (s *stubInventory) Delete(context.Context, int64) error {
	panic("unexpected Delete")
}

func (s *stubInventory) Adjust(ctx context.Context, actor types.Actor, input inventory.AdjustInput) (*inventory.ItemDTO, error) {
	if s.adjustFn == nil {
		panic("unexpected Adjust")
	}
	return s.adjustFn(ctx, actor, input)
}

func (s *stubInventory) ListLowStock(context.Context) ([]inventory.ItemDTO, error) {
	panic("unexpected ListLowStock")
}

func (s *stubInventory) ListTransactions(context.Context, int64, pagination.Params) (*inventory.TransactionListResult, error) {
	panic("unexpected ListTransactions")
}

func (s *stubInventory) Load(context.Context, *gorm.DB, int64) (*models.InventoryItem, error) {
	panic("unexpected Load")
}

func (s *stubInventory) ApplyDelta(context.Context, *gorm.DB, inventory.AdjustInput) (*models.InventoryItem, error) {
	panic("unexpected ApplyDelta")
}
