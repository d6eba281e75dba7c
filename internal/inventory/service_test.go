package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mochkris/procurement-backend/pkg/config"
	"github.com/mochkris/procurement-backend/pkg/db"
	"github.com/mochkris/procurement-backend/pkg/db/dbtest"
	"github.com/mochkris/procurement-backend/pkg/db/models"
	"github.com/mochkris/procurement-backend/pkg/enums"
	pkgerrors "github.com/mochkris/procurement-backend/pkg/errors"
	"github.com/mochkris/procurement-backend/pkg/outbox"
	"github.com/mochkris/procurement-backend/pkg/pagination"
	"github.com/mochkris/procurement-backend/pkg/types"
)

var testDefaults = config.WorkflowConfig{
	DocumentPageSize:        10,
	DefaultUnit:             "pcs",
	DefaultRestockThreshold: 3,
	DefaultRestockQuantity:  10,
}

func newTestService(t *testing.T) (Service, *db.Client) {
	t.Helper()
	client := dbtest.Client(t)
	conn := client.DB()
	svc, err := NewService(NewRepository(conn), client, outbox.NewService(outbox.NewRepository(conn), nil), nil, nil, testDefaults)
	require.NoError(t, err)
	return svc, client
}

func custodian() types.Actor {
	return types.Actor{UserID: uuid.New(), Role: enums.ActorRoleCustodian}
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code())
}

func countEvents(t *testing.T, conn *gorm.DB, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&count).Error)
	return count
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil, nil, nil, nil, testDefaults)
	require.Error(t, err)
}

func TestProvisionAppliesDefaults(t *testing.T) {
	svc, _ := newTestService(t)

	item, err := svc.Provision(context.Background(), custodian(), ProvisionInput{Name: "Wood Glue"})
	require.NoError(t, err)
	require.Equal(t, "Wood Glue", item.Name)
	require.Equal(t, 0, item.Quantity)
	require.Equal(t, "pcs", item.Unit)
	require.Equal(t, 3, item.RestockThreshold)
	require.Equal(t, 10, item.RestockQuantity)
	require.True(t, item.LowStock)
}

func TestAddRecordsOpeningStock(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()

	item, err := svc.Add(ctx, custodian(), AddInput{Name: "Nails", Quantity: 10, Unit: "box", Price: decimal.RequireFromString("2.50")})
	require.NoError(t, err)
	require.Equal(t, 10, item.Quantity)
	require.True(t, item.Price.Equal(decimal.RequireFromString("2.5")))

	page, err := svc.ListTransactions(ctx, item.ProductID, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Transactions, 1)
	require.Equal(t, 10, page.Transactions[0].ChangeQty)
	require.Equal(t, enums.InventoryTransactionAdjusted, page.Transactions[0].Type)
	require.EqualValues(t, 1, countEvents(t, client.DB(), enums.EventInventoryAdjusted))
}

func TestAddValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, custodian(), AddInput{Name: " "})
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = svc.Add(ctx, custodian(), AddInput{Name: "Tape", Quantity: -1})
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = svc.Add(ctx, custodian(), AddInput{Name: "Tape", Price: decimal.NewFromInt(-1)})
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = svc.Add(ctx, custodian(), AddInput{Name: "Tape", RestockThreshold: -2})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestApplyDeltaRejectsNegativeStock(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()

	item, err := svc.Add(ctx, custodian(), AddInput{Name: "Paint", Quantity: 2})
	require.NoError(t, err)

	_, err = svc.Adjust(ctx, custodian(), AdjustInput{ProductID: item.ProductID, Delta: -3, Type: enums.InventoryTransactionDeducted})
	requireCode(t, err, pkgerrors.CodeInsufficient)

	reloaded, err := svc.Get(ctx, item.ProductID)
	require.NoError(t, err)
	require.Equal(t, 2, reloaded.Quantity)

	var ledger int64
	require.NoError(t, client.DB().Model(&models.InventoryTransaction{}).Count(&ledger).Error)
	require.EqualValues(t, 1, ledger)
}

func TestApplyDeltaInsideCallerTransaction(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()

	item, err := svc.Add(ctx, custodian(), AddInput{Name: "Sandpaper", Quantity: 5, RestockThreshold: 3})
	require.NoError(t, err)

	relatedID := uuid.New()
	err = client.WithTx(ctx, func(tx *gorm.DB) error {
		updated, err := svc.ApplyDelta(ctx, tx, AdjustInput{
			ProductID: item.ProductID,
			Delta:     -4,
			Type:      enums.InventoryTransactionDeducted,
			RelatedID: &relatedID,
		})
		require.NoError(t, err)
		require.Equal(t, 1, updated.Quantity)
		return nil
	})
	require.NoError(t, err)

	require.EqualValues(t, 1, countEvents(t, client.DB(), enums.EventInventoryLowStock))

	page, err := svc.ListTransactions(ctx, item.ProductID, pagination.Params{Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Transactions, 1)
	require.NotEmpty(t, page.NextCursor)
	require.Equal(t, -4, page.Transactions[0].ChangeQty)
	require.Equal(t, 1, page.Transactions[0].ResultingQty)
	require.Equal(t, relatedID, *page.Transactions[0].RelatedID)
}

func TestApplyDeltaRollsBackWithCaller(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()

	item, err := svc.Add(ctx, custodian(), AddInput{Name: "Hinges", Quantity: 4})
	require.NoError(t, err)

	err = client.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := svc.ApplyDelta(ctx, tx, AdjustInput{ProductID: item.ProductID, Delta: 6, Type: enums.InventoryTransactionReceived}); err != nil {
			return err
		}
		return pkgerrors.New(pkgerrors.CodeStateConflict, "abort")
	})
	requireCode(t, err, pkgerrors.CodeStateConflict)

	reloaded, err := svc.Get(ctx, item.ProductID)
	require.NoError(t, err)
	require.Equal(t, 4, reloaded.Quantity)
}

func TestApplyDeltaUnknownProduct(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := svc.ApplyDelta(ctx, tx, AdjustInput{ProductID: 404, Delta: 1, Type: enums.InventoryTransactionReceived})
		return err
	})
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestUpsertBooksQuantityDifference(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()

	item, err := svc.Add(ctx, custodian(), AddInput{Name: "Screws", Quantity: 8})
	require.NoError(t, err)

	updated, err := svc.Upsert(ctx, custodian(), UpsertInput{
		ProductID: item.ProductID,
		AddInput:  AddInput{Name: "Wood Screws", Quantity: 5, Unit: "box", RestockThreshold: 2, RestockQuantity: 20},
	})
	require.NoError(t, err)
	require.Equal(t, "Wood Screws", updated.Name)
	require.Equal(t, 5, updated.Quantity)
	require.Equal(t, "box", updated.Unit)

	var last models.InventoryTransaction
	require.NoError(t, client.DB().Where("product_id = ?", item.ProductID).Order("created_at DESC").Order("change_qty ASC").First(&last).Error)
	require.Equal(t, -3, last.ChangeQty)

	created, err := svc.Upsert(ctx, custodian(), UpsertInput{ProductID: 77, AddInput: AddInput{Name: "Brackets", Quantity: 1}})
	require.NoError(t, err)
	require.EqualValues(t, 77, created.ProductID)
	require.Equal(t, 1, created.Quantity)

	next, err := svc.Add(ctx, custodian(), AddInput{Name: "Hinges", Quantity: 2})
	require.NoError(t, err)
	require.EqualValues(t, 78, next.ProductID)
}

func TestProductIDSequenceStatementOnlyOnPostgres(t *testing.T) {
	stmt := productIDSequenceStatement("postgres")
	require.Contains(t, stmt, "pg_get_serial_sequence('inventory_items', 'product_id')")
	require.Contains(t, stmt, "MAX(product_id)")
	require.Empty(t, productIDSequenceStatement("sqlite"))
}

func TestCreateErrorMapsUniqueViolationToConflict(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "inventory_items_pkey", TableName: "inventory_items"}
	err := createError(dup, 1)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeConflict, typed.Code())

	typed = pkgerrors.As(createError(errors.New("connection reset"), 1))
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeDependency, typed.Code())
}

func TestUpdateLeavesQuantity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	item, err := svc.Add(ctx, custodian(), AddInput{Name: "Tape", Quantity: 3})
	require.NoError(t, err)

	name := "Duct Tape"
	threshold := 5
	price := decimal.RequireFromString("4.75")
	updated, err := svc.Update(ctx, item.ProductID, UpdateInput{Name: &name, RestockThreshold: &threshold, Price: &price})
	require.NoError(t, err)
	require.Equal(t, "Duct Tape", updated.Name)
	require.Equal(t, 3, updated.Quantity)
	require.True(t, updated.LowStock)

	negative := -1
	_, err = svc.Update(ctx, item.ProductID, UpdateInput{RestockQuantity: &negative})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.Update(ctx, 999, UpdateInput{Name: &name})
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestDeleteBlockedByOpenRequisition(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()

	item, err := svc.Add(ctx, custodian(), AddInput{Name: "Glue"})
	require.NoError(t, err)

	req := models.Requisition{
		ItemDescription: "Glue",
		Quantity:        2,
		ProductID:       item.ProductID,
		Status:          enums.RequisitionStatusApproved,
		RequestDate:     time.Now().UTC(),
	}
	require.NoError(t, client.DB().Create(&req).Error)

	err = svc.Delete(ctx, item.ProductID)
	requireCode(t, err, pkgerrors.CodeConflict)

	require.NoError(t, client.DB().Model(&req).Update("status", enums.RequisitionStatusCompleted).Error)
	require.NoError(t, svc.Delete(ctx, item.ProductID))

	_, err = svc.Get(ctx, item.ProductID)
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestDeleteBlockedByOpenPurchaseOrderLine(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()

	item, err := svc.Add(ctx, custodian(), AddInput{Name: "Bolts"})
	require.NoError(t, err)

	po := models.PurchaseOrder{
		Type:         enums.PurchaseOrderTypeDirectPurchase,
		SupplierName: "Acme",
		Status:       enums.PurchaseOrderStatusSentToManager,
		Items:        []models.PurchaseOrderLine{{ProductID: item.ProductID, Description: "Bolts", Quantity: 4, Unit: "pcs"}},
	}
	require.NoError(t, client.DB().Create(&po).Error)

	err = svc.Delete(ctx, item.ProductID)
	requireCode(t, err, pkgerrors.CodeConflict)
}

func TestListPagesByProductID(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, name := range []string{"A", "B", "C"} {
		_, err := svc.Add(ctx, custodian(), AddInput{Name: name})
		require.NoError(t, err)
	}

	first, err := svc.List(ctx, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextCursor)

	second, err := svc.List(ctx, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	require.Equal(t, "C", second.Items[0].Name)
	require.Empty(t, second.NextCursor)

	_, err = svc.List(ctx, pagination.Params{Cursor: "%%%"})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestListLowStock(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, custodian(), AddInput{Name: "Plenty", Quantity: 20, RestockThreshold: 5})
	require.NoError(t, err)
	low, err := svc.Add(ctx, custodian(), AddInput{Name: "Scarce", Quantity: 1, RestockThreshold: 5})
	require.NoError(t, err)

	items, err := svc.ListLowStock(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, low.ProductID, items[0].ProductID)
}
