// Package dbtest opens isolated in-memory databases for repository and service tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mochkris/procurement-backend/pkg/db"
	"github.com/mochkris/procurement-backend/pkg/db/models"
)

// Models lists every table the procurement services touch.
func Models() []any {
	return []any{
		&models.InventoryItem{},
		&models.InventoryTransaction{},
		&models.Supplier{},
		&models.SupplierRating{},
		&models.Requisition{},
		&models.RequisitionHistory{},
		&models.PurchaseOrder{},
		&models.PurchaseOrderLine{},
		&models.PurchaseOrderHistory{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
	}
}

// Open returns a migrated sqlite database private to the test. A single
// connection is used, so code under test must use the tx handle inside WithTx.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(Models()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return conn
}

// Client wraps Open in the shared transaction runner.
func Client(t testing.TB) *db.Client {
	t.Helper()
	return db.NewFromConn(Open(t))
}
