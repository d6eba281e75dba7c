package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/mochkris/procurement-backend/pkg/migrate"
)

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration file found for %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	if err := migrate.ValidateEmbedded(); err != nil {
		t.Fatalf("validate embedded migrations: %v", err)
	}
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	embedded, err := fs.Glob(migrate.Embedded(), "migrations/*.sql")
	if err != nil {
		t.Fatalf("glob embedded: %v", err)
	}
	if len(embedded) != len(onDisk) || len(embedded) == 0 {
		t.Fatalf("embedded %d migrations, disk has %d", len(embedded), len(onDisk))
	}
}

func TestValidateFSRejectsBadNames(t *testing.T) {
	fsys := fstest.MapFS{
		"m/001_bad.sql": &fstest.MapFile{Data: []byte("-- +goose Up\n-- +goose Down\n")},
	}
	if err := migrate.ValidateFS(fsys, "m"); err == nil {
		t.Fatalf("expected invalid filename error")
	}

	fsys = fstest.MapFS{
		"m/20260101000000_a.sql": &fstest.MapFile{Data: []byte("-- +goose Up\n")},
	}
	if err := migrate.ValidateFS(fsys, "m"); err == nil || !strings.Contains(err.Error(), "goose Down") {
		t.Fatalf("expected missing down section, got %v", err)
	}
}

func TestInventoryMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_inventory_items.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS inventory_items",
		"CREATE TABLE IF NOT EXISTS inventory_transactions",
		"CHECK (quantity >= 0)",
		"CHECK (type IN ('DEDUCTED', 'RECEIVED', 'ADJUSTED'))",
		"DROP TABLE IF EXISTS inventory_items",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestRequisitionMigrationListsEveryStatus(t *testing.T) {
	content := readMigration(t, "*_create_requisitions.sql")
	for _, status := range []string{
		"PENDING_APPROVAL", "APPROVED", "REJECTED", "DELIVERED_TO_DEPT",
		"FORWARDED_TO_PURCHASING", "PO_GENERATED", "COMPLETED",
	} {
		if !strings.Contains(content, "'"+status+"'") {
			t.Errorf("requisition status %s missing from check constraint", status)
		}
	}
	if !strings.Contains(content, "CREATE TABLE IF NOT EXISTS requisition_histories") {
		t.Errorf("missing history table")
	}
}

func TestPurchaseOrderMigrationLinksRequisitions(t *testing.T) {
	content := readMigration(t, "*_create_purchase_orders.sql")
	checks := []string{
		"CREATE TABLE IF NOT EXISTS purchase_orders",
		"CREATE TABLE IF NOT EXISTS purchase_order_lines",
		"CREATE TABLE IF NOT EXISTS purchase_order_histories",
		"ux_purchase_orders_requisition",
		"supplier_ratings_purchase_order_fk",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestReorderMigrationExcludesReturnedOrders(t *testing.T) {
	content := readMigration(t, "*_allow_reorder_after_return.sql")
	up := strings.SplitN(content, "-- +goose Down", 2)[0]
	if !strings.Contains(up, "DROP INDEX IF EXISTS ux_purchase_orders_requisition;") {
		t.Errorf("up migration must drop the unconditional requisition index")
	}
	if !strings.Contains(up, "status <> 'RETURNED_TO_SUPPLIER'") {
		t.Errorf("active requisition index must skip orders returned to the supplier")
	}
}
