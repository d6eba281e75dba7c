package inventory

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/mochkris/procurement-backend/pkg/db/models"
	"github.com/mochkris/procurement-backend/pkg/enums"
	"github.com/mochkris/procurement-backend/pkg/pagination"
)

// Repository persists inventory items and their transaction ledger.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) FindByProductID(ctx context.Context, productID int64) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := r.db.WithContext(ctx).First(&item, "product_id = ?", productID).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *Repository) Create(ctx context.Context, item *models.InventoryItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

const syncProductIDSequenceSQL = `SELECT setval(
  pg_get_serial_sequence('inventory_items', 'product_id'),
  GREATEST((SELECT COALESCE(MAX(product_id), 1) FROM inventory_items), 1)
)`

// productIDSequenceStatement returns the statement that moves the product id
// sequence past explicitly keyed rows, or "" when the dialect derives new ids
// from the table itself.
func productIDSequenceStatement(dialect string) string {
	if dialect == "postgres" {
		return syncProductIDSequenceSQL
	}
	return ""
}

// SyncProductIDSequence must run after inserting a row with a caller chosen id.
func (r *Repository) SyncProductIDSequence(ctx context.Context) error {
	stmt := productIDSequenceStatement(r.db.Dialector.Name())
	if stmt == "" {
		return nil
	}
	return r.db.WithContext(ctx).Exec(stmt).Error
}

// UpdateDetails writes the descriptive columns; quantity only moves through ApplyDelta.
func (r *Repository) UpdateDetails(ctx context.Context, item *models.InventoryItem) error {
	return r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("product_id = ?", item.ProductID).
		Updates(map[string]any{
			"name":              item.Name,
			"unit":              item.Unit,
			"price":             item.Price,
			"restock_threshold": item.RestockThreshold,
			"restock_quantity":  item.RestockQuantity,
			"updated_at":        time.Now().UTC(),
		}).Error
}

func (r *Repository) Delete(ctx context.Context, productID int64) error {
	res := r.db.WithContext(ctx).Delete(&models.InventoryItem{}, "product_id = ?", productID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ApplyDelta moves stock atomically. It affects zero rows when the item is missing
// or the result would be negative.
func (r *Repository) ApplyDelta(ctx context.Context, productID int64, delta int) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("product_id = ? AND quantity + ? >= 0", productID, delta).
		Updates(map[string]any{
			"quantity":   gorm.Expr("quantity + ?", delta),
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *Repository) CreateTransaction(ctx context.Context, row *models.InventoryTransaction) error {
	return r.db.WithContext(ctx).Create(row).Error
}

// List returns up to limit items with product_id greater than afterID.
func (r *Repository) List(ctx context.Context, afterID int64, limit int) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	query := r.db.WithContext(ctx).Order("product_id ASC").Limit(limit)
	if afterID > 0 {
		query = query.Where("product_id > ?", afterID)
	}
	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *Repository) ListLowStock(ctx context.Context) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	err := r.db.WithContext(ctx).
		Where("quantity < restock_threshold").
		Order("product_id ASC").
		Find(&items).Error
	return items, err
}

// ListTransactions pages a product's ledger newest first using a (created_at, id) cursor.
func (r *Repository) ListTransactions(ctx context.Context, productID int64, cursor *pagination.Cursor, limit int) ([]models.InventoryTransaction, error) {
	var rows []models.InventoryTransaction
	query := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CountOpenReferences counts non-terminal requisitions and purchase order lines naming the product.
func (r *Repository) CountOpenReferences(ctx context.Context, productID int64) (int64, error) {
	var requisitions int64
	if err := r.db.WithContext(ctx).
		Model(&models.Requisition{}).
		Where("product_id = ? AND status IN ?", productID, enums.OpenRequisitionStatuses()).
		Count(&requisitions).Error; err != nil {
		return 0, err
	}

	var lines int64
	if err := r.db.WithContext(ctx).
		Model(&models.PurchaseOrderLine{}).
		Joins("JOIN purchase_orders po ON po.id = purchase_order_lines.purchase_order_id").
		Where("purchase_order_lines.product_id = ? AND po.status IN ?", productID, enums.OpenPurchaseOrderStatuses()).
		Count(&lines).Error; err != nil {
		return 0, err
	}
	return requisitions + lines, nil
}
