package purchaseorders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mochkris/procurement-backend/pkg/db/models"
	"github.com/mochkris/procurement-backend/pkg/enums"
	"github.com/mochkris/procurement-backend/pkg/pagination"
)

// Repository persists purchase orders, their lines and history.
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

// Create inserts the order and its lines.
func (r *Repository) Create(ctx context.Context, po *models.PurchaseOrder) error {
	return r.db.WithContext(ctx).Omit("History").Create(po).Error
}

// FindByID loads the order with its lines ordered by product.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error) {
	var po models.PurchaseOrder
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("product_id ASC")
		}).
		First(&po, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &po, nil
}

// FindWithHistory loads lines and history (oldest first).
func (r *Repository) FindWithHistory(ctx context.Context, id uuid.UUID) (*models.PurchaseOrder, error) {
	var po models.PurchaseOrder
	err := withDetails(r.db.WithContext(ctx)).First(&po, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &po, nil
}

// UpdateStatus moves the row only if it is still in from.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.PurchaseOrderStatus) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PurchaseOrder{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

// MarkSupplierRated flips supplier_rated once; zero rows means it was already rated.
func (r *Repository) MarkSupplierRated(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PurchaseOrder{}).
		Where("id = ? AND supplier_rated = ?", id, false).
		Updates(map[string]any{
			"supplier_rated": true,
			"updated_at":     time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *Repository) AppendHistory(ctx context.Context, entry *models.PurchaseOrderHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListFilter narrows List; zero values match everything.
type ListFilter struct {
	Status        enums.PurchaseOrderStatus
	Type          enums.PurchaseOrderType
	RequisitionID *uuid.UUID
	SupplierID    *uuid.UUID
}

// List pages purchase orders newest first using a (created_at, id) cursor.
func (r *Repository) List(ctx context.Context, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.PurchaseOrder, error) {
	query := withDetails(r.db.WithContext(ctx)).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.RequisitionID != nil {
		query = query.Where("requisition_id = ?", *filter.RequisitionID)
	}
	if filter.SupplierID != nil {
		query = query.Where("supplier_id = ?", *filter.SupplierID)
	}
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.PurchaseOrder
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func withDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("product_id ASC")
		}).
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		})
}
