package requisitions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mochkris/procurement-backend/pkg/db/models"
	"github.com/mochkris/procurement-backend/pkg/enums"
	"github.com/mochkris/procurement-backend/pkg/pagination"
)

// Repository persists requisitions and their append-only history.
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

func (r *Repository) Create(ctx context.Context, req *models.Requisition) error {
	return r.db.WithContext(ctx).Omit("History").Create(req).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Requisition, error) {
	var req models.Requisition
	if err := r.db.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// FindWithHistory loads the requisition with history ordered oldest first.
func (r *Repository) FindWithHistory(ctx context.Context, id uuid.UUID) (*models.Requisition, error) {
	var req models.Requisition
	err := r.db.WithContext(ctx).
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).
		First(&req, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// UpdateStatus moves the row only if it is still in from. Zero rows means a concurrent
// transition won.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.RequisitionStatus) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Requisition{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *Repository) AppendHistory(ctx context.Context, entry *models.RequisitionHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListFilter narrows List; zero values match everything.
type ListFilter struct {
	Status    enums.RequisitionStatus
	ProductID int64
	Auto      *bool
}

// List pages requisitions newest first using a (created_at, id) cursor.
func (r *Repository) List(ctx context.Context, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Requisition, error) {
	query := r.db.WithContext(ctx).
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.ProductID > 0 {
		query = query.Where("product_id = ?", filter.ProductID)
	}
	if filter.Auto != nil {
		query = query.Where("auto = ?", *filter.Auto)
	}
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Requisition
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// HasOpenAutoRequisition reports whether a non-terminal auto requisition exists for the product.
func (r *Repository) HasOpenAutoRequisition(ctx context.Context, productID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Requisition{}).
		Where("product_id = ? AND auto = ? AND status IN ?", productID, true, enums.OpenRequisitionStatuses()).
		Count(&count).Error
	return count > 0, err
}
