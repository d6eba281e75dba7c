package suppliers

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mochkris/procurement-backend/pkg/db/models"
	"github.com/mochkris/procurement-backend/pkg/pagination"
)

// Repository persists suppliers and their ratings.
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

func (r *Repository) Create(ctx context.Context, supplier *models.Supplier) error {
	return r.db.WithContext(ctx).Omit("Ratings").Create(supplier).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Supplier, error) {
	var supplier models.Supplier
	if err := r.db.WithContext(ctx).First(&supplier, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &supplier, nil
}

// LockByID loads the supplier and holds its row until the transaction ends so
// concurrent ratings recompute the mean one at a time.
func (r *Repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Supplier, error) {
	var supplier models.Supplier
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&supplier, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &supplier, nil
}

// FindWithRatings loads the supplier and its ratings, newest first.
func (r *Repository) FindWithRatings(ctx context.Context, id uuid.UUID) (*models.Supplier, error) {
	var supplier models.Supplier
	err := r.db.WithContext(ctx).
		Preload("Ratings", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		First(&supplier, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &supplier, nil
}

// FindByName matches case-insensitively.
func (r *Repository) FindByName(ctx context.Context, name string) (*models.Supplier, error) {
	var supplier models.Supplier
	err := r.db.WithContext(ctx).
		Where("LOWER(name) = ?", strings.ToLower(strings.TrimSpace(name))).
		First(&supplier).Error
	if err != nil {
		return nil, err
	}
	return &supplier, nil
}

// List pages suppliers in creation order using a (created_at, id) cursor.
func (r *Repository) List(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.Supplier, error) {
	query := r.db.WithContext(ctx).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit)
	if cursor != nil {
		query = query.Where("(created_at > ?) OR (created_at = ? AND id > ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var rows []models.Supplier
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) UpdateContact(ctx context.Context, supplier *models.Supplier) error {
	return r.db.WithContext(ctx).
		Model(&models.Supplier{}).
		Where("id = ?", supplier.ID).
		Updates(map[string]any{
			"name":       supplier.Name,
			"contact":    supplier.Contact,
			"email":      supplier.Email,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&models.Supplier{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) CreateRating(ctx context.Context, rating *models.SupplierRating) error {
	return r.db.WithContext(ctx).Create(rating).Error
}

// RatingTotals returns the sum and count of all ratings for the supplier.
func (r *Repository) RatingTotals(ctx context.Context, supplierID uuid.UUID) (int64, int64, error) {
	var totals struct {
		Total int64
		Count int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.SupplierRating{}).
		Select("COALESCE(SUM(value), 0) AS total, COUNT(*) AS count").
		Where("supplier_id = ?", supplierID).
		Scan(&totals).Error
	return totals.Total, totals.Count, err
}

func (r *Repository) UpdateRating(ctx context.Context, supplierID uuid.UUID, rating decimal.Decimal, count int64) error {
	return r.db.WithContext(ctx).
		Model(&models.Supplier{}).
		Where("id = ?", supplierID).
		Updates(map[string]any{
			"rating":       rating,
			"rating_count": count,
			"updated_at":   time.Now().UTC(),
		}).Error
}
