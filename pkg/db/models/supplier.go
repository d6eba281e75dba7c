package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Supplier is a vendor that purchase orders are placed with.
type Supplier struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Name        string           `gorm:"column:name;not null;uniqueIndex"`
	Contact     string           `gorm:"column:contact;not null;default:''"`
	Email       string           `gorm:"column:email;not null;default:''"`
	Rating      decimal.Decimal  `gorm:"column:rating;type:numeric(3,1);not null;default:0"`
	RatingCount int              `gorm:"column:rating_count;not null;default:0"`
	Ratings     []SupplierRating `gorm:"foreignKey:SupplierID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Supplier) BeforeCreate(_ *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// SupplierRating is one score left against a supplier, optionally for a specific PO.
type SupplierRating struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	SupplierID      uuid.UUID  `gorm:"column:supplier_id;type:uuid;not null;index"`
	PurchaseOrderID *uuid.UUID `gorm:"column:purchase_order_id;type:uuid;uniqueIndex"`
	Value           int        `gorm:"column:value;not null"`
	Comment         string     `gorm:"column:comment;not null;default:''"`
	RatedBy         *uuid.UUID `gorm:"column:rated_by;type:uuid"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (r *SupplierRating) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
