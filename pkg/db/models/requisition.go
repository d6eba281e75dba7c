package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mochkris/procurement-backend/pkg/enums"
)

// Requisition is a department's material request (RF).
type Requisition struct {
	ID              uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	ItemDescription string                  `gorm:"column:item_description;not null"`
	Quantity        int                     `gorm:"column:quantity;not null"`
	ProductID       int64                   `gorm:"column:product_id;not null;index"`
	UnitPrice       decimal.Decimal         `gorm:"column:unit_price;type:numeric(12,2);not null;default:0"`
	Status          enums.RequisitionStatus `gorm:"column:status;type:text;not null;index"`
	Supplier        *string                 `gorm:"column:supplier"`
	Auto            bool                    `gorm:"column:auto;not null;default:false"`
	RequestedBy     *uuid.UUID              `gorm:"column:requested_by;type:uuid"`
	RequestDate     time.Time               `gorm:"column:request_date;not null"`
	History         []RequisitionHistory    `gorm:"foreignKey:RequisitionID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *Requisition) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// RequisitionHistory is one audit row appended per transition.
type RequisitionHistory struct {
	ID            uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	RequisitionID uuid.UUID               `gorm:"column:requisition_id;type:uuid;not null;index"`
	Status        enums.RequisitionStatus `gorm:"column:status;type:text;not null"`
	Note          string                  `gorm:"column:note;not null"`
	ActorID       *uuid.UUID              `gorm:"column:actor_id;type:uuid"`
	ActorRole     *string                 `gorm:"column:actor_role"`
	CreatedAt     time.Time               `gorm:"column:created_at;autoCreateTime"`
}

func (h *RequisitionHistory) BeforeCreate(_ *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}
