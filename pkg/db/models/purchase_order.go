package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mochkris/procurement-backend/pkg/enums"
)

// PurchaseOrder is a procurement order, either linked to a requisition or a direct buy.
type PurchaseOrder struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	Type          enums.PurchaseOrderType   `gorm:"column:type;type:text;not null"`
	RequisitionID *uuid.UUID                `gorm:"column:requisition_id;type:uuid;index"`
	SupplierName  string                    `gorm:"column:supplier_name;not null"`
	SupplierID    *uuid.UUID                `gorm:"column:supplier_id;type:uuid;index"`
	Status        enums.PurchaseOrderStatus `gorm:"column:status;type:text;not null;index"`
	SupplierRated bool                      `gorm:"column:supplier_rated;not null;default:false"`
	CreatedBy     *uuid.UUID                `gorm:"column:created_by;type:uuid"`
	Items         []PurchaseOrderLine       `gorm:"foreignKey:PurchaseOrderID;constraint:OnDelete:CASCADE"`
	History       []PurchaseOrderHistory    `gorm:"foreignKey:PurchaseOrderID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *PurchaseOrder) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// PurchaseOrderLine snapshots one product line at order time.
type PurchaseOrderLine struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	PurchaseOrderID uuid.UUID       `gorm:"column:purchase_order_id;type:uuid;not null;index"`
	ProductID       int64           `gorm:"column:product_id;not null;index"`
	Description     string          `gorm:"column:description;not null"`
	Quantity        int             `gorm:"column:quantity;not null"`
	Unit            string          `gorm:"column:unit;not null;default:'pcs'"`
	UnitPrice       decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null;default:0"`
}

func (l *PurchaseOrderLine) BeforeCreate(_ *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// PurchaseOrderHistory is one audit row appended per transition.
type PurchaseOrderHistory struct {
	ID              uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	PurchaseOrderID uuid.UUID                 `gorm:"column:purchase_order_id;type:uuid;not null;index"`
	Status          enums.PurchaseOrderStatus `gorm:"column:status;type:text;not null"`
	Note            string                    `gorm:"column:note;not null"`
	ActorID         *uuid.UUID                `gorm:"column:actor_id;type:uuid"`
	ActorRole       *string                   `gorm:"column:actor_role"`
	CreatedAt       time.Time                 `gorm:"column:created_at;autoCreateTime"`
}

func (h *PurchaseOrderHistory) BeforeCreate(_ *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}
