package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mochkris/procurement-backend/pkg/enums"
)

// InventoryTransaction is an append-only stock movement.
type InventoryTransaction struct {
	ID           uuid.UUID                      `gorm:"column:id;type:uuid;primaryKey"`
	ProductID    int64                          `gorm:"column:product_id;not null;index"`
	ChangeQty    int                            `gorm:"column:change_qty;not null"`
	ResultingQty int                            `gorm:"column:resulting_qty;not null"`
	Type         enums.InventoryTransactionType `gorm:"column:type;type:text;not null"`
	RelatedID    *uuid.UUID                     `gorm:"column:related_id;type:uuid"`
	ActorID      *uuid.UUID                     `gorm:"column:actor_id;type:uuid"`
	CreatedAt    time.Time                      `gorm:"column:created_at;autoCreateTime"`
}

func (t *InventoryTransaction) BeforeCreate(_ *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
