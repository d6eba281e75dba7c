package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryItem is the stock record for one product.
type InventoryItem struct {
	ProductID        int64           `gorm:"column:product_id;primaryKey;autoIncrement"`
	Name             string          `gorm:"column:name;not null"`
	Quantity         int             `gorm:"column:quantity;not null;default:0"`
	Unit             string          `gorm:"column:unit;not null;default:'pcs'"`
	Price            decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null;default:0"`
	RestockThreshold int             `gorm:"column:restock_threshold;not null;default:0"`
	RestockQuantity  int             `gorm:"column:restock_quantity;not null;default:0"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// BelowThreshold reports whether the item should be restocked.
func (i InventoryItem) BelowThreshold() bool {
	return i.Quantity < i.RestockThreshold
}
