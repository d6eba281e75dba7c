package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mochkris/procurement-backend/pkg/db/models"
	"github.com/mochkris/procurement-backend/pkg/enums"
)

// ItemDTO is the API shape of an inventory record.
type ItemDTO struct {
	ProductID        int64           `json:"product_id"`
	Name             string          `json:"name"`
	Quantity         int             `json:"quantity"`
	Unit             string          `json:"unit"`
	Price            decimal.Decimal `json:"price"`
	RestockThreshold int             `json:"restock_threshold"`
	RestockQuantity  int             `json:"restock_quantity"`
	LowStock         bool            `json:"low_stock"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// ListResult is a page of inventory items ordered by product id.
type ListResult struct {
	Items      []ItemDTO `json:"items"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

// TransactionDTO is one stock movement.
type TransactionDTO struct {
	ID           uuid.UUID                      `json:"id"`
	ProductID    int64                          `json:"product_id"`
	ChangeQty    int                            `json:"change_qty"`
	ResultingQty int                            `json:"resulting_qty"`
	Type         enums.InventoryTransactionType `json:"type"`
	RelatedID    *uuid.UUID                     `json:"related_id,omitempty"`
	ActorID      *uuid.UUID                     `json:"actor_id,omitempty"`
	CreatedAt    time.Time                      `json:"created_at"`
}

// TransactionListResult is a page of stock movements, newest first.
type TransactionListResult struct {
	Transactions []TransactionDTO `json:"transactions"`
	NextCursor   string           `json:"next_cursor,omitempty"`
}

// ItemFromModel maps a persisted row to its DTO.
func ItemFromModel(item models.InventoryItem) ItemDTO {
	return ItemDTO{
		ProductID:        item.ProductID,
		Name:             item.Name,
		Quantity:         item.Quantity,
		Unit:             item.Unit,
		Price:            item.Price,
		RestockThreshold: item.RestockThreshold,
		RestockQuantity:  item.RestockQuantity,
		LowStock:         item.BelowThreshold(),
		UpdatedAt:        item.UpdatedAt,
	}
}

func transactionFromModel(row models.InventoryTransaction) TransactionDTO {
	return TransactionDTO{
		ID:           row.ID,
		ProductID:    row.ProductID,
		ChangeQty:    row.ChangeQty,
		ResultingQty: row.ResultingQty,
		Type:         row.Type,
		RelatedID:    row.RelatedID,
		ActorID:      row.ActorID,
		CreatedAt:    row.CreatedAt,
	}
}
