package purchaseorders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mochkris/procurement-backend/pkg/db/models"
	"github.com/mochkris/procurement-backend/pkg/enums"
)

// PurchaseOrderDTO is the API shape of a purchase order.
type PurchaseOrderDTO struct {
	ID            uuid.UUID                 `json:"id"`
	Type          enums.PurchaseOrderType   `json:"type"`
	RequisitionID *uuid.UUID                `json:"requisition_id,omitempty"`
	SupplierName  string                    `json:"supplier_name"`
	SupplierID    *uuid.UUID                `json:"supplier_id,omitempty"`
	Status        enums.PurchaseOrderStatus `json:"status"`
	SupplierRated bool                      `json:"supplier_rated"`
	CreatedBy     *uuid.UUID                `json:"created_by,omitempty"`
	Items         []LineDTO                 `json:"items"`
	History       []HistoryDTO              `json:"history"`
	CreatedAt     time.Time                 `json:"created_at"`
}

// LineDTO is one ordered product.
type LineDTO struct {
	ProductID   int64           `json:"product_id"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// HistoryDTO is one audit entry.
type HistoryDTO struct {
	Status    enums.PurchaseOrderStatus `json:"status"`
	Note      string                    `json:"note"`
	ActorID   *uuid.UUID                `json:"actor_id,omitempty"`
	ActorRole *string                   `json:"actor_role,omitempty"`
	CreatedAt time.Time                 `json:"created_at"`
}

// ListResult is a page of purchase orders, newest first.
type ListResult struct {
	PurchaseOrders []PurchaseOrderDTO `json:"purchase_orders"`
	NextCursor     string             `json:"next_cursor,omitempty"`
}

// FromModel maps a purchase order with preloaded lines and history.
func FromModel(po models.PurchaseOrder) PurchaseOrderDTO {
	dto := PurchaseOrderDTO{
		ID:            po.ID,
		Type:          po.Type,
		RequisitionID: po.RequisitionID,
		SupplierName:  po.SupplierName,
		SupplierID:    po.SupplierID,
		Status:        po.Status,
		SupplierRated: po.SupplierRated,
		CreatedBy:     po.CreatedBy,
		Items:         make([]LineDTO, 0, len(po.Items)),
		History:       make([]HistoryDTO, 0, len(po.History)),
		CreatedAt:     po.CreatedAt,
	}
	for _, line := range po.Items {
		dto.Items = append(dto.Items, LineDTO{
			ProductID:   line.ProductID,
			Description: line.Description,
			Quantity:    line.Quantity,
			Unit:        line.Unit,
			UnitPrice:   line.UnitPrice,
		})
	}
	for _, h := range po.History {
		dto.History = append(dto.History, HistoryDTO{
			Status:    h.Status,
			Note:      h.Note,
			ActorID:   h.ActorID,
			ActorRole: h.ActorRole,
			CreatedAt: h.CreatedAt,
		})
	}
	return dto
}
