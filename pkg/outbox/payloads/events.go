package payloads

import (
	"github.com/google/uuid"

	"github.com/mochkris/procurement-backend/pkg/enums"
)

// RequisitionCreatedEvent is emitted when a department or the system raises a requisition.
type RequisitionCreatedEvent struct {
	RequisitionID uuid.UUID               `json:"requisition_id"`
	ProductID     int64                   `json:"product_id"`
	Quantity      int                     `json:"quantity"`
	Auto          bool                    `json:"auto"`
	Status        enums.RequisitionStatus `json:"status"`
}

// RequisitionStatusChangedEvent is emitted on every requisition transition.
type RequisitionStatusChangedEvent struct {
	RequisitionID uuid.UUID               `json:"requisition_id"`
	ProductID     int64                   `json:"product_id"`
	From          enums.RequisitionStatus `json:"from"`
	To            enums.RequisitionStatus `json:"to"`
	Note          string                  `json:"note"`
}

// RequisitionAutoRestockedEvent records a system-generated restock requisition.
type RequisitionAutoRestockedEvent struct {
	RequisitionID       uuid.UUID  `json:"requisition_id"`
	SourceRequisitionID *uuid.UUID `json:"source_requisition_id,omitempty"`
	ProductID           int64      `json:"product_id"`
	Quantity            int        `json:"quantity"`
	StockLevel          int        `json:"stock_level"`
	Threshold           int        `json:"threshold"`
}

// PurchaseOrderLine is the line shape shared by purchase order events.
type PurchaseOrderLine struct {
	ProductID    int64 `json:"product_id"`
	Quantity     int   `json:"quantity"`
	ResultingQty *int  `json:"resulting_qty,omitempty"`
}

// PurchaseOrderCreatedEvent is emitted when purchasing opens a PO.
type PurchaseOrderCreatedEvent struct {
	PurchaseOrderID uuid.UUID                 `json:"purchase_order_id"`
	Type            enums.PurchaseOrderType   `json:"type"`
	RequisitionID   *uuid.UUID                `json:"requisition_id,omitempty"`
	SupplierName    string                    `json:"supplier_name"`
	Status          enums.PurchaseOrderStatus `json:"status"`
	Lines           []PurchaseOrderLine       `json:"lines"`
}

// PurchaseOrderStatusChangedEvent is emitted on approval decisions and resubmission.
type PurchaseOrderStatusChangedEvent struct {
	PurchaseOrderID uuid.UUID                 `json:"purchase_order_id"`
	Type            enums.PurchaseOrderType   `json:"type"`
	From            enums.PurchaseOrderStatus `json:"from"`
	To              enums.PurchaseOrderStatus `json:"to"`
	Note            string                    `json:"note"`
}

// PurchaseOrderReceivedEvent is emitted when a delivery is accepted or sent back.
type PurchaseOrderReceivedEvent struct {
	PurchaseOrderID uuid.UUID                 `json:"purchase_order_id"`
	Damaged         bool                      `json:"damaged"`
	Status          enums.PurchaseOrderStatus `json:"status"`
	RequisitionID   *uuid.UUID                `json:"requisition_id,omitempty"`
	Lines           []PurchaseOrderLine       `json:"lines"`
}

// InventoryAdjustedEvent mirrors one inventory_transactions row.
type InventoryAdjustedEvent struct {
	ProductID    int64                          `json:"product_id"`
	ChangeQty    int                            `json:"change_qty"`
	ResultingQty int                            `json:"resulting_qty"`
	Type         enums.InventoryTransactionType `json:"type"`
	RelatedID    *uuid.UUID                     `json:"related_id,omitempty"`
}

// InventoryLowStockEvent flags an item that fell under its restock threshold.
type InventoryLowStockEvent struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
	Threshold int   `json:"threshold"`
}

// SupplierRatedEvent is emitted after a rating updates a supplier's mean.
type SupplierRatedEvent struct {
	SupplierID      uuid.UUID  `json:"supplier_id"`
	PurchaseOrderID *uuid.UUID `json:"purchase_order_id,omitempty"`
	Value           int        `json:"value"`
	Rating          string     `json:"rating"`
	RatingCount     int        `json:"rating_count"`
}
