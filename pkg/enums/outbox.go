package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column in outbox_events.
type OutboxAggregateType string

const (
	AggregateRequisition   OutboxAggregateType = "requisition"
	AggregatePurchaseOrder OutboxAggregateType = "purchase_order"
	AggregateInventoryItem OutboxAggregateType = "inventory_item"
	AggregateSupplier      OutboxAggregateType = "supplier"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateRequisition,
	AggregatePurchaseOrder,
	AggregateInventoryItem,
	AggregateSupplier,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type column in outbox_events.
type OutboxEventType string

const (
	EventRequisitionCreated         OutboxEventType = "requisition_created"
	EventRequisitionStatusChanged   OutboxEventType = "requisition_status_changed"
	EventRequisitionAutoRestocked   OutboxEventType = "requisition_auto_restocked"
	EventPurchaseOrderCreated       OutboxEventType = "purchase_order_created"
	EventPurchaseOrderStatusChanged OutboxEventType = "purchase_order_status_changed"
	EventPurchaseOrderReceived      OutboxEventType = "purchase_order_received"
	EventInventoryAdjusted          OutboxEventType = "inventory_adjusted"
	EventInventoryLowStock          OutboxEventType = "inventory_low_stock"
	EventSupplierRated              OutboxEventType = "supplier_rated"
)

var validOutboxEventTypes = []OutboxEventType{
	EventRequisitionCreated,
	EventRequisitionStatusChanged,
	EventRequisitionAutoRestocked,
	EventPurchaseOrderCreated,
	EventPurchaseOrderStatusChanged,
	EventPurchaseOrderReceived,
	EventInventoryAdjusted,
	EventInventoryLowStock,
	EventSupplierRated,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
