package enums

import "fmt"

// PurchaseOrderStatus tracks the lifecycle of a purchase order.
type PurchaseOrderStatus string

const (
	PurchaseOrderStatusPendingApproval      PurchaseOrderStatus = "PENDING_PO_APPROVAL"
	PurchaseOrderStatusSentToManager        PurchaseOrderStatus = "SENT_TO_MANAGER"
	PurchaseOrderStatusReturnedToPurchasing PurchaseOrderStatus = "RETURNED_TO_PURCHASING"
	PurchaseOrderStatusCompleted            PurchaseOrderStatus = "COMPLETED"
	PurchaseOrderStatusReturnedToSupplier   PurchaseOrderStatus = "RETURNED_TO_SUPPLIER"
)

var validPurchaseOrderStatuses = []PurchaseOrderStatus{
	PurchaseOrderStatusPendingApproval,
	PurchaseOrderStatusSentToManager,
	PurchaseOrderStatusReturnedToPurchasing,
	PurchaseOrderStatusCompleted,
	PurchaseOrderStatusReturnedToSupplier,
}

// String implements fmt.Stringer.
func (s PurchaseOrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known PurchaseOrderStatus.
func (s PurchaseOrderStatus) IsValid() bool {
	for _, candidate := range validPurchaseOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the order has been received or sent back.
func (s PurchaseOrderStatus) IsTerminal() bool {
	return s == PurchaseOrderStatusCompleted || s == PurchaseOrderStatusReturnedToSupplier
}

// OpenPurchaseOrderStatuses lists the non-terminal statuses.
func OpenPurchaseOrderStatuses() []PurchaseOrderStatus {
	return []PurchaseOrderStatus{
		PurchaseOrderStatusPendingApproval,
		PurchaseOrderStatusSentToManager,
		PurchaseOrderStatusReturnedToPurchasing,
	}
}

// ParsePurchaseOrderStatus converts raw input into a PurchaseOrderStatus.
func ParsePurchaseOrderStatus(value string) (PurchaseOrderStatus, error) {
	for _, candidate := range validPurchaseOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid purchase order status %q", value)
}
