package enums

import "fmt"

// PurchaseOrderType distinguishes requisition-backed orders from direct buys.
type PurchaseOrderType string

const (
	PurchaseOrderTypeRFLinked       PurchaseOrderType = "RF_LINKED"
	PurchaseOrderTypeDirectPurchase PurchaseOrderType = "DIRECT_PURCHASE"
)

var validPurchaseOrderTypes = []PurchaseOrderType{
	PurchaseOrderTypeRFLinked,
	PurchaseOrderTypeDirectPurchase,
}

// String implements fmt.Stringer.
func (t PurchaseOrderType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known PurchaseOrderType.
func (t PurchaseOrderType) IsValid() bool {
	for _, candidate := range validPurchaseOrderTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParsePurchaseOrderType converts raw input into a PurchaseOrderType.
func ParsePurchaseOrderType(value string) (PurchaseOrderType, error) {
	for _, candidate := range validPurchaseOrderTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid purchase order type %q", value)
}
