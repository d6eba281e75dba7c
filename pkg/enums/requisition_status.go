package enums

import "fmt"

// RequisitionStatus tracks the lifecycle of a department requisition.
type RequisitionStatus string

const (
	RequisitionStatusPendingApproval       RequisitionStatus = "PENDING_APPROVAL"
	RequisitionStatusApproved              RequisitionStatus = "APPROVED"
	RequisitionStatusRejected              RequisitionStatus = "REJECTED"
	RequisitionStatusDeliveredToDept       RequisitionStatus = "DELIVERED_TO_DEPT"
	RequisitionStatusForwardedToPurchasing RequisitionStatus = "FORWARDED_TO_PURCHASING"
	RequisitionStatusPOGenerated           RequisitionStatus = "PO_GENERATED"
	RequisitionStatusCompleted             RequisitionStatus = "COMPLETED"
)

var validRequisitionStatuses = []RequisitionStatus{
	RequisitionStatusPendingApproval,
	RequisitionStatusApproved,
	RequisitionStatusRejected,
	RequisitionStatusDeliveredToDept,
	RequisitionStatusForwardedToPurchasing,
	RequisitionStatusPOGenerated,
	RequisitionStatusCompleted,
}

// String implements fmt.Stringer.
func (s RequisitionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known RequisitionStatus.
func (s RequisitionStatus) IsValid() bool {
	for _, candidate := range validRequisitionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s RequisitionStatus) IsTerminal() bool {
	switch s {
	case RequisitionStatusRejected, RequisitionStatusDeliveredToDept, RequisitionStatusCompleted:
		return true
	}
	return false
}

// OpenRequisitionStatuses lists the statuses that still reference inventory.
func OpenRequisitionStatuses() []RequisitionStatus {
	out := make([]RequisitionStatus, 0, len(validRequisitionStatuses))
	for _, s := range validRequisitionStatuses {
		if !s.IsTerminal() {
			out = append(out, s)
		}
	}
	return out
}

// ParseRequisitionStatus converts raw input into a RequisitionStatus.
func ParseRequisitionStatus(value string) (RequisitionStatus, error) {
	for _, candidate := range validRequisitionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid requisition status %q", value)
}
