package requisitions

import (
	"github.com/mochkris/procurement-backend/pkg/enums"
	pkgerrors "github.com/mochkris/procurement-backend/pkg/errors"
)

// Action is a named operation that moves a requisition between statuses.
type Action string

const (
	ActionApprove          Action = "approve"
	ActionReject           Action = "reject"
	ActionFulfillFromStock Action = "fulfill_from_stock"
	ActionForward          Action = "forward_to_purchasing"
	ActionMarkPOGenerated  Action = "mark_po_generated"
	ActionMarkCompleted    Action = "mark_completed"
	ActionReopen           Action = "reopen_for_purchasing"
)

type transition struct {
	to   enums.RequisitionStatus
	note string
}

var transitions = map[enums.RequisitionStatus]map[Action]transition{
	enums.RequisitionStatusPendingApproval: {
		ActionApprove: {to: enums.RequisitionStatusApproved, note: "Signed by VP"},
		ActionReject:  {to: enums.RequisitionStatusRejected, note: "Returned to Dept (Not Signed)"},
	},
	enums.RequisitionStatusApproved: {
		ActionFulfillFromStock: {to: enums.RequisitionStatusDeliveredToDept, note: "Delivered to Department"},
		ActionForward:          {to: enums.RequisitionStatusForwardedToPurchasing, note: "Insufficient stock. Forwarded to Purchasing"},
	},
	enums.RequisitionStatusForwardedToPurchasing: {
		ActionMarkPOGenerated: {to: enums.RequisitionStatusPOGenerated, note: "PO Generated"},
	},
	enums.RequisitionStatusPOGenerated: {
		ActionMarkCompleted: {to: enums.RequisitionStatusCompleted, note: "Item Received from Supplier and Delivered."},
		ActionReopen:        {to: enums.RequisitionStatusForwardedToPurchasing, note: "Items Damaged. Returned to Supplier."},
	},
}

const (
	noteCreated     = "Created by Department"
	noteAutoRestock = "Auto-generated due to low stock"
)

// Next resolves the status reached by applying action in from.
func Next(from enums.RequisitionStatus, action Action) (enums.RequisitionStatus, error) {
	t, err := lookup(from, action)
	if err != nil {
		return "", err
	}
	return t.to, nil
}

func lookup(from enums.RequisitionStatus, action Action) (transition, error) {
	if actions, ok := transitions[from]; ok {
		if t, ok := actions[action]; ok {
			return t, nil
		}
	}
	return transition{}, pkgerrors.New(pkgerrors.CodeStateConflict, "requisition transition not allowed").
		WithDetails(map[string]any{"from": from, "action": action})
}
