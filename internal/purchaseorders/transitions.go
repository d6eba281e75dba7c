package purchaseorders

import (
	"github.com/mochkris/procurement-backend/pkg/enums"
	pkgerrors "github.com/mochkris/procurement-backend/pkg/errors"
)

// Action is a named operation on a purchase order.
type Action string

const (
	ActionApprove          Action = "approve"
	ActionReject           Action = "reject"
	ActionResubmit         Action = "resubmit"
	ActionReadyForDelivery Action = "mark_ready_for_delivery"
	ActionReceiveGood      Action = "receive_good"
	ActionReceiveDamaged   Action = "receive_damaged"
)

type transition struct {
	to   enums.PurchaseOrderStatus
	note string
}

var transitions = map[enums.PurchaseOrderStatus]map[Action]transition{
	enums.PurchaseOrderStatusPendingApproval: {
		ActionApprove: {to: enums.PurchaseOrderStatusSentToManager, note: "Signed by VP. Sent to Manager."},
		ActionReject:  {to: enums.PurchaseOrderStatusReturnedToPurchasing, note: "Unsigned. Returned."},
	},
	enums.PurchaseOrderStatusReturnedToPurchasing: {
		ActionResubmit: {to: enums.PurchaseOrderStatusPendingApproval, note: "Revised by Purchasing. Resubmitted for Approval."},
	},
	enums.PurchaseOrderStatusSentToManager: {
		ActionReadyForDelivery: {to: enums.PurchaseOrderStatusSentToManager, note: "PO Generated. Ready for Delivery."},
		ActionReceiveGood:      {to: enums.PurchaseOrderStatusCompleted, note: "Items Good. Delivered."},
		ActionReceiveDamaged:   {to: enums.PurchaseOrderStatusReturnedToSupplier, note: "Items Damaged. Returned to Supplier."},
	},
}

const (
	noteCreatedFromRequisition = "PO Created after Canvassing"
	noteCreatedDirect          = "Direct Purchase Created"
)

// Next resolves the status reached by applying action in from.
func Next(from enums.PurchaseOrderStatus, action Action) (enums.PurchaseOrderStatus, error) {
	t, err := lookup(from, action)
	if err != nil {
		return "", err
	}
	return t.to, nil
}

func lookup(from enums.PurchaseOrderStatus, action Action) (transition, error) {
	if actions, ok := transitions[from]; ok {
		if t, ok := actions[action]; ok {
			return t, nil
		}
	}
	return transition{}, pkgerrors.New(pkgerrors.CodeStateConflict, "purchase order transition not allowed").
		WithDetails(map[string]any{"from": from, "action": action})
}
