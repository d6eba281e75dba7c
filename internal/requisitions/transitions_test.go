package requisitions

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mochkris/procurement-backend/pkg/enums"
	pkgerrors "github.com/mochkris/procurement-backend/pkg/errors"
)

func TestNextFollowsTable(t *testing.T) {
	cases := []struct {
		from   enums.RequisitionStatus
		action Action
		want   enums.RequisitionStatus
	}{
		{enums.RequisitionStatusPendingApproval, ActionApprove, enums.RequisitionStatusApproved},
		{enums.RequisitionStatusPendingApproval, ActionReject, enums.RequisitionStatusRejected},
		{enums.RequisitionStatusApproved, ActionFulfillFromStock, enums.RequisitionStatusDeliveredToDept},
		{enums.RequisitionStatusApproved, ActionForward, enums.RequisitionStatusForwardedToPurchasing},
		{enums.RequisitionStatusForwardedToPurchasing, ActionMarkPOGenerated, enums.RequisitionStatusPOGenerated},
		{enums.RequisitionStatusPOGenerated, ActionMarkCompleted, enums.RequisitionStatusCompleted},
		{enums.RequisitionStatusPOGenerated, ActionReopen, enums.RequisitionStatusForwardedToPurchasing},
	}
	for _, tc := range cases {
		got, err := Next(tc.from, tc.action)
		require.NoError(t, err, "%s/%s", tc.from, tc.action)
		require.Equal(t, tc.want, got)
	}
}

func TestNextRejectsIllegalPairs(t *testing.T) {
	illegal := []struct {
		from   enums.RequisitionStatus
		action Action
	}{
		{enums.RequisitionStatusApproved, ActionApprove},
		{enums.RequisitionStatusPendingApproval, ActionFulfillFromStock},
		{enums.RequisitionStatusApproved, ActionMarkPOGenerated},
		{enums.RequisitionStatusForwardedToPurchasing, ActionMarkCompleted},
		{enums.RequisitionStatusRejected, ActionApprove},
		{enums.RequisitionStatusCompleted, ActionMarkCompleted},
		{enums.RequisitionStatusDeliveredToDept, ActionForward},
		{enums.RequisitionStatusForwardedToPurchasing, ActionReopen},
		{enums.RequisitionStatusCompleted, ActionReopen},
	}
	for _, tc := range illegal {
		_, err := Next(tc.from, tc.action)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed, "%s/%s", tc.from, tc.action)
		require.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
	}
}

func TestTerminalStatusesHaveNoTransitions(t *testing.T) {
	for status := range transitions {
		require.False(t, status.IsTerminal(), "%s is terminal but has outgoing transitions", status)
	}
}
