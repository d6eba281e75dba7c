package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mochkris/procurement-backend/api/responses"
	"github.com/mochkris/procurement-backend/api/validators"
	"github.com/mochkris/procurement-backend/internal/documents"
	"github.com/mochkris/procurement-backend/internal/purchaseorders"
	"github.com/mochkris/procurement-backend/internal/receiving"
	"github.com/mochkris/procurement-backend/pkg/logger"
	"github.com/mochkris/procurement-backend/pkg/types"
)

type fromRequisitionRequest struct {
	RequisitionID uuid.UUID `json:"requisition_id" validate:"required"`
	SupplierName  string    `json:"supplier_name" validate:"max=255"`
}

type directPurchaseRequest struct {
	SupplierName string              `json:"supplier_name" validate:"required,notblank,max=255"`
	Items        []directLineRequest `json:"items" validate:"required,min=1,dive"`
}

type directLineRequest struct {
	ProductID   int64            `json:"product_id" validate:"required,min=1"`
	Quantity    int              `json:"quantity" validate:"required,min=1"`
	Description string           `json:"description,omitempty" validate:"max=255"`
	Unit        string           `json:"unit,omitempty" validate:"max=32"`
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty" validate:"omitempty,gte=0"`
}

type receiptRequest struct {
	Damaged *bool `json:"damaged" validate:"required"`
}

// PurchaseOrderFromRequisition snapshots a forwarded requisition into an order.
func PurchaseOrderFromRequisition(svc purchaseorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		var payload fromRequisitionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		po, err := svc.CreateFromRequisition(r.Context(), actor, purchaseorders.FromRequisitionInput{
			RequisitionID: payload.RequisitionID,
			SupplierName:  strings.TrimSpace(payload.SupplierName),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, po)
	}
}

// PurchaseOrderDirect opens an order without a requisition.
func PurchaseOrderDirect(svc purchaseorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		var payload directPurchaseRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lines := make([]purchaseorders.LineInput, 0, len(payload.Items))
		for _, item := range payload.Items {
			lines = append(lines, purchaseorders.LineInput{
				ProductID:   item.ProductID,
				Quantity:    item.Quantity,
				Description: strings.TrimSpace(item.Description),
				Unit:        strings.TrimSpace(item.Unit),
				UnitPrice:   item.UnitPrice,
			})
		}
		po, err := svc.CreateDirect(r.Context(), actor, purchaseorders.DirectInput{
			SupplierName: strings.TrimSpace(payload.SupplierName),
			Items:        lines,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, po)
	}
}

func PurchaseOrderGet(svc purchaseorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		po, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, po)
	}
}

// PurchaseOrderList filters by status, type, requisition_id and supplier_id.
func PurchaseOrderList(svc purchaseorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := parsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requisitionID, err := parseOptionalUUIDQuery(r, "requisition_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		supplierID, err := parseOptionalUUIDQuery(r, "supplier_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.List(r.Context(), purchaseorders.ListInput{
			Status:        r.URL.Query().Get("status"),
			Type:          r.URL.Query().Get("type"),
			RequisitionID: requisitionID,
			SupplierID:    supplierID,
			Params:        params,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func PurchaseOrderApproval(svc purchaseorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := parseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload approvalRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		po, err := svc.Approve(r.Context(), actor, id, *payload.Approved)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, po)
	}
}

// PurchaseOrderResubmit returns a rejected order to VP approval.
func PurchaseOrderResubmit(svc purchaseorders.Service, logg *logger.Logger) http.HandlerFunc {
	return purchaseOrderAction(logg, svc.Resubmit)
}

// PurchaseOrderReadyForDelivery marks an approved order as exported.
func PurchaseOrderReadyForDelivery(svc purchaseorders.Service, logg *logger.Logger) http.HandlerFunc {
	return purchaseOrderAction(logg, svc.MarkReadyForDelivery)
}

func purchaseOrderAction(logg *logger.Logger, action func(ctx context.Context, actor types.Actor, id uuid.UUID) (*purchaseorders.PurchaseOrderDTO, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := parseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		po, err := action(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, po)
	}
}

// PurchaseOrderReceipt records goods receipt; damaged goods go back to the supplier.
func PurchaseOrderReceipt(svc receiving.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := parseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload receiptRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Receive(r.Context(), actor, id, *payload.Damaged)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// PurchaseOrderComplete receives a direct purchase in good condition.
func PurchaseOrderComplete(svc receiving.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := parseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.CompleteDirectPurchase(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func PurchaseOrderDocument(svc documents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.PurchaseOrder(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
