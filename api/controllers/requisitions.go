package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mochkris/procurement-backend/api/responses"
	"github.com/mochkris/procurement-backend/api/validators"
	"github.com/mochkris/procurement-backend/internal/documents"
	"github.com/mochkris/procurement-backend/internal/requisitions"
	pkgerrors "github.com/mochkris/procurement-backend/pkg/errors"
	"github.com/mochkris/procurement-backend/pkg/logger"
)

type createRequisitionRequest struct {
	ItemDescription string           `json:"item_description" validate:"required,notblank,max=255"`
	Quantity        int              `json:"quantity" validate:"required,min=1"`
	ProductID       int64            `json:"product_id" validate:"required,min=1"`
	Supplier        *string          `json:"supplier,omitempty" validate:"omitempty,max=255"`
	UnitPrice       *decimal.Decimal `json:"unit_price,omitempty" validate:"omitempty,gte=0"`
}

type approvalRequest struct {
	Approved *bool `json:"approved" validate:"required"`
}

// RequisitionCreate raises a department request for stock.
func RequisitionCreate(svc requisitions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		var payload createRequisitionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req, err := svc.Create(r.Context(), actor, requisitions.CreateInput{
			ItemDescription: validators.CleanText(payload.ItemDescription, 255),
			Quantity:        payload.Quantity,
			ProductID:       payload.ProductID,
			Supplier:        trimmedPtr(payload.Supplier),
			UnitPrice:       payload.UnitPrice,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, req)
	}
}

func RequisitionGet(svc requisitions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, req)
	}
}

// RequisitionList filters by status, product_id and auto, newest first.
func RequisitionList(svc requisitions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := parsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		auto, err := validators.ParseQueryBool(r, "auto")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var productID int64
		if raw := strings.TrimSpace(r.URL.Query().Get("product_id")); raw != "" {
			productID, err = strconv.ParseInt(raw, 10, 64)
			if err != nil || productID <= 0 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid product_id").
					WithDetails(map[string]any{"field": "product_id"}))
				return
			}
		}
		list, err := svc.List(r.Context(), requisitions.ListInput{
			Status:    r.URL.Query().Get("status"),
			ProductID: productID,
			Auto:      auto,
			Params:    params,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// RequisitionApproval records the VP decision.
func RequisitionApproval(svc requisitions.Service, logg *logger.Logger) http.HandlerFunc {
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
		req, err := svc.Approve(r.Context(), actor, id, *payload.Approved)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, req)
	}
}

// RequisitionFulfillment runs the custodian stock check.
func RequisitionFulfillment(svc requisitions.Service, logg *logger.Logger) http.HandlerFunc {
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
		result, err := svc.FulfillmentCheck(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func RequisitionDocument(svc documents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.Requisition(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
