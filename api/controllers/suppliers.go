package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mochkris/procurement-backend/api/responses"
	"github.com/mochkris/procurement-backend/api/validators"
	"github.com/mochkris/procurement-backend/internal/suppliers"
	"github.com/mochkris/procurement-backend/pkg/logger"
)

type createSupplierRequest struct {
	Name    string `json:"name" validate:"required,notblank,max=255"`
	Contact string `json:"contact" validate:"max=255"`
	Email   string `json:"email" validate:"omitempty,email"`
}

type updateSupplierRequest struct {
	Name    *string `json:"name,omitempty" validate:"omitempty,max=255"`
	Contact *string `json:"contact,omitempty" validate:"omitempty,max=255"`
	Email   *string `json:"email,omitempty" validate:"omitempty,email"`
}

type rateSupplierRequest struct {
	Rating          int        `json:"rating" validate:"required,min=1,max=5"`
	Comment         string     `json:"comment" validate:"max=1000"`
	PurchaseOrderID *uuid.UUID `json:"purchase_order_id,omitempty"`
}

func SupplierCreate(svc suppliers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createSupplierRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		supplier, err := svc.Create(r.Context(), suppliers.CreateInput{
			Name:    strings.TrimSpace(payload.Name),
			Contact: strings.TrimSpace(payload.Contact),
			Email:   strings.TrimSpace(payload.Email),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, supplier)
	}
}

func SupplierList(svc suppliers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := parsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func SupplierGet(svc suppliers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		supplier, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, supplier)
	}
}

func SupplierUpdate(svc suppliers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateSupplierRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		supplier, err := svc.Update(r.Context(), id, suppliers.UpdateInput{
			Name:    trimmedPtr(payload.Name),
			Contact: trimmedPtr(payload.Contact),
			Email:   trimmedPtr(payload.Email),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, supplier)
	}
}

func SupplierDelete(svc suppliers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// SupplierRate records a 1-5 rating, optionally tied to a finished purchase order.
func SupplierRate(svc suppliers.Service, logg *logger.Logger) http.HandlerFunc {
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
		var payload rateSupplierRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		supplier, err := svc.Rate(r.Context(), actor, suppliers.RateInput{
			SupplierID:      id,
			Value:           payload.Rating,
			Comment:         validators.CleanText(payload.Comment, 1000),
			PurchaseOrderID: payload.PurchaseOrderID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, supplier)
	}
}
