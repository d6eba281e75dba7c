package controllers

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mochkris/procurement-backend/api/responses"
	"github.com/mochkris/procurement-backend/api/validators"
	"github.com/mochkris/procurement-backend/internal/inventory"
	"github.com/mochkris/procurement-backend/pkg/enums"
	pkgerrors "github.com/mochkris/procurement-backend/pkg/errors"
	"github.com/mochkris/procurement-backend/pkg/logger"
)

type inventoryItemRequest struct {
	Name             string          `json:"name" validate:"required,notblank,max=255"`
	Quantity         int             `json:"quantity" validate:"min=0"`
	Unit             string          `json:"unit" validate:"max=32"`
	Price            decimal.Decimal `json:"price" validate:"gte=0"`
	RestockThreshold int             `json:"restock_threshold" validate:"min=0"`
	RestockQuantity  int             `json:"restock_quantity" validate:"min=0"`
}

func (r inventoryItemRequest) toAddInput() inventory.AddInput {
	return inventory.AddInput{
		Name:             strings.TrimSpace(r.Name),
		Quantity:         r.Quantity,
		Unit:             strings.TrimSpace(r.Unit),
		Price:            r.Price,
		RestockThreshold: r.RestockThreshold,
		RestockQuantity:  r.RestockQuantity,
	}
}

type provisionRequest struct {
	Name             string           `json:"name" validate:"required,notblank,max=255"`
	Unit             *string          `json:"unit,omitempty" validate:"omitempty,max=32"`
	Price            *decimal.Decimal `json:"price,omitempty" validate:"omitempty,gte=0"`
	RestockThreshold *int             `json:"restock_threshold,omitempty" validate:"omitempty,min=0"`
	RestockQuantity  *int             `json:"restock_quantity,omitempty" validate:"omitempty,min=0"`
}

type updateInventoryRequest struct {
	Name             *string          `json:"name,omitempty" validate:"omitempty,max=255"`
	Unit             *string          `json:"unit,omitempty" validate:"omitempty,max=32"`
	Price            *decimal.Decimal `json:"price,omitempty" validate:"omitempty,gte=0"`
	RestockThreshold *int             `json:"restock_threshold,omitempty" validate:"omitempty,min=0"`
	RestockQuantity  *int             `json:"restock_quantity,omitempty" validate:"omitempty,min=0"`
}

type adjustRequest struct {
	Delta int     `json:"delta" validate:"required"`
	Type  *string `json:"type,omitempty"`
}

// InventoryList pages the catalogue ordered by product id.
func InventoryList(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
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

func InventoryGet(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := parseProductIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.Get(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// InventoryCreate adds a product with opening stock.
func InventoryCreate(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		var payload inventoryItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.Add(r.Context(), actor, payload.toAddInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, item)
	}
}

// InventoryProvision registers a product at zero stock.
func InventoryProvision(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		var payload provisionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.Provision(r.Context(), actor, inventory.ProvisionInput{
			Name:             strings.TrimSpace(payload.Name),
			Unit:             trimmedPtr(payload.Unit),
			Price:            payload.Price,
			RestockThreshold: payload.RestockThreshold,
			RestockQuantity:  payload.RestockQuantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, item)
	}
}

// InventoryUpsert replaces the item at productId, creating it when absent.
func InventoryUpsert(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		productID, err := parseProductIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload inventoryItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.Upsert(r.Context(), actor, inventory.UpsertInput{ProductID: productID, AddInput: payload.toAddInput()})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

func InventoryUpdate(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := parseProductIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateInventoryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.Update(r.Context(), productID, inventory.UpdateInput{
			Name:             trimmedPtr(payload.Name),
			Unit:             trimmedPtr(payload.Unit),
			Price:            payload.Price,
			RestockThreshold: payload.RestockThreshold,
			RestockQuantity:  payload.RestockQuantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

func InventoryDelete(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := parseProductIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// InventoryAdjust books a manual stock correction.
func InventoryAdjust(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		productID, err := parseProductIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload adjustRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		kind := enums.InventoryTransactionAdjusted
		if payload.Type != nil {
			kind, err = enums.ParseInventoryTransactionType(strings.TrimSpace(*payload.Type))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid transaction type"))
				return
			}
		}
		item, err := svc.Adjust(r.Context(), actor, inventory.AdjustInput{
			ProductID: productID,
			Delta:     payload.Delta,
			Type:      kind,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

func InventoryLowStock(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.ListLowStock(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": items})
	}
}

// InventoryTransactions pages the ledger for one product, newest first.
func InventoryTransactions(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := parseProductIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := parsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListTransactions(r.Context(), productID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
