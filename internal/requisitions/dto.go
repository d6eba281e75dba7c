package requisitions

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mochkris/procurement-backend/pkg/db/models"
	"github.com/mochkris/procurement-backend/pkg/enums"
)

// RequisitionDTO is the API shape of a requisition with its history.
type RequisitionDTO struct {
	ID              uuid.UUID               `json:"id"`
	ItemDescription string                  `json:"item_description"`
	Quantity        int                     `json:"quantity"`
	ProductID       int64                   `json:"product_id"`
	UnitPrice       decimal.Decimal         `json:"unit_price"`
	Status          enums.RequisitionStatus `json:"status"`
	Supplier        *string                 `json:"supplier,omitempty"`
	Auto            bool                    `json:"auto"`
	RequestedBy     *uuid.UUID              `json:"requested_by,omitempty"`
	RequestDate     time.Time               `json:"request_date"`
	History         []HistoryDTO            `json:"history"`
}

// HistoryDTO is one audit entry.
type HistoryDTO struct {
	Status    enums.RequisitionStatus `json:"status"`
	Note      string                  `json:"note"`
	ActorID   *uuid.UUID              `json:"actor_id,omitempty"`
	ActorRole *string                 `json:"actor_role,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
}

// ListResult is a page of requisitions, newest first.
type ListResult struct {
	Requisitions []RequisitionDTO `json:"requisitions"`
	NextCursor   string           `json:"next_cursor,omitempty"`
}

// FulfillmentResult reports what a custodian stock check did.
type FulfillmentResult struct {
	Requisition    RequisitionDTO  `json:"requisition"`
	Fulfilled      bool            `json:"fulfilled"`
	RemainingStock int             `json:"remaining_stock"`
	AutoRestock    *RequisitionDTO `json:"auto_restock,omitempty"`
}

// FromModel maps a requisition row (with preloaded history) to its DTO.
func FromModel(r models.Requisition) RequisitionDTO {
	dto := RequisitionDTO{
		ID:              r.ID,
		ItemDescription: r.ItemDescription,
		Quantity:        r.Quantity,
		ProductID:       r.ProductID,
		UnitPrice:       r.UnitPrice,
		Status:          r.Status,
		Supplier:        r.Supplier,
		Auto:            r.Auto,
		RequestedBy:     r.RequestedBy,
		RequestDate:     r.RequestDate,
		History:         make([]HistoryDTO, 0, len(r.History)),
	}
	for _, h := range r.History {
		dto.History = append(dto.History, HistoryDTO{
			Status:    h.Status,
			Note:      h.Note,
			ActorID:   h.ActorID,
			ActorRole: h.ActorRole,
			CreatedAt: h.CreatedAt,
		})
	}
	return dto
}
