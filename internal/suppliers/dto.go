package suppliers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mochkris/procurement-backend/pkg/db/models"
)

// SupplierDTO is the API shape of a supplier.
type SupplierDTO struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Contact     string          `json:"contact"`
	Email       string          `json:"email"`
	Rating      decimal.Decimal `json:"rating"`
	RatingCount int             `json:"rating_count"`
	Ratings     []RatingDTO     `json:"ratings,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// RatingDTO is one score left for a supplier.
type RatingDTO struct {
	ID              uuid.UUID  `json:"id"`
	PurchaseOrderID *uuid.UUID `json:"purchase_order_id,omitempty"`
	Value           int        `json:"value"`
	Comment         string     `json:"comment,omitempty"`
	RatedBy         *uuid.UUID `json:"rated_by,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ListResult is a page of suppliers in creation order.
type ListResult struct {
	Suppliers  []SupplierDTO `json:"suppliers"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// FromModel maps a supplier row; ratings are included when preloaded.
func FromModel(s models.Supplier) SupplierDTO {
	dto := SupplierDTO{
		ID:          s.ID,
		Name:        s.Name,
		Contact:     s.Contact,
		Email:       s.Email,
		Rating:      s.Rating,
		RatingCount: s.RatingCount,
		CreatedAt:   s.CreatedAt,
	}
	for _, r := range s.Ratings {
		dto.Ratings = append(dto.Ratings, RatingDTO{
			ID:              r.ID,
			PurchaseOrderID: r.PurchaseOrderID,
			Value:           r.Value,
			Comment:         r.Comment,
			RatedBy:         r.RatedBy,
			CreatedAt:       r.CreatedAt,
		})
	}
	return dto
}
