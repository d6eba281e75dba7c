package suppliers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mochkris/procurement-backend/pkg/db"
	"github.com/mochkris/procurement-backend/pkg/db/models"
	"github.com/mochkris/procurement-backend/pkg/enums"
	pkgerrors "github.com/mochkris/procurement-backend/pkg/errors"
	"github.com/mochkris/procurement-backend/pkg/outbox"
	"github.com/mochkris/procurement-backend/pkg/outbox/payloads"
	"github.com/mochkris/procurement-backend/pkg/pagination"
	"github.com/mochkris/procurement-backend/pkg/types"
)

const (
	MinRating = 1
	MaxRating = 5
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// PurchaseOrderRater marks a purchase order as rated in the caller's transaction.
type PurchaseOrderRater interface {
	MarkSupplierRated(ctx context.Context, tx *gorm.DB, actor types.Actor, id uuid.UUID, note string) (*models.PurchaseOrder, error)
}

// Service manages the supplier registry.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*SupplierDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*SupplierDTO, error)
	List(ctx context.Context, params pagination.Params) (*ListResult, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*SupplierDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Rate(ctx context.Context, actor types.Actor, input RateInput) (*SupplierDTO, error)
}

// CreateInput registers a supplier.
type CreateInput struct {
	Name    string
	Contact string
	Email   string
}

// UpdateInput carries optional contact changes.
type UpdateInput struct {
	Name    *string
	Contact *string
	Email   *string
}

// RateInput scores a supplier, optionally for a finished purchase order.
type RateInput struct {
	SupplierID      uuid.UUID
	Value           int
	Comment         string
	PurchaseOrderID *uuid.UUID
}

type service struct {
	repo   *Repository
	tx     txRunner
	outbox outboxPublisher
	orders PurchaseOrderRater
}

// NewService builds the supplier registry. orders is required to rate against a purchase order.
func NewService(repo *Repository, tx txRunner, outbox outboxPublisher, orders PurchaseOrderRater) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("supplier repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if orders == nil {
		return nil, fmt.Errorf("purchase order rater required")
	}
	return &service{repo: repo, tx: tx, outbox: outbox, orders: orders}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*SupplierDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	supplier := &models.Supplier{
		Name:    name,
		Contact: strings.TrimSpace(input.Contact),
		Email:   strings.TrimSpace(input.Email),
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := ensureNameFree(ctx, repo, name, uuid.Nil); err != nil {
			return err
		}
		if err := repo.Create(ctx, supplier); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "supplier name already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create supplier")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, supplier.ID)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*SupplierDTO, error) {
	supplier, err := s.repo.FindWithRatings(ctx, id)
	if err != nil {
		return nil, mapLoadError(err)
	}
	dto := FromModel(*supplier)
	return &dto, nil
}

func (s *service) List(ctx context.Context, params pagination.Params) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.List(ctx, cursor, pagination.LimitWithBuffer(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list suppliers")
	}
	rows, next := pagination.Trim(rows, limit, func(row models.Supplier) string {
		return pagination.EncodeCursor(pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID})
	})
	result := &ListResult{Suppliers: make([]SupplierDTO, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		result.Suppliers = append(result.Suppliers, FromModel(row))
	}
	return result, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*SupplierDTO, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		supplier, err := repo.FindByID(ctx, id)
		if err != nil {
			return mapLoadError(err)
		}
		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
			}
			if err := ensureNameFree(ctx, repo, name, supplier.ID); err != nil {
				return err
			}
			supplier.Name = name
		}
		if input.Contact != nil {
			supplier.Contact = strings.TrimSpace(*input.Contact)
		}
		if input.Email != nil {
			supplier.Email = strings.TrimSpace(*input.Email)
		}
		if err := repo.UpdateContact(ctx, supplier); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "supplier name already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update supplier")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapLoadError(err)
	}
	return nil
}

// Rate appends a rating and recomputes the supplier mean, rounded to one decimal.
// With a purchase order the order must be terminal and not yet rated.
func (s *service) Rate(ctx context.Context, actor types.Actor, input RateInput) (*SupplierDTO, error) {
	if input.SupplierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier id required")
	}
	if input.Value < MinRating || input.Value > MaxRating {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5").
			WithDetails(map[string]any{"value": input.Value})
	}
	comment := strings.TrimSpace(input.Comment)

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		supplier, err := repo.LockByID(ctx, input.SupplierID)
		if err != nil {
			return mapLoadError(err)
		}

		if input.PurchaseOrderID != nil {
			note := fmt.Sprintf("Supplier rated %d stars", input.Value)
			if comment != "" {
				note += ": " + comment
			}
			po, err := s.orders.MarkSupplierRated(ctx, tx, actor, *input.PurchaseOrderID, note)
			if err != nil {
				return err
			}
			if !ratesSupplier(po, supplier) {
				return pkgerrors.New(pkgerrors.CodeValidation, "purchase order was placed with a different supplier")
			}
		}

		if err := repo.CreateRating(ctx, &models.SupplierRating{
			SupplierID:      supplier.ID,
			PurchaseOrderID: input.PurchaseOrderID,
			Value:           input.Value,
			Comment:         comment,
			RatedBy:         actor.UserIDPtr(),
		}); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "supplier already rated for this purchase order")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create supplier rating")
		}

		total, count, err := repo.RatingTotals(ctx, supplier.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate supplier ratings")
		}
		mean := MeanRating(total, count)
		if err := repo.UpdateRating(ctx, supplier.ID, mean, count); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update supplier rating")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSupplierRated,
			AggregateType: enums.AggregateSupplier,
			AggregateID:   supplier.ID,
			Actor:         outbox.NewActorRef(actor.UserID, actor.Role.String()),
			Data: payloads.SupplierRatedEvent{
				SupplierID:      supplier.ID,
				PurchaseOrderID: input.PurchaseOrderID,
				Value:           input.Value,
				Rating:          mean.StringFixed(1),
				RatingCount:     int(count),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, input.SupplierID)
}

// MeanRating is total/count rounded half-up to one decimal; zero when count is zero.
func MeanRating(total, count int64) decimal.Decimal {
	if count <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(total).Div(decimal.NewFromInt(count)).Round(1)
}

func ratesSupplier(po *models.PurchaseOrder, supplier *models.Supplier) bool {
	if po.SupplierID != nil {
		return *po.SupplierID == supplier.ID
	}
	return strings.EqualFold(strings.TrimSpace(po.SupplierName), supplier.Name)
}

func ensureNameFree(ctx context.Context, repo *Repository, name string, self uuid.UUID) error {
	existing, err := repo.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check supplier name")
	}
	if existing.ID == self {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "supplier name already exists").
		WithDetails(map[string]any{"supplier_id": existing.ID})
}

func mapLoadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "supplier not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load supplier")
}
