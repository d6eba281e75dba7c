package requisitions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mochkris/procurement-backend/internal/inventory"
	"github.com/mochkris/procurement-backend/pkg/db/models"
	"github.com/mochkris/procurement-backend/pkg/enums"
	pkgerrors "github.com/mochkris/procurement-backend/pkg/errors"
	"github.com/mochkris/procurement-backend/pkg/logger"
	"github.com/mochkris/procurement-backend/pkg/outbox"
	"github.com/mochkris/procurement-backend/pkg/outbox/payloads"
	"github.com/mochkris/procurement-backend/pkg/pagination"
	"github.com/mochkris/procurement-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// StockLedger is the slice of the inventory service the workflow needs.
type StockLedger interface {
	Load(ctx context.Context, tx *gorm.DB, productID int64) (*models.InventoryItem, error)
	ApplyDelta(ctx context.Context, tx *gorm.DB, input inventory.AdjustInput) (*models.InventoryItem, error)
}

type workflowMetrics interface {
	ObserveTransition(aggregate, from, to string)
	IncAutoRestock()
}

// Service runs the requisition state machine.
type Service interface {
	Create(ctx context.Context, actor types.Actor, input CreateInput) (*RequisitionDTO, error)
	Approve(ctx context.Context, actor types.Actor, id uuid.UUID, approved bool) (*RequisitionDTO, error)
	FulfillmentCheck(ctx context.Context, actor types.Actor, id uuid.UUID) (*FulfillmentResult, error)
	Get(ctx context.Context, id uuid.UUID) (*RequisitionDTO, error)
	List(ctx context.Context, input ListInput) (*ListResult, error)

	// The following run inside a transaction owned by the purchase order,
	// receiving or cron flows.
	Load(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Requisition, error)
	MarkPOGenerated(ctx context.Context, tx *gorm.DB, actor types.Actor, id uuid.UUID) error
	MarkCompleted(ctx context.Context, tx *gorm.DB, actor types.Actor, id uuid.UUID) error
	ReopenForPurchasing(ctx context.Context, tx *gorm.DB, actor types.Actor, id uuid.UUID) error
	RaiseAutoRestock(ctx context.Context, tx *gorm.DB, item models.InventoryItem, source *uuid.UUID) (*models.Requisition, error)
	HasOpenAutoRequisition(ctx context.Context, tx *gorm.DB, productID int64) (bool, error)
}

// CreateInput is a department's request. UnitPrice defaults to the inventory price.
type CreateInput struct {
	ItemDescription string
	Quantity        int
	ProductID       int64
	Supplier        *string
	UnitPrice       *decimal.Decimal
}

// ListInput filters and pages List.
type ListInput struct {
	Status    string
	ProductID int64
	Auto      *bool
	pagination.Params
}

type service struct {
	repo      *Repository
	tx        txRunner
	outbox    outboxPublisher
	inventory StockLedger
	metrics   workflowMetrics
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the requisition workflow. metrics and logg may be nil.
func NewService(repo *Repository, tx txRunner, outbox outboxPublisher, inventory StockLedger, metrics workflowMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("requisition repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		outbox:    outbox,
		inventory: inventory,
		metrics:   metrics,
		logg:      logg,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Create(ctx context.Context, actor types.Actor, input CreateInput) (*RequisitionDTO, error) {
	description := strings.TrimSpace(input.ItemDescription)
	if description == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item description is required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero")
	}
	if input.ProductID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if input.UnitPrice != nil && input.UnitPrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price must be >= 0")
	}

	var id uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		item, err := s.inventory.Load(ctx, tx, input.ProductID)
		if err != nil {
			return err
		}
		price := item.Price
		if input.UnitPrice != nil {
			price = *input.UnitPrice
		}
		req := &models.Requisition{
			ItemDescription: description,
			Quantity:        input.Quantity,
			ProductID:       input.ProductID,
			UnitPrice:       price,
			Status:          enums.RequisitionStatusPendingApproval,
			Supplier:        trimmedOrNil(input.Supplier),
			RequestedBy:     actor.UserIDPtr(),
			RequestDate:     s.now(),
		}
		if err := s.insert(ctx, tx, actor, req, noteCreated); err != nil {
			return err
		}
		id = req.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *service) Approve(ctx context.Context, actor types.Actor, id uuid.UUID, approved bool) (*RequisitionDTO, error) {
	action := ActionReject
	if approved {
		action = ActionApprove
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		req, err := s.Load(ctx, tx, id)
		if err != nil {
			return err
		}
		return s.apply(ctx, tx, actor, req, action)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// FulfillmentCheck deducts stock when it covers the request, otherwise forwards to
// purchasing. A deduction that leaves the item under its threshold raises one auto
// restock requisition in the same transaction.
func (s *service) FulfillmentCheck(ctx context.Context, actor types.Actor, id uuid.UUID) (*FulfillmentResult, error) {
	result := &FulfillmentResult{}
	var autoID *uuid.UUID

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		req, err := s.Load(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := Next(req.Status, ActionFulfillFromStock); err != nil {
			return err
		}

		item, err := s.inventory.Load(ctx, tx, req.ProductID)
		if err != nil {
			return err
		}
		result.RemainingStock = item.Quantity

		action := ActionForward
		if item.Quantity >= req.Quantity {
			after, err := s.inventory.ApplyDelta(ctx, tx, inventory.AdjustInput{
				ProductID: req.ProductID,
				Delta:     -req.Quantity,
				Type:      enums.InventoryTransactionDeducted,
				RelatedID: &req.ID,
				ActorID:   actor.UserIDPtr(),
				ActorRole: actor.Role.String(),
			})
			switch {
			case err == nil:
				action = ActionFulfillFromStock
				item = after
				result.RemainingStock = after.Quantity
			case isCode(err, pkgerrors.CodeInsufficient):
				// stock moved between the read and the conditional update
			default:
				return err
			}
		}

		if err := s.apply(ctx, tx, actor, req, action); err != nil {
			return err
		}
		result.Fulfilled = action == ActionFulfillFromStock

		if result.Fulfilled && item.BelowThreshold() {
			auto, err := s.RaiseAutoRestock(ctx, tx, *item, &req.ID)
			if err != nil {
				return err
			}
			if auto != nil {
				autoID = &auto.ID
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	dto, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	result.Requisition = *dto
	if autoID != nil {
		auto, err := s.Get(ctx, *autoID)
		if err != nil {
			return nil, err
		}
		result.AutoRestock = auto
	}
	return result, nil
}

func (s *service) MarkPOGenerated(ctx context.Context, tx *gorm.DB, actor types.Actor, id uuid.UUID) error {
	req, err := s.Load(ctx, tx, id)
	if err != nil {
		return err
	}
	return s.apply(ctx, tx, actor, req, ActionMarkPOGenerated)
}

func (s *service) MarkCompleted(ctx context.Context, tx *gorm.DB, actor types.Actor, id uuid.UUID) error {
	req, err := s.Load(ctx, tx, id)
	if err != nil {
		return err
	}
	return s.apply(ctx, tx, actor, req, ActionMarkCompleted)
}

// ReopenForPurchasing hands a requisition whose order came back damaged to
// purchasing again so a replacement order can be raised.
func (s *service) ReopenForPurchasing(ctx context.Context, tx *gorm.DB, actor types.Actor, id uuid.UUID) error {
	req, err := s.Load(ctx, tx, id)
	if err != nil {
		return err
	}
	return s.apply(ctx, tx, actor, req, ActionReopen)
}

// RaiseAutoRestock creates a system requisition for the item's restock quantity.
// It returns nil without error when the item has no restock quantity configured.
func (s *service) RaiseAutoRestock(ctx context.Context, tx *gorm.DB, item models.InventoryItem, source *uuid.UUID) (*models.Requisition, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if item.RestockQuantity <= 0 {
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"product_id": item.ProductID,
				"quantity":   item.Quantity,
				"threshold":  item.RestockThreshold,
			})
			s.logg.Warn(logCtx, "auto restock skipped: restock quantity not configured")
		}
		return nil, nil
	}
	system := types.SystemActor()
	req := &models.Requisition{
		ItemDescription: item.Name,
		Quantity:        item.RestockQuantity,
		ProductID:       item.ProductID,
		UnitPrice:       item.Price,
		Status:          enums.RequisitionStatusPendingApproval,
		Auto:            true,
		RequestDate:     s.now(),
	}
	if err := s.insert(ctx, tx, system, req, noteAutoRestock); err != nil {
		return nil, err
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventRequisitionAutoRestocked,
		AggregateType: enums.AggregateRequisition,
		AggregateID:   req.ID,
		Actor:         outbox.NewActorRef(uuid.Nil, system.Role.String()),
		Data: payloads.RequisitionAutoRestockedEvent{
			RequisitionID:       req.ID,
			SourceRequisitionID: source,
			ProductID:           item.ProductID,
			Quantity:            item.RestockQuantity,
			StockLevel:          item.Quantity,
			Threshold:           item.RestockThreshold,
		},
	}); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncAutoRestock()
	}
	return req, nil
}

func (s *service) HasOpenAutoRequisition(ctx context.Context, tx *gorm.DB, productID int64) (bool, error) {
	repo := s.repo
	if tx != nil {
		repo = repo.WithTx(tx)
	}
	open, err := repo.HasOpenAutoRequisition(ctx, productID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check open auto requisitions")
	}
	return open, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*RequisitionDTO, error) {
	req, err := s.repo.FindWithHistory(ctx, id)
	if err != nil {
		return nil, mapLoadError(err, id)
	}
	dto := FromModel(*req)
	return &dto, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	filter := ListFilter{ProductID: input.ProductID, Auto: input.Auto}
	if strings.TrimSpace(input.Status) != "" {
		status, err := enums.ParseRequisitionStatus(strings.ToUpper(strings.TrimSpace(input.Status)))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		filter.Status = status
	}
	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(input.Limit)

	rows, err := s.repo.List(ctx, filter, cursor, pagination.LimitWithBuffer(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list requisitions")
	}
	rows, next := pagination.Trim(rows, limit, func(row models.Requisition) string {
		return pagination.EncodeCursor(pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID})
	})
	result := &ListResult{Requisitions: make([]RequisitionDTO, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		result.Requisitions = append(result.Requisitions, FromModel(row))
	}
	return result, nil
}

func (s *service) Load(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Requisition, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "requisition id required")
	}
	repo := s.repo
	if tx != nil {
		repo = repo.WithTx(tx)
	}
	req, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLoadError(err, id)
	}
	return req, nil
}

func (s *service) insert(ctx context.Context, tx *gorm.DB, actor types.Actor, req *models.Requisition, note string) error {
	repo := s.repo.WithTx(tx)
	if err := repo.Create(ctx, req); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create requisition")
	}
	if err := repo.AppendHistory(ctx, &models.RequisitionHistory{
		RequisitionID: req.ID,
		Status:        req.Status,
		Note:          note,
		ActorID:       actor.UserIDPtr(),
		ActorRole:     actor.RolePtr(),
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append requisition history")
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventRequisitionCreated,
		AggregateType: enums.AggregateRequisition,
		AggregateID:   req.ID,
		Actor:         outbox.NewActorRef(actor.UserID, actor.Role.String()),
		Data: payloads.RequisitionCreatedEvent{
			RequisitionID: req.ID,
			ProductID:     req.ProductID,
			Quantity:      req.Quantity,
			Auto:          req.Auto,
			Status:        req.Status,
		},
	}); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.ObserveTransition(string(enums.AggregateRequisition), "", req.Status.String())
	}
	s.logTransition(ctx, req.ID, "", req.Status)
	return nil
}

// apply moves req through action with a conditional update, then appends history
// and emits the status change.
func (s *service) apply(ctx context.Context, tx *gorm.DB, actor types.Actor, req *models.Requisition, action Action) error {
	t, err := lookup(req.Status, action)
	if err != nil {
		return err
	}
	repo := s.repo.WithTx(tx)
	from := req.Status

	affected, err := repo.UpdateStatus(ctx, req.ID, from, t.to)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update requisition status")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "requisition was modified concurrently").
			WithDetails(map[string]any{"from": from, "action": action})
	}
	req.Status = t.to

	if err := repo.AppendHistory(ctx, &models.RequisitionHistory{
		RequisitionID: req.ID,
		Status:        t.to,
		Note:          t.note,
		ActorID:       actor.UserIDPtr(),
		ActorRole:     actor.RolePtr(),
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append requisition history")
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventRequisitionStatusChanged,
		AggregateType: enums.AggregateRequisition,
		AggregateID:   req.ID,
		Actor:         outbox.NewActorRef(actor.UserID, actor.Role.String()),
		Data: payloads.RequisitionStatusChangedEvent{
			RequisitionID: req.ID,
			ProductID:     req.ProductID,
			From:          from,
			To:            t.to,
			Note:          t.note,
		},
	}); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.ObserveTransition(string(enums.AggregateRequisition), from.String(), t.to.String())
	}
	s.logTransition(ctx, req.ID, from, t.to)
	return nil
}

func (s *service) logTransition(ctx context.Context, id uuid.UUID, from, to enums.RequisitionStatus) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithRequisitionID(ctx, id.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{"from": from, "to": to})
	s.logg.Info(logCtx, "requisition transition")
}

func mapLoadError(err error, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "requisition not found").
			WithDetails(map[string]any{"requisition_id": id})
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load requisition")
}

func isCode(err error, code pkgerrors.Code) bool {
	typed := pkgerrors.As(err)
	return typed != nil && typed.Code() == code
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
