package purchaseorders

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

// RequisitionWorkflow is the slice of the requisition service purchasing drives.
type RequisitionWorkflow interface {
	Load(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Requisition, error)
	MarkPOGenerated(ctx context.Context, tx *gorm.DB, actor types.Actor, id uuid.UUID) error
}

// StockReader resolves products named on order lines.
type StockReader interface {
	Load(ctx context.Context, tx *gorm.DB, productID int64) (*models.InventoryItem, error)
}

// SupplierLookup finds a registry entry by case-insensitive name; nil when absent.
type SupplierLookup interface {
	FindByName(ctx context.Context, tx *gorm.DB, name string) (*models.Supplier, error)
}

type workflowMetrics interface {
	ObserveTransition(aggregate, from, to string)
}

// Service runs the purchase order state machine.
type Service interface {
	CreateFromRequisition(ctx context.Context, actor types.Actor, input FromRequisitionInput) (*PurchaseOrderDTO, error)
	CreateDirect(ctx context.Context, actor types.Actor, input DirectInput) (*PurchaseOrderDTO, error)
	Approve(ctx context.Context, actor types.Actor, id uuid.UUID, approved bool) (*PurchaseOrderDTO, error)
	Resubmit(ctx context.Context, actor types.Actor, id uuid.UUID) (*PurchaseOrderDTO, error)
	MarkReadyForDelivery(ctx context.Context, actor types.Actor, id uuid.UUID) (*PurchaseOrderDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*PurchaseOrderDTO, error)
	List(ctx context.Context, input ListInput) (*ListResult, error)

	// In-transaction hooks for receiving and supplier rating.
	Load(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.PurchaseOrder, error)
	Transition(ctx context.Context, tx *gorm.DB, actor types.Actor, po *models.PurchaseOrder, action Action) error
	MarkSupplierRated(ctx context.Context, tx *gorm.DB, actor types.Actor, id uuid.UUID, note string) (*models.PurchaseOrder, error)
}

// FromRequisitionInput opens an RF-linked order. SupplierName falls back to the
// supplier named on the requisition.
type FromRequisitionInput struct {
	RequisitionID uuid.UUID
	SupplierName  string
}

// DirectInput opens a purchase order without a requisition.
type DirectInput struct {
	SupplierName string
	Items        []LineInput
}

// LineInput is one direct purchase line. Empty fields take the inventory values.
type LineInput struct {
	ProductID   int64
	Quantity    int
	Description string
	Unit        string
	UnitPrice   *decimal.Decimal
}

// ListInput filters and pages List.
type ListInput struct {
	Status        string
	Type          string
	RequisitionID *uuid.UUID
	SupplierID    *uuid.UUID
	pagination.Params
}

type service struct {
	repo         *Repository
	tx           txRunner
	outbox       outboxPublisher
	requisitions RequisitionWorkflow
	stock        StockReader
	suppliers    SupplierLookup
	metrics      workflowMetrics
	logg         *logger.Logger
}

// NewService builds the purchase order workflow. suppliers, metrics and logg may be nil.
func NewService(repo *Repository, tx txRunner, outbox outboxPublisher, requisitions RequisitionWorkflow, stock StockReader, suppliers SupplierLookup, metrics workflowMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("purchase order repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if requisitions == nil {
		return nil, fmt.Errorf("requisition workflow required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock reader required")
	}
	return &service{
		repo:         repo,
		tx:           tx,
		outbox:       outbox,
		requisitions: requisitions,
		stock:        stock,
		suppliers:    suppliers,
		metrics:      metrics,
		logg:         logg,
	}, nil
}

func (s *service) CreateFromRequisition(ctx context.Context, actor types.Actor, input FromRequisitionInput) (*PurchaseOrderDTO, error) {
	if input.RequisitionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "requisition id required")
	}

	var id uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		req, err := s.requisitions.Load(ctx, tx, input.RequisitionID)
		if err != nil {
			return err
		}
		if req.Status != enums.RequisitionStatusForwardedToPurchasing {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "requisition is not forwarded to purchasing").
				WithDetails(map[string]any{"requisition_id": req.ID, "status": req.Status})
		}

		supplierName := strings.TrimSpace(input.SupplierName)
		if supplierName == "" && req.Supplier != nil {
			supplierName = strings.TrimSpace(*req.Supplier)
		}
		if supplierName == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "supplier name is required")
		}

		item, err := s.stock.Load(ctx, tx, req.ProductID)
		if err != nil {
			return err
		}

		reqID := req.ID
		po := &models.PurchaseOrder{
			Type:          enums.PurchaseOrderTypeRFLinked,
			RequisitionID: &reqID,
			SupplierName:  supplierName,
			Status:        enums.PurchaseOrderStatusPendingApproval,
			CreatedBy:     actor.UserIDPtr(),
			Items: []models.PurchaseOrderLine{{
				ProductID:   req.ProductID,
				Description: req.ItemDescription,
				Quantity:    req.Quantity,
				Unit:        item.Unit,
				UnitPrice:   req.UnitPrice,
			}},
		}
		if err := s.insert(ctx, tx, actor, po, noteCreatedFromRequisition); err != nil {
			return err
		}
		if err := s.requisitions.MarkPOGenerated(ctx, tx, actor, req.ID); err != nil {
			return err
		}
		id = po.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *service) CreateDirect(ctx context.Context, actor types.Actor, input DirectInput) (*PurchaseOrderDTO, error) {
	supplierName := strings.TrimSpace(input.SupplierName)
	if supplierName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier name is required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	for i, line := range input.Items {
		if line.ProductID <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required").
				WithDetails(map[string]any{"line": i})
		}
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero").
				WithDetails(map[string]any{"line": i})
		}
		if line.UnitPrice != nil && line.UnitPrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price must be >= 0").
				WithDetails(map[string]any{"line": i})
		}
	}

	var id uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		lines := make([]models.PurchaseOrderLine, 0, len(input.Items))
		for _, in := range input.Items {
			item, err := s.stock.Load(ctx, tx, in.ProductID)
			if err != nil {
				return err
			}
			line := models.PurchaseOrderLine{
				ProductID:   in.ProductID,
				Description: strings.TrimSpace(in.Description),
				Quantity:    in.Quantity,
				Unit:        strings.TrimSpace(in.Unit),
				UnitPrice:   item.Price,
			}
			if line.Description == "" {
				line.Description = item.Name
			}
			if line.Unit == "" {
				line.Unit = item.Unit
			}
			if in.UnitPrice != nil {
				line.UnitPrice = *in.UnitPrice
			}
			lines = append(lines, line)
		}

		po := &models.PurchaseOrder{
			Type:         enums.PurchaseOrderTypeDirectPurchase,
			SupplierName: supplierName,
			Status:       enums.PurchaseOrderStatusSentToManager,
			CreatedBy:    actor.UserIDPtr(),
			Items:        lines,
		}
		if err := s.insert(ctx, tx, actor, po, noteCreatedDirect); err != nil {
			return err
		}
		id = po.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *service) Approve(ctx context.Context, actor types.Actor, id uuid.UUID, approved bool) (*PurchaseOrderDTO, error) {
	action := ActionReject
	if approved {
		action = ActionApprove
	}
	return s.transitionByID(ctx, actor, id, action)
}

func (s *service) Resubmit(ctx context.Context, actor types.Actor, id uuid.UUID) (*PurchaseOrderDTO, error) {
	return s.transitionByID(ctx, actor, id, ActionResubmit)
}

// MarkReadyForDelivery records export readiness. Status stays SENT_TO_MANAGER and
// each call appends one history entry.
func (s *service) MarkReadyForDelivery(ctx context.Context, actor types.Actor, id uuid.UUID) (*PurchaseOrderDTO, error) {
	return s.transitionByID(ctx, actor, id, ActionReadyForDelivery)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*PurchaseOrderDTO, error) {
	po, err := s.repo.FindWithHistory(ctx, id)
	if err != nil {
		return nil, mapLoadError(err, id)
	}
	dto := FromModel(*po)
	return &dto, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	filter := ListFilter{RequisitionID: input.RequisitionID, SupplierID: input.SupplierID}
	if strings.TrimSpace(input.Status) != "" {
		status, err := enums.ParsePurchaseOrderStatus(strings.ToUpper(strings.TrimSpace(input.Status)))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		filter.Status = status
	}
	if strings.TrimSpace(input.Type) != "" {
		poType, err := enums.ParsePurchaseOrderType(strings.ToUpper(strings.TrimSpace(input.Type)))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type filter")
		}
		filter.Type = poType
	}
	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(input.Limit)

	rows, err := s.repo.List(ctx, filter, cursor, pagination.LimitWithBuffer(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list purchase orders")
	}
	rows, next := pagination.Trim(rows, limit, func(row models.PurchaseOrder) string {
		return pagination.EncodeCursor(pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID})
	})
	result := &ListResult{PurchaseOrders: make([]PurchaseOrderDTO, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		result.PurchaseOrders = append(result.PurchaseOrders, FromModel(row))
	}
	return result, nil
}

func (s *service) Load(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.PurchaseOrder, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase order id required")
	}
	repo := s.repo
	if tx != nil {
		repo = repo.WithTx(tx)
	}
	po, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLoadError(err, id)
	}
	return po, nil
}

// Transition applies action with a conditional status update, appends history and
// emits the status change, all in tx.
func (s *service) Transition(ctx context.Context, tx *gorm.DB, actor types.Actor, po *models.PurchaseOrder, action Action) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	t, err := lookup(po.Status, action)
	if err != nil {
		return err
	}
	repo := s.repo.WithTx(tx)
	from := po.Status

	affected, err := repo.UpdateStatus(ctx, po.ID, from, t.to)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update purchase order status")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "purchase order was modified concurrently").
			WithDetails(map[string]any{"from": from, "action": action})
	}
	po.Status = t.to

	if err := s.appendHistory(ctx, repo, actor, po.ID, t.to, t.note); err != nil {
		return err
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPurchaseOrderStatusChanged,
		AggregateType: enums.AggregatePurchaseOrder,
		AggregateID:   po.ID,
		Actor:         outbox.NewActorRef(actor.UserID, actor.Role.String()),
		Data: payloads.PurchaseOrderStatusChangedEvent{
			PurchaseOrderID: po.ID,
			Type:            po.Type,
			From:            from,
			To:              t.to,
			Note:            t.note,
		},
	}); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.ObserveTransition(string(enums.AggregatePurchaseOrder), from.String(), t.to.String())
	}
	s.logTransition(ctx, po.ID, from, t.to)
	return nil
}

// MarkSupplierRated flags a terminal order as rated and logs the note in its history.
// Rating an order twice is a CONFLICT.
func (s *service) MarkSupplierRated(ctx context.Context, tx *gorm.DB, actor types.Actor, id uuid.UUID, note string) (*models.PurchaseOrder, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	po, err := s.Load(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !po.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "purchase order must be completed or returned before rating").
			WithDetails(map[string]any{"status": po.Status})
	}
	repo := s.repo.WithTx(tx)
	affected, err := repo.MarkSupplierRated(ctx, po.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark supplier rated")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "supplier already rated for this purchase order")
	}
	po.SupplierRated = true
	if err := s.appendHistory(ctx, repo, actor, po.ID, po.Status, note); err != nil {
		return nil, err
	}
	return po, nil
}

func (s *service) transitionByID(ctx context.Context, actor types.Actor, id uuid.UUID, action Action) (*PurchaseOrderDTO, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		po, err := s.Load(ctx, tx, id)
		if err != nil {
			return err
		}
		return s.Transition(ctx, tx, actor, po, action)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *service) insert(ctx context.Context, tx *gorm.DB, actor types.Actor, po *models.PurchaseOrder, note string) error {
	if s.suppliers != nil {
		supplier, err := s.suppliers.FindByName(ctx, tx, po.SupplierName)
		if err != nil {
			return err
		}
		if supplier != nil {
			supplierID := supplier.ID
			po.SupplierID = &supplierID
			po.SupplierName = supplier.Name
		}
	}

	repo := s.repo.WithTx(tx)
	if err := repo.Create(ctx, po); err != nil {
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "requisition already has an active purchase order").
				WithDetails(map[string]any{"requisition_id": po.RequisitionID})
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create purchase order")
	}
	if err := s.appendHistory(ctx, repo, actor, po.ID, po.Status, note); err != nil {
		return err
	}

	lines := make([]payloads.PurchaseOrderLine, 0, len(po.Items))
	for _, line := range po.Items {
		lines = append(lines, payloads.PurchaseOrderLine{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPurchaseOrderCreated,
		AggregateType: enums.AggregatePurchaseOrder,
		AggregateID:   po.ID,
		Actor:         outbox.NewActorRef(actor.UserID, actor.Role.String()),
		Data: payloads.PurchaseOrderCreatedEvent{
			PurchaseOrderID: po.ID,
			Type:            po.Type,
			RequisitionID:   po.RequisitionID,
			SupplierName:    po.SupplierName,
			Status:          po.Status,
			Lines:           lines,
		},
	}); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.ObserveTransition(string(enums.AggregatePurchaseOrder), "", po.Status.String())
	}
	s.logTransition(ctx, po.ID, "", po.Status)
	return nil
}

func (s *service) appendHistory(ctx context.Context, repo *Repository, actor types.Actor, id uuid.UUID, status enums.PurchaseOrderStatus, note string) error {
	if err := repo.AppendHistory(ctx, &models.PurchaseOrderHistory{
		PurchaseOrderID: id,
		Status:          status,
		Note:            note,
		ActorID:         actor.UserIDPtr(),
		ActorRole:       actor.RolePtr(),
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append purchase order history")
	}
	return nil
}

func (s *service) logTransition(ctx context.Context, id uuid.UUID, from, to enums.PurchaseOrderStatus) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithPurchaseOrderID(ctx, id.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{"from": from, "to": to})
	s.logg.Info(logCtx, "purchase order transition")
}

func mapLoadError(err error, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "purchase order not found").
			WithDetails(map[string]any{"purchase_order_id": id})
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase order")
}
