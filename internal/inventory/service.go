package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mochkris/procurement-backend/pkg/config"
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

type stockMetrics interface {
	ObserveStockMovement(kind string, delta int)
}

// Service exposes the inventory store: item CRUD plus the stock ledger.
type Service interface {
	Get(ctx context.Context, productID int64) (*ItemDTO, error)
	List(ctx context.Context, params pagination.Params) (*ListResult, error)
	Add(ctx context.Context, actor types.Actor, input AddInput) (*ItemDTO, error)
	Provision(ctx context.Context, actor types.Actor, input ProvisionInput) (*ItemDTO, error)
	Upsert(ctx context.Context, actor types.Actor, input UpsertInput) (*ItemDTO, error)
	Update(ctx context.Context, productID int64, input UpdateInput) (*ItemDTO, error)
	Delete(ctx context.Context, productID int64) error
	Adjust(ctx context.Context, actor types.Actor, input AdjustInput) (*ItemDTO, error)
	ListLowStock(ctx context.Context) ([]ItemDTO, error)
	ListTransactions(ctx context.Context, productID int64, params pagination.Params) (*TransactionListResult, error)

	// Load and ApplyDelta run inside a caller-owned transaction so workflow
	// services can move stock atomically with their own status changes.
	Load(ctx context.Context, tx *gorm.DB, productID int64) (*models.InventoryItem, error)
	ApplyDelta(ctx context.Context, tx *gorm.DB, input AdjustInput) (*models.InventoryItem, error)
}

// AddInput creates an item with an explicit starting quantity.
type AddInput struct {
	Name             string
	Quantity         int
	Unit             string
	Price            decimal.Decimal
	RestockThreshold int
	RestockQuantity  int
}

// ProvisionInput registers a new product with zero stock; nil fields take configured defaults.
type ProvisionInput struct {
	Name             string
	Unit             *string
	Price            *decimal.Decimal
	RestockThreshold *int
	RestockQuantity  *int
}

// UpsertInput replaces an item, creating it when ProductID is zero or unknown.
// A quantity change is booked as an ADJUSTED transaction.
type UpsertInput struct {
	ProductID int64
	AddInput
}

// UpdateInput carries optional descriptive changes. Quantity is not editable here.
type UpdateInput struct {
	Name             *string
	Unit             *string
	Price            *decimal.Decimal
	RestockThreshold *int
	RestockQuantity  *int
}

// AdjustInput describes one stock movement.
type AdjustInput struct {
	ProductID int64
	Delta     int
	Type      enums.InventoryTransactionType
	RelatedID *uuid.UUID
	ActorID   *uuid.UUID
	ActorRole string
}

type service struct {
	repo     *Repository
	tx       txRunner
	outbox   outboxPublisher
	metrics  stockMetrics
	logg     *logger.Logger
	defaults config.WorkflowConfig
}

// NewService builds the inventory service. metrics and logg may be nil.
func NewService(repo *Repository, tx txRunner, outbox outboxPublisher, metrics stockMetrics, logg *logger.Logger, defaults config.WorkflowConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if strings.TrimSpace(defaults.DefaultUnit) == "" {
		defaults.DefaultUnit = "pcs"
	}
	return &service{
		repo:     repo,
		tx:       tx,
		outbox:   outbox,
		metrics:  metrics,
		logg:     logg,
		defaults: defaults,
	}, nil
}

func (s *service) Get(ctx context.Context, productID int64) (*ItemDTO, error) {
	item, err := s.load(ctx, s.repo, productID)
	if err != nil {
		return nil, err
	}
	dto := ItemFromModel(*item)
	return &dto, nil
}

func (s *service) List(ctx context.Context, params pagination.Params) (*ListResult, error) {
	afterID, err := pagination.ParseKeyCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.List(ctx, afterID, pagination.LimitWithBuffer(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list inventory")
	}

	rows, next := pagination.Trim(rows, limit, func(row models.InventoryItem) string {
		return pagination.EncodeKeyCursor(row.ProductID)
	})
	result := &ListResult{Items: make([]ItemDTO, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		result.Items = append(result.Items, ItemFromModel(row))
	}
	return result, nil
}

func (s *service) Add(ctx context.Context, actor types.Actor, input AddInput) (*ItemDTO, error) {
	if err := validateAdd(input); err != nil {
		return nil, err
	}
	unit := strings.TrimSpace(input.Unit)
	if unit == "" {
		unit = s.defaults.DefaultUnit
	}
	item := &models.InventoryItem{
		Name:             strings.TrimSpace(input.Name),
		Unit:             unit,
		Price:            input.Price,
		RestockThreshold: input.RestockThreshold,
		RestockQuantity:  input.RestockQuantity,
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, item); err != nil {
			return createError(err, item.ProductID)
		}
		if input.Quantity == 0 {
			return nil
		}
		updated, err := s.ApplyDelta(ctx, tx, AdjustInput{
			ProductID: item.ProductID,
			Delta:     input.Quantity,
			Type:      enums.InventoryTransactionAdjusted,
			ActorID:   actor.UserIDPtr(),
			ActorRole: actor.Role.String(),
		})
		if err != nil {
			return err
		}
		item = updated
		return nil
	}); err != nil {
		return nil, err
	}

	dto := ItemFromModel(*item)
	return &dto, nil
}

func (s *service) Provision(ctx context.Context, actor types.Actor, input ProvisionInput) (*ItemDTO, error) {
	add := AddInput{
		Name:             input.Name,
		Unit:             s.defaults.DefaultUnit,
		RestockThreshold: s.defaults.DefaultRestockThreshold,
		RestockQuantity:  s.defaults.DefaultRestockQuantity,
	}
	if input.Unit != nil {
		add.Unit = *input.Unit
	}
	if input.Price != nil {
		add.Price = *input.Price
	}
	if input.RestockThreshold != nil {
		add.RestockThreshold = *input.RestockThreshold
	}
	if input.RestockQuantity != nil {
		add.RestockQuantity = *input.RestockQuantity
	}
	return s.Add(ctx, actor, add)
}

func (s *service) Upsert(ctx context.Context, actor types.Actor, input UpsertInput) (*ItemDTO, error) {
	if input.ProductID < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id must be positive")
	}
	if err := validateAdd(input.AddInput); err != nil {
		return nil, err
	}
	if input.ProductID == 0 {
		return s.Add(ctx, actor, input.AddInput)
	}

	var result *models.InventoryItem
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByProductID(ctx, input.ProductID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory item")
		}

		unit := strings.TrimSpace(input.Unit)
		if unit == "" {
			unit = s.defaults.DefaultUnit
		}
		next := &models.InventoryItem{
			ProductID:        input.ProductID,
			Name:             strings.TrimSpace(input.Name),
			Unit:             unit,
			Price:            input.Price,
			RestockThreshold: input.RestockThreshold,
			RestockQuantity:  input.RestockQuantity,
		}
		delta := input.Quantity
		if current == nil {
			if err := repo.Create(ctx, next); err != nil {
				return createError(err, next.ProductID)
			}
			if err := repo.SyncProductIDSequence(ctx); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sync product id sequence")
			}
		} else {
			if err := repo.UpdateDetails(ctx, next); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update inventory item")
			}
			delta = input.Quantity - current.Quantity
		}

		if delta != 0 {
			updated, err := s.ApplyDelta(ctx, tx, AdjustInput{
				ProductID: input.ProductID,
				Delta:     delta,
				Type:      enums.InventoryTransactionAdjusted,
				ActorID:   actor.UserIDPtr(),
				ActorRole: actor.Role.String(),
			})
			if err != nil {
				return err
			}
			result = updated
			return nil
		}
		result, err = s.load(ctx, repo, input.ProductID)
		return err
	})
	if err != nil {
		return nil, err
	}
	dto := ItemFromModel(*result)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, productID int64, input UpdateInput) (*ItemDTO, error) {
	var result *models.InventoryItem
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := s.load(ctx, repo, productID)
		if err != nil {
			return err
		}
		if input.Name != nil {
			item.Name = strings.TrimSpace(*input.Name)
		}
		if input.Unit != nil {
			item.Unit = strings.TrimSpace(*input.Unit)
		}
		if input.Price != nil {
			item.Price = *input.Price
		}
		if input.RestockThreshold != nil {
			item.RestockThreshold = *input.RestockThreshold
		}
		if input.RestockQuantity != nil {
			item.RestockQuantity = *input.RestockQuantity
		}
		if err := validateDetails(item.Name, item.Unit, item.Price, item.RestockThreshold, item.RestockQuantity); err != nil {
			return err
		}
		if err := repo.UpdateDetails(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update inventory item")
		}
		result, err = s.load(ctx, repo, productID)
		return err
	})
	if err != nil {
		return nil, err
	}
	dto := ItemFromModel(*result)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, productID int64) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.load(ctx, repo, productID); err != nil {
			return err
		}
		open, err := repo.CountOpenReferences(ctx, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count open references")
		}
		if open > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "inventory item is referenced by open requisitions or purchase orders").
				WithDetails(map[string]any{"product_id": productID, "open_references": open})
		}
		if err := repo.Delete(ctx, productID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete inventory item")
		}
		return nil
	})
}

func (s *service) Adjust(ctx context.Context, actor types.Actor, input AdjustInput) (*ItemDTO, error) {
	if input.Delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must be non-zero")
	}
	if input.Type == "" {
		input.Type = enums.InventoryTransactionAdjusted
	}
	input.ActorID = actor.UserIDPtr()
	input.ActorRole = actor.Role.String()

	var result *models.InventoryItem
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		result, err = s.ApplyDelta(ctx, tx, input)
		return err
	}); err != nil {
		return nil, err
	}
	dto := ItemFromModel(*result)
	return &dto, nil
}

func (s *service) Load(ctx context.Context, tx *gorm.DB, productID int64) (*models.InventoryItem, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	return s.load(ctx, s.repo.WithTx(tx), productID)
}

// ApplyDelta moves stock and books the ledger row plus events in tx. A result below
// zero fails with INSUFFICIENT_STOCK and leaves the row untouched.
func (s *service) ApplyDelta(ctx context.Context, tx *gorm.DB, input AdjustInput) (*models.InventoryItem, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid inventory transaction type")
	}
	repo := s.repo.WithTx(tx)

	before, err := s.load(ctx, repo, input.ProductID)
	if err != nil {
		return nil, err
	}
	affected, err := repo.ApplyDelta(ctx, input.ProductID, input.Delta)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply inventory delta")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficient, "insufficient stock").
			WithDetails(map[string]any{
				"product_id": input.ProductID,
				"available":  before.Quantity,
				"requested":  -input.Delta,
			})
	}

	after, err := s.load(ctx, repo, input.ProductID)
	if err != nil {
		return nil, err
	}

	row := &models.InventoryTransaction{
		ProductID:    input.ProductID,
		ChangeQty:    input.Delta,
		ResultingQty: after.Quantity,
		Type:         input.Type,
		RelatedID:    input.RelatedID,
		ActorID:      input.ActorID,
	}
	if err := repo.CreateTransaction(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record inventory transaction")
	}

	actorID := uuid.Nil
	if input.ActorID != nil {
		actorID = *input.ActorID
	}
	actor := outbox.NewActorRef(actorID, input.ActorRole)
	aggregateID := outbox.InventoryAggregateID(input.ProductID)
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventInventoryAdjusted,
		AggregateType: enums.AggregateInventoryItem,
		AggregateID:   aggregateID,
		Actor:         actor,
		Data: payloads.InventoryAdjustedEvent{
			ProductID:    input.ProductID,
			ChangeQty:    input.Delta,
			ResultingQty: after.Quantity,
			Type:         input.Type,
			RelatedID:    input.RelatedID,
		},
	}); err != nil {
		return nil, err
	}

	if !before.BelowThreshold() && after.BelowThreshold() {
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInventoryLowStock,
			AggregateType: enums.AggregateInventoryItem,
			AggregateID:   aggregateID,
			Actor:         actor,
			Data: payloads.InventoryLowStockEvent{
				ProductID: input.ProductID,
				Quantity:  after.Quantity,
				Threshold: after.RestockThreshold,
			},
		}); err != nil {
			return nil, err
		}
	}

	if s.metrics != nil {
		s.metrics.ObserveStockMovement(input.Type.String(), input.Delta)
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"product_id":    input.ProductID,
			"change_qty":    input.Delta,
			"resulting_qty": after.Quantity,
			"type":          input.Type,
		})
		s.logg.Info(logCtx, "inventory adjusted")
	}
	return after, nil
}

func (s *service) ListLowStock(ctx context.Context) ([]ItemDTO, error) {
	rows, err := s.repo.ListLowStock(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list low stock")
	}
	out := make([]ItemDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, ItemFromModel(row))
	}
	return out, nil
}

func (s *service) ListTransactions(ctx context.Context, productID int64, params pagination.Params) (*TransactionListResult, error) {
	if _, err := s.load(ctx, s.repo, productID); err != nil {
		return nil, err
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListTransactions(ctx, productID, cursor, pagination.LimitWithBuffer(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list inventory transactions")
	}

	rows, next := pagination.Trim(rows, limit, func(row models.InventoryTransaction) string {
		return pagination.EncodeCursor(pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID})
	})
	result := &TransactionListResult{Transactions: make([]TransactionDTO, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		result.Transactions = append(result.Transactions, transactionFromModel(row))
	}
	return result, nil
}

func (s *service) load(ctx context.Context, repo *Repository, productID int64) (*models.InventoryItem, error) {
	if productID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id must be positive")
	}
	item, err := repo.FindByProductID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inventory item not found").
				WithDetails(map[string]any{"product_id": productID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory item")
	}
	return item, nil
}

func validateAdd(input AddInput) error {
	if input.Quantity < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be >= 0")
	}
	unit := input.Unit
	if strings.TrimSpace(unit) == "" {
		unit = "pcs"
	}
	return validateDetails(input.Name, unit, input.Price, input.RestockThreshold, input.RestockQuantity)
}

func validateDetails(name, unit string, price decimal.Decimal, threshold, restockQty int) error {
	if strings.TrimSpace(name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if strings.TrimSpace(unit) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "unit is required")
	}
	if price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be >= 0")
	}
	if threshold < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "restock_threshold must be >= 0")
	}
	if restockQty < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "restock_quantity must be >= 0")
	}
	return nil
}

func createError(err error, productID int64) error {
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "inventory item already exists").
			WithDetails(map[string]any{"product_id": productID})
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create inventory item")
}
