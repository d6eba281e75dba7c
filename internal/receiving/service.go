// Package receiving reconciles delivered purchase orders against inventory.
package receiving

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mochkris/procurement-backend/internal/inventory"
	"github.com/mochkris/procurement-backend/internal/purchaseorders"
	"github.com/mochkris/procurement-backend/pkg/db/models"
	"github.com/mochkris/procurement-backend/pkg/enums"
	pkgerrors "github.com/mochkris/procurement-backend/pkg/errors"
	"github.com/mochkris/procurement-backend/pkg/logger"
	"github.com/mochkris/procurement-backend/pkg/outbox"
	"github.com/mochkris/procurement-backend/pkg/outbox/payloads"
	"github.com/mochkris/procurement-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type purchaseOrderWorkflow interface {
	Load(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.PurchaseOrder, error)
	Transition(ctx context.Context, tx *gorm.DB, actor types.Actor, po *models.PurchaseOrder, action purchaseorders.Action) error
	Get(ctx context.Context, id uuid.UUID) (*purchaseorders.PurchaseOrderDTO, error)
}

type requisitionSettler interface {
	MarkCompleted(ctx context.Context, tx *gorm.DB, actor types.Actor, id uuid.UUID) error
	ReopenForPurchasing(ctx context.Context, tx *gorm.DB, actor types.Actor, id uuid.UUID) error
}

type stockLedger interface {
	ApplyDelta(ctx context.Context, tx *gorm.DB, input inventory.AdjustInput) (*models.InventoryItem, error)
}

// Service handles delivery receipt.
type Service interface {
	Receive(ctx context.Context, actor types.Actor, poID uuid.UUID, damaged bool) (*Result, error)
	CompleteDirectPurchase(ctx context.Context, actor types.Actor, poID uuid.UUID) (*Result, error)
}

// Result is the purchase order after receipt plus the stock it credited.
type Result struct {
	PurchaseOrder purchaseorders.PurchaseOrderDTO `json:"purchase_order"`
	Damaged       bool                            `json:"damaged"`
	Stock         []StockLevel                    `json:"stock,omitempty"`
}

// StockLevel is the quantity on hand after a line was credited.
type StockLevel struct {
	ProductID int64 `json:"product_id"`
	Received  int   `json:"received"`
	Quantity  int   `json:"quantity"`
}

type service struct {
	tx           txRunner
	outbox       outboxPublisher
	orders       purchaseOrderWorkflow
	requisitions requisitionSettler
	stock        stockLedger
	logg         *logger.Logger
}

// NewService wires the receiving handler. logg may be nil.
func NewService(tx txRunner, outbox outboxPublisher, orders purchaseOrderWorkflow, requisitions requisitionSettler, stock stockLedger, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if orders == nil {
		return nil, fmt.Errorf("purchase order workflow required")
	}
	if requisitions == nil {
		return nil, fmt.Errorf("requisition workflow required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	return &service{
		tx:           tx,
		outbox:       outbox,
		orders:       orders,
		requisitions: requisitions,
		stock:        stock,
		logg:         logg,
	}, nil
}

// Receive settles a delivery. Damaged goods go back to the supplier with no stock
// change and the linked requisition returns to purchasing for a replacement order.
// Good goods credit every line and complete the linked requisition. Any failure,
// including an unknown product, rolls the whole receipt back.
func (s *service) Receive(ctx context.Context, actor types.Actor, poID uuid.UUID, damaged bool) (*Result, error) {
	return s.receive(ctx, actor, poID, damaged, nil)
}

// CompleteDirectPurchase is a good receipt restricted to direct purchase orders.
func (s *service) CompleteDirectPurchase(ctx context.Context, actor types.Actor, poID uuid.UUID) (*Result, error) {
	direct := enums.PurchaseOrderTypeDirectPurchase
	return s.receive(ctx, actor, poID, false, &direct)
}

func (s *service) receive(ctx context.Context, actor types.Actor, poID uuid.UUID, damaged bool, requireType *enums.PurchaseOrderType) (*Result, error) {
	action := purchaseorders.ActionReceiveGood
	if damaged {
		action = purchaseorders.ActionReceiveDamaged
	}

	result := &Result{Damaged: damaged}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		po, err := s.orders.Load(ctx, tx, poID)
		if err != nil {
			return err
		}
		if requireType != nil && po.Type != *requireType {
			return pkgerrors.New(pkgerrors.CodeValidation, "purchase order is not a direct purchase").
				WithDetails(map[string]any{"type": po.Type})
		}
		if _, err := purchaseorders.Next(po.Status, action); err != nil {
			return err
		}
		if len(po.Items) == 0 && !damaged {
			return pkgerrors.New(pkgerrors.CodeValidation, "purchase order has no items")
		}

		lines := make([]payloads.PurchaseOrderLine, 0, len(po.Items))
		for _, line := range po.Items {
			event := payloads.PurchaseOrderLine{ProductID: line.ProductID, Quantity: line.Quantity}
			if !damaged {
				poRef := po.ID
				after, err := s.stock.ApplyDelta(ctx, tx, inventory.AdjustInput{
					ProductID: line.ProductID,
					Delta:     line.Quantity,
					Type:      enums.InventoryTransactionReceived,
					RelatedID: &poRef,
					ActorID:   actor.UserIDPtr(),
					ActorRole: actor.Role.String(),
				})
				if err != nil {
					return err
				}
				resulting := after.Quantity
				event.ResultingQty = &resulting
				result.Stock = append(result.Stock, StockLevel{
					ProductID: line.ProductID,
					Received:  line.Quantity,
					Quantity:  after.Quantity,
				})
			}
			lines = append(lines, event)
		}

		if err := s.orders.Transition(ctx, tx, actor, po, action); err != nil {
			return err
		}
		if po.Type == enums.PurchaseOrderTypeRFLinked && po.RequisitionID != nil {
			settle := s.requisitions.MarkCompleted
			if damaged {
				settle = s.requisitions.ReopenForPurchasing
			}
			if err := settle(ctx, tx, actor, *po.RequisitionID); err != nil {
				return err
			}
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPurchaseOrderReceived,
			AggregateType: enums.AggregatePurchaseOrder,
			AggregateID:   po.ID,
			Actor:         outbox.NewActorRef(actor.UserID, actor.Role.String()),
			Data: payloads.PurchaseOrderReceivedEvent{
				PurchaseOrderID: po.ID,
				Damaged:         damaged,
				Status:          po.Status,
				RequisitionID:   po.RequisitionID,
				Lines:           lines,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	dto, err := s.orders.Get(ctx, poID)
	if err != nil {
		return nil, err
	}
	result.PurchaseOrder = *dto

	if s.logg != nil {
		logCtx := s.logg.WithPurchaseOrderID(ctx, poID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{"damaged": damaged, "status": dto.Status})
		s.logg.Info(logCtx, "purchase order received")
	}
	return result, nil
}
