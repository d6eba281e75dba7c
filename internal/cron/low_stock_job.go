package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/mochkris/procurement-backend/internal/inventory"
	"github.com/mochkris/procurement-backend/pkg/db/models"
	"github.com/mochkris/procurement-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type lowStockReader interface {
	ListLowStock(ctx context.Context) ([]inventory.ItemDTO, error)
	Load(ctx context.Context, tx *gorm.DB, productID int64) (*models.InventoryItem, error)
}

type autoRestocker interface {
	HasOpenAutoRequisition(ctx context.Context, tx *gorm.DB, productID int64) (bool, error)
	RaiseAutoRestock(ctx context.Context, tx *gorm.DB, item models.InventoryItem, source *uuid.UUID) (*models.Requisition, error)
}

type LowStockJobParams struct {
	Logger       *logger.Logger
	DB           txRunner
	Inventory    lowStockReader
	Requisitions autoRestocker
}

// NewLowStockJob builds the sweep that raises one auto requisition per low-stock
// item that has none open.
func NewLowStockJob(params LowStockJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory reader required")
	}
	if params.Requisitions == nil {
		return nil, fmt.Errorf("requisition service required")
	}
	return &lowStockJob{
		logg:         params.Logger,
		db:           params.DB,
		inventory:    params.Inventory,
		requisitions: params.Requisitions,
	}, nil
}

type lowStockJob struct {
	logg         *logger.Logger
	db           txRunner
	inventory    lowStockReader
	requisitions autoRestocker
}

func (j *lowStockJob) Name() string { return "low-stock-sweep" }

func (j *lowStockJob) Run(ctx context.Context) error {
	items, err := j.inventory.ListLowStock(ctx)
	if err != nil {
		return fmt.Errorf("list low stock: %w", err)
	}

	var errs error
	raised := 0
	for _, item := range items {
		ok, err := j.restock(ctx, item.ProductID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("restock product %d: %w", item.ProductID, err))
			continue
		}
		if ok {
			raised++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"low_stock_items": len(items),
		"raised":          raised,
	})
	j.logg.Info(logCtx, "low stock sweep complete")
	return errs
}

// restock re-reads the item inside the transaction so a concurrent receipt or an
// auto requisition raised by fulfillment is not duplicated.
func (j *lowStockJob) restock(ctx context.Context, productID int64) (bool, error) {
	raised := false
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		item, err := j.inventory.Load(ctx, tx, productID)
		if err != nil {
			return err
		}
		if !item.BelowThreshold() || item.RestockQuantity <= 0 {
			return nil
		}
		open, err := j.requisitions.HasOpenAutoRequisition(ctx, tx, productID)
		if err != nil {
			return err
		}
		if open {
			return nil
		}
		req, err := j.requisitions.RaiseAutoRestock(ctx, tx, *item, nil)
		if err != nil {
			return err
		}
		raised = req != nil
		return nil
	})
	return raised, err
}
