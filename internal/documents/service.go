package documents

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mochkris/procurement-backend/internal/inventory"
	"github.com/mochkris/procurement-backend/internal/purchaseorders"
	"github.com/mochkris/procurement-backend/internal/requisitions"
)

type purchaseOrderReader interface {
	Get(ctx context.Context, id uuid.UUID) (*purchaseorders.PurchaseOrderDTO, error)
}

type requisitionReader interface {
	Get(ctx context.Context, id uuid.UUID) (*requisitions.RequisitionDTO, error)
}

type itemReader interface {
	Get(ctx context.Context, productID int64) (*inventory.ItemDTO, error)
}

// Service loads documents and summarizes them.
type Service interface {
	PurchaseOrder(ctx context.Context, id uuid.UUID) (*Summary, error)
	Requisition(ctx context.Context, id uuid.UUID) (*Summary, error)
}

type service struct {
	orders       purchaseOrderReader
	requisitions requisitionReader
	items        itemReader
	pageSize     int
}

// NewService builds the document projection. pageSize <= 0 uses DefaultPageSize.
func NewService(orders purchaseOrderReader, requisitions requisitionReader, items itemReader, pageSize int) (Service, error) {
	if orders == nil {
		return nil, fmt.Errorf("purchase order reader required")
	}
	if requisitions == nil {
		return nil, fmt.Errorf("requisition reader required")
	}
	if items == nil {
		return nil, fmt.Errorf("inventory reader required")
	}
	return &service{orders: orders, requisitions: requisitions, items: items, pageSize: pageSize}, nil
}

func (s *service) PurchaseOrder(ctx context.Context, id uuid.UUID) (*Summary, error) {
	po, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	summary := Summarize(FromPurchaseOrder(*po), s.pageSize)
	return &summary, nil
}

// Requisition summarizes the single requested line, taking the unit from inventory.
func (s *service) Requisition(ctx context.Context, id uuid.UUID) (*Summary, error) {
	req, err := s.requisitions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	unit := ""
	if item, err := s.items.Get(ctx, req.ProductID); err == nil {
		unit = item.Unit
	}
	summary := Summarize(FromRequisition(*req, unit), s.pageSize)
	return &summary, nil
}

// FromPurchaseOrder maps an order and its lines.
func FromPurchaseOrder(po purchaseorders.PurchaseOrderDTO) Source {
	src := Source{
		Kind:     KindPurchaseOrder,
		ID:       po.ID,
		Status:   po.Status.String(),
		Type:     po.Type.String(),
		Supplier: po.SupplierName,
		Items:    make([]Item, 0, len(po.Items)),
	}
	for _, line := range po.Items {
		src.Items = append(src.Items, Item{
			Description: line.Description,
			Quantity:    line.Quantity,
			Unit:        line.Unit,
			UnitPrice:   line.UnitPrice,
		})
	}
	return src
}

// FromRequisition maps a requisition to a one-line source.
func FromRequisition(req requisitions.RequisitionDTO, unit string) Source {
	src := Source{
		Kind:   KindRequisition,
		ID:     req.ID,
		Status: req.Status.String(),
		Items: []Item{{
			Description: req.ItemDescription,
			Quantity:    req.Quantity,
			Unit:        unit,
			UnitPrice:   req.UnitPrice,
		}},
	}
	if req.Supplier != nil {
		src.Supplier = *req.Supplier
	}
	return src
}
