package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mochkris/procurement-backend/api/controllers"
	"github.com/mochkris/procurement-backend/api/middleware"
	"github.com/mochkris/procurement-backend/internal/documents"
	"github.com/mochkris/procurement-backend/internal/inventory"
	"github.com/mochkris/procurement-backend/internal/purchaseorders"
	"github.com/mochkris/procurement-backend/internal/receiving"
	"github.com/mochkris/procurement-backend/internal/requisitions"
	"github.com/mochkris/procurement-backend/internal/suppliers"
	"github.com/mochkris/procurement-backend/pkg/config"
	"github.com/mochkris/procurement-backend/pkg/db"
	"github.com/mochkris/procurement-backend/pkg/enums"
	"github.com/mochkris/procurement-backend/pkg/logger"
	pkgredis "github.com/mochkris/procurement-backend/pkg/redis"
)

// edgeStore backs idempotency replay, write rate limiting and the redis readiness check.
type edgeStore interface {
	pkgredis.IdempotencyStore
	middleware.RateLimitStore
	Ping(context.Context) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	cache edgeStore,
	metricsHandler http.Handler,
	inventoryService inventory.Service,
	requisitionService requisitions.Service,
	purchaseOrderService purchaseorders.Service,
	receivingService receiving.Service,
	supplierService suppliers.Service,
	documentService documents.Service,
	deadLetters controllers.DeadLetterAdmin,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Recoverer(logg),
		middleware.CORS(cfg.HTTP.CORSOrigins),
	)

	var cachePinger interface{ Ping(context.Context) error }
	if cache != nil {
		cachePinger = cache
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, cachePinger))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	var idempotencyStore pkgredis.IdempotencyStore
	var counterStore middleware.RateLimitStore
	if cache != nil {
		idempotencyStore = cache
		counterStore = cache
	}
	writePolicy := middleware.NewRateLimitPolicy("writes", cfg.HTTP.WriteRateWindow, cfg.HTTP.WriteRateLimit)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RateLimit(writePolicy, counterStore, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Get("/ping", controllers.PrivatePing())

		custodian := middleware.RequireRole(logg, enums.ActorRoleCustodian)
		purchasing := middleware.RequireRole(logg, enums.ActorRolePurchasing)
		vp := middleware.RequireRole(logg, enums.ActorRoleVP)
		receiver := middleware.RequireRole(logg, enums.ActorRoleCustodian, enums.ActorRoleManager)

		r.Route("/inventory", func(r chi.Router) {
			r.Get("/", controllers.InventoryList(inventoryService, logg))
			r.Get("/low-stock", controllers.InventoryLowStock(inventoryService, logg))
			r.With(custodian).Post("/", controllers.InventoryCreate(inventoryService, logg))
			r.With(custodian).Post("/provision", controllers.InventoryProvision(inventoryService, logg))
			r.Route("/{productId}", func(r chi.Router) {
				r.Get("/", controllers.InventoryGet(inventoryService, logg))
				r.Get("/transactions", controllers.InventoryTransactions(inventoryService, logg))
				r.With(custodian).Put("/", controllers.InventoryUpsert(inventoryService, logg))
				r.With(custodian).Patch("/", controllers.InventoryUpdate(inventoryService, logg))
				r.With(custodian).Delete("/", controllers.InventoryDelete(inventoryService, logg))
				r.With(custodian).Post("/adjust", controllers.InventoryAdjust(inventoryService, logg))
			})
		})

		r.Route("/requisitions", func(r chi.Router) {
			r.Get("/", controllers.RequisitionList(requisitionService, logg))
			r.With(middleware.RequireRole(logg, enums.ActorRoleDepartment)).Post("/", controllers.RequisitionCreate(requisitionService, logg))
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", controllers.RequisitionGet(requisitionService, logg))
				r.Get("/document", controllers.RequisitionDocument(documentService, logg))
				r.With(vp).Post("/approval", controllers.RequisitionApproval(requisitionService, logg))
				r.With(custodian).Post("/fulfillment", controllers.RequisitionFulfillment(requisitionService, logg))
			})
		})

		r.Route("/purchase-orders", func(r chi.Router) {
			r.Get("/", controllers.PurchaseOrderList(purchaseOrderService, logg))
			r.With(purchasing).Post("/from-requisition", controllers.PurchaseOrderFromRequisition(purchaseOrderService, logg))
			r.With(purchasing).Post("/direct", controllers.PurchaseOrderDirect(purchaseOrderService, logg))
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", controllers.PurchaseOrderGet(purchaseOrderService, logg))
				r.Get("/document", controllers.PurchaseOrderDocument(documentService, logg))
				r.With(vp).Post("/approval", controllers.PurchaseOrderApproval(purchaseOrderService, logg))
				r.With(purchasing).Post("/resubmit", controllers.PurchaseOrderResubmit(purchaseOrderService, logg))
				r.With(purchasing).Post("/ready-for-delivery", controllers.PurchaseOrderReadyForDelivery(purchaseOrderService, logg))
				r.With(receiver).Post("/receipt", controllers.PurchaseOrderReceipt(receivingService, logg))
				r.With(receiver).Post("/complete", controllers.PurchaseOrderComplete(receivingService, logg))
			})
		})

		r.Route("/suppliers", func(r chi.Router) {
			r.Get("/", controllers.SupplierList(supplierService, logg))
			r.With(purchasing).Post("/", controllers.SupplierCreate(supplierService, logg))
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", controllers.SupplierGet(supplierService, logg))
				r.With(purchasing).Patch("/", controllers.SupplierUpdate(supplierService, logg))
				r.With(purchasing).Delete("/", controllers.SupplierDelete(supplierService, logg))
				r.With(middleware.RequireRole(logg, enums.ActorRolePurchasing, enums.ActorRoleManager, enums.ActorRoleCustodian)).
					Post("/ratings", controllers.SupplierRate(supplierService, logg))
			})
		})

		if deadLetters != nil {
			r.Route("/admin/outbox/dead-letters", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.ActorRoleAdmin))
				r.Get("/", controllers.DeadLetterList(deadLetters, logg))
				r.Post("/{eventId}/requeue", controllers.DeadLetterRequeue(deadLetters, logg))
			})
		}
	})

	return r
}
