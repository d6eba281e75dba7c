package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// WorkflowMetrics counts procurement state transitions and stock movements.
type WorkflowMetrics struct {
	transitions *prometheus.CounterVec
	stock       *prometheus.CounterVec
	restocks    prometheus.Counter
}

// NewWorkflowMetrics registers the workflow metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewWorkflowMetrics(reg prometheus.Registerer) *WorkflowMetrics {
	if reg == nil {
		return &WorkflowMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "workflow_transitions_total",
		Help: "Applied requisition and purchase order status transitions.",
	}, []string{"aggregate", "from", "to"})
	stock := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_units_moved_total",
		Help: "Inventory units moved, by transaction type.",
	}, []string{"type"})
	restocks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inventory_auto_restock_requisitions_total",
		Help: "Requisitions raised automatically for low stock.",
	})
	reg.MustRegister(transitions, stock, restocks)
	return &WorkflowMetrics{
		transitions: transitions,
		stock:       stock,
		restocks:    restocks,
	}
}

// ObserveTransition records one status change for the aggregate.
func (w *WorkflowMetrics) ObserveTransition(aggregate, from, to string) {
	if w == nil || w.transitions == nil {
		return
	}
	if from == "" {
		from = "none"
	}
	w.transitions.WithLabelValues(normalizeLabel(aggregate), from, normalizeLabel(to)).Inc()
}

// ObserveStockMovement records the absolute units moved by a stock transaction.
func (w *WorkflowMetrics) ObserveStockMovement(kind string, delta int) {
	if w == nil || w.stock == nil {
		return
	}
	if delta < 0 {
		delta = -delta
	}
	w.stock.WithLabelValues(normalizeLabel(kind)).Add(float64(delta))
}

// IncAutoRestock increments the auto restock counter.
func (w *WorkflowMetrics) IncAutoRestock() {
	if w == nil || w.restocks == nil {
		return
	}
	w.restocks.Inc()
}
