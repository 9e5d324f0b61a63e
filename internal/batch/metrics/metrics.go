package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	BatchesCreated  prometheus.Counter
	StockReserved   prometheus.Counter
	StockReleased   prometheus.Counter
	BatchesRecalled prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		BatchesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pharmatrace_batches_created_total",
			Help: "Total number of production batches created",
		}),
		StockReserved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pharmatrace_stock_reserved_total",
			Help: "Total quantity reserved from batch ledgers for dispatch",
		}),
		StockReleased: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pharmatrace_stock_released_total",
			Help: "Total quantity released back to batch ledgers by cancelled transfers",
		}),
		BatchesRecalled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pharmatrace_batches_recalled_total",
			Help: "Total number of batches marked recalled",
		}),
	}
}

func (m *Metrics) IncrementBatchesCreated() {
	if m == nil {
		return
	}
	m.BatchesCreated.Inc()
}

func (m *Metrics) AddStockReserved(quantity int) {
	if m == nil {
		return
	}
	m.StockReserved.Add(float64(quantity))
}

func (m *Metrics) AddStockReleased(quantity int) {
	if m == nil {
		return
	}
	m.StockReleased.Add(float64(quantity))
}

func (m *Metrics) IncrementBatchesRecalled() {
	if m == nil {
		return
	}
	m.BatchesRecalled.Inc()
}
