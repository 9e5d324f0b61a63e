package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	TransfersExecuted     prometheus.Counter
	TransfersAcknowledged prometheus.Counter
	TransfersCancelled    prometheus.Counter
	ConflictRetries       prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		TransfersExecuted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pharmatrace_transfers_executed_total",
			Help: "Total number of transfers dispatched",
		}),
		TransfersAcknowledged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pharmatrace_transfers_acknowledged_total",
			Help: "Total number of transfers acknowledged by their receiver",
		}),
		TransfersCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pharmatrace_transfers_cancelled_total",
			Help: "Total number of transfers cancelled before receipt",
		}),
		ConflictRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pharmatrace_transfer_conflict_retries_total",
			Help: "Total number of transfer attempts retried after a row-lock conflict",
		}),
	}
}

func (m *Metrics) IncrementTransfersExecuted() {
	if m == nil {
		return
	}
	m.TransfersExecuted.Inc()
}

func (m *Metrics) IncrementTransfersAcknowledged() {
	if m == nil {
		return
	}
	m.TransfersAcknowledged.Inc()
}

func (m *Metrics) IncrementTransfersCancelled() {
	if m == nil {
		return
	}
	m.TransfersCancelled.Inc()
}

func (m *Metrics) IncrementConflictRetries() {
	if m == nil {
		return
	}
	m.ConflictRetries.Inc()
}
