package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	JobsCreated   prometheus.Counter
	CodesRedeemed prometheus.Counter
	JobsCompleted prometheus.Counter
	JobsCancelled prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		JobsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pharmatrace_print_jobs_created_total",
			Help: "Total number of print jobs created",
		}),
		CodesRedeemed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pharmatrace_print_job_codes_redeemed_total",
			Help: "Total number of access codes successfully redeemed",
		}),
		JobsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pharmatrace_print_jobs_completed_total",
			Help: "Total number of print jobs completed",
		}),
		JobsCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pharmatrace_print_jobs_cancelled_total",
			Help: "Total number of print jobs cancelled",
		}),
	}
}

func (m *Metrics) IncrementJobsCreated() {
	if m == nil {
		return
	}
	m.JobsCreated.Inc()
}

func (m *Metrics) IncrementCodesRedeemed() {
	if m == nil {
		return
	}
	m.CodesRedeemed.Inc()
}

func (m *Metrics) IncrementJobsCompleted() {
	if m == nil {
		return
	}
	m.JobsCompleted.Inc()
}

func (m *Metrics) IncrementJobsCancelled() {
	if m == nil {
		return
	}
	m.JobsCancelled.Inc()
}
