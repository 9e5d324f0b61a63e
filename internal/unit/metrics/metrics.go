package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	UnitsMinted   prometheus.Counter
	CustodyEvents prometheus.Counter
	UnitsSold     prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		UnitsMinted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pharmatrace_units_minted_total",
			Help: "Total number of units minted into the registry",
		}),
		CustodyEvents: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pharmatrace_custody_events_total",
			Help: "Total number of custody events appended to unit histories",
		}),
		UnitsSold: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pharmatrace_units_sold_total",
			Help: "Total number of units sold to end customers",
		}),
	}
}

func (m *Metrics) AddUnitsMinted(count int) {
	if m == nil {
		return
	}
	m.UnitsMinted.Add(float64(count))
}

func (m *Metrics) IncrementCustodyEvents() {
	if m == nil {
		return
	}
	m.CustodyEvents.Inc()
}

func (m *Metrics) IncrementUnitsSold() {
	if m == nil {
		return
	}
	m.UnitsSold.Inc()
}
