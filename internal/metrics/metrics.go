// Package metrics exposes the service counters on a per-instance Prometheus
// registry. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Registry *prometheus.Registry

	dutiesCreated prometheus.Counter
	peopleCreated prometheus.Counter
	failures      *prometheus.CounterVec
	auditDropped  prometheus.Counter
	auditWritten  prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		dutiesCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "stargate_duties_created_total",
			Help: "Astronaut duties committed.",
		}),
		peopleCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "stargate_people_created_total",
			Help: "People committed.",
		}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stargate_operation_failures_total",
			Help: "Failed operations by operation and error kind.",
		}, []string{"operation", "kind"}),
		auditDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "stargate_audit_dropped_total",
			Help: "Audit entries dropped because the queue was full or closed.",
		}),
		auditWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "stargate_audit_written_total",
			Help: "Audit entries persisted.",
		}),
	}
}

func (m *Metrics) DutyCreated() {
	if m == nil {
		return
	}
	m.dutiesCreated.Inc()
}

func (m *Metrics) PersonCreated() {
	if m == nil {
		return
	}
	m.peopleCreated.Inc()
}

func (m *Metrics) Failure(operation, kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(operation, kind).Inc()
}

func (m *Metrics) AuditDropped() {
	if m == nil {
		return
	}
	m.auditDropped.Inc()
}

func (m *Metrics) AuditWritten() {
	if m == nil {
		return
	}
	m.auditWritten.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
