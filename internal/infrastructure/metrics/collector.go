// Package metrics exposes agent activity as Prometheus collectors on a
// private registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smart-browser-agent/internal/application/port/output"
	"smart-browser-agent/internal/domain/entity"
)

const namespace = "agent"

var _ output.MetricsPort = (*Collector)(nil)

type Collector struct {
	registry *prometheus.Registry

	tasksTotal     *prometheus.CounterVec
	turnsTotal     prometheus.Counter
	actionsTotal   *prometheus.CounterVec
	actionDuration *prometheus.HistogramVec
	sessionsOpen   prometheus.Gauge
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		tasksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_total",
				Help:      "Tasks run by the agent loop, by outcome",
			},
			[]string{"outcome"},
		),
		turnsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Reasoning turns completed",
		}),
		actionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_total",
				Help:      "Browser actions executed, by action and status",
			},
			[]string{"action", "status"},
		),
		actionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "action_duration_seconds",
				Help:      "Browser action duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"action"},
		),
		sessionsOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_open",
			Help:      "Browser sessions currently open",
		}),
	}
}

func (c *Collector) TaskFinished(status entity.TaskStatus) {
	c.tasksTotal.WithLabelValues(string(status)).Inc()
}

func (c *Collector) TurnCompleted() {
	c.turnsTotal.Inc()
}

func (c *Collector) ActionExecuted(action entity.ActionName, failed bool, elapsed time.Duration) {
	status := "success"
	if failed {
		status = "error"
	}
	c.actionsTotal.WithLabelValues(string(action), status).Inc()
	c.actionDuration.WithLabelValues(string(action)).Observe(elapsed.Seconds())
}

func (c *Collector) SessionsOpen(n int) {
	c.sessionsOpen.Set(float64(n))
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
