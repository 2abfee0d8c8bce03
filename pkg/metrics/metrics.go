// Package metrics exports execution counters for Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alexanderKus/risc-v-emulator/pkg/rv32i"
)

const namespace = "rv32i"

// Collector implements rv32i.Observer. It is safe to share between machines
// running on different goroutines.
type Collector struct {
	registry *prometheus.Registry
	retired  *prometheus.CounterVec
	runs     *prometheus.CounterVec
	faults   *prometheus.CounterVec
}

var _ rv32i.Observer = (*Collector)(nil)

func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		retired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instructions_retired_total",
			Help:      "Instructions executed to completion, by operation class.",
		}, []string{"class"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished runs, by exit status.",
		}, []string{"status"}),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faults_total",
			Help:      "Runs ended by a fault, by fault kind.",
		}, []string{"kind"}),
	}
	c.registry.MustRegister(c.retired, c.runs, c.faults)
	return c
}

func (c *Collector) InstructionRetired(op rv32i.Operation) {
	c.retired.WithLabelValues(op.Class().String()).Inc()
}

func (c *Collector) RunFinished(reason rv32i.ExitReason) {
	c.runs.WithLabelValues(reason.Status().String()).Inc()
	if reason.Fault != nil {
		c.faults.WithLabelValues(reason.Fault.Kind.String()).Inc()
	}
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
