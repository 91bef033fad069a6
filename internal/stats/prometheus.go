package stats

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics espone le metriche del router e dell'orchestratore in formato Prometheus.
// Usa un registry dedicato, così più istanze possono convivere nei test.
type Metrics struct {
	registry  *prometheus.Registry
	collector *Collector

	routesTotal     *prometheus.CounterVec
	routeDuration   *prometheus.HistogramVec
	backendRequests *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
	switchesTotal   *prometheus.CounterVec
	providerUp      *prometheus.GaugeVec
	providerErrors  *prometheus.GaugeVec
}

// NewMetrics crea e registra le metriche
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "nutrillm"
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		collector: NewCollector(),
	}

	m.routesTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "routes_total",
		Help:      "Total number of routed requests by agent and status",
	}, []string{"agent", "status"})

	m.routeDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "route_duration_seconds",
		Help:      "End-to-end agent processing time",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"agent"})

	m.backendRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backend_requests_total",
		Help:      "Total number of model backend calls by provider and status",
	}, []string{"provider", "status"})

	m.backendDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backend_request_duration_seconds",
		Help:      "Model backend call duration",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"provider"})

	m.switchesTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_switches_total",
		Help:      "Number of current provider changes",
	}, []string{"from", "to"})

	m.providerUp = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "provider_up",
		Help:      "Whether the provider answered its last health probe (1) or not (0)",
	}, []string{"provider"})

	m.providerErrors = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "provider_errors",
		Help:      "Consecutive error count per provider",
	}, []string{"provider"})

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	log.Debug().Str("namespace", namespace).Msg("Prometheus metrics registered")
	return m
}

// ObserveRoute registra l'esito di una richiesta instradata
func (m *Metrics) ObserveRoute(agent, status string, duration time.Duration) {
	m.routesTotal.WithLabelValues(agent, status).Inc()
	m.routeDuration.WithLabelValues(agent).Observe(duration.Seconds())
	m.collector.recordRoute(agent, status == "success", duration)
}

// ObserveBackendCall registra una chiamata a un backend
func (m *Metrics) ObserveBackendCall(provider string, ok bool, duration time.Duration) {
	status := "success"
	if !ok {
		status = "error"
	}
	m.backendRequests.WithLabelValues(provider, status).Inc()
	m.backendDuration.WithLabelValues(provider).Observe(duration.Seconds())
	m.collector.recordCall(provider, ok, duration)
}

// ObserveProviderSwitch registra un cambio di provider corrente
func (m *Metrics) ObserveProviderSwitch(from, to string) {
	m.switchesTotal.WithLabelValues(from, to).Inc()
	m.collector.recordSwitch()
}

// ObserveProviderErrors aggiorna il contatore di errori consecutivi
func (m *Metrics) ObserveProviderErrors(provider string, consecutive int) {
	m.providerErrors.WithLabelValues(provider).Set(float64(consecutive))
}

// ObserveProviderHealth aggiorna lo stato di salute del provider
func (m *Metrics) ObserveProviderHealth(provider string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1
	}
	m.providerUp.WithLabelValues(provider).Set(value)
	m.collector.recordHealth(provider, healthy)
}

// Summary restituisce gli aggregati in memoria
func (m *Metrics) Summary() Summary {
	return m.collector.Snapshot()
}

// Registry restituisce il registry Prometheus dedicato
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler restituisce l'handler HTTP per /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
