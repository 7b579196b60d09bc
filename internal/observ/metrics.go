package observ

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	regMu      sync.Mutex
	registry   = prometheus.NewRegistry()
	counters   = map[string]*prometheus.CounterVec{}
	gauges     = map[string]*prometheus.GaugeVec{}
	histograms = map[string]*prometheus.HistogramVec{}
)

func labelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	return names
}

// IncCounter increments a counter by one, registering it with the
// given label set on first use.
func IncCounter(name string, labels map[string]string) {
	IncCounterBy(name, labels, 1)
}

// IncCounterBy increments a counter by an arbitrary amount.
func IncCounterBy(name string, labels map[string]string, value float64) {
	regMu.Lock()
	c, ok := counters[name]
	if !ok {
		c = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: name,
			Help: name,
		}, labelNames(labels))
		registry.MustRegister(c)
		counters[name] = c
	}
	regMu.Unlock()
	c.With(prometheus.Labels(labels)).Add(value)
}

// SetGauge sets a gauge's current value, registering it on first use.
func SetGauge(name string, value float64, labels map[string]string) {
	regMu.Lock()
	g, ok := gauges[name]
	if !ok {
		g = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: name,
			Help: name,
		}, labelNames(labels))
		registry.MustRegister(g)
		gauges[name] = g
	}
	regMu.Unlock()
	g.With(prometheus.Labels(labels)).Set(value)
}

// Observe records a value into a histogram, registering it on first use.
func Observe(name string, value float64, labels map[string]string) {
	regMu.Lock()
	h, ok := histograms[name]
	if !ok {
		h = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name,
			Help:    name,
			Buckets: prometheus.DefBuckets,
		}, labelNames(labels))
		registry.MustRegister(h)
		histograms[name] = h
	}
	regMu.Unlock()
	h.With(prometheus.Labels(labels)).Observe(value)
}

// Handler exposes the registry in the Prometheus text exposition
// format, mounted by the Status/Control API at /metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
