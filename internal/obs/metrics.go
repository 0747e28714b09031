package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Label is a key/value pair attached to measurements.
type Label struct {
	Key   string
	Value string
}

// Meter is a very small interface for emitting counters, gauges and
// histograms. Implementations may no-op or bridge to a metrics system.
type Meter interface {
	Counter(name string, value float64, labels ...Label)
	Gauge(name string, value float64, labels ...Label)
	Histogram(name string, value float64, labels ...Label)
}

// NopMeter is a Meter that discards all measurements.
type NopMeter struct{}

func (NopMeter) Counter(name string, value float64, labels ...Label)   {}
func (NopMeter) Gauge(name string, value float64, labels ...Label)     {}
func (NopMeter) Histogram(name string, value float64, labels ...Label) {}

// PromMeter bridges Meter onto Prometheus collectors. A collector is
// created and registered the first time a name is seen; its label keys
// are fixed by that first call and later calls with other keys are
// dropped.
type PromMeter struct {
	Reg     prometheus.Registerer
	Buckets []float64 // histogram buckets; DefBuckets when nil

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

// NewPromMeter returns a PromMeter registering on reg, or on the default
// registerer when reg is nil.
func NewPromMeter(reg prometheus.Registerer) *PromMeter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &PromMeter{
		Reg:        reg,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

func (m *PromMeter) Counter(name string, value float64, labels ...Label) {
	m.mu.Lock()
	m.lazyInit()
	vec, ok := m.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: name}, labelKeys(labels))
		if existing, ok := m.register(vec).(*prometheus.CounterVec); ok {
			vec = existing
		}
		m.counters[name] = vec
	}
	m.mu.Unlock()
	if c, err := vec.GetMetricWith(promLabels(labels)); err == nil {
		c.Add(value)
	}
}

func (m *PromMeter) Gauge(name string, value float64, labels ...Label) {
	m.mu.Lock()
	m.lazyInit()
	vec, ok := m.gauges[name]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: name}, labelKeys(labels))
		if existing, ok := m.register(vec).(*prometheus.GaugeVec); ok {
			vec = existing
		}
		m.gauges[name] = vec
	}
	m.mu.Unlock()
	if g, err := vec.GetMetricWith(promLabels(labels)); err == nil {
		g.Set(value)
	}
}

func (m *PromMeter) Histogram(name string, value float64, labels ...Label) {
	m.mu.Lock()
	m.lazyInit()
	vec, ok := m.histograms[name]
	if !ok {
		buckets := m.Buckets
		if buckets == nil {
			buckets = prometheus.DefBuckets
		}
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: name, Buckets: buckets}, labelKeys(labels))
		if existing, ok := m.register(vec).(*prometheus.HistogramVec); ok {
			vec = existing
		}
		m.histograms[name] = vec
	}
	m.mu.Unlock()
	if h, err := vec.GetMetricWith(promLabels(labels)); err == nil {
		h.Observe(value)
	}
}

// lazyInit requires m.mu; it lets a zero or literal PromMeter be used.
func (m *PromMeter) lazyInit() {
	if m.counters == nil {
		m.counters = make(map[string]*prometheus.CounterVec)
	}
	if m.gauges == nil {
		m.gauges = make(map[string]*prometheus.GaugeVec)
	}
	if m.histograms == nil {
		m.histograms = make(map[string]*prometheus.HistogramVec)
	}
}

// register returns the collector already registered under the same
// descriptor, if any, so two meters on one registry share series.
func (m *PromMeter) register(c prometheus.Collector) prometheus.Collector {
	if m.Reg == nil {
		return c
	}
	if err := m.Reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
	}
	return c
}

func labelKeys(labels []Label) []string {
	keys := make([]string, len(labels))
	for i, l := range labels {
		keys[i] = l.Key
	}
	return keys
}

func promLabels(labels []Label) prometheus.Labels {
	pl := make(prometheus.Labels, len(labels))
	for _, l := range labels {
		pl[l.Key] = l.Value
	}
	return pl
}

// CounterVec returns the collector behind a counter name, or nil if the
// name has not been used yet.
func (m *PromMeter) CounterVec(name string) *prometheus.CounterVec {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}
